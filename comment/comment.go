// Package comment defines the parsed post comment model that the bridge
// carries into a host runtime.
//
// A ParsedComment holds the raw comment text, the rendered text and an
// ordered list of spannables. Each spannable wraps one SpannableData value,
// a closed union of Link, Spoiler and GreenText; a Link in turn wraps one
// PostLink value (Quote, DeadQuote, URLLink, BoardLink, SearchLink,
// ThreadLink). Both unions are sealed: only the types in this package
// implement them. Variants may be held by value or by pointer; Normalize
// folds pointers to values.
package comment

import "fmt"

// ParsedComment is the output of the comment parser.
type ParsedComment struct {
	OriginalText string
	ParsedText   string
	Spannables   []Spannable
}

// Spannable is one inline annotation over a range of the parsed text.
// Start and Length are not interpreted by the bridge.
type Spannable struct {
	Data   SpannableData
	Start  int
	Length int
}

// SpannableData is the payload of a spannable.
type SpannableData interface {
	isSpannableData()
}

// Link is a spannable that references a post, thread, board or URL.
type Link struct {
	PostLink PostLink
}

// Spoiler marks hidden text.
type Spoiler struct{}

// GreenText marks quoted ("implying") text.
type GreenText struct{}

func (Link) isSpannableData()      {}
func (Spoiler) isSpannableData()   {}
func (GreenText) isSpannableData() {}

// PostLink is the payload of a Link.
type PostLink interface {
	isPostLink()
}

// Quote references a post by number.
type Quote struct {
	PostNo uint64
}

// DeadQuote references a post that no longer exists.
type DeadQuote struct {
	PostNo uint64
}

// URLLink is an external link.
type URLLink struct {
	Link string
}

// BoardLink references a board.
type BoardLink struct {
	BoardCode string
}

// SearchLink references a search on a board.
type SearchLink struct {
	BoardCode   string
	SearchQuery string
}

// ThreadLink references a post inside a thread, possibly on another board.
type ThreadLink struct {
	BoardCode string
	ThreadNo  uint64
	PostNo    uint64
}

func (Quote) isPostLink()      {}
func (DeadQuote) isPostLink()  {}
func (URLLink) isPostLink()    {}
func (BoardLink) isPostLink()  {}
func (SearchLink) isPostLink() {}
func (ThreadLink) isPostLink() {}

// Tag identifies a leaf variant after both union levels are resolved.
type Tag uint8

const (
	TagQuote Tag = iota
	TagDeadQuote
	TagURLLink
	TagBoardLink
	TagSearchLink
	TagThreadLink
	TagSpoiler
	TagGreenText

	// TagCount is the number of leaf variants.
	TagCount = int(TagGreenText) + 1
)

var tagNames = [TagCount]string{
	TagQuote:      "quote",
	TagDeadQuote:  "dead_quote",
	TagURLLink:    "url_link",
	TagBoardLink:  "board_link",
	TagSearchLink: "search_link",
	TagThreadLink: "thread_link",
	TagSpoiler:    "spoiler",
	TagGreenText:  "green_text",
}

func (t Tag) String() string {
	if int(t) < TagCount {
		return tagNames[t]
	}
	return fmt.Sprintf("tag(%d)", uint8(t))
}

// ParseTag returns the tag with the given name.
func ParseTag(name string) (Tag, bool) {
	for i, n := range tagNames {
		if n == name {
			return Tag(i), true
		}
	}
	return 0, false
}

// TagOf resolves the leaf tag of d. It returns false for a nil payload or a
// Link without a PostLink.
func TagOf(d SpannableData) (Tag, bool) {
	d, ok := Normalize(d)
	if !ok {
		return 0, false
	}
	switch v := d.(type) {
	case Link:
		return linkTag(v.PostLink)
	case Spoiler:
		return TagSpoiler, true
	case GreenText:
		return TagGreenText, true
	}
	return 0, false
}

// Normalize returns d with pointer variants at both levels replaced by their
// values. It returns false for a nil payload, a nil pointer, or a Link whose
// PostLink is nil.
func Normalize(d SpannableData) (SpannableData, bool) {
	switch v := d.(type) {
	case Link:
		l, ok := normalizeLink(v.PostLink)
		return Link{PostLink: l}, ok
	case *Link:
		if v == nil {
			return nil, false
		}
		l, ok := normalizeLink(v.PostLink)
		return Link{PostLink: l}, ok
	case Spoiler, GreenText:
		return v, true
	case *Spoiler:
		return Spoiler{}, v != nil
	case *GreenText:
		return GreenText{}, v != nil
	}
	return nil, false
}

func normalizeLink(l PostLink) (PostLink, bool) {
	switch v := l.(type) {
	case Quote, DeadQuote, URLLink, BoardLink, SearchLink, ThreadLink:
		return v, true
	case *Quote:
		if v != nil {
			return *v, true
		}
	case *DeadQuote:
		if v != nil {
			return *v, true
		}
	case *URLLink:
		if v != nil {
			return *v, true
		}
	case *BoardLink:
		if v != nil {
			return *v, true
		}
	case *SearchLink:
		if v != nil {
			return *v, true
		}
	case *ThreadLink:
		if v != nil {
			return *v, true
		}
	}
	return nil, false
}

func linkTag(l PostLink) (Tag, bool) {
	switch l.(type) {
	case Quote:
		return TagQuote, true
	case DeadQuote:
		return TagDeadQuote, true
	case URLLink:
		return TagURLLink, true
	case BoardLink:
		return TagBoardLink, true
	case SearchLink:
		return TagSearchLink, true
	case ThreadLink:
		return TagThreadLink, true
	}
	return 0, false
}
