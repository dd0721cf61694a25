package comment

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/wippyai/comment-bridge/errors"
)

type commentJSON struct {
	OriginalText string      `json:"original_text"`
	ParsedText   string      `json:"parsed_text"`
	Spannables   []Spannable `json:"spannables"`
}

type spannableJSON struct {
	PostNo      *uint64 `json:"post_no,omitempty"`
	ThreadNo    *uint64 `json:"thread_no,omitempty"`
	Link        *string `json:"link,omitempty"`
	BoardCode   *string `json:"board_code,omitempty"`
	SearchQuery *string `json:"search_query,omitempty"`
	Type        string  `json:"type"`
	Start       int     `json:"start"`
	Length      int     `json:"length"`
}

// Decode reads one JSON encoded comment from r.
func Decode(r io.Reader) (*ParsedComment, error) {
	var c ParsedComment
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		var e *errors.Error
		if stderrors.As(err, &e) {
			return nil, e
		}
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "decode comment")
	}
	return &c, nil
}

// Encode writes c to w as indented JSON.
func Encode(w io.Writer, c *ParsedComment) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

// MarshalJSON implements json.Marshaler.
func (c ParsedComment) MarshalJSON() ([]byte, error) {
	spans := c.Spannables
	if spans == nil {
		spans = []Spannable{}
	}
	return json.Marshal(commentJSON{
		OriginalText: c.OriginalText,
		ParsedText:   c.ParsedText,
		Spannables:   spans,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *ParsedComment) UnmarshalJSON(data []byte) error {
	var w commentJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.OriginalText = w.OriginalText
	c.ParsedText = w.ParsedText
	c.Spannables = w.Spannables
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s Spannable) MarshalJSON() ([]byte, error) {
	data, _ := Normalize(s.Data)
	tag, ok := TagOf(data)
	if !ok {
		return nil, errors.InvalidData(errors.PhaseDecode, nil, fmt.Sprintf("cannot encode spannable payload %T", s.Data))
	}

	w := spannableJSON{Type: tag.String(), Start: s.Start, Length: s.Length}
	switch d := data.(type) {
	case Link:
		switch l := d.PostLink.(type) {
		case Quote:
			w.PostNo = &l.PostNo
		case DeadQuote:
			w.PostNo = &l.PostNo
		case URLLink:
			w.Link = &l.Link
		case BoardLink:
			w.BoardCode = &l.BoardCode
		case SearchLink:
			w.BoardCode = &l.BoardCode
			w.SearchQuery = &l.SearchQuery
		case ThreadLink:
			w.BoardCode = &l.BoardCode
			w.ThreadNo = &l.ThreadNo
			w.PostNo = &l.PostNo
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Spannable) UnmarshalJSON(data []byte) error {
	var w spannableJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	tag, ok := ParseTag(w.Type)
	if !ok {
		return errors.New(errors.PhaseDecode, errors.KindInvalidVariant).
			Value(w.Type).
			Detail("unknown spannable type %q", w.Type).
			Build()
	}

	d, err := w.data(tag)
	if err != nil {
		return err
	}
	s.Data = d
	s.Start = w.Start
	s.Length = w.Length
	return nil
}

func (w *spannableJSON) data(tag Tag) (SpannableData, error) {
	missing := func(field string) error {
		return errors.InvalidData(errors.PhaseDecode, []string{tag.String()}, fmt.Sprintf("missing %q", field))
	}

	switch tag {
	case TagQuote, TagDeadQuote:
		if w.PostNo == nil {
			return nil, missing("post_no")
		}
		if tag == TagQuote {
			return Link{PostLink: Quote{PostNo: *w.PostNo}}, nil
		}
		return Link{PostLink: DeadQuote{PostNo: *w.PostNo}}, nil
	case TagURLLink:
		if w.Link == nil {
			return nil, missing("link")
		}
		return Link{PostLink: URLLink{Link: *w.Link}}, nil
	case TagBoardLink:
		if w.BoardCode == nil {
			return nil, missing("board_code")
		}
		return Link{PostLink: BoardLink{BoardCode: *w.BoardCode}}, nil
	case TagSearchLink:
		if w.BoardCode == nil {
			return nil, missing("board_code")
		}
		if w.SearchQuery == nil {
			return nil, missing("search_query")
		}
		return Link{PostLink: SearchLink{BoardCode: *w.BoardCode, SearchQuery: *w.SearchQuery}}, nil
	case TagThreadLink:
		if w.BoardCode == nil {
			return nil, missing("board_code")
		}
		if w.ThreadNo == nil {
			return nil, missing("thread_no")
		}
		if w.PostNo == nil {
			return nil, missing("post_no")
		}
		return Link{PostLink: ThreadLink{BoardCode: *w.BoardCode, ThreadNo: *w.ThreadNo, PostNo: *w.PostNo}}, nil
	case TagSpoiler:
		return Spoiler{}, nil
	case TagGreenText:
		return GreenText{}, nil
	}
	return nil, errors.InvalidDiscriminant(errors.PhaseDecode, nil, uint32(tag), uint32(TagCount-1))
}
