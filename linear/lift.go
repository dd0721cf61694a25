package linear

import (
	"fmt"
	"unicode/utf8"

	"github.com/wippyai/comment-bridge/comment"
	"github.com/wippyai/comment-bridge/descriptor"
	"github.com/wippyai/comment-bridge/errors"
	"github.com/wippyai/comment-bridge/schema"
)

// Lift reads the post-comment-parsed record at addr back into a parsed
// comment. Spannable offsets are not part of the record and come back as zero.
// It fails with KindClosed once the runtime has been reset.
func (s *Session) Lift(addr uint32) (*comment.ParsedComment, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.unlock()
	return s.rt.lift(addr)
}

// Lift reads the post-comment-parsed record at addr back into a parsed
// comment. It validates every pointer, length, discriminant and string.
func (r *Runtime) Lift(addr uint32) (*comment.ParsedComment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lift(addr)
}

func (r *Runtime) lift(addr uint32) (*comment.ParsedComment, error) {
	rec := r.composite
	if rec == nil {
		return nil, errors.NotFound(errors.PhaseLift, "record", schema.CommentClass)
	}
	l := lifter{mem: memory{mem: r.mem.mem, phase: errors.PhaseLift}}

	raw, err := l.field(rec, addr, schema.FieldRawText)
	if err != nil {
		return nil, err
	}
	parsed, err := l.field(rec, addr, schema.FieldParsedText)
	if err != nil {
		return nil, err
	}

	out := &comment.ParsedComment{
		OriginalText: raw,
		ParsedText:   parsed,
	}

	f, ok := rec.fields[schema.FieldSpannables]
	if !ok || f.elem == nil {
		return nil, errors.NotFound(errors.PhaseLift, "list field", schema.FieldSpannables)
	}
	ptr, n, err := l.pair(addr + f.offset)
	if err != nil {
		return nil, err
	}
	elem := f.elem.info
	if uint64(ptr)+uint64(n)*uint64(elem.Size) > uint64(l.mem.mem.Size()) {
		return nil, errors.New(errors.PhaseLift, errors.KindOutOfBounds).
			Path(f.name).
			Detail("list of %d elements at %d exceeds memory", n, ptr).
			Build()
	}

	out.Spannables = make([]comment.Spannable, n)
	for i := uint32(0); i < n; i++ {
		path := []string{fmt.Sprintf("%s[%d]", f.name, i)}
		data, err := l.variant(f.elem, ptr+i*elem.Size, path)
		if err != nil {
			return nil, err
		}
		out.Spannables[i] = comment.Spannable{Data: data}
	}
	return out, nil
}

type lifter struct {
	mem memory
}

func (l lifter) pair(addr uint32) (uint32, uint32, error) {
	ptr, err := l.mem.readU32(addr)
	if err != nil {
		return 0, 0, err
	}
	n, err := l.mem.readU32(addr + 4)
	if err != nil {
		return 0, 0, err
	}
	return ptr, n, nil
}

func (l lifter) readString(addr uint32, path []string) (string, error) {
	ptr, n, err := l.pair(addr)
	if err != nil {
		return "", err
	}
	data, err := l.mem.read(ptr, n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", errors.InvalidData(errors.PhaseLift, path, "string is not valid UTF-8")
	}
	return string(data), nil
}

func (l lifter) field(rec *binding, addr uint32, name string) (string, error) {
	f, ok := rec.fields[name]
	if !ok || f.desc != descriptor.String {
		return "", errors.NotFound(errors.PhaseLift, "string field", name)
	}
	return l.readString(addr+f.offset, []string{name})
}

// variant decodes one spannable-data value.
func (l lifter) variant(v *binding, addr uint32, path []string) (comment.SpannableData, error) {
	disc, err := l.mem.readDisc(addr, v.info.DiscSize)
	if err != nil {
		return nil, err
	}
	if int(disc) >= len(v.cases) {
		return nil, errors.InvalidDiscriminant(errors.PhaseLift, path, disc, uint32(len(v.cases)-1))
	}
	c := v.cases[disc]

	base := addr + v.info.PayloadOffset
	strs := make([]string, 0, 2)
	longs := make([]uint64, 0, 2)
	for i, p := range c.params {
		at := base + c.payloadOffs[i]
		if p == descriptor.Long {
			n, err := l.mem.readU64(at)
			if err != nil {
				return nil, err
			}
			longs = append(longs, n)
			continue
		}
		s, err := l.readString(at, path)
		if err != nil {
			return nil, err
		}
		strs = append(strs, s)
	}

	data, ok := spannableData(descriptor.SimpleName(c.name), strs, longs)
	if !ok {
		return nil, errors.New(errors.PhaseLift, errors.KindInvalidVariant).
			Path(path...).
			Type(c.name).
			Detail("case %s has no comment equivalent", c.witName).
			Build()
	}
	return data, nil
}

// spannableData rebuilds a variant from its case class and payload values.
func spannableData(simple string, strs []string, longs []uint64) (comment.SpannableData, bool) {
	has := func(s, n int) bool { return len(strs) == s && len(longs) == n }

	switch simple {
	case schema.QuoteClass:
		if has(0, 1) {
			return comment.Link{PostLink: comment.Quote{PostNo: longs[0]}}, true
		}
	case schema.DeadQuoteClass:
		if has(0, 1) {
			return comment.Link{PostLink: comment.DeadQuote{PostNo: longs[0]}}, true
		}
	case schema.URLLinkClass:
		if has(1, 0) {
			return comment.Link{PostLink: comment.URLLink{Link: strs[0]}}, true
		}
	case schema.BoardLinkClass:
		if has(1, 0) {
			return comment.Link{PostLink: comment.BoardLink{BoardCode: strs[0]}}, true
		}
	case schema.SearchLinkClass:
		if has(2, 0) {
			return comment.Link{PostLink: comment.SearchLink{BoardCode: strs[0], SearchQuery: strs[1]}}, true
		}
	case schema.ThreadLinkClass:
		if has(1, 2) {
			return comment.Link{PostLink: comment.ThreadLink{BoardCode: strs[0], ThreadNo: longs[0], PostNo: longs[1]}}, true
		}
	case schema.SpoilerClass:
		if has(0, 0) {
			return comment.Spoiler{}, true
		}
	case schema.GreenTextClass:
		if has(0, 0) {
			return comment.GreenText{}, true
		}
	}
	return nil, false
}
