package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	commentbridge "github.com/wippyai/comment-bridge"
	"github.com/wippyai/comment-bridge/comment"
	"github.com/wippyai/comment-bridge/descriptor"
	"github.com/wippyai/comment-bridge/schema"
)

type options struct {
	host      string
	namespace string
	pages     uint32
}

func (o options) bridge() (*commentbridge.Bridge, error) {
	return commentbridge.New(commentbridge.Config{
		Namespace:        o.namespace,
		MemoryLimitPages: o.pages,
	})
}

// result is a mapped comment ready for display.
type result struct {
	summary  string
	elements []string // one rendering per spannable
	lifted   *comment.ParsedComment
	close    func()
}

func mapInto(ctx context.Context, opts options, c *comment.ParsedComment) (*result, error) {
	b, err := opts.bridge()
	if err != nil {
		return nil, err
	}
	if opts.host == "wasm" {
		return mapLinear(ctx, b, c)
	}
	return mapHeap(b, c)
}

func mapHeap(b *commentbridge.Bridge, c *comment.ParsedComment) (*result, error) {
	rt, ref, err := b.ToHeap(c)
	if err != nil {
		return nil, err
	}

	res := &result{close: func() { _ = rt.Close() }}
	res.summary = fmt.Sprintf("Objects: %d\nString bytes: %d\n\n%s", rt.Len(), rt.StringBytes(), rt.Describe(ref))

	list, _ := rt.Field(ref, schema.FieldSpannables)
	n, _ := rt.ArrayLen(list.Ref)
	for i := 0; i < n; i++ {
		elem, _ := rt.ArrayElement(list.Ref, i)
		res.elements = append(res.elements, rt.Describe(elem))
	}
	return res, nil
}

func mapLinear(ctx context.Context, b *commentbridge.Bridge, c *comment.ParsedComment) (*result, error) {
	rt, addr, err := b.ToLinear(ctx, c)
	if err != nil {
		return nil, err
	}
	res := &result{close: func() { _ = rt.Close(ctx) }}

	lifted, err := rt.Lift(addr)
	if err != nil {
		res.close()
		return nil, err
	}
	res.lifted = lifted

	composite := descriptor.ClassName(b.Namespace(), schema.CommentClass)
	iface := descriptor.ClassName(b.Namespace(), schema.SpannableInterface)
	recSize, recAlign, _ := rt.Layout(composite)
	elemSize, elemAlign, _ := rt.Layout(iface)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Memory used: %d bytes\n", rt.Used())
	fmt.Fprintf(&sb, "Record %s: size=%d align=%d\n", schema.CommentClass, recSize, recAlign)
	fmt.Fprintf(&sb, "Variant %s: size=%d align=%d\n", schema.SpannableInterface, elemSize, elemAlign)
	fmt.Fprintf(&sb, "Address: 0x%x\n", addr)

	off, _ := rt.FieldOffset(composite, schema.FieldSpannables)
	mem := rt.Memory()
	ptr, _ := mem.ReadUint32Le(addr + off)
	n, _ := mem.ReadUint32Le(addr + off + 4)
	fmt.Fprintf(&sb, "%s: %d elements at 0x%x\n", schema.FieldSpannables, n, ptr)
	res.summary = sb.String()

	for i := uint32(0); i < n; i++ {
		at := ptr + i*elemSize
		data, ok := mem.Read(at, elemSize)
		if !ok {
			res.close()
			return nil, fmt.Errorf("element %d at 0x%x is out of range", i, at)
		}
		res.elements = append(res.elements, fmt.Sprintf("0x%x: %s", at, hex.EncodeToString(data)))
	}
	return res, nil
}

// label renders a spannable for listing.
func label(sp comment.Spannable) string {
	data, _ := comment.Normalize(sp.Data)
	tag, ok := comment.TagOf(data)
	if !ok {
		return "<invalid>"
	}
	switch v := data.(type) {
	case comment.Link:
		switch l := v.PostLink.(type) {
		case comment.Quote:
			return fmt.Sprintf("%s %d", tag, l.PostNo)
		case comment.DeadQuote:
			return fmt.Sprintf("%s %d", tag, l.PostNo)
		case comment.URLLink:
			return fmt.Sprintf("%s %s", tag, l.Link)
		case comment.BoardLink:
			return fmt.Sprintf("%s /%s/", tag, l.BoardCode)
		case comment.SearchLink:
			return fmt.Sprintf("%s /%s/ %q", tag, l.BoardCode, l.SearchQuery)
		case comment.ThreadLink:
			return fmt.Sprintf("%s /%s/%d#%d", tag, l.BoardCode, l.ThreadNo, l.PostNo)
		}
	}
	return tag.String()
}
