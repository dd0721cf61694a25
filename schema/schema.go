// Package schema describes the host-side class model that a parsed comment is
// rebuilt into.
//
// The definitions belong to the host runtime, not to the mapper: host
// implementations register them, and the mapper addresses them by name and
// descriptor only. Keeping them in one place lets every host runtime expose
// the same model.
package schema

import (
	"github.com/wippyai/comment-bridge/descriptor"
)

// DefaultNamespace is the package that holds the comment model classes.
const DefaultNamespace = "com/github/k1rakishou/core_parser/comment"

// Simple names of the comment model classes.
const (
	CommentClass       = "PostCommentParsed"
	SpannableInterface = "IPostCommentSpannableData"

	QuoteClass      = "Quote"
	DeadQuoteClass  = "DeadQuote"
	URLLinkClass    = "UrlLink"
	BoardLinkClass  = "BoardLink"
	SearchLinkClass = "SearchLink"
	ThreadLinkClass = "ThreadLink"
	SpoilerClass    = "Spoiler"
	GreenTextClass  = "GreenText"
)

// Field names of the composite.
const (
	FieldRawText    = "commentTextRaw"
	FieldParsedText = "commentTextParsed"
	FieldSpannables = "spannableList"
)

// Field is a declared instance field.
type Field struct {
	Name       string
	Descriptor string
}

// Constructor is a declared constructor. Its arguments are stored, in order,
// into the fields named by Binds.
type Constructor struct {
	Signature string
	Binds     []string
}

// Class is one host type definition.
type Class struct {
	Name         string
	Implements   []string
	Fields       []Field
	Constructors []Constructor
	Interface    bool
}

// Field returns the declared field with the given name.
func (c *Class) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Constructor returns the constructor with the given method descriptor.
func (c *Class) Constructor(signature string) (Constructor, bool) {
	for _, ctor := range c.Constructors {
		if ctor.Signature == signature {
			return ctor, true
		}
	}
	return Constructor{}, false
}

// SpannableClasses lists the simple names of the spannable subtypes in
// declaration order.
var SpannableClasses = []string{
	QuoteClass,
	DeadQuoteClass,
	URLLinkClass,
	BoardLinkClass,
	SearchLinkClass,
	ThreadLinkClass,
	SpoilerClass,
	GreenTextClass,
}

// Comment returns the class definitions of the comment model under namespace:
// the composite, the spannable interface and its eight subtypes.
func Comment(namespace string) []Class {
	iface := descriptor.ClassName(namespace, SpannableInterface)

	classes := []Class{
		{
			Name: descriptor.ClassName(namespace, CommentClass),
			Fields: []Field{
				{Name: FieldRawText, Descriptor: descriptor.String},
				{Name: FieldParsedText, Descriptor: descriptor.String},
				{Name: FieldSpannables, Descriptor: descriptor.Array(descriptor.Object(iface))},
			},
			Constructors: []Constructor{{Signature: descriptor.Method(descriptor.Void)}},
		},
		{
			Name:      iface,
			Interface: true,
		},
	}

	subtype := func(simple string, fields ...Field) Class {
		params := make([]string, len(fields))
		binds := make([]string, len(fields))
		for i, f := range fields {
			params[i] = f.Descriptor
			binds[i] = f.Name
		}
		return Class{
			Name:       descriptor.ClassName(namespace, SpannableInterface, simple),
			Implements: []string{iface},
			Fields:     fields,
			Constructors: []Constructor{{
				Signature: descriptor.Method(descriptor.Void, params...),
				Binds:     binds,
			}},
		}
	}

	postNo := Field{Name: "postNo", Descriptor: descriptor.Long}
	boardCode := Field{Name: "boardCode", Descriptor: descriptor.String}

	return append(classes,
		subtype(QuoteClass, postNo),
		subtype(DeadQuoteClass, postNo),
		subtype(URLLinkClass, Field{Name: "urlLink", Descriptor: descriptor.String}),
		subtype(BoardLinkClass, boardCode),
		subtype(SearchLinkClass, boardCode, Field{Name: "searchQuery", Descriptor: descriptor.String}),
		subtype(ThreadLinkClass, boardCode, Field{Name: "threadNo", Descriptor: descriptor.Long}, postNo),
		subtype(SpoilerClass),
		subtype(GreenTextClass),
	)
}

// Without returns classes minus those whose name is listed.
func Without(classes []Class, names ...string) []Class {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	out := make([]Class, 0, len(classes))
	for _, c := range classes {
		if !drop[c.Name] {
			out = append(out, c)
		}
	}
	return out
}
