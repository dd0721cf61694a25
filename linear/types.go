package linear

import (
	"strings"
	"unicode"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/comment-bridge/descriptor"
	"github.com/wippyai/comment-bridge/errors"
	"github.com/wippyai/comment-bridge/host"
	"github.com/wippyai/comment-bridge/linear/internal/layout"
	"github.com/wippyai/comment-bridge/schema"
)

type bindingKind uint8

const (
	bindString bindingKind = iota + 1
	bindRecord
	bindVariant
	bindCase
)

// binding ties a host class to the WIT type that represents it in memory.
//
//	composite class → record (fields by kebab-case name)
//	interface       → variant (one case per implementing class)
//	implementing    → variant case, payload = constructor parameters
type binding struct {
	def    *wit.TypeDef
	fields map[string]*recordField
	parent *binding

	name    string
	witName string
	ctor    string

	order       []*recordField
	cases       []*binding
	params      []string
	payload     wit.Type
	payloadOffs []uint32

	info layout.Info
	disc uint32
	id   host.Class
	kind bindingKind
}

type recordField struct {
	elem   *binding // list element variant
	typ    wit.Type
	name   string
	wit    string
	desc   string
	offset uint32
}

// model is the compiled set of bindings.
type model struct {
	byName  map[string]*binding
	classes []*binding
}

func (m *model) add(b *binding) {
	b.id = host.Class(len(m.classes) + 1)
	m.classes = append(m.classes, b)
	m.byName[b.name] = b
}

func (m *model) class(id host.Class) (*binding, bool) {
	if id == 0 || int(id) > len(m.classes) {
		return nil, false
	}
	return m.classes[id-1], true
}

// compile binds classes to WIT types and computes their layouts.
func compile(classes []schema.Class) (*model, error) {
	m := &model{byName: make(map[string]*binding)}
	m.add(&binding{name: descriptor.StringClass, witName: "string", kind: bindString})

	// interfaces first so cases can attach to them in declaration order
	for _, c := range classes {
		if !c.Interface {
			continue
		}
		if _, dup := m.byName[c.Name]; dup {
			return nil, bindError(c.Name, "already defined")
		}
		simple := descriptor.SimpleName(c.Name)
		if len(simple) > 1 && simple[0] == 'I' && unicode.IsUpper(rune(simple[1])) {
			simple = simple[1:]
		}
		m.add(&binding{
			name:    c.Name,
			witName: toKebabCase(simple),
			kind:    bindVariant,
			def:     &wit.TypeDef{Kind: &wit.Variant{}},
		})
	}

	var records []schema.Class
	for _, c := range classes {
		if c.Interface {
			continue
		}
		if _, dup := m.byName[c.Name]; dup {
			return nil, bindError(c.Name, "already defined")
		}
		if len(c.Implements) == 0 {
			records = append(records, c)
			continue
		}
		b, err := newCaseBinding(m, c)
		if err != nil {
			return nil, err
		}
		m.add(b)
	}

	calc := layout.NewCalculator()
	for _, b := range m.classes {
		if b.kind != bindVariant {
			continue
		}
		v := b.def.Kind.(*wit.Variant)
		for i, cb := range b.cases {
			cb.disc = uint32(i)
			v.Cases = append(v.Cases, wit.Case{Name: cb.witName, Type: cb.payload})
		}
		b.info = calc.Calculate(b.def)
	}
	for _, b := range m.classes {
		if b.kind != bindCase {
			continue
		}
		b.info = b.parent.info
		if t, ok := b.payload.(*wit.TypeDef); ok {
			b.payloadOffs = calc.TupleOffsets(t.Kind.(*wit.Tuple))
		} else if b.payload != nil {
			b.payloadOffs = []uint32{0}
		}
	}

	for _, c := range records {
		b, err := newRecordBinding(m, c)
		if err != nil {
			return nil, err
		}
		b.info = calc.Calculate(b.def)
		for _, f := range b.order {
			f.offset = b.info.FieldOffs[f.wit]
		}
		m.add(b)
	}

	return m, nil
}

func newCaseBinding(m *model, c schema.Class) (*binding, error) {
	if len(c.Implements) != 1 {
		return nil, bindError(c.Name, "must implement exactly one interface")
	}
	parent, ok := m.byName[c.Implements[0]]
	if !ok || parent.kind != bindVariant {
		return nil, bindError(c.Name, "implements unknown interface "+c.Implements[0])
	}
	if len(c.Constructors) != 1 {
		return nil, bindError(c.Name, "variant case needs exactly one constructor")
	}

	sig := c.Constructors[0].Signature
	params, _, err := descriptor.ParseMethod(sig)
	if err != nil {
		return nil, errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Type(c.Name).
			Member(sig).
			Cause(err).
			Build()
	}

	types := make([]wit.Type, len(params))
	for i, p := range params {
		t, ok := scalarType(p)
		if !ok {
			return nil, bindError(c.Name, "unsupported constructor parameter "+p)
		}
		types[i] = t
	}

	b := &binding{
		name:    c.Name,
		witName: toKebabCase(descriptor.SimpleName(c.Name)),
		kind:    bindCase,
		parent:  parent,
		ctor:    sig,
		params:  params,
	}
	switch len(types) {
	case 0:
	case 1:
		b.payload = types[0]
	default:
		b.payload = &wit.TypeDef{Kind: &wit.Tuple{Types: types}}
	}
	parent.cases = append(parent.cases, b)
	return b, nil
}

func newRecordBinding(m *model, c schema.Class) (*binding, error) {
	b := &binding{
		name:    c.Name,
		witName: toKebabCase(descriptor.SimpleName(c.Name)),
		kind:    bindRecord,
		fields:  make(map[string]*recordField, len(c.Fields)),
	}
	for _, k := range c.Constructors {
		if k.Signature != descriptor.Method(descriptor.Void) {
			return nil, bindError(c.Name, "records are built field by field and take no constructor arguments")
		}
		b.ctor = k.Signature
	}

	rec := &wit.Record{}
	for _, f := range c.Fields {
		rf := &recordField{name: f.Name, wit: toKebabCase(f.Name), desc: f.Descriptor}
		if t, ok := scalarType(f.Descriptor); ok {
			rf.typ = t
		} else if elem, ok := descriptor.ElemOf(f.Descriptor); ok {
			name, _ := descriptor.ClassOf(elem)
			eb, ok := m.byName[name]
			if !ok || eb.kind != bindVariant {
				return nil, bindError(c.Name, "list field "+f.Name+" must hold a bound interface")
			}
			rf.elem = eb
			rf.typ = &wit.TypeDef{Kind: &wit.List{Type: eb.def}}
		} else {
			return nil, bindError(c.Name, "unsupported field descriptor "+f.Descriptor)
		}
		if _, dup := b.fields[f.Name]; dup {
			return nil, bindError(c.Name, "duplicate field "+f.Name)
		}
		rec.Fields = append(rec.Fields, wit.Field{Name: rf.wit, Type: rf.typ})
		b.fields[f.Name] = rf
		b.order = append(b.order, rf)
	}
	b.def = &wit.TypeDef{Kind: rec}
	return b, nil
}

// scalarType maps a field descriptor stored inline to its WIT type.
func scalarType(desc string) (wit.Type, bool) {
	switch desc {
	case descriptor.Long:
		return wit.S64{}, true
	case descriptor.String:
		return wit.String{}, true
	}
	return nil, false
}

func bindError(name, detail string) *errors.Error {
	return errors.New(errors.PhaseHost, errors.KindInvalidInput).
		Type(name).
		Detail("%s", detail).
		Build()
}

func toKebabCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				result.WriteByte('-')
			}
			result.WriteRune(unicode.ToLower(r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
