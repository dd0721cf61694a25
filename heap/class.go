package heap

import (
	"github.com/wippyai/comment-bridge/descriptor"
	"github.com/wippyai/comment-bridge/errors"
	"github.com/wippyai/comment-bridge/host"
	"github.com/wippyai/comment-bridge/schema"
)

// class is a registered type.
type class struct {
	implements map[string]bool
	ctors      map[string]ctor
	fieldIndex map[string]int
	name       string
	fields     []schema.Field
	id         host.Class
	iface      bool
}

type ctor struct {
	params []string
	binds  []string
}

// is reports whether instances of c can be used where name is expected.
func (c *class) is(name string) bool {
	return c.name == name || c.implements[name]
}

func (c *class) field(name string) (schema.Field, bool) {
	i, ok := c.fieldIndex[name]
	if !ok {
		return schema.Field{}, false
	}
	return c.fields[i], true
}

// compile validates def against the already registered classes.
func compile(def schema.Class, lookup func(string) (*class, bool)) (*class, error) {
	if def.Name == "" {
		return nil, errors.InvalidInput(errors.PhaseHost, "class with empty name")
	}

	c := &class{
		name:       def.Name,
		iface:      def.Interface,
		implements: make(map[string]bool, len(def.Implements)),
		ctors:      make(map[string]ctor, len(def.Constructors)),
		fieldIndex: make(map[string]int, len(def.Fields)),
		fields:     append([]schema.Field(nil), def.Fields...),
	}

	if c.iface && (len(def.Fields) > 0 || len(def.Constructors) > 0) {
		return nil, defineError(def.Name, "interface declares fields or constructors")
	}

	for _, name := range def.Implements {
		parent, ok := lookup(name)
		if !ok {
			return nil, defineError(def.Name, "implements unknown type "+name)
		}
		if !parent.iface {
			return nil, defineError(def.Name, "implements non-interface "+name)
		}
		c.implements[name] = true
		for inherited := range parent.implements {
			c.implements[inherited] = true
		}
	}

	for i, f := range def.Fields {
		if _, err := descriptor.ParseField(f.Descriptor); err != nil {
			return nil, errors.New(errors.PhaseHost, errors.KindInvalidInput).
				Type(def.Name).
				Member(f.Name).
				Cause(err).
				Build()
		}
		if _, dup := c.fieldIndex[f.Name]; dup {
			return nil, defineError(def.Name, "duplicate field "+f.Name)
		}
		c.fieldIndex[f.Name] = i
	}

	for _, k := range def.Constructors {
		params, ret, err := descriptor.ParseMethod(k.Signature)
		if err != nil || ret != descriptor.Void {
			return nil, errors.New(errors.PhaseHost, errors.KindInvalidInput).
				Type(def.Name).
				Member(k.Signature).
				Cause(err).
				Detail("constructor must return V").
				Build()
		}
		if len(k.Binds) != len(params) {
			return nil, errors.New(errors.PhaseHost, errors.KindInvalidInput).
				Type(def.Name).
				Member(k.Signature).
				Detail("%d parameters bound to %d fields", len(params), len(k.Binds)).
				Build()
		}
		for i, name := range k.Binds {
			f, ok := c.field(name)
			if !ok || f.Descriptor != params[i] {
				return nil, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
					Type(def.Name).
					Member(k.Signature).
					Detail("parameter %d (%s) cannot bind field %q", i, params[i], name).
					Build()
			}
		}
		c.ctors[k.Signature] = ctor{params: params, binds: k.Binds}
	}

	return c, nil
}

func defineError(name, detail string) *errors.Error {
	return errors.New(errors.PhaseHost, errors.KindInvalidInput).
		Type(name).
		Detail("%s", detail).
		Build()
}
