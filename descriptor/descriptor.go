// Package descriptor builds and parses the names and type descriptors used to
// address host classes, fields and constructors.
//
// Class names are slash-separated binary names with '$' before nested
// classes:
//
//	com/example/IPostCommentSpannableData$Quote
//
// Field descriptors use the managed-runtime encoding:
//
//	J                     64-bit signed integer
//	Ljava/lang/String;    string
//	L<class>;             object of class
//	[<descriptor>         array of descriptor
//
// Method descriptors list parameter descriptors followed by the return
// descriptor, e.g. (Ljava/lang/String;JJ)V.
package descriptor

import (
	"fmt"
	"strings"
)

// Primitive descriptors used by the bridge.
const (
	Long    = "J"
	Int     = "I"
	Boolean = "Z"
	Void    = "V"

	StringClass = "java/lang/String"
	String      = "L" + StringClass + ";"
)

const (
	packageSep = '/'
	nestedSep  = '$'
)

// Kind is the category of a field descriptor.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindLong
	KindInt
	KindBoolean
	KindObject
	KindArray
	KindVoid
)

func (k Kind) String() string {
	switch k {
	case KindLong:
		return "long"
	case KindInt:
		return "int"
	case KindBoolean:
		return "boolean"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindVoid:
		return "void"
	}
	return "invalid"
}

// ClassName joins a namespace, a simple class name and optional nested class
// names. The namespace may be empty and may carry a trailing separator.
//
//	ClassName("com/example", "Outer", "Inner") == "com/example/Outer$Inner"
func ClassName(namespace, simple string, nested ...string) string {
	var b strings.Builder
	ns := strings.TrimSuffix(namespace, string(packageSep))
	if ns != "" {
		b.WriteString(ns)
		b.WriteByte(packageSep)
	}
	b.WriteString(simple)
	for _, n := range nested {
		b.WriteByte(nestedSep)
		b.WriteString(n)
	}
	return b.String()
}

// SimpleName returns the part of a class name after the last package or
// nested separator.
func SimpleName(className string) string {
	if i := strings.LastIndexAny(className, "/$"); i >= 0 {
		return className[i+1:]
	}
	return className
}

// Object returns the field descriptor for instances of className.
func Object(className string) string {
	return "L" + className + ";"
}

// Array returns the field descriptor for an array of elem.
func Array(elem string) string {
	return "[" + elem
}

// Method builds a method descriptor from a return descriptor and parameter
// descriptors.
func Method(ret string, params ...string) string {
	var b strings.Builder
	b.WriteByte('(')
	for _, p := range params {
		b.WriteString(p)
	}
	b.WriteByte(')')
	b.WriteString(ret)
	return b.String()
}

// ValidateNamespace checks that ns is usable as a class name prefix.
func ValidateNamespace(ns string) error {
	ns = strings.TrimSuffix(ns, string(packageSep))
	if ns == "" {
		return fmt.Errorf("empty namespace")
	}
	for _, part := range strings.Split(ns, string(packageSep)) {
		if part == "" {
			return fmt.Errorf("namespace %q has an empty segment", ns)
		}
		if strings.ContainsAny(part, ";[.()$") {
			return fmt.Errorf("namespace %q has invalid segment %q", ns, part)
		}
	}
	return nil
}

// KindOf classifies a single field descriptor.
func KindOf(desc string) Kind {
	n, k := scan(desc, 0, false)
	if n != len(desc) {
		return KindInvalid
	}
	return k
}

// ParseField validates a single field descriptor and returns its kind.
func ParseField(desc string) (Kind, error) {
	n, k := scan(desc, 0, false)
	if k == KindInvalid || n != len(desc) {
		return KindInvalid, fmt.Errorf("invalid field descriptor %q", desc)
	}
	return k, nil
}

// ClassOf returns the class named by an object descriptor.
func ClassOf(desc string) (string, bool) {
	if len(desc) < 3 || desc[0] != 'L' || desc[len(desc)-1] != ';' {
		return "", false
	}
	name := desc[1 : len(desc)-1]
	if strings.ContainsAny(name, ";[") {
		return "", false
	}
	return name, true
}

// ElemOf returns the element descriptor of an array descriptor.
func ElemOf(desc string) (string, bool) {
	if KindOf(desc) != KindArray {
		return "", false
	}
	return desc[1:], true
}

// ParseMethod splits a method descriptor into parameter descriptors and the
// return descriptor.
func ParseMethod(sig string) (params []string, ret string, err error) {
	if len(sig) < 3 || sig[0] != '(' {
		return nil, "", fmt.Errorf("invalid method descriptor %q", sig)
	}

	pos := 1
	for pos < len(sig) && sig[pos] != ')' {
		n, k := scan(sig, pos, false)
		if k == KindInvalid {
			return nil, "", fmt.Errorf("invalid parameter at offset %d in %q", pos, sig)
		}
		params = append(params, sig[pos:n])
		pos = n
	}
	if pos >= len(sig) {
		return nil, "", fmt.Errorf("unterminated parameter list in %q", sig)
	}
	pos++

	n, k := scan(sig, pos, true)
	if k == KindInvalid || n != len(sig) {
		return nil, "", fmt.Errorf("invalid return type in %q", sig)
	}
	return params, sig[pos:], nil
}

// scan reads one descriptor starting at pos and returns the offset after it.
func scan(s string, pos int, allowVoid bool) (int, Kind) {
	if pos >= len(s) {
		return pos, KindInvalid
	}
	switch s[pos] {
	case 'J':
		return pos + 1, KindLong
	case 'I':
		return pos + 1, KindInt
	case 'Z':
		return pos + 1, KindBoolean
	case 'V':
		if !allowVoid {
			return pos, KindInvalid
		}
		return pos + 1, KindVoid
	case 'L':
		end := strings.IndexByte(s[pos:], ';')
		if end <= 1 {
			return pos, KindInvalid
		}
		name := s[pos+1 : pos+end]
		if strings.ContainsAny(name, "[()") {
			return pos, KindInvalid
		}
		return pos + end + 1, KindObject
	case '[':
		n, k := scan(s, pos+1, false)
		if k == KindInvalid {
			return pos, KindInvalid
		}
		return n, KindArray
	}
	return pos, KindInvalid
}
