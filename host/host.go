// Package host defines the boundary surface the bridge uses to build objects
// inside a host runtime it does not control.
//
// The surface mirrors what managed runtimes expose to native code: classes
// are resolved by binary name, instantiated through a constructor chosen by
// its method descriptor, and populated field by field. Arrays and strings are
// allocated through dedicated primitives.
//
// Every operation may fail; a failure means the host rejected the request and
// the caller should abandon the object graph it was building.
package host

import "fmt"

// Class is an opaque handle to a resolved host type.
// Class 0 is reserved and always invalid.
type Class uint32

// Ref is an opaque reference to a host object (instance, array or string).
// Ref 0 is the null reference.
type Ref uint32

// Null is the null reference.
const Null Ref = 0

// IsNull reports whether r is the null reference.
func (r Ref) IsNull() bool { return r == Null }

// ValueKind discriminates Value.
type ValueKind uint8

const (
	KindLong ValueKind = iota + 1
	KindRef
)

func (k ValueKind) String() string {
	switch k {
	case KindLong:
		return "long"
	case KindRef:
		return "ref"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a constructor argument or field value.
type Value struct {
	Long int64
	Ref  Ref
	Kind ValueKind
}

// Long wraps a 64-bit signed integer.
func Long(v int64) Value {
	return Value{Kind: KindLong, Long: v}
}

// Object wraps a reference.
func Object(r Ref) Value {
	return Value{Kind: KindRef, Ref: r}
}

func (v Value) String() string {
	switch v.Kind {
	case KindLong:
		return fmt.Sprintf("long(%d)", v.Long)
	case KindRef:
		if v.Ref.IsNull() {
			return "null"
		}
		return fmt.Sprintf("ref(%d)", uint32(v.Ref))
	}
	return "invalid"
}

// Env is the set of host operations available during one boundary call.
type Env interface {
	// FindClass resolves a class by its slash-separated binary name.
	FindClass(name string) (Class, error)

	// NewObject invokes the constructor of class whose method descriptor
	// equals signature.
	NewObject(class Class, signature string, args ...Value) (Ref, error)

	// SetField writes value into the named field of obj. descriptor must
	// match the field's declared descriptor.
	SetField(obj Ref, name, descriptor string, value Value) error

	// NewObjectArray allocates an array of length null slots whose element
	// type is elem.
	NewObjectArray(length int, elem Class) (Ref, error)

	// SetObjectArrayElement stores value at index of arr.
	SetObjectArrayElement(arr Ref, index int, value Ref) error

	// NewString allocates a host string holding a copy of s.
	NewString(s string) (Ref, error)
}

// Releaser is implemented by hosts that let callers drop references they
// allocated, e.g. to discard a partially built graph.
type Releaser interface {
	Release(refs ...Ref)
}
