package heap

import (
	"fmt"

	"github.com/wippyai/comment-bridge/host"
)

// ObjectKind classifies a heap object.
type ObjectKind uint8

const (
	KindInstance ObjectKind = iota + 1
	KindArray
	KindString
)

func (k ObjectKind) String() string {
	switch k {
	case KindInstance:
		return "instance"
	case KindArray:
		return "array"
	case KindString:
		return "string"
	}
	return fmt.Sprintf("object(%d)", uint8(k))
}

// EventType identifies a lifecycle notification.
type EventType uint8

const (
	EventAllocated EventType = iota
	EventReleased
)

func (t EventType) String() string {
	if t == EventReleased {
		return "released"
	}
	return "allocated"
}

// Event is a heap object lifecycle notification.
type Event struct {
	Class string
	Ref   host.Ref
	Kind  ObjectKind
	Type  EventType
}

// Observer receives heap lifecycle events. Events are delivered after the
// heap lock is released, in the order they happened.
type Observer interface {
	OnHeapEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnHeapEvent(e Event) { f(e) }

// Config bounds the heap. Zero values mean unlimited.
type Config struct {
	// MaxObjects caps the number of live objects (instances, arrays, strings).
	MaxObjects int

	// MaxStringBytes caps the total UTF-8 size of live strings.
	MaxStringBytes int
}

// object is one heap entry.
type object struct {
	class  *class
	fields map[string]host.Value
	elems  []host.Ref
	str    string
	kind   ObjectKind
}
