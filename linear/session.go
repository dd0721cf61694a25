package linear

import (
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/wippyai/comment-bridge/descriptor"
	"github.com/wippyai/comment-bridge/errors"
	"github.com/wippyai/comment-bridge/host"
)

// object is a session-local view of bytes in guest memory.
type object struct {
	class  *binding
	lists  map[string]host.Ref // record list fields → array
	filled []bool              // array slots
	ptr    uint32
	size   uint32
	length uint32 // string bytes or array slots
	kind   bindingKind
}

// Session builds one object graph in guest memory. It implements host.Env
// and host.Releaser. A session is not safe for concurrent use; open one per
// goroutine.
type Session struct {
	rt      *Runtime
	objects []*object
	gen     uint64
}

var (
	_ host.Env      = (*Session)(nil)
	_ host.Releaser = (*Session)(nil)
)

// NewSession opens a session on r.
func (r *Runtime) NewSession() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &Session{rt: r, gen: r.gen}
}

func (s *Session) lock() error {
	s.rt.mu.Lock()
	if s.gen != s.rt.gen {
		s.rt.mu.Unlock()
		return errors.Closed(errors.PhaseHost, "session")
	}
	return nil
}

func (s *Session) unlock() {
	s.rt.mu.Unlock()
}

func (s *Session) insert(o *object) host.Ref {
	s.objects = append(s.objects, o)
	return host.Ref(len(s.objects))
}

func (s *Session) get(ref host.Ref) (*object, bool) {
	if ref.IsNull() || int(ref) > len(s.objects) {
		return nil, false
	}
	o := s.objects[ref-1]
	return o, o != nil
}

func (s *Session) invalidRef(ref host.Ref, want string) *errors.Error {
	return errors.New(errors.PhaseHost, errors.KindInvalidInput).
		Value(ref).
		Detail("ref %d is not a live %s", uint32(ref), want).
		Build()
}

// zeroed allocates size bytes and clears them; reset memory may hold old data.
func (s *Session) zeroed(size, align uint32) (uint32, error) {
	ptr, err := s.rt.alloc.alloc(size, align)
	if err != nil {
		return 0, err
	}
	if size > 0 {
		if err := s.rt.mem.write(ptr, make([]byte, size)); err != nil {
			return 0, err
		}
	}
	return ptr, nil
}

// FindClass resolves a bound class.
func (s *Session) FindClass(name string) (host.Class, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.unlock()

	b, ok := s.rt.model.byName[name]
	if !ok {
		return 0, errors.NotFound(errors.PhaseHost, "class", name)
	}
	return b.id, nil
}

// NewObject allocates a record (no-arg constructor only) or a standalone
// variant value for a case class with its payload written in place.
func (s *Session) NewObject(cls host.Class, signature string, args ...host.Value) (host.Ref, error) {
	if err := s.lock(); err != nil {
		return host.Null, err
	}
	defer s.unlock()

	b, ok := s.rt.model.class(cls)
	if !ok {
		return host.Null, errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Value(cls).
			Detail("invalid class handle %d", uint32(cls)).
			Build()
	}
	if (b.kind != bindRecord && b.kind != bindCase) || b.ctor != signature {
		return host.Null, errors.New(errors.PhaseHost, errors.KindNotFound).
			Type(b.name).
			Member(signature).
			Detail("no such constructor").
			Build()
	}
	if len(args) != len(b.params) {
		return host.Null, errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Type(b.name).
			Member(signature).
			Detail("expected %d arguments, got %d", len(b.params), len(args)).
			Build()
	}

	ptr, err := s.zeroed(b.info.Size, b.info.Align)
	if err != nil {
		return host.Null, err
	}

	o := &object{class: b, kind: b.kind, ptr: ptr, size: b.info.Size}
	if b.kind == bindRecord {
		o.lists = make(map[string]host.Ref)
		return s.insert(o), nil
	}

	if err := s.rt.mem.writeDisc(ptr, b.info.DiscSize, b.disc); err != nil {
		return host.Null, err
	}
	base := ptr + b.info.PayloadOffset
	for i, a := range args {
		if err := s.store(base+b.payloadOffs[i], b.params[i], a); err != nil {
			return host.Null, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
				Type(b.name).
				Member(signature).
				Detail("argument %d", i).
				Cause(err).
				Build()
		}
	}
	return s.insert(o), nil
}

// store writes a scalar value declared by desc at addr.
func (s *Session) store(addr uint32, desc string, v host.Value) error {
	switch desc {
	case descriptor.Long:
		if v.Kind != host.KindLong {
			return errors.TypeMismatch(errors.PhaseHost, nil, desc, v.Kind.String())
		}
		return s.rt.mem.writeU64(addr, uint64(v.Long))
	case descriptor.String:
		if v.Kind != host.KindRef {
			return errors.TypeMismatch(errors.PhaseHost, nil, desc, v.Kind.String())
		}
		str, ok := s.get(v.Ref)
		if !ok || str.kind != bindString {
			return s.invalidRef(v.Ref, "string")
		}
		if err := s.rt.mem.writeU32(addr, str.ptr); err != nil {
			return err
		}
		return s.rt.mem.writeU32(addr+4, str.length)
	}
	return errors.TypeMismatch(errors.PhaseHost, nil, "J or "+descriptor.String, desc)
}

// SetField writes a record field.
func (s *Session) SetField(obj host.Ref, name, desc string, value host.Value) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.unlock()

	o, ok := s.get(obj)
	if !ok || o.kind != bindRecord {
		return s.invalidRef(obj, "record")
	}
	f, ok := o.class.fields[name]
	if !ok {
		return errors.New(errors.PhaseHost, errors.KindNotFound).
			Type(o.class.name).
			Member(name).
			Detail("no such field").
			Build()
	}
	if f.desc != desc {
		return errors.TypeMismatch(errors.PhaseHost, []string{name}, f.desc, desc)
	}

	addr := o.ptr + f.offset
	if f.elem == nil {
		return s.store(addr, desc, value)
	}

	if value.Kind != host.KindRef {
		return errors.TypeMismatch(errors.PhaseHost, []string{name}, desc, value.Kind.String())
	}
	arr, ok := s.get(value.Ref)
	if !ok || arr.kind != bindVariant {
		return s.invalidRef(value.Ref, "array")
	}
	if arr.class != f.elem {
		return errors.TypeMismatch(errors.PhaseHost, []string{name}, desc, descriptor.Array(descriptor.Object(arr.class.name)))
	}
	if err := s.rt.mem.writeU32(addr, arr.ptr); err != nil {
		return err
	}
	if err := s.rt.mem.writeU32(addr+4, arr.length); err != nil {
		return err
	}
	o.lists[name] = value.Ref
	return nil
}

// NewObjectArray allocates a list of length variant slots. Every slot starts
// with an out-of-range discriminant so an unfilled slot never lifts as a
// valid case.
func (s *Session) NewObjectArray(length int, elem host.Class) (host.Ref, error) {
	if err := s.lock(); err != nil {
		return host.Null, err
	}
	defer s.unlock()

	b, ok := s.rt.model.class(elem)
	if !ok || b.kind != bindVariant {
		return host.Null, errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Value(elem).
			Detail("array elements must be a bound interface").
			Build()
	}
	if length < 0 {
		return host.Null, errors.InvalidInput(errors.PhaseHost, "negative array length")
	}
	total := uint64(length) * uint64(b.info.Size)
	if total >= 1<<32 {
		return host.Null, errors.AllocationFailed(errors.PhaseHost, uint32(length), b.info.Align)
	}

	ptr, err := s.zeroed(uint32(total), b.info.Align)
	if err != nil {
		return host.Null, err
	}
	poison := uint32(len(b.cases))
	for i := 0; i < length; i++ {
		if err := s.rt.mem.writeDisc(ptr+uint32(i)*b.info.Size, b.info.DiscSize, poison); err != nil {
			return host.Null, err
		}
	}

	return s.insert(&object{
		class:  b,
		kind:   bindVariant,
		ptr:    ptr,
		size:   uint32(total),
		length: uint32(length),
		filled: make([]bool, length),
	}), nil
}

// SetObjectArrayElement copies the variant value of value into arr[index].
// Lists hold variants inline, so later changes to value are not seen by arr.
func (s *Session) SetObjectArrayElement(arr host.Ref, index int, value host.Ref) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.unlock()

	a, ok := s.get(arr)
	if !ok || a.kind != bindVariant {
		return s.invalidRef(arr, "array")
	}
	if index < 0 || index >= int(a.length) {
		return errors.OutOfBounds(errors.PhaseHost, nil, index, int(a.length))
	}
	v, ok := s.get(value)
	if !ok || v.kind != bindCase {
		return s.invalidRef(value, "variant value")
	}
	if v.class.parent != a.class {
		return errors.TypeMismatch(errors.PhaseHost, nil, descriptor.Object(a.class.name), descriptor.Object(v.class.name))
	}

	data, err := s.rt.mem.read(v.ptr, v.size)
	if err != nil {
		return err
	}
	if err := s.rt.mem.write(a.ptr+uint32(index)*a.class.info.Size, data); err != nil {
		return err
	}
	a.filled[index] = true
	return nil
}

// NewString copies s into guest memory as UTF-8.
func (s *Session) NewString(str string) (host.Ref, error) {
	if !utf8.ValidString(str) {
		return host.Null, errors.InvalidInput(errors.PhaseHost, "string is not valid UTF-8")
	}
	if err := s.lock(); err != nil {
		return host.Null, err
	}
	defer s.unlock()

	ptr, err := s.rt.alloc.alloc(uint32(len(str)), 1)
	if err != nil {
		return host.Null, err
	}
	if err := s.rt.mem.write(ptr, []byte(str)); err != nil {
		return host.Null, err
	}
	return s.insert(&object{
		class:  s.rt.model.byName[descriptor.StringClass],
		kind:   bindString,
		ptr:    ptr,
		size:   uint32(len(str)),
		length: uint32(len(str)),
	}), nil
}

// Release forgets refs. Guest memory is reclaimed only by Runtime.Reset.
func (s *Session) Release(refs ...host.Ref) {
	n := 0
	for _, ref := range refs {
		if _, ok := s.get(ref); ok {
			s.objects[ref-1] = nil
			n++
		}
	}
	Logger().Debug("refs released", zap.Int("count", n))
}

// Len returns the number of live refs in the session.
func (s *Session) Len() int {
	n := 0
	for _, o := range s.objects {
		if o != nil {
			n++
		}
	}
	return n
}

// Address returns the guest address of ref. For records every list field
// must be set and every slot of those lists filled. It fails with KindClosed
// once the runtime has been reset.
func (s *Session) Address(ref host.Ref) (uint32, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.unlock()

	o, ok := s.get(ref)
	if !ok {
		return 0, s.invalidRef(ref, "object")
	}
	if o.kind == bindVariant {
		if err := checkFilled(o, descriptor.SimpleName(o.class.name)); err != nil {
			return 0, err
		}
	}
	if o.kind == bindRecord {
		for _, f := range o.class.order {
			if f.elem == nil {
				continue
			}
			arrRef, set := o.lists[f.name]
			if !set {
				return 0, errors.InvalidData(errors.PhaseHost, []string{f.name}, "list field not set")
			}
			arr, ok := s.get(arrRef)
			if !ok {
				return 0, s.invalidRef(arrRef, "array")
			}
			if err := checkFilled(arr, f.name); err != nil {
				return 0, err
			}
		}
	}
	return o.ptr, nil
}

func checkFilled(arr *object, name string) error {
	for i, ok := range arr.filled {
		if !ok {
			return errors.InvalidData(errors.PhaseHost, []string{fmt.Sprintf("%s[%d]", name, i)}, "slot never filled")
		}
	}
	return nil
}
