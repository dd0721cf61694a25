package heap

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/comment-bridge/descriptor"
	"github.com/wippyai/comment-bridge/errors"
	"github.com/wippyai/comment-bridge/host"
	"github.com/wippyai/comment-bridge/schema"
)

// Runtime is an in-process object heap with a class registry.
// It implements host.Env and host.Releaser and is safe for concurrent use.
type Runtime struct {
	byName      map[string]*class
	objects     *table
	classes     []*class
	observers   []Observer
	cfg         Config
	stringBytes int
	mu          sync.RWMutex
	obsMu       sync.RWMutex
	closed      bool
}

var (
	_ host.Env      = (*Runtime)(nil)
	_ host.Releaser = (*Runtime)(nil)
)

// New creates an empty heap. Only java/lang/String is predefined.
func New(cfg Config) *Runtime {
	r := &Runtime{
		cfg:     cfg,
		byName:  make(map[string]*class),
		objects: newTable(),
	}
	r.register(&class{
		name:       descriptor.StringClass,
		implements: map[string]bool{},
		ctors:      map[string]ctor{},
		fieldIndex: map[string]int{},
	})
	return r
}

// NewWithSchema creates a heap with classes already defined.
func NewWithSchema(cfg Config, classes []schema.Class) (*Runtime, error) {
	r := New(cfg)
	if err := r.DefineAll(classes); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runtime) register(c *class) {
	c.id = host.Class(len(r.classes) + 1)
	r.classes = append(r.classes, c)
	r.byName[c.name] = c
}

// Define registers a class. Interfaces it implements must already exist.
func (r *Runtime) Define(def schema.Class) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.Closed(errors.PhaseHost, "heap")
	}
	if _, dup := r.byName[def.Name]; dup {
		return defineError(def.Name, "already defined")
	}

	c, err := compile(def, func(name string) (*class, bool) {
		c, ok := r.byName[name]
		return c, ok
	})
	if err != nil {
		return err
	}
	r.register(c)

	Logger().Debug("class defined",
		zap.String("class", c.name),
		zap.Bool("interface", c.iface),
		zap.Int("fields", len(c.fields)))
	return nil
}

// DefineAll registers classes in order, stopping at the first failure.
func (r *Runtime) DefineAll(classes []schema.Class) error {
	for _, def := range classes {
		if err := r.Define(def); err != nil {
			return err
		}
	}
	return nil
}

// FindClass resolves a class by binary name.
func (r *Runtime) FindClass(name string) (host.Class, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return 0, errors.Closed(errors.PhaseHost, "heap")
	}
	c, ok := r.byName[name]
	if !ok {
		return 0, errors.NotFound(errors.PhaseHost, "class", name)
	}
	return c.id, nil
}

func (r *Runtime) class(id host.Class) (*class, error) {
	if id == 0 || int(id) > len(r.classes) {
		return nil, errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Value(id).
			Detail("invalid class handle %d", uint32(id)).
			Build()
	}
	return r.classes[id-1], nil
}

// NewObject runs the constructor of class matching signature. Arguments are
// stored into the fields the constructor binds; other fields start as zero.
func (r *Runtime) NewObject(cls host.Class, signature string, args ...host.Value) (host.Ref, error) {
	r.mu.Lock()
	ref, ev, err := r.newObject(cls, signature, args)
	r.mu.Unlock()

	if err != nil {
		return host.Null, err
	}
	r.notify(ev)
	return ref, nil
}

func (r *Runtime) newObject(cls host.Class, signature string, args []host.Value) (host.Ref, Event, error) {
	if r.closed {
		return host.Null, Event{}, errors.Closed(errors.PhaseHost, "heap")
	}
	c, err := r.class(cls)
	if err != nil {
		return host.Null, Event{}, err
	}
	if c.iface {
		return host.Null, Event{}, errors.New(errors.PhaseHost, errors.KindInstantiation).
			Type(c.name).
			Member(signature).
			Detail("cannot instantiate interface").
			Build()
	}
	k, ok := c.ctors[signature]
	if !ok {
		return host.Null, Event{}, errors.New(errors.PhaseHost, errors.KindNotFound).
			Type(c.name).
			Member(signature).
			Detail("no such constructor").
			Build()
	}
	if len(args) != len(k.params) {
		return host.Null, Event{}, errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Type(c.name).
			Member(signature).
			Detail("expected %d arguments, got %d", len(k.params), len(args)).
			Build()
	}
	for i, a := range args {
		if err := r.assignable(k.params[i], a); err != nil {
			return host.Null, Event{}, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
				Path(k.binds[i]).
				Type(c.name).
				Member(signature).
				Cause(err).
				Build()
		}
	}
	if err := r.reserve(0); err != nil {
		return host.Null, Event{}, err
	}

	obj := &object{
		kind:   KindInstance,
		class:  c,
		fields: make(map[string]host.Value, len(c.fields)),
	}
	for _, f := range c.fields {
		obj.fields[f.Name] = zeroValue(f.Descriptor)
	}
	for i, name := range k.binds {
		obj.fields[name] = args[i]
	}

	ref := r.objects.insert(obj)
	return ref, Event{Type: EventAllocated, Ref: ref, Kind: KindInstance, Class: c.name}, nil
}

// SetField writes value into a declared field of obj.
func (r *Runtime) SetField(obj host.Ref, name, desc string, value host.Value) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.Closed(errors.PhaseHost, "heap")
	}
	o, ok := r.objects.get(obj)
	if !ok || o.kind != KindInstance {
		return errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Member(name).
			Value(obj).
			Detail("not an instance").
			Build()
	}
	f, ok := o.class.field(name)
	if !ok {
		return errors.New(errors.PhaseHost, errors.KindNotFound).
			Type(o.class.name).
			Member(name).
			Detail("no such field").
			Build()
	}
	if f.Descriptor != desc {
		return errors.TypeMismatch(errors.PhaseHost, []string{name}, f.Descriptor, desc)
	}
	if err := r.assignable(desc, value); err != nil {
		return err
	}
	o.fields[name] = value
	return nil
}

// NewObjectArray allocates length null slots typed by elem.
func (r *Runtime) NewObjectArray(length int, elem host.Class) (host.Ref, error) {
	r.mu.Lock()
	ref, ev, err := r.newArray(length, elem)
	r.mu.Unlock()

	if err != nil {
		return host.Null, err
	}
	r.notify(ev)
	return ref, nil
}

func (r *Runtime) newArray(length int, elem host.Class) (host.Ref, Event, error) {
	if r.closed {
		return host.Null, Event{}, errors.Closed(errors.PhaseHost, "heap")
	}
	if length < 0 {
		return host.Null, Event{}, errors.InvalidInput(errors.PhaseHost, "negative array length")
	}
	c, err := r.class(elem)
	if err != nil {
		return host.Null, Event{}, err
	}
	if err := r.reserve(0); err != nil {
		return host.Null, Event{}, err
	}

	ref := r.objects.insert(&object{
		kind:  KindArray,
		class: c,
		elems: make([]host.Ref, length),
	})
	return ref, Event{Type: EventAllocated, Ref: ref, Kind: KindArray, Class: c.name}, nil
}

// SetObjectArrayElement stores value at index of arr.
func (r *Runtime) SetObjectArrayElement(arr host.Ref, index int, value host.Ref) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.Closed(errors.PhaseHost, "heap")
	}
	o, ok := r.objects.get(arr)
	if !ok || o.kind != KindArray {
		return errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Value(arr).
			Detail("not an array").
			Build()
	}
	if index < 0 || index >= len(o.elems) {
		return errors.OutOfBounds(errors.PhaseHost, nil, index, len(o.elems))
	}
	if err := r.assignable(descriptor.Object(o.class.name), host.Object(value)); err != nil {
		return err
	}
	o.elems[index] = value
	return nil
}

// NewString allocates a string holding a copy of s.
func (r *Runtime) NewString(s string) (host.Ref, error) {
	r.mu.Lock()
	ref, err := r.newString(s)
	r.mu.Unlock()

	if err != nil {
		return host.Null, err
	}
	r.notify(Event{Type: EventAllocated, Ref: ref, Kind: KindString, Class: descriptor.StringClass})
	return ref, nil
}

func (r *Runtime) newString(s string) (host.Ref, error) {
	if r.closed {
		return host.Null, errors.Closed(errors.PhaseHost, "heap")
	}
	if err := r.reserve(len(s)); err != nil {
		return host.Null, err
	}
	r.stringBytes += len(s)
	return r.objects.insert(&object{
		kind:  KindString,
		class: r.byName[descriptor.StringClass],
		str:   s,
	}), nil
}

// reserve checks the configured limits for one more object carrying
// stringBytes bytes of text.
func (r *Runtime) reserve(stringBytes int) error {
	if r.cfg.MaxObjects > 0 && r.objects.len() >= r.cfg.MaxObjects {
		return errors.New(errors.PhaseHost, errors.KindAllocation).
			Detail("object limit %d reached", r.cfg.MaxObjects).
			Build()
	}
	if r.cfg.MaxStringBytes > 0 && r.stringBytes+stringBytes > r.cfg.MaxStringBytes {
		return errors.New(errors.PhaseHost, errors.KindAllocation).
			Detail("string limit %d bytes exceeded by %d more", r.cfg.MaxStringBytes, stringBytes).
			Build()
	}
	return nil
}

// Release drops refs. Null, unknown and already released refs are ignored.
// Objects reachable from a released object are not released with it.
func (r *Runtime) Release(refs ...host.Ref) {
	r.mu.Lock()
	events := make([]Event, 0, len(refs))
	for _, ref := range refs {
		o, ok := r.objects.drop(ref)
		if !ok {
			continue
		}
		if o.kind == KindString {
			r.stringBytes -= len(o.str)
		}
		events = append(events, Event{Type: EventReleased, Ref: ref, Kind: o.kind, Class: o.class.name})
	}
	r.mu.Unlock()

	if len(events) > 0 {
		Logger().Debug("objects released", zap.Int("count", len(events)))
	}
	r.notify(events...)
}

// Len returns the number of live objects.
func (r *Runtime) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.objects.len()
}

// StringBytes returns the total size of live strings.
func (r *Runtime) StringBytes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stringBytes
}

// Subscribe adds an observer for lifecycle events.
func (r *Runtime) Subscribe(o Observer) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	r.observers = append(r.observers, o)
}

// Unsubscribe removes an observer.
func (r *Runtime) Unsubscribe(o Observer) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	for i, obs := range r.observers {
		if obs == o {
			r.observers = append(r.observers[:i], r.observers[i+1:]...)
			return
		}
	}
}

// Close drops every object and rejects further operations.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.objects.clear()
	r.stringBytes = 0
	return nil
}

func (r *Runtime) notify(events ...Event) {
	if len(events) == 0 {
		return
	}
	r.obsMu.RLock()
	defer r.obsMu.RUnlock()
	for _, e := range events {
		for _, o := range r.observers {
			o.OnHeapEvent(e)
		}
	}
}

// assignable checks that v may be stored where desc is declared.
func (r *Runtime) assignable(desc string, v host.Value) error {
	got := r.describeValue(v)

	switch descriptor.KindOf(desc) {
	case descriptor.KindLong:
		if v.Kind == host.KindLong {
			return nil
		}
	case descriptor.KindObject, descriptor.KindArray:
		if v.Kind != host.KindRef {
			break
		}
		if v.Ref.IsNull() {
			return nil
		}
		if got == desc {
			return nil
		}
		o, ok := r.objects.get(v.Ref)
		if !ok {
			return errors.New(errors.PhaseHost, errors.KindInvalidInput).
				Value(v.Ref).
				Detail("dangling reference").
				Build()
		}
		if name, ok := descriptor.ClassOf(desc); ok && o.kind == KindInstance && o.class.is(name) {
			return nil
		}
	}
	return errors.TypeMismatch(errors.PhaseHost, nil, desc, got)
}

// describeValue returns the descriptor of the runtime type of v.
func (r *Runtime) describeValue(v host.Value) string {
	switch v.Kind {
	case host.KindLong:
		return descriptor.Long
	case host.KindRef:
		if v.Ref.IsNull() {
			return "null"
		}
		o, ok := r.objects.get(v.Ref)
		if !ok {
			return "dangling"
		}
		switch o.kind {
		case KindArray:
			return descriptor.Array(descriptor.Object(o.class.name))
		case KindString:
			return descriptor.String
		}
		return descriptor.Object(o.class.name)
	}
	return v.String()
}

func zeroValue(desc string) host.Value {
	if descriptor.KindOf(desc) == descriptor.KindLong {
		return host.Long(0)
	}
	return host.Object(host.Null)
}
