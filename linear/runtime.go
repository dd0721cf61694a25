package linear

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/comment-bridge/descriptor"
	"github.com/wippyai/comment-bridge/errors"
	"github.com/wippyai/comment-bridge/schema"
)

// memoryModule is a core module that declares and exports one memory of one
// initial page and nothing else:
//
//	(module (memory (export "memory") 1))
var memoryModule = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	0x05, 0x03, 0x01, 0x00, 0x01, // memory section: 1 memory, min 1, no max
	0x07, 0x0a, 0x01, // export section: 1 export
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00, // "memory" → memory 0
}

const moduleName = "comment-heap"

// Config holds runtime options. The zero value selects the defaults.
type Config struct {
	// MemoryLimitPages sets the maximum memory in pages (64KB each).
	// 0 means the wazero default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// Namespace selects the composite class Lift reads. Defaults to
	// schema.DefaultNamespace.
	Namespace string
}

// Runtime owns a wazero module instance whose linear memory holds the
// objects built by its sessions.
type Runtime struct {
	runtime   wazero.Runtime
	module    api.Module
	model     *model
	alloc     *bump
	composite *binding
	mem       memory
	mu        sync.Mutex
	gen       uint64
}

// New instantiates the memory module and binds classes to their canonical
// ABI representation.
func New(ctx context.Context, cfg Config, classes []schema.Class) (*Runtime, error) {
	ns := cfg.Namespace
	if ns == "" {
		ns = schema.DefaultNamespace
	}
	if err := descriptor.ValidateNamespace(ns); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "namespace")
	}

	m, err := compile(classes)
	if err != nil {
		return nil, err
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	compiled, err := rt.CompileModule(ctx, memoryModule)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("compile memory module: %w", err)
	}
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(moduleName))
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("instantiate memory module: %w", err)
	}
	mem := mod.ExportedMemory("memory")
	if mem == nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("memory module has no exported memory")
	}

	r := &Runtime{
		runtime: rt,
		module:  mod,
		model:   m,
		alloc:   newBump(mem),
		mem:     memory{mem: mem, phase: errors.PhaseHost},
	}
	if b, ok := m.byName[descriptor.ClassName(ns, schema.CommentClass)]; ok && b.kind == bindRecord {
		r.composite = b
	}

	Logger().Debug("linear runtime ready",
		zap.Int("classes", len(m.classes)),
		zap.Uint32("memory_limit_pages", cfg.MemoryLimitPages))
	return r, nil
}

// Memory returns the guest memory the runtime writes into.
func (r *Runtime) Memory() api.Memory {
	return r.mem.mem
}

// Used returns the number of bytes allocated since the last Reset.
func (r *Runtime) Used() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alloc.used()
}

// Reset discards every allocation. Sessions opened before Reset fail with
// KindClosed afterwards.
func (r *Runtime) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alloc.reset()
	r.gen++
}

// Close releases the wazero runtime.
func (r *Runtime) Close(ctx context.Context) error {
	return r.runtime.Close(ctx)
}

// Layout returns the canonical ABI size and alignment of a bound class. For
// variant cases it is the size of the enclosing variant.
func (r *Runtime) Layout(class string) (size, align uint32, ok bool) {
	b, ok := r.model.byName[class]
	if !ok || b.kind == bindString {
		return 0, 0, false
	}
	return b.info.Size, b.info.Align, true
}

// FieldOffset returns the byte offset of a record field.
func (r *Runtime) FieldOffset(class, field string) (uint32, bool) {
	b, ok := r.model.byName[class]
	if !ok || b.kind != bindRecord {
		return 0, false
	}
	f, ok := b.fields[field]
	if !ok {
		return 0, false
	}
	return f.offset, true
}

// WIT renders the bound variants and records as WIT type definitions.
func (r *Runtime) WIT() string {
	var sb strings.Builder
	for _, b := range r.model.classes {
		switch b.kind {
		case bindVariant:
			fmt.Fprintf(&sb, "variant %s {\n", b.witName)
			for _, c := range b.cases {
				if c.payload == nil {
					fmt.Fprintf(&sb, "  %s,\n", c.witName)
					continue
				}
				fmt.Fprintf(&sb, "  %s(%s),\n", c.witName, r.typeName(c.payload))
			}
			sb.WriteString("}\n")
		case bindRecord:
			fmt.Fprintf(&sb, "record %s {\n", b.witName)
			for _, f := range b.order {
				fmt.Fprintf(&sb, "  %s: %s,\n", f.wit, r.typeName(f.typ))
			}
			sb.WriteString("}\n")
		}
	}
	return sb.String()
}

func (r *Runtime) typeName(t wit.Type) string {
	switch typ := t.(type) {
	case wit.S64:
		return "s64"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		switch kind := typ.Kind.(type) {
		case *wit.Tuple:
			names := make([]string, len(kind.Types))
			for i, e := range kind.Types {
				names[i] = r.typeName(e)
			}
			return "tuple<" + strings.Join(names, ", ") + ">"
		case *wit.List:
			for _, b := range r.model.classes {
				if b.def == kind.Type {
					return "list<" + b.witName + ">"
				}
			}
			return "list<" + r.typeName(kind.Type) + ">"
		}
	}
	return fmt.Sprintf("%T", t)
}
