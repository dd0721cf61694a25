package commentbridge

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/comment-bridge/comment"
	"github.com/wippyai/comment-bridge/heap"
	"github.com/wippyai/comment-bridge/host"
	"github.com/wippyai/comment-bridge/linear"
	"github.com/wippyai/comment-bridge/mapper"
	"github.com/wippyai/comment-bridge/schema"
)

// Config selects the class namespace and the limits of the built-in hosts.
// The zero value targets schema.DefaultNamespace with no limits.
type Config struct {
	Logger *zap.Logger

	// Namespace is the package of the comment model classes.
	Namespace string

	// Heap limits the object heap host.
	Heap heap.Config

	// MemoryLimitPages caps the linear memory host, in 64KB pages.
	MemoryLimitPages uint32
}

// Bridge pairs a mapper with the class model it targets and builds host
// runtimes that understand that model.
type Bridge struct {
	mapper  *mapper.Mapper
	classes []schema.Class
	cfg     Config
}

// New validates cfg and returns a bridge.
func New(cfg Config) (*Bridge, error) {
	m, err := mapper.NewWithConfig(mapper.Config{Logger: cfg.Logger, Namespace: cfg.Namespace})
	if err != nil {
		return nil, err
	}
	cfg.Namespace = m.Namespace()
	return &Bridge{
		mapper:  m,
		classes: schema.Comment(cfg.Namespace),
		cfg:     cfg,
	}, nil
}

// Namespace returns the package of the comment model classes.
func (b *Bridge) Namespace() string {
	return b.cfg.Namespace
}

// Mapper returns the underlying mapper, for use with other host.Env
// implementations.
func (b *Bridge) Mapper() *mapper.Mapper {
	return b.mapper
}

// Classes returns the class model registered with the built-in hosts.
func (b *Bridge) Classes() []schema.Class {
	return b.classes
}

// Map rebuilds c inside env.
func (b *Bridge) Map(env host.Env, c *comment.ParsedComment) (host.Ref, error) {
	return b.mapper.Map(env, c)
}

// ToHeap maps c into a fresh object heap. The caller owns the returned
// runtime and closes it when done.
func (b *Bridge) ToHeap(c *comment.ParsedComment) (*heap.Runtime, host.Ref, error) {
	rt, err := heap.NewWithSchema(b.cfg.Heap, b.classes)
	if err != nil {
		return nil, host.Null, err
	}
	ref, err := b.mapper.Map(rt, c)
	if err != nil {
		_ = rt.Close()
		return nil, host.Null, err
	}
	return rt, ref, nil
}

// NewLinear instantiates a linear memory host for the class model.
func (b *Bridge) NewLinear(ctx context.Context) (*linear.Runtime, error) {
	return linear.New(ctx, linear.Config{
		MemoryLimitPages: b.cfg.MemoryLimitPages,
		Namespace:        b.cfg.Namespace,
	}, b.classes)
}

// ToLinear maps c into the memory of a fresh linear host and returns the
// guest address of the composite record. The caller closes the runtime.
func (b *Bridge) ToLinear(ctx context.Context, c *comment.ParsedComment) (*linear.Runtime, uint32, error) {
	rt, err := b.NewLinear(ctx)
	if err != nil {
		return nil, 0, err
	}
	s := rt.NewSession()
	ref, err := b.mapper.Map(s, c)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, 0, err
	}
	addr, err := s.Address(ref)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, 0, err
	}
	return rt, addr, nil
}
