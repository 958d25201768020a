package host

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/msgwire/errors"
)

// Pool hands out instances so that concurrent callers never share one.
// At most size instances are live; idle ones are reused and broken ones
// are closed and replaced on demand.
type Pool struct {
	host    *Host
	idle    chan *Instance
	slots   chan struct{}
	closing chan struct{}
	mu      sync.Mutex
	closed  bool
}

// NewPool creates a pool of up to size instances of h. Sizes below one are
// treated as one.
func NewPool(h *Host, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		host:    h,
		idle:    make(chan *Instance, size),
		slots:   make(chan struct{}, size),
		closing: make(chan struct{}),
	}
}

// Size returns the maximum number of live instances.
func (p *Pool) Size() int {
	return cap(p.slots)
}

// Get returns an instance for exclusive use, waiting while all are busy.
// Return it with Put.
func (p *Pool) Get(ctx context.Context) (*Instance, error) {
	select {
	case p.slots <- struct{}{}:
	case <-p.closing:
		return nil, errors.Closed("pool")
	case <-ctx.Done():
		return nil, errors.Timeout("pool.Get", ctx.Err())
	}

	select {
	case <-p.closing:
		<-p.slots
		return nil, errors.Closed("pool")
	default:
	}

	select {
	case inst := <-p.idle:
		return inst, nil
	default:
	}

	inst, err := p.host.Instantiate(ctx)
	if err != nil {
		<-p.slots
		return nil, err
	}
	p.host.cfg.metrics.instanceDelta(1)
	Logger().Debug("pool instance created", zap.Int("size", p.Size()))
	return inst, nil
}

// Put returns inst to the pool. Broken instances, and any instance returned
// after Close, are closed.
func (p *Pool) Put(ctx context.Context, inst *Instance) {
	defer func() { <-p.slots }()

	if inst.Broken() {
		Logger().Info("discarding broken instance")
		p.discard(ctx, inst)
		return
	}

	p.mu.Lock()
	kept := false
	if !p.closed {
		select {
		case p.idle <- inst:
			kept = true
		default:
		}
	}
	p.mu.Unlock()

	if !kept {
		p.discard(ctx, inst)
	}
}

// EncodeJSON runs Instance.EncodeJSON on a pooled instance.
func (p *Pool) EncodeJSON(ctx context.Context, input string) (string, error) {
	inst, err := p.Get(ctx)
	if err != nil {
		return "", err
	}
	defer p.Put(ctx, inst)
	return inst.EncodeJSON(ctx, input)
}

// Close closes idle instances and makes further Gets fail. Instances still
// checked out are closed when returned.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.closing)
	}
	var idle []*Instance
	for len(p.idle) > 0 {
		idle = append(idle, <-p.idle)
	}
	p.mu.Unlock()

	for _, inst := range idle {
		p.discard(ctx, inst)
	}
	return nil
}

func (p *Pool) discard(ctx context.Context, inst *Instance) {
	if err := inst.Close(ctx); err != nil {
		Logger().Warn("close instance", zap.Error(err))
	}
	p.host.cfg.metrics.instanceDelta(-1)
}
