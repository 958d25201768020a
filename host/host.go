package host

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/msgwire/errors"
)

// HostModuleFunc registers host functions with the runtime before the
// encoder module is compiled.
type HostModuleFunc func(ctx context.Context, r wazero.Runtime) error

type config struct {
	metrics          *Metrics
	hostModules      []HostModuleFunc
	invokeTimeout    time.Duration
	memoryLimitPages uint32
}

// Option configures a Host.
type Option func(*config)

// WithInvokeTimeout bounds the wall-clock time of every guest call. A call
// that exceeds it is interrupted and its instance becomes unusable.
// Zero disables the bound.
func WithInvokeTimeout(d time.Duration) Option {
	return func(c *config) { c.invokeTimeout = d }
}

// WithMemoryLimitPages caps each instance's memory in 64KiB pages.
// Zero keeps the runtime default.
func WithMemoryLimitPages(pages uint32) Option {
	return func(c *config) { c.memoryLimitPages = pages }
}

// WithHostModule registers host functions the encoder module imports.
func WithHostModule(fn HostModuleFunc) Option {
	return func(c *config) { c.hostModules = append(c.hostModules, fn) }
}

// WithMetrics records call metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// Host owns a wazero runtime and one compiled encoder module. Instances are
// created from it on demand.
type Host struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	cfg      config
	closed   atomic.Bool
}

// New compiles wasm and checks that it exports the encoder ABI.
func New(ctx context.Context, wasm []byte, opts ...Option) (*Host, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	runtimeCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg.memoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.memoryLimitPages)
	}
	r := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	for _, fn := range cfg.hostModules {
		if err := fn(ctx, r); err != nil {
			_ = r.Close(ctx)
			return nil, errors.Load("register host module", err)
		}
	}

	compiled, err := r.CompileModule(ctx, wasm)
	if err != nil {
		_ = r.Close(ctx)
		return nil, errors.Load("compile module", err)
	}
	if err := checkABI(compiled); err != nil {
		_ = r.Close(ctx)
		return nil, err
	}

	Logger().Debug("encoder module compiled",
		zap.String("size", humanize.Bytes(uint64(len(wasm)))),
		zap.Duration("invoke_timeout", cfg.invokeTimeout))

	return &Host{runtime: r, compiled: compiled, cfg: cfg}, nil
}

// Instantiate creates an instance with its own linear memory.
func (h *Host) Instantiate(ctx context.Context) (*Instance, error) {
	if h.closed.Load() {
		return nil, errors.Closed("host")
	}
	mod, err := h.runtime.InstantiateModule(ctx, h.compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, errors.Instantiation(err)
	}
	return &Instance{
		module:  mod,
		memory:  WrapMemory(mod.ExportedMemory(ExportMemory)),
		malloc:  mod.ExportedFunction(ExportMalloc),
		free:    mod.ExportedFunction(ExportFree),
		encode:  mod.ExportedFunction(ExportEncode),
		timeout: h.cfg.invokeTimeout,
		metrics: h.cfg.metrics,
	}, nil
}

// Close releases the runtime and every instance created from it.
func (h *Host) Close(ctx context.Context) error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	return h.runtime.Close(ctx)
}
