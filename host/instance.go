package host

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/msgwire/errors"
)

// Instance is one instantiation of the encoder module. Calls are
// serialised by an internal mutex; use a Pool for parallel encoding.
//
// A call that traps or times out leaves guest state unknown, so the
// instance is marked broken and rejects further calls.
type Instance struct {
	module  api.Module
	memory  *Memory
	malloc  api.Function
	free    api.Function
	encode  api.Function
	metrics *Metrics
	timeout time.Duration
	mu      sync.Mutex
	broken  bool
	closed  bool
}

// Memory returns the instance's linear memory.
func (i *Instance) Memory() *Memory {
	return i.memory
}

// Module returns the underlying wazero module.
func (i *Instance) Module() api.Module {
	return i.module
}

// Broken reports whether a failed call made the instance unusable.
func (i *Instance) Broken() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.broken || i.closed
}

// WriteString allocates len(s)+1 bytes in the guest and writes s followed
// by a NUL. The caller owns the returned pointer and must Free it.
func (i *Instance) WriteString(ctx context.Context, s string) (uint32, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.writeString(ctx, s)
}

// ReadCString reads the NUL-terminated string at ptr.
func (i *Instance) ReadCString(ptr uint32) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.usable(); err != nil {
		return "", err
	}
	return i.memory.ReadCString(ptr)
}

// Free releases ptr through the guest's free_ptr.
func (i *Instance) Free(ctx context.Context, ptr uint32) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.freePtr(ctx, ptr)
}

// Invoke calls any exported function with raw core arguments.
func (i *Instance) Invoke(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.usable(); err != nil {
		return nil, err
	}
	fn := i.module.ExportedFunction(name)
	if fn == nil {
		return nil, errors.MissingExport(name)
	}
	return i.call(ctx, fn, name, args...)
}

// EncodeJSON passes input to encode_from_json and returns the hex text it
// produces. The input and result allocations are each freed exactly once,
// whether or not the call succeeds. A null result is an engine failure.
func (i *Instance) EncodeJSON(ctx context.Context, input string) (out string, err error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	in, err := i.writeString(ctx, input)
	if err != nil {
		return "", err
	}
	defer i.release(ctx, in, &out, &err)

	res, err := i.call(ctx, i.encode, ExportEncode, uint64(in))
	if err != nil {
		return "", err
	}
	ptr := uint32(res[0])
	if ptr == 0 {
		return "", errors.EngineFailure("encode_from_json returned a null pointer", nil)
	}
	// A guest may hand back its input buffer; it is released once above.
	if ptr != in {
		defer i.release(ctx, ptr, &out, &err)
	}
	return i.memory.ReadCString(ptr)
}

// Close closes the module. Closing twice is a no-op.
func (i *Instance) Close(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	return i.module.Close(ctx)
}

// release frees ptr on the way out of EncodeJSON. A failed free replaces a
// successful result so callers never see output from a leaking call.
func (i *Instance) release(ctx context.Context, ptr uint32, out *string, err *error) {
	if ferr := i.freePtr(ctx, ptr); ferr != nil && *err == nil {
		*out, *err = "", ferr
	}
}

func (i *Instance) writeString(ctx context.Context, s string) (uint32, error) {
	if err := i.usable(); err != nil {
		return 0, err
	}
	size := uint32(len(s) + 1)
	res, err := i.call(ctx, i.malloc, ExportMalloc, uint64(size))
	if err != nil {
		return 0, errors.AllocationFailed(size, err)
	}
	ptr := uint32(res[0])
	if ptr == 0 {
		return 0, errors.AllocationFailed(size, nil)
	}
	if err := i.memory.WriteCString(ptr, s); err != nil {
		_ = i.freePtr(ctx, ptr)
		return 0, err
	}
	return ptr, nil
}

func (i *Instance) freePtr(ctx context.Context, ptr uint32) error {
	if i.broken || i.closed {
		// The instance is discarded with its memory.
		Logger().Debug("skipping free on unusable instance", zap.Uint32("ptr", ptr))
		return nil
	}
	_, err := i.call(ctx, i.free, ExportFree, uint64(ptr))
	return err
}

func (i *Instance) usable() error {
	if i.closed {
		return errors.Closed("instance")
	}
	if i.broken {
		return errors.Closed("broken instance")
	}
	return nil
}

func (i *Instance) call(ctx context.Context, fn api.Function, name string, args ...uint64) ([]uint64, error) {
	callCtx := ctx
	if i.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := fn.Call(callCtx, args...)
	elapsed := time.Since(start)

	if err != nil {
		i.broken = true
		if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
			i.metrics.observeCall(name, elapsed, "timeout")
			Logger().Warn("guest call interrupted",
				zap.String("func", name),
				zap.Duration("elapsed", elapsed),
				zap.Error(err))
			return nil, errors.Timeout(name, err)
		}
		i.metrics.observeCall(name, elapsed, "trap")
		Logger().Warn("guest call failed",
			zap.String("func", name),
			zap.Error(err))
		return nil, errors.EngineFailure("call "+name, err)
	}
	i.metrics.observeCall(name, elapsed, "ok")
	return res, nil
}
