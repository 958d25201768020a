// Package host runs a WebAssembly encoder module and exchanges data with it
// through its linear memory.
//
// The module must export:
//
//	memory
//	malloc(size u32) -> u32
//	free_ptr(ptr u32)
//	encode_from_json(input u32) -> u32
//
// encode_from_json receives a NUL-terminated JSON message and returns a
// pointer to a NUL-terminated hex string, or 0 on failure. The host frees
// both buffers with free_ptr.
//
// Basic usage:
//
//	h, err := host.New(ctx, wasm, host.WithInvokeTimeout(time.Second))
//	if err != nil {
//		return err
//	}
//	defer h.Close(ctx)
//
//	pool := host.NewPool(h, runtime.NumCPU())
//	hex, err := pool.EncodeJSON(ctx, `{"message_type":"user", ...}`)
//
// Instance is not safe for parallel use beyond its internal locking; Pool
// gives each concurrent caller its own instance. A call that traps or
// exceeds its timeout marks the instance broken and the pool replaces it.
package host
