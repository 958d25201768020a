// Package msgwire encodes structured chat messages (text segments and
// inline button keyboards) into the hex packet format a messaging backend
// accepts.
//
// Two engines produce identical bytes behind the Encoder interface: Native
// runs in process, and host.Engine drives a WebAssembly encoder module
// through its exported allocator.
//
// # Packages
//
//	msgwire/          Encoder interface, native engine, hex helper
//	├── message/      Message model, validation, JSON and YAML input
//	├── wire/         Packet layout, encoder, decoder and field dump
//	├── hexcodec/     Hex text conversion
//	├── host/         wazero host for encoder modules, pool and metrics
//	├── config/       Environment, .env and YAML configuration
//	├── server/       HTTP encode service
//	├── errors/       Structured error types
//	└── cmd/msgwire/  Command line tool
//
// # Quick Start
//
//	m, err := message.New(message.Group, 123, 0, 0,
//		message.NewText("hello"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	hex, err := msgwire.EncodeHex(ctx, msgwire.NewNative(), m)
//
// Through a WebAssembly module:
//
//	h, err := host.New(ctx, wasmBytes, host.WithInvokeTimeout(time.Second))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer h.Close(ctx)
//
//	engine := host.NewEngine(host.NewPool(h, 4))
//	hex, err := msgwire.EncodeHex(ctx, engine, m)
//
// # Errors
//
// Every failure is an *errors.Error carrying a phase, a kind and, for
// message problems, the path of the offending field:
//
//	var e *errors.Error
//	if errors.As(err, &e) {
//		fmt.Println(e.Phase, e.Kind, e.PathString())
//	}
//
// Match categories with errors.Is and the sentinels in package errors, for
// example errors.Is(err, errors.ErrValidation).
package msgwire
