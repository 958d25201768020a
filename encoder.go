package msgwire

import (
	"context"

	"github.com/wippyai/msgwire/hexcodec"
	"github.com/wippyai/msgwire/message"
	"github.com/wippyai/msgwire/wire"
)

// Encoder turns a message into packet bytes. Implementations return either
// the complete encoding or an error, never a partial result.
type Encoder interface {
	Encode(ctx context.Context, m *message.Message) ([]byte, error)
}

// Native encodes in process with wire.Encoder.
type Native struct {
	enc *wire.Encoder
}

// NewNative returns the in-process encoder.
func NewNative(opts ...wire.Option) *Native {
	return &Native{enc: wire.NewEncoder(opts...)}
}

// Encode implements Encoder. ctx is unused; native encoding does not block.
func (n *Native) Encode(_ context.Context, m *message.Message) ([]byte, error) {
	return n.enc.Encode(m)
}

// EncodeHex encodes m with enc and returns the lowercase hex form.
func EncodeHex(ctx context.Context, enc Encoder, m *message.Message) (string, error) {
	b, err := enc.Encode(ctx, m)
	if err != nil {
		return "", err
	}
	return hexcodec.ToHex(b), nil
}
