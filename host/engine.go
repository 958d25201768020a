package host

import (
	"context"
	"encoding/json"

	"github.com/wippyai/msgwire/errors"
	"github.com/wippyai/msgwire/hexcodec"
	"github.com/wippyai/msgwire/message"
)

// Engine encodes messages through guest instances drawn from a pool.
type Engine struct {
	pool *Pool
}

// NewEngine creates an engine backed by pool.
func NewEngine(pool *Pool) *Engine {
	return &Engine{pool: pool}
}

// Encode validates m, hands its JSON form to the guest and decodes the hex
// the guest returns.
func (e *Engine) Encode(ctx context.Context, m *message.Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	input, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	out, err := e.pool.EncodeJSON(ctx, string(input))
	if err != nil {
		return nil, err
	}
	// Every packet carries at least the routing field.
	if out == "" {
		return nil, errors.EngineFailure("guest returned empty output", nil)
	}
	b, err := hexcodec.FromHex(out)
	if err != nil {
		return nil, errors.EngineFailure("guest returned malformed hex", err)
	}
	return b, nil
}

// Close closes the pool.
func (e *Engine) Close(ctx context.Context) error {
	return e.pool.Close(ctx)
}
