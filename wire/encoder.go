package wire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/wippyai/msgwire/errors"
	"github.com/wippyai/msgwire/message"
)

// DefaultMaxFieldSize is the largest length-prefixed payload a protobuf
// decoder accepts.
const DefaultMaxFieldSize = math.MaxInt32

// Encoder maps a Message to the packet wire format. It holds no mutable
// state and is safe for concurrent use.
type Encoder struct {
	maxFieldSize int
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithMaxFieldSize caps the size of every length-prefixed field and the item
// count of every repeated field. Values <= 0 restore the default.
func WithMaxFieldSize(n int) Option {
	return func(e *Encoder) {
		if n <= 0 {
			n = DefaultMaxFieldSize
		}
		e.maxFieldSize = n
	}
}

// NewEncoder creates an encoder.
func NewEncoder(opts ...Option) *Encoder {
	e := &Encoder{maxFieldSize: DefaultMaxFieldSize}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encode validates m and returns its packet bytes. Identical input always
// yields identical output.
func (e *Encoder) Encode(m *message.Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	w := writer{max: e.maxFieldSize}

	var b []byte
	b, err := w.record(b, packetRouting, []string{"message_type"}, func(b []byte) ([]byte, error) {
		which := routingGroup
		if m.Type == message.User {
			which = routingUser
		}
		return w.record(b, which, []string{"peer_id"}, func(b []byte) ([]byte, error) {
			return appendUint(b, routingPeer, m.PeerID), nil
		})
	})
	if err != nil {
		return nil, err
	}

	b, _ = w.record(b, packetContentHead, nil, func(b []byte) ([]byte, error) {
		b = appendInt(b, headPkgNum, headPkgNumValue)
		b = appendInt(b, headPkgIndex, headPkgIndexValue)
		return appendInt(b, headDivSeq, headDivSeqValue), nil
	})

	if err := w.count(len(m.Elements), []string{"elements"}); err != nil {
		return nil, err
	}
	b, err = w.record(b, packetBody, []string{"elements"}, func(b []byte) ([]byte, error) {
		return w.record(b, bodyRichText, []string{"elements"}, func(b []byte) ([]byte, error) {
			var err error
			for i, el := range m.Elements {
				b, err = w.element(b, el, errors.FieldPath("elements", i))
				if err != nil {
					return nil, err
				}
			}
			return b, nil
		})
	})
	if err != nil {
		return nil, err
	}

	b = appendUint(b, packetSequence, uint64(m.Sequence))
	b = appendUint(b, packetRandom, uint64(m.RandomNonce))
	return b, nil
}

type writer struct {
	max int
}

func (w writer) element(b []byte, el message.Element, path []string) ([]byte, error) {
	switch e := el.(type) {
	case message.Text:
		return w.text(b, e, path)
	case *message.Text:
		return w.text(b, *e, path)
	case message.Keyboard:
		return w.keyboard(b, e, path)
	case *message.Keyboard:
		return w.keyboard(b, *e, path)
	default:
		return nil, errors.UnsupportedVariant(path, fmt.Sprintf("%T", el))
	}
}

func (w writer) text(b []byte, t message.Text, path []string) ([]byte, error) {
	return w.record(b, richTextElems, path, func(b []byte) ([]byte, error) {
		return w.record(b, elemText, path, func(b []byte) ([]byte, error) {
			return w.str(b, textString, t.Content, append(clone(path), "text"))
		})
	})
}

func (w writer) keyboard(b []byte, k message.Keyboard, path []string) ([]byte, error) {
	if err := w.count(len(k.Rows), append(clone(path), "rows")); err != nil {
		return nil, err
	}
	return w.record(b, richTextElems, path, func(b []byte) ([]byte, error) {
		return w.record(b, elemCommon, path, func(b []byte) ([]byte, error) {
			b = appendInt(b, commonServiceType, serviceTypeKeyboard)
			b, err := w.record(b, commonPbElem, path, func(b []byte) ([]byte, error) {
				return w.record(b, pbElemKeyboard, path, func(b []byte) ([]byte, error) {
					var err error
					for r, row := range k.Rows {
						rowPath := append(clone(path), "rows", fmt.Sprint(r))
						b, err = w.record(b, keyboardRows, rowPath, func(b []byte) ([]byte, error) {
							return w.buttons(b, row, rowPath)
						})
						if err != nil {
							return nil, err
						}
					}
					return w.str(b, keyboardBotAppID, botAppID, path)
				})
			})
			if err != nil {
				return nil, err
			}
			return appendInt(b, commonBusinessType, businessTypeKeyboard), nil
		})
	})
}

func (w writer) buttons(b []byte, row message.ButtonRow, path []string) ([]byte, error) {
	if err := w.count(len(row.Buttons), append(clone(path), "buttons")); err != nil {
		return nil, err
	}
	var err error
	for i, btn := range row.Buttons {
		p := append(clone(path), "buttons", fmt.Sprint(i))
		b, err = w.record(b, rowButtons, p, func(b []byte) ([]byte, error) {
			return w.button(b, btn, p)
		})
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (w writer) button(b []byte, btn message.Button, path []string) ([]byte, error) {
	b, err := w.str(b, buttonID, btn.ID, append(clone(path), "id"))
	if err != nil {
		return nil, err
	}

	renderPath := append(clone(path), "render_data")
	b, err = w.record(b, buttonRender, renderPath, func(b []byte) ([]byte, error) {
		b, err := w.str(b, renderLabel, btn.Render.Label, append(clone(renderPath), "label"))
		if err != nil {
			return nil, err
		}
		b, err = w.str(b, renderVisitedLabel, btn.Render.VisitedLabel, append(clone(renderPath), "visited_label"))
		if err != nil {
			return nil, err
		}
		return appendInt(b, renderStyle, int64(btn.Render.Style)), nil
	})
	if err != nil {
		return nil, err
	}

	actionPath := append(clone(path), "action")
	return w.record(b, buttonAction, actionPath, func(b []byte) ([]byte, error) {
		a := btn.Action
		b = appendInt(b, actionType, int64(a.Type))
		b, err := w.permission(b, a.Permission, append(clone(actionPath), "permission"))
		if err != nil {
			return nil, err
		}
		b, err = w.str(b, actionUnsupportedTip, a.UnsupportedTip, append(clone(actionPath), "unsupport_tips"))
		if err != nil {
			return nil, err
		}
		b, err = w.str(b, actionData, a.Data, append(clone(actionPath), "data"))
		if err != nil {
			return nil, err
		}
		b = appendBool(b, actionReply, a.Reply)
		return appendBool(b, actionEnter, a.Enter), nil
	})
}

func (w writer) permission(b []byte, p message.Permission, path []string) ([]byte, error) {
	return w.record(b, actionPermission, path, func(b []byte) ([]byte, error) {
		b = appendInt(b, permissionKind, int64(p.Kind))
		b, err := w.strs(b, permissionRoleIDs, p.RoleIDs, append(clone(path), "specify_role_ids"))
		if err != nil {
			return nil, err
		}
		return w.strs(b, permissionUserIDs, p.UserIDs, append(clone(path), "specify_user_ids"))
	})
}

// record writes a length-delimited nested record built by fn.
func (w writer) record(b []byte, num protowire.Number, path []string, fn func([]byte) ([]byte, error)) ([]byte, error) {
	inner, err := fn(nil)
	if err != nil {
		return nil, err
	}
	if len(inner) > w.max {
		return nil, errors.FieldTooLarge(path, len(inner), w.max)
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, inner), nil
}

func (w writer) str(b []byte, num protowire.Number, s string, path []string) ([]byte, error) {
	if len(s) > w.max {
		return nil, errors.FieldTooLarge(path, len(s), w.max)
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s), nil
}

func (w writer) strs(b []byte, num protowire.Number, ss []string, path []string) ([]byte, error) {
	if err := w.count(len(ss), path); err != nil {
		return nil, err
	}
	var err error
	for i, s := range ss {
		b, err = w.str(b, num, s, append(clone(path), fmt.Sprint(i)))
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (w writer) count(n int, path []string) error {
	if n > w.max {
		return errors.FieldTooLarge(path, n, w.max)
	}
	return nil
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// appendInt zigzag-encodes negative values and writes the rest as plain
// varints, matching the reference encoder.
func appendInt(b []byte, num protowire.Number, v int64) []byte {
	if v < 0 {
		return appendUint(b, num, protowire.EncodeZigZag(v))
	}
	return appendUint(b, num, uint64(v))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	return appendUint(b, num, protowire.EncodeBool(v))
}

func clone(path []string) []string {
	out := make([]string, len(path), len(path)+4)
	copy(out, path)
	return out
}
