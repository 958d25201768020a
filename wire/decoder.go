package wire

import (
	"fmt"
	"math"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/wippyai/msgwire/errors"
	"github.com/wippyai/msgwire/message"
)

type field struct {
	bytes []byte
	value uint64
	num   protowire.Number
	typ   protowire.Type
}

// parseFields splits b into its top-level fields. Only varint and
// length-delimited fields are accepted; the packet layout uses nothing else.
func parseFields(b []byte) ([]field, error) {
	var fields []field
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			f.value = v
			b = b[m:]
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			f.bytes = v
			b = b[m:]
		default:
			return nil, fmt.Errorf("unexpected wire type %d for field %d", typ, num)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// Decode parses packet bytes produced by Encoder back into a Message.
// Unknown fields are skipped; the result is validated.
func Decode(b []byte) (*message.Message, error) {
	d := decoder{}
	m, err := d.packet(b)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

type decoder struct{}

func (d decoder) fields(b []byte, path []string) ([]field, error) {
	fields, err := parseFields(b)
	if err != nil {
		return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Path(path...).
			Detail("malformed record").
			Cause(err).
			Build()
	}
	return fields, nil
}

func (d decoder) packet(b []byte) (*message.Message, error) {
	fields, err := d.fields(b, nil)
	if err != nil {
		return nil, err
	}
	m := &message.Message{}
	var sawRouting bool
	for _, f := range fields {
		switch f.num {
		case packetRouting:
			if err := d.routing(f, m); err != nil {
				return nil, err
			}
			sawRouting = true
		case packetBody:
			if err := d.body(f, m); err != nil {
				return nil, err
			}
		case packetSequence:
			v, err := uint32Field(f, "sequence")
			if err != nil {
				return nil, err
			}
			m.Sequence = v
		case packetRandom:
			v, err := uint32Field(f, "random_number")
			if err != nil {
				return nil, err
			}
			m.RandomNonce = v
		}
	}
	if !sawRouting {
		return nil, errors.FieldMissing(errors.PhaseDecode, nil, "routing")
	}
	return m, nil
}

func (d decoder) routing(f field, m *message.Message) error {
	if err := expect(f, protowire.BytesType, "routing"); err != nil {
		return err
	}
	fields, err := d.fields(f.bytes, []string{"routing"})
	if err != nil {
		return err
	}
	for _, rf := range fields {
		switch rf.num {
		case routingUser:
			m.Type = message.User
		case routingGroup:
			m.Type = message.Group
		default:
			continue
		}
		if err := expect(rf, protowire.BytesType, "routing"); err != nil {
			return err
		}
		peer, err := d.fields(rf.bytes, []string{"routing", m.Type.String()})
		if err != nil {
			return err
		}
		for _, pf := range peer {
			if pf.num == routingPeer && pf.typ == protowire.VarintType {
				m.PeerID = pf.value
			}
		}
	}
	return nil
}

func (d decoder) body(f field, m *message.Message) error {
	if err := expect(f, protowire.BytesType, "body"); err != nil {
		return err
	}
	fields, err := d.fields(f.bytes, []string{"body"})
	if err != nil {
		return err
	}
	for _, bf := range fields {
		if bf.num != bodyRichText || bf.typ != protowire.BytesType {
			continue
		}
		elems, err := d.fields(bf.bytes, []string{"body", "rich_text"})
		if err != nil {
			return err
		}
		for _, ef := range elems {
			if ef.num != richTextElems || ef.typ != protowire.BytesType {
				continue
			}
			el, err := d.element(ef.bytes, errors.FieldPath("elements", len(m.Elements)))
			if err != nil {
				return err
			}
			if el != nil {
				m.Elements = append(m.Elements, el)
			}
		}
	}
	return nil
}

// element returns nil for element kinds the layout does not map.
func (d decoder) element(b []byte, path []string) (message.Element, error) {
	fields, err := d.fields(b, path)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		switch {
		case f.num == elemText && f.typ == protowire.BytesType:
			inner, err := d.fields(f.bytes, path)
			if err != nil {
				return nil, err
			}
			var t message.Text
			for _, tf := range inner {
				if tf.num == textString && tf.typ == protowire.BytesType {
					s, err := str(tf, append(clone(path), "text"))
					if err != nil {
						return nil, err
					}
					t.Content = s
				}
			}
			return t, nil
		case f.num == elemCommon && f.typ == protowire.BytesType:
			return d.common(f.bytes, path)
		}
	}
	return nil, nil
}

func (d decoder) common(b []byte, path []string) (message.Element, error) {
	fields, err := d.fields(b, path)
	if err != nil {
		return nil, err
	}
	var service uint64
	var pb []byte
	for _, f := range fields {
		switch {
		case f.num == commonServiceType && f.typ == protowire.VarintType:
			service = f.value
		case f.num == commonPbElem && f.typ == protowire.BytesType:
			pb = f.bytes
		}
	}
	if service != serviceTypeKeyboard {
		return nil, nil
	}
	outer, err := d.fields(pb, path)
	if err != nil {
		return nil, err
	}
	k := message.Keyboard{}
	for _, of := range outer {
		if of.num != pbElemKeyboard || of.typ != protowire.BytesType {
			continue
		}
		rows, err := d.fields(of.bytes, path)
		if err != nil {
			return nil, err
		}
		for _, rf := range rows {
			if rf.num != keyboardRows || rf.typ != protowire.BytesType {
				continue
			}
			row, err := d.row(rf.bytes, append(clone(path), "rows", fmt.Sprint(len(k.Rows))))
			if err != nil {
				return nil, err
			}
			k.Rows = append(k.Rows, row)
		}
	}
	return k, nil
}

func (d decoder) row(b []byte, path []string) (message.ButtonRow, error) {
	fields, err := d.fields(b, path)
	if err != nil {
		return message.ButtonRow{}, err
	}
	var row message.ButtonRow
	for _, f := range fields {
		if f.num != rowButtons || f.typ != protowire.BytesType {
			continue
		}
		btn, err := d.button(f.bytes, append(clone(path), "buttons", fmt.Sprint(len(row.Buttons))))
		if err != nil {
			return message.ButtonRow{}, err
		}
		row.Buttons = append(row.Buttons, btn)
	}
	return row, nil
}

func (d decoder) button(b []byte, path []string) (message.Button, error) {
	fields, err := d.fields(b, path)
	if err != nil {
		return message.Button{}, err
	}
	var btn message.Button
	for _, f := range fields {
		switch f.num {
		case buttonID:
			if btn.ID, err = str(f, append(clone(path), "id")); err != nil {
				return btn, err
			}
		case buttonRender:
			if btn.Render, err = d.render(f, append(clone(path), "render_data")); err != nil {
				return btn, err
			}
		case buttonAction:
			if btn.Action, err = d.action(f, append(clone(path), "action")); err != nil {
				return btn, err
			}
		}
	}
	return btn, nil
}

func (d decoder) render(f field, path []string) (message.RenderData, error) {
	var r message.RenderData
	if err := expect(f, protowire.BytesType, path...); err != nil {
		return r, err
	}
	fields, err := d.fields(f.bytes, path)
	if err != nil {
		return r, err
	}
	for _, rf := range fields {
		switch rf.num {
		case renderLabel:
			if r.Label, err = str(rf, append(clone(path), "label")); err != nil {
				return r, err
			}
		case renderVisitedLabel:
			if r.VisitedLabel, err = str(rf, append(clone(path), "visited_label")); err != nil {
				return r, err
			}
		case renderStyle:
			r.Style = message.ButtonStyle(int32(rf.value))
		}
	}
	return r, nil
}

func (d decoder) action(f field, path []string) (message.ActionData, error) {
	var a message.ActionData
	if err := expect(f, protowire.BytesType, path...); err != nil {
		return a, err
	}
	fields, err := d.fields(f.bytes, path)
	if err != nil {
		return a, err
	}
	for _, af := range fields {
		switch af.num {
		case actionType:
			a.Type = message.ActionType(int32(af.value))
		case actionPermission:
			if a.Permission, err = d.permission(af, append(clone(path), "permission")); err != nil {
				return a, err
			}
		case actionUnsupportedTip:
			if a.UnsupportedTip, err = str(af, append(clone(path), "unsupport_tips")); err != nil {
				return a, err
			}
		case actionData:
			if a.Data, err = str(af, append(clone(path), "data")); err != nil {
				return a, err
			}
		case actionReply:
			a.Reply = protowire.DecodeBool(af.value)
		case actionEnter:
			a.Enter = protowire.DecodeBool(af.value)
		}
	}
	return a, nil
}

func (d decoder) permission(f field, path []string) (message.Permission, error) {
	var p message.Permission
	if err := expect(f, protowire.BytesType, path...); err != nil {
		return p, err
	}
	fields, err := d.fields(f.bytes, path)
	if err != nil {
		return p, err
	}
	for _, pf := range fields {
		switch pf.num {
		case permissionKind:
			p.Kind = message.PermissionKind(int32(pf.value))
		case permissionRoleIDs:
			s, err := str(pf, append(clone(path), "specify_role_ids"))
			if err != nil {
				return p, err
			}
			p.RoleIDs = append(p.RoleIDs, s)
		case permissionUserIDs:
			s, err := str(pf, append(clone(path), "specify_user_ids"))
			if err != nil {
				return p, err
			}
			p.UserIDs = append(p.UserIDs, s)
		}
	}
	return p, nil
}

func expect(f field, typ protowire.Type, path ...string) error {
	if f.typ == typ {
		return nil
	}
	return errors.New(errors.PhaseDecode, errors.KindInvalidData).
		Path(path...).
		Detail("field %d has wire type %d, want %d", f.num, f.typ, typ).
		Build()
}

func uint32Field(f field, name string) (uint32, error) {
	if err := expect(f, protowire.VarintType, name); err != nil {
		return 0, err
	}
	if f.value > math.MaxUint32 {
		return 0, errors.Overflow(errors.PhaseDecode, []string{name}, f.value, "u32")
	}
	return uint32(f.value), nil
}

func str(f field, path []string) (string, error) {
	if err := expect(f, protowire.BytesType, path...); err != nil {
		return "", err
	}
	if !utf8.Valid(f.bytes) {
		return "", errors.InvalidUTF8(errors.PhaseDecode, path, f.bytes)
	}
	return string(f.bytes), nil
}
