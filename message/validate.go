package message

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/wippyai/msgwire/errors"
)

// Validate checks m and returns a *errors.Error with PhaseValidate naming the
// first offending field path, or nil.
func (m *Message) Validate() error {
	if m == nil {
		return errors.InvalidData(errors.PhaseValidate, nil, "nil message")
	}
	if m.Type != Group && m.Type != User {
		return errors.InvalidEnum(errors.PhaseValidate, []string{"message_type"}, uint8(m.Type), "MessageType")
	}
	if m.PeerID > math.MaxInt64 {
		return errors.Overflow(errors.PhaseValidate, []string{"peer_id"}, m.PeerID, "i64")
	}
	if len(m.Elements) == 0 {
		return errors.New(errors.PhaseValidate, errors.KindFieldMissing).
			Path("elements").
			Detail("message must contain at least one element").
			Build()
	}
	for i, el := range m.Elements {
		if err := validateElement(el, errors.FieldPath("elements", i)); err != nil {
			return err
		}
	}
	return nil
}

func validateElement(el Element, path []string) error {
	switch e := el.(type) {
	case nil:
		return errors.InvalidData(errors.PhaseValidate, path, "nil element")
	case Text:
		return validateString(e.Content, path, "text")
	case *Text:
		if e == nil {
			return errors.InvalidData(errors.PhaseValidate, path, "nil element")
		}
		return validateString(e.Content, path, "text")
	case Keyboard:
		return validateKeyboard(e, path)
	case *Keyboard:
		if e == nil {
			return errors.InvalidData(errors.PhaseValidate, path, "nil element")
		}
		return validateKeyboard(*e, path)
	default:
		// Unknown variants are rejected by the encoder as unsupported.
		return nil
	}
}

func validateKeyboard(k Keyboard, path []string) error {
	if len(k.Rows) == 0 {
		return errors.New(errors.PhaseValidate, errors.KindFieldMissing).
			Path(append(path, "rows")...).
			Detail("keyboard must contain at least one row").
			Build()
	}
	for r, row := range k.Rows {
		rowPath := append(clonePath(path), "rows", fmt.Sprint(r))
		if len(row.Buttons) == 0 {
			return errors.New(errors.PhaseValidate, errors.KindFieldMissing).
				Path(append(rowPath, "buttons")...).
				Detail("row must contain at least one button").
				Build()
		}
		for b, btn := range row.Buttons {
			if err := validateButton(btn, append(clonePath(rowPath), "buttons", fmt.Sprint(b))); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateButton(b Button, path []string) error {
	checks := []struct {
		value string
		field []string
	}{
		{b.ID, []string{"id"}},
		{b.Render.Label, []string{"render_data", "label"}},
		{b.Render.VisitedLabel, []string{"render_data", "visited_label"}},
		{b.Action.UnsupportedTip, []string{"action", "unsupport_tips"}},
		{b.Action.Data, []string{"action", "data"}},
	}
	for _, c := range checks {
		if err := validateString(c.value, append(clonePath(path), c.field...)); err != nil {
			return err
		}
	}

	if b.Render.Style < 0 {
		return errors.InvalidEnum(errors.PhaseValidate, append(clonePath(path), "render_data", "style"), int32(b.Render.Style), "ButtonStyle")
	}
	if b.Action.Type < 0 {
		return errors.InvalidEnum(errors.PhaseValidate, append(clonePath(path), "action", "type"), int32(b.Action.Type), "ActionType")
	}
	perm := b.Action.Permission
	permPath := append(clonePath(path), "action", "permission")
	if perm.Kind < 0 {
		return errors.InvalidEnum(errors.PhaseValidate, append(clonePath(permPath), "type"), int32(perm.Kind), "PermissionKind")
	}
	if err := validateIDSet(perm.RoleIDs, append(clonePath(permPath), "specify_role_ids")); err != nil {
		return err
	}
	return validateIDSet(perm.UserIDs, append(clonePath(permPath), "specify_user_ids"))
}

func validateIDSet(ids []string, path []string) error {
	seen := make(map[string]struct{}, len(ids))
	for i, id := range ids {
		p := append(clonePath(path), fmt.Sprint(i))
		if err := validateString(id, p); err != nil {
			return err
		}
		if _, dup := seen[id]; dup {
			return errors.New(errors.PhaseValidate, errors.KindInvalidData).
				Path(p...).
				Value(id).
				Detail("duplicate id %q in set", id).
				Build()
		}
		seen[id] = struct{}{}
	}
	return nil
}

func validateString(s string, path []string, field ...string) error {
	if utf8.ValidString(s) {
		return nil
	}
	return errors.InvalidUTF8(errors.PhaseValidate, append(clonePath(path), field...), []byte(s))
}

func clonePath(path []string) []string {
	out := make([]string, len(path), len(path)+4)
	copy(out, path)
	return out
}
