package message

import (
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	msgerrors "github.com/wippyai/msgwire/errors"
)

func sampleButton() Button {
	return Button{
		ID: "1",
		Render: RenderData{
			Label:        "⬅️上一页",
			VisitedLabel: "⬅️上一页",
			Style:        StyleBlue,
		},
		Action: ActionData{
			Type:           ActionCommand,
			Permission:     NewPermission(PermissionEveryone, nil, nil),
			UnsupportedTip: "兼容文本",
			Data:           "data",
			Reply:          true,
			Enter:          true,
		},
	}
}

func TestNew_Valid(t *testing.T) {
	m, err := New(Group, 123, 12345678, 123456789,
		NewText("你好世界"),
		NewKeyboard(NewRow(sampleButton())),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(m.Elements) != 2 {
		t.Fatalf("elements = %d, want 2", len(m.Elements))
	}
	if m.Elements[0].Kind() != KindText || m.Elements[1].Kind() != KindKeyboard {
		t.Errorf("kinds = %v, %v", m.Elements[0].Kind(), m.Elements[1].Kind())
	}
}

func TestValidate(t *testing.T) {
	badStyle := sampleButton()
	badStyle.Render.Style = -1

	badAction := sampleButton()
	badAction.Action.Type = -3

	badPerm := sampleButton()
	badPerm.Action.Permission.Kind = -1

	dupRoles := sampleButton()
	dupRoles.Action.Permission.RoleIDs = []string{"a", "b", "a"}

	badUTF8 := sampleButton()
	badUTF8.Render.Label = string([]byte{0xff, 0xfe})

	tests := []struct {
		name string
		msg  *Message
		kind msgerrors.Kind
		path string
	}{
		{
			name: "unknown message type",
			msg:  &Message{Type: 7, Elements: []Element{NewText("x")}},
			kind: msgerrors.KindInvalidEnum,
			path: "message_type",
		},
		{
			name: "peer id above i64",
			msg:  &Message{Type: User, PeerID: 1 << 63, Elements: []Element{NewText("a")}},
			kind: msgerrors.KindOverflow,
			path: "peer_id",
		},
		{
			name: "empty elements",
			msg:  &Message{Type: Group},
			kind: msgerrors.KindFieldMissing,
			path: "elements",
		},
		{
			name: "nil element",
			msg:  &Message{Type: User, Elements: []Element{NewText("a"), nil}},
			kind: msgerrors.KindInvalidData,
			path: "elements.1",
		},
		{
			name: "invalid utf8 text",
			msg:  &Message{Type: User, Elements: []Element{NewText(string([]byte{0xc3}))}},
			kind: msgerrors.KindInvalidUTF8,
			path: "elements.0.text",
		},
		{
			name: "keyboard without rows",
			msg:  &Message{Type: Group, Elements: []Element{Keyboard{}}},
			kind: msgerrors.KindFieldMissing,
			path: "elements.0.rows",
		},
		{
			name: "row without buttons",
			msg:  &Message{Type: Group, Elements: []Element{NewKeyboard(NewRow(sampleButton()), NewRow())}},
			kind: msgerrors.KindFieldMissing,
			path: "elements.0.rows.1.buttons",
		},
		{
			name: "negative style",
			msg:  &Message{Type: Group, Elements: []Element{NewKeyboard(NewRow(sampleButton(), badStyle))}},
			kind: msgerrors.KindInvalidEnum,
			path: "elements.0.rows.0.buttons.1.render_data.style",
		},
		{
			name: "negative action type",
			msg:  &Message{Type: Group, Elements: []Element{NewKeyboard(NewRow(badAction))}},
			kind: msgerrors.KindInvalidEnum,
			path: "elements.0.rows.0.buttons.0.action.type",
		},
		{
			name: "negative permission",
			msg:  &Message{Type: Group, Elements: []Element{NewKeyboard(NewRow(badPerm))}},
			kind: msgerrors.KindInvalidEnum,
			path: "elements.0.rows.0.buttons.0.action.permission.type",
		},
		{
			name: "duplicate role id",
			msg:  &Message{Type: Group, Elements: []Element{NewKeyboard(NewRow(dupRoles))}},
			kind: msgerrors.KindInvalidData,
			path: "elements.0.rows.0.buttons.0.action.permission.specify_role_ids.2",
		},
		{
			name: "invalid utf8 label",
			msg:  &Message{Type: Group, Elements: []Element{NewKeyboard(NewRow(badUTF8))}},
			kind: msgerrors.KindInvalidUTF8,
			path: "elements.0.rows.0.buttons.0.render_data.label",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, msgerrors.ErrValidation) {
				t.Fatalf("error %v is not a validation error", err)
			}
			var e *msgerrors.Error
			if !errors.As(err, &e) {
				t.Fatalf("error %T is not *errors.Error", err)
			}
			if e.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", e.Kind, tt.kind)
			}
			if e.PathString() != tt.path {
				t.Errorf("Path = %q, want %q", e.PathString(), tt.path)
			}
		})
	}
}

func TestValidate_LargestPeerID(t *testing.T) {
	if _, err := New(Group, math.MaxInt64, 0, 0, NewText("a")); err != nil {
		t.Errorf("peer id %d should pass: %v", uint64(math.MaxInt64), err)
	}
}

func TestValidate_UnknownEnumValuesPass(t *testing.T) {
	b := sampleButton()
	b.Render.Style = 9
	b.Action.Type = 42
	b.Action.Permission.Kind = 17
	if _, err := New(User, 1, 0, 0, NewKeyboard(NewRow(b))); err != nil {
		t.Errorf("non-negative unknown enum values should pass: %v", err)
	}
}

func TestNewPermission_Dedupes(t *testing.T) {
	p := NewPermission(PermissionSpecifiedRoles, []string{"r2", "r1", "r2", "r3", "r1"}, []string{"u"})
	want := []string{"r2", "r1", "r3"}
	if strings.Join(p.RoleIDs, ",") != strings.Join(want, ",") {
		t.Errorf("RoleIDs = %v, want %v", p.RoleIDs, want)
	}
	if len(p.UserIDs) != 1 {
		t.Errorf("UserIDs = %v", p.UserIDs)
	}
	empty := NewPermission(PermissionEveryone, []string{}, nil)
	if empty.RoleIDs != nil || empty.UserIDs != nil {
		t.Errorf("empty sets should normalize to nil: %+v", empty)
	}
}

func TestEqual(t *testing.T) {
	a, _ := New(Group, 1, 2, 3, NewText("x"), NewKeyboard(NewRow(sampleButton())))
	b, _ := New(Group, 1, 2, 3, NewText("x"), NewKeyboard(NewRow(sampleButton())))
	if !a.Equal(b) {
		t.Error("identical messages should be equal")
	}

	withEmpty := sampleButton()
	withEmpty.Action.Permission.RoleIDs = []string{}
	c, _ := New(Group, 1, 2, 3, NewText("x"), NewKeyboard(NewRow(withEmpty)))
	if !a.Equal(c) {
		t.Error("nil and empty id sets should be equal")
	}

	d, _ := New(Group, 1, 2, 4, NewText("x"), NewKeyboard(NewRow(sampleButton())))
	if a.Equal(d) {
		t.Error("different nonce should not be equal")
	}

	other := sampleButton()
	other.Action.Enter = false
	e, _ := New(Group, 1, 2, 3, NewText("x"), NewKeyboard(NewRow(other)))
	if a.Equal(e) {
		t.Error("different button action should not be equal")
	}

	var nilMsg *Message
	if nilMsg.Equal(a) || !nilMsg.Equal(nil) {
		t.Error("nil handling")
	}
}

func TestWithRandomFields(t *testing.T) {
	m, _ := New(User, 5, 0, 0, NewText("hi"))
	r := rand.New(rand.NewPCG(1, 2))
	filled := m.WithRandomFields(r)

	r2 := rand.New(rand.NewPCG(1, 2))
	if filled.Sequence != r2.Uint32() || filled.RandomNonce != r2.Uint32() {
		t.Error("fields should be drawn in order sequence, nonce")
	}
	if m.Sequence != 0 || m.RandomNonce != 0 {
		t.Error("original message must not change")
	}
}

func TestNewButtonID(t *testing.T) {
	a, b := NewButtonID(), NewButtonID()
	if len(a) != 36 || a == b {
		t.Errorf("ids %q %q", a, b)
	}
}
