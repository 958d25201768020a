package message

import (
	"math/rand/v2"
	"reflect"
	"slices"

	"github.com/google/uuid"
)

// MessageType selects the routing target of a message.
type MessageType uint8

const (
	Group MessageType = iota + 1
	User
)

func (t MessageType) String() string {
	switch t {
	case Group:
		return "group"
	case User:
		return "user"
	default:
		return "unknown"
	}
}

// ParseMessageType maps the input name to a MessageType.
func ParseMessageType(s string) (MessageType, bool) {
	switch s {
	case "group":
		return Group, true
	case "user":
		return User, true
	default:
		return 0, false
	}
}

// ElementKind is the discriminant of the Element union.
type ElementKind uint8

const (
	KindText ElementKind = iota + 1
	KindKeyboard
)

func (k ElementKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindKeyboard:
		return "keyboard"
	default:
		return "unknown"
	}
}

// Element is one segment of a message body.
// The wire encoder knows Text and Keyboard; any other implementation is
// rejected at encode time.
type Element interface {
	Kind() ElementKind
}

// Text is a plain text segment.
type Text struct {
	Content string
}

func (Text) Kind() ElementKind { return KindText }

// Keyboard is an inline keyboard made of button rows.
type Keyboard struct {
	Rows []ButtonRow
}

func (Keyboard) Kind() ElementKind { return KindKeyboard }

type ButtonRow struct {
	Buttons []Button
}

type Button struct {
	ID     string
	Render RenderData
	Action ActionData
}

type RenderData struct {
	Label        string
	VisitedLabel string
	Style        ButtonStyle
}

type ActionData struct {
	Type           ActionType
	Permission     Permission
	UnsupportedTip string
	Data           string
	Reply          bool
	Enter          bool
}

// Permission restricts who may press a button.
// RoleIDs and UserIDs are sets: no duplicates, order of first occurrence kept.
type Permission struct {
	Kind    PermissionKind
	RoleIDs []string
	UserIDs []string
}

// ButtonStyle is the render style of a button. Values outside the known
// constants are passed through to the wire unchanged.
type ButtonStyle int32

const (
	StyleGrey ButtonStyle = 0
	StyleBlue ButtonStyle = 1
)

// ActionType is what pressing a button does.
type ActionType int32

const (
	ActionJump     ActionType = 0
	ActionCallback ActionType = 1
	ActionCommand  ActionType = 2
)

// PermissionKind selects who may press a button.
type PermissionKind int32

const (
	PermissionSpecifiedUsers PermissionKind = 0
	PermissionManagers       PermissionKind = 1
	PermissionEveryone       PermissionKind = 2
	PermissionSpecifiedRoles PermissionKind = 3
)

// Message is an outbound chat message. Build it with New or decode it with
// ParseJSON/ParseYAML; treat it as immutable afterwards.
type Message struct {
	Elements    []Element
	PeerID      uint64
	Sequence    uint32
	RandomNonce uint32
	Type        MessageType
}

// New constructs a validated message.
func New(typ MessageType, peerID uint64, sequence, nonce uint32, elements ...Element) (*Message, error) {
	m := &Message{
		Type:        typ,
		PeerID:      peerID,
		Sequence:    sequence,
		RandomNonce: nonce,
		Elements:    elements,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// NewText returns a text element.
func NewText(content string) Text {
	return Text{Content: content}
}

// NewKeyboard returns a keyboard element.
func NewKeyboard(rows ...ButtonRow) Keyboard {
	return Keyboard{Rows: rows}
}

// NewRow returns a button row.
func NewRow(buttons ...Button) ButtonRow {
	return ButtonRow{Buttons: buttons}
}

// NewPermission returns a permission with duplicate ids removed.
func NewPermission(kind PermissionKind, roleIDs, userIDs []string) Permission {
	return Permission{
		Kind:    kind,
		RoleIDs: dedupe(roleIDs),
		UserIDs: dedupe(userIDs),
	}
}

// NewButtonID returns a random button id.
func NewButtonID() string {
	return uuid.NewString()
}

// WithRandomFields returns a copy of m with Sequence and RandomNonce drawn
// from r. A nil r uses the global source.
func (m Message) WithRandomFields(r *rand.Rand) Message {
	if r == nil {
		m.Sequence = rand.Uint32()
		m.RandomNonce = rand.Uint32()
		return m
	}
	m.Sequence = r.Uint32()
	m.RandomNonce = r.Uint32()
	return m
}

// Equal reports structural equality. Nil and empty slices are equal.
func (m *Message) Equal(o *Message) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.Type != o.Type || m.PeerID != o.PeerID || m.Sequence != o.Sequence || m.RandomNonce != o.RandomNonce {
		return false
	}
	return slices.EqualFunc(m.Elements, o.Elements, elementEqual)
}

func elementEqual(a, b Element) bool {
	switch x := a.(type) {
	case Text:
		y, ok := b.(Text)
		return ok && x == y
	case Keyboard:
		y, ok := b.(Keyboard)
		return ok && slices.EqualFunc(x.Rows, y.Rows, rowEqual)
	default:
		return reflect.DeepEqual(a, b)
	}
}

func rowEqual(a, b ButtonRow) bool {
	return slices.EqualFunc(a.Buttons, b.Buttons, buttonEqual)
}

func buttonEqual(a, b Button) bool {
	if a.ID != b.ID || a.Render != b.Render {
		return false
	}
	x, y := a.Action, b.Action
	return x.Type == y.Type &&
		x.UnsupportedTip == y.UnsupportedTip &&
		x.Data == y.Data &&
		x.Reply == y.Reply &&
		x.Enter == y.Enter &&
		x.Permission.Kind == y.Permission.Kind &&
		slices.Equal(x.Permission.RoleIDs, y.Permission.RoleIDs) &&
		slices.Equal(x.Permission.UserIDs, y.Permission.UserIDs)
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
