package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"

	"github.com/goccy/go-yaml"

	"github.com/wippyai/msgwire/errors"
)

// Input document shape. Field names follow the request format accepted by
// the wasm encoding module so the same document feeds both engines. Every
// field is required; pointers and empty json.Numbers mark absent keys.

type rawMessage struct {
	MessageType  *string      `json:"message_type"`
	PeerID       json.Number  `json:"peer_id"`
	Seq          json.Number  `json:"seq"`
	RandomNumber json.Number  `json:"random_number"`
	Message      []rawElement `json:"message"`
}

type rawElement struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type rawText struct {
	Text *string `json:"text"`
}

type rawKeyboard struct {
	Rows []rawRow `json:"rows"`
}

type rawRow struct {
	Buttons []rawButton `json:"buttons"`
}

type rawButton struct {
	ID         *string        `json:"id"`
	RenderData *rawRenderData `json:"render_data"`
	Action     *rawAction     `json:"action"`
}

type rawRenderData struct {
	Label        *string     `json:"label"`
	VisitedLabel *string     `json:"visited_label"`
	Style        json.Number `json:"style"`
}

type rawAction struct {
	Type          json.Number    `json:"type"`
	Permission    *rawPermission `json:"permission"`
	UnsupportTips *string        `json:"unsupport_tips"`
	Data          *string        `json:"data"`
	Reply         *bool          `json:"reply"`
	Enter         *bool          `json:"enter"`
}

type rawPermission struct {
	Type           json.Number `json:"type"`
	SpecifyRoleIDs []string    `json:"specify_role_ids"`
	SpecifyUserIDs []string    `json:"specify_user_ids"`
}

// ParseOption adjusts ParseJSON, ParseYAML and Parse.
type ParseOption func(*parseConfig)

type parseConfig struct {
	rng  *rand.Rand
	fill bool
}

// FillRandom draws seq and random_number from r instead of the document,
// which may then omit them. A nil r uses the global source.
func FillRandom(r *rand.Rand) ParseOption {
	return func(c *parseConfig) {
		c.fill = true
		c.rng = r
	}
}

// ParseJSON decodes and validates a message document. Object key order in
// the input never affects the result.
func ParseJSON(data []byte, opts ...ParseOption) (*Message, error) {
	var cfg parseConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var raw rawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, decodeError(err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New(errors.PhaseValidate, errors.KindInvalidData).
			Detail("unexpected data after document at offset %d", dec.InputOffset()).
			Build()
	}

	m, err := raw.toMessage(cfg.fill)
	if err != nil {
		return nil, err
	}
	if cfg.fill {
		filled := m.WithRandomFields(cfg.rng)
		m = &filled
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// ParseYAML decodes a YAML document with the same shape as ParseJSON.
func ParseYAML(data []byte, opts ...ParseOption) (*Message, error) {
	js, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, errors.New(errors.PhaseValidate, errors.KindInvalidData).
			Detail("parse YAML").
			Cause(err).
			Build()
	}
	return ParseJSON(js, opts...)
}

// Parse sniffs the document format: a leading '{' selects JSON, anything
// else YAML.
func Parse(data []byte, opts ...ParseOption) (*Message, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return ParseJSON(trimmed, opts...)
	}
	return ParseYAML(data, opts...)
}

// MarshalJSON renders the message in the input document shape.
func (m *Message) MarshalJSON() ([]byte, error) {
	raw := rawMessage{
		PeerID:       json.Number(strconv.FormatUint(m.PeerID, 10)),
		Seq:          json.Number(strconv.FormatUint(uint64(m.Sequence), 10)),
		RandomNumber: json.Number(strconv.FormatUint(uint64(m.RandomNonce), 10)),
		Message:      make([]rawElement, 0, len(m.Elements)),
	}
	typ := m.Type.String()
	raw.MessageType = &typ

	for i, el := range m.Elements {
		var (
			kind string
			data any
		)
		switch e := el.(type) {
		case Text:
			kind, data = "text", rawText{Text: &e.Content}
		case *Text:
			kind, data = "text", rawText{Text: &e.Content}
		case Keyboard:
			kind, data = "keyboard", keyboardToRaw(e)
		case *Keyboard:
			kind, data = "keyboard", keyboardToRaw(*e)
		default:
			return nil, errors.UnsupportedVariant(errors.FieldPath("elements", i), fmt.Sprintf("%T", el))
		}
		payload, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw.Message = append(raw.Message, rawElement{Type: kind, Data: payload})
	}
	return json.Marshal(raw)
}

// UnmarshalJSON decodes and validates the input document shape.
func (m *Message) UnmarshalJSON(data []byte) error {
	parsed, err := ParseJSON(data)
	if err != nil {
		return err
	}
	*m = *parsed
	return nil
}

func keyboardToRaw(k Keyboard) rawKeyboard {
	out := rawKeyboard{Rows: make([]rawRow, len(k.Rows))}
	for r, row := range k.Rows {
		buttons := make([]rawButton, len(row.Buttons))
		for b, btn := range row.Buttons {
			buttons[b] = rawButton{
				ID: ptr(btn.ID),
				RenderData: &rawRenderData{
					Label:        ptr(btn.Render.Label),
					VisitedLabel: ptr(btn.Render.VisitedLabel),
					Style:        formatInt(int64(btn.Render.Style)),
				},
				Action: &rawAction{
					Type: formatInt(int64(btn.Action.Type)),
					Permission: &rawPermission{
						Type:           formatInt(int64(btn.Action.Permission.Kind)),
						SpecifyRoleIDs: nonNil(btn.Action.Permission.RoleIDs),
						SpecifyUserIDs: nonNil(btn.Action.Permission.UserIDs),
					},
					UnsupportTips: ptr(btn.Action.UnsupportedTip),
					Data:          ptr(btn.Action.Data),
					Reply:         ptr(btn.Action.Reply),
					Enter:         ptr(btn.Action.Enter),
				},
			}
		}
		out.Rows[r] = rawRow{Buttons: buttons}
	}
	return out
}

func (r *rawMessage) toMessage(fill bool) (*Message, error) {
	if r.MessageType == nil {
		return nil, missing(nil, "message_type")
	}
	typ, ok := ParseMessageType(*r.MessageType)
	if !ok {
		return nil, errors.InvalidEnum(errors.PhaseValidate, []string{"message_type"}, *r.MessageType, "MessageType")
	}
	peer, err := parseUint(r.PeerID, 64, "peer_id")
	if err != nil {
		return nil, err
	}

	var seq, nonce uint64
	if !fill || r.Seq != "" {
		if seq, err = parseUint(r.Seq, 32, "seq"); err != nil {
			return nil, err
		}
	}
	if !fill || r.RandomNumber != "" {
		if nonce, err = parseUint(r.RandomNumber, 32, "random_number"); err != nil {
			return nil, err
		}
	}
	if r.Message == nil {
		return nil, missing(nil, "message")
	}

	m := &Message{
		Type:        typ,
		PeerID:      peer,
		Sequence:    uint32(seq),
		RandomNonce: uint32(nonce),
		Elements:    make([]Element, 0, len(r.Message)),
	}
	for i, re := range r.Message {
		el, err := re.toElement(errors.FieldPath("message", i))
		if err != nil {
			return nil, err
		}
		m.Elements = append(m.Elements, el)
	}
	return m, nil
}

func (r *rawElement) toElement(path []string) (Element, error) {
	switch r.Type {
	case "text":
		var t rawText
		if err := unmarshalData(r.Data, &t, path); err != nil {
			return nil, err
		}
		if t.Text == nil {
			return nil, errors.FieldMissing(errors.PhaseValidate, append(path, "data"), "text")
		}
		return Text{Content: *t.Text}, nil
	case "keyboard":
		var k rawKeyboard
		if err := unmarshalData(r.Data, &k, path); err != nil {
			return nil, err
		}
		return k.toKeyboard(append(path, "data"))
	case "":
		return nil, errors.FieldMissing(errors.PhaseValidate, path, "type")
	default:
		return nil, errors.InvalidEnum(errors.PhaseValidate, append(path, "type"), r.Type, "ElementKind")
	}
}

func (r *rawKeyboard) toKeyboard(path []string) (Keyboard, error) {
	if r.Rows == nil {
		return Keyboard{}, missing(path, "rows")
	}
	k := Keyboard{Rows: make([]ButtonRow, 0, len(r.Rows))}
	for ri, row := range r.Rows {
		rowPath := append(clonePath(path), "rows", strconv.Itoa(ri))
		if row.Buttons == nil {
			return Keyboard{}, missing(rowPath, "buttons")
		}
		buttons := make([]Button, 0, len(row.Buttons))
		for bi, rb := range row.Buttons {
			btn, err := rb.toButton(append(clonePath(rowPath), "buttons", strconv.Itoa(bi)))
			if err != nil {
				return Keyboard{}, err
			}
			buttons = append(buttons, btn)
		}
		k.Rows = append(k.Rows, ButtonRow{Buttons: buttons})
	}
	return k, nil
}

func (r *rawButton) toButton(path []string) (Button, error) {
	if r.ID == nil {
		return Button{}, missing(path, "id")
	}
	render, err := r.RenderData.toRenderData(append(clonePath(path), "render_data"))
	if err != nil {
		return Button{}, err
	}
	action, err := r.Action.toAction(append(clonePath(path), "action"))
	if err != nil {
		return Button{}, err
	}
	return Button{ID: *r.ID, Render: render, Action: action}, nil
}

func (r *rawRenderData) toRenderData(path []string) (RenderData, error) {
	switch {
	case r == nil:
		return RenderData{}, missing(path[:len(path)-1], path[len(path)-1])
	case r.Label == nil:
		return RenderData{}, missing(path, "label")
	case r.VisitedLabel == nil:
		return RenderData{}, missing(path, "visited_label")
	}
	style, err := parseInt32(r.Style, append(clonePath(path), "style"))
	if err != nil {
		return RenderData{}, err
	}
	return RenderData{Label: *r.Label, VisitedLabel: *r.VisitedLabel, Style: ButtonStyle(style)}, nil
}

func (r *rawAction) toAction(path []string) (ActionData, error) {
	if r == nil {
		return ActionData{}, missing(path[:len(path)-1], path[len(path)-1])
	}
	typ, err := parseInt32(r.Type, append(clonePath(path), "type"))
	if err != nil {
		return ActionData{}, err
	}
	perm, err := r.Permission.toPermission(append(clonePath(path), "permission"))
	if err != nil {
		return ActionData{}, err
	}
	switch {
	case r.UnsupportTips == nil:
		return ActionData{}, missing(path, "unsupport_tips")
	case r.Data == nil:
		return ActionData{}, missing(path, "data")
	case r.Reply == nil:
		return ActionData{}, missing(path, "reply")
	case r.Enter == nil:
		return ActionData{}, missing(path, "enter")
	}
	return ActionData{
		Type:           ActionType(typ),
		Permission:     perm,
		UnsupportedTip: *r.UnsupportTips,
		Data:           *r.Data,
		Reply:          *r.Reply,
		Enter:          *r.Enter,
	}, nil
}

func (r *rawPermission) toPermission(path []string) (Permission, error) {
	if r == nil {
		return Permission{}, missing(path[:len(path)-1], path[len(path)-1])
	}
	kind, err := parseInt32(r.Type, append(clonePath(path), "type"))
	if err != nil {
		return Permission{}, err
	}
	switch {
	case r.SpecifyRoleIDs == nil:
		return Permission{}, missing(path, "specify_role_ids")
	case r.SpecifyUserIDs == nil:
		return Permission{}, missing(path, "specify_user_ids")
	}
	return NewPermission(PermissionKind(kind), r.SpecifyRoleIDs, r.SpecifyUserIDs), nil
}

// missing reports that field is absent from the record at path.
func missing(path []string, field string) *errors.Error {
	return errors.FieldMissing(errors.PhaseValidate, append(clonePath(path), field), field)
}

func unmarshalData(data json.RawMessage, v any, path []string) error {
	if len(data) == 0 {
		return errors.FieldMissing(errors.PhaseValidate, path, "data")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		e := decodeError(err)
		e.Path = append(append(clonePath(path), "data"), e.Path...)
		return e
	}
	return nil
}

func parseUint(n json.Number, bits int, field string) (uint64, error) {
	if n == "" {
		return 0, missing(nil, field)
	}
	v, err := strconv.ParseUint(string(n), 10, bits)
	if err == nil {
		return v, nil
	}
	if len(n) > 0 && n[0] == '-' {
		return 0, errors.New(errors.PhaseValidate, errors.KindInvalidData).
			Path(field).
			Value(string(n)).
			Detail("%s must not be negative", field).
			Build()
	}
	if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
		return 0, errors.Overflow(errors.PhaseValidate, []string{field}, string(n), fmt.Sprintf("u%d", bits))
	}
	return 0, errors.New(errors.PhaseValidate, errors.KindInvalidData).
		Path(field).
		Value(string(n)).
		Detail("%s must be an unsigned integer", field).
		Cause(err).
		Build()
}

func parseInt32(n json.Number, path []string) (int32, error) {
	if n == "" {
		return 0, missing(path[:len(path)-1], path[len(path)-1])
	}
	v, err := strconv.ParseInt(string(n), 10, 32)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return 0, errors.Overflow(errors.PhaseValidate, path, string(n), "s32")
		}
		return 0, errors.New(errors.PhaseValidate, errors.KindInvalidData).
			Path(path...).
			Value(string(n)).
			Detail("expected an integer").
			Cause(err).
			Build()
	}
	return int32(v), nil
}

func decodeError(err error) *errors.Error {
	b := errors.New(errors.PhaseValidate, errors.KindInvalidData).Cause(err)
	if te, ok := err.(*json.UnmarshalTypeError); ok {
		if te.Field != "" {
			b = b.Path(te.Field)
		}
		return b.Detail("expected %s, got %s", te.Type, te.Value).Build()
	}
	return b.Detail("malformed document").Build()
}

func formatInt(v int64) json.Number {
	return json.Number(strconv.FormatInt(v, 10))
}

func ptr[T any](v T) *T {
	return &v
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
