// Package fixtures holds reference messages and their expected packet
// encodings, shared by tests across packages.
package fixtures

import "github.com/wippyai/msgwire/message"

// Expected hex encodings of the reference messages.
const (
	GroupKeyboardHex = "0a041202087b12060801100018001a7a0a7812100a0e0a0ce4bda0e5a5bde4b896e7958c1264aa0361082e125b0a590a4b0a490a013112240a0fe2ac85efb88fe4b88ae4b880e9a1b5120fe2ac85efb88fe4b88ae4b880e9a1b518011a1e080212020802220ce585bce5aeb9e69687e69cac2a046461746138014001120a31313435313430303030180120cec2f10528959aef3a"
	UserTextHex      = "0a050a0308914e12060801100018001a0a0a0812060a040a02686920012802"
	GroupTextHex     = "0a041202087b12060801100018001a140a1212100a0e0a0ce4bda0e5a5bde4b896e7958c20cec2f10528959aef3a"
	PermissionHex    = "0a041202080112060801100018001a4a0a481246aa0343082e123d0a3b0a2d0a2b0a0362746e12080a014112014218001a1a0800120e080112027231120272321a02753122002a0038004000120a31313435313430303030180120002800"
	EmptyTextHex     = "0a041202080012060801100018001a080a0612040a020a0020002800"
)

// GroupKeyboardJSON is the JSON form of GroupKeyboard.
const GroupKeyboardJSON = `{
	"message_type": "group",
	"peer_id": 123,
	"message": [
		{"type": "text", "data": {"text": "你好世界"}},
		{"type": "keyboard", "data": {"rows": [{"buttons": [{
			"id": "1",
			"render_data": {"label": "⬅️上一页", "visited_label": "⬅️上一页", "style": 1},
			"action": {
				"type": 2,
				"permission": {"type": 2, "specify_role_ids": [], "specify_user_ids": []},
				"unsupport_tips": "兼容文本",
				"data": "data",
				"reply": true,
				"enter": true
			}
		}]}]}}
	],
	"seq": 12345678,
	"random_number": 123456789
}`

// GroupKeyboard is a group message with a text element followed by a
// one-button keyboard.
func GroupKeyboard() *message.Message {
	return must(message.New(message.Group, 123, 12345678, 123456789,
		message.NewText("你好世界"),
		message.NewKeyboard(message.NewRow(message.Button{
			ID: "1",
			Render: message.RenderData{
				Label:        "⬅️上一页",
				VisitedLabel: "⬅️上一页",
				Style:        message.StyleBlue,
			},
			Action: message.ActionData{
				Type:           message.ActionCommand,
				Permission:     message.NewPermission(message.PermissionEveryone, nil, nil),
				UnsupportedTip: "兼容文本",
				Data:           "data",
				Reply:          true,
				Enter:          true,
			},
		})),
	))
}

// UserText is a direct message with a single short text.
func UserText() *message.Message {
	return must(message.New(message.User, 10001, 1, 2, message.NewText("hi")))
}

// GroupText is a group message with a single text.
func GroupText() *message.Message {
	return must(message.New(message.Group, 123, 12345678, 123456789, message.NewText("你好世界")))
}

// Permission is a keyboard whose button restricts use to roles and users.
func Permission() *message.Message {
	return must(message.New(message.Group, 1, 0, 0,
		message.NewKeyboard(message.NewRow(message.Button{
			ID:     "btn",
			Render: message.RenderData{Label: "A", VisitedLabel: "B", Style: message.StyleGrey},
			Action: message.ActionData{
				Type:       message.ActionJump,
				Permission: message.NewPermission(message.PermissionManagers, []string{"r1", "r2"}, []string{"u1"}),
			},
		})),
	))
}

// EmptyText is a group message holding one empty text element.
func EmptyText() *message.Message {
	return must(message.New(message.Group, 0, 0, 0, message.NewText("")))
}

// Case pairs a reference message with its expected encoding.
type Case struct {
	Name    string
	Message func() *message.Message
	Hex     string
}

// All returns every reference case.
func All() []Case {
	return []Case{
		{"group keyboard", GroupKeyboard, GroupKeyboardHex},
		{"user text", UserText, UserTextHex},
		{"group text", GroupText, GroupTextHex},
		{"permission", Permission, PermissionHex},
		{"empty text", EmptyText, EmptyTextHex},
	}
}

func must(m *message.Message, err error) *message.Message {
	if err != nil {
		panic(err)
	}
	return m
}
