package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wippyai/msgwire"
	"github.com/wippyai/msgwire/errors"
	"github.com/wippyai/msgwire/message"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// Compose form fields, in tab order.
const (
	fieldType = iota
	fieldPeer
	fieldText
	fieldLabel
	fieldData
	fieldCount
)

var fieldPrompts = [fieldCount]struct{ prompt, placeholder string }{
	fieldType:  {"type:   ", "group or user"},
	fieldPeer:  {"peer:   ", "peer id"},
	fieldText:  {"text:   ", "message text"},
	fieldLabel: {"button: ", "label (empty for no keyboard)"},
	fieldData:  {"data:   ", "command sent when pressed"},
}

type composeState int

const (
	stateEdit composeState = iota
	stateShowResult
)

type composeModel struct {
	ctx    context.Context
	enc    msgwire.Encoder
	err    error
	result string
	inputs []textinput.Model
	focus  int
	state  composeState
}

type encodedMsg struct {
	err error
	hex string
}

func newComposeModel(ctx context.Context, enc msgwire.Encoder) *composeModel {
	m := &composeModel{ctx: ctx, enc: enc, inputs: make([]textinput.Model, fieldCount)}
	for i, f := range fieldPrompts {
		ti := textinput.New()
		ti.Prompt = f.prompt
		ti.Placeholder = f.placeholder
		ti.Width = 48
		m.inputs[i] = ti
	}
	m.inputs[fieldType].SetValue("group")
	m.inputs[fieldType].Focus()
	return m
}

// composeMessage builds a message from the form values. A non-empty button
// label adds a one-button callback keyboard after the text.
func composeMessage(values [fieldCount]string) (*message.Message, error) {
	typ, ok := message.ParseMessageType(strings.TrimSpace(values[fieldType]))
	if !ok {
		return nil, errors.InvalidEnum(errors.PhaseValidate, []string{"message_type"}, values[fieldType], "message type")
	}
	peer, err := strconv.ParseUint(strings.TrimSpace(values[fieldPeer]), 10, 64)
	if err != nil {
		return nil, errors.InvalidData(errors.PhaseValidate, []string{"peer_id"}, "peer must be an unsigned integer")
	}

	elements := []message.Element{message.NewText(values[fieldText])}
	if label := values[fieldLabel]; label != "" {
		elements = append(elements, message.NewKeyboard(message.NewRow(message.Button{
			ID:     message.NewButtonID(),
			Render: message.RenderData{Label: label, VisitedLabel: label, Style: message.StyleBlue},
			Action: message.ActionData{
				Type:       message.ActionCallback,
				Permission: message.NewPermission(message.PermissionEveryone, nil, nil),
				Data:       values[fieldData],
				Enter:      true,
			},
		})))
	}

	m, err := message.New(typ, peer, 0, 0, elements...)
	if err != nil {
		return nil, err
	}
	r := m.WithRandomFields(nil)
	return &r, nil
}

func (m *composeModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *composeModel) encode() tea.Msg {
	var values [fieldCount]string
	for i, in := range m.inputs {
		values[i] = in.Value()
	}
	msg, err := composeMessage(values)
	if err != nil {
		return encodedMsg{err: err}
	}
	out, err := msgwire.EncodeHex(m.ctx, m.enc, msg)
	return encodedMsg{hex: out, err: err}
}

func (m *composeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state == stateShowResult {
				return m, tea.Quit
			}

		case "enter":
			if m.state == stateEdit {
				return m, m.encode
			}
			m.state = stateEdit
			return m, nil

		case "esc":
			if m.state == stateShowResult {
				m.state = stateEdit
				return m, nil
			}

		case "tab", "down":
			if m.state == stateEdit {
				m.moveFocus(1)
				return m, nil
			}

		case "shift+tab", "up":
			if m.state == stateEdit {
				m.moveFocus(-1)
				return m, nil
			}
		}

	case encodedMsg:
		m.result = msg.hex
		m.err = msg.err
		m.state = stateShowResult
		return m, nil
	}

	if m.state != stateEdit {
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *composeModel) moveFocus(delta int) {
	m.inputs[m.focus].Blur()
	m.focus = (m.focus + delta + len(m.inputs)) % len(m.inputs)
	m.inputs[m.focus].Focus()
}

func (m *composeModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("msgwire compose"))
	b.WriteString("\n\n")

	switch m.state {
	case stateEdit:
		for _, in := range m.inputs {
			b.WriteString(labelStyle.Render(in.View()))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter encode • ctrl+c quit"))

	case stateShowResult:
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter edit • q quit"))
	}

	return b.String()
}

func newComposeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compose",
		Short: "Build a text and button message interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
				return errors.InvalidInput(errors.PhaseConfig, "compose needs an interactive terminal")
			}

			enc, release, err := a.encoder(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer release()

			p := tea.NewProgram(newComposeModel(cmd.Context(), enc), tea.WithAltScreen())
			final, err := p.Run()
			if err != nil {
				return err
			}
			if m, ok := final.(*composeModel); ok && m.result != "" {
				fmt.Fprintln(cmd.OutOrStdout(), m.result)
			}
			return nil
		},
	}
}
