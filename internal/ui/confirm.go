package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ManiVaultStudio/DevBundle/internal/infra/debuglog"
	"github.com/ManiVaultStudio/DevBundle/internal/infra/output"
)

var ErrPromptCanceled = errors.New("prompt canceled")

// PromptConfirm asks a y/n question on in/out and reports the answer. Esc and
// ctrl+c return ErrPromptCanceled.
func PromptConfirm(label string, theme Theme, useColor bool, in io.Reader, out io.Writer) (bool, error) {
	debuglog.LogEvent("", "prompt", "label", label)
	model := newConfirmModel(label, theme, useColor)
	prog := tea.NewProgram(model, tea.WithInput(in), tea.WithOutput(out))
	final, err := prog.Run()
	if err != nil {
		return false, err
	}
	m := final.(confirmModel)
	if m.err != nil {
		return false, m.err
	}
	debuglog.LogEvent("", "prompt_answer", "label", label, "value", m.value)
	return m.value, nil
}

type confirmModel struct {
	label    string
	theme    Theme
	useColor bool
	input    textinput.Model
	value    bool
	done     bool
	hint     string
	err      error
}

func newConfirmModel(label string, theme Theme, useColor bool) confirmModel {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = "y/n"
	ti.CharLimit = 3
	ti.Focus()
	if useColor {
		ti.PlaceholderStyle = theme.Muted
	}
	return confirmModel{
		label:    label,
		theme:    theme,
		useColor: useColor,
		input:    ti,
	}
}

func (m confirmModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.err = ErrPromptCanceled
			m.done = true
			return m, tea.Quit
		case tea.KeyEnter:
			switch strings.ToLower(strings.TrimSpace(m.input.Value())) {
			case "y", "yes":
				m.value = true
				m.done = true
				return m, tea.Quit
			case "n", "no":
				m.done = true
				return m, tea.Quit
			default:
				m.hint = "answer y or n"
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m confirmModel) View() string {
	prefix := output.StepPrefix
	label := m.label
	if m.useColor {
		prefix = m.theme.Accent.Render(prefix)
		label = m.theme.Accent.Render(label)
	}
	line := fmt.Sprintf("%s%s %s (y/n): %s\n", output.Indent, prefix, label, m.input.View())
	if m.hint != "" {
		hint := m.hint
		if m.useColor {
			hint = m.theme.Warn.Render(hint)
		}
		line += fmt.Sprintf("%s%s %s\n", output.Indent+output.Indent, output.LogConnector, hint)
	}
	return line
}
