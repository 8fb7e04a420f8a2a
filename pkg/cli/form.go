package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Field is one line of a form.
type Field struct {
	Label       string
	Placeholder string
	Value       string
	Secret      bool
}

// Validator checks the values before the form closes. A non-empty
// result is shown and keeps the form open.
type Validator func(values []string) string

type formModel struct {
	title     string
	fields    []Field
	inputs    []textinput.Model
	focus     int
	validate  Validator
	err       string
	submitted bool
	cancelled bool
}

// ErrFormCancelled is returned when the user leaves a form with Esc.
var ErrFormCancelled = fmt.Errorf("cancelled")

// RunForm asks for fields in the terminal and returns their values in
// order.
func RunForm(title string, validate Validator, fields ...Field) ([]string, error) {
	result, err := tea.NewProgram(newFormModel(title, validate, fields)).Run()
	if err != nil {
		return nil, err
	}
	final, ok := result.(formModel)
	if !ok {
		return nil, fmt.Errorf("form failed to return results")
	}
	if !final.submitted {
		return nil, ErrFormCancelled
	}
	return final.values(), nil
}

// CredentialsForm collects an email and a masked password.
func CredentialsForm(email string) ([]Field, Validator) {
	fields := []Field{
		{Label: "Email", Placeholder: "you@example.com", Value: email},
		{Label: "Password", Secret: true},
	}
	return fields, func(v []string) string {
		if strings.TrimSpace(v[0]) == "" || v[1] == "" {
			return "Email and password are required."
		}
		return ""
	}
}

func newFormModel(title string, validate Validator, fields []Field) formModel {
	m := formModel{title: title, fields: fields, validate: validate}
	for i, f := range fields {
		in := textinput.New()
		in.Prompt = stylePrompt.Render(fmt.Sprintf("%-10s ", f.Label))
		in.Placeholder = f.Placeholder
		in.SetValue(f.Value)
		if f.Secret {
			in.EchoMode = textinput.EchoPassword
			in.EchoCharacter = '•'
		}
		if i == 0 {
			in.Focus()
		}
		m.inputs = append(m.inputs, in)
	}
	// start on the first empty field
	for i, f := range fields {
		if f.Value == "" {
			m.setFocus(i)
			break
		}
	}
	return m
}

func (m *formModel) setFocus(i int) tea.Cmd {
	m.inputs[m.focus].Blur()
	m.focus = (i + len(m.inputs)) % len(m.inputs)
	return m.inputs[m.focus].Focus()
}

func (m formModel) values() []string {
	out := make([]string, len(m.inputs))
	for i, in := range m.inputs {
		out[i] = in.Value()
	}
	return out
}

func (m formModel) Init() tea.Cmd { return textinput.Blink }

func (m formModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit
		case "tab", "down":
			cmd := m.setFocus(m.focus + 1)
			return m, cmd
		case "shift+tab", "up":
			cmd := m.setFocus(m.focus - 1)
			return m, cmd
		case "enter":
			if m.focus < len(m.inputs)-1 {
				cmd := m.setFocus(m.focus + 1)
				return m, cmd
			}
			if m.validate != nil {
				if m.err = m.validate(m.values()); m.err != "" {
					return m, nil
				}
			}
			m.submitted = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m formModel) View() string {
	if m.submitted || m.cancelled {
		return ""
	}
	var b strings.Builder
	b.WriteString(styleTitle.Render(m.title) + "\n\n")
	if m.err != "" {
		b.WriteString(styleError.Render(m.err) + "\n\n")
	}
	for _, in := range m.inputs {
		b.WriteString(in.View() + "\n")
	}
	b.WriteString("\n" + stylePrompt.Render("Enter to continue · Tab to switch · Esc to cancel"))
	return b.String()
}
