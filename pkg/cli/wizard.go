package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zdunecki/internnav/pkg/wizard"
)

type optionItem struct {
	title string
	desc  string
	value string
}

func (i optionItem) Title() string       { return i.title }
func (i optionItem) Description() string { return i.desc }
func (i optionItem) FilterValue() string { return i.title }

var (
	styleTitle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	styleSubtitle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	styleError     = lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true)
	stylePrompt    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	styleSummary   = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
	styleHighlight = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
)

// ResumeScanner uploads the resume at path and returns the extracted
// skills as the profile stores them.
type ResumeScanner func(ctx context.Context, path string) (string, error)

type WizardOption func(*wizardModel)

// WithResumeScanner scans upload steps on enter and prefills target with
// the extracted skills.
func WithResumeScanner(scan ResumeScanner, target string) WizardOption {
	return func(m *wizardModel) {
		m.scan = scan
		m.scanTarget = target
	}
}

type submittedMsg struct{ err error }

type scannedMsg struct {
	skills string
	err    error
}

type wizardModel struct {
	ctx  context.Context
	ctrl *wizard.Controller

	list    list.Model
	input   textinput.Model
	details textinput.Model
	// field is the cursor within a group step
	field          int
	detailsFocused bool

	scan       ResumeScanner
	scanTarget string
	inflight   *sync.WaitGroup
	busy       string

	validationErr string
	notice        string
	width         int
	height        int
}

// RunWizard drives ctrl in the terminal until it reaches a terminal
// state. Leaving the program any other way cancels the wizard.
func RunWizard(ctx context.Context, ctrl *wizard.Controller, opts ...WizardOption) (wizard.Outcome, error) {
	model := newWizardModel(ctx, ctrl, opts...)
	prog := tea.NewProgram(model, tea.WithAltScreen())
	_, runErr := prog.Run()

	model.inflight.Wait()
	if !wizard.Terminal(ctrl.State()) {
		if err := ctrl.Cancel(); err != nil {
			return wizard.Outcome{}, fmt.Errorf("close wizard: %w", err)
		}
	}
	out := <-ctrl.Done()
	if runErr != nil {
		return out, runErr
	}
	return out, nil
}

func newWizardModel(ctx context.Context, ctrl *wizard.Controller, opts ...WizardOption) wizardModel {
	m := wizardModel{
		ctx:      ctx,
		ctrl:     ctrl,
		list:     newList("", nil),
		inflight: &sync.WaitGroup{},
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.load()
	return m
}

func newList(title string, items []list.Item) list.Model {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	delegate.SetSpacing(0)
	delegate.Styles.NormalTitle = delegate.Styles.NormalTitle.Foreground(lipgloss.Color("252"))
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(lipgloss.Color("205")).Bold(true)
	l := list.New(items, delegate, 0, 0)
	l.Title = styleTitle.Render(title)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowPagination(false)
	l.KeyMap.Quit.SetEnabled(false)
	l.KeyMap.ForceQuit.SetEnabled(false)
	l.KeyMap.ShowFullHelp.SetEnabled(false)
	l.KeyMap.CloseFullHelp.SetEnabled(false)
	return l
}

func newInput(placeholder, value string) textinput.Model {
	in := textinput.New()
	in.Prompt = stylePrompt.Render("> ")
	in.Placeholder = placeholder
	in.SetValue(value)
	in.Focus()
	return in
}

// step is the definition the cursor is on: the step itself, or the
// focused field of a group.
func (m wizardModel) step() (wizard.StepDefinition, int, bool) {
	idx, ok := m.ctrl.Index()
	if !ok {
		return wizard.StepDefinition{}, 0, false
	}
	def := m.ctrl.Catalog().Step(idx)
	if def.Kind == wizard.KindGroup && len(def.Fields) > 0 {
		f := m.field
		if f >= len(def.Fields) {
			f = len(def.Fields) - 1
		}
		return def.Fields[f], idx, true
	}
	return def, idx, true
}

// load rebuilds the widgets for the current step.
func (m *wizardModel) load() {
	m.validationErr = ""
	m.detailsFocused = false
	def, idx, ok := m.step()
	if !ok {
		return
	}

	if def.Kind.Selects() {
		cursor := m.list.Index()
		m.list = newList(m.heading(idx, def), m.optionItems(def))
		if a, ok := m.ctrl.Answer(def.ID); ok && def.Kind != wizard.KindMultiSelect {
			for i, label := range def.Labels() {
				if label == a.Text {
					cursor = i
				}
			}
		} else if cursor >= len(def.Options) {
			cursor = 0
		}
		m.list.Select(cursor)
		if def.Kind == wizard.KindSingleSpecify {
			text, _ := m.ctrl.Snapshot().Details(def.ID)
			m.details = newInput("Please specify", text)
			m.details.Blur()
			m.detailsFocused = false
		}
	} else {
		value := ""
		if a, ok := m.ctrl.Answer(def.ID); ok {
			value = a.Text
		}
		m.input = newInput(def.Placeholder, value)
	}
	m.applySize()
}

func (m wizardModel) heading(idx int, def wizard.StepDefinition) string {
	c := m.ctrl.Catalog()
	prompt := def.Prompt
	if parent := c.Step(idx); parent.Kind == wizard.KindGroup && parent.Prompt != "" {
		prompt = parent.Prompt + ": " + def.Prompt
	}
	return fmt.Sprintf("%d/%d  %s", idx+1, c.Len(), prompt)
}

func (m wizardModel) optionItems(def wizard.StepDefinition) []list.Item {
	answer, _ := m.ctrl.Answer(def.ID)
	items := make([]list.Item, 0, len(def.Options))
	for _, opt := range def.Options {
		mark := "( ) "
		if def.Kind == wizard.KindMultiSelect {
			mark = "[ ] "
			if answer.Contains(opt.Label) {
				mark = "[x] "
			}
		} else if answer.Text == opt.Label {
			mark = "(•) "
		}
		items = append(items, optionItem{title: mark + opt.Label, value: opt.Label})
	}
	return items
}

func (m *wizardModel) applySize() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	height := m.height - 8
	if height < 4 {
		height = 4
	}
	if def, _, ok := m.step(); ok && def.Kind.Selects() {
		m.list.SetSize(m.width, height)
	}
	m.input.Width = m.width - 4
	m.details.Width = m.width - 4
}

func (m wizardModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m wizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.applySize()
		return m, nil
	case submittedMsg:
		m.busy = ""
		if msg.err == nil {
			return m, tea.Quit
		}
		m.load()
		m.validationErr = m.ctrl.LastError()
		return m, nil
	case scannedMsg:
		m.busy = ""
		return m.handleScan(msg)
	case tea.KeyMsg:
		if m.busy != "" {
			return m, nil
		}
		switch msg.String() {
		case "ctrl+c", "esc":
			if err := m.ctrl.Cancel(); err != nil {
				m.validationErr = err.Error()
				return m, nil
			}
			return m, tea.Quit
		case "ctrl+s":
			if err := m.ctrl.Skip(); err != nil {
				m.validationErr = err.Error()
				if errors.Is(err, wizard.ErrNotSkippable) {
					m.validationErr = "This wizard cannot be skipped."
				}
				return m, nil
			}
			return m, tea.Quit
		case "tab":
			return m.forward()
		case "shift+tab":
			return m.back()
		}
	}

	def, _, ok := m.step()
	if !ok {
		return m, nil
	}
	if def.Kind.Selects() {
		return m.updateSelect(def, msg)
	}
	return m.updateText(def, msg)
}

func (m wizardModel) updateSelect(def wizard.StepDefinition, msg tea.Msg) (tea.Model, tea.Cmd) {
	key, isKey := msg.(tea.KeyMsg)

	if m.detailsFocused {
		switch {
		case isKey && key.Type == tea.KeyEnter:
			return m.forward()
		case isKey && (key.Type == tea.KeyUp || key.Type == tea.KeyDown):
			m.detailsFocused = false
			m.details.Blur()
		default:
			var cmd tea.Cmd
			m.details, cmd = m.details.Update(msg)
			_ = m.ctrl.SetDetails(def.ID, m.details.Value())
			return m, cmd
		}
	}

	if isKey && key.Type == tea.KeyEnter {
		return m.choose(def)
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// choose applies the highlighted option. A single choice moves on by
// itself unless it opens the details field.
func (m wizardModel) choose(def wizard.StepDefinition) (tea.Model, tea.Cmd) {
	item, ok := m.list.SelectedItem().(optionItem)
	if !ok {
		return m, nil
	}
	was := isSelected(m.ctrl, def.ID, item.value)
	if err := m.ctrl.SelectOption(def.ID, item.value); err != nil {
		m.validationErr = err.Error()
		return m, nil
	}
	m.validationErr = ""
	cursor := m.list.Index()
	m.list.SetItems(m.optionItems(def))
	m.list.Select(cursor)

	switch {
	case def.Kind == wizard.KindMultiSelect:
		if !was && !isSelected(m.ctrl, def.ID, item.value) {
			m.notice = fmt.Sprintf("You can pick up to %d.", def.MaxSelections)
		} else {
			m.notice = ""
		}
		return m, nil
	case m.ctrl.NeedsDetails(def.ID):
		m.detailsFocused = true
		cmd := m.details.Focus()
		return m, cmd
	}

	idx, _ := m.ctrl.Index()
	parent := m.ctrl.Catalog().Step(idx)
	if parent.Kind == wizard.KindGroup && m.field < len(parent.Fields)-1 {
		m.field++
		m.load()
		return m, nil
	}
	return m.forward()
}

func isSelected(ctrl *wizard.Controller, id, label string) bool {
	a, _ := ctrl.Answer(id)
	return a.Contains(label)
}

func (m wizardModel) updateText(def wizard.StepDefinition, msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyEnter {
		value := strings.TrimSpace(m.input.Value())
		if def.Kind == wizard.KindUpload && value != "" && m.scan != nil {
			return m.startScan(value)
		}
		return m.forward()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if err := m.ctrl.SetText(def.ID, m.input.Value()); err != nil {
		m.validationErr = err.Error()
	}
	return m, cmd
}

func (m wizardModel) startScan(path string) (tea.Model, tea.Cmd) {
	m.busy = "Scanning resume..."
	m.validationErr = ""
	scan, ctx, wg := m.scan, m.ctx, m.inflight
	wg.Add(1)
	return m, func() tea.Msg {
		defer wg.Done()
		skills, err := scan(ctx, path)
		return scannedMsg{skills: skills, err: err}
	}
}

func (m wizardModel) handleScan(msg scannedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.validationErr = msg.err.Error()
		return m, nil
	}
	if m.scanTarget != "" && msg.skills != "" {
		if err := m.ctrl.Prefill(m.scanTarget, msg.skills); err != nil {
			m.validationErr = err.Error()
			return m, nil
		}
	}
	if msg.skills == "" {
		m.notice = "No skills were found in the resume."
	} else {
		m.notice = "Skills extracted: " + msg.skills
	}
	return m.forward()
}

func (m wizardModel) forward() (tea.Model, tea.Cmd) {
	idx, ok := m.ctrl.Index()
	if !ok {
		return m, nil
	}
	if idx == m.ctrl.Catalog().Len()-1 {
		if !m.ctrl.CanSubmit() {
			m.validationErr = notAnswered(m.ctrl, idx)
			return m, nil
		}
		m.busy = "Submitting..."
		m.validationErr = ""
		ctrl, ctx, wg := m.ctrl, m.ctx, m.inflight
		wg.Add(1)
		return m, func() tea.Msg {
			defer wg.Done()
			return submittedMsg{err: ctrl.Submit(ctx)}
		}
	}

	if err := m.ctrl.Advance(); err != nil {
		if errors.Is(err, wizard.ErrNotAnswered) {
			m.validationErr = notAnswered(m.ctrl, idx)
		} else {
			m.validationErr = err.Error()
		}
		return m, nil
	}
	m.field = 0
	m.load()
	return m, nil
}

func (m wizardModel) back() (tea.Model, tea.Cmd) {
	if m.field > 0 {
		m.field--
		m.load()
		return m, nil
	}
	if err := m.ctrl.Retreat(); err != nil {
		return m, nil
	}
	idx, _ := m.ctrl.Index()
	if prev := m.ctrl.Catalog().Step(idx); prev.Kind == wizard.KindGroup {
		m.field = len(prev.Fields) - 1
	}
	m.load()
	return m, nil
}

func notAnswered(ctrl *wizard.Controller, idx int) string {
	if ctrl.Catalog().Step(idx).Kind == wizard.KindGroup {
		return "Please answer every question on this step."
	}
	return "Please answer this question to continue."
}

func (m wizardModel) View() string {
	if wizard.Terminal(m.ctrl.State()) {
		return ""
	}

	var b strings.Builder
	if title := m.ctrl.Catalog().Title(); title != "" {
		b.WriteString(styleHighlight.Render(title) + "\n\n")
	}
	if m.validationErr != "" {
		b.WriteString(styleError.Render(m.validationErr) + "\n\n")
	}

	def, idx, ok := m.step()
	if !ok {
		b.WriteString(styleSubtitle.Render(m.busy))
		return b.String()
	}

	if def.Kind.Selects() {
		b.WriteString(m.list.View())
		if def.Kind == wizard.KindSingleSpecify && m.ctrl.NeedsDetails(def.ID) {
			b.WriteString("\n" + styleSubtitle.Render("Please specify:") + "\n" + m.details.View())
		}
	} else {
		b.WriteString(styleTitle.Render(m.heading(idx, def)) + "\n")
		if def.Hint != "" {
			b.WriteString(styleSubtitle.Render(def.Hint) + "\n")
		}
		b.WriteString("\n" + m.input.View())
	}
	if def.Hint != "" && def.Kind.Selects() {
		b.WriteString("\n" + styleSubtitle.Render(def.Hint))
	}

	b.WriteString("\n\n")
	switch {
	case m.busy != "":
		b.WriteString(styleSummary.Render(m.busy))
	case m.notice != "":
		b.WriteString(styleSummary.Render(m.notice))
	}
	b.WriteString("\n" + stylePrompt.Render(m.help(def)))
	return b.String()
}

func (m wizardModel) help(def wizard.StepDefinition) string {
	keys := []string{}
	switch {
	case def.Kind == wizard.KindMultiSelect:
		keys = append(keys, "Enter to toggle")
	case def.Kind.Selects():
		keys = append(keys, "Enter to choose")
	case def.Kind == wizard.KindUpload && m.scan != nil:
		keys = append(keys, "Enter to scan")
	}
	if idx, _ := m.ctrl.Index(); idx == m.ctrl.Catalog().Len()-1 {
		keys = append(keys, "Tab to submit")
	} else {
		keys = append(keys, "Tab for next")
	}
	keys = append(keys, "Shift+Tab for back")
	if m.ctrl.Catalog().IsSkippable() {
		keys = append(keys, "Ctrl+S to skip")
	}
	keys = append(keys, "Esc to close")
	return strings.Join(keys, " · ")
}
