package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zdunecki/internnav/pkg/api"
	"github.com/zdunecki/internnav/pkg/ranking"
)

var (
	styleScoreHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("34")).Bold(true)
	styleScoreMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("178")).Bold(true)
	styleScoreLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true)
	styleDetail      = lipgloss.NewStyle().Padding(0, 2).BorderStyle(lipgloss.NormalBorder()).BorderLeft(true)
)

// Score renders a match percentage coloured by tier.
func Score(score float64) string {
	text := fmt.Sprintf("%g%%", score)
	switch ranking.ScoreTier(score) {
	case ranking.TierHigh:
		return styleScoreHigh.Render(text)
	case ranking.TierMedium:
		return styleScoreMedium.Render(text)
	}
	return styleScoreLow.Render(text)
}

// PrintPostings writes one line per posting, in the given order.
func PrintPostings(w io.Writer, postings []api.Internship) {
	if len(postings) == 0 {
		fmt.Fprintln(w, styleSubtitle.Render("No internships to show."))
		return
	}
	for i, p := range postings {
		line := fmt.Sprintf("%2d. %s  %s · %s", i+1, Score(p.MatchScore), styleHighlight.Render(p.Title), p.Company)
		if p.Stipend != "" {
			line += " · " + p.Stipend
		}
		if p.ApplicationStatus != "" {
			line += " · " + styleSummary.Render(p.ApplicationStatus)
		}
		fmt.Fprintln(w, line)
	}
}

// Posting renders the detail view of one internship.
func Posting(p api.Internship) string {
	var b strings.Builder
	b.WriteString(styleTitle.Render(p.Title) + "\n")
	b.WriteString(p.Company)
	if p.Location != "" {
		b.WriteString(" · " + p.Location)
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Match   %s\n", Score(p.MatchScore))
	if p.Stipend != "" {
		fmt.Fprintf(&b, "Stipend %s\n", p.Stipend)
	}
	if p.ApplicationStatus != "" {
		fmt.Fprintf(&b, "Status  %s\n", styleSummary.Render(p.ApplicationStatus))
	}
	if p.Description != "" {
		b.WriteString("\n" + p.Description + "\n")
	}
	section(&b, "Responsibilities", p.Responsibilities)
	section(&b, "Qualifications", p.Qualifications)
	section(&b, "Your skills", p.YourSkills)
	section(&b, "Skills to learn", p.MissingSkills)
	return strings.TrimRight(b.String(), "\n")
}

func section(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\n" + styleSubtitle.Render(title) + "\n")
	for _, it := range items {
		b.WriteString("  • " + it + "\n")
	}
}

type postingItem struct{ p api.Internship }

func (i postingItem) Title() string { return i.p.Title }
func (i postingItem) Description() string {
	return fmt.Sprintf("%s · %g%% · %s", i.p.Company, i.p.MatchScore, i.p.Stipend)
}
func (i postingItem) FilterValue() string { return i.p.Title + " " + i.p.Company }

type dashboardModel struct {
	all          []api.Internship
	key          ranking.Key
	applications bool
	list         list.Model
	width        int
	height       int
}

// RunDashboard browses postings until the user quits.
func RunDashboard(postings []api.Internship, key ranking.Key) error {
	_, err := tea.NewProgram(newDashboardModel(postings, key), tea.WithAltScreen()).Run()
	return err
}

func newDashboardModel(postings []api.Internship, key ranking.Key) dashboardModel {
	m := dashboardModel{all: postings, key: key}
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(lipgloss.Color("205")).Bold(true)
	m.list = list.New(nil, delegate, 0, 0)
	m.list.SetShowHelp(false)
	m.list.SetFilteringEnabled(false)
	m.list.SetShowStatusBar(false)
	m.refresh()
	return m
}

// visible is what the list shows: every posting, or only applications,
// sorted by the current key.
func (m dashboardModel) visible() []api.Internship {
	postings := m.all
	if m.applications {
		postings = ranking.Applications(postings)
	}
	return ranking.Sort(postings, m.key)
}

func (m *dashboardModel) refresh() {
	visible := m.visible()
	items := make([]list.Item, 0, len(visible))
	for _, p := range visible {
		items = append(items, postingItem{p: p})
	}
	m.list.SetItems(items)
	m.list.Select(0)

	view := "Recommended internships"
	if m.applications {
		view = "My applications"
	}
	m.list.Title = fmt.Sprintf("%s · sorted by %s", view, m.key)
}

func (m dashboardModel) selected() (api.Internship, bool) {
	item, ok := m.list.SelectedItem().(postingItem)
	if !ok {
		return api.Internship{}, false
	}
	return item.p, true
}

func (m dashboardModel) Init() tea.Cmd { return nil }

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(msg.Width/2, msg.Height-2)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "s":
			m.key = nextKey(m.key)
			m.refresh()
			return m, nil
		case "a":
			m.applications = !m.applications
			m.refresh()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func nextKey(k ranking.Key) ranking.Key {
	for i, key := range ranking.Keys {
		if key == k {
			return ranking.Keys[(i+1)%len(ranking.Keys)]
		}
	}
	return ranking.ByMatch
}

func (m dashboardModel) View() string {
	detail := styleSubtitle.Render("Nothing selected.")
	if p, ok := m.selected(); ok {
		detail = Posting(p)
	}
	if m.width > 0 {
		detail = styleDetail.Width(m.width/2 - 2).Render(detail)
	} else {
		detail = styleDetail.Render(detail)
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.list.View(), detail)
	return body + "\n" + stylePrompt.Render("↑/↓ to browse · s to change sort · a for my applications · q to quit")
}
