// Package tui is the interactive terminal front-end: type to get suggestions,
// pick one (or just press enter) and the print runs load below.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aryannaik/printrun-vault/internal/index"
	"github.com/aryannaik/printrun-vault/internal/render"
	"github.com/aryannaik/printrun-vault/internal/vault"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	itemStyle     = lipgloss.NewStyle().PaddingLeft(2)
	facetStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	dropdownStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238"))
)

// Refresher refreshes the product index. *index.Cache satisfies it.
type Refresher interface {
	EnsureFresh(ctx context.Context, force bool) index.Outcome
}

type refreshedMsg struct{ outcome index.Outcome }

type rowsMsg struct{ resp vault.Response }

type Model struct {
	ctx       context.Context
	session   *vault.Session
	refresher Refresher

	input      textinput.Model
	cursor     int
	dropdown   bool
	refreshing bool
	status     string
}

func New(ctx context.Context, session *vault.Session, refresher Refresher) Model {
	ti := textinput.New()
	ti.Placeholder = "Search a product, e.g. 2021 Topps Chrome"
	ti.Prompt = "› "
	ti.CharLimit = 120
	ti.Width = 60
	ti.Focus()

	return Model{
		ctx:        ctx,
		session:    session,
		refresher:  refresher,
		input:      ti,
		cursor:     -1,
		refreshing: true,
		status:     "Checking index…",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.refreshCmd(false))
}

func (m Model) refreshCmd(force bool) tea.Cmd {
	return func() tea.Msg {
		return refreshedMsg{outcome: m.refresher.EnsureFresh(m.ctx, force)}
	}
}

func (m Model) fetchCmd(req vault.Request) tea.Cmd {
	return func() tea.Msg {
		return rowsMsg{resp: m.session.Fetch(m.ctx, req)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case rowsMsg:
		m.session.Apply(msg.resp)
		return m, nil

	case refreshedMsg:
		m.refreshing = false
		m.status = describeOutcome(msg.outcome)
		if m.session.View().Selected == nil && m.input.Value() != "" {
			m.session.Type(m.input.Value())
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	suggestions := m.session.View().Suggestions

	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc":
		if m.dropdown && len(suggestions) > 0 {
			m.dropdown = false
			m.cursor = -1
			return m, nil
		}
		return m, tea.Quit

	case "up":
		if m.dropdown && len(suggestions) > 0 {
			m.cursor--
			if m.cursor < 0 {
				m.cursor = len(suggestions) - 1
			}
		}
		return m, nil

	case "down":
		if m.dropdown && len(suggestions) > 0 {
			m.cursor = (m.cursor + 1) % len(suggestions)
		}
		return m, nil

	case "tab":
		if m.dropdown && len(suggestions) > 0 {
			i := max(m.cursor, 0)
			m.pick(suggestions[i])
		}
		return m, nil

	case "enter":
		if m.dropdown && m.cursor >= 0 && m.cursor < len(suggestions) {
			m.pick(suggestions[m.cursor])
		}
		return m.search()

	case "ctrl+l":
		m.session.Clear()
		m.input.SetValue("")
		m.dropdown = false
		m.cursor = -1
		return m, nil

	case "ctrl+r":
		if m.refreshing {
			return m, nil
		}
		m.refreshing = true
		m.status = "Refreshing index…"
		return m, m.refreshCmd(true)
	}

	prev := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != prev {
		hits := m.session.Type(v)
		m.dropdown = len(hits) > 0
		m.cursor = -1
	}
	return m, cmd
}

func (m *Model) pick(e index.Entry) {
	if _, err := m.session.Pick(e.Code); err != nil {
		return
	}
	m.input.SetValue(e.DisplayName)
	m.input.CursorEnd()
	m.dropdown = false
	m.cursor = -1
}

func (m Model) search() (tea.Model, tea.Cmd) {
	m.dropdown = false
	m.cursor = -1

	req, err := m.session.Begin()
	if err != nil {
		return m, nil
	}
	m.input.SetValue(req.Entry.DisplayName)
	m.input.CursorEnd()
	return m, m.fetchCmd(req)
}

func describeOutcome(o index.Outcome) string {
	switch o.Status {
	case index.StatusRefreshed:
		return fmt.Sprintf("Index updated: %d products", o.Entries)
	case index.StatusStale:
		return fmt.Sprintf("Index refresh failed, using %d cached products", o.Entries)
	case index.StatusUnavailable:
		return "Product index unavailable. Press ctrl+r to retry."
	default:
		return fmt.Sprintf("%d products", o.Entries)
	}
}

func (m Model) View() string {
	v := m.session.View()

	var b strings.Builder
	b.WriteString(titleStyle.Render("Print Run Vault"))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")

	if m.dropdown && len(v.Suggestions) > 0 {
		var items []string
		for i, e := range v.Suggestions {
			line := e.DisplayName + "\n" + facetStyle.Render(render.Facets(e.Year.String(), e.Sport.String(), e.Manufacturer.String()))
			if i == m.cursor {
				items = append(items, cursorStyle.Render("▸ "+strings.ReplaceAll(line, "\n", "\n  ")))
			} else {
				items = append(items, itemStyle.Render(line))
			}
		}
		b.WriteString(dropdownStyle.Render(strings.Join(items, "\n")))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(resultsView(v))
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(m.status))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter search • tab pick • ↑/↓ move • ctrl+l clear • ctrl+r refresh index • esc quit"))
	b.WriteString("\n")
	return b.String()
}

func resultsView(v vault.View) string {
	switch v.Phase {
	case vault.PhaseLoading:
		return "Loading…"
	case vault.PhaseFailed:
		switch {
		case errors.Is(v.Err, vault.ErrNoMatch):
			return errorStyle.Render("No matching product.")
		case vault.IsRetryable(v.Err):
			return errorStyle.Render("Error loading data. Press enter to retry.")
		default:
			return errorStyle.Render(v.Err.Error())
		}
	case vault.PhaseReady:
		var sb strings.Builder
		render.Table(&sb, v.Rows)
		return sb.String()
	default:
		return "No results yet. Run a search."
	}
}
