// Package browse implements an interactive terminal browser for a
// running registry server: type a query, see matching crates and their
// release histories.
package browse

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/spookyvision/semver-server/internal/client"
	"github.com/spookyvision/semver-server/internal/registry"
)

// FocusPane represents which pane has focus.
type FocusPane int

const (
	FocusQuery FocusPane = iota
	FocusResults
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#73F59F"))
	queryStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#54A0FF"))
	kindStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB86C"))
	detailStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#BBBBBB"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8787"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// searchResultMsg carries the outcome of a search round trip.
type searchResultMsg struct {
	query  string
	crates []registry.Crate
	err    error
}

// Model holds the browser state.
type Model struct {
	client *client.Client

	input   textinput.Model
	results list.Model
	crates  []registry.Crate

	focus   FocusPane
	lastErr error
	loading bool
	width   int
	height  int
}

// New creates a browser talking to the server behind c.
func New(c *client.Client) Model {
	input := textinput.New()
	input.Placeholder = "substring query (empty matches everything)"
	input.Focus()
	input.CharLimit = 100

	results := list.New([]list.Item{}, newCrateDelegate(), 0, 0)
	results.SetShowTitle(false)
	results.SetShowStatusBar(false)
	results.SetShowHelp(false)
	results.SetFilteringEnabled(false)

	return Model{
		client:  c,
		input:   input,
		results: results,
		focus:   FocusQuery,
	}
}

// Init triggers the initial full listing.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.searchCmd(""))
}

// searchCmd runs a search against the server off the UI goroutine.
func (m Model) searchCmd(query string) tea.Cmd {
	c := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		crates, err := c.FindAllContaining(ctx, query)
		return searchResultMsg{query: query, crates: crates, err: err}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		listHeight := msg.Height - 8
		if listHeight < 3 {
			listHeight = 3
		}
		m.results.SetSize(msg.Width-4, listHeight)
		return m, nil

	case searchResultMsg:
		m.loading = false
		m.lastErr = msg.err
		if msg.err != nil {
			return m, nil
		}
		m.crates = msg.crates
		items := make([]list.Item, len(msg.crates))
		for i, crate := range msg.crates {
			items[i] = crateItem{crate: crate}
		}
		m.results.SetItems(items)
		if len(items) > 0 {
			m.results.Select(0)
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "tab":
			if m.focus == FocusQuery {
				m.focus = FocusResults
				m.input.Blur()
			} else {
				m.focus = FocusQuery
				m.input.Focus()
			}
			return m, nil
		case "enter":
			if m.focus == FocusQuery {
				m.loading = true
				return m, m.searchCmd(m.input.Value())
			}
		}
	}

	var cmd tea.Cmd
	if m.focus == FocusQuery {
		m.input, cmd = m.input.Update(msg)
	} else {
		m.results, cmd = m.results.Update(msg)
	}
	return m, cmd
}

// Selected returns the crate under the cursor, if any.
func (m Model) Selected() (registry.Crate, bool) {
	item, ok := m.results.SelectedItem().(crateItem)
	if !ok {
		return registry.Crate{}, false
	}
	return item.crate, true
}

// View renders the browser.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("semver registry"))
	b.WriteString("\n")
	b.WriteString(queryStyle.Render(m.input.View()))
	b.WriteString("\n")

	switch {
	case m.lastErr != nil:
		b.WriteString(errorStyle.Render("error: " + m.lastErr.Error()))
	case m.loading:
		b.WriteString(statusStyle.Render("searching..."))
	case len(m.crates) == 0:
		b.WriteString(statusStyle.Render("no matching crates"))
	default:
		b.WriteString(m.results.View())
		if crate, ok := m.Selected(); ok {
			b.WriteString("\n")
			b.WriteString(detailStyle.Render(renderDetail(crate)))
		}
	}

	b.WriteString("\n")
	b.WriteString(statusStyle.Render("enter: search / tab: switch pane / esc: quit"))
	return b.String()
}

// renderDetail shows author and full release history for one crate.
func renderDetail(crate registry.Crate) string {
	versions := make([]string, 0, len(crate.ReleaseHistory))
	for _, v := range crate.ReleaseHistory {
		versions = append(versions, v.String())
	}
	return fmt.Sprintf("by %s / releases: %s", crate.Metadata.Author, strings.Join(versions, ", "))
}

// crateItem wraps a crate for the list component.
type crateItem struct {
	crate registry.Crate
}

// FilterValue implements list.Item interface.
func (i crateItem) FilterValue() string { return i.crate.Metadata.Name }

// crateDelegate renders crates one per line.
type crateDelegate struct{}

func newCrateDelegate() crateDelegate {
	return crateDelegate{}
}

// Height returns the height of a single list item.
func (d crateDelegate) Height() int { return 1 }

// Spacing returns the spacing between list items.
func (d crateDelegate) Spacing() int { return 0 }

// Update handles updates for list items (no-op for read-only display).
func (d crateDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

// Render renders a single list item.
func (d crateDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	crate := item.(crateItem).crate

	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render("> ")
	}

	latest := ""
	if v, ok := crate.LatestRelease(); ok {
		latest = " " + v.String()
	}

	line := fmt.Sprintf("%s%s%s %s",
		prefix,
		crate.Metadata.Name,
		latest,
		kindStyle.Render("["+crate.Metadata.Kind.String()+"]"),
	)

	_, _ = fmt.Fprint(w, line)
}
