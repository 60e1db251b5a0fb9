package browse

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/spookyvision/semver-server/internal/client"
	"github.com/spookyvision/semver-server/internal/registry"
	"github.com/spookyvision/semver-server/internal/semver"
)

func testCrates() []registry.Crate {
	linux := registry.Crate{
		Metadata:       registry.NewMetadata("linux.exe", "Linus Torvalds", registry.KindBinary),
		ReleaseHistory: []semver.SemVer{semver.New(1, 0, 0), semver.New(1, 0, 1)},
	}
	moon := registry.Crate{
		Metadata:       registry.NewMetadata("hello_moon", "Busy Person", registry.KindLibrary),
		ReleaseHistory: []semver.SemVer{semver.New(0, 1, 0)},
	}
	return []registry.Crate{linux, moon}
}

func sizedModel() Model {
	m := New(client.New("127.0.0.1:0"))
	return update(m, tea.WindowSizeMsg{Width: 80, Height: 24})
}

// update runs one message through the model and unwraps the result.
func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestModel_RendersResults(t *testing.T) {
	m := sizedModel()
	m = update(m, searchResultMsg{crates: testCrates()})

	view := m.View()
	require.Contains(t, view, "linux.exe")
	require.Contains(t, view, "hello_moon")
	require.Contains(t, view, "binary")

	// First crate is selected; its detail line shows author and history.
	require.Contains(t, view, "Linus Torvalds")
	require.Contains(t, view, "1.0.0, 1.0.1")
}

func TestModel_EmptyResults(t *testing.T) {
	m := sizedModel()
	m = update(m, searchResultMsg{crates: nil})

	require.Contains(t, m.View(), "no matching crates")
}

func TestModel_SearchErrorShown(t *testing.T) {
	m := sizedModel()
	m = update(m, searchResultMsg{err: errors.New("connection refused")})

	require.Contains(t, m.View(), "connection refused")
}

func TestModel_SelectionMoves(t *testing.T) {
	m := sizedModel()
	m = update(m, searchResultMsg{crates: testCrates()})

	selected, ok := m.Selected()
	require.True(t, ok)
	require.Equal(t, "linux.exe", selected.Metadata.Name)

	// Switch focus to the results pane, then move down.
	m = update(m, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, FocusResults, m.focus)

	m = update(m, tea.KeyMsg{Type: tea.KeyDown})
	selected, ok = m.Selected()
	require.True(t, ok)
	require.Equal(t, "hello_moon", selected.Metadata.Name)
}

func TestModel_EnterTriggersSearch(t *testing.T) {
	m := sizedModel()
	m.input.SetValue("nux")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd, "enter in the query pane starts a search")
	require.True(t, next.(Model).loading)
}

func TestModel_EscQuits(t *testing.T) {
	m := sizedModel()

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	require.Equal(t, tea.Quit(), cmd())
}
