// Package tui renders a live terminal view of the shared state.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"ctxview/internal/channel"
	"ctxview/internal/model"
	"ctxview/internal/statestore"
	"ctxview/internal/viewer"
)

const tickInterval = 500 * time.Millisecond

// Snapshot is what one refresh shows.
type Snapshot struct {
	Server      *model.ServerInfo
	ServerAlive bool
	Selection   *model.Selection
	Navigation  *model.NavigationCommand
}

// Source supplies snapshots and performs the one mutation the view offers.
type Source interface {
	Snapshot() Snapshot
	ClearSelection() bool
}

// StoreSource reads snapshots straight from the state document.
type StoreSource struct {
	Store      *statestore.Store
	Selections *channel.Selections
}

func (s StoreSource) Snapshot() Snapshot {
	doc := s.Store.Read()
	var snap Snapshot
	if info, ok := doc.Server(); ok {
		snap.Server = &info
		_, snap.ServerAlive = viewer.Lookup(s.Store)
	}
	snap.Selection, _ = doc.Selection()
	snap.Navigation, _ = doc.Navigation()
	return snap
}

func (s StoreSource) ClearSelection() bool {
	return s.Selections.Clear(context.Background())
}

type tickMsg time.Time

// Model is the bubbletea model behind `ctxview watch`.
type Model struct {
	source   Source
	snap     Snapshot
	viewport viewport.Model
	ready    bool
	width    int
	height   int
	status   string
}

func NewModel(source Source) Model {
	return Model{source: source, snap: source.Snapshot()}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "c":
			if m.source.ClearSelection() {
				m.status = "selection cleared"
			} else {
				m.status = "nothing to clear"
			}
			m.refresh()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := m.height - len(strings.Split(m.header(), "\n")) - 3
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.viewport.SetContent(m.body())
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tick()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) refresh() {
	prev := m.snap.Selection
	m.snap = m.source.Snapshot()
	if m.ready && !sameSelection(prev, m.snap.Selection) {
		m.viewport.SetContent(m.body())
		m.viewport.GotoTop()
	}
}

func (m Model) View() string {
	if !m.ready {
		return styleMuted.Render("Loading...")
	}
	footer := styleMuted.Render("c clear selection · up/down scroll · q quit")
	if m.status != "" {
		footer = styleGreen.Render(m.status) + "  " + footer
	}
	return m.header() + "\n\n" + m.viewport.View() + "\n" + footer
}

func (m Model) header() string {
	lines := []string{styleBrandStrong.Render("ctxview")}

	server := styleMuted.Render("not running")
	if s := m.snap.Server; s != nil {
		if m.snap.ServerAlive {
			server = styleGreen.Render(s.URL) + styleSubtle.Render(fmt.Sprintf(" (pid %d)", s.PID))
		} else {
			server = styleRed.Render(s.URL + " (stale)")
		}
	}
	lines = append(lines, styleLabel.Render("viewer")+server)

	nav := styleMuted.Render("none")
	if n := m.snap.Navigation; n != nil {
		state := "pending"
		if n.Executed {
			state = "executed"
		}
		nav = fmt.Sprintf("%s %s → %s %s", n.Command, n.FilePath, n.Target.String(), styleSubtle.Render("("+state+")"))
	}
	lines = append(lines, styleLabel.Render("navigation")+nav)

	sel := styleMuted.Render("none")
	if s := m.snap.Selection; s != nil {
		sel = fmt.Sprintf("%s lines %d-%d %s", s.FilePath, s.StartLine, s.EndLine,
			styleSubtle.Render(model.TimeOf(s.Timestamp).Format(time.TimeOnly)))
	}
	lines = append(lines, styleLabel.Render("selection")+sel)
	return strings.Join(lines, "\n")
}

func (m Model) body() string {
	if m.snap.Selection == nil {
		return styleMuted.Render("Waiting for a selection from the viewer...")
	}
	width := m.width - 4
	if width < 10 {
		width = 10
	}
	return styleBox.Width(width).Render(m.snap.Selection.SelectedText)
}

func sameSelection(a, b *model.Selection) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Timestamp == b.Timestamp
}

// Run blocks until the user quits.
func Run(source Source) error {
	p := tea.NewProgram(NewModel(source), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
