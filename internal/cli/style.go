package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// styles renders human output. All styles are no-ops unless w is a terminal
// and --json is off, so piped output stays plain.
type styles struct {
	enabled bool

	header, key, link, muted, ok, bad lipgloss.Style
}

func newStyles(w io.Writer, jsonMode bool) styles {
	var s styles
	if f, ok := w.(*os.File); ok && !jsonMode {
		s.enabled = term.IsTerminal(int(f.Fd()))
	}
	if !s.enabled {
		return s
	}
	s.header = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	s.key = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	s.link = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Underline(true)
	s.muted = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	s.ok = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
	s.bad = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	return s
}

func (s styles) render(st lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return st.Render(text)
}

// kv lines up a label column: "  Server:      http://...".
func (s styles) kv(key, value string) string {
	return fmt.Sprintf("  %s %s", s.render(s.key, fmt.Sprintf("%-12s", key+":")), value)
}

func (s styles) sectionHeader(title string) string { return s.render(s.header, title) }
func (s styles) dim(text string) string            { return s.render(s.muted, text) }
func (s styles) url(text string) string            { return s.render(s.link, text) }
func (s styles) success(text string) string        { return s.render(s.ok, text) }
func (s styles) errPrefix() string                 { return s.render(s.bad, "ERROR:") }
