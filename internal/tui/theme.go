package tui

import "github.com/charmbracelet/lipgloss"

var (
	clrBrand  = lipgloss.Color("214")
	clrMuted  = lipgloss.Color("245")
	clrSubtle = lipgloss.Color("242")
	clrGreen  = lipgloss.Color("114")
	clrRed    = lipgloss.Color("203")
)

var (
	styleBrandStrong = lipgloss.NewStyle().Foreground(clrBrand).Bold(true)
	styleMuted       = lipgloss.NewStyle().Foreground(clrMuted)
	styleSubtle      = lipgloss.NewStyle().Foreground(clrSubtle)
	styleGreen       = lipgloss.NewStyle().Foreground(clrGreen)
	styleRed         = lipgloss.NewStyle().Foreground(clrRed)
	styleLabel       = lipgloss.NewStyle().Foreground(clrMuted).Width(12)
	styleBox         = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(clrSubtle).Padding(0, 1)
)
