// Package ui renders the interactive terminal: status lines, bordered
// panels, markdown answers, line input, and the confirmation prompt the
// approval gate blocks on.
package ui

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Palette. Hex equivalents of a steel blue / gold / green scheme that reads
// on both light and dark terminals.
var (
	Primary   = lipgloss.Color("#5FAFFF")
	Secondary = lipgloss.Color("#AF87FF")
	Accent    = lipgloss.Color("#D78700")
	Success   = lipgloss.Color("#00D700")
	Warning   = lipgloss.Color("#D7AF00")
	Danger    = lipgloss.Color("#D70000")
	Muted     = lipgloss.Color("#C6C6C6")
	Subtle    = lipgloss.Color("#9E9E9E")
	ToolData  = lipgloss.Color("#00FFAF")
	Command   = lipgloss.Color("#FFD700")
	Border    = lipgloss.Color("#767676")
)

// Styles holds the lipgloss styles bound to one output's renderer, so color
// is dropped automatically when the output is not a terminal.
type Styles struct {
	Info    lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Subtle  lipgloss.Style
	Option  lipgloss.Style
	Command lipgloss.Style
	Title   lipgloss.Style

	AgentPanel   lipgloss.Style
	ToolPanel    lipgloss.Style
	ConfirmPanel lipgloss.Style
	ErrorPanel   lipgloss.Style
	InfoPanel    lipgloss.Style
}

// NewStyles builds the styles for w.
func NewStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)

	panel := func(c lipgloss.Color) lipgloss.Style {
		return r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(c).
			Padding(0, 1).
			MarginLeft(1)
	}

	return Styles{
		Info:    r.NewStyle().Foreground(Primary),
		Success: r.NewStyle().Foreground(Success),
		Warning: r.NewStyle().Foreground(Warning),
		Error:   r.NewStyle().Foreground(Danger),
		Muted:   r.NewStyle().Foreground(Muted),
		Subtle:  r.NewStyle().Foreground(Subtle),
		Option:  r.NewStyle().Foreground(Warning),
		Command: r.NewStyle().Foreground(Command).Bold(true),
		Title:   r.NewStyle().Bold(true).MarginLeft(1),

		AgentPanel:   panel(Primary),
		ToolPanel:    panel(ToolData),
		ConfirmPanel: panel(Warning),
		ErrorPanel:   panel(Danger),
		InfoPanel:    panel(Border),
	}
}
