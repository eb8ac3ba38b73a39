package output

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles holds the lipgloss styles used for text output.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Key     lipgloss.Style

	StatusSuccess lipgloss.Style
	StatusHandled lipgloss.Style
	StatusFailed  lipgloss.Style
	StatusRunning lipgloss.Style
}

// Color palette.
var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7D79F6"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#6C6C6C"}
	colorSuccess = lipgloss.AdaptiveColor{Light: "#2E8B57", Dark: "#4EC98F"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#C98A00", Dark: "#F2C14E"}
	colorError   = lipgloss.AdaptiveColor{Light: "#C0392B", Dark: "#FF6B6B"}
)

// NewStyles builds the styles for a lipgloss renderer.
func NewStyles(lr *lipgloss.Renderer) *Styles {
	return &Styles{
		Header1: lr.NewStyle().Bold(true).Foreground(colorPrimary),
		Header2: lr.NewStyle().Bold(true),
		Bold:    lr.NewStyle().Bold(true),
		Muted:   lr.NewStyle().Foreground(colorMuted),
		Success: lr.NewStyle().Foreground(colorSuccess),
		Warning: lr.NewStyle().Foreground(colorWarning),
		Error:   lr.NewStyle().Foreground(colorError),
		Key:     lr.NewStyle().Foreground(colorMuted).Width(14),

		StatusSuccess: lr.NewStyle().Foreground(colorSuccess).SetString("✓"),
		StatusHandled: lr.NewStyle().Foreground(colorWarning).SetString("↺"),
		StatusFailed:  lr.NewStyle().Foreground(colorError).SetString("✗"),
		StatusRunning: lr.NewStyle().Foreground(colorPrimary).SetString("•"),
	}
}

// StatusIcon returns the styled icon for a run or statement status.
func (s *Styles) StatusIcon(status string) string {
	switch status {
	case "success", "completed":
		return s.StatusSuccess.String()
	case "handled":
		return s.StatusHandled.String()
	case "failed", "cancelled":
		return s.StatusFailed.String()
	default:
		return s.StatusRunning.String()
	}
}
