// cmd/booknestctl/styles.go
package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"booknest/internal/application/quota"
)

var (
	colorAccent  = lipgloss.Color("#8B5E3C") // leather brown
	colorMuted   = lipgloss.Color("#8A8F98")
	colorOK      = lipgloss.Color("#4CAF50")
	colorWarning = lipgloss.Color("#F5A623")
	colorDanger  = lipgloss.Color("#E53935")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	labelStyle = lipgloss.NewStyle().Foreground(colorMuted)
	unreadMark = lipgloss.NewStyle().Foreground(colorWarning).Render("●")
	readMark   = lipgloss.NewStyle().Foreground(colorMuted).Render("○")
)

func levelStyle(l quota.Level) lipgloss.Style {
	switch l {
	case quota.LevelCritical:
		return lipgloss.NewStyle().Bold(true).Foreground(colorDanger)
	case quota.LevelWarning:
		return lipgloss.NewStyle().Foreground(colorWarning)
	default:
		return lipgloss.NewStyle().Foreground(colorOK)
	}
}

func field(label, format string, args ...any) string {
	return labelStyle.Render(fmt.Sprintf("%-12s", label)) + " " + fmt.Sprintf(format, args...)
}
