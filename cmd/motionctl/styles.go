package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// #region palette
const (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorMuted   = lipgloss.Color("#6B7280")
	colorSuccess = lipgloss.Color("#10B981")
	colorError   = lipgloss.Color("#EF4444")
	colorWarning = lipgloss.Color("#F59E0B")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorError)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	labelStyle   = lipgloss.NewStyle().Width(32).Foreground(colorMuted)
)

// #endregion palette

func passFail(ok bool) string {
	if ok {
		return successStyle.Render("PASS")
	}
	return errorStyle.Render("FAIL")
}

func row(label string, value any) string {
	return labelStyle.Render(label) + fmt.Sprint(value)
}
