package main

import "github.com/charmbracelet/lipgloss"

const (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorMuted   = lipgloss.Color("#6B7280")
	colorSuccess = lipgloss.Color("#10B981")
	colorError   = lipgloss.Color("#EF4444")
	colorWarning = lipgloss.Color("#F59E0B")
)

var (
	dayStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	timeStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Width(14)

	locationStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true)

	movedStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	okStyle = lipgloss.NewStyle().
		Foreground(colorSuccess)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorError)
)
