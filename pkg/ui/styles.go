// Package ui provides the Bubble Tea dashboard for the DEX trader.
package ui

import "github.com/charmbracelet/lipgloss"

// Palette. Buy and sell colours match the order and price tables.
var (
	ColorAccent  = lipgloss.Color("#7C3AED")
	ColorBuy     = lipgloss.Color("#10B981")
	ColorSell    = lipgloss.Color("#EF4444")
	ColorPending = lipgloss.Color("#F59E0B")
	ColorMuted   = lipgloss.Color("#6B7280")
	ColorBorder  = lipgloss.Color("#374151")
)

var (
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(ColorAccent).
			Padding(0, 2)

	SectionStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	OKStyle      = lipgloss.NewStyle().Foreground(ColorBuy)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorSell)
	PendingStyle = lipgloss.NewStyle().Foreground(ColorPending)
	MutedValue   = lipgloss.NewStyle().Foreground(ColorMuted)
)
