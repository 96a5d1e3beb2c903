package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Stats holds session counters for display.
type Stats struct {
	LastBlock     uint64
	OpenOrders    int
	LedgerEntries int
	Trades        int
	Notifications int64
	Errors        int64
}

type StatsComponent struct {
	stats Stats
}

func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

func (s *StatsComponent) Update(stats Stats) {
	s.stats = stats
}

func (s *StatsComponent) Stats() Stats {
	return s.stats
}

func (s *StatsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	errorsDisplay := valueStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	if s.stats.Errors > 0 {
		errorsDisplay = errorStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	}

	return style.Render("STATS") + "\n" +
		fmt.Sprintf("Synced to: %s  │  Open: %s  │  Ledger: %s  │  Trades: %s\n",
			valueStyle.Render(fmt.Sprintf("#%d", s.stats.LastBlock)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.OpenOrders)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.LedgerEntries)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Trades)),
		) +
		fmt.Sprintf("Notifications: %s  │  Errors: %s",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Notifications)),
			errorsDisplay,
		)
}
