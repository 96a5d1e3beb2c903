package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// PriceRow is the latest traded price of one market.
type PriceRow struct {
	Market    string
	LastPrice string
	Side      string
	Trades    int
}

// PricesComponent renders last-trade prices per market.
type PricesComponent struct {
	rows []PriceRow
}

func NewPricesComponent() *PricesComponent {
	return &PricesComponent{}
}

func (p *PricesComponent) Update(rows []PriceRow) {
	p.rows = rows
}

func (p *PricesComponent) Len() int {
	return len(p.rows)
}

func (p *PricesComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	buyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	sellStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("MARKETS"))
	sb.WriteString("\n\n")

	if len(p.rows) == 0 {
		sb.WriteString(dimStyle.Render("  Waiting for price data..."))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("  %-12s  %18s  %6s\n", "Market", "Last price", "Trades"))
	sb.WriteString(dimStyle.Render("  "+strings.Repeat("─", 40)) + "\n")
	for _, row := range p.rows {
		style := sellStyle
		if row.Side == "buy" {
			style = buyStyle
		}
		sb.WriteString(fmt.Sprintf("  %-12s  %s  %6d\n",
			row.Market,
			style.Render(fmt.Sprintf("%18s", row.LastPrice)),
			row.Trades,
		))
	}
	return sb.String()
}
