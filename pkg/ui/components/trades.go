package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// TradeRow is one trade history line. Amounts are raw token units.
type TradeRow struct {
	Time      string
	Market    string
	Side      string
	AmountIn  string
	AmountOut string
	Price     string
}

// TradesComponent renders the most recent trades, newest first.
type TradesComponent struct {
	rows    []TradeRow
	maxRows int
}

func NewTradesComponent(maxRows int) *TradesComponent {
	return &TradesComponent{maxRows: maxRows}
}

func (t *TradesComponent) Update(rows []TradeRow) {
	if len(rows) > t.maxRows {
		rows = rows[:t.maxRows]
	}
	t.rows = rows
}

func (t *TradesComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	buyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	sellStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("RECENT TRADES"))
	sb.WriteString("\n\n")

	if len(t.rows) == 0 {
		sb.WriteString(dimStyle.Render("  Waiting for trades..."))
		return sb.String()
	}

	for _, row := range t.rows {
		sideStyle := sellStyle
		if row.Side == "buy" {
			sideStyle = buyStyle
		}
		sb.WriteString(fmt.Sprintf("  %s %-12s %s in %s out %s @ %s\n",
			dimStyle.Render(row.Time),
			row.Market,
			sideStyle.Render(fmt.Sprintf("%-4s", row.Side)),
			row.AmountIn,
			row.AmountOut,
			row.Price,
		))
	}
	return sb.String()
}
