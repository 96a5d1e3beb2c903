// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// OrderRow is one open order in the table.
type OrderRow struct {
	Market     string
	Side       string
	PriceLevel string
	OrderKey   uint64
	Quantity   decimal.Decimal
	Filled     decimal.Decimal
}

// OrdersComponent renders the open orders table with scrolling.
type OrdersComponent struct {
	rows    []OrderRow
	visible int
	offset  int
}

func NewOrdersComponent(visible int) *OrdersComponent {
	return &OrdersComponent{visible: visible}
}

// Update replaces the rows, keeping the scroll position in range.
func (o *OrdersComponent) Update(rows []OrderRow) {
	o.rows = rows
	o.clamp()
}

func (o *OrdersComponent) Len() int { return len(o.rows) }

func (o *OrdersComponent) ScrollUp() {
	if o.offset > 0 {
		o.offset--
	}
}

func (o *OrdersComponent) ScrollDown() {
	o.offset++
	o.clamp()
}

func (o *OrdersComponent) clamp() {
	maxOffset := len(o.rows) - o.visible
	if maxOffset < 0 {
		maxOffset = 0
	}
	if o.offset > maxOffset {
		o.offset = maxOffset
	}
}

// View renders the orders component.
func (o *OrdersComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	buyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	sellStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("OPEN ORDERS (%d)", len(o.rows))))
	sb.WriteString("\n\n")

	if len(o.rows) == 0 {
		sb.WriteString(dimStyle.Render("  No open orders"))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("  %-12s %-5s %14s %8s %14s %14s\n", "Market", "Side", "Level", "Key", "Quantity", "Filled"))
	sb.WriteString(dimStyle.Render("  "+strings.Repeat("─", 72)) + "\n")

	end := o.offset + o.visible
	if end > len(o.rows) {
		end = len(o.rows)
	}
	for _, row := range o.rows[o.offset:end] {
		sideStyle := sellStyle
		if row.Side == "buy" {
			sideStyle = buyStyle
		}
		sb.WriteString(fmt.Sprintf("  %-12s %s %14s %8d %14s %14s\n",
			row.Market,
			sideStyle.Render(fmt.Sprintf("%-5s", row.Side)),
			row.PriceLevel,
			row.OrderKey,
			row.Quantity.StringFixed(6),
			row.Filled.StringFixed(6),
		))
	}
	if len(o.rows) > o.visible {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("  %d-%d of %d", o.offset+1, end, len(o.rows))))
	}
	return sb.String()
}
