package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// ConnectionStatus represents a connection's status.
type ConnectionStatus struct {
	Name       string
	Connected  bool
	Latency    time.Duration
	LastBlock  uint64
	Lag        uint64
	LastUpdate time.Time
}

// StatusComponent renders connection status in insertion order.
type StatusComponent struct {
	connections []ConnectionStatus
}

func NewStatusComponent() *StatusComponent {
	return &StatusComponent{}
}

// Update adds or replaces the status with the same name.
func (s *StatusComponent) Update(status ConnectionStatus) {
	for i, conn := range s.connections {
		if conn.Name == status.Name {
			s.connections[i] = status
			return
		}
	}
	s.connections = append(s.connections, status)
}

func (s *StatusComponent) Get(name string) (ConnectionStatus, bool) {
	for _, conn := range s.connections {
		if conn.Name == name {
			return conn, true
		}
	}
	return ConnectionStatus{}, false
}

// View renders the statuses on one line.
func (s *StatusComponent) View() string {
	if len(s.connections) == 0 {
		return "No connections"
	}

	connected := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	disconnected := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	parts := make([]string, 0, len(s.connections))
	for _, conn := range s.connections {
		if !conn.Connected {
			parts = append(parts, disconnected.Render("○ "+conn.Name+" (disconnected)"))
			continue
		}
		label := "● " + conn.Name
		if conn.LastBlock > 0 {
			label += fmt.Sprintf(" #%d", conn.LastBlock)
		}
		if conn.Lag > 0 {
			label += fmt.Sprintf(" lag %d", conn.Lag)
		}
		if conn.Latency > 0 {
			label += fmt.Sprintf(" (%s)", conn.Latency.Round(time.Millisecond))
		}
		parts = append(parts, connected.Render(label))
	}
	return strings.Join(parts, "  │  ")
}
