package ui

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/dex-trader/business/ledger/domain"
	marketDomain "github.com/fd1az/dex-trader/business/market/domain"
	"github.com/fd1az/dex-trader/pkg/ui/components"
)

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"
	PhaseStartup   Phase = "startup"
	PhaseDashboard Phase = "dashboard"
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

const (
	maxNotifications = 8
	maxErrors        = 3
	maxLogs          = 5
)

// StartupStep represents a step in the startup process.
type StartupStep struct {
	Name   string
	Status string // "pending", "connecting", "connected", "done", "failed"
}

type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

var stepOrder = []string{"config", "ethereum", "markets", "ledger"}

// Model is the main Bubble Tea model.
type Model struct {
	orders *components.OrdersComponent
	trades *components.TradesComponent
	prices *components.PricesComponent
	status *components.StatusComponent
	stats  *components.StatsComponent
	keys   KeyMap
	help   help.Model

	phase        Phase
	welcomeStart time.Time

	ready      bool
	quitting   bool
	paused     bool
	width      int
	height     int
	lastUpdate time.Time

	notifications []string
	errors        []ErrorEntry
	logs          []string

	startupComplete bool
	startupSteps    map[string]*StartupStep
	startupTime     time.Time
}

// New creates a new TUI model.
func New() Model {
	now := time.Now()
	status := components.NewStatusComponent()
	status.Update(components.ConnectionStatus{Name: "Ethereum"})
	status.Update(components.ConnectionStatus{Name: "Syncer"})

	return Model{
		orders:       components.NewOrdersComponent(10),
		trades:       components.NewTradesComponent(8),
		prices:       components.NewPricesComponent(),
		status:       status,
		stats:        components.NewStatsComponent(),
		keys:         DefaultKeyMap(),
		help:         help.New(),
		phase:        PhaseWelcome,
		welcomeStart: now,
		startupSteps: map[string]*StartupStep{
			"config":   {Name: "Loading configuration", Status: "pending"},
			"ethereum": {Name: "Connecting to Ethereum", Status: "pending"},
			"markets":  {Name: "Loading markets", Status: "pending"},
			"ledger":   {Name: "Syncing order ledger", Status: "pending"},
		},
		startupTime: now,
	}
}

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		if m.phase == PhaseWelcome {
			return m.leaveWelcome(), tickCmd()
		}
		switch {
		case key.Matches(msg, m.keys.Clear):
			m.notifications = nil
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Up):
			m.orders.ScrollUp()
		case key.Matches(msg, m.keys.Down):
			m.orders.ScrollDown()
		case key.Matches(msg, m.keys.Errors):
			m.errors = nil
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true

	case TickMsg:
		if m.phase == PhaseWelcome && time.Since(m.welcomeStart) >= WelcomeDuration {
			m = m.leaveWelcome()
		}
		return m, tickCmd()

	case LedgerMsg:
		if msg.Snapshot == nil || m.paused {
			return m, nil
		}
		m.applySnapshot(msg.Snapshot)
		m.markStep("ledger", "done")
		m.lastUpdate = time.Now()

	case NotificationMsg:
		stats := m.stats.Stats()
		stats.Notifications++
		m.stats.Update(stats)
		if !m.paused {
			m.notifications = appendCapped(m.notifications, formatNotification(msg.Notification), maxNotifications)
		}
		m.lastUpdate = time.Now()

	case SyncMsg:
		var lag uint64
		if msg.HeadBlock > msg.LastBlock {
			lag = msg.HeadBlock - msg.LastBlock
		}
		m.status.Update(components.ConnectionStatus{
			Name:       "Syncer",
			Connected:  msg.Connected,
			LastBlock:  msg.LastBlock,
			Lag:        lag,
			LastUpdate: msg.LastSync,
		})
		stats := m.stats.Stats()
		stats.LastBlock = msg.LastBlock
		m.stats.Update(stats)
		if msg.Connected {
			m.markStep("ethereum", "connected")
		}
		m.lastUpdate = time.Now()

	case ConnectionStatusMsg:
		m.status.Update(components.ConnectionStatus{
			Name:       msg.Name,
			Connected:  msg.Connected,
			Latency:    msg.Latency,
			LastUpdate: time.Now(),
		})
		if strings.EqualFold(msg.Name, "ethereum") {
			state := "connecting"
			if msg.Connected {
				state = "connected"
			}
			m.markStep("ethereum", state)
		}
		m.markStep("config", "done")
		m.lastUpdate = time.Now()

	case BlockMsg:
		conn, _ := m.status.Get("Ethereum")
		conn.Name = "Ethereum"
		conn.Connected = true
		conn.LastBlock = msg.Number
		conn.LastUpdate = msg.Timestamp
		m.status.Update(conn)
		m.lastUpdate = time.Now()

	case ErrorMsg:
		if msg.Error == nil {
			return m, nil
		}
		stats := m.stats.Stats()
		stats.Errors++
		m.stats.Update(stats)
		m.logs = appendCapped(m.logs, logLine("error", msg.Error.Error()), maxLogs)
		m.errors = append(m.errors, ErrorEntry{Message: msg.Error.Error(), Timestamp: time.Now()})
		if len(m.errors) > maxErrors {
			m.errors = m.errors[len(m.errors)-maxErrors:]
		}

	case LogMsg:
		m.logs = appendCapped(m.logs, logLine(msg.Level, msg.Message), maxLogs)

	case StartupMsg:
		m.markStep(msg.Step, msg.Status)
	}

	return m, nil
}

func (m Model) leaveWelcome() Model {
	m.phase = PhaseStartup
	m.startupTime = time.Now()
	if OnStartModules != nil {
		go OnStartModules()
	}
	return m
}

func (m *Model) markStep(name, status string) {
	if step, ok := m.startupSteps[name]; ok {
		step.Status = status
	}
	for _, step := range m.startupSteps {
		if step.Status != "connected" && step.Status != "done" {
			return
		}
	}
	m.startupComplete = true
	if m.phase == PhaseStartup {
		m.phase = PhaseDashboard
	}
}

func (m *Model) applySnapshot(snap *domain.Snapshot) {
	rows := make([]components.OrderRow, 0, len(snap.OpenOrders))
	for _, o := range snap.OpenOrders {
		rows = append(rows, components.OrderRow{
			Market:     string(o.Market),
			Side:       o.Side.String(),
			PriceLevel: o.PriceLevel.String(),
			OrderKey:   o.OrderKey,
			Quantity:   o.QuantityEstimate,
			Filled:     o.FilledQuantity,
		})
	}
	m.orders.Update(rows)

	recent := snap.RecentTrades(8)
	trades := make([]components.TradeRow, 0, len(recent))
	for _, t := range recent {
		trades = append(trades, components.TradeRow{
			Time:      time.Unix(t.Timestamp, 0).Format("15:04:05"),
			Market:    string(t.Market),
			Side:      t.Side.String(),
			AmountIn:  intString(t.AmountIn),
			AmountOut: intString(t.AmountOut),
			Price:     intString(t.Price),
		})
	}
	m.trades.Update(trades)

	markets := make([]string, 0, len(snap.MarketTrades))
	for k := range snap.MarketTrades {
		markets = append(markets, string(k))
	}
	sort.Strings(markets)
	prices := make([]components.PriceRow, 0, len(markets))
	for _, k := range markets {
		log := snap.MarketTrades[marketDomain.Key(k)]
		if len(log) == 0 {
			continue
		}
		last := log[len(log)-1]
		prices = append(prices, components.PriceRow{
			Market:    k,
			LastPrice: intString(last.Price),
			Side:      last.Side.String(),
			Trades:    len(log),
		})
	}
	m.prices.Update(prices)

	stats := m.stats.Stats()
	stats.OpenOrders = len(snap.OpenOrders)
	stats.LedgerEntries = len(snap.Ledger)
	stats.Trades = len(snap.Trades)
	if snap.LastBlock > stats.LastBlock {
		stats.LastBlock = snap.LastBlock
	}
	m.stats.Update(stats)
}

func formatNotification(n domain.Notification) string {
	return fmt.Sprintf("[%s] %-6s %-4s %s in %s out %s",
		time.Unix(n.Timestamp, 0).Format("15:04:05"),
		strings.ToUpper(string(n.Kind)),
		n.Side,
		n.Market,
		intString(n.AmountIn),
		intString(n.AmountOut),
	)
}

func logLine(level, message string) string {
	return fmt.Sprintf("[%s] %s: %s", time.Now().Format("15:04:05"), level, message)
}

func appendCapped(lines []string, line string, limit int) []string {
	lines = append(lines, line)
	if len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return lines
}

func intString(x *big.Int) string {
	if x == nil {
		return "-"
	}
	return x.String()
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	switch m.phase {
	case PhaseWelcome:
		return m.renderWelcomeScreen()
	case PhaseStartup:
		if !m.startupComplete {
			return m.renderStartupScreen()
		}
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(" DEX Trader "))
	b.WriteString("\n\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	leftCol := m.orders.View() + "\n\n" + m.prices.View()
	rightCol := m.trades.View() + "\n\n" + m.renderNotifications()

	if m.width > 100 {
		left := BoxStyle.Width(m.width/2 - 2).Render(leftCol)
		right := BoxStyle.Width(m.width/2 - 2).Render(rightCol)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	} else {
		width := m.width - 4
		if width < 20 {
			width = 80
		}
		b.WriteString(BoxStyle.Width(width).Render(leftCol))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Width(width).Render(rightCol))
	}
	b.WriteString("\n\n")
	b.WriteString(m.stats.View())
	b.WriteString("\n\n")

	if len(m.errors) > 0 {
		b.WriteString(ErrorStyle.Bold(true).Render("ERRORS"))
		b.WriteString(MutedValue.Render(" (e: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(ErrorStyle.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(MutedValue.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.paused {
		b.WriteString(PendingStyle.Bold(true).Render("⏸ PAUSED"))
		b.WriteString(" • ")
	}
	b.WriteString(m.help.View(m.keys))

	return b.String()
}

func (m Model) renderNotifications() string {
	var sb strings.Builder
	sb.WriteString(SectionStyle.Render("NOTIFICATIONS"))
	sb.WriteString("\n\n")
	if len(m.notifications) == 0 {
		sb.WriteString(MutedValue.Render("  Nothing yet..."))
		return sb.String()
	}
	for i := len(m.notifications) - 1; i >= 0; i-- {
		sb.WriteString("  " + m.notifications[i] + "\n")
	}
	return sb.String()
}

func (m Model) renderWelcomeScreen() string {

	dots := strings.Repeat(".", int(time.Since(m.welcomeStart).Milliseconds()/300)%4)

	logo := `
   ██████╗ ███████╗██╗  ██╗
   ██╔══██╗██╔════╝╚██╗██╔╝
   ██║  ██║█████╗   ╚███╔╝
   ██║  ██║██╔══╝   ██╔██╗
   ██████╔╝███████╗██╔╝ ██╗
   ╚═════╝ ╚══════╝╚═╝  ╚═╝
`
	var sb strings.Builder
	sb.WriteString("\n\n\n\n")
	sb.WriteString(SectionStyle.Render(logo))
	sb.WriteString("\n")
	sb.WriteString(MutedValue.Render("        T R A D E R"))
	sb.WriteString("\n\n\n")
	sb.WriteString(OKStyle.Render(fmt.Sprintf("        Initializing%s", dots)))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("   Press any key to skip, or wait..."))
	sb.WriteString("\n")
	return sb.String()
}

func (m Model) renderStartupScreen() string {
	titleStyle := SectionStyle.MarginBottom(1)
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	successStyle, connectingStyle, failedStyle := OKStyle, PendingStyle, ErrorStyle

	var sb strings.Builder
	sb.WriteString("\n\n")
	sb.WriteString(titleStyle.Render("  DEX Trader"))
	sb.WriteString("\n\n")
	sb.WriteString(headerStyle.Render("  Starting up..."))
	sb.WriteString("\n\n")

	for _, name := range stepOrder {
		step := m.startupSteps[name]

		var icon, statusText string
		var style lipgloss.Style
		switch step.Status {
		case "connected", "done":
			icon, statusText, style = "✓", "Ready", successStyle
		case "connecting":
			spinners := []string{"◐", "◓", "◑", "◒"}
			icon = spinners[int(time.Since(m.startupTime).Milliseconds()/200)%len(spinners)]
			statusText, style = "Connecting...", connectingStyle
		case "failed":
			icon, statusText, style = "✗", "Failed", failedStyle
		default:
			icon, statusText, style = "○", "Pending", MutedValue
		}

		sb.WriteString(fmt.Sprintf("  %s %s %s\n", style.Render(icon), MutedValue.Render(step.Name), style.Render(statusText)))
	}

	sb.WriteString("\n")
	sb.WriteString(MutedValue.Render(fmt.Sprintf("  Elapsed: %s", time.Since(m.startupTime).Round(time.Second))))
	sb.WriteString("\n")
	for _, l := range m.logs {
		sb.WriteString(MutedValue.Render("  " + l))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderStatusBar() string {
	parts := []string{m.status.View()}
	if !m.lastUpdate.IsZero() {
		ago := time.Since(m.lastUpdate).Round(time.Second)
		parts = append(parts, MutedValue.Render(fmt.Sprintf("Updated: %s ago", ago)))
	}
	return strings.Join(parts, "  │  ")
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// OnStartModules is called once the welcome screen completes.
var OnStartModules func()

// Send sends a message to the running program.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
}
