package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/venlet/go-armlink/arm"
	"github.com/venlet/go-armlink/link"
)

var monitorInterval time.Duration

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live terminal view of the controller",
	Long: `Open the controller, enable periodic position reports, and show link
state, position, traffic counters and events in a terminal UI.

Press 'c' to type a raw command, enter to send it, esc to cancel.
Press 'q' to quit.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 200*time.Millisecond, "Position report interval")
}

// Event log entry
type eventEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// Messages
type tickMsg time.Time
type reportMsg struct {
	report arm.Report
}
type linkErrorMsg struct {
	err error
}
type stateChangeMsg struct {
	state link.State
}
type reportsClosedMsg struct{}
type cmdResultMsg struct {
	command string
	payload string
	err     error
}

// TUI model
type model struct {
	arm      *arm.Arm
	connDesc string

	state       link.State
	hasPosition bool
	position    arm.Position
	rotation    float64
	power       string

	cmdInput     textinput.Model
	inputFocused bool

	events        []eventEntry
	maxLogEntries int
	width         int
	height        int
	quitting      bool
}

func initialModel(a *arm.Arm, connDesc string) model {
	ti := textinput.New()
	ti.Placeholder = "P2220"
	ti.Prompt = "> "
	ti.CharLimit = 80
	ti.Width = 40

	return model{
		arm:           a,
		connDesc:      connDesc,
		state:         a.Link().State(),
		power:         "unknown",
		cmdInput:      ti,
		events:        make([]eventEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		// Counters are read live in View; the tick only forces a redraw.
		return m, tickCmd()

	case reportMsg:
		m.applyReport(msg.report)

	case linkErrorMsg:
		m.addEvent(msg.err.Error(), true)

	case stateChangeMsg:
		m.state = msg.state
		if msg.state == link.ClosedState {
			m.addEvent("link closed", true)
		} else {
			m.addEvent(fmt.Sprintf("link state: %s", msg.state), false)
		}

	case cmdResultMsg:
		if msg.err != nil {
			m.addEvent(fmt.Sprintf("%s: %v", msg.command, msg.err), true)
		} else if msg.payload == "" {
			m.addEvent(msg.command+": (no payload)", false)
		} else {
			m.addEvent(msg.command+": "+msg.payload, false)
		}

	case reportsClosedMsg:
		m.addEvent("report stream ended", true)
	}

	return m, nil
}

func (m model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.inputFocused {
		switch msg.String() {
		case "esc":
			m.inputFocused = false
			m.cmdInput.Blur()
			return m, nil
		case "enter":
			command := strings.TrimSpace(m.cmdInput.Value())
			m.inputFocused = false
			m.cmdInput.Blur()
			m.cmdInput.SetValue("")
			if command == "" {
				return m, nil
			}
			return m, sendCommandCmd(m.arm, command)
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.cmdInput, cmd = m.cmdInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "c":
		m.inputFocused = true
		return m, m.cmdInput.Focus()
	}
	return m, nil
}

// sendCommandCmd sends one raw command off the UI loop and reports the
// outcome as a message.
func sendCommandCmd(a *arm.Arm, command string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		payload, err := a.Link().Do(ctx, command)
		return cmdResultMsg{command: command, payload: payload, err: err}
	}
}

func (m *model) applyReport(r arm.Report) {
	switch r := r.(type) {
	case arm.PositionReport:
		m.hasPosition = true
		m.position = r.Position
		m.rotation = r.Rotation

	case arm.ReadyReport:
		m.addEvent("controller ready", false)

	case arm.ButtonEvent:
		m.addEvent(fmt.Sprintf("button %d pressed (value %d)", r.Button, r.Value), false)

	case arm.PowerEvent:
		if r.Connected {
			m.power = "connected"
			m.addEvent("motor power connected", false)
		} else {
			m.power = "disconnected"
			m.addEvent("motor power disconnected", true)
		}

	case arm.LimitEvent:
		if r.Triggered {
			m.addEvent(fmt.Sprintf("limit switch %d triggered", r.Switch), true)
		} else {
			m.addEvent(fmt.Sprintf("limit switch %d released", r.Switch), false)
		}

	case arm.RawReport:
		m.addEvent("status: "+r.Msg.Raw, false)
	}
}

func (m *model) addEvent(message string, isError bool) {
	m.events = append(m.events, eventEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.events) > m.maxLogEntries {
		m.events = m.events[len(m.events)-m.maxLogEntries:]
	}
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("ARMCTL MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("Connection: %s | Press 'q' to quit", m.connDesc)))
	s.WriteString("\n\n")

	// Controller status
	stateStr := m.state.String()
	var stateRendered string
	switch m.state {
	case link.ReadyState:
		stateRendered = valueStyle.Render(stateStr)
	case link.ClosedState:
		stateRendered = errorStyle.Render(stateStr)
	default:
		stateRendered = warningStyle.Render(stateStr)
	}

	statusContent := strings.Builder{}
	statusContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
		labelStyle.Render("Link:"), stateRendered,
		labelStyle.Render("Power:"), valueStyle.Render(m.power),
	))
	if m.hasPosition {
		statusContent.WriteString(fmt.Sprintf("%s %s   %s %s",
			labelStyle.Render("Position:"), valueStyle.Render(fmt.Sprintf("X%.2f Y%.2f Z%.2f", m.position.X, m.position.Y, m.position.Z)),
			labelStyle.Render("Rotation:"), valueStyle.Render(fmt.Sprintf("%.2f°", m.rotation)),
		))
	} else {
		statusContent.WriteString(headerStyle.Render("Waiting for first position report..."))
	}
	s.WriteString(boxStyle.Render(statusContent.String()))
	s.WriteString("\n\n")

	// Traffic counters
	metrics := m.arm.Link().GetMetrics()
	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
		labelStyle.Render("Sent:"), valueStyle.Render(fmt.Sprintf("%d", metrics.LineSendCount.Load())),
		labelStyle.Render("Received:"), valueStyle.Render(fmt.Sprintf("%d", metrics.LineRecvCount.Load())),
		labelStyle.Render("Replies:"), valueStyle.Render(fmt.Sprintf("%d", metrics.ReplyCount.Load())),
		labelStyle.Render("Status:"), valueStyle.Render(fmt.Sprintf("%d", metrics.StatusCount.Load())),
	))

	deviceErrs := metrics.DeviceErrCount.Load()
	protocolErrs := metrics.ProtocolErrCount.Load()
	renderErrCount := func(n uint64) string {
		if n > 0 {
			return errorStyle.Render(fmt.Sprintf("%d", n))
		}
		return valueStyle.Render(fmt.Sprintf("%d", n))
	}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		labelStyle.Render("Device errors:"), renderErrCount(deviceErrs),
		labelStyle.Render("Protocol errors:"), renderErrCount(protocolErrs),
		labelStyle.Render("In flight:"), valueStyle.Render(fmt.Sprintf("%d", metrics.InflightGauge.Load())),
	))
	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Command console
	if m.inputFocused {
		s.WriteString(m.cmdInput.View())
	} else {
		s.WriteString(headerStyle.Render("press 'c' to send a command"))
	}
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 16 // Reserve space for header and boxes
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.events) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.events) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.events); i++ {
			entry := m.events[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}

func runMonitor(cmd *cobra.Command, args []string) error {
	openCtx, cancel := cmdContext()
	a, desc, err := openArm(openCtx)
	cancel()
	if err != nil {
		return err
	}
	defer a.Close()

	// Subscribe before enabling reports so none are missed. The channel
	// buffers until the TUI starts draining it.
	reports := a.Reports()

	if monitorInterval > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := a.SetReportInterval(ctx, monitorInterval)
		cancel()
		if err != nil {
			return fmt.Errorf("enable position reports: %w", err)
		}
	}

	// Handlers below block on Send until the program loop runs, so no
	// link call may sit between their registration and p.Run.
	p := tea.NewProgram(initialModel(a, desc))

	a.Link().OnError(func(err error) {
		p.Send(linkErrorMsg{err: err})
	})
	a.Link().AddStateChangeHandler(func(_, newState link.State) {
		p.Send(stateChangeMsg{state: newState})
	})

	go func() {
		for r := range reports {
			p.Send(reportMsg{report: r})
		}
		p.Send(reportsClosedMsg{})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}

	// Best effort: stop the report stream before hanging up.
	if a.Link().State() == link.ReadyState {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = a.SetReportInterval(ctx, 0)
		cancel()
	}

	return nil
}
