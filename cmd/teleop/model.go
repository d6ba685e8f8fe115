package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/teslashibe/go-rescue/pkg/protocol"
	"github.com/teslashibe/go-rescue/pkg/web"
)

const (
	// maxLines is how many console lines stay on screen.
	maxLines       = 14
	statusInterval = time.Second
	pingInterval   = 5 * time.Second
)

// commander is the operator side of the control link.
type commander interface {
	SendCommand(key byte) error
	Ping() error
}

// statusFunc fetches the rover's dashboard state.
type statusFunc func(ctx context.Context) (web.RoverState, error)

type roverMsg struct{ msg *protocol.Message }

type closedMsg struct{ err error }

type stateMsg struct {
	state web.RoverState
	err   error
}

type statusTickMsg struct{}

type pingTickMsg struct{}

// model is the operator console state.
type model struct {
	link     commander
	incoming <-chan *protocol.Message
	linkErr  func() error
	status   statusFunc

	operatorID string
	lines      []string
	display    string
	verdict    string
	latency    time.Duration
	state      web.RoverState
	haveState  bool
	statusErr  error
	lastKey    string
	err        error
	closed     bool

	width int
}

func newModel(link commander, incoming <-chan *protocol.Message, linkErr func() error, status statusFunc) model {
	return model{
		link:     link,
		incoming: incoming,
		linkErr:  linkErr,
		status:   status,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.waitForMessage(), m.fetchStatus(), m.ping())
}

// waitForMessage reads the next rover message off the link.
func (m model) waitForMessage() tea.Cmd {
	incoming, linkErr := m.incoming, m.linkErr
	return func() tea.Msg {
		msg, ok := <-incoming
		if !ok {
			var err error
			if linkErr != nil {
				err = linkErr()
			}
			return closedMsg{err: err}
		}
		return roverMsg{msg: msg}
	}
}

func (m model) fetchStatus() tea.Cmd {
	if m.status == nil {
		return nil
	}
	status := m.status
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), statusInterval)
		defer cancel()
		state, err := status(ctx)
		return stateMsg{state: state, err: err}
	}
}

// ping sends a ping now and schedules the next one.
func (m model) ping() tea.Cmd {
	link := m.link
	return tea.Batch(
		func() tea.Msg {
			_ = link.Ping()
			return nil
		},
		tea.Tick(pingInterval, func(time.Time) tea.Msg { return pingTickMsg{} }),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case roverMsg:
		m.handleRover(msg.msg)
		return m, m.waitForMessage()

	case closedMsg:
		m.closed = true
		m.err = msg.err
		return m, nil

	case stateMsg:
		m.statusErr = msg.err
		if msg.err == nil {
			m.state = msg.state
			m.haveState = true
		}
		return m, tea.Tick(statusInterval, func(time.Time) tea.Msg { return statusTickMsg{} })

	case statusTickMsg:
		return m, m.fetchStatus()

	case pingTickMsg:
		if m.closed {
			return m, nil
		}
		return m, m.ping()
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit
	case "w", "a", "s", "d", "m", " ":
		if m.closed {
			return m, nil
		}
		m.lastKey = key
		if err := m.link.SendCommand(key[0]); err != nil {
			m.err = err
		}
	}
	return m, nil
}

func (m *model) handleRover(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeConsole:
		if data, err := msg.GetConsoleData(); err == nil {
			m.addLine(data.Line)
		}
	case protocol.TypeDisplay:
		if data, err := msg.GetDisplayData(); err == nil {
			m.display = data.Text
		}
	case protocol.TypeHazard:
		if data, err := msg.GetHazardData(); err == nil {
			m.addLine("! hazard: " + data.Category)
		}
	case protocol.TypeSurvey:
		if report, err := msg.GetSurveyData(); err == nil {
			m.verdict = fmt.Sprintf("%s (%d humans, %d objects)", report.Verdict, report.Humans, len(report.Objects))
		}
	case protocol.TypePong:
		if data, err := msg.GetPongData(); err == nil {
			m.operatorID = data.ID
			m.latency = time.Since(time.UnixMilli(data.PingTS))
		}
	}
}

func (m *model) addLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	alertStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	lcdStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Foreground(lipgloss.Color("#7CFC00")).Padding(0, 1)
	consoleStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
)

func (m model) View() string {
	var b strings.Builder

	title := "RESCUE ROVER"
	if m.haveState && m.state.Simulated {
		title += " (sim)"
	}
	b.WriteString(titleStyle.Render(title))
	if m.operatorID != "" {
		b.WriteString(labelStyle.Render(fmt.Sprintf("  operator %s  rtt %s", shortID(m.operatorID), m.latency.Round(time.Millisecond))))
	}
	b.WriteString("\n\n")

	display := m.display
	if display == "" && m.haveState {
		display = m.state.Display
	}
	if display == "" {
		display = " "
	}
	b.WriteString(lcdStyle.Render(display))
	b.WriteString("\n")

	b.WriteString(m.statusLine())
	b.WriteString("\n")
	if m.verdict != "" {
		b.WriteString(labelStyle.Render("last survey: ") + m.verdict + "\n")
	}

	console := strings.Join(m.lines, "\n")
	if console == "" {
		console = labelStyle.Render("no console output yet")
	}
	box := consoleStyle
	if m.width > 4 {
		box = box.Width(m.width - 4)
	}
	b.WriteString(box.Render(console))
	b.WriteString("\n")

	if m.closed {
		msg := "disconnected"
		if m.err != nil {
			msg += ": " + m.err.Error()
		}
		b.WriteString(alertStyle.Render(msg) + "\n")
	} else if m.err != nil {
		b.WriteString(alertStyle.Render(m.err.Error()) + "\n")
	}

	b.WriteString(helpStyle.Render("w forward  s back  a/d spin  m survey  space stop  q quit"))
	return b.String()
}

func (m model) statusLine() string {
	if m.statusErr != nil {
		return alertStyle.Render("status: " + m.statusErr.Error())
	}
	if !m.haveState {
		return labelStyle.Render("waiting for status...")
	}
	s := m.state
	line := fmt.Sprintf("cycle %d  wheels %d/%d  surveys %d", s.Cycle, s.Wheels[0], s.Wheels[1], s.Surveys)
	if s.LastHazard != "" {
		line += "  last hazard " + alertStyle.Render(s.LastHazard)
	}
	if m.lastKey != "" {
		line += fmt.Sprintf("  sent %q", m.lastKey)
	}
	return labelStyle.Render(line)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
