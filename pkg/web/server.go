// Package web provides the rover's real-time dashboard.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-rescue/internal/log"
	"github.com/teslashibe/go-rescue/pkg/hub"
	"github.com/teslashibe/go-rescue/pkg/hw"
	"github.com/teslashibe/go-rescue/pkg/protocol"
	"github.com/teslashibe/go-rescue/pkg/survey"
)

// maxLogs is how many console entries are kept for /api/logs.
const maxLogs = 500

// Poster accepts operator command bytes.
type Poster interface {
	Post(cmd byte) error
}

// RoverState is the dashboard's view of the rover
type RoverState struct {
	Simulated   bool           `json:"simulated"`
	Cycle       uint64         `json:"cycle"`
	Snapshot    hw.Snapshot    `json:"snapshot"`
	Wheels      [2]int         `json:"wheels"` // [left, right] mm/s
	Display     string         `json:"display"`
	LastHazard  string         `json:"last_hazard,omitempty"`
	Hazards     map[string]int `json:"hazards"`
	Surveys     int            `json:"surveys"`
	LastVerdict string         `json:"last_verdict,omitempty"`
}

// LogEntry is one dashboard log line
type LogEntry struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // console, display, hazard, survey, command
	Message string `json:"message"`
}

// Config holds dashboard settings
type Config struct {
	Port      int
	Simulated bool
	Debug     bool // request logging
}

// Server is the web dashboard server. It implements hw.Console and
// hw.Display so it sees everything the serial console and LCD see.
type Server struct {
	app  *fiber.App
	port int

	mailbox Poster

	state   RoverState
	stateMu sync.RWMutex

	logs   []LogEntry
	logsMu sync.RWMutex

	lastSurvey *survey.Report
	surveyMu   sync.RWMutex

	statusHub *hub.Hub
	logHub    *hub.Hub
}

// NewServer creates a dashboard server. Commands posted through the REST API
// go to mailbox.
func NewServer(cfg Config, mailbox Poster) *Server {
	s := &Server{
		port:      cfg.Port,
		mailbox:   mailbox,
		state:     RoverState{Simulated: cfg.Simulated, Hazards: make(map[string]int)},
		logs:      make([]LogEntry, 0, maxLogs),
		statusHub: hub.New("status", hub.WithReplay()),
		logHub:    hub.New("logs"),
	}

	if err := s.statusHub.Prime(s.state); err != nil {
		log.Warn("prime status feed", "error", err)
	}

	app := fiber.New(fiber.Config{
		AppName:               "Rover Dashboard",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	if cfg.Debug {
		app.Use(logger.New())
	}

	app.Get("/health", s.handleHealth)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/logs", s.handleGetLogs)
	api.Get("/surveys/last", s.handleLastSurvey)
	api.Post("/command/:key", s.handleCommand)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/logs", websocket.New(s.handleLogsWS))
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// App returns the underlying Fiber app so other endpoints can share the listener.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the hubs and serves on the configured port until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("web: listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.statusHub.Run(ctx)
	go s.logHub.Run(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.app.Listener(ln) }()
	log.Info("web dashboard listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	}
}

// SendString records a console line.
func (s *Server) SendString(line string) error {
	s.addLog("console", line)
	return nil
}

// PrintText records LCD text.
func (s *Server) PrintText(text string) error {
	s.stateMu.Lock()
	s.state.Display = text
	s.stateMu.Unlock()
	s.addLog("display", text)
	return nil
}

// UpdateStatus records a control loop cycle and broadcasts the new state.
func (s *Server) UpdateStatus(st protocol.StatusData) {
	s.stateMu.Lock()
	s.state.Cycle = st.Cycle
	s.state.Snapshot = st.Snapshot
	s.state.Wheels = st.Wheels
	state := s.copyStateLocked()
	s.stateMu.Unlock()

	if err := s.statusHub.PublishJSON(state); err != nil {
		log.Warn("publish status", "error", err)
	}
}

// RecordHazard logs a safety response.
func (s *Server) RecordHazard(category string, snap hw.Snapshot) {
	s.stateMu.Lock()
	s.state.LastHazard = category
	s.state.Hazards[category]++
	s.stateMu.Unlock()

	s.addLog("hazard", fmt.Sprintf("%s (cliff %d/%d/%d/%d, bump %t/%t)", category,
		snap.CliffLeft, snap.CliffFrontLeft, snap.CliffFrontRight, snap.CliffRight,
		snap.BumpLeft, snap.BumpRight))
}

// RecordSurvey stores the latest survey report.
func (s *Server) RecordSurvey(report *survey.Report) {
	s.surveyMu.Lock()
	s.lastSurvey = report
	s.surveyMu.Unlock()

	s.stateMu.Lock()
	s.state.Surveys++
	s.state.LastVerdict = report.Verdict.String()
	s.stateMu.Unlock()

	s.addLog("survey", fmt.Sprintf("%d objects, %d humans: %s", len(report.Objects), report.Humans, report.Verdict))
}

// State returns a copy of the current state.
func (s *Server) State() RoverState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.copyStateLocked()
}

func (s *Server) copyStateLocked() RoverState {
	st := s.state
	st.Hazards = make(map[string]int, len(s.state.Hazards))
	for k, v := range s.state.Hazards {
		st.Hazards[k] = v
	}
	return st
}

// Logs returns the retained log entries, oldest first.
func (s *Server) Logs() []LogEntry {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	out := make([]LogEntry, len(s.logs))
	copy(out, s.logs)
	return out
}

func (s *Server) addLog(logType, message string) {
	entry := LogEntry{
		Time:    time.Now().Format("15:04:05"),
		Type:    logType,
		Message: message,
	}

	s.logsMu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogs {
		s.logs = s.logs[1:]
	}
	s.logsMu.Unlock()

	if err := s.logHub.PublishJSON(entry); err != nil {
		log.Warn("publish log entry", "error", err)
	}
}

// StatusClients returns how many dashboards follow /ws/status.
func (s *Server) StatusClients() int {
	return s.statusHub.Subscribers()
}

// LogClients returns how many dashboards follow /ws/logs.
func (s *Server) LogClients() int {
	return s.logHub.Subscribers()
}

var (
	_ hw.Console = (*Server)(nil)
	_ hw.Display = (*Server)(nil)
)
