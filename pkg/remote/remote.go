// Package remote accepts operator connections over WebSocket. Operators send
// single-key commands and receive the rover's console lines and LCD text.
package remote

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/teslashibe/go-rescue/internal/log"
	"github.com/teslashibe/go-rescue/pkg/hw"
	"github.com/teslashibe/go-rescue/pkg/protocol"
	"github.com/teslashibe/go-rescue/pkg/survey"
)

// Poster accepts operator command bytes.
type Poster interface {
	Post(cmd byte) error
}

// Per-operator outbound queue depth and write limit.
const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
)

// ErrSlowOperator is returned when an operator's outbound queue is full.
var ErrSlowOperator = errors.New("remote: operator queue full")

// Operator is a connected operator console
type Operator struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time

	mu      sync.Mutex
	send    chan []byte
	done    chan struct{}
	stopped chan struct{}
}

// Send queues a message for the operator. It never blocks; a full queue
// drops the message and returns ErrSlowOperator.
func (o *Operator) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	select {
	case o.send <- data:
		return nil
	default:
		return ErrSlowOperator
	}
}

// writeLoop owns all writes to the connection. A write that misses the
// deadline closes the connection, which ends the read loop too.
func (o *Operator) writeLoop(timeout time.Duration) {
	defer close(o.stopped)
	for {
		select {
		case <-o.done:
			return
		case data := <-o.send:
			_ = o.Conn.SetWriteDeadline(time.Now().Add(timeout))
			if err := o.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug("operator write failed", "operator", o.ID, "error", err)
				_ = o.Conn.Close()
				return
			}
		}
	}
}

// Hub manages operator connections. It implements hw.Console and hw.Display
// by broadcasting to every operator.
type Hub struct {
	mu        sync.RWMutex
	operators map[string]*Operator
	mailbox   Poster

	onCommand    func(operatorID string, key byte)
	writeTimeout time.Duration

	commandsReceived atomic.Uint64
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	messagesDropped  atomic.Uint64
}

// NewHub creates an operator hub that posts commands to mailbox
func NewHub(mailbox Poster) *Hub {
	return &Hub{
		operators:    make(map[string]*Operator),
		mailbox:      mailbox,
		writeTimeout: writeTimeout,
	}
}

// OnCommand sets a callback for every accepted command
func (h *Hub) OnCommand(callback func(operatorID string, key byte)) {
	h.mu.Lock()
	h.onCommand = callback
	h.mu.Unlock()
}

// RegisterRoutes registers the operator WebSocket routes on a Fiber app
func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/control", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/control", websocket.New(h.handleOperator))
	app.Get("/ws/control/:id", websocket.New(h.handleOperator))
}

// handleOperator serves one operator connection
func (h *Hub) handleOperator(c *websocket.Conn) {
	id := c.Params("id")
	if id == "" {
		id = uuid.NewString()
	}

	op := &Operator{
		ID:        id,
		Conn:      c,
		Connected: time.Now(),
		LastSeen:  time.Now(),
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go op.writeLoop(h.writeTimeout)

	h.mu.Lock()
	h.operators[id] = op
	count := len(h.operators)
	h.mu.Unlock()
	log.Info("operator connected", "operator", id, "operators", count)

	defer func() {
		close(op.done)
		<-op.stopped

		h.mu.Lock()
		if h.operators[id] == op {
			delete(h.operators, id)
		}
		count := len(h.operators)
		h.mu.Unlock()
		log.Info("operator disconnected", "operator", id, "operators", count)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			log.Debug("operator read ended", "operator", id, "error", err)
			return
		}

		op.mu.Lock()
		op.LastSeen = time.Now()
		op.mu.Unlock()

		h.messagesReceived.Add(1)
		h.handleMessage(op, data)
	}
}

// handleMessage processes an incoming operator message
func (h *Hub) handleMessage(op *Operator, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		log.Warn("bad operator message", "operator", op.ID, "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeCommand:
		cmd, err := msg.GetCommandData()
		if err != nil || cmd.Key == "" {
			log.Warn("bad operator command", "operator", op.ID, "error", err)
			return
		}
		if err := h.mailbox.Post(cmd.Byte()); err != nil {
			log.Warn("command rejected", "operator", op.ID, "error", err)
			return
		}
		h.commandsReceived.Add(1)

		h.mu.RLock()
		cb := h.onCommand
		h.mu.RUnlock()
		if cb != nil {
			cb(op.ID, cmd.Byte())
		}

	case protocol.TypePing:
		pong, err := protocol.NewPongMessage(op.ID, msg.Timestamp, time.Now().UnixMilli())
		if err != nil {
			return
		}
		h.deliver(op, pong)
	}
}

// Broadcast sends a message to all connected operators
func (h *Hub) Broadcast(msg *protocol.Message) {
	for _, op := range h.Operators() {
		h.deliver(op, msg)
	}
}

func (h *Hub) deliver(op *Operator, msg *protocol.Message) {
	if err := op.Send(msg); err != nil {
		h.messagesDropped.Add(1)
		log.Debug("message to operator dropped", "operator", op.ID, "error", err)
		return
	}
	h.messagesSent.Add(1)
}

// SendString broadcasts a console line
func (h *Hub) SendString(line string) error {
	msg, err := protocol.NewConsoleMessage(line)
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

// PrintText broadcasts LCD text
func (h *Hub) PrintText(text string) error {
	msg, err := protocol.NewDisplayMessage(text)
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

// SendHazard broadcasts a safety response
func (h *Hub) SendHazard(category string, snap hw.Snapshot) error {
	msg, err := protocol.NewHazardMessage(category, snap)
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

// SendSurvey broadcasts a completed survey report
func (h *Hub) SendSurvey(report *survey.Report) error {
	msg, err := protocol.NewSurveyMessage(report)
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

// Operator returns an operator by ID
func (h *Hub) Operator(id string) *Operator {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.operators[id]
}

// Operators returns all connected operators
func (h *Hub) Operators() []*Operator {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ops := make([]*Operator, 0, len(h.operators))
	for _, op := range h.operators {
		ops = append(ops, op)
	}
	return ops
}

// OperatorCount returns the number of connected operators
func (h *Hub) OperatorCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.operators)
}

// Stats contains hub statistics
type Stats struct {
	OperatorCount    int    `json:"operator_count"`
	CommandsReceived uint64 `json:"commands_received"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	MessagesDropped  uint64 `json:"messages_dropped"`
}

// GetStats returns hub statistics
func (h *Hub) GetStats() Stats {
	return Stats{
		OperatorCount:    h.OperatorCount(),
		CommandsReceived: h.commandsReceived.Load(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		MessagesDropped:  h.messagesDropped.Load(),
	}
}

// OperatorInfo describes a connected operator
type OperatorInfo struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// RegisterAPIRoutes registers operator listing routes
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	ops := api.Group("/operators")

	ops.Get("/", func(c *fiber.Ctx) error {
		infos := make([]OperatorInfo, 0)
		for _, op := range h.Operators() {
			op.mu.Lock()
			infos = append(infos, OperatorInfo{ID: op.ID, Connected: op.Connected, LastSeen: op.LastSeen})
			op.mu.Unlock()
		}
		return c.JSON(fiber.Map{
			"operators": infos,
			"count":     len(infos),
		})
	})

	ops.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})
}

var (
	_ hw.Console = (*Hub)(nil)
	_ hw.Display = (*Hub)(nil)
)
