// Package protocol defines the WebSocket message types exchanged between the
// rover and its operators and dashboards.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/teslashibe/go-rescue/pkg/hw"
	"github.com/teslashibe/go-rescue/pkg/survey"
)

// MessageType names what a message's Data holds.
type MessageType string

const (
	// Operator → Rover messages
	TypeCommand MessageType = "command" // Single-key drive or survey command

	// Rover → Operator messages
	TypeConsole MessageType = "console" // Diagnostic console line
	TypeDisplay MessageType = "display" // LCD text
	TypeHazard  MessageType = "hazard"  // Safety response fired
	TypeSurvey  MessageType = "survey"  // Completed survey report
	TypeStatus  MessageType = "status"  // Control loop cycle

	// Either direction
	TypePing MessageType = "ping" // Latency check
	TypePong MessageType = "pong" // Ping answer
)

// Message is the envelope for every frame on the control and telemetry
// sockets. Data stays raw until the receiver knows the type.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix ms when built
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage builds a message stamped with the current time. A nil data
// leaves Data empty.
func NewMessage(t MessageType, data any) (*Message, error) {
	msg := &Message{Type: t, Timestamp: time.Now().UnixMilli()}
	if data == nil {
		return msg, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s data: %w", t, err)
	}
	msg.Data = raw
	return msg, nil
}

// ParseData decodes Data into v. Empty data leaves v untouched.
func (m *Message) ParseData(v any) error {
	if len(m.Data) == 0 {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage decodes an envelope.
func ParseMessage(data []byte) (*Message, error) {
	msg := new(Message)
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("protocol: parse message: %w", err)
	}
	return msg, nil
}

// =============================================================================
// Operator → Rover Message Types
// =============================================================================

// CommandData carries one operator key: w, a, s, d or m. Anything else stops.
type CommandData struct {
	Key string `json:"key"`
}

// Byte returns the command byte, or 0 when Key is empty.
func (c CommandData) Byte() byte {
	if c.Key == "" {
		return 0
	}
	return c.Key[0]
}

// =============================================================================
// Rover → Operator Message Types
// =============================================================================

// ConsoleData is one diagnostic line
type ConsoleData struct {
	Line string `json:"line"`
}

// DisplayData is the text shown on the LCD
type DisplayData struct {
	Text string `json:"text"`
}

// HazardData reports a safety response and the readings that triggered it
type HazardData struct {
	Category string      `json:"category"`
	Snapshot hw.Snapshot `json:"snapshot"`
}

// StatusData summarizes one control loop cycle
type StatusData struct {
	Cycle    uint64      `json:"cycle"`
	Snapshot hw.Snapshot `json:"snapshot"`
	Hazards  []string    `json:"hazards,omitempty"`
	Command  bool        `json:"command"`
	Wheels   [2]int      `json:"wheels"` // [left, right] mm/s
}

// SurveyData is a completed survey report
type SurveyData = survey.Report

// =============================================================================
// Ping Message Types
// =============================================================================

// PingData identifies the sender.
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData echoes the ping with the rover's receive time.
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
