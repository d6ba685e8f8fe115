// Package teleop carries operator commands from whatever receives them (a
// serial console, the dashboard, a remote operator) to the control loop.
package teleop

import (
	"errors"
	"sync"
)

// ErrMailboxClosed is returned by Post after Close.
var ErrMailboxClosed = errors.New("teleop: mailbox closed")

// Mailbox is a single-slot handoff between producers and the control loop.
// A post before the previous command was taken replaces it; producers never
// block.
type Mailbox struct {
	mu          sync.Mutex
	slot        chan byte
	closed      bool
	overwritten int
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{slot: make(chan byte, 1)}
}

// Post stores cmd, discarding any command not yet taken.
func (m *Mailbox) Post(cmd byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrMailboxClosed
	}
	select {
	case <-m.slot:
		m.overwritten++
	default:
	}
	m.slot <- cmd
	return nil
}

// Take returns the pending command and clears the slot. It never blocks.
func (m *Mailbox) Take() (byte, bool) {
	select {
	case cmd := <-m.slot:
		return cmd, true
	default:
		return 0, false
	}
}

// Pending reports whether a command is waiting.
func (m *Mailbox) Pending() bool {
	return len(m.slot) > 0
}

// Overwritten returns how many commands were replaced before being taken.
func (m *Mailbox) Overwritten() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.overwritten
}

// Close rejects further posts. A pending command can still be taken.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}
