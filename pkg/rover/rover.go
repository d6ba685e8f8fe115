// Package rover runs the control loop: refresh sensors, let the safety layer
// respond to hazards, then execute at most one operator command.
package rover

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-rescue/internal/log"
	"github.com/teslashibe/go-rescue/pkg/hw"
	"github.com/teslashibe/go-rescue/pkg/safety"
)

// HazardChecker is the safety layer as seen by the loop.
type HazardChecker interface {
	Check(ctx context.Context) ([]safety.Category, error)
}

// CommandPoller is the operator dispatcher as seen by the loop.
type CommandPoller interface {
	Poll(ctx context.Context) (bool, error)
}

// Config holds loop settings.
type Config struct {
	// CycleDelay is slept between cycles. Zero runs the loop flat out,
	// paced only by the base's own update rate.
	CycleDelay time.Duration
}

// DefaultConfig returns a loop paced only by the base.
func DefaultConfig() Config {
	return Config{}
}

// Status describes one completed cycle.
type Status struct {
	Cycle    uint64            `json:"cycle"`
	Snapshot hw.Snapshot       `json:"snapshot"`
	Hazards  []safety.Category `json:"hazards,omitempty"`
	Command  bool              `json:"command"`
	At       time.Time         `json:"at"`
}

// Rover owns the control loop. Only one goroutine may call Step or Run.
type Rover struct {
	base       hw.Base
	safety     HazardChecker
	dispatcher CommandPoller
	cfg        Config

	cycles atomic.Uint64

	// OnStatus, if set, is called after every cycle.
	OnStatus func(Status)
}

// New creates a rover loop.
func New(base hw.Base, checker HazardChecker, poller CommandPoller, cfg Config) *Rover {
	return &Rover{base: base, safety: checker, dispatcher: poller, cfg: cfg}
}

// Step runs one cycle. Safety responses complete before the operator command
// is looked at, and a survey started by the command blocks until it finishes.
func (r *Rover) Step(ctx context.Context) (Status, error) {
	st := Status{Cycle: r.cycles.Add(1)}

	if err := r.base.Update(); err != nil {
		return st, fmt.Errorf("rover: update sensors: %w", err)
	}
	st.Snapshot = r.base.Snapshot()

	hazards, err := r.safety.Check(ctx)
	st.Hazards = hazards
	if err != nil {
		return st, err
	}

	handled, err := r.dispatcher.Poll(ctx)
	st.Command = handled
	if err != nil {
		return st, err
	}

	st.At = time.Now()
	if r.OnStatus != nil {
		r.OnStatus(st)
	}
	return st, nil
}

// Cycles returns how many cycles have started.
func (r *Rover) Cycles() uint64 {
	return r.cycles.Load()
}

// Run steps until ctx is done, then stops the wheels. Cycle errors are logged
// and the loop carries on.
func (r *Rover) Run(ctx context.Context) error {
	log.Info("control loop started", "cycle_delay", r.cfg.CycleDelay)
	defer func() {
		if err := r.base.SetWheels(0, 0); err != nil {
			log.Error("stop wheels on shutdown", "error", err)
		}
		log.Info("control loop stopped", "cycles", r.Cycles())
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		if _, err := r.Step(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			log.Error("control cycle failed", "error", err)
		}

		if r.cfg.CycleDelay > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(r.cfg.CycleDelay):
			}
		}
	}
}
