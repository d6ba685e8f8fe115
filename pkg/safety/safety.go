// Package safety implements the reactive hazard layer that runs before any
// operator command each control cycle.
//
// Three categories are checked independently, so a single cycle can fire a
// cliff response, a boundary response and a collision response in that order.
package safety

import (
	"context"
	"fmt"

	"github.com/teslashibe/go-rescue/internal/log"
	"github.com/teslashibe/go-rescue/pkg/hw"
)

// Category is a hazard class.
type Category int

const (
	Cliff Category = iota
	Boundary
	CollisionLeft
	CollisionRight
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case Cliff:
		return "cliff"
	case Boundary:
		return "boundary"
	case CollisionLeft:
		return "collision_left"
	case CollisionRight:
		return "collision_right"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// MarshalText encodes the category by name.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Diagnostic console lines, one per trigger.
const (
	MsgCliff          = "WARNING: Detected a drop-off!"
	MsgBoundary       = "WARNING: Boundary hit!"
	MsgCollisionLeft  = "Collision: Object on left side"
	MsgCollisionRight = "Collision: Object on right side"
)

// Config holds hazard thresholds and escape turns.
type Config struct {
	CliffThreshold     int // any cliff signal below this is a drop-off
	BoundaryFrontLeft  int // front-left signal above this is a boundary
	BoundaryFrontRight int // front-right signal above this is a boundary
	EscapeTurn         int // degrees turned after a cliff or boundary
	BumpTurn           int // degrees turned after a collision
}

// DefaultConfig returns the thresholds the chassis was calibrated with.
func DefaultConfig() Config {
	return Config{
		CliffThreshold:     20,
		BoundaryFrontLeft:  2700,
		BoundaryFrontRight: 2600,
		EscapeTurn:         90,
		BumpTurn:           80,
	}
}

// Maneuverer is the subset of drive primitives the layer issues.
type Maneuverer interface {
	Stop() error
	Retreat(ctx context.Context) error
	RotateClockwise(ctx context.Context, degrees int) error
	RotateCounterClockwise(ctx context.Context, degrees int) error
}

// Evaluate returns the hazards present in s, in response order.
// At most one collision side is reported; left wins.
func Evaluate(s hw.Snapshot, cfg Config) []Category {
	var out []Category
	if s.CliffLeft < cfg.CliffThreshold || s.CliffFrontLeft < cfg.CliffThreshold ||
		s.CliffFrontRight < cfg.CliffThreshold || s.CliffRight < cfg.CliffThreshold {
		out = append(out, Cliff)
	}
	if s.CliffFrontLeft > cfg.BoundaryFrontLeft || s.CliffFrontRight > cfg.BoundaryFrontRight {
		out = append(out, Boundary)
	}
	if s.BumpLeft {
		out = append(out, CollisionLeft)
	} else if s.BumpRight {
		out = append(out, CollisionRight)
	}
	return out
}

// turnsClockwise reports the escape direction: away from the side whose
// cliff signal is lower.
func turnsClockwise(s hw.Snapshot) bool {
	return s.CliffLeft < s.CliffRight
}

// Layer issues corrective maneuvers for hazards in the current snapshot.
type Layer struct {
	base    hw.Base
	drive   Maneuverer
	console hw.Console
	cfg     Config

	// OnHazard, if set, is called before each response runs.
	OnHazard func(Category, hw.Snapshot)
}

// New creates a safety layer.
func New(base hw.Base, drive Maneuverer, console hw.Console, cfg Config) *Layer {
	if console == nil {
		console = hw.Discard{}
	}
	return &Layer{base: base, drive: drive, console: console, cfg: cfg}
}

// Check evaluates the snapshot from the most recent Base.Update and runs every
// triggered response to completion. It returns the hazards that fired.
//
// Detection and the escape direction both use the snapshot taken when Check
// starts; maneuvers poll the base and would otherwise change it mid-cycle.
func (l *Layer) Check(ctx context.Context) ([]Category, error) {
	snap := l.base.Snapshot()
	hazards := Evaluate(snap, l.cfg)

	for _, h := range hazards {
		if l.OnHazard != nil {
			l.OnHazard(h, snap)
		}
		log.Info("hazard", "category", h.String(),
			"cliff_l", snap.CliffLeft, "cliff_fl", snap.CliffFrontLeft,
			"cliff_fr", snap.CliffFrontRight, "cliff_r", snap.CliffRight,
			"bump_l", snap.BumpLeft, "bump_r", snap.BumpRight)

		if err := l.respond(ctx, h, snap); err != nil {
			return hazards, fmt.Errorf("safety: %s response: %w", h, err)
		}
	}
	return hazards, nil
}

func (l *Layer) respond(ctx context.Context, h Category, snap hw.Snapshot) error {
	switch h {
	case Cliff:
		l.send(MsgCliff)
		if err := l.drive.Stop(); err != nil {
			return err
		}
		if err := l.drive.Retreat(ctx); err != nil {
			return err
		}
		return l.escape(ctx, snap)

	case Boundary:
		// No stop here: retreat overrides the wheels directly.
		l.send(MsgBoundary)
		if err := l.drive.Retreat(ctx); err != nil {
			return err
		}
		return l.escape(ctx, snap)

	case CollisionLeft:
		l.send(MsgCollisionLeft)
		if err := l.drive.Retreat(ctx); err != nil {
			return err
		}
		return l.drive.RotateClockwise(ctx, l.cfg.BumpTurn)

	case CollisionRight:
		l.send(MsgCollisionRight)
		if err := l.drive.Retreat(ctx); err != nil {
			return err
		}
		return l.drive.RotateCounterClockwise(ctx, l.cfg.BumpTurn)
	}
	return nil
}

func (l *Layer) escape(ctx context.Context, snap hw.Snapshot) error {
	if turnsClockwise(snap) {
		return l.drive.RotateClockwise(ctx, l.cfg.EscapeTurn)
	}
	return l.drive.RotateCounterClockwise(ctx, l.cfg.EscapeTurn)
}

func (l *Layer) send(msg string) {
	if err := l.console.SendString(msg); err != nil {
		log.Warn("console send failed", "error", err)
	}
}
