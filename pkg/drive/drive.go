// Package drive provides open-loop motion primitives built on drive base odometry.
//
// Every maneuver sets symmetric wheel velocities, then polls the base and
// accumulates odometry until its termination predicate holds, and always
// stops both wheels before returning. Each maneuver owns a fresh accumulator.
//
// With the default Config there is no timeout: if the base never reports
// motion the maneuver blocks until ctx is cancelled. Setting Config.Timeout
// opts in to ErrManeuverTimeout.
package drive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-rescue/internal/log"
	"github.com/teslashibe/go-rescue/pkg/debug"
	"github.com/teslashibe/go-rescue/pkg/hw"
)

// Wheel speeds in mm/s and the fixed retreat distance.
const (
	AdvanceSpeed      = 150
	RetreatSpeed      = 100
	TurnSpeed         = 50
	RetreatDistanceMm = 75
)

// ErrManeuverTimeout is returned when Config.Timeout elapses before a maneuver completes.
var ErrManeuverTimeout = errors.New("drive: maneuver timed out")

// Config holds maneuver settings.
type Config struct {
	// Timeout bounds a single maneuver. Zero means block until done.
	Timeout time.Duration
}

// DefaultConfig returns the no-timeout configuration.
func DefaultConfig() Config {
	return Config{}
}

// Odometry is a maneuver's private accumulator.
type Odometry struct {
	Angle    float64 // degrees, counter-clockwise positive
	Distance float64 // mm, forward positive
}

// Driver runs maneuvers against a drive base.
type Driver struct {
	base hw.Base
	cfg  Config
	now  func() time.Time
}

// New creates a Driver.
func New(base hw.Base, cfg Config) *Driver {
	return &Driver{base: base, cfg: cfg, now: time.Now}
}

// Stop zeroes both wheels.
func (d *Driver) Stop() error {
	if err := d.base.SetWheels(0, 0); err != nil {
		return fmt.Errorf("drive: stop: %w", err)
	}
	return nil
}

// Advance drives forward until targetMm has been covered.
func (d *Driver) Advance(ctx context.Context, targetMm float64) error {
	return d.run(ctx, "advance", AdvanceSpeed, AdvanceSpeed, func(o Odometry) bool {
		return o.Distance < targetMm
	})
}

// Retreat backs up a fixed 75 mm.
func (d *Driver) Retreat(ctx context.Context) error {
	return d.run(ctx, "retreat", -RetreatSpeed, -RetreatSpeed, func(o Odometry) bool {
		return o.Distance > -RetreatDistanceMm
	})
}

// RotateClockwise spins in place until the accumulated angle, truncated
// toward zero, reaches -degrees.
func (d *Driver) RotateClockwise(ctx context.Context, degrees int) error {
	return d.run(ctx, "rotate_cw", TurnSpeed, -TurnSpeed, func(o Odometry) bool {
		return int(o.Angle) > -degrees
	})
}

// RotateCounterClockwise spins in place until the accumulated angle,
// truncated toward zero, reaches degrees.
func (d *Driver) RotateCounterClockwise(ctx context.Context, degrees int) error {
	return d.run(ctx, "rotate_ccw", -TurnSpeed, TurnSpeed, func(o Odometry) bool {
		return int(o.Angle) < degrees
	})
}

// run drives the wheels while active reports true, polling the base each pass.
func (d *Driver) run(ctx context.Context, name string, left, right int, active func(Odometry) bool) (err error) {
	if err := d.base.SetWheels(left, right); err != nil {
		return fmt.Errorf("drive: %s: %w", name, err)
	}
	defer func() {
		if stopErr := d.base.SetWheels(0, 0); stopErr != nil && err == nil {
			err = fmt.Errorf("drive: %s: stop: %w", name, stopErr)
		}
	}()

	var deadline time.Time
	if d.cfg.Timeout > 0 {
		deadline = d.now().Add(d.cfg.Timeout)
	}

	var odo Odometry
	polls := 0
	for active(odo) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !deadline.IsZero() && d.now().After(deadline) {
			return fmt.Errorf("%w: %s after %d polls (angle=%.1f, distance=%.1f)",
				ErrManeuverTimeout, name, polls, odo.Angle, odo.Distance)
		}
		if err := d.base.Update(); err != nil {
			return fmt.Errorf("drive: %s: update: %w", name, err)
		}
		s := d.base.Snapshot()
		odo.Angle += s.Angle
		odo.Distance += s.Distance
		polls++
		debug.Log("drive %s poll=%d angle=%.1f distance=%.1f\n", name, polls, odo.Angle, odo.Distance)
	}

	log.Debug("maneuver complete", "maneuver", name, "polls", polls,
		"angle", odo.Angle, "distance", odo.Distance)
	return nil
}
