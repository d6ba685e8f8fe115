// Package sim provides deterministic in-memory stand-ins for the rover hardware.
// They back `rover run --sim` and most of the package tests.
package sim

import (
	"sync"

	"github.com/teslashibe/go-rescue/pkg/hw"
)

// Default kinematics: odometry reported per Update for each unit of wheel velocity.
const (
	DefaultDegreesPerUnit = 0.1  // (right-left) * 0.1 degrees per update
	DefaultMmPerUnit      = 0.25 // (left+right)/2 * 0.25 mm per update

	// NeutralCliff is a cliff signal over plain floor: neither a drop nor a boundary.
	NeutralCliff = 1500
)

// WheelCommand is one SetWheels call.
type WheelCommand struct {
	Left, Right int
}

// Base is a simulated drive base. Odometry follows the commanded wheel
// velocities; hazards come from a persistent baseline plus one-shot pulses.
type Base struct {
	mu sync.Mutex

	DegreesPerUnit float64
	MmPerUnit      float64

	left, right int
	baseline    hw.Snapshot
	pulses      []hw.Snapshot
	snapshot    hw.Snapshot
	stalled     bool

	updates  int
	commands []WheelCommand

	// Heading and Odometer are totals since construction.
	heading  float64
	odometer float64
}

// NewBase creates a simulated base sitting on plain floor.
func NewBase() *Base {
	floor := hw.Snapshot{
		CliffLeft:       NeutralCliff,
		CliffFrontLeft:  NeutralCliff,
		CliffFrontRight: NeutralCliff,
		CliffRight:      NeutralCliff,
	}
	return &Base{
		DegreesPerUnit: DefaultDegreesPerUnit,
		MmPerUnit:      DefaultMmPerUnit,
		baseline:       floor,
		snapshot:       floor,
	}
}

// SetWheels records the command and changes the simulated motion.
func (b *Base) SetWheels(left, right int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.left, b.right = left, right
	b.commands = append(b.commands, WheelCommand{Left: left, Right: right})
	return nil
}

// Update advances the simulation one step.
func (b *Base) Update() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.updates++
	s := b.baseline
	if len(b.pulses) > 0 {
		s = b.pulses[0]
		b.pulses = b.pulses[1:]
	}
	if !b.stalled {
		s.Angle = float64(b.right-b.left) * b.DegreesPerUnit
		s.Distance = float64(b.left+b.right) / 2 * b.MmPerUnit
	}
	b.heading += s.Angle
	b.odometer += s.Distance
	b.snapshot = s
	return nil
}

// Snapshot returns the values produced by the last Update.
func (b *Base) Snapshot() hw.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot
}

// SetBaseline replaces the persistent hazard readings. Angle and Distance are ignored.
func (b *Base) SetBaseline(s hw.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.baseline = s
}

// Pulse queues hazard readings that apply to exactly one Update each, in order.
func (b *Base) Pulse(s ...hw.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pulses = append(b.pulses, s...)
}

// Floor returns plain-floor readings, handy as a starting point for pulses.
func Floor() hw.Snapshot {
	return hw.Snapshot{
		CliffLeft:       NeutralCliff,
		CliffFrontLeft:  NeutralCliff,
		CliffFrontRight: NeutralCliff,
		CliffRight:      NeutralCliff,
	}
}

// Stall makes the base stop reporting motion regardless of wheel commands.
func (b *Base) Stall(stalled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stalled = stalled
}

// Commands returns a copy of every SetWheels call so far.
func (b *Base) Commands() []WheelCommand {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]WheelCommand, len(b.commands))
	copy(out, b.commands)
	return out
}

// Wheels returns the current wheel velocities.
func (b *Base) Wheels() (left, right int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.left, b.right
}

// Updates returns how many times Update has been called.
func (b *Base) Updates() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.updates
}

// Heading returns the accumulated rotation in degrees.
func (b *Base) Heading() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.heading
}

// Odometer returns the accumulated translation in millimeters.
func (b *Base) Odometer() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.odometer
}

var _ hw.Base = (*Base)(nil)
