// Package hw defines the hardware collaborators the rover core drives.
//
// Interfaces are kept small so each consumer depends only on what it uses:
// the safety layer needs a Base, the survey engine needs a Mount and two
// sensors, and everything that reports to the operator needs a Console.
package hw

import "time"

// Snapshot is the drive base status read by the most recent Update.
//
// Angle and Distance are deltas since the previous Update, not totals.
// Angle is in degrees (counter-clockwise positive), Distance in millimeters
// (forward positive).
type Snapshot struct {
	CliffLeft       int `json:"cliff_left"`
	CliffFrontLeft  int `json:"cliff_front_left"`
	CliffFrontRight int `json:"cliff_front_right"`
	CliffRight      int `json:"cliff_right"`

	BumpLeft  bool `json:"bump_left"`
	BumpRight bool `json:"bump_right"`

	Angle    float64 `json:"angle"`
	Distance float64 `json:"distance"`
}

// Base is the wheeled chassis: velocity control plus odometry and hazard telemetry.
type Base interface {
	// Update refreshes the snapshot from the chassis.
	Update() error

	// SetWheels commands wheel velocities in mm/s.
	SetWheels(left, right int) error

	// Snapshot returns the values read by the last Update.
	Snapshot() Snapshot
}

// Mount is the rotating platform carrying the range sensors.
type Mount interface {
	// MoveTo commands an absolute angle in degrees, 0 to 180.
	MoveTo(angle int) error
}

// ProxySensor is the infrared sensor; raw values need an empirical curve.
type ProxySensor interface {
	ReadRaw() (int, error)
}

// RangeSensor is the ultrasonic sensor reporting centimeters.
type RangeSensor interface {
	ReadDistance() (float64, error)
}

// Display is the on-board text display.
type Display interface {
	PrintText(text string) error
}

// Console is the operator text link. Each call carries one line.
type Console interface {
	SendString(text string) error
}

// Clock provides blocking waits.
type Clock interface {
	Sleep(d time.Duration)
}

// WallClock sleeps on the real clock.
type WallClock struct{}

// Sleep blocks for d.
func (WallClock) Sleep(d time.Duration) { time.Sleep(d) }

// Discard is a Console and Display that drops everything.
type Discard struct{}

// SendString drops text.
func (Discard) SendString(string) error { return nil }

// PrintText drops text.
func (Discard) PrintText(string) error { return nil }

var (
	_ Clock   = WallClock{}
	_ Console = Discard{}
	_ Display = Discard{}
)
