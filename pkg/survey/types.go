// Package survey sweeps the sensor mount across an arc, segments the infrared
// readings into discrete objects and classifies each object by its width.
package survey

import (
	"errors"
	"fmt"
	"time"
)

// ErrCapacityExceeded is reported when a sweep sees more objects than Config.Capacity.
var ErrCapacityExceeded = errors.New("survey: object capacity exceeded")

// Label is an object's width category.
type Label byte

const (
	Human  Label = 'H'
	Torso  Label = 'T'
	Debris Label = 'D'
)

// String returns the label name.
func (l Label) String() string {
	switch l {
	case Human:
		return "human"
	case Torso:
		return "torso"
	case Debris:
		return "debris"
	default:
		return fmt.Sprintf("label(%q)", byte(l))
	}
}

// MarshalText encodes the label by name.
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText accepts a label name or its one-letter code.
func (l *Label) UnmarshalText(text []byte) error {
	switch string(text) {
	case "human", "H":
		*l = Human
	case "torso", "T":
		*l = Torso
	case "debris", "D":
		*l = Debris
	default:
		return fmt.Errorf("survey: unknown label %q", text)
	}
	return nil
}

// Verdict is the overall outcome of a survey.
type Verdict int

const (
	None      Verdict = iota // no humans
	Candidate                // one or two humans: a survivor
	Confirmed                // three or more humans: the response team
)

// String returns the verdict name.
func (v Verdict) String() string {
	switch v {
	case None:
		return "none"
	case Candidate:
		return "candidate"
	case Confirmed:
		return "confirmed"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// MarshalText encodes the verdict by name.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Verdict) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none":
		*v = None
	case "candidate":
		*v = Candidate
	case "confirmed":
		*v = Confirmed
	default:
		return fmt.Errorf("survey: unknown verdict %q", text)
	}
	return nil
}

// Object is one detected interval. IDs start at 1 in angular order.
type Object struct {
	ID           int     `json:"id"`
	StartAngle   int     `json:"start_angle"`
	EndAngle     int     `json:"end_angle"`
	CenterAngle  int     `json:"center_angle"`
	IRDistance   int     `json:"ir_distance"`   // proxy distance at StartAngle
	PingDistance float64 `json:"ping_distance"` // cm at CenterAngle
	Width        float64 `json:"width"`         // cm
	Label        Label   `json:"label"`
}

// Sample is one sweep step.
type Sample struct {
	Angle    int `json:"angle"`
	Distance int `json:"distance"`
}

// Report is the result of one survey.
type Report struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Samples   []Sample      `json:"samples"`
	Objects   []Object      `json:"objects"`
	Dropped   int           `json:"dropped"` // detections rejected past capacity
	Humans    int           `json:"humans"`
	Verdict   Verdict       `json:"verdict"`
}

// Config holds sweep and classification parameters.
type Config struct {
	StartAngle int
	EndAngle   int
	Step       int

	// Settle is waited once after the first mount move and once per object
	// before the ultrasonic reading.
	Settle time.Duration

	Threshold int // proxy distance below which a reading is inside an object
	Capacity  int // maximum objects tracked per sweep
}

// DefaultConfig returns the 0 to 180° sweep in 2° steps with a threshold of 70.
func DefaultConfig() Config {
	return Config{
		StartAngle: 0,
		EndAngle:   180,
		Step:       2,
		Settle:     500 * time.Millisecond,
		Threshold:  70,
		Capacity:   10,
	}
}

// Validate checks that the sweep terminates and the arc fits the mount.
func (c Config) Validate() error {
	if c.Step <= 0 {
		return fmt.Errorf("survey: step must be positive, got %d", c.Step)
	}
	if c.StartAngle < 0 || c.EndAngle > 180 || c.StartAngle > c.EndAngle {
		return fmt.Errorf("survey: arc [%d, %d] outside mount range [0, 180]", c.StartAngle, c.EndAngle)
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("survey: capacity must be positive, got %d", c.Capacity)
	}
	return nil
}
