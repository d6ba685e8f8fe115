package sim

import (
	"math"
	"sync"
	"time"

	"github.com/teslashibe/go-rescue/pkg/hw"
)

// Target is an object in the simulated arc, spanning [From, To] degrees.
type Target struct {
	From, To int
	Range    float64 // cm, seen by both sensors
}

// Scene holds the simulated mount and the targets around it. It implements
// hw.Mount, hw.ProxySensor and hw.RangeSensor.
type Scene struct {
	mu sync.Mutex

	Targets []Target

	// Background is the range reported where no target is, in cm.
	Background float64

	angle int
	moves []int
}

// NewScene creates a scene with the given targets in front of an open background.
func NewScene(targets ...Target) *Scene {
	return &Scene{Targets: targets, Background: 200}
}

// DemoScene is the scene used by `rover run --sim`: three person-sized
// targets and a wide wall segment.
func DemoScene() *Scene {
	return NewScene(
		Target{From: 20, To: 26, Range: 60},
		Target{From: 70, To: 78, Range: 60},
		Target{From: 110, To: 116, Range: 65},
		Target{From: 150, To: 170, Range: 40},
	)
}

// MoveTo points the simulated mount.
func (s *Scene) MoveTo(angle int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.angle = angle
	s.moves = append(s.moves, angle)
	return nil
}

// Moves returns every angle the mount was commanded to, in order.
func (s *Scene) Moves() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.moves))
	copy(out, s.moves)
	return out
}

func (s *Scene) rangeAt(angle int) float64 {
	for _, t := range s.Targets {
		if angle >= t.From && angle <= t.To {
			return t.Range
		}
	}
	return s.Background
}

// ReadRaw returns the raw infrared value that the empirical curve maps back
// to the range at the current angle.
func (s *Scene) ReadRaw() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return RawForDistance(s.rangeAt(s.angle)), nil
}

// ReadDistance returns the ultrasonic range at the current angle.
func (s *Scene) ReadDistance() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rangeAt(s.angle), nil
}

// RawForDistance inverts distance = 654371 * raw^-1.42. Rounding up keeps
// the round trip at or just below the requested distance.
func RawForDistance(cm float64) int {
	if cm <= 0 {
		return 4095
	}
	return int(math.Ceil(math.Pow(654371/cm, 1/1.420)))
}

// Clock records sleeps without blocking.
type Clock struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

// Sleep records d.
func (c *Clock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
}

// Sleeps returns every recorded sleep.
func (c *Clock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

// Recorder is a Console and Display that keeps every line.
type Recorder struct {
	mu    sync.Mutex
	lines []string
}

// SendString records a console line.
func (r *Recorder) SendString(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, text)
	return nil
}

// PrintText records display text.
func (r *Recorder) PrintText(text string) error {
	return r.SendString(text)
}

// Lines returns everything recorded.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

var (
	_ hw.Mount       = (*Scene)(nil)
	_ hw.ProxySensor = (*Scene)(nil)
	_ hw.RangeSensor = (*Scene)(nil)
	_ hw.Clock       = (*Clock)(nil)
	_ hw.Console     = (*Recorder)(nil)
	_ hw.Display     = (*Recorder)(nil)
)
