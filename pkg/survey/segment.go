package survey

import "math"

// MaxProxyDistance caps the infrared distance. Raw readings at or below zero,
// and anything the curve maps past the cap (including +Inf), read as this far.
const MaxProxyDistance = 1000

// ProxyDistance converts a raw infrared reading with the sensor's empirical
// curve, distance = 654371 * raw^-1.420, truncated to whole centimeters.
func ProxyDistance(raw int) int {
	if raw <= 0 {
		return MaxProxyDistance
	}
	d := 654371 * math.Pow(float64(raw), -1.420)
	if math.IsNaN(d) || math.IsInf(d, 0) || d > MaxProxyDistance {
		return MaxProxyDistance
	}
	return int(d)
}

// Segmenter turns a stream of sweep samples into object intervals.
//
// An object opens when the reading drops below the threshold after being
// above it, and closes on the first reading above the threshold. Its end is
// the angle of the last reading below the threshold. A reading exactly at the
// threshold neither opens nor closes an object.
type Segmenter struct {
	threshold int
	capacity  int

	objects []Object
	open    bool
	prev    int
	prevAng int
	lastIn  int
	dropped int
}

// NewSegmenter creates a segmenter. The previous reading starts at zero, so
// the first sample can never open an object.
func NewSegmenter(threshold, capacity int) *Segmenter {
	return &Segmenter{threshold: threshold, capacity: capacity}
}

// Event describes what a sample did to the segmentation.
type Event int

const (
	NoEvent Event = iota
	Opened
	Closed
	Rejected // would have opened, but capacity is reached
)

// Add feeds one sample.
func (s *Segmenter) Add(angle, distance int) Event {
	ev := NoEvent
	switch {
	case !s.open && s.prev > s.threshold && distance < s.threshold:
		if len(s.objects) >= s.capacity {
			s.dropped++
			ev = Rejected
			break
		}
		s.objects = append(s.objects, Object{
			ID:         len(s.objects) + 1,
			StartAngle: angle,
			IRDistance: distance,
		})
		s.open = true
		s.lastIn = angle
		ev = Opened

	case s.open && distance > s.threshold:
		s.objects[len(s.objects)-1].EndAngle = s.lastIn
		s.open = false
		ev = Closed

	case s.open && distance < s.threshold:
		s.lastIn = angle
	}

	s.prev = distance
	s.prevAng = angle
	return ev
}

// Finish closes an object still open at the end of the sweep at the last
// swept angle and returns every object in opening order.
func (s *Segmenter) Finish() []Object {
	if s.open {
		s.objects[len(s.objects)-1].EndAngle = s.prevAng
		s.open = false
	}
	return s.objects
}

// Dropped returns how many openings were rejected past capacity.
func (s *Segmenter) Dropped() int {
	return s.dropped
}

// Segment runs a whole sweep through a Segmenter.
func Segment(samples []Sample, threshold, capacity int) (objects []Object, dropped int) {
	seg := NewSegmenter(threshold, capacity)
	for _, smp := range samples {
		seg.Add(smp.Angle, smp.Distance)
	}
	return seg.Finish(), seg.Dropped()
}
