package survey

import "math"

// LowPrecisionPi is the π used for the width computation. The width buckets
// were calibrated with it, so it is kept instead of math.Pi.
const LowPrecisionPi = 3.14

// Width bucket upper bounds in cm. Buckets are open below, closed above.
const (
	MinHumanWidth = 6.0
	MaxHumanWidth = 11.0
	MaxTorsoWidth = 14.0
)

// CenterAngle is the midpoint of an interval, truncated toward zero.
func CenterAngle(start, end int) int {
	return (start + end) / 2
}

// Width converts an angular extent and a range into a linear width in cm.
func Width(ping float64, start, end int) float64 {
	return ping * math.Sin(float64(end-start)*LowPrecisionPi/180.0)
}

// Classify buckets a width: (6, 11] is a human, (11, 14] a torso, anything else debris.
func Classify(width float64) Label {
	switch {
	case width > MinHumanWidth && width <= MaxHumanWidth:
		return Human
	case width > MaxHumanWidth && width <= MaxTorsoWidth:
		return Torso
	default:
		return Debris
	}
}

// VerdictFor maps a human count to a verdict.
func VerdictFor(humans int) Verdict {
	switch {
	case humans >= 3:
		return Confirmed
	case humans > 0:
		return Candidate
	default:
		return None
	}
}

// CountHumans counts Human labels.
func CountHumans(objects []Object) int {
	n := 0
	for _, o := range objects {
		if o.Label == Human {
			n++
		}
	}
	return n
}
