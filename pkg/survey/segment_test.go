package survey

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func samplesAt(start, step int, distances ...int) []Sample {
	out := make([]Sample, len(distances))
	for i, d := range distances {
		out[i] = Sample{Angle: start + i*step, Distance: d}
	}
	return out
}

func TestSegment(t *testing.T) {
	tests := []struct {
		name    string
		samples []Sample
		want    []Object
	}{
		{
			name:    "single dip",
			samples: samplesAt(0, 2, 90, 90, 60, 60, 90),
			want:    []Object{{ID: 1, StartAngle: 4, EndAngle: 6, IRDistance: 60}},
		},
		{
			name:    "first sample below threshold never opens",
			samples: samplesAt(0, 2, 40, 40, 90),
			want:    nil,
		},
		{
			name:    "previous at threshold does not open",
			samples: samplesAt(0, 2, 90, 70, 60, 90),
			want:    nil,
		},
		{
			name:    "reading at threshold does not close",
			samples: samplesAt(0, 2, 90, 60, 70, 60, 90),
			want:    []Object{{ID: 1, StartAngle: 2, EndAngle: 6, IRDistance: 60}},
		},
		{
			name:    "end is last reading below threshold",
			samples: samplesAt(0, 2, 90, 50, 55, 70, 90),
			want:    []Object{{ID: 1, StartAngle: 2, EndAngle: 4, IRDistance: 50}},
		},
		{
			name:    "single-sample object",
			samples: samplesAt(10, 2, 90, 30, 90),
			want:    []Object{{ID: 1, StartAngle: 12, EndAngle: 12, IRDistance: 30}},
		},
		{
			name:    "two objects in angular order",
			samples: samplesAt(0, 2, 90, 50, 50, 90, 90, 40, 90),
			want: []Object{
				{ID: 1, StartAngle: 2, EndAngle: 4, IRDistance: 50},
				{ID: 2, StartAngle: 10, EndAngle: 10, IRDistance: 40},
			},
		},
		{
			name:    "open at sweep end closes at last angle",
			samples: samplesAt(170, 2, 90, 90, 50, 50, 50, 50),
			want:    []Object{{ID: 1, StartAngle: 174, EndAngle: 180, IRDistance: 50}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, dropped := Segment(tt.samples, 70, 10)
			assert.Zero(t, dropped)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Segment() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSegment_CenterOfScenario(t *testing.T) {
	objs, _ := Segment(samplesAt(0, 2, 90, 90, 60, 60, 90), 70, 10)
	if assert.Len(t, objs, 1) {
		assert.Equal(t, 5, CenterAngle(objs[0].StartAngle, objs[0].EndAngle))
	}
}

func TestSegment_CapacityIsHardCap(t *testing.T) {
	var distances []int
	for i := 0; i < 12; i++ {
		distances = append(distances, 90, 60)
	}
	distances = append(distances, 90)

	objs, dropped := Segment(samplesAt(0, 2, distances...), 70, 10)

	assert.Len(t, objs, 10)
	assert.Equal(t, 2, dropped)
	for i, o := range objs {
		assert.Equal(t, i+1, o.ID)
		assert.Equal(t, o.StartAngle, o.EndAngle)
	}
	// The tenth object is not overwritten by later rejected dips.
	assert.Equal(t, 38, objs[9].StartAngle)
}

func TestSegmenter_Events(t *testing.T) {
	seg := NewSegmenter(70, 1)

	assert.Equal(t, NoEvent, seg.Add(0, 90))
	assert.Equal(t, Opened, seg.Add(2, 60))
	assert.Equal(t, NoEvent, seg.Add(4, 65))
	assert.Equal(t, Closed, seg.Add(6, 80))
	assert.Equal(t, Rejected, seg.Add(8, 20))
	assert.Equal(t, NoEvent, seg.Add(10, 90))

	assert.Equal(t, 1, seg.Dropped())
	assert.Len(t, seg.Finish(), 1)
}

func TestProxyDistance(t *testing.T) {
	tests := []struct {
		raw  int
		want int
	}{
		{raw: 100, want: 945},
		{raw: 697, want: 60},
		{raw: 1000, want: 35},
		{raw: 4095, want: 4},
		{raw: 1, want: MaxProxyDistance},   // 654371 exceeds the cap
		{raw: 0, want: MaxProxyDistance},   // +Inf from the curve
		{raw: -12, want: MaxProxyDistance}, // NaN from the curve
	}

	for _, tt := range tests {
		if got := ProxyDistance(tt.raw); got != tt.want {
			t.Errorf("ProxyDistance(%d) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}
