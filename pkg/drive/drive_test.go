package drive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-rescue/pkg/hw"
	"github.com/teslashibe/go-rescue/pkg/sim"
)

// scriptedBase replays fixed odometry deltas and records wheel commands.
type scriptedBase struct {
	deltas   []hw.Snapshot
	snap     hw.Snapshot
	updates  int
	commands [][2]int
}

func (b *scriptedBase) Update() error {
	if b.updates < len(b.deltas) {
		b.snap = b.deltas[b.updates]
	} else {
		b.snap = hw.Snapshot{}
	}
	b.updates++
	return nil
}

func (b *scriptedBase) SetWheels(left, right int) error {
	b.commands = append(b.commands, [2]int{left, right})
	return nil
}

func (b *scriptedBase) Snapshot() hw.Snapshot { return b.snap }

func angles(vals ...float64) []hw.Snapshot {
	out := make([]hw.Snapshot, len(vals))
	for i, v := range vals {
		out[i] = hw.Snapshot{Angle: v}
	}
	return out
}

func TestRotateClockwise_TruncatesBeforeCompare(t *testing.T) {
	// -89.9 truncates to -89 and keeps turning; -90.4 truncates to -90 and stops.
	base := &scriptedBase{deltas: angles(-30, -30, -29.9, -0.5, 5)}
	d := New(base, DefaultConfig())

	require.NoError(t, d.RotateClockwise(context.Background(), 90))

	assert.Equal(t, 4, base.updates)
	assert.Equal(t, [][2]int{{TurnSpeed, -TurnSpeed}, {0, 0}}, base.commands)
}

func TestRotateCounterClockwise_Terminates(t *testing.T) {
	base := &scriptedBase{deltas: angles(45, 44.99, 0.02)}
	d := New(base, DefaultConfig())

	require.NoError(t, d.RotateCounterClockwise(context.Background(), 90))

	assert.Equal(t, 3, base.updates)
	assert.Equal(t, [][2]int{{-TurnSpeed, TurnSpeed}, {0, 0}}, base.commands)
}

func TestRotate_ZeroTargetDoesNotPoll(t *testing.T) {
	base := &scriptedBase{deltas: angles(-3)}
	d := New(base, DefaultConfig())

	require.NoError(t, d.RotateClockwise(context.Background(), 0))
	assert.Equal(t, 0, base.updates)
	assert.Equal(t, [][2]int{{TurnSpeed, -TurnSpeed}, {0, 0}}, base.commands)
}

func TestRetreat_FixedDistance(t *testing.T) {
	base := sim.NewBase()
	d := New(base, DefaultConfig())

	require.NoError(t, d.Retreat(context.Background()))

	// -100 wheels at 0.25 mm/unit = -25 mm per update, three updates to reach -75
	assert.Equal(t, 3, base.Updates())
	assert.InDelta(t, -75, base.Odometer(), 1e-9)
	assert.Equal(t, []sim.WheelCommand{{Left: -100, Right: -100}, {Left: 0, Right: 0}}, base.Commands())
}

func TestAdvance(t *testing.T) {
	base := sim.NewBase()
	d := New(base, DefaultConfig())

	require.NoError(t, d.Advance(context.Background(), 100))

	// 150 wheels = 37.5 mm per update
	assert.Equal(t, 3, base.Updates())
	left, right := base.Wheels()
	assert.Zero(t, left)
	assert.Zero(t, right)
}

func TestTimeout_StopsWheels(t *testing.T) {
	base := sim.NewBase()
	base.Stall(true)
	d := New(base, Config{Timeout: 20 * time.Millisecond})

	err := d.RotateClockwise(context.Background(), 90)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrManeuverTimeout))
	left, right := base.Wheels()
	assert.Zero(t, left)
	assert.Zero(t, right)
}

func TestContextCancel_StopsWheels(t *testing.T) {
	base := sim.NewBase()
	base.Stall(true)
	d := New(base, DefaultConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := d.Retreat(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	cmds := base.Commands()
	assert.Equal(t, sim.WheelCommand{}, cmds[len(cmds)-1])
}

func TestStop(t *testing.T) {
	base := sim.NewBase()
	require.NoError(t, base.SetWheels(100, 100))

	require.NoError(t, New(base, DefaultConfig()).Stop())

	left, right := base.Wheels()
	assert.Zero(t, left)
	assert.Zero(t, right)
}
