package rover

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-rescue/pkg/drive"
	"github.com/teslashibe/go-rescue/pkg/hw"
	"github.com/teslashibe/go-rescue/pkg/safety"
	"github.com/teslashibe/go-rescue/pkg/sim"
	"github.com/teslashibe/go-rescue/pkg/survey"
	"github.com/teslashibe/go-rescue/pkg/teleop"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type rig struct {
	base    *sim.Base
	scene   *sim.Scene
	mailbox *teleop.Mailbox
	console *sim.Recorder
	lcd     *sim.Recorder
	rover   *Rover
}

func newRig() *rig {
	r := &rig{
		base:    sim.NewBase(),
		scene:   sim.DemoScene(),
		mailbox: teleop.NewMailbox(),
		console: &sim.Recorder{},
		lcd:     &sim.Recorder{},
	}
	drv := drive.New(r.base, drive.DefaultConfig())
	layer := safety.New(r.base, drv, r.console, safety.DefaultConfig())
	engine := survey.NewEngine(r.scene, r.scene, r.scene, r.console, &sim.Clock{}, survey.DefaultConfig())
	disp := teleop.NewDispatcher(r.mailbox, r.base, engine, r.lcd, r.console)
	r.rover = New(r.base, layer, disp, DefaultConfig())
	return r
}

func TestStep_SafetyBeforeCommand(t *testing.T) {
	r := newRig()
	cliff := sim.Floor()
	cliff.CliffLeft = 5
	r.base.Pulse(cliff)
	require.NoError(t, r.mailbox.Post(teleop.Forward))

	st, err := r.rover.Step(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []safety.Category{safety.Cliff}, st.Hazards)
	assert.True(t, st.Command)
	assert.Equal(t, uint64(1), st.Cycle)

	cmds := r.base.Commands()
	require.NotEmpty(t, cmds)
	assert.Equal(t, sim.WheelCommand{}, cmds[0], "cliff response stops first")
	assert.Equal(t, sim.WheelCommand{Left: -100, Right: -100}, cmds[1])
	assert.Contains(t, cmds, sim.WheelCommand{Left: 50, Right: -50}, "turns clockwise away from the lower left cliff")
	assert.Equal(t, sim.WheelCommand{Left: 100, Right: 100}, cmds[len(cmds)-1], "operator command runs last")
	assert.Equal(t, []string{safety.MsgCliff}, r.console.Lines())
}

func TestStep_NoHazardNoCommand(t *testing.T) {
	r := newRig()

	st, err := r.rover.Step(context.Background())

	require.NoError(t, err)
	assert.Empty(t, st.Hazards)
	assert.False(t, st.Command)
	assert.Empty(t, r.base.Commands())
	assert.Equal(t, 1, r.base.Updates())
}

func TestStep_SurveyAnnouncesResponders(t *testing.T) {
	r := newRig()
	require.NoError(t, r.mailbox.Post(teleop.Survey))

	_, err := r.rover.Step(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{teleop.DisplayTeam}, r.lcd.Lines())
	lines := r.console.Lines()
	assert.Equal(t, teleop.ConsoleTeam, lines[len(lines)-1])
	assert.Len(t, r.scene.Moves(), 95)
}

type failingBase struct{ *sim.Base }

func (failingBase) Update() error { return errors.New("serial timeout") }

func TestStep_UpdateError(t *testing.T) {
	base := failingBase{sim.NewBase()}
	called := false
	rv := New(base, checkerFunc(func(context.Context) ([]safety.Category, error) {
		called = true
		return nil, nil
	}), pollerFunc(func(context.Context) (bool, error) { return false, nil }), DefaultConfig())

	_, err := rv.Step(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "serial timeout")
	assert.False(t, called, "safety does not run on stale readings")
}

type checkerFunc func(context.Context) ([]safety.Category, error)

func (f checkerFunc) Check(ctx context.Context) ([]safety.Category, error) { return f(ctx) }

type pollerFunc func(context.Context) (bool, error)

func (f pollerFunc) Poll(ctx context.Context) (bool, error) { return f(ctx) }

func TestRun_StopsWheelsOnCancel(t *testing.T) {
	r := newRig()
	require.NoError(t, r.mailbox.Post(teleop.Forward))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.rover.OnStatus = func(st Status) {
		if st.Cycle >= 5 {
			cancel()
		}
	}

	err := r.rover.Run(ctx)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, r.rover.Cycles(), uint64(5))
	cmds := r.base.Commands()
	assert.Equal(t, sim.WheelCommand{Left: 100, Right: 100}, cmds[0])
	assert.Equal(t, sim.WheelCommand{}, cmds[len(cmds)-1])
}

func TestRun_ContinuesAfterCycleError(t *testing.T) {
	base := sim.NewBase()
	calls := 0
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rv := New(base, checkerFunc(func(context.Context) ([]safety.Category, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("retreat failed")
		}
		if calls == 3 {
			cancel()
		}
		return nil, nil
	}), pollerFunc(func(context.Context) (bool, error) { return false, nil }), Config{CycleDelay: time.Millisecond})

	require.NoError(t, rv.Run(ctx))
	assert.GreaterOrEqual(t, calls, 3)
}

var _ hw.Base = failingBase{}
