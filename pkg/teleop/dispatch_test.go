package teleop

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-rescue/pkg/sim"
	"github.com/teslashibe/go-rescue/pkg/survey"
)

type fakeSurveyor struct {
	report *survey.Report
	err    error
	calls  int
}

func (f *fakeSurveyor) Run(context.Context) (*survey.Report, error) {
	f.calls++
	return f.report, f.err
}

func newTestDispatcher(verdict survey.Verdict) (*Dispatcher, *Mailbox, *sim.Base, *sim.Recorder, *sim.Recorder, *fakeSurveyor) {
	mb := NewMailbox()
	base := sim.NewBase()
	lcd := &sim.Recorder{}
	console := &sim.Recorder{}
	sv := &fakeSurveyor{report: &survey.Report{Verdict: verdict}}
	return NewDispatcher(mb, base, sv, lcd, console), mb, base, lcd, console, sv
}

func TestPoll_MotionCommands(t *testing.T) {
	tests := []struct {
		key  byte
		want sim.WheelCommand
	}{
		{Forward, sim.WheelCommand{Left: 100, Right: 100}},
		{Backward, sim.WheelCommand{Left: -100, Right: -100}},
		{Left, sim.WheelCommand{Left: -50, Right: 50}},
		{Right, sim.WheelCommand{Left: 50, Right: -50}},
		{'x', sim.WheelCommand{}},
		{' ', sim.WheelCommand{}},
	}

	for _, tt := range tests {
		t.Run(string(rune(tt.key)), func(t *testing.T) {
			d, mb, base, _, _, sv := newTestDispatcher(survey.None)
			require.NoError(t, mb.Post(tt.key))

			handled, err := d.Poll(context.Background())

			require.NoError(t, err)
			assert.True(t, handled)
			assert.Equal(t, []sim.WheelCommand{tt.want}, base.Commands())
			assert.Zero(t, sv.calls)
		})
	}
}

func TestPoll_NoCommand(t *testing.T) {
	d, _, base, _, _, _ := newTestDispatcher(survey.None)

	handled, err := d.Poll(context.Background())

	require.NoError(t, err)
	assert.False(t, handled)
	assert.Empty(t, base.Commands())
}

func TestPoll_OneCommandPerCall(t *testing.T) {
	d, mb, base, _, _, _ := newTestDispatcher(survey.None)
	require.NoError(t, mb.Post(Forward))

	_, _ = d.Poll(context.Background())
	handled, _ := d.Poll(context.Background())

	assert.False(t, handled)
	assert.Len(t, base.Commands(), 1)
}

func TestPoll_SurveyAnnouncements(t *testing.T) {
	tests := []struct {
		name    string
		verdict survey.Verdict
		lcd     []string
		console []string
	}{
		{"none", survey.None, []string{}, []string{}},
		{"candidate", survey.Candidate, []string{DisplaySurvivor}, []string{ConsoleSurvivor}},
		{"confirmed", survey.Confirmed, []string{DisplayTeam}, []string{ConsoleTeam}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, mb, base, lcd, console, sv := newTestDispatcher(tt.verdict)
			var reported *survey.Report
			d.OnReport = func(r *survey.Report) { reported = r }
			require.NoError(t, mb.Post(Survey))

			handled, err := d.Poll(context.Background())

			require.NoError(t, err)
			assert.True(t, handled)
			assert.Equal(t, 1, sv.calls)
			assert.Equal(t, []sim.WheelCommand{{}}, base.Commands(), "stops before surveying")
			assert.Same(t, sv.report, reported)
			assert.Equal(t, tt.lcd, lcd.Lines())
			assert.Equal(t, tt.console, console.Lines())
		})
	}
}

func TestPoll_SurveyError(t *testing.T) {
	d, mb, _, lcd, _, sv := newTestDispatcher(survey.None)
	sv.err = errors.New("mount jammed")
	require.NoError(t, mb.Post(Survey))

	_, err := d.Poll(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "mount jammed")
	assert.Empty(t, lcd.Lines())
}

func TestPoll_OnCommand(t *testing.T) {
	d, mb, _, _, _, _ := newTestDispatcher(survey.None)
	var seen []byte
	d.OnCommand = func(cmd byte) { seen = append(seen, cmd) }

	require.NoError(t, mb.Post(Right))
	_, _ = d.Poll(context.Background())

	assert.Equal(t, []byte{Right}, seen)
}
