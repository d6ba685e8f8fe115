package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-rescue/internal/config"
	"github.com/teslashibe/go-rescue/internal/log"
	"github.com/teslashibe/go-rescue/pkg/rover"
	"github.com/teslashibe/go-rescue/pkg/safety"
	"github.com/teslashibe/go-rescue/pkg/sim"
	"github.com/teslashibe/go-rescue/pkg/survey"
	"github.com/teslashibe/go-rescue/pkg/teleop"
	"github.com/teslashibe/go-rescue/pkg/web"
)

func simConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.Simulate = true
	cfg.Web.Enabled = false
	cfg.Survey.Settle = 0
	return cfg
}

func TestAssemble_SurveyThroughMailbox(t *testing.T) {
	dev := openSim()
	dev.clock = &sim.Clock{}
	sys := assemble(simConfig(), dev)

	require.NoError(t, sys.mailbox.Post(teleop.Survey))
	st, err := sys.rover.Step(context.Background())

	require.NoError(t, err)
	assert.True(t, st.Command)
	assert.Equal(t, [2]int{0, 0}, dev.base.Wheels())
}

func TestAssemble_DriveCommandTracked(t *testing.T) {
	dev := openSim()
	sys := assemble(simConfig(), dev)

	require.NoError(t, sys.mailbox.Post(teleop.Forward))
	_, err := sys.rover.Step(context.Background())

	require.NoError(t, err)
	assert.Equal(t, [2]int{100, 100}, dev.base.Wheels())
}

func TestAssemble_WithWebRecordsHazards(t *testing.T) {
	cfg := simConfig()
	cfg.Web.Enabled = true
	dev := openSim()
	sys := assemble(cfg, dev)
	require.NotNil(t, sys.web)
	require.NotNil(t, sys.remote)

	bump := sim.Floor()
	bump.BumpRight = true
	dev.base.Base.(*sim.Base).Pulse(bump)

	st, err := sys.rover.Step(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []safety.Category{safety.CollisionRight}, st.Hazards)
	state := sys.web.State()
	assert.Equal(t, "collision_right", state.LastHazard)
	assert.Equal(t, uint64(1), state.Cycle)

	logs := sys.web.Logs()
	require.NotEmpty(t, logs)
	assert.Equal(t, safety.MsgCollisionRight, logs[len(logs)-1].Message)
}

func TestSystemRun_StopsOnCancel(t *testing.T) {
	cfg := simConfig()
	cfg.CycleDelay = time.Millisecond
	sys := assemble(cfg, openSim())

	ctx, cancel := context.WithCancel(context.Background())
	sys.rover.OnStatus = func(st rover.Status) {
		if st.Cycle >= 3 {
			cancel()
		}
	}

	require.NoError(t, sys.run(ctx))
	assert.ErrorIs(t, sys.mailbox.Post('w'), teleop.ErrMailboxClosed)
}

func TestStatusData(t *testing.T) {
	st := rover.Status{Cycle: 9, Hazards: []safety.Category{safety.Cliff, safety.Boundary}, Command: true}
	data := statusData(st, [2]int{-100, -100})

	assert.Equal(t, uint64(9), data.Cycle)
	assert.Equal(t, []string{"cliff", "boundary"}, data.Hazards)
	assert.Equal(t, [2]int{-100, -100}, data.Wheels)
}

func TestPrintReport(t *testing.T) {
	report := &survey.Report{Objects: make([]survey.Object, 4), Humans: 3, Verdict: survey.Confirmed}

	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, report, false))
	assert.Equal(t, "\n4 objects, 3 humans, 0 dropped: confirmed\n", buf.String())

	buf.Reset()
	require.NoError(t, printReport(&buf, report, true))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "confirmed", decoded["verdict"])
}

func TestSurveyCommand_JSONOutputIsClean(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rover.yaml")
	require.NoError(t, os.WriteFile(path, []byte("survey:\n  settle: 0s\n"), 0o644))

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{"survey", "--sim", "--json", "--config", path})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		simulate, surveyJSON, configPath = false, false, "rover.yaml"
		log.SetOutput(os.Stdout)
	})

	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	var report map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report), "stdout: %s", stdout.String())
	assert.Equal(t, "confirmed", report["verdict"])
	assert.Len(t, report["objects"], 4)
	assert.Contains(t, stderr.String(), "survey complete")
}

func TestWriterConsole(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writerConsole{&buf}.SendString("0\t199"))
	assert.Equal(t, "0\t199\n", buf.String())
	assert.NoError(t, writerConsole{}.SendString("dropped"))
}

func TestSendKey(t *testing.T) {
	mailbox := teleop.NewMailbox()
	srv := web.NewServer(web.Config{}, mailbox)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	reply, err := sendKey(context.Background(), ln.Addr().String(), "m")
	require.NoError(t, err)
	assert.Equal(t, "queued", reply.Status)
	assert.Equal(t, "m", reply.Key)

	key, ok := mailbox.Take()
	assert.True(t, ok)
	assert.Equal(t, teleop.Survey, key)

	_, err = sendKey(context.Background(), ln.Addr().String(), "mm")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "rover dev\n", buf.String())
}
