package main

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/teslashibe/go-rescue/internal/config"
	"github.com/teslashibe/go-rescue/internal/log"
	"github.com/teslashibe/go-rescue/pkg/drive"
	"github.com/teslashibe/go-rescue/pkg/hw"
	"github.com/teslashibe/go-rescue/pkg/link"
	"github.com/teslashibe/go-rescue/pkg/protocol"
	"github.com/teslashibe/go-rescue/pkg/remote"
	"github.com/teslashibe/go-rescue/pkg/rover"
	"github.com/teslashibe/go-rescue/pkg/safety"
	"github.com/teslashibe/go-rescue/pkg/survey"
	"github.com/teslashibe/go-rescue/pkg/teleop"
	"github.com/teslashibe/go-rescue/pkg/web"
	"golang.org/x/sync/errgroup"
)

// simCycleDelay paces the simulated loop, which has no serial round trip.
const simCycleDelay = 20 * time.Millisecond

// statusInterval limits how often cycle status is pushed to dashboards.
const statusInterval = 100 * time.Millisecond

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the control loop",
	Long: `Runs the control loop until interrupted. Each cycle refreshes the
drive base sensors, runs the safety layer and executes at most one operator
command. Commands arrive from the serial console, the dashboard REST API and
operators connected to /ws/control.`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var dev *hardware
	if cfg.Simulate {
		dev = openSim()
		if cfg.CycleDelay == 0 {
			cfg.CycleDelay = simCycleDelay
		}
		log.Info("running against the simulator")
	} else {
		dev, err = openHardware(cfg)
		if err != nil {
			return err
		}
	}
	defer func() {
		if err := dev.Close(); err != nil {
			log.Error("close hardware", "error", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sys := assemble(cfg, dev)
	return sys.run(ctx)
}

// system is the wired rover.
type system struct {
	cfg     config.Config
	dev     *hardware
	mailbox *teleop.Mailbox
	rover   *rover.Rover
	web     *web.Server
	remote  *remote.Hub
}

// assemble wires the control loop and every output to dev.
func assemble(cfg config.Config, dev *hardware) *system {
	s := &system{cfg: cfg, dev: dev, mailbox: teleop.NewMailbox()}

	consoles := link.Consoles{}
	displays := link.Displays{dev.display}
	if dev.console != nil {
		consoles = append(consoles, dev.console)
	}
	if cfg.Web.Enabled {
		s.web = web.NewServer(web.Config{Port: cfg.Web.Port, Simulated: cfg.Simulate, Debug: cfg.LogLevel == "debug"}, s.mailbox)
		s.remote = remote.NewHub(s.mailbox)
		s.remote.RegisterRoutes(s.web.App())
		s.remote.RegisterAPIRoutes(s.web.App().Group("/api"))
		consoles = append(consoles, s.web, s.remote)
		displays = append(displays, s.web, s.remote)
	}

	drv := drive.New(dev.base, cfg.DriveConfig())
	layer := safety.New(dev.base, drv, consoles, safety.DefaultConfig())
	engine := survey.NewEngine(dev.mount, dev.proxy, dev.ranger, consoles, dev.clock, cfg.SurveyConfig())
	disp := teleop.NewDispatcher(s.mailbox, dev.base, engine, displays, consoles)

	if s.web != nil {
		layer.OnHazard = func(c safety.Category, snap hw.Snapshot) {
			s.web.RecordHazard(c.String(), snap)
			if err := s.remote.SendHazard(c.String(), snap); err != nil {
				log.Warn("send hazard to operators", "error", err)
			}
		}
		disp.OnReport = func(r *survey.Report) {
			s.web.RecordSurvey(r)
			if err := s.remote.SendSurvey(r); err != nil {
				log.Warn("send survey to operators", "error", err)
			}
		}
	}

	s.rover = rover.New(dev.base, layer, disp, cfg.LoopConfig())
	if s.web != nil {
		var mu sync.Mutex
		var last time.Time
		s.rover.OnStatus = func(st rover.Status) {
			mu.Lock()
			due := st.At.Sub(last) >= statusInterval || len(st.Hazards) > 0 || st.Command
			if due {
				last = st.At
			}
			mu.Unlock()
			if due {
				s.web.UpdateStatus(statusData(st, dev.base.Wheels()))
			}
		}
	}
	return s
}

func statusData(st rover.Status, wheels [2]int) protocol.StatusData {
	hazards := make([]string, len(st.Hazards))
	for i, h := range st.Hazards {
		hazards[i] = h.String()
	}
	return protocol.StatusData{
		Cycle:    st.Cycle,
		Snapshot: st.Snapshot,
		Hazards:  hazards,
		Command:  st.Command,
		Wheels:   wheels,
	}
}

// run supervises the loop, the console listener and the web server.
func (s *system) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.rover.Run(ctx)
	})
	if s.dev.console != nil {
		g.Go(func() error {
			err := s.dev.console.Listen(ctx, s.mailbox)
			if errors.Is(err, teleop.ErrMailboxClosed) {
				return nil
			}
			return err
		})
	}
	if s.web != nil {
		g.Go(func() error {
			return s.web.Run(ctx)
		})
	}

	err := g.Wait()
	s.mailbox.Close()
	log.Info("rover stopped", "cycles", s.rover.Cycles())
	return err
}
