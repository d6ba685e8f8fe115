package survey

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-rescue/internal/log"
	"github.com/teslashibe/go-rescue/pkg/debug"
	"github.com/teslashibe/go-rescue/pkg/hw"
)

// Console table headers.
const (
	SweepHeader    = "Angle\tDistance (cm)"
	ObjectHeader   = "Obj\tAngle\tPingDist\tIRDist\tWidth\tType"
	MsgCapacityHit = "WARNING: object capacity reached"
)

// Engine runs surveys. It blocks the caller for the whole sweep and
// classification; nothing else runs on the control loop meanwhile.
type Engine struct {
	mount   hw.Mount
	proxy   hw.ProxySensor
	ranger  hw.RangeSensor
	console hw.Console
	clock   hw.Clock
	cfg     Config

	now func() time.Time
}

// NewEngine creates a survey engine.
func NewEngine(mount hw.Mount, proxy hw.ProxySensor, ranger hw.RangeSensor, console hw.Console, clock hw.Clock, cfg Config) *Engine {
	if console == nil {
		console = hw.Discard{}
	}
	if clock == nil {
		clock = hw.WallClock{}
	}
	return &Engine{
		mount:   mount,
		proxy:   proxy,
		ranger:  ranger,
		console: console,
		clock:   clock,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Run sweeps the arc, classifies every detected object and returns the report.
// ctx is only checked between steps, for process shutdown.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}

	report := &Report{ID: uuid.NewString(), StartedAt: e.now()}
	logger := log.With("survey", report.ID)
	logger.Info("survey started", "from", e.cfg.StartAngle, "to", e.cfg.EndAngle, "step", e.cfg.Step)

	objects, err := e.sweep(ctx, report)
	if err != nil {
		return nil, err
	}
	if report.Dropped > 0 {
		logger.Warn("objects dropped", "error", ErrCapacityExceeded, "dropped", report.Dropped, "capacity", e.cfg.Capacity)
	}

	if err := e.classify(ctx, objects); err != nil {
		return nil, err
	}

	report.Objects = objects
	report.Humans = CountHumans(objects)
	report.Verdict = VerdictFor(report.Humans)
	report.Duration = e.now().Sub(report.StartedAt)

	logger.Info("survey complete", "objects", len(objects), "humans", report.Humans,
		"verdict", report.Verdict.String(), "duration", report.Duration)
	return report, nil
}

func (e *Engine) sweep(ctx context.Context, report *Report) ([]Object, error) {
	e.send(SweepHeader)
	seg := NewSegmenter(e.cfg.Threshold, e.cfg.Capacity)

	for angle := e.cfg.StartAngle; angle <= e.cfg.EndAngle; angle += e.cfg.Step {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.mount.MoveTo(angle); err != nil {
			return nil, fmt.Errorf("survey: move mount to %d: %w", angle, err)
		}
		// Only the first position gets a settle wait.
		if angle == e.cfg.StartAngle {
			e.clock.Sleep(e.cfg.Settle)
		}

		raw, err := e.proxy.ReadRaw()
		if err != nil {
			return nil, fmt.Errorf("survey: read infrared at %d: %w", angle, err)
		}
		dist := ProxyDistance(raw)
		report.Samples = append(report.Samples, Sample{Angle: angle, Distance: dist})

		if seg.Add(angle, dist) == Rejected {
			e.send(MsgCapacityHit)
		}

		e.send(fmt.Sprintf("%d\t%d", angle, dist))
		debug.SweepLog("sweep angle=%d raw=%d distance=%d\n", angle, raw, dist)
	}

	report.Dropped = seg.Dropped()
	return seg.Finish(), nil
}

func (e *Engine) classify(ctx context.Context, objects []Object) error {
	e.send(ObjectHeader)
	for i := range objects {
		if err := ctx.Err(); err != nil {
			return err
		}
		o := &objects[i]
		o.CenterAngle = CenterAngle(o.StartAngle, o.EndAngle)

		if err := e.mount.MoveTo(o.CenterAngle); err != nil {
			return fmt.Errorf("survey: move mount to object %d: %w", o.ID, err)
		}
		e.clock.Sleep(e.cfg.Settle)

		ping, err := e.ranger.ReadDistance()
		if err != nil {
			return fmt.Errorf("survey: ultrasonic read for object %d: %w", o.ID, err)
		}
		o.PingDistance = ping
		o.Width = Width(ping, o.StartAngle, o.EndAngle)
		o.Label = Classify(o.Width)

		e.send(FormatObject(*o))
	}
	return nil
}

// FormatObject renders an object as a console table row.
func FormatObject(o Object) string {
	return fmt.Sprintf("%d\t%d\t%.2f\t%d\t%.2f\t%c",
		o.ID, o.CenterAngle, o.PingDistance, o.IRDistance, o.Width, byte(o.Label))
}

func (e *Engine) send(line string) {
	if err := e.console.SendString(line); err != nil {
		log.Warn("console send failed", "error", err)
	}
}
