package teleop

import (
	"context"
	"fmt"

	"github.com/teslashibe/go-rescue/internal/log"
	"github.com/teslashibe/go-rescue/pkg/hw"
	"github.com/teslashibe/go-rescue/pkg/survey"
)

// Operator command keys.
const (
	Forward  byte = 'w'
	Backward byte = 's'
	Left     byte = 'a'
	Right    byte = 'd'
	Survey   byte = 'm'
)

// Wheel speeds for manual driving, in mm/s.
const (
	DriveSpeed = 100
	SpinSpeed  = 50
)

// Verdict announcements.
const (
	DisplaySurvivor = "Survivor!"
	ConsoleSurvivor = "Detected a survivor. Alert responders!"
	DisplayTeam     = "Responders!"
	ConsoleTeam     = "Located response team."
)

// Wheels sets the drive wheel velocities.
type Wheels interface {
	SetWheels(left, right int) error
}

// Surveyor runs one blocking survey.
type Surveyor interface {
	Run(ctx context.Context) (*survey.Report, error)
}

// Dispatcher executes operator commands from a Mailbox.
type Dispatcher struct {
	mailbox  *Mailbox
	wheels   Wheels
	surveyor Surveyor
	display  hw.Display
	console  hw.Console

	// OnCommand, if set, is called with each command taken.
	OnCommand func(cmd byte)
	// OnReport, if set, is called with each completed survey.
	OnReport func(*survey.Report)
}

// NewDispatcher creates a dispatcher. display and console may be nil.
func NewDispatcher(mb *Mailbox, wheels Wheels, surveyor Surveyor, display hw.Display, console hw.Console) *Dispatcher {
	if display == nil {
		display = hw.Discard{}
	}
	if console == nil {
		console = hw.Discard{}
	}
	return &Dispatcher{
		mailbox:  mb,
		wheels:   wheels,
		surveyor: surveyor,
		display:  display,
		console:  console,
	}
}

// Poll executes at most one pending command. It reports whether a command
// was taken. Motion commands set the wheels and leave them running.
func (d *Dispatcher) Poll(ctx context.Context) (bool, error) {
	cmd, ok := d.mailbox.Take()
	if !ok {
		return false, nil
	}
	if d.OnCommand != nil {
		d.OnCommand(cmd)
	}
	log.Debug("operator command", "key", string(rune(cmd)))

	switch cmd {
	case Forward:
		return true, d.wheels.SetWheels(DriveSpeed, DriveSpeed)
	case Backward:
		return true, d.wheels.SetWheels(-DriveSpeed, -DriveSpeed)
	case Left:
		return true, d.wheels.SetWheels(-SpinSpeed, SpinSpeed)
	case Right:
		return true, d.wheels.SetWheels(SpinSpeed, -SpinSpeed)
	case Survey:
		return true, d.survey(ctx)
	default:
		return true, d.wheels.SetWheels(0, 0)
	}
}

func (d *Dispatcher) survey(ctx context.Context) error {
	if err := d.wheels.SetWheels(0, 0); err != nil {
		return err
	}
	report, err := d.surveyor.Run(ctx)
	if err != nil {
		return fmt.Errorf("teleop: survey: %w", err)
	}
	if d.OnReport != nil {
		d.OnReport(report)
	}
	d.announce(report.Verdict)
	return nil
}

func (d *Dispatcher) announce(v survey.Verdict) {
	var lcd, line string
	switch v {
	case survey.Candidate:
		lcd, line = DisplaySurvivor, ConsoleSurvivor
	case survey.Confirmed:
		lcd, line = DisplayTeam, ConsoleTeam
	default:
		return
	}
	if err := d.display.PrintText(lcd); err != nil {
		log.Warn("display write failed", "error", err)
	}
	if err := d.console.SendString(line); err != nil {
		log.Warn("console send failed", "error", err)
	}
}
