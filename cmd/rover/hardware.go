package main

import (
	"errors"
	"io"
	"sync/atomic"

	"github.com/teslashibe/go-rescue/internal/config"
	"github.com/teslashibe/go-rescue/pkg/bridge"
	"github.com/teslashibe/go-rescue/pkg/hw"
	"github.com/teslashibe/go-rescue/pkg/link"
	"github.com/teslashibe/go-rescue/pkg/oi"
	"github.com/teslashibe/go-rescue/pkg/sim"
)

// hardware is every device the rover talks to.
type hardware struct {
	base    *trackedBase
	mount   hw.Mount
	proxy   hw.ProxySensor
	ranger  hw.RangeSensor
	display hw.Display
	clock   hw.Clock

	// console is nil in simulation.
	console *link.Serial

	closers []io.Closer
}

// openHardware connects the drive base, peripheral bridge and console link.
func openHardware(cfg config.Config) (*hardware, error) {
	h := &hardware{clock: hw.WallClock{}}

	base, err := oi.Open(cfg.BaseConfig())
	if err != nil {
		return nil, err
	}
	h.base = track(base)
	h.closers = append(h.closers, base)

	br, err := bridge.Open(cfg.BridgeConfig())
	if err != nil {
		h.Close()
		return nil, err
	}
	h.mount, h.proxy, h.ranger, h.display = br, br, br, br
	h.closers = append(h.closers, br)

	con, err := link.Open(cfg.ConsoleConfig())
	if err != nil {
		h.Close()
		return nil, err
	}
	h.console = con
	h.closers = append(h.closers, con)
	return h, nil
}

// openSim builds the simulated rover in front of the demo scene.
func openSim() *hardware {
	scene := sim.DemoScene()
	return &hardware{
		base:    track(sim.NewBase()),
		mount:   scene,
		proxy:   scene,
		ranger:  scene,
		display: hw.Discard{},
		clock:   hw.WallClock{},
	}
}

// Close releases devices in reverse order of opening.
func (h *hardware) Close() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	h.closers = nil
	return errors.Join(errs...)
}

// trackedBase remembers the last wheel command for status reporting.
type trackedBase struct {
	hw.Base
	left, right atomic.Int64
}

func track(b hw.Base) *trackedBase {
	return &trackedBase{Base: b}
}

func (t *trackedBase) SetWheels(left, right int) error {
	if err := t.Base.SetWheels(left, right); err != nil {
		return err
	}
	t.left.Store(int64(left))
	t.right.Store(int64(right))
	return nil
}

// Wheels returns the last commanded [left, right] velocities.
func (t *trackedBase) Wheels() [2]int {
	return [2]int{int(t.left.Load()), int(t.right.Load())}
}
