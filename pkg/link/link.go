// Package link is the operator console: a serial terminal that receives the
// rover's diagnostic lines and sends single-key commands back.
package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"
	"github.com/teslashibe/go-rescue/internal/log"
	"github.com/teslashibe/go-rescue/pkg/hw"
)

// LineBreak precedes every line so each message starts at column zero on a
// raw terminal.
const LineBreak = "\n\r"

// Poster receives command bytes.
type Poster interface {
	Post(cmd byte) error
}

// Config selects the serial port.
type Config struct {
	Port        string
	Baud        int
	ReadTimeout time.Duration
}

// DefaultConfig returns the console UART defaults.
func DefaultConfig() Config {
	return Config{
		Port:        "/dev/ttyUSB1",
		Baud:        115200,
		ReadTimeout: 100 * time.Millisecond,
	}
}

// Serial is a console over a serial port.
type Serial struct {
	wmu sync.Mutex
	rw  io.ReadWriter
}

// Open opens the console port.
func Open(cfg Config) (*Serial, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("link: open %s: %w", cfg.Port, err)
	}
	log.Info("console link opened", "port", cfg.Port, "baud", cfg.Baud)
	return New(port), nil
}

// New wraps an open port.
func New(rw io.ReadWriter) *Serial {
	return &Serial{rw: rw}
}

// SendString writes one line.
func (s *Serial) SendString(text string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if _, err := io.WriteString(s.rw, LineBreak+text); err != nil {
		return fmt.Errorf("link: write: %w", err)
	}
	return nil
}

// Listen posts every received byte until ctx is done or the port fails.
// A read timeout on an idle port surfaces as (0, io.EOF) and is not the end
// of input; Listen keeps reading. Reads are expected to time out
// periodically so cancellation is noticed.
func (s *Serial) Listen(ctx context.Context, p Poster) error {
	buf := make([]byte, 16)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := s.rw.Read(buf)
		for _, c := range buf[:n] {
			if perr := p.Post(c); perr != nil {
				return perr
			}
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("link: read: %w", err)
		}
	}
}

// Close closes the port if it can be closed.
func (s *Serial) Close() error {
	if c, ok := s.rw.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Consoles sends every line to each console in turn.
type Consoles []hw.Console

// SendString writes to all consoles, joining any errors.
func (cs Consoles) SendString(text string) error {
	var errs []error
	for _, c := range cs {
		if err := c.SendString(text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Displays prints to each display in turn.
type Displays []hw.Display

// PrintText writes to all displays, joining any errors.
func (ds Displays) PrintText(text string) error {
	var errs []error
	for _, d := range ds {
		if err := d.PrintText(text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ hw.Console = (*Serial)(nil)
	_ hw.Console = Consoles(nil)
	_ hw.Display = Displays(nil)
)
