// Package bridge talks to the peripheral microcontroller that carries the
// sensor mount servo, the infrared and ultrasonic rangers and the LCD.
//
// The link is a newline-delimited text protocol. Each request gets exactly
// one reply line:
//
//	S <deg>   -> OK      point the servo
//	I         -> <raw>   infrared ADC reading
//	P         -> <cm>    ultrasonic range
//	L <text>  -> OK      print to the LCD
//
// The controller announces itself with "ready" after reset.
package bridge

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"
	"github.com/teslashibe/go-rescue/internal/log"
	"github.com/teslashibe/go-rescue/pkg/hw"
)

// ReadyLine is the handshake sent by the controller after reset.
const ReadyLine = "ready"

// ErrBadReply is wrapped by every ReplyError.
var ErrBadReply = errors.New("bridge: unexpected reply")

// ReplyError describes a reply that did not match the request.
type ReplyError struct {
	Command string
	Reply   string
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("bridge: %q got reply %q", e.Command, e.Reply)
}

func (e *ReplyError) Unwrap() error {
	return ErrBadReply
}

// Config selects the serial port.
type Config struct {
	Port        string
	Baud        int
	ReadTimeout time.Duration
}

// DefaultConfig returns the controller's default port settings.
func DefaultConfig() Config {
	return Config{
		Port:        "/dev/ttyACM0",
		Baud:        115200,
		ReadTimeout: 2 * time.Second,
	}
}

// Bridge is a connected peripheral controller.
type Bridge struct {
	mu sync.Mutex
	r  *bufio.Reader
	w  *bufio.Writer
	c  io.Closer
}

// Open connects on cfg.Port and waits for the handshake.
func Open(cfg Config) (*Bridge, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("bridge: open %s: %w", cfg.Port, err)
	}
	b, err := New(port)
	if err != nil {
		port.Close()
		return nil, err
	}
	log.Info("peripheral bridge connected", "port", cfg.Port)
	return b, nil
}

// New waits for the handshake on an already open link.
func New(rw io.ReadWriter) (*Bridge, error) {
	b := &Bridge{r: bufio.NewReader(rw), w: bufio.NewWriter(rw)}
	if c, ok := rw.(io.Closer); ok {
		b.c = c
	}
	ln, err := b.readLine()
	if err != nil {
		return nil, fmt.Errorf("bridge: handshake: %w", err)
	}
	if ln != ReadyLine {
		return nil, &ReplyError{Command: "handshake", Reply: ln}
	}
	return b, nil
}

func (b *Bridge) readLine() (string, error) {
	ln, err := b.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(ln), nil
}

// exchange sends one request line and returns the reply line.
func (b *Bridge) exchange(cmd string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := fmt.Fprintln(b.w, cmd); err != nil {
		return "", fmt.Errorf("bridge: send %q: %w", cmd, err)
	}
	if err := b.w.Flush(); err != nil {
		return "", fmt.Errorf("bridge: send %q: %w", cmd, err)
	}
	ln, err := b.readLine()
	if err != nil {
		return "", fmt.Errorf("bridge: reply to %q: %w", cmd, err)
	}
	return ln, nil
}

func (b *Bridge) expectOK(cmd string) error {
	ln, err := b.exchange(cmd)
	if err != nil {
		return err
	}
	if ln != "OK" {
		return &ReplyError{Command: cmd, Reply: ln}
	}
	return nil
}

// MoveTo points the sensor mount. Angles outside [0, 180] are clamped.
func (b *Bridge) MoveTo(angle int) error {
	angle = max(0, min(180, angle))
	return b.expectOK(fmt.Sprintf("S %d", angle))
}

// ReadRaw returns one infrared ADC sample.
func (b *Bridge) ReadRaw() (int, error) {
	ln, err := b.exchange("I")
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(ln)
	if err != nil {
		return 0, &ReplyError{Command: "I", Reply: ln}
	}
	return v, nil
}

// ReadDistance returns one ultrasonic range in cm.
func (b *Bridge) ReadDistance() (float64, error) {
	ln, err := b.exchange("P")
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(ln, 64)
	if err != nil {
		return 0, &ReplyError{Command: "P", Reply: ln}
	}
	return v, nil
}

// PrintText replaces the LCD contents. Line breaks are flattened.
func (b *Bridge) PrintText(text string) error {
	text = strings.NewReplacer("\r", " ", "\n", " ").Replace(text)
	return b.expectOK("L " + text)
}

// Close closes the link.
func (b *Bridge) Close() error {
	if b.c == nil {
		return nil
	}
	return b.c.Close()
}

var (
	_ hw.Mount       = (*Bridge)(nil)
	_ hw.ProxySensor = (*Bridge)(nil)
	_ hw.RangeSensor = (*Bridge)(nil)
	_ hw.Display     = (*Bridge)(nil)
)
