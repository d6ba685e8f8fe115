// Package oi drives an iRobot Create base over its serial Open Interface.
package oi

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"
	"github.com/teslashibe/go-rescue/internal/log"
	"github.com/teslashibe/go-rescue/pkg/hw"
)

// Opcodes.
const (
	OpStart       byte = 128
	OpFull        byte = 132
	OpDriveDirect byte = 145
	OpQueryList   byte = 149
	OpStop        byte = 173
)

// Sensor packet IDs requested each update.
const (
	PacketBumps           byte = 7
	PacketDistance        byte = 19
	PacketAngle           byte = 20
	PacketCliffLeft       byte = 28
	PacketCliffFrontLeft  byte = 29
	PacketCliffFrontRight byte = 30
	PacketCliffRight      byte = 31
)

// MaxWheelSpeed is the Drive Direct limit in mm/s.
const MaxWheelSpeed = 500

// ReplySize is the byte length of the sensor query reply.
const ReplySize = 1 + 2 + 2 + 4*2

// maxDrainReads bounds how long a resync keeps reading stale bytes.
const maxDrainReads = 16

// ErrShortPacket is returned when the base sends fewer bytes than requested.
var ErrShortPacket = errors.New("oi: short sensor packet")

var query = []byte{
	OpQueryList, 7,
	PacketBumps, PacketDistance, PacketAngle,
	PacketCliffLeft, PacketCliffFrontLeft, PacketCliffFrontRight, PacketCliffRight,
}

// Config selects the serial port.
type Config struct {
	Port        string
	Baud        int
	ReadTimeout time.Duration
}

// DefaultConfig returns the Create 2 defaults.
func DefaultConfig() Config {
	return Config{
		Port:        "/dev/ttyUSB0",
		Baud:        115200,
		ReadTimeout: 500 * time.Millisecond,
	}
}

// Base is an Open Interface drive base. It implements hw.Base.
type Base struct {
	mu   sync.Mutex
	raw  io.Reader
	r    *bufio.Reader
	w    io.Writer
	c    io.Closer
	snap hw.Snapshot
	buf  [ReplySize]byte
}

// Open connects to the base on cfg.Port and puts it in full mode.
func Open(cfg Config) (*Base, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("oi: open %s: %w", cfg.Port, err)
	}
	b, err := New(port)
	if err != nil {
		port.Close()
		return nil, err
	}
	log.Info("drive base connected", "port", cfg.Port, "baud", cfg.Baud)
	return b, nil
}

// New starts the Open Interface on an already open port. If rw is an
// io.Closer, Close closes it.
func New(rw io.ReadWriter) (*Base, error) {
	b := &Base{raw: rw, r: bufio.NewReader(rw), w: rw}
	if c, ok := rw.(io.Closer); ok {
		b.c = c
	}
	if _, err := b.w.Write([]byte{OpStart, OpFull}); err != nil {
		return nil, fmt.Errorf("oi: start: %w", err)
	}
	return b, nil
}

// SetWheels sends Drive Direct. Velocities are clamped to ±MaxWheelSpeed.
// The wire order is right wheel first.
func (b *Base) SetWheels(left, right int) error {
	cmd := make([]byte, 5)
	cmd[0] = OpDriveDirect
	binary.BigEndian.PutUint16(cmd[1:3], uint16(int16(clamp(right))))
	binary.BigEndian.PutUint16(cmd[3:5], uint16(int16(clamp(left))))

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.w.Write(cmd); err != nil {
		return fmt.Errorf("oi: drive direct: %w", err)
	}
	return nil
}

// Update requests a fresh sensor packet. Distance and angle in the result are
// the change since the previous Update.
func (b *Base) Update() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.w.Write(query); err != nil {
		return fmt.Errorf("oi: query sensors: %w", err)
	}
	if _, err := io.ReadFull(b.r, b.buf[:]); err != nil {
		b.resync()
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return ErrShortPacket
		}
		return fmt.Errorf("oi: read sensors: %w", err)
	}
	b.snap = Decode(b.buf)
	return nil
}

// resync drops the rest of a partial reply so the next query starts on a
// packet boundary. It reads until the port goes quiet, which on a serial
// port is one read timeout.
func (b *Base) resync() {
	stale := b.r.Buffered()
	var tmp [64]byte
	for i := 0; i < maxDrainReads; i++ {
		n, err := b.raw.Read(tmp[:])
		stale += n
		if n == 0 || err != nil {
			break
		}
	}
	b.r.Reset(b.raw)
	log.Warn("sensor stream resynced", "discarded", stale)
}

// Snapshot returns the readings from the last Update.
func (b *Base) Snapshot() hw.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snap
}

// Close stops the wheels, returns the base to passive mode and closes the port.
func (b *Base) Close() error {
	err := b.SetWheels(0, 0)

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, werr := b.w.Write([]byte{OpStop}); werr != nil && err == nil {
		err = werr
	}
	if b.c != nil {
		if cerr := b.c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Decode parses a query reply.
func Decode(p [ReplySize]byte) hw.Snapshot {
	be := binary.BigEndian
	return hw.Snapshot{
		BumpRight:       p[0]&0x01 != 0,
		BumpLeft:        p[0]&0x02 != 0,
		Distance:        float64(int16(be.Uint16(p[1:3]))),
		Angle:           float64(int16(be.Uint16(p[3:5]))),
		CliffLeft:       int(be.Uint16(p[5:7])),
		CliffFrontLeft:  int(be.Uint16(p[7:9])),
		CliffFrontRight: int(be.Uint16(p[9:11])),
		CliffRight:      int(be.Uint16(p[11:13])),
	}
}

func clamp(v int) int {
	if v > MaxWheelSpeed {
		return MaxWheelSpeed
	}
	if v < -MaxWheelSpeed {
		return -MaxWheelSpeed
	}
	return v
}

var _ hw.Base = (*Base)(nil)
