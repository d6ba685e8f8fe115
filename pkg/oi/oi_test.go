package oi

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-rescue/pkg/hw"
)

// fakePort replays canned replies and records everything written.
type fakePort struct {
	in     *bytes.Reader
	out    bytes.Buffer
	closed bool
}

func newFakePort(reply []byte) *fakePort {
	return &fakePort{in: bytes.NewReader(reply)}
}

func (p *fakePort) Read(b []byte) (int, error)  { return p.in.Read(b) }
func (p *fakePort) Write(b []byte) (int, error) { return p.out.Write(b) }
func (p *fakePort) Close() error                { p.closed = true; return nil }

func TestNew_SendsStartAndFull(t *testing.T) {
	port := newFakePort(nil)
	_, err := New(port)
	require.NoError(t, err)
	assert.Equal(t, []byte{128, 132}, port.out.Bytes())
}

func TestSetWheels_RightFirstBigEndian(t *testing.T) {
	port := newFakePort(nil)
	b, err := New(port)
	require.NoError(t, err)
	port.out.Reset()

	require.NoError(t, b.SetWheels(50, -50))

	// right -50 = 0xFFCE, left 50 = 0x0032
	assert.Equal(t, []byte{145, 0xFF, 0xCE, 0x00, 0x32}, port.out.Bytes())
}

func TestSetWheels_Clamps(t *testing.T) {
	port := newFakePort(nil)
	b, _ := New(port)
	port.out.Reset()

	require.NoError(t, b.SetWheels(900, -900))

	assert.Equal(t, []byte{145, 0xFE, 0x0C, 0x01, 0xF4}, port.out.Bytes())
}

func TestUpdate_DecodesReply(t *testing.T) {
	reply := []byte{
		0x02,       // bump left
		0xFF, 0xE7, // distance -25
		0x00, 0x0A, // angle 10
		0x00, 0x05, // cliff left 5
		0x0A, 0x8C, // cliff front left 2700
		0x0A, 0x29, // cliff front right 2601
		0x05, 0xDC, // cliff right 1500
	}
	port := newFakePort(reply)
	b, _ := New(port)
	port.out.Reset()

	require.NoError(t, b.Update())

	assert.Equal(t, []byte{149, 7, 7, 19, 20, 28, 29, 30, 31}, port.out.Bytes())
	assert.Equal(t, hw.Snapshot{
		CliffLeft:       5,
		CliffFrontLeft:  2700,
		CliffFrontRight: 2601,
		CliffRight:      1500,
		BumpLeft:        true,
		Angle:           10,
		Distance:        -25,
	}, b.Snapshot())
}

func TestUpdate_ShortPacket(t *testing.T) {
	port := newFakePort([]byte{0x01, 0x00, 0x00})
	b, _ := New(port)

	assert.ErrorIs(t, b.Update(), ErrShortPacket)
}

// chunkedPort returns one chunk per Read. An empty chunk is a read timeout,
// reported as (0, io.EOF) the way tarm/serial does.
type chunkedPort struct {
	chunks [][]byte
}

func (p *chunkedPort) Read(b []byte) (int, error) {
	if len(p.chunks) == 0 {
		return 0, io.EOF
	}
	c := p.chunks[0]
	p.chunks = p.chunks[1:]
	if len(c) == 0 {
		return 0, io.EOF
	}
	return copy(b, c), nil
}

func (p *chunkedPort) Write(b []byte) (int, error) { return len(b), nil }

func TestUpdate_ResyncsAfterSplitPacket(t *testing.T) {
	bumped := []byte{0x03, 0, 0, 0, 0, 0x0B, 0xB8, 0x0B, 0xB8, 0x0B, 0xB8, 0x0B, 0xB8}
	clean := []byte{0x00, 0x00, 0x14, 0x00, 0x00, 0, 5, 0, 6, 0, 7, 0, 8}
	port := &chunkedPort{chunks: [][]byte{
		bumped[:5], nil, // first reply times out halfway
		bumped[5:], nil, // the rest arrives late
		clean,
	}}
	b, err := New(port)
	require.NoError(t, err)

	assert.ErrorIs(t, b.Update(), ErrShortPacket)
	assert.Equal(t, hw.Snapshot{}, b.Snapshot())

	require.NoError(t, b.Update())
	assert.Equal(t, hw.Snapshot{
		Distance:        20,
		CliffLeft:       5,
		CliffFrontLeft:  6,
		CliffFrontRight: 7,
		CliffRight:      8,
	}, b.Snapshot())
}

func TestDecode_BumpRight(t *testing.T) {
	var p [ReplySize]byte
	p[0] = 0x01
	s := Decode(p)
	assert.True(t, s.BumpRight)
	assert.False(t, s.BumpLeft)
}

func TestClose_StopsAndReleasesPort(t *testing.T) {
	port := newFakePort(nil)
	b, _ := New(port)
	port.out.Reset()

	require.NoError(t, b.Close())

	assert.Equal(t, []byte{145, 0, 0, 0, 0, 173}, port.out.Bytes())
	assert.True(t, port.closed)
}
