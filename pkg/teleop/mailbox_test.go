package teleop

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMailbox_TakeEmpty(t *testing.T) {
	mb := NewMailbox()
	_, ok := mb.Take()
	assert.False(t, ok)
	assert.False(t, mb.Pending())
}

func TestMailbox_LastWriteWins(t *testing.T) {
	mb := NewMailbox()
	require.NoError(t, mb.Post('w'))
	require.NoError(t, mb.Post('m'))

	cmd, ok := mb.Take()
	assert.True(t, ok)
	assert.Equal(t, byte('m'), cmd)
	assert.Equal(t, 1, mb.Overwritten())

	_, ok = mb.Take()
	assert.False(t, ok, "slot is cleared after take")
}

func TestMailbox_Close(t *testing.T) {
	mb := NewMailbox()
	require.NoError(t, mb.Post('d'))
	mb.Close()

	assert.ErrorIs(t, mb.Post('w'), ErrMailboxClosed)
	cmd, ok := mb.Take()
	assert.True(t, ok)
	assert.Equal(t, byte('d'), cmd)
}

func TestMailbox_ConcurrentPostersNeverBlock(t *testing.T) {
	mb := NewMailbox()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(key byte) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = mb.Post(key)
			}
		}(byte('a' + i))
	}
	wg.Wait()

	cmd, ok := mb.Take()
	require.True(t, ok)
	assert.GreaterOrEqual(t, cmd, byte('a'))
	assert.Less(t, cmd, byte('a'+8))
	assert.Equal(t, 799, mb.Overwritten())
}
