package pakstream

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate(t *testing.T) {
	t.Parallel()

	var g gate
	assert.False(t, g.held())
	require.NoError(t, g.wait(context.Background()))
	assert.False(t, g.release())

	require.True(t, g.tryAcquire())
	assert.True(t, g.held())
	assert.False(t, g.tryAcquire())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, g.wait(ctx), context.Canceled)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, g.wait(context.Background()))
		}()
	}
	time.Sleep(10 * time.Millisecond)
	assert.True(t, g.release())
	wg.Wait()

	assert.False(t, g.held())
	assert.True(t, g.tryAcquire())
	assert.True(t, g.release())
}
