package syncgroup

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroup_WaitsForAll(t *testing.T) {
	g := New()
	var n int32
	for i := 0; i < 10; i++ {
		require.True(t, g.Go(context.Background(), func(ctx context.Context) {
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&n, 1)
		}))
	}
	g.Wait()
	assert.Equal(t, int32(10), atomic.LoadInt32(&n))
	assert.Equal(t, 0, g.Running())
}

func TestGroup_CloseRejects(t *testing.T) {
	g := New()
	g.Close()
	assert.False(t, g.Go(context.Background(), func(ctx context.Context) {}))
	assert.False(t, New().Go(context.Background(), nil))
}

func TestGroup_WaitContextTimeout(t *testing.T) {
	g := New()
	release := make(chan struct{})
	g.Go(context.Background(), func(ctx context.Context) { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, g.WaitContext(ctx), context.DeadlineExceeded)

	close(release)
	assert.NoError(t, g.WaitContext(context.Background()))
}
