package automation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestBridgeRunsOperations(t *testing.T) {
	bridge := NewBridge(zap.NewNop())
	defer bridge.Stop()

	ran := false
	err := bridge.Run(context.Background(), "op", func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestBridgePropagatesOperationError(t *testing.T) {
	bridge := NewBridge(zap.NewNop())
	defer bridge.Stop()

	wantErr := errors.New("boom")
	err := bridge.Run(context.Background(), "op", func(ctx context.Context) error {
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

func TestBridgeSerializesOperations(t *testing.T) {
	bridge := NewBridge(zap.NewNop())
	defer bridge.Stop()

	var mu sync.Mutex
	var active, maxActive int

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = bridge.Run(context.Background(), "op", func(ctx context.Context) error {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive, "operations must never overlap")
}

func TestBridgeRecoversFromPanic(t *testing.T) {
	bridge := NewBridge(zap.NewNop())
	defer bridge.Stop()

	err := bridge.Run(context.Background(), "panicky", func(ctx context.Context) error {
		panic("kaboom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	// Worker must survive the panic.
	err = bridge.Run(context.Background(), "after", func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)
}

func TestBridgeRestartsAfterStop(t *testing.T) {
	bridge := NewBridge(zap.NewNop())

	require.NoError(t, bridge.Run(context.Background(), "first", func(ctx context.Context) error {
		return nil
	}))

	bridge.Stop()
	bridge.Stop() // idempotent

	err := bridge.Run(context.Background(), "second", func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
	bridge.Stop()
}

func TestBridgeHonorsCallerContext(t *testing.T) {
	bridge := NewBridge(zap.NewNop())
	defer bridge.Stop()

	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := bridge.Run(ctx, "slow", func(ctx context.Context) error {
		<-release
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBridgeLeavesNoGoroutinesAfterStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	bridge := NewBridge(zap.NewNop())
	require.NoError(t, bridge.Run(context.Background(), "op", func(ctx context.Context) error {
		return nil
	}))
	bridge.Stop()

	// Stopping is asynchronous from the worker's perspective.
	time.Sleep(20 * time.Millisecond)
}
