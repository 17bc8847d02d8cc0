package tx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "votechain/pkg/domain-errors"
)

func TestMemoryRunner_RollsBackInReverseOrder(t *testing.T) {
	r := NewMemoryRunner(0)
	var order []int

	err := r.RunInTx(context.Background(), func(ctx context.Context) error {
		OnRollback(ctx, func() { order = append(order, 1) })
		OnRollback(ctx, func() { order = append(order, 2) })
		return errors.New("append failed")
	})

	require.Error(t, err)
	assert.Equal(t, []int{2, 1}, order)
}

func TestMemoryRunner_CommitSkipsUndo(t *testing.T) {
	r := NewMemoryRunner(0)
	undone := false

	err := r.RunInTx(context.Background(), func(ctx context.Context) error {
		OnRollback(ctx, func() { undone = true })
		return nil
	})

	require.NoError(t, err)
	assert.False(t, undone)
}

func TestMemoryRunner_NestedRunsInline(t *testing.T) {
	r := NewMemoryRunner(time.Second)

	err := r.RunInTx(context.Background(), func(ctx context.Context) error {
		return r.RunInTx(ctx, func(ctx context.Context) error {
			assert.True(t, InUnit(ctx))
			return nil
		})
	})
	require.NoError(t, err)
}

func TestMemoryRunner_CancelledContext(t *testing.T) {
	r := NewMemoryRunner(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.RunInTx(ctx, func(context.Context) error {
		t.Fatal("fn must not run")
		return nil
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestMemoryRunner_Serializes(t *testing.T) {
	r := NewMemoryRunner(0)
	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		mu      sync.Mutex
	)

	for range 20 {
		wg.Go(func() {
			_ = r.RunInTx(context.Background(), func(context.Context) error {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		})
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestOnRollback_OutsideUnitIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		OnRollback(context.Background(), func() { panic("must not run") })
	})
	assert.False(t, InUnit(context.Background()))
}
