package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "votechain/pkg/platform/audit"
	"votechain/pkg/platform/audit/store/memory"
	"votechain/pkg/requestcontext"
)

type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
	err    error
}

func (s *recordingSink) Publish(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type failingStore struct{ audit.Store }

func (failingStore) Append(context.Context, audit.Event) error {
	return errors.New("store offline")
}

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{
		Subject: "ABC123456",
		Action:  string(audit.EventVoterRegistered),
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), audit.Filter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventVoterRegistered), events[0].Action)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.NotEqual(t, [16]byte{}, [16]byte(events[0].ID))
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{
			Subject: "D1",
			Action:  string(audit.EventVoteCast),
		}))
	}
	pub.Close()

	events, err := store.ListByAction(context.Background(), audit.EventVoteCast)
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_EmitAfterCloseWritesThrough(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(4))
	pub.Close()

	require.NoError(t, pub.Emit(context.Background(), audit.Event{Action: string(audit.EventElectionStopped)}))

	events, err := store.ListByAction(context.Background(), audit.EventElectionStopped)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestPublisher_BufferFullNeverBlocks(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			assert.NoError(t, pub.Emit(context.Background(), audit.Event{Action: string(audit.EventVoteCast)}))
		})
	}
	wg.Wait()
}

func TestPublisher_EnrichesFromContext(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	now := time.Date(2026, 5, 4, 8, 30, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithRequestID(ctx, "req-42")
	ctx = requestcontext.WithClientMetadata(ctx, "10.0.0.9", "kiosk")
	ctx = requestcontext.WithDevice(ctx, "Chrome/Linux")

	require.NoError(t, pub.EmitSecurity(ctx, audit.SecurityEvent{
		Subject:  "ABC123456",
		Action:   audit.EventBiometricMismatch,
		Severity: audit.SeverityWarning,
	}))

	events, err := pub.List(ctx, audit.Filter{Category: audit.CategorySecurity})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, now, events[0].Timestamp)
	assert.Equal(t, "req-42", events[0].RequestID)
	assert.Equal(t, "10.0.0.9", events[0].IP)
	assert.Equal(t, "Chrome/Linux", events[0].Device)
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	custom := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		Action:    string(audit.EventElectionStarted),
		Timestamp: custom,
	}))

	events, err := pub.List(context.Background(), audit.Filter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, custom, events[0].Timestamp)
}

func TestPublisher_ForwardsOnlySecurityEventsToSink(t *testing.T) {
	store := memory.NewInMemoryStore()
	sink := &recordingSink{}
	pub := NewPublisher(store, WithSink(sink))
	defer pub.Close()

	ctx := context.Background()
	require.NoError(t, pub.Emit(ctx, audit.Event{Action: string(audit.EventVoteCast)}))
	require.NoError(t, pub.Emit(ctx, audit.Event{Action: string(audit.EventChallengeFailed)}))
	require.NoError(t, pub.Emit(ctx, audit.Event{Action: string(audit.EventChainIntegrityFail)}))

	assert.Equal(t, 2, sink.count())
}

func TestPublisher_SinkFailureDoesNotFailEmit(t *testing.T) {
	sink := &recordingSink{err: errors.New("broker down")}
	pub := NewPublisher(memory.NewInMemoryStore(), WithSink(sink))
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{Action: string(audit.EventVotingBurst)})
	assert.NoError(t, err)
	assert.Equal(t, 1, sink.count())
}

func TestPublisher_StoreFailureSurfacesInSyncMode(t *testing.T) {
	pub := NewPublisher(failingStore{})
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{Action: string(audit.EventVoteCast)})
	assert.Error(t, err)
}
