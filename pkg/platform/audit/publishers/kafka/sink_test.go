package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "votechain/pkg/platform/audit"
	"votechain/pkg/platform/circuit"
)

type fakeProducer struct {
	mu      sync.Mutex
	fail    bool
	records []*kgo.Record
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	p.mu.Lock()
	defer p.mu.Unlock()
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if p.fail {
			results = append(results, kgo.ProduceResult{Record: r, Err: errors.New("broker unavailable")})
			continue
		}
		p.records = append(p.records, r)
		results = append(results, kgo.ProduceResult{Record: r})
	}
	return results
}

func securityEvent(action audit.AuditEvent) audit.Event {
	return audit.Event{
		ID:         uuid.New(),
		Category:   audit.CategorySecurity,
		Action:     string(action),
		DistrictID: "D1",
	}
}

func TestSink_FlushDeliversBatch(t *testing.T) {
	producer := &fakeProducer{}
	sink := NewSink(producer, "security")
	ctx := context.Background()

	require.NoError(t, sink.Publish(ctx, securityEvent(audit.EventBiometricMismatch)))
	require.NoError(t, sink.Publish(ctx, securityEvent(audit.EventVotingBurst)))
	require.NoError(t, sink.Flush(ctx))

	require.Len(t, producer.records, 2)
	assert.Equal(t, 0, sink.Pending())
	assert.Equal(t, "security", producer.records[0].Topic)
	assert.Equal(t, []byte("D1"), producer.records[0].Key)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(producer.records[0].Value, &wire))
	assert.Equal(t, string(audit.EventBiometricMismatch), wire["action"])
}

func TestSink_FailedRecordsAreRequeued(t *testing.T) {
	producer := &fakeProducer{fail: true}
	sink := NewSink(producer, "security", WithBreaker(circuit.New("test", circuit.WithFailureThreshold(1))))
	ctx := context.Background()

	require.NoError(t, sink.Publish(ctx, securityEvent(audit.EventChallengeFailed)))
	require.Error(t, sink.Flush(ctx))
	assert.Equal(t, 1, sink.Pending())

	// Breaker is open and cooling down, so Flush skips the broker.
	producer.fail = false
	require.NoError(t, sink.Flush(ctx))
	assert.Equal(t, 1, sink.Pending())

	// Close always makes a final attempt.
	require.NoError(t, sink.Close(ctx))
	assert.Equal(t, 0, sink.Pending())
	assert.Len(t, producer.records, 1)
}

func TestRingBuffer_RequeuePreservesOrder(t *testing.T) {
	b := NewRingBuffer(3)
	first, second, third := securityEvent(audit.EventVotingBurst), securityEvent(audit.EventVotingBurst), securityEvent(audit.EventVotingBurst)
	b.Enqueue(first)
	b.Enqueue(second)

	batch := b.DequeueBatch(2)
	b.Enqueue(third)
	b.Requeue(batch)

	out := b.DequeueBatch(3)
	require.Len(t, out, 3)
	assert.Equal(t, first.ID, out[0].ID)
	assert.Equal(t, second.ID, out[1].ID)
	assert.Equal(t, third.ID, out[2].ID)
}

func TestRingBuffer_DropsOldestWhenFull(t *testing.T) {
	b := NewRingBuffer(2)
	for range 3 {
		b.Enqueue(securityEvent(audit.EventVotingBurst))
	}
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, int64(1), b.Dropped())
}
