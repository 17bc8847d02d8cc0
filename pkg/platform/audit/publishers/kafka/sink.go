// Package kafka forwards security audit events to a Kafka topic.
//
// Publish only enqueues; a background loop batches events to the broker and
// puts failed records back in the ring buffer. A circuit breaker stops the
// loop from hammering an unreachable broker.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "votechain/pkg/platform/audit"
	"votechain/pkg/platform/circuit"
)

// Producer is the subset of *kgo.Client the sink uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Sink buffers security events and ships them to Kafka.
type Sink struct {
	producer      Producer
	topic         string
	buffer        *RingBuffer
	breaker       *circuit.Breaker
	logger        *slog.Logger
	flushInterval time.Duration
	batchSize     int

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// Option configures the Sink.
type Option func(*Sink)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) { s.logger = logger }
}

func WithBufferSize(n int) Option {
	return func(s *Sink) { s.buffer = NewRingBuffer(n) }
}

func WithFlushInterval(d time.Duration) Option {
	return func(s *Sink) {
		if d > 0 {
			s.flushInterval = d
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Sink) { s.breaker = b }
}

// wireEvent is the JSON value published per record.
type wireEvent struct {
	ID         string `json:"id"`
	Category   string `json:"category"`
	Action     string `json:"action"`
	Severity   string `json:"severity,omitempty"`
	Subject    string `json:"subject,omitempty"`
	DistrictID string `json:"district_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	ActorID    string `json:"actor_id,omitempty"`
	IP         string `json:"client_ip,omitempty"`
	Device     string `json:"device,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// NewSink creates a sink producing to topic.
func NewSink(producer Producer, topic string, opts ...Option) *Sink {
	s := &Sink{
		producer:      producer,
		topic:         topic,
		buffer:        NewRingBuffer(0),
		breaker:       circuit.New("kafka-security-sink", circuit.WithFailureThreshold(3), circuit.WithCooldown(15*time.Second)),
		logger:        slog.Default(),
		flushInterval: time.Second,
		batchSize:     100,
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish enqueues event for delivery. It never blocks on the broker.
func (s *Sink) Publish(_ context.Context, event audit.Event) error {
	s.buffer.Enqueue(event)
	return nil
}

// Start launches the background flush loop.
func (s *Sink) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), s.flushInterval*5)
				_ = s.Flush(ctx)
				cancel()
			}
		}
	}()
}

// Close stops the loop and makes a final delivery attempt bounded by ctx.
func (s *Sink) Close(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		s.wg.Wait()
		for s.buffer.Len() > 0 && err == nil {
			err = s.flushBatch(ctx)
		}
		if dropped := s.buffer.Dropped(); dropped > 0 {
			s.logger.WarnContext(ctx, "security events dropped by kafka sink", "dropped", dropped)
		}
	})
	return err
}

// Flush delivers up to one batch if the breaker allows it.
func (s *Sink) Flush(ctx context.Context) error {
	if s.buffer.Len() == 0 || !s.breaker.Allow() {
		return nil
	}
	return s.flushBatch(ctx)
}

// Pending returns the number of undelivered events.
func (s *Sink) Pending() int {
	return s.buffer.Len()
}

func (s *Sink) flushBatch(ctx context.Context) error {
	batch := s.buffer.DequeueBatch(s.batchSize)
	if len(batch) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(batch))
	byRecord := make(map[*kgo.Record]audit.Event, len(batch))
	for _, event := range batch {
		rec, err := s.record(event)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to encode security event", "action", event.Action, "error", err)
			continue
		}
		records = append(records, rec)
		byRecord[rec] = event
	}

	results := s.producer.ProduceSync(ctx, records...)
	var failed []audit.Event
	for _, res := range results {
		if res.Err != nil {
			failed = append(failed, byRecord[res.Record])
		}
	}
	if len(failed) == 0 {
		if _, change := s.breaker.RecordSuccess(); change.Closed {
			s.logger.InfoContext(ctx, "kafka sink recovered", "topic", s.topic)
		}
		return nil
	}

	s.buffer.Requeue(failed)
	if _, change := s.breaker.RecordFailure(); change.Opened {
		s.logger.WarnContext(ctx, "kafka sink circuit opened", "topic", s.topic, "pending", s.buffer.Len())
	}
	return results.FirstErr()
}

func (s *Sink) record(event audit.Event) (*kgo.Record, error) {
	value, err := json.Marshal(wireEvent{
		ID:         event.ID.String(),
		Category:   string(event.Category),
		Action:     event.Action,
		Severity:   string(event.Severity),
		Subject:    event.Subject,
		DistrictID: event.DistrictID,
		Reason:     event.Reason,
		RequestID:  event.RequestID,
		ActorID:    event.ActorID,
		IP:         event.IP,
		Device:     event.Device,
		OccurredAt: event.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, err
	}
	key := event.DistrictID
	if key == "" {
		key = event.Subject
	}
	return &kgo.Record{
		Topic: s.topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_id", Value: []byte(event.ID.String())},
			{Key: "action", Value: []byte(event.Action)},
		},
	}, nil
}
