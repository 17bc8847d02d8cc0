// Package publisher fans domain audit events out to the audit store and, for
// security events, to an optional external sink.
//
// Emission is best-effort from the caller's point of view: a failing store or
// sink is logged and counted but never fails the domain operation.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	audit "votechain/pkg/platform/audit"
	"votechain/pkg/requestcontext"
)

// Sink receives security events after they are stored.
type Sink interface {
	Publish(ctx context.Context, event audit.Event) error
}

// Publisher writes events to a store synchronously, or through a bounded
// buffer drained by a background goroutine when WithAsyncBuffer is set.
type Publisher struct {
	store   audit.Store
	sinks   []Sink
	logger  *slog.Logger
	metrics *Metrics

	buffer    chan audit.Event
	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous persistence with a buffer of size n.
// Events that do not fit are dropped and counted.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.buffer = make(chan audit.Event, n)
		}
	}
}

// WithSink forwards security events to s.
func WithSink(s Sink) Option {
	return func(p *Publisher) {
		if s != nil {
			p.sinks = append(p.sinks, s)
		}
	}
}

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// NewPublisher creates a publisher over store.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records event. It fills ID, timestamp, category and request metadata
// from ctx when absent.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	event = p.enrich(ctx, event)

	if p.buffer == nil {
		return p.persist(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return p.persist(ctx, event)
	}
	select {
	case p.buffer <- event:
		return nil
	default:
		p.metrics.IncDropped()
		p.logger.WarnContext(ctx, "audit buffer full, event dropped",
			"action", event.Action,
			"request_id", event.RequestID,
		)
		return nil
	}
}

// EmitSecurity records a security event.
func (p *Publisher) EmitSecurity(ctx context.Context, event audit.SecurityEvent) error {
	return p.Emit(ctx, event.ToEvent())
}

// List returns the most recent events matching filter.
func (p *Publisher) List(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	return p.store.ListRecent(ctx, filter)
}

// Close stops accepting buffered events and drains what is queued.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		if p.buffer == nil {
			return
		}
		p.mu.Lock()
		p.closed = true
		close(p.buffer)
		p.mu.Unlock()
		p.wg.Wait()
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = p.persist(ctx, event)
		cancel()
	}
}

func (p *Publisher) persist(ctx context.Context, event audit.Event) error {
	if err := p.store.Append(ctx, event); err != nil {
		p.metrics.IncPersistFailures()
		p.logger.ErrorContext(ctx, "failed to persist audit event",
			"action", event.Action,
			"request_id", event.RequestID,
			"error", err,
		)
		return err
	}
	p.metrics.IncEmitted(event.Category)

	if event.Category != audit.CategorySecurity {
		return nil
	}
	for _, sink := range p.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			p.metrics.IncSinkFailures()
			p.logger.WarnContext(ctx, "failed to forward security event",
				"action", event.Action,
				"request_id", event.RequestID,
				"error", err,
			)
		}
	}
	return nil
}

func (p *Publisher) enrich(ctx context.Context, event audit.Event) audit.Event {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.IP == "" {
		event.IP = requestcontext.ClientIP(ctx)
	}
	if event.Device == "" {
		event.Device = requestcontext.Device(ctx)
	}
	if event.ActorID == "" {
		event.ActorID = requestcontext.OperatorID(ctx)
	}
	return event
}
