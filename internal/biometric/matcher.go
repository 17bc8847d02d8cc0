package biometric

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"time"

	dErrors "votechain/pkg/domain-errors"
)

// Extractor turns a raw face sample into an embedding.
type Extractor interface {
	ExtractFace(ctx context.Context, sample []byte) ([]float64, error)
}

// Matcher compares stored descriptors with presented samples. It fails
// closed: any extraction error or malformed input is a non-match.
type Matcher struct {
	threshold float64
	extractor Extractor
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithExtractor enables matching raw samples against vector descriptors.
func WithExtractor(e Extractor) Option {
	return func(m *Matcher) { m.extractor = e }
}

// WithExtractTimeout bounds a single extraction.
func WithExtractTimeout(d time.Duration) Option {
	return func(m *Matcher) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) { m.logger = logger }
}

// NewMatcher returns a matcher with the given face distance threshold.
// A non-positive threshold falls back to DefaultFaceThreshold.
func NewMatcher(threshold float64, opts ...Option) *Matcher {
	if threshold <= 0 {
		threshold = DefaultFaceThreshold
	}
	m := &Matcher{
		threshold: threshold,
		timeout:   2 * time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Threshold returns the configured face distance threshold.
func (m *Matcher) Threshold() float64 { return m.threshold }

// Sample is a freshly presented biometric: raw capture bytes, or an
// embedding the capture device already extracted.
type Sample struct {
	Raw    []byte
	Vector []float64
}

// IsZero reports whether nothing was presented.
func (s Sample) IsZero() bool {
	return len(s.Raw) == 0 && len(s.Vector) == 0
}

// Match reports whether the presented sample matches stored.
func (m *Matcher) Match(ctx context.Context, stored Descriptor, presented Sample) bool {
	if presented.IsZero() {
		return false
	}
	switch stored.Kind {
	case KindHash:
		if len(presented.Raw) == 0 {
			return false
		}
		return subtle.ConstantTimeCompare([]byte(stored.Hash), []byte(Digest(presented.Raw))) == 1
	case KindVector:
		v := presented.Vector
		if len(v) == 0 {
			var ok bool
			if v, ok = m.extract(ctx, presented.Raw); !ok {
				return false
			}
		}
		return m.within(stored.Vector, v)
	default:
		return false
	}
}

// DescribeFace turns a presented face into a descriptor for enrolment:
// embeddings are kept as vectors, raw samples go through the extractor when
// one is configured and are digested otherwise.
func (m *Matcher) DescribeFace(ctx context.Context, presented Sample) (Descriptor, error) {
	switch {
	case len(presented.Vector) > 0:
		return VectorDescriptor(presented.Vector), nil
	case len(presented.Raw) == 0:
		return Descriptor{}, dErrors.New(dErrors.CodeValidation, "face sample is required")
	case m.extractor == nil:
		return HashDescriptor(presented.Raw), nil
	}
	v, ok := m.extract(ctx, presented.Raw)
	if !ok {
		return Descriptor{}, dErrors.New(dErrors.CodeValidation, "could not extract a face descriptor from the sample")
	}
	return VectorDescriptor(v), nil
}

// Similar reports whether two stored descriptors denote the same person.
// Hashes must be equal; vectors must be closer than the threshold.
func (m *Matcher) Similar(a, b Descriptor) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindHash:
		return a.Hash != "" && subtle.ConstantTimeCompare([]byte(a.Hash), []byte(b.Hash)) == 1
	case KindVector:
		return m.within(a.Vector, b.Vector)
	default:
		return false
	}
}

func (m *Matcher) within(a, b []float64) bool {
	d, ok := Distance(a, b)
	return ok && d < m.threshold
}

func (m *Matcher) extract(ctx context.Context, sample []byte) ([]float64, bool) {
	if m.extractor == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	type result struct {
		v   []float64
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := m.extractor.ExtractFace(ctx, sample)
		ch <- result{v: v, err: err}
	}()

	select {
	case <-ctx.Done():
		m.logger.WarnContext(ctx, "face extraction timed out")
		return nil, false
	case r := <-ch:
		if r.err != nil {
			m.logger.WarnContext(ctx, "face extraction failed", "error", r.err)
			return nil, false
		}
		return r.v, true
	}
}
