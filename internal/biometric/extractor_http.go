package biometric

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"votechain/pkg/platform/circuit"
	"votechain/pkg/platform/sentinel"
)

// HTTPExtractor calls an external embedding service:
//
//	POST <url>  {"sample": "<base64>"}  ->  {"embedding": [..]}
type HTTPExtractor struct {
	url     string
	client  *http.Client
	breaker *circuit.Breaker
}

// NewHTTPExtractor returns an extractor bound to url.
func NewHTTPExtractor(url string, timeout time.Duration) *HTTPExtractor {
	return &HTTPExtractor{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		breaker: circuit.New("face-extractor", circuit.WithFailureThreshold(5), circuit.WithCooldown(10*time.Second)),
	}
}

type extractRequest struct {
	Sample []byte `json:"sample"`
}

type extractResponse struct {
	Embedding []float64 `json:"embedding"`
}

func (e *HTTPExtractor) ExtractFace(ctx context.Context, sample []byte) ([]float64, error) {
	if !e.breaker.Allow() {
		return nil, fmt.Errorf("face extractor: %w", sentinel.ErrUnavailable)
	}
	v, err := e.call(ctx, sample)
	if err != nil {
		// A sample the service rejects says nothing about its health.
		if !errors.Is(err, errRejectedSample) {
			e.breaker.RecordFailure()
		}
		return nil, err
	}
	e.breaker.RecordSuccess()
	return v, nil
}

var errRejectedSample = errors.New("sample rejected by extractor")

func (e *HTTPExtractor) call(ctx context.Context, sample []byte) ([]float64, error) {
	body, err := json.Marshal(extractRequest{Sample: sample})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call face extractor: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("face extractor returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", errRejectedSample, resp.StatusCode)
	}

	var out extractResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode face extractor response: %w", err)
	}
	if len(out.Embedding) == 0 || len(out.Embedding) > MaxVectorLen {
		return nil, fmt.Errorf("%w: embedding length %d", errRejectedSample, len(out.Embedding))
	}
	return out.Embedding, nil
}
