package ratelimit

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the scenario context these steps use.
type TestContext interface {
	POST(path string, body any) error
	LastStatus() int
	LastBody() []byte
}

// RegisterSteps registers per-address throttling steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^I request (\d+) challenges for voter "([^"]*)" from one address$`, steps.burstChallenges)
	ctx.Step(`^the first (\d+) requests should not be rate limited$`, steps.firstNotLimited)
	ctx.Step(`^the final request should be rate limited$`, steps.finalLimited)
}

type ratelimitSteps struct {
	tc       TestContext
	statuses []int
}

func (s *ratelimitSteps) burstChallenges(ctx context.Context, n int, voterID string) error {
	s.statuses = s.statuses[:0]
	for range n {
		if err := s.tc.POST("/challenges", map[string]string{"voter_id": voterID}); err != nil {
			return err
		}
		s.statuses = append(s.statuses, s.tc.LastStatus())
	}
	return nil
}

func (s *ratelimitSteps) firstNotLimited(ctx context.Context, n int) error {
	if len(s.statuses) < n {
		return fmt.Errorf("only %d requests were sent", len(s.statuses))
	}
	for i, st := range s.statuses[:n] {
		if st == http.StatusTooManyRequests {
			return fmt.Errorf("request %d was rate limited early", i+1)
		}
	}
	return nil
}

func (s *ratelimitSteps) finalLimited(ctx context.Context) error {
	if len(s.statuses) == 0 {
		return fmt.Errorf("no requests were sent")
	}
	if last := s.statuses[len(s.statuses)-1]; last != http.StatusTooManyRequests {
		return fmt.Errorf("expected 429, got %d: %s", last, s.tc.LastBody())
	}
	return nil
}
