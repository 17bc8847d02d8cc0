package common

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the scenario context these steps use.
type TestContext interface {
	Do(method, path string, body any, headers map[string]string) error
	POST(path string, body any) error
	AdminHeaders() map[string]string
	LastStatus() int
	LastBody() []byte
	LastHeader(name string) string
	Field(name string) (any, error)
	Remember(key, value string)
	Recall(key string) string
}

// RegisterSteps registers operator setup and generic response assertions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the election is open$`, steps.electionIsOpen)
	ctx.Step(`^the election is closed$`, steps.electionIsClosed)
	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldBeString)
	ctx.Step(`^the response field "([^"]*)" should be (true|false)$`, steps.fieldShouldBeBool)
	ctx.Step(`^the response header "([^"]*)" should be set$`, steps.headerShouldBeSet)
}

type commonSteps struct {
	tc TestContext
}

// OperatorBearer returns an Authorization header for the seeded operator
// with the given id, minting the token on first use.
func OperatorBearer(tc TestContext, operatorID string) (map[string]string, error) {
	key := "bearer:" + operatorID
	if tok := tc.Recall(key); tok != "" {
		return map[string]string{"Authorization": "Bearer " + tok}, nil
	}
	if err := tc.Do(http.MethodPost, "/admin/tokens", map[string]string{"operator_id": operatorID}, tc.AdminHeaders()); err != nil {
		return nil, err
	}
	if tc.LastStatus() != http.StatusCreated {
		return nil, fmt.Errorf("mint token for %s: status %d: %s", operatorID, tc.LastStatus(), tc.LastBody())
	}
	v, err := tc.Field("access_token")
	if err != nil {
		return nil, err
	}
	tok, ok := v.(string)
	if !ok || tok == "" {
		return nil, fmt.Errorf("access_token missing: %s", tc.LastBody())
	}
	tc.Remember(key, tok)
	return map[string]string{"Authorization": "Bearer " + tok}, nil
}

func (s *commonSteps) electionIsOpen(ctx context.Context) error {
	return s.setElection("/election/start")
}

func (s *commonSteps) electionIsClosed(ctx context.Context) error {
	return s.setElection("/election/stop")
}

func (s *commonSteps) setElection(path string) error {
	headers, err := OperatorBearer(s.tc, "ADM000001")
	if err != nil {
		return err
	}
	if err := s.tc.Do(http.MethodPost, path, nil, headers); err != nil {
		return err
	}
	if s.tc.LastStatus() != http.StatusOK {
		return fmt.Errorf("%s: status %d: %s", path, s.tc.LastStatus(), s.tc.LastBody())
	}
	return nil
}

func (s *commonSteps) statusShouldBe(ctx context.Context, want int) error {
	if got := s.tc.LastStatus(); got != want {
		return fmt.Errorf("expected status %d, got %d: %s", want, got, s.tc.LastBody())
	}
	return nil
}

func (s *commonSteps) fieldShouldBeString(ctx context.Context, field, want string) error {
	v, err := s.tc.Field(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("expected %s=%q, got %q", field, want, got)
	}
	return nil
}

func (s *commonSteps) fieldShouldBeBool(ctx context.Context, field, want string) error {
	v, err := s.tc.Field(field)
	if err != nil {
		return err
	}
	wantBool, _ := strconv.ParseBool(want)
	got, ok := v.(bool)
	if !ok || got != wantBool {
		return fmt.Errorf("expected %s=%s, got %v", field, want, v)
	}
	return nil
}

func (s *commonSteps) headerShouldBeSet(ctx context.Context, name string) error {
	if s.tc.LastHeader(name) == "" {
		return fmt.Errorf("header %s not set", name)
	}
	return nil
}
