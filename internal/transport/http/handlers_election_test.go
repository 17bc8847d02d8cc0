package httptransport

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"votechain/internal/election"
	"votechain/internal/identity"
	"votechain/internal/transport/http/mocks"
	dErrors "votechain/pkg/domain-errors"
	"votechain/pkg/testutil"
)

func newElectionHandler(t *testing.T) (*ElectionHandler, *mocks.MockElectionService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockElectionService(ctrl)
	return NewElectionHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil))), svc
}

func TestHandleSet(t *testing.T) {
	testutil.Given(t, "no operator on the context", func(t *testing.T) {
		h, _ := newElectionHandler(t)
		req := testutil.NewRequest(t, http.MethodPost, "/election/start")

		rr := testutil.DoRequest(h.handleSet(true), req)
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, string(dErrors.CodeUnauthorized))
	})

	testutil.Given(t, "an operator with an unknown role", func(t *testing.T) {
		h, _ := newElectionHandler(t)
		req := testutil.WithOperator(testutil.NewRequest(t, http.MethodPost, "/election/start"), "ADM000001", "Root")

		rr := testutil.DoRequest(h.handleSet(true), req)
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, string(dErrors.CodeForbidden))
	})

	testutil.Given(t, "an auditor", func(t *testing.T) {
		h, svc := newElectionHandler(t)
		at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		req := testutil.WithOperator(testutil.NewRequest(t, http.MethodPost, "/election/stop"), "AUD000001", "Auditor")

		testutil.When(t, "the election is stopped", func(t *testing.T) {
			svc.EXPECT().Stop(gomock.Any(), election.Operator{ID: "AUD000001", Role: identity.RoleAuditor}).
				Return(election.State{Active: false, UpdatedAt: at, UpdatedBy: "AUD000001"}, nil)

			rr := testutil.DoRequest(h.handleSet(false), req)

			testutil.Then(t, "the new state is returned", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				st := testutil.UnmarshalResponse[election.State](t, rr)
				if st.Active || st.UpdatedBy != "AUD000001" {
					t.Fatalf("unexpected state %+v", st)
				}
			})
		})
	})

	testutil.Given(t, "the service refuses a voter", func(t *testing.T) {
		h, svc := newElectionHandler(t)
		req := testutil.WithOperator(testutil.NewRequest(t, http.MethodPost, "/election/start"), "ABC123456", "Voter")
		svc.EXPECT().Start(gomock.Any(), gomock.Any()).
			Return(election.State{}, dErrors.New(dErrors.CodeForbidden, "role may not control the election"))

		rr := testutil.DoRequest(h.handleSet(true), req)
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, string(dErrors.CodeForbidden))
	})
}

func TestHandleAddCandidate_Validation(t *testing.T) {
	h, _ := newElectionHandler(t)
	req := testutil.NewJSONRequest(t, http.MethodPost, "/candidates", map[string]string{"candidate_id": "  "})

	rr := testutil.DoRequest(http.HandlerFunc(h.handleAddCandidate), req)
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeValidation))
}
