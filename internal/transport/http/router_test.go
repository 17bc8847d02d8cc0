package httptransport_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"votechain/internal/challenge"
	"votechain/internal/election"
	"votechain/internal/identity"
	jwttoken "votechain/internal/jwt_token"
	"votechain/internal/ledger"
	"votechain/internal/ratelimit"
	ratelimitstore "votechain/internal/ratelimit/store"
	httptransport "votechain/internal/transport/http"
	"votechain/internal/transport/http/mocks"
	"votechain/internal/vote"
	dErrors "votechain/pkg/domain-errors"
	"votechain/pkg/platform/audit"
	"votechain/pkg/platform/middleware/admin"
	"votechain/pkg/platform/middleware/request"
)

//go:generate mockgen -source=services.go -destination=mocks/mocks.go -package=mocks

const testAdminToken = "bootstrap-secret"

type RouterSuite struct {
	suite.Suite
	votes       *mocks.MockVoteService
	ledger      *mocks.MockLedgerService
	registry    *mocks.MockRegistryService
	challenges  *mocks.MockChallengeService
	credentials *mocks.MockCredentialService
	election    *mocks.MockElectionService
	audit       *mocks.MockAuditService
	issuer      *mocks.MockTokenIssuer
	jwt         *jwttoken.JWTService
	healthErr   error
	router      http.Handler
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.votes = mocks.NewMockVoteService(ctrl)
	s.ledger = mocks.NewMockLedgerService(ctrl)
	s.registry = mocks.NewMockRegistryService(ctrl)
	s.challenges = mocks.NewMockChallengeService(ctrl)
	s.credentials = mocks.NewMockCredentialService(ctrl)
	s.election = mocks.NewMockElectionService(ctrl)
	s.audit = mocks.NewMockAuditService(ctrl)
	s.issuer = mocks.NewMockTokenIssuer(ctrl)
	s.jwt = jwttoken.NewJWTService("test-signing-key", "votechain", "votechain-operators")
	s.healthErr = nil

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = httptransport.NewRouter(httptransport.RouterConfig{
		Logger:       logger,
		JWTValidator: jwttoken.NewJWTServiceAdapter(s.jwt),
		AdminToken:   testAdminToken,

		Votes:        httptransport.NewVoteHandler(s.votes, logger),
		Ledger:       httptransport.NewLedgerHandler(s.ledger, logger),
		Registration: httptransport.NewRegistrationHandler(s.registry, logger),
		Challenges:   httptransport.NewChallengeHandler(s.challenges, s.credentials, logger),
		Election:     httptransport.NewElectionHandler(s.election, logger),
		Audit:        httptransport.NewAuditHandler(s.audit, logger),
		Operators:    httptransport.NewOperatorHandler(s.issuer, logger),
		Health: httptransport.NewHealthHandler(map[string]httptransport.HealthCheck{
			"database": func(context.Context) error { return s.healthErr },
		}, logger),
	})
}

func (s *RouterSuite) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != nil {
		if raw, ok := body.(string); ok {
			rdr = bytes.NewBufferString(raw)
		} else {
			b, err := json.Marshal(body)
			s.Require().NoError(err)
			rdr = bytes.NewReader(b)
		}
	}
	req := httptest.NewRequest(method, path, rdr)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterSuite) bearer(role identity.Role) map[string]string {
	tok, err := s.jwt.GenerateOperatorToken("ADM000001", role, time.Hour)
	s.Require().NoError(err)
	return map[string]string{"Authorization": "Bearer " + tok}
}

func (s *RouterSuite) decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func castBody() map[string]any {
	return map[string]any{
		"voter_id":        "abc123456",
		"district_id":     "234",
		"candidate_id":    "P1",
		"face":            map[string]any{"vector": []float64{0.1, 0.2}},
		"fingerprint":     "finger",
		"challenge_proof": base64.RawURLEncoding.EncodeToString([]byte("signature")),
	}
}

func (s *RouterSuite) TestCastVote() {
	s.Run("returns the receipt", func() {
		ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		s.votes.EXPECT().CastVote(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req vote.CastRequest) (*vote.Receipt, error) {
				s.Equal(identity.VoterID("ABC123456"), req.VoterID)
				s.Equal([]byte("signature"), req.ChallengeProof)
				s.Equal([]byte("finger"), req.Fingerprint.Raw)
				return &vote.Receipt{BlockHash: "abc", Timestamp: ts}, nil
			})

		w := s.do(http.MethodPost, "/votes", castBody(), nil)
		s.Equal(http.StatusCreated, w.Code)
		s.NotEmpty(w.Header().Get(request.HeaderRequestID))
		s.Equal("abc", s.decode(w)["block_hash"])
	})

	s.Run("rejects malformed bodies before the service", func() {
		w := s.do(http.MethodPost, "/votes", "{not json", nil)
		s.Equal(http.StatusBadRequest, w.Code)

		body := castBody()
		delete(body, "challenge_proof")
		w = s.do(http.MethodPost, "/votes", body, nil)
		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal(string(dErrors.CodeValidation), s.decode(w)["error"])
	})

	s.Run("maps domain errors", func() {
		s.votes.EXPECT().CastVote(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeAlreadyVoted, "voter has already voted"))
		w := s.do(http.MethodPost, "/votes", castBody(), nil)
		s.Equal(http.StatusConflict, w.Code)
		s.Equal(string(dErrors.CodeAlreadyVoted), s.decode(w)["error"])
	})

	s.Run("hides internal failures", func() {
		s.votes.EXPECT().CastVote(gomock.Any(), gomock.Any()).Return(nil, errors.New("disk full"))
		w := s.do(http.MethodPost, "/votes", castBody(), nil)
		s.Equal(http.StatusInternalServerError, w.Code)
		resp := s.decode(w)
		s.Equal(string(dErrors.CodeInternal), resp["error"])
		s.NotContains(w.Body.String(), "disk full")
	})
}

func (s *RouterSuite) TestLedgerRoutes() {
	s.Run("validate reports a break with 200", func() {
		at := int64(3)
		s.ledger.EXPECT().ValidateChain(gomock.Any()).
			Return(&ledger.Validation{Valid: false, Length: 5, BrokenAt: &at, Reason: "hash mismatch"}, nil)
		w := s.do(http.MethodGet, "/ledger/validate", nil, nil)
		s.Equal(http.StatusOK, w.Code)
		s.Equal(false, s.decode(w)["valid"])
	})

	s.Run("results refuse a broken chain", func() {
		s.ledger.EXPECT().Tally(gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeChainIntegrityViolation, "ledger failed integrity validation"))
		w := s.do(http.MethodGet, "/results", nil, nil)
		s.Equal(http.StatusServiceUnavailable, w.Code)
	})

	s.Run("receipt requires an operator", func() {
		w := s.do(http.MethodGet, "/voters/abc123456/receipt", nil, nil)
		s.Equal(http.StatusUnauthorized, w.Code)

		w = s.do(http.MethodGet, "/voters/abc123456/receipt", nil, map[string]string{"Authorization": "Bearer forged"})
		s.Equal(http.StatusUnauthorized, w.Code)
	})

	s.Run("receipt omits the candidate", func() {
		s.ledger.EXPECT().Receipt(gomock.Any(), "ABC123456").
			Return(&ledger.Block{Index: 4, DistrictID: "234", CandidateID: "P1", Hash: "h4"}, nil)
		w := s.do(http.MethodGet, "/voters/abc123456/receipt", nil, s.bearer(identity.RoleAuditor))
		s.Equal(http.StatusOK, w.Code)
		resp := s.decode(w)
		s.Equal("h4", resp["block_hash"])
		s.NotContains(resp, "candidate_id")
	})

	s.Run("receipt rejects malformed voter ids", func() {
		w := s.do(http.MethodGet, "/voters/nope/receipt", nil, s.bearer(identity.RoleAdmin))
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("chain lists blocks", func() {
		s.ledger.EXPECT().Chain(gomock.Any()).Return([]ledger.Block{{Index: 0}, {Index: 1}}, nil)
		w := s.do(http.MethodGet, "/ledger/blocks", nil, nil)
		s.Equal(http.StatusOK, w.Code)
		s.EqualValues(2, s.decode(w)["length"])
	})

	s.Run("verify passes the hash through", func() {
		s.ledger.EXPECT().VerifyByHash(gomock.Any(), "deadbeef").
			Return(&ledger.BlockVerification{Valid: true}, nil)
		w := s.do(http.MethodGet, "/ledger/blocks/deadbeef/verify", nil, nil)
		s.Equal(http.StatusOK, w.Code)
	})
}

func (s *RouterSuite) TestRegistrationRoutes() {
	s.Run("registers", func() {
		s.registry.EXPECT().Register(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req identity.RegisterRequest) (*identity.RegistrationResult, error) {
				s.Equal(identity.VoterID("ABC123456"), req.VoterID)
				return &identity.RegistrationResult{VoterID: req.VoterID, DistrictID: "234", Registered: true}, nil
			})
		w := s.do(http.MethodPost, "/registrations", map[string]any{
			"voter_id":    "ABC123456",
			"face":        map[string]any{"vector": []float64{1, 2}},
			"fingerprint": "fg",
		}, nil)
		s.Equal(http.StatusCreated, w.Code)
	})

	s.Run("duplicate biometrics conflict", func() {
		s.registry.EXPECT().Register(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeDuplicateDescriptor, "biometric already enrolled"))
		w := s.do(http.MethodPost, "/registrations", map[string]any{
			"voter_id":    "ABC123456",
			"face":        map[string]any{"vector": []float64{1, 2}},
			"fingerprint": "fg",
		}, nil)
		s.Equal(http.StatusConflict, w.Code)
	})

	s.Run("stats computes turnout", func() {
		s.registry.EXPECT().Counts(gomock.Any()).Return(identity.Counts{Registered: 4, Voted: 1}, nil)
		w := s.do(http.MethodGet, "/stats", nil, nil)
		s.Equal(http.StatusOK, w.Code)
		s.InDelta(25.0, s.decode(w)["turnout_percent"], 0.001)
	})

	s.Run("status", func() {
		s.registry.EXPECT().Status(gomock.Any(), identity.VoterID("ABC123456")).
			Return(&identity.Status{VoterID: "ABC123456", Registered: true}, nil)
		w := s.do(http.MethodGet, "/voters/ABC123456/status", nil, nil)
		s.Equal(http.StatusOK, w.Code)
		s.Equal(true, s.decode(w)["registered"])
	})
}

func (s *RouterSuite) TestChallengeRoutes() {
	s.Run("issues", func() {
		s.challenges.EXPECT().Issue(gomock.Any(), "ABC123456").
			Return(&challenge.Issued{VoterID: "ABC123456", Challenge: "c1"}, nil)
		w := s.do(http.MethodPost, "/challenges", map[string]string{"voter_id": "abc123456"}, nil)
		s.Equal(http.StatusCreated, w.Code)
		s.Equal("c1", s.decode(w)["challenge"])
	})

	s.Run("provisioning requires an admin", func() {
		body := map[string]any{"id": "cred-1", "kind": "ed25519", "data": make([]byte, 32)}
		w := s.do(http.MethodPut, "/voters/ABC123456/credentials", body, nil)
		s.Equal(http.StatusUnauthorized, w.Code)

		w = s.do(http.MethodPut, "/voters/ABC123456/credentials", body, s.bearer(identity.RoleAuditor))
		s.Equal(http.StatusForbidden, w.Code)

		s.credentials.EXPECT().Provision(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, c challenge.Credential) error {
				s.Equal("ABC123456", c.VoterID)
				s.Equal(challenge.CredentialEd25519, c.Kind)
				return nil
			})
		w = s.do(http.MethodPut, "/voters/ABC123456/credentials", body, s.bearer(identity.RoleAdmin))
		s.Equal(http.StatusNoContent, w.Code)
	})
}

func (s *RouterSuite) TestRateLimitedWrites() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:       logger,
		JWTValidator: jwttoken.NewJWTServiceAdapter(s.jwt),
		RateLimiter: ratelimit.New(ratelimitstore.NewInMemory(),
			ratelimit.WithLimit(1, time.Minute), ratelimit.WithLogger(logger)),

		Votes:        httptransport.NewVoteHandler(s.votes, logger),
		Ledger:       httptransport.NewLedgerHandler(s.ledger, logger),
		Registration: httptransport.NewRegistrationHandler(s.registry, logger),
		Challenges:   httptransport.NewChallengeHandler(s.challenges, s.credentials, logger),
		Election:     httptransport.NewElectionHandler(s.election, logger),
		Audit:        httptransport.NewAuditHandler(s.audit, logger),
	})
	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/challenges", bytes.NewBufferString(`{"voter_id":"abc123456"}`))
		req.RemoteAddr = "203.0.113.7:51000"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	s.challenges.EXPECT().Issue(gomock.Any(), "ABC123456").
		Return(&challenge.Issued{VoterID: "ABC123456", Challenge: "c1"}, nil)
	s.Equal(http.StatusCreated, post().Code)

	w := post()
	s.Equal(http.StatusTooManyRequests, w.Code)
	s.NotEmpty(w.Header().Get("Retry-After"))

	s.election.EXPECT().Status(gomock.Any()).Return(election.State{Active: true}, nil)
	req := httptest.NewRequest(http.MethodGet, "/election", nil)
	req.RemoteAddr = "203.0.113.7:51000"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	s.Equal(http.StatusOK, rec.Code, "reads are not limited")
}

func (s *RouterSuite) TestElectionRoutes() {
	s.Run("state is public", func() {
		s.election.EXPECT().Status(gomock.Any()).Return(election.State{Active: true}, nil)
		w := s.do(http.MethodGet, "/election", nil, nil)
		s.Equal(http.StatusOK, w.Code)
		s.Equal(true, s.decode(w)["active"])
	})

	s.Run("start needs a bearer token", func() {
		w := s.do(http.MethodPost, "/election/start", nil, nil)
		s.Equal(http.StatusUnauthorized, w.Code)

		w = s.do(http.MethodPost, "/election/start", nil, map[string]string{"Authorization": "Bearer junk"})
		s.Equal(http.StatusUnauthorized, w.Code)
	})

	s.Run("auditor can stop", func() {
		s.election.EXPECT().Stop(gomock.Any(), election.Operator{ID: "ADM000001", Role: identity.RoleAuditor}).
			Return(election.State{Active: false, UpdatedBy: "ADM000001"}, nil)
		w := s.do(http.MethodPost, "/election/stop", nil, s.bearer(identity.RoleAuditor))
		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("admin can start", func() {
		s.election.EXPECT().Start(gomock.Any(), election.Operator{ID: "ADM000001", Role: identity.RoleAdmin}).
			Return(election.State{Active: true}, nil)
		w := s.do(http.MethodPost, "/election/start", nil, s.bearer(identity.RoleAdmin))
		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("candidates filter by district", func() {
		s.election.EXPECT().Candidates(gomock.Any(), "234").Return(nil, nil)
		w := s.do(http.MethodGet, "/candidates?district_id=234", nil, nil)
		s.Equal(http.StatusOK, w.Code)
		s.Equal([]any{}, s.decode(w)["candidates"])
	})

	s.Run("roster edits are admin only", func() {
		body := map[string]string{"candidate_id": "P9", "name": "Nine", "district_id": "234"}
		w := s.do(http.MethodPost, "/candidates", body, s.bearer(identity.RoleAuditor))
		s.Equal(http.StatusForbidden, w.Code)

		s.election.EXPECT().AddCandidate(gomock.Any(), election.Candidate{ID: "P9", Name: "Nine", DistrictID: "234"}).Return(nil)
		w = s.do(http.MethodPost, "/candidates", body, s.bearer(identity.RoleAdmin))
		s.Equal(http.StatusCreated, w.Code)
	})
}

func (s *RouterSuite) TestAuditEvents() {
	s.Run("rejects unknown categories", func() {
		w := s.do(http.MethodGet, "/audit/events?category=bogus", nil, s.bearer(identity.RoleAuditor))
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("caps the limit", func() {
		s.audit.EXPECT().List(gomock.Any(), audit.Filter{Category: audit.CategorySecurity, Limit: 500}).
			Return([]audit.Event{{Action: string(audit.EventDuplicateVote), Subject: "ABC123456"}}, nil)
		w := s.do(http.MethodGet, "/audit/events?category=security&limit=9000", nil, s.bearer(identity.RoleAuditor))
		s.Equal(http.StatusOK, w.Code)
		events := s.decode(w)["events"].([]any)
		s.Len(events, 1)
	})
}

func (s *RouterSuite) TestOperatorTokens() {
	body := map[string]string{"operator_id": "ADM000001"}

	w := s.do(http.MethodPost, "/admin/tokens", body, nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	s.issuer.EXPECT().Issue(gomock.Any(), identity.VoterID("ADM000001")).
		Return(&jwttoken.OperatorToken{AccessToken: "t", TokenType: "Bearer", Role: "Admin"}, nil)
	w = s.do(http.MethodPost, "/admin/tokens", body, map[string]string{admin.HeaderAdminToken: testAdminToken})
	s.Equal(http.StatusCreated, w.Code)
	s.Equal("t", s.decode(w)["access_token"])
}

func (s *RouterSuite) TestHealth() {
	w := s.do(http.MethodGet, "/healthz", nil, nil)
	s.Equal(http.StatusOK, w.Code)

	s.healthErr = errors.New("connection refused")
	w = s.do(http.MethodGet, "/healthz", nil, nil)
	s.Equal(http.StatusServiceUnavailable, w.Code)
	s.Equal("degraded", s.decode(w)["status"])
}
