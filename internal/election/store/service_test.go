package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"votechain/internal/election"
	"votechain/internal/identity"
	dErrors "votechain/pkg/domain-errors"
	"votechain/pkg/platform/audit"
	"votechain/pkg/platform/audit/publisher"
	auditmemory "votechain/pkg/platform/audit/store/memory"
)

type ElectionSuite struct {
	suite.Suite
	ctx   context.Context
	audit *auditmemory.InMemoryStore
	svc   *election.Service
}

func TestElectionSuite(t *testing.T) {
	suite.Run(t, new(ElectionSuite))
}

func (s *ElectionSuite) SetupTest() {
	s.ctx = context.Background()
	s.audit = auditmemory.NewInMemoryStore()
	s.svc = election.New(NewInMemory(false), election.WithAuditPublisher(publisher.NewPublisher(s.audit)))
}

func (s *ElectionSuite) TestStartStopByRole() {
	tests := []struct {
		role    identity.Role
		allowed bool
	}{
		{identity.RoleVoter, false},
		{identity.RoleAuditor, true},
		{identity.RoleAdmin, true},
	}
	for _, tt := range tests {
		s.Run(string(tt.role), func() {
			_, err := s.svc.Start(s.ctx, election.Operator{ID: "OPS000001", Role: tt.role})
			if !tt.allowed {
				s.True(dErrors.Is(err, dErrors.CodeForbidden))
				active, err := s.svc.IsActive(s.ctx)
				s.Require().NoError(err)
				s.False(active)
				return
			}
			s.Require().NoError(err)
			active, err := s.svc.IsActive(s.ctx)
			s.Require().NoError(err)
			s.True(active)

			st, err := s.svc.Stop(s.ctx, election.Operator{ID: "OPS000001", Role: tt.role})
			s.Require().NoError(err)
			s.False(st.Active)
		})
	}

	started, err := s.audit.ListByAction(s.ctx, audit.EventElectionStarted)
	s.Require().NoError(err)
	s.Len(started, 2)
}

func (s *ElectionSuite) TestCheckCandidate() {
	s.NoError(s.svc.CheckCandidate(s.ctx, "234", "anyone"), "empty roster accepts all")

	s.Require().NoError(s.svc.AddCandidate(s.ctx, election.Candidate{ID: "P1", Name: "Party One", DistrictID: "234"}))
	s.Require().NoError(s.svc.AddCandidate(s.ctx, election.Candidate{ID: "N1", Name: "National"}))

	s.NoError(s.svc.CheckCandidate(s.ctx, "234", "P1"))
	s.NoError(s.svc.CheckCandidate(s.ctx, "999", "N1"))
	s.True(dErrors.Is(s.svc.CheckCandidate(s.ctx, "235", "P1"), dErrors.CodeInvalidCandidate))
	s.True(dErrors.Is(s.svc.CheckCandidate(s.ctx, "234", "P9"), dErrors.CodeInvalidCandidate))

	roster, err := s.svc.Candidates(s.ctx, "235")
	s.Require().NoError(err)
	s.Len(roster, 1)

	s.True(dErrors.Is(s.svc.AddCandidate(s.ctx, election.Candidate{}), dErrors.CodeValidation))
}
