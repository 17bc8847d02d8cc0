package vote_test

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"votechain/internal/anomaly"
	"votechain/internal/biometric"
	"votechain/internal/challenge"
	challengestore "votechain/internal/challenge/store"
	"votechain/internal/election"
	electionstore "votechain/internal/election/store"
	"votechain/internal/identity"
	identitystore "votechain/internal/identity/store"
	"votechain/internal/ledger"
	ledgerstore "votechain/internal/ledger/store"
	"votechain/internal/vote"
	dErrors "votechain/pkg/domain-errors"
	"votechain/pkg/platform/audit"
	"votechain/pkg/platform/audit/publisher"
	auditmemory "votechain/pkg/platform/audit/store/memory"
	"votechain/pkg/platform/tx"
)

// =============================================================================
// CastVote Flow Suite
// =============================================================================
// Wires the real in-memory stores together so the atomic commit and the
// single-use challenge are exercised end to end.

type FlowSuite struct {
	suite.Suite
	ctx      context.Context
	audit    *auditmemory.InMemoryStore
	identity *identitystore.InMemory
	registry *identity.Registry
	ledger   *ledger.Ledger
	broker   *challenge.Broker
	election *election.Service
	key      ed25519.PrivateKey
	runner   *tx.MemoryRunner
	svc      *vote.Service
}

func TestFlowSuite(t *testing.T) {
	suite.Run(t, new(FlowSuite))
}

func (s *FlowSuite) SetupTest() {
	s.ctx = context.Background()
	s.audit = auditmemory.NewInMemoryStore()
	pub := publisher.NewPublisher(s.audit)

	s.identity = identitystore.NewInMemory()
	for _, id := range []identity.VoterID{"ABC123456", "DEF654321"} {
		s.Require().NoError(s.identity.PutMaster(s.ctx, identity.MasterIdentity{VoterID: id, DistrictID: "234", Role: identity.RoleVoter}))
	}
	s.registry = identity.New(s.identity, s.identity, biometric.NewMatcher(biometric.DefaultFaceThreshold),
		identity.WithAuditPublisher(pub))

	var err error
	s.ledger, err = ledger.New(ledgerstore.NewInMemory(), ledger.WithAuditPublisher(pub))
	s.Require().NoError(err)
	_, err = s.ledger.Init(s.ctx)
	s.Require().NoError(err)

	creds := challengestore.NewInMemoryCredentials()
	pubKey, priv, err := ed25519.GenerateKey(nil)
	s.Require().NoError(err)
	s.key = priv
	s.Require().NoError(creds.Put(s.ctx, challenge.Credential{
		ID: "key-1", VoterID: "ABC123456", Kind: challenge.CredentialEd25519, Data: pubKey,
	}))
	s.broker = challenge.NewBroker(challengestore.NewInMemory(), challenge.NewSignatureVerifier(creds))

	s.election = election.New(electionstore.NewInMemory(true))
	s.Require().NoError(s.election.AddCandidate(s.ctx, election.Candidate{ID: "P1", Name: "Party One", DistrictID: "234"}))

	s.runner = tx.NewMemoryRunner(time.Second)
	s.svc = s.newService(s.broker)
}

func (s *FlowSuite) newService(broker vote.Broker) *vote.Service {
	svc, err := vote.New(vote.Deps{
		Election: s.election,
		Registry: s.registry,
		Broker:   broker,
		Ledger:   s.ledger,
		Detector: anomaly.New(),
		Tx:       s.runner,
	}, vote.WithAuditPublisher(publisher.NewPublisher(s.audit)))
	s.Require().NoError(err)
	return svc
}

func (s *FlowSuite) enrol(id identity.VoterID) {
	_, err := s.registry.Register(s.ctx, identity.RegisterRequest{
		VoterID:     id,
		FaceHash:    biometric.Digest([]byte("face-" + id.String())),
		Fingerprint: []byte("finger-" + id.String()),
	})
	s.Require().NoError(err)
}

func (s *FlowSuite) request(id identity.VoterID, proof []byte) vote.CastRequest {
	return vote.CastRequest{
		VoterID:        id,
		DistrictID:     "234",
		CandidateID:    "P1",
		Face:           biometric.Sample{Raw: []byte("face-" + id.String())},
		Fingerprint:    biometric.Sample{Raw: []byte("finger-" + id.String())},
		ChallengeProof: proof,
	}
}

func (s *FlowSuite) proof(id string) []byte {
	issued, err := s.broker.Issue(s.ctx, id)
	s.Require().NoError(err)
	msg, err := base64.RawURLEncoding.DecodeString(issued.Challenge)
	s.Require().NoError(err)
	return ed25519.Sign(s.key, msg)
}

func (s *FlowSuite) TestEndToEnd() {
	s.enrol("ABC123456")

	receipt, err := s.svc.CastVote(s.ctx, s.request("ABC123456", s.proof("ABC123456")))
	s.Require().NoError(err)
	s.NotEmpty(receipt.BlockHash)

	chain, err := s.ledger.Chain(s.ctx)
	s.Require().NoError(err)
	s.Len(chain, 2)
	s.Equal(receipt.BlockHash, chain[1].Hash)

	validation, err := s.ledger.ValidateChain(s.ctx)
	s.Require().NoError(err)
	s.True(validation.Valid)

	st, err := s.registry.Status(s.ctx, "ABC123456")
	s.Require().NoError(err)
	s.True(st.HasVoted)

	block, err := s.ledger.Receipt(s.ctx, "ABC123456")
	s.Require().NoError(err)
	s.Equal(receipt.BlockHash, block.Hash)

	_, err = s.svc.CastVote(s.ctx, s.request("ABC123456", s.proof("ABC123456")))
	s.True(dErrors.Is(err, dErrors.CodeAlreadyVoted), "got %v", err)

	events, err := s.audit.ListByAction(s.ctx, audit.EventVoteCast)
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *FlowSuite) TestFailedChallengeIsNotReplayable() {
	s.enrol("ABC123456")
	good := s.proof("ABC123456")

	_, err := s.svc.CastVote(s.ctx, s.request("ABC123456", make([]byte, ed25519.SignatureSize)))
	s.True(dErrors.Is(err, dErrors.CodeCredentialVerificationFailed), "got %v", err)

	_, err = s.svc.CastVote(s.ctx, s.request("ABC123456", good))
	s.True(dErrors.Is(err, dErrors.CodeChallengeMissingOrExpired), "got %v", err)

	chain, err := s.ledger.Chain(s.ctx)
	s.Require().NoError(err)
	s.Len(chain, 1, "no block for a rejected ballot")

	fraud, err := s.audit.ListByAction(s.ctx, audit.EventChallengeFailed)
	s.Require().NoError(err)
	s.Len(fraud, 2)
}

func (s *FlowSuite) TestBiometricMismatchLeavesVoterEligible() {
	s.enrol("ABC123456")
	req := s.request("ABC123456", s.proof("ABC123456"))
	req.Fingerprint = biometric.Sample{Raw: []byte("someone-else")}

	_, err := s.svc.CastVote(s.ctx, req)
	s.True(dErrors.Is(err, dErrors.CodeBiometricMismatch), "got %v", err)

	st, err := s.registry.Status(s.ctx, "ABC123456")
	s.Require().NoError(err)
	s.False(st.HasVoted)

	// The rejected proof is spent; the voter needs a fresh challenge.
	retry := s.request("ABC123456", req.ChallengeProof)
	_, err = s.svc.CastVote(s.ctx, retry)
	s.True(dErrors.Is(err, dErrors.CodeChallengeMissingOrExpired), "got %v", err)

	_, err = s.svc.CastVote(s.ctx, s.request("ABC123456", s.proof("ABC123456")))
	s.Require().NoError(err)
}

func (s *FlowSuite) TestIneligibleCastRevokesChallenge() {
	s.enrol("ABC123456")
	req := s.request("ABC123456", s.proof("ABC123456"))
	req.CandidateID = "NOBODY"

	_, err := s.svc.CastVote(s.ctx, req)
	s.True(dErrors.Is(err, dErrors.CodeInvalidCandidate), "got %v", err)

	_, err = s.svc.CastVote(s.ctx, s.request("ABC123456", req.ChallengeProof))
	s.True(dErrors.Is(err, dErrors.CodeChallengeMissingOrExpired), "got %v", err)
}

func (s *FlowSuite) TestClosedElection() {
	s.enrol("ABC123456")
	_, err := s.election.Stop(s.ctx, election.Operator{ID: "OPS", Role: identity.RoleAdmin})
	s.Require().NoError(err)

	_, err = s.svc.CastVote(s.ctx, s.request("ABC123456", nil))
	s.True(dErrors.Is(err, dErrors.CodeElectionClosed), "got %v", err)
}

// acceptingBroker lets every proof through so concurrent casts reach the
// commit step together.
type acceptingBroker struct{}

func (acceptingBroker) Redeem(context.Context, string, []byte) error { return nil }
func (acceptingBroker) Discard(context.Context, string) error        { return nil }

func (s *FlowSuite) TestConcurrentCastsCommitOnce() {
	s.enrol("ABC123456")
	svc := s.newService(acceptingBroker{})

	const k = 25
	errs := make(chan error, k)
	var wg sync.WaitGroup
	for range k {
		wg.Go(func() {
			_, err := svc.CastVote(s.ctx, s.request("ABC123456", []byte("ok")))
			errs <- err
		})
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		s.True(dErrors.Is(err, dErrors.CodeAlreadyVoted), "got %v", err)
	}
	s.Equal(1, ok)

	chain, err := s.ledger.Chain(s.ctx)
	s.Require().NoError(err)
	s.Len(chain, 2)
}

func (s *FlowSuite) TestTallyAfterBallots() {
	s.enrol("ABC123456")
	s.enrol("DEF654321")
	svc := s.newService(acceptingBroker{})

	_, err := svc.CastVote(s.ctx, s.request("ABC123456", []byte("ok")))
	s.Require().NoError(err)
	_, err = svc.CastVote(s.ctx, s.request("DEF654321", []byte("ok")))
	s.Require().NoError(err)

	res, err := s.ledger.Tally(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, res.TotalVotes)
	s.Equal([]string{"P1"}, res.Winners)
}
