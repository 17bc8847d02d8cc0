//go:build integration

package integration_tests

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"votechain/internal/challenge"
	challengestore "votechain/internal/challenge/store"
	ratelimitstore "votechain/internal/ratelimit/store"
	dErrors "votechain/pkg/domain-errors"
	"votechain/pkg/platform/sentinel"
	"votechain/pkg/testutil/containers"
)

type RedisSuite struct {
	suite.Suite
	ctx   context.Context
	redis *containers.RedisContainer
	store *challengestore.RedisStore
}

func TestRedisSuite(t *testing.T) {
	suite.Run(t, new(RedisSuite))
}

func (s *RedisSuite) SetupSuite() {
	s.ctx = context.Background()
	s.redis = containers.NewRedisContainer(s.T())
	s.store = challengestore.NewRedis(s.redis.Client)
}

func (s *RedisSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *RedisSuite) TestTakeIsSingleUse() {
	s.Require().NoError(s.store.Put(s.ctx, challenge.Challenge{VoterID: "ABC123456", Value: "v1"}, time.Minute))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			c, err := s.store.Take(s.ctx, "ABC123456")
			if err == nil {
				s.Equal("v1", c.Value)
				wins.Add(1)
				return
			}
			s.ErrorIs(err, sentinel.ErrNotFound)
		})
	}
	wg.Wait()
	s.Equal(int32(1), wins.Load())
}

func (s *RedisSuite) TestReissueOverwrites() {
	s.Require().NoError(s.store.Put(s.ctx, challenge.Challenge{VoterID: "ABC123456", Value: "old"}, time.Minute))
	s.Require().NoError(s.store.Put(s.ctx, challenge.Challenge{VoterID: "ABC123456", Value: "new"}, time.Minute))

	c, err := s.store.Take(s.ctx, "ABC123456")
	s.Require().NoError(err)
	s.Equal("new", c.Value)
}

func (s *RedisSuite) TestExpiry() {
	s.Require().NoError(s.store.Put(s.ctx, challenge.Challenge{VoterID: "ABC123456", Value: "v"}, time.Second))
	s.Eventually(func() bool {
		_, err := s.store.Take(s.ctx, "ABC123456")
		return err != nil
	}, 5*time.Second, 200*time.Millisecond)
}

func (s *RedisSuite) TestBrokerRoundTrip() {
	creds := challengestore.NewInMemoryCredentials()
	pub, priv, err := ed25519.GenerateKey(nil)
	s.Require().NoError(err)
	s.Require().NoError(creds.Put(s.ctx, challenge.Credential{
		ID: "key-1", VoterID: "ABC123456", Kind: challenge.CredentialEd25519, Data: pub,
	}))
	b := challenge.NewBroker(s.store, challenge.NewSignatureVerifier(creds), challenge.WithTTL(time.Minute))

	issued, err := b.Issue(s.ctx, "ABC123456")
	s.Require().NoError(err)
	msg, err := base64.RawURLEncoding.DecodeString(issued.Challenge)
	s.Require().NoError(err)
	proof := ed25519.Sign(priv, msg)

	s.Require().NoError(b.Redeem(s.ctx, "ABC123456", proof))
	err = b.Redeem(s.ctx, "ABC123456", proof)
	s.True(dErrors.Is(err, dErrors.CodeChallengeMissingOrExpired), "got %v", err)
}

func (s *RedisSuite) TestRateLimitWindowIsShared() {
	now := time.Now().UTC()
	a := ratelimitstore.NewRedis(s.redis.Client)
	b := ratelimitstore.NewRedis(s.redis.Client)

	for i := range 3 {
		st := a
		if i%2 == 1 {
			st = b
		}
		res, err := st.Allow(s.ctx, "ip:203.0.113.7", 3, time.Minute, now)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(2-i, res.Remaining)
	}

	res, err := b.Allow(s.ctx, "ip:203.0.113.7", 3, time.Minute, now.Add(time.Second))
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.WithinDuration(now.Add(time.Minute), res.ResetAt, time.Millisecond)

	res, err = a.Allow(s.ctx, "ip:203.0.113.7", 3, time.Minute, now.Add(time.Minute+time.Millisecond))
	s.Require().NoError(err)
	s.True(res.Allowed, "window slid past the first admissions")
}
