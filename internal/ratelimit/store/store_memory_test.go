package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

const (
	testLimit  = 5
	testWindow = time.Minute
)

type InMemorySuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemory
	now   time.Time
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemory()
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func (s *InMemorySuite) TestAllow() {
	s.Run("first request allowed", func() {
		res, err := s.store.Allow(s.ctx, "ip:first", testLimit, testWindow, s.now)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(testLimit, res.Limit)
		s.Equal(testLimit-1, res.Remaining)
		s.Equal(s.now.Add(testWindow), res.ResetAt)
	})

	s.Run("request over limit denied", func() {
		for range testLimit {
			res, err := s.store.Allow(s.ctx, "ip:over", testLimit, testWindow, s.now)
			s.Require().NoError(err)
			s.True(res.Allowed)
		}
		res, err := s.store.Allow(s.ctx, "ip:over", testLimit, testWindow, s.now.Add(time.Second))
		s.Require().NoError(err)
		s.False(res.Allowed)
		s.Zero(res.Remaining)
		s.Equal(s.now.Add(testWindow), res.ResetAt)
	})

	s.Run("keys are independent", func() {
		for range testLimit {
			_, err := s.store.Allow(s.ctx, "ip:a", testLimit, testWindow, s.now)
			s.Require().NoError(err)
		}
		res, err := s.store.Allow(s.ctx, "ip:b", testLimit, testWindow, s.now)
		s.Require().NoError(err)
		s.True(res.Allowed)
	})
}

func (s *InMemorySuite) TestWindowSlides() {
	for i := range testLimit {
		_, err := s.store.Allow(s.ctx, "ip:slide", testLimit, testWindow, s.now.Add(time.Duration(i)*time.Second))
		s.Require().NoError(err)
	}

	res, err := s.store.Allow(s.ctx, "ip:slide", testLimit, testWindow, s.now.Add(testWindow-time.Millisecond))
	s.Require().NoError(err)
	s.False(res.Allowed, "oldest admission still inside the window")

	res, err = s.store.Allow(s.ctx, "ip:slide", testLimit, testWindow, s.now.Add(testWindow))
	s.Require().NoError(err)
	s.True(res.Allowed, "oldest admission has left the window")
	s.Equal(0, res.Remaining)
}

func (s *InMemorySuite) TestSweep() {
	_, err := s.store.Allow(s.ctx, "ip:old", testLimit, testWindow, s.now)
	s.Require().NoError(err)
	_, err = s.store.Allow(s.ctx, "ip:fresh", testLimit, testWindow, s.now.Add(testWindow))
	s.Require().NoError(err)

	s.Equal(1, s.store.Sweep(s.now.Add(testWindow+time.Second), testWindow))
	s.Len(s.store.windows, 1)
	s.Contains(s.store.windows, "ip:fresh")
}

func (s *InMemorySuite) TestConcurrentAdmissionsRespectLimit() {
	var wg sync.WaitGroup
	results := make(chan bool, 50)
	for range 50 {
		wg.Go(func() {
			res, err := s.store.Allow(s.ctx, "ip:race", testLimit, testWindow, s.now)
			s.NoError(err)
			results <- res.Allowed
		})
	}
	wg.Wait()
	close(results)

	allowed := 0
	for ok := range results {
		if ok {
			allowed++
		}
	}
	s.Equal(testLimit, allowed)
}
