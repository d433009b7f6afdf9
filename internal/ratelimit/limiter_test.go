package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// LimiterTestSuite exercises the limiter over the in-memory counter.
type LimiterTestSuite struct {
	suite.Suite
	clock   *fakeClock
	counter *MemoryCounter
	limiter *Limiter
	ctx     context.Context
}

func (suite *LimiterTestSuite) SetupTest() {
	// 10s into a minute, so the window has 50s left
	suite.clock = &fakeClock{t: time.Date(2026, 1, 1, 10, 0, 10, 0, time.UTC)}
	suite.counter = NewMemoryCounter(suite.clock.Now)
	suite.limiter = New(suite.counter, 10, time.Minute, WithClock(suite.clock.Now))
	suite.ctx = context.Background()
}

func (suite *LimiterTestSuite) TestEleventhRequestDenied() {
	for i := 1; i <= 10; i++ {
		d, err := suite.limiter.Allow(suite.ctx, "10.0.0.1", "login")
		require.NoError(suite.T(), err)
		assert.True(suite.T(), d.Allowed, "request %d should be allowed", i)
		assert.Equal(suite.T(), 10-i, d.Remaining)
	}

	d, err := suite.limiter.Allow(suite.ctx, "10.0.0.1", "login")
	require.NoError(suite.T(), err)
	assert.False(suite.T(), d.Allowed, "11th request must be denied")
	assert.Equal(suite.T(), 0, d.Remaining)
	assert.Equal(suite.T(), 50*time.Second, d.RetryAfter)
}

func (suite *LimiterTestSuite) TestAllowedAgainAfterWindow() {
	for range 11 {
		_, err := suite.limiter.Allow(suite.ctx, "10.0.0.1", "login")
		require.NoError(suite.T(), err)
	}

	suite.clock.Advance(50 * time.Second)

	d, err := suite.limiter.Allow(suite.ctx, "10.0.0.1", "login")
	require.NoError(suite.T(), err)
	assert.True(suite.T(), d.Allowed)
	assert.Equal(suite.T(), 9, d.Remaining)
}

func (suite *LimiterTestSuite) TestEndpointsAreIndependent() {
	for range 10 {
		_, err := suite.limiter.Allow(suite.ctx, "10.0.0.1", "login")
		require.NoError(suite.T(), err)
	}

	d, err := suite.limiter.Allow(suite.ctx, "10.0.0.1", "register")
	require.NoError(suite.T(), err)
	assert.True(suite.T(), d.Allowed)
}

func (suite *LimiterTestSuite) TestClientKeysAreIndependent() {
	for range 11 {
		_, err := suite.limiter.Allow(suite.ctx, "10.0.0.1", "login")
		require.NoError(suite.T(), err)
	}

	d, err := suite.limiter.Allow(suite.ctx, "10.0.0.2", "login")
	require.NoError(suite.T(), err)
	assert.True(suite.T(), d.Allowed)
}

func (suite *LimiterTestSuite) TestConcurrentRequestsCannotExceedQuota() {
	var allowed atomic.Int32
	var wg sync.WaitGroup

	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := suite.limiter.Allow(suite.ctx, "10.0.0.1", "expenses.create")
			if err == nil && d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(suite.T(), int32(10), allowed.Load())
}

func (suite *LimiterTestSuite) TestExpiredCountersAreSwept() {
	for _, key := range []string{"a", "b", "c"} {
		_, err := suite.limiter.Allow(suite.ctx, key, "login")
		require.NoError(suite.T(), err)
	}
	assert.Equal(suite.T(), 3, suite.counter.Len())

	suite.clock.Advance(2 * time.Minute)
	_, err := suite.limiter.Allow(suite.ctx, "d", "login")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, suite.counter.Len())
}

func TestLimiterSuite(t *testing.T) {
	suite.Run(t, new(LimiterTestSuite))
}

type failingCounter struct{}

func (failingCounter) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestLimiter_CounterError(t *testing.T) {
	l := New(failingCounter{}, 10, time.Minute)

	_, err := l.Allow(context.Background(), "k", "login")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 10, l.Limit())
	assert.Equal(t, time.Minute, l.Window())
}

func TestCounterKey(t *testing.T) {
	start := time.Unix(1700000040, 0).UTC()
	assert.Equal(t, "ratelimit:login:1.2.3.4:1700000040", counterKey("1.2.3.4", "login", start))
}
