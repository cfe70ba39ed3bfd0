package cronograma

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/cronograma/backend/internal/infrastructure/cache"
	"github.com/GriffinCanCode/cronograma/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/cronograma/backend/internal/infrastructure/resilience"
)

type countingSource struct {
	calls atomic.Int32
	data  any
	err   error
}

func (s *countingSource) Fetch(context.Context, Query) (any, error) {
	s.calls.Add(1)
	return s.data, s.err
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestServiceCachesSuccessfulFetch(t *testing.T) {
	source := &countingSource{data: map[string]any{"dias": []any{"lunes"}}}
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	svc := NewService(source, cache.NewTTL[any](5*time.Minute), zap.NewNop(), WithMetrics(metrics))
	q := Query{Programa: "82", Sede: "10", Recurso: "2"}

	first, cached, err := svc.Get(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, cached)

	second, cached, err := svc.Get(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, cached)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), source.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("miss")))
}

func TestServiceRefetchesAfterTTL(t *testing.T) {
	clk := &testClock{now: time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)}
	source := &countingSource{data: "D1"}
	svc := NewService(source, cache.NewTTL(5*time.Minute, cache.WithClock[any](clk.Now)), zap.NewNop())

	_, _, err := svc.Get(context.Background(), testDefaults)
	require.NoError(t, err)

	clk.Advance(5*time.Minute + time.Second)
	_, cached, err := svc.Get(context.Background(), testDefaults)
	require.NoError(t, err)

	assert.False(t, cached)
	assert.Equal(t, int32(2), source.calls.Load())
}

func TestServiceDoesNotCacheFailures(t *testing.T) {
	source := &countingSource{err: ErrResponseTimeout}
	results := cache.NewTTL[any](time.Minute)
	svc := NewService(source, results, zap.NewNop())

	_, _, err := svc.Get(context.Background(), testDefaults)
	assert.ErrorIs(t, err, ErrResponseTimeout)

	_, _, err = svc.Get(context.Background(), testDefaults)
	assert.ErrorIs(t, err, ErrResponseTimeout)

	assert.Equal(t, 0, results.Len())
	assert.Equal(t, int32(2), source.calls.Load())
}

func TestServiceKeysAreDistinct(t *testing.T) {
	source := &countingSource{data: "x"}
	svc := NewService(source, cache.NewTTL[any](time.Minute), zap.NewNop())

	_, _, _ = svc.Get(context.Background(), Query{Programa: "1", Sede: "2", Recurso: "3"})
	_, cached, _ := svc.Get(context.Background(), Query{Programa: "1", Sede: "2", Recurso: "4"})

	assert.False(t, cached)
	assert.Equal(t, int32(2), source.calls.Load())
}

func TestServiceBreakerOpensAfterFailures(t *testing.T) {
	source := &countingSource{err: ErrNavigationTimeout}
	breaker := NewPortalBreaker(2, time.Minute, zap.NewNop(), nil)
	svc := NewService(source, cache.NewTTL[any](time.Minute), zap.NewNop(), WithBreaker(breaker))

	for i := 0; i < 2; i++ {
		_, _, err := svc.Get(context.Background(), testDefaults)
		assert.ErrorIs(t, err, ErrNavigationTimeout)
	}

	_, _, err := svc.Get(context.Background(), testDefaults)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), source.calls.Load())
}

func TestServiceBreakerIgnoresCancellation(t *testing.T) {
	source := &countingSource{err: context.Canceled}
	breaker := NewPortalBreaker(1, time.Minute, zap.NewNop(), nil)
	svc := NewService(source, cache.NewTTL[any](time.Minute), zap.NewNop(), WithBreaker(breaker))

	_, _, _ = svc.Get(context.Background(), testDefaults)
	_, _, err := svc.Get(context.Background(), testDefaults)

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, resilience.StateClosed, breaker.State())
}

func TestServiceBreakerIgnoresCancelDuringBackoff(t *testing.T) {
	sessions := newFakeSessions()
	runner := &scriptedRunner{results: []runResult{{err: errFlaky}}}
	fetcher := NewFetcher(sessions, runner, linearOpts(3), zap.NewNop(), nil, nil)
	breaker := NewPortalBreaker(1, time.Minute, zap.NewNop(), nil)
	svc := NewService(fetcher, cache.NewTTL[any](time.Minute), zap.NewNop(), WithBreaker(breaker))

	ctx, cancel := context.WithCancel(context.Background())
	fetcher.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	_, _, err := svc.Get(ctx, testDefaults)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, resilience.StateClosed, breaker.State())
	assert.Equal(t, 1, runner.Calls())
}

// End to end through the real protocol: a garbled body on the first
// attempt, valid JSON on the second.
func TestServiceWithProtocolRecoversFromInvalidPayload(t *testing.T) {
	var n atomic.Int32
	sessions := newFakeSessions()
	sessions.session.next = func() *fakePage {
		if n.Add(1) == 1 {
			return newFakePage("<html>busy</html>")
		}
		return newFakePage(`{"cronograma":[]}`)
	}

	fetcher := NewFetcher(sessions, testProtocol(), linearOpts(1), zap.NewNop(), nil, nil)
	fetcher.sleep = func(context.Context, time.Duration) error { return nil }
	svc := NewService(fetcher, cache.NewTTL[any](time.Minute), zap.NewNop())

	data, cached, err := svc.Get(context.Background(), testDefaults)

	require.NoError(t, err)
	assert.False(t, cached)
	require.IsType(t, map[string]any{}, data)
	assert.Contains(t, data, "cronograma")
	assertEachPageClosedOnce(t, sessions, 2)
}
