package cronograma

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/cronograma/backend/internal/infrastructure/cache"
	"github.com/GriffinCanCode/cronograma/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/cronograma/backend/internal/infrastructure/resilience"
)

// Source produces timetable data for a query.
type Source interface {
	Fetch(ctx context.Context, q Query) (any, error)
}

// Service answers queries from the result cache, falling back to the
// source on a miss.
type Service struct {
	source  Source
	cache   *cache.TTL[any]
	breaker *resilience.Breaker
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithBreaker guards source calls with b.
func WithBreaker(b *resilience.Breaker) ServiceOption {
	return func(s *Service) { s.breaker = b }
}

// WithMetrics records cache lookups on m.
func WithMetrics(m *monitoring.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service backed by source and results.
func NewService(source Source, results *cache.TTL[any], logger *zap.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		source: source,
		cache:  results,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewPortalBreaker builds the breaker that stops fetching after failures
// consecutive failed fetches and probes again after cooldown.
func NewPortalBreaker(failures uint32, cooldown time.Duration, logger *zap.Logger, metrics *monitoring.Metrics) *resilience.Breaker {
	return resilience.New("portal", resilience.Settings{
		Timeout:     cooldown,
		ReadyToTrip: resilience.TripAfter(failures),
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.SetBreakerState(int(to))
		},
	})
}

// Get returns data for q and whether it came from the cache. Concurrent
// misses for one key may each fetch; the last write wins.
func (s *Service) Get(ctx context.Context, q Query) (any, bool, error) {
	key := q.Key()

	if data, ok := s.cache.Get(key); ok {
		s.metrics.RecordCacheLookup(true)
		s.logger.Debug("cache hit", zap.String("query_key", key))
		return data, true, nil
	}
	s.metrics.RecordCacheLookup(false)

	data, err := s.fetch(ctx, q)
	if err != nil {
		return nil, false, err
	}

	s.cache.Put(key, data)
	s.metrics.SetCacheEntries(s.cache.Len())
	return data, false, nil
}

func (s *Service) fetch(ctx context.Context, q Query) (any, error) {
	if s.breaker == nil {
		return s.source.Fetch(ctx, q)
	}
	return resilience.Call(s.breaker, func() (any, error) {
		return s.source.Fetch(ctx, q)
	})
}
