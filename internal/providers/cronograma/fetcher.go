package cronograma

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/cronograma/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/cronograma/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/cronograma/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/cronograma/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/cronograma/backend/internal/providers/browser"
	"github.com/GriffinCanCode/cronograma/backend/internal/shared/id"
)

// SessionSource hands out browser sessions for fetch attempts.
type SessionSource interface {
	Acquire(ctx context.Context) (browser.Session, error)
	Release(s browser.Session)
}

// Runner executes the portal interaction on an open page.
type Runner interface {
	Run(ctx context.Context, page browser.Page, q Query) (any, error)
}

// FetchOptions controls the retry loop.
type FetchOptions struct {
	Page                browser.PageOptions
	MaxRetries          int
	Backoff             resilience.Backoff
	RetryMissingControl bool
}

// FetchOptionsFromConfig maps configuration onto FetchOptions.
func FetchOptionsFromConfig(b config.BrowserConfig, s config.ScrapeConfig) FetchOptions {
	return FetchOptions{
		Page: browser.PageOptions{
			Width:     b.ViewportWidth,
			Height:    b.ViewportHeight,
			UserAgent: b.UserAgent,
			Filter:    browser.AssetFilter(),
		},
		MaxRetries: s.MaxRetries,
		Backoff: resilience.Backoff{
			Base: s.BackoffBase,
			Mode: resilience.BackoffMode(s.BackoffMode),
		},
		RetryMissingControl: s.RetryMissingControl,
	}
}

// Fetcher runs the protocol with bounded retries. Each attempt gets its
// own page, which is closed before the attempt returns.
type Fetcher struct {
	sessions SessionSource
	runner   Runner
	opts     FetchOptions
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	tracer   *tracing.Tracer
	sleep    func(context.Context, time.Duration) error
}

// NewFetcher creates a Fetcher. metrics and tracer may be nil.
func NewFetcher(sessions SessionSource, runner Runner, opts FetchOptions, logger *zap.Logger, metrics *monitoring.Metrics, tracer *tracing.Tracer) *Fetcher {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Fetcher{
		sessions: sessions,
		runner:   runner,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
		tracer:   tracer,
		sleep:    resilience.Sleep,
	}
}

// Fetch makes up to MaxRetries+1 attempts and returns the first success,
// or the last error once attempts run out.
func (f *Fetcher) Fetch(ctx context.Context, q Query) (any, error) {
	fetchID := id.NewFetchID()
	logger := f.logger.With(
		zap.String("fetch_id", fetchID.String()),
		zap.String("query_key", q.Key()),
	)

	span, ctx := f.tracer.StartSpan(ctx, "cronograma.fetch")
	span.SetTag("fetch_id", fetchID.String())
	span.SetTag("query_key", q.Key())

	var lastErr error
	for attempt := 1; attempt <= f.opts.MaxRetries+1; attempt++ {
		if attempt > 1 {
			delay := f.opts.Backoff.Delay(attempt - 1)
			logger.Info("retrying fetch",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(lastErr),
			)
			if err := f.sleep(ctx, delay); err != nil {
				lastErr = fmt.Errorf("%w; last attempt: %w", err, lastErr)
				break
			}
		}

		data, err := f.attempt(ctx, logger, q, attempt)
		if err == nil {
			f.metrics.RecordFetch("success")
			f.tracer.End(span, nil)
			return data, nil
		}
		lastErr = err

		if !f.shouldRetry(ctx, err) {
			break
		}
	}

	f.metrics.RecordFetch("error")
	f.tracer.End(span, lastErr)
	logger.Error("fetch failed", zap.Error(lastErr))
	return nil, lastErr
}

func (f *Fetcher) shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil || !IsRetryable(err) {
		return false
	}
	if errors.Is(err, ErrMissingControl) && !f.opts.RetryMissingControl {
		return false
	}
	return true
}

func (f *Fetcher) attempt(ctx context.Context, logger *zap.Logger, q Query, n int) (any, error) {
	span, ctx := f.tracer.StartSpan(ctx, "cronograma.attempt")
	span.SetTag("attempt", strconv.Itoa(n))
	timer := monitoring.NewTimer(f.metrics)

	data, err := f.runAttempt(ctx, logger, q)

	outcome := Classify(err)
	elapsed := timer.Stop(outcome)
	f.tracer.End(span, err)

	fields := []zap.Field{
		zap.Int("attempt", n),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		logger.Warn("fetch attempt failed", append(fields, zap.Error(err))...)
	} else {
		logger.Info("fetch attempt succeeded", fields...)
	}
	return data, err
}

func (f *Fetcher) runAttempt(ctx context.Context, logger *zap.Logger, q Query) (any, error) {
	session, err := f.sessions.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionLaunch, err)
	}
	defer f.sessions.Release(session)

	page, err := session.NewPage(ctx, f.opts.Page)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			logger.Warn("failed to close page", zap.Error(err))
		}
	}()

	return f.runner.Run(ctx, page, q)
}
