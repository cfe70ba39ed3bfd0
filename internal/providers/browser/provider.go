package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultLaunchTimeout bounds a single browser launch.
const DefaultLaunchTimeout = 30 * time.Second

// Launcher starts a new Session.
type Launcher func(ctx context.Context) (Session, error)

// Provider hands out browser sessions. With reuse enabled it keeps one
// live Session and relaunches it only after it has died; otherwise every
// Acquire launches a dedicated Session that Release closes.
type Provider struct {
	launch        Launcher
	reuse         bool
	launchTimeout time.Duration
	logger        *zap.Logger

	group singleflight.Group

	mu      sync.Mutex
	current Session
	closed  bool
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithLaunchTimeout overrides DefaultLaunchTimeout.
func WithLaunchTimeout(d time.Duration) ProviderOption {
	return func(p *Provider) {
		if d > 0 {
			p.launchTimeout = d
		}
	}
}

// NewProvider creates a provider that starts sessions with launch.
func NewProvider(launch Launcher, reuse bool, logger *zap.Logger, opts ...ProviderOption) *Provider {
	p := &Provider{
		launch:        launch,
		reuse:         reuse,
		launchTimeout: DefaultLaunchTimeout,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Acquire returns a live Session, launching one if needed. Concurrent cold
// starts share a single launch.
func (p *Provider) Acquire(ctx context.Context) (Session, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrProviderClosed
	}
	if !p.reuse {
		p.mu.Unlock()
		return p.launchOnce(ctx)
	}
	if p.current != nil {
		if p.current.Alive() {
			s := p.current
			p.mu.Unlock()
			return s, nil
		}
		stale := p.current
		p.current = nil
		p.mu.Unlock()
		p.logger.Warn("browser session disconnected, relaunching")
		p.closeQuietly(stale)
	} else {
		p.mu.Unlock()
	}

	ch := p.group.DoChan("session", func() (any, error) {
		// A flight that finished between our check and DoChan already
		// installed a session.
		p.mu.Lock()
		if p.current != nil && p.current.Alive() {
			s := p.current
			p.mu.Unlock()
			return s, nil
		}
		p.mu.Unlock()

		s, err := p.launchOnce(ctx)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			p.closeQuietly(s)
			return nil, ErrProviderClosed
		}
		p.current = s
		return s, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Session), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// launchOnce runs the launcher detached from ctx's cancellation so that a
// shared launch survives the caller that started it.
func (p *Provider) launchOnce(ctx context.Context) (Session, error) {
	launchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.launchTimeout)
	defer cancel()

	s, err := p.launch(launchCtx)
	if err != nil {
		p.logger.Error("browser launch failed", zap.Error(err))
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%w: launcher returned no session", ErrLaunch)
	}
	return s, nil
}

// Release hands a Session back after an attempt. Dedicated sessions are
// closed; the shared one is kept unless it has died.
func (p *Provider) Release(s Session) {
	if s == nil {
		return
	}
	if !p.reuse {
		p.closeQuietly(s)
		return
	}
	if s.Alive() {
		return
	}

	p.mu.Lock()
	if p.current == s {
		p.current = nil
	}
	p.mu.Unlock()
	p.closeQuietly(s)
}

// Close shuts the shared Session down. Later Acquire calls fail.
func (p *Provider) Close() error {
	p.mu.Lock()
	p.closed = true
	s := p.current
	p.current = nil
	p.mu.Unlock()

	if s == nil {
		return nil
	}
	return s.Close()
}

func (p *Provider) closeQuietly(s Session) {
	if err := s.Close(); err != nil {
		p.logger.Warn("failed to close browser session", zap.Error(err))
	}
}
