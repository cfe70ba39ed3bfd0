package cronograma

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/cronograma/backend/internal/providers/browser"
)

// fakePage records the calls the protocol makes. Hooks left nil succeed.
type fakePage struct {
	mu    sync.Mutex
	calls []string

	navigate func(ctx context.Context) error
	wait     func(ctx context.Context, selector string) error
	exists   bool
	body     []byte
	click    func(ctx context.Context) ([]byte, error)
	closeErr error

	closes atomic.Int32
}

func newFakePage(body string) *fakePage {
	return &fakePage{exists: true, body: []byte(body)}
}

func (p *fakePage) record(call string) {
	p.mu.Lock()
	p.calls = append(p.calls, call)
	p.mu.Unlock()
}

func (p *fakePage) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.record("navigate " + url)
	if p.navigate != nil {
		return p.navigate(ctx)
	}
	return nil
}

func (p *fakePage) WaitVisible(ctx context.Context, selector string) error {
	p.record("wait " + selector)
	if p.wait != nil {
		return p.wait(ctx, selector)
	}
	return nil
}

func (p *fakePage) Select(_ context.Context, selector, value string) error {
	p.record("select " + selector + "=" + value)
	return nil
}

func (p *fakePage) Exists(_ context.Context, selector string) (bool, error) {
	p.record("exists " + selector)
	return p.exists, nil
}

func (p *fakePage) ClickAndWaitResponse(ctx context.Context, selector string, match browser.ResponseMatch) ([]byte, error) {
	p.record("click " + selector + " " + match.Method + " " + match.URLContains)
	if p.click != nil {
		return p.click(ctx)
	}
	return p.body, nil
}

func (p *fakePage) Close() error {
	p.closes.Add(1)
	return p.closeErr
}

// blockUntilDone simulates a step that never completes on its own.
func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

type fakeSession struct {
	mu    sync.Mutex
	pages []*fakePage
	next  func() *fakePage
}

func (s *fakeSession) NewPage(context.Context, browser.PageOptions) (browser.Page, error) {
	p := s.next()
	s.mu.Lock()
	s.pages = append(s.pages, p)
	s.mu.Unlock()
	return p, nil
}

func (s *fakeSession) Alive() bool  { return true }
func (s *fakeSession) Close() error { return nil }

func (s *fakeSession) Pages() []*fakePage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*fakePage(nil), s.pages...)
}

type fakeSessions struct {
	session    *fakeSession
	acquireErr error
	acquires   atomic.Int32
	releases   atomic.Int32
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{session: &fakeSession{next: func() *fakePage { return newFakePage("{}") }}}
}

func (s *fakeSessions) Acquire(context.Context) (browser.Session, error) {
	s.acquires.Add(1)
	if s.acquireErr != nil {
		return nil, s.acquireErr
	}
	return s.session, nil
}

func (s *fakeSessions) Release(browser.Session) {
	s.releases.Add(1)
}

// scriptedRunner returns one scripted result per attempt; the last entry
// repeats once the script runs out.
type scriptedRunner struct {
	mu      sync.Mutex
	results []runResult
	calls   int
}

type runResult struct {
	data any
	err  error
}

func (r *scriptedRunner) Run(context.Context, browser.Page, Query) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.calls
	if i >= len(r.results) {
		i = len(r.results) - 1
	}
	r.calls++
	return r.results[i].data, r.results[i].err
}

func (r *scriptedRunner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

var errFlaky = errors.New("flaky portal")
