package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/cronograma/backend/internal/infrastructure/monitoring"
)

// interceptTimeout bounds the CDP call that resumes or aborts a paused request.
const interceptTimeout = 2 * time.Second

// chromePage is a tab inside a chromeSession.
type chromePage struct {
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
	metrics *monitoring.Metrics
	filter  ResourceFilter

	closeOnce sync.Once
	closeErr  error
}

func openPage(ctx, browserCtx context.Context, opts PageOptions, logger *zap.Logger, metrics *monitoring.Metrics) (*chromePage, error) {
	tabCtx, cancel := chromedp.NewContext(browserCtx)

	p := &chromePage{
		ctx:     tabCtx,
		cancel:  cancel,
		logger:  logger,
		metrics: metrics,
		filter:  opts.Filter,
	}

	// Registered before the tab exists so no paused request is missed.
	if !p.filter.Empty() {
		chromedp.ListenTarget(tabCtx, func(ev any) {
			if e, ok := ev.(*fetch.EventRequestPaused); ok {
				go p.intercept(e)
			}
		})
	}

	setup := chromedp.Tasks{
		network.Enable(),
		cdppage.Enable(),
	}
	if !p.filter.Empty() {
		setup = append(setup, fetch.Enable())
	}
	if opts.Width > 0 && opts.Height > 0 {
		setup = append(setup, emulation.SetDeviceMetricsOverride(int64(opts.Width), int64(opts.Height), 1.0, false))
	}
	if opts.UserAgent != "" {
		setup = append(setup, emulation.SetUserAgentOverride(opts.UserAgent))
	}

	if err := runBounded(ctx, tabCtx, setup); err != nil {
		cancel()
		return nil, fmt.Errorf("open page: %w", err)
	}
	return p, nil
}

// intercept resumes or aborts one paused request according to the filter.
func (p *chromePage) intercept(ev *fetch.EventRequestPaused) {
	c := chromedp.FromContext(p.ctx)
	if c == nil || c.Target == nil {
		return
	}
	cmdCtx, cancel := context.WithTimeout(p.ctx, interceptTimeout)
	defer cancel()
	exec := cdp.WithExecutor(cmdCtx, c.Target)

	resourceType := string(ev.ResourceType)
	if p.filter.Blocks(resourceType) {
		p.metrics.RecordBlocked(resourceType)
		if err := fetch.FailRequest(ev.RequestID, network.ErrorReasonAborted).Do(exec); err != nil && p.ctx.Err() == nil {
			p.logger.Debug("failed to abort request", zap.String("url", ev.Request.URL), zap.Error(err))
		}
		return
	}

	if err := fetch.ContinueRequest(ev.RequestID).Do(exec); err != nil && p.ctx.Err() == nil {
		p.logger.Warn("failed to continue request, aborting instead",
			zap.String("url", ev.Request.URL),
			zap.Error(err),
		)
		_ = fetch.FailRequest(ev.RequestID, network.ErrorReasonAborted).Do(exec)
	}
}

// bind derives a context from the tab that also ends when ctx does, so
// chromedp actions carry the caller's deadline without tying the tab's
// lifetime to it.
func (p *chromePage) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	var (
		opCtx  context.Context
		cancel context.CancelFunc
	)
	if deadline, ok := ctx.Deadline(); ok {
		opCtx, cancel = context.WithDeadline(p.ctx, deadline)
	} else {
		opCtx, cancel = context.WithCancel(p.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

// run executes actions under the caller's deadline and reports the
// caller's context error when that is what ended them.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.ctx.Err() != nil {
		return ErrPageClosed
	}
	opCtx, cancel := p.bind(ctx)
	defer cancel()

	err := chromedp.Run(opCtx, actions...)
	return p.ctxErr(ctx, opCtx, err)
}

func (p *chromePage) ctxErr(ctx, opCtx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if p.ctx.Err() != nil {
		return ErrPageClosed
	}
	if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		return context.DeadlineExceeded
	}
	return err
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	if p.ctx.Err() != nil {
		return ErrPageClosed
	}
	opCtx, cancel := p.bind(ctx)
	defer cancel()

	parsed := make(chan struct{}, 1)
	chromedp.ListenTarget(opCtx, func(ev any) {
		if _, ok := ev.(*cdppage.EventDomContentEventFired); ok {
			select {
			case parsed <- struct{}{}:
			default:
			}
		}
	})

	err := chromedp.Run(opCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errorText, err := cdppage.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("navigate %s: %s", url, errorText)
		}
		return nil
	}))
	if err != nil {
		return p.ctxErr(ctx, opCtx, err)
	}

	select {
	case <-parsed:
		return nil
	case <-opCtx.Done():
		return p.ctxErr(ctx, opCtx, opCtx.Err())
	}
}

func (p *chromePage) WaitVisible(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// selectScript sets a <select> the way a user would: it marks matching
// options selected and fires the events frameworks listen for.
const selectScript = `(function(sel, value) {
	const el = document.querySelector(sel);
	if (!el) { return false; }
	for (const opt of Array.from(el.options || [])) {
		opt.selected = opt.value === value;
	}
	el.value = value;
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
	return true;
})(%s, %s)`

func (p *chromePage) Select(ctx context.Context, selector, value string) error {
	sel, err := sonic.MarshalString(selector)
	if err != nil {
		return err
	}
	val, err := sonic.MarshalString(value)
	if err != nil {
		return err
	}

	var found bool
	if err := p.run(ctx, chromedp.Evaluate(fmt.Sprintf(selectScript, sel, val), &found)); err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("select %s: %w", selector, ErrNotFound)
	}
	return nil
}

func (p *chromePage) Exists(ctx context.Context, selector string) (bool, error) {
	sel, err := sonic.MarshalString(selector)
	if err != nil {
		return false, err
	}

	var found bool
	err = p.run(ctx, chromedp.Evaluate(fmt.Sprintf("document.querySelector(%s) !== null", sel), &found))
	return found, err
}

func (p *chromePage) ClickAndWaitResponse(ctx context.Context, selector string, match ResponseMatch) ([]byte, error) {
	if p.ctx.Err() != nil {
		return nil, ErrPageClosed
	}
	opCtx, cancel := p.bind(ctx)
	defer cancel()

	capture := newResponseCapture(match)
	chromedp.ListenTarget(opCtx, capture.observe)

	if err := chromedp.Run(opCtx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return nil, p.ctxErr(ctx, opCtx, err)
	}

	var requestID network.RequestID
	select {
	case res := <-capture.done:
		if res.err != nil {
			return nil, res.err
		}
		requestID = res.id
	case <-opCtx.Done():
		return nil, p.ctxErr(ctx, opCtx, opCtx.Err())
	}

	var body []byte
	err := chromedp.Run(opCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		body, err = network.GetResponseBody(requestID).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, p.ctxErr(ctx, opCtx, fmt.Errorf("read response body: %w", err))
	}
	return body, nil
}

// Close closes the tab. Only the first call does any work.
func (p *chromePage) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = chromedp.Cancel(p.ctx)
		p.cancel()
	})
	return p.closeErr
}

type captureResult struct {
	id  network.RequestID
	err error
}

// responseCapture follows network events for the first response accepted
// by match and resolves once its body has finished loading. Handlers run
// on the CDP event loop and never block.
type responseCapture struct {
	match ResponseMatch
	done  chan captureResult

	mu       sync.Mutex
	methods  map[network.RequestID]string
	matched  network.RequestID
	resolved bool
}

func newResponseCapture(match ResponseMatch) *responseCapture {
	return &responseCapture{
		match:   match,
		done:    make(chan captureResult, 1),
		methods: make(map[network.RequestID]string),
	}
}

func (c *responseCapture) observe(ev any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resolved {
		return
	}

	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		if e.Request != nil {
			c.methods[e.RequestID] = e.Request.Method
		}
	case *network.EventResponseReceived:
		if c.matched != "" || e.Response == nil {
			return
		}
		if c.match.Matches(e.Response.URL, c.methods[e.RequestID], int(e.Response.Status)) {
			c.matched = e.RequestID
		}
	case *network.EventLoadingFinished:
		if c.matched != "" && e.RequestID == c.matched {
			c.resolve(captureResult{id: e.RequestID})
		}
	case *network.EventLoadingFailed:
		if c.matched != "" && e.RequestID == c.matched {
			c.resolve(captureResult{err: fmt.Errorf("matched response failed to load: %s", e.ErrorText)})
		}
	}
}

func (c *responseCapture) resolve(res captureResult) {
	c.resolved = true
	c.done <- res
}
