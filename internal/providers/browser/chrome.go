package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/go-rod/rod/lib/launcher"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/cronograma/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/cronograma/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/cronograma/backend/internal/shared/id"
)

// flag is one Chrome command-line switch.
type flag struct {
	name  string
	value any
}

// sandboxFlags are required to run Chrome as root inside a container.
var sandboxFlags = []flag{
	{"no-sandbox", true},
	{"disable-setuid-sandbox", true},
}

// packagedFlags trim the engine down for small hosted instances.
var packagedFlags = []flag{
	{"disable-dev-shm-usage", true},
	{"disable-gpu", true},
	{"no-first-run", true},
	{"no-zygote", true},
	{"single-process", true},
	{"disable-extensions", true},
	{"disable-background-timer-throttling", true},
	{"disable-backgrounding-occluded-windows", true},
	{"disable-renderer-backgrounding", true},
	{"ignore-certificate-errors", true},
}

// launchFlags returns the switches for a launch profile.
func launchFlags(cfg config.BrowserConfig) []flag {
	flags := append([]flag(nil), sandboxFlags...)
	if cfg.Profile == config.ProfilePackaged {
		flags = append(flags, packagedFlags...)
	}
	if !cfg.Headless {
		flags = append(flags, flag{"headless", false})
	}
	return flags
}

// resolveExecPath picks the browser binary. An explicit path always wins.
// The packaged profile fetches a pinned Chromium build into the local
// cache when none is present; the local profile looks for an installed
// Chrome and otherwise leaves the choice to chromedp.
func resolveExecPath(cfg config.BrowserConfig) (string, error) {
	if cfg.ExecPath != "" {
		return cfg.ExecPath, nil
	}
	if cfg.Profile == config.ProfilePackaged {
		path, err := launcher.NewBrowser().Get()
		if err != nil {
			return "", fmt.Errorf("resolve packaged chromium: %w", err)
		}
		return path, nil
	}
	if path, ok := launcher.LookPath(); ok {
		return path, nil
	}
	return "", nil
}

// chromeSession is a Chrome process driven over CDP.
type chromeSession struct {
	id      id.SessionID
	logger  *zap.Logger
	metrics *monitoring.Metrics

	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// NewChromeLauncher returns a Launcher that starts Chrome with the
// profile's flags.
func NewChromeLauncher(cfg config.BrowserConfig, logger *zap.Logger, metrics *monitoring.Metrics) Launcher {
	return func(ctx context.Context) (Session, error) {
		s, err := launchChrome(ctx, cfg, logger, metrics)
		metrics.RecordLaunch(err)
		return s, err
	}
}

func launchChrome(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger, metrics *monitoring.Metrics) (*chromeSession, error) {
	execPath, err := resolveExecPath(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}

	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	for _, f := range launchFlags(cfg) {
		opts = append(opts, chromedp.Flag(f.name, f.value))
	}
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}

	// The browser outlives the request that triggered the launch.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	s := &chromeSession{
		id:          id.NewSessionID(),
		logger:      logger,
		metrics:     metrics,
		allocCancel: allocCancel,
		ctx:         browserCtx,
		cancel:      cancel,
	}

	if err := runBounded(ctx, browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}

	logger.Info("browser session launched",
		zap.String("session_id", s.id.String()),
		zap.String("profile", cfg.Profile),
		zap.String("exec_path", execPath),
	)
	return s, nil
}

// runBounded runs actions on a chromedp context that must not inherit
// ctx's deadline, returning early if ctx ends first. The first Run on a
// chromedp context binds the browser or tab to that context, so it has to
// be the long-lived one.
func runBounded(ctx, chromeCtx context.Context, actions ...chromedp.Action) error {
	errc := make(chan error, 1)
	go func() {
		errc <- chromedp.Run(chromeCtx, actions...)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *chromeSession) Alive() bool {
	return s.ctx.Err() == nil
}

func (s *chromeSession) NewPage(ctx context.Context, opts PageOptions) (Page, error) {
	if !s.Alive() {
		return nil, fmt.Errorf("session %s: %w", s.id, context.Canceled)
	}
	return openPage(ctx, s.ctx, opts, s.logger, s.metrics)
}

// Close shuts the browser down. Safe to call more than once.
func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = chromedp.Cancel(s.ctx)
		s.cancel()
		s.allocCancel()
		s.metrics.RecordSessionClosed()
		s.logger.Info("browser session closed", zap.String("session_id", s.id.String()))
	})
	return s.closeErr
}
