package browser

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrLaunch reports that the browser engine could not be started.
	ErrLaunch = errors.New("browser launch failed")
	// ErrPageClosed is returned by operations on a page after Close.
	ErrPageClosed = errors.New("page closed")
	// ErrProviderClosed is returned by Acquire after the provider shut down.
	ErrProviderClosed = errors.New("session provider closed")
	// ErrNotFound reports that a selector matched nothing.
	ErrNotFound = errors.New("element not found")
)

// Session is a live browser able to open pages. Pages opened from one
// Session may be driven concurrently.
type Session interface {
	NewPage(ctx context.Context, opts PageOptions) (Page, error)
	Alive() bool
	Close() error
}

// Page is one tab used by a single fetch attempt. Close must be safe to
// call more than once.
type Page interface {
	// Navigate loads url and returns once the DOM has been parsed.
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until selector matches a visible node.
	WaitVisible(ctx context.Context, selector string) error
	// Select sets the value of a <select> and fires input and change.
	Select(ctx context.Context, selector, value string) error
	// Exists reports whether selector currently matches a node.
	Exists(ctx context.Context, selector string) (bool, error)
	// ClickAndWaitResponse clicks selector and returns the body of the
	// first response accepted by match. The matcher is armed before the
	// click is dispatched.
	ClickAndWaitResponse(ctx context.Context, selector string, match ResponseMatch) ([]byte, error)
	Close() error
}

// PageOptions configures a freshly opened page.
type PageOptions struct {
	Width     int
	Height    int
	UserAgent string
	Filter    ResourceFilter
}

// ResponseMatch selects the network response a click is expected to produce.
type ResponseMatch struct {
	URLContains string
	Method      string
	Status      int
}

// Matches reports whether a response with the given attributes is accepted.
// Empty fields match anything.
func (m ResponseMatch) Matches(url, method string, status int) bool {
	if m.URLContains != "" && !strings.Contains(url, m.URLContains) {
		return false
	}
	if m.Method != "" && !strings.EqualFold(m.Method, method) {
		return false
	}
	if m.Status != 0 && m.Status != status {
		return false
	}
	return true
}
