package cronograma

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/cronograma/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/cronograma/backend/internal/providers/browser"
)

// Form controls on the portal search page.
const (
	SelectorPrograma = `[name="Programa"]`
	SelectorSede     = `[name="Sede"]`
	SelectorRecurso  = `[name="recurso"]`

	DefaultSearchSelector = "#search"
	DefaultResponseMarker = "buscarCronograma"
)

// Default step budgets.
const (
	DefaultNavTimeout      = 15 * time.Second
	DefaultSelectTimeout   = 10 * time.Second
	DefaultResponseTimeout = 15 * time.Second
)

// payloadAPI keeps numbers as json.Number so ids and codes survive the
// round trip untouched.
var payloadAPI = sonic.Config{UseNumber: true}.Froze()

// Protocol is the fixed interaction with the portal: load the search page,
// fill the three selects, press search and capture the JSON it posts back.
type Protocol struct {
	PortalURL       string
	SearchSelector  string
	ResponseMarker  string
	NavTimeout      time.Duration
	SelectTimeout   time.Duration
	ResponseTimeout time.Duration
}

// NewProtocol builds the portal protocol from configuration.
func NewProtocol(portal config.PortalConfig, scrape config.ScrapeConfig) Protocol {
	return Protocol{
		PortalURL:       portal.URL,
		SearchSelector:  portal.SearchSelector,
		ResponseMarker:  portal.ResponseMarker,
		NavTimeout:      scrape.NavTimeout,
		SelectTimeout:   scrape.SelectTimeout,
		ResponseTimeout: scrape.ResponseTimeout,
	}.withDefaults()
}

func (p Protocol) withDefaults() Protocol {
	if p.SearchSelector == "" {
		p.SearchSelector = DefaultSearchSelector
	}
	if p.ResponseMarker == "" {
		p.ResponseMarker = DefaultResponseMarker
	}
	if p.NavTimeout <= 0 {
		p.NavTimeout = DefaultNavTimeout
	}
	if p.SelectTimeout <= 0 {
		p.SelectTimeout = DefaultSelectTimeout
	}
	if p.ResponseTimeout <= 0 {
		p.ResponseTimeout = DefaultResponseTimeout
	}
	return p
}

type formField struct {
	selector string
	value    string
}

func (p Protocol) fields(q Query) []formField {
	return []formField{
		{SelectorPrograma, q.Programa},
		{SelectorSede, q.Sede},
		{SelectorRecurso, q.Recurso},
	}
}

// Match returns the response the search click must produce.
func (p Protocol) Match() browser.ResponseMatch {
	return browser.ResponseMatch{
		URLContains: p.ResponseMarker,
		Method:      http.MethodPost,
		Status:      http.StatusOK,
	}
}

// Run drives page through the search and returns the decoded payload. The
// caller owns page and must close it.
func (p Protocol) Run(ctx context.Context, page browser.Page, q Query) (any, error) {
	p = p.withDefaults()

	err := step(ctx, p.NavTimeout, ErrNavigationTimeout, "load "+p.PortalURL, func(ctx context.Context) error {
		return page.Navigate(ctx, p.PortalURL)
	})
	if err != nil {
		return nil, err
	}

	fields := p.fields(q)
	for _, f := range fields {
		err := step(ctx, p.SelectTimeout, ErrElementTimeout, "wait for "+f.selector, func(ctx context.Context) error {
			return page.WaitVisible(ctx, f.selector)
		})
		if err != nil {
			return nil, err
		}
	}

	for _, f := range fields {
		err := step(ctx, p.SelectTimeout, ErrElementTimeout, "select "+f.selector, func(ctx context.Context) error {
			return page.Select(ctx, f.selector, f.value)
		})
		if err != nil {
			return nil, err
		}
	}

	var found bool
	err = step(ctx, p.SelectTimeout, ErrElementTimeout, "locate "+p.SearchSelector, func(ctx context.Context) error {
		var err error
		found, err = page.Exists(ctx, p.SearchSelector)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrMissingControl, p.SearchSelector)
	}

	var body []byte
	err = step(ctx, p.ResponseTimeout, ErrResponseTimeout, p.ResponseMarker, func(ctx context.Context) error {
		var err error
		body, err = page.ClickAndWaitResponse(ctx, p.SearchSelector, p.Match())
		return err
	})
	if err != nil {
		return nil, err
	}

	return decodePayload(body)
}

// decodePayload parses the captured body. Any well-formed JSON value is
// accepted; the schema belongs to the portal.
func decodePayload(body []byte) (any, error) {
	var data any
	if err := payloadAPI.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return data, nil
}

// step runs fn under its own timeout and turns an elapsed budget into
// timeoutErr. Cancellation of the parent is returned as is.
func step(ctx context.Context, timeout time.Duration, timeoutErr error, what string, fn func(context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(stepCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || stepCtx.Err() != nil {
		return fmt.Errorf("%w: %s after %s", timeoutErr, what, timeout)
	}
	return fmt.Errorf("%s: %w", what, err)
}
