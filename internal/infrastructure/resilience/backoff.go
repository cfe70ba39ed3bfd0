package resilience

import (
	"context"
	"time"
)

// BackoffMode selects how the wait between attempts grows.
type BackoffMode string

const (
	// Linear waits base × attempt.
	Linear BackoffMode = "linear"
	// Exponential waits base × 2^(attempt-1).
	Exponential BackoffMode = "exponential"
)

// maxBackoffShift caps the exponent so the delay cannot overflow.
const maxBackoffShift = 16

// Backoff computes the wait before a retry.
type Backoff struct {
	Base time.Duration
	Mode BackoffMode
	// Max caps a single wait. Zero means uncapped.
	Max time.Duration
}

// Delay returns the wait after the given failed attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 || b.Base <= 0 {
		return 0
	}

	var d time.Duration
	switch b.Mode {
	case Exponential:
		shift := attempt - 1
		if shift > maxBackoffShift {
			shift = maxBackoffShift
		}
		d = b.Base << shift
	default:
		d = b.Base * time.Duration(attempt)
	}

	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

// Sleep blocks for d or until ctx is done, returning ctx.Err() in the
// latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
