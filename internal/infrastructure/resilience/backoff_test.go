package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		name    string
		backoff Backoff
		attempt int
		want    time.Duration
	}{
		{"linear first", Backoff{Base: time.Second, Mode: Linear}, 1, time.Second},
		{"linear third", Backoff{Base: time.Second, Mode: Linear}, 3, 3 * time.Second},
		{"empty mode is linear", Backoff{Base: 100 * time.Millisecond}, 2, 200 * time.Millisecond},
		{"exponential first", Backoff{Base: time.Second, Mode: Exponential}, 1, time.Second},
		{"exponential fourth", Backoff{Base: time.Second, Mode: Exponential}, 4, 8 * time.Second},
		{"capped", Backoff{Base: time.Second, Mode: Exponential, Max: 5 * time.Second}, 6, 5 * time.Second},
		{"zero attempt", Backoff{Base: time.Second}, 0, 0},
		{"zero base", Backoff{Mode: Linear}, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.backoff.Delay(tt.attempt))
		})
	}
}

func TestSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Minute)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSleepElapses(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
	assert.NoError(t, Sleep(context.Background(), 0))
}
