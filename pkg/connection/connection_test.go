package connection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffConfigBase(t *testing.T) {
	def := DefaultBackoffConfig()
	want := []time.Duration{1, 2, 4, 8, 16, 32, 60, 60}
	for attempt, w := range want {
		assert.Equal(t, w*time.Second, def.Base(attempt), "attempt %d", attempt)
	}

	custom := BackoffConfig{Initial: 100 * time.Millisecond, Max: 500 * time.Millisecond, Multiplier: 3}
	assert.Equal(t, 300*time.Millisecond, custom.Base(1))
	assert.Equal(t, 500*time.Millisecond, custom.Base(2))
	assert.Equal(t, 500*time.Millisecond, custom.Base(1000), "large attempts stay capped")
}

func TestBackoffConfigDefaults(t *testing.T) {
	tests := []struct {
		name    string
		cfg     BackoffConfig
		attempt int
		want    time.Duration
	}{
		{"zero", BackoffConfig{}, 0, InitialBackoff},
		{"max below initial", BackoffConfig{Initial: 2 * time.Second, Max: time.Second}, 3, 2 * time.Second},
		{"multiplier one", BackoffConfig{Initial: time.Second, Multiplier: 1}, 1, 2 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Base(tt.attempt))
		})
	}
}

func TestBackoffNextWithoutJitter(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Initial: 10 * time.Millisecond, Max: 30 * time.Millisecond})

	assert.Equal(t, 10*time.Millisecond, b.Next())
	assert.Equal(t, 20*time.Millisecond, b.Next())
	assert.Equal(t, 30*time.Millisecond, b.Next())
	assert.Equal(t, 3, b.Attempts())

	b.Reset()
	assert.Equal(t, 0, b.Attempts())
	assert.Equal(t, 10*time.Millisecond, b.Next())
}

func TestBackoffJitterBounds(t *testing.T) {
	for i := 0; i < 50; i++ {
		d := NewBackoff().Next()
		assert.GreaterOrEqual(t, d, InitialBackoff)
		assert.LessOrEqual(t, d, time.Duration(float64(InitialBackoff)*(1+JitterFactor)))
	}
}

func TestBackoffWait(t *testing.T) {
	t.Run("elapses", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{Initial: 5 * time.Millisecond})
		start := time.Now()
		require.NoError(t, b.Wait(context.Background()))
		assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
		assert.Equal(t, 1, b.Attempts())
	})

	t.Run("cancelled", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{Initial: time.Hour})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, b.Wait(ctx), context.Canceled)
	})
}
