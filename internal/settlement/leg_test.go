package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/utilipay/internal/models"
)

func TestNewReference(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		ref, err := NewReference()
		require.NoError(t, err)
		assert.Regexp(t, refPattern, ref)
		assert.False(t, seen[ref], "duplicate reference %s", ref)
		seen[ref] = true
	}
}

func TestSimulatedLeg(t *testing.T) {
	bill := &models.Bill{ID: "bill-1"}

	t.Run("waits for delay", func(t *testing.T) {
		leg := &SimulatedLeg{Delay: 30 * time.Millisecond}
		start := time.Now()
		ref, err := leg.Settle(context.Background(), bill)
		require.NoError(t, err)
		assert.Regexp(t, refPattern, ref)
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		leg := &SimulatedLeg{Delay: time.Minute}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := leg.Settle(ctx, bill)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("does not block other goroutines", func(t *testing.T) {
		leg := &SimulatedLeg{Delay: 100 * time.Millisecond}
		start := time.Now()
		done := make(chan struct{}, 5)
		for i := 0; i < 5; i++ {
			go func() {
				_, _ = leg.Settle(context.Background(), bill)
				done <- struct{}{}
			}()
		}
		for i := 0; i < 5; i++ {
			<-done
		}
		assert.Less(t, time.Since(start), 400*time.Millisecond)
	})
}
