package settlement

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/mmynk/utilipay/internal/models"
)

// DefaultLegDelay is the simulated settlement latency.
const DefaultLegDelay = 3 * time.Second

// Leg performs the external settlement step and returns its reference.
type Leg interface {
	Settle(ctx context.Context, bill *models.Bill) (string, error)
}

// SimulatedLeg stands in for a ledger network: it waits Delay and returns a
// random 0x-prefixed reference. A negative Delay disables the wait.
type SimulatedLeg struct {
	Delay time.Duration
}

var _ Leg = (*SimulatedLeg)(nil)

func (l *SimulatedLeg) Settle(ctx context.Context, bill *models.Bill) (string, error) {
	delay := l.Delay
	if delay == 0 {
		delay = DefaultLegDelay
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return NewReference()
}

// NewReference returns "0x" followed by 64 lowercase hex characters.
func NewReference() (string, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("failed to generate settlement reference: %w", err)
	}
	return "0x" + hex.EncodeToString(buf[:]), nil
}
