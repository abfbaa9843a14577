package balance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/mmynk/utilipay/internal/metrics"
)

// OracleConfig bounds calls to the provider.
type OracleConfig struct {
	// Timeout caps a single balance check. Default 5s.
	Timeout time.Duration
	// FailureThreshold is the number of consecutive failures that opens the breaker. Default 5.
	FailureThreshold uint32
	// Cooldown is how long the breaker stays open before probing again. Default 30s.
	Cooldown time.Duration
}

// Oracle answers "how much can this linked account spend right now".
// Every call goes to the provider; results are never cached.
type Oracle struct {
	provider Provider
	timeout  time.Duration
	breaker  *gobreaker.CircuitBreaker
	logger   *slog.Logger
}

// NewOracle wraps provider with a per-call timeout and a circuit breaker.
func NewOracle(provider Provider, cfg OracleConfig, logger *slog.Logger) *Oracle {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := &Oracle{provider: provider, timeout: cfg.Timeout, logger: logger}
	o.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "balance-provider",
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// A revoked credential is the user's problem, not the provider's.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrCredentialRevoked) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return o
}

// AvailableBalance fetches the current available balance. Errors are
// ErrCredentialRevoked or ErrProviderUnavailable.
func (o *Oracle) AvailableBalance(ctx context.Context, cred Credential) (decimal.Decimal, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	out, err := o.breaker.Execute(func() (interface{}, error) {
		return o.provider.AvailableBalance(ctx, cred)
	})
	if err != nil {
		err = classify(err)
		result := "unavailable"
		if errors.Is(err, ErrCredentialRevoked) {
			result = "revoked"
		}
		metrics.ObserveBalanceCheck(result, time.Since(start))
		o.logger.Warn("Balance check failed", "result", result, "error", err, "duration_ms", time.Since(start).Milliseconds())
		return decimal.Zero, err
	}

	metrics.ObserveBalanceCheck("ok", time.Since(start))
	return out.(decimal.Decimal), nil
}

// classify folds any provider or breaker error into the two provider error kinds.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrCredentialRevoked), errors.Is(err, ErrProviderUnavailable):
		return err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: circuit breaker: %v", ErrProviderUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: timed out", ErrProviderUnavailable)
	}
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}
