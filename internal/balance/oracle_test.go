package balance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	calls    atomic.Int32
	balances []string
	err      error
	block    bool
}

func (f *fakeProvider) CreateLinkToken(context.Context, string) (string, error) {
	return "link-token", nil
}

func (f *fakeProvider) ExchangePublicToken(context.Context, string) (*Link, error) {
	return &Link{AccessToken: "access"}, nil
}

func (f *fakeProvider) AvailableBalance(ctx context.Context, _ Credential) (decimal.Decimal, error) {
	n := int(f.calls.Add(1))
	if f.block {
		<-ctx.Done()
		return decimal.Zero, ctx.Err()
	}
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return decimal.RequireFromString(f.balances[(n-1)%len(f.balances)]), nil
}

func TestOracle_EveryCallReachesProvider(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{balances: []string{"250.00", "40.10"}}
	oracle := NewOracle(provider, OracleConfig{}, nil)
	cred := Credential{AccessToken: "access"}

	first, err := oracle.AvailableBalance(context.Background(), cred)
	require.NoError(t, err)
	second, err := oracle.AvailableBalance(context.Background(), cred)
	require.NoError(t, err)

	assert.True(t, first.Equal(decimal.RequireFromString("250.00")))
	assert.True(t, second.Equal(decimal.RequireFromString("40.10")))
	assert.Equal(t, int32(2), provider.calls.Load())
}

func TestOracle_TimeoutIsProviderUnavailable(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{block: true}
	oracle := NewOracle(provider, OracleConfig{Timeout: 20 * time.Millisecond}, nil)

	start := time.Now()
	_, err := oracle.AvailableBalance(context.Background(), Credential{AccessToken: "access"})

	require.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestOracle_RevokedCredentialDoesNotOpenBreaker(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{err: ErrCredentialRevoked}
	oracle := NewOracle(provider, OracleConfig{FailureThreshold: 2}, nil)

	for i := 0; i < 4; i++ {
		_, err := oracle.AvailableBalance(context.Background(), Credential{AccessToken: "stale"})
		require.ErrorIs(t, err, ErrCredentialRevoked)
	}
	assert.Equal(t, int32(4), provider.calls.Load())
}

func TestOracle_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{err: errors.New("connection reset")}
	oracle := NewOracle(provider, OracleConfig{FailureThreshold: 2, Cooldown: time.Minute}, nil)
	cred := Credential{AccessToken: "access"}

	for i := 0; i < 2; i++ {
		_, err := oracle.AvailableBalance(context.Background(), cred)
		require.ErrorIs(t, err, ErrProviderUnavailable)
	}

	_, err := oracle.AvailableBalance(context.Background(), cred)
	require.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, int32(2), provider.calls.Load(), "open breaker must not call the provider")
}
