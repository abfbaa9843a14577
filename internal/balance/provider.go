// Package balance wraps the external linked-account data provider: link
// sessions, credential exchange and real-time available balance.
package balance

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrProviderUnavailable covers network failures, provider outages,
	// timeouts and an open circuit breaker. Retry-safe.
	ErrProviderUnavailable = errors.New("balance provider unavailable")

	// ErrCredentialRevoked means the linked-bank credential no longer works
	// and the user has to re-link.
	ErrCredentialRevoked = errors.New("linked bank credential revoked")
)

// Credential identifies the linked bank account to query.
type Credential struct {
	AccessToken string
	// AccountID selects one account under the connection. Empty means the
	// first account the provider returns.
	AccountID string
}

// Link is the result of exchanging a public link token.
type Link struct {
	AccessToken     string
	ItemID          string
	AccountID       string
	AccountName     string
	Mask            string
	InstitutionName string
}

// Provider is the external linked-account data provider.
type Provider interface {
	// CreateLinkToken starts a link session for the user.
	CreateLinkToken(ctx context.Context, userID string) (string, error)

	// ExchangePublicToken trades the short-lived public token from a
	// completed link session for a persistent credential.
	ExchangePublicToken(ctx context.Context, publicToken string) (*Link, error)

	// AvailableBalance fetches the current available balance.
	AvailableBalance(ctx context.Context, cred Credential) (decimal.Decimal, error)
}
