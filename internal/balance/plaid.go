package balance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/plaid/plaid-go/v20/plaid"
	"github.com/shopspring/decimal"
)

// Plaid environments.
const (
	PlaidSandboxURL    = string(plaid.Sandbox)
	PlaidProductionURL = string(plaid.Production)
)

// Provider error codes meaning the user must re-link.
var revokedCodes = map[string]bool{
	"ITEM_LOGIN_REQUIRED":  true,
	"INVALID_ACCESS_TOKEN": true,
	"ACCESS_NOT_GRANTED":   true,
	"ITEM_NOT_FOUND":       true,
}

// PlaidConfig configures the Plaid client.
type PlaidConfig struct {
	BaseURL    string
	ClientID   string
	Secret     string
	ClientName string
}

// PlaidClient implements Provider on the Plaid API.
type PlaidClient struct {
	api        *plaid.PlaidApiService
	clientName string
}

var _ Provider = (*PlaidClient)(nil)

// NewPlaidClient constructs a Plaid client.
func NewPlaidClient(cfg PlaidConfig) (*PlaidClient, error) {
	if cfg.ClientID == "" || cfg.Secret == "" {
		return nil, errors.New("plaid: client id and secret are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = PlaidSandboxURL
	}
	if cfg.ClientName == "" {
		cfg.ClientName = "Utilyze Payment Portal"
	}

	conf := plaid.NewConfiguration()
	conf.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	conf.AddDefaultHeader("PLAID-SECRET", cfg.Secret)
	conf.UseEnvironment(plaid.Environment(strings.TrimRight(cfg.BaseURL, "/")))
	conf.HTTPClient = &http.Client{Timeout: 30 * time.Second}

	return &PlaidClient{
		api:        plaid.NewAPIClient(conf).PlaidApi,
		clientName: cfg.ClientName,
	}, nil
}

// CreateLinkToken creates a link token used to initialise the Link UI.
func (c *PlaidClient) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	req := plaid.NewLinkTokenCreateRequest(
		c.clientName,
		"en",
		[]plaid.CountryCode{plaid.COUNTRYCODE_US},
		plaid.LinkTokenCreateRequestUser{ClientUserId: userID},
	)
	req.SetProducts([]plaid.Products{plaid.PRODUCTS_AUTH, plaid.PRODUCTS_TRANSACTIONS})

	resp, httpResp, err := c.api.LinkTokenCreate(ctx).LinkTokenCreateRequest(*req).Execute()
	if err != nil {
		return "", mapError("/link/token/create", httpResp, err)
	}
	return resp.GetLinkToken(), nil
}

// ExchangePublicToken exchanges the public token and resolves the first
// bank account and institution behind the new credential.
func (c *PlaidClient) ExchangePublicToken(ctx context.Context, publicToken string) (*Link, error) {
	exchanged, httpResp, err := c.api.ItemPublicTokenExchange(ctx).
		ItemPublicTokenExchangeRequest(*plaid.NewItemPublicTokenExchangeRequest(publicToken)).
		Execute()
	if err != nil {
		return nil, mapError("/item/public_token/exchange", httpResp, err)
	}

	authResp, httpResp, err := c.api.AuthGet(ctx).
		AuthGetRequest(*plaid.NewAuthGetRequest(exchanged.GetAccessToken())).
		Execute()
	if err != nil {
		return nil, mapError("/auth/get", httpResp, err)
	}

	item := authResp.GetItem()
	link := &Link{
		AccessToken:     exchanged.GetAccessToken(),
		ItemID:          exchanged.GetItemId(),
		InstitutionName: c.institutionName(ctx, item.GetInstitutionId()),
	}
	if accounts := authResp.GetAccounts(); len(accounts) > 0 {
		link.AccountID = accounts[0].GetAccountId()
		link.AccountName = accounts[0].GetName()
		link.Mask = accounts[0].GetMask()
	}
	return link, nil
}

// AvailableBalance returns the real-time available balance of the linked
// account. A null available balance is reported as zero.
func (c *PlaidClient) AvailableBalance(ctx context.Context, cred Credential) (decimal.Decimal, error) {
	resp, httpResp, err := c.api.AccountsBalanceGet(ctx).
		AccountsBalanceGetRequest(*plaid.NewAccountsBalanceGetRequest(cred.AccessToken)).
		Execute()
	if err != nil {
		return decimal.Zero, mapError("/accounts/balance/get", httpResp, err)
	}

	accounts := resp.GetAccounts()
	if len(accounts) == 0 {
		return decimal.Zero, fmt.Errorf("%w: no accounts behind credential", ErrCredentialRevoked)
	}

	account := accounts[0]
	if cred.AccountID != "" {
		for _, a := range accounts {
			if a.GetAccountId() == cred.AccountID {
				account = a
				break
			}
		}
	}
	balances := account.GetBalances()
	available, ok := balances.GetAvailableOk()
	if !ok || available == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromFloat(*available).Round(2), nil
}

// institutionName looks up a display name, falling back to the raw id.
func (c *PlaidClient) institutionName(ctx context.Context, institutionID string) string {
	if institutionID == "" {
		return "Unknown Bank"
	}
	req := plaid.NewInstitutionsGetByIdRequest(institutionID, []plaid.CountryCode{plaid.COUNTRYCODE_US})
	resp, _, err := c.api.InstitutionsGetById(ctx).InstitutionsGetByIdRequest(*req).Execute()
	if err != nil {
		return institutionID
	}
	institution := resp.GetInstitution()
	if name := institution.GetName(); name != "" {
		return name
	}
	return institutionID
}

// mapError folds a Plaid API error into ErrCredentialRevoked or
// ErrProviderUnavailable where one applies.
func mapError(path string, httpResp *http.Response, err error) error {
	if httpResp == nil {
		return fmt.Errorf("%w: plaid %s: %v", ErrProviderUnavailable, path, err)
	}

	code := ""
	if pe, perr := plaid.ToPlaidError(err); perr == nil {
		code = pe.ErrorCode
		if revokedCodes[code] {
			return fmt.Errorf("%w: %s", ErrCredentialRevoked, code)
		}
	}
	if httpResp.StatusCode >= 500 || httpResp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: plaid %s: http %d %s", ErrProviderUnavailable, path, httpResp.StatusCode, code)
	}
	return fmt.Errorf("plaid %s: http %d %s: %w", path, httpResp.StatusCode, code, err)
}
