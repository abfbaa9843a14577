package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/utilipay/internal/auth"
	"github.com/mmynk/utilipay/internal/balance"
	"github.com/mmynk/utilipay/internal/insight"
	"github.com/mmynk/utilipay/internal/middleware"
	"github.com/mmynk/utilipay/internal/models"
	"github.com/mmynk/utilipay/internal/settlement"
	"github.com/mmynk/utilipay/internal/storage/sqlite"
	"github.com/mmynk/utilipay/pkg/api"
	"github.com/mmynk/utilipay/pkg/api/apiconnect"
)

// fakeProvider stands in for Plaid.
type fakeProvider struct {
	mu      sync.Mutex
	balance decimal.Decimal
	err     error
}

func (p *fakeProvider) CreateLinkToken(_ context.Context, userID string) (string, error) {
	return "link-sandbox-" + userID, nil
}

func (p *fakeProvider) ExchangePublicToken(_ context.Context, publicToken string) (*balance.Link, error) {
	if publicToken == "expired" {
		return nil, errors.New("INVALID_PUBLIC_TOKEN")
	}
	return &balance.Link{
		AccessToken:     "access-" + publicToken,
		ItemID:          "item-" + publicToken,
		AccountID:       "acct-000-1234",
		AccountName:     "Plaid Checking",
		Mask:            "1234",
		InstitutionName: "First Platypus Bank",
	}, nil
}

func (p *fakeProvider) AvailableBalance(context.Context, balance.Credential) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance, p.err
}

func (p *fakeProvider) set(amount string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balance = decimal.RequireFromString(amount)
	p.err = err
}

type stubGenerator struct {
	mu      sync.Mutex
	prompts []string
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	return "generated insight", nil
}

type testEnv struct {
	store     *sqlite.SQLiteStore
	provider  *fakeProvider
	generator *stubGenerator
	auth      apiconnect.AuthServiceClient
	link      apiconnect.LinkServiceClient
	billing   apiconnect.BillingServiceClient
	insight   apiconnect.InsightServiceClient
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTestServer wires every service the way cmd/server does, against a
// temp database and fake provider.
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "utilipay-service-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.Close()

	store, err := sqlite.New(tmpFile.Name())
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("failed to create store: %v", err)
	}

	logger := discardLogger()
	provider := &fakeProvider{balance: decimal.RequireFromString("500.00")}
	generator := &stubGenerator{}

	jwtManager := auth.NewJWTManager("service-test-secret-0123", time.Hour)
	authenticator := auth.NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost)
	oracle := balance.NewOracle(provider, balance.OracleConfig{Timeout: time.Second}, logger)
	orchestrator := settlement.New(store, oracle, &settlement.SimulatedLeg{Delay: -1}, logger)

	public := connect.WithInterceptors(middleware.OptionalAuth(jwtManager))
	private := connect.WithInterceptors(middleware.RequireAuth(jwtManager))

	mux := http.NewServeMux()
	mux.Handle(apiconnect.NewAuthServiceHandler(NewAuthService(authenticator, store, jwtManager, logger), public))
	mux.Handle(apiconnect.NewLinkServiceHandler(NewLinkService(store, provider, logger), private))
	mux.Handle(apiconnect.NewBillingServiceHandler(NewBillingService(store, orchestrator, logger), private))
	mux.Handle(apiconnect.NewInsightServiceHandler(NewInsightService(store, insight.NewAdvisor(generator, logger), logger), private))

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		store.Close()
		os.Remove(tmpFile.Name())
	})

	return &testEnv{
		store:     store,
		provider:  provider,
		generator: generator,
		auth:      apiconnect.NewAuthServiceClient(http.DefaultClient, server.URL),
		link:      apiconnect.NewLinkServiceClient(http.DefaultClient, server.URL),
		billing:   apiconnect.NewBillingServiceClient(http.DefaultClient, server.URL),
		insight:   apiconnect.NewInsightServiceClient(http.DefaultClient, server.URL),
	}
}

// register creates a customer and returns its session token and ID.
func (e *testEnv) register(t *testing.T, email string) (string, string) {
	t.Helper()
	resp, err := e.auth.Register(context.Background(), connect.NewRequest(&api.RegisterRequest{
		Email:    email,
		Name:     "Test Customer",
		Password: "password123",
	}))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return resp.Msg.Token, resp.Msg.User.ID
}

func (e *testEnv) account(t *testing.T, userID string, accountType models.AccountType, linked bool) *models.Account {
	t.Helper()
	account := &models.Account{UserID: userID, Type: accountType, MeterNumber: "M-" + string(accountType)}
	if linked {
		account.Link = &models.BankLink{AccessToken: "access-sandbox", AccountID: "acct-9876", InstitutionName: "First Platypus Bank", Mask: "9876"}
	}
	if err := e.store.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	return account
}

func (e *testEnv) bill(t *testing.T, accountID, amount string, due time.Time) *models.Bill {
	t.Helper()
	bill := &models.Bill{AccountID: accountID, Amount: decimal.RequireFromString(amount), DueDate: due}
	if err := e.store.CreateBill(context.Background(), bill); err != nil {
		t.Fatalf("CreateBill failed: %v", err)
	}
	return bill
}

func authed[T any](token string, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set("Authorization", "Bearer "+token)
	return req
}

func assertCode(t *testing.T, err error, want connect.Code) *connect.Error {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected %v error, got nil", want)
	}
	var cerr *connect.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("Expected connect error, got %T: %v", err, err)
	}
	if cerr.Code() != want {
		t.Fatalf("Expected code %v, got %v: %v", want, cerr.Code(), cerr.Message())
	}
	return cerr
}
