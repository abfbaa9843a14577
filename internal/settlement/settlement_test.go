package settlement

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/utilipay/internal/balance"
	"github.com/mmynk/utilipay/internal/models"
	"github.com/mmynk/utilipay/internal/storage"
	"github.com/mmynk/utilipay/internal/storage/sqlite"
)

var refPattern = regexp.MustCompile(`^0x[0-9a-f]{64}$`)

type fakeOracle struct {
	mu      sync.Mutex
	balance decimal.Decimal
	err     error
	calls   atomic.Int32
}

func (f *fakeOracle) AvailableBalance(context.Context, balance.Credential) (decimal.Decimal, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, f.err
}

type countingLeg struct {
	SimulatedLeg
	err   error
	calls atomic.Int32
}

func (l *countingLeg) Settle(ctx context.Context, bill *models.Bill) (string, error) {
	l.calls.Add(1)
	if l.err != nil {
		return "", l.err
	}
	return l.SimulatedLeg.Settle(ctx, bill)
}

// flakyLedger fails the next commitFailures commits before they reach the store.
type flakyLedger struct {
	storage.Ledger
	commitFailures atomic.Int32
}

func (f *flakyLedger) CommitSettlement(ctx context.Context, billID string, txn *models.PaymentTransaction) error {
	if f.commitFailures.Add(-1) >= 0 {
		return errors.New("database is locked")
	}
	return f.Ledger.CommitSettlement(ctx, billID, txn)
}

type fixture struct {
	store   *sqlite.SQLiteStore
	oracle  *fakeOracle
	leg     *countingLeg
	user    *models.User
	account *models.Account
}

func newFixture(t *testing.T, available string) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "settlement.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	user := models.NewUser("jane@example.com", "Jane", "hash")
	require.NoError(t, store.CreateUser(ctx, user))
	account := &models.Account{
		UserID:      user.ID,
		Type:        models.AccountTypeWater,
		MeterNumber: "WM-1001",
		Link:        &models.BankLink{AccessToken: "access-sandbox", AccountID: "acc-1", InstitutionName: "First Platypus Bank", Mask: "0000"},
	}
	require.NoError(t, store.CreateAccount(ctx, account))

	return &fixture{
		store:   store,
		oracle:  &fakeOracle{balance: decimal.RequireFromString(available)},
		leg:     &countingLeg{SimulatedLeg: SimulatedLeg{Delay: -1}},
		user:    user,
		account: account,
	}
}

func (f *fixture) orchestrator(ledger storage.Ledger) *Orchestrator {
	if ledger == nil {
		ledger = f.store
	}
	return New(ledger, f.oracle, f.leg, nil)
}

func (f *fixture) bill(t *testing.T, amount string) *models.Bill {
	t.Helper()
	bill := &models.Bill{
		AccountID: f.account.ID,
		Amount:    decimal.RequireFromString(amount),
		DueDate:   time.Now().Add(14 * 24 * time.Hour),
	}
	require.NoError(t, f.store.CreateBill(context.Background(), bill))
	return bill
}

func (f *fixture) state(t *testing.T, billID string) (*models.Bill, []*models.PaymentTransaction) {
	t.Helper()
	ctx := context.Background()
	bill, err := f.store.GetBill(ctx, billID)
	require.NoError(t, err)
	txns, err := f.store.ListTransactionsByBill(ctx, billID)
	require.NoError(t, err)
	return bill, txns
}

func TestSettle_Success(t *testing.T) {
	f := newFixture(t, "250.00")
	bill := f.bill(t, "100.00")

	res, err := f.orchestrator(nil).Settle(context.Background(), SettleRequest{BillID: bill.ID, UserID: f.user.ID})
	require.NoError(t, err)

	assert.Equal(t, bill.ID, res.BillID)
	assert.Regexp(t, refPattern, res.SettlementReference)
	assert.True(t, res.Amount.Equal(bill.Amount))
	assert.Equal(t, models.PaymentMethodLinkedBank, res.Method)

	got, txns := f.state(t, bill.ID)
	assert.Equal(t, models.BillStatusPaid, got.Status)
	require.Len(t, txns, 1)
	assert.Equal(t, res.TransactionID, txns[0].ID)
	assert.Equal(t, models.TransactionStatusCryptoSettled, txns[0].Status)
	assert.Equal(t, res.SettlementReference, txns[0].SettlementRef)
	assert.True(t, txns[0].Amount.Equal(bill.Amount))
	assert.Equal(t, int32(1), f.oracle.calls.Load())
}

func TestSettle_SecondCallIsAlreadyPaid(t *testing.T) {
	f := newFixture(t, "250.00")
	bill := f.bill(t, "100.00")
	orch := f.orchestrator(nil)
	req := SettleRequest{BillID: bill.ID, UserID: f.user.ID, Method: models.PaymentMethodSavedInstrument}

	_, err := orch.Settle(context.Background(), req)
	require.NoError(t, err)

	_, err = orch.Settle(context.Background(), req)
	require.ErrorIs(t, err, ErrAlreadyPaid)

	_, txns := f.state(t, bill.ID)
	assert.Len(t, txns, 1)
	assert.Equal(t, models.PaymentMethodSavedInstrument, txns[0].PaymentMethod)
	assert.Equal(t, int32(1), f.oracle.calls.Load(), "paid bill must not reach the oracle")
}

func TestSettle_ConcurrentRequestsSettleOnce(t *testing.T) {
	const n = 10

	f := newFixture(t, "500.00")
	f.leg.Delay = 50 * time.Millisecond
	bill := f.bill(t, "120.40")
	orch := f.orchestrator(nil)

	var successes atomic.Int32
	errs := make([]error, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := orch.Settle(context.Background(), SettleRequest{BillID: bill.ID, UserID: f.user.ID})
			if err == nil {
				successes.Add(1)
			}
			errs[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), successes.Load())
	for _, err := range errs {
		if err != nil {
			assert.True(t, errors.Is(err, ErrAlreadyInProgress) || errors.Is(err, ErrAlreadyPaid), "unexpected error: %v", err)
		}
	}

	got, txns := f.state(t, bill.ID)
	assert.Equal(t, models.BillStatusPaid, got.Status)
	assert.Len(t, txns, 1)
	assert.Equal(t, int32(1), f.leg.calls.Load())
}

func TestSettle_FundsBoundary(t *testing.T) {
	tests := []struct {
		name      string
		available string
		wantErr   bool
	}{
		{"one cent short", "99.99", true},
		{"exact balance", "100.00", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.available)
			bill := f.bill(t, "100.00")

			_, err := f.orchestrator(nil).Settle(context.Background(), SettleRequest{BillID: bill.ID, UserID: f.user.ID})
			got, txns := f.state(t, bill.ID)

			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, models.BillStatusPaid, got.Status)
				return
			}

			require.ErrorIs(t, err, ErrInsufficientFunds)
			var insufficient *InsufficientFundsError
			require.ErrorAs(t, err, &insufficient)
			assert.Equal(t, "100.00", insufficient.Required.StringFixed(2))
			assert.Equal(t, "99.99", insufficient.Available.StringFixed(2))
			assert.Equal(t, "0.01", insufficient.Shortfall().StringFixed(2))
			assert.Equal(t, models.BillStatusUnpaid, got.Status)
			assert.Empty(t, txns)
		})
	}
}

func TestSettle_UnauthorizedChangesNothing(t *testing.T) {
	f := newFixture(t, "250.00")
	bill := f.bill(t, "100.00")

	_, err := f.orchestrator(nil).Settle(context.Background(), SettleRequest{BillID: bill.ID, UserID: "someone-else"})
	require.ErrorIs(t, err, ErrUnauthorized)

	got, txns := f.state(t, bill.ID)
	assert.Equal(t, models.BillStatusUnpaid, got.Status)
	assert.Empty(t, txns)
	assert.Zero(t, f.oracle.calls.Load())
	assert.Zero(t, f.leg.calls.Load())
}

func TestSettle_ValidationFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown bill", func(t *testing.T) {
		f := newFixture(t, "250.00")
		_, err := f.orchestrator(nil).Settle(ctx, SettleRequest{BillID: "missing", UserID: f.user.ID})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("no linked bank", func(t *testing.T) {
		f := newFixture(t, "250.00")
		unlinked := &models.Account{UserID: f.user.ID, Type: models.AccountTypeGas, MeterNumber: "GM-7"}
		require.NoError(t, f.store.CreateAccount(ctx, unlinked))
		bill := &models.Bill{AccountID: unlinked.ID, Amount: decimal.RequireFromString("10.00"), DueDate: time.Now()}
		require.NoError(t, f.store.CreateBill(ctx, bill))

		_, err := f.orchestrator(nil).Settle(ctx, SettleRequest{BillID: bill.ID, UserID: f.user.ID})
		require.ErrorIs(t, err, ErrNoLinkedAccount)
		assert.Zero(t, f.oracle.calls.Load())
	})

	t.Run("invalid payment method", func(t *testing.T) {
		f := newFixture(t, "250.00")
		bill := f.bill(t, "10.00")
		_, err := f.orchestrator(nil).Settle(ctx, SettleRequest{BillID: bill.ID, UserID: f.user.ID, Method: "CARRIER_PIGEON"})
		require.ErrorIs(t, err, ErrInvalidPaymentMethod)
		assert.Zero(t, f.oracle.calls.Load())
	})

	t.Run("pending without reference", func(t *testing.T) {
		f := newFixture(t, "250.00")
		bill := f.bill(t, "10.00")
		moved, err := f.store.TransitionBill(ctx, bill.ID, models.BillStatusUnpaid, models.BillStatusPendingSettlement)
		require.NoError(t, err)
		require.True(t, moved)

		_, err = f.orchestrator(nil).Settle(ctx, SettleRequest{BillID: bill.ID, UserID: f.user.ID})
		require.ErrorIs(t, err, ErrAlreadyInProgress)
		assert.Zero(t, f.oracle.calls.Load())
	})
}

func TestSettle_BalanceCheckFailure(t *testing.T) {
	f := newFixture(t, "250.00")
	f.oracle.err = balance.ErrCredentialRevoked
	bill := f.bill(t, "100.00")

	_, err := f.orchestrator(nil).Settle(context.Background(), SettleRequest{BillID: bill.ID, UserID: f.user.ID})
	require.ErrorIs(t, err, ErrBalanceCheckFailed)
	assert.ErrorIs(t, err, balance.ErrCredentialRevoked)
	assert.Equal(t, "balance_check_failed", Outcome(err))

	got, txns := f.state(t, bill.ID)
	assert.Equal(t, models.BillStatusUnpaid, got.Status)
	assert.Empty(t, txns)
}

func TestSettle_CommitFailureLeavesPendingAndRetryResumes(t *testing.T) {
	f := newFixture(t, "250.00")
	bill := f.bill(t, "75.25")
	ledger := &flakyLedger{Ledger: f.store}
	ledger.commitFailures.Store(1)
	orch := f.orchestrator(ledger)
	req := SettleRequest{BillID: bill.ID, UserID: f.user.ID}

	_, err := orch.Settle(context.Background(), req)
	require.ErrorIs(t, err, ErrSettlementCommitFailed)
	var failed *CommitFailedError
	require.ErrorAs(t, err, &failed)
	assert.Regexp(t, refPattern, failed.Reference)

	got, txns := f.state(t, bill.ID)
	assert.Equal(t, models.BillStatusPendingSettlement, got.Status)
	assert.Equal(t, failed.Reference, got.SettlementRef)
	assert.Empty(t, txns)

	res, err := orch.Settle(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, failed.Reference, res.SettlementReference)

	got, txns = f.state(t, bill.ID)
	assert.Equal(t, models.BillStatusPaid, got.Status)
	assert.Len(t, txns, 1)
	assert.Equal(t, int32(1), f.leg.calls.Load(), "resume must not rerun the leg")
	assert.Equal(t, int32(1), f.oracle.calls.Load(), "resume must not recheck funds")
}

func TestSettle_LegFailureLeavesPending(t *testing.T) {
	f := newFixture(t, "250.00")
	f.leg.err = errors.New("network partition")
	bill := f.bill(t, "40.00")

	_, err := f.orchestrator(nil).Settle(context.Background(), SettleRequest{BillID: bill.ID, UserID: f.user.ID})
	var failed *CommitFailedError
	require.ErrorAs(t, err, &failed)
	assert.Empty(t, failed.Reference)

	got, txns := f.state(t, bill.ID)
	assert.Equal(t, models.BillStatusPendingSettlement, got.Status)
	assert.Empty(t, got.SettlementRef)
	assert.Empty(t, txns)
}

func TestSettle_CancellationAfterPendingIsIgnored(t *testing.T) {
	f := newFixture(t, "250.00")
	f.leg.Delay = 200 * time.Millisecond
	bill := f.bill(t, "60.00")

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := f.orchestrator(nil).Settle(ctx, SettleRequest{BillID: bill.ID, UserID: f.user.ID})
	require.NoError(t, err)

	got, txns := f.state(t, bill.ID)
	assert.Equal(t, models.BillStatusPaid, got.Status)
	assert.Len(t, txns, 1)
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "settled"},
		{ErrNotFound, "not_found"},
		{ErrUnauthorized, "unauthorized"},
		{ErrAlreadyPaid, "already_paid"},
		{ErrAlreadyInProgress, "already_in_progress"},
		{ErrNoLinkedAccount, "no_linked_account"},
		{ErrInvalidPaymentMethod, "invalid_payment_method"},
		{ErrBalanceCheckFailed, "balance_check_failed"},
		{&InsufficientFundsError{}, "insufficient_funds"},
		{&CommitFailedError{BillID: "b"}, "commit_failed"},
		{ErrNotPending, "not_pending"},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Outcome(tt.err), "error %v", tt.err)
	}
}
