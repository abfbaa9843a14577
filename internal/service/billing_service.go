package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"

	"github.com/mmynk/utilipay/internal/models"
	"github.com/mmynk/utilipay/internal/receipt"
	"github.com/mmynk/utilipay/internal/settlement"
	"github.com/mmynk/utilipay/internal/storage"
	"github.com/mmynk/utilipay/pkg/api"
	"github.com/mmynk/utilipay/pkg/api/apiconnect"
)

// recentUsageLimit caps usage points per account and on the dashboard.
const recentUsageLimit = 30

// Settler runs the settlement flow. Implemented by *settlement.Orchestrator.
type Settler interface {
	Settle(ctx context.Context, req settlement.SettleRequest) (*settlement.Result, error)
}

// BillingService pays bills and serves the customer's billing views.
type BillingService struct {
	store   storage.Store
	settler Settler
	logger  *slog.Logger
	now     func() time.Time
}

var _ apiconnect.BillingServiceHandler = (*BillingService)(nil)

func NewBillingService(store storage.Store, settler Settler, logger *slog.Logger) *BillingService {
	return &BillingService{store: store, settler: settler, logger: logger, now: time.Now}
}

// PayBill settles one bill for the authenticated customer.
func (s *BillingService) PayBill(ctx context.Context, req *connect.Request[api.PayBillRequest]) (*connect.Response[api.PayBillResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if req.Msg.BillID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("bill id is required"))
	}

	res, err := s.settler.Settle(ctx, settlement.SettleRequest{
		BillID: req.Msg.BillID,
		UserID: userID,
		Method: models.PaymentMethod(strings.ToUpper(strings.TrimSpace(req.Msg.PaymentMethod))),
	})
	if err != nil {
		return nil, settlementError(err)
	}

	return connect.NewResponse(&api.PayBillResponse{
		BillID:              res.BillID,
		TransactionID:       res.TransactionID,
		SettlementReference: res.SettlementReference,
		Amount:              res.Amount.StringFixed(2),
		PaymentMethod:       string(res.Method),
		SettledAt:           formatTime(res.SettledAt),
	}), nil
}

// GetDashboard summarises accounts, the total due and recent usage.
func (s *BillingService) GetDashboard(ctx context.Context, req *connect.Request[api.GetDashboardRequest]) (*connect.Response[api.GetDashboardResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	accounts, err := s.store.ListAccountsByUser(ctx, userID)
	if err != nil {
		return nil, s.internal("list accounts", userID, err)
	}

	resp := &api.GetDashboardResponse{Accounts: make([]*api.Account, 0, len(accounts))}
	total := decimal.Zero
	var usage []*api.UsagePoint
	for _, account := range accounts {
		bills, err := s.store.ListBillsByAccount(ctx, account.ID, models.BillStatusUnpaid, models.BillStatusPendingSettlement)
		if err != nil {
			return nil, s.internal("list bills", userID, err)
		}
		due := sumAmounts(bills)
		total = total.Add(due)

		a := accountToAPI(account)
		a.OpenBills = len(bills)
		a.TotalDue = due.StringFixed(2)
		if len(bills) > 0 {
			a.FirstOpenBillID = bills[0].ID
		}
		resp.Accounts = append(resp.Accounts, a)

		logs, err := s.store.ListUsageByAccount(ctx, account.ID, recentUsageLimit)
		if err != nil {
			return nil, s.internal("list usage", userID, err)
		}
		for _, l := range logs {
			usage = append(usage, &api.UsagePoint{
				AccountID:   account.ID,
				AccountType: string(account.Type),
				Date:        formatTime(l.Date),
				Value:       l.Value,
				Unit:        l.Unit,
			})
		}
	}

	// RFC 3339 UTC strings sort chronologically.
	sort.SliceStable(usage, func(i, j int) bool { return usage[i].Date > usage[j].Date })
	if len(usage) > recentUsageLimit {
		usage = usage[:recentUsageLimit]
	}
	resp.TotalDue = total.StringFixed(2)
	resp.RecentUsage = usage
	return connect.NewResponse(resp), nil
}

// GetBillingData lists open bills and the connected bank.
func (s *BillingService) GetBillingData(ctx context.Context, req *connect.Request[api.GetBillingDataRequest]) (*connect.Response[api.GetBillingDataResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	accounts, err := s.store.ListAccountsByUser(ctx, userID)
	if err != nil {
		return nil, s.internal("list accounts", userID, err)
	}

	resp := &api.GetBillingDataResponse{OpenBills: []*api.Bill{}}
	total := decimal.Zero
	for _, account := range accounts {
		if resp.ConnectedBank == nil && account.HasLinkedBank() {
			resp.ConnectedBank = bankInfo(account.Link)
		}
		bills, err := s.store.ListBillsByAccount(ctx, account.ID, models.BillStatusUnpaid, models.BillStatusPendingSettlement)
		if err != nil {
			return nil, s.internal("list bills", userID, err)
		}
		total = total.Add(sumAmounts(bills))
		for _, b := range bills {
			resp.OpenBills = append(resp.OpenBills, billToAPI(b, account))
		}
	}
	sort.SliceStable(resp.OpenBills, func(i, j int) bool { return resp.OpenBills[i].DueDate < resp.OpenBills[j].DueDate })
	resp.TotalDue = total.StringFixed(2)
	return connect.NewResponse(resp), nil
}

// GetPaymentHistory lists every bill and payment, newest first.
func (s *BillingService) GetPaymentHistory(ctx context.Context, req *connect.Request[api.GetPaymentHistoryRequest]) (*connect.Response[api.GetPaymentHistoryResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := s.history(ctx, userID)
	if err != nil {
		return nil, s.internal("build history", userID, err)
	}

	resp := &api.GetPaymentHistoryResponse{Entries: make([]*api.HistoryEntry, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, &api.HistoryEntry{
			ID:            e.id,
			Kind:          e.row.Kind,
			Date:          formatTime(e.row.Date),
			ServiceType:   e.row.ServiceType,
			Description:   e.row.Description,
			Amount:        e.row.Amount.StringFixed(2),
			Status:        e.row.Status,
			PaymentMethod: e.row.PaymentMethod,
			SettlementRef: e.row.SettlementRef,
		})
	}
	return connect.NewResponse(resp), nil
}

// GetReceipt renders the PDF receipt of one of the customer's payments.
func (s *BillingService) GetReceipt(ctx context.Context, req *connect.Request[api.GetReceiptRequest]) (*connect.Response[api.GetReceiptResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	txn, bill, account, err := ownedTransaction(ctx, s.store, userID, req.Msg.TransactionID)
	if err != nil {
		return nil, err
	}
	customer, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, s.internal("load user", userID, err)
	}

	data, err := receipt.BuildPDF(receipt.Receipt{Customer: customer, Account: account, Bill: bill, Transaction: txn})
	if err != nil {
		return nil, s.internal("render receipt", userID, err)
	}
	return connect.NewResponse(&api.GetReceiptResponse{Document: &api.Document{
		Filename:    receipt.Filename(txn.ID),
		ContentType: receipt.PDFContentType,
		Data:        data,
	}}), nil
}

// ExportHistory renders the payment history as a spreadsheet.
func (s *BillingService) ExportHistory(ctx context.Context, req *connect.Request[api.ExportHistoryRequest]) (*connect.Response[api.ExportHistoryResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := s.history(ctx, userID)
	if err != nil {
		return nil, s.internal("build history", userID, err)
	}
	rows := make([]receipt.HistoryRow, len(entries))
	for i, e := range entries {
		rows[i] = e.row
	}

	data, err := receipt.BuildHistoryXLSX(rows)
	if err != nil {
		return nil, s.internal("render history", userID, err)
	}
	return connect.NewResponse(&api.ExportHistoryResponse{Document: &api.Document{
		Filename:    receipt.HistoryFilename(s.now()),
		ContentType: receipt.XLSXContentType,
		Data:        data,
	}}), nil
}

type historyEntry struct {
	id  string
	row receipt.HistoryRow
}

// history collects bills and their payments across the user's accounts.
func (s *BillingService) history(ctx context.Context, userID string) ([]historyEntry, error) {
	accounts, err := s.store.ListAccountsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var entries []historyEntry
	for _, account := range accounts {
		bills, err := s.store.ListBillsByAccount(ctx, account.ID)
		if err != nil {
			return nil, err
		}
		for _, b := range bills {
			date := b.IssuedDate
			if date.IsZero() {
				date = b.DueDate
			}
			entries = append(entries, historyEntry{id: b.ID, row: receipt.HistoryRow{
				Date:        date,
				Kind:        "bill",
				ServiceType: string(account.Type),
				Description: b.Label(account.Type),
				Amount:      b.Amount,
				Status:      string(b.Status),
			}})

			txns, err := s.store.ListTransactionsByBill(ctx, b.ID)
			if err != nil {
				return nil, err
			}
			for _, t := range txns {
				entries = append(entries, historyEntry{id: t.ID, row: receipt.HistoryRow{
					Date:          t.CreatedAt,
					Kind:          "payment",
					ServiceType:   string(account.Type),
					Description:   "Payment Received",
					Amount:        t.Amount,
					Status:        string(t.Status),
					PaymentMethod: string(t.PaymentMethod),
					SettlementRef: t.SettlementRef,
				}})
			}
		}
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].row.Date.After(entries[j].row.Date) })
	return entries, nil
}

func (s *BillingService) internal(op, userID string, err error) error {
	s.logger.Error("Billing request failed", "op", op, "user_id", userID, "error", err)
	return connect.NewError(connect.CodeInternal, errors.New("internal error"))
}

// ownedTransaction loads a transaction with its bill and account, checking
// that the account belongs to userID.
func ownedTransaction(ctx context.Context, store storage.Store, userID, txnID string) (*models.PaymentTransaction, *models.Bill, *models.Account, error) {
	if txnID == "" {
		return nil, nil, nil, connect.NewError(connect.CodeInvalidArgument, errors.New("transaction id is required"))
	}
	txn, err := store.GetTransaction(ctx, txnID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, nil, connect.NewError(connect.CodeNotFound, errors.New("transaction not found"))
	}
	if err != nil {
		return nil, nil, nil, connect.NewError(connect.CodeInternal, err)
	}
	bill, account, err := store.LoadBillWithAccount(ctx, txn.BillID)
	if err != nil {
		return nil, nil, nil, connect.NewError(connect.CodeInternal, err)
	}
	if account.UserID != userID {
		return nil, nil, nil, connect.NewError(connect.CodePermissionDenied, errors.New("transaction does not belong to this user"))
	}
	return txn, bill, account, nil
}

func sumAmounts(bills []*models.Bill) decimal.Decimal {
	total := decimal.Zero
	for _, b := range bills {
		total = total.Add(b.Amount)
	}
	return total
}

func accountToAPI(a *models.Account) *api.Account {
	return &api.Account{
		ID:          a.ID,
		Type:        string(a.Type),
		MeterNumber: a.MeterNumber,
		Address:     a.Address,
		Bank:        bankInfo(a.Link),
	}
}

func billToAPI(b *models.Bill, account *models.Account) *api.Bill {
	return &api.Bill{
		ID:            b.ID,
		AccountID:     b.AccountID,
		AccountType:   string(account.Type),
		Description:   b.Label(account.Type),
		Amount:        b.Amount.StringFixed(2),
		Status:        string(b.Status),
		IssuedDate:    formatTime(b.IssuedDate),
		DueDate:       formatTime(b.DueDate),
		SettlementRef: b.SettlementRef,
	}
}
