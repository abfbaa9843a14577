package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/utilipay/internal/insight"
	"github.com/mmynk/utilipay/internal/models"
	"github.com/mmynk/utilipay/internal/storage"
	"github.com/mmynk/utilipay/pkg/api"
	"github.com/mmynk/utilipay/pkg/api/apiconnect"
)

// InsightService serves generated explanations. It reads the ledger but
// never writes to it.
type InsightService struct {
	store   storage.Store
	advisor *insight.Advisor
	logger  *slog.Logger
}

var _ apiconnect.InsightServiceHandler = (*InsightService)(nil)

func NewInsightService(store storage.Store, advisor *insight.Advisor, logger *slog.Logger) *InsightService {
	return &InsightService{store: store, advisor: advisor, logger: logger}
}

// ExplainSettlement explains the settlement reference of one of the
// customer's own payments.
func (s *InsightService) ExplainSettlement(ctx context.Context, req *connect.Request[api.ExplainSettlementRequest]) (*connect.Response[api.ExplainSettlementResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	txn, _, _, err := ownedTransaction(ctx, s.store, userID, req.Msg.TransactionID)
	if err != nil {
		return nil, err
	}

	text, err := s.advisor.ExplainSettlement(ctx, txn.SettlementRef)
	if err != nil {
		return nil, insightError(err)
	}
	return connect.NewResponse(&api.ExplainSettlementResponse{
		SettlementReference: txn.SettlementRef,
		Explanation:         text,
	}), nil
}

// AuditUsage reviews recent meter readings for one account or all of them.
func (s *InsightService) AuditUsage(ctx context.Context, req *connect.Request[api.AuditUsageRequest]) (*connect.Response[api.AuditUsageResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	accounts, err := s.store.ListAccountsByUser(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to list accounts", "user_id", userID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}
	if req.Msg.AccountID != "" {
		accounts = filterAccount(accounts, req.Msg.AccountID)
		if len(accounts) == 0 {
			return nil, connect.NewError(connect.CodeNotFound, errors.New("account not found"))
		}
	}

	var samples []insight.UsageSample
	for _, account := range accounts {
		logs, err := s.store.ListUsageByAccount(ctx, account.ID, recentUsageLimit)
		if err != nil {
			s.logger.Error("Failed to list usage", "account_id", account.ID, "error", err)
			return nil, connect.NewError(connect.CodeInternal, errors.New("internal error"))
		}
		for _, l := range logs {
			samples = append(samples, insight.UsageSample{
				Date:        l.Date,
				Value:       l.Value,
				Unit:        l.Unit,
				AccountType: string(account.Type),
			})
		}
	}

	text, err := s.advisor.AuditUsage(ctx, samples)
	if err != nil {
		return nil, insightError(err)
	}
	return connect.NewResponse(&api.AuditUsageResponse{Analysis: text, UsageDataPoints: len(samples)}), nil
}

// filterAccount keeps only the user's account with the given ID.
func filterAccount(accounts []*models.Account, accountID string) []*models.Account {
	for _, a := range accounts {
		if a.ID == accountID {
			return []*models.Account{a}
		}
	}
	return nil
}

func insightError(err error) error {
	switch {
	case errors.Is(err, insight.ErrNoUsage):
		return connect.NewError(connect.CodeFailedPrecondition, errors.New("no usage data to audit"))
	case errors.Is(err, insight.ErrNotConfigured):
		return connect.NewError(connect.CodeUnimplemented, errors.New("insights are not enabled"))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}
	return connect.NewError(connect.CodeUnavailable, errors.New("insight service unavailable; try again later"))
}
