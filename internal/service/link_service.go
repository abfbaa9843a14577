package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/utilipay/internal/balance"
	"github.com/mmynk/utilipay/internal/models"
	"github.com/mmynk/utilipay/internal/storage"
	"github.com/mmynk/utilipay/pkg/api"
	"github.com/mmynk/utilipay/pkg/api/apiconnect"
)

// LinkService connects a customer's bank account through the balance provider.
type LinkService struct {
	store    storage.Store
	provider balance.Provider
	logger   *slog.Logger
}

var _ apiconnect.LinkServiceHandler = (*LinkService)(nil)

func NewLinkService(store storage.Store, provider balance.Provider, logger *slog.Logger) *LinkService {
	return &LinkService{store: store, provider: provider, logger: logger}
}

// CreateLinkToken starts a bank linking session for the current user.
func (s *LinkService) CreateLinkToken(ctx context.Context, req *connect.Request[api.CreateLinkTokenRequest]) (*connect.Response[api.CreateLinkTokenResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	token, err := s.provider.CreateLinkToken(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to create link token", "user_id", userID, "error", err)
		return nil, connect.NewError(connect.CodeUnavailable, errors.New("bank linking is unavailable; try again shortly"))
	}
	return connect.NewResponse(&api.CreateLinkTokenResponse{LinkToken: token}), nil
}

// ExchangePublicToken stores the credential from a finished linking session
// on the chosen utility account, replacing any earlier link.
func (s *LinkService) ExchangePublicToken(ctx context.Context, req *connect.Request[api.ExchangePublicTokenRequest]) (*connect.Response[api.ExchangePublicTokenResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if req.Msg.PublicToken == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("public token is required"))
	}

	account, err := s.targetAccount(ctx, userID, req.Msg.AccountID)
	if err != nil {
		return nil, err
	}

	link, err := s.provider.ExchangePublicToken(ctx, req.Msg.PublicToken)
	if err != nil {
		s.logger.Error("Public token exchange failed", "user_id", userID, "error", err)
		return nil, connect.NewError(connect.CodeUnavailable, errors.New("could not connect bank account"))
	}

	bankLink := &models.BankLink{
		AccessToken:     link.AccessToken,
		ItemID:          link.ItemID,
		AccountID:       link.AccountID,
		InstitutionName: link.InstitutionName,
		Mask:            link.Mask,
		LinkedAt:        time.Now().UTC(),
	}
	if err := s.store.SetBankLink(ctx, account.ID, bankLink); err != nil {
		s.logger.Error("Failed to store bank link", "account_id", account.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("Bank account linked", "user_id", userID, "account_id", account.ID, "institution", link.InstitutionName)
	return connect.NewResponse(&api.ExchangePublicTokenResponse{
		AccountID: account.ID,
		Bank:      bankInfo(bankLink),
	}), nil
}

// targetAccount resolves the utility account to link: the requested one
// if owned by the user, otherwise the user's first account.
func (s *LinkService) targetAccount(ctx context.Context, userID, accountID string) (*models.Account, error) {
	if accountID != "" {
		account, err := s.store.GetAccount(ctx, accountID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, connect.NewError(connect.CodeNotFound, errors.New("account not found"))
		}
		if err != nil {
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		if account.UserID != userID {
			return nil, connect.NewError(connect.CodePermissionDenied, errors.New("account does not belong to this user"))
		}
		return account, nil
	}

	accounts, err := s.store.ListAccountsByUser(ctx, userID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if len(accounts) == 0 {
		return nil, connect.NewError(connect.CodeFailedPrecondition, errors.New("no utility account found for user"))
	}
	return accounts[0], nil
}

// bankInfo returns the displayable part of a link, never the access token.
func bankInfo(link *models.BankLink) *api.BankInfo {
	if link == nil {
		return nil
	}
	mask := link.Mask
	if mask == "" && len(link.AccountID) >= 4 {
		mask = link.AccountID[len(link.AccountID)-4:]
	}
	if mask == "" {
		mask = "****"
	}
	name := link.InstitutionName
	if name == "" {
		name = "Connected Bank"
	}
	return &api.BankInfo{
		AccountID:       link.AccountID,
		InstitutionName: name,
		Mask:            mask,
		LinkedAt:        formatTime(link.LinkedAt),
	}
}
