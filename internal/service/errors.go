package service

import (
	"errors"
	"fmt"

	"connectrpc.com/connect"

	"github.com/mmynk/utilipay/internal/balance"
	"github.com/mmynk/utilipay/internal/middleware"
	"github.com/mmynk/utilipay/internal/settlement"
)

// Error metadata keys attached to settlement failures.
const (
	RequiredAmountHeader  = "Required-Amount"
	AvailableAmountHeader = "Available-Amount"
	ShortfallAmountHeader = "Shortfall-Amount"
	SettlementStateHeader = "Settlement-State"
	RelinkRequiredHeader  = "Relink-Required"
)

// settlementError maps a Settle error to a Connect error. Every error
// carries its outcome tag so clients can branch without parsing messages.
func settlementError(err error) *connect.Error {
	var (
		cerr         *connect.Error
		insufficient *settlement.InsufficientFundsError
	)
	switch {
	case errors.Is(err, settlement.ErrNotFound):
		cerr = connect.NewError(connect.CodeNotFound, errors.New("bill not found"))
	case errors.Is(err, settlement.ErrUnauthorized):
		cerr = connect.NewError(connect.CodePermissionDenied, errors.New("bill does not belong to this account"))
	case errors.Is(err, settlement.ErrAlreadyPaid):
		cerr = connect.NewError(connect.CodeAlreadyExists, errors.New("bill is already paid"))
	case errors.Is(err, settlement.ErrAlreadyInProgress):
		cerr = connect.NewError(connect.CodeAborted, errors.New("a payment for this bill is already in progress"))
	case errors.Is(err, settlement.ErrNoLinkedAccount):
		cerr = connect.NewError(connect.CodeFailedPrecondition, errors.New("no bank account linked; connect a bank account to pay"))
	case errors.Is(err, settlement.ErrInvalidPaymentMethod):
		cerr = connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, settlement.ErrBalanceCheckFailed):
		if errors.Is(err, balance.ErrCredentialRevoked) {
			cerr = connect.NewError(connect.CodeUnavailable, errors.New("bank connection expired; reconnect your bank account"))
			cerr.Meta().Set(RelinkRequiredHeader, "true")
		} else {
			cerr = connect.NewError(connect.CodeUnavailable, errors.New("could not verify your balance; try again shortly"))
		}
	case errors.As(err, &insufficient):
		cerr = connect.NewError(connect.CodeFailedPrecondition, fmt.Errorf(
			"insufficient funds: bill is $%s but only $%s is available",
			insufficient.Required.StringFixed(2), insufficient.Available.StringFixed(2)))
		cerr.Meta().Set(RequiredAmountHeader, insufficient.Required.StringFixed(2))
		cerr.Meta().Set(AvailableAmountHeader, insufficient.Available.StringFixed(2))
		cerr.Meta().Set(ShortfallAmountHeader, insufficient.Shortfall().StringFixed(2))
	case errors.Is(err, settlement.ErrSettlementCommitFailed):
		cerr = connect.NewError(connect.CodeUnavailable, errors.New("your payment is processing; check back shortly"))
		cerr.Meta().Set(SettlementStateHeader, "processing")
	default:
		cerr = connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}
	cerr.Meta().Set(middleware.OutcomeHeader, settlement.Outcome(err))
	return cerr
}
