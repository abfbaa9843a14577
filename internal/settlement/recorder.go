package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/utilipay/internal/models"
	"github.com/mmynk/utilipay/internal/storage"
)

// Recorder turns a settlement reference into the bill's receipt.
type Recorder struct {
	ledger storage.Ledger
	now    func() time.Time
}

func NewRecorder(ledger storage.Ledger) *Recorder {
	return &Recorder{ledger: ledger, now: time.Now}
}

// CommitSettlement marks the bill PAID and stores a CRYPTO_SETTLED
// transaction in one unit. Either both happen or neither does.
func (r *Recorder) CommitSettlement(ctx context.Context, billID, ref string, amount decimal.Decimal, method models.PaymentMethod) (*models.PaymentTransaction, error) {
	txn := &models.PaymentTransaction{
		ID:            uuid.New().String(),
		BillID:        billID,
		SettlementRef: ref,
		Status:        models.TransactionStatusCryptoSettled,
		PaymentMethod: method,
		Amount:        amount,
		CreatedAt:     r.now().UTC(),
	}
	if err := r.ledger.CommitSettlement(ctx, billID, txn); err != nil {
		return nil, err
	}
	return txn, nil
}
