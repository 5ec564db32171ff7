package ledger

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/punchamoorthee/creatorpay/internal/domain"
	"github.com/punchamoorthee/creatorpay/internal/store"
)

// Entry is the caller-supplied part of a log row.
type Entry struct {
	UserID       uuid.UUID
	Type         domain.TransactionType
	Amount       domain.Amount
	Currency     domain.Currency
	Status       domain.TransactionStatus
	CampaignID   *uuid.UUID
	SubmissionID *uuid.UUID
	ExternalRef  string
	Description  string
}

// Append writes a new immutable row. Status defaults to completed and
// currency to coins.
func (l *Ledger) Append(ctx context.Context, tx store.Tx, e Entry) (domain.Transaction, error) {
	if e.UserID == uuid.Nil {
		return domain.Transaction{}, domain.Validationf("transaction user is required")
	}
	if e.Amount <= 0 {
		return domain.Transaction{}, domain.Validationf("transaction amount must be positive, got %s", e.Amount)
	}
	if !knownType(e.Type) {
		return domain.Transaction{}, domain.Validationf("unknown transaction type %q", e.Type)
	}
	if strings.TrimSpace(e.Description) == "" {
		return domain.Transaction{}, domain.Validationf("transaction description is required")
	}
	if e.Status == "" {
		e.Status = domain.TxCompleted
	}
	if e.Currency == "" {
		e.Currency = domain.CurrencyCoins
	}

	now := l.now()
	rec := domain.Transaction{
		ID:           uuid.New(),
		UserID:       e.UserID,
		Type:         e.Type,
		Amount:       e.Amount,
		Currency:     e.Currency,
		Status:       e.Status,
		CampaignID:   e.CampaignID,
		SubmissionID: e.SubmissionID,
		ExternalRef:  e.ExternalRef,
		Description:  e.Description,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.AppendTransaction(ctx, rec); err != nil {
		return domain.Transaction{}, err
	}
	return rec, nil
}

// FindByExternalRef returns the deposit row for an external payment
// reference, locked for the rest of the transaction.
func (l *Ledger) FindByExternalRef(ctx context.Context, tx store.Tx, ref string) (domain.Transaction, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Transaction{}, domain.Validationf("external reference is required")
	}
	return tx.GetTransactionByExternalRef(ctx, ref)
}

func (l *Ledger) History(ctx context.Context, tx store.Tx, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	return tx.ListTransactions(ctx, userID, limit)
}

func knownType(t domain.TransactionType) bool {
	switch t {
	case domain.TxDeposit, domain.TxWithdrawal, domain.TxCampaignLock, domain.TxCampaignUnlock,
		domain.TxPaymentSent, domain.TxPaymentReceived, domain.TxRefund, domain.TxAdminFee:
		return true
	}
	return false
}
