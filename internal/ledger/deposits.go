package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/punchamoorthee/creatorpay/internal/domain"
	"github.com/punchamoorthee/creatorpay/internal/store"
)

// MinDeposit is the smallest accepted external deposit, 1.00 USD.
const MinDeposit domain.Amount = 100

type DepositResult struct {
	Transaction domain.Transaction
	Wallet      domain.Wallet
	// Credited is false when the reference had already been confirmed.
	Credited bool
}

// CreateDepositIntent records a pending USD deposit keyed by the external
// payment reference. The wallet is not credited until ConfirmDeposit.
func (l *Ledger) CreateDepositIntent(ctx context.Context, tx store.Tx, ownerID uuid.UUID, amountUSD domain.Amount, ref string) (domain.Transaction, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Transaction{}, domain.Validationf("external reference is required")
	}
	if amountUSD < MinDeposit {
		return domain.Transaction{}, domain.Validationf("deposit must be at least %s USD, got %s", MinDeposit, amountUSD)
	}
	if _, err := tx.GetWallet(ctx, ownerID); err != nil {
		return domain.Transaction{}, err
	}
	return l.Append(ctx, tx, Entry{
		UserID:      ownerID,
		Type:        domain.TxDeposit,
		Amount:      amountUSD,
		Currency:    domain.CurrencyUSD,
		Status:      domain.TxPending,
		ExternalRef: ref,
		Description: fmt.Sprintf("Wallet deposit of $%s", amountUSD),
	})
}

// ConfirmDeposit credits the wallet for a pending deposit at 1 USD : 1 coin
// and flips the row to completed. Confirming an already completed reference
// is a successful no-op, so retried webhooks credit at most once.
func (l *Ledger) ConfirmDeposit(ctx context.Context, tx store.Tx, ref string, amountUSD domain.Amount) (DepositResult, error) {
	rec, err := l.FindByExternalRef(ctx, tx, ref)
	if err != nil {
		return DepositResult{}, err
	}
	if rec.Type != domain.TxDeposit {
		return DepositResult{}, domain.Conflictf("external reference %q is not a deposit", ref)
	}
	if amountUSD != rec.Amount {
		return DepositResult{}, domain.Validationf("confirmed amount %s does not match pending deposit of %s", amountUSD, rec.Amount)
	}

	switch rec.Status {
	case domain.TxCompleted:
		w, err := tx.GetWallet(ctx, rec.UserID)
		if err != nil {
			return DepositResult{}, err
		}
		return DepositResult{Transaction: rec, Wallet: w}, nil
	case domain.TxFailed, domain.TxCancelled:
		return DepositResult{}, domain.Conflictf("deposit %q is %s", ref, rec.Status)
	case domain.TxPending:
	default:
		return DepositResult{}, fmt.Errorf("deposit %q has unknown status %q", ref, rec.Status)
	}

	w, err := tx.GetWallet(ctx, rec.UserID)
	if err != nil {
		return DepositResult{}, err
	}
	if err := w.Credit(domain.BucketAvailable, rec.Amount); err != nil {
		return DepositResult{}, err
	}
	now := l.now()
	if w.TotalDepositUSD, err = w.TotalDepositUSD.Plus(rec.Amount); err != nil {
		return DepositResult{}, err
	}
	w.UpdatedAt = now
	if err := tx.UpdateWallet(ctx, w); err != nil {
		return DepositResult{}, err
	}
	if err := tx.SetTransactionStatus(ctx, rec.ID, domain.TxPending, domain.TxCompleted, now); err != nil {
		return DepositResult{}, err
	}
	rec.Status = domain.TxCompleted
	rec.UpdatedAt = now
	return DepositResult{Transaction: rec, Wallet: w, Credited: true}, nil
}

// FailDeposit marks a pending deposit as failed. The wallet is untouched.
func (l *Ledger) FailDeposit(ctx context.Context, tx store.Tx, ref string) (domain.Transaction, error) {
	rec, err := l.FindByExternalRef(ctx, tx, ref)
	if err != nil {
		return domain.Transaction{}, err
	}
	if rec.Type != domain.TxDeposit {
		return domain.Transaction{}, domain.Conflictf("external reference %q is not a deposit", ref)
	}
	now := l.now()
	if err := tx.SetTransactionStatus(ctx, rec.ID, domain.TxPending, domain.TxFailed, now); err != nil {
		return domain.Transaction{}, err
	}
	rec.Status = domain.TxFailed
	rec.UpdatedAt = now
	return rec, nil
}
