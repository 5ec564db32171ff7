package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/punchamoorthee/creatorpay/internal/domain"
	"github.com/punchamoorthee/creatorpay/internal/events"
	"github.com/punchamoorthee/creatorpay/internal/ledger"
	"github.com/punchamoorthee/creatorpay/internal/store"
)

const maxHistory = 200

// OpenWallet creates the caller's zero-balance wallet.
func (s *Service) OpenWallet(ctx context.Context, actor domain.Actor) (domain.Wallet, error) {
	if actor.UserID == uuid.Nil {
		return domain.Wallet{}, domain.Unauthorizedf("missing caller identity")
	}
	kind, err := actor.Role.OwnerKind()
	if err != nil {
		return domain.Wallet{}, err
	}
	var w domain.Wallet
	err = s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		w, err = s.ledger.OpenWallet(ctx, tx, actor.UserID, kind)
		return err
	})
	return w, err
}

// GetWalletBalance reads through the balance cache. Cache failures fall back
// to the store.
func (s *Service) GetWalletBalance(ctx context.Context, actor domain.Actor, ownerID uuid.UUID) (domain.Wallet, error) {
	if !actor.CanRead(ownerID) {
		return domain.Wallet{}, domain.Unauthorizedf("caller may not read wallet %s", ownerID)
	}

	w, gen, ok, err := s.cache.Get(ctx, ownerID)
	if err != nil {
		s.logger.WarnContext(ctx, "balance cache read failed", "operation", "cache_get", "wallet_id", ownerID, "error", err)
	}
	if ok {
		return w, nil
	}
	fill := err == nil

	err = s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		w, err = tx.GetWallet(ctx, ownerID)
		return err
	})
	if err != nil {
		return domain.Wallet{}, err
	}
	// gen was read before the store, so a commit that invalidated in between
	// makes this fill a no-op.
	if fill {
		if err := s.cache.Set(ctx, w, gen); err != nil {
			s.logger.WarnContext(ctx, "balance cache write failed", "operation", "cache_set", "wallet_id", ownerID, "error", err)
		}
	}
	return w, nil
}

func (s *Service) ListTransactions(ctx context.Context, actor domain.Actor, ownerID uuid.UUID, limit int) ([]domain.Transaction, error) {
	if !actor.CanRead(ownerID) {
		return nil, domain.Unauthorizedf("caller may not read transactions of %s", ownerID)
	}
	if limit <= 0 || limit > maxHistory {
		limit = maxHistory
	}
	var out []domain.Transaction
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = s.ledger.History(ctx, tx, ownerID, limit)
		return err
	})
	return out, err
}

// CreateDepositIntent records a pending funds-in for the caller's wallet.
func (s *Service) CreateDepositIntent(ctx context.Context, actor domain.Actor, amountUSD domain.Amount, externalRef string) (domain.Transaction, error) {
	if actor.UserID == uuid.Nil || actor.Role == domain.RoleSuperAdmin {
		return domain.Transaction{}, domain.Unauthorizedf("only wallet owners can deposit")
	}
	var rec domain.Transaction
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		rec, err = s.ledger.CreateDepositIntent(ctx, tx, actor.UserID, amountUSD, externalRef)
		return err
	})
	return rec, err
}

// ConfirmExternalDeposit is safe to call repeatedly for the same reference;
// only the first confirmation credits the wallet.
func (s *Service) ConfirmExternalDeposit(ctx context.Context, externalRef string, amountUSD domain.Amount) (ledger.DepositResult, error) {
	var res ledger.DepositResult
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		res, err = s.ledger.ConfirmDeposit(ctx, tx, externalRef, amountUSD)
		if err != nil || !res.Credited {
			return err
		}
		return events.Enqueue(ctx, tx, events.EventDepositConfirmed, res.Wallet.OwnerID.String(), map[string]any{
			"wallet_id":    res.Wallet.OwnerID,
			"external_ref": res.Transaction.ExternalRef,
			"amount_usd":   res.Transaction.Amount,
			"transaction":  res.Transaction.ID,
		}, s.ledger.Now())
	})
	if err != nil {
		return ledger.DepositResult{}, err
	}
	if res.Credited {
		s.invalidate(ctx, res.Wallet.OwnerID)
		s.logger.InfoContext(ctx, "deposit confirmed",
			"operation", "confirm_deposit",
			"wallet_id", res.Wallet.OwnerID,
			"external_ref", externalRef,
			"amount", res.Transaction.Amount.String(),
		)
	}
	return res, nil
}

func (s *Service) FailExternalDeposit(ctx context.Context, externalRef string) (domain.Transaction, error) {
	var rec domain.Transaction
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		rec, err = s.ledger.FailDeposit(ctx, tx, externalRef)
		return err
	})
	return rec, err
}
