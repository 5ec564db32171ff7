// Package ledger owns wallet balances and the append-only transaction log.
//
// Every method takes the caller's store.Tx: a balance change and the log row
// documenting it are written in the same transaction or not at all.
package ledger

import (
	"bytes"
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/creatorpay/internal/domain"
	"github.com/punchamoorthee/creatorpay/internal/store"
)

type Ledger struct {
	now func() time.Time
}

func New(now func() time.Time) *Ledger {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Ledger{now: now}
}

func (l *Ledger) Now() time.Time { return l.now() }

// OpenWallet creates a zero-balance wallet for a newly registered party.
func (l *Ledger) OpenWallet(ctx context.Context, tx store.Tx, ownerID uuid.UUID, kind domain.OwnerKind) (domain.Wallet, error) {
	if ownerID == uuid.Nil {
		return domain.Wallet{}, domain.Validationf("owner id is required")
	}
	switch kind {
	case domain.OwnerAdvertiser, domain.OwnerContentCreator:
	default:
		return domain.Wallet{}, domain.Validationf("unknown owner kind %q", kind)
	}
	now := l.now()
	w := domain.Wallet{OwnerID: ownerID, OwnerKind: kind, CreatedAt: now, UpdatedAt: now}
	if err := tx.CreateWallet(ctx, w); err != nil {
		return domain.Wallet{}, err
	}
	return w, nil
}

// LockWallets loads and locks the given wallets in ascending id order so two
// operations touching the same pair cannot deadlock.
func (l *Ledger) LockWallets(ctx context.Context, tx store.Tx, ids ...uuid.UUID) (map[uuid.UUID]domain.Wallet, error) {
	ordered := slices.Clone(ids)
	slices.SortFunc(ordered, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	ordered = slices.Compact(ordered)

	out := make(map[uuid.UUID]domain.Wallet, len(ordered))
	for _, id := range ordered {
		w, err := tx.GetWallet(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = w
	}
	return out, nil
}

func (l *Ledger) Credit(ctx context.Context, tx store.Tx, ownerID uuid.UUID, amount domain.Amount, bucket domain.Bucket) (domain.Wallet, error) {
	return l.mutate(ctx, tx, ownerID, func(w *domain.Wallet) error { return w.Credit(bucket, amount) })
}

// Debit fails with ErrInsufficientFunds, leaving the wallet untouched, when
// the bucket holds less than amount.
func (l *Ledger) Debit(ctx context.Context, tx store.Tx, ownerID uuid.UUID, amount domain.Amount, bucket domain.Bucket) (domain.Wallet, error) {
	return l.mutate(ctx, tx, ownerID, func(w *domain.Wallet) error { return w.Debit(bucket, amount) })
}

func (l *Ledger) MoveBucket(ctx context.Context, tx store.Tx, ownerID uuid.UUID, amount domain.Amount, from, to domain.Bucket) (domain.Wallet, error) {
	return l.mutate(ctx, tx, ownerID, func(w *domain.Wallet) error { return w.Move(amount, from, to) })
}

func (l *Ledger) mutate(ctx context.Context, tx store.Tx, ownerID uuid.UUID, fn func(*domain.Wallet) error) (domain.Wallet, error) {
	w, err := tx.GetWallet(ctx, ownerID)
	if err != nil {
		return domain.Wallet{}, err
	}
	if err := fn(&w); err != nil {
		return domain.Wallet{}, err
	}
	w.UpdatedAt = l.now()
	if err := tx.UpdateWallet(ctx, w); err != nil {
		return domain.Wallet{}, err
	}
	return w, nil
}
