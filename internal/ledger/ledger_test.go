package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/creatorpay/internal/domain"
	"github.com/punchamoorthee/creatorpay/internal/store"
	"github.com/punchamoorthee/creatorpay/internal/store/memory"
)

func fixedClock() func() time.Time {
	t := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time { return t }
}

func newWallet(t *testing.T, s store.Store, l *Ledger, kind domain.OwnerKind, available domain.Amount) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		if _, err := l.OpenWallet(ctx, tx, id, kind); err != nil {
			return err
		}
		if available > 0 {
			_, err := l.Credit(ctx, tx, id, available, domain.BucketAvailable)
			return err
		}
		return nil
	})
	if err != nil {
		t.Fatalf("open wallet: %v", err)
	}
	return id
}

func readWallet(t *testing.T, s store.Store, id uuid.UUID) domain.Wallet {
	t.Helper()
	var w domain.Wallet
	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		w, err = tx.GetWallet(ctx, id)
		return err
	})
	if err != nil {
		t.Fatalf("read wallet: %v", err)
	}
	return w
}

func TestOpenWalletTwiceConflicts(t *testing.T) {
	s, l := memory.New(), New(fixedClock())
	id := newWallet(t, s, l, domain.OwnerAdvertiser, 0)

	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := l.OpenWallet(ctx, tx, id, domain.OwnerAdvertiser)
		return err
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second open error = %v, want conflict", err)
	}
}

func TestBucketOperations(t *testing.T) {
	s, l := memory.New(), New(fixedClock())
	id := newWallet(t, s, l, domain.OwnerAdvertiser, domain.Coins(100))

	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		if _, err := l.MoveBucket(ctx, tx, id, domain.Coins(40), domain.BucketAvailable, domain.BucketLocked); err != nil {
			return err
		}
		_, err := l.Debit(ctx, tx, id, domain.Coins(10), domain.BucketLocked)
		return err
	})
	if err != nil {
		t.Fatalf("bucket ops: %v", err)
	}
	w := readWallet(t, s, id)
	if w.Available != domain.Coins(60) || w.Locked != domain.Coins(30) {
		t.Fatalf("unexpected balances %+v", w)
	}
}

func TestFailedStepRollsBackEarlierSteps(t *testing.T) {
	s, l := memory.New(), New(fixedClock())
	id := newWallet(t, s, l, domain.OwnerAdvertiser, domain.Coins(50))

	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		if _, err := l.MoveBucket(ctx, tx, id, domain.Coins(30), domain.BucketAvailable, domain.BucketLocked); err != nil {
			return err
		}
		if _, err := l.Append(ctx, tx, Entry{UserID: id, Type: domain.TxCampaignLock, Amount: domain.Coins(30), Description: "lock"}); err != nil {
			return err
		}
		_, err := l.Debit(ctx, tx, id, domain.Coins(31), domain.BucketLocked)
		return err
	})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("error = %v, want insufficient funds", err)
	}

	w := readWallet(t, s, id)
	if w.Available != domain.Coins(50) || w.Locked != 0 {
		t.Fatalf("partial effect leaked: %+v", w)
	}
	var history []domain.Transaction
	_ = s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		history, err = l.History(ctx, tx, id, 0)
		return err
	})
	if len(history) != 0 {
		t.Fatalf("orphan log rows: %+v", history)
	}
}

func TestAppendValidation(t *testing.T) {
	s, l := memory.New(), New(fixedClock())
	user := uuid.New()
	tests := []struct {
		name  string
		entry Entry
	}{
		{"missing user", Entry{Type: domain.TxRefund, Amount: 1, Description: "x"}},
		{"zero amount", Entry{UserID: user, Type: domain.TxRefund, Description: "x"}},
		{"unknown type", Entry{UserID: user, Type: "bonus", Amount: 1, Description: "x"}},
		{"no description", Entry{UserID: user, Type: domain.TxRefund, Amount: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
				_, err := l.Append(ctx, tx, tt.entry)
				return err
			})
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("error = %v, want validation", err)
			}
		})
	}
}

func TestLockWalletsDeduplicates(t *testing.T) {
	s, l := memory.New(), New(fixedClock())
	a := newWallet(t, s, l, domain.OwnerAdvertiser, 0)
	b := newWallet(t, s, l, domain.OwnerContentCreator, 0)

	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		got, err := l.LockWallets(ctx, tx, b, a, b)
		if err != nil {
			return err
		}
		if len(got) != 2 {
			t.Errorf("LockWallets returned %d wallets, want 2", len(got))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("LockWallets: %v", err)
	}
}

func createIntent(t *testing.T, s store.Store, l *Ledger, owner uuid.UUID, amount domain.Amount, ref string) {
	t.Helper()
	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := l.CreateDepositIntent(ctx, tx, owner, amount, ref)
		return err
	})
	if err != nil {
		t.Fatalf("CreateDepositIntent: %v", err)
	}
}

func confirm(s store.Store, l *Ledger, ref string, amount domain.Amount) (DepositResult, error) {
	var res DepositResult
	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		res, err = l.ConfirmDeposit(ctx, tx, ref, amount)
		return err
	})
	return res, err
}

func TestConfirmDepositIsIdempotent(t *testing.T) {
	s, l := memory.New(), New(fixedClock())
	owner := newWallet(t, s, l, domain.OwnerAdvertiser, 0)
	createIntent(t, s, l, owner, domain.Coins(100), "pi_123")

	first, err := confirm(s, l, "pi_123", domain.Coins(100))
	if err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if !first.Credited || first.Wallet.Available != domain.Coins(100) || first.Wallet.TotalDepositUSD != domain.Coins(100) {
		t.Fatalf("unexpected first result %+v", first)
	}

	second, err := confirm(s, l, "pi_123", domain.Coins(100))
	if err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if second.Credited {
		t.Fatal("second confirm credited the wallet again")
	}
	if w := readWallet(t, s, owner); w.Available != domain.Coins(100) {
		t.Fatalf("available = %s after replay, want 100.00", w.Available)
	}
	if second.Transaction.Status != domain.TxCompleted {
		t.Fatalf("status = %s", second.Transaction.Status)
	}
}

func TestConcurrentConfirmCreditsOnce(t *testing.T) {
	s, l := memory.New(), New(fixedClock())
	owner := newWallet(t, s, l, domain.OwnerAdvertiser, 0)
	createIntent(t, s, l, owner, domain.Coins(25), "pi_race")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		credited int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := confirm(s, l, "pi_race", domain.Coins(25))
			if err != nil {
				t.Errorf("confirm: %v", err)
				return
			}
			if res.Credited {
				mu.Lock()
				credited++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if credited != 1 {
		t.Fatalf("credited %d times, want 1", credited)
	}
	if w := readWallet(t, s, owner); w.Available != domain.Coins(25) {
		t.Fatalf("available = %s, want 25.00", w.Available)
	}
}

func TestConfirmDepositFailures(t *testing.T) {
	s, l := memory.New(), New(fixedClock())
	owner := newWallet(t, s, l, domain.OwnerAdvertiser, 0)
	createIntent(t, s, l, owner, domain.Coins(10), "pi_a")
	createIntent(t, s, l, owner, domain.Coins(10), "pi_b")

	if _, err := confirm(s, l, "pi_missing", domain.Coins(10)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown ref error = %v", err)
	}
	if _, err := confirm(s, l, "pi_a", domain.Coins(11)); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("mismatched amount error = %v", err)
	}

	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := l.FailDeposit(ctx, tx, "pi_b")
		return err
	})
	if err != nil {
		t.Fatalf("FailDeposit: %v", err)
	}
	if _, err := confirm(s, l, "pi_b", domain.Coins(10)); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("confirm after fail error = %v", err)
	}
	if w := readWallet(t, s, owner); w.Available != 0 {
		t.Fatalf("available = %s, want 0", w.Available)
	}
}

func TestDepositIntentValidation(t *testing.T) {
	s, l := memory.New(), New(fixedClock())
	owner := newWallet(t, s, l, domain.OwnerAdvertiser, 0)
	createIntent(t, s, l, owner, domain.Coins(5), "pi_dup")

	tests := []struct {
		name   string
		owner  uuid.UUID
		amount domain.Amount
		ref    string
		kind   error
	}{
		{"below minimum", owner, 99, "pi_small", domain.ErrValidation},
		{"blank ref", owner, domain.Coins(5), "  ", domain.ErrValidation},
		{"duplicate ref", owner, domain.Coins(5), "pi_dup", domain.ErrConflict},
		{"unknown wallet", uuid.New(), domain.Coins(5), "pi_nowallet", domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
				_, err := l.CreateDepositIntent(ctx, tx, tt.owner, tt.amount, tt.ref)
				return err
			})
			if !errors.Is(err, tt.kind) {
				t.Fatalf("error = %v, want %v", err, tt.kind)
			}
		})
	}
}
