package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/punchamoorthee/creatorpay/internal/campaign"
	"github.com/punchamoorthee/creatorpay/internal/domain"
	"github.com/punchamoorthee/creatorpay/internal/events"
	"github.com/punchamoorthee/creatorpay/internal/review"
	"github.com/punchamoorthee/creatorpay/internal/store/memory"
)

// recordingCache mirrors the redis cache: invalidation bumps a generation
// and a fill only lands when the generation it was given is still current.
type recordingCache struct {
	mu          sync.Mutex
	wallets     map[uuid.UUID]domain.Wallet
	generations map[uuid.UUID]int64
	invalidated []uuid.UUID
	failGet     bool
	beforeSet   func()
}

func newRecordingCache() *recordingCache {
	return &recordingCache{
		wallets:     make(map[uuid.UUID]domain.Wallet),
		generations: make(map[uuid.UUID]int64),
	}
}

func (c *recordingCache) Get(_ context.Context, id uuid.UUID) (domain.Wallet, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return domain.Wallet{}, 0, false, errors.New("redis down")
	}
	w, ok := c.wallets[id]
	return w, c.generations[id], ok, nil
}

func (c *recordingCache) Set(_ context.Context, w domain.Wallet, gen int64) error {
	if hook := c.beforeSet; hook != nil {
		c.beforeSet = nil
		hook()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[w.OwnerID] != gen {
		return nil
	}
	c.wallets[w.OwnerID] = w
	return nil
}

func (c *recordingCache) Invalidate(_ context.Context, ids ...uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.wallets, id)
		c.generations[id]++
		c.invalidated = append(c.invalidated, id)
	}
	return nil
}

var testNow = time.Date(2026, 7, 4, 10, 0, 0, 0, time.UTC)

func newTestService() (*Service, *memory.Store, *recordingCache) {
	st := memory.New()
	c := newRecordingCache()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(st, c, logger, func() time.Time { return testNow }), st, c
}

func fund(t *testing.T, svc *Service, actor domain.Actor, amount domain.Amount) {
	t.Helper()
	ref := "pi_" + uuid.NewString()
	if _, err := svc.CreateDepositIntent(context.Background(), actor, amount, ref); err != nil {
		t.Fatalf("deposit intent: %v", err)
	}
	if _, err := svc.ConfirmExternalDeposit(context.Background(), ref, amount); err != nil {
		t.Fatalf("confirm deposit: %v", err)
	}
}

func open(t *testing.T, svc *Service, role domain.Role) domain.Actor {
	t.Helper()
	a := domain.Actor{UserID: uuid.New(), Role: role}
	if _, err := svc.OpenWallet(context.Background(), a); err != nil {
		t.Fatalf("open wallet: %v", err)
	}
	return a
}

func TestBalanceReadThroughAndInvalidation(t *testing.T) {
	svc, _, c := newTestService()
	ctx := context.Background()
	adv := open(t, svc, domain.RoleAdvertiser)

	w, err := svc.GetWalletBalance(ctx, adv, adv.UserID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if w.Available != 0 {
		t.Fatalf("new wallet = %+v", w)
	}
	if _, _, ok, _ := c.Get(ctx, adv.UserID); !ok {
		t.Fatal("balance was not cached")
	}

	fund(t, svc, adv, domain.Coins(50))
	if _, _, ok, _ := c.Get(ctx, adv.UserID); ok {
		t.Fatal("deposit did not invalidate the cached balance")
	}
	w, err = svc.GetWalletBalance(ctx, adv, adv.UserID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if w.Available != domain.Coins(50) || w.TotalDepositUSD != domain.Coins(50) {
		t.Fatalf("funded wallet = %+v", w)
	}

	c.failGet = true
	if _, err := svc.GetWalletBalance(ctx, adv, adv.UserID); err != nil {
		t.Fatalf("balance with cache down: %v", err)
	}
}

func TestBalanceFillDoesNotOutliveConcurrentCommit(t *testing.T) {
	svc, _, c := newTestService()
	ctx := context.Background()
	adv := open(t, svc, domain.RoleAdvertiser)
	ref := "pi_" + uuid.NewString()
	if _, err := svc.CreateDepositIntent(ctx, adv, domain.Coins(50), ref); err != nil {
		t.Fatalf("deposit intent: %v", err)
	}

	// The deposit commits after the reader loaded the empty wallet but before
	// it fills the cache.
	c.beforeSet = func() {
		if _, err := svc.ConfirmExternalDeposit(ctx, ref, domain.Coins(50)); err != nil {
			t.Errorf("confirm deposit: %v", err)
		}
	}
	w, err := svc.GetWalletBalance(ctx, adv, adv.UserID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if w.Available != 0 {
		t.Fatalf("racing read = %+v, want the pre-deposit snapshot", w)
	}
	if _, _, ok, _ := c.Get(ctx, adv.UserID); ok {
		t.Fatal("pre-deposit snapshot was cached after the deposit invalidated it")
	}

	w, err = svc.GetWalletBalance(ctx, adv, adv.UserID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if w.Available != domain.Coins(50) {
		t.Fatalf("balance after deposit = %+v", w)
	}
}

func TestBalanceVisibility(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	adv := open(t, svc, domain.RoleAdvertiser)
	creator := open(t, svc, domain.RoleContentCreator)
	admin := domain.Actor{UserID: uuid.New(), Role: domain.RoleSuperAdmin}

	if _, err := svc.GetWalletBalance(ctx, creator, adv.UserID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("cross read error = %v, want unauthorized", err)
	}
	if _, err := svc.GetWalletBalance(ctx, admin, adv.UserID); err != nil {
		t.Fatalf("admin read: %v", err)
	}
	if _, err := svc.OpenWallet(ctx, admin); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("admin open wallet error = %v, want validation", err)
	}
	if _, err := svc.GetWalletBalance(ctx, admin, uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing wallet error = %v, want not found", err)
	}
}

func TestConfirmDepositTwiceCreditsOnceAndEmitsOneEvent(t *testing.T) {
	svc, st, _ := newTestService()
	ctx := context.Background()
	adv := open(t, svc, domain.RoleAdvertiser)

	if _, err := svc.CreateDepositIntent(ctx, adv, domain.Coins(25), "pi_123"); err != nil {
		t.Fatalf("intent: %v", err)
	}
	first, err := svc.ConfirmExternalDeposit(ctx, "pi_123", domain.Coins(25))
	if err != nil || !first.Credited {
		t.Fatalf("first confirm = %+v, %v", first, err)
	}
	second, err := svc.ConfirmExternalDeposit(ctx, "pi_123", domain.Coins(25))
	if err != nil || second.Credited {
		t.Fatalf("second confirm = %+v, %v", second, err)
	}

	w, err := svc.GetWalletBalance(ctx, adv, adv.UserID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if w.Available != domain.Coins(25) {
		t.Fatalf("available = %s, want 25.00", w.Available)
	}

	pending, err := st.Outbox().ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("outbox: %v", err)
	}
	if len(pending) != 1 || pending[0].EventType != events.EventDepositConfirmed {
		t.Fatalf("outbox = %+v", pending)
	}

	if _, err := svc.FailExternalDeposit(ctx, "pi_123"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("fail after confirm error = %v, want conflict", err)
	}
}

func TestEscrowLifecycleThroughFacade(t *testing.T) {
	svc, st, c := newTestService()
	ctx := context.Background()
	adv := open(t, svc, domain.RoleAdvertiser)
	creator := open(t, svc, domain.RoleContentCreator)
	fund(t, svc, adv, domain.Coins(100))

	camp, err := svc.CreateCampaign(ctx, adv, campaign.CreateInput{
		Title:            "Launch",
		Description:      "Launch video",
		Requirements:     "60s",
		Category:         "gaming",
		Platform:         domain.PlatformBoth,
		BudgetPerCreator: domain.Coins(40),
		MaxCreators:      2,
		Deadline:         testNow.Add(72 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	app, err := svc.Apply(ctx, creator, camp.ID, campaign.ApplyInput{Proposal: "yes", ExpectedDeliveryDate: testNow.Add(24 * time.Hour)})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	locks := testutil.ToFloat64(escrowOperationsTotal.WithLabelValues("lock", "success"))
	if _, err := svc.LockBudget(ctx, adv, app.ID); err != nil {
		t.Fatalf("lock budget: %v", err)
	}
	if got := testutil.ToFloat64(escrowOperationsTotal.WithLabelValues("lock", "success")); got != locks+1 {
		t.Fatalf("lock metric = %v, want %v", got, locks+1)
	}

	sub, err := svc.SubmitContent(ctx, creator, camp.ID, review.SubmitInput{ContentURL: "https://example.com/v", Description: "done"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	c.invalidated = nil
	out, err := svc.SettleSubmission(ctx, adv, sub.ID, "nice")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if out.Settle.Payout != domain.Coins(32) {
		t.Fatalf("payout = %s", out.Settle.Payout)
	}
	if len(c.invalidated) != 2 {
		t.Fatalf("settle invalidated %v, want advertiser and creator", c.invalidated)
	}

	if _, err := svc.RefundSubmission(ctx, adv, sub.ID, ""); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("refund after settle error = %v, want conflict", err)
	}

	cw, err := svc.GetWalletBalance(ctx, creator, creator.UserID)
	if err != nil {
		t.Fatalf("creator balance: %v", err)
	}
	if cw.Available != domain.Coins(32) {
		t.Fatalf("creator available = %s", cw.Available)
	}

	var types []string
	pending, _ := st.Outbox().ListPending(ctx, 50)
	for _, rec := range pending {
		types = append(types, rec.EventType)
	}
	want := []string{events.EventDepositConfirmed, events.EventEscrowLocked, events.EventEscrowSettled}
	if len(types) != len(want) {
		t.Fatalf("outbox events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("outbox events = %v, want %v", types, want)
		}
	}

	history, err := svc.ListTransactions(ctx, adv, adv.UserID, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("advertiser history has %d rows, want deposit, lock and fee", len(history))
	}
}
