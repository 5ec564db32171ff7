// Package memory is an in-process Store. Transactions are serialized behind a
// single mutex and run against a private copy of the state that replaces the
// shared state only when the callback succeeds.
package memory

import (
	"bytes"
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/creatorpay/internal/domain"
	"github.com/punchamoorthee/creatorpay/internal/store"
)

type pairKey struct {
	campaignID uuid.UUID
	creatorID  uuid.UUID
}

type state struct {
	wallets      map[uuid.UUID]domain.Wallet
	campaigns    map[uuid.UUID]domain.Campaign
	applications map[uuid.UUID]domain.Application
	submissions  map[uuid.UUID]domain.Submission
	holds        map[pairKey]domain.EscrowHold
	transactions []domain.Transaction
	outbox       []domain.OutboxRecord
}

func newState() *state {
	return &state{
		wallets:      make(map[uuid.UUID]domain.Wallet),
		campaigns:    make(map[uuid.UUID]domain.Campaign),
		applications: make(map[uuid.UUID]domain.Application),
		submissions:  make(map[uuid.UUID]domain.Submission),
		holds:        make(map[pairKey]domain.EscrowHold),
	}
}

func (s *state) clone() *state {
	c := &state{
		wallets:      maps.Clone(s.wallets),
		campaigns:    make(map[uuid.UUID]domain.Campaign, len(s.campaigns)),
		applications: maps.Clone(s.applications),
		submissions:  maps.Clone(s.submissions),
		holds:        maps.Clone(s.holds),
		transactions: slices.Clone(s.transactions),
		outbox:       slices.Clone(s.outbox),
	}
	for id, camp := range s.campaigns {
		camp.SelectedCreators = slices.Clone(camp.SelectedCreators)
		c.campaigns[id] = camp
	}
	return c
}

type Store struct {
	mu    sync.Mutex
	state *state
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{state: newState()}
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, &tx{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *Store) Outbox() store.OutboxStore { return (*outbox)(s) }

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() {}

type tx struct {
	st *state
}

func (t *tx) GetWallet(_ context.Context, ownerID uuid.UUID) (domain.Wallet, error) {
	w, ok := t.st.wallets[ownerID]
	if !ok {
		return domain.Wallet{}, domain.NotFoundf("wallet %s not found", ownerID)
	}
	return w, nil
}

func (t *tx) CreateWallet(_ context.Context, w domain.Wallet) error {
	if _, ok := t.st.wallets[w.OwnerID]; ok {
		return domain.Conflictf("wallet %s already exists", w.OwnerID)
	}
	t.st.wallets[w.OwnerID] = w
	return nil
}

func (t *tx) UpdateWallet(_ context.Context, w domain.Wallet) error {
	if _, ok := t.st.wallets[w.OwnerID]; !ok {
		return domain.NotFoundf("wallet %s not found", w.OwnerID)
	}
	t.st.wallets[w.OwnerID] = w
	return nil
}

func (t *tx) GetCampaign(_ context.Context, id uuid.UUID) (domain.Campaign, error) {
	c, ok := t.st.campaigns[id]
	if !ok {
		return domain.Campaign{}, domain.NotFoundf("campaign %s not found", id)
	}
	c.SelectedCreators = slices.Clone(c.SelectedCreators)
	return c, nil
}

func (t *tx) CreateCampaign(_ context.Context, c domain.Campaign) error {
	if _, ok := t.st.campaigns[c.ID]; ok {
		return domain.Conflictf("campaign %s already exists", c.ID)
	}
	c.SelectedCreators = slices.Clone(c.SelectedCreators)
	t.st.campaigns[c.ID] = c
	return nil
}

func (t *tx) UpdateCampaign(_ context.Context, c domain.Campaign) error {
	if _, ok := t.st.campaigns[c.ID]; !ok {
		return domain.NotFoundf("campaign %s not found", c.ID)
	}
	c.SelectedCreators = slices.Clone(c.SelectedCreators)
	t.st.campaigns[c.ID] = c
	return nil
}

func (t *tx) ListCampaigns(_ context.Context, f store.CampaignFilter) ([]domain.Campaign, int, error) {
	var matched []domain.Campaign
	for _, c := range t.st.campaigns {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.Category != "" && c.Category != f.Category {
			continue
		}
		if f.Platform != "" && c.Platform != f.Platform {
			continue
		}
		c.SelectedCreators = slices.Clone(c.SelectedCreators)
		matched = append(matched, c)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) > 0
	})

	total := len(matched)
	start := min(f.Offset, total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}
	return matched[start:end], total, nil
}

func (t *tx) GetApplication(_ context.Context, id uuid.UUID) (domain.Application, error) {
	a, ok := t.st.applications[id]
	if !ok {
		return domain.Application{}, domain.NotFoundf("application %s not found", id)
	}
	return a, nil
}

func (t *tx) FindApplication(_ context.Context, campaignID, creatorID uuid.UUID) (domain.Application, error) {
	for _, a := range t.st.applications {
		if a.CampaignID == campaignID && a.CreatorID == creatorID {
			return a, nil
		}
	}
	return domain.Application{}, domain.NotFoundf("no application by %s on campaign %s", creatorID, campaignID)
}

func (t *tx) CreateApplication(ctx context.Context, a domain.Application) error {
	if _, err := t.FindApplication(ctx, a.CampaignID, a.CreatorID); err == nil {
		return domain.Conflictf("creator %s already applied to campaign %s", a.CreatorID, a.CampaignID)
	}
	t.st.applications[a.ID] = a
	return nil
}

func (t *tx) UpdateApplication(_ context.Context, a domain.Application) error {
	if _, ok := t.st.applications[a.ID]; !ok {
		return domain.NotFoundf("application %s not found", a.ID)
	}
	t.st.applications[a.ID] = a
	return nil
}

func (t *tx) ListApplications(_ context.Context, campaignID uuid.UUID) ([]domain.Application, error) {
	var out []domain.Application
	for _, a := range t.st.applications {
		if a.CampaignID == campaignID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppliedAt.After(out[j].AppliedAt) })
	return out, nil
}

func (t *tx) GetSubmission(_ context.Context, id uuid.UUID) (domain.Submission, error) {
	s, ok := t.st.submissions[id]
	if !ok {
		return domain.Submission{}, domain.NotFoundf("submission %s not found", id)
	}
	return s, nil
}

func (t *tx) FindSubmission(_ context.Context, campaignID, creatorID uuid.UUID) (domain.Submission, error) {
	for _, s := range t.st.submissions {
		if s.CampaignID == campaignID && s.CreatorID == creatorID {
			return s, nil
		}
	}
	return domain.Submission{}, domain.NotFoundf("no submission by %s on campaign %s", creatorID, campaignID)
}

func (t *tx) CreateSubmission(ctx context.Context, s domain.Submission) error {
	if _, err := t.FindSubmission(ctx, s.CampaignID, s.CreatorID); err == nil {
		return domain.Conflictf("content already submitted by %s for campaign %s", s.CreatorID, s.CampaignID)
	}
	t.st.submissions[s.ID] = s
	return nil
}

func (t *tx) UpdateSubmission(_ context.Context, s domain.Submission) error {
	if _, ok := t.st.submissions[s.ID]; !ok {
		return domain.NotFoundf("submission %s not found", s.ID)
	}
	t.st.submissions[s.ID] = s
	return nil
}

func (t *tx) GetHold(_ context.Context, campaignID, creatorID uuid.UUID) (domain.EscrowHold, error) {
	h, ok := t.st.holds[pairKey{campaignID, creatorID}]
	if !ok {
		return domain.EscrowHold{}, domain.NotFoundf("no escrow hold for creator %s on campaign %s", creatorID, campaignID)
	}
	return h, nil
}

func (t *tx) CreateHold(_ context.Context, h domain.EscrowHold) error {
	k := pairKey{h.CampaignID, h.CreatorID}
	if _, ok := t.st.holds[k]; ok {
		return domain.Conflictf("escrow hold for creator %s on campaign %s already exists", h.CreatorID, h.CampaignID)
	}
	t.st.holds[k] = h
	return nil
}

func (t *tx) UpdateHold(_ context.Context, h domain.EscrowHold) error {
	k := pairKey{h.CampaignID, h.CreatorID}
	if _, ok := t.st.holds[k]; !ok {
		return domain.NotFoundf("no escrow hold for creator %s on campaign %s", h.CreatorID, h.CampaignID)
	}
	t.st.holds[k] = h
	return nil
}

func (t *tx) CountHolds(_ context.Context, campaignID uuid.UUID, status domain.HoldStatus) (int, error) {
	n := 0
	for k, h := range t.st.holds {
		if k.campaignID == campaignID && h.Status == status {
			n++
		}
	}
	return n, nil
}

func (t *tx) AppendTransaction(_ context.Context, rec domain.Transaction) error {
	if rec.ExternalRef != "" {
		for _, existing := range t.st.transactions {
			if existing.ExternalRef == rec.ExternalRef {
				return domain.Conflictf("external reference %q already recorded", rec.ExternalRef)
			}
		}
	}
	t.st.transactions = append(t.st.transactions, rec)
	return nil
}

func (t *tx) GetTransactionByExternalRef(_ context.Context, ref string) (domain.Transaction, error) {
	for _, rec := range t.st.transactions {
		if rec.ExternalRef == ref {
			return rec, nil
		}
	}
	return domain.Transaction{}, domain.NotFoundf("no transaction for external reference %q", ref)
}

func (t *tx) SetTransactionStatus(_ context.Context, id uuid.UUID, from, to domain.TransactionStatus, at time.Time) error {
	for i, rec := range t.st.transactions {
		if rec.ID != id {
			continue
		}
		if rec.Status != from {
			return domain.Conflictf("transaction %s is %s, expected %s", id, rec.Status, from)
		}
		t.st.transactions[i].Status = to
		t.st.transactions[i].UpdatedAt = at
		return nil
	}
	return domain.NotFoundf("transaction %s not found", id)
}

func (t *tx) ListTransactions(_ context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for i := len(t.st.transactions) - 1; i >= 0; i-- {
		if t.st.transactions[i].UserID != userID {
			continue
		}
		out = append(out, t.st.transactions[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (t *tx) EnqueueOutbox(_ context.Context, rec domain.OutboxRecord) error {
	t.st.outbox = append(t.st.outbox, rec)
	return nil
}

type outbox Store

func (o *outbox) ListPending(_ context.Context, limit int) ([]domain.OutboxRecord, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []domain.OutboxRecord
	for _, rec := range o.state.outbox {
		if rec.Status != domain.OutboxPending {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (o *outbox) MarkPublished(_ context.Context, id uuid.UUID, at time.Time) error {
	return o.update(id, func(rec *domain.OutboxRecord) {
		rec.Status = domain.OutboxPublished
		rec.PublishedAt = &at
	})
}

func (o *outbox) MarkFailed(_ context.Context, id uuid.UUID, reason string, deadLetter bool) error {
	return o.update(id, func(rec *domain.OutboxRecord) {
		rec.Attempts++
		rec.LastError = reason
		if deadLetter {
			rec.Status = domain.OutboxDeadLettered
		}
	})
}

func (o *outbox) update(id uuid.UUID, fn func(*domain.OutboxRecord)) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i := range o.state.outbox {
		if o.state.outbox[i].ID == id {
			fn(&o.state.outbox[i])
			return nil
		}
	}
	return domain.NotFoundf("outbox record %s not found", id)
}
