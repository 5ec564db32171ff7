package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/punchamoorthee/creatorpay/internal/domain"
	"github.com/punchamoorthee/creatorpay/internal/store"
)

type tx struct {
	tx pgx.Tx
}

const walletColumns = `owner_id, owner_kind, available, locked, total_deposit_usd, created_at, updated_at`

func (t *tx) GetWallet(ctx context.Context, ownerID uuid.UUID) (domain.Wallet, error) {
	var w domain.Wallet
	err := t.tx.QueryRow(ctx,
		"SELECT "+walletColumns+" FROM wallets WHERE owner_id = $1 FOR UPDATE", ownerID,
	).Scan(&w.OwnerID, &w.OwnerKind, &w.Available, &w.Locked, &w.TotalDepositUSD, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Wallet{}, domain.NotFoundf("wallet %s not found", ownerID)
	}
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("wallet lock failed: %w", err)
	}
	return w, nil
}

func (t *tx) CreateWallet(ctx context.Context, w domain.Wallet) error {
	_, err := t.tx.Exec(ctx,
		"INSERT INTO wallets ("+walletColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7)",
		w.OwnerID, w.OwnerKind, w.Available, w.Locked, w.TotalDepositUSD, w.CreatedAt, w.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.Conflictf("wallet %s already exists", w.OwnerID)
	}
	if err != nil {
		return fmt.Errorf("wallet insert failed: %w", err)
	}
	return nil
}

func (t *tx) UpdateWallet(ctx context.Context, w domain.Wallet) error {
	tag, err := t.tx.Exec(ctx,
		"UPDATE wallets SET available = $1, locked = $2, total_deposit_usd = $3, updated_at = $4 WHERE owner_id = $5",
		w.Available, w.Locked, w.TotalDepositUSD, w.UpdatedAt, w.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("wallet update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("wallet %s not found", w.OwnerID)
	}
	return nil
}

const campaignColumns = `c.id, c.advertiser_id, c.title, c.description, c.requirements, c.category, c.platform,
	c.budget_per_creator, c.max_creators, c.total_budget_locked, c.status, c.deadline, c.created_at, c.updated_at,
	ARRAY(SELECT cc.creator_id::text FROM campaign_creators cc WHERE cc.campaign_id = c.id ORDER BY cc.position)`

func scanCampaign(row pgx.Row) (domain.Campaign, error) {
	var (
		c      domain.Campaign
		roster []string
	)
	err := row.Scan(&c.ID, &c.AdvertiserID, &c.Title, &c.Description, &c.Requirements, &c.Category, &c.Platform,
		&c.BudgetPerCreator, &c.MaxCreators, &c.TotalBudgetLocked, &c.Status, &c.Deadline, &c.CreatedAt, &c.UpdatedAt,
		&roster)
	if err != nil {
		return domain.Campaign{}, err
	}
	c.SelectedCreators = make([]uuid.UUID, 0, len(roster))
	for _, raw := range roster {
		id, err := uuid.Parse(raw)
		if err != nil {
			return domain.Campaign{}, fmt.Errorf("roster entry %q: %w", raw, err)
		}
		c.SelectedCreators = append(c.SelectedCreators, id)
	}
	return c, nil
}

func (t *tx) GetCampaign(ctx context.Context, id uuid.UUID) (domain.Campaign, error) {
	c, err := scanCampaign(t.tx.QueryRow(ctx,
		"SELECT "+campaignColumns+" FROM campaigns c WHERE c.id = $1 FOR UPDATE OF c", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Campaign{}, domain.NotFoundf("campaign %s not found", id)
	}
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("campaign lock failed: %w", err)
	}
	return c, nil
}

func (t *tx) CreateCampaign(ctx context.Context, c domain.Campaign) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO campaigns (id, advertiser_id, title, description, requirements, category, platform,
			budget_per_creator, max_creators, total_budget_locked, status, deadline, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		c.ID, c.AdvertiserID, c.Title, c.Description, c.Requirements, c.Category, c.Platform,
		c.BudgetPerCreator, c.MaxCreators, c.TotalBudgetLocked, c.Status, c.Deadline, c.CreatedAt, c.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.Conflictf("campaign %s already exists", c.ID)
	}
	if err != nil {
		return fmt.Errorf("campaign insert failed: %w", err)
	}
	return t.writeRoster(ctx, c)
}

func (t *tx) UpdateCampaign(ctx context.Context, c domain.Campaign) error {
	tag, err := t.tx.Exec(ctx,
		"UPDATE campaigns SET total_budget_locked = $1, status = $2, updated_at = $3 WHERE id = $4",
		c.TotalBudgetLocked, c.Status, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("campaign update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("campaign %s not found", c.ID)
	}
	if _, err := t.tx.Exec(ctx, "DELETE FROM campaign_creators WHERE campaign_id = $1", c.ID); err != nil {
		return fmt.Errorf("roster reset failed: %w", err)
	}
	return t.writeRoster(ctx, c)
}

func (t *tx) writeRoster(ctx context.Context, c domain.Campaign) error {
	for i, creatorID := range c.SelectedCreators {
		_, err := t.tx.Exec(ctx,
			"INSERT INTO campaign_creators (campaign_id, creator_id, position) VALUES ($1, $2, $3)",
			c.ID, creatorID, i,
		)
		if isUniqueViolation(err) {
			return domain.Conflictf("creator %s already selected for campaign %s", creatorID, c.ID)
		}
		if err != nil {
			return fmt.Errorf("roster insert failed: %w", err)
		}
	}
	return nil
}

func (t *tx) ListCampaigns(ctx context.Context, f store.CampaignFilter) ([]domain.Campaign, int, error) {
	where := `($1 = '' OR c.status = $1) AND ($2 = '' OR c.category = $2) AND ($3 = '' OR c.platform = $3)`
	args := []any{string(f.Status), f.Category, string(f.Platform)}

	var total int
	if err := t.tx.QueryRow(ctx, "SELECT COUNT(*) FROM campaigns c WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("campaign count failed: %w", err)
	}

	limit := any(nil)
	if f.Limit > 0 {
		limit = f.Limit
	}
	rows, err := t.tx.Query(ctx,
		"SELECT "+campaignColumns+" FROM campaigns c WHERE "+where+" ORDER BY c.created_at DESC, c.id DESC LIMIT $4 OFFSET $5",
		append(args, limit, f.Offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("campaign list failed: %w", err)
	}
	campaigns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Campaign, error) {
		return scanCampaign(row)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("campaign scan failed: %w", err)
	}
	return campaigns, total, nil
}

const applicationColumns = `id, campaign_id, creator_id, proposal, expected_delivery_date, status, applied_at, responded_at`

func scanApplication(row pgx.Row) (domain.Application, error) {
	var a domain.Application
	err := row.Scan(&a.ID, &a.CampaignID, &a.CreatorID, &a.Proposal, &a.ExpectedDeliveryDate, &a.Status, &a.AppliedAt, &a.RespondedAt)
	return a, err
}

func (t *tx) GetApplication(ctx context.Context, id uuid.UUID) (domain.Application, error) {
	a, err := scanApplication(t.tx.QueryRow(ctx,
		"SELECT "+applicationColumns+" FROM applications WHERE id = $1 FOR UPDATE", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Application{}, domain.NotFoundf("application %s not found", id)
	}
	if err != nil {
		return domain.Application{}, fmt.Errorf("application lock failed: %w", err)
	}
	return a, nil
}

func (t *tx) FindApplication(ctx context.Context, campaignID, creatorID uuid.UUID) (domain.Application, error) {
	a, err := scanApplication(t.tx.QueryRow(ctx,
		"SELECT "+applicationColumns+" FROM applications WHERE campaign_id = $1 AND creator_id = $2 FOR UPDATE",
		campaignID, creatorID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Application{}, domain.NotFoundf("no application by %s on campaign %s", creatorID, campaignID)
	}
	if err != nil {
		return domain.Application{}, fmt.Errorf("application lookup failed: %w", err)
	}
	return a, nil
}

func (t *tx) CreateApplication(ctx context.Context, a domain.Application) error {
	_, err := t.tx.Exec(ctx,
		"INSERT INTO applications ("+applicationColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		a.ID, a.CampaignID, a.CreatorID, a.Proposal, a.ExpectedDeliveryDate, a.Status, a.AppliedAt, a.RespondedAt,
	)
	if isUniqueViolation(err) {
		return domain.Conflictf("creator %s already applied to campaign %s", a.CreatorID, a.CampaignID)
	}
	if err != nil {
		return fmt.Errorf("application insert failed: %w", err)
	}
	return nil
}

func (t *tx) UpdateApplication(ctx context.Context, a domain.Application) error {
	tag, err := t.tx.Exec(ctx,
		"UPDATE applications SET status = $1, responded_at = $2 WHERE id = $3",
		a.Status, a.RespondedAt, a.ID,
	)
	if err != nil {
		return fmt.Errorf("application update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("application %s not found", a.ID)
	}
	return nil
}

func (t *tx) ListApplications(ctx context.Context, campaignID uuid.UUID) ([]domain.Application, error) {
	rows, err := t.tx.Query(ctx,
		"SELECT "+applicationColumns+" FROM applications WHERE campaign_id = $1 ORDER BY applied_at DESC", campaignID)
	if err != nil {
		return nil, fmt.Errorf("application list failed: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Application, error) {
		return scanApplication(row)
	})
}

const submissionColumns = `id, campaign_id, creator_id, content_url, description, status, feedback,
	submitted_at, reviewed_at, amount_paid, admin_fee`

func scanSubmission(row pgx.Row) (domain.Submission, error) {
	var s domain.Submission
	err := row.Scan(&s.ID, &s.CampaignID, &s.CreatorID, &s.ContentURL, &s.Description, &s.Status, &s.Feedback,
		&s.SubmittedAt, &s.ReviewedAt, &s.AmountPaid, &s.AdminFee)
	return s, err
}

func (t *tx) GetSubmission(ctx context.Context, id uuid.UUID) (domain.Submission, error) {
	s, err := scanSubmission(t.tx.QueryRow(ctx,
		"SELECT "+submissionColumns+" FROM submissions WHERE id = $1 FOR UPDATE", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Submission{}, domain.NotFoundf("submission %s not found", id)
	}
	if err != nil {
		return domain.Submission{}, fmt.Errorf("submission lock failed: %w", err)
	}
	return s, nil
}

func (t *tx) FindSubmission(ctx context.Context, campaignID, creatorID uuid.UUID) (domain.Submission, error) {
	s, err := scanSubmission(t.tx.QueryRow(ctx,
		"SELECT "+submissionColumns+" FROM submissions WHERE campaign_id = $1 AND creator_id = $2 FOR UPDATE",
		campaignID, creatorID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Submission{}, domain.NotFoundf("no submission by %s on campaign %s", creatorID, campaignID)
	}
	if err != nil {
		return domain.Submission{}, fmt.Errorf("submission lookup failed: %w", err)
	}
	return s, nil
}

func (t *tx) CreateSubmission(ctx context.Context, s domain.Submission) error {
	_, err := t.tx.Exec(ctx,
		"INSERT INTO submissions ("+submissionColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)",
		s.ID, s.CampaignID, s.CreatorID, s.ContentURL, s.Description, s.Status, s.Feedback,
		s.SubmittedAt, s.ReviewedAt, s.AmountPaid, s.AdminFee,
	)
	if isUniqueViolation(err) {
		return domain.Conflictf("content already submitted by %s for campaign %s", s.CreatorID, s.CampaignID)
	}
	if err != nil {
		return fmt.Errorf("submission insert failed: %w", err)
	}
	return nil
}

func (t *tx) UpdateSubmission(ctx context.Context, s domain.Submission) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE submissions SET content_url = $1, description = $2, status = $3, feedback = $4,
			submitted_at = $5, reviewed_at = $6, amount_paid = $7, admin_fee = $8
		WHERE id = $9`,
		s.ContentURL, s.Description, s.Status, s.Feedback, s.SubmittedAt, s.ReviewedAt, s.AmountPaid, s.AdminFee, s.ID,
	)
	if err != nil {
		return fmt.Errorf("submission update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("submission %s not found", s.ID)
	}
	return nil
}

func (t *tx) GetHold(ctx context.Context, campaignID, creatorID uuid.UUID) (domain.EscrowHold, error) {
	var h domain.EscrowHold
	err := t.tx.QueryRow(ctx,
		`SELECT campaign_id, creator_id, advertiser_id, amount, status, locked_at, released_at
		FROM escrow_holds WHERE campaign_id = $1 AND creator_id = $2 FOR UPDATE`,
		campaignID, creatorID,
	).Scan(&h.CampaignID, &h.CreatorID, &h.AdvertiserID, &h.Amount, &h.Status, &h.LockedAt, &h.ReleasedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.EscrowHold{}, domain.NotFoundf("no escrow hold for creator %s on campaign %s", creatorID, campaignID)
	}
	if err != nil {
		return domain.EscrowHold{}, fmt.Errorf("hold lock failed: %w", err)
	}
	return h, nil
}

func (t *tx) CreateHold(ctx context.Context, h domain.EscrowHold) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO escrow_holds (campaign_id, creator_id, advertiser_id, amount, status, locked_at, released_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		h.CampaignID, h.CreatorID, h.AdvertiserID, h.Amount, h.Status, h.LockedAt, h.ReleasedAt,
	)
	if isUniqueViolation(err) {
		return domain.Conflictf("escrow hold for creator %s on campaign %s already exists", h.CreatorID, h.CampaignID)
	}
	if err != nil {
		return fmt.Errorf("hold insert failed: %w", err)
	}
	return nil
}

func (t *tx) UpdateHold(ctx context.Context, h domain.EscrowHold) error {
	tag, err := t.tx.Exec(ctx,
		"UPDATE escrow_holds SET status = $1, released_at = $2 WHERE campaign_id = $3 AND creator_id = $4",
		h.Status, h.ReleasedAt, h.CampaignID, h.CreatorID,
	)
	if err != nil {
		return fmt.Errorf("hold update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("no escrow hold for creator %s on campaign %s", h.CreatorID, h.CampaignID)
	}
	return nil
}

func (t *tx) CountHolds(ctx context.Context, campaignID uuid.UUID, status domain.HoldStatus) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx,
		"SELECT COUNT(*) FROM escrow_holds WHERE campaign_id = $1 AND status = $2", campaignID, status,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("hold count failed: %w", err)
	}
	return n, nil
}

const transactionColumns = `id, user_id, type, amount, currency, status, campaign_id, submission_id,
	external_ref, description, created_at, updated_at`

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var (
		rec domain.Transaction
		ref *string
	)
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Type, &rec.Amount, &rec.Currency, &rec.Status,
		&rec.CampaignID, &rec.SubmissionID, &ref, &rec.Description, &rec.CreatedAt, &rec.UpdatedAt)
	if ref != nil {
		rec.ExternalRef = *ref
	}
	return rec, err
}

func (t *tx) AppendTransaction(ctx context.Context, rec domain.Transaction) error {
	var ref *string
	if rec.ExternalRef != "" {
		ref = &rec.ExternalRef
	}
	_, err := t.tx.Exec(ctx,
		"INSERT INTO transactions ("+transactionColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)",
		rec.ID, rec.UserID, rec.Type, rec.Amount, rec.Currency, rec.Status, rec.CampaignID, rec.SubmissionID,
		ref, rec.Description, rec.CreatedAt, rec.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.Conflictf("external reference %q already recorded", rec.ExternalRef)
	}
	if err != nil {
		return fmt.Errorf("transaction insert failed: %w", err)
	}
	return nil
}

func (t *tx) GetTransactionByExternalRef(ctx context.Context, ref string) (domain.Transaction, error) {
	rec, err := scanTransaction(t.tx.QueryRow(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE external_ref = $1 FOR UPDATE", ref))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Transaction{}, domain.NotFoundf("no transaction for external reference %q", ref)
	}
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction lookup failed: %w", err)
	}
	return rec, nil
}

func (t *tx) SetTransactionStatus(ctx context.Context, id uuid.UUID, from, to domain.TransactionStatus, at time.Time) error {
	tag, err := t.tx.Exec(ctx,
		"UPDATE transactions SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4",
		to, at, id, from,
	)
	if err != nil {
		return fmt.Errorf("transaction status update failed: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var current domain.TransactionStatus
	err = t.tx.QueryRow(ctx, "SELECT status FROM transactions WHERE id = $1", id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFoundf("transaction %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("transaction status lookup failed: %w", err)
	}
	return domain.Conflictf("transaction %s is %s, expected %s", id, current, from)
}

func (t *tx) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	lim := any(nil)
	if limit > 0 {
		lim = limit
	}
	rows, err := t.tx.Query(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE user_id = $1 ORDER BY seq DESC LIMIT $2",
		userID, lim)
	if err != nil {
		return nil, fmt.Errorf("transaction list failed: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Transaction, error) {
		return scanTransaction(row)
	})
}

func (t *tx) EnqueueOutbox(ctx context.Context, rec domain.OutboxRecord) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO outbox (id, event_type, partition_key, payload, status, attempts, last_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.EventType, rec.PartitionKey, rec.Payload, rec.Status, rec.Attempts, rec.LastError, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("outbox insert failed: %w", err)
	}
	return nil
}
