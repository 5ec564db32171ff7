package domain

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
)

// OwnerKind is the kind of party a wallet belongs to.
type OwnerKind string

const (
	OwnerAdvertiser     OwnerKind = "Advertiser"
	OwnerContentCreator OwnerKind = "ContentCreator"
)

// Bucket names one of the two balances held by a wallet.
type Bucket string

const (
	BucketAvailable Bucket = "available"
	BucketLocked    Bucket = "locked"
)

// Wallet holds a party's spendable and committed coins.
// Total is derived and never stored.
type Wallet struct {
	OwnerID         uuid.UUID `json:"owner_id"`
	OwnerKind       OwnerKind `json:"owner_kind"`
	Available       Amount    `json:"available"`
	Locked          Amount    `json:"locked"`
	TotalDepositUSD Amount    `json:"total_deposit_usd"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (w Wallet) Total() Amount { return w.Available + w.Locked }

func (w *Wallet) bucket(b Bucket) (*Amount, error) {
	switch b {
	case BucketAvailable:
		return &w.Available, nil
	case BucketLocked:
		return &w.Locked, nil
	default:
		return nil, Validationf("unknown bucket %q", b)
	}
}

// Credit adds amount to the bucket. The wallet total must stay representable.
func (w *Wallet) Credit(b Bucket, amount Amount) error {
	if amount <= 0 {
		return Validationf("credit amount must be positive, got %s", amount)
	}
	target, err := w.bucket(b)
	if err != nil {
		return err
	}
	if w.Available > math.MaxInt64-w.Locked-amount {
		return Validationf("credit of %s would overflow wallet %s", amount, w.OwnerID)
	}
	*target += amount
	return nil
}

// Debit removes amount from the bucket. The wallet is left untouched when the
// bucket would go negative.
func (w *Wallet) Debit(b Bucket, amount Amount) error {
	if amount <= 0 {
		return Validationf("debit amount must be positive, got %s", amount)
	}
	target, err := w.bucket(b)
	if err != nil {
		return err
	}
	if *target < amount {
		return InsufficientFundsf("wallet %s has %s %s, needs %s", w.OwnerID, *target, b, amount)
	}
	*target -= amount
	return nil
}

// Move transfers amount between two buckets of the same wallet.
func (w *Wallet) Move(amount Amount, from, to Bucket) error {
	if from == to {
		return Validationf("cannot move between identical buckets %q", from)
	}
	if _, err := w.bucket(to); err != nil {
		return err
	}
	if err := w.Debit(from, amount); err != nil {
		return err
	}
	return w.Credit(to, amount)
}

type CampaignStatus string

const (
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignCancelled CampaignStatus = "cancelled"
)

func (s CampaignStatus) Terminal() bool {
	return s == CampaignCompleted || s == CampaignCancelled
}

type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformBoth      Platform = "both"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformInstagram, PlatformTikTok, PlatformBoth:
		return true
	}
	return false
}

// Campaign is an advertiser's offer to pay BudgetPerCreator to up to
// MaxCreators creators. TotalBudgetLocked equals BudgetPerCreator times the
// roster size whenever no operation is in flight.
type Campaign struct {
	ID                uuid.UUID      `json:"id"`
	AdvertiserID      uuid.UUID      `json:"advertiser_id"`
	Title             string         `json:"title"`
	Description       string         `json:"description"`
	Requirements      string         `json:"requirements"`
	Category          string         `json:"category"`
	Platform          Platform       `json:"platform"`
	BudgetPerCreator  Amount         `json:"budget_per_creator"`
	MaxCreators       int            `json:"max_creators"`
	SelectedCreators  []uuid.UUID    `json:"selected_creators"`
	TotalBudgetLocked Amount         `json:"total_budget_locked"`
	Status            CampaignStatus `json:"status"`
	Deadline          time.Time      `json:"deadline"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func (c Campaign) IsFull() bool { return len(c.SelectedCreators) >= c.MaxCreators }

func (c Campaign) HasCreator(creatorID uuid.UUID) bool {
	return slices.Contains(c.SelectedCreators, creatorID)
}

// AddCreator appends creatorID to the roster. It fails when the campaign is
// full or the creator is already selected.
func (c *Campaign) AddCreator(creatorID uuid.UUID) error {
	if c.HasCreator(creatorID) {
		return Conflictf("creator %s already selected for campaign %s", creatorID, c.ID)
	}
	if c.IsFull() {
		return Conflictf("campaign %s is full", c.ID)
	}
	c.SelectedCreators = append(c.SelectedCreators, creatorID)
	return nil
}

func (c *Campaign) RemoveCreator(creatorID uuid.UUID) error {
	i := slices.Index(c.SelectedCreators, creatorID)
	if i < 0 {
		return Conflictf("creator %s is not selected for campaign %s", creatorID, c.ID)
	}
	c.SelectedCreators = slices.Delete(c.SelectedCreators, i, i+1)
	return nil
}

// ExpectedLocked is the budget counter value implied by the roster.
func (c Campaign) ExpectedLocked() Amount {
	return c.BudgetPerCreator * Amount(len(c.SelectedCreators))
}

// CheckInvariants reports a campaign whose budget counter disagrees with its
// roster or whose roster exceeds its slots. A failure is a bookkeeping bug,
// not a caller error.
func (c Campaign) CheckInvariants() error {
	if want := c.ExpectedLocked(); c.TotalBudgetLocked != want {
		return fmt.Errorf("campaign %s: total budget locked %s, roster implies %s", c.ID, c.TotalBudgetLocked, want)
	}
	if len(c.SelectedCreators) > c.MaxCreators {
		return fmt.Errorf("campaign %s: %d creators selected, max %d", c.ID, len(c.SelectedCreators), c.MaxCreators)
	}
	return nil
}

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationAccepted ApplicationStatus = "accepted"
	ApplicationRejected ApplicationStatus = "rejected"
)

// Application is a creator's request to join a campaign, unique per
// (campaign, creator).
type Application struct {
	ID                   uuid.UUID         `json:"id"`
	CampaignID           uuid.UUID         `json:"campaign_id"`
	CreatorID            uuid.UUID         `json:"creator_id"`
	Proposal             string            `json:"proposal"`
	ExpectedDeliveryDate time.Time         `json:"expected_delivery_date"`
	Status               ApplicationStatus `json:"status"`
	AppliedAt            time.Time         `json:"applied_at"`
	RespondedAt          *time.Time        `json:"responded_at,omitempty"`
}

type SubmissionStatus string

const (
	SubmissionSubmitted         SubmissionStatus = "submitted"
	SubmissionApproved          SubmissionStatus = "approved"
	SubmissionRejected          SubmissionStatus = "rejected"
	SubmissionRevisionRequested SubmissionStatus = "revision_requested"
)

// Submission is the content a selected creator delivers for review.
// AmountPaid and AdminFee are set only on approval.
type Submission struct {
	ID          uuid.UUID        `json:"id"`
	CampaignID  uuid.UUID        `json:"campaign_id"`
	CreatorID   uuid.UUID        `json:"creator_id"`
	ContentURL  string           `json:"content_url"`
	Description string           `json:"description"`
	Status      SubmissionStatus `json:"status"`
	Feedback    string           `json:"feedback,omitempty"`
	SubmittedAt time.Time        `json:"submitted_at"`
	ReviewedAt  *time.Time       `json:"reviewed_at,omitempty"`
	AmountPaid  Amount           `json:"amount_paid"`
	AdminFee    Amount           `json:"admin_fee"`
}

type TransactionType string

const (
	TxDeposit         TransactionType = "deposit"
	TxWithdrawal      TransactionType = "withdrawal"
	TxCampaignLock    TransactionType = "campaign_lock"
	TxCampaignUnlock  TransactionType = "campaign_unlock"
	TxPaymentSent     TransactionType = "payment_sent"
	TxPaymentReceived TransactionType = "payment_received"
	TxRefund          TransactionType = "refund"
	TxAdminFee        TransactionType = "admin_fee"
)

type Currency string

const (
	CurrencyUSD   Currency = "USD"
	CurrencyCoins Currency = "coins"
)

type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxCompleted TransactionStatus = "completed"
	TxFailed    TransactionStatus = "failed"
	TxCancelled TransactionStatus = "cancelled"
)

// Transaction is an append-only log row documenting one balance change.
type Transaction struct {
	ID           uuid.UUID         `json:"id"`
	UserID       uuid.UUID         `json:"user_id"`
	Type         TransactionType   `json:"type"`
	Amount       Amount            `json:"amount"`
	Currency     Currency          `json:"currency"`
	Status       TransactionStatus `json:"status"`
	CampaignID   *uuid.UUID        `json:"campaign_id,omitempty"`
	SubmissionID *uuid.UUID        `json:"submission_id,omitempty"`
	ExternalRef  string            `json:"external_ref,omitempty"`
	Description  string            `json:"description"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

type HoldStatus string

const (
	HoldHeld     HoldStatus = "held"
	HoldSettled  HoldStatus = "settled"
	HoldRefunded HoldStatus = "refunded"
)

// EscrowHold tracks the coins locked for one (campaign, creator) commitment.
// It is consumed exactly once, by a settle or a refund.
type EscrowHold struct {
	CampaignID   uuid.UUID  `json:"campaign_id"`
	CreatorID    uuid.UUID  `json:"creator_id"`
	AdvertiserID uuid.UUID  `json:"advertiser_id"`
	Amount       Amount     `json:"amount"`
	Status       HoldStatus `json:"status"`
	LockedAt     time.Time  `json:"locked_at"`
	ReleasedAt   *time.Time `json:"released_at,omitempty"`
}

type OutboxStatus string

const (
	OutboxPending      OutboxStatus = "pending"
	OutboxPublished    OutboxStatus = "published"
	OutboxDeadLettered OutboxStatus = "dead_lettered"
)

// OutboxRecord is a domain event written in the same storage transaction as
// the state change it announces.
type OutboxRecord struct {
	ID           uuid.UUID    `json:"id"`
	EventType    string       `json:"event_type"`
	PartitionKey string       `json:"partition_key"`
	Payload      []byte       `json:"payload"`
	Status       OutboxStatus `json:"status"`
	Attempts     int          `json:"attempts"`
	LastError    string       `json:"last_error,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	PublishedAt  *time.Time   `json:"published_at,omitempty"`
}
