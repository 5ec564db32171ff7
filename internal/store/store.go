// Package store defines the persistence contract shared by the postgres and
// in-memory backends.
//
// Every balance-affecting operation runs inside Store.WithTx. The Tx handed to
// the callback is the only way to touch state: reads taken through it see the
// same snapshot the writes commit against, and Get* methods on mutable rows
// (wallets, campaigns, applications, submissions, holds, pending deposits)
// lock the row until the transaction resolves. When the callback returns an
// error nothing it wrote is kept.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/creatorpay/internal/domain"
)

// Store opens transaction scopes and serves the outbox worker.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Outbox() OutboxStore
	Ping(ctx context.Context) error
	Close()
}

// Tx is a single isolated unit of work.
type Tx interface {
	GetWallet(ctx context.Context, ownerID uuid.UUID) (domain.Wallet, error)
	CreateWallet(ctx context.Context, w domain.Wallet) error
	UpdateWallet(ctx context.Context, w domain.Wallet) error

	GetCampaign(ctx context.Context, id uuid.UUID) (domain.Campaign, error)
	CreateCampaign(ctx context.Context, c domain.Campaign) error
	// UpdateCampaign persists status, counters and the full roster.
	UpdateCampaign(ctx context.Context, c domain.Campaign) error
	ListCampaigns(ctx context.Context, filter CampaignFilter) ([]domain.Campaign, int, error)

	GetApplication(ctx context.Context, id uuid.UUID) (domain.Application, error)
	FindApplication(ctx context.Context, campaignID, creatorID uuid.UUID) (domain.Application, error)
	CreateApplication(ctx context.Context, a domain.Application) error
	UpdateApplication(ctx context.Context, a domain.Application) error
	ListApplications(ctx context.Context, campaignID uuid.UUID) ([]domain.Application, error)

	GetSubmission(ctx context.Context, id uuid.UUID) (domain.Submission, error)
	FindSubmission(ctx context.Context, campaignID, creatorID uuid.UUID) (domain.Submission, error)
	CreateSubmission(ctx context.Context, s domain.Submission) error
	UpdateSubmission(ctx context.Context, s domain.Submission) error

	GetHold(ctx context.Context, campaignID, creatorID uuid.UUID) (domain.EscrowHold, error)
	CreateHold(ctx context.Context, h domain.EscrowHold) error
	UpdateHold(ctx context.Context, h domain.EscrowHold) error
	CountHolds(ctx context.Context, campaignID uuid.UUID, status domain.HoldStatus) (int, error)

	AppendTransaction(ctx context.Context, t domain.Transaction) error
	// GetTransactionByExternalRef locks the deposit row keyed by ref.
	GetTransactionByExternalRef(ctx context.Context, ref string) (domain.Transaction, error)
	// SetTransactionStatus is the only mutation allowed on a logged row.
	SetTransactionStatus(ctx context.Context, id uuid.UUID, from, to domain.TransactionStatus, at time.Time) error
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error)

	EnqueueOutbox(ctx context.Context, rec domain.OutboxRecord) error
}

// OutboxStore is used outside request transactions by the publisher loop.
type OutboxStore interface {
	ListPending(ctx context.Context, limit int) ([]domain.OutboxRecord, error)
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, deadLetter bool) error
}

type CampaignFilter struct {
	Status   domain.CampaignStatus
	Category string
	Platform domain.Platform
	Limit    int
	Offset   int
}
