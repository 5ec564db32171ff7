// Package models holds the HTTP request and response payloads.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/creatorpay/internal/domain"
)

// WalletBalance is the public view of a wallet.
type WalletBalance struct {
	OwnerID         uuid.UUID        `json:"owner_id"`
	OwnerKind       domain.OwnerKind `json:"owner_kind"`
	Available       domain.Amount    `json:"available"`
	Locked          domain.Amount    `json:"locked"`
	Total           domain.Amount    `json:"total"`
	TotalDepositUSD domain.Amount    `json:"total_deposit_usd"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func NewWalletBalance(w domain.Wallet) WalletBalance {
	return WalletBalance{
		OwnerID:         w.OwnerID,
		OwnerKind:       w.OwnerKind,
		Available:       w.Available,
		Locked:          w.Locked,
		Total:           w.Total(),
		TotalDepositUSD: w.TotalDepositUSD,
		UpdatedAt:       w.UpdatedAt,
	}
}

type DepositIntentRequest struct {
	Amount      domain.Amount `json:"amount"`
	ExternalRef string        `json:"external_ref"`
}

type DepositConfirmRequest struct {
	ExternalRef string        `json:"external_ref"`
	Amount      domain.Amount `json:"amount"`
}

type DepositFailRequest struct {
	ExternalRef string `json:"external_ref"`
}

type DepositResponse struct {
	Transaction domain.Transaction `json:"transaction"`
	Wallet      *WalletBalance     `json:"wallet,omitempty"`
	Credited    bool               `json:"credited"`
}

type CreateCampaignRequest struct {
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	Requirements     string          `json:"requirements"`
	Category         string          `json:"category"`
	Platform         domain.Platform `json:"platform"`
	BudgetPerCreator domain.Amount   `json:"budget_per_creator"`
	MaxCreators      int             `json:"max_creators"`
	Deadline         time.Time       `json:"deadline"`
}

type CampaignList struct {
	Campaigns []domain.Campaign `json:"campaigns"`
	Total     int               `json:"total"`
	Page      int               `json:"page"`
	Limit     int               `json:"limit"`
}

type StatusRequest struct {
	Status   string `json:"status"`
	Feedback string `json:"feedback,omitempty"`
}

type ApplyRequest struct {
	Proposal             string    `json:"proposal"`
	ExpectedDeliveryDate time.Time `json:"expected_delivery_date"`
}

// ApplicationResponse carries the advertiser's wallet when acceptance locked
// budget.
type ApplicationResponse struct {
	Application domain.Application `json:"application"`
	Wallet      *WalletBalance     `json:"wallet,omitempty"`
}

type SubmitRequest struct {
	ContentURL  string `json:"content_url"`
	Description string `json:"description"`
}

// ReviewResponse reports the money movement a review caused, if any.
type ReviewResponse struct {
	Submission       domain.Submission `json:"submission"`
	AdvertiserWallet *WalletBalance    `json:"advertiser_wallet,omitempty"`
	CreatorWallet    *WalletBalance    `json:"creator_wallet,omitempty"`
	Payout           *domain.Amount    `json:"payout,omitempty"`
	AdminFee         *domain.Amount    `json:"admin_fee,omitempty"`
}

type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}
