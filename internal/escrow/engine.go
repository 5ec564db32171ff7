// Package escrow implements the three fund-movement primitives of the
// marketplace: Lock, Settle and Refund.
//
// Each primitive runs inside the caller's store.Tx and touches the wallet
// balances, the campaign counters, the per-(campaign, creator) hold, the
// transaction log and the outbox. Any failure is returned before commit, so
// the store discards every write the primitive made.
package escrow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/punchamoorthee/creatorpay/internal/domain"
	"github.com/punchamoorthee/creatorpay/internal/events"
	"github.com/punchamoorthee/creatorpay/internal/ledger"
	"github.com/punchamoorthee/creatorpay/internal/store"
	"github.com/shopspring/decimal"
)

// DefaultFeeRate is the platform share withheld from every settlement.
var DefaultFeeRate = decimal.RequireFromString("0.20")

type Engine struct {
	ledger  *ledger.Ledger
	feeRate decimal.Decimal
}

func NewEngine(l *ledger.Ledger) *Engine {
	return &Engine{ledger: l, feeRate: DefaultFeeRate}
}

func (e *Engine) FeeRate() decimal.Decimal { return e.feeRate }

// Split divides a settlement into the creator payout and the admin fee. The
// two parts always sum to amount.
func Split(amount domain.Amount, feeRate decimal.Decimal) (payout, fee domain.Amount) {
	fee = amount.MulRate(feeRate)
	return amount - fee, fee
}

type LockRequest struct {
	AdvertiserID uuid.UUID
	CampaignID   uuid.UUID
	CreatorID    uuid.UUID
	Amount       domain.Amount
}

type LockReceipt struct {
	Wallet      domain.Wallet
	Campaign    domain.Campaign
	Hold        domain.EscrowHold
	Transaction domain.Transaction
}

// Lock commits amount of the advertiser's available coins to one creator slot
// on the campaign.
func (e *Engine) Lock(ctx context.Context, tx store.Tx, req LockRequest) (LockReceipt, error) {
	if req.AdvertiserID == uuid.Nil || req.CampaignID == uuid.Nil || req.CreatorID == uuid.Nil {
		return LockReceipt{}, domain.Validationf("advertiser, campaign and creator are required")
	}
	camp, err := e.ownedCampaign(ctx, tx, req.AdvertiserID, req.CampaignID)
	if err != nil {
		return LockReceipt{}, err
	}
	if camp.Status.Terminal() {
		return LockReceipt{}, domain.Conflictf("campaign %s is %s", camp.ID, camp.Status)
	}
	if req.Amount != camp.BudgetPerCreator {
		return LockReceipt{}, domain.Validationf("lock amount %s must equal budget per creator %s", req.Amount, camp.BudgetPerCreator)
	}
	if err := camp.AddCreator(req.CreatorID); err != nil {
		return LockReceipt{}, err
	}

	wallet, err := e.ledger.MoveBucket(ctx, tx, req.AdvertiserID, req.Amount, domain.BucketAvailable, domain.BucketLocked)
	if err != nil {
		return LockReceipt{}, err
	}

	now := e.ledger.Now()
	camp.TotalBudgetLocked += req.Amount
	camp.UpdatedAt = now
	if err := camp.CheckInvariants(); err != nil {
		return LockReceipt{}, err
	}
	if err := tx.UpdateCampaign(ctx, camp); err != nil {
		return LockReceipt{}, err
	}

	hold := domain.EscrowHold{
		CampaignID:   camp.ID,
		CreatorID:    req.CreatorID,
		AdvertiserID: req.AdvertiserID,
		Amount:       req.Amount,
		Status:       domain.HoldHeld,
		LockedAt:     now,
	}
	if err := tx.CreateHold(ctx, hold); err != nil {
		return LockReceipt{}, err
	}

	rec, err := e.ledger.Append(ctx, tx, ledger.Entry{
		UserID:      req.AdvertiserID,
		Type:        domain.TxCampaignLock,
		Amount:      req.Amount,
		CampaignID:  &camp.ID,
		Description: fmt.Sprintf("Budget locked for campaign: %s", camp.Title),
	})
	if err != nil {
		return LockReceipt{}, err
	}

	err = events.Enqueue(ctx, tx, events.EventEscrowLocked, camp.ID.String(), map[string]any{
		"campaign_id":   camp.ID,
		"advertiser_id": req.AdvertiserID,
		"creator_id":    req.CreatorID,
		"amount":        req.Amount,
		"transaction":   rec.ID,
	}, now)
	if err != nil {
		return LockReceipt{}, err
	}

	return LockReceipt{Wallet: wallet, Campaign: camp, Hold: hold, Transaction: rec}, nil
}

type SettleRequest struct {
	AdvertiserID uuid.UUID
	CreatorID    uuid.UUID
	CampaignID   uuid.UUID
	SubmissionID uuid.UUID
	Amount       domain.Amount
}

type SettleReceipt struct {
	AdvertiserWallet domain.Wallet
	CreatorWallet    domain.Wallet
	Hold             domain.EscrowHold
	Payout           domain.Amount
	Fee              domain.Amount
	Transactions     []domain.Transaction
}

// Settle pays a creator from the advertiser's locked coins. The creator
// receives amount minus the admin fee; the fee is recorded against the
// advertiser in the log and credited to no wallet.
func (e *Engine) Settle(ctx context.Context, tx store.Tx, req SettleRequest) (SettleReceipt, error) {
	camp, err := e.ownedCampaign(ctx, tx, req.AdvertiserID, req.CampaignID)
	if err != nil {
		return SettleReceipt{}, err
	}
	hold, err := e.openHold(ctx, tx, camp.ID, req.CreatorID, req.Amount)
	if err != nil {
		return SettleReceipt{}, err
	}

	wallets, err := e.ledger.LockWallets(ctx, tx, req.AdvertiserID, req.CreatorID)
	if err != nil {
		return SettleReceipt{}, err
	}
	adv, creator := wallets[req.AdvertiserID], wallets[req.CreatorID]

	payout, fee := Split(hold.Amount, e.feeRate)
	if err := adv.Debit(domain.BucketLocked, hold.Amount); err != nil {
		return SettleReceipt{}, err
	}
	if err := creator.Credit(domain.BucketAvailable, payout); err != nil {
		return SettleReceipt{}, err
	}
	now := e.ledger.Now()
	adv.UpdatedAt, creator.UpdatedAt = now, now
	if err := tx.UpdateWallet(ctx, adv); err != nil {
		return SettleReceipt{}, err
	}
	if err := tx.UpdateWallet(ctx, creator); err != nil {
		return SettleReceipt{}, err
	}

	hold.Status = domain.HoldSettled
	hold.ReleasedAt = &now
	if err := tx.UpdateHold(ctx, hold); err != nil {
		return SettleReceipt{}, err
	}

	var submissionID *uuid.UUID
	if req.SubmissionID != uuid.Nil {
		submissionID = &req.SubmissionID
	}
	paid, err := e.ledger.Append(ctx, tx, ledger.Entry{
		UserID:       req.CreatorID,
		Type:         domain.TxPaymentReceived,
		Amount:       payout,
		CampaignID:   &camp.ID,
		SubmissionID: submissionID,
		Description:  fmt.Sprintf("Payment received for campaign: %s", camp.Title),
	})
	if err != nil {
		return SettleReceipt{}, err
	}
	txs := []domain.Transaction{paid}
	if fee > 0 {
		feeRec, err := e.ledger.Append(ctx, tx, ledger.Entry{
			UserID:       req.AdvertiserID,
			Type:         domain.TxAdminFee,
			Amount:       fee,
			CampaignID:   &camp.ID,
			SubmissionID: submissionID,
			Description:  fmt.Sprintf("Admin fee for campaign: %s", camp.Title),
		})
		if err != nil {
			return SettleReceipt{}, err
		}
		txs = append(txs, feeRec)
	}

	err = events.Enqueue(ctx, tx, events.EventEscrowSettled, camp.ID.String(), map[string]any{
		"campaign_id":   camp.ID,
		"advertiser_id": req.AdvertiserID,
		"creator_id":    req.CreatorID,
		"submission_id": submissionID,
		"amount":        hold.Amount,
		"payout":        payout,
		"admin_fee":     fee,
	}, now)
	if err != nil {
		return SettleReceipt{}, err
	}

	return SettleReceipt{
		AdvertiserWallet: adv,
		CreatorWallet:    creator,
		Hold:             hold,
		Payout:           payout,
		Fee:              fee,
		Transactions:     txs,
	}, nil
}

type RefundRequest struct {
	AdvertiserID uuid.UUID
	CampaignID   uuid.UUID
	CreatorID    uuid.UUID
	SubmissionID uuid.UUID
	Amount       domain.Amount
}

type RefundReceipt struct {
	Wallet      domain.Wallet
	Campaign    domain.Campaign
	Hold        domain.EscrowHold
	Transaction domain.Transaction
}

// Refund releases a creator slot's locked coins back to the advertiser's
// available balance and frees the slot.
func (e *Engine) Refund(ctx context.Context, tx store.Tx, req RefundRequest) (RefundReceipt, error) {
	camp, err := e.ownedCampaign(ctx, tx, req.AdvertiserID, req.CampaignID)
	if err != nil {
		return RefundReceipt{}, err
	}
	hold, err := e.openHold(ctx, tx, camp.ID, req.CreatorID, req.Amount)
	if err != nil {
		return RefundReceipt{}, err
	}
	if camp.TotalBudgetLocked < hold.Amount {
		return RefundReceipt{}, fmt.Errorf("campaign %s budget counter %s below hold %s", camp.ID, camp.TotalBudgetLocked, hold.Amount)
	}
	if err := camp.RemoveCreator(req.CreatorID); err != nil {
		return RefundReceipt{}, err
	}

	wallet, err := e.ledger.MoveBucket(ctx, tx, req.AdvertiserID, hold.Amount, domain.BucketLocked, domain.BucketAvailable)
	if err != nil {
		return RefundReceipt{}, err
	}

	now := e.ledger.Now()
	camp.TotalBudgetLocked -= hold.Amount
	camp.UpdatedAt = now
	if err := camp.CheckInvariants(); err != nil {
		return RefundReceipt{}, err
	}
	if err := tx.UpdateCampaign(ctx, camp); err != nil {
		return RefundReceipt{}, err
	}

	hold.Status = domain.HoldRefunded
	hold.ReleasedAt = &now
	if err := tx.UpdateHold(ctx, hold); err != nil {
		return RefundReceipt{}, err
	}

	var submissionID *uuid.UUID
	if req.SubmissionID != uuid.Nil {
		submissionID = &req.SubmissionID
	}
	rec, err := e.ledger.Append(ctx, tx, ledger.Entry{
		UserID:       req.AdvertiserID,
		Type:         domain.TxRefund,
		Amount:       hold.Amount,
		CampaignID:   &camp.ID,
		SubmissionID: submissionID,
		Description:  fmt.Sprintf("Refund for rejected content: %s", camp.Title),
	})
	if err != nil {
		return RefundReceipt{}, err
	}

	err = events.Enqueue(ctx, tx, events.EventEscrowRefunded, camp.ID.String(), map[string]any{
		"campaign_id":   camp.ID,
		"advertiser_id": req.AdvertiserID,
		"creator_id":    req.CreatorID,
		"submission_id": submissionID,
		"amount":        hold.Amount,
	}, now)
	if err != nil {
		return RefundReceipt{}, err
	}

	return RefundReceipt{Wallet: wallet, Campaign: camp, Hold: hold, Transaction: rec}, nil
}

func (e *Engine) ownedCampaign(ctx context.Context, tx store.Tx, advertiserID, campaignID uuid.UUID) (domain.Campaign, error) {
	camp, err := tx.GetCampaign(ctx, campaignID)
	if err != nil {
		return domain.Campaign{}, err
	}
	if camp.AdvertiserID != advertiserID {
		return domain.Campaign{}, domain.Unauthorizedf("caller is not the advertiser of campaign %s", campaignID)
	}
	return camp, nil
}

// openHold returns the still-held escrow for the pair. A hold that was
// already settled or refunded is a double-settlement attempt.
func (e *Engine) openHold(ctx context.Context, tx store.Tx, campaignID, creatorID uuid.UUID, amount domain.Amount) (domain.EscrowHold, error) {
	hold, err := tx.GetHold(ctx, campaignID, creatorID)
	if err != nil {
		return domain.EscrowHold{}, err
	}
	if hold.Status != domain.HoldHeld {
		return domain.EscrowHold{}, domain.Conflictf("escrow for creator %s on campaign %s is already %s", creatorID, campaignID, hold.Status)
	}
	if amount != hold.Amount {
		return domain.EscrowHold{}, domain.Validationf("amount %s does not match escrowed %s", amount, hold.Amount)
	}
	return hold, nil
}
