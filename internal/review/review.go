// Package review runs the content submission workflow. Approving a
// submission settles the creator's escrow; rejecting it refunds the
// advertiser and frees the creator's slot.
package review

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/punchamoorthee/creatorpay/internal/domain"
	"github.com/punchamoorthee/creatorpay/internal/escrow"
	"github.com/punchamoorthee/creatorpay/internal/ledger"
	"github.com/punchamoorthee/creatorpay/internal/store"
)

type Service struct {
	store  store.Store
	ledger *ledger.Ledger
	escrow *escrow.Engine
}

func NewService(s store.Store, l *ledger.Ledger, e *escrow.Engine) *Service {
	return &Service{store: s, ledger: l, escrow: e}
}

type SubmitInput struct {
	ContentURL  string
	Description string
}

func (in SubmitInput) validate() error {
	raw := strings.TrimSpace(in.ContentURL)
	if raw == "" {
		return domain.Validationf("content url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.Validationf("content url %q is not a valid http(s) url", raw)
	}
	if strings.TrimSpace(in.Description) == "" {
		return domain.Validationf("description is required")
	}
	return nil
}

// Submit delivers content for a campaign the creator was selected for. A
// creator has one submission per campaign; only a submission sent back for
// revision can be replaced.
func (s *Service) Submit(ctx context.Context, actor domain.Actor, campaignID uuid.UUID, in SubmitInput) (domain.Submission, error) {
	if err := actor.Require(domain.RoleContentCreator); err != nil {
		return domain.Submission{}, err
	}
	if err := in.validate(); err != nil {
		return domain.Submission{}, err
	}

	var sub domain.Submission
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		camp, err := tx.GetCampaign(ctx, campaignID)
		if err != nil {
			return err
		}
		if !camp.HasCreator(actor.UserID) {
			return domain.Unauthorizedf("creator is not selected for campaign %s", campaignID)
		}
		now := s.ledger.Now()

		existing, err := tx.FindSubmission(ctx, campaignID, actor.UserID)
		switch {
		case err == nil:
			if existing.Status != domain.SubmissionRevisionRequested {
				return domain.Conflictf("content already submitted for campaign %s", campaignID)
			}
			existing.ContentURL = strings.TrimSpace(in.ContentURL)
			existing.Description = in.Description
			existing.Status = domain.SubmissionSubmitted
			existing.SubmittedAt = now
			existing.ReviewedAt = nil
			sub = existing
			return tx.UpdateSubmission(ctx, sub)
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		sub = domain.Submission{
			ID:          uuid.New(),
			CampaignID:  campaignID,
			CreatorID:   actor.UserID,
			ContentURL:  strings.TrimSpace(in.ContentURL),
			Description: in.Description,
			Status:      domain.SubmissionSubmitted,
			SubmittedAt: now,
		}
		return tx.CreateSubmission(ctx, sub)
	})
	if err != nil {
		return domain.Submission{}, err
	}
	return sub, nil
}

type Outcome struct {
	Submission domain.Submission
	// Settle is set on approval, Refund on rejection.
	Settle *escrow.SettleReceipt
	Refund *escrow.RefundReceipt
}

// Review records the advertiser's decision on a submitted piece of content
// and moves the escrowed coins accordingly, in one storage transaction.
func (s *Service) Review(ctx context.Context, actor domain.Actor, submissionID uuid.UUID, decision domain.SubmissionStatus, feedback string) (Outcome, error) {
	if err := actor.Require(domain.RoleAdvertiser); err != nil {
		return Outcome{}, err
	}
	switch decision {
	case domain.SubmissionApproved, domain.SubmissionRejected, domain.SubmissionRevisionRequested:
	default:
		return Outcome{}, domain.Validationf("status must be approved, rejected or revision_requested, got %q", decision)
	}

	var out Outcome
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		out = Outcome{}
		sub, err := tx.GetSubmission(ctx, submissionID)
		if err != nil {
			return err
		}
		camp, err := tx.GetCampaign(ctx, sub.CampaignID)
		if err != nil {
			return err
		}
		if camp.AdvertiserID != actor.UserID {
			return domain.Unauthorizedf("caller is not the advertiser of campaign %s", camp.ID)
		}
		if sub.Status != domain.SubmissionSubmitted {
			return domain.Conflictf("submission %s is %s, not submitted", sub.ID, sub.Status)
		}

		switch decision {
		case domain.SubmissionApproved:
			receipt, err := s.escrow.Settle(ctx, tx, escrow.SettleRequest{
				AdvertiserID: actor.UserID,
				CreatorID:    sub.CreatorID,
				CampaignID:   camp.ID,
				SubmissionID: sub.ID,
				Amount:       camp.BudgetPerCreator,
			})
			if err != nil {
				return err
			}
			sub.AmountPaid = receipt.Payout
			sub.AdminFee = receipt.Fee
			out.Settle = &receipt
		case domain.SubmissionRejected:
			receipt, err := s.escrow.Refund(ctx, tx, escrow.RefundRequest{
				AdvertiserID: actor.UserID,
				CampaignID:   camp.ID,
				CreatorID:    sub.CreatorID,
				SubmissionID: sub.ID,
				Amount:       camp.BudgetPerCreator,
			})
			if err != nil {
				return err
			}
			out.Refund = &receipt
		}

		now := s.ledger.Now()
		sub.Status = decision
		sub.Feedback = feedback
		sub.ReviewedAt = &now
		if err := tx.UpdateSubmission(ctx, sub); err != nil {
			return err
		}
		out.Submission = sub
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// Get returns a submission to its creator or to the campaign's advertiser.
func (s *Service) Get(ctx context.Context, actor domain.Actor, submissionID uuid.UUID) (domain.Submission, error) {
	var sub domain.Submission
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		sub, err = tx.GetSubmission(ctx, submissionID)
		if err != nil {
			return err
		}
		if actor.Role == domain.RoleSuperAdmin || sub.CreatorID == actor.UserID {
			return nil
		}
		camp, err := tx.GetCampaign(ctx, sub.CampaignID)
		if err != nil {
			return err
		}
		if camp.AdvertiserID != actor.UserID {
			return domain.Unauthorizedf("caller may not view submission %s", submissionID)
		}
		return nil
	})
	if err != nil {
		return domain.Submission{}, err
	}
	return sub, nil
}
