package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/punchamoorthee/creatorpay/internal/campaign"
	"github.com/punchamoorthee/creatorpay/internal/domain"
	"github.com/punchamoorthee/creatorpay/internal/review"
	"github.com/punchamoorthee/creatorpay/internal/store"
)

func (s *Service) CreateCampaign(ctx context.Context, actor domain.Actor, in campaign.CreateInput) (domain.Campaign, error) {
	return s.campaigns.Create(ctx, actor, in)
}

func (s *Service) ListCampaigns(ctx context.Context, filter store.CampaignFilter) ([]domain.Campaign, int, error) {
	return s.campaigns.List(ctx, filter)
}

func (s *Service) GetCampaign(ctx context.Context, id uuid.UUID) (domain.Campaign, error) {
	return s.campaigns.Get(ctx, id)
}

func (s *Service) SetCampaignStatus(ctx context.Context, actor domain.Actor, id uuid.UUID, status domain.CampaignStatus) (domain.Campaign, error) {
	return s.campaigns.SetStatus(ctx, actor, id, status)
}

func (s *Service) Apply(ctx context.Context, actor domain.Actor, campaignID uuid.UUID, in campaign.ApplyInput) (domain.Application, error) {
	return s.campaigns.Apply(ctx, actor, campaignID, in)
}

func (s *Service) ListApplications(ctx context.Context, actor domain.Actor, campaignID uuid.UUID) ([]domain.Application, error) {
	return s.campaigns.ListApplications(ctx, actor, campaignID)
}

// RespondToApplication accepts or rejects an application. Acceptance is the
// lockBudget operation.
func (s *Service) RespondToApplication(ctx context.Context, actor domain.Actor, applicationID uuid.UUID, decision domain.ApplicationStatus) (campaign.Response, error) {
	resp, err := s.campaigns.Respond(ctx, actor, applicationID, decision)
	if decision != domain.ApplicationAccepted {
		return resp, err
	}
	var amount domain.Amount
	if resp.Lock != nil {
		amount = resp.Lock.Hold.Amount
	}
	recordEscrow("lock", amount, err)
	if err != nil {
		return campaign.Response{}, err
	}
	s.invalidate(ctx, actor.UserID)
	s.logger.InfoContext(ctx, "budget locked",
		"operation", "lock_budget",
		"campaign_id", resp.Application.CampaignID,
		"creator_id", resp.Application.CreatorID,
		"amount", amount.String(),
	)
	return resp, nil
}

// LockBudget accepts an application, locking one slot's budget.
func (s *Service) LockBudget(ctx context.Context, actor domain.Actor, applicationID uuid.UUID) (campaign.Response, error) {
	return s.RespondToApplication(ctx, actor, applicationID, domain.ApplicationAccepted)
}

func (s *Service) SubmitContent(ctx context.Context, actor domain.Actor, campaignID uuid.UUID, in review.SubmitInput) (domain.Submission, error) {
	return s.reviews.Submit(ctx, actor, campaignID, in)
}

func (s *Service) GetSubmission(ctx context.Context, actor domain.Actor, submissionID uuid.UUID) (domain.Submission, error) {
	return s.reviews.Get(ctx, actor, submissionID)
}

// ReviewSubmission approves (settleSubmission), rejects (refundSubmission)
// or sends back a submission.
func (s *Service) ReviewSubmission(ctx context.Context, actor domain.Actor, submissionID uuid.UUID, decision domain.SubmissionStatus, feedback string) (review.Outcome, error) {
	out, err := s.reviews.Review(ctx, actor, submissionID, decision, feedback)

	switch decision {
	case domain.SubmissionApproved:
		var amount domain.Amount
		if out.Settle != nil {
			amount = out.Settle.Hold.Amount
		}
		recordEscrow("settle", amount, err)
		if err != nil {
			return review.Outcome{}, err
		}
		s.invalidate(ctx, actor.UserID, out.Submission.CreatorID)
		s.logger.InfoContext(ctx, "submission settled",
			"operation", "settle_submission",
			"submission_id", submissionID,
			"payout", out.Settle.Payout.String(),
			"admin_fee", out.Settle.Fee.String(),
		)
	case domain.SubmissionRejected:
		var amount domain.Amount
		if out.Refund != nil {
			amount = out.Refund.Hold.Amount
		}
		recordEscrow("refund", amount, err)
		if err != nil {
			return review.Outcome{}, err
		}
		s.invalidate(ctx, actor.UserID)
		s.logger.InfoContext(ctx, "submission refunded",
			"operation", "refund_submission",
			"submission_id", submissionID,
			"amount", amount.String(),
		)
	default:
		if err != nil {
			return review.Outcome{}, err
		}
	}
	return out, nil
}

func (s *Service) SettleSubmission(ctx context.Context, actor domain.Actor, submissionID uuid.UUID, feedback string) (review.Outcome, error) {
	return s.ReviewSubmission(ctx, actor, submissionID, domain.SubmissionApproved, feedback)
}

func (s *Service) RefundSubmission(ctx context.Context, actor domain.Actor, submissionID uuid.UUID, feedback string) (review.Outcome, error) {
	return s.ReviewSubmission(ctx, actor, submissionID, domain.SubmissionRejected, feedback)
}
