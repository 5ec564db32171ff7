package campaign

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/creatorpay/internal/domain"
	"github.com/punchamoorthee/creatorpay/internal/escrow"
	"github.com/punchamoorthee/creatorpay/internal/store"
)

type ApplyInput struct {
	Proposal             string
	ExpectedDeliveryDate time.Time
}

// Apply records a creator's application to an active campaign. The creator
// must already hold a wallet so an approved submission can be paid.
func (s *Service) Apply(ctx context.Context, actor domain.Actor, campaignID uuid.UUID, in ApplyInput) (domain.Application, error) {
	if err := actor.Require(domain.RoleContentCreator); err != nil {
		return domain.Application{}, err
	}
	if strings.TrimSpace(in.Proposal) == "" {
		return domain.Application{}, domain.Validationf("proposal is required")
	}
	if in.ExpectedDeliveryDate.IsZero() {
		return domain.Application{}, domain.Validationf("expected delivery date is required")
	}

	var app domain.Application
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		camp, err := tx.GetCampaign(ctx, campaignID)
		if err != nil {
			return err
		}
		if _, err := tx.GetWallet(ctx, actor.UserID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NotFoundf("creator %s has no wallet, open one before applying", actor.UserID)
			}
			return err
		}
		now := s.ledger.Now()
		if camp.Status != domain.CampaignActive {
			return domain.Conflictf("campaign %s is %s", camp.ID, camp.Status)
		}
		if now.After(camp.Deadline) {
			return domain.Conflictf("campaign %s deadline has passed", camp.ID)
		}
		if camp.IsFull() {
			return domain.Conflictf("campaign %s is full", camp.ID)
		}

		_, err = tx.FindApplication(ctx, campaignID, actor.UserID)
		switch {
		case err == nil:
			return domain.Conflictf("already applied to campaign %s", campaignID)
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		app = domain.Application{
			ID:                   uuid.New(),
			CampaignID:           campaignID,
			CreatorID:            actor.UserID,
			Proposal:             in.Proposal,
			ExpectedDeliveryDate: in.ExpectedDeliveryDate.UTC(),
			Status:               domain.ApplicationPending,
			AppliedAt:            now,
		}
		return tx.CreateApplication(ctx, app)
	})
	if err != nil {
		return domain.Application{}, err
	}
	return app, nil
}

func (s *Service) ListApplications(ctx context.Context, actor domain.Actor, campaignID uuid.UUID) ([]domain.Application, error) {
	if err := actor.Require(domain.RoleAdvertiser); err != nil {
		return nil, err
	}
	var apps []domain.Application
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		camp, err := tx.GetCampaign(ctx, campaignID)
		if err != nil {
			return err
		}
		if camp.AdvertiserID != actor.UserID {
			return domain.Unauthorizedf("caller is not the advertiser of campaign %s", campaignID)
		}
		apps, err = tx.ListApplications(ctx, campaignID)
		return err
	})
	return apps, err
}

type Response struct {
	Application domain.Application
	// Lock is set when the application was accepted.
	Lock *escrow.LockReceipt
}

// Respond accepts or rejects a pending application. Acceptance locks the
// campaign's per-creator budget; if the lock fails the application stays
// pending.
func (s *Service) Respond(ctx context.Context, actor domain.Actor, applicationID uuid.UUID, decision domain.ApplicationStatus) (Response, error) {
	if err := actor.Require(domain.RoleAdvertiser); err != nil {
		return Response{}, err
	}
	if !slices.Contains([]domain.ApplicationStatus{domain.ApplicationAccepted, domain.ApplicationRejected}, decision) {
		return Response{}, domain.Validationf("status must be accepted or rejected, got %q", decision)
	}

	var resp Response
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		resp = Response{}
		app, err := tx.GetApplication(ctx, applicationID)
		if err != nil {
			return err
		}
		camp, err := tx.GetCampaign(ctx, app.CampaignID)
		if err != nil {
			return err
		}
		if camp.AdvertiserID != actor.UserID {
			return domain.Unauthorizedf("caller is not the advertiser of campaign %s", camp.ID)
		}
		if app.Status != domain.ApplicationPending {
			return domain.Conflictf("application %s is already %s", app.ID, app.Status)
		}

		if decision == domain.ApplicationAccepted {
			if camp.Status != domain.CampaignActive {
				return domain.Conflictf("campaign %s is %s", camp.ID, camp.Status)
			}
			receipt, err := s.escrow.Lock(ctx, tx, escrow.LockRequest{
				AdvertiserID: actor.UserID,
				CampaignID:   camp.ID,
				CreatorID:    app.CreatorID,
				Amount:       camp.BudgetPerCreator,
			})
			if err != nil {
				return err
			}
			resp.Lock = &receipt
		}

		now := s.ledger.Now()
		app.Status = decision
		app.RespondedAt = &now
		if err := tx.UpdateApplication(ctx, app); err != nil {
			return err
		}
		resp.Application = app
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}
