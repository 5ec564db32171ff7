// Package campaign holds the campaign lifecycle and the application state
// machine. Accepting an application locks the creator's budget through the
// escrow engine inside the same storage transaction.
package campaign

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/creatorpay/internal/domain"
	"github.com/punchamoorthee/creatorpay/internal/escrow"
	"github.com/punchamoorthee/creatorpay/internal/ledger"
	"github.com/punchamoorthee/creatorpay/internal/store"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type Service struct {
	store  store.Store
	ledger *ledger.Ledger
	escrow *escrow.Engine
}

func NewService(s store.Store, l *ledger.Ledger, e *escrow.Engine) *Service {
	return &Service{store: s, ledger: l, escrow: e}
}

type CreateInput struct {
	Title            string
	Description      string
	Requirements     string
	Category         string
	Platform         domain.Platform
	BudgetPerCreator domain.Amount
	MaxCreators      int
	Deadline         time.Time
}

func (in CreateInput) validate(now time.Time) error {
	var missing []string
	for name, v := range map[string]string{
		"title":        in.Title,
		"description":  in.Description,
		"requirements": in.Requirements,
		"category":     in.Category,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return domain.Validationf("missing required fields: %s", strings.Join(missing, ", "))
	}
	if in.BudgetPerCreator < domain.Coins(1) {
		return domain.Validationf("budget per creator must be at least 1.00, got %s", in.BudgetPerCreator)
	}
	if in.MaxCreators < 1 {
		return domain.Validationf("max creators must be at least 1, got %d", in.MaxCreators)
	}
	if !in.Platform.Valid() {
		return domain.Validationf("unknown platform %q", in.Platform)
	}
	if !in.Deadline.After(now) {
		return domain.Validationf("deadline must be in the future")
	}
	return nil
}

// Create posts a new campaign. The advertiser must be able to cover every
// slot at posting time, but nothing is locked until an application is
// accepted.
func (s *Service) Create(ctx context.Context, actor domain.Actor, in CreateInput) (domain.Campaign, error) {
	if err := actor.Require(domain.RoleAdvertiser); err != nil {
		return domain.Campaign{}, err
	}
	now := s.ledger.Now()
	if err := in.validate(now); err != nil {
		return domain.Campaign{}, err
	}
	total, err := in.BudgetPerCreator.Times(in.MaxCreators)
	if err != nil {
		return domain.Campaign{}, domain.Validationf("budget per creator %s × %d creators is out of range", in.BudgetPerCreator, in.MaxCreators)
	}

	var camp domain.Campaign
	err = s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		wallet, err := tx.GetWallet(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if wallet.Available < total {
			return domain.InsufficientFundsf("campaign needs %s available coins, wallet has %s", total, wallet.Available)
		}
		camp = domain.Campaign{
			ID:               uuid.New(),
			AdvertiserID:     actor.UserID,
			Title:            strings.TrimSpace(in.Title),
			Description:      in.Description,
			Requirements:     in.Requirements,
			Category:         strings.TrimSpace(in.Category),
			Platform:         in.Platform,
			BudgetPerCreator: in.BudgetPerCreator,
			MaxCreators:      in.MaxCreators,
			SelectedCreators: []uuid.UUID{},
			Status:           domain.CampaignActive,
			Deadline:         in.Deadline.UTC(),
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		return tx.CreateCampaign(ctx, camp)
	})
	if err != nil {
		return domain.Campaign{}, err
	}
	return camp, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Campaign, error) {
	var camp domain.Campaign
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		camp, err = tx.GetCampaign(ctx, id)
		return err
	})
	return camp, err
}

// AnyStatus lists campaigns regardless of status.
const AnyStatus domain.CampaignStatus = "all"

// List returns one page of campaigns, newest first, and the total number of
// matches. An empty status filter lists active campaigns only.
func (s *Service) List(ctx context.Context, filter store.CampaignFilter) ([]domain.Campaign, int, error) {
	switch filter.Status {
	case "":
		filter.Status = domain.CampaignActive
	case AnyStatus:
		filter.Status = ""
	case domain.CampaignActive, domain.CampaignPaused, domain.CampaignCompleted, domain.CampaignCancelled:
	default:
		return nil, 0, domain.Validationf("unknown campaign status %q", filter.Status)
	}
	if filter.Platform != "" && !filter.Platform.Valid() {
		return nil, 0, domain.Validationf("unknown platform %q", filter.Platform)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var (
		out   []domain.Campaign
		total int
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, total, err = tx.ListCampaigns(ctx, filter)
		return err
	})
	return out, total, err
}

// SetStatus moves a campaign between active and paused, or closes it. A
// campaign can only be closed once every escrow hold on it is resolved.
func (s *Service) SetStatus(ctx context.Context, actor domain.Actor, id uuid.UUID, status domain.CampaignStatus) (domain.Campaign, error) {
	if err := actor.Require(domain.RoleAdvertiser); err != nil {
		return domain.Campaign{}, err
	}
	switch status {
	case domain.CampaignActive, domain.CampaignPaused, domain.CampaignCompleted, domain.CampaignCancelled:
	default:
		return domain.Campaign{}, domain.Validationf("unknown campaign status %q", status)
	}

	var camp domain.Campaign
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		camp, err = tx.GetCampaign(ctx, id)
		if err != nil {
			return err
		}
		if camp.AdvertiserID != actor.UserID {
			return domain.Unauthorizedf("caller is not the advertiser of campaign %s", id)
		}
		if camp.Status == status {
			return nil
		}
		if camp.Status.Terminal() {
			return domain.Conflictf("campaign %s is already %s", id, camp.Status)
		}
		if status.Terminal() {
			held, err := tx.CountHolds(ctx, id, domain.HoldHeld)
			if err != nil {
				return err
			}
			if held > 0 {
				return domain.Conflictf("campaign %s still has %d unsettled creators", id, held)
			}
		}
		camp.Status = status
		camp.UpdatedAt = s.ledger.Now()
		return tx.UpdateCampaign(ctx, camp)
	})
	if err != nil {
		return domain.Campaign{}, err
	}
	return camp, nil
}
