// Package service is the request-scoped facade the HTTP layer calls. It
// composes the ledger, escrow, campaign and review packages, keeps the
// balance cache coherent after each commit and records escrow metrics.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/creatorpay/internal/campaign"
	"github.com/punchamoorthee/creatorpay/internal/domain"
	"github.com/punchamoorthee/creatorpay/internal/escrow"
	"github.com/punchamoorthee/creatorpay/internal/ledger"
	"github.com/punchamoorthee/creatorpay/internal/review"
	"github.com/punchamoorthee/creatorpay/internal/store"
)

var (
	escrowOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "creatorpay_escrow_operations_total",
		Help: "Escrow primitives attempted, labeled by operation and outcome",
	}, []string{"operation", "outcome"})

	escrowAmountCentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "creatorpay_escrow_amount_cents_total",
		Help: "Coin hundredths moved by committed escrow primitives",
	}, []string{"operation"})
)

// BalanceCache is a best-effort wallet snapshot cache. Get reports the
// wallet's invalidation generation; Set must drop the fill if the wallet was
// invalidated since that generation was read.
type BalanceCache interface {
	Get(ctx context.Context, ownerID uuid.UUID) (w domain.Wallet, gen int64, ok bool, err error)
	Set(ctx context.Context, w domain.Wallet, gen int64) error
	Invalidate(ctx context.Context, ownerIDs ...uuid.UUID) error
}

type Service struct {
	store     store.Store
	ledger    *ledger.Ledger
	campaigns *campaign.Service
	reviews   *review.Service
	cache     BalanceCache
	logger    *slog.Logger
}

// New wires the domain packages over s. now defaults to the UTC wall clock.
func New(s store.Store, cache BalanceCache, logger *slog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	l := ledger.New(now)
	e := escrow.NewEngine(l)
	return &Service{
		store:     s,
		ledger:    l,
		campaigns: campaign.NewService(s, l, e),
		reviews:   review.NewService(s, l, e),
		cache:     cache,
		logger:    logger.With("module", "service", "layer", "application"),
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// invalidate drops cached balances after a commit. Failures only cost a
// stale read until the TTL expires.
func (s *Service) invalidate(ctx context.Context, ids ...uuid.UUID) {
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		s.logger.WarnContext(ctx, "balance cache invalidation failed",
			"operation", "cache_invalidate",
			"wallet_ids", ids,
			"error", err,
		)
	}
}

func recordEscrow(operation string, amount domain.Amount, err error) {
	if err != nil {
		escrowOperationsTotal.WithLabelValues(operation, domain.KindName(err)).Inc()
		return
	}
	escrowOperationsTotal.WithLabelValues(operation, "success").Inc()
	escrowAmountCentsTotal.WithLabelValues(operation).Add(float64(amount))
}
