package service

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/banking-pipeline/internal/cache"
	"github.com/andresuchdata/banking-pipeline/internal/domain"
	"github.com/andresuchdata/banking-pipeline/internal/reporting"
	"github.com/rs/zerolog/log"
)

const defaultRowLimit = 100

// TransactionReader loads the reporting rows, newest first.
type TransactionReader interface {
	Transactions(ctx context.Context) ([]domain.Transaction, error)
}

type DashboardService struct {
	reader   TransactionReader
	cache    cache.DashboardCache
	rowLimit int
	now      func() time.Time
}

func NewDashboardService(reader TransactionReader, cacheImpl cache.DashboardCache, rowLimit int) *DashboardService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopDashboardCache()
	}
	if rowLimit <= 0 {
		rowLimit = defaultRowLimit
	}
	return &DashboardService{reader: reader, cache: cacheImpl, rowLimit: rowLimit, now: time.Now}
}

func (s *DashboardService) RowLimit() int { return s.rowLimit }

// GetDashboard computes metrics over the full result set and keeps only the
// first rowLimit rows for display.
func (s *DashboardService) GetDashboard(ctx context.Context) (*domain.Dashboard, error) {
	if dashboard, ok, err := s.cache.Get(ctx); err == nil && ok {
		return dashboard, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("dashboard: cache get failed")
	}

	rows, err := s.reader.Transactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	dashboard := &domain.Dashboard{
		Metrics:      reporting.Aggregate(rows),
		Transactions: reporting.Head(rows, s.rowLimit),
		GeneratedAt:  s.now().UTC(),
	}
	if dashboard.Transactions == nil {
		dashboard.Transactions = make([]domain.Transaction, 0)
	}

	if err := s.cache.Set(ctx, dashboard); err != nil {
		log.Warn().Err(err).Msg("dashboard: cache set failed")
	}

	log.Debug().
		Int("rows", len(rows)).
		Float64("total_volume", dashboard.Metrics.TotalVolume).
		Msg("dashboard: recomputed")
	return dashboard, nil
}

// Refresh drops the cached dashboard and recomputes it.
func (s *DashboardService) Refresh(ctx context.Context) (*domain.Dashboard, error) {
	if err := s.cache.InvalidateAll(ctx); err != nil {
		log.Warn().Err(err).Msg("dashboard: cache invalidate failed")
	}
	return s.GetDashboard(ctx)
}
