package cron

import (
	"context"
	"fmt"

	"github.com/printhub/vendor-ledger/internal/health"
	"github.com/printhub/vendor-ledger/pkg/enums"
	"github.com/printhub/vendor-ledger/pkg/logger"
	"github.com/printhub/vendor-ledger/pkg/metrics"
)

type LedgerHealthJobParams struct {
	Logger  *logger.Logger
	Health  health.Service
	Metrics *metrics.LedgerMetrics
}

// NewLedgerHealthJob refreshes the ledger gauges from a fresh solvency report.
func NewLedgerHealthJob(params LedgerHealthJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Health == nil {
		return nil, fmt.Errorf("health service required")
	}
	return &ledgerHealthJob{
		logg:    params.Logger,
		health:  params.Health,
		metrics: params.Metrics,
	}, nil
}

type ledgerHealthJob struct {
	logg    *logger.Logger
	health  health.Service
	metrics *metrics.LedgerMetrics
}

func (j *ledgerHealthJob) Name() string { return "ledger-health" }

func (j *ledgerHealthJob) Run(ctx context.Context) error {
	stats, err := j.health.GetComprehensiveStats(ctx)
	if err != nil {
		return fmt.Errorf("ledger health: %w", err)
	}

	ratio, _ := stats.DebtToRevenueRatio.Float64()
	j.metrics.Observe(metrics.LedgerSnapshot{
		TotalDebtCents:            stats.TotalDebt,
		CommissionRevenueCents:    stats.TotalCommissionRevenue,
		DebtToRevenueRatio:        ratio,
		HealthStatus:              stats.HealthStatus,
		PendingPayoutRequests:     stats.PendingPayoutRequests,
		PendingPayoutsCents:       stats.PendingPayouts,
		TotalPlatformRevenueCents: stats.TotalPlatformRevenue,
	})

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"total_debt":              stats.TotalDebt,
		"commission_revenue":      stats.TotalCommissionRevenue,
		"debt_to_revenue_ratio":   stats.DebtToRevenueRatio.String(),
		"health_status":           stats.HealthStatus,
		"pending_payout_requests": stats.PendingPayoutRequests,
		"pending_payout_amount":   stats.PendingPayoutAmount,
	})
	if stats.HealthStatus != enums.HealthStatusHealthy {
		j.logg.Warn(logCtx, "cron.ledger_health")
		return nil
	}
	j.logg.Info(logCtx, "cron.ledger_health")
	return nil
}
