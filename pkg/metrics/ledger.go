package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/printhub/vendor-ledger/pkg/enums"
)

// LedgerSnapshot is the subset of the platform health report exported as gauges.
type LedgerSnapshot struct {
	TotalDebtCents            int64
	CommissionRevenueCents    int64
	DebtToRevenueRatio        float64
	HealthStatus              enums.HealthStatus
	PendingPayoutRequests     int64
	PendingPayoutsCents       int64
	TotalPlatformRevenueCents int64
}

// LedgerMetrics exposes the latest platform health report.
type LedgerMetrics struct {
	totalDebt         prometheus.Gauge
	commissionRevenue prometheus.Gauge
	ratio             prometheus.Gauge
	status            *prometheus.GaugeVec
	pendingRequests   prometheus.Gauge
	pendingPayouts    prometheus.Gauge
	platformRevenue   prometheus.Gauge
}

// NewLedgerMetrics registers the ledger gauges on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	m := &LedgerMetrics{
		totalDebt: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_total_debt_cents",
			Help: "Sum of all PAID ledger entries.",
		}),
		commissionRevenue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_commission_revenue_cents",
			Help: "Commission retained on paid orders.",
		}),
		ratio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_debt_to_revenue_ratio",
			Help: "Absolute total debt divided by commission revenue.",
		}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ledger_health_status",
			Help: "1 for the current platform health classification, 0 otherwise.",
		}, []string{"status"}),
		pendingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_pending_payout_requests",
			Help: "PAYOUT entries waiting in PENDING or PROCESSING.",
		}),
		pendingPayouts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_pending_payouts_cents",
			Help: "Unsettled SALE amounts owed to vendors.",
		}),
		platformRevenue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_platform_revenue_cents",
			Help: "Net sum across every ledger transaction type.",
		}),
	}
	reg.MustRegister(m.totalDebt, m.commissionRevenue, m.ratio, m.status, m.pendingRequests, m.pendingPayouts, m.platformRevenue)
	return m
}

// Observe replaces every gauge with the snapshot values.
func (m *LedgerMetrics) Observe(s LedgerSnapshot) {
	if m == nil || m.totalDebt == nil {
		return
	}
	m.totalDebt.Set(float64(s.TotalDebtCents))
	m.commissionRevenue.Set(float64(s.CommissionRevenueCents))
	m.ratio.Set(s.DebtToRevenueRatio)
	m.pendingRequests.Set(float64(s.PendingPayoutRequests))
	m.pendingPayouts.Set(float64(s.PendingPayoutsCents))
	m.platformRevenue.Set(float64(s.TotalPlatformRevenueCents))
	for _, status := range enums.HealthStatuses() {
		value := 0.0
		if status == s.HealthStatus {
			value = 1
		}
		m.status.WithLabelValues(status.String()).Set(value)
	}
}
