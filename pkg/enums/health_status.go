package enums

// HealthStatus classifies the platform debt-to-revenue ratio.
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusWarning  HealthStatus = "warning"
	HealthStatusCritical HealthStatus = "critical"
)

// HealthStatuses lists every classification, lowest severity first.
func HealthStatuses() []HealthStatus {
	return []HealthStatus{HealthStatusHealthy, HealthStatusWarning, HealthStatusCritical}
}

func (h HealthStatus) String() string {
	return string(h)
}
