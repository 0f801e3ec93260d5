package enums

// AuditAction names the operator action recorded in the audit trail.
type AuditAction string

const (
	AuditActionPayoutRequested AuditAction = "PAYOUT_REQUESTED"
	AuditActionPayoutApproved  AuditAction = "PAYOUT_APPROVED"
	AuditActionPayoutConfirmed AuditAction = "PAYOUT_CONFIRMED"
	AuditActionPayoutRejected  AuditAction = "PAYOUT_REJECTED"
)

// AuditTargetType names the kind of record an audit event points at.
type AuditTargetType string

const (
	AuditTargetLedgerEntry AuditTargetType = "BalanceLedger"
	AuditTargetVendor      AuditTargetType = "VendorProfile"
)
