package enums

import "slices"

// LedgerStatus tracks where a ledger entry sits in its settlement lifecycle.
// PENDING and PROCESSING are payout-only; PAID and CANCELLED are final.
type LedgerStatus string

const (
	LedgerStatusUnpaid     LedgerStatus = "UNPAID"
	LedgerStatusPending    LedgerStatus = "PENDING"
	LedgerStatusProcessing LedgerStatus = "PROCESSING"
	LedgerStatusPaid       LedgerStatus = "PAID"
	LedgerStatusCancelled  LedgerStatus = "CANCELLED"
)

var ledgerStatuses = []LedgerStatus{
	LedgerStatusUnpaid,
	LedgerStatusPending,
	LedgerStatusProcessing,
	LedgerStatusPaid,
	LedgerStatusCancelled,
}

func (s LedgerStatus) String() string { return string(s) }

func (s LedgerStatus) IsValid() bool { return slices.Contains(ledgerStatuses, s) }

func (s LedgerStatus) IsTerminal() bool {
	return s == LedgerStatusPaid || s == LedgerStatusCancelled
}

func ParseLedgerStatus(value string) (LedgerStatus, error) {
	return parseUpper(value, "ledger status", ledgerStatuses)
}
