package enums

import "slices"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateLedgerEntry OutboxAggregateType = "ledger_entry"
	AggregateVendor      OutboxAggregateType = "vendor"
)

func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains([]OutboxAggregateType{AggregateLedgerEntry, AggregateVendor}, a)
}

// OutboxEventType maps to the event_type column of outbox_events and to the
// event_type attribute on published messages.
type OutboxEventType string

const (
	EventAuditRecorded OutboxEventType = "audit_recorded"
	EventOrderSettled  OutboxEventType = "order_settled"
)

func (e OutboxEventType) IsValid() bool {
	return slices.Contains([]OutboxEventType{EventAuditRecorded, EventOrderSettled}, e)
}

// OutboxDLQErrorReason records why the relay gave up on an outbox row.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts marks rows whose transient failures exhausted
	// the retry budget.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonNonRetryable marks rows that can never be published as is.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
