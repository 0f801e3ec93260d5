package enums

import "slices"

// LedgerTransactionType maps to the ledger_transaction_type check constraint.
type LedgerTransactionType string

const (
	LedgerTransactionSale       LedgerTransactionType = "SALE"
	LedgerTransactionPayout     LedgerTransactionType = "PAYOUT"
	LedgerTransactionRefund     LedgerTransactionType = "REFUND"
	LedgerTransactionAdjustment LedgerTransactionType = "ADJUSTMENT"
)

var transactionTypes = []LedgerTransactionType{
	LedgerTransactionSale,
	LedgerTransactionPayout,
	LedgerTransactionRefund,
	LedgerTransactionAdjustment,
}

// LedgerTransactionTypes returns a copy of every type in display order.
func LedgerTransactionTypes() []LedgerTransactionType {
	return slices.Clone(transactionTypes)
}

func (t LedgerTransactionType) String() string { return string(t) }

func (t LedgerTransactionType) IsValid() bool { return slices.Contains(transactionTypes, t) }

func ParseLedgerTransactionType(value string) (LedgerTransactionType, error) {
	return parseUpper(value, "ledger transaction type", transactionTypes)
}
