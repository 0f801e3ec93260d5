package enums

import "slices"

// Currency identifies the single settlement currency a ledger books in.
type Currency string

const (
	CurrencyVND Currency = "VND"
	CurrencyUSD Currency = "USD"
)

var currencies = []Currency{CurrencyVND, CurrencyUSD}

func (c Currency) String() string { return string(c) }

func (c Currency) IsValid() bool { return slices.Contains(currencies, c) }

// ParseCurrency accepts any case, so "vnd" parses as VND.
func ParseCurrency(value string) (Currency, error) {
	return parseUpper(value, "currency", currencies)
}
