package enums

import (
	"fmt"
	"slices"
	"strings"
)

// parseUpper matches raw input against values after trimming and upper-casing
// it. Ledger enums are stored upper case; kind names the enum in errors.
func parseUpper[T ~string](raw, kind string, values []T) (T, error) {
	candidate := T(strings.ToUpper(strings.TrimSpace(raw)))
	if slices.Contains(values, candidate) {
		return candidate, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
