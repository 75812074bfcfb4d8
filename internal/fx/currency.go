package fx

import (
	"fmt"
	"strings"
)

// Currency is a supported ISO-4217 currency code.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	RUB Currency = "RUB"
	CNY Currency = "CNY"
	TRY Currency = "TRY"
)

// Reference is the currency all published rates are anchored to. The rate
// source only quotes against RUB, so every conversion round-trips through it.
const Reference = RUB

var supported = map[Currency]struct{}{
	USD: {},
	EUR: {},
	RUB: {},
	CNY: {},
	TRY: {},
}

// ParseCurrency validates a raw currency code.
func ParseCurrency(raw string) (Currency, error) {
	code := Currency(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := supported[code]; !ok {
		return "", fmt.Errorf("fx: unsupported currency %q", raw)
	}
	return code, nil
}

// Supported reports whether the code belongs to the closed currency set.
func Supported(code Currency) bool {
	_, ok := supported[code]
	return ok
}

// MinorUnits returns the number of decimal places of the currency's minor unit.
func (c Currency) MinorUnits() int32 {
	return 2
}

func (c Currency) String() string {
	return string(c)
}
