package reporting

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PriceConverter renders a reward amount in a display currency.
type PriceConverter func(decimal.Decimal) string

// FixedRate converts at a static rate, e.g. FixedRate(decimal.NewFromFloat(1.25), "USD").
func FixedRate(rate decimal.Decimal, symbol string) PriceConverter {
	return func(amount decimal.Decimal) string {
		return fmt.Sprintf("%s %s", amount.Mul(rate).StringFixed(2), symbol)
	}
}

// TruncateAddress shortens a long actor address to its first 8 and last 6 characters.
func TruncateAddress(addr string) string {
	const head, tail = 8, 6
	if len(addr) <= head+tail+3 {
		return addr
	}
	return addr[:head] + "..." + addr[len(addr)-tail:]
}
