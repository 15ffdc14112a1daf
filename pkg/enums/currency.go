package enums

import (
	"fmt"
	"strings"
)

// Currency is an ISO 4217 code that tour prices and commissions are quoted in.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyPHP Currency = "PHP"
	CurrencyIDR Currency = "IDR"
	CurrencyLBP Currency = "LBP"
)

var supportedCurrencies = map[Currency]struct{}{
	CurrencyUSD: {},
	CurrencyEUR: {},
	CurrencyPHP: {},
	CurrencyIDR: {},
	CurrencyLBP: {},
}

func (c Currency) String() string { return string(c) }

func (c Currency) IsValid() bool {
	_, ok := supportedCurrencies[c]
	return ok
}

// ParseCurrency accepts codes in any case with surrounding blanks.
func ParseCurrency(value string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(value)))
	if !c.IsValid() {
		return "", fmt.Errorf("unsupported currency %q", value)
	}
	return c, nil
}
