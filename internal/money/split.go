package money

import (
	"github.com/shopspring/decimal"
)

// ChannelSplit carries one payment broken down by channel. ABA and CashUSD
// are dollar amounts; CashKHR is riel and divides by the exchange rate.
type ChannelSplit struct {
	ABA     decimal.Decimal
	CashUSD decimal.Decimal
	CashKHR decimal.Decimal
}

// Total returns the dollar value of the split at the given KHR/USD rate,
// rounded to cents. A non-positive rate contributes nothing for the riel
// component rather than dividing by zero.
func (s ChannelSplit) Total(rate decimal.Decimal) decimal.Decimal {
	total := s.ABA.Add(s.CashUSD)
	if rate.IsPositive() && !s.CashKHR.IsZero() {
		total = total.Add(s.CashKHR.Div(rate))
	}
	return Round2(total)
}

// IsZero reports whether no channel carries a payment.
func (s ChannelSplit) IsZero() bool {
	return s.ABA.IsZero() && s.CashUSD.IsZero() && s.CashKHR.IsZero()
}

// EffectiveRate picks the rate a line must convert riel at: the rate
// captured on the line's first payment wins over the configured rate. The
// captured rate is immutable so a later change of the configured rate never
// re-values old payments.
func EffectiveRate(applied, configured decimal.Decimal) decimal.Decimal {
	if applied.IsPositive() {
		return applied
	}
	return configured
}
