package money

import "errors"

// Channel identifies how a payment arrived at the desk.
type Channel string

const (
	// ChannelABA is a bank transfer in dollars.
	ChannelABA Channel = "aba"
	// ChannelCashUSD is cash in dollars.
	ChannelCashUSD Channel = "cash_usd"
	// ChannelCashKHR is cash in riel, converted at the line's captured rate.
	ChannelCashKHR Channel = "cash_khr"
)

// ErrUnknownChannel indicates an unrecognised payment channel.
var ErrUnknownChannel = errors.New("money: unknown payment channel")

// ValidChannel reports whether c is a known channel.
func ValidChannel(c Channel) bool {
	switch c {
	case ChannelABA, ChannelCashUSD, ChannelCashKHR:
		return true
	}
	return false
}
