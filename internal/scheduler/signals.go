package scheduler

import (
	"github.com/shopspring/decimal"
)

type TradeAction string

const (
	ActionHold TradeAction = "hold"
	ActionBuy  TradeAction = "buy"
	ActionSell TradeAction = "sell"
)

// SignalRule compares the current market price against the reference price
// (the most recent lot's purchase price for the symbol).
type SignalRule struct {
	Name        string
	Description string
	Detect      func(current, reference decimal.Decimal) bool
	Action      TradeAction
}

var (
	dipThreshold   = decimal.NewFromFloat(0.8)
	spikeThreshold = decimal.NewFromFloat(1.2)
)

func defaultSignalRules() []SignalRule {
	return []SignalRule{
		{
			Name:        "buy_the_dip",
			Description: "Price dropped below 80% of the last purchase price",
			Detect: func(current, reference decimal.Decimal) bool {
				return current.LessThan(reference.Mul(dipThreshold))
			},
			Action: ActionBuy,
		},
		{
			Name:        "take_profit",
			Description: "Price rose above 120% of the last purchase price",
			Detect: func(current, reference decimal.Decimal) bool {
				return current.GreaterThan(reference.Mul(spikeThreshold))
			},
			Action: ActionSell,
		},
	}
}

// evaluateSignals returns the first triggered rule's action, or hold.
func evaluateSignals(rules []SignalRule, current, reference decimal.Decimal) (TradeAction, string) {
	for _, rule := range rules {
		if rule.Detect(current, reference) {
			return rule.Action, rule.Name
		}
	}
	return ActionHold, ""
}
