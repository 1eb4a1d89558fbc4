package market

import (
	"errors"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// ErrPriceUnavailable covers both unknown symbols and source failures; the
// oracle never panics into the engine.
var ErrPriceUnavailable = errors.New("price unavailable")

// Oracle returns the current unit price for a symbol.
type Oracle interface {
	Quote(symbol string) (decimal.Decimal, error)
}

// StaticOracle serves a fixed price table. It backs local development and
// tests; prices can be overridden per test.
type StaticOracle struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

func NewStaticOracle() *StaticOracle {
	return &StaticOracle{prices: defaultPrices()}
}

func defaultPrices() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"AAPL":   decimal.NewFromFloat(81.05),
		"GOOGL":  decimal.NewFromFloat(1082.33),
		"TSLA":   decimal.NewFromFloat(75.71),
		"AMZN":   decimal.NewFromFloat(119.0),
		"MSFT":   decimal.NewFromFloat(161.23),
		"NFLX":   decimal.NewFromFloat(427.81),
		"FB":     decimal.NewFromFloat(11.68),
		"BTC":    decimal.NewFromFloat(8304.25),
		"ETH":    decimal.NewFromFloat(91.54),
		"XRP":    decimal.NewFromFloat(4.26),
		"GOLD":   decimal.NewFromFloat(1162.48),
		"SILVER": decimal.NewFromFloat(4.24),
	}
}

func (o *StaticOracle) Quote(symbol string) (decimal.Decimal, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	price, ok := o.prices[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return decimal.Zero, ErrPriceUnavailable
	}
	return price, nil
}

func (o *StaticOracle) SetPrice(symbol string, price decimal.Decimal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[strings.ToUpper(symbol)] = price
}

// AllPrices returns a copy of the current table.
func (o *StaticOracle) AllPrices() map[string]decimal.Decimal {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make(map[string]decimal.Decimal, len(o.prices))
	for sym, p := range o.prices {
		out[sym] = p
	}
	return out
}
