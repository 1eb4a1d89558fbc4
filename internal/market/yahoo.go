package market

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// YahooOracle quotes symbols from the Yahoo Finance v8 chart endpoint with a
// short TTL cache so one slow upstream call cannot stall every trade.
type YahooOracle struct {
	cli    *http.Client
	ttl    time.Duration
	mu     sync.RWMutex
	cache  map[string]cachedQuote
	logger *slog.Logger
}

type cachedQuote struct {
	price   decimal.Decimal
	fetched time.Time
}

func NewYahooOracle(logger *slog.Logger) *YahooOracle {
	if logger == nil {
		logger = slog.Default()
	}
	return &YahooOracle{
		cli:    &http.Client{Timeout: 8 * time.Second},
		ttl:    60 * time.Second,
		cache:  make(map[string]cachedQuote),
		logger: logger,
	}
}

func (o *YahooOracle) Quote(symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return decimal.Zero, ErrPriceUnavailable
	}

	o.mu.RLock()
	if c, ok := o.cache[symbol]; ok && time.Since(c.fetched) < o.ttl {
		o.mu.RUnlock()
		return c.price, nil
	}
	o.mu.RUnlock()

	price, err := o.fetch(symbol)
	if err != nil {
		o.logger.Warn("Price fetch failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()))
		return decimal.Zero, ErrPriceUnavailable
	}

	o.mu.Lock()
	o.cache[symbol] = cachedQuote{price: price, fetched: time.Now()}
	o.mu.Unlock()

	return price, nil
}

func (o *YahooOracle) fetch(symbol string) (decimal.Decimal, error) {
	url := fmt.Sprintf("https://query2.finance.yahoo.com/v8/finance/chart/%s?interval=1m&range=1d", symbol)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("User-Agent", "custodian/1.0")

	resp, err := o.cli.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("yahoo http %d", resp.StatusCode)
	}

	var raw struct {
		Chart struct {
			Result []struct {
				Meta struct {
					RegularMarketPrice float64 `json:"regularMarketPrice"`
				} `json:"meta"`
			} `json:"result"`
		} `json:"chart"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return decimal.Zero, err
	}
	if len(raw.Chart.Result) == 0 || raw.Chart.Result[0].Meta.RegularMarketPrice <= 0 {
		return decimal.Zero, ErrPriceUnavailable
	}

	return decimal.NewFromFloat(raw.Chart.Result[0].Meta.RegularMarketPrice), nil
}

var (
	_ Oracle = (*StaticOracle)(nil)
	_ Oracle = (*YahooOracle)(nil)
)
