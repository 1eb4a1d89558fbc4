package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"custodian/internal/ledger"
	"custodian/internal/repository"
	"custodian/pkg/metrics"
)

var tradeFraction = decimal.NewFromFloat(0.1)

// AutoInvestBot evaluates every enrolled account's holdings against price
// thresholds on a fixed period and trades through the engine's
// pre-authorized paths. It never touches balances or lots directly.
type AutoInvestBot struct {
	engine  *ledger.Engine
	store   repository.Store
	oracle  ledger.Oracle
	rules   []SignalRule
	period  time.Duration
	ticking atomic.Bool

	mu       sync.RWMutex
	enrolled map[string]bool

	metrics *metrics.Collector
	logger  *slog.Logger
}

func NewAutoInvestBot(engine *ledger.Engine, store repository.Store, oracle ledger.Oracle, period time.Duration, collector *metrics.Collector, logger *slog.Logger) *AutoInvestBot {
	if logger == nil {
		logger = slog.Default()
	}
	return &AutoInvestBot{
		engine:   engine,
		store:    store,
		oracle:   oracle,
		rules:    defaultSignalRules(),
		period:   period,
		enrolled: make(map[string]bool),
		metrics:  collector,
		logger:   logger,
	}
}

// Activate enrolls the account after a PIN check. Activation itself never
// triggers a trade; the next tick does.
func (b *AutoInvestBot) Activate(ctx context.Context, accountID, pin string) (string, error) {
	if err := b.engine.VerifyPin(ctx, accountID, pin); err != nil {
		return "", err
	}

	b.mu.Lock()
	b.enrolled[accountID] = true
	b.mu.Unlock()

	b.logger.InfoContext(ctx, "Auto-invest activated", slog.String("account_id", accountID))
	return "Automatic investment enabled successfully.", nil
}

// Deactivate removes the enrollment after a PIN check.
func (b *AutoInvestBot) Deactivate(ctx context.Context, accountID, pin string) (string, error) {
	if err := b.engine.VerifyPin(ctx, accountID, pin); err != nil {
		return "", err
	}

	b.mu.Lock()
	delete(b.enrolled, accountID)
	b.mu.Unlock()

	b.logger.InfoContext(ctx, "Auto-invest deactivated", slog.String("account_id", accountID))
	return "Automatic investment disabled successfully.", nil
}

func (b *AutoInvestBot) enrolledAccounts() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]string, 0, len(b.enrolled))
	for id, on := range b.enrolled {
		if on {
			ids = append(ids, id)
		}
	}
	return ids
}

// Run blocks until ctx is canceled, with the same overlap guard as the
// subscription scheduler.
func (b *AutoInvestBot) Run(ctx context.Context) {
	b.logger.Info("Auto-invest bot started", slog.Duration("period", b.period))
	ticker := time.NewTicker(b.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Auto-invest bot stopped")
			return
		case <-ticker.C:
			if !b.tryTick(ctx) {
				b.logger.Warn("Auto-invest tick still running, skipping")
			}
		}
	}
}

func (b *AutoInvestBot) tryTick(ctx context.Context) bool {
	if !b.ticking.CompareAndSwap(false, true) {
		return false
	}
	defer b.ticking.Store(false)
	b.Tick(ctx)
	return true
}

// Tick evaluates each enrolled account. Failures are isolated per account
// and per symbol.
func (b *AutoInvestBot) Tick(ctx context.Context) {
	if b.metrics != nil {
		defer b.metrics.RecordSchedulerTick("auto_invest")
	}

	for _, accountID := range b.enrolledAccounts() {
		if err := b.evaluateAccount(ctx, accountID); err != nil {
			b.logger.Error("Auto-invest evaluation failed",
				slog.String("account_id", accountID),
				slog.String("error", err.Error()))
		}
	}
}

func (b *AutoInvestBot) evaluateAccount(ctx context.Context, accountID string) error {
	lots, err := b.store.AssetLots().GetByAccount(ctx, accountID)
	if err != nil {
		return err
	}

	// Group lots by symbol; they arrive ordered by purchase time ascending,
	// so the last lot per symbol carries the reference purchase price.
	held := make(map[string]decimal.Decimal)
	reference := make(map[string]decimal.Decimal)
	for _, lot := range lots {
		held[lot.Symbol] = held[lot.Symbol].Add(lot.Quantity)
		reference[lot.Symbol] = lot.PurchasePrice
	}

	for symbol, refPrice := range reference {
		current, err := b.oracle.Quote(symbol)
		if err != nil {
			b.logger.Warn("Auto-invest price lookup failed",
				slog.String("account_id", accountID),
				slog.String("symbol", symbol))
			continue
		}

		action, rule := evaluateSignals(b.rules, current, refPrice)
		switch action {
		case ActionBuy:
			b.buy(ctx, accountID, symbol, rule)
		case ActionSell:
			b.sell(ctx, accountID, symbol, held[symbol], rule)
		}
	}
	return nil
}

func (b *AutoInvestBot) buy(ctx context.Context, accountID, symbol, rule string) {
	account, err := b.engine.AccountInfo(ctx, accountID)
	if err != nil {
		b.logger.Error("Auto-invest account lookup failed",
			slog.String("account_id", accountID),
			slog.String("error", err.Error()))
		return
	}

	amount := account.Balance.Mul(tradeFraction)
	if amount.LessThanOrEqual(decimal.Zero) {
		return
	}

	if err := b.engine.AutoBuy(ctx, accountID, symbol, amount); err != nil {
		b.logger.Warn("Auto-invest buy rejected",
			slog.String("account_id", accountID),
			slog.String("symbol", symbol),
			slog.String("rule", rule),
			slog.String("error", err.Error()))
		return
	}

	b.logger.InfoContext(ctx, "Auto-invest buy executed",
		slog.String("account_id", accountID),
		slog.String("symbol", symbol),
		slog.String("rule", rule),
		slog.String("amount", amount.String()))
}

func (b *AutoInvestBot) sell(ctx context.Context, accountID, symbol string, held decimal.Decimal, rule string) {
	quantity := held.Mul(tradeFraction).RoundFloor(2)
	if quantity.LessThanOrEqual(decimal.Zero) {
		return
	}

	if err := b.engine.AutoSell(ctx, accountID, symbol, quantity); err != nil {
		b.logger.Warn("Auto-invest sell rejected",
			slog.String("account_id", accountID),
			slog.String("symbol", symbol),
			slog.String("rule", rule),
			slog.String("error", err.Error()))
		return
	}

	b.logger.InfoContext(ctx, "Auto-invest sell executed",
		slog.String("account_id", accountID),
		slog.String("symbol", symbol),
		slog.String("rule", rule),
		slog.String("quantity", quantity.String()))
}

// Enrolled reports whether the account is currently enrolled.
func (b *AutoInvestBot) Enrolled(accountID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.enrolled[accountID]
}
