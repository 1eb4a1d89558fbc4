package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"custodian/internal/domain"
	"custodian/internal/ledger"
	"custodian/internal/market"
	"custodian/internal/repository/memory"
	"custodian/pkg/crypto"
)

const (
	testPassword = "correct-horse"
	testPin      = "1234"
)

func newTestFixture(t *testing.T) (*ledger.Engine, *memory.Store, *market.StaticOracle) {
	t.Helper()

	store := memory.NewStore()
	oracle := market.NewStaticOracle()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hasher := crypto.NewHasher(bcrypt.MinCost, logger)
	pins := ledger.NewPinGuard(store.Accounts(), hasher, logger)
	engine := ledger.NewEngine(store, oracle, pins, nil, nil, logger)
	return engine, store, oracle
}

func newAccount(t *testing.T, engine *ledger.Engine, balance int64) string {
	t.Helper()

	ctx := context.Background()
	account, err := engine.CreateAccount(ctx, testPassword)
	require.NoError(t, err)
	_, err = engine.CreatePin(ctx, account.ID, testPassword, testPin)
	require.NoError(t, err)

	if balance > 0 {
		_, err = engine.Deposit(ctx, account.ID, testPin, decimal.NewFromInt(balance))
		require.NoError(t, err)
	}
	return account.ID
}

func balanceOf(t *testing.T, engine *ledger.Engine, accountID string) decimal.Decimal {
	t.Helper()

	account, err := engine.AccountInfo(context.Background(), accountID)
	require.NoError(t, err)
	return account.Balance
}

func saveSubscription(t *testing.T, store *memory.Store, accountID string, amount int64, nextDue time.Time) *domain.Subscription {
	t.Helper()

	sub := &domain.Subscription{
		ID:        "sub-" + accountID,
		AccountID: accountID,
		Amount:    decimal.NewFromInt(amount),
		Interval:  time.Hour,
		Active:    true,
		NextDueAt: nextDue,
	}
	require.NoError(t, store.Subscriptions().Save(context.Background(), sub))
	return sub
}

func saveLot(t *testing.T, store *memory.Store, accountID, symbol string, quantity, price int64) {
	t.Helper()

	lot := &domain.AssetLot{
		ID:            "lot-" + accountID + "-" + symbol,
		AccountID:     accountID,
		Symbol:        symbol,
		Quantity:      decimal.NewFromInt(quantity),
		PurchasePrice: decimal.NewFromInt(price),
		PurchasedAt:   time.Now().Add(-time.Hour),
	}
	require.NoError(t, store.AssetLots().Save(context.Background(), lot))
}

func TestSubscriptionTickChargesDueSubscriptions(t *testing.T) {
	engine, store, _ := newTestFixture(t)
	ctx := context.Background()
	accountID := newAccount(t, engine, 100)
	saveSubscription(t, store, accountID, 30, time.Now().Add(-time.Minute))

	sched := NewSubscriptionScheduler(engine, store, time.Second, nil, nil)
	sched.Tick(ctx)

	assert.True(t, balanceOf(t, engine, accountID).Equal(decimal.NewFromInt(70)))

	subs, err := store.Subscriptions().GetActiveByAccount(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.True(t, subs[0].NextDueAt.After(time.Now()))
}

func TestSubscriptionTickSkipsNotYetDue(t *testing.T) {
	engine, store, _ := newTestFixture(t)
	ctx := context.Background()
	accountID := newAccount(t, engine, 100)
	saveSubscription(t, store, accountID, 30, time.Now().Add(time.Hour))

	sched := NewSubscriptionScheduler(engine, store, time.Second, nil, nil)
	sched.Tick(ctx)

	assert.True(t, balanceOf(t, engine, accountID).Equal(decimal.NewFromInt(100)))
}

func TestSubscriptionTickDeactivatesOnShortfall(t *testing.T) {
	engine, store, _ := newTestFixture(t)
	ctx := context.Background()
	accountID := newAccount(t, engine, 20)
	saveSubscription(t, store, accountID, 30, time.Now().Add(-time.Minute))

	sched := NewSubscriptionScheduler(engine, store, time.Second, nil, nil)
	sched.Tick(ctx)

	// No overdraft, no record, subscription turned off.
	assert.True(t, balanceOf(t, engine, accountID).Equal(decimal.NewFromInt(20)))

	subs, err := store.Subscriptions().GetActiveByAccount(ctx, accountID)
	require.NoError(t, err)
	assert.Empty(t, subs)

	records, err := engine.TransactionHistory(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.TypeCashDeposit, records[0].Type)
}

func TestSubscriptionTickIsolatesFailures(t *testing.T) {
	engine, store, _ := newTestFixture(t)
	ctx := context.Background()
	brokeID := newAccount(t, engine, 10)
	richID := newAccount(t, engine, 100)
	saveSubscription(t, store, brokeID, 50, time.Now().Add(-time.Minute))
	saveSubscription(t, store, richID, 50, time.Now().Add(-time.Minute))

	sched := NewSubscriptionScheduler(engine, store, time.Second, nil, nil)
	sched.Tick(ctx)

	assert.True(t, balanceOf(t, engine, brokeID).Equal(decimal.NewFromInt(10)))
	assert.True(t, balanceOf(t, engine, richID).Equal(decimal.NewFromInt(50)))
}

func TestAutoInvestActivationRequiresPin(t *testing.T) {
	engine, store, oracle := newTestFixture(t)
	ctx := context.Background()
	accountID := newAccount(t, engine, 100)

	bot := NewAutoInvestBot(engine, store, oracle, time.Second, nil, nil)

	_, err := bot.Activate(ctx, accountID, "0000")
	assert.ErrorIs(t, err, ledger.ErrInvalidPin)
	assert.False(t, bot.Enrolled(accountID))

	msg, err := bot.Activate(ctx, accountID, testPin)
	require.NoError(t, err)
	assert.Equal(t, "Automatic investment enabled successfully.", msg)
	assert.True(t, bot.Enrolled(accountID))

	msg, err = bot.Deactivate(ctx, accountID, testPin)
	require.NoError(t, err)
	assert.Equal(t, "Automatic investment disabled successfully.", msg)
	assert.False(t, bot.Enrolled(accountID))
}

func TestAutoInvestBuysOnDip(t *testing.T) {
	engine, store, oracle := newTestFixture(t)
	ctx := context.Background()
	accountID := newAccount(t, engine, 1000)
	saveLot(t, store, accountID, "GOLD", 1, 100)
	oracle.SetPrice("GOLD", decimal.NewFromInt(70))

	bot := NewAutoInvestBot(engine, store, oracle, time.Second, nil, nil)
	_, err := bot.Activate(ctx, accountID, testPin)
	require.NoError(t, err)

	bot.Tick(ctx)

	// 10% of the 1000 cash balance is spent.
	assert.True(t, balanceOf(t, engine, accountID).Equal(decimal.NewFromInt(900)))

	lots, err := store.AssetLots().GetByAccountAndSymbol(ctx, accountID, "GOLD")
	require.NoError(t, err)
	require.Len(t, lots, 2)
	// 100 / 70 rounded to two decimal places.
	assert.True(t, lots[1].Quantity.Equal(decimal.RequireFromString("1.43")))
}

func TestAutoInvestSellsOnSpike(t *testing.T) {
	engine, store, oracle := newTestFixture(t)
	ctx := context.Background()
	accountID := newAccount(t, engine, 0)
	saveLot(t, store, accountID, "GOLD", 10, 100)
	oracle.SetPrice("GOLD", decimal.NewFromInt(130))

	bot := NewAutoInvestBot(engine, store, oracle, time.Second, nil, nil)
	_, err := bot.Activate(ctx, accountID, testPin)
	require.NoError(t, err)

	bot.Tick(ctx)

	// 10% of the 10 held units sold at 130.
	assert.True(t, balanceOf(t, engine, accountID).Equal(decimal.NewFromInt(130)))

	lots, err := store.AssetLots().GetByAccountAndSymbol(ctx, accountID, "GOLD")
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.True(t, lots[0].Quantity.Equal(decimal.NewFromInt(9)))
}

func TestAutoInvestHoldsInsideBand(t *testing.T) {
	engine, store, oracle := newTestFixture(t)
	ctx := context.Background()
	accountID := newAccount(t, engine, 1000)
	saveLot(t, store, accountID, "GOLD", 10, 100)

	bot := NewAutoInvestBot(engine, store, oracle, time.Second, nil, nil)
	_, err := bot.Activate(ctx, accountID, testPin)
	require.NoError(t, err)

	// Exactly on both thresholds still holds; the comparisons are strict.
	for _, price := range []int64{80, 100, 120} {
		oracle.SetPrice("GOLD", decimal.NewFromInt(price))
		bot.Tick(ctx)
	}

	assert.True(t, balanceOf(t, engine, accountID).Equal(decimal.NewFromInt(1000)))
	lots, err := store.AssetLots().GetByAccountAndSymbol(ctx, accountID, "GOLD")
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.True(t, lots[0].Quantity.Equal(decimal.NewFromInt(10)))
}

func TestAutoInvestIgnoresUnenrolledAccounts(t *testing.T) {
	engine, store, oracle := newTestFixture(t)
	ctx := context.Background()
	accountID := newAccount(t, engine, 1000)
	saveLot(t, store, accountID, "GOLD", 1, 100)
	oracle.SetPrice("GOLD", decimal.NewFromInt(70))

	bot := NewAutoInvestBot(engine, store, oracle, time.Second, nil, nil)
	bot.Tick(ctx)

	assert.True(t, balanceOf(t, engine, accountID).Equal(decimal.NewFromInt(1000)))
}

func TestAutoInvestSkipsZeroBalanceBuy(t *testing.T) {
	engine, store, oracle := newTestFixture(t)
	ctx := context.Background()
	accountID := newAccount(t, engine, 0)
	saveLot(t, store, accountID, "GOLD", 1, 100)
	oracle.SetPrice("GOLD", decimal.NewFromInt(70))

	bot := NewAutoInvestBot(engine, store, oracle, time.Second, nil, nil)
	_, err := bot.Activate(ctx, accountID, testPin)
	require.NoError(t, err)

	bot.Tick(ctx)

	records, err := engine.TransactionHistory(ctx, accountID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestTickOverlapGuard(t *testing.T) {
	engine, store, oracle := newTestFixture(t)
	ctx := context.Background()

	sched := NewSubscriptionScheduler(engine, store, time.Second, nil, nil)
	sched.ticking.Store(true)
	assert.False(t, sched.tryTick(ctx), "tick should be skipped while one runs")
	sched.ticking.Store(false)
	assert.True(t, sched.tryTick(ctx))

	bot := NewAutoInvestBot(engine, store, oracle, time.Second, nil, nil)
	bot.ticking.Store(true)
	assert.False(t, bot.tryTick(ctx))
	bot.ticking.Store(false)
	assert.True(t, bot.tryTick(ctx))
}

func TestEvaluateSignals(t *testing.T) {
	rules := defaultSignalRules()
	ref := decimal.NewFromInt(100)

	tests := []struct {
		name    string
		current int64
		action  TradeAction
	}{
		{"deep dip buys", 79, ActionBuy},
		{"dip threshold holds", 80, ActionHold},
		{"flat holds", 100, ActionHold},
		{"spike threshold holds", 120, ActionHold},
		{"spike sells", 121, ActionSell},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, _ := evaluateSignals(rules, decimal.NewFromInt(tt.current), ref)
			assert.Equal(t, tt.action, action)
		})
	}
}
