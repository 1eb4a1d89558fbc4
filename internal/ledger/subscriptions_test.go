package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodian/internal/domain"
)

func TestCreateSubscriptionRequiresCoverage(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()
	accountID := newFundedAccount(t, engine, "50")

	_, err := engine.CreateSubscription(ctx, accountID, testPin, decimal.NewFromInt(51), time.Hour)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	msg, err := engine.CreateSubscription(ctx, accountID, testPin, decimal.NewFromInt(50), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "Subscription created successfully.", msg)
}

func TestCreateSubscriptionSchedulesFirstCharge(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()
	accountID := newFundedAccount(t, engine, "100")

	before := time.Now()
	_, err := engine.CreateSubscription(ctx, accountID, testPin, decimal.NewFromInt(10), time.Hour)
	require.NoError(t, err)

	subs, err := store.Subscriptions().GetActiveByAccount(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.True(t, subs[0].Active)
	// First charge is one interval out, not immediate.
	assert.False(t, subs[0].NextDueAt.Before(before.Add(time.Hour)))
}

func TestChargeSubscriptionDebitsAndRecords(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()
	accountID := newFundedAccount(t, engine, "100")

	sub := &domain.Subscription{
		ID:        "sub-1",
		AccountID: accountID,
		Amount:    decimal.NewFromInt(30),
		Interval:  time.Hour,
		Active:    true,
		NextDueAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, store.Subscriptions().Save(ctx, sub))

	require.NoError(t, engine.ChargeSubscription(ctx, sub))

	assert.True(t, accountBalance(t, engine, accountID).Equal(decimal.NewFromInt(70)))
	stored, err := store.Subscriptions().GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, stored.NextDueAt.After(time.Now()))

	records, err := engine.TransactionHistory(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, domain.TypeSubscription, records[1].Type)
	assert.True(t, records[1].Amount.Equal(decimal.NewFromInt(30)))
}

func TestChargeSubscriptionShortfallLeavesNoTrace(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()
	accountID := newFundedAccount(t, engine, "20")

	sub := &domain.Subscription{
		ID:        "sub-1",
		AccountID: accountID,
		Amount:    decimal.NewFromInt(30),
		Interval:  time.Hour,
		Active:    true,
		NextDueAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, store.Subscriptions().Save(ctx, sub))

	err := engine.ChargeSubscription(ctx, sub)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// The balance never goes negative and no record is written.
	assert.True(t, accountBalance(t, engine, accountID).Equal(decimal.NewFromInt(20)))
	records, err := engine.TransactionHistory(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.TypeCashDeposit, records[0].Type)
}

func TestCancelSubscription(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()
	accountID := newFundedAccount(t, engine, "100")

	msg, err := engine.CancelSubscription(ctx, accountID, testPin)
	require.NoError(t, err)
	assert.Equal(t, "No active subscription found for the account.", msg)

	_, err = engine.CreateSubscription(ctx, accountID, testPin, decimal.NewFromInt(10), time.Hour)
	require.NoError(t, err)

	msg, err = engine.CancelSubscription(ctx, accountID, testPin)
	require.NoError(t, err)
	assert.Equal(t, "Subscription canceled successfully.", msg)

	subs, err := store.Subscriptions().GetActiveByAccount(ctx, accountID)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestDeactivateSubscriptionDoesNotCharge(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()
	accountID := newFundedAccount(t, engine, "100")

	sub := &domain.Subscription{
		ID:        "sub-1",
		AccountID: accountID,
		Amount:    decimal.NewFromInt(30),
		Interval:  time.Hour,
		Active:    true,
		NextDueAt: time.Now(),
	}
	require.NoError(t, store.Subscriptions().Save(ctx, sub))

	require.NoError(t, engine.DeactivateSubscription(ctx, sub))

	stored, err := store.Subscriptions().GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
	assert.True(t, accountBalance(t, engine, accountID).Equal(decimal.NewFromInt(100)))
}

func TestChargeSubscriptionSkipsWhenCanceledAfterSweep(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()
	accountID := newFundedAccount(t, engine, "100")

	_, err := engine.CreateSubscription(ctx, accountID, testPin, decimal.NewFromInt(30), time.Hour)
	require.NoError(t, err)

	// The scheduler sweeps a snapshot, then the owner cancels before the
	// charge lands. The stale snapshot must neither debit the account nor
	// resurrect the canceled subscription.
	snapshot, err := store.Subscriptions().GetActive(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot, 1)

	_, err = engine.CancelSubscription(ctx, accountID, testPin)
	require.NoError(t, err)

	require.NoError(t, engine.ChargeSubscription(ctx, snapshot[0]))

	assert.True(t, accountBalance(t, engine, accountID).Equal(decimal.NewFromInt(100)))
	active, err := store.Subscriptions().GetActiveByAccount(ctx, accountID)
	require.NoError(t, err)
	assert.Empty(t, active)

	records, err := engine.TransactionHistory(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.TypeCashDeposit, records[0].Type)
}

func TestChargeSubscriptionSkipsWhenRemoved(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()
	accountID := newFundedAccount(t, engine, "100")

	// A snapshot whose row was never stored charges nothing.
	ghost := &domain.Subscription{
		ID:        "sub-ghost",
		AccountID: accountID,
		Amount:    decimal.NewFromInt(30),
		Interval:  time.Hour,
		Active:    true,
		NextDueAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, engine.ChargeSubscription(ctx, ghost))
	assert.True(t, accountBalance(t, engine, accountID).Equal(decimal.NewFromInt(100)))
}
