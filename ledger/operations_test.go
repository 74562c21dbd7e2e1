package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddsbook/ledger-engine/ledger"
)

func TestOperationLedger_Record_AppliesToBalance(t *testing.T) {
	// GIVEN: a fresh member
	// WHEN: an operation of -40 with a reason is recorded
	// THEN: it appears in the ledger and the balance reflects it

	_, reg, mem := newTestEngine(t)
	ctx := context.Background()
	onboard(t, reg, 100)

	ops := ledger.NewOperationLedger(reg)
	op, err := ops.Record(ctx, 100, dec("-40"), "chargeback correction", false)
	require.NoError(t, err)
	assert.NotEmpty(t, op.ID)
	assert.Equal(t, "chargeback correction", op.Reason)

	u, err := mem.User(ctx, 100)
	require.NoError(t, err)
	assertDec(t, "-40", u.Balance)
	assertDec(t, "0", u.SecondaryBalance)
}

func TestOperationLedger_Record_SecondaryFlag(t *testing.T) {
	// The secondary flag applies the same amount to both balances.

	_, reg, mem := newTestEngine(t)
	ctx := context.Background()
	onboard(t, reg, 100)

	ops := ledger.NewOperationLedger(reg)
	_, err := ops.Record(ctx, 100, dec("25"), "split adjustment", true)
	require.NoError(t, err)

	u, err := mem.User(ctx, 100)
	require.NoError(t, err)
	assertDec(t, "25", u.Balance)
	assertDec(t, "25", u.SecondaryBalance)
}

func TestOperationLedger_Issue_UsesFixedReason(t *testing.T) {
	_, reg, mem := newTestEngine(t)
	ctx := context.Background()
	onboard(t, reg, 100)

	ops := ledger.NewOperationLedger(reg)
	op, err := ops.Issue(ctx, 100, dec("500"))
	require.NoError(t, err)
	assert.Equal(t, ledger.IssueReason, op.Reason)

	u, err := mem.User(ctx, 100)
	require.NoError(t, err)
	assertDec(t, "500", u.Balance)
}

func TestOperationLedger_Record_UnknownUser_RollsBack(t *testing.T) {
	// GIVEN: no member with id 42
	// WHEN: an operation is recorded for 42
	// THEN: the balance mutation fails and the appended row rolls back too

	_, reg, mem := newTestEngine(t)
	ctx := context.Background()

	ops := ledger.NewOperationLedger(reg)
	_, err := ops.Record(ctx, 42, dec("10"), "oops", false)
	require.Error(t, err)
	assert.True(t, ledger.IsNotFound(err))

	today := ledger.TodayInterval(time.Now())
	listed, err := mem.Operations(ctx, today)
	require.NoError(t, err)
	assert.Empty(t, listed)
}
