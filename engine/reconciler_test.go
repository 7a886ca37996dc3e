/*
reconciler_test.go - Specification tests for escalation materialization

PURPOSE:
  Pins down the write path: which rules are due, idempotency, batch
  sequencing (a later rule compounds on an earlier rule's result), pause
  deferral and the resume catch-up.
*/
package engine_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fund-engine/engine"
	"github.com/warp/fund-engine/engine/store"
)

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func seedObligation(mem *store.Memory, amount string, rules ...engine.EscalationRule) engine.Obligation {
	o := engine.Obligation{
		ID: "rent", UserID: "u1", Name: "Rent",
		Amount: dec(amount), IsActive: true,
		Schedule:    engine.RecurringSchedule{NextDue: date(2026, time.July, 1), Frequency: engine.FreqMonthly},
		Escalations: rules,
	}
	mem.PutObligation(o)
	return o
}

func TestReconciler_AppliesPastDueFixedIncrease(t *testing.T) {
	// GIVEN rent at 2000 with an unapplied +50 rule effective in the past
	mem := store.NewMemory()
	seedObligation(mem, "2000", engine.EscalationRule{
		ID: "r1", ObligationID: "rent",
		ChangeType: engine.ChangeFixedIncrease, Value: dec("50"),
		EffectiveDate: date(2026, time.May, 1),
	})
	rec := engine.NewReconciler(mem, quietLogger())

	// WHEN reconciling as of a later date
	result, err := rec.ApplyPendingEscalations(context.Background(), "u1", date(2026, time.June, 1))
	require.NoError(t, err)

	// THEN the amount becomes 2050 and the rule is marked applied
	assert.Equal(t, 1, result.AppliedCount)
	assert.Equal(t, []string{"rent"}, result.UpdatedObligationIDs)

	o, ok := mem.Obligation("rent")
	require.True(t, ok)
	assert.True(t, o.Amount.Equal(dec("2050")), "Amount = %s", o.Amount)
	assert.True(t, o.Escalations[0].IsApplied)
	require.NotNil(t, o.Escalations[0].AppliedAt)
	assert.True(t, o.Escalations[0].AppliedAt.Equal(date(2026, time.June, 1)))
}

func TestReconciler_FutureRulesStayPending(t *testing.T) {
	// GIVEN a rule effective after "now"
	mem := store.NewMemory()
	seedObligation(mem, "2000", engine.EscalationRule{
		ID: "r1", ObligationID: "rent",
		ChangeType: engine.ChangeFixedIncrease, Value: dec("50"),
		EffectiveDate: date(2026, time.December, 1),
	})
	rec := engine.NewReconciler(mem, quietLogger())

	result, err := rec.ApplyPendingEscalations(context.Background(), "u1", date(2026, time.June, 1))
	require.NoError(t, err)

	// THEN nothing is applied
	assert.Equal(t, 0, result.AppliedCount)
	o, _ := mem.Obligation("rent")
	assert.True(t, o.Amount.Equal(dec("2000")))
	assert.False(t, o.Escalations[0].IsApplied)
}

func TestReconciler_RecurringRulesNeverMaterialized(t *testing.T) {
	// GIVEN a recurring rule whose effective date has long passed
	mem := store.NewMemory()
	seedObligation(mem, "2000", engine.EscalationRule{
		ID: "r1", ObligationID: "rent",
		ChangeType: engine.ChangePercentage, Value: dec("5"),
		EffectiveDate:  date(2024, time.January, 1),
		IntervalMonths: 12,
	})
	rec := engine.NewReconciler(mem, quietLogger())

	result, err := rec.ApplyPendingEscalations(context.Background(), "u1", date(2026, time.June, 1))
	require.NoError(t, err)

	// THEN the stored amount never changes; recurring effects live in
	// projection only
	assert.Equal(t, 0, result.AppliedCount)
	o, _ := mem.Obligation("rent")
	assert.True(t, o.Amount.Equal(dec("2000")))
}

func TestReconciler_PausedObligationDeferred(t *testing.T) {
	// GIVEN a paused obligation with a past-due rule
	mem := store.NewMemory()
	o := engine.Obligation{
		ID: "rent", UserID: "u1", Name: "Rent",
		Amount: dec("2000"), IsActive: true, IsPaused: true,
		Schedule: engine.RecurringSchedule{NextDue: date(2026, time.July, 1), Frequency: engine.FreqMonthly},
		Escalations: []engine.EscalationRule{{
			ID: "r1", ObligationID: "rent",
			ChangeType: engine.ChangeFixedIncrease, Value: dec("50"),
			EffectiveDate: date(2026, time.May, 1),
		}},
	}
	mem.PutObligation(o)
	rec := engine.NewReconciler(mem, quietLogger())

	// WHEN the sweep runs while paused
	result, err := rec.ApplyPendingEscalations(context.Background(), "u1", date(2026, time.June, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, result.AppliedCount)

	stored, _ := mem.Obligation("rent")
	assert.True(t, stored.Amount.Equal(dec("2000")))

	// AND WHEN the obligation is resumed and caught up
	o.IsPaused = false
	o.Escalations = stored.Escalations
	mem.PutObligation(o)
	result, err = rec.ApplyDeferredEscalations(context.Background(), "rent", date(2026, time.June, 1))
	require.NoError(t, err)

	// THEN the deferred rule applies
	assert.Equal(t, 1, result.AppliedCount)
	stored, _ = mem.Obligation("rent")
	assert.True(t, stored.Amount.Equal(dec("2050")))
}

func TestReconciler_BatchSequencingCompounds(t *testing.T) {
	// GIVEN two past-due rules for the same obligation, the later one a
	// percentage
	mem := store.NewMemory()
	seedObligation(mem, "1000",
		engine.EscalationRule{
			ID: "r2", ObligationID: "rent",
			ChangeType: engine.ChangePercentage, Value: dec("10"),
			EffectiveDate: date(2026, time.March, 1),
		},
		engine.EscalationRule{
			ID: "r1", ObligationID: "rent",
			ChangeType: engine.ChangeFixedIncrease, Value: dec("100"),
			EffectiveDate: date(2026, time.January, 1),
		},
	)
	rec := engine.NewReconciler(mem, quietLogger())

	result, err := rec.ApplyPendingEscalations(context.Background(), "u1", date(2026, time.June, 1))
	require.NoError(t, err)

	// THEN both applied in effective-date order: (1000+100) * 1.10 = 1210
	assert.Equal(t, 2, result.AppliedCount)
	assert.Equal(t, []string{"rent"}, result.UpdatedObligationIDs)
	o, _ := mem.Obligation("rent")
	assert.True(t, o.Amount.Equal(dec("1210")), "Amount = %s", o.Amount)
}

func TestReconciler_SecondSweepIsIdempotent(t *testing.T) {
	// GIVEN a rule already applied by a first sweep
	mem := store.NewMemory()
	seedObligation(mem, "2000", engine.EscalationRule{
		ID: "r1", ObligationID: "rent",
		ChangeType: engine.ChangeFixedIncrease, Value: dec("50"),
		EffectiveDate: date(2026, time.May, 1),
	})
	rec := engine.NewReconciler(mem, quietLogger())
	now := date(2026, time.June, 1)

	first, err := rec.ApplyPendingEscalations(context.Background(), "u1", now)
	require.NoError(t, err)
	require.Equal(t, 1, first.AppliedCount)

	// WHEN sweeping again
	second, err := rec.ApplyPendingEscalations(context.Background(), "u1", now)
	require.NoError(t, err)

	// THEN nothing is re-applied and the amount holds
	assert.Equal(t, 0, second.AppliedCount)
	o, _ := mem.Obligation("rent")
	assert.True(t, o.Amount.Equal(dec("2050")))
}

// failingRuleStore wraps the memory store and fails one specific rule, for
// batch isolation coverage.
type failingRuleStore struct {
	*store.Memory
	failRuleID string
}

func (f *failingRuleStore) ApplyRule(ctx context.Context, ruleID string, appliedAt engine.TimePoint, apply func(decimal.Decimal) decimal.Decimal) (decimal.Decimal, error) {
	if ruleID == f.failRuleID {
		return decimal.Zero, assert.AnError
	}
	return f.Memory.ApplyRule(ctx, ruleID, appliedAt, apply)
}

func TestReconciler_FailureOnOneRuleDoesNotStopBatch(t *testing.T) {
	// GIVEN two due rules where the first application fails
	mem := store.NewMemory()
	seedObligation(mem, "1000",
		engine.EscalationRule{
			ID: "bad", ObligationID: "rent",
			ChangeType: engine.ChangeFixedIncrease, Value: dec("100"),
			EffectiveDate: date(2026, time.January, 1),
		},
		engine.EscalationRule{
			ID: "good", ObligationID: "rent",
			ChangeType: engine.ChangeFixedIncrease, Value: dec("50"),
			EffectiveDate: date(2026, time.February, 1),
		},
	)
	rec := engine.NewReconciler(&failingRuleStore{Memory: mem, failRuleID: "bad"}, quietLogger())

	result, err := rec.ApplyPendingEscalations(context.Background(), "u1", date(2026, time.June, 1))
	require.NoError(t, err)

	// THEN the surviving rule still lands
	assert.Equal(t, 1, result.AppliedCount)
	o, _ := mem.Obligation("rent")
	assert.True(t, o.Amount.Equal(dec("1050")), "Amount = %s", o.Amount)
}
