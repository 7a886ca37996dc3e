/*
contribution_test.go - Specification tests for the contribution calculator

PURPOSE:
  Pins down the per-cycle contribution math: effective amounts under
  escalation, cycle spreading, greedy cap allocation, shortfall warnings,
  custom-schedule sums, and the what-if dual run.
*/
package engine_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fund-engine/engine"
)

func monthlyObligation(id, name, amount string, nextDue engine.TimePoint) engine.Obligation {
	return engine.Obligation{
		ID:       id,
		Name:     name,
		Amount:   dec(amount),
		IsActive: true,
		Schedule: engine.RecurringSchedule{NextDue: nextDue, Frequency: engine.FreqMonthly},
	}
}

func findContribution(t *testing.T, result engine.EngineResult, id string) engine.Contribution {
	t.Helper()
	for _, c := range result.Contributions {
		if c.ObligationID == id {
			return c
		}
	}
	t.Fatalf("no contribution for obligation %q", id)
	return engine.Contribution{}
}

// =============================================================================
// END-TO-END: THE RENT SCENARIO
// =============================================================================

func TestCalculateContributions_RentScenario(t *testing.T) {
	// GIVEN monthly rent of 1500 due 2025-06-15, 300 already set aside,
	// a 500 per-fortnight cap, and today is 2025-06-01
	now := date(2025, time.June, 1)
	in := engine.PlanInput{
		Obligations: []engine.Obligation{
			monthlyObligation("rent", "Rent", "1500", date(2025, time.June, 15)),
		},
		Balances:    []engine.FundBalance{{ObligationID: "rent", Current: dec("300")}},
		MaxPerCycle: dec("500"),
		Cycle:       engine.CycleConfig{Type: engine.CycleFortnightly},
		Now:         now,
	}

	// WHEN calculating
	result := engine.CalculateContributions(in)

	// THEN totals reflect the full amount and the funded balance
	assert.True(t, result.TotalRequired.Equal(dec("1500")), "TotalRequired = %s", result.TotalRequired)
	assert.True(t, result.TotalFunded.Equal(dec("300")), "TotalFunded = %s", result.TotalFunded)

	// AND the per-cycle total is positive but never above the cap
	assert.True(t, result.TotalContributionPerCycle.IsPositive())
	assert.True(t, result.TotalContributionPerCycle.LessThanOrEqual(dec("500")))

	// AND the single fortnight before the due date cannot cover the
	// remaining 1200, so a shortfall is reported
	rent := findContribution(t, result, "rent")
	assert.True(t, rent.AmountRequired.Equal(dec("1200")), "AmountRequired = %s", rent.AmountRequired)
	assert.Equal(t, 1, rent.CyclesRemaining)
	assert.True(t, result.CapacityExceeded)
	require.Len(t, result.ShortfallWarnings, 1)
	assert.True(t, result.ShortfallWarnings[0].Shortfall.Equal(dec("700")),
		"Shortfall = %s", result.ShortfallWarnings[0].Shortfall)
}

// =============================================================================
// CORE MATH
// =============================================================================

func TestCalculateContributions_SpreadsOverRemainingCycles(t *testing.T) {
	// GIVEN an obligation due four fortnights out with nothing set aside
	now := date(2026, time.January, 1)
	in := engine.PlanInput{
		Obligations: []engine.Obligation{
			monthlyObligation("rates", "Council Rates", "800", now.AddDays(56)),
		},
		Cycle: engine.CycleConfig{Type: engine.CycleFortnightly},
		Now:   now,
	}

	result := engine.CalculateContributions(in)

	// THEN 800 over 4 cycles is 200 per cycle
	c := findContribution(t, result, "rates")
	assert.Equal(t, 4, c.CyclesRemaining)
	assert.True(t, c.RequiredPerCycle.Equal(dec("200")), "RequiredPerCycle = %s", c.RequiredPerCycle)
	assert.True(t, c.AllocatedPerCycle.Equal(dec("200")))
}

func TestCalculateContributions_FundedBalanceReducesRequirement(t *testing.T) {
	// GIVEN an obligation whose balance exceeds its amount
	now := date(2026, time.January, 1)
	in := engine.PlanInput{
		Obligations: []engine.Obligation{
			monthlyObligation("sub", "Streaming", "20", now.AddDays(10)),
		},
		Balances: []engine.FundBalance{{ObligationID: "sub", Current: dec("50")}},
		Cycle:    engine.CycleConfig{Type: engine.CycleFortnightly},
		Now:      now,
	}

	result := engine.CalculateContributions(in)

	// THEN the requirement floors at zero and the plan is fully funded
	c := findContribution(t, result, "sub")
	assert.True(t, c.AmountRequired.IsZero(), "AmountRequired = %s", c.AmountRequired)
	assert.True(t, result.IsFullyFunded)
	assert.True(t, result.TotalContributionPerCycle.IsZero())
	assert.Empty(t, result.ShortfallWarnings)
}

func TestCalculateContributions_SkipsPausedArchivedAndInactive(t *testing.T) {
	// GIVEN one live obligation among paused, archived and inactive ones
	now := date(2026, time.January, 1)
	paused := monthlyObligation("paused", "Paused", "100", now.AddDays(10))
	paused.IsPaused = true
	archived := monthlyObligation("archived", "Archived", "100", now.AddDays(10))
	archived.IsArchived = true
	inactive := monthlyObligation("inactive", "Inactive", "100", now.AddDays(10))
	inactive.IsActive = false

	in := engine.PlanInput{
		Obligations: []engine.Obligation{
			paused, archived, inactive,
			monthlyObligation("live", "Live", "100", now.AddDays(10)),
		},
		Cycle: engine.CycleConfig{Type: engine.CycleFortnightly},
		Now:   now,
	}

	result := engine.CalculateContributions(in)

	// THEN only the live one participates
	require.Len(t, result.Contributions, 1)
	assert.Equal(t, "live", result.Contributions[0].ObligationID)
	assert.True(t, result.TotalRequired.Equal(dec("100")))
}

func TestCalculateContributions_EscalatedAmountAtNow(t *testing.T) {
	// GIVEN an obligation whose pending one-off escalation takes effect today
	now := date(2026, time.June, 1)
	o := monthlyObligation("rent", "Rent", "1500", now.AddDays(14))
	o.Escalations = []engine.EscalationRule{{
		ID: "bump", ObligationID: "rent",
		ChangeType: engine.ChangePercentage, Value: dec("3"),
		EffectiveDate: now,
	}}

	result := engine.CalculateContributions(engine.PlanInput{
		Obligations: []engine.Obligation{o},
		Cycle:       engine.CycleConfig{Type: engine.CycleFortnightly},
		Now:         now,
	})

	// THEN the effective amount reflects the escalation, not the stored base
	c := findContribution(t, result, "rent")
	closeTo(t, c.EffectiveAmount, "1545")
}

// =============================================================================
// CAP ALLOCATION
// =============================================================================

func TestCalculateContributions_GreedyCapAllocationByUrgency(t *testing.T) {
	// GIVEN three obligations each wanting 300 per cycle and a 500 cap
	now := date(2026, time.January, 1)
	in := engine.PlanInput{
		Obligations: []engine.Obligation{
			monthlyObligation("c", "Third", "300", now.AddDays(12)),
			monthlyObligation("a", "First", "300", now.AddDays(4)),
			monthlyObligation("b", "Second", "300", now.AddDays(8)),
		},
		MaxPerCycle: dec("500"),
		Cycle:       engine.CycleConfig{Type: engine.CycleFortnightly},
		Now:         now,
	}

	result := engine.CalculateContributions(in)

	// THEN the soonest-due obligation is funded first, the next gets the
	// remainder, the last gets nothing
	require.Len(t, result.Contributions, 3)
	assert.Equal(t, "a", result.Contributions[0].ObligationID)
	assert.True(t, result.Contributions[0].AllocatedPerCycle.Equal(dec("300")))
	assert.Equal(t, "b", result.Contributions[1].ObligationID)
	assert.True(t, result.Contributions[1].AllocatedPerCycle.Equal(dec("200")))
	assert.Equal(t, "c", result.Contributions[2].ObligationID)
	assert.True(t, result.Contributions[2].AllocatedPerCycle.IsZero())

	// AND the partially and fully starved obligations carry warnings
	require.Len(t, result.ShortfallWarnings, 2)
	assert.Equal(t, "b", result.ShortfallWarnings[0].ObligationID)
	assert.True(t, result.ShortfallWarnings[0].Shortfall.Equal(dec("100")))
	assert.Equal(t, "c", result.ShortfallWarnings[1].ObligationID)
	assert.True(t, result.ShortfallWarnings[1].Shortfall.Equal(dec("300")))

	// AND the capped total is the cap itself
	assert.True(t, result.TotalContributionPerCycle.Equal(dec("500")))
	assert.True(t, result.CapacityExceeded)
}

func TestCalculateContributions_SameDueDateTieBreaksByID(t *testing.T) {
	// GIVEN two obligations due the same day
	now := date(2026, time.January, 1)
	due := now.AddDays(10)
	in := engine.PlanInput{
		Obligations: []engine.Obligation{
			monthlyObligation("zeta", "Zeta", "100", due),
			monthlyObligation("alpha", "Alpha", "100", due),
		},
		MaxPerCycle: dec("100"),
		Cycle:       engine.CycleConfig{Type: engine.CycleFortnightly},
		Now:         now,
	}

	result := engine.CalculateContributions(in)

	// THEN the lexicographically smaller ID wins the cap
	require.Len(t, result.Contributions, 2)
	assert.Equal(t, "alpha", result.Contributions[0].ObligationID)
	assert.True(t, result.Contributions[0].AllocatedPerCycle.Equal(dec("100")))
	assert.True(t, result.Contributions[1].AllocatedPerCycle.IsZero())
}

func TestCalculateContributions_ZeroCapMeansUncapped(t *testing.T) {
	// GIVEN no cap configured
	now := date(2026, time.January, 1)
	in := engine.PlanInput{
		Obligations: []engine.Obligation{
			monthlyObligation("rent", "Rent", "5000", now.AddDays(14)),
		},
		Cycle: engine.CycleConfig{Type: engine.CycleFortnightly},
		Now:   now,
	}

	result := engine.CalculateContributions(in)

	// THEN demand passes through untouched
	assert.True(t, result.TotalContributionPerCycle.Equal(dec("5000")))
	assert.False(t, result.CapacityExceeded)
	assert.Empty(t, result.ShortfallWarnings)
}

// =============================================================================
// CUSTOM SCHEDULES
// =============================================================================

func TestCalculateContributions_CustomScheduleSumsUnpaidEntriesInHorizon(t *testing.T) {
	// GIVEN an insurance obligation paid in installments: one already paid,
	// two inside the horizon, one beyond it
	now := date(2026, time.January, 1)
	insurance := engine.Obligation{
		ID: "insurance", Name: "Insurance", IsActive: true,
		Amount: decimal.Zero,
		Schedule: engine.CustomSchedule{Entries: []engine.ScheduleEntry{
			{Due: now.AddMonths(-2), Amount: dec("340"), IsPaid: true},
			{Due: now.AddMonths(2), Amount: dec("340")},
			{Due: now.AddMonths(8), Amount: dec("355.60")},
			{Due: now.AddMonths(18), Amount: dec("400")},
		}},
	}
	in := engine.PlanInput{
		Obligations: []engine.Obligation{insurance},
		Balances:    []engine.FundBalance{{ObligationID: "insurance", Current: dec("120")}},
		Cycle:       engine.CycleConfig{Type: engine.CycleFortnightly},
		Now:         now,
	}

	result := engine.CalculateContributions(in)

	// THEN the requirement is the in-horizon unpaid sum, not netted
	// against the balance
	c := findContribution(t, result, "insurance")
	assert.True(t, c.AmountRequired.Equal(dec("695.60")), "AmountRequired = %s", c.AmountRequired)
	assert.True(t, c.EffectiveAmount.Equal(dec("695.60")))
	assert.True(t, c.FundedBalance.Equal(dec("120")))

	// AND the next due is the earliest unpaid entry
	assert.True(t, c.NextDue.Equal(now.AddMonths(2)))
}

func TestCalculateContributions_FullyPaidCustomScheduleSortsLast(t *testing.T) {
	// GIVEN a fully paid custom schedule alongside a live obligation
	now := date(2026, time.January, 1)
	paid := engine.Obligation{
		ID: "paid", Name: "Paid Off", IsActive: true,
		Schedule: engine.CustomSchedule{Entries: []engine.ScheduleEntry{
			{Due: now.AddMonths(-1), Amount: dec("100"), IsPaid: true},
		}},
	}
	in := engine.PlanInput{
		Obligations: []engine.Obligation{
			paid,
			monthlyObligation("rent", "Rent", "1500", now.AddDays(30)),
		},
		Cycle: engine.CycleConfig{Type: engine.CycleFortnightly},
		Now:   now,
	}

	result := engine.CalculateContributions(in)

	// THEN the paid-off obligation trails the list with zero requirement
	require.Len(t, result.Contributions, 2)
	assert.Equal(t, "rent", result.Contributions[0].ObligationID)
	assert.Equal(t, "paid", result.Contributions[1].ObligationID)
	assert.True(t, result.Contributions[1].AmountRequired.IsZero())
}

// =============================================================================
// WHAT-IF DUAL RUN
// =============================================================================

func TestCalculateWithWhatIf_ToggleOffLeavesActualUntouched(t *testing.T) {
	// GIVEN two obligations and an overlay toggling one off
	now := date(2026, time.January, 1)
	in := engine.PlanInput{
		Obligations: []engine.Obligation{
			monthlyObligation("rent", "Rent", "1500", now.AddDays(14)),
			monthlyObligation("gym", "Gym", "60", now.AddDays(7)),
		},
		Cycle: engine.CycleConfig{Type: engine.CycleFortnightly},
		Now:   now,
	}

	// WHEN running the what-if
	result := engine.CalculateWithWhatIf(in, engine.WhatIfOverrides{ToggledOffIDs: []string{"gym"}})

	// THEN the actual side still contains both
	assert.Len(t, result.Actual.Contributions, 2)
	assert.True(t, result.Actual.TotalRequired.Equal(dec("1560")))

	// AND the scenario side dropped the toggled one
	require.Len(t, result.Scenario.Contributions, 1)
	assert.Equal(t, "rent", result.Scenario.Contributions[0].ObligationID)
	assert.True(t, result.Scenario.TotalRequired.Equal(dec("1500")))
}

func TestCalculateWithWhatIf_AmountOverrideAndHypothetical(t *testing.T) {
	// GIVEN an amount override and a hypothetical obligation
	now := date(2026, time.January, 1)
	in := engine.PlanInput{
		Obligations: []engine.Obligation{
			monthlyObligation("rent", "Rent", "1500", now.AddDays(14)),
		},
		Cycle: engine.CycleConfig{Type: engine.CycleFortnightly},
		Now:   now,
	}
	overrides := engine.WhatIfOverrides{
		AmountOverrides: map[string]decimal.Decimal{"rent": dec("1700")},
		Hypotheticals: []engine.Obligation{
			monthlyObligation("whatif-obligation-0", "New Car", "450", now.AddDays(20)),
		},
	}

	result := engine.CalculateWithWhatIf(in, overrides)

	// THEN the scenario sees the override and the extra obligation
	assert.True(t, result.Scenario.TotalRequired.Equal(dec("2150")))
	assert.Len(t, result.Scenario.Contributions, 2)

	// AND the actual stays on the stored amount
	assert.True(t, result.Actual.TotalRequired.Equal(dec("1500")))
	assert.Len(t, result.Actual.Contributions, 1)
}

func TestApplyOverrides_EscalationOverridesAreAdditive(t *testing.T) {
	// GIVEN an obligation with one real rule and an overlay adding another
	o := monthlyObligation("rent", "Rent", "1500", date(2026, time.June, 1))
	o.Escalations = []engine.EscalationRule{{ID: "real", ObligationID: "rent"}}

	overlaid := engine.ApplyOverrides([]engine.Obligation{o}, engine.WhatIfOverrides{
		EscalationOverrides: map[string][]engine.EscalationRule{
			"rent": {{ID: "hypo", ObligationID: "rent"}},
		},
	})

	// THEN the scenario copy has both rules
	require.Len(t, overlaid, 1)
	assert.Len(t, overlaid[0].Escalations, 2)

	// AND the original is untouched
	assert.Len(t, o.Escalations, 1)
}
