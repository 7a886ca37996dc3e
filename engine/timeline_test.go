/*
timeline_test.go - Specification tests for the fund-balance simulator

PURPOSE:
  Pins down the event interleaving (inflow before outflow on shared dates),
  the data-point and crunch-point emission rules, and the opening balance
  fallback.
*/
package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fund-engine/engine"
)

func TestProjectTimeline_DataPointDatesNeverDecrease(t *testing.T) {
	// GIVEN a busy three-month window
	now := date(2026, time.January, 1)
	result := engine.ProjectTimeline(engine.TimelineInput{
		Obligations: []engine.Obligation{
			monthlyObligation("rent", "Rent", "1500", now.AddDays(14)),
			monthlyObligation("power", "Power", "180", now.AddDays(20)),
		},
		CurrentFundBalance:   dec("500"),
		ContributionPerCycle: dec("400"),
		Cycle:                engine.CycleConfig{Type: engine.CycleFortnightly},
		Now:                  now,
		MonthsAhead:          3,
	})

	// THEN data points form a non-decreasing date sequence starting at now
	require.NotEmpty(t, result.DataPoints)
	assert.True(t, result.DataPoints[0].Date.Equal(now))
	for i := 1; i < len(result.DataPoints); i++ {
		assert.False(t, result.DataPoints[i].Date.Before(result.DataPoints[i-1].Date),
			"data point %d goes backwards", i)
	}

	// AND the window bounds are exact
	assert.True(t, result.StartDate.Equal(now))
	assert.True(t, result.EndDate.Equal(now.AddMonths(3)))
}

func TestProjectTimeline_InflowAppliesBeforeOutflowOnSharedDate(t *testing.T) {
	// GIVEN an obligation due exactly on a contribution boundary, where the
	// balance only survives if the inflow lands first
	now := date(2026, time.January, 1)
	due := now.AddDays(14)
	result := engine.ProjectTimeline(engine.TimelineInput{
		Obligations: []engine.Obligation{
			monthlyObligation("rent", "Rent", "400", due),
		},
		CurrentFundBalance:   dec("100"),
		ContributionPerCycle: dec("300"),
		Cycle:                engine.CycleConfig{Type: engine.CycleFortnightly},
		Now:                  now,
		MonthsAhead:          1,
	})

	// THEN no crunch point appears on the shared date: 100 + 300 - 400 = 0
	for _, cp := range result.CrunchPoints {
		assert.False(t, cp.Date.Equal(due), "spurious crunch point on %s", cp.Date)
	}
}

func TestProjectTimeline_CrunchPointAtEveryNegativeTransition(t *testing.T) {
	// GIVEN outflows that drive the balance negative twice, with a recovery
	// in between and no contributions
	now := date(2026, time.January, 1)
	result := engine.ProjectTimeline(engine.TimelineInput{
		Obligations: []engine.Obligation{
			{
				ID: "bills", Name: "Bills", IsActive: true,
				Schedule: engine.CustomSchedule{Entries: []engine.ScheduleEntry{
					{Due: now.AddDays(5), Amount: dec("150")},
					{Due: now.AddDays(40), Amount: dec("150")},
				}},
			},
		},
		CurrentFundBalance:   dec("100"),
		ContributionPerCycle: dec("200"),
		Cycle:                engine.CycleConfig{Type: engine.CycleMonthly, PayDays: []int{20}},
		Now:                  now,
		MonthsAhead:          2,
	})

	// Balance walk: 100, -50 (crunch), +200 on the 20th -> 150,
	// -150 at day 40 -> 0, +200 -> 200. One transition below zero.
	require.Len(t, result.CrunchPoints, 1)
	assert.True(t, result.CrunchPoints[0].Date.Equal(now.AddDays(5)))
	assert.True(t, result.CrunchPoints[0].Balance.Equal(dec("-50")))
}

func TestProjectTimeline_SecondDipRecordsSecondCrunchPoint(t *testing.T) {
	// GIVEN a balance that recovers above zero and dips again
	now := date(2026, time.January, 1)
	result := engine.ProjectTimeline(engine.TimelineInput{
		Obligations: []engine.Obligation{
			{
				ID: "bills", Name: "Bills", IsActive: true,
				Schedule: engine.CustomSchedule{Entries: []engine.ScheduleEntry{
					{Due: now.AddDays(5), Amount: dec("150")},
					{Due: now.AddDays(25), Amount: dec("300")},
				}},
			},
		},
		CurrentFundBalance:   dec("100"),
		ContributionPerCycle: dec("250"),
		Cycle:                engine.CycleConfig{Type: engine.CycleMonthly, PayDays: []int{15}},
		Now:                  now,
		MonthsAhead:          1,
	})

	// Walk: 100, -50 (crunch), +250 -> 200, -300 -> -100 (crunch again).
	require.Len(t, result.CrunchPoints, 2)
	assert.True(t, result.CrunchPoints[0].Balance.Equal(dec("-50")))
	assert.True(t, result.CrunchPoints[1].Balance.Equal(dec("-100")))
}

func TestProjectTimeline_OpeningBalanceFallsBackToPerObligationSum(t *testing.T) {
	// GIVEN no fund-level balance but per-obligation balances
	now := date(2026, time.January, 1)
	result := engine.ProjectTimeline(engine.TimelineInput{
		Balances: []engine.FundBalance{
			{ObligationID: "a", Current: dec("120")},
			{ObligationID: "b", Current: dec("80")},
		},
		Cycle:       engine.CycleConfig{Type: engine.CycleFortnightly},
		Now:         now,
		MonthsAhead: 1,
	})

	// THEN the opening data point carries their sum
	require.NotEmpty(t, result.DataPoints)
	assert.True(t, result.DataPoints[0].ProjectedBalance.Equal(dec("200")))
}

func TestProjectTimeline_EscalatedOutflowAmountsAtFutureDueDates(t *testing.T) {
	// GIVEN monthly rent with a one-off increase effective between the second
	// and third occurrence
	now := date(2026, time.January, 1)
	rent := monthlyObligation("rent", "Rent", "1000", now.AddDays(10))
	rent.Escalations = []engine.EscalationRule{{
		ID: "bump", ObligationID: "rent",
		ChangeType: engine.ChangeFixedIncrease, Value: dec("100"),
		EffectiveDate: now.AddMonths(2),
	}}

	result := engine.ProjectTimeline(engine.TimelineInput{
		Obligations:          []engine.Obligation{rent},
		CurrentFundBalance:   dec("10000"),
		ContributionPerCycle: dec("0"),
		Cycle:                engine.CycleConfig{Type: engine.CycleFortnightly},
		Now:                  now,
		MonthsAhead:          4,
	})

	// THEN occurrences before the effective date debit 1000 and the ones
	// after debit 1100
	require.Len(t, result.ExpenseMarkers, 4)
	assert.True(t, result.ExpenseMarkers[0].Amount.Equal(dec("1000")))
	assert.True(t, result.ExpenseMarkers[1].Amount.Equal(dec("1000")))
	assert.True(t, result.ExpenseMarkers[2].Amount.Equal(dec("1100")))
	assert.True(t, result.ExpenseMarkers[3].Amount.Equal(dec("1100")))
}

func TestProjectTimeline_MonthsAheadClamped(t *testing.T) {
	// GIVEN an out-of-range horizon request
	now := date(2026, time.January, 1)
	result := engine.ProjectTimeline(engine.TimelineInput{
		Cycle:       engine.CycleConfig{Type: engine.CycleFortnightly},
		Now:         now,
		MonthsAhead: 60,
	})

	// THEN the window stops at twelve months
	assert.True(t, result.EndDate.Equal(now.AddMonths(12)))

	// AND a zero request still covers one month
	result = engine.ProjectTimeline(engine.TimelineInput{
		Cycle: engine.CycleConfig{Type: engine.CycleFortnightly},
		Now:   now,
	})
	assert.True(t, result.EndDate.Equal(now.AddMonths(1)))
}

func TestProjectTimeline_PausedObligationsCastNoOutflows(t *testing.T) {
	// GIVEN a paused obligation
	now := date(2026, time.January, 1)
	paused := monthlyObligation("rent", "Rent", "1500", now.AddDays(10))
	paused.IsPaused = true

	result := engine.ProjectTimeline(engine.TimelineInput{
		Obligations:          []engine.Obligation{paused},
		CurrentFundBalance:   dec("100"),
		ContributionPerCycle: dec("50"),
		Cycle:                engine.CycleConfig{Type: engine.CycleFortnightly},
		Now:                  now,
		MonthsAhead:          2,
	})

	// THEN it contributes no expense markers and no crunch points
	assert.Empty(t, result.ExpenseMarkers)
	assert.Empty(t, result.CrunchPoints)
}
