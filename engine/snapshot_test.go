/*
snapshot_test.go - Specification tests for the plan snapshot builder
*/
package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fund-engine/engine"
)

func TestBuildSnapshot_NextActionIsMostUrgentUnfundedObligation(t *testing.T) {
	// GIVEN a calculated plan where the soonest-due obligation still needs money
	now := date(2026, time.January, 1)
	result := engine.CalculateContributions(engine.PlanInput{
		Obligations: []engine.Obligation{
			monthlyObligation("rent", "Rent", "1500", now.AddDays(5)),
			monthlyObligation("power", "Power", "180", now.AddDays(20)),
		},
		Cycle: engine.CycleConfig{Type: engine.CycleFortnightly},
		Now:   now,
	})

	// WHEN building the snapshot
	snap := engine.BuildSnapshot(result, engine.CycleConfig{Type: engine.CycleFortnightly})

	// THEN the next action names the rent, with its per-cycle amount and due date
	require.NotNil(t, snap.NextActionAmount)
	require.NotNil(t, snap.NextActionDate)
	assert.True(t, snap.NextActionAmount.Equal(dec("1500")))
	assert.True(t, snap.NextActionDate.Equal(now.AddDays(5)))
	assert.Contains(t, snap.NextActionDescription, "Rent")
	assert.Contains(t, snap.NextActionDescription, "per fortnight")
	assert.False(t, snap.IsFullyFunded)
}

func TestBuildSnapshot_SkipsFundedObligationsForNextAction(t *testing.T) {
	// GIVEN the most urgent obligation is already fully funded
	now := date(2026, time.January, 1)
	result := engine.CalculateContributions(engine.PlanInput{
		Obligations: []engine.Obligation{
			monthlyObligation("funded", "Funded", "100", now.AddDays(3)),
			monthlyObligation("unfunded", "Unfunded", "200", now.AddDays(10)),
		},
		Balances: []engine.FundBalance{{ObligationID: "funded", Current: dec("100")}},
		Cycle:    engine.CycleConfig{Type: engine.CycleFortnightly},
		Now:      now,
	})

	snap := engine.BuildSnapshot(result, engine.CycleConfig{Type: engine.CycleFortnightly})

	// THEN the next action skips to the unfunded one
	assert.Contains(t, snap.NextActionDescription, "Unfunded")
}

func TestBuildSnapshot_FullyFundedPlanGetsNeutralMessage(t *testing.T) {
	// GIVEN every obligation is covered
	now := date(2026, time.January, 1)
	result := engine.CalculateContributions(engine.PlanInput{
		Obligations: []engine.Obligation{
			monthlyObligation("rent", "Rent", "1500", now.AddDays(14)),
		},
		Balances: []engine.FundBalance{{ObligationID: "rent", Current: dec("1500")}},
		Cycle:    engine.CycleConfig{Type: engine.CycleFortnightly},
		Now:      now,
	})

	snap := engine.BuildSnapshot(result, engine.CycleConfig{Type: engine.CycleFortnightly})

	// THEN no obligation is named and the neutral message appears
	assert.Nil(t, snap.NextActionAmount)
	assert.Nil(t, snap.NextActionDate)
	assert.Equal(t, "All obligations are fully funded.", snap.NextActionDescription)
	assert.True(t, snap.IsFullyFunded)
}

func TestBuildSnapshot_AmountsRoundedForDisplay(t *testing.T) {
	// GIVEN per-cycle math that produces repeating decimals
	now := date(2026, time.January, 1)
	result := engine.CalculateContributions(engine.PlanInput{
		Obligations: []engine.Obligation{
			monthlyObligation("rates", "Rates", "1000", now.AddDays(42)),
		},
		Cycle: engine.CycleConfig{Type: engine.CycleFortnightly},
		Now:   now,
	})

	snap := engine.BuildSnapshot(result, engine.CycleConfig{Type: engine.CycleFortnightly})

	// THEN 1000 over 3 cycles surfaces as 333.33
	require.NotNil(t, snap.NextActionAmount)
	assert.Equal(t, "333.33", snap.NextActionAmount.StringFixed(2))
	assert.Equal(t, "1000.00", snap.TotalRequired.StringFixed(2))
}
