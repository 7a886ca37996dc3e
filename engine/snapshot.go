package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SNAPSHOT - The user-facing summary of a contribution plan
// =============================================================================

// PlanSnapshot is a small, displayable summary of an EngineResult. Amounts
// are rounded to 2dp here because this is the display boundary; the engine
// carries full precision everywhere else.
type PlanSnapshot struct {
	TotalRequired             decimal.Decimal
	TotalFunded               decimal.Decimal
	TotalContributionPerCycle decimal.Decimal
	CyclePeriodLabel          string

	// Next action: the single most urgent unfunded obligation. All three are
	// unset when the plan is fully funded.
	NextActionAmount      *decimal.Decimal
	NextActionDate        *TimePoint
	NextActionDescription string

	IsFullyFunded bool
}

// BuildSnapshot formats an EngineResult for display. The most urgent unfunded
// obligation (contributions are already sorted by urgency) becomes the next
// action; a fully funded plan gets a neutral message instead of naming an
// obligation.
func BuildSnapshot(result EngineResult, cycle CycleConfig) PlanSnapshot {
	snap := PlanSnapshot{
		TotalRequired:             result.TotalRequired.Round(2),
		TotalFunded:               result.TotalFunded.Round(2),
		TotalContributionPerCycle: result.TotalContributionPerCycle.Round(2),
		CyclePeriodLabel:          cycle.Label(),
		IsFullyFunded:             result.IsFullyFunded,
	}

	for _, c := range result.Contributions {
		if !c.AmountRequired.IsPositive() {
			continue
		}
		amount := c.RequiredPerCycle.Round(2)
		due := c.NextDue
		snap.NextActionAmount = &amount
		snap.NextActionDate = &due
		snap.NextActionDescription = fmt.Sprintf(
			"Set aside %s %s for %s (due %s)",
			amount.StringFixed(2), cycle.Label(), c.Name, due.String(),
		)
		return snap
	}

	snap.NextActionDescription = "All obligations are fully funded."
	return snap
}
