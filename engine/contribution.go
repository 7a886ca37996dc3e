/*
contribution.go - Per-cycle contribution calculation

PURPOSE:
  For every obligation in the plan, works out how much still has to be set
  aside before its next due point and spreads that over the contribution
  cycles remaining. Aggregates the per-obligation requirements against the
  user's per-cycle cap, allocating the cap greedily by due-date urgency and
  reporting the rest as shortfall warnings.

PIPELINE POSITION:
  ResolveCycleConfig -> CalculateContributions -> BuildSnapshot
                                \-> ProjectTimeline (uses the per-cycle total)

SEE ALSO:
  - escalation.go: resolves each obligation's effective amount at "now"
  - whatif.go: the overlay applied before the scenario run
  - snapshot.go: the user-facing summary of an EngineResult
*/
package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultHorizonMonths is the planning window when the caller does not pick
// one. Horizons are clamped to [1, 12] at this boundary.
const DefaultHorizonMonths = 12

// PlanInput is a snapshot of everything the calculator needs. It is plain
// data: the calculator performs no I/O and is safe to call concurrently.
type PlanInput struct {
	Obligations []Obligation
	Balances    []FundBalance

	// MaxPerCycle caps the total contribution per cycle. Zero or negative
	// means no cap is configured.
	MaxPerCycle decimal.Decimal

	Cycle CycleConfig
	Now   TimePoint

	// HorizonMonths bounds escalation projection and custom-schedule sums.
	// Zero selects DefaultHorizonMonths.
	HorizonMonths int
}

func (in PlanInput) horizon() int {
	h := in.HorizonMonths
	if h == 0 {
		h = DefaultHorizonMonths
	}
	if h < 1 {
		h = 1
	}
	if h > 12 {
		h = 12
	}
	return h
}

// Contribution is the per-obligation breakdown.
type Contribution struct {
	ObligationID string
	Name         string

	// NextDue is zero-valued for a fully paid custom schedule.
	NextDue TimePoint

	// EffectiveAmount is the escalation-resolved amount as of "now".
	EffectiveAmount decimal.Decimal

	FundedBalance  decimal.Decimal
	AmountRequired decimal.Decimal

	CyclesRemaining  int
	RequiredPerCycle decimal.Decimal

	// AllocatedPerCycle is what the obligation actually receives after the
	// cap is spread by urgency. Equals RequiredPerCycle when capacity is
	// sufficient.
	AllocatedPerCycle decimal.Decimal
}

// ShortfallWarning flags an obligation the cap could not fully fund.
type ShortfallWarning struct {
	ObligationID string
	Name         string
	NextDue      TimePoint

	RequiredPerCycle  decimal.Decimal
	AllocatedPerCycle decimal.Decimal
	Shortfall         decimal.Decimal
}

// EngineResult is computed, never persisted.
type EngineResult struct {
	Contributions []Contribution

	TotalRequired decimal.Decimal
	TotalFunded   decimal.Decimal

	// TotalContributionPerCycle is the allocated total: the sum of
	// per-obligation requirements, capped. The uncapped demand is visible
	// through the shortfall warnings.
	TotalContributionPerCycle decimal.Decimal

	ShortfallWarnings []ShortfallWarning
	IsFullyFunded     bool
	CapacityExceeded  bool
}

// WhatIfResult pairs the unmodified baseline with the overlaid scenario so
// callers can diff them.
type WhatIfResult struct {
	Actual   EngineResult
	Scenario EngineResult
}

// =============================================================================
// CALCULATOR
// =============================================================================

// CalculateContributions computes the per-cycle contribution plan. Only
// active, non-paused, non-archived obligations participate.
func CalculateContributions(in PlanInput) EngineResult {
	horizon := in.horizon()
	horizonEnd := in.Now.AddMonths(horizon)
	balances := balanceIndex(in.Balances)

	var contributions []Contribution
	for _, o := range in.Obligations {
		if !o.InPlan() {
			continue
		}
		contributions = append(contributions, buildContribution(o, balances[o.ID], in, horizon, horizonEnd))
	}

	sortByUrgency(contributions)
	result := EngineResult{Contributions: contributions}

	demand := decimal.Zero
	for i := range contributions {
		c := &contributions[i]
		result.TotalRequired = result.TotalRequired.Add(c.EffectiveAmount)
		result.TotalFunded = result.TotalFunded.Add(c.FundedBalance)
		demand = demand.Add(c.RequiredPerCycle)
	}

	capped := in.MaxPerCycle.IsPositive() && demand.GreaterThan(in.MaxPerCycle)
	result.CapacityExceeded = capped

	// Greedy cap allocation: the list is already in urgency order, so walk it
	// handing out the cap until exhausted.
	remaining := demand
	if capped {
		remaining = in.MaxPerCycle
	}
	for i := range contributions {
		c := &contributions[i]
		alloc := decimal.Min(c.RequiredPerCycle, remaining)
		if alloc.IsNegative() {
			alloc = decimal.Zero
		}
		c.AllocatedPerCycle = alloc
		remaining = remaining.Sub(alloc)

		if alloc.LessThan(c.RequiredPerCycle) {
			result.ShortfallWarnings = append(result.ShortfallWarnings, ShortfallWarning{
				ObligationID:      c.ObligationID,
				Name:              c.Name,
				NextDue:           c.NextDue,
				RequiredPerCycle:  c.RequiredPerCycle,
				AllocatedPerCycle: alloc,
				Shortfall:         c.RequiredPerCycle.Sub(alloc),
			})
		}
	}

	result.TotalContributionPerCycle = demand
	if capped {
		result.TotalContributionPerCycle = in.MaxPerCycle
	}

	result.IsFullyFunded = true
	for _, c := range contributions {
		if c.AmountRequired.IsPositive() {
			result.IsFullyFunded = false
			break
		}
	}
	return result
}

// CalculateWithWhatIf runs the calculator twice: unmodified, and with the
// overlay applied. Both runs share one code path so real and hypothetical
// logic can never drift.
func CalculateWithWhatIf(in PlanInput, overrides WhatIfOverrides) WhatIfResult {
	scenario := in
	scenario.Obligations = ApplyOverrides(in.Obligations, overrides)
	return WhatIfResult{
		Actual:   CalculateContributions(in),
		Scenario: CalculateContributions(scenario),
	}
}

func buildContribution(o Obligation, balance decimal.Decimal, in PlanInput, horizon int, horizonEnd TimePoint) Contribution {
	c := Contribution{
		ObligationID:  o.ID,
		Name:          o.Name,
		FundedBalance: balance,
	}

	if due, ok := o.NextDue(); ok {
		c.NextDue = due
	}

	if custom, ok := o.Schedule.(CustomSchedule); ok {
		// Custom schedules carry per-entry amounts; the required total is the
		// unpaid entries inside the horizon, not netted against the balance.
		required := decimal.Zero
		for _, e := range custom.Entries {
			if e.IsPaid || e.Due.Before(in.Now) || e.Due.After(horizonEnd) {
				continue
			}
			required = required.Add(e.Amount)
		}
		c.EffectiveAmount = required
		c.AmountRequired = required
	} else {
		c.EffectiveAmount = AmountAtDate(o.Amount, o.Escalations, in.Now, horizon, in.Now)
		c.AmountRequired = c.EffectiveAmount.Sub(balance)
		if c.AmountRequired.IsNegative() {
			c.AmountRequired = decimal.Zero
		}
	}

	c.CyclesRemaining = 1
	if !c.NextDue.IsZero() {
		c.CyclesRemaining = CyclesUntil(in.Cycle, in.Now, c.NextDue)
	}
	c.RequiredPerCycle = c.AmountRequired.Div(decimal.NewFromInt(int64(c.CyclesRemaining)))
	return c
}

// sortByUrgency orders by next due date, soonest first, with obligation ID as
// the deterministic tie-break. Fully paid custom schedules (zero NextDue)
// sort last.
func sortByUrgency(contributions []Contribution) {
	sort.SliceStable(contributions, func(i, j int) bool {
		a, b := contributions[i], contributions[j]
		if a.NextDue.IsZero() != b.NextDue.IsZero() {
			return !a.NextDue.IsZero()
		}
		if !a.NextDue.Equal(b.NextDue) {
			return a.NextDue.Before(b.NextDue)
		}
		return a.ObligationID < b.ObligationID
	})
}
