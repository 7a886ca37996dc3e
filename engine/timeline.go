/*
timeline.go - Forward fund-balance simulation

PURPOSE:
  Walks the fund balance forward from "now" to a horizon, interleaving
  contribution inflows at cycle boundaries with obligation outflows at their
  due dates, and flags every date where the projected balance goes negative
  (a "crunch point").

ORDERING INVARIANT:
  Inflows and outflows on the same date apply inflow first. Contributions
  typically post before the obligation debits on a pay day; applying them in
  the other order would report spurious crunch points on same-day overlaps.

SEE ALSO:
  - cycle.go: the boundary logic the inflow stream is built from
  - escalation.go: resolves each outflow's amount at its future due date
*/
package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// TimelineInput is a snapshot of everything the simulator needs.
type TimelineInput struct {
	Obligations []Obligation
	Balances    []FundBalance

	// CurrentFundBalance is the opening balance. When zero and per-obligation
	// balances exist, their sum is used instead.
	CurrentFundBalance decimal.Decimal

	ContributionPerCycle decimal.Decimal
	Cycle                CycleConfig
	Now                  TimePoint

	// MonthsAhead is clamped to [1, 12].
	MonthsAhead int
}

// DataPoint is the running balance after one event.
type DataPoint struct {
	Date             TimePoint
	ProjectedBalance decimal.Decimal
}

// Marker records a single inflow or outflow for charting.
type Marker struct {
	Date   TimePoint
	Amount decimal.Decimal

	// Outflow markers only.
	ObligationID string
	Name         string
}

// CrunchPoint is a date where the projected balance dips below zero.
type CrunchPoint struct {
	Date    TimePoint
	Balance decimal.Decimal
}

type TimelineResult struct {
	DataPoints          []DataPoint
	ExpenseMarkers      []Marker
	ContributionMarkers []Marker
	CrunchPoints        []CrunchPoint
	StartDate           TimePoint
	EndDate             TimePoint
}

type timelineEvent struct {
	date    TimePoint
	amount  decimal.Decimal
	inflow  bool
	oblID   string
	oblName string
}

// =============================================================================
// SIMULATOR
// =============================================================================

// ProjectTimeline simulates the fund balance over [now, now+monthsAhead].
// A data point is emitted after every event; a crunch point is recorded at
// every transition from non-negative to negative, not just the first.
func ProjectTimeline(in TimelineInput) TimelineResult {
	months := in.MonthsAhead
	if months < 1 {
		months = 1
	}
	if months > 12 {
		months = 12
	}
	end := in.Now.AddMonths(months)

	events := make([]timelineEvent, 0, 32)
	for _, at := range CycleBoundaries(in.Cycle, in.Now, end) {
		events = append(events, timelineEvent{date: at, amount: in.ContributionPerCycle, inflow: true})
	}
	for _, o := range in.Obligations {
		if !o.InPlan() {
			continue
		}
		events = append(events, outflowEvents(o, in.Now, end, months)...)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].date.Equal(events[j].date) {
			return events[i].date.Before(events[j].date)
		}
		// Inflow before outflow on ties.
		return events[i].inflow && !events[j].inflow
	})

	balance := in.CurrentFundBalance
	if balance.IsZero() {
		for _, b := range in.Balances {
			balance = balance.Add(b.Current)
		}
	}

	result := TimelineResult{StartDate: in.Now, EndDate: end}
	result.DataPoints = append(result.DataPoints, DataPoint{Date: in.Now, ProjectedBalance: balance})

	for _, e := range events {
		wasNegative := balance.IsNegative()
		if e.inflow {
			balance = balance.Add(e.amount)
			result.ContributionMarkers = append(result.ContributionMarkers, Marker{Date: e.date, Amount: e.amount})
		} else {
			balance = balance.Sub(e.amount)
			result.ExpenseMarkers = append(result.ExpenseMarkers, Marker{
				Date:         e.date,
				Amount:       e.amount,
				ObligationID: e.oblID,
				Name:         e.oblName,
			})
		}
		result.DataPoints = append(result.DataPoints, DataPoint{Date: e.date, ProjectedBalance: balance})
		if !wasNegative && balance.IsNegative() {
			result.CrunchPoints = append(result.CrunchPoints, CrunchPoint{Date: e.date, Balance: balance})
		}
	}
	return result
}

// outflowEvents expands one obligation's due dates inside [now, end], each
// amount resolved at its own due date so escalations land at the right point
// in the future.
func outflowEvents(o Obligation, now, end TimePoint, months int) []timelineEvent {
	var events []timelineEvent
	switch s := o.Schedule.(type) {
	case RecurringSchedule:
		for _, due := range s.DueDatesWithin(now, end) {
			amount := AmountAtDate(o.Amount, o.Escalations, now, months, due)
			events = append(events, timelineEvent{date: due, amount: amount, oblID: o.ID, oblName: o.Name})
		}
	case OneOffSchedule:
		if s.Due.AfterOrEqual(now) && s.Due.BeforeOrEqual(end) {
			amount := AmountAtDate(o.Amount, o.Escalations, now, months, s.Due)
			events = append(events, timelineEvent{date: s.Due, amount: amount, oblID: o.ID, oblName: o.Name})
		}
	case CustomSchedule:
		for _, e := range s.Entries {
			if e.IsPaid || e.Due.Before(now) || e.Due.After(end) {
				continue
			}
			events = append(events, timelineEvent{date: e.Due, amount: e.Amount, oblID: o.ID, oblName: o.Name})
		}
	}
	return events
}
