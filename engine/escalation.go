/*
escalation.go - Amount projection under escalation rules

PURPOSE:
  Answers two questions about an obligation whose amount changes over time:
  1. Which (date, amount) change events fall inside a projection window?
  2. What is the effective amount at a given date?

KEY INSIGHT:
  Recurring rules are never materialized. Their occurrences strictly before
  the window are REPLAYED into a running base amount (so the amount entering
  the window reflects all historical compounding) but not emitted; only
  occurrences inside the window become events. One-off rules that the
  Reconciler has already applied are skipped entirely - their effect is
  already folded into the obligation's stored amount.

MERGE RULE:
  When a one-off and a recurring occurrence share a date, the one-off wins:
  it is applied and the recurring emission for that date is suppressed. The
  recurring sequence still advances its own clock, so its next occurrence
  compounds from whatever amount the one-off produced.

PRECISION:
  Full decimal precision is carried between compounding steps. Rounding is
  a display concern only.

SEE ALSO:
  - contribution.go: resolves each obligation's effective amount at "now"
  - timeline.go: resolves due amounts at future dates
  - reconciler.go: materializes due one-off rules into stored amounts
*/
package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// EscalationEvent is one projected amount change. Amount is the running
// amount after the change is applied.
type EscalationEvent struct {
	At        TimePoint
	Amount    decimal.Decimal
	RuleID    string
	Recurring bool
}

type escalationOccurrence struct {
	at        TimePoint
	rule      EscalationRule
	recurring bool
}

// ProjectEscalations projects the amount changes for one obligation inside
// [windowStart, windowStart+monthsAhead], seeded with the obligation's
// current stored amount. Events are returned in ascending date order with
// post-application amounts.
func ProjectEscalations(current decimal.Decimal, rules []EscalationRule, windowStart TimePoint, monthsAhead int) []EscalationEvent {
	windowEnd := windowStart.AddMonths(monthsAhead)

	var replay, inWindow []escalationOccurrence
	for _, r := range rules {
		if r.Recurring() {
			for k := 0; ; k++ {
				at := r.EffectiveDate.AddMonths(k * r.IntervalMonths)
				if at.After(windowEnd) {
					break
				}
				occ := escalationOccurrence{at: at, rule: r, recurring: true}
				if at.Before(windowStart) {
					replay = append(replay, occ)
				} else {
					inWindow = append(inWindow, occ)
				}
			}
			continue
		}

		// One-off already materialized by the Reconciler: its effect is in
		// the stored amount, projecting it again would double-apply.
		if r.IsApplied {
			continue
		}
		if r.EffectiveDate.Before(windowStart) || r.EffectiveDate.After(windowEnd) {
			continue
		}
		inWindow = append(inWindow, escalationOccurrence{at: r.EffectiveDate, rule: r})
	}

	sortOccurrences(replay)
	sortOccurrences(inWindow)

	amount := current
	for _, occ := range replay {
		amount = occ.rule.Apply(amount)
	}

	var events []EscalationEvent
	for i := 0; i < len(inWindow); {
		j := i
		for j < len(inWindow) && inWindow[j].at.Equal(inWindow[i].at) {
			j++
		}

		hasOneOff := false
		for _, occ := range inWindow[i:j] {
			if !occ.recurring {
				hasOneOff = true
				break
			}
		}

		for _, occ := range inWindow[i:j] {
			if hasOneOff && occ.recurring {
				// Suppressed: the one-off takes precedence on this date. The
				// recurring clock has already advanced past it.
				continue
			}
			amount = occ.rule.Apply(amount)
			events = append(events, EscalationEvent{
				At:        occ.at,
				Amount:    amount,
				RuleID:    occ.rule.ID,
				Recurring: occ.recurring,
			})
		}
		i = j
	}
	return events
}

// AmountAtDate resolves the effective amount at target: the amount after the
// last projected event with date <= target, or current when no such event
// exists. The window must cover the target date.
func AmountAtDate(current decimal.Decimal, rules []EscalationRule, windowStart TimePoint, monthsAhead int, target TimePoint) decimal.Decimal {
	amount := current
	for _, e := range ProjectEscalations(current, rules, windowStart, monthsAhead) {
		if e.At.After(target) {
			break
		}
		amount = e.Amount
	}
	return amount
}

// sortOccurrences orders by date, then one-off before recurring, then rule ID
// so same-date behavior is deterministic regardless of input order.
func sortOccurrences(occs []escalationOccurrence) {
	sort.Slice(occs, func(i, j int) bool {
		if !occs[i].at.Equal(occs[j].at) {
			return occs[i].at.Before(occs[j].at)
		}
		if occs[i].recurring != occs[j].recurring {
			return !occs[i].recurring
		}
		return occs[i].rule.ID < occs[j].rule.ID
	})
}
