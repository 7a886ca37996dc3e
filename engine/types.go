/*
Package engine is the core projection engine for obligation funding.

PURPOSE:
  This package contains the pure domain types and algorithms for planning
  how recurring and one-off financial obligations (rent, subscriptions,
  irregular bills) are funded from periodic income: escalation projection,
  per-cycle contribution math, fund-balance simulation, and what-if
  overlays.

KEY CONCEPTS IN THIS FILE (types.go):
  - Obligation: a tracked payment obligation with a Schedule sum type
  - Schedule: Recurring / OneOff / Custom variants (no nullable field soup)
  - EscalationRule: a scheduled change to an obligation's amount
  - FundBalance: money already set aside toward one obligation
  - IncomeSource / UserSettings: inputs to cycle resolution

DESIGN PRINCIPLES:
  1. Purity: the read path is side-effect free; "now" is always a parameter
  2. Precision: decimal.Decimal for all money, no float drift between steps
  3. Illegal states unrepresentable: obligation kind is derived from its
     schedule variant, so a one-off can never carry frequency fields

SEE ALSO:
  - escalation.go: amount projection under escalation rules
  - contribution.go: per-cycle contribution calculation
  - timeline.go: forward fund-balance simulation
  - reconciler.go: the one write-path job (applies due one-off rules)
*/
package engine

import (
	"github.com/shopspring/decimal"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// MustDecimal parses a decimal literal, returning zero on malformed input.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// OBLIGATION - A recurring or one-off payment obligation
// =============================================================================

type ObligationType string

const (
	ObligationRecurring        ObligationType = "recurring"
	ObligationRecurringWithEnd ObligationType = "recurring_with_end"
	ObligationOneOff           ObligationType = "one_off"
	ObligationCustom           ObligationType = "custom"
)

type Obligation struct {
	ID     string
	UserID string
	Name   string

	// Base amount per occurrence. Mutated only by the Reconciler or a direct
	// edit; projections layer escalations on top without touching it.
	Amount decimal.Decimal

	// Schedule determines when the obligation falls due. The obligation's
	// type tag is derived from the variant, see Type().
	Schedule Schedule

	Escalations []EscalationRule

	// Grouping only; not part of engine math.
	FundGroupID string

	IsPaused   bool
	IsActive   bool
	IsArchived bool
}

// Type derives the obligation kind from its schedule variant.
func (o Obligation) Type() ObligationType {
	switch s := o.Schedule.(type) {
	case RecurringSchedule:
		if s.EndDate != nil {
			return ObligationRecurringWithEnd
		}
		return ObligationRecurring
	case OneOffSchedule:
		return ObligationOneOff
	case CustomSchedule:
		return ObligationCustom
	default:
		return ObligationRecurring
	}
}

// InPlan reports whether the obligation participates in contribution and
// timeline math.
func (o Obligation) InPlan() bool {
	return o.IsActive && !o.IsPaused && !o.IsArchived
}

// NextDue returns the obligation's next due point. For custom schedules this
// is the earliest unpaid entry. ok is false when nothing is due (a fully paid
// custom schedule).
func (o Obligation) NextDue() (TimePoint, bool) {
	switch s := o.Schedule.(type) {
	case RecurringSchedule:
		return s.NextDue, true
	case OneOffSchedule:
		return s.Due, true
	case CustomSchedule:
		var earliest TimePoint
		found := false
		for _, e := range s.Entries {
			if e.IsPaid {
				continue
			}
			if !found || e.Due.Before(earliest) {
				earliest = e.Due
				found = true
			}
		}
		return earliest, found
	default:
		return TimePoint{}, false
	}
}

// Clone deep-copies the obligation so what-if overlays never alias the
// caller's rule or entry slices.
func (o Obligation) Clone() Obligation {
	c := o
	c.Escalations = append([]EscalationRule(nil), o.Escalations...)
	if s, ok := o.Schedule.(CustomSchedule); ok {
		cs := CustomSchedule{Entries: append([]ScheduleEntry(nil), s.Entries...)}
		c.Schedule = cs
	}
	return c
}

// =============================================================================
// SCHEDULE - Sum type over the obligation's due-date shape
// =============================================================================

// Schedule is a sealed sum type: exactly one of RecurringSchedule,
// OneOffSchedule or CustomSchedule. Each variant carries only the fields
// that are meaningful for it.
type Schedule interface {
	isSchedule()
}

type Frequency string

const (
	FreqWeekly      Frequency = "weekly"
	FreqFortnightly Frequency = "fortnightly"
	FreqMonthly     Frequency = "monthly"
	FreqQuarterly   Frequency = "quarterly"
	FreqAnnual      Frequency = "annual"
	FreqCustom      Frequency = "custom"
)

// RecurringSchedule repeats from NextDue at Frequency. EndDate, when set,
// bounds the recurrence (the recurring_with_end kind).
type RecurringSchedule struct {
	NextDue   TimePoint
	Frequency Frequency

	// Every is the interval in days when Frequency == FreqCustom.
	Every int

	EndDate *TimePoint
}

func (RecurringSchedule) isSchedule() {}

// Occurrence returns the k-th due date (k=0 is NextDue itself). Dates are
// generated from the anchor, not iteratively, so monthly anchors on the 29th
// to 31st survive short months.
func (s RecurringSchedule) Occurrence(k int) TimePoint {
	switch s.Frequency {
	case FreqWeekly:
		return s.NextDue.AddDays(7 * k)
	case FreqFortnightly:
		return s.NextDue.AddDays(14 * k)
	case FreqMonthly:
		return s.NextDue.AddMonths(k)
	case FreqQuarterly:
		return s.NextDue.AddMonths(3 * k)
	case FreqAnnual:
		return s.NextDue.AddMonths(12 * k)
	case FreqCustom:
		every := s.Every
		if every < 1 {
			every = 30
		}
		return s.NextDue.AddDays(every * k)
	default:
		return s.NextDue.AddMonths(k)
	}
}

// DueDatesWithin expands the recurrence into [from, to], honoring EndDate.
func (s RecurringSchedule) DueDatesWithin(from, to TimePoint) []TimePoint {
	var dues []TimePoint
	for k := 0; ; k++ {
		at := s.Occurrence(k)
		if at.After(to) {
			break
		}
		if s.EndDate != nil && at.After(*s.EndDate) {
			break
		}
		if at.Before(from) {
			continue
		}
		dues = append(dues, at)
	}
	return dues
}

// OneOffSchedule is a single payment on Due.
type OneOffSchedule struct {
	Due TimePoint
}

func (OneOffSchedule) isSchedule() {}

// CustomSchedule replaces the recurring shape with an explicit entry list,
// each entry carrying its own amount and paid flag.
type CustomSchedule struct {
	Entries []ScheduleEntry
}

func (CustomSchedule) isSchedule() {}

type ScheduleEntry struct {
	Due    TimePoint
	Amount decimal.Decimal
	IsPaid bool
}

// =============================================================================
// ESCALATION RULE - A scheduled change to an obligation's amount
// =============================================================================

type ChangeType string

const (
	// ChangeAbsolute sets the amount to Value. Only valid for one-off rules:
	// an absolute target does not compose across repeats.
	ChangeAbsolute ChangeType = "absolute"

	// ChangePercentage multiplies the amount by (1 + Value/100).
	ChangePercentage ChangeType = "percentage"

	// ChangeFixedIncrease adds Value to the amount.
	ChangeFixedIncrease ChangeType = "fixed_increase"
)

// EscalationRule belongs to exactly one obligation. One-off rules
// (IntervalMonths == 0) are materialized into the obligation's amount exactly
// once by the Reconciler; recurring rules are never persisted as applied,
// their effect is always re-derived by projection.
type EscalationRule struct {
	ID           string
	ObligationID string
	ChangeType   ChangeType
	Value        decimal.Decimal
	EffectiveDate TimePoint

	// IntervalMonths == 0 means one-off; > 0 repeats every N months starting
	// at EffectiveDate.
	IntervalMonths int

	// One-off rules only. Recurring rules keep both zero-valued forever.
	IsApplied bool
	AppliedAt *TimePoint
}

func (r EscalationRule) Recurring() bool { return r.IntervalMonths > 0 }

// Apply computes the post-escalation amount.
func (r EscalationRule) Apply(amount decimal.Decimal) decimal.Decimal {
	switch r.ChangeType {
	case ChangeAbsolute:
		return r.Value
	case ChangePercentage:
		return amount.Mul(one.Add(r.Value.Div(hundred)))
	case ChangeFixedIncrease:
		return amount.Add(r.Value)
	default:
		return amount
	}
}

// =============================================================================
// FUND BALANCE - Money already set aside toward one obligation
// =============================================================================

type FundBalance struct {
	ObligationID string
	UserID       string
	Current      decimal.Decimal
}

func balanceIndex(balances []FundBalance) map[string]decimal.Decimal {
	idx := make(map[string]decimal.Decimal, len(balances))
	for _, b := range balances {
		idx[b.ObligationID] = b.Current
	}
	return idx
}

// =============================================================================
// INCOME SOURCES & USER SETTINGS - Inputs to cycle resolution
// =============================================================================

type IncomeFrequency string

const (
	IncomeWeekly       IncomeFrequency = "weekly"
	IncomeFortnightly  IncomeFrequency = "fortnightly"
	IncomeTwiceMonthly IncomeFrequency = "twice_monthly"
	IncomeMonthly      IncomeFrequency = "monthly"
	IncomeQuarterly    IncomeFrequency = "quarterly"
	IncomeAnnual       IncomeFrequency = "annual"
	IncomeCustom       IncomeFrequency = "custom"
)

type IncomeSource struct {
	ID          string
	UserID      string
	Name        string
	Frequency   IncomeFrequency
	IsIrregular bool
	IsActive    bool
	IsPaused    bool
}

type UserSettings struct {
	UserID string

	// Explicit cycle choice; nil means "infer from income sources".
	ContributionCycleType *CycleType
	ContributionPayDays   []int

	MaxContributionPerCycle decimal.Decimal
	CurrentFundBalance      decimal.Decimal
}
