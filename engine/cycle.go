package engine

// =============================================================================
// CYCLE - The user's contribution period
// =============================================================================

// CycleType defines the shape of the contribution cycle. Weekly and
// fortnightly are pure intervals from a reference date; the others anchor to
// days of the month.
type CycleType string

const (
	CycleWeekly       CycleType = "weekly"
	CycleFortnightly  CycleType = "fortnightly"
	CycleTwiceMonthly CycleType = "twice_monthly"
	CycleMonthly      CycleType = "monthly"
	CycleCustom       CycleType = "custom"
)

// CycleConfig is a value object: the resolved contribution cycle. PayDays are
// day-of-month anchors for monthly/twice_monthly/custom and empty for the
// interval-based types.
type CycleConfig struct {
	Type    CycleType
	PayDays []int
}

// Label renders the cycle as a period suffix ("per fortnight").
func (c CycleConfig) Label() string {
	switch c.Type {
	case CycleWeekly:
		return "per week"
	case CycleFortnightly:
		return "per fortnight"
	case CycleTwiceMonthly:
		return "twice a month"
	case CycleMonthly:
		return "per month"
	default:
		return "per pay cycle"
	}
}

// =============================================================================
// CYCLE RESOLVER - Settings first, income inference second
// =============================================================================

// ResolveCycleConfig determines the contribution cycle. An explicit setting
// wins verbatim. Otherwise the cycle is inferred by majority vote over the
// frequencies of active, non-paused, non-irregular income sources; quarterly,
// annual and custom incomes carry no signal. No signal (or a tie) defaults to
// fortnightly with empty pay days.
//
// Deterministic and side-effect free. Re-invoked on every request rather than
// cached, since income sources can change between requests.
func ResolveCycleConfig(settings UserSettings, incomes []IncomeSource) CycleConfig {
	if settings.ContributionCycleType != nil {
		return CycleConfig{
			Type:    *settings.ContributionCycleType,
			PayDays: append([]int(nil), settings.ContributionPayDays...),
		}
	}

	votes := map[CycleType]int{}
	for _, inc := range incomes {
		if !inc.IsActive || inc.IsPaused || inc.IsIrregular {
			continue
		}
		switch inc.Frequency {
		case IncomeWeekly:
			votes[CycleWeekly]++
		case IncomeFortnightly:
			votes[CycleFortnightly]++
		case IncomeTwiceMonthly:
			votes[CycleTwiceMonthly]++
		case IncomeMonthly:
			votes[CycleMonthly]++
		}
	}

	best := CycleFortnightly
	bestCount := 0
	tied := false
	for _, t := range []CycleType{CycleWeekly, CycleFortnightly, CycleTwiceMonthly, CycleMonthly} {
		switch {
		case votes[t] > bestCount:
			best, bestCount, tied = t, votes[t], false
		case votes[t] == bestCount && bestCount > 0:
			tied = true
		}
	}
	if bestCount == 0 || tied {
		return CycleConfig{Type: CycleFortnightly}
	}
	return CycleConfig{Type: best}
}

// =============================================================================
// CYCLE BOUNDARIES - Where contributions land in time
// =============================================================================

// CycleBoundaries returns the contribution dates inside (from, to]. Interval
// cycles step from the reference date; anchored cycles resolve their pay-day
// anchors in each month, clamped to the month's length.
func CycleBoundaries(cfg CycleConfig, from, to TimePoint) []TimePoint {
	switch cfg.Type {
	case CycleWeekly:
		return intervalBoundaries(from, to, 7)
	case CycleFortnightly:
		return intervalBoundaries(from, to, 14)
	case CycleMonthly:
		return anchoredBoundaries(from, to, orDefault(cfg.PayDays, []int{1}))
	case CycleTwiceMonthly:
		return anchoredBoundaries(from, to, orDefault(cfg.PayDays, []int{1, 15}))
	case CycleCustom:
		return anchoredBoundaries(from, to, orDefault(cfg.PayDays, []int{1}))
	default:
		return intervalBoundaries(from, to, 14)
	}
}

// CyclesUntil counts the contribution opportunities between now and due.
// Never less than 1: an imminent or past due date still gets one cycle, so
// urgency surfaces as a shortfall warning rather than a division blow-up.
func CyclesUntil(cfg CycleConfig, now, due TimePoint) int {
	if !due.After(now) {
		return 1
	}
	var n int
	switch cfg.Type {
	case CycleWeekly:
		n = DaysBetween(now, due) / 7
	case CycleFortnightly:
		n = DaysBetween(now, due) / 14
	default:
		n = len(CycleBoundaries(cfg, now, due))
	}
	if n < 1 {
		return 1
	}
	return n
}

func intervalBoundaries(from, to TimePoint, days int) []TimePoint {
	var out []TimePoint
	for at := from.AddDays(days); at.BeforeOrEqual(to); at = at.AddDays(days) {
		out = append(out, at)
	}
	return out
}

func anchoredBoundaries(from, to TimePoint, payDays []int) []TimePoint {
	var out []TimePoint
	year, month := from.Year(), from.Month()
	for {
		monthStart := NewTimePoint(year, month, 1)
		if monthStart.After(to) {
			break
		}
		for _, day := range payDays {
			at := DayOfMonth(year, month, day)
			if at.After(from) && at.BeforeOrEqual(to) {
				out = append(out, at)
			}
		}
		next := monthStart.AddMonths(1)
		year, month = next.Year(), next.Month()
	}
	return out
}

func orDefault(payDays, fallback []int) []int {
	if len(payDays) == 0 {
		return fallback
	}
	return payDays
}
