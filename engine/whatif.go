package engine

import "github.com/shopspring/decimal"

// =============================================================================
// WHAT-IF OVERLAY - Ephemeral transforms of the obligation set
// =============================================================================

// WhatIfOverrides is request-scoped and never persisted. Escalation overrides
// are additive: the obligation's real rules still apply, the hypothetical ones
// are layered on top for projection only.
type WhatIfOverrides struct {
	ToggledOffIDs       []string
	AmountOverrides     map[string]decimal.Decimal
	Hypotheticals       []Obligation
	EscalationOverrides map[string][]EscalationRule
}

// Empty reports whether the overrides would leave the obligation set as-is.
func (w WhatIfOverrides) Empty() bool {
	return len(w.ToggledOffIDs) == 0 &&
		len(w.AmountOverrides) == 0 &&
		len(w.Hypotheticals) == 0 &&
		len(w.EscalationOverrides) == 0
}

// ApplyOverrides produces the scenario obligation list: toggled-off
// obligations removed, amounts overridden, hypothetical escalations appended
// to the real rules, hypothetical obligations appended at the end. The input
// list is never mutated; every retained obligation is deep-copied first.
func ApplyOverrides(obligations []Obligation, overrides WhatIfOverrides) []Obligation {
	off := make(map[string]bool, len(overrides.ToggledOffIDs))
	for _, id := range overrides.ToggledOffIDs {
		off[id] = true
	}

	result := make([]Obligation, 0, len(obligations)+len(overrides.Hypotheticals))
	for _, o := range obligations {
		if off[o.ID] {
			continue
		}
		c := o.Clone()
		if amount, ok := overrides.AmountOverrides[c.ID]; ok {
			c.Amount = amount
		}
		if extra, ok := overrides.EscalationOverrides[c.ID]; ok {
			c.Escalations = append(c.Escalations, extra...)
		}
		result = append(result, c)
	}

	for _, h := range overrides.Hypotheticals {
		result = append(result, h.Clone())
	}
	return result
}
