// Package store provides PlanStore/RuleStore implementations.
package store

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/fund-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	obligations map[string]engine.Obligation
	balances    map[string]engine.FundBalance
	incomes     map[string][]engine.IncomeSource
	settings    map[string]engine.UserSettings
}

func NewMemory() *Memory {
	return &Memory{
		obligations: make(map[string]engine.Obligation),
		balances:    make(map[string]engine.FundBalance),
		incomes:     make(map[string][]engine.IncomeSource),
		settings:    make(map[string]engine.UserSettings),
	}
}

// Seeding helpers. Obligations are stored by ID; balances by obligation ID.

func (m *Memory) PutObligation(o engine.Obligation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obligations[o.ID] = o.Clone()
}

func (m *Memory) PutBalance(b engine.FundBalance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[b.ObligationID] = b
}

func (m *Memory) PutIncomes(userID string, incomes ...engine.IncomeSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incomes[userID] = append(m.incomes[userID], incomes...)
}

func (m *Memory) PutSettings(s engine.UserSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[s.UserID] = s
}

// Obligation returns a copy of the stored obligation, for test assertions.
func (m *Memory) Obligation(id string) (engine.Obligation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.obligations[id]
	if !ok {
		return engine.Obligation{}, false
	}
	return o.Clone(), true
}

// =============================================================================
// PLAN STORE
// =============================================================================

func (m *Memory) LoadPlan(_ context.Context, userID string) (*engine.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plan := &engine.Plan{Settings: m.settings[userID]}
	plan.Settings.UserID = userID
	for _, o := range m.obligations {
		if o.UserID != userID || o.IsArchived {
			continue
		}
		plan.Obligations = append(plan.Obligations, o.Clone())
		if b, ok := m.balances[o.ID]; ok {
			plan.Balances = append(plan.Balances, b)
		}
	}
	plan.Incomes = append(plan.Incomes, m.incomes[userID]...)
	return plan, nil
}

// =============================================================================
// RULE STORE
// =============================================================================

func (m *Memory) PendingOneOffRules(_ context.Context, userID string, asOf engine.TimePoint) ([]engine.EscalationRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rules []engine.EscalationRule
	for _, o := range m.obligations {
		if o.UserID != userID {
			continue
		}
		rules = append(rules, pendingRules(o, asOf)...)
	}
	return rules, nil
}

func (m *Memory) PendingOneOffRulesForObligation(_ context.Context, obligationID string, asOf engine.TimePoint) ([]engine.EscalationRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.obligations[obligationID]
	if !ok {
		return nil, engine.ErrObligationNotFound
	}
	return pendingRules(o, asOf), nil
}

// pendingRules filters to due, unapplied one-offs on an in-plan obligation.
// A paused obligation's rules stay pending until it is resumed.
func pendingRules(o engine.Obligation, asOf engine.TimePoint) []engine.EscalationRule {
	if !o.InPlan() {
		return nil
	}
	var rules []engine.EscalationRule
	for _, r := range o.Escalations {
		if r.Recurring() || r.IsApplied || r.EffectiveDate.After(asOf) {
			continue
		}
		rules = append(rules, r)
	}
	return rules
}

func (m *Memory) ApplyRule(_ context.Context, ruleID string, appliedAt engine.TimePoint, apply func(decimal.Decimal) decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, o := range m.obligations {
		for i, r := range o.Escalations {
			if r.ID != ruleID {
				continue
			}
			if r.IsApplied {
				return decimal.Zero, engine.ErrRuleAlreadyApplied
			}
			o.Amount = apply(o.Amount)
			at := appliedAt
			o.Escalations[i].IsApplied = true
			o.Escalations[i].AppliedAt = &at
			m.obligations[id] = o
			return o.Amount, nil
		}
	}
	return decimal.Zero, engine.ErrRuleNotFound
}
