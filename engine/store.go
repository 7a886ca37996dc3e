/*
store.go - Persistence interface for the projection engine

PURPOSE:
  Defines the contract between the engine and the database. The read path
  loads a plain-data Plan snapshot; the only write the engine ever performs
  goes through RuleStore.ApplyRule, the reconciler's atomic update.

KEY INTERFACES:
  PlanStore: Loads the full plan snapshot for one user
  RuleStore: Pending-rule queries plus the transactional rule application

WRITE CONTRACT:
  ApplyRule wraps one rule application in a single transaction: re-read the
  rule's applied flag (the idempotency guard), read the obligation's current
  amount, compute the new amount via the supplied function, and persist both
  the amount and the applied flag together. A crash can never leave "amount
  changed but rule still pending" or the reverse.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - engine/store/memory.go: In-memory for testing

SEE ALSO:
  - reconciler.go: The only consumer of RuleStore
*/
package engine

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PLAN STORE - Read-path snapshot loading
// =============================================================================

// Plan is the full input snapshot for one user's projection. Plain data; the
// engine never holds a reference to it across requests.
type Plan struct {
	Obligations []Obligation
	Balances    []FundBalance
	Incomes     []IncomeSource
	Settings    UserSettings
}

type PlanStore interface {
	// LoadPlan returns the user's obligations (with nested schedule entries
	// and escalation rules), fund balances, income sources and settings.
	// Archived obligations are excluded.
	LoadPlan(ctx context.Context, userID string) (*Plan, error)
}

// =============================================================================
// RULE STORE - The reconciler's persistence contract
// =============================================================================

type RuleStore interface {
	// PendingOneOffRules returns unapplied one-off rules with effectiveDate
	// <= asOf across the user's active, non-paused obligations, ordered by
	// ascending effective date.
	PendingOneOffRules(ctx context.Context, userID string, asOf TimePoint) ([]EscalationRule, error)

	// PendingOneOffRulesForObligation is the single-obligation variant, used
	// when an obligation is resumed and must catch up.
	PendingOneOffRulesForObligation(ctx context.Context, obligationID string, asOf TimePoint) ([]EscalationRule, error)

	// ApplyRule atomically applies one rule: within a single transaction it
	// re-reads the rule (returning ErrRuleAlreadyApplied if the applied flag
	// is already set), reads the obligation's current amount, computes the
	// new amount via apply, and persists the amount together with the applied
	// flag and appliedAt. Returns the new amount.
	ApplyRule(ctx context.Context, ruleID string, appliedAt TimePoint, apply func(current decimal.Decimal) decimal.Decimal) (decimal.Decimal, error)
}
