/*
errors.go - Centralized error types for the engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The API layer maps these onto HTTP statuses via the helpers at the bottom.

ERROR CATEGORIES:
  1. Not-found errors - Missing obligations, rules, users
  2. Validation errors - Escalation edit-boundary violations
  3. Reconciler errors - Rule application conflicts

SEE ALSO:
  - reconciler.go: Uses the rule-application errors
  - store.go: Store implementations return the not-found sentinels
*/
package engine

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrObligationNotFound is returned when a referenced obligation doesn't exist.
	ErrObligationNotFound = errors.New("obligation not found")

	// ErrRuleNotFound is returned when a referenced escalation rule doesn't exist.
	ErrRuleNotFound = errors.New("escalation rule not found")

	// ErrRuleAlreadyApplied is returned when the reconciler finds a rule's
	// applied flag already set inside its transaction. Expected under
	// concurrent reconciliation; callers skip the rule silently.
	ErrRuleAlreadyApplied = errors.New("escalation rule already applied")

	// ErrEscalationNotAllowed is returned when a rule violates an edit-boundary
	// invariant (absolute on a recurring rule, any rule on a one-off obligation).
	ErrEscalationNotAllowed = errors.New("escalation not allowed")

	// ErrObligationArchived is returned when writing to a soft-archived obligation.
	ErrObligationArchived = errors.New("obligation is archived")

	// ErrInvalidSchedule is returned when a schedule payload is malformed.
	ErrInvalidSchedule = errors.New("invalid schedule")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// EscalationNotAllowedError reports which invariant a rule violated.
type EscalationNotAllowedError struct {
	ObligationID string
	ChangeType   ChangeType
	Reason       string
}

func (e *EscalationNotAllowedError) Error() string {
	return fmt.Sprintf("escalation not allowed on obligation %s: %s", e.ObligationID, e.Reason)
}

func (e *EscalationNotAllowedError) Unwrap() error {
	return ErrEscalationNotAllowed
}

// RuleApplicationError wraps a per-rule reconciler failure with enough
// context to log it without aborting the batch.
type RuleApplicationError struct {
	RuleID       string
	ObligationID string
	Amount       decimal.Decimal
	Err          error
}

func (e *RuleApplicationError) Error() string {
	return fmt.Sprintf("apply rule %s to obligation %s: %v", e.RuleID, e.ObligationID, e.Err)
}

func (e *RuleApplicationError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrEscalationNotAllowed) ||
		errors.Is(err, ErrObligationArchived) ||
		errors.Is(err, ErrInvalidSchedule)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrObligationNotFound) ||
		errors.Is(err, ErrRuleNotFound)
}
