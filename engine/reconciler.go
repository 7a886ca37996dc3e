/*
reconciler.go - Materializes due one-off escalations into stored amounts

PURPOSE:
  The one write-path job in the engine. Finds one-off escalation rules whose
  effective date has passed and are not yet applied, and folds each into its
  obligation's persisted amount, marking the rule applied in the same store
  transaction.

SEQUENCING:
  Rules are processed in ascending effective-date order, and each application
  reads the obligation's then-current amount inside its own transaction. A
  second rule for the same obligation therefore compounds on the first rule's
  result, never on the original amount.

ISOLATION:
  A failure on one rule is logged and skipped; the batch continues. The
  result reports how many rules actually succeeded. ErrRuleAlreadyApplied is
  not a failure: another invocation got there first, which is the idempotency
  guard doing its job.

SEE ALSO:
  - store.go: the RuleStore contract ApplyRule is built on
  - escalation.go: the read-path twin that projects instead of persisting
*/
package engine

import (
	"context"
	"errors"
	"sort"

	"github.com/sirupsen/logrus"
)

// Reconciler applies pending one-off escalation rules through a RuleStore.
type Reconciler struct {
	Store RuleStore
	Log   logrus.FieldLogger
}

func NewReconciler(store RuleStore, log logrus.FieldLogger) *Reconciler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Reconciler{Store: store, Log: log}
}

// ReconcileResult reports a batch's outcome. AppliedCount can be lower than
// the number of matching rules when individual applications fail.
type ReconcileResult struct {
	AppliedCount         int
	UpdatedObligationIDs []string
}

// ApplyPendingEscalations applies every due one-off rule across the user's
// active, non-paused obligations.
func (r *Reconciler) ApplyPendingEscalations(ctx context.Context, userID string, now TimePoint) (ReconcileResult, error) {
	rules, err := r.Store.PendingOneOffRules(ctx, userID, now)
	if err != nil {
		return ReconcileResult{}, err
	}
	return r.applyAll(ctx, rules, now), nil
}

// ApplyDeferredEscalations is the catch-up path for a single obligation,
// invoked when it is resumed from pause.
func (r *Reconciler) ApplyDeferredEscalations(ctx context.Context, obligationID string, now TimePoint) (ReconcileResult, error) {
	rules, err := r.Store.PendingOneOffRulesForObligation(ctx, obligationID, now)
	if err != nil {
		return ReconcileResult{}, err
	}
	return r.applyAll(ctx, rules, now), nil
}

func (r *Reconciler) applyAll(ctx context.Context, rules []EscalationRule, now TimePoint) ReconcileResult {
	sort.SliceStable(rules, func(i, j int) bool {
		if !rules[i].EffectiveDate.Equal(rules[j].EffectiveDate) {
			return rules[i].EffectiveDate.Before(rules[j].EffectiveDate)
		}
		return rules[i].ID < rules[j].ID
	})

	var result ReconcileResult
	updated := map[string]bool{}
	for _, rule := range rules {
		newAmount, err := r.Store.ApplyRule(ctx, rule.ID, now, rule.Apply)
		if err != nil {
			if errors.Is(err, ErrRuleAlreadyApplied) {
				continue
			}
			r.Log.WithError(err).WithFields(logrus.Fields{
				"rule_id":       rule.ID,
				"obligation_id": rule.ObligationID,
			}).Warn("escalation rule application failed, continuing batch")
			continue
		}

		result.AppliedCount++
		if !updated[rule.ObligationID] {
			updated[rule.ObligationID] = true
			result.UpdatedObligationIDs = append(result.UpdatedObligationIDs, rule.ObligationID)
		}
		r.Log.WithFields(logrus.Fields{
			"rule_id":       rule.ID,
			"obligation_id": rule.ObligationID,
			"new_amount":    newAmount.StringFixed(2),
		}).Info("escalation rule applied")
	}
	return result
}
