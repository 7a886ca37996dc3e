/*
scheduler.go - Automated escalation reconciliation

PURPOSE:
  Periodically sweeps every user's pending one-off escalation rules and
  applies the due ones, so obligation amounts stay current even when nobody
  hits the manual /api/reconcile endpoint.

DESIGN:
  - robfig/cron drives the schedule (hourly by default)
  - One immediate sweep on Start, the session-start analogue
  - Per-user failures are logged and do not stop the sweep
  - The engine's Reconciler owns all application logic; this is just a
    trigger collaborator

USAGE:
  scheduler := NewReconciliationScheduler(store, reconciler, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: Reconcile endpoint (manual trigger of the same sweep)
  - engine/reconciler.go: The application logic
*/
package api

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/warp/fund-engine/engine"
	"github.com/warp/fund-engine/store/sqlite"
)

// DefaultSchedule runs the sweep at the top of every hour.
const DefaultSchedule = "@hourly"

// ReconciliationScheduler applies due escalations on a cron schedule.
type ReconciliationScheduler struct {
	Store      *sqlite.Store
	Reconciler *engine.Reconciler
	Log        logrus.FieldLogger

	// Schedule is a cron expression; empty selects DefaultSchedule.
	Schedule string

	cron *cron.Cron
}

// NewReconciliationScheduler creates a new scheduler.
func NewReconciliationScheduler(store *sqlite.Store, reconciler *engine.Reconciler, log logrus.FieldLogger) *ReconciliationScheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ReconciliationScheduler{
		Store:      store,
		Reconciler: reconciler,
		Log:        log,
		Schedule:   DefaultSchedule,
	}
}

// Start registers the cron job and runs one immediate sweep.
func (rs *ReconciliationScheduler) Start() error {
	rs.cron = cron.New()
	if _, err := rs.cron.AddFunc(rs.Schedule, rs.Sweep); err != nil {
		return err
	}
	rs.cron.Start()
	rs.Log.WithField("schedule", rs.Schedule).Info("reconciliation scheduler started")

	// Catch up on anything that came due while the server was down.
	go rs.Sweep()
	return nil
}

// Stop halts the cron runner and waits for a running sweep to finish.
func (rs *ReconciliationScheduler) Stop() {
	if rs.cron == nil {
		return
	}
	ctx := rs.cron.Stop()
	<-ctx.Done()
	rs.Log.Info("reconciliation scheduler stopped")
}

// Sweep applies pending escalations for every known user.
func (rs *ReconciliationScheduler) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	userIDs, err := rs.Store.ListUserIDs(ctx)
	if err != nil {
		rs.Log.WithError(err).Error("reconciliation sweep: failed to list users")
		return
	}

	now := engine.Today()
	applied := 0
	for _, id := range userIDs {
		result, err := rs.Reconciler.ApplyPendingEscalations(ctx, id, now)
		if err != nil {
			rs.Log.WithError(err).WithField("user_id", id).Error("reconciliation sweep failed for user")
			continue
		}
		applied += result.AppliedCount
	}

	if applied > 0 {
		rs.Log.WithFields(logrus.Fields{
			"users":   len(userIDs),
			"applied": applied,
		}).Info("reconciliation sweep applied escalations")
	}
}
