/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements engine.PlanStore and engine.RuleStore plus the CRUD surface the
  API layer needs (obligations, escalation rules, fund balances, income
  sources, user settings).

KEY TABLES:
  obligations:      One row per obligation, schedule fields flattened
  schedule_entries: Custom-schedule entries (one-to-many with obligations)
  escalation_rules: The append-style rule log; one-off rules flip is_applied
  fund_balances:    Per-obligation saved balance
  income_sources:   Inputs to cycle inference
  user_settings:    Cap, cycle override, opening balance

RECONCILER TRANSACTION:
  ApplyRule is the one compound write. Inside a single transaction it
  re-reads the rule's is_applied flag (the idempotency guard), reads the
  obligation's current amount, computes the new amount, and updates both
  rows together. Two concurrent reconciler invocations cannot double-apply
  a rule: the second sees is_applied = 1 and backs off.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

AMOUNTS:
  Stored as TEXT via decimal.Decimal.String() so no precision is lost in
  round trips. Never store money as REAL.

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/fund-engine/engine"
)

// Store implements engine.PlanStore and engine.RuleStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS obligations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		amount TEXT NOT NULL,
		schedule_kind TEXT NOT NULL,      -- recurring | one_off | custom
		next_due TEXT,
		frequency TEXT,
		every_days INTEGER DEFAULT 0,
		end_date TEXT,
		fund_group_id TEXT DEFAULT '',
		is_paused BOOLEAN DEFAULT FALSE,
		is_active BOOLEAN DEFAULT TRUE,
		is_archived BOOLEAN DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_obligations_user
		ON obligations(user_id);
	CREATE INDEX IF NOT EXISTS idx_obligations_user_live
		ON obligations(user_id, is_active, is_paused, is_archived);

	CREATE TABLE IF NOT EXISTS schedule_entries (
		id TEXT PRIMARY KEY,
		obligation_id TEXT NOT NULL,
		due TEXT NOT NULL,
		amount TEXT NOT NULL,
		is_paid BOOLEAN DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_schedule_entries_obligation
		ON schedule_entries(obligation_id, due);

	CREATE TABLE IF NOT EXISTS escalation_rules (
		id TEXT PRIMARY KEY,
		obligation_id TEXT NOT NULL,
		change_type TEXT NOT NULL,        -- absolute | percentage | fixed_increase
		value TEXT NOT NULL,
		effective_date TEXT NOT NULL,
		interval_months INTEGER DEFAULT 0, -- 0 = one-off
		is_applied BOOLEAN DEFAULT FALSE,
		applied_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_escalation_rules_obligation
		ON escalation_rules(obligation_id);

	-- Hot path for the reconciler sweep
	CREATE INDEX IF NOT EXISTS idx_escalation_rules_pending
		ON escalation_rules(is_applied, interval_months, effective_date)
		WHERE is_applied = FALSE AND interval_months = 0;

	CREATE TABLE IF NOT EXISTS fund_balances (
		obligation_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		current_balance TEXT NOT NULL DEFAULT '0',
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_fund_balances_user
		ON fund_balances(user_id);

	CREATE TABLE IF NOT EXISTS income_sources (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		frequency TEXT NOT NULL,
		is_irregular BOOLEAN DEFAULT FALSE,
		is_active BOOLEAN DEFAULT TRUE,
		is_paused BOOLEAN DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_income_sources_user
		ON income_sources(user_id);

	CREATE TABLE IF NOT EXISTS user_settings (
		user_id TEXT PRIMARY KEY,
		cycle_type TEXT,                  -- NULL = infer from income
		pay_days TEXT DEFAULT '',         -- comma-separated day-of-month anchors
		max_contribution_per_cycle TEXT NOT NULL DEFAULT '0',
		current_fund_balance TEXT NOT NULL DEFAULT '0',
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PLAN STORE (engine.PlanStore interface)
// =============================================================================

// LoadPlan returns the user's full plan snapshot. Archived obligations are
// excluded; paused ones are included so the caller can show them and resume.
func (s *Store) LoadPlan(ctx context.Context, userID string) (*engine.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obligations, err := s.loadObligations(ctx, userID)
	if err != nil {
		return nil, err
	}
	balances, err := s.loadBalances(ctx, userID)
	if err != nil {
		return nil, err
	}
	incomes, err := s.loadIncomes(ctx, userID)
	if err != nil {
		return nil, err
	}
	settings, err := s.loadSettings(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &engine.Plan{
		Obligations: obligations,
		Balances:    balances,
		Incomes:     incomes,
		Settings:    settings,
	}, nil
}

func (s *Store) loadObligations(ctx context.Context, userID string) ([]engine.Obligation, error) {
	query := `
		SELECT id, user_id, name, amount, schedule_kind, next_due, frequency,
		       every_days, end_date, fund_group_id, is_paused, is_active, is_archived
		FROM obligations
		WHERE user_id = ? AND is_archived = FALSE
		ORDER BY name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query obligations: %w", err)
	}
	defer rows.Close()

	var obligations []engine.Obligation
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			return nil, err
		}
		obligations = append(obligations, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range obligations {
		if _, ok := obligations[i].Schedule.(engine.CustomSchedule); ok {
			entries, err := s.loadEntries(ctx, obligations[i].ID)
			if err != nil {
				return nil, err
			}
			obligations[i].Schedule = engine.CustomSchedule{Entries: entries}
		}
		rules, err := s.loadRules(ctx, obligations[i].ID)
		if err != nil {
			return nil, err
		}
		obligations[i].Escalations = rules
	}
	return obligations, nil
}

func scanObligation(rows *sql.Rows) (engine.Obligation, error) {
	var (
		o           engine.Obligation
		amount      string
		kind        string
		nextDue     sql.NullString
		frequency   sql.NullString
		everyDays   int
		endDate     sql.NullString
		fundGroupID sql.NullString
	)

	err := rows.Scan(
		&o.ID, &o.UserID, &o.Name, &amount, &kind, &nextDue, &frequency,
		&everyDays, &endDate, &fundGroupID, &o.IsPaused, &o.IsActive, &o.IsArchived,
	)
	if err != nil {
		return o, fmt.Errorf("failed to scan obligation: %w", err)
	}

	o.Amount = engine.MustDecimal(amount)
	o.FundGroupID = fundGroupID.String

	switch kind {
	case "one_off":
		due, _ := engine.ParseDate(nextDue.String)
		o.Schedule = engine.OneOffSchedule{Due: due}
	case "custom":
		// Entries loaded separately.
		o.Schedule = engine.CustomSchedule{}
	default:
		due, _ := engine.ParseDate(nextDue.String)
		rs := engine.RecurringSchedule{
			NextDue:   due,
			Frequency: engine.Frequency(frequency.String),
			Every:     everyDays,
		}
		if endDate.Valid && endDate.String != "" {
			end, err := engine.ParseDate(endDate.String)
			if err == nil {
				rs.EndDate = &end
			}
		}
		o.Schedule = rs
	}
	return o, nil
}

func (s *Store) loadEntries(ctx context.Context, obligationID string) ([]engine.ScheduleEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT due, amount, is_paid FROM schedule_entries WHERE obligation_id = ? ORDER BY due ASC",
		obligationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []engine.ScheduleEntry
	for rows.Next() {
		var due, amount string
		var e engine.ScheduleEntry
		if err := rows.Scan(&due, &amount, &e.IsPaid); err != nil {
			return nil, err
		}
		e.Due, _ = engine.ParseDate(due)
		e.Amount = engine.MustDecimal(amount)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) loadRules(ctx context.Context, obligationID string) ([]engine.EscalationRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, obligation_id, change_type, value, effective_date, interval_months, is_applied, applied_at
		FROM escalation_rules
		WHERE obligation_id = ?
		ORDER BY effective_date ASC, id ASC
	`, obligationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []engine.EscalationRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func scanRule(rows *sql.Rows) (engine.EscalationRule, error) {
	var (
		r             engine.EscalationRule
		value         string
		effectiveDate string
		appliedAt     sql.NullString
	)
	err := rows.Scan(&r.ID, &r.ObligationID, &r.ChangeType, &value,
		&effectiveDate, &r.IntervalMonths, &r.IsApplied, &appliedAt)
	if err != nil {
		return r, fmt.Errorf("failed to scan escalation rule: %w", err)
	}
	r.Value = engine.MustDecimal(value)
	r.EffectiveDate, _ = engine.ParseDate(effectiveDate)
	if appliedAt.Valid && appliedAt.String != "" {
		at, err := engine.ParseDate(appliedAt.String)
		if err == nil {
			r.AppliedAt = &at
		}
	}
	return r, nil
}

func (s *Store) loadBalances(ctx context.Context, userID string) ([]engine.FundBalance, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT obligation_id, user_id, current_balance FROM fund_balances WHERE user_id = ?",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []engine.FundBalance
	for rows.Next() {
		var b engine.FundBalance
		var current string
		if err := rows.Scan(&b.ObligationID, &b.UserID, &current); err != nil {
			return nil, err
		}
		b.Current = engine.MustDecimal(current)
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func (s *Store) loadIncomes(ctx context.Context, userID string) ([]engine.IncomeSource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, frequency, is_irregular, is_active, is_paused
		FROM income_sources WHERE user_id = ? ORDER BY name ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var incomes []engine.IncomeSource
	for rows.Next() {
		var inc engine.IncomeSource
		if err := rows.Scan(&inc.ID, &inc.UserID, &inc.Name, &inc.Frequency,
			&inc.IsIrregular, &inc.IsActive, &inc.IsPaused); err != nil {
			return nil, err
		}
		incomes = append(incomes, inc)
	}
	return incomes, rows.Err()
}

func (s *Store) loadSettings(ctx context.Context, userID string) (engine.UserSettings, error) {
	settings := engine.UserSettings{UserID: userID}

	var cycleType sql.NullString
	var payDays, maxPerCycle, currentBalance string
	err := s.db.QueryRowContext(ctx, `
		SELECT cycle_type, pay_days, max_contribution_per_cycle, current_fund_balance
		FROM user_settings WHERE user_id = ?
	`, userID).Scan(&cycleType, &payDays, &maxPerCycle, &currentBalance)

	if err == sql.ErrNoRows {
		return settings, nil
	}
	if err != nil {
		return settings, err
	}

	if cycleType.Valid && cycleType.String != "" {
		ct := engine.CycleType(cycleType.String)
		settings.ContributionCycleType = &ct
	}
	settings.ContributionPayDays = parsePayDays(payDays)
	settings.MaxContributionPerCycle = engine.MustDecimal(maxPerCycle)
	settings.CurrentFundBalance = engine.MustDecimal(currentBalance)
	return settings, nil
}

// =============================================================================
// RULE STORE (engine.RuleStore interface)
// =============================================================================

const pendingRuleQuery = `
	SELECT r.id, r.obligation_id, r.change_type, r.value, r.effective_date,
	       r.interval_months, r.is_applied, r.applied_at
	FROM escalation_rules r
	JOIN obligations o ON o.id = r.obligation_id
	WHERE r.is_applied = FALSE AND r.interval_months = 0 AND r.effective_date <= ?
	  AND o.is_active = TRUE AND o.is_paused = FALSE AND o.is_archived = FALSE
`

// PendingOneOffRules returns due, unapplied one-off rules across the user's
// active, non-paused obligations.
func (s *Store) PendingOneOffRules(ctx context.Context, userID string, asOf engine.TimePoint) ([]engine.EscalationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := pendingRuleQuery + " AND o.user_id = ? ORDER BY r.effective_date ASC, r.id ASC"
	return s.queryRules(ctx, query, asOf.String(), userID)
}

// PendingOneOffRulesForObligation is the single-obligation catch-up variant.
func (s *Store) PendingOneOffRulesForObligation(ctx context.Context, obligationID string, asOf engine.TimePoint) ([]engine.EscalationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := pendingRuleQuery + " AND o.id = ? ORDER BY r.effective_date ASC, r.id ASC"
	return s.queryRules(ctx, query, asOf.String(), obligationID)
}

func (s *Store) queryRules(ctx context.Context, query string, args ...any) ([]engine.EscalationRule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query escalation rules: %w", err)
	}
	defer rows.Close()

	var rules []engine.EscalationRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// ApplyRule applies one escalation rule atomically: the rule's applied flag
// and the obligation's amount change in the same transaction, with the flag
// re-read inside the transaction as the idempotency guard.
func (s *Store) ApplyRule(ctx context.Context, ruleID string, appliedAt engine.TimePoint, apply func(decimal.Decimal) decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var obligationID string
	var isApplied bool
	err = tx.QueryRowContext(ctx,
		"SELECT obligation_id, is_applied FROM escalation_rules WHERE id = ?", ruleID,
	).Scan(&obligationID, &isApplied)
	if err == sql.ErrNoRows {
		return decimal.Zero, engine.ErrRuleNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}
	if isApplied {
		return decimal.Zero, engine.ErrRuleAlreadyApplied
	}

	var amountStr string
	err = tx.QueryRowContext(ctx,
		"SELECT amount FROM obligations WHERE id = ?", obligationID,
	).Scan(&amountStr)
	if err == sql.ErrNoRows {
		return decimal.Zero, engine.ErrObligationNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}

	newAmount := apply(engine.MustDecimal(amountStr))
	now := time.Now().UTC().Format(time.RFC3339)

	if _, err := tx.ExecContext(ctx,
		"UPDATE obligations SET amount = ?, updated_at = ? WHERE id = ?",
		newAmount.String(), now, obligationID,
	); err != nil {
		return decimal.Zero, err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE escalation_rules SET is_applied = TRUE, applied_at = ? WHERE id = ?",
		appliedAt.String(), ruleID,
	); err != nil {
		return decimal.Zero, err
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, err
	}
	return newAmount, nil
}

// =============================================================================
// OBLIGATION CRUD (for the API layer)
// =============================================================================

// SaveObligation inserts or updates an obligation and replaces its custom
// schedule entries.
func (s *Store) SaveObligation(ctx context.Context, o engine.Obligation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		kind      string
		nextDue   *string
		frequency *string
		everyDays int
		endDate   *string
	)
	switch sched := o.Schedule.(type) {
	case engine.RecurringSchedule:
		kind = "recurring"
		due := sched.NextDue.String()
		nextDue = &due
		freq := string(sched.Frequency)
		frequency = &freq
		everyDays = sched.Every
		if sched.EndDate != nil {
			end := sched.EndDate.String()
			endDate = &end
		}
	case engine.OneOffSchedule:
		kind = "one_off"
		due := sched.Due.String()
		nextDue = &due
	case engine.CustomSchedule:
		kind = "custom"
	default:
		return engine.ErrInvalidSchedule
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO obligations
		(id, user_id, name, amount, schedule_kind, next_due, frequency, every_days,
		 end_date, fund_group_id, is_paused, is_active, is_archived, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			amount = excluded.amount,
			schedule_kind = excluded.schedule_kind,
			next_due = excluded.next_due,
			frequency = excluded.frequency,
			every_days = excluded.every_days,
			end_date = excluded.end_date,
			fund_group_id = excluded.fund_group_id,
			is_paused = excluded.is_paused,
			is_active = excluded.is_active,
			is_archived = excluded.is_archived,
			updated_at = excluded.updated_at
	`,
		o.ID, o.UserID, o.Name, o.Amount.String(), kind, nextDue, frequency, everyDays,
		endDate, o.FundGroupID, o.IsPaused, o.IsActive, o.IsArchived, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save obligation: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM schedule_entries WHERE obligation_id = ?", o.ID,
	); err != nil {
		return err
	}
	if custom, ok := o.Schedule.(engine.CustomSchedule); ok {
		for i, e := range custom.Entries {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO schedule_entries (id, obligation_id, due, amount, is_paid) VALUES (?, ?, ?, ?, ?)",
				fmt.Sprintf("%s-%d", o.ID, i), o.ID, e.Due.String(), e.Amount.String(), e.IsPaid,
			); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// GetObligation retrieves a single obligation with entries and rules.
func (s *Store) GetObligation(ctx context.Context, id string) (*engine.Obligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, amount, schedule_kind, next_due, frequency,
		       every_days, end_date, fund_group_id, is_paused, is_active, is_archived
		FROM obligations WHERE id = ?
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, engine.ErrObligationNotFound
	}
	o, err := scanObligation(rows)
	if err != nil {
		return nil, err
	}
	rows.Close()

	if _, ok := o.Schedule.(engine.CustomSchedule); ok {
		entries, err := s.loadEntries(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		o.Schedule = engine.CustomSchedule{Entries: entries}
	}
	rules, err := s.loadRules(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Escalations = rules
	return &o, nil
}

// SetObligationFlags updates the pause/archive lifecycle flags.
func (s *Store) SetObligationFlags(ctx context.Context, id string, paused, active, archived bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE obligations SET is_paused = ?, is_active = ?, is_archived = ?, updated_at = ? WHERE id = ?",
		paused, active, archived, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrObligationNotFound
	}
	return nil
}

// CreateEscalationRule inserts a rule. A recurring rule replaces the
// obligation's prior pending recurring rule in the same transaction, keeping
// the at-most-one-pending-recurring invariant.
func (s *Store) CreateEscalationRule(ctx context.Context, r engine.EscalationRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if r.Recurring() {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM escalation_rules WHERE obligation_id = ? AND interval_months > 0",
			r.ObligationID,
		); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO escalation_rules
		(id, obligation_id, change_type, value, effective_date, interval_months, is_applied, applied_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, FALSE, NULL, ?)
	`,
		r.ID, r.ObligationID, string(r.ChangeType), r.Value.String(),
		r.EffectiveDate.String(), r.IntervalMonths,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create escalation rule: %w", err)
	}
	return tx.Commit()
}

// SaveBalance upserts a per-obligation fund balance.
func (s *Store) SaveBalance(ctx context.Context, b engine.FundBalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fund_balances (obligation_id, user_id, current_balance, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(obligation_id) DO UPDATE SET
			current_balance = excluded.current_balance,
			updated_at = excluded.updated_at
	`, b.ObligationID, b.UserID, b.Current.String(), time.Now().UTC().Format(time.RFC3339))
	return err
}

// SaveIncomeSource upserts an income source.
func (s *Store) SaveIncomeSource(ctx context.Context, inc engine.IncomeSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO income_sources (id, user_id, name, frequency, is_irregular, is_active, is_paused, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			frequency = excluded.frequency,
			is_irregular = excluded.is_irregular,
			is_active = excluded.is_active,
			is_paused = excluded.is_paused
	`, inc.ID, inc.UserID, inc.Name, string(inc.Frequency),
		inc.IsIrregular, inc.IsActive, inc.IsPaused,
		time.Now().UTC().Format(time.RFC3339))
	return err
}

// SaveSettings upserts the user's settings.
func (s *Store) SaveSettings(ctx context.Context, settings engine.UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cycleType *string
	if settings.ContributionCycleType != nil {
		ct := string(*settings.ContributionCycleType)
		cycleType = &ct
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, cycle_type, pay_days, max_contribution_per_cycle, current_fund_balance, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			cycle_type = excluded.cycle_type,
			pay_days = excluded.pay_days,
			max_contribution_per_cycle = excluded.max_contribution_per_cycle,
			current_fund_balance = excluded.current_fund_balance,
			updated_at = excluded.updated_at
	`, settings.UserID, cycleType, formatPayDays(settings.ContributionPayDays),
		settings.MaxContributionPerCycle.String(),
		settings.CurrentFundBalance.String(),
		time.Now().UTC().Format(time.RFC3339))
	return err
}

// =============================================================================
// UTILITIES
// =============================================================================

// ListUserIDs returns every user with at least one obligation. Used by the
// scheduled reconciliation sweep.
func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT user_id FROM obligations ORDER BY user_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"schedule_entries", "escalation_rules", "fund_balances", "obligations", "income_sources", "user_settings"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func parsePayDays(s string) []int {
	if s == "" {
		return nil
	}
	var days []int
	for _, part := range strings.Split(s, ",") {
		var d int
		if _, err := fmt.Sscanf(strings.TrimSpace(part), "%d", &d); err == nil {
			days = append(days, d)
		}
	}
	return days
}

func formatPayDays(days []int) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = fmt.Sprintf("%d", d)
	}
	return strings.Join(parts, ",")
}
