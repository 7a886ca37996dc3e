/*
handlers.go - HTTP API handlers for the obligation funding engine

PURPOSE:
  Exposes the projection engine via REST API. Handles HTTP request/response,
  JSON serialization, input validation, and delegates to the engine.

ENDPOINTS:
  Plan:
    GET    /api/plan                    Snapshot + contribution breakdown
    POST   /api/plan/whatif             Actual vs scenario comparison
    GET    /api/plan/timeline?months=N  Balance projection
    POST   /api/plan/timeline           Timeline with what-if overrides

  Obligations:
    GET    /api/obligations             List obligations
    POST   /api/obligations             Create obligation
    GET    /api/obligations/{id}        Get one obligation
    POST   /api/obligations/{id}/pause  Pause (suspends reconciliation too)
    POST   /api/obligations/{id}/resume Resume + catch up deferred escalations
    POST   /api/obligations/{id}/escalations  Add escalation rule
    DELETE /api/obligations/{id}        Soft archive

  Other:
    POST   /api/reconcile               Apply due one-off escalations
    GET    /api/incomes, POST /api/incomes
    GET    /api/settings, PUT /api/settings
    GET    /api/scenarios, POST /api/scenarios/load

USER SCOPING:
  The user is identified by the X-User-ID header; absent, "demo" is used.
  There is no authentication layer here.

VALIDATION BOUNDARY:
  The engine assumes well-formed input. This layer owns: months clamping to
  [1,12], escalation edit invariants (absolute rules must be one-off, one-off
  obligations take no escalations), and date parsing.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/fund-engine/engine"
	"github.com/warp/fund-engine/store/sqlite"
)

// DefaultUserID scopes requests that carry no X-User-ID header.
const DefaultUserID = "demo"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Reconciler *engine.Reconciler
	Log        logrus.FieldLogger

	// now is injectable for tests; defaults to engine.Today.
	now func() engine.TimePoint

	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		Store:      store,
		Reconciler: engine.NewReconciler(store, log),
		Log:        log,
		now:        engine.Today,
	}
}

func userID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return DefaultUserID
}

// monthsParam clamps the months query parameter to [1, 12], defaulting to 12.
func monthsParam(r *http.Request) int {
	months := 12
	if v := r.URL.Query().Get("months"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			months = n
		}
	}
	if months < 1 {
		months = 1
	}
	if months > 12 {
		months = 12
	}
	return months
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

// GetPlan returns the snapshot and per-obligation contribution breakdown.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.Store.LoadPlan(r.Context(), userID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load plan", err)
		return
	}

	cycle := engine.ResolveCycleConfig(plan.Settings, plan.Incomes)
	result := engine.CalculateContributions(engine.PlanInput{
		Obligations:   plan.Obligations,
		Balances:      plan.Balances,
		MaxPerCycle:   plan.Settings.MaxContributionPerCycle,
		Cycle:         cycle,
		Now:           h.now(),
		HorizonMonths: monthsParam(r),
	})

	writeJSON(w, http.StatusOK, PlanResponse{
		Snapshot: toSnapshotDTO(engine.BuildSnapshot(result, cycle)),
		Result:   toEngineResultDTO(result),
	})
}

// WhatIf returns the baseline and an overlaid scenario side by side.
func (h *Handler) WhatIf(w http.ResponseWriter, r *http.Request) {
	var req WhatIfRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	overrides, err := h.parseOverrides(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid what-if overrides", err)
		return
	}

	plan, err := h.Store.LoadPlan(r.Context(), userID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load plan", err)
		return
	}

	cycle := engine.ResolveCycleConfig(plan.Settings, plan.Incomes)
	pair := engine.CalculateWithWhatIf(engine.PlanInput{
		Obligations:   plan.Obligations,
		Balances:      plan.Balances,
		MaxPerCycle:   plan.Settings.MaxContributionPerCycle,
		Cycle:         cycle,
		Now:           h.now(),
		HorizonMonths: clampMonths(req.MonthsAhead),
	}, overrides)

	writeJSON(w, http.StatusOK, WhatIfResponse{
		Actual:   toEngineResultDTO(pair.Actual),
		Scenario: toEngineResultDTO(pair.Scenario),
	})
}

// GetTimeline projects the fund balance forward.
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	h.timeline(w, r, engine.WhatIfOverrides{}, monthsParam(r))
}

// TimelineWhatIf projects the fund balance under what-if overrides.
func (h *Handler) TimelineWhatIf(w http.ResponseWriter, r *http.Request) {
	var req WhatIfRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	overrides, err := h.parseOverrides(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid what-if overrides", err)
		return
	}
	h.timeline(w, r, overrides, clampMonths(req.MonthsAhead))
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request, overrides engine.WhatIfOverrides, months int) {
	plan, err := h.Store.LoadPlan(r.Context(), userID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load plan", err)
		return
	}

	now := h.now()
	cycle := engine.ResolveCycleConfig(plan.Settings, plan.Incomes)
	obligations := engine.ApplyOverrides(plan.Obligations, overrides)

	// The timeline's per-cycle inflow is whatever the calculator says the
	// user should contribute under the same overrides.
	result := engine.CalculateContributions(engine.PlanInput{
		Obligations:   obligations,
		Balances:      plan.Balances,
		MaxPerCycle:   plan.Settings.MaxContributionPerCycle,
		Cycle:         cycle,
		Now:           now,
		HorizonMonths: months,
	})

	timeline := engine.ProjectTimeline(engine.TimelineInput{
		Obligations:          obligations,
		Balances:             plan.Balances,
		CurrentFundBalance:   plan.Settings.CurrentFundBalance,
		ContributionPerCycle: result.TotalContributionPerCycle,
		Cycle:                cycle,
		Now:                  now,
		MonthsAhead:          months,
	})

	writeJSON(w, http.StatusOK, toTimelineResponse(timeline))
}

// =============================================================================
// OBLIGATION HANDLERS
// =============================================================================

// ListObligations returns all non-archived obligations for the user.
func (h *Handler) ListObligations(w http.ResponseWriter, r *http.Request) {
	plan, err := h.Store.LoadPlan(r.Context(), userID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load obligations", err)
		return
	}
	dtos := make([]ObligationDTO, 0, len(plan.Obligations))
	for _, o := range plan.Obligations {
		dtos = append(dtos, toObligationDTO(o))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateObligation creates an obligation.
func (h *Handler) CreateObligation(w http.ResponseWriter, r *http.Request) {
	var req CreateObligationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	o, err := obligationFromRequest(req, userID(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid obligation", err)
		return
	}
	o.ID = uuid.NewString()

	if err := h.Store.SaveObligation(r.Context(), o); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create obligation", err)
		return
	}
	writeJSON(w, http.StatusCreated, toObligationDTO(o))
}

// GetObligation returns a single obligation.
func (h *Handler) GetObligation(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toObligationDTO(*o))
}

// PauseObligation suspends an obligation. Its escalation rules accrue but
// are not applied until resume.
func (h *Handler) PauseObligation(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	if err := h.Store.SetObligationFlags(r.Context(), o.ID, true, o.IsActive, o.IsArchived); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to pause obligation", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

// ResumeObligation un-pauses an obligation and catches up on escalation
// rules whose effective dates passed while it was paused.
func (h *Handler) ResumeObligation(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	if err := h.Store.SetObligationFlags(r.Context(), o.ID, false, o.IsActive, o.IsArchived); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resume obligation", err)
		return
	}

	result, err := h.Reconciler.ApplyDeferredEscalations(r.Context(), o.ID, h.now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to apply deferred escalations", err)
		return
	}
	writeJSON(w, http.StatusOK, ReconcileResponse{
		AppliedCount:         result.AppliedCount,
		UpdatedObligationIDs: orEmptyStrings(result.UpdatedObligationIDs),
	})
}

// ArchiveObligation soft-archives an obligation. Never a hard delete:
// escalation rules and balances keep referencing it.
func (h *Handler) ArchiveObligation(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	if err := h.Store.SetObligationFlags(r.Context(), o.ID, o.IsPaused, false, true); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to archive obligation", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "archived"})
}

// CreateEscalation adds an escalation rule, enforcing the edit-boundary
// invariants the engine itself does not check.
func (h *Handler) CreateEscalation(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	var req CreateEscalationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	effective, err := engine.ParseDate(req.EffectiveDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_date format (use YYYY-MM-DD)", err)
		return
	}

	rule := engine.EscalationRule{
		ID:             uuid.NewString(),
		ObligationID:   o.ID,
		ChangeType:     engine.ChangeType(req.ChangeType),
		Value:          decimal.NewFromFloat(req.Value),
		EffectiveDate:  effective,
		IntervalMonths: req.IntervalMonths,
	}

	if err := validateEscalation(*o, rule); err != nil {
		writeError(w, http.StatusBadRequest, "Escalation not allowed", err)
		return
	}

	if err := h.Store.CreateEscalationRule(r.Context(), rule); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create escalation rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEscalationDTO(rule))
}

// validateEscalation enforces the rule invariants at the edit boundary:
// one-off obligations take no escalations, absolute rules cannot recur.
func validateEscalation(o engine.Obligation, r engine.EscalationRule) error {
	if o.Type() == engine.ObligationOneOff {
		return &engine.EscalationNotAllowedError{
			ObligationID: o.ID,
			ChangeType:   r.ChangeType,
			Reason:       "one-off obligations cannot carry escalation rules",
		}
	}
	if r.ChangeType == engine.ChangeAbsolute && r.Recurring() {
		return &engine.EscalationNotAllowedError{
			ObligationID: o.ID,
			ChangeType:   r.ChangeType,
			Reason:       "an absolute amount does not compose across repeats; use a one-off rule",
		}
	}
	switch r.ChangeType {
	case engine.ChangeAbsolute, engine.ChangePercentage, engine.ChangeFixedIncrease:
		return nil
	default:
		return &engine.EscalationNotAllowedError{
			ObligationID: o.ID,
			ChangeType:   r.ChangeType,
			Reason:       "unknown change type",
		}
	}
}

// loadOwned fetches the obligation in the URL and checks the caller owns it.
func (h *Handler) loadOwned(w http.ResponseWriter, r *http.Request) (*engine.Obligation, bool) {
	id := chi.URLParam(r, "id")
	o, err := h.Store.GetObligation(r.Context(), id)
	if err != nil {
		if engine.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Obligation not found", nil)
		} else {
			writeError(w, http.StatusInternalServerError, "Failed to load obligation", err)
		}
		return nil, false
	}
	if o.UserID != userID(r) {
		writeError(w, http.StatusNotFound, "Obligation not found", nil)
		return nil, false
	}
	return o, true
}

// =============================================================================
// RECONCILE / INCOME / SETTINGS HANDLERS
// =============================================================================

// Reconcile applies every due one-off escalation for the user. The cron
// scheduler drives the same sweep; this endpoint is the manual trigger.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	result, err := h.Reconciler.ApplyPendingEscalations(r.Context(), userID(r), h.now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Reconciliation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ReconcileResponse{
		AppliedCount:         result.AppliedCount,
		UpdatedObligationIDs: orEmptyStrings(result.UpdatedObligationIDs),
	})
}

// ListIncomes returns the user's income sources.
func (h *Handler) ListIncomes(w http.ResponseWriter, r *http.Request) {
	plan, err := h.Store.LoadPlan(r.Context(), userID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load incomes", err)
		return
	}
	dtos := make([]IncomeSourceDTO, 0, len(plan.Incomes))
	for _, inc := range plan.Incomes {
		dtos = append(dtos, IncomeSourceDTO{
			ID:          inc.ID,
			Name:        inc.Name,
			Frequency:   string(inc.Frequency),
			IsIrregular: inc.IsIrregular,
			IsActive:    inc.IsActive,
			IsPaused:    inc.IsPaused,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateIncome adds an income source.
func (h *Handler) CreateIncome(w http.ResponseWriter, r *http.Request) {
	var req CreateIncomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	inc := engine.IncomeSource{
		ID:          uuid.NewString(),
		UserID:      userID(r),
		Name:        req.Name,
		Frequency:   engine.IncomeFrequency(req.Frequency),
		IsIrregular: req.IsIrregular,
		IsActive:    true,
	}
	if err := h.Store.SaveIncomeSource(r.Context(), inc); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create income source", err)
		return
	}
	writeJSON(w, http.StatusCreated, IncomeSourceDTO{
		ID: inc.ID, Name: inc.Name, Frequency: string(inc.Frequency),
		IsIrregular: inc.IsIrregular, IsActive: true,
	})
}

// GetSettings returns the user's settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	plan, err := h.Store.LoadPlan(r.Context(), userID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings", err)
		return
	}
	dto := SettingsDTO{
		PayDays:                 plan.Settings.ContributionPayDays,
		MaxContributionPerCycle: f64(plan.Settings.MaxContributionPerCycle),
		CurrentFundBalance:      f64(plan.Settings.CurrentFundBalance),
	}
	if plan.Settings.ContributionCycleType != nil {
		dto.CycleType = string(*plan.Settings.ContributionCycleType)
	}
	writeJSON(w, http.StatusOK, dto)
}

// UpdateSettings replaces the user's settings.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	settings := engine.UserSettings{
		UserID:                  userID(r),
		ContributionPayDays:     req.PayDays,
		MaxContributionPerCycle: decimal.NewFromFloat(req.MaxContributionPerCycle),
		CurrentFundBalance:      decimal.NewFromFloat(req.CurrentFundBalance),
	}
	if req.CycleType != "" {
		ct := engine.CycleType(req.CycleType)
		settings.ContributionCycleType = &ct
	}
	if err := h.Store.SaveSettings(r.Context(), settings); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save settings", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func clampMonths(n int) int {
	if n == 0 {
		return 12
	}
	if n < 1 {
		return 1
	}
	if n > 12 {
		return 12
	}
	return n
}

func (h *Handler) parseOverrides(req WhatIfRequest) (engine.WhatIfOverrides, error) {
	overrides := engine.WhatIfOverrides{ToggledOffIDs: req.ToggledOffIDs}

	if len(req.AmountOverrides) > 0 {
		overrides.AmountOverrides = make(map[string]decimal.Decimal, len(req.AmountOverrides))
		for id, amount := range req.AmountOverrides {
			overrides.AmountOverrides[id] = decimal.NewFromFloat(amount)
		}
	}

	if len(req.EscalationOverrides) > 0 {
		overrides.EscalationOverrides = make(map[string][]engine.EscalationRule, len(req.EscalationOverrides))
		for id, dtos := range req.EscalationOverrides {
			for i, dto := range dtos {
				effective, err := engine.ParseDate(dto.EffectiveDate)
				if err != nil {
					return overrides, err
				}
				overrides.EscalationOverrides[id] = append(overrides.EscalationOverrides[id], engine.EscalationRule{
					ID:             hypotheticalRuleID(id, i),
					ObligationID:   id,
					ChangeType:     engine.ChangeType(dto.ChangeType),
					Value:          decimal.NewFromFloat(dto.Value),
					EffectiveDate:  effective,
					IntervalMonths: dto.IntervalMonths,
				})
			}
		}
	}

	for i, hyp := range req.Hypotheticals {
		o, err := obligationFromRequest(hyp, "")
		if err != nil {
			return overrides, err
		}
		o.ID = hypotheticalObligationID(i)
		overrides.Hypotheticals = append(overrides.Hypotheticals, o)
	}
	return overrides, nil
}

// Hypothetical records get deterministic synthetic IDs so scenario output is
// stable across identical requests.
func hypotheticalObligationID(i int) string {
	return "whatif-obligation-" + strconv.Itoa(i)
}

func hypotheticalRuleID(obligationID string, i int) string {
	return "whatif-rule-" + obligationID + "-" + strconv.Itoa(i)
}

func obligationFromRequest(req CreateObligationRequest, userID string) (engine.Obligation, error) {
	o := engine.Obligation{
		UserID:      userID,
		Name:        req.Name,
		Amount:      decimal.NewFromFloat(req.Amount),
		FundGroupID: req.FundGroupID,
		IsActive:    true,
	}

	switch engine.ObligationType(req.Type) {
	case engine.ObligationOneOff:
		due, err := engine.ParseDate(req.NextDueDate)
		if err != nil {
			return o, err
		}
		o.Schedule = engine.OneOffSchedule{Due: due}

	case engine.ObligationCustom:
		var entries []engine.ScheduleEntry
		for _, e := range req.Entries {
			due, err := engine.ParseDate(e.DueDate)
			if err != nil {
				return o, err
			}
			entries = append(entries, engine.ScheduleEntry{
				Due:    due,
				Amount: decimal.NewFromFloat(e.Amount),
				IsPaid: e.IsPaid,
			})
		}
		o.Schedule = engine.CustomSchedule{Entries: entries}

	case engine.ObligationRecurring, engine.ObligationRecurringWithEnd, "":
		due, err := engine.ParseDate(req.NextDueDate)
		if err != nil {
			return o, err
		}
		s := engine.RecurringSchedule{
			NextDue:   due,
			Frequency: engine.Frequency(req.Frequency),
			Every:     req.EveryDays,
		}
		if s.Frequency == "" {
			s.Frequency = engine.FreqMonthly
		}
		if req.EndDate != "" {
			end, err := engine.ParseDate(req.EndDate)
			if err != nil {
				return o, err
			}
			s.EndDate = &end
		}
		o.Schedule = s

	default:
		return o, engine.ErrInvalidSchedule
	}
	return o, nil
}

func orEmptyStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
