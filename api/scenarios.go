/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates obligations, escalation
	rules, fund balances, income sources and settings that demonstrate a
	specific engine feature.

AVAILABLE SCENARIOS:

	renter:          Monthly rent with an annual percentage escalation
	over-capacity:   Demand beyond the per-cycle cap, shortfall warnings
	custom-schedule: Quarterly insurance installments via a custom schedule

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create obligations + escalation rules
 3. Seed fund balances, income sources, settings

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "renter"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: The plan endpoints the scenarios feed
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/warp/fund-engine/engine"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "renter",
		Name:        "Renter",
		Description: "Monthly rent with an annual percentage escalation and a partly funded balance",
	},
	{
		ID:          "over-capacity",
		Name:        "Over Capacity",
		Description: "Several obligations whose combined demand exceeds the per-cycle cap",
	},
	{
		ID:          "custom-schedule",
		Name:        "Custom Schedule",
		Description: "Insurance paid in four explicit installments via a custom schedule",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	var err error
	switch req.ScenarioID {
	case "renter":
		err = h.loadRenterScenario(ctx)
	case "over-capacity":
		err = h.loadOverCapacityScenario(ctx)
	case "custom-schedule":
		err = h.loadCustomScheduleScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario: "+req.ScenarioID, nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadRenterScenario: one rent obligation, fortnightly pay, a pending annual
// percentage escalation, and a partly funded balance.
func (h *Handler) loadRenterScenario(ctx context.Context) error {
	now := h.now()

	rent := engine.Obligation{
		ID:       "rent",
		UserID:   DefaultUserID,
		Name:     "Rent",
		Amount:   engine.MustDecimal("1500"),
		IsActive: true,
		Schedule: engine.RecurringSchedule{
			NextDue:   now.AddDays(20),
			Frequency: engine.FreqMonthly,
		},
	}
	if err := h.Store.SaveObligation(ctx, rent); err != nil {
		return err
	}

	if err := h.Store.CreateEscalationRule(ctx, engine.EscalationRule{
		ID:             "rent-annual-increase",
		ObligationID:   "rent",
		ChangeType:     engine.ChangePercentage,
		Value:          engine.MustDecimal("3"),
		EffectiveDate:  now.AddMonths(6),
		IntervalMonths: 12,
	}); err != nil {
		return err
	}

	internet := engine.Obligation{
		ID:       "internet",
		UserID:   DefaultUserID,
		Name:     "Internet",
		Amount:   engine.MustDecimal("79.99"),
		IsActive: true,
		Schedule: engine.RecurringSchedule{
			NextDue:   now.AddDays(9),
			Frequency: engine.FreqMonthly,
		},
	}
	if err := h.Store.SaveObligation(ctx, internet); err != nil {
		return err
	}

	if err := h.Store.SaveBalance(ctx, engine.FundBalance{
		ObligationID: "rent", UserID: DefaultUserID, Current: engine.MustDecimal("300"),
	}); err != nil {
		return err
	}

	if err := h.Store.SaveIncomeSource(ctx, engine.IncomeSource{
		ID: "salary", UserID: DefaultUserID, Name: "Salary",
		Frequency: engine.IncomeFortnightly, IsActive: true,
	}); err != nil {
		return err
	}

	return h.Store.SaveSettings(ctx, engine.UserSettings{
		UserID:                  DefaultUserID,
		MaxContributionPerCycle: engine.MustDecimal("900"),
		CurrentFundBalance:      engine.MustDecimal("300"),
	})
}

// loadOverCapacityScenario: demand well beyond the cap so the greedy
// allocation and shortfall warnings are visible.
func (h *Handler) loadOverCapacityScenario(ctx context.Context) error {
	now := h.now()

	obligations := []engine.Obligation{
		{
			ID: "rent", UserID: DefaultUserID, Name: "Rent",
			Amount: engine.MustDecimal("2200"), IsActive: true,
			Schedule: engine.RecurringSchedule{NextDue: now.AddDays(10), Frequency: engine.FreqMonthly},
		},
		{
			ID: "car-loan", UserID: DefaultUserID, Name: "Car Loan",
			Amount: engine.MustDecimal("650"), IsActive: true,
			Schedule: engine.RecurringSchedule{NextDue: now.AddDays(5), Frequency: engine.FreqMonthly},
		},
		{
			ID: "car-rego", UserID: DefaultUserID, Name: "Car Registration",
			Amount: engine.MustDecimal("890"), IsActive: true,
			Schedule: engine.OneOffSchedule{Due: now.AddDays(25)},
		},
	}
	for _, o := range obligations {
		if err := h.Store.SaveObligation(ctx, o); err != nil {
			return err
		}
	}

	if err := h.Store.SaveIncomeSource(ctx, engine.IncomeSource{
		ID: "wage", UserID: DefaultUserID, Name: "Wage",
		Frequency: engine.IncomeWeekly, IsActive: true,
	}); err != nil {
		return err
	}

	return h.Store.SaveSettings(ctx, engine.UserSettings{
		UserID:                  DefaultUserID,
		MaxContributionPerCycle: engine.MustDecimal("400"),
	})
}

// loadCustomScheduleScenario: insurance paid in explicit installments with
// uneven amounts, one already paid.
func (h *Handler) loadCustomScheduleScenario(ctx context.Context) error {
	now := h.now()

	insurance := engine.Obligation{
		ID:       "insurance",
		UserID:   DefaultUserID,
		Name:     "Home Insurance",
		Amount:   decimal.Zero,
		IsActive: true,
		Schedule: engine.CustomSchedule{Entries: []engine.ScheduleEntry{
			{Due: now.AddMonths(-2), Amount: engine.MustDecimal("340"), IsPaid: true},
			{Due: now.AddMonths(1), Amount: engine.MustDecimal("340")},
			{Due: now.AddMonths(4), Amount: engine.MustDecimal("340")},
			{Due: now.AddMonths(7), Amount: engine.MustDecimal("355.60")},
		}},
	}
	if err := h.Store.SaveObligation(ctx, insurance); err != nil {
		return err
	}

	if err := h.Store.SaveBalance(ctx, engine.FundBalance{
		ObligationID: "insurance", UserID: DefaultUserID, Current: engine.MustDecimal("120"),
	}); err != nil {
		return err
	}

	monthly := engine.CycleMonthly
	return h.Store.SaveSettings(ctx, engine.UserSettings{
		UserID:                  DefaultUserID,
		ContributionCycleType:   &monthly,
		ContributionPayDays:     []int{15},
		MaxContributionPerCycle: engine.MustDecimal("500"),
		CurrentFundBalance:      engine.MustDecimal("120"),
	})
}
