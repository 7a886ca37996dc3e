/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract: amounts cross
  the wire as float64, dates as YYYY-MM-DD strings, while the engine keeps
  decimals and TimePoints internally.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - engine/contribution.go: The internal result types these mirror
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/fund-engine/engine"
)

// =============================================================================
// OBLIGATION TYPES
// =============================================================================

// ObligationDTO represents an obligation in API responses.
type ObligationDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Frequency   string  `json:"frequency,omitempty"`
	EveryDays   int     `json:"every_days,omitempty"`
	NextDueDate string  `json:"next_due_date,omitempty"`
	EndDate     string  `json:"end_date,omitempty"`
	FundGroupID string  `json:"fund_group_id,omitempty"`
	IsPaused    bool    `json:"is_paused"`
	IsActive    bool    `json:"is_active"`

	Entries     []ScheduleEntryDTO  `json:"entries,omitempty"`
	Escalations []EscalationRuleDTO `json:"escalations,omitempty"`
}

// ScheduleEntryDTO is one custom-schedule entry.
type ScheduleEntryDTO struct {
	DueDate string  `json:"due_date"`
	Amount  float64 `json:"amount"`
	IsPaid  bool    `json:"is_paid"`
}

// EscalationRuleDTO represents an escalation rule.
type EscalationRuleDTO struct {
	ID             string  `json:"id,omitempty"`
	ChangeType     string  `json:"change_type"`
	Value          float64 `json:"value"`
	EffectiveDate  string  `json:"effective_date"`
	IntervalMonths int     `json:"interval_months,omitempty"`
	IsApplied      bool    `json:"is_applied,omitempty"`
	AppliedAt      string  `json:"applied_at,omitempty"`
}

// CreateObligationRequest is the request to create an obligation.
type CreateObligationRequest struct {
	Name        string             `json:"name"`
	Type        string             `json:"type"`
	Amount      float64            `json:"amount"`
	Frequency   string             `json:"frequency,omitempty"`
	EveryDays   int                `json:"every_days,omitempty"`
	NextDueDate string             `json:"next_due_date,omitempty"`
	EndDate     string             `json:"end_date,omitempty"`
	FundGroupID string             `json:"fund_group_id,omitempty"`
	Entries     []ScheduleEntryDTO `json:"entries,omitempty"`
}

// CreateEscalationRequest is the request to add an escalation rule.
type CreateEscalationRequest struct {
	ChangeType     string  `json:"change_type"`
	Value          float64 `json:"value"`
	EffectiveDate  string  `json:"effective_date"`
	IntervalMonths int     `json:"interval_months,omitempty"`
}

// =============================================================================
// PLAN TYPES
// =============================================================================

// ContributionDTO is the per-obligation breakdown.
type ContributionDTO struct {
	ObligationID      string  `json:"obligation_id"`
	Name              string  `json:"name"`
	NextDueDate       string  `json:"next_due_date,omitempty"`
	EffectiveAmount   float64 `json:"effective_amount"`
	FundedBalance     float64 `json:"funded_balance"`
	AmountRequired    float64 `json:"amount_required"`
	CyclesRemaining   int     `json:"cycles_remaining"`
	RequiredPerCycle  float64 `json:"required_per_cycle"`
	AllocatedPerCycle float64 `json:"allocated_per_cycle"`
}

// ShortfallWarningDTO flags an obligation the cap could not fully fund.
type ShortfallWarningDTO struct {
	ObligationID      string  `json:"obligation_id"`
	Name              string  `json:"name"`
	NextDueDate       string  `json:"next_due_date,omitempty"`
	RequiredPerCycle  float64 `json:"required_per_cycle"`
	AllocatedPerCycle float64 `json:"allocated_per_cycle"`
	Shortfall         float64 `json:"shortfall"`
}

// EngineResultDTO mirrors engine.EngineResult.
type EngineResultDTO struct {
	Contributions             []ContributionDTO     `json:"contributions"`
	TotalRequired             float64               `json:"total_required"`
	TotalFunded               float64               `json:"total_funded"`
	TotalContributionPerCycle float64               `json:"total_contribution_per_cycle"`
	ShortfallWarnings         []ShortfallWarningDTO `json:"shortfall_warnings"`
	IsFullyFunded             bool                  `json:"is_fully_funded"`
	CapacityExceeded          bool                  `json:"capacity_exceeded"`
}

// SnapshotDTO is the user-facing summary.
type SnapshotDTO struct {
	TotalRequired             float64  `json:"total_required"`
	TotalFunded               float64  `json:"total_funded"`
	TotalContributionPerCycle float64  `json:"total_contribution_per_cycle"`
	CyclePeriodLabel          string   `json:"cycle_period_label"`
	NextActionAmount          *float64 `json:"next_action_amount,omitempty"`
	NextActionDate            string   `json:"next_action_date,omitempty"`
	NextActionDescription     string   `json:"next_action_description"`
	IsFullyFunded             bool     `json:"is_fully_funded"`
}

// PlanResponse is GET /api/plan.
type PlanResponse struct {
	Snapshot SnapshotDTO     `json:"snapshot"`
	Result   EngineResultDTO `json:"result"`
}

// WhatIfRequest carries the overlay overrides.
type WhatIfRequest struct {
	ToggledOffIDs       []string                       `json:"toggled_off_ids,omitempty"`
	AmountOverrides     map[string]float64             `json:"amount_overrides,omitempty"`
	Hypotheticals       []CreateObligationRequest      `json:"hypotheticals,omitempty"`
	EscalationOverrides map[string][]EscalationRuleDTO `json:"escalation_overrides,omitempty"`
	MonthsAhead         int                            `json:"months_ahead,omitempty"`
}

// WhatIfResponse pairs baseline and scenario.
type WhatIfResponse struct {
	Actual   EngineResultDTO `json:"actual"`
	Scenario EngineResultDTO `json:"scenario"`
}

// =============================================================================
// TIMELINE TYPES
// =============================================================================

type DataPointDTO struct {
	Date             string  `json:"date"`
	ProjectedBalance float64 `json:"projected_balance"`
}

type MarkerDTO struct {
	Date         string  `json:"date"`
	Amount       float64 `json:"amount"`
	ObligationID string  `json:"obligation_id,omitempty"`
	Name         string  `json:"name,omitempty"`
}

type CrunchPointDTO struct {
	Date    string  `json:"date"`
	Balance float64 `json:"balance"`
}

type TimelineResponse struct {
	DataPoints          []DataPointDTO   `json:"data_points"`
	ExpenseMarkers      []MarkerDTO      `json:"expense_markers"`
	ContributionMarkers []MarkerDTO      `json:"contribution_markers"`
	CrunchPoints        []CrunchPointDTO `json:"crunch_points"`
	StartDate           string           `json:"start_date"`
	EndDate             string           `json:"end_date"`
}

// =============================================================================
// INCOME / SETTINGS / RECONCILE TYPES
// =============================================================================

type IncomeSourceDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Frequency   string `json:"frequency"`
	IsIrregular bool   `json:"is_irregular"`
	IsActive    bool   `json:"is_active"`
	IsPaused    bool   `json:"is_paused"`
}

type CreateIncomeRequest struct {
	Name        string `json:"name"`
	Frequency   string `json:"frequency"`
	IsIrregular bool   `json:"is_irregular"`
}

type SettingsDTO struct {
	CycleType               string  `json:"cycle_type,omitempty"`
	PayDays                 []int   `json:"pay_days,omitempty"`
	MaxContributionPerCycle float64 `json:"max_contribution_per_cycle"`
	CurrentFundBalance      float64 `json:"current_fund_balance"`
}

type ReconcileResponse struct {
	AppliedCount         int      `json:"applied_count"`
	UpdatedObligationIDs []string `json:"updated_obligation_ids"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func f64(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func dateOrEmpty(tp engine.TimePoint) string {
	if tp.IsZero() {
		return ""
	}
	return tp.String()
}

func toObligationDTO(o engine.Obligation) ObligationDTO {
	dto := ObligationDTO{
		ID:          o.ID,
		Name:        o.Name,
		Type:        string(o.Type()),
		Amount:      f64(o.Amount),
		FundGroupID: o.FundGroupID,
		IsPaused:    o.IsPaused,
		IsActive:    o.IsActive,
	}
	switch s := o.Schedule.(type) {
	case engine.RecurringSchedule:
		dto.Frequency = string(s.Frequency)
		dto.EveryDays = s.Every
		dto.NextDueDate = s.NextDue.String()
		if s.EndDate != nil {
			dto.EndDate = s.EndDate.String()
		}
	case engine.OneOffSchedule:
		dto.NextDueDate = s.Due.String()
	case engine.CustomSchedule:
		for _, e := range s.Entries {
			dto.Entries = append(dto.Entries, ScheduleEntryDTO{
				DueDate: e.Due.String(),
				Amount:  f64(e.Amount),
				IsPaid:  e.IsPaid,
			})
		}
	}
	for _, r := range o.Escalations {
		dto.Escalations = append(dto.Escalations, toEscalationDTO(r))
	}
	return dto
}

func toEscalationDTO(r engine.EscalationRule) EscalationRuleDTO {
	dto := EscalationRuleDTO{
		ID:             r.ID,
		ChangeType:     string(r.ChangeType),
		Value:          f64(r.Value),
		EffectiveDate:  r.EffectiveDate.String(),
		IntervalMonths: r.IntervalMonths,
		IsApplied:      r.IsApplied,
	}
	if r.AppliedAt != nil {
		dto.AppliedAt = r.AppliedAt.String()
	}
	return dto
}

func toEngineResultDTO(result engine.EngineResult) EngineResultDTO {
	dto := EngineResultDTO{
		Contributions:             []ContributionDTO{},
		TotalRequired:             f64(result.TotalRequired),
		TotalFunded:               f64(result.TotalFunded),
		TotalContributionPerCycle: f64(result.TotalContributionPerCycle),
		ShortfallWarnings:         []ShortfallWarningDTO{},
		IsFullyFunded:             result.IsFullyFunded,
		CapacityExceeded:          result.CapacityExceeded,
	}
	for _, c := range result.Contributions {
		dto.Contributions = append(dto.Contributions, ContributionDTO{
			ObligationID:      c.ObligationID,
			Name:              c.Name,
			NextDueDate:       dateOrEmpty(c.NextDue),
			EffectiveAmount:   f64(c.EffectiveAmount),
			FundedBalance:     f64(c.FundedBalance),
			AmountRequired:    f64(c.AmountRequired),
			CyclesRemaining:   c.CyclesRemaining,
			RequiredPerCycle:  f64(c.RequiredPerCycle),
			AllocatedPerCycle: f64(c.AllocatedPerCycle),
		})
	}
	for _, s := range result.ShortfallWarnings {
		dto.ShortfallWarnings = append(dto.ShortfallWarnings, ShortfallWarningDTO{
			ObligationID:      s.ObligationID,
			Name:              s.Name,
			NextDueDate:       dateOrEmpty(s.NextDue),
			RequiredPerCycle:  f64(s.RequiredPerCycle),
			AllocatedPerCycle: f64(s.AllocatedPerCycle),
			Shortfall:         f64(s.Shortfall),
		})
	}
	return dto
}

func toSnapshotDTO(snap engine.PlanSnapshot) SnapshotDTO {
	dto := SnapshotDTO{
		TotalRequired:             f64(snap.TotalRequired),
		TotalFunded:               f64(snap.TotalFunded),
		TotalContributionPerCycle: f64(snap.TotalContributionPerCycle),
		CyclePeriodLabel:          snap.CyclePeriodLabel,
		NextActionDescription:     snap.NextActionDescription,
		IsFullyFunded:             snap.IsFullyFunded,
	}
	if snap.NextActionAmount != nil {
		amount := f64(*snap.NextActionAmount)
		dto.NextActionAmount = &amount
	}
	if snap.NextActionDate != nil {
		dto.NextActionDate = snap.NextActionDate.String()
	}
	return dto
}

func toTimelineResponse(result engine.TimelineResult) TimelineResponse {
	resp := TimelineResponse{
		DataPoints:          []DataPointDTO{},
		ExpenseMarkers:      []MarkerDTO{},
		ContributionMarkers: []MarkerDTO{},
		CrunchPoints:        []CrunchPointDTO{},
		StartDate:           result.StartDate.String(),
		EndDate:             result.EndDate.String(),
	}
	for _, p := range result.DataPoints {
		resp.DataPoints = append(resp.DataPoints, DataPointDTO{
			Date:             p.Date.String(),
			ProjectedBalance: f64(p.ProjectedBalance),
		})
	}
	for _, m := range result.ExpenseMarkers {
		resp.ExpenseMarkers = append(resp.ExpenseMarkers, MarkerDTO{
			Date: m.Date.String(), Amount: f64(m.Amount),
			ObligationID: m.ObligationID, Name: m.Name,
		})
	}
	for _, m := range result.ContributionMarkers {
		resp.ContributionMarkers = append(resp.ContributionMarkers, MarkerDTO{
			Date: m.Date.String(), Amount: f64(m.Amount),
		})
	}
	for _, c := range result.CrunchPoints {
		resp.CrunchPoints = append(resp.CrunchPoints, CrunchPointDTO{
			Date: c.Date.String(), Balance: f64(c.Balance),
		})
	}
	return resp
}
