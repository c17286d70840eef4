/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Cycles:    CreateCycleRequest, SetupCyclesRequest, CycleDTO, CycleSetupDTO
  Balances:  CreateBalanceRequest, GenerateBalancesRequest, BalanceDTO,
             GenerationResultDTO
  Config:    LeaveYearDTO, PolicyDTO (wraps factory.PolicyJSON)
  Other:     EmployeeDTO, AuditEntryDTO, ScenarioDTO, ErrorResponse

AMOUNTS:
  Day amounts are decimal.Decimal and serialize as JSON strings ("12.5")
  so clients never see float rounding.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/policy.go: PolicyJSON type
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/entitlement-engine/factory"
	"github.com/warp/entitlement-engine/generic"
	"github.com/warp/entitlement-engine/leave"
)

// =============================================================================
// REQUESTS
// =============================================================================

type CreateCycleRequest struct {
	EmployeeID string `json:"employee_id"`
	LeaveType  string `json:"leave_type"`
	Year       *int   `json:"year,omitempty"`
}

type SetupCyclesRequest struct {
	BaseYear        *int `json:"base_year,omitempty"`
	ForceRegenerate bool `json:"force_regenerate"`
}

type CreateBalanceRequest struct {
	EmployeeID string `json:"employee_id"`
	LeaveType  string `json:"leave_type"`
	PolicyID   string `json:"policy_id,omitempty"`
	Year       string `json:"year"`
}

type GenerateBalancesRequest struct {
	Year            string `json:"year"`
	ForceRegenerate bool   `json:"force_regenerate"`
}

// LoadScenarioRequest selects a built-in scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type EmployeeDTO struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	HireDate           string  `json:"hire_date,omitempty"`
	RegularizationDate *string `json:"regularization_date,omitempty"`
	Status             string  `json:"status"`
	IsActive           bool    `json:"is_active"`
}

type CycleDTO struct {
	ID             string          `json:"id"`
	EmployeeID     string          `json:"employee_id"`
	LeaveTypeID    string          `json:"leave_type_id"`
	CycleStartYear int             `json:"cycle_start_year"`
	CycleEndYear   int             `json:"cycle_end_year"`
	Status         string          `json:"status"`
	TotalCarried   decimal.Decimal `json:"total_carried"`
	CreatedAt      string          `json:"created_at"`
}

type BalanceDTO struct {
	ID               string          `json:"id"`
	EmployeeID       string          `json:"employee_id"`
	LeaveTypeID      string          `json:"leave_type_id"`
	PolicyID         string          `json:"policy_id"`
	Year             string          `json:"year"`
	BeginningBalance decimal.Decimal `json:"beginning_balance"`
	Earned           decimal.Decimal `json:"earned"`
	Used             decimal.Decimal `json:"used"`
	CarriedOver      decimal.Decimal `json:"carried_over"`
	Encashed         decimal.Decimal `json:"encashed"`
	Remaining        decimal.Decimal `json:"remaining"`
	Status           string          `json:"status"`
}

type SkipDTO struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name"`
	LeaveType    string `json:"leave_type"`
	Reason       string `json:"reason"`
	Details      string `json:"details"`
}

type GenerationResultDTO struct {
	Year             string    `json:"year"`
	GeneratedCount   int       `json:"generated_count"`
	RegeneratedCount int       `json:"regenerated_count"`
	SkippedCount     int       `json:"skipped_count"`
	SkippedEmployees []SkipDTO `json:"skipped_employees"`
}

type CycleSetupDTO struct {
	BaseYear     int       `json:"base_year"`
	CreatedCount int       `json:"created_count"`
	SkippedCount int       `json:"skipped_count"`
	Skipped      []SkipDTO `json:"skipped"`
}

type LeaveYearDTO struct {
	Year            string `json:"year"`
	CutoffStartDate string `json:"cutoff_start_date"`
	CutoffEndDate   string `json:"cutoff_end_date"`
}

// PolicyDTO is the factory JSON of a policy.
type PolicyDTO = factory.PolicyJSON

type AuditEntryDTO struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Action      string          `json:"action"`
	Entity      string          `json:"entity"`
	ActorID     string          `json:"actor_id"`
	Before      json.RawMessage `json:"before,omitempty"`
	After       json.RawMessage `json:"after,omitempty"`
	Description string          `json:"description"`
	StatusCode  int             `json:"status_code"`
	Error       string          `json:"error,omitempty"`
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toEmployeeDTO(e generic.Employee) EmployeeDTO {
	dto := EmployeeDTO{
		ID:       string(e.ID),
		Name:     e.Name,
		Status:   string(e.Status),
		IsActive: e.IsActive,
	}
	if !e.HireDate.IsZero() {
		dto.HireDate = e.HireDate.String()
	}
	if e.RegularizationDate != nil && !e.RegularizationDate.IsZero() {
		s := e.RegularizationDate.String()
		dto.RegularizationDate = &s
	}
	return dto
}

func toCycleDTO(c generic.LeaveCycle) CycleDTO {
	return CycleDTO{
		ID:             string(c.ID),
		EmployeeID:     string(c.EmployeeID),
		LeaveTypeID:    string(c.LeaveTypeID),
		CycleStartYear: c.CycleStartYear,
		CycleEndYear:   c.CycleEndYear,
		Status:         string(c.Status),
		TotalCarried:   c.TotalCarried,
		CreatedAt:      c.CreatedAt.String(),
	}
}

func toBalanceDTO(b generic.LeaveBalance) BalanceDTO {
	return BalanceDTO{
		ID:               string(b.ID),
		EmployeeID:       string(b.EmployeeID),
		LeaveTypeID:      string(b.LeaveTypeID),
		PolicyID:         string(b.PolicyID),
		Year:             b.Year,
		BeginningBalance: b.BeginningBalance,
		Earned:           b.Earned,
		Used:             b.Used,
		CarriedOver:      b.CarriedOver,
		Encashed:         b.Encashed,
		Remaining:        b.Remaining,
		Status:           string(b.Status),
	}
}

func toSkipDTOs(entries []leave.SkipEntry) []SkipDTO {
	out := make([]SkipDTO, len(entries))
	for i, e := range entries {
		out[i] = SkipDTO{
			EmployeeID:   string(e.EmployeeID),
			EmployeeName: e.EmployeeName,
			LeaveType:    e.LeaveType,
			Reason:       e.Reason,
			Details:      e.Details,
		}
	}
	return out
}

func toGenerationResultDTO(r *leave.GenerationResult) GenerationResultDTO {
	return GenerationResultDTO{
		Year:             r.Year,
		GeneratedCount:   r.GeneratedCount,
		RegeneratedCount: r.RegeneratedCount,
		SkippedCount:     r.SkippedCount,
		SkippedEmployees: toSkipDTOs(r.SkippedEmployees),
	}
}

func toCycleSetupDTO(r *leave.CycleSetupResult) CycleSetupDTO {
	return CycleSetupDTO{
		BaseYear:     r.BaseYear,
		CreatedCount: r.CreatedCount,
		SkippedCount: r.SkippedCount,
		Skipped:      toSkipDTOs(r.Skipped),
	}
}

func toLeaveYearDTO(y generic.LeaveYear) LeaveYearDTO {
	return LeaveYearDTO{
		Year:            y.Year,
		CutoffStartDate: y.CutoffStartDate.String(),
		CutoffEndDate:   y.CutoffEndDate.String(),
	}
}

func toAuditEntryDTO(e generic.AuditEntry) AuditEntryDTO {
	dto := AuditEntryDTO{
		ID:          e.ID,
		Timestamp:   e.Timestamp,
		Action:      string(e.Action),
		Entity:      e.Entity,
		ActorID:     e.ActorID,
		Description: e.Description,
		StatusCode:  e.StatusCode,
		Error:       e.Error,
	}
	if raw, ok := e.Before.(json.RawMessage); ok {
		dto.Before = raw
	}
	if raw, ok := e.After.(json.RawMessage); ok {
		dto.After = raw
	}
	return dto
}
