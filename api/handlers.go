/*
handlers.go - HTTP API handlers for the leave entitlement engine

PURPOSE:
  Exposes the cycle manager and the balance generator via REST API. Handles
  HTTP request/response and JSON serialization, and delegates to package
  leave for every computation.

ENDPOINTS:
  Cycles:
    POST   /api/leave-cycles              Create one cycle
    POST   /api/leave-cycles/setup        Set up cycles for all employees

  Balances:
    POST   /api/leave-balances            Create one balance
    POST   /api/leave-balances/generate   Generate a leave year's balances

  Read-only views:
    GET    /api/employees                 List employees
    GET    /api/employees/{id}/balances   Balances of one employee
    GET    /api/employees/{id}/cycles     Cycles of one employee

  Configuration:
    GET    /api/policies                  List policies
    POST   /api/policies                  Create/replace a policy from JSON
    GET    /api/leave-years               List leave years
    POST   /api/leave-years               Create/replace a leave year
    GET    /api/audit                     Recent audit entries

ACTOR:
  The X-Actor header names the user triggering an operation. It is carried
  on the request context and lands in the audit log ("system" if absent).

ERROR HANDLING:
  Errors are returned as JSON ErrorResponse with status from
  generic.StatusCode:
  - 400: Validation errors, ineligible employee, duplicate or overlap
  - 404: Employee, leave type, policy or leave year not found
  - 500: Storage and other internal errors

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/entitlement-engine/factory"
	"github.com/warp/entitlement-engine/generic"
	"github.com/warp/entitlement-engine/leave"
	"github.com/warp/entitlement-engine/store/sqlite"
)

// ActorHeader names the acting user of a request.
const ActorHeader = "X-Actor"

const defaultAuditLimit = 50

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store         *sqlite.Store
	PolicyFactory *factory.PolicyFactory
	Cycles        *leave.CycleManager
	Balances      *leave.BalanceGenerator
	Audit         generic.AuditLog

	logger *zap.Logger

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires the orchestrators to store. Audit entries go to audit;
// pass the store itself to persist them.
func NewHandler(store *sqlite.Store, audit generic.AuditLog, logger *zap.Logger) *Handler {
	if audit == nil {
		audit = generic.NopAuditLog{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:         store,
		PolicyFactory: factory.NewPolicyFactory(),
		Cycles:        leave.NewCycleManager(store, audit, logger),
		Balances:      leave.NewBalanceGenerator(store, audit, logger),
		Audit:         audit,
		logger:        logger.Named("api"),
	}
}

// =============================================================================
// CYCLE HANDLERS
// =============================================================================

// CreateLeaveCycle creates the cycle covering one employee's base year.
func (h *Handler) CreateLeaveCycle(w http.ResponseWriter, r *http.Request) {
	var req CreateCycleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.EmployeeID == "" || req.LeaveType == "" {
		writeError(w, http.StatusBadRequest, "employee_id and leave_type are required", nil)
		return
	}

	cycle, err := h.Cycles.CreateCycle(r.Context(), leave.CreateCycleInput{
		EmployeeID: generic.EmployeeID(req.EmployeeID),
		LeaveType:  req.LeaveType,
		Year:       req.Year,
	})
	if err != nil {
		writeDomainError(w, "Failed to create leave cycle", err)
		return
	}

	writeJSON(w, http.StatusCreated, toCycleDTO(*cycle))
}

// SetupLeaveCycles creates cycles for every active employee and policy.
func (h *Handler) SetupLeaveCycles(w http.ResponseWriter, r *http.Request) {
	var req SetupCyclesRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	result, err := h.Cycles.SetupCyclesForAllEmployees(r.Context(), leave.SetupCyclesInput{
		BaseYear:        req.BaseYear,
		ForceRegenerate: req.ForceRegenerate,
	})
	if err != nil {
		writeDomainError(w, "Failed to set up leave cycles", err)
		return
	}

	writeJSON(w, http.StatusOK, toCycleSetupDTO(result))
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// CreateLeaveBalance creates one employee's balance for a leave year.
func (h *Handler) CreateLeaveBalance(w http.ResponseWriter, r *http.Request) {
	var req CreateBalanceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.EmployeeID == "" || req.LeaveType == "" || req.Year == "" {
		writeError(w, http.StatusBadRequest, "employee_id, leave_type and year are required", nil)
		return
	}

	balance, err := h.Balances.CreateBalance(r.Context(), leave.CreateBalanceInput{
		EmployeeID: generic.EmployeeID(req.EmployeeID),
		LeaveType:  req.LeaveType,
		PolicyID:   generic.PolicyID(req.PolicyID),
		Year:       req.Year,
	})
	if err != nil {
		writeDomainError(w, "Failed to create leave balance", err)
		return
	}

	writeJSON(w, http.StatusCreated, toBalanceDTO(*balance))
}

// GenerateAnnualLeaveBalances generates balances for a whole leave year.
func (h *Handler) GenerateAnnualLeaveBalances(w http.ResponseWriter, r *http.Request) {
	var req GenerateBalancesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Year == "" {
		writeError(w, http.StatusBadRequest, "year is required", nil)
		return
	}

	result, err := h.Balances.GenerateAnnualBalances(r.Context(), leave.GenerateBalancesInput{
		Year:            req.Year,
		ForceRegenerate: req.ForceRegenerate,
	})
	if err != nil {
		writeDomainError(w, "Failed to generate leave balances", err)
		return
	}

	writeJSON(w, http.StatusOK, toGenerationResultDTO(result))
}

// =============================================================================
// EMPLOYEE VIEWS
// =============================================================================

// ListEmployees returns all employees, active or not.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployeeBalances returns every balance of one employee.
func (h *Handler) GetEmployeeBalances(w http.ResponseWriter, r *http.Request) {
	id := generic.EmployeeID(chi.URLParam(r, "id"))

	var balances []generic.LeaveBalance
	err := h.readOnly(r.Context(), func(tx generic.Tx) error {
		if err := requireEmployee(r.Context(), tx, id); err != nil {
			return err
		}
		var err error
		balances, err = tx.Balances().ListByEmployee(r.Context(), id)
		return err
	})
	if err != nil {
		writeDomainError(w, "Failed to load balances", err)
		return
	}

	dtos := make([]BalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = toBalanceDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployeeCycles returns every cycle of one employee.
func (h *Handler) GetEmployeeCycles(w http.ResponseWriter, r *http.Request) {
	id := generic.EmployeeID(chi.URLParam(r, "id"))

	var cycles []generic.LeaveCycle
	err := h.readOnly(r.Context(), func(tx generic.Tx) error {
		if err := requireEmployee(r.Context(), tx, id); err != nil {
			return err
		}
		var err error
		cycles, err = tx.Cycles().ListByEmployee(r.Context(), id)
		return err
	})
	if err != nil {
		writeDomainError(w, "Failed to load cycles", err)
		return
	}

	dtos := make([]CycleDTO, len(cycles))
	for i, c := range cycles {
		dtos[i] = toCycleDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// readOnly runs fn inside a transaction that is always rolled back.
func (h *Handler) readOnly(ctx context.Context, fn func(tx generic.Tx) error) error {
	tx, err := h.Store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return fn(tx)
}

func requireEmployee(ctx context.Context, tx generic.Tx, id generic.EmployeeID) error {
	emp, err := tx.Employees().FindByID(ctx, id)
	if err != nil {
		return err
	}
	if emp == nil {
		return generic.NewNotFound("employee", string(id))
	}
	return nil
}

// =============================================================================
// POLICY HANDLERS
// =============================================================================

// ListPolicies returns all policies as factory JSON.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.Store.ListPolicies(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list policies", err)
		return
	}

	dtos := make([]PolicyDTO, len(policies))
	for i := range policies {
		dtos[i] = h.PolicyFactory.ToJSON(&policies[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePolicy creates or replaces a policy. The policy's leave type is
// registered under the policy's leave type name.
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req PolicyDTO
	if !decodeBody(w, r, &req) {
		return
	}

	policy, err := h.PolicyFactory.FromJSON(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid policy", err)
		return
	}

	err = h.savePolicy(r.Context(), *policy)
	h.recordConfig(r.Context(), generic.AuditPolicyConfigured, "leave_policy", h.PolicyFactory.ToJSON(policy), err,
		fmt.Sprintf("configure policy %s for %s", policy.ID, policy.LeaveType))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save policy", err)
		return
	}

	writeJSON(w, http.StatusCreated, h.PolicyFactory.ToJSON(policy))
}

func (h *Handler) savePolicy(ctx context.Context, policy generic.LeavePolicy) error {
	if policy.LeaveType != "" {
		lt := generic.LeaveType{ID: policy.LeaveTypeID, Name: policy.LeaveType, IsActive: true}
		if err := h.Store.SaveLeaveType(ctx, lt); err != nil {
			return fmt.Errorf("failed to save leave type: %w", err)
		}
	}
	return h.Store.SavePolicy(ctx, policy)
}

// =============================================================================
// LEAVE YEAR HANDLERS
// =============================================================================

// ListLeaveYears returns leave years in chronological order.
func (h *Handler) ListLeaveYears(w http.ResponseWriter, r *http.Request) {
	years, err := h.Store.ListLeaveYears(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list leave years", err)
		return
	}

	dtos := make([]LeaveYearDTO, len(years))
	for i, y := range years {
		dtos[i] = toLeaveYearDTO(y)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLeaveYear creates or replaces a leave year configuration.
func (h *Handler) CreateLeaveYear(w http.ResponseWriter, r *http.Request) {
	var req LeaveYearDTO
	if !decodeBody(w, r, &req) {
		return
	}

	year, err := parseLeaveYear(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid leave year", err)
		return
	}

	err = h.Store.SaveLeaveYear(r.Context(), year)
	h.recordConfig(r.Context(), generic.AuditLeaveYearConfigure, "leave_year", req, err,
		fmt.Sprintf("configure leave year %s", year.Year))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save leave year", err)
		return
	}

	writeJSON(w, http.StatusCreated, toLeaveYearDTO(year))
}

func parseLeaveYear(dto LeaveYearDTO) (generic.LeaveYear, error) {
	if dto.Year == "" {
		return generic.LeaveYear{}, errors.New("year is required")
	}
	start, err := generic.ParseDate(dto.CutoffStartDate)
	if err != nil {
		return generic.LeaveYear{}, fmt.Errorf("cutoff_start_date: %w", err)
	}
	end, err := generic.ParseDate(dto.CutoffEndDate)
	if err != nil {
		return generic.LeaveYear{}, fmt.Errorf("cutoff_end_date: %w", err)
	}
	if end.Before(start) {
		return generic.LeaveYear{}, fmt.Errorf("cutoff_end_date %s is before cutoff_start_date %s", end, start)
	}
	return generic.LeaveYear{Year: dto.Year, CutoffStartDate: start, CutoffEndDate: end}, nil
}

// =============================================================================
// AUDIT
// =============================================================================

// ListAuditEntries returns the most recent audit entries (?limit=, default 50).
func (h *Handler) ListAuditEntries(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		limit = n
	}

	entries, err := h.Store.ListAuditEntries(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list audit entries", err)
		return
	}

	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toAuditEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// recordConfig audits a configuration change. Sink failures are logged only.
func (h *Handler) recordConfig(ctx context.Context, action generic.AuditAction, entity string, after any, opErr error, description string) {
	entry := generic.AuditEntry{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Action:      action,
		Entity:      entity,
		ActorID:     generic.ActorFrom(ctx),
		After:       after,
		Description: description,
		StatusCode:  generic.StatusCode(opErr),
	}
	if opErr != nil {
		entry.Error = opErr.Error()
	}
	if err := h.Audit.Record(context.WithoutCancel(ctx), entry); err != nil {
		h.logger.Warn("failed to record audit entry", zap.String("action", string(action)), zap.Error(err))
	}
}

// =============================================================================
// HELPERS
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

// writeDomainError maps an orchestrator error to its status code and reason.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	resp := ErrorResponse{Error: message, Details: err.Error()}
	var bad *generic.BadRequestError
	if errors.As(err, &bad) {
		resp.Reason = bad.Reason
	}
	writeJSON(w, generic.StatusCode(err), resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return false
	}
	return true
}

// decodeOptionalBody accepts an empty body.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return false
	}
	return true
}
