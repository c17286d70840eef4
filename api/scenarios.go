/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	configuration: leave years, policies, employees and, where the story
	needs one, a previous year's balance. Cycles and balances for the
	scenario are then produced through the normal API.

AVAILABLE SCENARIOS:

	carry-over:         Five-year vacation cycle, capped carry-over from 2024
	service-incentive:  Statutory SIL with a 12-month tenure rule and new hires
	fiscal-year:        April-March leave years labelled FY2024-25 (YAML seed)

CUSTOM SEEDS:

	POST /api/scenarios/load with Content-Type application/yaml loads a seed
	document instead of a built-in scenario:

	  leave_years:
	    - {year: "2025", cutoff_start_date: "2025-01-01", cutoff_end_date: "2025-12-31"}
	  policies:
	    - {id: vl, leave_type_id: vl, leave_type: Vacation Leave,
	       annual_entitlement: 15, carry_limit: 10, cycle_length_years: 5}
	  employees:
	    - {id: emp-1, name: Ana Reyes, hire_date: "2012-06-01", status: REGULAR}
	  balances:
	    - {employee_id: emp-1, leave_type_id: vl, policy_id: vl, year: "2024",
	       earned: "15", used: "3"}

	Policies use the same JSON fields as POST /api/policies.

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create leave years
 3. Create policies via factory (registers their leave types)
 4. Create employees
 5. Optionally create previous-year balances

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Configuration handlers shared with scenarios
  - leave/policies.go: Policy presets
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/warp/entitlement-engine/generic"
	"github.com/warp/entitlement-engine/leave"
)

// CustomScenarioID marks a database loaded from a YAML seed document.
const CustomScenarioID = "custom"

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "carry-over",
		Name:        "Carry-Over",
		Description: "Five-year vacation cycle; 2024 leftovers carry into 2025 up to the limit",
	},
	{
		ID:          "service-incentive",
		Name:        "Service Incentive Leave",
		Description: "Statutory 5-day SIL after 12 months of service, with recent hires",
	},
	{
		ID:          "fiscal-year",
		Name:        "Fiscal Leave Years",
		Description: "April-March leave years with non-numeric labels",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	if current == CustomScenarioID {
		writeJSON(w, http.StatusOK, ScenarioDTO{ID: CustomScenarioID, Name: "Custom", Description: "Loaded from a YAML seed"})
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a scenario. A YAML body is a
// custom seed document; a JSON body names a built-in scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		s  *seed
		id string
	)
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Failed to read seed document", err)
			return
		}
		doc, err := ParseSeedDocument(data)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid seed document", err)
			return
		}
		s, err = doc.seed()
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid seed document", err)
			return
		}
		id = CustomScenarioID
	} else {
		var req LoadScenarioRequest
		if !decodeBody(w, r, &req) {
			return
		}
		var err error
		s, err = builtinSeed(req.ScenarioID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Unknown scenario", err)
			return
		}
		id = req.ScenarioID
	}

	// Policies are validated before anything is cleared.
	for _, js := range s.Policies {
		if _, err := h.PolicyFactory.ParsePolicy(js); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid policy in scenario", err)
			return
		}
	}

	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	if err := h.applySeed(ctx, s); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()

	h.logger.Info("scenario loaded",
		zap.String("scenario", id),
		zap.Int("employees", len(s.Employees)),
		zap.Int("policies", len(s.Policies)))

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": id})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SEEDS
// =============================================================================

// seed is the configuration a scenario writes. Policies are factory JSON.
type seed struct {
	LeaveYears []generic.LeaveYear
	Policies   []string
	Employees  []generic.Employee
	Balances   []generic.LeaveBalance
}

func (h *Handler) applySeed(ctx context.Context, s *seed) error {
	for _, y := range s.LeaveYears {
		if err := h.Store.SaveLeaveYear(ctx, y); err != nil {
			return fmt.Errorf("leave year %s: %w", y.Year, err)
		}
	}
	for _, js := range s.Policies {
		policy, err := h.PolicyFactory.ParsePolicy(js)
		if err != nil {
			return err
		}
		if err := h.savePolicy(ctx, *policy); err != nil {
			return fmt.Errorf("policy %s: %w", policy.ID, err)
		}
	}
	for _, e := range s.Employees {
		if err := h.Store.SaveEmployee(ctx, e); err != nil {
			return fmt.Errorf("employee %s: %w", e.ID, err)
		}
	}
	for _, b := range s.Balances {
		if err := h.Store.SaveBalance(ctx, b); err != nil {
			return fmt.Errorf("balance %s/%s/%s: %w", b.EmployeeID, b.LeaveTypeID, b.Year, err)
		}
	}
	return nil
}

func builtinSeed(id string) (*seed, error) {
	switch id {
	case "carry-over":
		return carryOverSeed(), nil
	case "service-incentive":
		return serviceIncentiveSeed(), nil
	case "fiscal-year":
		doc, err := ParseSeedDocument([]byte(fiscalYearSeedYAML))
		if err != nil {
			return nil, err
		}
		return doc.seed()
	default:
		return nil, fmt.Errorf("unknown scenario %q", id)
	}
}

func calendarYears(from, to int) []generic.LeaveYear {
	var years []generic.LeaveYear
	for y := from; y <= to; y++ {
		years = append(years, generic.LeaveYear{
			Year:            fmt.Sprint(y),
			CutoffStartDate: generic.StartOfYear(y),
			CutoffEndDate:   generic.EndOfYear(y),
		})
	}
	return years
}

func regularized(tp generic.TimePoint) *generic.TimePoint { return &tp }

// carryOverSeed: Ana used 3 of 15 days in 2024, so 12 remain and 10 carry.
// Ben is still probationary past the 2025 cutoff and Carla has resigned.
func carryOverSeed() *seed {
	return &seed{
		LeaveYears: calendarYears(2024, 2025),
		Policies: []string{
			leave.VacationLeaveJSON("vl-5y", "vl", "Vacation Leave", 15, 10, 5),
			leave.SickLeaveJSON("sl", "sl", "Sick Leave", 10),
		},
		Employees: []generic.Employee{
			{
				ID:                 "emp-ana",
				Name:               "Ana Reyes",
				HireDate:           generic.NewTimePoint(2012, 6, 1),
				RegularizationDate: regularized(generic.NewTimePoint(2013, 1, 1)),
				Status:             generic.StatusRegular,
				IsActive:           true,
			},
			{
				ID:       "emp-ben",
				Name:     "Ben Cruz",
				HireDate: generic.NewTimePoint(2024, 10, 1),
				Status:   generic.StatusProbationary,
				IsActive: true,
			},
			{
				ID:       "emp-carla",
				Name:     "Carla Santos",
				HireDate: generic.NewTimePoint(2018, 3, 15),
				Status:   generic.StatusResigned,
				IsActive: true,
			},
		},
		Balances: []generic.LeaveBalance{
			{
				ID:               generic.BalanceID(uuid.NewString()),
				EmployeeID:       "emp-ana",
				LeaveTypeID:      "vl",
				PolicyID:         "vl-5y",
				Year:             "2024",
				BeginningBalance: generic.NewDays(15),
				Earned:           generic.NewDays(15),
				Used:             generic.NewDays(3),
				CarriedOver:      decimal.Zero,
				Encashed:         decimal.Zero,
				Remaining:        generic.NewDays(12),
				Status:           generic.BalanceOpen,
			},
		},
	}
}

// serviceIncentiveSeed: SIL needs 12 months of tenure at the cutoff.
func serviceIncentiveSeed() *seed {
	return &seed{
		LeaveYears: calendarYears(2025, 2026),
		Policies: []string{
			leave.ServiceIncentiveLeaveJSON("sil", "sil", "Service Incentive Leave"),
		},
		Employees: []generic.Employee{
			{
				ID:       "emp-dan",
				Name:     "Dan Villanueva",
				HireDate: generic.NewTimePoint(2023, 7, 1),
				Status:   generic.StatusRegular,
				IsActive: true,
			},
			{
				ID:       "emp-eli",
				Name:     "Eli Navarro",
				HireDate: generic.NewTimePoint(2024, 6, 1),
				Status:   generic.StatusContractual,
				IsActive: true,
			},
			{
				ID:       "emp-fe",
				Name:     "Fe Ramos",
				HireDate: generic.NewTimePoint(2025, 2, 1),
				Status:   generic.StatusProbationary,
				IsActive: true,
			},
		},
	}
}

const fiscalYearSeedYAML = `
leave_years:
  - {year: FY2023-24, cutoff_start_date: "2023-04-01", cutoff_end_date: "2024-03-31"}
  - {year: FY2024-25, cutoff_start_date: "2024-04-01", cutoff_end_date: "2025-03-31"}
  - {year: FY2025-26, cutoff_start_date: "2025-04-01", cutoff_end_date: "2026-03-31"}
policies:
  - id: vl-fy
    leave_type_id: vl
    leave_type: Vacation Leave
    cycle_length_years: 1
    annual_entitlement: "12.5"
    carry_limit: "5"
    eligibility:
      min_tenure_months: 3
employees:
  - {id: emp-gio, name: Gio Bautista, hire_date: "2020-09-14", status: REGULAR}
  - {id: emp-hana, name: Hana Lim, hire_date: "2024-02-01", status: PROBATIONARY}
balances:
  - {employee_id: emp-gio, leave_type_id: vl, policy_id: vl-fy, year: FY2023-24, earned: "12.5", used: "4"}
`

// =============================================================================
// YAML SEED DOCUMENTS
// =============================================================================

// SeedDocument is the YAML form of a scenario.
type SeedDocument struct {
	LeaveYears []SeedLeaveYear  `yaml:"leave_years"`
	Policies   []map[string]any `yaml:"policies"`
	Employees  []SeedEmployee   `yaml:"employees"`
	Balances   []SeedBalance    `yaml:"balances"`
}

type SeedLeaveYear struct {
	Year            string `yaml:"year"`
	CutoffStartDate string `yaml:"cutoff_start_date"`
	CutoffEndDate   string `yaml:"cutoff_end_date"`
}

type SeedEmployee struct {
	ID                 string `yaml:"id"`
	Name               string `yaml:"name"`
	HireDate           string `yaml:"hire_date"`
	RegularizationDate string `yaml:"regularization_date"`
	Status             string `yaml:"status"`
	Active             *bool  `yaml:"active"`
}

// SeedBalance is a previous-year balance. Beginning and remaining amounts
// are derived from the other fields.
type SeedBalance struct {
	EmployeeID  string `yaml:"employee_id"`
	LeaveTypeID string `yaml:"leave_type_id"`
	PolicyID    string `yaml:"policy_id"`
	Year        string `yaml:"year"`
	Earned      string `yaml:"earned"`
	Used        string `yaml:"used"`
	CarriedOver string `yaml:"carried_over"`
	Encashed    string `yaml:"encashed"`
}

// ParseSeedDocument decodes a YAML seed document.
func ParseSeedDocument(data []byte) (*SeedDocument, error) {
	var doc SeedDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse seed document: %w", err)
	}
	return &doc, nil
}

func (d *SeedDocument) seed() (*seed, error) {
	s := &seed{}

	for _, y := range d.LeaveYears {
		year, err := parseLeaveYear(LeaveYearDTO{
			Year:            y.Year,
			CutoffStartDate: y.CutoffStartDate,
			CutoffEndDate:   y.CutoffEndDate,
		})
		if err != nil {
			return nil, fmt.Errorf("leave year %q: %w", y.Year, err)
		}
		s.LeaveYears = append(s.LeaveYears, year)
	}

	for i, p := range d.Policies {
		js, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("policy #%d: %w", i+1, err)
		}
		s.Policies = append(s.Policies, string(js))
	}

	for _, e := range d.Employees {
		emp, err := e.employee()
		if err != nil {
			return nil, fmt.Errorf("employee %q: %w", e.ID, err)
		}
		s.Employees = append(s.Employees, emp)
	}

	for _, b := range d.Balances {
		bal, err := b.balance()
		if err != nil {
			return nil, fmt.Errorf("balance %s/%s/%s: %w", b.EmployeeID, b.LeaveTypeID, b.Year, err)
		}
		s.Balances = append(s.Balances, bal)
	}

	return s, nil
}

func (e SeedEmployee) employee() (generic.Employee, error) {
	if e.ID == "" {
		return generic.Employee{}, fmt.Errorf("id is required")
	}
	status, err := generic.ParseEmployeeStatus(e.Status)
	if err != nil {
		return generic.Employee{}, err
	}
	emp := generic.Employee{
		ID:       generic.EmployeeID(e.ID),
		Name:     e.Name,
		Status:   status,
		IsActive: e.Active == nil || *e.Active,
	}
	if e.HireDate != "" {
		if emp.HireDate, err = generic.ParseDate(e.HireDate); err != nil {
			return generic.Employee{}, fmt.Errorf("hire_date: %w", err)
		}
	}
	if e.RegularizationDate != "" {
		reg, err := generic.ParseDate(e.RegularizationDate)
		if err != nil {
			return generic.Employee{}, fmt.Errorf("regularization_date: %w", err)
		}
		emp.RegularizationDate = &reg
	}
	return emp, nil
}

func (b SeedBalance) balance() (generic.LeaveBalance, error) {
	if b.EmployeeID == "" || b.LeaveTypeID == "" || b.Year == "" {
		return generic.LeaveBalance{}, fmt.Errorf("employee_id, leave_type_id and year are required")
	}
	amounts := make([]decimal.Decimal, 4)
	for i, raw := range []string{b.Earned, b.Used, b.CarriedOver, b.Encashed} {
		if raw == "" {
			amounts[i] = decimal.Zero
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return generic.LeaveBalance{}, fmt.Errorf("invalid amount %q: %w", raw, err)
		}
		amounts[i] = d
	}
	earned, used, carried, encashed := amounts[0], amounts[1], amounts[2], amounts[3]
	beginning := earned.Add(carried)

	return generic.LeaveBalance{
		ID:               generic.BalanceID(uuid.NewString()),
		EmployeeID:       generic.EmployeeID(b.EmployeeID),
		LeaveTypeID:      generic.LeaveTypeID(b.LeaveTypeID),
		PolicyID:         generic.PolicyID(b.PolicyID),
		Year:             b.Year,
		BeginningBalance: beginning,
		Earned:           earned,
		Used:             used,
		CarriedOver:      carried,
		Encashed:         encashed,
		Remaining:        beginning.Sub(used).Sub(encashed),
		Status:           generic.BalanceOpen,
	}, nil
}
