/*
scenarios.go - Demo datasets for development

PURPOSE:

	Populates the store with a small, realistic set of policies so a
	frontend or a curl session has something to page through. Every
	policy is created through policy.Service, so the same identity and
	validation rules apply as for API clients.

AVAILABLE SCENARIOS:

	household:    A few home and contents policies, all ACTIVE
	mixed-status: One policy per status, staggered coverage windows
	large-book:   Enough policies to exercise paging and sorting

HOW SCENARIOS WORK:
 1. Reset the store (drop every policy, ids keep counting)
 2. Create each policy through the service

USAGE VIA API (dev mode only):

	GET  /api/scenarios
	GET  /api/scenarios/current
	POST /api/scenarios/load
	{"scenario_id": "mixed-status"}

NOTE:

	Loading a scenario wipes the store. The routes are only mounted when
	the server runs in dev mode.
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/insurance-policy/policy"
)

// Resetter drops every stored policy.
type Resetter interface {
	Reset(ctx context.Context) error
}

// ScenarioDTO describes a loadable demo dataset.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Policies    int    `json:"policies"`
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	build func(now time.Time) []policy.Policy
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "household",
			Name:        "Household",
			Description: "Home, contents and travel cover for one household",
		},
		build: householdPolicies,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "mixed-status",
			Name:        "Mixed Status",
			Description: "One policy per status with staggered coverage windows",
		},
		build: mixedStatusPolicies,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "large-book",
			Name:        "Large Book",
			Description: "Fifty policies for paging and sorting",
		},
		build: largeBookPolicies,
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// ListScenarios returns the available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
		dtos[i].Policies = len(s.build(now))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the last loaded scenario, or null.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	current := h.currentScenario
	h.scenarioMu.Unlock()

	s, ok := findScenario(current)
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	dto := s.ScenarioDTO
	dto.Policies = len(s.build(h.clock()))
	writeJSON(w, http.StatusOK, dto)
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}
	if h.Resetter == nil {
		writeError(w, http.StatusInternalServerError, "Store cannot be reset", nil)
		return
	}

	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()

	ctx := r.Context()
	h.currentScenario = ""
	if err := h.Resetter.Reset(ctx); err != nil {
		writeServiceError(w, err)
		return
	}
	created, err := h.loadPolicies(ctx, s.build(h.clock()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.currentScenario = s.ID

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "loaded",
		"scenario": s.ID,
		"policies": created,
	})
}

func (h *Handler) loadPolicies(ctx context.Context, ps []policy.Policy) (int, error) {
	for i, p := range ps {
		if _, err := h.Service.Create(ctx, p); err != nil {
			return i, fmt.Errorf("policy %q: %w", p.PolicyName, err)
		}
	}
	return len(ps), nil
}

func (h *Handler) clock() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// =============================================================================
// SCENARIO BUILDERS
// =============================================================================

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func householdPolicies(now time.Time) []policy.Policy {
	start := day(now).AddDate(0, -2, 0)
	return []policy.Policy{
		{
			PolicyName:        "Home Cover",
			Status:            policy.StatusActive,
			CoverageStartDate: start,
			CoverageEndDate:   start.AddDate(1, 0, 0),
		},
		{
			PolicyName:        "Contents Cover",
			Status:            policy.StatusActive,
			CoverageStartDate: start,
			CoverageEndDate:   start.AddDate(1, 0, 0),
		},
		{
			PolicyName:        "Annual Travel",
			Status:            policy.StatusActive,
			CoverageStartDate: start.AddDate(0, 1, 0),
			CoverageEndDate:   start.AddDate(1, 1, 0),
		},
	}
}

func mixedStatusPolicies(now time.Time) []policy.Policy {
	today := day(now)
	return []policy.Policy{
		{
			PolicyName:        "Car Cover",
			Status:            policy.StatusActive,
			CoverageStartDate: today.AddDate(0, -3, 0),
			CoverageEndDate:   today.AddDate(0, 9, 0),
		},
		{
			PolicyName:        "Pet Cover",
			Status:            policy.StatusInactive,
			CoverageStartDate: today.AddDate(0, 1, 0),
			CoverageEndDate:   today.AddDate(1, 1, 0),
		},
		{
			PolicyName:        "Old Home Cover",
			Status:            policy.StatusExpired,
			CoverageStartDate: today.AddDate(-2, 0, 0),
			CoverageEndDate:   today.AddDate(-1, 0, 0),
		},
		{
			PolicyName:        "Gadget Cover",
			Status:            policy.StatusCancelled,
			CoverageStartDate: today.AddDate(0, -6, 0),
			CoverageEndDate:   today.AddDate(0, 6, 0),
		},
	}
}

func largeBookPolicies(now time.Time) []policy.Policy {
	kinds := []string{"Home", "Car", "Travel", "Pet", "Life"}
	today := day(now)
	ps := make([]policy.Policy, 0, 50)
	for i := 0; i < 50; i++ {
		start := today.AddDate(0, -i%12, -i)
		ps = append(ps, policy.Policy{
			PolicyName:        fmt.Sprintf("%s Cover %02d", kinds[i%len(kinds)], i+1),
			Status:            policy.Statuses[i%len(policy.Statuses)],
			CoverageStartDate: start,
			CoverageEndDate:   start.AddDate(1, 0, 0),
		})
	}
	return ps
}
