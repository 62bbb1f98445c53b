/*
scenarios_test.go - Tests for the dev-mode demo scenarios

PURPOSE:
	Tests that each scenario loads through the service against a real
	SQLite store:
	- Every built policy passes validation
	- Loading resets what was there before
	- The routes only exist in dev mode
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/insurance-policy/policy"
	"github.com/warp/insurance-policy/store/sqlite"
)

var scenarioNow = time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)

func setupScenarioRouter(t *testing.T, devMode bool) (http.Handler, *sqlite.Store) {
	t.Helper()
	db, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := NewHandler(policy.NewService(db))
	h.Pinger = db
	h.Resetter = db
	h.Now = func() time.Time { return scenarioNow }
	return NewRouter(h, RouterOptions{Logger: zerolog.Nop(), DevMode: devMode}), db
}

func loadScenario(t *testing.T, router http.Handler, id string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/scenarios/load",
		strings.NewReader(fmt.Sprintf(`{"scenario_id": %q}`, id)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestScenarioBuilders_ProduceValidPolicies(t *testing.T) {
	for _, s := range scenarios {
		t.Run(s.ID, func(t *testing.T) {
			ps := s.build(scenarioNow)
			require.NotEmpty(t, ps)
			for _, p := range ps {
				assert.NoError(t, p.Validate(), p.PolicyName)
				assert.Nil(t, p.ID)
			}
		})
	}
}

func TestScenario_Load(t *testing.T) {
	// GIVEN: A store holding one unrelated policy
	// WHEN: Loading each scenario in turn
	// THEN: Only that scenario's policies remain

	router, db := setupScenarioRouter(t, true)
	ctx := context.Background()
	_, err := db.Save(ctx, policy.Policy{
		PolicyName:        "Leftover",
		Status:            policy.StatusActive,
		CoverageStartDate: scenarioNow,
		CoverageEndDate:   scenarioNow.AddDate(1, 0, 0),
	})
	require.NoError(t, err)

	for _, s := range scenarios {
		rec := loadScenario(t, router, s.ID)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		n, err := db.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(len(s.build(scenarioNow))), n, s.ID)
	}
}

func TestScenario_MixedStatus_CoversEveryStatus(t *testing.T) {
	router, db := setupScenarioRouter(t, true)
	rec := loadScenario(t, router, "mixed-status")
	require.Equal(t, http.StatusOK, rec.Code)

	page, err := db.FindAll(context.Background(), policy.PageRequest{Size: 10})
	require.NoError(t, err)

	seen := make(map[policy.Status]bool)
	for _, p := range page.Content {
		seen[p.Status] = true
	}
	for _, s := range policy.Statuses {
		assert.True(t, seen[s], "missing status %s", s)
	}
}

func TestScenario_Current(t *testing.T) {
	router, _ := setupScenarioRouter(t, true)

	get := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scenarios/current", nil))
		return rec
	}

	rec := get()
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))

	require.Equal(t, http.StatusOK, loadScenario(t, router, "household").Code)

	rec = get()
	require.Equal(t, http.StatusOK, rec.Code)
	var dto ScenarioDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&dto))
	assert.Equal(t, "household", dto.ID)
	assert.Equal(t, 3, dto.Policies)
}

func TestScenario_UnknownID(t *testing.T) {
	router, _ := setupScenarioRouter(t, true)

	rec := loadScenario(t, router, "does-not-exist")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScenario_RoutesHiddenOutsideDevMode(t *testing.T) {
	router, _ := setupScenarioRouter(t, false)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scenarios", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, http.StatusNotFound, loadScenario(t, router, "household").Code)
}
