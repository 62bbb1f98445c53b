/*
handlers.go - HTTP API handlers for insurance policies

PURPOSE:
  Exposes policy.Service via REST. Handles HTTP request/response and JSON
  serialization and delegates every decision to the service.

ENDPOINTS:
  POST   /api/policies        Create (201 + Location)
  GET    /api/policies        List one page (X-Total-Count header)
  GET    /api/policies/{id}   Get
  PUT    /api/policies/{id}   Full update
  PATCH  /api/policies/{id}   Partial update
  DELETE /api/policies/{id}   Delete (204, idempotent)

  GET    /health              Liveness
  GET    /readiness           Store connectivity

  Dev mode only (see scenarios.go):
  GET    /api/scenarios
  GET    /api/scenarios/current
  POST   /api/scenarios/load

LIST PARAMETERS:
  page       zero-based page number (default 0)
  size       page size (default and cap from config)
  sort       field[,asc|desc], repeatable
  filter     accepted, no effect
  eagerload  accepted (default true), no effect

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid id, id mismatch, validation errors, bad body
  - 404: Policy not found
  - 503: Store unavailable
  - 500: Internal errors
*/
package api

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/insurance-policy/policy"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Paging holds list size limits.
type Paging struct {
	DefaultSize int
	MaxSize     int
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *policy.Service

	// Pinger backs /readiness. Nil means always ready.
	Pinger policy.Pinger

	Paging Paging

	// Resetter backs scenario loading in dev mode.
	Resetter Resetter
	Now      func() time.Time

	scenarioMu      sync.Mutex
	currentScenario string
}

// NewHandler creates a handler with default paging limits.
func NewHandler(svc *policy.Service) *Handler {
	return &Handler{
		Service: svc,
		Paging:  Paging{DefaultSize: 20, MaxSize: 2000},
	}
}

// =============================================================================
// POLICY HANDLERS
// =============================================================================

// CreatePolicy creates a new policy.
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req PolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	created, err := h.Service.Create(r.Context(), req.toPolicy())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/policies/%d", *created.ID))
	writeJSON(w, http.StatusCreated, toPolicyDTO(created))
}

// UpdatePolicy replaces a policy.
func (h *Handler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req PolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	updated, err := h.Service.Update(r.Context(), id, req.toPolicy())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(updated))
}

// PatchPolicy merges the fields present in the body into a policy.
func (h *Handler) PatchPolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req PolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	merged, err := h.Service.Patch(r.Context(), id, req.toPatchRequest())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(merged))
}

// ListPolicies returns one page of policies. The body is the content only;
// the total is in X-Total-Count.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseListQuery(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	page, err := h.Service.List(r.Context(), q)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("X-Total-Count", strconv.FormatInt(page.Total, 10))
	writeJSON(w, http.StatusOK, toPolicyDTOs(page.Content))
}

// GetPolicy returns a single policy.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.Service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(p))
}

// DeletePolicy removes a policy. Deleting a missing id still returns 204.
func (h *Handler) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HEALTH HANDLERS
// =============================================================================

// Health reports that the process is up.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness reports whether the store is reachable.
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.Pinger != nil {
		if err := h.Pinger.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) parseListQuery(r *http.Request) (policy.ListQuery, error) {
	values := r.URL.Query()
	q := policy.ListQuery{
		PageRequest: policy.PageRequest{Size: h.Paging.DefaultSize},
		Filter:      values.Get("filter"),
		EagerLoad:   true,
	}

	if v := values.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return q, badParam("page", v)
		}
		q.Page = n
	}
	if v := values.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return q, badParam("size", v)
		}
		q.Size = min(n, h.Paging.MaxSize)
	}
	if q.Size > 0 && q.Page > math.MaxInt/q.Size {
		return q, badParam("page", values.Get("page"))
	}
	for _, raw := range values["sort"] {
		o, err := policy.ParseSortOrder(raw)
		if err != nil {
			return q, err
		}
		q.Sort = append(q.Sort, o)
	}
	if v := values.Get("eagerload"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return q, badParam("eagerload", v)
		}
		q.EagerLoad = b
	}
	return q, nil
}

func badParam(name, value string) error {
	return &policy.RequestError{
		Kind:    policy.ErrInvalidRequest,
		Message: fmt.Sprintf("invalid %s parameter %q", name, value),
	}
}

// pathID parses the {id} URL parameter, writing a 400 when malformed.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id", err)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message, Code: codeFor(status)}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps a service error onto its HTTP status.
func writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: policy.Message(err), Code: codeFor(status)}
	if status >= http.StatusInternalServerError {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case policy.IsClientError(err):
		return http.StatusBadRequest
	case policy.IsNotFound(err):
		return http.StatusNotFound
	case policy.IsUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnsupportedMediaType:
		return "unsupported_media_type"
	case http.StatusServiceUnavailable:
		return "store_unavailable"
	default:
		return "internal"
	}
}
