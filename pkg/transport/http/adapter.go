// Package http serves the deployment queue API over HTTP. It routes
// requests to the queue engine and serializes rows and typed errors as
// JSON.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/deployq/deployq/pkg/api"
	"github.com/deployq/deployq/pkg/queue"
	"github.com/deployq/deployq/pkg/transport"
)

// Adapter serves the deployment queue API over HTTP.
type Adapter struct {
	service *queue.Service
	mux     *http.ServeMux
	config  Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 1 << 20, // 1 MB
	}
}

// Page size bounds for the list and history endpoints.
const (
	defaultListLimit    = 100
	maxListLimit        = 1000
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// parseLimit reads the limit query parameter, falling back to def when
// it is absent and rejecting values outside [1, max].
func parseLimit(r *http.Request, def, max int) (int, *api.APIError) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return def, nil
	}
	n, err := strconv.Atoi(limitStr)
	if err != nil || n < 1 {
		return 0, api.NewInvalidRequestError("limit", "limit must be a positive integer")
	}
	if n > max {
		return 0, api.NewInvalidRequestError("limit",
			fmt.Sprintf("limit must not exceed %d", max))
	}
	return n, nil
}

// NewAdapter creates an HTTP adapter on top of the queue engine.
func NewAdapter(service *queue.Service, cfg Config) *Adapter {
	a := &Adapter{
		service: service,
		mux:     http.NewServeMux(),
		config:  cfg,
	}

	a.mux.HandleFunc("POST /v1/deployments", a.handleCreate)
	a.mux.HandleFunc("GET /v1/deployments", a.handleList)
	a.mux.HandleFunc("GET /v1/deployments/current", a.handleCurrent)
	a.mux.HandleFunc("PATCH /v1/deployments/current/status", a.handleCurrentStatus)
	a.mux.HandleFunc("GET /v1/deployments/history", a.handleHistory)
	a.mux.HandleFunc("POST /v1/deployments/rollback", a.handleRollback)
	a.mux.HandleFunc("GET /v1/deployments/{id}", a.handleGet)
	a.mux.HandleFunc("PATCH /v1/deployments/{id}", a.handleUpdate)

	return a
}

// Handler returns the http.Handler for this adapter. Use this to
// integrate with an http.Server or test with httptest.
func (a *Adapter) Handler() http.Handler {
	return a.mux
}

// handleCreate handles POST /v1/deployments.
func (a *Adapter) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req api.CreateRequest
	if apiErr := a.decodeBody(w, r, &req); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	d, err := a.service.Create(r.Context(), &req)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// handleList handles GET /v1/deployments.
func (a *Adapter) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := api.ListFilter{
		Status:      api.Status(q.Get("status")),
		Environment: q.Get("environment"),
		Provider:    api.Provider(q.Get("provider")),
	}
	limit, apiErr := parseLimit(r, defaultListLimit, maxListLimit)
	if apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}
	f.Limit = limit

	rows, err := a.service.List(r.Context(), f)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeDeployments(w, rows)
}

// handleCurrent handles GET /v1/deployments/current.
func (a *Adapter) handleCurrent(w http.ResponseWriter, r *http.Request) {
	tax := parseTaxonomy(r)

	d, err := a.service.Current(r.Context(), tax)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleCurrentStatus handles PATCH /v1/deployments/current/status.
func (a *Adapter) handleCurrentStatus(w http.ResponseWriter, r *http.Request) {
	tax := parseTaxonomy(r)

	var req struct {
		Status api.Status `json:"status"`
	}
	if apiErr := a.decodeBody(w, r, &req); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}
	if req.Status == "" {
		transport.WriteAPIError(w, api.NewInvalidRequestError("status", "status is required"))
		return
	}

	d, err := a.service.UpdateCurrentStatus(r.Context(), tax, req.Status)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleHistory handles GET /v1/deployments/history.
func (a *Adapter) handleHistory(w http.ResponseWriter, r *http.Request) {
	tax := parseTaxonomy(r)

	limit, apiErr := parseLimit(r, defaultHistoryLimit, maxHistoryLimit)
	if apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	rows, err := a.service.History(r.Context(), tax, limit)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeDeployments(w, rows)
}

// handleRollback handles POST /v1/deployments/rollback.
func (a *Adapter) handleRollback(w http.ResponseWriter, r *http.Request) {
	tax := parseTaxonomy(r)

	var req api.RollbackRequest
	if apiErr := a.decodeBody(w, r, &req); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	d, err := a.service.Rollback(r.Context(), tax, &req)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// handleGet handles GET /v1/deployments/{id}.
func (a *Adapter) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !api.ValidateDeploymentID(id) {
		transport.WriteAPIError(w, api.NewInvalidRequestError("id", "malformed deployment ID"))
		return
	}

	d, err := a.service.Get(r.Context(), id)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleUpdate handles PATCH /v1/deployments/{id}.
func (a *Adapter) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !api.ValidateDeploymentID(id) {
		transport.WriteAPIError(w, api.NewInvalidRequestError("id", "malformed deployment ID"))
		return
	}

	var req api.UpdateRequest
	if apiErr := a.decodeBody(w, r, &req); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	d, err := a.service.Update(r.Context(), id, &req)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// decodeBody validates the Content-Type, bounds the body size, and
// decodes JSON into v.
func (a *Adapter) decodeBody(w http.ResponseWriter, r *http.Request, v any) *api.APIError {
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" {
		return api.NewInvalidRequestError("content_type", "Content-Type must be application/json")
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return api.NewInvalidRequestError("body",
				fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize))
		}
		return api.NewInvalidRequestError("body", "invalid JSON: "+err.Error())
	}
	return nil
}

// parseTaxonomy extracts the taxonomy dimensions from query parameters.
// The organisation dimension always comes from the authenticated
// identity, never the request. A cell parameter that is present but
// empty is a concrete empty value; an absent parameter means no cell.
func parseTaxonomy(r *http.Request) api.Taxonomy {
	q := r.URL.Query()
	tax := api.Taxonomy{
		Name:           q.Get("name"),
		Provider:       api.Provider(q.Get("provider")),
		CloudAccountID: q.Get("cloud_account_id"),
		Region:         q.Get("region"),
	}
	if q.Has("cell") {
		cell := q.Get("cell")
		tax.Cell = &cell
	}
	return tax
}

// writeDeployments writes a deployment list, never null.
func writeDeployments(w http.ResponseWriter, rows []api.Deployment) {
	if rows == nil {
		rows = []api.Deployment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"deployments": rows})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
