// Package health provides HTTP health and readiness handlers for the
// voxhook telemetry endpoint.
//
// Two routes are exposed:
//
//   - /healthz — liveness probe; returns 200 with the daemon's current
//     listening state.
//   - /readyz  — readiness probe; returns 200 only when all registered
//     [Checker] functions pass (audio stream alive, ASR engine loaded,
//     control plane bound).
//
// Responses are JSON objects with a top-level "status" field ("ok" or
// "fail"), a "listening" boolean, and a "checks" map with the result of
// each named checker.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout is the maximum time a single readiness check may take
// before its context is cancelled.
const checkTimeout = 2 * time.Second

// Checker is a named health check function. Check should return nil when
// the dependency is healthy and a non-nil error describing the failure
// otherwise.
type Checker struct {
	// Name is a short label for this check (e.g. "audio", "asr"). It
	// appears as a key in the JSON response.
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// result is the JSON response body for health endpoints.
type result struct {
	Status    string            `json:"status"`
	Listening bool              `json:"listening"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. It is safe for concurrent use; the
// checker list is fixed at construction time.
type Handler struct {
	listening func() bool
	checkers  []Checker
}

// New creates a [Handler]. listening reports the daemon's gate state and
// is embedded in every response; the checkers are evaluated sequentially
// on each /readyz request.
func New(listening func() bool, checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{listening: listening, checkers: c}
}

// Healthz is a liveness probe. A running process that can serve HTTP is
// considered alive, paused or not.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok", Listening: h.listening()})
}

// Readyz returns 200 only when every registered [Checker] passes. Each
// checker runs with a [checkTimeout] deadline derived from the request
// context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	allOK := true

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			allOK = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := result{
		Status:    "ok",
		Listening: h.listening(),
		Checks:    checks,
	}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
