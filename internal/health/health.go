// Package health runs named setup and dependency checks.
//
// [Run] evaluates a list of [Checker] values and reports each one as PASS,
// FAIL or SKIP; the doctor command prints these reports. [Handler] serves the
// same checks over HTTP:
//
//   - /healthz: liveness probe; always returns 200 OK.
//   - /readyz: readiness probe; returns 200 only when no check fails.
//
// Responses are JSON objects with a top-level "status" field ("ok" or "fail")
// and a "checks" map containing the result of each named checker.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// checkTimeout is the maximum time a single check may take before its
// context is cancelled.
const checkTimeout = 30 * time.Second

// Status is the outcome of one check.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
	StatusSkip Status = "SKIP"
)

// skipError marks a check that did not apply.
type skipError struct{ reason string }

func (e *skipError) Error() string { return "skipped: " + e.reason }

// Skip returns an error that makes [Run] report the check as SKIP with the
// given reason instead of FAIL.
func Skip(format string, args ...any) error {
	return &skipError{reason: fmt.Sprintf(format, args...)}
}

// Checker is a named health check function. The Check function should return
// nil when the dependency is healthy, [Skip] when the check does not apply,
// and a non-nil error describing the failure otherwise.
type Checker struct {
	// Name is a short, human-readable label for this check (e.g. "config",
	// "completion"). It appears as a key in the JSON response.
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// Report is the result of one [Checker].
type Report struct {
	Name    string
	Status  Status
	Detail  string
	Elapsed time.Duration
}

// Run evaluates checkers sequentially in the order provided, giving each a
// context with a deadline of timeout (30s when zero).
func Run(ctx context.Context, timeout time.Duration, checkers ...Checker) []Report {
	if timeout <= 0 {
		timeout = checkTimeout
	}
	out := make([]Report, 0, len(checkers))
	for _, c := range checkers {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		err := c.Check(cctx)
		elapsed := time.Since(start)
		cancel()

		r := Report{Name: c.Name, Status: StatusPass, Elapsed: elapsed}
		var skip *skipError
		switch {
		case errors.As(err, &skip):
			r.Status = StatusSkip
			r.Detail = skip.reason
		case err != nil:
			r.Status = StatusFail
			r.Detail = err.Error()
		}
		out = append(out, r)
	}
	return out
}

// Failed reports whether any report has status FAIL.
func Failed(reports []Report) bool {
	for _, r := range reports {
		if r.Status == StatusFail {
			return true
		}
	}
	return false
}

// result is the JSON response body for health endpoints.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz endpoints. It is safe for concurrent
// use; the checker list is fixed at construction time.
type Handler struct {
	checkers []Checker
	timeout  time.Duration
}

// New creates a [Handler] that evaluates the given checkers on each /readyz
// request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c, timeout: 5 * time.Second}
}

// Healthz is a liveness probe that always returns 200 OK. A running process
// that can serve HTTP is considered alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz is a readiness probe that returns 200 unless a [Checker] fails.
// Skipped checks do not count as failures.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	reports := Run(r.Context(), h.timeout, h.checkers...)
	checks := make(map[string]string, len(reports))
	for _, rep := range reports {
		switch rep.Status {
		case StatusPass:
			checks[rep.Name] = "ok"
		case StatusSkip:
			checks[rep.Name] = "skip: " + rep.Detail
		default:
			checks[rep.Name] = "fail: " + rep.Detail
		}
	}

	res := result{Status: "ok", Checks: checks}
	status := http.StatusOK
	if Failed(reports) {
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

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
