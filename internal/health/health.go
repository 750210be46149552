// Package health probes the backends the studio depends on.
//
// Probes run concurrently. The same checkers back the `miovo health`
// command and the /readyz endpoint served next to /metrics.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout is the maximum time a single check may take before its
// context is cancelled.
const checkTimeout = 5 * time.Second

// Checker is a named health check. Check returns nil when the dependency is
// healthy.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Result is the outcome of one checker.
type Result struct {
	Name     string        `json:"name"`
	OK       bool          `json:"ok"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report collects all results, sorted by name.
type Report struct {
	Status  string   `json:"status"`
	Results []Result `json:"checks"`
}

// Healthy reports whether every check passed.
func (r Report) Healthy() bool {
	return r.Status == "ok"
}

// Run evaluates every checker concurrently.
func Run(ctx context.Context, checkers ...Checker) Report {
	var (
		mu      sync.Mutex
		results = make([]Result, 0, len(checkers))
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			start := time.Now()
			err := c.Check(cctx)
			res := Result{Name: c.Name, OK: err == nil, Duration: time.Since(start)}
			if err != nil {
				res.Error = err.Error()
			}

			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			// Failures are reported, not propagated: one dead backend must
			// not cancel the others.
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	report := Report{Status: "ok", Results: results}
	for _, r := range results {
		if !r.OK {
			report.Status = "fail"
			break
		}
	}
	return report
}

// HTTPChecker probes url with GET and expects a 2xx response.
func HTTPChecker(name, url string, client *http.Client) Checker {
	if client == nil {
		client = http.DefaultClient
	}
	return Checker{
		Name: name,
		Check: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()
			_, _ = io.Copy(io.Discard, resp.Body)

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return fmt.Errorf("HTTP status %d", resp.StatusCode)
			}
			return nil
		},
	}
}

// Handler serves /healthz and /readyz. The checker list is fixed at
// construction time.
type Handler struct {
	checkers []Checker
}

// New creates a Handler that evaluates the given checkers on each /readyz
// request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz is a liveness probe that always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Report{Status: "ok"})
}

// Readyz returns 200 only when every checker passes.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	report := Run(r.Context(), h.checkers...)
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
