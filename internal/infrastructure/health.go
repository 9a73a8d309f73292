package infrastructure

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

const defaultReadinessTimeout = 2 * time.Second

// ReadinessCheck reports whether a dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

// HealthState holds the result of the latest background check. A state built with a pinger
// runs it on every Check instead.
type HealthState struct {
	mu        sync.RWMutex
	err       error
	checkedAt time.Time
	pinger    ReadinessCheck
	now       func() time.Time
}

func NewHealthState(pinger ReadinessCheck) *HealthState {
	return &HealthState{pinger: pinger, now: time.Now}
}

// Record stores the outcome of a check and reports whether the previous one was healthy.
func (h *HealthState) Record(err error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	wasHealthy := h.err == nil
	h.err = err
	h.checkedAt = h.now()

	return wasHealthy
}

func (h *HealthState) Check(ctx context.Context) error {
	if h.pinger != nil {
		return h.pinger(ctx)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.err != nil {
		return fmt.Errorf("unhealthy since %s: %w", h.checkedAt.Format(time.RFC3339), h.err)
	}

	return nil
}

type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// RegisterHealthRoutes mounts the liveness endpoint and a readiness endpoint that runs checks.
func RegisterHealthRoutes(mux *http.ServeMux, checks map[string]ReadinessCheck) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), defaultReadinessTimeout)
		defer cancel()

		code, resp := runReadinessChecks(ctx, checks)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	})
}

func runReadinessChecks(ctx context.Context, checks map[string]ReadinessCheck) (int, readinessResponse) {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := readinessResponse{Status: "ready", Checks: make(map[string]string, len(names))}
	code := http.StatusOK
	for _, name := range names {
		if err := checks[name](ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	return code, resp
}
