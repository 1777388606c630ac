package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	"school-directory/internal/httputil"

	"github.com/go-chi/chi/v5"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// Recorder observes the outcome of each readiness check.
type Recorder interface {
	RecordDependencyCheck(ctx context.Context, dependency string, duration time.Duration, err error)
}

type registered struct {
	check    Check
	optional bool
}

type Handler struct {
	checks   map[string]registered
	timeout  time.Duration
	recorder Recorder
}

func NewHandler() *Handler {
	return &Handler{
		checks:  make(map[string]registered),
		timeout: 3 * time.Second,
	}
}

// AddCheck registers a readiness check. A nil check is ignored.
func (h *Handler) AddCheck(name string, check Check) *Handler {
	if check != nil {
		h.checks[name] = registered{check: check}
	}
	return h
}

// AddOptionalCheck registers a check that is reported and recorded but never
// makes the service unready. Used for best-effort dependencies.
func (h *Handler) AddOptionalCheck(name string, check Check) *Handler {
	if check != nil {
		h.checks[name] = registered{check: check, optional: true}
	}
	return h
}

func (h *Handler) WithRecorder(recorder Recorder) *Handler {
	h.recorder = recorder
	return h
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.Health)
	router.Get("/ready", h.Ready)
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.RespondWithJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := HealthResponse{Status: "ready", Checks: make(map[string]string, len(names))}
	code := http.StatusOK
	for _, name := range names {
		start := time.Now()
		c := h.checks[name]
		err := c.check(ctx)
		if h.recorder != nil {
			h.recorder.RecordDependencyCheck(ctx, name, time.Since(start), err)
		}
		if err != nil {
			resp.Checks[name] = err.Error()
			if !c.optional {
				resp.Status = "unavailable"
				code = http.StatusServiceUnavailable
			}
			continue
		}
		resp.Checks[name] = "ok"
	}

	httputil.RespondWithJSON(w, code, resp)
}
