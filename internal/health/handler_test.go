package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"school-directory/internal/health"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h *health.Handler, path string) (int, health.HealthResponse) {
	t.Helper()

	router := chi.NewRouter()
	h.RegisterRoutes(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var resp health.HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return w.Code, resp
}

func TestHealth(t *testing.T) {
	h := health.NewHandler().AddCheck("database", func(context.Context) error {
		return errors.New("down")
	})

	code, resp := serve(t, h, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
}

func TestReady(t *testing.T) {
	t.Run("AllHealthy", func(t *testing.T) {
		h := health.NewHandler().
			AddCheck("database", func(context.Context) error { return nil }).
			AddCheck("storage", func(context.Context) error { return nil }).
			AddCheck("redis", nil)

		code, resp := serve(t, h, "/ready")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ready", resp.Status)
		assert.Equal(t, map[string]string{"database": "ok", "storage": "ok"}, resp.Checks)
	})

	t.Run("OneFailing", func(t *testing.T) {
		h := health.NewHandler().
			AddCheck("database", func(context.Context) error { return nil }).
			AddCheck("storage", func(context.Context) error { return errors.New("no such bucket") })

		code, resp := serve(t, h, "/ready")
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "unavailable", resp.Status)
		assert.Equal(t, "no such bucket", resp.Checks["storage"])
		assert.Equal(t, "ok", resp.Checks["database"])
	})

	t.Run("OptionalFailingStaysReady", func(t *testing.T) {
		h := health.NewHandler().
			AddCheck("database", func(context.Context) error { return nil }).
			AddOptionalCheck("nats", func(context.Context) error { return errors.New("nats: connection closed") })

		code, resp := serve(t, h, "/ready")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ready", resp.Status)
		assert.Equal(t, "nats: connection closed", resp.Checks["nats"])
	})
}

type recorded map[string]error

func (r recorded) RecordDependencyCheck(_ context.Context, dependency string, _ time.Duration, err error) {
	r[dependency] = err
}

func TestReady_RecordsChecks(t *testing.T) {
	rec := recorded{}
	down := errors.New("connection refused")

	h := health.NewHandler().
		WithRecorder(rec).
		AddCheck("database", func(context.Context) error { return nil }).
		AddCheck("redis", func(context.Context) error { return down })

	serve(t, h, "/ready")

	require.Len(t, rec, 2)
	assert.NoError(t, rec["database"])
	assert.ErrorIs(t, rec["redis"], down)
}
