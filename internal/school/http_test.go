package school_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"

	"school-directory/internal/auth"
	"school-directory/internal/logger"
	"school-directory/internal/school"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type upload struct {
	filename    string
	contentType string
	data        []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...upload) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="`+f.filename+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func formFields() map[string]string {
	f := validForm()
	return map[string]string{
		"name":     f.Name,
		"address":  f.Address,
		"city":     f.City,
		"state":    f.State,
		"contact":  f.Contact,
		"email_id": f.EmailID,
	}
}

func signedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.WithSession(r.Context(), &auth.Session{UserID: "user-1", Email: "user@example.com"})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func denyAll(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
}

func newRouter(w *workflow, requireSession func(http.Handler) http.Handler) http.Handler {
	router := chi.NewRouter()
	school.NewHandler(w.service, logger.Discard(), 10<<20).RegisterRoutes(router, requireSession)
	return router
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHandler_AddSchool(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		w := newWorkflow()
		router := newRouter(w, signedIn)

		body, ct := multipartBody(t, formFields(), upload{"campus.png", "application/octet-stream", pngHeader})
		req := httptest.NewRequest(http.MethodPost, "/api/schools", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		resp := decode(t, rec)
		n := resp["notification"].(map[string]any)
		assert.Equal(t, "Success!", n["title"])
		assert.Equal(t, "School added successfully", n["description"])

		created := resp["school"].(map[string]any)
		assert.Equal(t, "St. Mary's School", created["name"])
		assert.Contains(t, created["image"], "https://cdn.example.com/school-images/")
		assert.Equal(t, []string{"upload", "insert", "publish"}, w.log.list())

		event := w.producer.events[0].(school.CreatedEvent)
		assert.Equal(t, "user@example.com", event.CreatedBy)
	})

	t.Run("SniffedTypeWins", func(t *testing.T) {
		w := newWorkflow()
		router := newRouter(w, signedIn)

		gif := []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")
		body, ct := multipartBody(t, formFields(), upload{"campus.png", "image/png", gif})
		req := httptest.NewRequest(http.MethodPost, "/api/schools", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		errs := decode(t, rec)["errors"].(map[string]any)
		assert.Equal(t, "Only JPEG, PNG, and WebP images are allowed", errs["image"])
		assert.Empty(t, w.log.list())
	})

	t.Run("ValidationErrors", func(t *testing.T) {
		w := newWorkflow()
		router := newRouter(w, signedIn)

		fields := formFields()
		fields["name"] = "   "
		fields["contact"] = "123"
		body, ct := multipartBody(t, fields)
		req := httptest.NewRequest(http.MethodPost, "/api/schools", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		errs := decode(t, rec)["errors"].(map[string]any)
		assert.Equal(t, "School name cannot be empty or just spaces", errs["name"])
		assert.Equal(t, "Contact number must be at least 10 digits", errs["contact"])
		assert.Len(t, errs, 2)
	})

	t.Run("UploadFailureIsGeneric", func(t *testing.T) {
		w := newWorkflow()
		w.store.err = errors.New("bucket policy denies write")
		router := newRouter(w, signedIn)

		body, ct := multipartBody(t, formFields(), upload{"campus.png", "image/png", pngHeader})
		req := httptest.NewRequest(http.MethodPost, "/api/schools", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "bucket policy")
		n := decode(t, rec)["notification"].(map[string]any)
		assert.Equal(t, "Failed to add school. Please try again.", n["description"])
		assert.Equal(t, "destructive", n["variant"])
		assert.Equal(t, []string{"upload"}, w.log.list())
	})

	t.Run("URLEncodedWithoutImage", func(t *testing.T) {
		w := newWorkflow()
		router := newRouter(w, signedIn)

		values := url.Values{}
		for k, v := range formFields() {
			values.Set(k, v)
		}
		req := httptest.NewRequest(http.MethodPost, "/api/schools", strings.NewReader(values.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, []string{"insert", "publish"}, w.log.list())
	})

	t.Run("RequiresSession", func(t *testing.T) {
		w := newWorkflow()
		router := newRouter(w, denyAll)

		body, ct := multipartBody(t, formFields())
		req := httptest.NewRequest(http.MethodPost, "/api/schools", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, w.log.list())
	})
}

func TestHandler_ListSchools(t *testing.T) {
	t.Run("PublicAndEmpty", func(t *testing.T) {
		w := newWorkflow()
		router := newRouter(w, denyAll)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schools", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode(t, rec)
		assert.Equal(t, "empty", resp["state"])
		assert.Equal(t, "No schools found", resp["headline"])
		assert.Equal(t, []any{}, resp["schools"])
	})

	t.Run("QueryFailureLooksEmpty", func(t *testing.T) {
		w := newWorkflow()
		w.repo.listErr = errors.New("connection reset")
		router := newRouter(w, denyAll)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schools", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "empty", decode(t, rec)["state"])
	})

	t.Run("Ready", func(t *testing.T) {
		w := newWorkflow()
		_, err := w.service.Submit(t.Context(), validForm(), "")
		require.NoError(t, err)
		router := newRouter(w, denyAll)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schools", nil))

		resp := decode(t, rec)
		assert.Equal(t, "ready", resp["state"])
		assert.Equal(t, float64(1), resp["count"])
		assert.Equal(t, "Discover schools in your area - 1 schools found", resp["headline"])
	})
}
