package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHTTPMetrics_Middleware(t *testing.T) {
	reg := NewRegistry()
	m := NewHTTP(reg)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Post("/anti-bot/verify-captcha/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/anti-bot/verify-captcha/", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/anti-bot/verify-captcha/", http.MethodPost, "400")))
}

func TestHandler_ServesRegistry(t *testing.T) {
	reg := NewRegistry()
	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
