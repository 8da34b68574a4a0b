package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsMiddleware_RecordsDurationAndCount(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Post("/v1/answer", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	req := httptest.NewRequest("POST", "/v1/answer", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if v := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/v1/answer", "200")); v < 1 {
		t.Errorf("expected http_requests_total >= 1, got %f", v)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected http_request_duration_seconds to have observations")
	}
}

func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"abc", "def"} {
		req := httptest.NewRequest("GET", "/v1/sessions/"+id, http.NoBody)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	if v := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/v1/sessions/{id}", "404")); v < 2 {
		t.Errorf("expected both requests under the route pattern, got %f", v)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "unknown"},
		{"/v1/answer", "/v1/answer"},
		{"/health", "/health"},
	}

	for _, tc := range tests {
		if got := normalizePath(tc.input); got != tc.expected {
			t.Errorf("normalizePath(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestRegisterProviderMetrics_Idempotent(t *testing.T) {
	RegisterProviderMetrics()
	RegisterProviderMetrics()

	CacheTotal.WithLabelValues("completions", "hit").Inc()
	if v := testutil.ToFloat64(CacheTotal.WithLabelValues("completions", "hit")); v < 1 {
		t.Errorf("expected cache counter to be usable, got %f", v)
	}
}
