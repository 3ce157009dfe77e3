package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel"
)

func TestMiddlewareCountsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsAndTracingMiddleware(otel.Tracer("test"), "weather-widget-test"))
	r.Get("/api/panels", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(requestCounter.WithLabelValues("weather-widget-test", "/api/panels", http.MethodGet, "418"))

	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/api/panels?lat=1&lon=2", nil))

	if rw.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rw.Code)
	}
	if rw.Header().Get("Trace-ID") == "" {
		t.Fatal("expected Trace-ID header")
	}
	after := testutil.ToFloat64(requestCounter.WithLabelValues("weather-widget-test", "/api/panels", http.MethodGet, "418"))
	if after-before != 1 {
		t.Fatalf("expected counter to increase by 1, got %v", after-before)
	}
}
