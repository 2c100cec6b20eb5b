package observe

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	m, reader := newTestMetrics(t)

	r := chi.NewRouter()
	r.Use(Middleware(m))
	r.Get("/api/conversations/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/conversations/abc", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}

	rm := collect(t, reader)
	met := findMetric(rm, "modelchat.http.request.duration")
	if met == nil {
		t.Fatal("http duration metric missing")
	}
	hist := met.Data.(metricdata.Histogram[float64])
	if len(hist.DataPoints) != 1 {
		t.Fatalf("datapoints = %d, want 1", len(hist.DataPoints))
	}
	route, ok := hist.DataPoints[0].Attributes.Value("route")
	if !ok || route.AsString() != "/api/conversations/{id}" {
		t.Fatalf("route attribute = %v", route.AsString())
	}
	status, ok := hist.DataPoints[0].Attributes.Value("status")
	if !ok || status.AsInt64() != http.StatusTeapot {
		t.Fatalf("status attribute = %v", status.AsInt64())
	}
}
