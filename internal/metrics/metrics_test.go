package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestStatusClass(t *testing.T) {
	cases := map[int]string{200: "2xx", 201: "2xx", 404: "4xx", 429: "4xx", 503: "5xx"}
	for status, want := range cases {
		if got := statusClass(status); got != want {
			t.Fatalf("statusClass(%d) = %q, want %q", status, got, want)
		}
	}
}

func TestGinMiddleware_CountsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/v1/recipes/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/metrics", Handler())

	before := counterValue(t, requestTotal.WithLabelValues(http.MethodGet, "/v1/recipes/:id", "404"))
	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/recipes/"+id, nil))
	}
	after := counterValue(t, requestTotal.WithLabelValues(http.MethodGet, "/v1/recipes/:id", "404"))
	if after-before != 2 {
		t.Fatalf("expected 2 requests counted under the route template, got %v", after-before)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), "recipehub_http_requests_total") {
		t.Fatal("expected http collectors on /metrics")
	}
}

func TestImageReleaseFailed(t *testing.T) {
	before := counterValue(t, imageReleaseFailedTotal.WithLabelValues("replace"))
	ImageReleaseFailed("replace")
	if got := counterValue(t, imageReleaseFailedTotal.WithLabelValues("replace")); got != before+1 {
		t.Fatalf("expected counter to grow by one, got %v -> %v", before, got)
	}
}
