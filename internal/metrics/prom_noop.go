//go:build !prom

package metrics

import "net/http"

// PrometheusHandler returns a 404 handler when Prometheus support is not compiled in
func PrometheusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("prometheus metrics not available, build with -tags=prom to enable"))
	})
}
