package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Readiness reports whether the console is mounted, plus per-page refresh periods.
type Readiness interface {
	Mounted() bool
	Periods() map[string]string
}

// NewHTTPServer builds the side server exposing /metrics, /healthz and /ws.
func NewHTTPServer(addr string, gatherer prometheus.Gatherer, hub http.Handler, ready Readiness) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", healthHandler(ready))
	if hub != nil {
		mux.Handle("/ws", hub)
	}
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func healthHandler(ready Readiness) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ok"}
		code := http.StatusOK
		if ready != nil {
			if !ready.Mounted() {
				body["status"] = "unmounted"
				code = http.StatusServiceUnavailable
			}
			body["pages"] = ready.Periods()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(body)
	}
}
