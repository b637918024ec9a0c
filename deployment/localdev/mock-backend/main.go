package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

type logEvent struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	SourceID   string    `json:"source_id"`
	LogLevel   string    `json:"log_level"`
	LogMessage string    `json:"log_message"`
	EventType  string    `json:"event_type"`
}

type agent struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Status   string  `json:"status"`
	Latency  float64 `json:"latency"`
	LastSeen string  `json:"last_seen"`
}

var (
	agentIDs = []string{"edge-1", "edge-2", "core-1"}
	levels   = []string{"INFO", "INFO", "WARNING", "ERROR", "CRITICAL"}
	messages = []string{"heartbeat ok", "fan speed adjusted", "disk latency high", "upstream timeout", "thermal threshold exceeded"}
)

// feedbackLog keeps submitted verdicts so the mock can echo a count.
type feedbackLog struct {
	mu      sync.Mutex
	entries []map[string]any
}

func (f *feedbackLog) add(entry map[string]any) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return len(f.entries)
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	feedback := &feedbackLog{}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/analytics/metrics/summary", func(w http.ResponseWriter, r *http.Request) {
		if !enforce(w, r, http.MethodGet) {
			return
		}
		writeJSON(w, map[string]any{
			"cpu_usage":    jitter(0.45, 0.2),
			"memory_usage": jitter(0.6, 0.1),
			"error_rate":   jitter(0.08, 0.08),
			"log_rate":     jitter(0.3, 0.2),
		})
	})

	mux.HandleFunc("/api/events/recent", func(w http.ResponseWriter, r *http.Request) {
		if !enforce(w, r, http.MethodGet) {
			return
		}
		limit := 50
		if _, err := fmt.Sscanf(r.URL.Query().Get("limit"), "%d", &limit); err != nil || limit <= 0 || limit > 200 {
			limit = 50
		}
		now := time.Now().UTC()
		events := make([]logEvent, 0, limit)
		for i := 0; i < limit; i++ {
			idx := rand.Intn(len(levels))
			events = append(events, logEvent{
				ID:         fmt.Sprintf("evt-%d-%d", now.Unix(), i),
				Timestamp:  now.Add(-time.Duration(i) * 7 * time.Second),
				SourceID:   agentIDs[rand.Intn(len(agentIDs))],
				LogLevel:   levels[idx],
				LogMessage: messages[idx],
				EventType:  "log",
			})
		}
		writeJSON(w, map[string]any{"events": events})
	})

	mux.HandleFunc("/api/agents", func(w http.ResponseWriter, r *http.Request) {
		if !enforce(w, r, http.MethodGet) {
			return
		}
		now := time.Now().UTC()
		writeJSON(w, []agent{
			{ID: "edge-1", Name: "Edge 1", Status: "healthy", Latency: jitter(40, 20), LastSeen: now.Add(-5 * time.Second).Format(time.RFC3339)},
			{ID: "edge-2", Name: "Edge 2", Status: "degraded", Latency: jitter(220, 60), LastSeen: now.Add(-2 * time.Minute).Format(time.RFC3339)},
			{ID: "core-1", Name: "Core 1", Status: "offline", Latency: 0, LastSeen: now.Add(-3 * time.Hour).Format(time.RFC3339)},
		})
	})

	mux.HandleFunc("/api/intelligence/overview", func(w http.ResponseWriter, r *http.Request) {
		if !enforce(w, r, http.MethodGet) {
			return
		}
		writeJSON(w, map[string]any{
			"incidents": []map[string]any{
				{"incident_id": "inc-101", "source_id": "edge-2", "severity": "high", "status": "open", "summary": "Upstream timeouts on edge-2", "risk": 0.72},
			},
			"risk": map[string]any{
				"edge-1": map[string]any{"risk": 0.12, "errors": 1, "anomalies": 0},
				"edge-2": map[string]any{"risk": 0.72, "errors": 14, "anomalies": 3},
			},
			"recommendations": map[string]any{
				"inc-101": map[string]any{"source_id": "edge-2", "severity": "high", "probable_cause": "network saturation", "recommended_action": "shift traffic", "impact_if_ignored": "request loss"},
			},
		})
	})

	mux.HandleFunc("/api/analytics/anomalies", func(w http.ResponseWriter, r *http.Request) {
		if !enforce(w, r, http.MethodGet) {
			return
		}
		writeJSON(w, map[string]any{"anomalies": []map[string]any{
			{"source_id": "edge-2", "metric_name": "error_rate", "error_count": 14, "anomaly": true, "timestamp": time.Now().UTC()},
		}})
	})

	mux.HandleFunc("/api/control/plan", func(w http.ResponseWriter, r *http.Request) {
		if !enforce(w, r, http.MethodGet) {
			return
		}
		writeJSON(w, map[string]any{
			"incidents": []map[string]any{
				{"incident_id": "inc-101", "source_id": "edge-2", "severity": "high", "status": "planned", "summary": "Upstream timeouts on edge-2"},
			},
			"actions": map[string]any{
				"inc-101": []map[string]any{
					{"action": "restart_agent", "reason": "clear stuck connections", "params": map[string]any{"agent": "edge-2"}},
					{"action": "shift_traffic"},
				},
			},
		})
	})

	mux.HandleFunc("/alerts/recent", func(w http.ResponseWriter, r *http.Request) {
		if !enforce(w, r, http.MethodGet) {
			return
		}
		writeJSON(w, []map[string]any{
			{"id": "al-1", "timestamp": time.Now().UTC(), "source_id": "edge-2", "severity": "critical", "message": "error rate above 10%"},
			{"id": "al-2", "timestamp": time.Now().UTC().Add(-time.Minute), "source_id": "edge-1", "severity": "warning", "summary": "fan speed high"},
		})
	})

	mux.HandleFunc("/api/control/execute", func(w http.ResponseWriter, r *http.Request) {
		if !enforce(w, r, http.MethodPost) {
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "body must be a JSON object")
			return
		}
		mode := "live"
		if dry, _ := body["dry_run"].(bool); dry {
			mode = "dry_run"
		}
		writeJSON(w, map[string]any{"mode": mode, "job_id": body["job_id"], "received": body})
	})

	mux.HandleFunc("/api/feedback", func(w http.ResponseWriter, r *http.Request) {
		if !enforce(w, r, http.MethodPost) {
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "body must be a JSON object")
			return
		}
		if id, _ := body["incident_id"].(string); id == "" {
			writeError(w, http.StatusUnprocessableEntity, "incident_id is required")
			return
		}
		writeJSON(w, map[string]any{"status": "recorded", "count": feedback.add(body)})
	})

	logger := log.New(log.Writer(), "backend-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           logRequests(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func jitter(base, spread float64) float64 {
	return base + (rand.Float64()*2-1)*spread
}

func enforce(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
