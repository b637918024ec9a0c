// Package sources wraps each backend domain behind an adapter that knows its candidate
// endpoints and how to normalize the payload into models.
package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/miradorstack/mirador-console/internal/config"
	"github.com/miradorstack/mirador-console/internal/metrics"
	"github.com/miradorstack/mirador-console/internal/transport"
)

// Requester is the subset of transport.Client the adapters depend on.
type Requester interface {
	Do(ctx context.Context, method, path string, opts transport.RequestOptions) (json.RawMessage, error)
}

// NormalizationError reports a payload that parsed but lacks the expected shape.
type NormalizationError struct {
	Domain string
	Path   string
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("%s payload from %s: %s", e.Domain, e.Path, e.Reason)
}

// Set bundles one adapter per domain.
type Set struct {
	Metrics      *MetricsAdapter
	Events       *EventsAdapter
	Agents       *AgentsAdapter
	Intelligence *IntelligenceAdapter
	Plan         *PlanAdapter
	Alerts       *AlertsAdapter
	Control      *ControlAdapter
	Feedback     *FeedbackAdapter
}

// NewSet wires every adapter to the same requester using the configured endpoints.
func NewSet(client Requester, endpoints config.EndpointsConfig, logger *slog.Logger) *Set {
	if logger == nil {
		logger = slog.Default()
	}
	return &Set{
		Metrics:      NewMetricsAdapter(client, endpoints.Metrics, logger),
		Events:       NewEventsAdapter(client, endpoints.Events, endpoints.EventsLimit, logger),
		Agents:       NewAgentsAdapter(client, endpoints.Agents, logger),
		Intelligence: NewIntelligenceAdapter(client, endpoints.Overview, endpoints.Anomalies, logger),
		Plan:         NewPlanAdapter(client, endpoints.Plan, logger),
		Alerts:       NewAlertsAdapter(client, endpoints.Alerts, logger),
		Control:      NewControlAdapter(client, endpoints.Control, logger),
		Feedback:     NewFeedbackAdapter(client, endpoints.Feedback, logger),
	}
}

// endpoint is the shared plumbing of a single-domain adapter.
type endpoint struct {
	client     Requester
	domain     string
	candidates []string
	logger     *slog.Logger
}

func newEndpoint(client Requester, domain string, candidates []string, logger *slog.Logger) endpoint {
	if logger == nil {
		logger = slog.Default()
	}
	if len(candidates) > 2 {
		candidates = candidates[:2]
	}
	return endpoint{client: client, domain: domain, candidates: candidates, logger: logger}
}

func (e endpoint) get(opts transport.RequestOptions) fetchFunc {
	return func(ctx context.Context, path string) (json.RawMessage, error) {
		return e.client.Do(ctx, http.MethodGet, path, opts)
	}
}

func (e endpoint) post(body any) fetchFunc {
	return func(ctx context.Context, path string) (json.RawMessage, error) {
		return e.client.Do(ctx, http.MethodPost, path, transport.RequestOptions{Body: body})
	}
}

type fetchFunc func(ctx context.Context, path string) (json.RawMessage, error)

type normalizeFunc[T any] func(path string, raw json.RawMessage) (T, error)

// fetchWithFallback tries the primary candidate and, when it fails or its payload is
// rejected, the fallback exactly once. The fallback's own error is what propagates.
// retryable narrows which primary failures justify the fallback; nil means all.
func fetchWithFallback[T any](ctx context.Context, e endpoint, fetch fetchFunc, normalize normalizeFunc[T], retryable func(error) bool) (T, error) {
	var zero T
	if e.client == nil {
		return zero, fmt.Errorf("%s: no backend client", e.domain)
	}
	if len(e.candidates) == 0 {
		return zero, fmt.Errorf("%s: no endpoints configured", e.domain)
	}

	var lastErr error
	for i, path := range e.candidates {
		if i > 0 {
			if retryable != nil && !retryable(lastErr) {
				break
			}
			metrics.ObserveFallback(e.domain)
			e.logger.Debug("primary endpoint failed, trying fallback",
				slog.String("domain", e.domain),
				slog.String("fallback", path),
				slog.Any("error", lastErr),
			)
		}
		raw, err := fetch(ctx, path)
		if err == nil {
			var out T
			if out, err = normalize(path, raw); err == nil {
				return out, nil
			}
		}
		lastErr = err
	}
	return zero, lastErr
}

// decode parses raw JSON keeping numbers as json.Number. An empty payload yields nil.
func decode(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// number coerces an upstream value to a finite float; anything unusable is 0.
func number(v any) float64 {
	var f float64
	switch val := v.(type) {
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// text renders scalar upstream values as strings; objects and nil become "".
func text(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}

func object(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

func firstText(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := text(obj[key]); s != "" {
			return s
		}
	}
	return ""
}

// listField returns payload itself when it is an array, otherwise the first array-valued
// field among keys. ok is false when neither applies.
func listField(payload any, keys ...string) ([]any, bool) {
	if list, ok := payload.([]any); ok {
		return list, true
	}
	obj := object(payload)
	for _, key := range keys {
		if list, ok := obj[key].([]any); ok {
			return list, true
		}
	}
	return nil, false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
