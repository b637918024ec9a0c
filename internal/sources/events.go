package sources

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/miradorstack/mirador-console/internal/models"
	"github.com/miradorstack/mirador-console/internal/transport"
)

const (
	// DomainLogs names the events/logs adapter in telemetry.
	DomainLogs = "logs"
	// DomainAlerts names the alerts adapter in telemetry.
	DomainAlerts = "alerts"

	defaultEventsLimit = 360
)

// EventsAdapter fetches recent log and timeline events.
type EventsAdapter struct {
	endpoint
	limit int
}

// NewEventsAdapter builds the events adapter; limit <= 0 uses the stock page size.
func NewEventsAdapter(client Requester, candidates []string, limit int, logger *slog.Logger) *EventsAdapter {
	if limit <= 0 {
		limit = defaultEventsLimit
	}
	return &EventsAdapter{endpoint: newEndpoint(client, DomainLogs, candidates, logger), limit: limit}
}

// Fetch returns the most recent events, newest order preserved from upstream.
func (a *EventsAdapter) Fetch(ctx context.Context) ([]models.LogEvent, error) {
	opts := transport.RequestOptions{Query: url.Values{"limit": {strconv.Itoa(a.limit)}}}
	return fetchWithFallback(ctx, a.endpoint, a.get(opts), NormalizeEvents, nil)
}

// NormalizeEvents accepts an array, {"events": [...]}, or {"logs": [...]}. It is pure:
// the same payload always yields the same events.
func NormalizeEvents(path string, raw json.RawMessage) ([]models.LogEvent, error) {
	payload, err := decode(raw)
	if err != nil {
		return nil, &NormalizationError{Domain: DomainLogs, Path: path, Reason: err.Error()}
	}
	if payload == nil {
		return []models.LogEvent{}, nil
	}
	items, ok := listField(payload, "events", "logs")
	if !ok {
		return nil, &NormalizationError{Domain: DomainLogs, Path: path, Reason: "expected an array of events"}
	}

	events := make([]models.LogEvent, 0, len(items))
	for idx, item := range items {
		rec := object(item)
		if rec == nil {
			continue
		}
		events = append(events, normalizeEvent(idx, rec))
	}
	return events, nil
}

func normalizeEvent(idx int, rec map[string]any) models.LogEvent {
	timestamp := text(rec["timestamp"])
	source := text(rec["source_id"])
	eventType := text(rec["event_type"])

	ev := models.LogEvent{
		ID:            firstText(rec, "id", "incident_id"),
		Timestamp:     timestamp,
		SourceID:      source,
		LogLevel:      strings.ToUpper(firstNonEmpty(text(rec["log_level"]), eventType, models.LevelInfo)),
		LogMessage:    firstText(rec, "log_message", "message", "metric_name", "event_type"),
		EventType:     firstNonEmpty(eventType, "log"),
		MetricName:    text(rec["metric_name"]),
		MetricValue:   number(rec["metric_value"]),
		AlertSeverity: strings.ToUpper(text(rec["alert_severity"])),
		Extras:        map[string]any{},
	}
	if ev.SourceID == "" {
		ev.SourceID = "unknown"
	}
	if ev.ID == "" {
		ev.ID = syntheticID(timestamp, idx, source)
	}
	if extras := object(rec["extras"]); extras != nil {
		ev.Extras = extras
	}
	return ev
}

// AlertsAdapter fetches recent alerts.
type AlertsAdapter struct {
	endpoint
}

// NewAlertsAdapter builds the alerts adapter.
func NewAlertsAdapter(client Requester, candidates []string, logger *slog.Logger) *AlertsAdapter {
	return &AlertsAdapter{endpoint: newEndpoint(client, DomainAlerts, candidates, logger)}
}

// Fetch returns normalized alerts.
func (a *AlertsAdapter) Fetch(ctx context.Context) ([]models.Alert, error) {
	return fetchWithFallback(ctx, a.endpoint, a.get(transport.RequestOptions{}), NormalizeAlerts, nil)
}

// NormalizeAlerts accepts an array or {"alerts": [...]}. Severity is upper-cased.
func NormalizeAlerts(path string, raw json.RawMessage) ([]models.Alert, error) {
	payload, err := decode(raw)
	if err != nil {
		return nil, &NormalizationError{Domain: DomainAlerts, Path: path, Reason: err.Error()}
	}
	if payload == nil {
		return []models.Alert{}, nil
	}
	items, ok := listField(payload, "alerts")
	if !ok {
		return nil, &NormalizationError{Domain: DomainAlerts, Path: path, Reason: "expected an array of alerts"}
	}

	alerts := make([]models.Alert, 0, len(items))
	for idx, item := range items {
		rec := object(item)
		if rec == nil {
			continue
		}
		timestamp := text(rec["timestamp"])
		source := text(rec["source_id"])
		alert := models.Alert{
			ID:        text(rec["id"]),
			Timestamp: timestamp,
			SourceID:  firstNonEmpty(source, "unknown"),
			Severity:  strings.ToUpper(firstNonEmpty(firstText(rec, "severity", "alert_severity", "log_level"), models.LevelInfo)),
			Message:   firstText(rec, "message", "log_message", "summary"),
		}
		if alert.ID == "" {
			alert.ID = syntheticID(timestamp, idx, source)
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

// syntheticID builds "<timestamp|index>-<source|unknown>" for records without an id.
func syntheticID(timestamp string, idx int, source string) string {
	if timestamp == "" {
		timestamp = strconv.Itoa(idx)
	}
	if source == "" {
		source = "unknown"
	}
	return timestamp + "-" + source
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
