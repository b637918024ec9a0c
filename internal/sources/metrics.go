package sources

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/miradorstack/mirador-console/internal/models"
	"github.com/miradorstack/mirador-console/internal/transport"
)

// DomainMetrics names the metrics adapter in telemetry.
const DomainMetrics = "metrics"

// MetricsAdapter fetches the metrics summary.
type MetricsAdapter struct {
	endpoint
}

// NewMetricsAdapter builds the metrics adapter.
func NewMetricsAdapter(client Requester, candidates []string, logger *slog.Logger) *MetricsAdapter {
	return &MetricsAdapter{endpoint: newEndpoint(client, DomainMetrics, candidates, logger)}
}

// Fetch returns the normalized snapshot, whichever shape the backend sent.
func (a *MetricsAdapter) Fetch(ctx context.Context) (models.MetricsSnapshot, error) {
	return fetchWithFallback(ctx, a.endpoint, a.get(transport.RequestOptions{}), NormalizeMetrics, nil)
}

// metricShape tags the upstream variant before it is folded into MetricRow.
type metricShape int

const (
	shapeUnknown metricShape = iota
	shapeKeyedStats
	shapeGauges
	shapeRecords
)

// NormalizeMetrics folds keyed stats, bare gauges, and record arrays into one snapshot.
func NormalizeMetrics(path string, raw json.RawMessage) (models.MetricsSnapshot, error) {
	payload, err := decode(raw)
	if err != nil {
		return models.MetricsSnapshot{}, &NormalizationError{Domain: DomainMetrics, Path: path, Reason: err.Error()}
	}
	if payload == nil {
		return models.MetricsSnapshot{Rows: []models.MetricRow{}}, nil
	}

	switch classifyMetrics(payload) {
	case shapeRecords:
		records, _ := listField(payload, "metrics")
		return models.MetricsSnapshot{Rows: recordRows(records)}, nil
	case shapeKeyedStats, shapeGauges:
		return models.MetricsSnapshot{Rows: keyedRows(object(payload))}, nil
	default:
		return models.MetricsSnapshot{}, &NormalizationError{Domain: DomainMetrics, Path: path, Reason: "expected an object or an array of metric records"}
	}
}

func classifyMetrics(payload any) metricShape {
	if _, ok := listField(payload, "metrics"); ok {
		return shapeRecords
	}
	obj := object(payload)
	if obj == nil {
		return shapeUnknown
	}
	for _, v := range obj {
		if object(v) != nil {
			return shapeKeyedStats
		}
	}
	return shapeGauges
}

// keyedRows handles both {"key": {avg,min,max,count}} and {"key": 0.42}; entries may mix.
func keyedRows(obj map[string]any) []models.MetricRow {
	rows := make([]models.MetricRow, 0, len(obj))
	for _, key := range sortedKeys(obj) {
		name, source := splitKey(key)
		row := models.MetricRow{Key: key, Name: name, Source: source}
		if stats := object(obj[key]); stats != nil {
			row.Avg = number(stats["avg"])
			row.Min = row.Avg
			row.Max = row.Avg
			if v, ok := stats["min"]; ok && v != nil {
				row.Min = number(v)
			}
			if v, ok := stats["max"]; ok && v != nil {
				row.Max = number(v)
			}
			row.Count = int(number(stats["count"]))
			row.Value = row.Avg
		} else {
			row.Value = number(obj[key])
			row.Avg, row.Min, row.Max, row.Count = row.Value, row.Value, row.Value, 1
		}
		rows = append(rows, row)
	}
	return rows
}

func recordRows(records []any) []models.MetricRow {
	rows := make([]models.MetricRow, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, item := range records {
		rec := object(item)
		name := firstText(rec, "metric_name", "name")
		if name == "" {
			continue
		}
		source := text(rec["source_id"])
		key := name
		if source != "" {
			key = name + ":" + source
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		value := number(rec["metric_value"])
		if _, ok := rec["metric_value"]; !ok {
			value = number(rec["value"])
		}
		row := models.MetricRow{Key: key, Name: name, Source: source, Value: value, Avg: value, Min: value, Max: value, Count: 1}
		if hist, ok := rec["history"].([]any); ok && len(hist) > 0 {
			row.History = make([]float64, 0, len(hist))
			var sum float64
			for _, h := range hist {
				v := number(h)
				row.History = append(row.History, v)
				sum += v
				row.Min = min(row.Min, v)
				row.Max = max(row.Max, v)
			}
			row.Avg = sum / float64(len(row.History))
			row.Count = len(row.History)
		}
		rows = append(rows, row)
	}
	return rows
}

func splitKey(key string) (name, source string) {
	name, source, _ = strings.Cut(key, ":")
	return name, source
}
