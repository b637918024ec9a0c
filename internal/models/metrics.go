package models

// MetricSample is a single gauge keyed by metric_name or metric_name:source_id.
type MetricSample struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// MetricRow is the canonical normalized metric, whichever shape the backend sent.
type MetricRow struct {
	Key     string    `json:"key"`
	Name    string    `json:"name"`
	Source  string    `json:"source,omitempty"`
	Value   float64   `json:"value"`
	Avg     float64   `json:"avg"`
	Min     float64   `json:"min"`
	Max     float64   `json:"max"`
	Count   int       `json:"count"`
	History []float64 `json:"history,omitempty"`
}

// MetricsSnapshot is the output of the metrics adapter.
type MetricsSnapshot struct {
	Rows []MetricRow `json:"rows"`
}

// Values flattens the snapshot into key -> value.
func (s MetricsSnapshot) Values() map[string]float64 {
	values := make(map[string]float64, len(s.Rows))
	for _, row := range s.Rows {
		values[row.Key] = row.Value
	}
	return values
}

// Samples lists the snapshot as key/value pairs in row order.
func (s MetricsSnapshot) Samples() []MetricSample {
	samples := make([]MetricSample, 0, len(s.Rows))
	for _, row := range s.Rows {
		samples = append(samples, MetricSample{Key: row.Key, Value: row.Value})
	}
	return samples
}

// HistoryPoint is one sparkline sample.
type HistoryPoint struct {
	ID    string  `json:"id"`
	Value float64 `json:"value"`
}
