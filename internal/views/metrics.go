package views

import (
	"fmt"
	"math"

	"github.com/miradorstack/mirador-console/internal/models"
)

// MetricCard is one row of the metrics table.
type MetricCard struct {
	Key      string      `json:"key"`
	Name     string      `json:"name"`
	Source   string      `json:"source,omitempty"`
	Value    string      `json:"value"`
	Raw      float64     `json:"raw"`
	Delta    string      `json:"delta"`
	Window   string      `json:"window"`
	Score    int         `json:"score"`
	Severity string      `json:"severity"`
	Tone     models.Tone `json:"tone"`
	History  []float64   `json:"history,omitempty"`
}

// TrackedCard is a headline gauge with its sparkline.
type TrackedCard struct {
	Key     string      `json:"key"`
	Label   string      `json:"label"`
	Value   float64     `json:"value"`
	Percent string      `json:"percent"`
	Tone    models.Tone `json:"tone"`
	History []float64   `json:"history"`
}

var trackedLabels = map[string]string{
	"cpu_usage":    "CPU Usage",
	"memory_usage": "Memory Usage",
	"error_rate":   "Error Rate",
	"log_rate":     "Log Volume",
}

// HistoryFunc returns the retained samples for a metric key.
type HistoryFunc func(key string) []float64

// MetricCards formats every row. Rows with upstream history keep it; others use hist.
func MetricCards(rows []models.MetricRow, hist HistoryFunc) []MetricCard {
	cards := make([]MetricCard, 0, len(rows))
	for _, row := range rows {
		score := int(math.Min(100, math.Round(row.Avg*100)))
		card := MetricCard{
			Key:      row.Key,
			Name:     row.Name,
			Source:   row.Source,
			Value:    fmt.Sprintf("%.2f", row.Avg),
			Raw:      row.Value,
			Delta:    fmt.Sprintf("%.2f", row.Max-row.Min),
			Window:   "live",
			Score:    score,
			Severity: models.SeverityLabel(row.Avg),
			Tone:     models.BadgeTone(row.Avg),
			History:  row.History,
		}
		if len(card.History) == 0 && hist != nil {
			card.History = hist(row.Key)
		}
		cards = append(cards, card)
	}
	return cards
}

// TrackedCards builds the headline gauges in the configured order. Missing values are 0.
func TrackedCards(keys []string, values map[string]float64, hist HistoryFunc) []TrackedCard {
	cards := make([]TrackedCard, 0, len(keys))
	for _, key := range keys {
		label := trackedLabels[key]
		if label == "" {
			label = key
		}
		v := values[key]
		card := TrackedCard{Key: key, Label: label, Value: v, Percent: FormatPercent(v), Tone: models.BadgeTone(v)}
		if hist != nil {
			card.History = hist(key)
		}
		cards = append(cards, card)
	}
	return cards
}
