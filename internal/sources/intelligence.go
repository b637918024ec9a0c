package sources

import (
	"context"
	"encoding/json"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/miradorstack/mirador-console/internal/models"
	"github.com/miradorstack/mirador-console/internal/transport"
)

const (
	// DomainIntelligence names the intelligence adapter in telemetry.
	DomainIntelligence = "intelligence"
	// DomainAnomalies names the anomaly sub-fetch.
	DomainAnomalies = "anomalies"
)

type overview struct {
	Incidents       []models.Incident
	Risk            map[string]models.RiskInfo
	Recommendations map[string]models.Recommendation
}

// IntelligenceAdapter loads the intelligence overview and the anomaly feed together.
type IntelligenceAdapter struct {
	overview  endpoint
	anomalies endpoint
}

// NewIntelligenceAdapter builds the intelligence adapter.
func NewIntelligenceAdapter(client Requester, overviewPaths, anomalyPaths []string, logger *slog.Logger) *IntelligenceAdapter {
	return &IntelligenceAdapter{
		overview:  newEndpoint(client, DomainIntelligence, overviewPaths, logger),
		anomalies: newEndpoint(client, DomainAnomalies, anomalyPaths, logger),
	}
}

// Fetch issues both requests concurrently; either failing fails the whole load.
func (a *IntelligenceAdapter) Fetch(ctx context.Context) (models.Intelligence, error) {
	var (
		ov    overview
		anoms []models.Anomaly
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ov, err = fetchWithFallback(gctx, a.overview, a.overview.get(transport.RequestOptions{}), normalizeOverview, nil)
		return err
	})
	g.Go(func() error {
		var err error
		anoms, err = fetchWithFallback(gctx, a.anomalies, a.anomalies.get(transport.RequestOptions{}), NormalizeAnomalies, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.Intelligence{}, err
	}
	return models.Intelligence{
		Incidents:       ov.Incidents,
		Risk:            ov.Risk,
		Recommendations: ov.Recommendations,
		Anomalies:       anoms,
	}, nil
}

func normalizeOverview(path string, raw json.RawMessage) (overview, error) {
	payload, err := decode(raw)
	if err != nil {
		return overview{}, &NormalizationError{Domain: DomainIntelligence, Path: path, Reason: err.Error()}
	}
	if payload != nil && object(payload) == nil {
		return overview{}, &NormalizationError{Domain: DomainIntelligence, Path: path, Reason: "expected an object"}
	}
	obj := object(payload)
	return overview{
		Incidents:       parseIncidents(obj["incidents"]),
		Risk:            parseRiskMap(obj["risk"]),
		Recommendations: parseRecommendations(obj["recommendations"]),
	}, nil
}

// NormalizeAnomalies accepts an array or {"anomalies": [...]}.
func NormalizeAnomalies(path string, raw json.RawMessage) ([]models.Anomaly, error) {
	payload, err := decode(raw)
	if err != nil {
		return nil, &NormalizationError{Domain: DomainAnomalies, Path: path, Reason: err.Error()}
	}
	if payload == nil {
		return []models.Anomaly{}, nil
	}
	items, ok := listField(payload, "anomalies")
	if !ok {
		return nil, &NormalizationError{Domain: DomainAnomalies, Path: path, Reason: "expected an array of anomalies"}
	}
	out := make([]models.Anomaly, 0, len(items))
	for _, item := range items {
		rec := object(item)
		if rec == nil {
			continue
		}
		flag, _ := rec["anomaly"].(bool)
		out = append(out, models.Anomaly{
			SourceID:   text(rec["source_id"]),
			MetricName: text(rec["metric_name"]),
			ErrorCount: number(rec["error_count"]),
			Anomaly:    flag,
		})
	}
	return out, nil
}

func parseIncidents(v any) []models.Incident {
	items, _ := v.([]any)
	out := make([]models.Incident, 0, len(items))
	for _, item := range items {
		rec := object(item)
		if rec == nil {
			continue
		}
		out = append(out, models.Incident{
			IncidentID: text(rec["incident_id"]),
			SourceID:   text(rec["source_id"]),
			Severity:   text(rec["severity"]),
			Status:     text(rec["status"]),
			Summary:    text(rec["summary"]),
			Risk:       number(rec["risk"]),
		})
	}
	return out
}

func parseRiskMap(v any) map[string]models.RiskInfo {
	obj := object(v)
	out := make(map[string]models.RiskInfo, len(obj))
	for source, entry := range obj {
		rec := object(entry)
		anomalies := rec["anomalies"]
		if anomalies == nil {
			anomalies = rec["metric_anomalies"]
		}
		out[source] = models.RiskInfo{
			Risk:      number(rec["risk"]),
			Errors:    number(rec["errors"]),
			Anomalies: number(anomalies),
		}
	}
	return out
}

func parseRecommendations(v any) map[string]models.Recommendation {
	out := make(map[string]models.Recommendation)
	add := func(key string, rec map[string]any) {
		r := models.Recommendation{
			IncidentID:        firstNonEmpty(text(rec["incident_id"]), key),
			SourceID:          text(rec["source_id"]),
			Severity:          text(rec["severity"]),
			ProbableCause:     text(rec["probable_cause"]),
			RecommendedAction: text(rec["recommended_action"]),
			ImpactIfIgnored:   text(rec["impact_if_ignored"]),
		}
		if r.IncidentID != "" {
			out[r.IncidentID] = r
		}
	}
	switch val := v.(type) {
	case map[string]any:
		for key, entry := range val {
			if rec := object(entry); rec != nil {
				add(key, rec)
			}
		}
	case []any:
		for _, entry := range val {
			if rec := object(entry); rec != nil {
				add("", rec)
			}
		}
	}
	return out
}
