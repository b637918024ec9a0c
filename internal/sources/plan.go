package sources

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/miradorstack/mirador-console/internal/models"
	"github.com/miradorstack/mirador-console/internal/transport"
)

// DomainAutomation names the control plan adapter in telemetry.
const DomainAutomation = "automation"

// PlanAdapter fetches the automation/control plan.
type PlanAdapter struct {
	endpoint
}

// NewPlanAdapter builds the control plan adapter.
func NewPlanAdapter(client Requester, candidates []string, logger *slog.Logger) *PlanAdapter {
	return &PlanAdapter{endpoint: newEndpoint(client, DomainAutomation, candidates, logger)}
}

// Fetch returns the plan. A primary payload without "incidents" triggers the fallback.
func (a *PlanAdapter) Fetch(ctx context.Context) (models.ControlPlan, error) {
	return fetchWithFallback(ctx, a.endpoint, a.get(transport.RequestOptions{}), NormalizePlan, nil)
}

// NormalizePlan requires an object carrying an incidents array.
func NormalizePlan(path string, raw json.RawMessage) (models.ControlPlan, error) {
	payload, err := decode(raw)
	if err != nil {
		return models.ControlPlan{}, &NormalizationError{Domain: DomainAutomation, Path: path, Reason: err.Error()}
	}
	obj := object(payload)
	if obj == nil {
		return models.ControlPlan{}, &NormalizationError{Domain: DomainAutomation, Path: path, Reason: "expected an object"}
	}
	if _, ok := obj["incidents"].([]any); !ok {
		return models.ControlPlan{}, &NormalizationError{Domain: DomainAutomation, Path: path, Reason: "missing incidents"}
	}
	return models.ControlPlan{
		Incidents:       parseIncidents(obj["incidents"]),
		Actions:         parseActionMap(obj["actions"]),
		Recommendations: parseRecommendations(obj["recommendations"]),
		Risk:            parseRiskMap(obj["risk"]),
	}, nil
}

func parseActionMap(v any) map[string][]models.Action {
	obj := object(v)
	out := make(map[string][]models.Action, len(obj))
	for incident, entry := range obj {
		items, _ := entry.([]any)
		actions := make([]models.Action, 0, len(items))
		for _, item := range items {
			switch rec := item.(type) {
			case map[string]any:
				actions = append(actions, models.Action{
					Action: text(rec["action"]),
					Reason: text(rec["reason"]),
					Params: object(rec["params"]),
				})
			case string:
				actions = append(actions, models.Action{Action: rec})
			}
		}
		out[incident] = actions
	}
	return out
}
