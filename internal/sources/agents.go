package sources

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/miradorstack/mirador-console/internal/models"
	"github.com/miradorstack/mirador-console/internal/transport"
)

// DomainAgents names the agents adapter in telemetry.
const DomainAgents = "agents"

// Risk-map derived status thresholds on the 0-100 scale.
const (
	riskOffline  = 60
	riskDegraded = 30
)

// AgentsAdapter fetches the fleet, either as agent records or as a risk map.
type AgentsAdapter struct {
	endpoint
	now func() time.Time
}

// NewAgentsAdapter builds the agents adapter.
func NewAgentsAdapter(client Requester, candidates []string, logger *slog.Logger) *AgentsAdapter {
	return &AgentsAdapter{endpoint: newEndpoint(client, DomainAgents, candidates, logger), now: time.Now}
}

// Fetch returns one agent per identity, first occurrence winning.
func (a *AgentsAdapter) Fetch(ctx context.Context) ([]models.Agent, error) {
	now := a.now()
	return fetchWithFallback(ctx, a.endpoint, a.get(transport.RequestOptions{}), func(path string, raw json.RawMessage) ([]models.Agent, error) {
		return NormalizeAgents(path, raw, now)
	}, nil)
}

// NormalizeAgents accepts agent records (bare or under "agents") or an id → {risk, errors}
// map. now stamps last_seen for risk-map entries.
func NormalizeAgents(path string, raw json.RawMessage, now time.Time) ([]models.Agent, error) {
	payload, err := decode(raw)
	if err != nil {
		return nil, &NormalizationError{Domain: DomainAgents, Path: path, Reason: err.Error()}
	}
	if payload == nil {
		return []models.Agent{}, nil
	}
	if items, ok := listField(payload, "agents"); ok {
		return dedupeAgents(agentRecords(items)), nil
	}
	if obj := object(payload); obj != nil {
		return riskMapAgents(obj, now), nil
	}
	return nil, &NormalizationError{Domain: DomainAgents, Path: path, Reason: "expected agent records or a risk map"}
}

func agentRecords(items []any) []models.Agent {
	agents := make([]models.Agent, 0, len(items))
	for _, item := range items {
		rec := object(item)
		if rec == nil {
			continue
		}
		agents = append(agents, models.Agent{
			ID:       firstNonEmpty(firstText(rec, "id", "name"), "agent"),
			Name:     firstNonEmpty(firstText(rec, "name", "id"), "agent"),
			Status:   parseStatus(text(rec["status"])),
			Latency:  number(rec["latency"]),
			LastSeen: firstText(rec, "last_seen", "heartbeat"),
			Risk:     number(rec["risk"]),
			Errors:   number(rec["errors"]),
		})
	}
	return agents
}

func riskMapAgents(obj map[string]any, now time.Time) []models.Agent {
	stamp := now.UTC().Format(time.RFC3339)
	agents := make([]models.Agent, 0, len(obj))
	for _, id := range sortedKeys(obj) {
		entry := object(obj[id])
		risk := number(entry["risk"])
		agents = append(agents, models.Agent{
			ID:       id,
			Name:     id,
			Status:   statusFromRisk(risk),
			Latency:  math.Round(10 + risk/4),
			LastSeen: stamp,
			Risk:     risk,
			Errors:   number(entry["errors"]),
		})
	}
	return agents
}

func statusFromRisk(risk float64) models.AgentStatus {
	switch {
	case risk >= riskOffline:
		return models.AgentOffline
	case risk >= riskDegraded:
		return models.AgentDegraded
	default:
		return models.AgentHealthy
	}
}

func parseStatus(raw string) models.AgentStatus {
	switch status := models.AgentStatus(strings.ToLower(strings.TrimSpace(raw))); status {
	case models.AgentHealthy, models.AgentDegraded, models.AgentOffline:
		return status
	default:
		return models.AgentUnknown
	}
}

func dedupeAgents(agents []models.Agent) []models.Agent {
	seen := make(map[string]struct{}, len(agents))
	out := agents[:0]
	for _, agent := range agents {
		id := agent.Identity()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, agent)
	}
	return out
}
