package store

import (
	"maps"
	"time"

	"github.com/miradorstack/mirador-console/internal/models"
	"github.com/miradorstack/mirador-console/internal/notify"
	"github.com/miradorstack/mirador-console/internal/views"
)

// Filters echoes the active filter settings.
type Filters struct {
	Logs        views.LogFilter      `json:"logs"`
	EventSearch string               `json:"event_search"`
	Alerts      views.AlertFilter    `json:"alerts"`
	Timeline    views.TimelineFilter `json:"timeline"`
}

// Latency summarizes the metrics round trip.
type Latency struct {
	LastMs float64     `json:"last_ms"`
	P95Ms  float64     `json:"p95_ms"`
	Label  string      `json:"label"`
	Tone   models.Tone `json:"tone"`
}

// Snapshot is a consistent, read-only copy of state plus every derived view.
type Snapshot struct {
	Version     uint64            `json:"version"`
	GeneratedAt time.Time         `json:"generated_at"`
	ActiveTab   Tab               `json:"active_tab"`
	Status      map[Domain]Status `json:"status"`
	Loaded      map[string]bool   `json:"loaded"`
	Busy        map[string]bool   `json:"busy"`

	Metrics      map[string]float64               `json:"metrics"`
	MetricCards  []views.MetricCard               `json:"metric_cards"`
	Tracked      []views.TrackedCard              `json:"tracked"`
	History      map[string][]models.HistoryPoint `json:"history"`
	SystemStatus string                           `json:"system_status"`
	Latency      Latency                          `json:"latency"`

	Agents            []views.AgentView `json:"agents"`
	SelectedAgent     *views.AgentView  `json:"selected_agent,omitempty"`
	SelectedAgentLogs []models.LogEvent `json:"selected_agent_logs"`

	Events      []models.LogEvent      `json:"events"`
	Logs        []models.LogEvent      `json:"logs"`
	LevelCounts map[string]int         `json:"level_counts"`
	LevelTones  map[string]models.Tone `json:"level_tones"`
	Timeline    []views.TimelineEntry  `json:"timeline"`

	Alerts      []models.Alert `json:"alerts"`
	AlertCounts map[string]int `json:"alert_counts"`

	Insights        []models.InsightItem             `json:"insights"`
	Risk            []views.RiskRow                  `json:"risk"`
	Recommendations map[string]models.Recommendation `json:"recommendations"`
	Jobs            []models.AutomationJob           `json:"jobs"`
	LastControl     *models.ControlResult            `json:"last_control,omitempty"`

	Filters       Filters      `json:"filters"`
	Notifications notify.State `json:"notifications"`
}

// Snapshot computes every derived view from current state. It does not mutate state.
func (s *Store) Snapshot() Snapshot {
	version := s.Version()
	notes := s.notify.Current()
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Version:       version,
		GeneratedAt:   now,
		ActiveTab:     s.tab,
		Status:        make(map[Domain]Status, len(s.status)),
		Loaded:        maps.Clone(s.ledger),
		Busy:          make(map[string]bool, len(s.busy)),
		Filters:       Filters{Logs: s.logFilter, EventSearch: s.eventSearch, Alerts: s.alertFilter, Timeline: s.timelineFilter},
		Notifications: notes,
		Jobs:          append([]models.AutomationJob(nil), s.jobs...),
		Insights:      append([]models.InsightItem(nil), s.insights...),
		Alerts:        views.FilterAlerts(s.alerts, s.alertFilter),
		AlertCounts:   views.AlertCounts(s.alerts),
		Events:        views.FilterEvents(s.events, s.eventSearch),
		Logs:          views.FilterLogs(s.events, s.agents, s.logFilter),
		LevelCounts:   views.LevelCounts(s.events),
		LevelTones:    views.LevelTones(models.KnownLevels),
		Timeline:      views.Timeline(s.events, s.timelineFilter),
		History:       s.history.Snapshot(),
	}
	for d, st := range s.status {
		snap.Status[d] = *st
	}
	for action, n := range s.busy {
		snap.Busy[action] = n > 0
	}

	values := s.metrics.Values()
	snap.Metrics = values
	snap.MetricCards = views.MetricCards(s.metrics.Rows, s.history.Values)
	snap.Tracked = views.TrackedCards(s.opts.TrackedMetrics, values, s.history.Values)
	snap.SystemStatus = views.SystemStatus(values["error_rate"])

	lastMs := float64(s.latency.Last()) / float64(time.Millisecond)
	snap.Latency = Latency{
		LastMs: lastMs,
		P95Ms:  float64(s.latency.Percentile(95)) / float64(time.Millisecond),
		Label:  views.LatencyLabel(lastMs),
		Tone:   views.LatencyTone(lastMs),
	}

	risk := s.riskMap()
	snap.Risk = views.RiskTable(risk)
	snap.Agents = views.JoinAgents(s.agents, risk, now)
	if s.selected != nil {
		joined := views.JoinAgents([]models.Agent{*s.selected}, risk, now)
		snap.SelectedAgent = &joined[0]
		snap.SelectedAgentLogs = views.SelectedAgentLogs(s.events, s.selected.ID)
	} else {
		snap.SelectedAgentLogs = []models.LogEvent{}
	}

	snap.Recommendations = maps.Clone(s.plan.Recommendations)
	if snap.Recommendations == nil {
		snap.Recommendations = make(map[string]models.Recommendation)
	}
	maps.Copy(snap.Recommendations, s.intelligence.Recommendations)

	if s.lastControl != nil {
		res := *s.lastControl
		snap.LastControl = &res
	}
	return snap
}

// riskMap merges the plan's risk map with the intelligence one; intelligence wins.
func (s *Store) riskMap() map[string]models.RiskInfo {
	risk := make(map[string]models.RiskInfo, len(s.plan.Risk)+len(s.intelligence.Risk))
	maps.Copy(risk, s.plan.Risk)
	maps.Copy(risk, s.intelligence.Risk)
	return risk
}
