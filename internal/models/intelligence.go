package models

import "time"

// Incident is an intelligence-engine incident.
type Incident struct {
	IncidentID string  `json:"incident_id"`
	SourceID   string  `json:"source_id"`
	Severity   string  `json:"severity"`
	Status     string  `json:"status"`
	Summary    string  `json:"summary"`
	Risk       float64 `json:"risk"`
}

// Anomaly is a log error spike or metric threshold breach.
type Anomaly struct {
	SourceID   string  `json:"source_id"`
	MetricName string  `json:"metric_name,omitempty"`
	ErrorCount float64 `json:"error_count"`
	Anomaly    bool    `json:"anomaly"`
}

// RiskInfo is one entry of the per-source risk map.
type RiskInfo struct {
	Risk      float64 `json:"risk"`
	Errors    float64 `json:"errors"`
	Anomalies float64 `json:"anomalies,omitempty"`
}

// Recommendation is the engine's advice for one incident.
type Recommendation struct {
	IncidentID        string `json:"incident_id"`
	SourceID          string `json:"source_id"`
	Severity          string `json:"severity"`
	ProbableCause     string `json:"probable_cause"`
	RecommendedAction string `json:"recommended_action"`
	ImpactIfIgnored   string `json:"impact_if_ignored"`
}

// Action is one policy-derived step for an incident.
type Action struct {
	Action string         `json:"action"`
	Reason string         `json:"reason,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

// ControlPlan is the automation root aggregate.
type ControlPlan struct {
	Incidents       []Incident                `json:"incidents"`
	Actions         map[string][]Action       `json:"actions"`
	Recommendations map[string]Recommendation `json:"recommendations"`
	Risk            map[string]RiskInfo       `json:"risk"`
}

// Intelligence bundles the overview and anomaly feeds.
type Intelligence struct {
	Incidents       []Incident                `json:"incidents"`
	Risk            map[string]RiskInfo       `json:"risk"`
	Recommendations map[string]Recommendation `json:"recommendations"`
	Anomalies       []Anomaly                 `json:"anomalies"`
}

// InsightItem is the joint display row for incidents and anomalies.
type InsightItem struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"source_id"`
	Severity  string    `json:"severity"`
	Status    string    `json:"status"`
	Summary   string    `json:"summary"`
	Risk      float64   `json:"risk"`
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// AutomationJob is synthesized per incident action; it is never stored upstream.
type AutomationJob struct {
	ID          string    `json:"id"`
	IncidentID  string    `json:"incident_id"`
	SourceID    string    `json:"source_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	State       string    `json:"state"`
	Severity    string    `json:"severity"`
	UpdatedAt   time.Time `json:"updated_at"`
}
