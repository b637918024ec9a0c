package models

// AgentStatus enumerates fleet liveness states.
type AgentStatus string

const (
	AgentHealthy  AgentStatus = "healthy"
	AgentDegraded AgentStatus = "degraded"
	AgentOffline  AgentStatus = "offline"
	AgentUnknown  AgentStatus = "unknown"
)

// Agent is one fleet member. Risk is on a 0-100 or 0-1 scale depending on the source.
type Agent struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Status   AgentStatus `json:"status"`
	Latency  float64     `json:"latency"`
	LastSeen string      `json:"last_seen,omitempty"`
	Risk     float64     `json:"risk"`
	Errors   float64     `json:"errors"`
}

// Identity is the agent id, falling back to its name.
func (a Agent) Identity() string {
	if a.ID != "" {
		return a.ID
	}
	return a.Name
}

// Online reports whether the agent counts as live for log joins.
func (a Agent) Online() bool {
	return a.Status != AgentOffline
}
