package views

import (
	"time"

	"github.com/miradorstack/mirador-console/internal/models"
	"github.com/miradorstack/mirador-console/internal/utils"
)

// AgentView is an agent joined with its risk-map entry and display labels.
type AgentView struct {
	models.Agent
	Score        float64     `json:"score"`
	Severity     string      `json:"severity"`
	Tone         models.Tone `json:"tone"`
	StatusTone   models.Tone `json:"status_tone"`
	LastSeenText string      `json:"last_seen_text"`
}

// JoinAgents overlays risk and errors from the risk map, keyed by agent identity, and
// labels each agent with the uniform severity thresholds.
func JoinAgents(agents []models.Agent, risk map[string]models.RiskInfo, now time.Time) []AgentView {
	views := make([]AgentView, 0, len(agents))
	for _, a := range agents {
		if info, ok := risk[a.Identity()]; ok {
			a.Risk = info.Risk
			a.Errors = info.Errors
		}
		score := models.UnitRisk(a.Risk)
		views = append(views, AgentView{
			Agent:        a,
			Score:        score,
			Severity:     models.SeverityLabel(score),
			Tone:         models.BadgeTone(score),
			StatusTone:   AgentTone(a.Status),
			LastSeenText: utils.SinceText(a.LastSeen, now),
		})
	}
	return views
}
