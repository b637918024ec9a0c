package views

import (
	"fmt"
	"math"

	"github.com/miradorstack/mirador-console/internal/models"
)

// System status labels derived from the error rate.
const (
	StatusIncident = "Incident"
	StatusDegraded = "Degraded"
	StatusOK       = "OK"
)

// SystemStatus classifies the fleet error rate.
func SystemStatus(errorRate float64) string {
	switch {
	case errorRate > 0.3:
		return StatusIncident
	case errorRate > 0.1:
		return StatusDegraded
	default:
		return StatusOK
	}
}

// LatencyTone grades a backend round trip in milliseconds.
func LatencyTone(ms float64) models.Tone {
	switch {
	case ms < 150:
		return models.ToneOK
	case ms < 400:
		return models.ToneWarning
	default:
		return models.ToneCritical
	}
}

// LatencyLabel renders milliseconds, or "n/a" before the first measurement.
func LatencyLabel(ms float64) string {
	if ms <= 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.0f ms", ms)
}

// FormatPercent renders a 0-1 ratio as a whole percentage.
func FormatPercent(v float64) string {
	if math.IsNaN(v) {
		v = 0
	}
	return fmt.Sprintf("%d%%", int(math.Round(v*100)))
}

// AgentTone maps agent status onto a badge tone.
func AgentTone(status models.AgentStatus) models.Tone {
	switch status {
	case models.AgentHealthy:
		return models.ToneOK
	case models.AgentDegraded:
		return models.ToneWarning
	default:
		return models.ToneCritical
	}
}

// LevelTone maps a log level onto a badge tone; unknown levels are neutral.
func LevelTone(level string) models.Tone {
	switch level {
	case models.LevelCritical, models.LevelError:
		return models.ToneCritical
	case models.LevelWarning:
		return models.ToneWarning
	default:
		return models.ToneNeutral
	}
}

// LevelTones maps each of levels onto its badge tone.
func LevelTones(levels []string) map[string]models.Tone {
	tones := make(map[string]models.Tone, len(levels))
	for _, lvl := range levels {
		tones[lvl] = LevelTone(lvl)
	}
	return tones
}
