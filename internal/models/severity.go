package models

// Severity labels produced from a risk score.
const (
	SeverityCritical = "Critical"
	SeverityHigh     = "High"
	SeverityModerate = "Moderate"
	SeverityNormal   = "Normal"
)

// Tone is a presentation-neutral classification used for badges and status pills.
type Tone string

const (
	ToneCritical Tone = "critical"
	ToneWarning  Tone = "warning"
	ToneOK       Tone = "ok"
	ToneNeutral  Tone = "neutral"
)

// SeverityLabel classifies a 0-1 score. Boundaries are strict: 0.9 itself is High.
func SeverityLabel(score float64) string {
	switch {
	case score > 0.9:
		return SeverityCritical
	case score > 0.6:
		return SeverityHigh
	case score > 0.3:
		return SeverityModerate
	default:
		return SeverityNormal
	}
}

// BadgeTone maps a 0-1 score onto a tone using the severity thresholds.
func BadgeTone(score float64) Tone {
	switch SeverityLabel(score) {
	case SeverityCritical:
		return ToneCritical
	case SeverityHigh:
		return ToneWarning
	default:
		return ToneOK
	}
}

// UnitRisk folds a 0-100 risk onto the 0-1 scale; values already in [0,1] pass through.
func UnitRisk(risk float64) float64 {
	if risk > 1 {
		risk /= 100
	}
	if risk < 0 {
		return 0
	}
	if risk > 1 {
		return 1
	}
	return risk
}
