package models

// LogLevel values the console styles explicitly; others pass through untouched.
const (
	LevelCritical = "CRITICAL"
	LevelError    = "ERROR"
	LevelWarning  = "WARNING"
	LevelInfo     = "INFO"
	LevelDebug    = "DEBUG"
)

// KnownLevels is the display order for level counters.
var KnownLevels = []string{LevelCritical, LevelError, LevelWarning, LevelInfo, LevelDebug}

// LogEvent is a normalized log or timeline event.
type LogEvent struct {
	ID            string         `json:"id"`
	Timestamp     string         `json:"timestamp"`
	SourceID      string         `json:"source_id"`
	LogLevel      string         `json:"log_level"`
	LogMessage    string         `json:"log_message"`
	EventType     string         `json:"event_type"`
	MetricName    string         `json:"metric_name,omitempty"`
	MetricValue   float64        `json:"metric_value,omitempty"`
	AlertSeverity string         `json:"alert_severity,omitempty"`
	Extras        map[string]any `json:"extras"`
}

// RawHeader returns extras.raw_header as text, or "".
func (e LogEvent) RawHeader() string {
	if e.Extras == nil {
		return ""
	}
	if v, ok := e.Extras["raw_header"].(string); ok {
		return v
	}
	return ""
}

// Alert is a normalized alert from the alerts feed.
type Alert struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	SourceID  string `json:"source_id"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
}
