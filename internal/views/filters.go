// Package views computes the derived, read-only projections the console exposes. Every
// function here is pure over its inputs.
package views

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/miradorstack/mirador-console/internal/models"
)

// SelectedLogPreview is how many log lines the selected agent panel shows.
const SelectedLogPreview = 6

// LogFilter narrows the logs view. Active fields are ANDed together.
type LogFilter struct {
	Level    string `json:"level"`
	Source   string `json:"source"`
	Term     string `json:"term"`
	LiveOnly bool   `json:"live_only"`
}

// AlertFilter narrows the alerts view.
type AlertFilter struct {
	Severity string `json:"severity"`
	Search   string `json:"search"`
}

// TimelineFilter narrows the timeline view.
type TimelineFilter struct {
	Type   string `json:"type"`
	Search string `json:"search"`
}

// FilterEvents keeps events where term occurs, case-insensitively, in any of level,
// message, source, or raw header. An empty term keeps everything.
func FilterEvents(events []models.LogEvent, term string) []models.LogEvent {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]models.LogEvent, 0, len(events))
	for _, ev := range events {
		if term == "" || matchesTerm(ev, term) {
			out = append(out, ev)
		}
	}
	return out
}

func matchesTerm(ev models.LogEvent, term string) bool {
	for _, field := range []string{ev.LogLevel, ev.LogMessage, ev.SourceID, ev.RawHeader()} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// FilterLogs applies the level, source, and term filters. With LiveOnly set, events whose
// source is not an online agent are dropped, and nothing is shown while no agent is online.
func FilterLogs(events []models.LogEvent, agents []models.Agent, f LogFilter) []models.LogEvent {
	var online map[string]struct{}
	if f.LiveOnly {
		online = OnlineAgents(agents)
		if len(online) == 0 {
			return []models.LogEvent{}
		}
	}
	level := strings.ToUpper(strings.TrimSpace(f.Level))
	term := strings.ToLower(strings.TrimSpace(f.Term))

	out := make([]models.LogEvent, 0, len(events))
	for _, ev := range events {
		if online != nil {
			if _, ok := online[ev.SourceID]; !ok {
				continue
			}
		}
		if level != "" && ev.LogLevel != level {
			continue
		}
		if f.Source != "" && !strings.Contains(ev.SourceID, f.Source) {
			continue
		}
		if term != "" && !matchesTerm(ev, term) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// OnlineAgents is the identity set of listed agents that are not offline.
func OnlineAgents(agents []models.Agent) map[string]struct{} {
	set := make(map[string]struct{}, len(agents))
	for _, a := range agents {
		if id := a.Identity(); id != "" && a.Online() {
			set[id] = struct{}{}
		}
	}
	return set
}

// LevelCounts counts events per known level; unknown levels are not counted.
func LevelCounts(events []models.LogEvent) map[string]int {
	counts := make(map[string]int, len(models.KnownLevels))
	for _, lvl := range models.KnownLevels {
		counts[lvl] = 0
	}
	for _, ev := range events {
		if _, ok := counts[ev.LogLevel]; ok {
			counts[ev.LogLevel]++
		}
	}
	return counts
}

// SelectedAgentLogs returns the first events whose source contains agentID.
func SelectedAgentLogs(events []models.LogEvent, agentID string) []models.LogEvent {
	out := make([]models.LogEvent, 0, SelectedLogPreview)
	if agentID == "" {
		return out
	}
	for _, ev := range events {
		if strings.Contains(ev.SourceID, agentID) {
			out = append(out, ev)
			if len(out) == SelectedLogPreview {
				break
			}
		}
	}
	return out
}

// alertLevels are the severities the alerts page counts.
var alertLevels = []string{models.LevelCritical, models.LevelError, models.LevelWarning, models.LevelInfo}

// FilterAlerts applies the exact severity match and the message/source search.
func FilterAlerts(alerts []models.Alert, f AlertFilter) []models.Alert {
	severity := strings.ToUpper(strings.TrimSpace(f.Severity))
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]models.Alert, 0, len(alerts))
	for _, a := range alerts {
		if severity != "" && a.Severity != severity {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(a.Message), search) &&
			!strings.Contains(strings.ToLower(a.SourceID), search) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// AlertCounts counts alerts per severity.
func AlertCounts(alerts []models.Alert) map[string]int {
	counts := make(map[string]int, len(alertLevels))
	for _, lvl := range alertLevels {
		counts[lvl] = 0
	}
	for _, a := range alerts {
		if _, ok := counts[a.Severity]; ok {
			counts[a.Severity]++
		}
	}
	return counts
}

// TimelineEntry is an event plus its one-line summary.
type TimelineEntry struct {
	models.LogEvent
	Summary string `json:"summary"`
}

// Timeline filters by exact event type and by a search over the event's JSON form.
func Timeline(events []models.LogEvent, f TimelineFilter) []TimelineEntry {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]TimelineEntry, 0, len(events))
	for _, ev := range events {
		if f.Type != "" && ev.EventType != f.Type {
			continue
		}
		if search != "" {
			encoded, err := json.Marshal(ev)
			if err != nil || !strings.Contains(strings.ToLower(string(encoded)), search) {
				continue
			}
		}
		out = append(out, TimelineEntry{LogEvent: ev, Summary: TimelineSummary(ev)})
	}
	return out
}

// TimelineSummary describes an event by its type.
func TimelineSummary(ev models.LogEvent) string {
	switch ev.EventType {
	case "metric":
		return fmt.Sprintf("%s: %v", ev.MetricName, ev.MetricValue)
	case "alert":
		return "Alert severity " + ev.AlertSeverity
	case "log":
		if ev.LogMessage != "" {
			return ev.LogMessage
		}
		return "Log entry"
	case "heartbeat":
		return "Heartbeat received"
	case "automation":
		return "Automation action executed"
	default:
		return "Event"
	}
}
