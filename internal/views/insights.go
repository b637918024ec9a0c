package views

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/miradorstack/mirador-console/internal/models"
)

// Insights projects incidents, then anomalies, into display rows. Order is preserved and
// nothing is merged by key.
func Insights(intel models.Intelligence, now time.Time) []models.InsightItem {
	items := make([]models.InsightItem, 0, len(intel.Incidents)+len(intel.Anomalies))
	for idx, inc := range intel.Incidents {
		id := inc.IncidentID
		if id == "" {
			id = "inc-" + strconv.Itoa(idx)
		}
		score := inc.Risk
		if r, ok := intel.Risk[inc.SourceID]; ok && r.Risk != 0 {
			score = r.Risk
		}
		items = append(items, models.InsightItem{
			ID:        id,
			SourceID:  inc.SourceID,
			Severity:  inc.Severity,
			Status:    inc.Status,
			Summary:   inc.Summary,
			Risk:      inc.Risk,
			Score:     math.Round(score*10) / 10,
			Timestamp: now,
		})
	}
	for idx, anom := range intel.Anomalies {
		id := "log-" + strconv.Itoa(idx)
		if anom.SourceID != "" {
			id = "log-" + anom.SourceID + "-" + strconv.Itoa(idx)
		}
		severity, status := "low", "observing"
		if anom.Anomaly {
			severity, status = "high", "open"
		}
		items = append(items, models.InsightItem{
			ID:        id,
			SourceID:  anom.SourceID,
			Severity:  severity,
			Status:    status,
			Summary:   fmt.Sprintf("Error spikes: %s errors", strconv.FormatFloat(anom.ErrorCount, 'f', -1, 64)),
			Risk:      anom.ErrorCount,
			Score:     anom.ErrorCount,
			Timestamp: now,
		})
	}
	return items
}

// Jobs synthesizes one automation job per recommended action, in incident order.
func Jobs(plan models.ControlPlan, now time.Time) []models.AutomationJob {
	jobs := make([]models.AutomationJob, 0)
	for _, inc := range plan.Incidents {
		prefix := inc.IncidentID
		if prefix == "" {
			prefix = "inc"
		}
		for idx, act := range plan.Actions[inc.IncidentID] {
			jobs = append(jobs, models.AutomationJob{
				ID:          prefix + "-" + strconv.Itoa(idx),
				IncidentID:  inc.IncidentID,
				SourceID:    inc.SourceID,
				Name:        firstOf(act.Action, "automation"),
				Description: firstOf(act.Reason, inc.Summary, "Policy derived action"),
				State:       firstOf(inc.Status, "planned"),
				Severity:    inc.Severity,
				UpdatedAt:   now,
			})
		}
	}
	return jobs
}

// RiskRow is one entry of the risk map in stable order.
type RiskRow struct {
	SourceID string `json:"source_id"`
	models.RiskInfo
	Severity string `json:"severity"`
}

// RiskTable lists the risk map sorted by source id.
func RiskTable(risk map[string]models.RiskInfo) []RiskRow {
	ids := make([]string, 0, len(risk))
	for id := range risk {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rows := make([]RiskRow, 0, len(ids))
	for _, id := range ids {
		info := risk[id]
		rows = append(rows, RiskRow{SourceID: id, RiskInfo: info, Severity: models.SeverityLabel(models.UnitRisk(info.Risk))})
	}
	return rows
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
