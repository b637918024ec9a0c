package models

// ControlRequest is posted to the control executor. Extra carries free-form fields
// from the operator payload and wins over the named fields on conflict.
type ControlRequest struct {
	Target string
	Action string
	Note   string
	DryRun bool
	JobID  string
	Extra  map[string]any
}

// Body renders the request as the JSON object the executor expects. Job triggers
// carry only job_id and dry_run; operator commands carry target, action and note.
func (r ControlRequest) Body() map[string]any {
	body := map[string]any{
		"dry_run": r.DryRun,
	}
	if r.JobID != "" {
		body["job_id"] = r.JobID
	} else {
		body["target"] = r.Target
		body["action"] = r.Action
		body["note"] = r.Note
	}
	for k, v := range r.Extra {
		body[k] = v
	}
	return body
}

// ControlResult is the executor response.
type ControlResult struct {
	Mode            string              `json:"mode"`
	JobID           string              `json:"job_id,omitempty"`
	ExecutedActions map[string][]Action `json:"executed_actions,omitempty"`
	Raw             map[string]any      `json:"raw,omitempty"`
}

// Feedback captures an operator's verdict on an incident recommendation.
type Feedback struct {
	IncidentID        string  `json:"incident_id"`
	SourceID          string  `json:"source_id"`
	Accepted          bool    `json:"accepted"`
	Correct           bool    `json:"correct"`
	Action            string  `json:"action"`
	Notes             string  `json:"notes"`
	Severity          string  `json:"severity"`
	RecommendedAction string  `json:"recommended_action"`
	Risk              float64 `json:"risk"`
}
