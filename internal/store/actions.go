package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/miradorstack/mirador-console/internal/models"
	"github.com/miradorstack/mirador-console/internal/transport"
	"github.com/miradorstack/mirador-console/internal/utils"
	"github.com/miradorstack/mirador-console/internal/views"
)

// Busy keys for operator actions.
const (
	ActionControl    = "control"
	ActionAutomation = "automation"
	ActionFeedback   = "feedback"
)

// ControlForm is the operator's control command. Payload, when not blank, must be a
// JSON object; its fields override the named ones.
type ControlForm struct {
	Target  string `json:"target"`
	Action  string `json:"action"`
	Note    string `json:"note"`
	DryRun  bool   `json:"dry_run"`
	Payload string `json:"payload"`
}

// Request converts the form into an executor request.
func (f ControlForm) Request() (models.ControlRequest, error) {
	req := models.ControlRequest{Target: f.Target, Action: f.Action, Note: f.Note, DryRun: f.DryRun}
	if strings.TrimSpace(f.Payload) == "" {
		return req, nil
	}
	var extra any
	if err := json.Unmarshal([]byte(f.Payload), &extra); err != nil {
		return req, fmt.Errorf("parse control payload: %w", err)
	}
	obj, ok := extra.(map[string]any)
	if !ok {
		return req, ErrInvalidPayload
	}
	req.Extra = obj
	return req, nil
}

// SelectAgent selects the agent with identity id and points the log source filter at it.
func (s *Store) SelectAgent(id string) error {
	s.mu.Lock()
	var found *models.Agent
	for _, a := range s.agents {
		if a.Identity() == id {
			agent := a
			found = &agent
			break
		}
	}
	if found == nil {
		s.mu.Unlock()
		return ErrUnknownAgent
	}
	s.selected = found
	s.logFilter.Source = found.ID
	s.mu.Unlock()
	s.publish()
	return nil
}

// SetLogFilter replaces the logs filter. The level is matched upper-cased.
func (s *Store) SetLogFilter(f views.LogFilter) {
	f.Level = strings.ToUpper(strings.TrimSpace(f.Level))
	s.mu.Lock()
	s.logFilter = f
	s.mu.Unlock()
	s.publish()
}

// SetEventSearch sets the free-text term of the overview event list.
func (s *Store) SetEventSearch(term string) {
	s.mu.Lock()
	s.eventSearch = term
	s.mu.Unlock()
	s.publish()
}

// SetAlertFilter replaces the alerts filter.
func (s *Store) SetAlertFilter(f views.AlertFilter) {
	s.mu.Lock()
	s.alertFilter = f
	s.mu.Unlock()
	s.publish()
}

// SetTimelineFilter replaces the timeline filter.
func (s *Store) SetTimelineFilter(f views.TimelineFilter) {
	s.mu.Lock()
	s.timelineFilter = f
	s.mu.Unlock()
	s.publish()
}

// RunAutomation triggers a planned job for real and reloads the plan on success.
func (s *Store) RunAutomation(ctx context.Context, jobID string) (models.ControlResult, error) {
	if s.deps.Control == nil {
		return models.ControlResult{}, ErrNoSource
	}
	done := s.markBusy(ActionAutomation)
	defer done()

	res, err := s.deps.Control.Execute(ctx, models.ControlRequest{JobID: jobID, DryRun: false})
	if err != nil {
		s.actionFailed(ActionAutomation, "Automation run failed", err)
		return models.ControlResult{}, err
	}
	s.notify.NotifySuccess(strings.TrimSpace("Triggered automation " + jobID))
	s.LoadDomain(ctx, DomainAutomation)
	return res, nil
}

// SendControlAction posts the operator's control form.
func (s *Store) SendControlAction(ctx context.Context, form ControlForm) (models.ControlResult, error) {
	if s.deps.Control == nil {
		return models.ControlResult{}, ErrNoSource
	}
	done := s.markBusy(ActionControl)
	defer done()

	req, err := form.Request()
	if err != nil {
		s.actionFailed(ActionControl, "Failed to send control", err)
		return models.ControlResult{}, err
	}
	res, err := s.deps.Control.Execute(ctx, req)
	if err != nil {
		s.actionFailed(ActionControl, "Failed to send control", err)
		return models.ControlResult{}, err
	}

	s.mu.Lock()
	if !s.closed {
		s.lastControl = &res
	}
	s.mu.Unlock()
	s.notify.NotifySuccess("Sent control: " + form.Action)
	return res, nil
}

// SubmitFeedback posts an operator verdict on an incident.
func (s *Store) SubmitFeedback(ctx context.Context, fb models.Feedback) (map[string]any, error) {
	if s.deps.Feedback == nil {
		return nil, ErrNoSource
	}
	done := s.markBusy(ActionFeedback)
	defer done()

	ack, err := s.deps.Feedback.Submit(ctx, fb)
	if err != nil {
		s.actionFailed(ActionFeedback, "Failed to submit feedback", err)
		return nil, err
	}
	s.notify.NotifySuccess("Feedback recorded for " + fb.IncidentID)
	return ack, nil
}

func (s *Store) markBusy(action string) func() {
	s.mu.Lock()
	s.busy[action]++
	s.mu.Unlock()
	s.publish()
	return func() {
		s.mu.Lock()
		s.busy[action]--
		s.mu.Unlock()
		s.publish()
	}
}

func (s *Store) actionFailed(action, fallback string, err error) {
	msg := fallback
	var httpErr *transport.HTTPError
	switch {
	case errors.As(err, &httpErr) && httpErr.Message != "":
		msg = httpErr.Message
	case err != nil && err.Error() != "":
		msg = err.Error()
	}
	s.logger.Warn("operator action failed",
		slog.String("action", action),
		slog.Any("error", utils.NewAppError("store."+action, msg, err)),
	)
	s.notify.NotifyError(msg)
}
