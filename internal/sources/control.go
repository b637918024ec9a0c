package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/miradorstack/mirador-console/internal/models"
	"github.com/miradorstack/mirador-console/internal/transport"
)

const (
	// DomainControl names the control executor adapter in telemetry.
	DomainControl = "control"
	// DomainFeedback names the feedback adapter in telemetry.
	DomainFeedback = "feedback"
)

// ControlAdapter posts control commands and automation triggers.
type ControlAdapter struct {
	endpoint
}

// NewControlAdapter builds the control adapter.
func NewControlAdapter(client Requester, candidates []string, logger *slog.Logger) *ControlAdapter {
	return &ControlAdapter{endpoint: newEndpoint(client, DomainControl, candidates, logger)}
}

// Execute posts req. The fallback path is only tried when the primary route is absent
// (404 or 405); any other failure propagates, so a command is never sent twice.
func (a *ControlAdapter) Execute(ctx context.Context, req models.ControlRequest) (models.ControlResult, error) {
	return fetchWithFallback(ctx, a.endpoint, a.post(req.Body()), normalizeControl, routeMissing)
}

func routeMissing(err error) bool {
	switch transport.StatusCode(err) {
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return true
	default:
		return false
	}
}

func normalizeControl(path string, raw json.RawMessage) (models.ControlResult, error) {
	payload, err := decode(raw)
	if err != nil {
		return models.ControlResult{}, &NormalizationError{Domain: DomainControl, Path: path, Reason: err.Error()}
	}
	obj := object(payload)
	if obj == nil {
		return models.ControlResult{Raw: map[string]any{}}, nil
	}
	return models.ControlResult{
		Mode:            text(obj["mode"]),
		JobID:           text(obj["job_id"]),
		ExecutedActions: parseActionMap(obj["executed_actions"]),
		Raw:             obj,
	}, nil
}

// FeedbackAdapter posts operator verdicts on recommendations.
type FeedbackAdapter struct {
	endpoint
}

// NewFeedbackAdapter builds the feedback adapter.
func NewFeedbackAdapter(client Requester, candidates []string, logger *slog.Logger) *FeedbackAdapter {
	return &FeedbackAdapter{endpoint: newEndpoint(client, DomainFeedback, candidates, logger)}
}

// Submit posts fb and returns the backend acknowledgement.
func (a *FeedbackAdapter) Submit(ctx context.Context, fb models.Feedback) (map[string]any, error) {
	if fb.IncidentID == "" {
		return nil, fmt.Errorf("feedback requires an incident id")
	}
	return fetchWithFallback(ctx, a.endpoint, a.post(fb), func(path string, raw json.RawMessage) (map[string]any, error) {
		payload, err := decode(raw)
		if err != nil {
			return nil, &NormalizationError{Domain: DomainFeedback, Path: path, Reason: err.Error()}
		}
		if obj := object(payload); obj != nil {
			return obj, nil
		}
		return map[string]any{}, nil
	}, routeMissing)
}
