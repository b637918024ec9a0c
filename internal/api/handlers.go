package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-console/internal/models"
	"github.com/miradorstack/mirador-console/internal/store"
	"github.com/miradorstack/mirador-console/internal/views"
)

var errNilRequest = errors.New("request is nil")

// ToStruct renders v through its JSON encoding into a protobuf Struct. Values that
// encode to null yield an empty Struct.
func ToStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	out := &structpb.Struct{}
	if bytes.Equal(raw, []byte("null")) {
		return out, nil
	}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("convert %T to struct: %w", v, err)
	}
	return out, nil
}

// FromStruct decodes req into out through its JSON encoding.
func FromStruct(req *structpb.Struct, out any) error {
	if req == nil {
		return errNilRequest
	}
	raw, err := json.Marshal(req.AsMap())
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// ToProtoSnapshot converts a store snapshot for the wire.
func ToProtoSnapshot(snap store.Snapshot) (*structpb.Struct, error) {
	return ToStruct(snap)
}

// FromProtoTab reads the required "tab" field.
func FromProtoTab(req *structpb.Struct) (store.Tab, error) {
	var in struct {
		Tab string `json:"tab"`
	}
	if err := FromStruct(req, &in); err != nil {
		return "", err
	}
	if strings.TrimSpace(in.Tab) == "" {
		return "", fmt.Errorf("tab is required")
	}
	return store.ParseTab(in.Tab)
}

// FromProtoRefresh reads the optional "domain" field; blank means the overview.
func FromProtoRefresh(req *structpb.Struct) (string, error) {
	if req == nil {
		return "", nil
	}
	var in struct {
		Domain string `json:"domain"`
	}
	if err := FromStruct(req, &in); err != nil {
		return "", err
	}
	return strings.TrimSpace(in.Domain), nil
}

// FromProtoSelectAgent reads the required agent "id".
func FromProtoSelectAgent(req *structpb.Struct) (string, error) {
	var in struct {
		ID string `json:"id"`
	}
	if err := FromStruct(req, &in); err != nil {
		return "", err
	}
	if in.ID == "" {
		return "", fmt.Errorf("id is required")
	}
	return in.ID, nil
}

// FromProtoLogFilter maps a filter document onto views.LogFilter.
func FromProtoLogFilter(req *structpb.Struct) (views.LogFilter, error) {
	var f views.LogFilter
	if err := FromStruct(req, &f); err != nil {
		return views.LogFilter{}, err
	}
	return f, nil
}

// FromProtoEventSearch reads the "term" field; an absent term clears the search.
func FromProtoEventSearch(req *structpb.Struct) (string, error) {
	var in struct {
		Term string `json:"term"`
	}
	if err := FromStruct(req, &in); err != nil {
		return "", err
	}
	return in.Term, nil
}

// FromProtoAlertFilter maps a filter document onto views.AlertFilter.
func FromProtoAlertFilter(req *structpb.Struct) (views.AlertFilter, error) {
	var f views.AlertFilter
	if err := FromStruct(req, &f); err != nil {
		return views.AlertFilter{}, err
	}
	return f, nil
}

// FromProtoTimelineFilter maps a filter document onto views.TimelineFilter.
func FromProtoTimelineFilter(req *structpb.Struct) (views.TimelineFilter, error) {
	var f views.TimelineFilter
	if err := FromStruct(req, &f); err != nil {
		return views.TimelineFilter{}, err
	}
	return f, nil
}

// FromProtoRunAutomation reads the required "job_id".
func FromProtoRunAutomation(req *structpb.Struct) (string, error) {
	var in struct {
		JobID string `json:"job_id"`
	}
	if err := FromStruct(req, &in); err != nil {
		return "", err
	}
	if in.JobID == "" {
		return "", fmt.Errorf("job_id is required")
	}
	return in.JobID, nil
}

// FromProtoControlForm maps a control document onto the store form. "payload" may be
// a JSON text or an inline object.
func FromProtoControlForm(req *structpb.Struct) (store.ControlForm, error) {
	var in struct {
		Target  string          `json:"target"`
		Action  string          `json:"action"`
		Note    string          `json:"note"`
		DryRun  bool            `json:"dry_run"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := FromStruct(req, &in); err != nil {
		return store.ControlForm{}, err
	}
	form := store.ControlForm{Target: in.Target, Action: in.Action, Note: in.Note, DryRun: in.DryRun}
	payload := bytes.TrimSpace(in.Payload)
	switch {
	case len(payload) == 0 || bytes.Equal(payload, []byte("null")):
	case payload[0] == '"':
		if err := json.Unmarshal(payload, &form.Payload); err != nil {
			return store.ControlForm{}, fmt.Errorf("decode payload: %w", err)
		}
	default:
		form.Payload = string(payload)
	}
	return form, nil
}

// FromProtoFeedback maps a feedback document; incident_id is required.
func FromProtoFeedback(req *structpb.Struct) (models.Feedback, error) {
	var fb models.Feedback
	if err := FromStruct(req, &fb); err != nil {
		return models.Feedback{}, err
	}
	if strings.TrimSpace(fb.IncidentID) == "" {
		return models.Feedback{}, fmt.Errorf("incident_id is required")
	}
	return fb, nil
}
