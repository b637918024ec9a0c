package sources

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-console/internal/models"
	"github.com/miradorstack/mirador-console/internal/transport"
	"github.com/miradorstack/mirador-console/internal/utils"
)

type reply struct {
	body string
	err  error
}

type fakeRequester struct {
	mu      sync.Mutex
	replies map[string]reply
	calls   []string
	bodies  []any
	queries map[string]string
}

func newFake(replies map[string]reply) *fakeRequester {
	return &fakeRequester{replies: replies, queries: map[string]string{}}
}

func (f *fakeRequester) Do(_ context.Context, method, path string, opts transport.RequestOptions) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method+" "+path)
	f.bodies = append(f.bodies, opts.Body)
	f.queries[path] = opts.Query.Encode()
	r, ok := f.replies[path]
	if !ok {
		return nil, &transport.HTTPError{Status: http.StatusNotFound, Message: "Not Found"}
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.body == "" {
		return nil, nil
	}
	return json.RawMessage(r.body), nil
}

func serverError(msg string) error {
	return &transport.HTTPError{Status: http.StatusInternalServerError, Message: msg}
}

func TestMetricsKeyedStats(t *testing.T) {
	snap, err := NormalizeMetrics("/m", json.RawMessage(`{"cpu_usage:edge-1":{"avg":0.5,"min":0.2,"max":0.9,"count":4}}`))
	require.NoError(t, err)
	require.Len(t, snap.Rows, 1)
	row := snap.Rows[0]
	assert.Equal(t, "cpu_usage:edge-1", row.Key)
	assert.Equal(t, "cpu_usage", row.Name)
	assert.Equal(t, "edge-1", row.Source)
	assert.Equal(t, 0.5, row.Value)
	assert.Equal(t, 0.2, row.Min)
	assert.Equal(t, 0.9, row.Max)
	assert.Equal(t, 4, row.Count)
}

func TestMetricsGaugesAndCoercion(t *testing.T) {
	snap, err := NormalizeMetrics("/m", json.RawMessage(`{"cpu_usage":0.42,"memory_usage":null,"error_rate":"n/a","log_rate":"0.3"}`))
	require.NoError(t, err)
	values := snap.Values()
	assert.Equal(t, 0.42, values["cpu_usage"])
	assert.Equal(t, 0.0, values["memory_usage"])
	assert.Equal(t, 0.0, values["error_rate"])
	assert.Equal(t, 0.3, values["log_rate"])
}

func TestMetricsRecords(t *testing.T) {
	raw := `{"metrics":[{"metric_name":"cpu_usage","source_id":"a","metric_value":0.6,"history":[0.2,0.4,0.6]},{"metric_name":"cpu_usage","source_id":"a","metric_value":1},{"source_id":"no-name"}]}`
	snap, err := NormalizeMetrics("/m", json.RawMessage(raw))
	require.NoError(t, err)
	require.Len(t, snap.Rows, 1)
	row := snap.Rows[0]
	assert.Equal(t, "cpu_usage:a", row.Key)
	assert.Equal(t, 0.6, row.Value)
	assert.Equal(t, []float64{0.2, 0.4, 0.6}, row.History)
	assert.Equal(t, 0.2, row.Min)
	assert.Equal(t, 0.6, row.Max)
	assert.Equal(t, 3, row.Count)
}

func TestMetricsRejectsScalar(t *testing.T) {
	_, err := NormalizeMetrics("/m", json.RawMessage(`"oops"`))
	var normErr *NormalizationError
	assert.True(t, errors.As(err, &normErr))
}

func TestMetricsFallbackOnPrimaryError(t *testing.T) {
	fake := newFake(map[string]reply{
		"/api/analytics/metrics/summary": {err: serverError("down")},
		"/analytics/summary":             {body: `{"cpu_usage":0.1}`},
	})
	adapter := NewMetricsAdapter(fake, []string{"/api/analytics/metrics/summary", "/analytics/summary"}, utils.DiscardLogger())
	snap, err := adapter.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.1, snap.Values()["cpu_usage"])
	assert.Equal(t, []string{"GET /api/analytics/metrics/summary", "GET /analytics/summary"}, fake.calls)
}

func TestFallbackErrorPropagates(t *testing.T) {
	fake := newFake(map[string]reply{
		"/primary":  {err: serverError("primary broke")},
		"/fallback": {err: serverError("fallback broke")},
	})
	adapter := NewMetricsAdapter(fake, []string{"/primary", "/fallback"}, utils.DiscardLogger())
	_, err := adapter.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, "fallback broke", err.Error())
	assert.Len(t, fake.calls, 2)
}

func TestNoFallbackConfigured(t *testing.T) {
	fake := newFake(map[string]reply{"/only": {err: serverError("boom")}})
	adapter := NewMetricsAdapter(fake, []string{"/only"}, utils.DiscardLogger())
	_, err := adapter.Fetch(context.Background())
	assert.EqualError(t, err, "boom")
	assert.Len(t, fake.calls, 1)
}

func TestEventsNormalization(t *testing.T) {
	raw := `{"events":[
		{"timestamp":"2024-05-01T10:00:00Z","source_id":"edge","log_level":"error","log_message":"disk full","extras":{"raw_header":"kern"}},
		{"event_type":"metric","metric_name":"cpu_usage","metric_value":0.9},
		{"id":"evt-9","log_level":"notice"},
		"garbage"
	]}`
	events, err := NormalizeEvents("/e", json.RawMessage(raw))
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, "2024-05-01T10:00:00Z-edge", events[0].ID)
	assert.Equal(t, "ERROR", events[0].LogLevel)
	assert.Equal(t, "log", events[0].EventType)
	assert.Equal(t, "kern", events[0].RawHeader())

	assert.Equal(t, "1-unknown", events[1].ID)
	assert.Equal(t, "unknown", events[1].SourceID)
	assert.Equal(t, "METRIC", events[1].LogLevel)
	assert.Equal(t, "cpu_usage", events[1].LogMessage)

	assert.Equal(t, "evt-9", events[2].ID)
	assert.Equal(t, "NOTICE", events[2].LogLevel)
}

func TestEventsNormalizationIsIdempotent(t *testing.T) {
	raw := json.RawMessage(`[{"source_id":"a","log_message":"x"},{"log_level":"warning"}]`)
	first, err := NormalizeEvents("/e", raw)
	require.NoError(t, err)
	second, err := NormalizeEvents("/e", raw)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEventsAdapterSendsLimitAndFallsBackOnShape(t *testing.T) {
	fake := newFake(map[string]reply{
		"/api/events/recent": {body: `{"unexpected":true}`},
		"/api/logs/recent":   {body: `{"logs":[{"log_message":"ok"}]}`},
	})
	adapter := NewEventsAdapter(fake, []string{"/api/events/recent", "/api/logs/recent"}, 0, utils.DiscardLogger())
	events, err := adapter.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "limit=360", fake.queries["/api/events/recent"])
	assert.Equal(t, "limit=360", fake.queries["/api/logs/recent"])
}

func TestAgentsRecordsDedupe(t *testing.T) {
	raw := `[{"id":"a","status":"Healthy","latency":"12","risk":null},{"id":"a","status":"offline"},{"name":"b","status":"weird"},{}]`
	agents, err := NormalizeAgents("/a", json.RawMessage(raw), time.Now())
	require.NoError(t, err)
	require.Len(t, agents, 3)
	assert.Equal(t, models.AgentHealthy, agents[0].Status)
	assert.Equal(t, 12.0, agents[0].Latency)
	assert.Equal(t, 0.0, agents[0].Risk)
	assert.Equal(t, "b", agents[1].ID)
	assert.Equal(t, models.AgentUnknown, agents[1].Status)
	assert.Equal(t, "agent", agents[2].ID)
}

func TestAgentsFromRiskMap(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	raw := `{"db":{"risk":70,"errors":5},"api":{"risk":30},"web":{"risk":"bad"}}`
	agents, err := NormalizeAgents("/risk", json.RawMessage(raw), now)
	require.NoError(t, err)
	require.Len(t, agents, 3)

	byID := map[string]models.Agent{}
	for _, a := range agents {
		byID[a.ID] = a
	}
	assert.Equal(t, models.AgentOffline, byID["db"].Status)
	assert.Equal(t, 28.0, byID["db"].Latency)
	assert.Equal(t, 5.0, byID["db"].Errors)
	assert.Equal(t, models.AgentDegraded, byID["api"].Status)
	assert.Equal(t, models.AgentHealthy, byID["web"].Status)
	assert.Equal(t, 10.0, byID["web"].Latency)
	assert.Equal(t, "2024-05-01T12:00:00Z", byID["web"].LastSeen)
}

func TestPlanFallbackOnMissingIncidents(t *testing.T) {
	fake := newFake(map[string]reply{
		"/api/control/plan": {body: `{"actions":{}}`},
		"/console/plan":     {body: `{"incidents":[{"incident_id":"inc-1","source_id":"db","status":"open"}],"actions":{"inc-1":[{"action":"restart","reason":"oom"},"scale"]}}`},
	})
	adapter := NewPlanAdapter(fake, []string{"/api/control/plan", "/console/plan"}, utils.DiscardLogger())
	plan, err := adapter.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, plan.Incidents, 1)
	require.Len(t, plan.Actions["inc-1"], 2)
	assert.Equal(t, "restart", plan.Actions["inc-1"][0].Action)
	assert.Equal(t, "scale", plan.Actions["inc-1"][1].Action)
	assert.Equal(t, []string{"GET /api/control/plan", "GET /console/plan"}, fake.calls)
}

func TestPlanMissingIncidentsEverywhere(t *testing.T) {
	fake := newFake(map[string]reply{
		"/p": {body: `{}`},
		"/f": {body: `[]`},
	})
	adapter := NewPlanAdapter(fake, []string{"/p", "/f"}, utils.DiscardLogger())
	_, err := adapter.Fetch(context.Background())
	var normErr *NormalizationError
	require.True(t, errors.As(err, &normErr))
	assert.Equal(t, "/f", normErr.Path)
}

func TestIntelligenceConcurrentFetch(t *testing.T) {
	fake := newFake(map[string]reply{
		"/api/intelligence/overview": {body: `{"incidents":[{"incident_id":"i1","source_id":"db","risk":40}],"risk":{"db":{"risk":82.5,"errors":3,"metric_anomalies":2}}}`},
		"/api/analytics/anomalies":   {body: `[{"source_id":"db","error_count":7,"anomaly":true}]`},
	})
	adapter := NewIntelligenceAdapter(fake, []string{"/api/intelligence/overview"}, []string{"/api/analytics/anomalies"}, utils.DiscardLogger())
	intel, err := adapter.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, intel.Incidents, 1)
	require.Len(t, intel.Anomalies, 1)
	assert.Equal(t, 82.5, intel.Risk["db"].Risk)
	assert.Equal(t, 2.0, intel.Risk["db"].Anomalies)
	assert.Equal(t, 7.0, intel.Anomalies[0].ErrorCount)
}

func TestIntelligenceFailsWhenAnySideFails(t *testing.T) {
	fake := newFake(map[string]reply{
		"/api/intelligence/overview": {body: `{"incidents":[]}`},
		"/api/analytics/anomalies":   {err: serverError("anomaly engine offline")},
	})
	adapter := NewIntelligenceAdapter(fake, []string{"/api/intelligence/overview"}, []string{"/api/analytics/anomalies"}, utils.DiscardLogger())
	_, err := adapter.Fetch(context.Background())
	assert.EqualError(t, err, "anomaly engine offline")
}

func TestIntelligenceEmptyOverviewBody(t *testing.T) {
	fake := newFake(map[string]reply{
		"/api/intelligence/overview": {body: ""},
		"/api/analytics/anomalies":   {body: `[]`},
	})
	adapter := NewIntelligenceAdapter(fake, []string{"/api/intelligence/overview"}, []string{"/api/analytics/anomalies"}, utils.DiscardLogger())
	intel, err := adapter.Fetch(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, intel.Incidents)
	assert.Empty(t, intel.Incidents)
	assert.Empty(t, intel.Risk)
	assert.Empty(t, intel.Anomalies)

	_, err = normalizeOverview("/api/intelligence/overview", json.RawMessage(`[1, 2]`))
	var nerr *NormalizationError
	assert.ErrorAs(t, err, &nerr)
}

func TestAlertsNormalization(t *testing.T) {
	alerts, err := NormalizeAlerts("/alerts", json.RawMessage(`{"alerts":[{"severity":"critical","message":"disk","source_id":"db"},{"log_message":"fallback"}]}`))
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "CRITICAL", alerts[0].Severity)
	assert.Equal(t, "0-db", alerts[0].ID)
	assert.Equal(t, "INFO", alerts[1].Severity)
	assert.Equal(t, "fallback", alerts[1].Message)
	assert.Equal(t, "unknown", alerts[1].SourceID)
}

func TestControlFallbackOnlyWhenRouteMissing(t *testing.T) {
	fake := newFake(map[string]reply{
		"/api/control/execute": {err: &transport.HTTPError{Status: http.StatusMethodNotAllowed, Message: "Method Not Allowed"}},
		"/control/execute":     {body: `{"mode":"executed","job_id":"inc-1-0"}`},
	})
	adapter := NewControlAdapter(fake, []string{"/api/control/execute", "/control/execute"}, utils.DiscardLogger())
	res, err := adapter.Execute(context.Background(), models.ControlRequest{JobID: "inc-1-0"})
	require.NoError(t, err)
	assert.Equal(t, "executed", res.Mode)
	assert.Equal(t, map[string]any{"dry_run": false, "job_id": "inc-1-0"}, fake.bodies[1])

	fake = newFake(map[string]reply{
		"/api/control/execute": {err: serverError("executor crashed")},
		"/control/execute":     {body: `{}`},
	})
	adapter = NewControlAdapter(fake, []string{"/api/control/execute", "/control/execute"}, utils.DiscardLogger())
	_, err = adapter.Execute(context.Background(), models.ControlRequest{Target: "db", Action: "restart"})
	assert.EqualError(t, err, "executor crashed")
	assert.Len(t, fake.calls, 1)
}

func TestFeedbackSubmit(t *testing.T) {
	fake := newFake(map[string]reply{"/api/feedback": {body: `{"status":"recorded"}`}})
	adapter := NewFeedbackAdapter(fake, []string{"/api/feedback"}, utils.DiscardLogger())
	ack, err := adapter.Submit(context.Background(), models.Feedback{IncidentID: "inc-1", Accepted: true})
	require.NoError(t, err)
	assert.Equal(t, "recorded", ack["status"])

	_, err = adapter.Submit(context.Background(), models.Feedback{})
	assert.Error(t, err)
}

func TestNumberCoercion(t *testing.T) {
	assert.Equal(t, 0.0, number(nil))
	assert.Equal(t, 0.0, number(true))
	assert.Equal(t, 0.0, number("NaN"))
	assert.Equal(t, 0.0, number("+Inf"))
	assert.Equal(t, 0.0, number(map[string]any{}))
	assert.Equal(t, 1.5, number(json.Number("1.5")))
	assert.Equal(t, 2.0, number(" 2 "))
}
