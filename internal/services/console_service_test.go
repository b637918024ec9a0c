package services

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-console/internal/api"
	"github.com/miradorstack/mirador-console/internal/config"
	"github.com/miradorstack/mirador-console/internal/sources"
	"github.com/miradorstack/mirador-console/internal/store"
	"github.com/miradorstack/mirador-console/internal/transport"
	"github.com/miradorstack/mirador-console/internal/utils"
)

// backend serves canned payloads for every default endpoint and records posts.
type backend struct {
	mu    sync.Mutex
	posts map[string][]map[string]any
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var body map[string]any
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		b.mu.Lock()
		b.posts[r.URL.Path] = append(b.posts[r.URL.Path], body)
		b.mu.Unlock()
	}
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/analytics/metrics/summary":
		io.WriteString(w, `{"cpu_usage": 0.42, "error_rate": 0.05}`)
	case "/api/agents":
		io.WriteString(w, `[{"id": "edge-1", "status": "healthy", "latency": 12}]`)
	case "/api/events/recent":
		io.WriteString(w, `[{"id": "e1", "source_id": "edge-1", "log_level": "error", "log_message": "disk full"}, {"id": "e2", "source_id": "edge-1", "event_type": "metric", "metric_name": "cpu", "metric_value": 0.9}]`)
	case "/api/intelligence/overview":
		io.WriteString(w, `{"incidents": [{"incident_id": "inc-1", "source_id": "edge-1", "severity": "high", "summary": "disk"}], "risk": {"edge-1": {"risk": 0.8, "errors": 4}}}`)
	case "/api/analytics/anomalies":
		io.WriteString(w, `[]`)
	case "/api/control/plan":
		io.WriteString(w, `{"incidents": [{"incident_id": "inc-1", "source_id": "edge-1"}], "actions": {"inc-1": [{"action": "restart", "reason": "disk"}]}}`)
	case "/alerts/recent":
		io.WriteString(w, `[{"id": "a1", "source_id": "edge-1", "severity": "critical", "message": "disk full"}, {"id": "a2", "source_id": "edge-2", "severity": "warning", "message": "fan slow"}]`)
	case "/api/control/execute":
		io.WriteString(w, `{"mode": "live", "job_id": "inc-1-0"}`)
	case "/api/feedback":
		io.WriteString(w, `{"status": "recorded"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail": "no route"}`)
	}
}

func (b *backend) postsTo(path string) []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]any(nil), b.posts[path]...)
}

func newService(t *testing.T) (*ConsoleService, *store.Store, *backend) {
	t.Helper()
	be := &backend{posts: make(map[string][]map[string]any)}
	srv := httptest.NewServer(be)
	t.Cleanup(srv.Close)

	logger := utils.DiscardLogger()
	client := transport.NewClient(srv.URL, 2*time.Second, transport.WithLogger(logger))
	set := sources.NewSet(client, config.Default().Endpoints, logger)
	st := store.New(store.DepsFromSources(set, logger), store.Options{})
	t.Cleanup(st.Close)
	return NewConsoleService(logger, st), st, be
}

func structOf(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return s
}

func TestRefreshReturnsSnapshot(t *testing.T) {
	svc, _, _ := newService(t)

	out, err := svc.Refresh(context.Background(), &structpb.Struct{})
	require.NoError(t, err)

	metrics := out.GetFields()["metrics"].GetStructValue().GetFields()
	assert.InDelta(t, 0.42, metrics["cpu_usage"].GetNumberValue(), 1e-9)
	assert.Equal(t, "OK", out.GetFields()["system_status"].GetStringValue())
	tones := out.GetFields()["level_tones"].GetStructValue().GetFields()
	assert.Equal(t, "critical", tones["ERROR"].GetStringValue())
	agents := out.GetFields()["agents"].GetListValue().GetValues()
	require.Len(t, agents, 1)
}

func TestRefreshUnknownDomain(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Refresh(context.Background(), structOf(t, map[string]any{"domain": "weather"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestSetTabValidation(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.SetTab(context.Background(), nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = svc.SetTab(context.Background(), structOf(t, map[string]any{"tab": "nope"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	out, err := svc.SetTab(context.Background(), structOf(t, map[string]any{"tab": "automation"}))
	require.NoError(t, err)
	assert.Equal(t, "automation", out.GetFields()["active_tab"].GetStringValue())
	jobs := out.GetFields()["jobs"].GetListValue().GetValues()
	require.Len(t, jobs, 1)
	assert.Equal(t, "inc-1-0", jobs[0].GetStructValue().GetFields()["id"].GetStringValue())
}

func TestSelectAgentUnknown(t *testing.T) {
	svc, st, _ := newService(t)
	st.LoadDomain(context.Background(), store.DomainAgents)

	_, err := svc.SelectAgent(context.Background(), structOf(t, map[string]any{"id": "ghost"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	out, err := svc.SelectAgent(context.Background(), structOf(t, map[string]any{"id": "edge-1"}))
	require.NoError(t, err)
	filters := out.GetFields()["filters"].GetStructValue().GetFields()["logs"].GetStructValue().GetFields()
	assert.Equal(t, "edge-1", filters["source"].GetStringValue())
}

func TestSetLogFilterLiveOnly(t *testing.T) {
	svc, st, _ := newService(t)
	st.LoadOverview(context.Background())

	out, err := svc.SetLogFilter(context.Background(), structOf(t, map[string]any{"level": "error", "live_only": true}))
	require.NoError(t, err)
	logs := out.GetFields()["logs"].GetListValue().GetValues()
	require.Len(t, logs, 1)
	assert.Equal(t, "ERROR", out.GetFields()["filters"].GetStructValue().GetFields()["logs"].GetStructValue().GetFields()["level"].GetStringValue())

	out, err = svc.SetLogFilter(context.Background(), structOf(t, map[string]any{"level": "warning"}))
	require.NoError(t, err)
	assert.Empty(t, out.GetFields()["logs"].GetListValue().GetValues())
}

func TestSetEventSearchNarrowsEvents(t *testing.T) {
	svc, st, _ := newService(t)
	st.LoadDomain(context.Background(), store.DomainLogs)

	out, err := svc.SetEventSearch(context.Background(), structOf(t, map[string]any{"term": "DISK"}))
	require.NoError(t, err)
	events := out.GetFields()["events"].GetListValue().GetValues()
	require.Len(t, events, 1)
	assert.Equal(t, "e1", events[0].GetStructValue().GetFields()["id"].GetStringValue())
	assert.Equal(t, "DISK", out.GetFields()["filters"].GetStructValue().GetFields()["event_search"].GetStringValue())

	out, err = svc.SetEventSearch(context.Background(), structOf(t, map[string]any{}))
	require.NoError(t, err)
	assert.Len(t, out.GetFields()["events"].GetListValue().GetValues(), 2)

	_, err = svc.SetEventSearch(context.Background(), nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestSetAlertFilterNarrowsAlerts(t *testing.T) {
	svc, st, _ := newService(t)
	st.LoadDomain(context.Background(), store.DomainAlerts)

	out, err := svc.SetAlertFilter(context.Background(), structOf(t, map[string]any{"severity": "warning"}))
	require.NoError(t, err)
	alerts := out.GetFields()["alerts"].GetListValue().GetValues()
	require.Len(t, alerts, 1)
	assert.Equal(t, "a2", alerts[0].GetStructValue().GetFields()["id"].GetStringValue())
	counts := out.GetFields()["alert_counts"].GetStructValue().GetFields()
	assert.Equal(t, 1.0, counts["CRITICAL"].GetNumberValue())

	out, err = svc.SetAlertFilter(context.Background(), structOf(t, map[string]any{"search": "edge-1"}))
	require.NoError(t, err)
	alerts = out.GetFields()["alerts"].GetListValue().GetValues()
	require.Len(t, alerts, 1)
	assert.Equal(t, "a1", alerts[0].GetStructValue().GetFields()["id"].GetStringValue())

	_, err = svc.SetAlertFilter(context.Background(), structOf(t, map[string]any{"severity": 3}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestSetTimelineFilterNarrowsTimeline(t *testing.T) {
	svc, st, _ := newService(t)
	st.LoadDomain(context.Background(), store.DomainLogs)

	out, err := svc.SetTimelineFilter(context.Background(), structOf(t, map[string]any{"type": "metric"}))
	require.NoError(t, err)
	timeline := out.GetFields()["timeline"].GetListValue().GetValues()
	require.Len(t, timeline, 1)
	entry := timeline[0].GetStructValue().GetFields()
	assert.Equal(t, "e2", entry["id"].GetStringValue())
	assert.Equal(t, "cpu: 0.9", entry["summary"].GetStringValue())

	out, err = svc.SetTimelineFilter(context.Background(), structOf(t, map[string]any{"search": "disk"}))
	require.NoError(t, err)
	timeline = out.GetFields()["timeline"].GetListValue().GetValues()
	require.Len(t, timeline, 1)
	assert.Equal(t, "e1", timeline[0].GetStructValue().GetFields()["id"].GetStringValue())
}

func TestSendControlMergesPayload(t *testing.T) {
	svc, _, be := newService(t)

	out, err := svc.SendControl(context.Background(), structOf(t, map[string]any{
		"target":  "edge-1",
		"action":  "restart",
		"payload": `{"priority": "high", "action": "drain"}`,
	}))
	require.NoError(t, err)
	assert.Equal(t, "live", out.GetFields()["mode"].GetStringValue())

	posts := be.postsTo("/api/control/execute")
	require.Len(t, posts, 1)
	assert.Equal(t, "drain", posts[0]["action"])
	assert.Equal(t, "high", posts[0]["priority"])
	assert.Equal(t, false, posts[0]["dry_run"])
}

func TestSendControlRejectsBadPayload(t *testing.T) {
	svc, _, be := newService(t)

	_, err := svc.SendControl(context.Background(), structOf(t, map[string]any{"action": "restart", "payload": "[1, 2]"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = svc.SendControl(context.Background(), structOf(t, map[string]any{"action": "restart", "payload": "{broken"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Empty(t, be.postsTo("/api/control/execute"))
}

func TestRunAutomationPostsJob(t *testing.T) {
	svc, _, be := newService(t)

	_, err := svc.RunAutomation(context.Background(), structOf(t, map[string]any{}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = svc.RunAutomation(context.Background(), structOf(t, map[string]any{"job_id": "inc-1-0"}))
	require.NoError(t, err)
	posts := be.postsTo("/api/control/execute")
	require.Len(t, posts, 1)
	assert.Equal(t, map[string]any{"job_id": "inc-1-0", "dry_run": false}, posts[0])
}

func TestSubmitFeedback(t *testing.T) {
	svc, _, be := newService(t)

	_, err := svc.SubmitFeedback(context.Background(), structOf(t, map[string]any{"accepted": true}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	out, err := svc.SubmitFeedback(context.Background(), structOf(t, map[string]any{"incident_id": "inc-1", "accepted": true}))
	require.NoError(t, err)
	assert.NotNil(t, out)
	require.Len(t, be.postsTo("/api/feedback"), 1)
}

func TestClosedStoreIsFailedPrecondition(t *testing.T) {
	svc, st, _ := newService(t)
	st.Close()

	_, err := svc.SetTab(context.Background(), structOf(t, map[string]any{"tab": "logs"}))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestNilStoreIsFailedPrecondition(t *testing.T) {
	svc := NewConsoleService(nil, nil)

	_, err := svc.GetSnapshot(context.Background(), &emptypb.Empty{})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	_, err = svc.SendControl(context.Background(), &structpb.Struct{})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestGRPCRoundTripOverBufconn(t *testing.T) {
	svc, st, _ := newService(t)

	lis := bufconn.Listen(1 << 20)
	server := api.NewServerOn(lis, config.ServerConfig{GracefulTimeout: time.Second}, svc)
	go func() { _ = server.Start() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		server.Shutdown(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: api.ConsoleServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, health.GetStatus())

	client := api.NewConsoleClient(conn)
	watch, err := client.Watch(ctx)
	require.NoError(t, err)
	first, err := watch.Recv()
	require.NoError(t, err)
	assert.Equal(t, "overview", first.GetFields()["active_tab"].GetStringValue())

	_, err = client.Call(ctx, api.MethodRefresh, structOf(t, map[string]any{"domain": "metrics"}))
	require.NoError(t, err)

	snap, err := client.GetSnapshot(ctx)
	require.NoError(t, err)
	metrics := snap.GetFields()["metrics"].GetStructValue().GetFields()
	assert.InDelta(t, 0.42, metrics["cpu_usage"].GetNumberValue(), 1e-9)

	next, err := watch.Recv()
	require.NoError(t, err)
	assert.Greater(t, next.GetFields()["version"].GetNumberValue(), first.GetFields()["version"].GetNumberValue())

	_, err = client.Call(ctx, api.MethodSetTab, structOf(t, map[string]any{"tab": "weather"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	st.Close()
	for {
		if _, err = watch.Recv(); err != nil {
			break
		}
	}
	assert.Equal(t, codes.Unavailable, status.Code(err))
}
