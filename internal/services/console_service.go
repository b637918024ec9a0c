package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-console/internal/api"
	"github.com/miradorstack/mirador-console/internal/metrics"
	"github.com/miradorstack/mirador-console/internal/store"
	"github.com/miradorstack/mirador-console/internal/transport"
	"github.com/miradorstack/mirador-console/internal/utils"
)

// ConsoleService implements the gRPC Console service over a view model store.
type ConsoleService struct {
	api.UnimplementedConsoleServer

	logger    *slog.Logger
	store     *store.Store
	latencies *utils.LatencyTracker
}

// NewConsoleService constructs the service facade.
func NewConsoleService(logger *slog.Logger, st *store.Store) *ConsoleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleService{
		logger:    logger,
		store:     st,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// GetSnapshot returns the current snapshot.
func (s *ConsoleService) GetSnapshot(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if s.store == nil {
		return nil, status.Error(codes.FailedPrecondition, "store not configured")
	}
	return s.snapshot()
}

// SetTab switches the active tab, loading its domain the first time it is shown.
func (s *ConsoleService) SetTab(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(req); err != nil {
		return nil, err
	}
	tab, err := api.FromProtoTab(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.store.SetTab(ctx, tab); err != nil {
		return nil, s.toStatus("set tab", err)
	}
	return s.snapshot()
}

// Refresh reloads one domain, or the overview set when no domain is named.
func (s *ConsoleService) Refresh(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.store == nil {
		return nil, status.Error(codes.FailedPrecondition, "store not configured")
	}
	name, err := api.FromProtoRefresh(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.store.Refresh(ctx, name); err != nil {
		return nil, s.toStatus("refresh", err)
	}
	return s.snapshot()
}

// SelectAgent selects an agent by identity.
func (s *ConsoleService) SelectAgent(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(req); err != nil {
		return nil, err
	}
	id, err := api.FromProtoSelectAgent(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.store.SelectAgent(id); err != nil {
		return nil, s.toStatus("select agent", err)
	}
	return s.snapshot()
}

// SetLogFilter replaces the log filter.
func (s *ConsoleService) SetLogFilter(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(req); err != nil {
		return nil, err
	}
	filter, err := api.FromProtoLogFilter(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s.store.SetLogFilter(filter)
	return s.snapshot()
}

// SetEventSearch sets the overview event search term.
func (s *ConsoleService) SetEventSearch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(req); err != nil {
		return nil, err
	}
	term, err := api.FromProtoEventSearch(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s.store.SetEventSearch(term)
	return s.snapshot()
}

// SetAlertFilter replaces the alerts filter.
func (s *ConsoleService) SetAlertFilter(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(req); err != nil {
		return nil, err
	}
	filter, err := api.FromProtoAlertFilter(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s.store.SetAlertFilter(filter)
	return s.snapshot()
}

// SetTimelineFilter replaces the timeline filter.
func (s *ConsoleService) SetTimelineFilter(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(req); err != nil {
		return nil, err
	}
	filter, err := api.FromProtoTimelineFilter(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s.store.SetTimelineFilter(filter)
	return s.snapshot()
}

// RunAutomation triggers a planned job.
func (s *ConsoleService) RunAutomation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(req); err != nil {
		return nil, err
	}
	jobID, err := api.FromProtoRunAutomation(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s.logger.Debug("RunAutomation called", slog.String("job_id", jobID))

	start := time.Now()
	res, err := s.store.RunAutomation(ctx, jobID)
	s.observe(store.ActionAutomation, time.Since(start), err)
	if err != nil {
		return nil, s.toStatus("run automation", err)
	}
	return s.result(res)
}

// SendControl posts an operator control command.
func (s *ConsoleService) SendControl(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(req); err != nil {
		return nil, err
	}
	form, err := api.FromProtoControlForm(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s.logger.Debug("SendControl called", slog.String("target", form.Target), slog.String("action", form.Action))

	start := time.Now()
	res, err := s.store.SendControlAction(ctx, form)
	s.observe(store.ActionControl, time.Since(start), err)
	if err != nil {
		return nil, s.toStatus("send control", err)
	}
	return s.result(res)
}

// SubmitFeedback records an operator verdict.
func (s *ConsoleService) SubmitFeedback(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(req); err != nil {
		return nil, err
	}
	fb, err := api.FromProtoFeedback(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	start := time.Now()
	ack, err := s.store.SubmitFeedback(ctx, fb)
	s.observe(store.ActionFeedback, time.Since(start), err)
	if err != nil {
		return nil, s.toStatus("submit feedback", err)
	}
	return s.result(ack)
}

// Watch streams a snapshot now and after every store change until the client goes
// away or the store closes.
func (s *ConsoleService) Watch(_ *emptypb.Empty, stream api.ConsoleWatchServer) error {
	if s.store == nil {
		return status.Error(codes.FailedPrecondition, "store not configured")
	}
	changes, cancel := s.store.Subscribe()
	defer cancel()

	ctx := stream.Context()
	for {
		snap, err := s.snapshot()
		if err != nil {
			return err
		}
		if err := stream.Send(snap); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return status.Error(codes.Unavailable, "console unmounted")
			}
		}
	}
}

// LatencyP95 returns the p95 operator action latency.
func (s *ConsoleService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}

func (s *ConsoleService) ready(req *structpb.Struct) error {
	if req == nil {
		return status.Error(codes.InvalidArgument, "request cannot be nil")
	}
	if s.store == nil {
		return status.Error(codes.FailedPrecondition, "store not configured")
	}
	return nil
}

func (s *ConsoleService) snapshot() (*structpb.Struct, error) {
	out, err := api.ToProtoSnapshot(s.store.Snapshot())
	if err != nil {
		s.logger.Error("snapshot conversion failed", slog.Any("error", err))
		return nil, status.Error(codes.Internal, "failed to encode snapshot")
	}
	return out, nil
}

func (s *ConsoleService) result(v any) (*structpb.Struct, error) {
	out, err := api.ToStruct(v)
	if err != nil {
		s.logger.Error("result conversion failed", slog.Any("error", err))
		return nil, status.Error(codes.Internal, "failed to encode result")
	}
	return out, nil
}

func (s *ConsoleService) observe(action string, d time.Duration, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
	}
	metrics.ObserveAction(action, d, outcome)
	s.latencies.Observe(d)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		s.logger.Info("operator action latency", slog.Duration("p95", s.latencies.Percentile(95)), slog.Int("samples", count))
	}
}

// toStatus maps store and transport failures onto gRPC codes.
func (s *ConsoleService) toStatus(op string, err error) error {
	var (
		syntaxErr    *json.SyntaxError
		transportErr *transport.TransportError
		httpErr      *transport.HTTPError
	)
	switch {
	case errors.Is(err, store.ErrUnknownTab), errors.Is(err, store.ErrUnknownDomain),
		errors.Is(err, store.ErrUnknownAgent), errors.Is(err, store.ErrInvalidPayload),
		errors.As(err, &syntaxErr):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, store.ErrClosed), errors.Is(err, store.ErrNoSource):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.As(err, &transportErr):
		s.logger.Warn(op+" failed", slog.Any("error", err))
		return status.Error(codes.Unavailable, err.Error())
	case errors.As(err, &httpErr):
		s.logger.Warn(op+" failed", slog.Int("status", httpErr.Status), slog.String("message", httpErr.Message))
		return status.Error(codes.Internal, httpErr.Message)
	default:
		s.logger.Error(op+" failed", slog.Any("error", err))
		return status.Errorf(codes.Internal, "%s failed: %v", op, err)
	}
}
