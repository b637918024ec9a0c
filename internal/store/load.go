package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/miradorstack/mirador-console/internal/metrics"
	"github.com/miradorstack/mirador-console/internal/models"
	"github.com/miradorstack/mirador-console/internal/transport"
	"github.com/miradorstack/mirador-console/internal/utils"
	"github.com/miradorstack/mirador-console/internal/views"
)

// defaultLoadErrors is shown when a failure carries no usable text.
var defaultLoadErrors = map[Domain]string{
	DomainMetrics:      "Failed to load metrics",
	DomainLogs:         "Failed to load events",
	DomainAgents:       "Failed to load agents",
	DomainAutomation:   "Failed to load automation",
	DomainIntelligence: "Failed to load intelligence",
	DomainAlerts:       "Failed to load alerts",
}

const overviewLedger = "overview"

// applyFunc merges a fetched result into state; it runs with mu held.
type applyFunc func(now time.Time)

// LoadDomain refreshes one domain. Prior data and errors stay visible while loading;
// a failure becomes an error notification and leaves prior data untouched. It never
// returns an error or panics on a misconfigured source.
func (s *Store) LoadDomain(ctx context.Context, d Domain) {
	seq, ok := s.begin(d)
	if !ok {
		return
	}
	start := time.Now()
	apply, err := s.fetch(ctx, d)
	s.finish(d, seq, time.Since(start), apply, err)
}

// LoadOverview refreshes the overview domains concurrently. Each domain succeeds or
// fails on its own; the overview ledger entry is marked once all have returned.
func (s *Store) LoadOverview(ctx context.Context) {
	var wg sync.WaitGroup
	for _, d := range OverviewDomains {
		wg.Add(1)
		go func(d Domain) {
			defer wg.Done()
			s.LoadDomain(ctx, d)
		}(d)
	}
	wg.Wait()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.ledger[overviewLedger] = true
	s.mu.Unlock()
	s.publish()
}

// SetTab records the active tab and loads its data if it has never loaded successfully.
func (s *Store) SetTab(ctx context.Context, tab Tab) error {
	if _, err := ParseTab(string(tab)); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.tab = tab
	var loaded bool
	d, single := tabDomains[tab]
	if single {
		loaded = s.ledger[string(d)]
	} else {
		loaded = s.ledger[overviewLedger]
	}
	s.mu.Unlock()
	s.publish()

	if loaded {
		return nil
	}
	if single {
		s.LoadDomain(ctx, d)
	} else {
		s.LoadOverview(ctx)
	}
	return nil
}

// Refresh loads a named domain, or the overview set for "" and "overview".
func (s *Store) Refresh(ctx context.Context, name string) error {
	if name == "" || name == overviewLedger {
		s.LoadOverview(ctx)
		return nil
	}
	d, err := ParseDomain(name)
	if err != nil {
		return err
	}
	s.LoadDomain(ctx, d)
	return nil
}

func (s *Store) begin(d Domain) (uint64, bool) {
	s.mu.Lock()
	st, ok := s.status[d]
	if s.closed || !ok {
		s.mu.Unlock()
		return 0, false
	}
	s.issued[d]++
	seq := s.issued[d]
	s.inflight[d]++
	st.Loading = true
	st.State = StateLoading
	st.Attempts++
	s.mu.Unlock()
	s.publish()
	return seq, true
}

func (s *Store) finish(d Domain, seq uint64, elapsed time.Duration, apply applyFunc, err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		metrics.ObserveDomainLoad(string(d), elapsed, metrics.OutcomeDiscarded)
		return
	}
	st := s.status[d]
	s.inflight[d]--
	st.Loading = s.inflight[d] > 0

	if s.opts.SequenceGuard && seq < s.applied[d] {
		if !st.Loading {
			st.State = StateReady
		}
		s.mu.Unlock()
		metrics.ObserveDomainLoad(string(d), elapsed, metrics.OutcomeDiscarded)
		if err != nil {
			s.logger.Warn("stale domain failure ignored",
				slog.String("domain", string(d)),
				slog.Uint64("seq", seq),
				slog.Any("error", err),
			)
		} else {
			s.logger.Debug("stale domain result dropped", slog.String("domain", string(d)), slog.Uint64("seq", seq))
		}
		s.publish()
		return
	}

	if err != nil {
		msg := loadErrorMessage(d, err)
		st.State = StateErrored
		st.LastError = msg
		if st.Loading {
			st.State = StateLoading
		}
		s.mu.Unlock()

		metrics.ObserveDomainLoad(string(d), elapsed, metrics.OutcomeError)
		s.logger.Warn("domain load failed",
			slog.String("domain", string(d)),
			slog.Duration("elapsed", elapsed),
			slog.Any("error", utils.NewAppError("store.load", msg, err)),
		)
		s.notify.NotifyError(msg)
		s.publish()
		return
	}

	now := s.now()
	apply(now)
	s.applied[d] = seq
	s.ledger[string(d)] = true
	st.State = StateReady
	if st.Loading {
		st.State = StateLoading
	}
	st.LastError = ""
	st.UpdatedAt = now
	s.mu.Unlock()

	metrics.ObserveDomainLoad(string(d), elapsed, metrics.OutcomeSuccess)
	s.logger.Debug("domain loaded", slog.String("domain", string(d)), slog.Duration("elapsed", elapsed))
	s.publish()
}

// fetch runs the adapter for d outside the lock and returns the merge to apply.
func (s *Store) fetch(ctx context.Context, d Domain) (applyFunc, error) {
	switch d {
	case DomainMetrics:
		if s.deps.Metrics == nil {
			return nil, ErrNoSource
		}
		start := time.Now()
		snap, err := s.deps.Metrics.Fetch(ctx)
		s.latency.Observe(time.Since(start))
		if err != nil {
			return nil, err
		}
		return func(time.Time) { s.applyMetrics(snap) }, nil

	case DomainLogs:
		if s.deps.Events == nil {
			return nil, ErrNoSource
		}
		events, err := s.deps.Events.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		return func(time.Time) { s.events = events }, nil

	case DomainAgents:
		if s.deps.Agents == nil {
			return nil, ErrNoSource
		}
		agents, err := s.deps.Agents.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		return func(time.Time) { s.applyAgents(agents) }, nil

	case DomainIntelligence:
		if s.deps.Intelligence == nil {
			return nil, ErrNoSource
		}
		intel, err := s.deps.Intelligence.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		return func(now time.Time) {
			s.intelligence = intel
			s.insights = views.Insights(intel, now)
		}, nil

	case DomainAutomation:
		if s.deps.Plan == nil {
			return nil, ErrNoSource
		}
		plan, err := s.deps.Plan.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		return func(now time.Time) {
			s.plan = plan
			s.jobs = views.Jobs(plan, now)
		}, nil

	case DomainAlerts:
		if s.deps.Alerts == nil {
			return nil, ErrNoSource
		}
		alerts, err := s.deps.Alerts.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		return func(time.Time) { s.alerts = alerts }, nil
	}
	return nil, ErrUnknownDomain
}

// applyMetrics stores the snapshot and appends one history point per tracked metric
// (0 when absent) and per key present in the snapshot.
func (s *Store) applyMetrics(snap models.MetricsSnapshot) {
	s.metrics = snap
	values := snap.Values()
	seen := make(map[string]struct{}, len(values)+len(s.opts.TrackedMetrics))
	for _, key := range s.opts.TrackedMetrics {
		seen[key] = struct{}{}
		s.history.Append(key, values[key])
	}
	for _, sample := range snap.Samples() {
		if _, ok := seen[sample.Key]; ok {
			continue
		}
		seen[sample.Key] = struct{}{}
		s.history.Append(sample.Key, sample.Value)
	}
}

// applyAgents replaces the list and re-resolves the selection by identity. A selection
// missing from the new list is kept as-is.
func (s *Store) applyAgents(agents []models.Agent) {
	s.agents = agents
	if s.selected == nil {
		if len(agents) > 0 {
			first := agents[0]
			s.selected = &first
		}
		return
	}
	id := s.selected.Identity()
	for _, a := range agents {
		if a.Identity() == id {
			updated := a
			s.selected = &updated
			return
		}
	}
}

// loadErrorMessage prefers the backend's own message, then the error text, then a
// per-domain default.
func loadErrorMessage(d Domain, err error) string {
	var httpErr *transport.HTTPError
	if errors.As(err, &httpErr) && httpErr.Message != "" {
		return httpErr.Message
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	if msg, ok := defaultLoadErrors[d]; ok {
		return msg
	}
	return "Request failed"
}
