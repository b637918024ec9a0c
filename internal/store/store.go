// Package store is the console's view model: normalized state per domain, per-domain
// load status, the lazy-load ledger, and the derived views read by every surface.
package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/miradorstack/mirador-console/internal/history"
	"github.com/miradorstack/mirador-console/internal/models"
	"github.com/miradorstack/mirador-console/internal/notify"
	"github.com/miradorstack/mirador-console/internal/sources"
	"github.com/miradorstack/mirador-console/internal/utils"
	"github.com/miradorstack/mirador-console/internal/views"
)

// Domain is one independently loaded slice of state.
type Domain string

const (
	DomainMetrics      Domain = sources.DomainMetrics
	DomainAgents       Domain = sources.DomainAgents
	DomainIntelligence Domain = sources.DomainIntelligence
	DomainLogs         Domain = sources.DomainLogs
	DomainAutomation   Domain = sources.DomainAutomation
	DomainAlerts       Domain = sources.DomainAlerts
)

// Domains lists every loadable domain.
var Domains = []Domain{DomainMetrics, DomainAgents, DomainIntelligence, DomainLogs, DomainAutomation, DomainAlerts}

// OverviewDomains is the fan-out set of LoadOverview.
var OverviewDomains = []Domain{DomainMetrics, DomainAgents, DomainIntelligence, DomainLogs}

// Tab is a console view the operator can switch to.
type Tab string

const (
	TabOverview     Tab = "overview"
	TabLogs         Tab = "logs"
	TabAgents       Tab = "agents"
	TabAutomation   Tab = "automation"
	TabIntelligence Tab = "intelligence"
	TabAlerts       Tab = "alerts"
	TabTimeline     Tab = "timeline"
)

// tabDomains maps single-domain tabs onto the domain they lazily load.
var tabDomains = map[Tab]Domain{
	TabLogs:         DomainLogs,
	TabAgents:       DomainAgents,
	TabAutomation:   DomainAutomation,
	TabIntelligence: DomainIntelligence,
	TabAlerts:       DomainAlerts,
	TabTimeline:     DomainLogs,
}

// ParseTab validates a tab name.
func ParseTab(name string) (Tab, error) {
	tab := Tab(name)
	if tab == TabOverview {
		return tab, nil
	}
	if _, ok := tabDomains[tab]; ok {
		return tab, nil
	}
	return "", ErrUnknownTab
}

// ParseDomain validates a domain name.
func ParseDomain(name string) (Domain, error) {
	for _, d := range Domains {
		if string(d) == name {
			return d, nil
		}
	}
	return "", ErrUnknownDomain
}

var (
	ErrUnknownTab     = errors.New("unknown tab")
	ErrUnknownDomain  = errors.New("unknown domain")
	ErrUnknownAgent   = errors.New("agent not in current list")
	ErrInvalidPayload = errors.New("control payload must be a JSON object")
	ErrClosed         = errors.New("store closed")
	ErrNoSource       = errors.New("source not configured")
)

// State is the per-domain lifecycle position.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateErrored State = "errored"
)

// Status is the load bookkeeping for one domain.
type Status struct {
	State     State     `json:"state"`
	Loading   bool      `json:"loading"`
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
	Attempts  int       `json:"attempts"`
}

// Source interfaces accepted by the store; sources.Set satisfies all of them.
type (
	MetricsSource interface {
		Fetch(ctx context.Context) (models.MetricsSnapshot, error)
	}
	EventsSource interface {
		Fetch(ctx context.Context) ([]models.LogEvent, error)
	}
	AgentsSource interface {
		Fetch(ctx context.Context) ([]models.Agent, error)
	}
	IntelligenceSource interface {
		Fetch(ctx context.Context) (models.Intelligence, error)
	}
	PlanSource interface {
		Fetch(ctx context.Context) (models.ControlPlan, error)
	}
	AlertsSource interface {
		Fetch(ctx context.Context) ([]models.Alert, error)
	}
	ControlExecutor interface {
		Execute(ctx context.Context, req models.ControlRequest) (models.ControlResult, error)
	}
	FeedbackSubmitter interface {
		Submit(ctx context.Context, fb models.Feedback) (map[string]any, error)
	}
)

// Deps are the collaborators of a Store. Nil sources make their domain fail to load.
type Deps struct {
	Metrics      MetricsSource
	Events       EventsSource
	Agents       AgentsSource
	Intelligence IntelligenceSource
	Plan         PlanSource
	Alerts       AlertsSource
	Control      ControlExecutor
	Feedback     FeedbackSubmitter
	Logger       *slog.Logger
}

// DepsFromSources wires every adapter of set.
func DepsFromSources(set *sources.Set, logger *slog.Logger) Deps {
	return Deps{
		Metrics:      set.Metrics,
		Events:       set.Events,
		Agents:       set.Agents,
		Intelligence: set.Intelligence,
		Plan:         set.Plan,
		Alerts:       set.Alerts,
		Control:      set.Control,
		Feedback:     set.Feedback,
		Logger:       logger,
	}
}

// Options tune a Store.
type Options struct {
	HistoryCapacity int
	TrackedMetrics  []string
	// SequenceGuard drops a result older than one already applied for its domain.
	SequenceGuard bool
	SuccessTTL    time.Duration
	ErrorTTL      time.Duration
	Now           func() time.Time
}

// Store owns all console state. Mutations happen under mu once a fetch has returned,
// so every merge is atomic with respect to readers.
type Store struct {
	deps    Deps
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
	history *history.Buffer
	notify  *notify.Channel
	latency *utils.LatencyTracker

	mu       sync.RWMutex
	closed   bool
	status   map[Domain]*Status
	inflight map[Domain]int
	issued   map[Domain]uint64
	applied  map[Domain]uint64
	ledger   map[string]bool
	tab      Tab
	busy     map[string]int

	metrics      models.MetricsSnapshot
	events       []models.LogEvent
	agents       []models.Agent
	intelligence models.Intelligence
	insights     []models.InsightItem
	plan         models.ControlPlan
	jobs         []models.AutomationJob
	alerts       []models.Alert
	selected     *models.Agent
	lastControl  *models.ControlResult

	logFilter      views.LogFilter
	eventSearch    string
	alertFilter    views.AlertFilter
	timelineFilter views.TimelineFilter

	subMu   sync.Mutex
	subs    map[chan struct{}]struct{}
	version uint64
}

// New builds an empty store: every domain idle, overview tab active.
func New(deps Deps, opts Options) *Store {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if len(opts.TrackedMetrics) == 0 {
		opts.TrackedMetrics = []string{"cpu_usage", "memory_usage", "error_rate", "log_rate"}
	}
	s := &Store{
		deps:     deps,
		opts:     opts,
		logger:   logger,
		now:      opts.Now,
		history:  history.New(opts.HistoryCapacity),
		latency:  utils.NewLatencyTracker(64),
		status:   make(map[Domain]*Status, len(Domains)),
		inflight: make(map[Domain]int, len(Domains)),
		issued:   make(map[Domain]uint64, len(Domains)),
		applied:  make(map[Domain]uint64, len(Domains)),
		ledger:   make(map[string]bool),
		busy:     make(map[string]int),
		tab:      TabOverview,
		subs:     make(map[chan struct{}]struct{}),
		events:   []models.LogEvent{},
		agents:   []models.Agent{},
		alerts:   []models.Alert{},
	}
	for _, d := range Domains {
		s.status[d] = &Status{State: StateIdle}
	}
	s.notify = notify.New(opts.SuccessTTL, opts.ErrorTTL, s.publish)
	return s
}

// Subscribe returns a channel that receives a token after state changes. Signals
// coalesce: a slow reader sees one pending token, then reads a fresh Snapshot.
// The cancel func releases the subscription.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.subMu.Lock()
	if s.subs == nil {
		s.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
		})
	}
}

func (s *Store) publish() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.version++
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Version counts published changes.
func (s *Store) Version() uint64 {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return s.version
}

// Close detaches the store: later fetch results are discarded, timers stop, and
// subscriber channels close.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.notify.Close()
	s.subMu.Lock()
	for ch := range s.subs {
		close(ch)
	}
	s.subs = nil
	s.subMu.Unlock()
}

// Closed reports whether Close has been called.
func (s *Store) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Status returns a copy of one domain's status.
func (s *Store) Status(d Domain) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.status[d]; ok {
		return *st
	}
	return Status{State: StateIdle}
}

// Loaded reports the ledger entry for a tab or domain name.
func (s *Store) Loaded(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger[name]
}

// Notifications exposes the banner channel.
func (s *Store) Notifications() *notify.Channel { return s.notify }

// History exposes the metric history buffer.
func (s *Store) History() *history.Buffer { return s.history }
