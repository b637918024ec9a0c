// Package console owns a mounted console: the store and one refresh scheduler per page.
package console

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/miradorstack/mirador-console/internal/config"
	"github.com/miradorstack/mirador-console/internal/scheduler"
	"github.com/miradorstack/mirador-console/internal/sources"
	"github.com/miradorstack/mirador-console/internal/store"
	"github.com/miradorstack/mirador-console/internal/transport"
)

// Console binds a store to its refresh timers. Unmount stops the timers and closes the
// store so fetches still in flight land nowhere.
type Console struct {
	store  *store.Store
	logger *slog.Logger

	mu         sync.Mutex
	pages      []config.PageConfig
	schedulers map[string]*scheduler.Scheduler
	mounted    bool
}

// New wraps st. Pages default to the overview page alone.
func New(st *store.Store, pages []config.PageConfig, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	if len(pages) == 0 {
		pages = []config.PageConfig{{Name: string(store.TabOverview), Period: config.DefaultPeriod(string(store.TabOverview))}}
	}
	return &Console{store: st, logger: logger, pages: pages, schedulers: make(map[string]*scheduler.Scheduler)}
}

// Build assembles transport, adapters and store from cfg.
func Build(cfg *config.Config, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	client := transport.NewClient(cfg.ResolveBaseURL(), cfg.Backend.Timeout,
		transport.WithLogger(logger),
		transport.WithRateLimit(cfg.Backend.RateLimit, cfg.Backend.RateBurst),
	)
	set := sources.NewSet(client, cfg.Endpoints, logger)
	st := store.New(store.DepsFromSources(set, logger), store.Options{
		HistoryCapacity: cfg.Store.HistoryCapacity,
		TrackedMetrics:  cfg.Store.TrackedMetrics,
		SequenceGuard:   cfg.Store.SequenceGuard,
		SuccessTTL:      cfg.Notify.SuccessTTL,
		ErrorTTL:        cfg.Notify.ErrorTTL,
	})
	logger.Info("console configured",
		slog.String("backend", client.BaseURL()),
		slog.Int("pages", len(cfg.Console.Pages)),
		slog.Bool("sequence_guard", cfg.Store.SequenceGuard),
	)
	return New(st, cfg.Console.Pages, logger)
}

// TaskFor maps a page name onto its refresh: the overview fan-out or one domain.
func TaskFor(st *store.Store, page string) (scheduler.Task, error) {
	if page == string(store.TabOverview) {
		return st.LoadOverview, nil
	}
	d, err := store.ParseDomain(page)
	if err != nil {
		return nil, fmt.Errorf("page %q: %w", page, err)
	}
	return func(ctx context.Context) { st.LoadDomain(ctx, d) }, nil
}

// Store exposes the view model.
func (c *Console) Store() *store.Store { return c.store }

// Mount starts one scheduler per page; each runs its refresh immediately.
func (c *Console) Mount(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mounted {
		return nil
	}
	if c.store.Closed() {
		return store.ErrClosed
	}

	built := make(map[string]*scheduler.Scheduler, len(c.pages))
	for _, page := range c.pages {
		task, err := TaskFor(c.store, page.Name)
		if err != nil {
			return err
		}
		built[page.Name] = scheduler.New(page.Name, page.Period, task, c.logger)
	}
	for _, s := range built {
		s.Start(ctx)
	}
	c.schedulers = built
	c.mounted = true
	c.logger.Info("console mounted", slog.Int("pages", len(built)))
	return nil
}

// Unmount stops every timer and closes the store. The console cannot be remounted.
func (c *Console) Unmount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.schedulers {
		s.Stop()
	}
	c.schedulers = map[string]*scheduler.Scheduler{}
	c.mounted = false
	c.store.Close()
	c.logger.Info("console unmounted")
}

// Mounted reports whether timers are running.
func (c *Console) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mounted
}

// ApplyPages updates refresh periods of mounted pages by name. Pages added or removed
// by a config change are logged and take effect on the next mount.
func (c *Console) ApplyPages(pages []config.PageConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := make(map[string]struct{}, len(pages))
	for _, page := range pages {
		seen[page.Name] = struct{}{}
		if s, ok := c.schedulers[page.Name]; ok {
			s.Reset(page.Period)
			continue
		}
		if c.mounted {
			c.logger.Warn("page added by config reload is not mounted until restart", slog.String("page", page.Name))
		}
	}
	for name := range c.schedulers {
		if _, ok := seen[name]; !ok {
			c.logger.Warn("page removed by config reload keeps running until restart", slog.String("page", name))
		}
	}
	c.pages = pages
}

// Periods reports the active tick period per mounted page.
func (c *Console) Periods() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.schedulers))
	for name, s := range c.schedulers {
		out[name] = s.Period().String()
	}
	return out
}
