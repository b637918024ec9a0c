package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultProductionBaseURL is used when no override or origin is configured.
const DefaultProductionBaseURL = "https://ops.mirador.example"

// BuildBaseURL is the build-time backend override, set with
// -ldflags "-X github.com/miradorstack/mirador-console/internal/config.BuildBaseURL=...".
var BuildBaseURL string

// Config captures the settings required to boot the console.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Backend   BackendConfig   `yaml:"backend"`
	Endpoints EndpointsConfig `yaml:"endpoints"`
	Console   ConsoleConfig   `yaml:"console"`
	Store     StoreConfig     `yaml:"store"`
	Notify    NotifyConfig    `yaml:"notify"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig controls the gRPC listener and the HTTP side server.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	HTTPAddress     string        `yaml:"httpAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	MaxWSClients    int           `yaml:"maxWSClients"`
}

// BackendConfig configures access to the monitoring backend.
type BackendConfig struct {
	// BaseURL is the runtime override; it loses only to BuildBaseURL.
	BaseURL string `yaml:"baseURL"`
	// Origin stands in for the page origin the console is served from.
	Origin    string        `yaml:"origin"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rateLimit"`
	RateBurst int           `yaml:"rateBurst"`
}

// EndpointsConfig lists candidate paths per domain: primary first, then at most one fallback.
type EndpointsConfig struct {
	Metrics     []string `yaml:"metrics"`
	Events      []string `yaml:"events"`
	Agents      []string `yaml:"agents"`
	Overview    []string `yaml:"overview"`
	Anomalies   []string `yaml:"anomalies"`
	Plan        []string `yaml:"plan"`
	Alerts      []string `yaml:"alerts"`
	Control     []string `yaml:"control"`
	Feedback    []string `yaml:"feedback"`
	EventsLimit int      `yaml:"eventsLimit"`
}

// ConsoleConfig lists the pages mounted by the console and their refresh periods.
type ConsoleConfig struct {
	Pages []PageConfig `yaml:"pages"`
}

// PageConfig binds a page name to its refresh period.
type PageConfig struct {
	Name   string        `yaml:"name"`
	Period time.Duration `yaml:"period"`
}

// StoreConfig tunes the view model store.
type StoreConfig struct {
	HistoryCapacity int      `yaml:"historyCapacity"`
	TrackedMetrics  []string `yaml:"trackedMetrics"`
	SequenceGuard   bool     `yaml:"sequenceGuard"`
}

// NotifyConfig sets banner lifetimes.
type NotifyConfig struct {
	SuccessTTL time.Duration `yaml:"successTTL"`
	ErrorTTL   time.Duration `yaml:"errorTTL"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	JSON       bool   `yaml:"json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("MIRADOR_CONSOLE_CONFIG")
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50061",
			HTTPAddress:     ":2113",
			GracefulTimeout: 10 * time.Second,
			MaxWSClients:    200,
		},
		Backend: BackendConfig{
			Timeout:   15 * time.Second,
			RateBurst: 1,
		},
		Endpoints: EndpointsConfig{
			Metrics:     []string{"/api/analytics/metrics/summary", "/analytics/summary"},
			Events:      []string{"/api/events/recent", "/api/logs/recent"},
			Agents:      []string{"/api/agents", "/api/intelligence/risk"},
			Overview:    []string{"/api/intelligence/overview"},
			Anomalies:   []string{"/api/analytics/anomalies"},
			Plan:        []string{"/api/control/plan", "/console/plan"},
			Alerts:      []string{"/alerts/recent", "/api/alerts/recent"},
			Control:     []string{"/api/control/execute", "/control/execute"},
			Feedback:    []string{"/api/feedback"},
			EventsLimit: 360,
		},
		Console: ConsoleConfig{
			Pages: []PageConfig{{Name: "overview", Period: 10 * time.Second}},
		},
		Store: StoreConfig{
			HistoryCapacity: 30,
			TrackedMetrics:  []string{"cpu_usage", "memory_usage", "error_rate", "log_rate"},
		},
		Notify: NotifyConfig{
			SuccessTTL: 4 * time.Second,
			ErrorTTL:   5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// PageNames are the refreshable pages: the overview fan-out plus one page per domain.
var PageNames = []string{"overview", "metrics", "agents", "intelligence", "logs", "automation", "alerts"}

// DefaultPeriod returns the stock refresh period for a page name.
func DefaultPeriod(page string) time.Duration {
	switch page {
	case "agents":
		return 15 * time.Second
	default:
		return 10 * time.Second
	}
}

// Validate rejects configurations the console cannot run with.
func (c *Config) Validate() error {
	lists := map[string][]string{
		"metrics":   c.Endpoints.Metrics,
		"events":    c.Endpoints.Events,
		"agents":    c.Endpoints.Agents,
		"overview":  c.Endpoints.Overview,
		"anomalies": c.Endpoints.Anomalies,
		"plan":      c.Endpoints.Plan,
		"alerts":    c.Endpoints.Alerts,
		"control":   c.Endpoints.Control,
		"feedback":  c.Endpoints.Feedback,
	}
	for name, candidates := range lists {
		if len(candidates) == 0 {
			return fmt.Errorf("endpoints.%s: at least one path is required", name)
		}
		if len(candidates) > 2 {
			return fmt.Errorf("endpoints.%s: expected a primary and at most one fallback, got %d paths", name, len(candidates))
		}
	}
	for i := range c.Console.Pages {
		page := &c.Console.Pages[i]
		if page.Name == "" {
			return fmt.Errorf("console.pages[%d]: name is required", i)
		}
		if !slices.Contains(PageNames, page.Name) {
			return fmt.Errorf("console.pages[%d]: unknown page %q, expected one of %s", i, page.Name, strings.Join(PageNames, ", "))
		}
		if page.Period <= 0 {
			page.Period = DefaultPeriod(page.Name)
		}
	}
	if c.Store.HistoryCapacity <= 0 {
		c.Store.HistoryCapacity = 30
	}
	if c.Endpoints.EventsLimit <= 0 {
		c.Endpoints.EventsLimit = 360
	}
	return nil
}

// ResolveBaseURL picks the backend base URL: build-time override, runtime override,
// page origin, then the production fallback host.
func (c *Config) ResolveBaseURL() string {
	return resolveBaseURL(BuildBaseURL, c.Backend.BaseURL, c.Backend.Origin)
}

func resolveBaseURL(build, runtime, origin string) string {
	for _, candidate := range []string{build, runtime, origin} {
		if v := strings.TrimSpace(candidate); v != "" {
			return strings.TrimRight(v, "/")
		}
	}
	return DefaultProductionBaseURL
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MIRADOR_CONSOLE_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("MIRADOR_CONSOLE_HTTP_ADDRESS"); v != "" {
		cfg.Server.HTTPAddress = v
	}
	if v := os.Getenv("MIRADOR_CONSOLE_BASE_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("MIRADOR_CONSOLE_ORIGIN"); v != "" {
		cfg.Backend.Origin = v
	}
	if v := os.Getenv("MIRADOR_CONSOLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Backend.Timeout = d
		}
	}
	if v := os.Getenv("MIRADOR_CONSOLE_RATE_LIMIT"); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Backend.RateLimit = r
		}
	}
	if v := os.Getenv("MIRADOR_CONSOLE_EVENTS_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Endpoints.EventsLimit = n
		}
	}
	if v := os.Getenv("MIRADOR_CONSOLE_REFRESH"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			for i := range cfg.Console.Pages {
				if cfg.Console.Pages[i].Name == "overview" {
					cfg.Console.Pages[i].Period = d
				}
			}
		}
	}
	if v := os.Getenv("MIRADOR_CONSOLE_SEQUENCE_GUARD"); v != "" {
		cfg.Store.SequenceGuard = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("MIRADOR_CONSOLE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MIRADOR_CONSOLE_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("MIRADOR_CONSOLE_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
}
