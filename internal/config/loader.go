package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envOverrides maps environment variables onto config fields. Later entries win.
var envOverrides = []struct {
	key string
	set func(*Config, string)
}{
	{"APIFY_API_TOKEN", func(c *Config, v string) { c.Dataset.Token = v }},
	{"APIFY_DATASET_ID", func(c *Config, v string) { c.Dataset.DatasetID = v }},
	{"APIFY_ACTOR_ID", func(c *Config, v string) { c.Dataset.ActorID = v }},
	{"GROQ_API_KEY", func(c *Config, v string) { c.LLM.APIKey = v }},
	{"LLM_API_KEY", func(c *Config, v string) { c.LLM.APIKey = v }},
	{"LLM_BASE_URL", func(c *Config, v string) { c.LLM.BaseURL = v }},
	{"LLM_MODEL", func(c *Config, v string) { c.LLM.Model = v }},
	{"CRM_BASE_URL", func(c *Config, v string) { c.CRM.BaseURL = v }},
	{"CRM_WORKSPACE_ID", func(c *Config, v string) { c.CRM.WorkspaceID = v }},
	{"INTERCOM_ACCESS_TOKEN", func(c *Config, v string) { c.Notify.AccessToken = v }},
	{"INTERCOM_TEST_USER_EMAIL", func(c *Config, v string) { c.Notify.RecipientEmail = v }},
	{"DASHBOARD_URL", func(c *Config, v string) { c.Notify.DashboardURL = v }},
	{"REDPANDA_BROKERS", func(c *Config, v string) { c.Stream.Brokers = v }},
	{"DEFAULT_BUSINESS_NAME", func(c *Config, v string) { c.Business.Name = v }},
	{"DEFAULT_PLACE_ID", func(c *Config, v string) { c.Business.PlaceID = v }},
}

// Loader reads a YAML config file, overlays the environment and watches the
// file for changes.
type Loader struct {
	path     string
	lookup   func(string) (string, bool)
	mu       sync.RWMutex
	current  *Config
	onChange []func(*Config)
}

// NewLoader loads envFile into the process environment (if it exists, never
// overriding variables already set), then performs the initial load.
func NewLoader(path, envFile string) (*Loader, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}
	return newLoader(path, os.LookupEnv)
}

func newLoader(path string, lookup func(string) (string, bool)) (*Loader, error) {
	l := &Loader{path: path, lookup: lookup}
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = cfg
	return l, nil
}

// Config returns the current (latest) configuration.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked whenever the config reloads.
func (l *Loader) OnChange(fn func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts a background goroutine that hot-reloads the config on file changes.
// Call the returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", l.path, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if _, err := l.Reload(); err != nil {
						slog.Warn("config reload failed, keeping previous config", "path", l.path, "err", err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "err", err)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}

// Reload forces an immediate re-read of the config file. A file that fails
// Validate is rejected: the previous config stays current and no callback fires.
func (l *Loader) Reload() (*Config, error) {
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	callbacks := make([]func(*Config), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
	return cfg, nil
}

func (l *Loader) load() (*Config, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", l.path, err)
	}
	// Keys absent from the file keep their defaults; explicit zeros are kept.
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", l.path, err)
	}
	l.applyEnv(cfg)
	return cfg, nil
}

func (l *Loader) applyEnv(cfg *Config) {
	for _, o := range envOverrides {
		if v, ok := l.lookup(o.key); ok && v != "" {
			o.set(cfg, v)
		}
	}
}

// Default returns a config populated with every default value.
func Default() *Config {
	return &Config{
		Server:   ServerConf{Addr: ":8080"},
		Business: BusinessConf{ID: "demo-business", Name: "Demo Real Estate Group"},
		Cycle: CycleConf{
			Mode:             ModeDetached,
			AnalyzingDelayMs: 600,
			ActingDelayMs:    400,
			QueueDepth:       8,
			TimeoutMs:        180000,
		},
		LLM:    LLMConf{Temperature: 0.3, MaxTokens: 600},
		Stream: StreamConf{Topic: "credibility-events"},
	}
}
