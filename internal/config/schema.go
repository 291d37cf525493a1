package config

// Config is the top-level YAML structure. Secrets are never read from the
// file; they come from the environment (see applyEnv).
type Config struct {
	Version  string       `yaml:"version"`
	Server   ServerConf   `yaml:"server"`
	Business BusinessConf `yaml:"business"`
	Cycle    CycleConf    `yaml:"cycle"`
	Dataset  DatasetConf  `yaml:"dataset"`
	LLM      LLMConf      `yaml:"llm"`
	CRM      CRMConf      `yaml:"crm"`
	Notify   NotifyConf   `yaml:"notify"`
	Stream   StreamConf   `yaml:"stream"`
}

type ServerConf struct {
	Addr string `yaml:"addr"`
}

// BusinessConf supplies defaults for trigger requests that omit them.
type BusinessConf struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	PlaceID string `yaml:"place_id"`
}

// Cycle invocation modes.
const (
	ModeSync     = "sync"
	ModeDetached = "detached"
)

// CycleConf tunes the orchestrator.
type CycleConf struct {
	AnalyzingDelayMs int    `yaml:"analyzing_delay_ms"`
	ActingDelayMs    int    `yaml:"acting_delay_ms"`
	Mode             string `yaml:"mode"` // sync | detached
	QueueDepth       int    `yaml:"queue_depth"`
	TimeoutMs        int    `yaml:"timeout_ms"` // sync callers only
}

// DatasetConf configures the review dataset and scrape job source.
type DatasetConf struct {
	BaseURL       string `yaml:"base_url"`
	ActorID       string `yaml:"actor_id"`
	DatasetID     string `yaml:"dataset_id"`
	ScrapeEnabled bool   `yaml:"scrape_enabled"`
	Token         string `yaml:"-"`
}

// LLMConf configures the OpenAI-compatible text generation backend.
type LLMConf struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	APIKey      string  `yaml:"-"`
}

type CRMConf struct {
	BaseURL     string `yaml:"base_url"`
	WorkspaceID string `yaml:"workspace_id"`
	TimeoutMs   int    `yaml:"timeout_ms"`
}

type NotifyConf struct {
	BaseURL        string `yaml:"base_url"`
	RecipientEmail string `yaml:"recipient_email"`
	DashboardURL   string `yaml:"dashboard_url"`
	TimeoutMs      int    `yaml:"timeout_ms"`
	AccessToken    string `yaml:"-"`
}

// StreamConf configures the event stream. Brokers is a redis:// URL or host:port.
type StreamConf struct {
	Brokers string `yaml:"brokers"`
	Topic   string `yaml:"topic"`
}

// Integrations reports which external collaborators are configured.
func (c *Config) Integrations() map[string]bool {
	return map[string]bool{
		"dataset": c.Dataset.Token != "" || c.Dataset.DatasetID != "",
		"llm":     c.LLM.APIKey != "",
		"crm":     c.CRM.WorkspaceID != "",
		"notify":  c.Notify.AccessToken != "",
		"stream":  c.Stream.Brokers != "",
	}
}
