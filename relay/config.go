package relay

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/veilbit/otprelay/relay/internal/monitor"
)

// Config is the top-level relay configuration.
type Config struct {
	Inbox   InboxConfig   `yaml:"inbox"`
	Browser BrowserConfig `yaml:"browser"`
	Storage StorageConfig `yaml:"storage"`
	HTTP    HTTPConfig    `yaml:"http"`
	Agent   AgentConfig   `yaml:"agent"`
}

// InboxConfig points the message monitor at the SMS/voice inbox page.
type InboxConfig struct {
	URL       string            `yaml:"url"`
	Selectors monitor.Selectors `yaml:"selectors"`
	Debounce  time.Duration     `yaml:"debounce"`
	Fallback  time.Duration     `yaml:"fallback"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	// Remote is the WebSocket URL of an already-running Chrome.
	// Empty launches a local instance.
	Remote   string `yaml:"remote"`
	Headless bool   `yaml:"headless"`
}

// StorageConfig locates the durable code buffer.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// HTTPConfig binds the status/debug API.
type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

// AgentConfig tunes the per-tab field agents.
type AgentConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	Debounce     time.Duration `yaml:"debounce"`
	Fallback     time.Duration `yaml:"fallback"`
	// URLFilters restrict which tabs get an agent, matched as substrings.
	// Empty means every page tab except the inbox.
	URLFilters []string `yaml:"url_filters"`
}

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// DefaultConfig returns a config with every default applied.
func DefaultConfig() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Inbox.Debounce <= 0 {
		c.Inbox.Debounce = 300 * time.Millisecond
	}
	if c.Inbox.Fallback <= 0 {
		c.Inbox.Fallback = 10 * time.Second
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "otprelay.db"
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = "127.0.0.1:8970"
	}
	if c.Agent.InitialDelay <= 0 {
		c.Agent.InitialDelay = time.Second
	}
	if c.Agent.Debounce <= 0 {
		c.Agent.Debounce = 500 * time.Millisecond
	}
	if c.Agent.Fallback <= 0 {
		c.Agent.Fallback = 2 * time.Second
	}
}

// wantsAgent reports whether a tab URL should get a field agent.
func (c *Config) wantsAgent(pageURL string) bool {
	if pageURL == "" || strings.HasPrefix(pageURL, "chrome://") || strings.HasPrefix(pageURL, "devtools://") {
		return false
	}
	if c.Inbox.URL != "" && strings.HasPrefix(pageURL, c.Inbox.URL) {
		return false
	}
	if len(c.Agent.URLFilters) == 0 {
		return true
	}
	for _, f := range c.Agent.URLFilters {
		if strings.Contains(pageURL, f) {
			return true
		}
	}
	return false
}
