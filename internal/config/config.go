// Package config loads the backlogsmith configuration: YAML settings from
// .backlogsmith/config.yaml layered over embedded defaults, with secrets
// taken from the environment (a .env file is honored via godotenv).
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultYAML string

// Dir is the name of the backlogsmith configuration directory.
const Dir = ".backlogsmith"

// File name constants for consistent usage across the codebase.
const (
	ConfigFile  = "config.yaml"
	BacklogFile = "backlog.json"
	PromptsDir  = "prompts"
	ArchiveDir  = "archive"
	EnvExample  = ".env.example"
)

// DefaultAgentTimeout applies when an agent has no timeout configured.
const DefaultAgentTimeout = 120 * time.Second

// Config is the full runtime configuration.
type Config struct {
	Provider  string `yaml:"provider"` // openai, grok, ollama
	Model     string `yaml:"model"`
	APIURL    string `yaml:"api_url"`    // chat-completions base URL override
	OllamaURL string `yaml:"ollama_url"` // ollama base URL

	Domain      string `yaml:"domain"`
	ProjectName string `yaml:"project_name"`

	Limits  Limits                   `yaml:"limits"`
	Quality Quality                  `yaml:"quality"`
	Agents  map[string]AgentSettings `yaml:"agents"`
	ADO     ADO                      `yaml:"azure_devops"`

	// Secrets, environment only - never written to config.yaml.
	APIKey   string `yaml:"-"`
	ADOToken string `yaml:"-"`
}

// Limits bounds the number of items requested per stage.
type Limits struct {
	MaxEpics    int `yaml:"max_epics"`
	MaxFeatures int `yaml:"max_features"` // per epic
	MaxStories  int `yaml:"max_stories"`  // per feature
	MaxTasks    int `yaml:"max_tasks"`    // per story
	MaxTests    int `yaml:"max_tests"`    // per story
}

// Quality is the quality-gate policy.
type Quality struct {
	MaxRetries  int `yaml:"max_retries"` // improvement attempts per candidate
	MinCriteria int `yaml:"min_acceptance_criteria"`
	MaxCriteria int `yaml:"max_acceptance_criteria"`
}

// AgentSettings configures one pipeline agent by name.
type AgentSettings struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Preset         string `yaml:"preset"`
}

// ADO identifies the Azure DevOps target.
type ADO struct {
	Organization string `yaml:"organization"`
	Project      string `yaml:"project"`
	AreaPath     string `yaml:"area_path"`
}

// Default returns the embedded default configuration.
func Default() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(DefaultYAML), &cfg); err != nil {
		return nil, fmt.Errorf("parse embedded default config: %w", err)
	}
	return &cfg, nil
}

// Load reads the configuration for a project directory. A missing
// config.yaml falls back to defaults; a malformed one is an error.
func Load(projectDir string) (*Config, error) {
	// Best-effort .env load; a missing file is fine.
	_ = godotenv.Load(filepath.Join(projectDir, ".env"))

	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	path := filepath.Join(projectDir, Dir, ConfigFile)
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	switch c.Provider {
	case "grok":
		c.APIKey = os.Getenv("GROK_API_KEY")
	case "ollama":
		if url := os.Getenv("OLLAMA_BASE_URL"); url != "" {
			c.OllamaURL = url
		}
	default:
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	c.ADOToken = os.Getenv("AZURE_DEVOPS_PAT")
}

func (c *Config) validate() error {
	switch c.Provider {
	case "openai", "grok", "ollama":
	default:
		return fmt.Errorf("unknown provider %q (supported: openai, grok, ollama)", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model must be set")
	}
	if c.Quality.MinCriteria <= 0 || c.Quality.MaxCriteria < c.Quality.MinCriteria {
		return fmt.Errorf("invalid acceptance criteria bounds [%d,%d]",
			c.Quality.MinCriteria, c.Quality.MaxCriteria)
	}
	return nil
}

// AgentTimeout resolves the call timeout for a named agent.
func (c *Config) AgentTimeout(name string) time.Duration {
	if s, ok := c.Agents[name]; ok && s.TimeoutSeconds > 0 {
		return time.Duration(s.TimeoutSeconds) * time.Second
	}
	return DefaultAgentTimeout
}

// AgentPreset resolves the sampling preset name for a named agent.
// An empty string means "use the default".
func (c *Config) AgentPreset(name string) string {
	if s, ok := c.Agents[name]; ok {
		return s.Preset
	}
	return ""
}
