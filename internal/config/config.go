// ABOUTME: Configuration loading and parsing for the prospector
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete prospector configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Directory DirectoryConfig `yaml:"directory"`
	AI        AIConfig        `yaml:"ai"`
	Slack     SlackConfig     `yaml:"slack"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the HTTP listen address
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path        string        `yaml:"path"`
	CacheExpiry time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	CacheExpiryRaw string `yaml:"cache_expiry"`
}

// DirectoryConfig holds the contact directory (Apollo) configuration
type DirectoryConfig struct {
	APIKey     string   `yaml:"api_key"`
	BaseURL    string   `yaml:"base_url"`
	SequenceID string   `yaml:"sequence_id"`
	Titles     []string `yaml:"titles"`   // empty uses the built-in title set
	PerPage    int      `yaml:"per_page"` // 0 uses the client default
}

// AIConfig holds draft generator configuration. Provider selects the backend:
// "anthropic" (default) or "gemini".
type AIConfig struct {
	Provider        string `yaml:"provider"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	AnthropicModel  string `yaml:"anthropic_model"`
	GeminiAPIKey    string `yaml:"gemini_api_key"`
	GeminiModel     string `yaml:"gemini_model"`
}

// SlackConfig holds the review channel configuration
type SlackConfig struct {
	BotToken      string `yaml:"bot_token"`
	SigningSecret string `yaml:"signing_secret"`
	ChannelID     string `yaml:"channel_id"`
}

// AuthConfig holds operator API authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.Database.CacheExpiryRaw != "" {
		cfg.Database.CacheExpiry, err = time.ParseDuration(cfg.Database.CacheExpiryRaw)
		if err != nil {
			return nil, fmt.Errorf("parsing cache_expiry %q: %w", cfg.Database.CacheExpiryRaw, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that the structurally required fields are present.
// Returns an error describing the first validation failure encountered.
// Missing credentials are not fatal here; MissingCredentials reports them
// so startup can warn without refusing to boot.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.AI.Provider {
	case "", "anthropic", "gemini":
	default:
		return fmt.Errorf("ai.provider must be \"anthropic\" or \"gemini\", got %q", c.AI.Provider)
	}

	return nil
}

// MissingCredentials lists the credential keys that are unset. The service
// boots without them; the affected pipeline stage fails at call time.
func (c *Config) MissingCredentials() []string {
	var missing []string
	if c.Directory.APIKey == "" {
		missing = append(missing, "directory.api_key")
	}
	switch c.AI.Provider {
	case "gemini":
		if c.AI.GeminiAPIKey == "" {
			missing = append(missing, "ai.gemini_api_key")
		}
	default:
		if c.AI.AnthropicAPIKey == "" {
			missing = append(missing, "ai.anthropic_api_key")
		}
	}
	if c.Slack.BotToken == "" {
		missing = append(missing, "slack.bot_token")
	}
	if c.Slack.SigningSecret == "" {
		missing = append(missing, "slack.signing_secret")
	}
	if c.Slack.ChannelID == "" {
		missing = append(missing, "slack.channel_id")
	}
	return missing
}
