package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"trackline/internal/notifier"
)

// Config models trackline.yml.
type Config struct {
	Server struct {
		Listen           string `yaml:"listen"`
		BasePath         string `yaml:"base_path"`
		JWTSecret        string `yaml:"jwt_secret"`
		AllowHeaderEmail bool   `yaml:"allow_header_email"`
	} `yaml:"server"`
	Notifications struct {
		Email   *notifier.EmailConfig `yaml:"email"`
		Enabled bool                  `yaml:"enabled"`
	} `yaml:"notifications"`
	Webhooks []Webhook `yaml:"webhooks"`
}

// Webhook forwards matching events to an external URL.
type Webhook struct {
	URL    string   `yaml:"url"`
	Events []string `yaml:"events"`
	Secret string   `yaml:"secret"`
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "trackline.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create it or run tl init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults when no config file exists.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	cfg.Server.Listen = "127.0.0.1:8787"
	cfg.Server.BasePath = "/v0"
	return &cfg
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("config.server.listen is required")
	}
	if c.Server.BasePath == "" {
		return fmt.Errorf("config.server.base_path is required")
	}
	if c.Notifications.Enabled && c.Notifications.Email == nil {
		return fmt.Errorf("config.notifications.email is required when notifications are enabled")
	}
	if c.Notifications.Email != nil {
		if err := c.Notifications.Email.Validate(); err != nil {
			return err
		}
	}
	for i, wh := range c.Webhooks {
		if wh.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
	}
	return nil
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `server:
  listen: 127.0.0.1:8787
  base_path: /v0
  jwt_secret: ""
  allow_header_email: true

notifications:
  enabled: false
  # email:
  #   host: smtp.example.com
  #   port: 587
  #   username: ""
  #   password: ""
  #   from: trackline@example.com

webhooks: []
  # - url: https://example.com/hooks/trackline
  #   events: [invitation.sent, issue.moved]
  #   secret: ""
`
