package shared

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	MathAPI MathAPIConfig `yaml:"math_api"`
	Chat    ChatConfig    `yaml:"chat"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr" env:"MCPMATH_SERVER_ADDR"`
	Path         string        `yaml:"path" env:"MCPMATH_SERVER_PATH"`
	AllowedHosts []string      `yaml:"allowed_hosts" env:"MCPMATH_ALLOWED_HOSTS"`
	InitTimeout  time.Duration `yaml:"init_timeout" env:"MCPMATH_INIT_TIMEOUT"`
	KeepAlive    time.Duration `yaml:"keep_alive" env:"MCPMATH_KEEP_ALIVE"`
}

type MathAPIConfig struct {
	Addr    string        `yaml:"addr" env:"MCPMATH_API_ADDR"`
	BaseURL string        `yaml:"base_url" env:"MCPMATH_API_BASE_URL"`
	Timeout time.Duration `yaml:"timeout" env:"MCPMATH_API_TIMEOUT"`
}

type ChatConfig struct {
	MCPURL  string `yaml:"mcp_url" env:"MCPMATH_MCP_URL"`
	BaseURL string `yaml:"base_url" env:"MCPMATH_MODEL_BASE_URL"`
	Model   string `yaml:"model" env:"MCPMATH_MODEL"`
	APIKey  string `yaml:"api_key" env:"MCPMATH_MODEL_API_KEY"`
	Prompt  string `yaml:"prompt" env:"MCPMATH_PROMPT"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"MCPMATH_LOG_LEVEL"`
	Format string `yaml:"format" env:"MCPMATH_LOG_FORMAT"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8000",
			Path:         "/mcp",
			AllowedHosts: []string{"127.0.0.1", "localhost", "127.0.0.1:8000", "localhost:8000"},
			InitTimeout:  30 * time.Second,
			KeepAlive:    15 * time.Second,
		},
		MathAPI: MathAPIConfig{
			Addr:    ":3333",
			BaseURL: "http://127.0.0.1:3333",
			Timeout: 10 * time.Second,
		},
		Chat: ChatConfig{
			MCPURL:  "http://localhost:8000/mcp",
			BaseURL: "http://localhost:11434/v1",
			Model:   "qwen3:1.7b",
			APIKey:  "ollama",
			Prompt:  "What is 45432542 plus 87468748?",
		},
		Logging: LoggingConfig{
			Level:  "debug",
			Format: "console",
		},
	}
}

// LoadConfig layers the defaults, an optional YAML file and MCPMATH_*
// environment variables, in that order. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decoding environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(name)
	})
}

func (c *Config) Validate() error {
	if c.Server.Path == "" || !strings.HasPrefix(c.Server.Path, "/") {
		return fmt.Errorf("server.path must start with /")
	}
	if len(c.Server.AllowedHosts) == 0 {
		return fmt.Errorf("server.allowed_hosts must not be empty")
	}
	if c.Server.InitTimeout <= 0 {
		return fmt.Errorf("server.init_timeout must be positive")
	}
	for name, raw := range map[string]string{
		"math_api.base_url": c.MathAPI.BaseURL,
		"chat.mcp_url":      c.Chat.MCPURL,
		"chat.base_url":     c.Chat.BaseURL,
	} {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("%s is not a valid URL: %w", name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%s must use http or https scheme", name)
		}
	}
	return nil
}
