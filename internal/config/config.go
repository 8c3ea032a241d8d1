package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. APPLYFLOW_GATEWAY_PROVIDER.
const EnvPrefix = "APPLYFLOW"

// Config holds the application configuration
type Config struct {
	DataDir    string           `mapstructure:"data_dir"`
	Simulation bool             `mapstructure:"simulation"` // deterministic local matching and tailoring
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Automation AutomationConfig `mapstructure:"automation"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Matching   MatchingConfig   `mapstructure:"matching"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Log        LogConfig        `mapstructure:"log"`
}

type GatewayConfig struct {
	Provider     string        `mapstructure:"provider"` // gemini, ollama, openai, lmstudio
	Model        string        `mapstructure:"model"`
	GeminiAPIKey string        `mapstructure:"gemini_api_key"`
	OpenAIAPIKey string        `mapstructure:"openai_api_key"`
	OpenAIURL    string        `mapstructure:"openai_url"`
	OllamaURL    string        `mapstructure:"ollama_url"`
	LMStudioURL  string        `mapstructure:"lmstudio_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type AutomationConfig struct {
	Backend      string        `mapstructure:"backend"` // chromedp, playwright
	Headless     bool          `mapstructure:"headless"`
	StepTimeout  time.Duration `mapstructure:"step_timeout"`
	StageRetries int           `mapstructure:"stage_retries"`
}

type RateLimitConfig struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
	Mode   string        `mapstructure:"mode"` // sliding, fixed, token_bucket
}

type MatchingConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

type NotifyConfig struct {
	TelegramToken  string `mapstructure:"telegram_token"`
	TelegramChatID int64  `mapstructure:"telegram_chat_id"`
}

type LogConfig struct {
	JSON  bool `mapstructure:"json"`
	Debug bool `mapstructure:"debug"`
}

// DatabasePath is the sqlite file inside the data directory
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "applyflow.db")
}

// ResumeDir is where rendered resumes are written
func (c *Config) ResumeDir() string {
	return filepath.Join(c.DataDir, "resumes")
}

var defaults = map[string]any{
	"simulation":               false,
	"gateway.provider":         "ollama",
	"gateway.model":            "",
	"gateway.gemini_api_key":   "",
	"gateway.openai_api_key":   "",
	"gateway.openai_url":       "https://api.openai.com/v1",
	"gateway.ollama_url":       "http://localhost:11434",
	"gateway.lmstudio_url":     "http://localhost:1234/v1",
	"gateway.timeout":          "60s",
	"automation.backend":       "chromedp",
	"automation.headless":      true,
	"automation.step_timeout":  "45s",
	"automation.stage_retries": 1,
	"rate_limit.limit":         5,
	"rate_limit.window":        "1h",
	"rate_limit.mode":          "sliding",
	"matching.concurrency":     4,
	"notify.telegram_token":    "",
	"notify.telegram_chat_id":  0,
	"log.json":                 false,
	"log.debug":                false,
}

// secretKeys are masked by display commands.
var secretKeys = []string{"gateway.gemini_api_key", "gateway.openai_api_key", "notify.telegram_token"}

// DefaultDir returns ~/.applyflow
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".applyflow"), nil
}

// Path returns the config file inside dir
func Path(dir string) string {
	return filepath.Join(dir, "config.yaml")
}

// Load reads dir/config.yaml, creating it on first run. Values from .env files
// and APPLYFLOW_* variables override the file.
func Load(dir string) (*Config, error) {
	v, err := open(dir)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.DataDir = dir
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the pipeline cannot run with
func (c *Config) Validate() error {
	switch c.Gateway.Provider {
	case "gemini", "ollama", "openai", "lmstudio":
	default:
		return fmt.Errorf("invalid gateway.provider %q: must be gemini, ollama, openai or lmstudio", c.Gateway.Provider)
	}
	switch c.Automation.Backend {
	case "chromedp", "playwright":
	default:
		return fmt.Errorf("invalid automation.backend %q: must be chromedp or playwright", c.Automation.Backend)
	}
	if c.RateLimit.Limit > 0 && c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be positive")
	}
	if c.Automation.StageRetries < 0 || c.Automation.StageRetries > 1 {
		return fmt.Errorf("automation.stage_retries must be 0 or 1")
	}
	return nil
}

// Set updates a configuration value in dir/config.yaml
func Set(dir, key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	if !slices.Contains(Keys(), key) {
		return fmt.Errorf("invalid key %q: must be one of %s", key, strings.Join(Keys(), ", "))
	}

	v, err := open(dir)
	if err != nil {
		return err
	}
	v.Set(key, value)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Write from a file-only instance so env and .env values stay out of the file.
	file := viper.New()
	file.SetConfigFile(Path(dir))
	file.SetConfigType("yaml")
	if err := file.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	file.Set(key, value)
	return file.WriteConfig()
}

// Get retrieves a configuration value as a string
func Get(dir, key string) (string, error) {
	v, err := open(dir)
	if err != nil {
		return "", err
	}
	return v.GetString(key), nil
}

// Keys lists every settable key, sorted
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// IsSecret reports whether key holds a credential
func IsSecret(key string) bool {
	return slices.Contains(secretKeys, key)
}

func open(dir string) (*viper.Viper, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := Path(dir)
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err := createDefaultConfig(configFile); err != nil {
			return nil, err
		}
	}

	if err := loadDotEnv(filepath.Join(dir, ".env"), ".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return v, nil
}

// loadDotEnv loads the first existing files. Variables already set win.
func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		err := godotenv.Load(p)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return fmt.Errorf("failed to load %s: %w", p, err)
	}
	return nil
}

// createDefaultConfig creates a default config file
func createDefaultConfig(path string) error {
	defaultConfig := `# Applyflow Configuration
# Local deterministic matching and tailoring, no model calls
simulation: false

gateway:
  provider: ollama # gemini, ollama, openai, lmstudio
  model: ""
  ollama_url: http://localhost:11434
  lmstudio_url: http://localhost:1234/v1
  openai_url: https://api.openai.com/v1
  timeout: 60s
  # API keys (keep this file secure!), or set APPLYFLOW_GATEWAY_GEMINI_API_KEY
  gemini_api_key: ""
  openai_api_key: ""

automation:
  backend: chromedp # chromedp, playwright
  headless: true
  step_timeout: 45s
  stage_retries: 1

# Prefills per site per window
rate_limit:
  limit: 5
  window: 1h
  mode: sliding # sliding, fixed, token_bucket

matching:
  concurrency: 4

# Review reminders (keep this file secure!)
notify:
  telegram_token: ""
  telegram_chat_id: 0

log:
  json: false
  debug: false
`
	return os.WriteFile(path, []byte(defaultConfig), 0600)
}
