package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"captionbot/internal/domain"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for captionbot.
type Config struct {
	General GeneralConfig `json:"general"`
	Twitter TwitterConfig `json:"twitter"`
	Webhook WebhookConfig `json:"webhook"`
	Stream  StreamConfig  `json:"stream"`
	Render  RenderConfig  `json:"render"`
	Router  RouterConfig  `json:"router"`
	Ledger  LedgerConfig  `json:"ledger"`
	Metrics MetricsConfig `json:"metrics"`
	Notify  NotifyConfig  `json:"notify"`
}

type GeneralConfig struct {
	Workspace string `json:"workspace"`
	LogLevel  string `json:"logLevel"`
	LogFile   string `json:"logFile"` // append-only diagnostic log; empty = stderr only
}

// TwitterConfig holds the OAuth 1.0a user-context credentials and the two
// accounts the bot cares about.
type TwitterConfig struct {
	APIKey            string `json:"apiKey"`
	APIKeySecret      string `json:"apiKeySecret"`
	AccessToken       string `json:"accessToken"`
	AccessTokenSecret string `json:"accessTokenSecret"`
	MonitoredHandle   string `json:"monitoredHandle"` // account whose photos get captioned and who may send commands
	BotHandle         string `json:"botHandle"`       // the bot's own account
	APIBase           string `json:"apiBase"`
	UploadBase        string `json:"uploadBase"`
	StreamBase        string `json:"streamBase"`
	TimeoutSeconds    int    `json:"timeoutSeconds"`
}

// WebhookConfig configures the account-activity webhook receiver.
type WebhookConfig struct {
	Enabled     bool   `json:"enabled"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Path        string `json:"path"`
	PublicURL   string `json:"publicUrl"`   // externally reachable URL of Path
	Environment string `json:"environment"` // account-activity environment label
	Register    bool   `json:"register"`    // replace registered webhooks with PublicURL on startup
}

type StreamConfig struct {
	Enabled          bool `json:"enabled"`
	ReconnectSeconds int  `json:"reconnectSeconds"`
}

// RenderConfig configures the caption renderer.
type RenderConfig struct {
	TemplatePath   string `json:"templatePath"` // empty = built-in template
	Caption        string `json:"caption"`
	MaxDimension   int    `json:"maxDimension"`
	PaddingWidth   int    `json:"paddingWidth"`
	PaddingHeight  int    `json:"paddingHeight"`
	Quality        int    `json:"quality"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
	ChromePath     string `json:"chromePath"`
	OutputDir      string `json:"outputDir"` // keep a copy of every captioned image here
}

type RouterConfig struct {
	Concurrency int `json:"concurrency"`
	BusSize     int `json:"busSize"`
}

type LedgerConfig struct {
	Enabled        bool   `json:"enabled"`
	DBPath         string `json:"dbPath"`
	SkipDuplicates bool   `json:"skipDuplicates"` // don't reply twice with the same photo to the same post
}

// MetricsConfig configures the Prometheus text endpoint served next to the webhook.
type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

type NotifyConfig struct {
	Telegram TelegramNotifyConfig `json:"telegram"`
}

// TelegramNotifyConfig routes operator alerts to a Telegram chat.
type TelegramNotifyConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	ChatID  int64  `json:"chatId"`
}

// DefaultConfigDir returns the default config directory (~/.captionbot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".captionbot"
	}
	return filepath.Join(home, ".captionbot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads, expands and validates a config file. Files ending in .yaml or
// .yml are parsed as YAML, everything else as JSON.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	if isYAML(path) {
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.Workspace = ExpandPath(cfg.General.Workspace)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Ledger.DBPath = ExpandPath(cfg.Ledger.DBPath)
	cfg.Render.TemplatePath = ExpandPath(cfg.Render.TemplatePath)
	cfg.Render.OutputDir = ExpandPath(cfg.Render.OutputDir)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

// Save writes cfg to path, as YAML or JSON depending on the extension.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if isYAML(path) {
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("cannot marshal config: %w", err)
		}
		if data, err = yaml.Marshal(m); err != nil {
			return fmt.Errorf("cannot marshal config: %w", err)
		}
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Twitter.TimeoutSeconds < 1 {
		errs = append(errs, "twitter.timeoutSeconds must be >= 1")
	}

	if cfg.Webhook.Port < 0 || cfg.Webhook.Port > 65535 {
		errs = append(errs, "webhook.port must be between 0 and 65535")
	}
	if cfg.Webhook.Enabled && !strings.HasPrefix(cfg.Webhook.Path, "/") {
		errs = append(errs, "webhook.path must start with /")
	}
	if cfg.Webhook.Register && cfg.Webhook.PublicURL == "" {
		errs = append(errs, "webhook.publicUrl is required when webhook.register is set")
	}
	if cfg.Webhook.Register && cfg.Webhook.Environment == "" {
		errs = append(errs, "webhook.environment is required when webhook.register is set")
	}
	if cfg.Stream.ReconnectSeconds < 1 {
		errs = append(errs, "stream.reconnectSeconds must be >= 1")
	}

	if cfg.Render.MaxDimension < 1 {
		errs = append(errs, "render.maxDimension must be >= 1")
	}
	if cfg.Render.PaddingWidth < 0 || cfg.Render.PaddingHeight < 0 {
		errs = append(errs, "render.paddingWidth and render.paddingHeight must be >= 0")
	}
	if cfg.Render.Quality < 1 || cfg.Render.Quality > 100 {
		errs = append(errs, "render.quality must be between 1 and 100")
	}
	if cfg.Render.TimeoutSeconds < 1 {
		errs = append(errs, "render.timeoutSeconds must be >= 1")
	}

	if cfg.Router.Concurrency < 1 || cfg.Router.Concurrency > 64 {
		errs = append(errs, "router.concurrency must be between 1 and 64")
	}
	if cfg.Router.BusSize < 1 {
		errs = append(errs, "router.busSize must be >= 1")
	}

	if cfg.Ledger.Enabled && cfg.Ledger.DBPath == "" {
		errs = append(errs, "ledger.dbPath is required when the ledger is enabled")
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Endpoint, "/") {
		errs = append(errs, "metrics.endpoint must start with /")
	}
	if cfg.Notify.Telegram.Enabled && (cfg.Notify.Telegram.Token == "" || cfg.Notify.Telegram.ChatID == 0) {
		errs = append(errs, "notify.telegram needs token and chatId when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", domain.ErrConfig, strings.Join(errs, "\n  - "))
	}
	return nil
}

// ValidateCredentials checks the settings needed to talk to the platform.
// It is separate from Validate so that `config` subcommands work on a fresh file.
func ValidateCredentials(cfg *Config) error {
	var missing []string
	for name, v := range map[string]string{
		"twitter.apiKey":            cfg.Twitter.APIKey,
		"twitter.apiKeySecret":      cfg.Twitter.APIKeySecret,
		"twitter.accessToken":       cfg.Twitter.AccessToken,
		"twitter.accessTokenSecret": cfg.Twitter.AccessTokenSecret,
		"twitter.monitoredHandle":   cfg.Twitter.MonitoredHandle,
		"twitter.botHandle":         cfg.Twitter.BotHandle,
	} {
		// An unresolved ${VAR} placeholder counts as missing.
		if v = strings.TrimSpace(v); v == "" || strings.HasPrefix(v, "${") {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: missing %s", domain.ErrConfig, strings.Join(missing, ", "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// yamlToJSON re-encodes a YAML document as JSON so that the json struct tags
// stay the single source of field names.
func yamlToJSON(data []byte) ([]byte, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return json.Marshal(m)
}
