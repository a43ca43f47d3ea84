package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"captionbot/internal/domain"
)

// --- Validate ---

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := Defaults()
	cfg.General.LogLevel = "verbose"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for logLevel=verbose")
	}
	if !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Defaults()
	cfg.Webhook.Port = -1
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for negative port")
	}

	cfg.Webhook.Port = 70000
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for port > 65535")
	}
}

func TestValidate_RenderQualityBounds(t *testing.T) {
	for _, q := range []int{0, 101} {
		cfg := Defaults()
		cfg.Render.Quality = q
		if err := Validate(cfg); err == nil {
			t.Fatalf("expected error for quality=%d", q)
		}
	}
	for _, q := range []int{1, 50, 100} {
		cfg := Defaults()
		cfg.Render.Quality = q
		if err := Validate(cfg); err != nil {
			t.Fatalf("quality=%d should be valid: %v", q, err)
		}
	}
}

func TestValidate_RegisterNeedsPublicURL(t *testing.T) {
	cfg := Defaults()
	cfg.Webhook.Register = true
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error when register is set without publicUrl")
	}
	cfg.Webhook.PublicURL = "https://bot.example.com/webhook/twitter"
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config: %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Router.Concurrency = 0
	cfg.Render.MaxDimension = 0
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "router.concurrency") || !strings.Contains(msg, "render.maxDimension") {
		t.Fatalf("expected both problems reported, got: %s", msg)
	}
}

func TestValidate_TelegramNotifyNeedsChat(t *testing.T) {
	cfg := Defaults()
	cfg.Notify.Telegram.Enabled = true
	cfg.Notify.Telegram.Token = "123:abc"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for missing chatId")
	}
}

func TestValidateCredentials(t *testing.T) {
	cfg := Defaults()
	err := ValidateCredentials(cfg)
	if !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("expected ErrConfig for empty credentials, got %v", err)
	}

	cfg = Starter()
	cfg.Twitter.MonitoredHandle = "someone"
	cfg.Twitter.BotHandle = "somebot"
	if err := ValidateCredentials(cfg); err == nil {
		t.Fatal("unresolved placeholders should count as missing")
	}

	cfg.Twitter.APIKey = "k"
	cfg.Twitter.APIKeySecret = "ks"
	cfg.Twitter.AccessToken = "t"
	cfg.Twitter.AccessTokenSecret = "ts"
	if err := ValidateCredentials(cfg); err != nil {
		t.Fatalf("expected complete credentials to pass: %v", err)
	}
}

// --- Load / Save ---

func TestLoadSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	original := Defaults()
	original.Twitter.MonitoredHandle = "someone"

	if err := Save(path, original); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Twitter.MonitoredHandle != "someone" {
		t.Fatalf("expected someone, got %q", loaded.Twitter.MonitoredHandle)
	}
	if loaded.Render.MaxDimension != 800 {
		t.Fatalf("expected default maxDimension 800, got %d", loaded.Render.MaxDimension)
	}
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
twitter:
  monitoredHandle: someone
  botHandle: somebot
render:
  quality: 70
webhook:
  port: 9000
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Twitter.BotHandle != "somebot" {
		t.Errorf("expected somebot, got %q", cfg.Twitter.BotHandle)
	}
	if cfg.Render.Quality != 70 {
		t.Errorf("expected quality 70, got %d", cfg.Render.Quality)
	}
	if cfg.Webhook.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Webhook.Port)
	}
	// untouched sections keep their defaults
	if cfg.Render.MaxDimension != 800 {
		t.Errorf("expected default maxDimension, got %d", cfg.Render.MaxDimension)
	}
}

func TestSave_YAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	cfg := Defaults()
	cfg.Render.Caption = "hello"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Render.Caption != "hello" {
		t.Fatalf("expected caption hello, got %q", loaded.Render.Caption)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.json")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{invalid"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoad_ValidatesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"render":{"quality":0}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestLoad_WithEnvVarSubstitution(t *testing.T) {
	t.Setenv("CAPTIONBOT_TEST_KEY", "secret-key-value")
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"twitter":{"apiKey":"${CAPTIONBOT_TEST_KEY}","botHandle":"${CAPTIONBOT_TEST_BOT:-fallbackbot}"}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Twitter.APIKey != "secret-key-value" {
		t.Errorf("expected substituted key, got %q", cfg.Twitter.APIKey)
	}
	if cfg.Twitter.BotHandle != "fallbackbot" {
		t.Errorf("expected default value, got %q", cfg.Twitter.BotHandle)
	}
}

// --- ExpandEnvVars ---

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("CB_SET", "value")
	t.Setenv("CB_EMPTY", "")

	tests := []struct {
		in, want string
	}{
		{"${CB_SET}", "value"},
		{"${CB_UNSET_X:-dflt}", "dflt"},
		{"${CB_SET:-dflt}", "value"},
		{"${CB_EMPTY:-dflt}", "dflt"},
		{"${CB_UNSET_X}", "${CB_UNSET_X}"},
		{"a-${CB_SET}-${CB_SET}", "a-value-value"},
		{"$CB_SET", "$CB_SET"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := ExpandEnvVars(tt.in); got != tt.want {
			t.Errorf("ExpandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// --- accessor ---

func TestGetByPath_ValidPaths(t *testing.T) {
	cfg := Defaults()
	val, err := GetByPath(cfg, "render.maxDimension")
	if err != nil {
		t.Fatal(err)
	}
	if val != float64(800) {
		t.Fatalf("expected 800, got %v", val)
	}
}

func TestGetByPath_InvalidPath(t *testing.T) {
	if _, err := GetByPath(Defaults(), "render.nope"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestSetByPath_Conversions(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "metrics.enabled", "true"); err != nil {
		t.Fatal(err)
	}
	if !cfg.Metrics.Enabled {
		t.Error("expected metrics enabled")
	}
	if err := SetByPath(cfg, "render.quality", "80"); err != nil {
		t.Fatal(err)
	}
	if cfg.Render.Quality != 80 {
		t.Errorf("expected quality 80, got %d", cfg.Render.Quality)
	}
	if err := SetByPath(cfg, "twitter.botHandle", "somebot"); err != nil {
		t.Fatal(err)
	}
	if cfg.Twitter.BotHandle != "somebot" {
		t.Errorf("expected somebot, got %q", cfg.Twitter.BotHandle)
	}
}

func TestSetByPath_RejectsUnknownKeys(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "", "x"); err == nil {
		t.Error("expected error for empty path")
	}
	if err := SetByPath(cfg, "render.typo", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestSanitize_MasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Twitter.APIKey = "abcdefghijklmnop"
	cfg.Twitter.AccessTokenSecret = "short"
	cfg.Notify.Telegram.Token = "123456:ABCDEFGHIJ"

	s := Sanitize(cfg)
	if s.Twitter.APIKey != "abcd****mnop" {
		t.Errorf("unexpected mask: %q", s.Twitter.APIKey)
	}
	if s.Twitter.AccessTokenSecret != "***" {
		t.Errorf("short secret should be fully masked, got %q", s.Twitter.AccessTokenSecret)
	}
	if s.Notify.Telegram.Token == cfg.Notify.Telegram.Token {
		t.Error("telegram token not masked")
	}
	if cfg.Twitter.APIKey != "abcdefghijklmnop" {
		t.Error("Sanitize must not modify the original")
	}
}

func TestListPaths_ReturnsAllLeaves(t *testing.T) {
	paths := ListPaths(Defaults())
	for _, key := range []string{"render.quality", "webhook.port", "notify.telegram.chatId"} {
		if _, ok := paths[key]; !ok {
			t.Errorf("expected path %s in listing", key)
		}
	}
}
