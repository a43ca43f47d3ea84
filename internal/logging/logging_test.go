package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
		" debug ": slog.LevelDebug,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetup_WritesConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "log.txt")

	logger, closer, err := setup(&console, "info", path)
	if err != nil {
		t.Fatal(err)
	}
	logger.With("post_id", "42").Info("reply sent")
	logger.Debug("hidden")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for name, out := range map[string]string{"console": console.String(), "file": string(data)} {
		if !strings.Contains(out, "reply sent") || !strings.Contains(out, "post_id=42") {
			t.Errorf("%s output missing record: %q", name, out)
		}
		if strings.Contains(out, "hidden") {
			t.Errorf("%s output contains debug record", name)
		}
	}
}

func TestSetup_AppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	if err := os.WriteFile(path, []byte("earlier line\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	logger, closer, err := setup(&bytes.Buffer{}, "info", path)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("later line")
	closer.Close()

	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), "earlier line\n") || !strings.Contains(string(data), "later line") {
		t.Fatalf("log file was not appended to: %q", data)
	}
}

func TestSetup_ConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	logger, closer, err := setup(&console, "debug", "")
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()
	logger.Debug("visible")
	if !strings.Contains(console.String(), "visible") {
		t.Fatalf("expected debug record, got %q", console.String())
	}
}
