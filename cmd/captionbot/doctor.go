package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"captionbot/internal/config"
	"captionbot/internal/ledger"
	"captionbot/internal/render"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

// chromeCandidates mirrors the executable names chromedp looks for.
var chromeCandidates = []string{
	"headless_shell",
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"google-chrome-beta",
	"google-chrome-unstable",
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your captionbot installation",
		Long: `Verifies that captionbot's configuration, credentials, browser, ledger and
ports are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("captionbot doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'captionbot init' to create a starter configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				fmt.Printf("\n%d passed, 1 failed\n", passed)
				return fmt.Errorf("config invalid")
			}
			printPass("Config validation", "valid")
			passed++

			// 3. Credentials and handles
			if err := config.ValidateCredentials(cfg); err != nil {
				printFail("Credentials", err.Error())
				failed++
			} else {
				printPass("Credentials", fmt.Sprintf("@%s watched by @%s", cfg.Twitter.MonitoredHandle, cfg.Twitter.BotHandle))
				passed++
			}

			// 4. Event sources
			if !cfg.Stream.Enabled && !cfg.Webhook.Enabled {
				printFail("Event sources", "stream and webhook are both disabled")
				failed++
			} else {
				printPass("Event sources", fmt.Sprintf("stream=%t webhook=%t", cfg.Stream.Enabled, cfg.Webhook.Enabled))
				passed++
			}

			// 5. Browser for rendering
			if chrome, err := findChrome(cfg.Render.ChromePath); err != nil {
				printFail("Chrome", err.Error())
				failed++
			} else {
				printPass("Chrome", chrome)
				passed++
			}

			// 6. Render template
			if _, err := render.LoadTemplate(cfg.Render.TemplatePath); err != nil {
				printFail("Template", err.Error())
				failed++
			} else if cfg.Render.TemplatePath == "" {
				printPass("Template", "built-in")
				passed++
			} else {
				printPass("Template", cfg.Render.TemplatePath)
				passed++
			}

			// 7. Ledger writable
			if cfg.Ledger.Enabled {
				if schema, err := checkDatabase(cfg.Ledger.DBPath); err != nil {
					printFail("Ledger", err.Error())
					failed++
				} else {
					printPass("Ledger", fmt.Sprintf("%s (schema v%d)", cfg.Ledger.DBPath, schema))
					passed++
				}
			} else {
				printWarn("Ledger", "disabled, duplicate replies are not prevented")
				warned++
			}

			// 8. Webhook port
			if cfg.Webhook.Enabled {
				addr := net.JoinHostPort(cfg.Webhook.Host, strconv.Itoa(cfg.Webhook.Port))
				if err := checkPort(addr); err != nil {
					printWarn("Webhook port", fmt.Sprintf("%s may be in use: %v", addr, err))
					warned++
				} else {
					printPass("Webhook port", addr+" available")
					passed++
				}
				if cfg.Webhook.PublicURL == "" {
					printWarn("Webhook URL", "webhook.publicUrl not set, registration must be done elsewhere")
					warned++
				}
			}

			// 9. Output dir and log file writable
			for _, c := range []struct{ name, dir string }{
				{"Output dir", cfg.Render.OutputDir},
				{"Log file", filepath.Dir(cfg.General.LogFile)},
			} {
				if c.dir == "" || c.dir == "." {
					continue
				}
				if err := os.MkdirAll(c.dir, 0o755); err != nil {
					printWarn(c.name, fmt.Sprintf("cannot create %s: %v", c.dir, err))
					warned++
				} else {
					printPass(c.name, c.dir)
					passed++
				}
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running captionbot.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\ncaptionbot should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! captionbot is ready to run.\n")
			}
			return nil
		},
	}
}

// findChrome returns the browser the renderer will launch.
func findChrome(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("render.chromePath: %w", err)
		}
		return configured, nil
	}
	for _, name := range chromeCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no Chrome or Chromium found in PATH (set render.chromePath)")
}

// checkDatabase verifies dbPath is writable and returns its ledger schema version.
func checkDatabase(dbPath string) (int, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return 0, fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return 0, fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return 0, fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return 0, fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return ledger.GetSchemaVersion(db)
}

func checkPort(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
