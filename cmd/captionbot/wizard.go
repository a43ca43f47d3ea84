package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"captionbot/internal/config"

	"github.com/spf13/cobra"
)

func wizardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wizard",
		Short: "Interactive setup: accounts → credentials → event sources → alerts",
		Long:  "Guides you through the watched and bot accounts, API credentials, stream/webhook settings and Telegram alerts. Writes config to the path used by --config or default.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				cfg = config.Starter()
			}
			if err := runWizard(cfg, os.Stdin, os.Stdout); err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return fmt.Errorf("config validation: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			fmt.Printf("\nConfig saved to %s\n", cfgPath)
			fmt.Println("Next: run 'captionbot doctor', then 'captionbot run'.")
			return nil
		},
	}
}

// runWizard asks for each setting on out and reads answers from in. An empty
// answer keeps the value shown in brackets.
func runWizard(cfg *config.Config, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	prompt := func(label, def string) (string, error) {
		if def != "" {
			fmt.Fprintf(out, "%s [%s]: ", label, def)
		} else {
			fmt.Fprintf(out, "%s: ", label)
		}
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		if s := strings.TrimSpace(line); s != "" {
			return s, nil
		}
		return def, nil
	}
	yes := func(label string, def bool) (bool, error) {
		d := "n"
		if def {
			d = "y"
		}
		ans, err := prompt(label+" (y/n)", d)
		if err != nil {
			return false, err
		}
		return strings.HasPrefix(strings.ToLower(ans), "y"), nil
	}

	var err error

	fmt.Fprintln(out, "\n--- Step 1: Accounts ---")
	if cfg.Twitter.MonitoredHandle, err = prompt("Account to caption (handle, no @)", cfg.Twitter.MonitoredHandle); err != nil {
		return err
	}
	if cfg.Twitter.BotHandle, err = prompt("Bot account (handle, no @)", cfg.Twitter.BotHandle); err != nil {
		return err
	}
	cfg.Twitter.MonitoredHandle = strings.TrimPrefix(cfg.Twitter.MonitoredHandle, "@")
	cfg.Twitter.BotHandle = strings.TrimPrefix(cfg.Twitter.BotHandle, "@")

	fmt.Fprintln(out, "\n--- Step 2: API credentials (values or ${ENV_VAR} references) ---")
	for _, f := range []struct {
		label string
		dst   *string
	}{
		{"API key", &cfg.Twitter.APIKey},
		{"API key secret", &cfg.Twitter.APIKeySecret},
		{"Access token", &cfg.Twitter.AccessToken},
		{"Access token secret", &cfg.Twitter.AccessTokenSecret},
	} {
		if *f.dst, err = prompt(f.label, *f.dst); err != nil {
			return err
		}
	}

	fmt.Fprintln(out, "\n--- Step 3: Event sources ---")
	if cfg.Stream.Enabled, err = yes("Follow the account's status stream", cfg.Stream.Enabled); err != nil {
		return err
	}
	if cfg.Webhook.Enabled, err = yes("Receive DMs and mentions by webhook", cfg.Webhook.Enabled); err != nil {
		return err
	}
	if cfg.Webhook.Enabled {
		port, err := prompt("Webhook listen port", strconv.Itoa(cfg.Webhook.Port))
		if err != nil {
			return err
		}
		if n, convErr := strconv.Atoi(port); convErr == nil {
			cfg.Webhook.Port = n
		}
		if cfg.Webhook.PublicURL, err = prompt("Public HTTPS URL of the webhook (empty to skip registration)", cfg.Webhook.PublicURL); err != nil {
			return err
		}
		cfg.Webhook.Register = cfg.Webhook.PublicURL != ""
		if cfg.Webhook.Register {
			if cfg.Webhook.Environment, err = prompt("Account activity environment", cfg.Webhook.Environment); err != nil {
				return err
			}
		}
	}

	fmt.Fprintln(out, "\n--- Step 4: Operator alerts ---")
	if cfg.Notify.Telegram.Enabled, err = yes("Send failures and mute changes to Telegram", cfg.Notify.Telegram.Enabled); err != nil {
		return err
	}
	if cfg.Notify.Telegram.Enabled {
		if cfg.Notify.Telegram.Token, err = prompt("Telegram bot token (from @BotFather)", cfg.Notify.Telegram.Token); err != nil {
			return err
		}
		def := ""
		if cfg.Notify.Telegram.ChatID != 0 {
			def = strconv.FormatInt(cfg.Notify.Telegram.ChatID, 10)
		}
		chat, err := prompt("Telegram chat id", def)
		if err != nil {
			return err
		}
		id, err := strconv.ParseInt(chat, 10, 64)
		if err != nil {
			return fmt.Errorf("telegram chat id: %w", err)
		}
		cfg.Notify.Telegram.ChatID = id
	}
	return nil
}
