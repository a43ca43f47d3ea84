package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"captionbot/internal/bus"
	"captionbot/internal/command"
	"captionbot/internal/config"
	"captionbot/internal/domain"
	"captionbot/internal/ledger"
	"captionbot/internal/logging"
	"captionbot/internal/media"
	"captionbot/internal/metrics"
	"captionbot/internal/notify"
	"captionbot/internal/pipeline"
	"captionbot/internal/publish"
	"captionbot/internal/render"
	"captionbot/internal/router"
	"captionbot/internal/runstate"
	"captionbot/internal/twitter"

	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot (status stream + webhook + event router)",
		Long:  "Looks up the monitored and bot accounts, then captions new photos and answers commands until interrupted.",
		RunE:  runBot,
	}
}

func runBot(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.ValidateCredentials(cfg); err != nil {
		return err
	}

	fileLogger, closer, err := logging.Setup(cfg.General.LogLevel, cfg.General.LogFile)
	if err != nil {
		return err
	}
	defer closer.Close()
	logger = fileLogger
	slog.SetDefault(fileLogger)

	if err := os.MkdirAll(cfg.General.Workspace, 0o755); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := twitter.New(twitter.Config{
		APIKey:            cfg.Twitter.APIKey,
		APIKeySecret:      cfg.Twitter.APIKeySecret,
		AccessToken:       cfg.Twitter.AccessToken,
		AccessTokenSecret: cfg.Twitter.AccessTokenSecret,
		APIBase:           cfg.Twitter.APIBase,
		UploadBase:        cfg.Twitter.UploadBase,
		StreamBase:        cfg.Twitter.StreamBase,
		Timeout:           time.Duration(cfg.Twitter.TimeoutSeconds) * time.Second,
		Logger:            logger,
	})

	monitored, bot, err := lookupAccounts(ctx, client, cfg.Twitter.MonitoredHandle, cfg.Twitter.BotHandle)
	if err != nil {
		return err
	}
	logger.Info("accounts resolved",
		"monitored", monitored.Handle, "monitored_id", monitored.ID,
		"bot", bot.Handle, "bot_id", bot.ID)

	// Event bus (closed during graceful shutdown below)
	eventBus := bus.New(cfg.Router.BusSize, logger)

	var notifier domain.Notifier
	if cfg.Notify.Telegram.Enabled {
		tg, err := notify.NewTelegram(notify.TelegramConfig{
			Token:  cfg.Notify.Telegram.Token,
			ChatID: cfg.Notify.Telegram.ChatID,
			Logger: logger,
		})
		if err != nil {
			logger.Warn("telegram notifier disabled", "err", err)
		} else {
			notifier = tg
		}
	}

	state := runstate.New(runstate.Config{
		Logger:   logger,
		OnChange: stateChanged(notifier),
	})
	defer state.Stop()

	var store *ledger.Store
	var ledgerDep pipeline.Ledger
	if cfg.Ledger.Enabled {
		store, err = ledger.Open(cfg.Ledger.DBPath, logger)
		if err != nil {
			return fmt.Errorf("ledger: %w", err)
		}
		defer store.Close()
		ledgerDep = store
	}

	renderer, err := newRenderer(cfg.Render)
	if err != nil {
		return err
	}

	captioner := pipeline.New(pipeline.Config{
		Acquirer: media.New(media.Config{
			Fetcher: client,
			Timeout: time.Duration(cfg.Twitter.TimeoutSeconds) * time.Second,
			Logger:  logger,
		}),
		Renderer:       renderer,
		Publisher:      publish.New(client, logger),
		Ledger:         ledgerDep,
		SkipDuplicates: cfg.Ledger.SkipDuplicates,
		Notifier:       notifier,
		Gate:           state,
		Logger:         logger,
	})

	interpreter := command.NewInterpreter(command.Config{
		State:       state,
		Captioner:   captioner,
		Fetcher:     client,
		Deleter:     client,
		Messenger:   client,
		MonitoredID: monitored.ID,
		BotID:       bot.ID,
		BotHandle:   bot.Handle,
		Logger:      logger,
	})

	rt := router.New(router.Config{
		Bus:             eventBus,
		State:           state,
		Captioner:       captioner,
		Interpreter:     interpreter,
		MonitoredID:     monitored.ID,
		MonitoredHandle: monitored.Handle,
		Concurrency:     cfg.Router.Concurrency,
		QueueSize:       cfg.Router.BusSize,
		Logger:          logger,
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		rt.Run(ctx)
	}()

	if cfg.Stream.Enabled {
		stream := client.NewStream(twitter.StreamConfig{
			FollowID:  monitored.ID,
			Reconnect: time.Duration(cfg.Stream.ReconnectSeconds) * time.Second,
			Bus:       eventBus,
			Logger:    logger,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := stream.Run(ctx); err != nil {
				logger.Error("status stream error", "err", err)
			}
		}()
	} else {
		logger.Info("status stream disabled")
	}

	if cfg.Webhook.Enabled {
		hook := twitter.NewWebhookServer(twitter.WebhookConfig{
			Addr:           net.JoinHostPort(cfg.Webhook.Host, strconv.Itoa(cfg.Webhook.Port)),
			Path:           cfg.Webhook.Path,
			ConsumerSecret: client.ConsumerSecret(),
			BotID:          bot.ID,
			Bus:            eventBus,
			Logger:         logger,
		})
		hook.Handle("/status", statusHandler(state))
		if cfg.Metrics.Enabled {
			hook.Handle(cfg.Metrics.Endpoint, metrics.Collector.Handler())
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := hook.Start(ctx); err != nil {
				logger.Error("webhook server error", "err", err)
			}
		}()

		if cfg.Webhook.Register {
			// The platform sends a CRC challenge during registration, so the
			// server has to be listening first.
			wh, err := client.SetupWebhook(ctx, cfg.Webhook.Environment, cfg.Webhook.PublicURL)
			if err != nil {
				logger.Error("webhook registration failed", "env", cfg.Webhook.Environment, "err", err)
			} else {
				logger.Info("webhook registered", "id", wh.ID, "url", wh.URL, "env", cfg.Webhook.Environment)
			}
		}
	} else {
		logger.Info("webhook disabled")
	}

	logger.Info("captionbot started. Press Ctrl+C to stop.", "version", version)

	// Block until shutdown signal
	<-ctx.Done()
	logger.Info("shutting down captionbot...")

	// Graceful shutdown with timeout
	const shutdownTimeout = 10 * time.Second
	done := make(chan struct{})
	go func() {
		defer close(done)
		eventBus.Close()
		wg.Wait()
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
		return nil
	case <-time.After(shutdownTimeout):
		logger.Warn("shutdown timed out, forcing exit")
		return fmt.Errorf("shutdown timed out")
	}
}

// accountLookup resolves a handle to an account.
type accountLookup interface {
	LookupUser(ctx context.Context, handle string) (domain.User, error)
}

func lookupAccounts(ctx context.Context, c accountLookup, monitoredHandle, botHandle string) (monitored, bot domain.User, err error) {
	monitored, err = c.LookupUser(ctx, monitoredHandle)
	if err != nil {
		return monitored, bot, fmt.Errorf("%w: look up monitored account %q: %w", domain.ErrConfig, monitoredHandle, err)
	}
	bot, err = c.LookupUser(ctx, botHandle)
	if err != nil {
		return monitored, bot, fmt.Errorf("%w: look up bot account %q: %w", domain.ErrConfig, botHandle, err)
	}
	if monitored.ID == "" || bot.ID == "" {
		return monitored, bot, fmt.Errorf("%w: account lookup returned an empty id", domain.ErrConfig)
	}
	return monitored, bot, nil
}

func newRenderer(rc config.RenderConfig) (*render.Renderer, error) {
	tmpl, err := render.LoadTemplate(rc.TemplatePath)
	if err != nil {
		return nil, fmt.Errorf("%w: render template: %w", domain.ErrConfig, err)
	}
	return render.New(render.Config{
		Template:      tmpl,
		Caption:       rc.Caption,
		MaxDimension:  rc.MaxDimension,
		PaddingWidth:  rc.PaddingWidth,
		PaddingHeight: rc.PaddingHeight,
		Quality:       rc.Quality,
		Timeout:       time.Duration(rc.TimeoutSeconds) * time.Second,
		ChromePath:    rc.ChromePath,
		OutputDir:     rc.OutputDir,
		Logger:        logger,
	})
}

// stateChanged keeps the muted gauge current and forwards transitions to the
// operator channel, if any, without blocking the caller.
func stateChanged(n domain.Notifier) func(domain.RunState) {
	return func(s domain.RunState) {
		if s.Active {
			metrics.Muted.Set(0)
		} else {
			metrics.Muted.Set(1)
		}
		if n == nil {
			return
		}
		text := notify.DescribeState(s)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := n.Notify(ctx, text); err != nil {
				logger.Warn("state notification failed", "err", err)
			}
		}()
	}
}

type statusResponse struct {
	domain.RunState
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// statusHandler serves the current run state as JSON.
func statusHandler(state interface{ Snapshot() domain.RunState }) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(statusResponse{
			RunState: state.Snapshot(),
			Version:  version,
			Uptime:   metrics.Collector.Uptime().Truncate(time.Second).String(),
		})
	}
}
