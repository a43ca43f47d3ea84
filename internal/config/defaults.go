package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			Workspace: "~/.captionbot/workspace",
			LogLevel:  "info",
			LogFile:   "~/.captionbot/log.txt",
		},
		Twitter: TwitterConfig{
			APIBase:        "https://api.twitter.com/1.1",
			UploadBase:     "https://upload.twitter.com/1.1",
			StreamBase:     "https://stream.twitter.com/1.1",
			TimeoutSeconds: 30,
		},
		Webhook: WebhookConfig{
			Enabled:     true,
			Host:        "0.0.0.0",
			Port:        8443,
			Path:        "/webhook/twitter",
			Environment: "dev",
		},
		Stream: StreamConfig{
			Enabled:          true,
			ReconnectSeconds: 10,
		},
		Render: RenderConfig{
			Caption:        "me irl",
			MaxDimension:   800,
			PaddingWidth:   100,
			PaddingHeight:  100 + 120,
			Quality:        50,
			TimeoutSeconds: 60,
		},
		Router: RouterConfig{
			Concurrency: 4,
			BusSize:     100,
		},
		Ledger: LedgerConfig{
			Enabled:        true,
			DBPath:         "~/.captionbot/ledger.db",
			SkipDuplicates: true,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
	}
}

// Starter returns the defaults with credential placeholders, as written by `captionbot init`.
// The placeholders are resolved from the environment when the file is loaded.
func Starter() *Config {
	cfg := Defaults()
	cfg.Twitter.APIKey = "${TWITTER_API_KEY}"
	cfg.Twitter.APIKeySecret = "${TWITTER_API_KEY_SECRET}"
	cfg.Twitter.AccessToken = "${TWITTER_ACCESS_TOKEN}"
	cfg.Twitter.AccessTokenSecret = "${TWITTER_ACCESS_TOKEN_SECRET}"
	return cfg
}
