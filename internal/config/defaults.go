package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			Workspace:     "~/.merobot/workspace",
			LogLevel:      "info",
			BusBufferSize: 100,
		},
		Agent: AgentConfig{
			Provider:      "openai",
			Model:         "gpt-4o-mini",
			MaxTokens:     4096,
			Temperature:   0.7,
			MaxIterations: 10,
			MaxHistory:    50,
		},
		Providers: map[string]ProviderConfig{
			"openai": {
				Enabled:      true,
				APIBase:      "https://api.openai.com/v1",
				APIKey:       "${OPENAI_API_KEY}",
				DefaultModel: "gpt-4o-mini",
			},
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				Enabled:   false,
				ParseMode: "Markdown",
			},
			CLI: CLIConfig{
				Enabled: true,
			},
		},
		Personas: PersonasConfig{},
		Metrics: MetricsConfig{
			Enabled:  false,
			Addr:     "127.0.0.1:9091",
			Endpoint: "/metrics",
		},
	}
}
