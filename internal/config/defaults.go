package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			Workspace:       "~/.nanoagent/workspace",
			LogLevel:        "info",
			DefaultProvider: "ollama",
			MaxRounds:       12,
			Workers:         4,
			ToolTimeoutSecs: 120,
		},
		Providers: map[string]ProviderConfig{
			"ollama": {
				Enabled:      true,
				APIBase:      "http://localhost:11434",
				DefaultModel: "llama3.1:8b",
				Models:       []string{"llama*", "qwen*", "mistral*"},
				Priority:     10,
			},
		},
		Channels: ChannelsConfig{
			CLI: CLIConfig{Enabled: true},
			Telegram: TelegramConfig{
				Enabled:   false,
				ParseMode: "Markdown",
			},
			Discord: DiscordConfig{Enabled: false},
			Web: WebConfig{
				Enabled: false,
				Addr:    "127.0.0.1:8081",
				Path:    "/ws",
			},
		},
		Session: SessionConfig{
			Enabled:     true,
			DBPath:      "~/.nanoagent/sessions.db",
			HistorySize: 20,
		},
		Tools: ToolsConfig{
			Shell: ShellToolConfig{
				TimeoutSeconds: 30,
				MaxOutputBytes: 65536,
			},
			Screenshot: ScreenshotToolConfig{Enabled: false},
		},
		Skills: SkillsConfig{
			Dir: "~/.nanoagent/skills",
		},
	}
}
