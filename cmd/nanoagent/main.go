package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"nanoagent/internal/config"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "nanoagent",
		Short: "nanoagent: a small personal AI assistant",
		Long:  "nanoagent runs a tool-using assistant reachable over CLI, Telegram, Discord, and WebSocket.",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.nanoagent/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// loadConfig falls back to defaults when no config file exists yet, so the
// CLI works out of the box against a local ollama.
func loadConfig() *config.Config {
	path := resolveConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		logger.Warn("config not loaded, using defaults", "path", path, "err", err)
		cfg = config.Defaults()
		config.ExpandPaths(cfg)
	}
	return cfg
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the default config and workspace directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := config.DefaultConfigPath()
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}

			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			for _, dir := range []string{cfg.General.Workspace, cfg.Skills.Dir} {
				if err := os.MkdirAll(config.ExpandPath(dir), 0o755); err != nil {
					return err
				}
			}
			logger.Info("initialized", "config", cfgPath, "workspace", cfg.General.Workspace)
			return nil
		},
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive terminal session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			// chat forces the CLI channel and nothing else
			cfg.Channels = config.ChannelsConfig{CLI: config.CLIConfig{Enabled: true}}
			return runDaemon(cfg)
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant with every enabled channel",
		Long:  "Starts the agent loop plus all channels enabled in the config (CLI, Telegram, Discord, WebSocket). Ctrl+C stops it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(loadConfig())
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and provider health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()

			rt, err := buildRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.close()

			status := map[string]any{
				"config":    resolveConfigPath(),
				"providers": rt.gateway.ProviderNames(),
				"available": rt.gateway.Available(cmd.Context()),
				"tools":     rt.tools.Names(),
			}
			data, _ := json.MarshalIndent(status, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("nanoagent " + version)
		},
	}
}
