// Package config loads and validates the nanoagent JSON configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration.
type Config struct {
	General   GeneralConfig             `json:"general"`
	Providers map[string]ProviderConfig `json:"providers"`
	Channels  ChannelsConfig            `json:"channels"`
	Session   SessionConfig             `json:"session"`
	Tools     ToolsConfig               `json:"tools"`
	Skills    SkillsConfig              `json:"skills"`
}

type GeneralConfig struct {
	Workspace       string `json:"workspace"`
	LogLevel        string `json:"logLevel"`
	LogFile         string `json:"logFile,omitempty"`
	Persona         string `json:"persona,omitempty"`
	DefaultProvider string `json:"defaultProvider"`
	Model           string `json:"model,omitempty"`
	MaxRounds       int    `json:"maxRounds"`
	Workers         int    `json:"workers"`
	ToolTimeoutSecs int    `json:"toolTimeoutSeconds"` // per-action bound inside a turn
}

type ProviderConfig struct {
	Enabled      bool     `json:"enabled"`
	APIBase      string   `json:"apiBase,omitempty"`
	APIKey       string   `json:"apiKey,omitempty"`
	DefaultModel string   `json:"defaultModel,omitempty"`
	Models       []string `json:"models,omitempty"` // model-name patterns this provider serves
	Priority     int      `json:"priority"`         // lower tried first
}

type ChannelsConfig struct {
	CLI      CLIConfig      `json:"cli"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord,omitempty"`
	Web      WebConfig      `json:"web,omitempty"`
}

type CLIConfig struct {
	Enabled bool `json:"enabled"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom,omitempty"`
	ParseMode string   `json:"parseMode,omitempty"`
}

type DiscordConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	GuildID   string   `json:"guildId,omitempty"`
	AllowFrom []string `json:"allowFrom,omitempty"`
}

type WebConfig struct {
	Enabled   bool     `json:"enabled"`
	Addr      string   `json:"addr,omitempty"`
	Path      string   `json:"path,omitempty"`
	AllowFrom []string `json:"allowFrom,omitempty"`
}

type SessionConfig struct {
	Enabled     bool   `json:"enabled"`
	DBPath      string `json:"dbPath"`
	HistorySize int    `json:"historySize"`
}

type ToolsConfig struct {
	Shell      ShellToolConfig      `json:"shell"`
	Screenshot ScreenshotToolConfig `json:"screenshot"`
}

type ShellToolConfig struct {
	TimeoutSeconds int `json:"timeoutSeconds"`
	MaxOutputBytes int `json:"maxOutputBytes"`
}

type ScreenshotToolConfig struct {
	Enabled bool `json:"enabled"`
}

type SkillsConfig struct {
	Dir string `json:"dir,omitempty"`
}

// DefaultConfigDir returns ~/.nanoagent.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nanoagent"
	}
	return filepath.Join(home, ".nanoagent")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads path, expands ${VAR} references and ~/ paths, overlays the
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	ExpandPaths(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	path = ExpandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects out-of-range values and dangling provider references.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.General.MaxRounds < 1 || cfg.General.MaxRounds > 100 {
		errs = append(errs, "general.maxRounds must be between 1 and 100")
	}
	if cfg.General.Workers < 1 || cfg.General.Workers > 64 {
		errs = append(errs, "general.workers must be between 1 and 64")
	}
	if cfg.General.DefaultProvider != "" {
		if _, ok := cfg.Providers[cfg.General.DefaultProvider]; !ok {
			errs = append(errs, fmt.Sprintf("general.defaultProvider references unknown provider: %s", cfg.General.DefaultProvider))
		}
	}
	if cfg.Session.Enabled && cfg.Session.HistorySize < 1 {
		errs = append(errs, "session.historySize must be >= 1")
	}
	if cfg.Tools.Shell.TimeoutSeconds < 1 {
		errs = append(errs, "tools.shell.timeoutSeconds must be >= 1")
	}
	for name, pc := range cfg.Providers {
		if pc.Enabled && pc.APIBase == "" && name != "ollama" {
			errs = append(errs, fmt.Sprintf("providers.%s: apiBase is required", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment value; ${VAR:-default}
// falls back to default when VAR is unset or empty. Unresolvable references
// are left as-is.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		val, exists := os.LookupEnv(groups[1])
		if exists && val != "" {
			return val
		}
		if len(groups) >= 3 && groups[2] != "" {
			return groups[2]
		}
		return match
	})
}

// ExpandPaths resolves ~/ references in every path-valued field. Load applies
// it after parsing; callers running on bare Defaults() must apply it too.
func ExpandPaths(cfg *Config) {
	cfg.General.Workspace = ExpandPath(cfg.General.Workspace)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Session.DBPath = ExpandPath(cfg.Session.DBPath)
	cfg.Skills.Dir = ExpandPath(cfg.Skills.Dir)
}

// ExpandPath resolves a leading ~/ to the user's home directory.
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
