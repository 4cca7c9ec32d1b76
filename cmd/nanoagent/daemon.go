package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"nanoagent/internal/agent"
	"nanoagent/internal/bus"
	"nanoagent/internal/channel"
	"nanoagent/internal/config"
	"nanoagent/internal/domain"
	"nanoagent/internal/gateway"
	"nanoagent/internal/hook"
	"nanoagent/internal/provider"
	"nanoagent/internal/session"
	"nanoagent/internal/skill"
	"nanoagent/internal/tool"
)

// runtime holds everything the daemon wires together.
type runtime struct {
	cfg      *config.Config
	bus      *bus.InMemoryBus
	gateway  *gateway.Gateway
	tools    *tool.Registry
	skills   *skill.Registry
	hooks    *hook.Pipeline
	sessions domain.SessionStore
	loop     *agent.Loop
	manager  *channel.Manager
	logger   *slog.Logger
}

func (r *runtime) close() {
	r.bus.Close()
	if r.sessions != nil {
		if err := r.sessions.Close(); err != nil {
			r.logger.Warn("session store close failed", "err", err)
		}
	}
}

func buildRuntime(cfg *config.Config) (*runtime, error) {
	log := setupLogger(cfg)

	if err := os.MkdirAll(cfg.General.Workspace, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}

	messageBus := bus.New(log)
	gw := buildGateway(cfg, log)
	tools := buildTools(cfg, log)
	hooks := buildHooks(log)

	skills := skill.NewRegistry(log)
	skills.RegisterBuiltins()
	if cfg.Skills.Dir != "" {
		n, err := skills.LoadFromDirectory(cfg.Skills.Dir)
		if err != nil {
			log.Warn("skill loading failed", "dir", cfg.Skills.Dir, "err", err)
		} else if n > 0 {
			log.Info("skills loaded", "count", n, "dir", cfg.Skills.Dir)
		}
	}
	executor := skill.NewExecutor(tools, gw, log)
	catalogue := agent.NewCatalogue(tools, skills, executor, log)

	var sessions domain.SessionStore
	if cfg.Session.Enabled {
		store, err := session.NewSQLiteStore(cfg.Session.DBPath, log)
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		sessions = store
	}

	loop, err := agent.New(agent.Config{
		Bus:         messageBus,
		Gateway:     gw,
		Catalogue:   catalogue,
		Hooks:       hooks,
		Sessions:    sessions,
		Logger:      log,
		Persona:     cfg.General.Persona,
		Model:       cfg.General.Model,
		MaxRounds:   cfg.General.MaxRounds,
		Workers:     cfg.General.Workers,
		HistorySize: cfg.Session.HistorySize,
		ToolTimeout: time.Duration(cfg.General.ToolTimeoutSecs) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	return &runtime{
		cfg:      cfg,
		bus:      messageBus,
		gateway:  gw,
		tools:    tools,
		skills:   skills,
		hooks:    hooks,
		sessions: sessions,
		loop:     loop,
		manager:  buildChannels(cfg, log),
		logger:   log,
	}, nil
}

func runDaemon(cfg *config.Config) error {
	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	if !rt.gateway.Available(context.Background()) {
		rt.logger.Warn("no provider healthy at startup; requests will fail until one comes up")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loopDone := make(chan error, 1)
	go func() { loopDone <- rt.loop.Run(ctx) }()

	managerDone := make(chan error, 1)
	go func() { managerDone <- rt.manager.Run(ctx, rt.bus) }()

	rt.logger.Info("nanoagent started", "channels", rt.manager.Names(), "providers", rt.gateway.ProviderNames())

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-managerDone:
		stop()
		managerDone = nil
	case runErr = <-loopDone:
		stop()
		loopDone = nil
	}

	rt.logger.Info("shutting down")
	rt.bus.Close()

	shutdownTimer := time.NewTimer(10 * time.Second)
	defer shutdownTimer.Stop()
	for _, ch := range []chan error{loopDone, managerDone} {
		if ch == nil {
			continue
		}
		select {
		case err := <-ch:
			if runErr == nil {
				runErr = err
			}
		case <-shutdownTimer.C:
			rt.logger.Warn("shutdown timed out")
			return runErr
		}
	}
	rt.logger.Info("shutdown complete")
	return runErr
}

func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.General.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var out io.Writer = os.Stderr
	if cfg.General.LogFile != "" {
		f, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err == nil {
			out = io.MultiWriter(os.Stderr, f)
		}
	}

	logger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func buildGateway(cfg *config.Config, log *slog.Logger) *gateway.Gateway {
	gw := gateway.New(gateway.Config{
		DefaultProvider: cfg.General.DefaultProvider,
		ChatTimeout:     5 * time.Minute,
		Logger:          log,
	})

	for name, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}
		var prov domain.Provider
		switch name {
		case "openai":
			prov = provider.NewOpenAI(provider.OpenAIConfig{
				APIKey:  pc.APIKey,
				APIBase: pc.APIBase,
				Model:   pc.DefaultModel,
				Logger:  log,
			})
		case "claude":
			prov = provider.NewClaude(provider.ClaudeConfig{
				APIKey: pc.APIKey,
				Model:  pc.DefaultModel,
				Logger: log,
			})
		case "ollama":
			prov = provider.NewOllama(provider.OllamaConfig{
				APIBase: pc.APIBase,
				Model:   pc.DefaultModel,
				Logger:  log,
			})
		default:
			// any other name is treated as an OpenAI-compatible endpoint
			prov = provider.NewOpenAI(provider.OpenAIConfig{
				Name:    name,
				APIKey:  pc.APIKey,
				APIBase: pc.APIBase,
				Model:   pc.DefaultModel,
				Logger:  log,
			})
		}
		gw.Register(name, prov, pc.Models, pc.Priority)
	}
	return gw
}

func buildTools(cfg *config.Config, log *slog.Logger) *tool.Registry {
	reg := tool.NewRegistry(log)
	workspace := cfg.General.Workspace

	reg.Register(tool.NewShellTool(tool.ShellConfig{
		WorkingDir:     workspace,
		TimeoutSeconds: cfg.Tools.Shell.TimeoutSeconds,
		MaxOutputBytes: cfg.Tools.Shell.MaxOutputBytes,
	}))
	reg.Register(tool.NewReadFileTool(workspace))
	reg.Register(tool.NewWriteFileTool(workspace))
	reg.Register(tool.NewListDirTool(workspace))
	reg.Register(tool.NewWebFetchTool())
	reg.Register(tool.NewWebSearchTool())
	reg.Register(tool.NewSysInfoTool())
	reg.Register(tool.NewTimeTool())
	reg.Register(tool.NewScreenshotTool(workspace, cfg.Tools.Screenshot.Enabled))
	return reg
}

// buildHooks installs the default pipeline: inbound logging and outbound
// whitespace cleanup. Extensions register theirs on top.
func buildHooks(log *slog.Logger) *hook.Pipeline {
	hooks := hook.NewPipeline(log)

	hooks.Register(hook.PointMessageReceived, func(_ context.Context, hctx hook.Context) (hook.Context, error) {
		if msg, ok := hctx["message"].(domain.InboundMessage); ok {
			log.Info("message received",
				"channel", msg.Channel, "chat_id", msg.ChatID, "chars", len(msg.Content))
		}
		return hctx, nil
	}, hook.DefaultPriority)

	hooks.Register(hook.PointMessageSending, func(_ context.Context, hctx hook.Context) (hook.Context, error) {
		if content, ok := hctx["content"].(string); ok {
			hctx["content"] = strings.TrimSpace(content)
		}
		return hctx, nil
	}, hook.DefaultPriority)

	return hooks
}

func buildChannels(cfg *config.Config, log *slog.Logger) *channel.Manager {
	m := channel.NewManager(log)

	if cfg.Channels.CLI.Enabled {
		m.Register(channel.NewCLI(channel.CLIConfig{Logger: log}))
	}
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "" {
		m.Register(channel.NewTelegram(channel.TelegramConfig{
			Token:     cfg.Channels.Telegram.Token,
			AllowFrom: cfg.Channels.Telegram.AllowFrom,
			ParseMode: cfg.Channels.Telegram.ParseMode,
			Logger:    log,
		}))
	}
	if cfg.Channels.Discord.Enabled && cfg.Channels.Discord.Token != "" {
		m.Register(channel.NewDiscord(channel.DiscordConfig{
			Token:     cfg.Channels.Discord.Token,
			GuildID:   cfg.Channels.Discord.GuildID,
			AllowFrom: cfg.Channels.Discord.AllowFrom,
			Logger:    log,
		}))
	}
	if cfg.Channels.Web.Enabled {
		m.Register(channel.NewWeb(channel.WebConfig{
			Addr:      cfg.Channels.Web.Addr,
			Path:      cfg.Channels.Web.Path,
			AllowFrom: cfg.Channels.Web.AllowFrom,
			Logger:    log,
		}))
	}
	return m
}
