package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"nanoagent/internal/domain"
)

const discordMaxMsgLen = 2000

// Discord listens for guild and direct messages over a bot session.
type Discord struct {
	token   string
	guildID string
	allow   *Allowlist

	session *discordgo.Session
	logger  *slog.Logger
}

type DiscordConfig struct {
	Token     string
	GuildID   string   // restrict to one guild; empty accepts all
	AllowFrom []string // user IDs; empty allows all
	Logger    *slog.Logger
}

func NewDiscord(cfg DiscordConfig) *Discord {
	return &Discord{
		token:   cfg.Token,
		guildID: cfg.GuildID,
		allow:   NewAllowlist(cfg.AllowFrom),
		logger:  cfg.Logger,
	}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Start(ctx context.Context, b domain.MessageBus) error {
	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent
	d.session = session

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author.ID == s.State.User.ID {
			return
		}
		if d.guildID != "" && m.GuildID != "" && m.GuildID != d.guildID {
			return
		}
		if !d.allow.Allowed(m.Author.ID) {
			d.logger.Warn("unauthorized discord user", "user_id", m.Author.ID)
			return
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			return
		}

		err := b.PublishInbound(domain.InboundMessage{
			Channel:   "discord",
			ChatID:    m.ChannelID,
			SenderID:  m.Author.ID,
			Content:   content,
			Timestamp: time.Now(),
		})
		if err != nil {
			d.logger.Error("discord inbound publish failed", "err", err)
		}
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}
	d.logger.Info("discord connected", "user", session.State.User.Username)

	<-ctx.Done()
	return nil
}

func (d *Discord) Stop() error {
	if d.session != nil {
		return d.session.Close()
	}
	return nil
}

func (d *Discord) Send(_ context.Context, chatID, content string) error {
	if d.session == nil {
		return fmt.Errorf("discord not connected")
	}
	for _, chunk := range splitMessage(content, discordMaxMsgLen) {
		if _, err := d.session.ChannelMessageSend(chatID, chunk); err != nil {
			return fmt.Errorf("discord send: %w", err)
		}
	}
	return nil
}
