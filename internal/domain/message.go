package domain

import "time"

// InboundMessage is a request arriving from a front-end channel.
// It is immutable once published and consumed exactly once by the agent loop.
type InboundMessage struct {
	Channel    string
	ChatID     string
	SenderID   string
	Content    string
	Media      []string
	Metadata   map[string]string
	CurrentDir string
	Timestamp  time.Time
}

// ConversationKey identifies the conversation this message belongs to.
// All ordering and session state is keyed by it.
func (m InboundMessage) ConversationKey() string {
	return m.Channel + ":" + m.ChatID
}

// OutboundMessage is a reply the core sends back to the channel that owns
// the Channel field.
type OutboundMessage struct {
	Channel  string
	ChatID   string
	Content  string
	Media    []string
	Metadata map[string]string
}
