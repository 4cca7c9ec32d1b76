package domain

import "context"

// MessageBus is the typed transport between channel adapters and the agent
// loop. Inbound flows adapter → core, outbound flows core → adapter.
//
// Publish never blocks the caller. Consume blocks until an item is available
// or the context is cancelled. Exactly one logical consumer owns each
// direction: the agent loop drains inbound, the channel manager drains
// outbound.
type MessageBus interface {
	PublishInbound(msg InboundMessage) error
	PublishOutbound(msg OutboundMessage) error
	ConsumeInbound(ctx context.Context) (InboundMessage, error)
	ConsumeOutbound(ctx context.Context) (OutboundMessage, error)
	InboundLen() int
	OutboundLen() int
	Close()
}
