package domain

import "context"

// OutboundHandler receives one outbound message for a channel. A returned
// error is logged by the dispatcher; it never stops dispatch.
type OutboundHandler func(msg OutboundMessage) error

// MessageBus is the decoupled relay between channel adapters and the agent
// loop. Adapters publish inbound and subscribe for outbound; the agent loop
// consumes inbound and publishes outbound.
type MessageBus interface {
	PublishInbound(msg InboundMessage)
	ConsumeInbound(ctx context.Context) (InboundMessage, error)
	PublishOutbound(msg OutboundMessage)
	SubscribeOutbound(channelName string, handler OutboundHandler)
	DispatchOutbound(ctx context.Context)
	Stop()
}
