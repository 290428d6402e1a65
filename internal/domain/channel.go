package domain

import "context"

// Channel is the interface for user-facing I/O (Telegram, CLI). A channel
// publishes inbound messages to the bus and subscribes for outbound ones;
// media must be pre-downloaded to local paths before publishing.
type Channel interface {
	Name() string
	Start(ctx context.Context, bus MessageBus) error
	Stop() error
}
