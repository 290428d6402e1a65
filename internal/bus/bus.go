package bus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"merobot/internal/domain"
)

// publishTimeout is a var so tests can shorten the full-queue wait.
var publishTimeout = 10 * time.Second

const dispatchPoll = time.Second

// InMemoryBus is a Go-channel based message bus for in-process
// communication. Inbound messages flow from channel adapters to the agent
// loop; outbound replies flow back through a dispatch loop that fans out to
// the subscribers registered for each channel name.
type InMemoryBus struct {
	inbound  chan domain.InboundMessage
	outbound chan domain.OutboundMessage

	mu          sync.RWMutex
	subscribers map[string][]domain.OutboundHandler

	stopped atomic.Bool
	logger  *slog.Logger
}

// New creates a new InMemoryBus with the given queue buffer size.
func New(bufferSize int, logger *slog.Logger) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &InMemoryBus{
		inbound:     make(chan domain.InboundMessage, bufferSize),
		outbound:    make(chan domain.OutboundMessage, bufferSize),
		subscribers: make(map[string][]domain.OutboundHandler),
		logger:      logger,
	}
}

// PublishInbound enqueues an inbound message. If the queue is full it
// waits up to 10 seconds for space, then drops the message with an error
// log so the publishing adapter never stalls.
func (b *InMemoryBus) PublishInbound(msg domain.InboundMessage) {
	select {
	case b.inbound <- msg:
	default:
		b.logger.Warn("inbound queue full, waiting", "channel", msg.Channel, "sender", msg.SenderID)
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case b.inbound <- msg:
		case <-timer.C:
			b.logger.Error("inbound message dropped: queue full",
				"channel", msg.Channel,
				"sender", msg.SenderID,
			)
		}
	}
}

// ConsumeInbound blocks until an inbound message is available or the
// context is cancelled.
func (b *InMemoryBus) ConsumeInbound(ctx context.Context) (domain.InboundMessage, error) {
	select {
	case msg := <-b.inbound:
		return msg, nil
	case <-ctx.Done():
		return domain.InboundMessage{}, ctx.Err()
	}
}

// PublishOutbound enqueues a reply for dispatch.
func (b *InMemoryBus) PublishOutbound(msg domain.OutboundMessage) {
	select {
	case b.outbound <- msg:
	default:
		b.logger.Warn("outbound queue full, waiting", "channel", msg.Channel, "chat", msg.ChatID)
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case b.outbound <- msg:
		case <-timer.C:
			b.logger.Error("outbound message dropped: queue full", "channel", msg.Channel)
		}
	}
}

// SubscribeOutbound registers a handler invoked for every outbound message
// whose channel tag matches. Handlers for the same channel are invoked in
// registration order.
func (b *InMemoryBus) SubscribeOutbound(channelName string, handler domain.OutboundHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[channelName] = append(b.subscribers[channelName], handler)
}

// DispatchOutbound continuously drains the outbound queue and invokes all
// matching subscribers. Run this as a background goroutine. It polls with a
// short tick so it can observe Stop or context cancellation; it does not
// drain remaining messages on exit.
func (b *InMemoryBus) DispatchOutbound(ctx context.Context) {
	for {
		if b.stopped.Load() {
			b.logger.Debug("outbound dispatch stopped")
			return
		}
		select {
		case msg := <-b.outbound:
			b.dispatch(msg)
		case <-ctx.Done():
			return
		case <-time.After(dispatchPoll):
		}
	}
}

func (b *InMemoryBus) dispatch(msg domain.OutboundMessage) {
	b.mu.RLock()
	handlers := b.subscribers[msg.Channel]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.logger.Warn("no subscriber for outbound channel", "channel", msg.Channel)
		return
	}

	// A failing subscriber never blocks delivery to the others.
	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("outbound handler panic", "channel", msg.Channel, "panic", r)
				}
			}()
			if err := handler(msg); err != nil {
				b.logger.Error("outbound dispatch error", "channel", msg.Channel, "err", err)
			}
		}()
	}
}

// Stop signals the dispatch loop to exit after its current wait interval.
func (b *InMemoryBus) Stop() {
	b.stopped.Store(true)
}

// InboundDepth returns the number of queued inbound messages.
func (b *InMemoryBus) InboundDepth() int { return len(b.inbound) }

// OutboundDepth returns the number of queued outbound messages.
func (b *InMemoryBus) OutboundDepth() int { return len(b.outbound) }
