package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifyhub/pkg/broadcast"
	"github.com/dmitrymomot/notifyhub/pkg/logger"
)

// Bus is the process-wide broadcast bus carrying envelopes. It is created
// once at startup and injected into every component that publishes or
// subscribes; nothing reaches it through global state.
type Bus = broadcast.Broadcaster[Envelope]

// NewBus creates an envelope bus retaining the last capacity envelopes.
func NewBus(capacity int) *Bus {
	return broadcast.New[Envelope](capacity)
}

// Publisher is the write-side facade over the bus. It stamps each publish
// with an identifier for log correlation; delivery itself is fire-and-
// forget, a publish with zero subscribers succeeds silently.
type Publisher struct {
	bus *Bus
	log *slog.Logger
}

// NewPublisher creates a publisher over bus. A nil log disables logging.
func NewPublisher(bus *Bus, log *slog.Logger) *Publisher {
	if log == nil {
		log = logger.Discard()
	}
	return &Publisher{bus: bus, log: log}
}

// Publish sends an envelope to every current subscriber of the bus. It
// fails only when the bus has been closed, which in normal operation
// outlives every caller.
func (p *Publisher) Publish(ctx context.Context, env Envelope) error {
	if err := p.bus.Publish(env); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	p.log.LogAttrs(ctx, slog.LevelDebug, "notification published",
		slog.String("notification_id", uuid.NewString()),
		logger.UserID(env.UserID),
		slog.String("kind", string(env.Message.Kind())),
	)
	return nil
}

// PublishData publishes a Data envelope addressed to userID.
func (p *Publisher) PublishData(ctx context.Context, userID, message string) error {
	return p.Publish(ctx, Envelope{UserID: userID, Message: Data(message)})
}

// PublishPong publishes a Pong envelope addressed to userID.
func (p *Publisher) PublishPong(ctx context.Context, userID string) error {
	return p.Publish(ctx, Envelope{UserID: userID, Message: Pong()})
}
