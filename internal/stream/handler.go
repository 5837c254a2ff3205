// Package stream serves the one-way server-push delivery path: an SSE
// endpoint that forwards bus envelopes addressed to the connected user and
// keeps idle connections alive with periodic heartbeats.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/notifyhub/notification"
	"github.com/dmitrymomot/notifyhub/pkg/broadcast"
	"github.com/dmitrymomot/notifyhub/pkg/logger"
)

// heartbeatText is the sentinel comment payload emitted between events to
// defeat idle-connection timeouts.
const heartbeatText = "keep-alive-text"

// DefaultHeartbeatInterval is used when no interval is configured.
const DefaultHeartbeatInterval = time.Second

// Handler serves GET /sse/{user_id}.
type Handler struct {
	bus       *notification.Bus
	heartbeat time.Duration
	log       *slog.Logger
}

// NewHandler creates the SSE handler. A non-positive heartbeat falls back
// to DefaultHeartbeatInterval; a nil log disables logging.
func NewHandler(bus *notification.Bus, heartbeat time.Duration, log *slog.Logger) *Handler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{bus: bus, heartbeat: heartbeat, log: log}
}

// ServeHTTP subscribes to the bus and streams matching envelopes as SSE
// data events until the client disconnects. The stream has no normal end
// of its own; it lives exactly as long as the request context.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	connID := uuid.NewString()

	log := h.log.With(logger.Component("stream"), logger.ConnID(connID), logger.UserID(userID))
	log.DebugContext(ctx, "stream opened", logger.RemoteAddr(r.RemoteAddr))
	defer log.DebugContext(ctx, "stream closed")

	sub := h.bus.Subscribe(ctx)
	defer sub.Close()

	events := make(chan string)
	go func() {
		defer close(events)
		for {
			data, ok := nextEvent(ctx, sub, userID)
			if !ok {
				return
			}
			select {
			case events <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case data, ok := <-events:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			// Heartbeats are SSE comments, not envelopes: they bypass the
			// user filter and never collide with envelope parsing.
			if _, err := fmt.Fprintf(w, ": %s\n\n", heartbeatText); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// nextEvent reads the subscription once and maps the result onto the next
// serialized event, if any. Envelopes for other users are filtered out; a
// lagging subscription is surfaced as a self-addressed error envelope;
// cancellation and bus close end the sequence.
func nextEvent(ctx context.Context, sub *broadcast.Subscription[notification.Envelope], userID string) (string, bool) {
	for {
		env, err := sub.Recv(ctx)
		if err != nil {
			var lag *broadcast.LagError
			if errors.As(err, &lag) {
				env = notification.Envelope{UserID: userID, Message: notification.Error(lag.Error())}
				return env.Encode(), true
			}
			return "", false
		}
		if env.UserID != userID {
			continue
		}
		return env.Encode(), true
	}
}
