// Package socket serves the bidirectional delivery path: a websocket
// session that relays client pings into pong envelopes on the bus and
// relays bus envelopes addressed to the session's user back to the client.
package socket

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/notifyhub/notification"
	"github.com/dmitrymomot/notifyhub/pkg/broadcast"
	"github.com/dmitrymomot/notifyhub/pkg/logger"
)

// probePayload is the liveness probe sent as a ping control frame right
// after the upgrade.
var probePayload = []byte{1, 2, 3}

const probeWriteWait = 10 * time.Second

var (
	errInboundClosed = errors.New("socket: inbound stream ended")
	errNonTextFrame  = errors.New("socket: non-text frame received")
)

// inboundFrame is one read result from the connection's sole reader
// goroutine.
type inboundFrame struct {
	payload []byte
	err     error
}

// conn is the slice of *websocket.Conn the session drives.
type conn interface {
	WriteControl(messageType int, data []byte, deadline time.Time) error
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// session is the per-connection state: the upgraded connection, the user
// the connection is scoped to, and handles to the shared bus. Its lifetime
// is the joint lifetime of the inbound and outbound loops.
type session struct {
	conn      conn
	userID    string
	bus       *notification.Bus
	publisher *notification.Publisher
	log       *slog.Logger
}

// run drives the session state machine: Handshaking, then Active with two
// concurrent loops, then Closed. Every failure path converges here; there
// is no retry and no graceful drain.
func (s *session) run(ctx context.Context) {
	// Closing the connection is the single teardown lever: it unblocks the
	// reader goroutine and fails any in-flight write.
	defer s.conn.Close()

	done := make(chan struct{})
	defer close(done)

	// Handshaking. A failed probe write means the outbound path is already
	// broken and nothing can salvage the session, so no read is attempted.
	if err := s.conn.WriteControl(websocket.PingMessage, probePayload, time.Now().Add(probeWriteWait)); err != nil {
		s.log.ErrorContext(ctx, "could not send liveness probe", logger.Error(err))
		return
	}
	s.log.DebugContext(ctx, "liveness probe sent")

	pong := make(chan struct{}, 1)
	s.conn.SetPongHandler(func(string) error {
		select {
		case pong <- struct{}{}:
		default:
		}
		return nil
	})

	frames := make(chan inboundFrame)
	go s.readFrames(frames, done)

	// Wait for exactly one sign of life: the probe's pong, or any inbound
	// frame (accepted and discarded). A close frame or read error ends the
	// session before it ever touches the bus.
	select {
	case <-ctx.Done():
		return
	case <-pong:
	case f := <-frames:
		if f.err != nil {
			s.log.DebugContext(ctx, "client disconnected during handshake", logger.Error(f.err))
			return
		}
	}

	s.log.InfoContext(ctx, "session active")

	// Active. Subscribing after the handshake means nothing published
	// before this point is delivered to this session.
	g, gctx := errgroup.WithContext(ctx)
	sub := s.bus.Subscribe(gctx)
	defer sub.Close()

	g.Go(func() error { return s.inbound(gctx, frames) })
	g.Go(func() error { return s.outbound(gctx, sub) })

	// Both loops always return non-nil, so the first to finish cancels
	// gctx and the other observes it at its next suspension point.
	err := g.Wait()

	s.log.InfoContext(ctx, "session closed", logger.Error(err))
}

// readFrames is the connection's only reader. It forwards each read result
// until the connection fails or the session is gone.
func (s *session) readFrames(frames chan<- inboundFrame, done <-chan struct{}) {
	for {
		messageType, payload, err := s.conn.ReadMessage()

		f := inboundFrame{payload: payload, err: err}
		if err == nil && messageType != websocket.TextMessage {
			f.err = errNonTextFrame
		}

		select {
		case frames <- f:
		case <-done:
			return
		}
		if f.err != nil {
			return
		}
	}
}

// inbound relays client liveness pings into pong envelopes on the bus.
// Only ping envelopes are acted on; this transport does not accept
// client-originated notifications. Undecodable frames degrade to the
// default envelope, which is an unaddressed ping and therefore harmless.
func (s *session) inbound(ctx context.Context, frames <-chan inboundFrame) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-frames:
			if f.err != nil {
				return errors.Join(errInboundClosed, f.err)
			}

			env := notification.Decode(f.payload)
			if env.Message.Kind() != notification.KindPing {
				continue
			}
			if err := s.publisher.PublishPong(ctx, s.userID); err != nil {
				return err
			}
		}
	}
}

// outbound relays bus envelopes addressed to this session's user out to
// the client. A lagging subscription is surfaced to the client as a
// self-addressed error envelope, matching the streaming endpoint.
func (s *session) outbound(ctx context.Context, sub *broadcast.Subscription[notification.Envelope]) error {
	for {
		env, err := sub.Recv(ctx)
		if err != nil {
			var lag *broadcast.LagError
			if !errors.As(err, &lag) {
				return err
			}
			env = notification.Envelope{UserID: s.userID, Message: notification.Error(lag.Error())}
		}

		if env.UserID != s.userID {
			continue
		}

		if err := s.conn.WriteMessage(websocket.TextMessage, []byte(env.Encode())); err != nil {
			return err
		}
	}
}
