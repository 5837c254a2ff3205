package socket

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/notifyhub/notification"
	"github.com/dmitrymomot/notifyhub/pkg/logger"
)

// Handler serves GET /ws/{user_id}: it upgrades the request and runs a
// session scoped to the path's user.
type Handler struct {
	bus       *notification.Bus
	publisher *notification.Publisher
	upgrader  websocket.Upgrader
	log       *slog.Logger
}

// NewHandler creates the websocket handler. A nil log disables logging.
// User identifiers are unauthenticated, so cross-origin upgrades are
// accepted.
func NewHandler(bus *notification.Bus, publisher *notification.Publisher, log *slog.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		bus:       bus,
		publisher: publisher,
		log:       log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.log.WarnContext(r.Context(), "websocket upgrade failed",
			logger.UserID(userID),
			logger.Error(err),
		)
		return
	}

	connID := uuid.NewString()
	s := &session{
		conn:      conn,
		userID:    userID,
		bus:       h.bus,
		publisher: h.publisher,
		log: h.log.With(
			logger.Component("socket"),
			logger.ConnID(connID),
			logger.UserID(userID),
			logger.RemoteAddr(conn.RemoteAddr().String()),
		),
	}
	s.run(r.Context())
}
