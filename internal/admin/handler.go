// Package admin exposes the administrative publish endpoint that feeds
// notifications into the bus.
package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/notifyhub/notification"
	"github.com/dmitrymomot/notifyhub/pkg/logger"
)

type sendRequest struct {
	// Message is a pointer so a body that omits the field is
	// distinguishable from an explicit empty string.
	Message *string `json:"message"`
}

type statusResponse struct {
	Status int `json:"status"`
}

// Handler serves POST /admin/send_notification/{user_id}.
type Handler struct {
	publisher *notification.Publisher
	log       *slog.Logger
}

// NewHandler creates the admin handler. A nil log disables logging.
func NewHandler(publisher *notification.Publisher, log *slog.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{publisher: publisher, log: log}
}

// SendNotification wraps the request body as a Data envelope addressed to
// the path's user and publishes it. Publishing cannot observably fail while
// the bus is open, so a well-formed request always answers {"status":200};
// a body that is not valid JSON or omits the message field answers 400
// and publishes nothing.
func (h *Handler) SendNotification(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.DebugContext(r.Context(), "rejected malformed notification body",
			logger.UserID(userID),
			logger.Error(err),
		)
		writeStatus(w, http.StatusBadRequest)
		return
	}
	if req.Message == nil {
		h.log.DebugContext(r.Context(), "rejected notification body without message",
			logger.UserID(userID),
		)
		writeStatus(w, http.StatusBadRequest)
		return
	}

	// Nobody listening is not an error; a closed bus never happens while
	// the server is accepting requests.
	_ = h.publisher.PublishData(r.Context(), userID, *req.Message)

	writeStatus(w, http.StatusOK)
}

func writeStatus(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(statusResponse{Status: status})
}
