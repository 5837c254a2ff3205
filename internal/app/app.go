// Package app assembles the HTTP surface: routes, middleware, and the
// static asset fallback. All components receive the shared bus and
// publisher by injection; nothing reaches them through globals.
package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/notifyhub/internal/admin"
	"github.com/dmitrymomot/notifyhub/internal/socket"
	"github.com/dmitrymomot/notifyhub/internal/stream"
	"github.com/dmitrymomot/notifyhub/notification"
	"github.com/dmitrymomot/notifyhub/pkg/httpserver"
)

// Config carries the application-level settings.
type Config struct {
	BusCapacity       int           `env:"BUS_BUFFER_SIZE" envDefault:"100"`
	HeartbeatInterval time.Duration `env:"SSE_HEARTBEAT_INTERVAL" envDefault:"1s"`
	AssetsDir         string        `env:"ASSETS_DIR" envDefault:"assets"`
}

// Router builds the service's HTTP handler.
func Router(cfg Config, bus *notification.Bus, publisher *notification.Publisher, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/ws/{user_id}", socket.NewHandler(bus, publisher, log).ServeHTTP)
	r.Get("/sse/{user_id}", stream.NewHandler(bus, cfg.HeartbeatInterval, log).ServeHTTP)
	r.Post("/admin/send_notification/{user_id}", admin.NewHandler(publisher, log).SendNotification)
	r.Get("/health", httpserver.HealthCheckHandler(context.Background(), log))

	r.NotFound(staticHandler(cfg.AssetsDir))

	return r
}

// staticHandler serves files from dir for any unmatched path, falling back
// to index.html for paths that do not resolve to a file.
func staticHandler(dir string) http.HandlerFunc {
	fileServer := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")

	return func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			http.ServeFile(w, r, index)
			return
		}
		fileServer.ServeHTTP(w, r)
	}
}
