package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/dmitrymomot/notifyhub/internal/app"
	"github.com/dmitrymomot/notifyhub/notification"
	"github.com/dmitrymomot/notifyhub/pkg/config"
	"github.com/dmitrymomot/notifyhub/pkg/httpserver"
	"github.com/dmitrymomot/notifyhub/pkg/logger"
)

type loggerConfig struct {
	Format logger.Format `env:"LOG_FORMAT" envDefault:"text"`
	Debug  bool          `env:"LOG_DEBUG" envDefault:"false"`
}

func main() {
	var (
		logCfg  loggerConfig
		appCfg  app.Config
		httpCfg httpserver.Config
	)
	config.MustLoad(&logCfg)
	config.MustLoad(&appCfg)
	config.MustLoad(&httpCfg)

	level := slog.LevelInfo
	if logCfg.Debug {
		level = slog.LevelDebug
	}
	log := logger.New(
		logger.WithFormat(logCfg.Format),
		logger.WithLevel(level),
		logger.WithAttr(slog.String("service", "notifyhub")),
	)
	logger.SetAsDefault(log)

	bus := notification.NewBus(appCfg.BusCapacity)
	defer bus.Close()

	publisher := notification.NewPublisher(bus, log)
	router := app.Router(appCfg, bus, publisher, log)

	srv := httpserver.NewFromConfig(httpCfg,
		httpserver.WithLogger(log),
		httpserver.WithStartHook(func(l *slog.Logger) {
			l.Info("listening", slog.String("addr", httpCfg.Addr))
		}),
		httpserver.WithStopHook(func(l *slog.Logger) {
			l.Info("server stopped")
		}),
	)

	if err := srv.Run(context.Background(), router); err != nil {
		log.Error("server failed", logger.Error(err))
		os.Exit(1)
	}
}
