package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/joichat/relay/internal/config"
	"github.com/joichat/relay/internal/handlers"
	"github.com/joichat/relay/internal/metrics"
	"github.com/joichat/relay/internal/relay"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Local .env is a dev convenience only.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := config.NewLogger(cfg.Env)

	rly := relay.New(logger, relay.Options{
		RoomCapacity:    cfg.RoomCapacity,
		EmptyRoomGrace:  cfg.EmptyRoomGrace,
		MaxMessageChars: cfg.MaxMessageChars,
	})

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// In development a panic should crash loudly; in production the
	// process keeps running and an external manager handles recovery.
	if cfg.Production() {
		app.Use(recover.New())
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowOrigins, ","),
		AllowMethods:     "GET,POST",
		AllowCredentials: true,
	}))

	app.Get("/healthz", handlers.Health)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	api := &handlers.API{Relay: rly}
	app.Get("/api/rooms", api.Rooms)

	ws := &handlers.WS{Relay: rly, Log: logger, MaxFrameBytes: cfg.MaxFrameBytes}
	app.Get("/ws", websocket.New(ws.Serve))

	go func() {
		logger.Info("server.listening", "port", cfg.Port, "env", cfg.Env)
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("server.listen", "err", err)
			if !cfg.Production() {
				os.Exit(1)
			}
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"fiber": func(ctx context.Context) error {
				return app.ShutdownWithContext(ctx)
			},
		},
	)

	exitCode := <-wait
	logger.Info("server.shutdown.complete")
	os.Exit(exitCode)
}
