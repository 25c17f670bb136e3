package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"student-chat/internal/auth"
	"student-chat/internal/config"
	"student-chat/internal/database"
	"student-chat/internal/handlers"
	"student-chat/internal/revocation"
	"student-chat/internal/services"
	"student-chat/internal/websocket"
	"student-chat/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration: %v", err)
	}
	logger.Init(logger.Config{Env: logger.Env(cfg.Logging.Env), Level: cfg.Logging.Level})
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	db, err := database.NewPostgresDB(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to apply schema: %v", err)
	}

	rdb := revocation.NewRedisClient(ctx, cfg.Redis)
	defer rdb.Close()

	gate := revocation.NewGate(rdb, cfg.Redis.BlacklistPrefix, cfg.Redis.Timeout)
	limiter := revocation.NewLimiter(rdb, cfg.Redis.RateLimitPrefix, cfg.Redis.Timeout)

	// Initialize services
	authService := auth.NewService(db, gate, cfg.JWT)
	guard := services.NewMembershipGuard(db)

	hub := websocket.NewHub()
	registry := websocket.NewRegistry(hub, db, cfg.Database.QueryTimeout)
	messageService := services.NewMessageService(guard, db, hub, cfg.Messages)
	dispatcher := websocket.NewDispatcher(hub, guard, messageService)
	gateway := websocket.NewGateway(authService, hub, registry, dispatcher, cfg.WebSocket, cfg.Server.AllowedOrigins)

	router := handlers.NewRouter(handlers.RouterDeps{
		Auth:      handlers.NewAuthHandlers(authService),
		Rooms:     handlers.NewRoomHandlers(messageService),
		Gateway:   gateway,
		Authn:     authService,
		Limiter:   limiter,
		RateLimit: cfg.RateLimit,
		Origins:   cfg.Server.AllowedOrigins,
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return registry.Run(gctx) })
	g.Go(func() error {
		logger.Info("Server started on %s", cfg.Server.Port)
		logger.Info("WebSocket endpoint: ws://localhost%s/ws", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Server shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error: %v", err)
	}
}
