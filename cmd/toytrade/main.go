package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"toytrade/internal/backplane"
	"toytrade/internal/chat"
	"toytrade/internal/infra/config"
	ginserver "toytrade/internal/infra/http/gin"
	"toytrade/internal/infra/obs"
	"toytrade/internal/infra/push"
	"toytrade/internal/infra/security"
	"toytrade/internal/infra/storage/memory"
	mongostore "toytrade/internal/infra/storage/mongo"
	"toytrade/internal/infra/storage/s3"
	"toytrade/internal/infra/ws"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := getenv("APP_ENV", "dev")
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	store, closeStore, err := buildStore(cfg, logger)
	if err != nil {
		logger.Error("store init failed", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	bus, err := buildBus(ctx, cfg, logger)
	if err != nil {
		logger.Error("backplane init failed", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	notifier, closeNotifier, err := buildNotifier(cfg, logger)
	if err != nil {
		logger.Error("push init failed", "error", err)
		os.Exit(1)
	}
	defer closeNotifier()

	resolver, err := buildResolver(cfg)
	if err != nil {
		logger.Error("auth init failed", "error", err)
		os.Exit(1)
	}

	presence := chat.NewPresence()
	rooms := chat.NewRooms()
	dispatcher := chat.NewDispatcher(store, bus, presence, notifier, logger)
	typing := chat.NewTypingCoordinator(bus, cfg.TypingTimeout, logger)

	gateway := ws.NewGateway(resolver, store, dispatcher, typing, presence, rooms, bus, logger)
	if err := gateway.Start(ctx); err != nil {
		logger.Error("backplane subscribe failed", "error", err)
		os.Exit(1)
	}

	listings := memory.NewListingDirectory()
	users := memory.NewUserDirectory()

	var uploader s3.Uploader = s3.NoopUploader{}
	if client, err := s3.NewClient(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3PublicEndpoint, logger); err == nil {
		uploader = client
	} else {
		logger.Warn("s3 unavailable, uploads disabled", "error", err)
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: func() error { return nil },
	}, ginserver.Handlers{
		Chat: ginserver.ChatHandler{
			Store:      store,
			Dispatcher: dispatcher,
			Listings:   listings,
			Users:      users,
			Logger:     logger,
		},
		Realtime: gateway,
		Upload:   ginserver.UploadHandler{Uploader: uploader, Logger: logger},
		AuthMiddleware: ginserver.AuthMiddleware{
			Resolver: resolver,
			Logger:   logger,
		}.Handle,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

func buildStore(cfg config.Config, logger *slog.Logger) (chat.Store, func(), error) {
	if cfg.StoreMode == "mongo" {
		client, err := mongostore.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		store, err := mongostore.NewChatStore(client.DB, logger)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Close(ctx)
		}
		return store, closeFn, nil
	}
	return memory.NewChatStore(), func() {}, nil
}

func buildBus(ctx context.Context, cfg config.Config, logger *slog.Logger) (backplane.Bus, error) {
	if cfg.BackplaneMode == "redis" {
		return backplane.NewRedisBus(ctx, cfg.RedisAddr, cfg.RedisPassword, logger)
	}
	logger.Warn("using in-process backplane, cross-instance fan-out disabled")
	return backplane.NewMemoryBus(), nil
}

func buildNotifier(cfg config.Config, logger *slog.Logger) (chat.Notifier, func(), error) {
	if cfg.PushMode == "kafka" {
		notifier, err := push.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopicPrefix, logger)
		if err != nil {
			return nil, nil, err
		}
		return notifier, func() { _ = notifier.Close() }, nil
	}
	return push.LogNotifier{Logger: logger}, func() {}, nil
}

func buildResolver(cfg config.Config) (security.TokenResolver, error) {
	if cfg.AuthJWTSecret != "" {
		return security.NewJWTResolver(cfg.AuthJWTSecret)
	}
	if cfg.Env == "dev" || cfg.Env == "local" || cfg.Env == "test" {
		// Dev fallback: token string doubles as the user id.
		return devResolver{}, nil
	}
	return nil, errors.New("AUTH_JWT_SECRET is required outside dev")
}

type devResolver struct{}

func (devResolver) Resolve(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", security.ErrInvalidToken
	}
	return token, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
