package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	appcfg "github.com/park285/cheese-chess-rooms/internal/config"
	"github.com/park285/cheese-chess-rooms/internal/archive"
	"github.com/park285/cheese-chess-rooms/internal/httpapi"
	"github.com/park285/cheese-chess-rooms/internal/msgcat"
	"github.com/park285/cheese-chess-rooms/internal/obslog"
	"github.com/park285/cheese-chess-rooms/internal/relay"
	"github.com/park285/cheese-chess-rooms/internal/room"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cfg, err := appcfg.Load()
	if err != nil {
		logger.Fatal("config_error", zap.Error(err))
	}

	redisOpts, err := appcfg.ParseRedisURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("config_error", zap.Error(err))
	}
	rdb := redis.NewClient(redisOpts)
	pctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pctx).Err(); err != nil {
		cancel()
		logger.Fatal("redis_connect_error", zap.String("addr", redisOpts.Addr), zap.Error(err))
	}
	cancel()

	var repo archive.Repository
	if cfg.DatabaseURL != "" {
		pg, err := archive.NewPostgresRepository(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("archive_init_error", zap.Error(err))
		}
		repo = pg
	} else {
		logger.Warn("archive_memory", zap.String("reason", "DATABASE_URL not set"))
		repo = archive.NewMemoryRepository()
	}

	msgs, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("messages_init_error", zap.Error(err))
	}

	notifier := relay.NewClient(cfg.RelayURL,
		relay.WithTimeout(cfg.RelayTimeout),
		relay.WithBearerToken(cfg.RelayToken),
	)

	store := room.NewStore(rdb, room.WithTTL(cfg.RoomTTL), room.WithChatLimit(cfg.ChatHistoryLimit))
	rooms := room.NewManager(store,
		room.WithArchiver(repo),
		room.WithNotifier(notifier),
		room.WithDefaultTimeControl(cfg.DefaultTimeControl),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := room.NewClock(rooms, cfg.ClockInterval)
	clock.Start(ctx)

	api := httpapi.New(rooms,
		httpapi.WithArchive(repo),
		httpapi.WithCatalog(msgs),
		httpapi.WithAllowedOrigins(cfg.AllowedOrigins),
	)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http_listen", zap.String("addr", cfg.HTTPAddr), zap.Bool("relay", cfg.RelayURL != ""), zap.Bool("postgres", cfg.DatabaseURL != ""))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_serve_error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown")

	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn("http_shutdown_error", zap.Error(err))
	}
	clock.Stop()
	_ = repo.Close()
	_ = rdb.Close()
}
