package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"agent-chat/internal/config"
	"agent-chat/internal/db"
	apihttp "agent-chat/internal/http"
	"agent-chat/internal/repository"
	"agent-chat/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	messageRepo, closeRepo, err := openMessageRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open message store", zap.Error(err), zap.String("driver", cfg.StoreDriver))
	}
	defer closeRepo()

	localNotifier := service.NewLocalNotifier()
	var notifier service.Notifier = localNotifier
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()

		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using local notifier", zap.Error(err))
		} else {
			notifier = service.NewRelayNotifier(localNotifier, service.NewRedisNotifier(redisClient, logger), logger)
		}
		cancel()
	}

	messageSvc := service.NewMessageService(messageRepo, notifier, logger)
	messageHandler := apihttp.NewMessageHandler(logger, messageSvc)
	router := apihttp.NewRouter(logger, messageHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("store", cfg.StoreDriver))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

func openMessageRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.MessageRepository, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		repo := repository.NewPgMessageRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repo, pool.Close, nil
	case config.StoreDriverSQLite:
		conn, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewSQLiteMessageRepository(conn)
		if err := repo.EnsureSchema(ctx); err != nil {
			conn.Close()
			return nil, nil, err
		}
		return repo, func() { conn.Close() }, nil
	default:
		logger.Warn("using in-memory message store; messages are lost on restart")
		return repository.NewMemoryMessageRepository(), func() {}, nil
	}
}
