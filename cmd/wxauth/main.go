// Command wxauth runs the WeChat user/auth backend: HTTP login and
// registration, JWT issuance mirrored into Redis-backed sessions, and user
// lookup over MySQL.
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

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/renqiu-dev/wxauth/internal/auth"
	"github.com/renqiu-dev/wxauth/internal/cache"
	"github.com/renqiu-dev/wxauth/internal/config"
	"github.com/renqiu-dev/wxauth/internal/events"
	"github.com/renqiu-dev/wxauth/internal/server"
	"github.com/renqiu-dev/wxauth/internal/token"
	"github.com/renqiu-dev/wxauth/internal/user"
	"github.com/renqiu-dev/wxauth/internal/wechat"
)

const (
	redisDialTimeout    = 10 * time.Second
	redisCommandTimeout = 5 * time.Second
	shutdownGrace       = 10 * time.Second
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(logger); err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// TranslateError surfaces unique-index collisions as gorm.ErrDuplicatedKey,
	// which the repository maps to its own sentinel.
	db, err := gorm.Open(mysql.Open(cfg.MySQLDSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(&user.User{}); err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr(),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  redisDialTimeout,
		ReadTimeout:  redisCommandTimeout,
		WriteTimeout: redisCommandTimeout,
		MaxRetries:   3,
	})
	defer rdb.Close()

	store := cache.NewStore(rdb, redisCommandTimeout)
	// Fail-closed issuance makes a dead store fatal to every login, so
	// refuse to start rather than come up broken.
	latency, err := store.Ping(ctx)
	if err != nil {
		return err
	}
	logger.Info("session store connected", "addr", cfg.RedisAddr(), "latency", latency)
	go cache.NewMonitor(store, logger, 30*time.Second).Run(ctx)

	codec, err := token.NewCodec(token.Config{
		Secret: []byte(cfg.JWTSecret),
		TTL:    cfg.JWTTTL(),
		Issuer: "wxauth",
	})
	if err != nil {
		return err
	}
	sessions := auth.NewService(codec, store, logger)

	var publisher events.Publisher = events.NopPublisher{}
	if uri := cfg.AMQPURI(); uri != "" {
		p, err := events.DialAMQP(uri, logger)
		if err != nil {
			return err
		}
		publisher = p
	}
	defer publisher.Close()

	users := user.NewService(
		user.NewGormRepository(db),
		wechat.NewClient(cfg.WechatAppID, cfg.WechatSecret),
		sessions,
		publisher,
		logger,
	)

	health := func(ctx context.Context) error {
		_, err := store.Ping(ctx)
		return err
	}
	handler := server.NewHandler(users, sessions, health, logger)
	router := server.NewRouter(handler, sessions)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Addr(), "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
