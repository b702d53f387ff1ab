package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/example/order-service/internal/adapter/cache"
	"github.com/example/order-service/internal/adapter/httpapi"
	"github.com/example/order-service/internal/adapter/natsstan"
	"github.com/example/order-service/internal/adapter/rabbitmq"
	"github.com/example/order-service/internal/adapter/repo"
	"github.com/example/order-service/internal/auth"
	"github.com/example/order-service/internal/config"
	"github.com/example/order-service/internal/domain"
	"github.com/example/order-service/internal/usecase"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}

	pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("db connect")
	}
	defer pool.Close()
	if err := repo.EnsureSchema(ctx, pool); err != nil {
		logrus.WithError(err).Fatal("init schema")
	}

	store, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("cache connect")
	}
	defer closeCache()

	publisher, closeBroker, err := openPublisher(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("broker connect")
	}
	defer closeBroker()

	orders := repo.NewPostgresOrderRepo(pool)
	users := repo.NewPostgresUserRepo(pool)
	tokens := auth.NewTokenManager(cfg.AuthSecret, cfg.TokenTTL)

	api := httpapi.NewServer(httpapi.Deps{
		Register: usecase.RegisterUser{Repo: users},
		Token:    usecase.IssueToken{Repo: users, Tokens: tokens},
		Create:   usecase.CreateOrder{Repo: orders, Publisher: publisher},
		Get:      usecase.GetOrder{Repo: orders, Cache: store, TTL: cfg.CacheTTL},
		Update:   usecase.UpdateStatus{Repo: orders, Cache: store},
		List:     usecase.ListOrders{Repo: orders},
		Verifier: tokens,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: api.Router}
	go func() {
		logrus.WithField("addr", cfg.HTTPAddr).Info("http listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("http server")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)
}

func openCache(ctx context.Context, cfg config.Config) (domain.Cache, func(), error) {
	switch cfg.CacheKind {
	case "redis":
		c, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPass)
		if err != nil {
			return nil, nil, err
		}
		return c, func() { _ = c.Close() }, nil
	case "memory":
		return cache.NewMemory(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown cache kind %q", cfg.CacheKind)
}

func openPublisher(cfg config.Config) (domain.EventPublisher, func(), error) {
	var (
		pub    domain.EventPublisher
		closer io.Closer
		err    error
	)
	switch cfg.BrokerKind {
	case "rabbit":
		c, cerr := rabbitmq.Connect(cfg.RabbitURL)
		pub, closer, err = c, c, cerr
	case "stan":
		c, cerr := natsstan.Connect(cfg.StanClusterID, cfg.StanClientID, cfg.NatsURL)
		pub, closer, err = c, c, cerr
	default:
		return nil, nil, fmt.Errorf("unknown broker kind %q", cfg.BrokerKind)
	}
	if err != nil {
		return nil, nil, err
	}
	return pub, func() { _ = closer.Close() }, nil
}
