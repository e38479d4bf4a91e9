package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	catalogkafka "github.com/dmehra2102/inventory-order-system/internal/catalog/infrastructure/kafka"
	catalogredis "github.com/dmehra2102/inventory-order-system/internal/catalog/infrastructure/redis"
	"github.com/dmehra2102/inventory-order-system/internal/config"
	"github.com/dmehra2102/inventory-order-system/pkg/idempotency"
	"github.com/dmehra2102/inventory-order-system/pkg/logging"
	"github.com/dmehra2102/inventory-order-system/pkg/shutdown"
	"github.com/dmehra2102/inventory-order-system/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, "inventory-service", cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() {
		graceCtx, graceCancel := shutdown.Grace(cfg.ShutdownTimeout)
		defer graceCancel()
		_ = tp.Shutdown(graceCtx)
	}()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("redis unavailable", "addr", cfg.RedisAddr, "err", err)
		os.Exit(1)
	}

	cache := catalogredis.NewProductCache(rdb, cfg.CacheTTL)
	idem := idempotency.NewStore(rdb, cfg.IdempotencyTTL)
	reader := catalogkafka.NewReader(cfg.KafkaBrokers(), cfg.OrderTopic, cfg.ConsumerGroup)
	consumer := catalogkafka.NewConsumer(log, reader, cache, idem)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("consuming order events", "topic", cfg.OrderTopic, "group", cfg.ConsumerGroup)
		return consumer.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		log.Error("consumer stopped", "err", err)
		return
	}
	log.Info("inventory-service shutdown")
}
