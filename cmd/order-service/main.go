package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	catalogapp "github.com/dmehra2102/inventory-order-system/internal/catalog/application"
	cataloghttp "github.com/dmehra2102/inventory-order-system/internal/catalog/infrastructure/http"
	catalogpg "github.com/dmehra2102/inventory-order-system/internal/catalog/infrastructure/postgres"
	catalogredis "github.com/dmehra2102/inventory-order-system/internal/catalog/infrastructure/redis"
	"github.com/dmehra2102/inventory-order-system/internal/config"
	"github.com/dmehra2102/inventory-order-system/internal/order/application"
	orderhttp "github.com/dmehra2102/inventory-order-system/internal/order/infrastructure/http"
	orderkafka "github.com/dmehra2102/inventory-order-system/internal/order/infrastructure/kafka"
	orderpg "github.com/dmehra2102/inventory-order-system/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/inventory-order-system/internal/platform/memory"
	platformpg "github.com/dmehra2102/inventory-order-system/internal/platform/postgres"
	"github.com/dmehra2102/inventory-order-system/pkg/httpjson"
	"github.com/dmehra2102/inventory-order-system/pkg/idempotency"
	"github.com/dmehra2102/inventory-order-system/pkg/logging"
	"github.com/dmehra2102/inventory-order-system/pkg/outbox"
	"github.com/dmehra2102/inventory-order-system/pkg/shutdown"
	"github.com/dmehra2102/inventory-order-system/pkg/tracing"
)

type stores struct {
	products catalogapp.ProductRepository
	orders   application.OrderStore
	outbox   outbox.Store
	ping     func(ctx context.Context) error
	close    func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("order-service stopped", "err", err)
		os.Exit(1)
	}
	log.Info("order-service shutdown complete")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	tp, err := tracing.Init(ctx, "order-service", cfg.OTLPEndpoint, log)
	if err != nil {
		return err
	}
	defer func() {
		graceCtx, graceCancel := shutdown.Grace(cfg.ShutdownTimeout)
		defer graceCancel()
		_ = tp.Shutdown(graceCtx)
	}()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	var cache catalogapp.ProductCache = catalogapp.NoCache{}
	var idem *idempotency.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		cache = catalogredis.NewProductCache(rdb, cfg.CacheTTL)
		idem = idempotency.NewStore(rdb, cfg.IdempotencyTTL, idempotency.WithPendingTTL(cfg.IdempotencyClaim))
	}

	catalogSvc := catalogapp.NewService(log, st.products, cache)
	if cfg.SeedCatalog {
		n, err := catalogSvc.SeedIfEmpty(ctx, catalogapp.DemoCatalog())
		if err != nil {
			return err
		}
		log.Info("catalog seeded", "products", n)
	}
	orderSvc := application.NewService(log, st.orders, application.Options{
		MaxAttempts:  cfg.SettleMaxAttempts,
		ProductCache: cache,
	})

	var createMW []func(http.Handler) http.Handler
	if idem != nil {
		createMW = append(createMW, idem.Middleware(log))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := st.ping(r.Context()); err != nil {
			log.Warn("health check failed", "err", err)
			httpjson.WriteMessage(w, http.StatusServiceUnavailable, "store unavailable", "")
			return
		}
		httpjson.Write(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Mount("/products", cataloghttp.NewHandler(log, catalogSvc).Routes())
	r.Mount("/orders", orderhttp.NewHandler(log, orderSvc).Routes(createMW...))

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.KafkaAddr != "" {
		writer := orderkafka.NewWriter(cfg.KafkaBrokers())
		defer writer.Close()
		dispatch := outbox.NewDispatcher(log, writer, cfg.OrderTopic)
		relay := outbox.NewRelay(log, st.outbox, dispatch, "order-service-relay-"+uuid.NewString()[:8])
		g.Go(func() error {
			return relay.Run(gctx)
		})
	}

	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		graceCtx, graceCancel := shutdown.Grace(cfg.ShutdownTimeout)
		defer graceCancel()
		return srv.Shutdown(graceCtx)
	})

	return g.Wait()
}

func openStores(ctx context.Context, cfg config.Config, log *slog.Logger) (stores, error) {
	if cfg.StoreDriver == config.DriverMemory {
		log.Warn("using in-memory store, data is lost on exit")
		mem := memory.New()
		return stores{
			products: mem,
			orders:   mem,
			outbox:   mem,
			ping:     func(context.Context) error { return nil },
			close:    func() {},
		}, nil
	}

	pool, err := platformpg.Connect(ctx, cfg.PGURL)
	if err != nil {
		return stores{}, err
	}
	if err := platformpg.Migrate(ctx, log, pool); err != nil {
		pool.Close()
		return stores{}, err
	}
	return stores{
		products: catalogpg.NewRepository(log, pool),
		orders:   orderpg.NewRepository(log, pool, cfg.SettleLockTimeout),
		outbox:   orderpg.NewOutboxStore(log, pool),
		ping:     pool.Ping,
		close:    pool.Close,
	}, nil
}
