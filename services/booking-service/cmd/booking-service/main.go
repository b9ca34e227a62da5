package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/staffbook/libs/config"
	"github.com/md-rashed-zaman/staffbook/libs/db"
	"github.com/md-rashed-zaman/staffbook/libs/grpcx"
	"github.com/md-rashed-zaman/staffbook/libs/httpx"
	"github.com/md-rashed-zaman/staffbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/staffbook/libs/otel"
	"github.com/md-rashed-zaman/staffbook/libs/runtime"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/slotcache"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/storage/memory"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/storage/postgres"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9093")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))

	engineCfg, err := engineConfig()
	if err != nil {
		panic(err)
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	store, events, err := openStore(ctx, logger)
	if err != nil {
		logger.Error("storage init failed", "err", err)
		panic(err)
	}
	defer store.Close()
	checks := []runtime.ReadyCheck{{Name: "db", Check: store.Ping}}

	var rdb *redis.Client
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: config.String("REDIS_PASSWORD", "")})
		defer func() { _ = rdb.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }})
	}

	var cache slotcache.Cache = slotcache.Noop{}
	if rdb != nil {
		ttlSeconds, err := config.Int("SLOT_CACHE_TTL_SECONDS", 60)
		if err != nil {
			panic(err)
		}
		cache = slotcache.NewRedis(rdb, time.Duration(ttlSeconds)*time.Second, logger)
	}

	brokers := kafkax.SplitBrokers(config.String("KAFKA_BROKERS", ""))
	var writer outbox.Writer
	if len(brokers) > 0 {
		writer = outbox.NewKafkaWriter(brokers)
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	publisher := outbox.NewPublisher(events, writer, logger, outbox.PublisherConfig{
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	engine := booking.NewEngine(store, cache, logger, engineCfg)
	validate := handlers.NewValidator(engine.Granularity())

	mux := runtime.NewBaseMux(checks...)
	handlers.Register(mux,
		handlers.NewBookingHandler(engine, validate, logger),
		handlers.NewAdminHandler(store, cache, validate, logger),
		jwtSecret,
	)

	perMinute, err := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if err != nil {
		panic(err)
	}
	limit := httpx.NewRateLimiter(perMinute).Middleware()
	if rdb != nil {
		limit = httpx.NewRedisRateLimiter(rdb, perMinute, time.Minute, "staffbook:rl").Middleware(logger, true)
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		limit,
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(15*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv := grpcx.NewServer(logger)
	grpcSrv.SetServing(service, true)
	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
		panic(err)
	}
	go func() {
		if err := grpcSrv.Serve(ctx, lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	runtime.ServeHTTP(ctx, srv, logger, 10*time.Second)
}

func engineConfig() (booking.Config, error) {
	loc, err := config.Location("APP_TIMEZONE", "Europe/Madrid")
	if err != nil {
		return booking.Config{}, err
	}
	granularity, err := config.Minutes("SLOT_GRANULARITY_MINUTES", 15*time.Minute)
	if err != nil {
		return booking.Config{}, err
	}
	gap, err := config.Minutes("DISPLAY_GAP_MINUTES", 2*time.Hour)
	if err != nil {
		return booking.Config{}, err
	}
	limit, err := config.Int("DISPLAY_LIMIT", 2)
	if err != nil {
		return booking.Config{}, err
	}
	return booking.Config{Location: loc, Granularity: granularity, DisplayGap: gap, DisplayLimit: limit}, nil
}

// openStore selects the backing store from STORAGE_DRIVER and returns it with its outbox source.
func openStore(ctx context.Context, logger *slog.Logger) (storage.Store, outbox.Source, error) {
	switch driver := config.String("STORAGE_DRIVER", "postgres"); driver {
	case "memory":
		logger.Warn("using in-memory storage; data is lost on restart")
		s := memory.New()
		return s, s, nil
	case "postgres":
		dbURL, err := config.RequiredString("DATABASE_URL")
		if err != nil {
			return nil, nil, err
		}
		maxConns, err := config.Int("DB_MAX_CONNS", 10)
		if err != nil {
			return nil, nil, err
		}
		pool, err := db.Open(ctx, dbURL, db.PoolOptions{MaxConns: int32(maxConns)})
		if err != nil {
			return nil, nil, err
		}
		if config.Bool("DB_AUTO_MIGRATE", false) {
			if err := postgres.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, err
			}
			logger.Info("database schema applied")
		}
		s := postgres.New(pool)
		return s, s.Outbox(), nil
	default:
		return nil, nil, fmt.Errorf("STORAGE_DRIVER must be postgres or memory (got %q)", driver)
	}
}
