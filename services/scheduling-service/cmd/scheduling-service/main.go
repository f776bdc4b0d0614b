package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/auth"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/config"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/db"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/httpx"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/kafkax"
	otelx "github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/otel"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/runtime"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/actiontoken"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/admission"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/availability"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/handlers"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/lifecycle"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/metrics"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/model"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/notify"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/schedule"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/storage"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/migrations"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// settingsSource is what the engine needs from the clinic settings record.
type settingsSource interface {
	storage.SettingsStore
	ScheduleConfig(ctx context.Context) (schedule.Config, error)
	NotificationPrefs(ctx context.Context) (model.NotificationPrefs, error)
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	if err := config.LoadFile(config.String("CONFIG_FILE", "")); err != nil {
		panic(err)
	}

	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLoggerWithLevel(service, config.String("LOG_LEVEL", "info"))

	loc, err := config.Location("CLINIC_TIMEZONE", "UTC")
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

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	if config.Bool("MIGRATE_ON_START", false) {
		if err := migrations.Up(dbURL); err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}
		logger.Info("migrations applied")
	}

	pool, err := db.Open(ctx, dbURL, db.PoolConfig{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
		MinConns: int32(config.Int("DB_MIN_CONNS", 1)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	appSecret, err := config.RequiredString("APP_SECRET")
	if err != nil {
		panic(err)
	}
	signer, err := actiontoken.NewSigner([]byte(appSecret), config.Duration("ACTION_TOKEN_TTL", 72*time.Hour))
	if err != nil {
		panic(err)
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}
	adminAuth, err := auth.NewHS256([]byte(jwtSecret), config.String("JWT_ISSUER", ""))
	if err != nil {
		panic(err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	engineMetrics := metrics.NewEngineMetrics(reg)

	appointments := storage.NewAppointmentRepository(pool)
	exceptions := storage.NewExceptionRepository(pool)
	catalog := storage.NewCatalogRepository(pool)
	var settings settingsSource = storage.NewSettingsRepository(pool)

	readyChecks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}

	var (
		rdb         *redis.Client
		idempotency *storage.IdempotencyStore
	)
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()
		settings = storage.NewCachedSettings(settings, rdb, config.Duration("SETTINGS_CACHE_TTL", 5*time.Minute), logger)
		idempotency = storage.NewIdempotencyStore(rdb, config.Duration("IDEMPOTENCY_TTL", 24*time.Hour))
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	var notifier notify.Notifier = notify.Nop{}
	if brokers := config.String("KAFKA_BROKERS", ""); brokers != "" {
		writer := kafkax.NewWriter(brokers)
		defer func() { _ = writer.Close() }()
		notifier = notify.NewDispatcher(writer, settings, catalog, catalog, signer, engineMetrics, logger, notify.DispatcherConfig{
			PublicBaseURL: config.String("PUBLIC_BASE_URL", "http://localhost:3000"),
			TokenTTL:      config.Duration("ACTION_TOKEN_TTL", 72*time.Hour),
			WriteTimeout:  config.Duration("KAFKA_WRITE_TIMEOUT", 5*time.Second),
		})
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	} else {
		logger.Warn("KAFKA_BROKERS not set; notifications disabled")
	}

	skipElapsed := config.Bool("AVAILABILITY_SKIP_ELAPSED", false)
	h := handlers.New(handlers.Deps{
		Availability: availability.NewService(settings, exceptions, appointments, catalog, engineMetrics, availability.Options{
			Location:         loc,
			MaxSpanDays:      config.Int("AVAILABILITY_MAX_DAYS", 366),
			SkipElapsedSlots: skipElapsed,
		}),
		Admitter: admission.NewAdmitter(catalog, settings, exceptions, appointments, notifier, engineMetrics, logger, loc).
			WithSkipElapsed(skipElapsed),
		Machine:      lifecycle.NewMachine(appointments, notifier, engineMetrics, logger),
		Verifier:     actiontoken.NewVerifier(signer, appointments),
		Appointments: appointments,
		Exceptions:   exceptions,
		Settings:     settings,
		Services:     catalog,
		Idempotency:  idempotency,
		Location:     loc,
		Logger:       logger,
	})

	r := chi.NewRouter()
	r.Use(httpx.WithRequestID, httpx.WithRecover(logger), httpx.WithAccessLog(logger))
	runtime.MountHealth(r, readyChecks...)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	h.Mount(r, auth.RequireRole(adminAuth, auth.RoleAdmin), publicLimiter(rdb, logger))

	httpHandler := httpx.Chain(r,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key", httpx.RequestIDHeader},
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           10 * time.Minute,
		}),
		httpx.WithBodyLimit(int64(config.Int("HTTP_MAX_BODY_BYTES", 1<<20))),
		httpx.WithTimeout(config.Duration("HTTP_HANDLER_TIMEOUT", 15*time.Second)),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	runtime.Serve(ctx, srv, logger)
}

// publicLimiter guards the unauthenticated routes. Redis gives one budget across replicas;
// without it each process keeps its own buckets.
func publicLimiter(rdb *redis.Client, logger *slog.Logger) httpx.Middleware {
	perMinute := config.Int("PUBLIC_RATE_LIMIT_PER_MINUTE", 60)
	if perMinute <= 0 {
		return nil
	}
	if rdb != nil {
		return httpx.NewRedisRateLimiter(rdb, perMinute, time.Minute, "clinic:rl:public").
			Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
	}
	return httpx.NewRateLimiter(perMinute, time.Minute).Middleware()
}
