package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/auth"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/config"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/db"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/httpx"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/kafkax"
	otelx "github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/otel"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/runtime"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/notification-service/internal/consumer"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/notification-service/internal/delivery"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/notification-service/internal/email"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/notification-service/internal/event"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/notification-service/internal/handlers"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/notification-service/internal/inbox"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/notification-service/internal/render"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/notification-service/internal/storage"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/notification-service/migrations"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func newSender(logger *slog.Logger) email.Sender {
	switch provider := strings.ToLower(config.String("EMAIL_PROVIDER", "smtp")); provider {
	case "sendgrid":
		s, err := email.NewSendGridSender(email.SendGridConfig{
			APIKey:    config.String("SENDGRID_API_KEY", ""),
			FromEmail: config.String("EMAIL_FROM", "no-reply@clinic.local"),
			FromName:  config.String("EMAIL_FROM_NAME", config.String("CLINIC_NAME", "")),
		})
		if err != nil {
			logger.Error("sendgrid sender unavailable; emails will only be logged", "err", err)
			return email.NewLogSender(logger)
		}
		return s
	case "log", "noop":
		return email.NewLogSender(logger)
	default:
		return email.NewSMTPSender(email.SMTPConfig{
			Host:     config.String("SMTP_HOST", "mailpit"),
			Port:     config.String("SMTP_PORT", "1025"),
			From:     config.String("EMAIL_FROM", "no-reply@clinic.local"),
			Username: config.String("SMTP_USERNAME", ""),
			Password: config.String("SMTP_PASSWORD", ""),
		})
	}
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	if err := config.LoadFile(config.String("CONFIG_FILE", "")); err != nil {
		panic(err)
	}

	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLoggerWithLevel(service, config.String("LOG_LEVEL", "info"))

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
	}

	pool, err := db.Open(ctx, dbURL, db.PoolConfig{MaxConns: int32(config.Int("DB_MAX_CONNS", 5))})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	renderer, err := render.New(config.String("CLINIC_NAME", ""))
	if err != nil {
		panic(err)
	}
	notificationsRepo := storage.NewRepository(pool)
	processor := delivery.NewProcessor(renderer, newSender(logger), notificationsRepo, logger,
		config.String("NOTIFICATION_FAIL_SUFFIX", ""))

	brokers := config.String("KAFKA_BROKERS", "")
	if brokers != "" {
		eventConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
			Topics:  event.TopicNames(),
		}, processor.Handle)
		go eventConsumer.Run(ctx)
	} else {
		logger.Warn("KAFKA_BROKERS not set; consumer disabled")
	}

	readyChecks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if brokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	r := chi.NewRouter()
	r.Use(httpx.WithRequestID, httpx.WithRecover(logger), httpx.WithAccessLog(logger))
	runtime.MountHealth(r, readyChecks...)
	r.Handle("/metrics", promhttp.Handler())

	if secret := config.String("JWT_SECRET", ""); secret != "" {
		verifier, err := auth.NewHS256([]byte(secret), config.String("JWT_ISSUER", ""))
		if err != nil {
			panic(err)
		}
		list := handlers.NewNotificationsHandler(notificationsRepo, logger)
		r.With(auth.RequireRole(verifier, auth.RoleAdmin)).Get("/api/v1/notifications", list.List)
	}

	handler := otelhttp.NewHandler(r, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	runtime.Serve(ctx, srv, logger)
}
