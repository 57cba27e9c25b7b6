package main

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/om2108/OneGate/libs/config"
	"github.com/om2108/OneGate/libs/httpx"
	"github.com/om2108/OneGate/libs/kafkax"
	otelx "github.com/om2108/OneGate/libs/otel"
	"github.com/om2108/OneGate/libs/runtime"
	"github.com/om2108/OneGate/services/visit-service/internal/events"
	"github.com/om2108/OneGate/services/visit-service/internal/handlers"
	"github.com/om2108/OneGate/services/visit-service/internal/reconcile"
	"github.com/om2108/OneGate/services/visit-service/internal/refcache"
	"github.com/om2108/OneGate/services/visit-service/internal/scoring"
	"github.com/om2108/OneGate/services/visit-service/internal/session"
	"github.com/om2108/OneGate/services/visit-service/internal/store"
	"github.com/om2108/OneGate/services/visit-service/internal/workflow"
)

func main() {
	service := config.String("SERVICE_NAME", "visit-service")
	port, err := config.Port("PORT", "8084")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

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

	storeURL, err := config.RequiredString("APPOINTMENT_STORE_URL")
	if err != nil {
		panic(err)
	}
	societyID := config.String("SOCIETY_ID", "")
	storeTimeout := durationSeconds("STORE_TIMEOUT_SECONDS", 10)
	client := store.NewClient(storeURL, societyID, storeTimeout)

	brokers := config.String("KAFKA_BROKERS", "")
	publisher := events.NewPublisher(brokers, logger)
	defer publisher.Close()

	engine := reconcile.NewEngine(client, publisher, logger)
	go engine.Run(ctx, durationSeconds("RECONCILE_INTERVAL_SECONDS", 300))

	cache := refcache.New(durationSeconds("REFERENCE_CACHE_SECONDS", 60))
	coordinator := session.NewCoordinator(client, engine, cache, logger, session.Config{
		SocietyID:    societyID,
		ResolveUsers: isTruthy(config.String("RESOLVE_USERS", "true")),
	})
	wf := workflow.NewService(client, logger)
	gateway := scoring.NewGateway(client, logger)

	handler := handlers.NewAppointmentHandler(client, coordinator, wf, gateway, publisher, logger)

	readyChecks := []runtime.ReadyCheck{
		{Name: "store", Check: client.ReadyCheck()},
	}
	if strings.TrimSpace(brokers) != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("/api/v1/appointments", handler.Submit)
	mux.HandleFunc("/api/v1/appointments/requests", handler.Requests)
	mux.HandleFunc("/api/v1/appointments/upcoming", handler.Upcoming)
	mux.HandleFunc("/api/v1/appointments/respond", handler.Respond)
	mux.HandleFunc("/api/v1/appointments/delete", handler.Delete)
	mux.HandleFunc("/api/v1/appointments/score", handler.Score)

	limitPerMinute := 60
	if v, err := strconv.Atoi(config.String("RATE_LIMIT_PER_MINUTE", "60")); err == nil && v > 0 {
		limitPerMinute = v
	}
	var rateLimitMW httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		redisDB := 0
		if v, err := strconv.Atoi(config.String("REDIS_DB", "0")); err == nil && v >= 0 {
			redisDB = v
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, isTruthy(config.String("RATE_LIMIT_FAIL_OPEN", "true")))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods:   parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS")),
			AllowedHeaders:   parseList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id")),
			AllowCredentials: isTruthy(config.String("CORS_ALLOW_CREDENTIALS", "false")),
			MaxAge:           10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(durationSeconds("REQUEST_TIMEOUT_SECONDS", 15)),
		rateLimitMW,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "visit")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "society_id", societyID)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func durationSeconds(key string, fallback int) time.Duration {
	secs := fallback
	if v, err := strconv.Atoi(config.String(key, strconv.Itoa(fallback))); err == nil && v > 0 {
		secs = v
	}
	return time.Duration(secs) * time.Second
}

func isTruthy(s string) bool {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func parseList(raw string) []string {
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
