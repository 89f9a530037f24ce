package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kycvault/internal/audit"
	"kycvault/internal/auth"
	"kycvault/internal/consent"
	"kycvault/internal/evidence"
	"kycvault/internal/platform/config"
	"kycvault/internal/platform/database"
	"kycvault/internal/platform/httpserver"
	"kycvault/internal/platform/kafka"
	"kycvault/internal/platform/logger"
	"kycvault/internal/platform/metrics"
	"kycvault/internal/platform/redis"
	"kycvault/internal/platform/tracing"
	"kycvault/internal/platform/unitofwork"
	"kycvault/internal/token"
	httptransport "kycvault/internal/transport/http"
	"kycvault/internal/user"
	"kycvault/migrations"
)

const shutdownTimeout = 10 * time.Second

// main wires dependencies and owns the server lifecycle. Every backing
// service is optional: without Postgres the stores are in-memory, without
// Redis liveness checks hit the primary store, without Kafka the audit
// mirror is off. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx := context.Background()

	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.DatabaseURL
	pool, err := database.New(dbCfg)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}

	var (
		runner        unitofwork.Runner
		userStore     user.Store
		evidenceStore evidence.Store
		tokenStore    token.Store
		consentStore  consent.Store
		auditStore    audit.Store
	)
	if pool != nil {
		if err := migrations.Apply(ctx, pool.DB()); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		runner = unitofwork.NewSQL(pool.DB())
		userStore = user.NewPostgres(pool.DB())
		evidenceStore = evidence.NewPostgres(pool.DB())
		tokenStore = token.NewPostgres(pool.DB())
		consentStore = consent.NewPostgres(pool.DB())
		auditStore = audit.NewPostgres(pool.DB())
		log.Info("postgres storage enabled")
	} else {
		runner = unitofwork.NewMemory()
		userStore = user.NewInMemoryStore()
		evidenceStore = evidence.NewInMemoryStore()
		tokenStore = token.NewInMemoryStore()
		consentStore = consent.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
		log.Warn("postgres not configured, using in-memory storage")
	}

	redisClient, err := redis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}

	producer, err := kafka.New(cfg.KafkaBrokers, log)
	if err != nil {
		log.Error("kafka init failed", "error", err)
		os.Exit(1)
	}

	auditOpts := []audit.Option{audit.WithSlog(log)}
	if producer != nil {
		auditOpts = append(auditOpts, audit.WithMirror(producer))
	}
	auditLog := audit.NewLogger(auditStore, auditOpts...)

	m := metrics.New()
	tracer := tracing.NewOTel()

	jwtSvc := auth.NewJWTService(cfg.JWTSigningKey, cfg.TokenIssuer, cfg.SessionTTL)
	authSvc := auth.NewService(userStore, jwtSvc, auth.WithLogger(log))

	evidenceSvc := evidence.NewService(evidenceStore, runner,
		evidence.WithAuditLogger(auditLog),
		evidence.WithMetrics(m),
		evidence.WithLogger(log),
	)
	tokenSvc := token.NewService(tokenStore, token.NewSigner(cfg.JWTSigningKey, cfg.TokenIssuer), runner,
		token.WithAuditLogger(auditLog),
		token.WithMetrics(m),
		token.WithTracer(tracer),
		token.WithLogger(log),
	)

	consentOpts := []consent.Option{
		consent.WithAuditLogger(auditLog),
		consent.WithMetrics(m),
		consent.WithTracer(tracer),
		consent.WithLogger(log),
	}
	if redisClient != nil {
		consentOpts = append(consentOpts, consent.WithLivenessCache(consent.NewLivenessCache(redisClient, log)))
	}
	consentSvc := consent.NewService(consentStore, evidenceSvc, tokenSvc, runner, consentOpts...)

	handler := httptransport.NewHandler(authSvc, evidenceSvc, tokenSvc, consentSvc, auditLog, log)
	router := httptransport.NewRouter(handler, jwtSvc, log)

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	if producer != nil {
		_ = producer.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if pool != nil {
		_ = pool.Close()
	}
}
