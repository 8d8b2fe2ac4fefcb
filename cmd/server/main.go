package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"gameboard/internal/audit"
	auditrepo "gameboard/internal/audit/repository"
	"gameboard/internal/auth/service"
	"gameboard/internal/config"
	"gameboard/internal/db"
	devicerepo "gameboard/internal/device/repository"
	gamerepo "gameboard/internal/game/repository"
	"gameboard/internal/handler"
	"gameboard/internal/nonce"
	noncerepo "gameboard/internal/nonce/repository"
	"gameboard/internal/ratelimit"
	"gameboard/internal/security"
	"gameboard/internal/server"
	sessionrepo "gameboard/internal/session/repository"
	"gameboard/internal/telemetry"
	"gameboard/internal/telemetry/otel"
	"gameboard/internal/telemetry/producer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("JWT_PRIVATE_KEY: %v", err)
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("JWT_PUBLIC_KEY: %v", err)
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "gameboard-server", false)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()

	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(conn))
	codec := security.NewTokenCodec(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience)

	sessions := service.NewSessionManager(
		gamerepo.NewPostgresRepository(conn),
		devicerepo.NewPostgresRepository(conn),
		sessionrepo.NewPostgresRepository(conn),
		codec,
		auditLogger,
		cfg.AccessTTL(),
		cfg.RefreshTTL(),
		cfg.RevokeOnTokenReuse,
		nil,
	)

	nonces := nonce.NewManager(noncerepo.NewPostgresRepository(conn), nil)
	janitor := nonce.NewJanitor(nonces, cfg.NonceSweepInterval(), cfg.NonceRetentionPeriod())

	var limiter *ratelimit.Limiter
	if cfg.RedisURL != "" && cfg.RateLimitPerMinute > 0 {
		client, err := ratelimit.Dial(cfg.RedisURL)
		if err != nil {
			// Rate limiting is protective, not load-bearing; run without it.
			log.Printf("redis: %v; rate limiting disabled", err)
		} else {
			defer client.Close()
			limiter = ratelimit.NewLimiter(ratelimit.NewRedisCounter(client), cfg.RateLimitPerMinute, time.Minute)
		}
	}

	var emitter telemetry.EventEmitter
	if brokers := cfg.TelemetryKafkaBrokersList(); len(brokers) > 0 {
		kafkaProducer, err := producer.NewKafkaProducer(brokers, cfg.TelemetryKafkaTopic)
		if err != nil {
			log.Fatalf("kafka: %v", err)
		}
		if kafkaProducer != nil {
			defer kafkaProducer.Close()
			emitter = kafkaProducer
		}
	} else if cfg.OTLPEndpoint != "" {
		emitter = otel.NewEventEmitter(providers.LoggerProvider)
	}

	router := server.NewRouter(server.Deps{
		Device:    handler.NewDeviceHandler(sessions, emitter),
		Nonce:     handler.NewNonceHandler(nonces, auditLogger, cfg.NonceLifetime()),
		Health:    handler.NewHealthHandler(conn),
		Validator: sessions,
		Limiter:   limiter,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, "gameboard"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := janitor.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("server: %v", err)
	}

	// Let in-flight async telemetry emits finish before exporters go away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
