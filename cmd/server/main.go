package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/wozamali/admin-console/internal/adapter/httpserver"
	"github.com/wozamali/admin-console/internal/adapter/metrics"
	"github.com/wozamali/admin-console/internal/adapter/postgres"
	"github.com/wozamali/admin-console/internal/adapter/redis"
	"github.com/wozamali/admin-console/internal/adapter/report"
	"github.com/wozamali/admin-console/internal/adapter/supabase"
	"github.com/wozamali/admin-console/internal/adapter/websocket"
	"github.com/wozamali/admin-console/internal/app"
	"github.com/wozamali/admin-console/internal/domain"
	"github.com/wozamali/admin-console/internal/liveness"
	"github.com/wozamali/admin-console/internal/platform/config"
	"github.com/wozamali/admin-console/internal/platform/crypto"
	"github.com/wozamali/admin-console/internal/platform/logging"
	"github.com/wozamali/admin-console/internal/platform/version"
)

type appMetrics struct {
	registry  *prometheus.Registry
	http      *metrics.HTTPMetrics
	liveness  *metrics.LivenessMetrics
	sessions  *metrics.SessionMetrics
	reviews   *metrics.ReviewMetrics
	store     *metrics.StoreMetrics
	websocket *metrics.WebSocketMetrics
}

func setupMetrics() appMetrics {
	reg := metrics.NewRegistry()
	return appMetrics{
		registry:  reg,
		http:      metrics.NewHTTPMetrics(reg),
		liveness:  metrics.NewLivenessMetrics(reg),
		sessions:  metrics.NewSessionMetrics(reg),
		reviews:   metrics.NewReviewMetrics(reg),
		store:     metrics.NewStoreMetrics(reg),
		websocket: metrics.NewWebSocketMetrics(reg),
	}
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config, m *metrics.StoreMetrics) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, m)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if cfg.RunMigrations {
		if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
			slog.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}
	}

	return pool
}

func setupRedis(cfg *config.Config, m *metrics.StoreMetrics) *goredis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL,
		redis.NewMetricsHook(m),
		redis.NewCircuitBreakerHook(redis.DefaultBreakerSettings),
	)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func healthChecks(pool *pgxpool.Pool, rdb *goredis.Client) []httpserver.HealthCheck {
	return []httpserver.HealthCheck{
		{Name: "postgres", Check: pool.Ping},
		{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	}
}

func runGracefulShutdown(srv *httpserver.Server, hub *websocket.Hub, stopBackground context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		// Closing the sockets stops every liveness manager with them.
		hub.Stop()
		stopBackground()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().String())

	m := setupMetrics()

	pool := setupDB(cfg, m.store)
	defer pool.Close()

	redisClient := setupRedis(cfg, m.store)
	defer func() { _ = redisClient.Close() }()

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	// Sessions and revocation
	tokenCipher, err := crypto.New(cfg.TokenEncryptionKey)
	if err != nil {
		slog.Error("Failed to create token cipher", "error", err)
		os.Exit(1)
	}
	sessionStore := redis.NewSessionStore(redisClient, cfg.SessionMaxAge, tokenCipher)
	revocations := redis.NewRevocationPublisher(redisClient)
	provider := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, clock)
	authSvc := app.NewAuthService(provider, postgres.NewAdminRepo(pool), sessionStore, revocations, clock, m.sessions)

	// Review workflows
	notifier := postgres.NewNotifier(pool)
	renderers := []domain.ReportRenderer{report.Excel{}, report.PDF{}}
	approvalSvc := app.NewApprovalService(postgres.NewEarningRepo(pool), notifier, clock, m.reviews)
	collectionSvc := app.NewCollectionService(postgres.NewCollectionRepo(pool), notifier, renderers, clock, m.reviews)

	// Console sockets and the realtime channel
	hub := websocket.NewHub(m.websocket)
	listener := postgres.NewListener(pool, websocket.ChangeFanout(hub), clock, m.store)
	go listener.Run(bgCtx)

	subscriber := redis.NewRevocationSubscriber(redisClient, websocket.RevocationHandler(hub))
	go subscriber.Start(bgCtx)

	livenessFactory := &liveness.Factory{
		Prober:     postgres.NewProber(pool),
		Channel:    listener,
		ProbeTable: cfg.ProbeTable,
		Clock:      clock,
		Metrics:    m.liveness,
	}

	srv := httpserver.NewServer(cfg, httpserver.Deps{
		Auth:        authSvc,
		Approvals:   approvalSvc,
		Collections: collectionSvc,
		ConsoleSession: func(sessionID string) domain.SessionSource {
			return authSvc.ConsoleSession(sessionID)
		},
		Hub:             hub,
		Liveness:        livenessFactory,
		LivenessMetrics: m.liveness,
		HTTPMetrics:     m.http,
		MetricsHandler:  metrics.Handler(m.registry),
		HealthChecks:    healthChecks(pool, redisClient),
	})

	done := runGracefulShutdown(srv, hub, stopBackground)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
