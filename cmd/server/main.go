package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/agodwin12/wegoBackend-sub002/internal/accounts"
	"github.com/agodwin12/wegoBackend-sub002/internal/config"
	"github.com/agodwin12/wegoBackend-sub002/internal/dispatch"
	"github.com/agodwin12/wegoBackend-sub002/internal/ephemeral"
	"github.com/agodwin12/wegoBackend-sub002/internal/eta"
	"github.com/agodwin12/wegoBackend-sub002/internal/geo"
	"github.com/agodwin12/wegoBackend-sub002/internal/httpapi"
	"github.com/agodwin12/wegoBackend-sub002/internal/ingest"
	"github.com/agodwin12/wegoBackend-sub002/internal/logging"
	"github.com/agodwin12/wegoBackend-sub002/internal/notify"
	"github.com/agodwin12/wegoBackend-sub002/internal/payments"
	"github.com/agodwin12/wegoBackend-sub002/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	if cfg.PGDSN != "" && cfg.RunMigrations {
		runMigrations(cfg.PGDSN)
	}

	var (
		eph      ephemeral.Store
		avail    ephemeral.AvailabilityStore
		locator  geo.Locator
	)
	if cfg.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		rs := ephemeral.NewRedisStore(rc)
		eph, avail = rs, rs
		locator = geo.NewRedisGeo(rc, cfg.RedisGeoKey)
	} else {
		ms := ephemeral.NewMemoryStore()
		eph, avail = ms, ms
		locator = geo.NewIndex()
		logger.Warn("REDIS_ADDR not set, using in-memory stores (single instance only)")
	}

	var durable storage.TripStore
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		durable = ps
	} else {
		durable = storage.NewMemoryStore()
		logger.Warn("PG_DSN not set, trips will not survive restarts")
	}

	driverWS := notify.NewWSRegistry()
	userWS := notify.NewWSRegistry()
	notifier := notify.NewNotifier(logger, driverWS, userWS, notify.NewFCMChannel(cfg.FCMEndpoint, cfg.FCMKey))

	var acct accounts.Client
	if cfg.AccountsEndpoint != "" {
		acct = accounts.NewHTTPClient(cfg.AccountsEndpoint)
	} else {
		acct = accounts.Static{}
		logger.Warn("ACCOUNTS_ENDPOINT not set, offers will carry bare ids")
	}

	var etaClient eta.Client
	if cfg.OSRMEndpoint != "" {
		etaClient = eta.NewOSRMClient(cfg.OSRMEndpoint)
	}

	var (
		locProducer   *ingest.LocationProducer
		eventProducer *ingest.EventProducer
	)
	if len(cfg.KafkaBrokers) > 0 {
		locProducer = ingest.NewLocationProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		eventProducer = ingest.NewEventProducer(cfg.KafkaBrokers, cfg.KafkaEventTopic)
		defer locProducer.Close()
		defer eventProducer.Close()
	}

	svc := &dispatch.Service{
		Ephemeral:       eph,
		Availability:    avail,
		Durable:         durable,
		Locator:         locator,
		Accounts:        acct,
		Notifier:        notifier,
		Timers:          dispatch.NewLocalTimers(),
		Settler:         payments.NewStripeClient(),
		ETAClient:       etaClient,
		ETACache:        eta.NewCache(5 * time.Minute),
		Logger:          logger,
		OfferTTL:        cfg.OfferTTL,
		SearchRadiusKm:  cfg.SearchRadiusKm,
		LockTTL:         cfg.LockTTL,
		MatchedTripTTL:  cfg.MatchedTripTTL,
		DefaultSpeedMps: cfg.DefaultSpeedMps,
	}
	if eventProducer != nil {
		svc.Events = eventProducer
	}

	handler := httpapi.NewServer(svc, driverWS, userWS, locator, locProducer, logger)
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("dispatch api listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}

// runMigrations applies migrations/001_create_trips.sql when MIGRATE=true.
func runMigrations(dsn string) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Printf("migration db open error: %v", err)
		return
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_trips.sql"))
	if err != nil {
		log.Printf("migration read error: %v", err)
		return
	}
	if _, err := db.Exec(string(b)); err != nil {
		log.Printf("migration exec error: %v", err)
		return
	}
	log.Printf("migration applied: 001_create_trips.sql")
}
