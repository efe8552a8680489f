package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/neexbeast/travelindex/internal/airport"
	"github.com/neexbeast/travelindex/internal/amadeus"
	"github.com/neexbeast/travelindex/internal/api"
	"github.com/neexbeast/travelindex/internal/geo"
	"github.com/neexbeast/travelindex/internal/pricing"
	"github.com/neexbeast/travelindex/internal/scoring"
	"github.com/neexbeast/travelindex/internal/storage"
	"github.com/neexbeast/travelindex/internal/weather"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(log); err != nil {
		log.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	databaseURL := mustEnv("DATABASE_URL")
	redisURL := mustEnv("REDIS_URL")
	bearerToken := mustEnv("BEARER_TOKEN")
	amadeusKey := mustEnv("AMADEUS_API_KEY")
	amadeusSecret := mustEnv("AMADEUS_API_SECRET")
	weatherKey := mustEnv("OPENWEATHER_API_KEY")
	airportsFile := getEnv("AIRPORTS_FILE", "data/airports.json")
	llmEndpoint := os.Getenv("LLM_API_URL")
	llmKey := os.Getenv("LLM_API_KEY")
	port := getEnv("PORT", "8080")

	ctx := context.Background()

	// Connect to PostgreSQL.
	pool, err := storage.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	// Run migrations (schema + seeded destination reference data).
	migrationsDir := "migrations"
	if err := storage.RunMigrations(ctx, pool, migrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("migrations applied")

	// Connect to Redis (price cache).
	redisClient, err := pricing.Connect(ctx, redisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisClient.Close() }()

	// Load the local airport dataset once; it is immutable afterwards.
	dataset, err := airport.Load(airportsFile)
	if err != nil {
		return fmt.Errorf("loading airport dataset: %w", err)
	}
	log.Info("airport dataset loaded", "airports", dataset.Len())

	// Wire dependencies.
	repo := storage.NewRepository(pool)
	amadeusClient := amadeus.NewClient(amadeusKey, amadeusSecret)
	geocoder := geo.NewResolver()

	// The LLM resolution tier is optional: without an endpoint the resolver
	// stops at the local dataset.
	var llm *airport.LLMResolver
	if llmEndpoint != "" {
		llm = airport.NewLLMResolver(llmEndpoint, llmKey)
	}
	resolver := newAirportResolver(amadeusClient, dataset, llm, log)

	priceCache := pricing.NewCache(redisClient)
	fetcher := pricing.NewFetcher(priceCache, amadeusClient, log)
	engine := scoring.NewEngine(fetcher, log)
	ingestor := weather.NewIngestor(repo, weather.NewClient(weatherKey), log)

	handlers := api.NewHandlers(geocoder, resolver, fetcher, engine, repo, ingestor, log)

	// Build router with pingers adapted for health check.
	dbPinger := &pgxPoolPinger{pool: pool}
	redisPinger := &redisPingerAdapter{client: redisClient}

	router := api.NewRouter(handlers, bearerToken, dbPinger, redisPinger, log)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("server goroutine panicked", "recover", r)
				errCh <- fmt.Errorf("server panicked: %v", r)
			}
		}()
		log.Info("server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listening: %w", err)
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("server shut down cleanly")
	return nil
}

// newAirportResolver keeps the nil-interface subtlety in one place: a nil
// *LLMResolver must become a nil interface, not a non-nil interface holding
// a nil pointer.
func newAirportResolver(client *amadeus.Client, dataset *airport.Dataset, llm *airport.LLMResolver, log *slog.Logger) *airport.Resolver {
	if llm == nil {
		return airport.NewResolver(client, dataset, nil, log)
	}
	return airport.NewResolver(client, dataset, llm, log)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable not set", "key", key)
		os.Exit(1)
	}
	return v
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// pgxPoolPinger adapts pgxpool.Pool to the api.dbPinger interface.
type pgxPoolPinger struct {
	pool interface {
		Ping(ctx context.Context) error
	}
}

func (p *pgxPoolPinger) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// redisPingerAdapter adapts redis.Client to the api.redisPinger interface.
type redisPingerAdapter struct {
	client *redis.Client
}

func (r *redisPingerAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
