package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/Okay2121/vine-ledger/internal/api"
	"github.com/Okay2121/vine-ledger/internal/config"
	"github.com/Okay2121/vine-ledger/internal/database"
	"github.com/Okay2121/vine-ledger/internal/generator"
	"github.com/Okay2121/vine-ledger/internal/kafka"
	"github.com/Okay2121/vine-ledger/internal/ledger"
	"github.com/Okay2121/vine-ledger/internal/observability"
	"github.com/Okay2121/vine-ledger/internal/performance"
	"github.com/Okay2121/vine-ledger/internal/settlement"
)

const migrationsPath = "db/migrations"

func main() {
	logger := observability.NewLogger("main")
	cfg := config.Load()

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	if err := db.RunMigrations(migrationsPath); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}
	logger.Info().Msg("migrations applied")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.SettlementTopic)
	defer producer.Close()

	settler := settlement.NewEngine(db, producer, cfg.Trading.AllocationFactor, metrics)
	guard := ledger.NewGuard(redisClient, cfg.Redis.SeenTTL)
	engine := ledger.NewEngine(db, settler, guard, metrics)
	aggregator := performance.NewAggregator(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TradeTopic, cfg.Kafka.GroupID, engine)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Error().Err(err).Msg("kafka consumer stopped")
		}
	}()

	if settledCount, err := settler.SweepUnsettled(ctx); err != nil {
		logger.Error().Err(err).Msg("settlement sweep failed")
	} else if settledCount > 0 {
		logger.Info().Int("settled", settledCount).Msg("re-drove stranded settlements")
	}

	genManager := generator.NewManager(db, engine, cfg.Trading, metrics)
	if err := genManager.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("generator startup failed")
	}

	handler := api.NewHandler(engine, db, aggregator)
	router := api.SetupRoutes(handler, registry)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	// Generators stop before their next firing; in-flight settlements
	// finish inside their transactions.
	genManager.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}

	logger.Info().Msg("shutdown complete")
}
