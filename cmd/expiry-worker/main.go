package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/robertarktes/hotel-reservations/internal/adapters/crdb"
	redisadapter "github.com/robertarktes/hotel-reservations/internal/adapters/redis"
	"github.com/robertarktes/hotel-reservations/internal/config"
	"github.com/robertarktes/hotel-reservations/internal/expiry"
	"github.com/robertarktes/hotel-reservations/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := observability.SetupOTel(ctx, cfg, "hotel-expiry-worker")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	// The lease never outlives one tick, so a crashed holder blocks at most one sweep.
	locker := redisadapter.NewLocker(redisadapter.NewCache(redisClient), cfg.SweepInterval)

	sched, err := gocron.NewScheduler(gocron.WithDistributedLocker(locker))
	if err != nil {
		log.Fatalf("failed to create scheduler: %v", err)
	}

	sweeper := expiry.NewSweeper(repo, cfg.PendingTTL, logger)
	if _, err := sweeper.Schedule(ctx, sched, cfg.SweepInterval); err != nil {
		log.Fatalf("failed to schedule sweep: %v", err)
	}
	sched.Start()
	logger.WithField("ttl", cfg.PendingTTL.String()).WithField("interval", cfg.SweepInterval.String()).Info("Expiry worker started")

	<-ctx.Done()
	logger.Info("Shutdown expiry worker")
	if err := sched.Shutdown(); err != nil {
		logger.WithError(err).Error("scheduler shutdown failed")
	}
}
