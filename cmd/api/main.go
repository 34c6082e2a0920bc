package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/robertarktes/hotel-reservations/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/hotel-reservations/internal/adapters/mongo"
	"github.com/robertarktes/hotel-reservations/internal/adapters/rabbit"
	redisadapter "github.com/robertarktes/hotel-reservations/internal/adapters/redis"
	"github.com/robertarktes/hotel-reservations/internal/booking"
	"github.com/robertarktes/hotel-reservations/internal/config"
	httphandler "github.com/robertarktes/hotel-reservations/internal/http"
	"github.com/robertarktes/hotel-reservations/internal/idempotency"
	"github.com/robertarktes/hotel-reservations/internal/notify"
	"github.com/robertarktes/hotel-reservations/internal/observability"
	"github.com/robertarktes/hotel-reservations/internal/payment"
	"github.com/robertarktes/hotel-reservations/internal/payment/momo"
	"github.com/robertarktes/hotel-reservations/internal/payment/vnpay"
	"github.com/robertarktes/hotel-reservations/internal/rateLimit"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := observability.SetupOTel(ctx, cfg, "hotel-api")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	jwtKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.JWTPublicKey))
	if err != nil {
		log.Fatalf("failed to parse JWT_PUBLIC_KEY: %v", err)
	}

	pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	crdbRepo := crdb.NewRepository(pool)
	if err := crdbRepo.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("hotel")
	guests := mongoadapter.NewGuestDirectory(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	redisCache := redisadapter.NewCache(redisClient)
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), 24*time.Hour)
	rl := rateLimit.NewRateLimiter(redisCache)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()
	rabbitPub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}
	defer rabbitPub.Close()

	bookings := booking.NewService(crdbRepo, guests, notify.NewPublisher(rabbitPub, logger), logger)
	gateways := []payment.Gateway{
		momo.New(cfg.MoMo, cfg.PaymentTimeout),
		vnpay.New(cfg.VNPay),
	}
	payments := payment.NewReconciler(crdbRepo, logger, gateways,
		payment.WithAudit(audit),
		payment.WithTimeout(cfg.PaymentTimeout),
	)

	checks := map[string]httphandler.Check{
		"crdb":  crdbRepo.Ping,
		"redis": redisCache.Ping,
		"mongo": func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
	}
	handlers := httphandler.NewHandlers(cfg, bookings, payments, checks, logger)
	r := httphandler.SetupRouter(handlers, logger, jwtKey, rl, idemp)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", cfg.HTTPAddr).Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown Server ...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server stopped with error")
		os.Exit(1)
	}
	logger.Info("Server exiting")
}
