package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/airticketing/api"
	"github.com/Domenick1991/airticketing/config"
	"github.com/Domenick1991/airticketing/internal/auth"
	"github.com/Domenick1991/airticketing/internal/bootstrap"
	"github.com/Domenick1991/airticketing/internal/cache"
	"github.com/Domenick1991/airticketing/internal/kafka"
	"github.com/Domenick1991/airticketing/internal/logging"
	"github.com/Domenick1991/airticketing/internal/pricing"
	"github.com/Domenick1991/airticketing/internal/repository"
	"github.com/Domenick1991/airticketing/internal/service/booking"
	"github.com/Domenick1991/airticketing/internal/service/flights"
	"github.com/Domenick1991/airticketing/internal/service/payment"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if cfg.Log.Format == "json" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("parse postgres config")
	}
	poolCfg.MaxConns = cfg.Database.MaxConns
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis, cfg.Booking.FlightsCacheDuration())
	defer redisCache.Close()
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	engine := pricing.NewEngine()
	flightRepo := repository.NewFlightRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)
	userRepo := repository.NewUserRepository(pool)

	flightService := flights.NewFlightService(flightRepo, redisCache, engine,
		flights.WithFlightLock(redisCache, cfg.Booking.FlightLockTTL()),
	)
	bookingService := booking.NewBookingService(
		bookingRepo,
		flightRepo,
		userRepo,
		redisCache,
		producer,
		engine,
		cfg.Kafka.BookingTopic,
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		booking.WithMaxRetries(cfg.Booking.MaxRetries),
		booking.WithRetryBackoff(cfg.Booking.RetryBackoff()),
		booking.WithLockTTL(cfg.Booking.FlightLockTTL()),
		booking.WithCodeAttempts(cfg.Booking.CodeAttempts),
	)
	paymentService := payment.NewPaymentService(
		paymentRepo,
		bookingRepo,
		producer,
		cfg.Kafka.BookingTopic,
		payment.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		payment.WithCodeAttempts(cfg.Booking.CodeAttempts),
	)

	ready := func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return err
		}
		return redisCache.Ping(ctx)
	}

	router := api.NewRouter(api.RouterConfig{
		Authenticator:  auth.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		RateLimiter:    api.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
		RequestTimeout: cfg.Booking.StorageTimeout(),
		SwaggerDir:     cfg.HTTP.SwaggerDir,
		Ready:          ready,
	}, api.Handlers{
		Flights:  api.NewFlightHandler(flightService),
		Bookings: api.NewBookingHandler(bookingService),
		Payments: api.NewPaymentHandler(paymentService),
	})

	if err := bootstrap.Run(ctx, cfg, router, ready); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
