package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Domenick1991/airticketing/config"
	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/Domenick1991/airticketing/internal/email"
	"github.com/Domenick1991/airticketing/internal/kafka"
	"github.com/Domenick1991/airticketing/internal/logging"
	"github.com/Domenick1991/airticketing/internal/repository"
	"github.com/Domenick1991/airticketing/internal/service/payment"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	kafkaGo "github.com/segmentio/kafka-go"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	paymentService := payment.NewPaymentService(
		repository.NewPaymentRepository(pool),
		repository.NewBookingRepository(pool),
		producer,
		cfg.Kafka.BookingTopic,
		payment.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
	)
	emailSender := email.NewSender()
	timeout := cfg.Booking.StorageTimeout()

	notifications := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
	defer notifications.Close()
	paymentEvents := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.PaymentEventsTopic)
	defer paymentEvents.Close()

	var wg sync.WaitGroup
	run := func(name string, consumer *kafka.Consumer, handler kafka.Handler) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Str("consumer", name).Msg("consumer started")
			if err := consumer.Consume(ctx, withTimeout(timeout, handler)); err != nil {
				log.Error().Err(err).Str("consumer", name).Msg("consumer stopped")
				stop()
			}
		}()
	}

	run("notifications", notifications, func(ctx context.Context, msg kafkaGo.Message) error {
		var event kafka.BookingEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Warn().Err(err).Int64("offset", msg.Offset).Msg("skip undecodable booking event")
			return nil
		}
		return emailSender.Send(ctx, event)
	})

	run("payment_events", paymentEvents, func(ctx context.Context, msg kafkaGo.Message) error {
		return applyPaymentEvent(ctx, paymentService, msg)
	})

	<-ctx.Done()
	log.Info().Msg("shutting down worker")
	wg.Wait()
}

// applyPaymentEvent feeds a gateway status report into the payment service.
// Malformed or unknown events are logged and skipped so they do not block the
// partition; storage failures stop the consumer without committing.
func applyPaymentEvent(ctx context.Context, payments payment.PaymentUseCase, msg kafkaGo.Message) error {
	var event kafka.PaymentEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		log.Warn().Err(err).Int64("offset", msg.Offset).Msg("skip undecodable payment event")
		return nil
	}
	status, err := domain.ParsePaymentStatus(event.Status)
	if err != nil || event.PaymentReference == "" {
		log.Warn().Str("payment_reference", event.PaymentReference).Str("status", event.Status).Msg("skip invalid payment event")
		return nil
	}

	p, err := payments.UpdateStatusByReference(ctx, event.PaymentReference, status)
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrInvalidRequest):
		log.Warn().Err(err).Str("payment_reference", event.PaymentReference).Msg("payment event rejected")
		return nil
	case err != nil:
		return err
	}
	log.Info().Str("payment_reference", p.PaymentReference).Str("status", string(p.Status)).Msg("payment status applied")
	return nil
}

func withTimeout(d time.Duration, handler kafka.Handler) kafka.Handler {
	return func(ctx context.Context, msg kafkaGo.Message) error {
		if d <= 0 {
			return handler(ctx, msg)
		}
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return handler(ctx, msg)
	}
}
