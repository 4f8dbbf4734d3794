package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Domenick1991/airticketing/internal/metrics"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	brokers []string
	writer  messageWriter
	breaker *gobreaker.CircuitBreaker[struct{}]
}

type BreakerConfig struct {
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

var defaultBreaker = BreakerConfig{FailureThreshold: 5, OpenTimeout: 30 * time.Second}

func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newProducer(brokers, writer, defaultBreaker)
}

func newProducer(brokers []string, writer messageWriter, bc BreakerConfig) *Producer {
	settings := gobreaker.Settings{
		Name:        "kafka-producer",
		MaxRequests: 1,
		Timeout:     bc.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bc.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	}
	return &Producer{
		brokers: brokers,
		writer:  writer,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

// Publish writes one JSON message keyed by key. While the breaker is open it
// fails fast with gobreaker.ErrOpenState.
func (p *Producer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	message := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}

	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.writer.WriteMessages(ctx, message)
	})
	if err != nil {
		metrics.EventsPublished.WithLabelValues(topic, "error").Inc()
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	metrics.EventsPublished.WithLabelValues(topic, "ok").Inc()
	log.Debug().Str("topic", topic).Str("key", key).Msg("published event")
	return nil
}

func (p *Producer) State() string {
	return p.breaker.State().String()
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// CheckConnection dials the first broker and reads partition metadata.
func (p *Producer) CheckConnection(ctx context.Context) error {
	if len(p.brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", p.brokers[0])
	if err != nil {
		return fmt.Errorf("failed to connect to Kafka: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ReadPartitions(); err != nil {
		return fmt.Errorf("failed to read partitions: %w", err)
	}
	return nil
}
