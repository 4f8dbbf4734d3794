package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	GRPC      GRPCConfig      `yaml:"grpc"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Booking   BookingConfig   `yaml:"booking"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

type HTTPConfig struct {
	Address    string `yaml:"address"`
	SwaggerDir string `yaml:"swagger_dir"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int32  `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingTopic       string   `yaml:"booking_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	PaymentEventsTopic string   `yaml:"payment_events_topic"`
	GroupID            string   `yaml:"group_id"`
}

type BookingConfig struct {
	FlightsCacheTTL       int `yaml:"flights_cache_ttl_seconds"`
	FlightLockTTLSeconds  int `yaml:"flight_lock_ttl_seconds"`
	MaxRetries            int `yaml:"max_retries"`
	RetryBackoffMillis    int `yaml:"retry_backoff_ms"`
	CodeAttempts          int `yaml:"code_attempts"`
	StorageTimeoutSeconds int `yaml:"storage_timeout_seconds"`
}

func (b BookingConfig) FlightsCacheDuration() time.Duration {
	return time.Duration(b.FlightsCacheTTL) * time.Second
}

func (b BookingConfig) FlightLockTTL() time.Duration {
	return time.Duration(b.FlightLockTTLSeconds) * time.Second
}

func (b BookingConfig) RetryBackoff() time.Duration {
	return time.Duration(b.RetryBackoffMillis) * time.Millisecond
}

func (b BookingConfig) StorageTimeout() time.Duration {
	return time.Duration(b.StorageTimeoutSeconds) * time.Second
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadConfig reads the YAML file at path. A .env file in the working
// directory is loaded first when present, and environment variables win over
// file values.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.HTTP.Address, "HTTP_ADDRESS")
	setString(&c.GRPC.Address, "GRPC_ADDRESS")
	setString(&c.Database.Host, "DATABASE_HOST")
	setString(&c.Database.Password, "DATABASE_PASSWORD")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	if v := os.Getenv("DATABASE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Database.Port = port
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
}

func (c *Config) applyDefaults() {
	setDefault(&c.HTTP.Address, ":8080")
	setDefault(&c.GRPC.Address, ":9090")
	setDefault(&c.Database.Host, "localhost")
	setDefault(&c.Database.SSLMode, "disable")
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 10
	}
	setDefault(&c.Kafka.BookingTopic, "booking_events")
	setDefault(&c.Kafka.PaymentEventsTopic, "payment_events")
	setDefault(&c.Kafka.GroupID, "airticketing-worker")
	if c.Booking.FlightsCacheTTL == 0 {
		c.Booking.FlightsCacheTTL = 30
	}
	if c.Booking.FlightLockTTLSeconds == 0 {
		c.Booking.FlightLockTTLSeconds = 5
	}
	if c.Booking.MaxRetries == 0 {
		c.Booking.MaxRetries = 3
	}
	if c.Booking.RetryBackoffMillis == 0 {
		c.Booking.RetryBackoffMillis = 50
	}
	if c.Booking.CodeAttempts == 0 {
		c.Booking.CodeAttempts = 5
	}
	if c.Booking.StorageTimeoutSeconds == 0 {
		c.Booking.StorageTimeoutSeconds = 5
	}
	setDefault(&c.Auth.Issuer, "airticketing")
	if c.RateLimit.RequestsPerSecond == 0 {
		c.RateLimit.RequestsPerSecond = 20
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 40
	}
	setDefault(&c.Log.Level, "info")
	setDefault(&c.Log.Format, "json")
}

func (c *Config) Validate() error {
	var errs []error
	if c.Database.Name == "" {
		errs = append(errs, errors.New("database.name is required"))
	}
	if c.Database.User == "" {
		errs = append(errs, errors.New("database.user is required"))
	}
	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 16 characters"))
	}
	if c.Booking.MaxRetries < 0 {
		errs = append(errs, errors.New("booking.max_retries must not be negative"))
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate_limit values must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setDefault(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}
