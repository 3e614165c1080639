package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Queue     QueueConfig
	WebSocket WebSocketConfig
	TurnPass  TurnPassConfig
	Kafka     KafkaConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	OTel      OTelConfig
	Log       LogConfig
}

// AppConfig holds application-level settings
type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Debug       bool
	Version     string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Addr returns the listen address
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// QueueConfig holds queue coordination settings
type QueueConfig struct {
	// PerHeadMinutes is the configured minutes-per-customer constant
	// used to derive wait estimates from queue length.
	PerHeadMinutes int
	// WalkInServiceName labels the synthetic service line attached to
	// manually added walk-in entries.
	WalkInServiceName string
	// WalkInDurationMinutes is the duration of that synthetic line.
	WalkInDurationMinutes int
}

// WebSocketConfig holds websocket session settings
type WebSocketConfig struct {
	ReadBufferSize   int
	WriteBufferSize  int
	SendBufferSize   int
	MaxMessageSize   int64
	WriteWait        time.Duration
	PongWait         time.Duration
	PingInterval     time.Duration
	HandshakeTimeout time.Duration
}

// TurnPassConfig holds turn-pass token settings
type TurnPassConfig struct {
	Secret string
	TTL    time.Duration
}

// KafkaConfig holds Kafka/Redpanda settings for the queue event feed
type KafkaConfig struct {
	Enabled  bool
	Brokers  []string
	Topic    string
	ClientID string
}

// RedisConfig holds Redis settings for the distributed rate limiter
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns the Redis address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// RateLimitConfig holds handshake rate-limit settings
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond int
	BurstSize         int
	UseRedis          bool
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled       bool
	ServiceName   string
	CollectorAddr string
	SampleRatio   float64
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")

	// .env is optional; environment variables alone are fine.
	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read .env: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	cfg := &Config{}
	bindConfig(v, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("APP_NAME", "queue-broker")
	v.SetDefault("APP_ENVIRONMENT", "development")
	v.SetDefault("APP_DEBUG", true)
	v.SetDefault("APP_VERSION", "1.0.0")

	// Server defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_READ_TIMEOUT", "30s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "30s")
	v.SetDefault("SERVER_IDLE_TIMEOUT", "120s")

	// Queue defaults
	v.SetDefault("QUEUE_PER_HEAD_MINUTES", 5)
	v.SetDefault("QUEUE_WALKIN_SERVICE_NAME", "Walk-in")
	v.SetDefault("QUEUE_WALKIN_DURATION_MINUTES", 15)

	// WebSocket defaults
	v.SetDefault("WS_READ_BUFFER_SIZE", 1024)
	v.SetDefault("WS_WRITE_BUFFER_SIZE", 1024)
	v.SetDefault("WS_SEND_BUFFER_SIZE", 32)
	v.SetDefault("WS_MAX_MESSAGE_SIZE", 65536)
	v.SetDefault("WS_WRITE_WAIT", "10s")
	v.SetDefault("WS_PONG_WAIT", "60s")
	v.SetDefault("WS_PING_INTERVAL", "54s")
	v.SetDefault("WS_HANDSHAKE_TIMEOUT", "10s")

	// Turn pass defaults
	v.SetDefault("TURN_PASS_SECRET", "change-me-in-production")
	v.SetDefault("TURN_PASS_TTL", "10m")

	// Kafka defaults
	v.SetDefault("KAFKA_ENABLED", false)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_TOPIC", "salon-queue-events")
	v.SetDefault("KAFKA_CLIENT_ID", "queue-broker")

	// Redis defaults
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	// Rate limit defaults
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_REQUESTS_PER_SECOND", 50)
	v.SetDefault("RATE_LIMIT_BURST_SIZE", 100)
	v.SetDefault("RATE_LIMIT_USE_REDIS", false)

	// OTel defaults
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "queue-broker")
	v.SetDefault("OTEL_COLLECTOR_ADDR", "localhost:4317")
	v.SetDefault("OTEL_SAMPLE_RATIO", 1.0)

	// Log defaults
	v.SetDefault("LOG_LEVEL", "info")
}

func bindConfig(v *viper.Viper, cfg *Config) {
	// App
	cfg.App.Name = v.GetString("APP_NAME")
	cfg.App.Environment = v.GetString("APP_ENVIRONMENT")
	cfg.App.Debug = v.GetBool("APP_DEBUG")
	cfg.App.Version = v.GetString("APP_VERSION")

	// Server
	cfg.Server.Host = v.GetString("SERVER_HOST")
	cfg.Server.Port = v.GetInt("SERVER_PORT")
	cfg.Server.ReadTimeout = v.GetDuration("SERVER_READ_TIMEOUT")
	cfg.Server.WriteTimeout = v.GetDuration("SERVER_WRITE_TIMEOUT")
	cfg.Server.IdleTimeout = v.GetDuration("SERVER_IDLE_TIMEOUT")

	// Queue
	cfg.Queue.PerHeadMinutes = v.GetInt("QUEUE_PER_HEAD_MINUTES")
	cfg.Queue.WalkInServiceName = v.GetString("QUEUE_WALKIN_SERVICE_NAME")
	cfg.Queue.WalkInDurationMinutes = v.GetInt("QUEUE_WALKIN_DURATION_MINUTES")

	// WebSocket
	cfg.WebSocket.ReadBufferSize = v.GetInt("WS_READ_BUFFER_SIZE")
	cfg.WebSocket.WriteBufferSize = v.GetInt("WS_WRITE_BUFFER_SIZE")
	cfg.WebSocket.SendBufferSize = v.GetInt("WS_SEND_BUFFER_SIZE")
	cfg.WebSocket.MaxMessageSize = v.GetInt64("WS_MAX_MESSAGE_SIZE")
	cfg.WebSocket.WriteWait = v.GetDuration("WS_WRITE_WAIT")
	cfg.WebSocket.PongWait = v.GetDuration("WS_PONG_WAIT")
	cfg.WebSocket.PingInterval = v.GetDuration("WS_PING_INTERVAL")
	cfg.WebSocket.HandshakeTimeout = v.GetDuration("WS_HANDSHAKE_TIMEOUT")

	// Turn pass
	cfg.TurnPass.Secret = v.GetString("TURN_PASS_SECRET")
	cfg.TurnPass.TTL = v.GetDuration("TURN_PASS_TTL")

	// Kafka
	cfg.Kafka.Enabled = v.GetBool("KAFKA_ENABLED")
	cfg.Kafka.Brokers = strings.Split(v.GetString("KAFKA_BROKERS"), ",")
	cfg.Kafka.Topic = v.GetString("KAFKA_TOPIC")
	cfg.Kafka.ClientID = v.GetString("KAFKA_CLIENT_ID")

	// Redis
	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetInt("REDIS_PORT")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	// Rate limit
	cfg.RateLimit.Enabled = v.GetBool("RATE_LIMIT_ENABLED")
	cfg.RateLimit.RequestsPerSecond = v.GetInt("RATE_LIMIT_REQUESTS_PER_SECOND")
	cfg.RateLimit.BurstSize = v.GetInt("RATE_LIMIT_BURST_SIZE")
	cfg.RateLimit.UseRedis = v.GetBool("RATE_LIMIT_USE_REDIS")

	// OTel
	cfg.OTel.Enabled = v.GetBool("OTEL_ENABLED")
	cfg.OTel.ServiceName = v.GetString("OTEL_SERVICE_NAME")
	cfg.OTel.CollectorAddr = v.GetString("OTEL_COLLECTOR_ADDR")
	cfg.OTel.SampleRatio = v.GetFloat64("OTEL_SAMPLE_RATIO")

	// Log
	cfg.Log.Level = v.GetString("LOG_LEVEL")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Queue.PerHeadMinutes <= 0 {
		return fmt.Errorf("invalid per-head minutes: %d", c.Queue.PerHeadMinutes)
	}

	if c.TurnPass.Secret == "" {
		return fmt.Errorf("turn pass secret is required")
	}

	if c.App.Environment == "production" && c.TurnPass.Secret == "change-me-in-production" {
		return fmt.Errorf("turn pass secret must be changed in production")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
