package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Stream StreamConfig `mapstructure:"stream"`
	Feed   FeedConfig   `mapstructure:"feed"`
	NATS   NATSConfig   `mapstructure:"nats"`
}

// AppConfig represents application-specific configuration
type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	HTTPPort int    `mapstructure:"http_port"`
}

// StreamConfig configures the dashboard's websocket connection to the feed.
// MaxRetries and BackoffBase drive the reconnect schedule: retry n waits
// BackoffBase * 2^n before redialing, and after MaxRetries failed retries the
// connector stays disconnected for good.
type StreamConfig struct {
	URL              string        `mapstructure:"url"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	BackoffBase      time.Duration `mapstructure:"backoff_base"`
}

// FeedConfig configures the feed server binary.
type FeedConfig struct {
	HTTPPort     int           `mapstructure:"http_port"`
	EmitInterval time.Duration `mapstructure:"emit_interval"`
	FraudRate    float64       `mapstructure:"fraud_rate"`
}

// NATSConfig configures the optional NATS transaction source for the feed
// server. When disabled the feed uses the built-in simulator.
type NATSConfig struct {
	URL                string        `mapstructure:"url"`
	Subject            string        `mapstructure:"subject"`
	ConsumerGroup      string        `mapstructure:"consumer_group"`
	ConnectTimeout     time.Duration `mapstructure:"connect_timeout"`
	ReconnectAttempts  int           `mapstructure:"reconnect_attempts"`
	ReconnectDelay     time.Duration `mapstructure:"reconnect_delay"`
	MaxPendingMessages int           `mapstructure:"max_pending_messages"`
	Enabled            bool          `mapstructure:"enabled"`
}

// Load loads configuration from environment variables and files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/fraud-stream-dashboard")

	// Environment variables
	viper.AutomaticEnv()
	viper.SetEnvPrefix("")

	// Map environment variables to nested config keys
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Default values
	setDefaults()

	// Read config file if exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.http_port", 8080)

	// Stream defaults
	viper.SetDefault("stream.url", "ws://localhost:8000/ws/fraud_detection/")
	viper.SetDefault("stream.handshake_timeout", "10s")
	viper.SetDefault("stream.max_retries", 5)
	viper.SetDefault("stream.backoff_base", "1s")

	// Feed defaults
	viper.SetDefault("feed.http_port", 8000)
	viper.SetDefault("feed.emit_interval", "2s")
	viper.SetDefault("feed.fraud_rate", 0.1)

	// NATS defaults
	viper.SetDefault("nats.url", "nats://localhost:4222")
	viper.SetDefault("nats.subject", "transactions.events")
	viper.SetDefault("nats.consumer_group", "fraud-feed")
	viper.SetDefault("nats.connect_timeout", "10s")
	viper.SetDefault("nats.reconnect_attempts", 5)
	viper.SetDefault("nats.reconnect_delay", "2s")
	viper.SetDefault("nats.max_pending_messages", 10000)
	viper.SetDefault("nats.enabled", false)

	// Bind env for NATS URL
	viper.BindEnv("nats.url", "NATS_URL")
}
