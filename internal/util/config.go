package util

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

const (
	TransportWebSocket = "websocket"
	TransportNATS      = "nats"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	AllowedOrigins    []string `mapstructure:"ALLOWED_ORIGINS"`
	HTTPServerAddress string   `mapstructure:"HTTP_SERVER_ADDRESS"`
	TokenSecretKey    string   `mapstructure:"TOKEN_SECRET_KEY"`
	APIBaseURL        string   `mapstructure:"API_BASE_URL"`

	RealtimeTransport  string `mapstructure:"REALTIME_TRANSPORT"`
	AuctionHubURL      string `mapstructure:"AUCTION_HUB_URL"`
	ChatHubURL         string `mapstructure:"CHAT_HUB_URL"`
	NotificationHubURL string `mapstructure:"NOTIFICATION_HUB_URL"`
	NATSURL            string `mapstructure:"NATS_URL"`
	NATSSubjectPrefix  string `mapstructure:"NATS_SUBJECT_PREFIX"`

	DefaultAdminID     string        `mapstructure:"DEFAULT_ADMIN_ID"`
	DisputeGraceWindow time.Duration `mapstructure:"DISPUTE_GRACE_WINDOW"`

	RequestTimeout       time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	RequestRetryCount    int           `mapstructure:"REQUEST_RETRY_COUNT"`
	StatusTickInterval   time.Duration `mapstructure:"STATUS_TICK_INTERVAL"`
	PollInterval         time.Duration `mapstructure:"POLL_INTERVAL"`
	ReconnectMaxAttempts int           `mapstructure:"RECONNECT_MAX_ATTEMPTS"`
	ReconnectBaseDelay   time.Duration `mapstructure:"RECONNECT_BASE_DELAY"`
	ReconnectMaxDelay    time.Duration `mapstructure:"RECONNECT_MAX_DELAY"`
	DedupCacheSize       int           `mapstructure:"DEDUP_CACHE_SIZE"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	setDefaults()

	// Prefer environment variables over config file
	viper.AutomaticEnv()

	// Load config file
	viper.SetConfigFile(path)
	if err = viper.ReadInConfig(); err != nil {
		return
	}

	// Unmarshal config into struct
	err = viper.UnmarshalExact(&config)
	if err != nil {
		return
	}

	// Validate required configuration
	err = validateConfig(config)
	return
}

func setDefaults() {
	viper.SetDefault("ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	viper.SetDefault("HTTP_SERVER_ADDRESS", "127.0.0.1:8090")
	viper.SetDefault("REALTIME_TRANSPORT", TransportWebSocket)
	viper.SetDefault("NATS_SUBJECT_PREFIX", "gundam")
	viper.SetDefault("DISPUTE_GRACE_WINDOW", "60s")
	viper.SetDefault("REQUEST_TIMEOUT", "10s")
	viper.SetDefault("REQUEST_RETRY_COUNT", 2)
	viper.SetDefault("STATUS_TICK_INTERVAL", "1s")
	viper.SetDefault("POLL_INTERVAL", "15s")
	viper.SetDefault("RECONNECT_MAX_ATTEMPTS", 5)
	viper.SetDefault("RECONNECT_BASE_DELAY", "1s")
	viper.SetDefault("RECONNECT_MAX_DELAY", "30s")
	viper.SetDefault("DEDUP_CACHE_SIZE", 4096)
}

func validateConfig(config Config) error {
	if config.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	if _, err := url.ParseRequestURI(config.APIBaseURL); err != nil {
		return fmt.Errorf("API_BASE_URL is not a valid URL: %w", err)
	}
	if config.TokenSecretKey == "" {
		return fmt.Errorf("TOKEN_SECRET_KEY is required")
	}

	switch config.RealtimeTransport {
	case TransportWebSocket:
		if config.AuctionHubURL == "" || config.ChatHubURL == "" || config.NotificationHubURL == "" {
			return fmt.Errorf("AUCTION_HUB_URL, CHAT_HUB_URL and NOTIFICATION_HUB_URL are required for the websocket transport")
		}
	case TransportNATS:
		if config.NATSURL == "" {
			return fmt.Errorf("NATS_URL is required for the nats transport")
		}
	default:
		return fmt.Errorf("REALTIME_TRANSPORT must be %q or %q, provided: %q",
			TransportWebSocket, TransportNATS, config.RealtimeTransport)
	}

	if config.DefaultAdminID == "" {
		return fmt.Errorf("DEFAULT_ADMIN_ID is required")
	}
	if config.DisputeGraceWindow < 0 {
		return fmt.Errorf("DISPUTE_GRACE_WINDOW must not be negative")
	}
	if config.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if config.StatusTickInterval <= 0 {
		return fmt.Errorf("STATUS_TICK_INTERVAL must be positive")
	}
	if config.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if config.DedupCacheSize <= 0 {
		return fmt.Errorf("DEDUP_CACHE_SIZE must be positive")
	}

	return nil
}
