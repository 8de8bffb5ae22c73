package config

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server     ServerConfig
	Logging    LoggingConfig
	Completion CompletionConfig
	Forecast   ForecastConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	CORS       CORSConfig
	Geo        GeoConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// CompletionConfig configures the upstream LLM completion service.
type CompletionConfig struct {
	Provider       string
	APIKey         string
	BaseURL        string
	Model          string
	Temperature    float32
	MaxTokens      int
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	RateLimit      float64
	RateBurst      int
}

// ForecastConfig tunes how pipeline outcomes are reported to callers.
type ForecastConfig struct {
	// UnparsableStatus is the HTTP status used when the model answered but no
	// JSON payload could be extracted.
	UnparsableStatus int
	RequestTimeout   time.Duration
}

// DatabaseConfig holds optional Postgres settings for inference logging.
type DatabaseConfig struct {
	URL                    string
	InstanceConnectionName string
	User                   string
	Password               string
	Name                   string
}

// Enabled reports whether any database connection settings were provided.
func (d DatabaseConfig) Enabled() bool {
	return d.URL != "" || d.InstanceConnectionName != ""
}

// AuthConfig holds admin authentication settings.
type AuthConfig struct {
	JWTSecret     string
	AdminPassword string
	TokenDuration time.Duration
}

// CORSConfig lists the origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string
}

// GeoConfig configures the geocoding and weather collaborators.
type GeoConfig struct {
	GeocodeURL   string
	WeatherURL   string
	UserAgent    string
	Timeout      time.Duration
	ForecastDays int
}

// Supported completion providers.
const (
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 180 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultProvider          = ProviderGroq
	defaultGroqBaseURL       = "https://api.groq.com/openai/v1"
	defaultGroqModel         = "llama3-70b-8192"
	defaultOpenAIModel       = "gpt-4o-mini"
	defaultAnthropicModel    = "claude-sonnet-4-20250514"
	defaultMaxTokens         = 2048
	defaultCompletionTimeout = 45 * time.Second
	defaultMaxAttempts       = 3
	defaultInitialBackoff    = 500 * time.Millisecond
	defaultMaxBackoff        = 8 * time.Second
	defaultRateLimit         = 2.0
	defaultRateBurst         = 4

	defaultUnparsableStatus = http.StatusUnprocessableEntity
	defaultRequestTimeout   = 150 * time.Second

	defaultJWTSecret     = "change-this-secret"
	defaultTokenDuration = 24 * time.Hour

	defaultGeocodeURL   = "https://nominatim.openstreetmap.org/search"
	defaultWeatherURL   = "https://api.open-meteo.com/v1/forecast"
	defaultUserAgent    = "gridcast-demand-forecaster"
	defaultGeoTimeout   = 5 * time.Second
	defaultForecastDays = 3
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided or invalid.
func Load() (Config, error) {
	// Cloud Run sets PORT, but allow SERVER_PORT override for local dev
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Completion: CompletionConfig{
			Provider:       defaultProvider,
			MaxTokens:      defaultMaxTokens,
			Timeout:        defaultCompletionTimeout,
			MaxAttempts:    defaultMaxAttempts,
			InitialBackoff: defaultInitialBackoff,
			MaxBackoff:     defaultMaxBackoff,
			RateLimit:      defaultRateLimit,
			RateBurst:      defaultRateBurst,
		},
		Forecast: ForecastConfig{
			UnparsableStatus: defaultUnparsableStatus,
			RequestTimeout:   defaultRequestTimeout,
		},
		Database: DatabaseConfig{
			URL:                    os.Getenv("DATABASE_URL"),
			InstanceConnectionName: os.Getenv("INSTANCE_CONNECTION_NAME"),
			User:                   os.Getenv("DB_USER"),
			Password:               os.Getenv("DB_PASSWORD"),
			Name:                   os.Getenv("DB_NAME"),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("ADMIN_JWT_SECRET", defaultJWTSecret),
			AdminPassword: os.Getenv("ADMIN_PASSWORD"),
			TokenDuration: defaultTokenDuration,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Geo: GeoConfig{
			GeocodeURL:   getEnv("GEOCODE_URL", defaultGeocodeURL),
			WeatherURL:   getEnv("WEATHER_URL", defaultWeatherURL),
			UserAgent:    getEnv("GEO_USER_AGENT", defaultUserAgent),
			Timeout:      defaultGeoTimeout,
			ForecastDays: defaultForecastDays,
		},
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	if err := loadCompletion(&cfg.Completion); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("FORECAST_UNPARSABLE_STATUS"); v != "" {
		status, err := strconv.Atoi(v)
		if err != nil || status < 200 || status > 599 {
			return Config{}, fmt.Errorf("invalid FORECAST_UNPARSABLE_STATUS: must be an HTTP status code")
		}
		cfg.Forecast.UnparsableStatus = status
	}

	if v := os.Getenv("FORECAST_REQUEST_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid FORECAST_REQUEST_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Forecast.RequestTimeout = d
	}

	if v := os.Getenv("ADMIN_TOKEN_HOURS"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil || hours <= 0 {
			return Config{}, fmt.Errorf("invalid ADMIN_TOKEN_HOURS: must be a positive integer")
		}
		cfg.Auth.TokenDuration = time.Duration(hours) * time.Hour
	}

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORS.AllowedOrigins = splitList(v)
	}

	if v := os.Getenv("GEO_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid GEO_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Geo.Timeout = d
	}

	if v := os.Getenv("WEATHER_FORECAST_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 1 || days > 16 {
			return Config{}, fmt.Errorf("invalid WEATHER_FORECAST_DAYS: must be between 1 and 16")
		}
		cfg.Geo.ForecastDays = days
	}

	return cfg, nil
}

func loadCompletion(c *CompletionConfig) error {
	if v := os.Getenv("COMPLETION_PROVIDER"); v != "" {
		switch strings.ToLower(v) {
		case ProviderGroq, ProviderOpenAI, ProviderAnthropic:
			c.Provider = strings.ToLower(v)
		default:
			return fmt.Errorf("invalid COMPLETION_PROVIDER: must be one of groq, openai, anthropic")
		}
	}

	c.APIKey = os.Getenv("COMPLETION_API_KEY")
	if c.APIKey == "" {
		switch c.Provider {
		case ProviderGroq:
			c.APIKey = os.Getenv("GROQ_API_KEY")
		case ProviderOpenAI:
			c.APIKey = os.Getenv("OPENAI_API_KEY")
		case ProviderAnthropic:
			c.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}

	c.BaseURL = os.Getenv("COMPLETION_BASE_URL")
	if c.BaseURL == "" && c.Provider == ProviderGroq {
		c.BaseURL = defaultGroqBaseURL
	}

	c.Model = os.Getenv("COMPLETION_MODEL")
	if c.Model == "" {
		switch c.Provider {
		case ProviderGroq:
			c.Model = defaultGroqModel
		case ProviderOpenAI:
			c.Model = defaultOpenAIModel
		case ProviderAnthropic:
			c.Model = defaultAnthropicModel
		}
	}

	if v := os.Getenv("COMPLETION_TEMPERATURE"); v != "" {
		temp, err := strconv.ParseFloat(v, 32)
		if err != nil || temp < 0 || temp > 2 {
			return fmt.Errorf("invalid COMPLETION_TEMPERATURE: must be between 0.0 and 2.0")
		}
		c.Temperature = float32(temp)
	}

	if v := os.Getenv("COMPLETION_MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid COMPLETION_MAX_TOKENS: must be a positive integer")
		}
		c.MaxTokens = n
	}

	if v := os.Getenv("COMPLETION_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil || d == 0 {
			return fmt.Errorf("invalid COMPLETION_TIMEOUT_SECONDS: must be a positive integer")
		}
		c.Timeout = d
	}

	if v := os.Getenv("COMPLETION_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 10 {
			return fmt.Errorf("invalid COMPLETION_MAX_ATTEMPTS: must be between 1 and 10")
		}
		c.MaxAttempts = n
	}

	if v := os.Getenv("COMPLETION_INITIAL_BACKOFF_MS"); v != "" {
		d, err := parseMillis(v)
		if err != nil {
			return fmt.Errorf("invalid COMPLETION_INITIAL_BACKOFF_MS: %w", err)
		}
		c.InitialBackoff = d
	}

	if v := os.Getenv("COMPLETION_MAX_BACKOFF_MS"); v != "" {
		d, err := parseMillis(v)
		if err != nil {
			return fmt.Errorf("invalid COMPLETION_MAX_BACKOFF_MS: %w", err)
		}
		c.MaxBackoff = d
	}

	if v := os.Getenv("COMPLETION_RATE_LIMIT_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps < 0 {
			return fmt.Errorf("invalid COMPLETION_RATE_LIMIT_RPS: must be a non-negative number")
		}
		c.RateLimit = rps
	}

	if v := os.Getenv("COMPLETION_RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid COMPLETION_RATE_BURST: must be a positive integer")
		}
		c.RateBurst = n
	}

	return nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func parseMillis(raw string) (time.Duration, error) {
	ms, err := strconv.Atoi(raw)
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
