package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	defaultBackendURL    = "http://localhost:8000"
	defaultHostedModel   = "gpt-4"
	defaultFallbackReply = "Sorry, I could not produce a response."
)

// Config holds configuration for the console and the forwarding proxy.
type Config struct {
	BackendURL string
	Auth       AuthConfig
	Chat       ChatConfig
	LogLevel   string
	Proxy      ProxyConfig
	Redis      RedisConfig
	RequestLog RequestLoggerConfig
}

// AuthConfig describes where the bearer token comes from
type AuthConfig struct {
	Token           string // explicit token, wins over the token file
	TokenFile       string
	TokenPassphrase string // when set, the token file is encrypted at rest
}

// ChatConfig holds dispatcher settings
type ChatConfig struct {
	HostedModel    string        // model name sent for hosted-API credentials
	FallbackReply  string        // reply used when the backend answers without text
	RequestTimeout time.Duration // 0 means no client-side timeout
}

// ProxyConfig holds settings for the forwarding proxy
type ProxyConfig struct {
	HTTPPort      string
	BackendURL    string
	ChatRateLimit int    // requests per token per minute, 0 disables limiting
	AllowOrigin   string // Access-Control-Allow-Origin value
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type RequestLoggerConfig struct {
	Enabled          bool
	FilePathTemplate string
	MaxSize          int64
	MaxFiles         int
	BufferSize       int
	FlushInterval    time.Duration
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvInt64(key string, defaultValue int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	intVal, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultValue
	}
	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}
	return b
}

// DefaultTokenFile returns ~/.lonage/token, or a temp-dir path when the home
// directory cannot be resolved.
func DefaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), "lonage", "token")
	}
	return filepath.Join(home, ".lonage", "token")
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	backendURL := getEnvString("CONSOLE_BACKEND_URL", defaultBackendURL)
	if err := validateBaseURL(backendURL); err != nil {
		return nil, fmt.Errorf("CONSOLE_BACKEND_URL: %w", err)
	}

	proxyBackend := getEnvString("PROXY_BACKEND_URL", backendURL)
	if err := validateBaseURL(proxyBackend); err != nil {
		return nil, fmt.Errorf("PROXY_BACKEND_URL: %w", err)
	}

	timeout := getEnvDuration("CONSOLE_REQUEST_TIMEOUT", 0)
	if timeout < 0 {
		return nil, fmt.Errorf("CONSOLE_REQUEST_TIMEOUT must not be negative")
	}

	cfg := &Config{
		BackendURL: backendURL,
		Auth: AuthConfig{
			Token:           os.Getenv("CONSOLE_TOKEN"),
			TokenFile:       getEnvString("CONSOLE_TOKEN_FILE", DefaultTokenFile()),
			TokenPassphrase: os.Getenv("CONSOLE_TOKEN_PASSPHRASE"),
		},
		Chat: ChatConfig{
			HostedModel:    getEnvString("CONSOLE_HOSTED_MODEL", defaultHostedModel),
			FallbackReply:  getEnvString("CONSOLE_FALLBACK_REPLY", defaultFallbackReply),
			RequestTimeout: timeout,
		},
		LogLevel: getEnvString("CONSOLE_LOG_LEVEL", "warning"),
		Proxy: ProxyConfig{
			HTTPPort:      getEnvString("PROXY_HTTP_PORT", "3000"),
			BackendURL:    proxyBackend,
			ChatRateLimit: getEnvInt("PROXY_CHAT_RATE_LIMIT", 0),
			AllowOrigin:   getEnvString("PROXY_CORS_ORIGIN", "*"),
		},
		Redis: RedisConfig{
			Address:      getEnvString("REDIS_ADDRESS", ""),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		RequestLog: RequestLoggerConfig{
			Enabled:          getEnvBool("REQUEST_LOGGER_ENABLED", false),
			FilePathTemplate: getEnvString("REQUEST_LOGGER_FILE_PATH_TEMPLATE", "/var/log/lonage-proxy/requests-%s.jsonl"),
			MaxSize:          getEnvInt64("REQUEST_LOGGER_MAX_SIZE", 10_485_760),              // default 10 MB
			MaxFiles:         getEnvInt("REQUEST_LOGGER_MAX_FILES", 5),                        // default 5
			BufferSize:       getEnvInt("REQUEST_LOGGER_BUFFER_SIZE", 100),                    // default 100
			FlushInterval:    getEnvDuration("REQUEST_LOGGER_FLUSH_INTERVAL", 60*time.Second), // default 60 seconds
		},
	}

	return cfg, nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL %q: missing host", raw)
	}
	return nil
}
