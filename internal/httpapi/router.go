package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/asedra/lonage-ai-platform/internal/backend"
	"github.com/asedra/lonage-ai-platform/internal/config"
	"github.com/asedra/lonage-ai-platform/internal/logging"
	"github.com/asedra/lonage-ai-platform/internal/middleware"
	"github.com/asedra/lonage-ai-platform/internal/ratelimit"
	"github.com/asedra/lonage-ai-platform/internal/storage"
)

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	Backend   Forwarder
	RateLimit ratelimit.Limiter
	Logger    logging.Sink

	redis *redis.Client
}

// NewDependencies wires the backend client, the chat rate limiter and the
// access log from configuration.
func NewDependencies(cfg *config.Config) (*Dependencies, error) {
	deps := &Dependencies{
		Backend:   backend.NewClient(cfg.Proxy.BackendURL, 0, nil),
		RateLimit: ratelimit.NewNoopLimiter(),
		Logger:    logging.NewNoopSink(),
	}

	if cfg.Proxy.ChatRateLimit > 0 {
		if cfg.Redis.Address == "" {
			return nil, errors.New("PROXY_CHAT_RATE_LIMIT requires REDIS_ADDRESS")
		}
		client, err := storage.NewRedisClient(storage.RedisConfig{
			Address:      cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		deps.redis = client
		deps.RateLimit = ratelimit.NewRateLimiter(client, cfg.Proxy.ChatRateLimit, time.Minute)
	}

	if cfg.RequestLog.Enabled {
		requestLogger, err := logging.NewRequestLogger(
			cfg.RequestLog.FilePathTemplate,
			cfg.RequestLog.MaxSize,
			cfg.RequestLog.MaxFiles,
			cfg.RequestLog.BufferSize,
			cfg.RequestLog.FlushInterval,
		)
		if err != nil {
			deps.Close(context.Background())
			return nil, fmt.Errorf("failed to initialize request logger: %w", err)
		}
		deps.Logger = requestLogger
	}

	return deps, nil
}

// Close flushes the access log and releases connections.
func (d *Dependencies) Close(ctx context.Context) error {
	var errs []error
	if d.Logger != nil {
		if err := d.Logger.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("access log shutdown: %w", err))
		}
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	return errors.Join(errs...)
}

// NewRouter creates the proxy handler with all routes and middleware.
func NewRouter(cfg *config.Config, deps *Dependencies) http.Handler {
	mux := http.NewServeMux()
	registerRoutes(mux, deps)

	var handler http.Handler = mux
	handler = middleware.CORS(cfg.Proxy.AllowOrigin)(handler)
	handler = middleware.AccessLog(deps.Logger)(handler)
	handler = middleware.RequestID(handler)
	return handler
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies) {
	// Health check endpoint - public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Session endpoints - public
	mux.HandleFunc("POST /api/auth/login", deps.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", deps.handleLogout)

	// Chat - bearer token required, rate limited per token
	bearer := middleware.RequireBearer(nil)
	mux.Handle("POST /api/chat", bearer(http.HandlerFunc(deps.handleChat)))

	// Everything else is relayed with the caller's Authorization header
	mux.HandleFunc("/api/ai-models", deps.relayAs(collection("/api/ai-models/")))
	mux.HandleFunc("/api/ai-models/", deps.handleRelay)
	mux.HandleFunc("/api/users", deps.handleRelay)
	mux.HandleFunc("/api/users/{id}", deps.handleRelay)

	// The backend serves assistants without the /api prefix
	mux.HandleFunc("/api/assistants", deps.relayAs(collection("/assistants/")))
	mux.HandleFunc("/api/assistants/{$}", deps.relayAs(collection("/assistants/")))
	mux.HandleFunc("/api/assistants/{user_id}", deps.relayAs(func(r *http.Request) string {
		return "/assistants/" + url.PathEscape(r.PathValue("user_id"))
	}))
}
