package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asedra/lonage-ai-platform/internal/backend"
	"github.com/asedra/lonage-ai-platform/internal/config"
	"github.com/asedra/lonage-ai-platform/internal/logging"
	"github.com/asedra/lonage-ai-platform/internal/ratelimit"
)

type memorySink struct {
	mu      sync.Mutex
	records []*logging.AccessRecord
}

func (s *memorySink) Enqueue(rec *logging.AccessRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *memorySink) Shutdown(ctx context.Context) error { return nil }

type testProxy struct {
	server  *httptest.Server
	sink    *memorySink
	handler http.Handler
}

func newTestProxy(t *testing.T, upstream http.HandlerFunc, limiter ratelimit.Limiter) *testProxy {
	t.Helper()
	server := httptest.NewServer(upstream)
	t.Cleanup(server.Close)

	if limiter == nil {
		limiter = ratelimit.NewNoopLimiter()
	}
	sink := &memorySink{}
	deps := &Dependencies{
		Backend:   backend.NewClient(server.URL, 0, nil),
		RateLimit: limiter,
		Logger:    sink,
	}
	cfg := &config.Config{Proxy: config.ProxyConfig{AllowOrigin: "*"}}

	return &testProxy{server: server, sink: sink, handler: NewRouter(cfg, deps)}
}

func (p *testProxy) do(method, path, auth, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	p.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestChatRequiresAuthorization(t *testing.T) {
	called := false
	p := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) { called = true }, nil)

	w := p.do(http.MethodPost, "/api/chat", "", `{"model_type":"openai"}`)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, decode(t, w)["error"])
	assert.False(t, called)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestChatForwardsToBackend(t *testing.T) {
	p := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/chat", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "ollama", payload["model_type"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response":"4"}`))
	}, nil)

	w := p.do(http.MethodPost, "/api/chat", "Bearer tok", `{"model_type":"ollama","model":"llama3","messages":[]}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "4", decode(t, w)["response"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	require.Len(t, p.sink.records, 1)
	assert.Equal(t, "ollama", p.sink.records[0].ModelType)
	assert.Equal(t, http.StatusOK, p.sink.records[0].Status)
}

func TestChatBackendErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"detail", http.StatusBadRequest, `{"detail":"Ollama unreachable"}`, "Ollama unreachable"},
		{"no detail", http.StatusInternalServerError, `oops`, "API error"},
		{"unauthorized", http.StatusUnauthorized, `{"detail":"Could not validate credentials"}`, "Could not validate credentials"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}, nil)

			w := p.do(http.MethodPost, "/api/chat", "Bearer tok", `{"model_type":"openai"}`)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.want, decode(t, w)["error"])
		})
	}
}

func TestChatTransportFailure(t *testing.T) {
	p := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {}, nil)
	p.server.Close()

	w := p.do(http.MethodPost, "/api/chat", "Bearer tok", `{"model_type":"openai"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "server error", decode(t, w)["error"])
}

func TestChatRejectsInvalidJSON(t *testing.T) {
	p := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("backend should not be called")
	}, nil)

	w := p.do(http.MethodPost, "/api/chat", "Bearer tok", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	limiter := ratelimit.NewRateLimiter(client, 2, time.Minute)
	p := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":"ok"}`))
	}, limiter)

	for i := 0; i < 2; i++ {
		w := p.do(http.MethodPost, "/api/chat", "Bearer tok", `{"model_type":"openai"}`)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := p.do(http.MethodPost, "/api/chat", "Bearer tok", `{"model_type":"openai"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// Another token has its own window
	w = p.do(http.MethodPost, "/api/chat", "Bearer other", `{"model_type":"openai"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginRelaysStatusAndBody(t *testing.T) {
	p := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		w.Header().Set("Content-Type", "application/json")
		if creds["password"] != "admin123" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Incorrect email or password"}`))
			return
		}
		w.Write([]byte(`{"access_token":"jwt","user":{"id":1,"name":"Admin","email":"admin@lonage.com"}}`))
	}, nil)

	w := p.do(http.MethodPost, "/api/auth/login", "Bearer ignored", `{"email":"admin@lonage.com","password":"admin123"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jwt", decode(t, w)["access_token"])

	w = p.do(http.MethodPost, "/api/auth/login", "", `{"email":"admin@lonage.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Incorrect email or password", decode(t, w)["detail"])
}

func TestLogout(t *testing.T) {
	p := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("logout must not reach the backend")
	}, nil)

	w := p.do(http.MethodPost, "/api/auth/logout", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])
}

func TestRelayRoutes(t *testing.T) {
	var gotMethod, gotPath, gotQuery, gotAuth string
	p := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotQuery = r.Method, r.URL.Path, r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`[]`))
	}, nil)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/ai-models/"},
		{http.MethodPost, "/api/ai-models/"},
		{http.MethodDelete, "/api/ai-models/4"},
		{http.MethodGet, "/api/users"},
		{http.MethodGet, "/api/users/3"},
		{http.MethodDelete, "/api/users/3"},
	}

	for _, tt := range tests {
		w := p.do(tt.method, tt.path+"?page=2", "Bearer tok", "")

		assert.Equal(t, http.StatusAccepted, w.Code, tt.path)
		assert.Equal(t, "[]", w.Body.String(), tt.path)
		assert.Equal(t, tt.method, gotMethod)
		assert.Equal(t, tt.path, gotPath)
		assert.Equal(t, "page=2", gotQuery)
		assert.Equal(t, "Bearer tok", gotAuth)
	}
}

func TestRelayRewritesPaths(t *testing.T) {
	var gotMethod, gotPath, gotQuery string
	p := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotQuery = r.Method, r.URL.Path, r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 1}`))
	}, nil)

	tests := []struct {
		method  string
		path    string
		backend string
	}{
		{http.MethodPost, "/api/ai-models", "/api/ai-models/"},
		{http.MethodGet, "/api/ai-models", "/api/ai-models/"},
		{http.MethodPost, "/api/assistants", "/assistants/"},
		{http.MethodPost, "/api/assistants/", "/assistants/"},
		{http.MethodGet, "/api/assistants/7", "/assistants/7"},
	}

	for _, tt := range tests {
		w := p.do(tt.method, tt.path+"?x=1", "Bearer tok", `{"name": "n"}`)

		assert.Equal(t, http.StatusOK, w.Code, tt.path)
		assert.Equal(t, `{"id": 1}`, w.Body.String(), tt.path)
		assert.Equal(t, tt.method, gotMethod, tt.path)
		assert.Equal(t, tt.backend, gotPath, tt.path)
		assert.Equal(t, "x=1", gotQuery, tt.path)
	}
}

func TestRelayTransportFailure(t *testing.T) {
	p := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {}, nil)
	p.server.Close()

	w := p.do(http.MethodGet, "/api/users", "Bearer tok", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "server error", decode(t, w)["detail"])
}

func TestOptionsPreflight(t *testing.T) {
	p := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight must not reach the backend")
	}, nil)

	for _, path := range []string{"/api/chat", "/api/auth/login", "/api/ai-models/", "/api/ai-models", "/api/assistants"} {
		w := p.do(http.MethodOptions, path, "", "")
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"), path)
	}
}

func TestHealth(t *testing.T) {
	p := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {}, nil)

	w := p.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestNewDependenciesDefaults(t *testing.T) {
	cfg := &config.Config{Proxy: config.ProxyConfig{BackendURL: "http://localhost:8000"}}

	deps, err := NewDependencies(cfg)
	require.NoError(t, err)
	defer deps.Close(context.Background())

	assert.IsType(t, &ratelimit.NoopLimiter{}, deps.RateLimit)
	assert.IsType(t, &logging.NoopSink{}, deps.Logger)
}

func TestNewDependenciesWithRedisAndAccessLog(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{
		Proxy: config.ProxyConfig{BackendURL: "http://localhost:8000", ChatRateLimit: 5},
		Redis: config.RedisConfig{Address: mr.Addr(), DialTimeout: time.Second},
		RequestLog: config.RequestLoggerConfig{
			Enabled:          true,
			FilePathTemplate: t.TempDir() + "/access-%s.jsonl",
			MaxSize:          1 << 20,
			MaxFiles:         2,
			BufferSize:       10,
			FlushInterval:    time.Second,
		},
	}

	deps, err := NewDependencies(cfg)
	require.NoError(t, err)

	assert.IsType(t, &ratelimit.RateLimiter{}, deps.RateLimit)
	assert.IsType(t, &logging.RequestLogger{}, deps.Logger)
	assert.NoError(t, deps.Close(context.Background()))
}

func TestNewDependenciesRateLimitNeedsRedis(t *testing.T) {
	cfg := &config.Config{Proxy: config.ProxyConfig{BackendURL: "http://localhost:8000", ChatRateLimit: 5}}

	_, err := NewDependencies(cfg)
	assert.Error(t, err)
}
