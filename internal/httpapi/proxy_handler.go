package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/asedra/lonage-ai-platform/internal/backend"
	"github.com/asedra/lonage-ai-platform/internal/logging"
	"github.com/asedra/lonage-ai-platform/internal/middleware"
	"github.com/asedra/lonage-ai-platform/internal/ratelimit"
	"github.com/asedra/lonage-ai-platform/internal/utils"
)

const (
	backendChatPath  = "/api/chat/chat"
	backendLoginPath = "/api/auth/login"

	maxBodyBytes = 1 << 20
)

// Forwarder relays a request to the backend. *backend.Client implements it.
type Forwarder interface {
	Forward(ctx context.Context, method, path string, header http.Header, body io.Reader) (*http.Response, error)
}

var _ Forwarder = (*backend.Client)(nil)

// handleChat forwards a chat payload to the backend.
//
// Flow:
//  1. Rate limit per bearer token
//  2. Decode JSON body (must be an object)
//  3. Forward with the caller's Authorization header
//  4. Map backend errors to {"error": detail}
func (d *Dependencies) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token, _ := middleware.GetBearerToken(ctx)

	decision, err := d.RateLimit.Allow(ctx, ratelimit.KeyForToken("chat", token))
	if err != nil {
		// Limiter outages fail open
		logging.Warningf("rate limiter unavailable: %v", err)
	} else if !decision.Allowed {
		retryAfter := int(time.Until(decision.ResetAt).Seconds()) + 1
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		w.Header().Set("X-RateLimit-Remaining", "0")
		utils.RespondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	} else if decision.Remaining >= 0 {
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		utils.RespondWithError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if modelType, ok := payload["model_type"].(string); ok {
		middleware.Annotate(ctx, modelType, "")
	}

	resp, err := d.Backend.Forward(ctx, http.MethodPost, backendChatPath, r.Header, bytes.NewReader(body))
	if err != nil {
		logging.Errorf("chat request %s failed: %v", middleware.GetRequestID(ctx), err)
		middleware.Annotate(ctx, "", "transport error")
		utils.RespondWithError(w, http.StatusInternalServerError, "server error")
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		middleware.Annotate(ctx, "", "read error")
		utils.RespondWithError(w, http.StatusInternalServerError, "server error")
		return
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := backend.ErrorDetail(respBody)
		logging.Warningf("chat request %s: backend status %d: %s", middleware.GetRequestID(ctx), resp.StatusCode, detail)
		if detail == "" {
			detail = "API error"
		}
		middleware.Annotate(ctx, "", detail)
		utils.RespondWithError(w, resp.StatusCode, detail)
		return
	}

	if !json.Valid(respBody) {
		middleware.Annotate(ctx, "", "invalid backend response")
		utils.RespondWithError(w, http.StatusInternalServerError, "server error")
		return
	}

	utils.RespondWithRaw(w, resp.StatusCode, "application/json", respBody)
}

// handleLogin relays credentials to the backend without any Authorization header.
func (d *Dependencies) handleLogin(w http.ResponseWriter, r *http.Request) {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	d.relay(w, r, backendLoginPath, header)
}

// handleLogout is local: tokens are stateless and discarded by the client.
func (d *Dependencies) handleLogout(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleRelay forwards the request path and query unchanged.
func (d *Dependencies) handleRelay(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}
	d.relay(w, r, path, r.Header)
}

// relayAs forwards to the backend path chosen by target, keeping the query.
func (d *Dependencies) relayAs(target func(r *http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := target(r)
		if r.URL.RawQuery != "" {
			path += "?" + r.URL.RawQuery
		}
		d.relay(w, r, path, r.Header)
	}
}

func collection(path string) func(r *http.Request) string {
	return func(*http.Request) string { return path }
}

func (d *Dependencies) relay(w http.ResponseWriter, r *http.Request, path string, header http.Header) {
	ctx := r.Context()

	var body io.Reader
	if r.Body != nil && r.Method != http.MethodGet && r.Method != http.MethodHead {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			utils.RespondWithError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		body = bytes.NewReader(data)
	}

	resp, err := d.Backend.Forward(ctx, r.Method, path, header, body)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logging.Errorf("relay %s %s failed: %v", r.Method, path, err)
		}
		middleware.Annotate(ctx, "", "transport error")
		utils.RespondWithJSON(w, http.StatusInternalServerError, map[string]string{"detail": "server error"})
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		utils.RespondWithJSON(w, http.StatusInternalServerError, map[string]string{"detail": "server error"})
		return
	}

	utils.RespondWithRaw(w, resp.StatusCode, resp.Header.Get("Content-Type"), respBody)
}
