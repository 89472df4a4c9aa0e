package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/asedra/lonage-ai-platform/internal/logging"
)

const accessInfoKey ContextKey = "accessInfo"

type accessInfo struct {
	modelType string
	err       string
}

// Annotate attaches the chat model type and an error summary to the
// access record of the current request. It is a no-op outside AccessLog.
func Annotate(ctx context.Context, modelType, errMsg string) {
	info, ok := ctx.Value(accessInfoKey).(*accessInfo)
	if !ok {
		return
	}
	if modelType != "" {
		info.modelType = modelType
	}
	if errMsg != "" {
		info.err = errMsg
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// AccessLog records method, path, status and latency of each request to sink.
func AccessLog(sink logging.Sink) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			info := &accessInfo{}
			rec := &statusRecorder{ResponseWriter: w}

			ctx := context.WithValue(r.Context(), accessInfoKey, info)
			next.ServeHTTP(rec, r.WithContext(ctx))

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}

			err := sink.Enqueue(&logging.AccessRecord{
				Timestamp:  start.UTC(),
				RequestID:  GetRequestID(r.Context()),
				Method:     r.Method,
				Path:       r.URL.Path,
				Status:     status,
				LatencyMs:  time.Since(start).Milliseconds(),
				RemoteAddr: r.RemoteAddr,
				ModelType:  info.modelType,
				Error:      info.err,
			})
			if err != nil && !errors.Is(err, logging.ErrSinkClosed) {
				logging.Warningf("access record dropped: %v", err)
			}
		})
	}
}
