package logging

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrQueueFull is returned when a record is dropped because the buffer is full
	ErrQueueFull = errors.New("access log queue full")
	// ErrSinkClosed is returned when a record arrives after shutdown
	ErrSinkClosed = errors.New("access log closed")
)

// AccessRecord is one proxied request. Bodies and credentials are never recorded.
type AccessRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Status     int       `json:"status"`
	LatencyMs  int64     `json:"latency_ms"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	ModelType  string    `json:"model_type,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Sink receives access records from the proxy.
type Sink interface {
	Enqueue(rec *AccessRecord) error
	Shutdown(ctx context.Context) error
}

// NoopSink discards records. Used when the access log is disabled.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (s *NoopSink) Enqueue(rec *AccessRecord) error {
	return nil
}

func (s *NoopSink) Shutdown(ctx context.Context) error {
	return nil
}
