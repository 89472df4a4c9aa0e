package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestLogger(t *testing.T, maxSize int64, maxFiles, bufferSize int, flush time.Duration) (*RequestLogger, string) {
	t.Helper()
	tempDir := t.TempDir()
	fileTemplate := filepath.Join(tempDir, "test-%s.jsonl")

	logger, err := NewRequestLogger(fileTemplate, maxSize, maxFiles, bufferSize, flush)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	t.Cleanup(func() { logger.Shutdown(context.Background()) })
	return logger, tempDir
}

func readLines(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "test-*.jsonl"))
	if err != nil {
		t.Fatalf("Failed to glob files: %v", err)
	}

	var lines []string
	for _, file := range matches {
		content, err := os.ReadFile(file)
		if err != nil {
			t.Fatalf("Failed to read log file: %v", err)
		}
		for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
			if line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines
}

func record(i int) *AccessRecord {
	return &AccessRecord{
		RequestID: fmt.Sprintf("req-%d", i),
		Method:    "POST",
		Path:      "/api/chat",
		Status:    200,
		LatencyMs: 12,
		ModelType: "ollama",
	}
}

func TestNewRequestLogger(t *testing.T) {
	logger, _ := newTestLogger(t, 1024, 5, 10, 100*time.Millisecond)

	if logger.maxSize != 1024 {
		t.Errorf("Expected maxSize 1024, got %d", logger.maxSize)
	}
	if logger.maxFiles != 5 {
		t.Errorf("Expected maxFiles 5, got %d", logger.maxFiles)
	}
	if _, err := os.Stat(logger.CurrentFile()); err != nil {
		t.Errorf("Expected active log file to exist: %v", err)
	}
}

func TestEnqueueWritesJSONLines(t *testing.T) {
	logger, dir := newTestLogger(t, 10*1024, 5, 100, 50*time.Millisecond)

	rec := record(1)
	rec.RemoteAddr = "127.0.0.1:12345"
	if err := logger.Enqueue(rec); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := logger.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	lines := readLines(t, dir)
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d", len(lines))
	}

	var got AccessRecord
	if err := json.Unmarshal([]byte(lines[0]), &got); err != nil {
		t.Fatalf("Line is not valid JSON: %v", err)
	}
	if got.RequestID != "req-1" || got.Path != "/api/chat" || got.Status != 200 {
		t.Errorf("Unexpected record: %+v", got)
	}
	if got.ModelType != "ollama" {
		t.Errorf("Expected model_type ollama, got %q", got.ModelType)
	}
	if got.Timestamp.IsZero() {
		t.Error("Expected timestamp to be filled in")
	}
}

func TestEnqueueAfterShutdown(t *testing.T) {
	logger, _ := newTestLogger(t, 1024, 5, 10, time.Second)

	logger.Shutdown(context.Background())

	if err := logger.Enqueue(record(1)); err != ErrSinkClosed {
		t.Errorf("Expected ErrSinkClosed, got %v", err)
	}
	// Second shutdown is a no-op
	if err := logger.Shutdown(context.Background()); err != nil {
		t.Errorf("Expected nil from repeated Shutdown, got %v", err)
	}
}

func TestRotationAndCleanup(t *testing.T) {
	logger, dir := newTestLogger(t, 300, 2, 100, 50*time.Millisecond)

	for i := 0; i < 20; i++ {
		if err := logger.Enqueue(record(i)); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}
	logger.Shutdown(context.Background())

	matches, err := filepath.Glob(filepath.Join(dir, "test-*.jsonl"))
	if err != nil {
		t.Fatalf("Failed to glob files: %v", err)
	}
	if len(matches) == 0 || len(matches) > 2 {
		t.Errorf("Expected 1 or 2 log files with maxFiles=2, got %d: %v", len(matches), matches)
	}

	// The newest records survive cleanup
	lines := readLines(t, dir)
	if len(lines) == 0 || !strings.Contains(lines[len(lines)-1], "req-19") {
		t.Errorf("Expected last record req-19 to be retained, got %v", lines)
	}
}

func TestShutdownFlushesPending(t *testing.T) {
	logger, dir := newTestLogger(t, 10*1024, 5, 100, time.Hour)

	for i := 0; i < 5; i++ {
		logger.Enqueue(record(i))
	}

	logger.Shutdown(context.Background())

	if lines := readLines(t, dir); len(lines) != 5 {
		t.Errorf("Expected 5 log entries after shutdown, got %d", len(lines))
	}
}

func TestQueueFullDropsRecords(t *testing.T) {
	logger, dir := newTestLogger(t, 10*1024, 5, 2, time.Second)

	dropped := 0
	for i := 0; i < 50; i++ {
		if err := logger.Enqueue(record(i)); err == ErrQueueFull {
			dropped++
		}
	}
	logger.Shutdown(context.Background())

	lines := readLines(t, dir)
	if len(lines)+dropped != 50 {
		t.Errorf("Expected written (%d) + dropped (%d) to equal 50", len(lines), dropped)
	}
	if len(lines) == 0 {
		t.Error("Expected at least some records to be written")
	}
}

func TestNewFileNameGeneration(t *testing.T) {
	logger := &RequestLogger{fileTemplate: filepath.Join(t.TempDir(), "test-%s.jsonl")}

	fileName1 := logger.newFileName()
	fileName2 := logger.newFileName()

	if fileName1 == fileName2 {
		t.Error("Expected distinct filenames within the same second")
	}
	if !strings.HasPrefix(filepath.Base(fileName1), "test-") {
		t.Errorf("Filename should start with 'test-', got %s", fileName1)
	}
	if !strings.HasSuffix(fileName1, ".jsonl") {
		t.Errorf("Filename should end with '.jsonl', got %s", fileName1)
	}
}

func TestDirectoryCreation(t *testing.T) {
	nestedDir := filepath.Join(t.TempDir(), "nested", "path", "logs")

	logger, err := NewRequestLogger(filepath.Join(nestedDir, "test-%s.jsonl"), 1024, 5, 10, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Failed to create logger with nested directory: %v", err)
	}
	defer logger.Shutdown(context.Background())

	if _, err := os.Stat(nestedDir); os.IsNotExist(err) {
		t.Error("Expected nested directory to be created")
	}
}

func TestConcurrentEnqueue(t *testing.T) {
	logger, dir := newTestLogger(t, 1<<20, 5, 1000, 100*time.Millisecond)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			for j := 0; j < 10; j++ {
				logger.Enqueue(record(id*10 + j))
			}
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	logger.Shutdown(context.Background())

	if lines := readLines(t, dir); len(lines) != 100 {
		t.Errorf("Expected 100 log entries, got %d", len(lines))
	}
}

func TestPeriodicFlush(t *testing.T) {
	logger, _ := newTestLogger(t, 10*1024, 5, 100, 50*time.Millisecond)

	rec := record(1)
	rec.Error = "periodic flush"
	logger.Enqueue(rec)

	time.Sleep(300 * time.Millisecond)

	content, err := os.ReadFile(logger.CurrentFile())
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !bytes.Contains(content, []byte("periodic flush")) {
		t.Error("Expected record to be flushed to disk after flush interval")
	}
}

func TestNoopSink(t *testing.T) {
	var sink Sink = NewNoopSink()

	if err := sink.Enqueue(record(1)); err != nil {
		t.Errorf("Expected no error from NoopSink.Enqueue, got %v", err)
	}
	if err := sink.Shutdown(context.Background()); err != nil {
		t.Errorf("Expected no error from NoopSink.Shutdown, got %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]int{
		"debug":   Debug,
		"INFO":    Info,
		"warning": Warning,
		"error":   Error,
	}
	for name, want := range tests {
		if got := ParseLevel(name); got != want {
			t.Errorf("ParseLevel(%q) = %d, want %d", name, got, want)
		}
	}
}

func TestLeveledOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	previous := LogLevel
	SetLogLevel(Warning)
	defer SetLogLevel(previous)

	Debugf("hidden %d", 1)
	Warningf("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Debug output should be suppressed at warning level: %q", out)
	}
	if !strings.Contains(out, "shown 2") {
		t.Errorf("Expected warning output, got %q", out)
	}
}
