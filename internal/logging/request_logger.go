package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// RequestLogger writes access records as JSON lines with buffering,
// size-based rotation and periodic flush. It implements Sink.
type RequestLogger struct {
	fileTemplate  string        // e.g. "/var/log/lonage-proxy/requests-%s.jsonl"
	maxSize       int64         // maximum size in bytes before rotation
	maxFiles      int           // maximum number of files to keep
	flushInterval time.Duration // flush the buffer every flushInterval if not empty

	mu          sync.Mutex
	currentFile string
	file        *os.File
	writer      *bufio.Writer
	currentSize int64
	seq         int

	logCh  chan *AccessRecord
	doneCh chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// NewRequestLogger opens the first log file and starts the writer goroutine.
// bufferSize bounds how many records can be queued before Enqueue drops them.
func NewRequestLogger(fileTemplate string, maxSize int64, maxFiles, bufferSize int, flushInterval time.Duration) (*RequestLogger, error) {
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	if maxFiles < 1 {
		maxFiles = 1
	}

	logger := &RequestLogger{
		fileTemplate:  fileTemplate,
		maxSize:       maxSize,
		maxFiles:      maxFiles,
		flushInterval: flushInterval,
		logCh:         make(chan *AccessRecord, bufferSize),
		doneCh:        make(chan struct{}),
	}

	if err := logger.openFile(); err != nil {
		return nil, err
	}

	logger.wg.Add(1)
	go logger.run()

	return logger, nil
}

// newFileName applies a timestamp and sequence number to the template so
// rotations within the same second get distinct files.
func (logger *RequestLogger) newFileName() string {
	logger.seq++
	stamp := fmt.Sprintf("%s-%04d", time.Now().Format("20060102150405"), logger.seq)
	return fmt.Sprintf(logger.fileTemplate, stamp)
}

func (logger *RequestLogger) openFile() error {
	name := logger.newFileName()
	dir := filepath.Dir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open access log: %w", err)
	}
	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}

	logger.currentFile = name
	logger.currentSize = fi.Size()
	logger.file = file
	logger.writer = bufio.NewWriter(file)
	return nil
}

// rotateLocked swaps to a new file when n more bytes would exceed maxSize.
// Caller holds mu.
func (logger *RequestLogger) rotateLocked(n int) (bool, error) {
	if logger.maxSize <= 0 || logger.currentSize == 0 || logger.currentSize+int64(n) < logger.maxSize {
		return false, nil
	}

	if err := logger.writer.Flush(); err != nil {
		return false, err
	}
	if err := logger.file.Close(); err != nil {
		return false, err
	}
	return true, logger.openFile()
}

// cleanupOldFiles removes the oldest files beyond maxFiles. The active file
// is never removed.
func (logger *RequestLogger) cleanupOldFiles() error {
	matches, err := filepath.Glob(fmt.Sprintf(logger.fileTemplate, "*"))
	if err != nil {
		return err
	}

	sort.Strings(matches)

	logger.mu.Lock()
	current := logger.currentFile
	logger.mu.Unlock()

	excess := len(matches) - logger.maxFiles
	for i := 0; i < len(matches) && excess > 0; i++ {
		if matches[i] == current {
			continue
		}
		if err := os.Remove(matches[i]); err == nil {
			excess--
		}
	}
	return nil
}

func (logger *RequestLogger) run() {
	defer logger.wg.Done()
	ticker := time.NewTicker(logger.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case rec := <-logger.logCh:
			logger.writeRecord(rec)
		case <-ticker.C:
			logger.mu.Lock()
			if err := logger.writer.Flush(); err != nil {
				Warningf("access log flush failed: %v", err)
			}
			logger.mu.Unlock()
		case <-logger.doneCh:
			for {
				select {
				case rec := <-logger.logCh:
					logger.writeRecord(rec)
				default:
					logger.mu.Lock()
					_ = logger.writer.Flush()
					_ = logger.file.Close()
					logger.mu.Unlock()
					return
				}
			}
		}
	}
}

func (logger *RequestLogger) writeRecord(rec *AccessRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		Warningf("dropping access record %s: %v", rec.RequestID, err)
		return
	}
	data = append(data, '\n')

	logger.mu.Lock()
	rotated, err := logger.rotateLocked(len(data))
	if err != nil {
		Errorf("access log rotation failed: %v", err)
	}
	if logger.writer != nil {
		_, _ = logger.writer.Write(data)
		logger.currentSize += int64(len(data))
	}
	logger.mu.Unlock()

	if rotated {
		if err := logger.cleanupOldFiles(); err != nil {
			Warningf("access log cleanup failed: %v", err)
		}
	}
}

// Enqueue queues a record. It never blocks: when the queue is full the
// record is dropped and ErrQueueFull returned.
func (logger *RequestLogger) Enqueue(rec *AccessRecord) error {
	logger.mu.Lock()
	closed := logger.closed
	logger.mu.Unlock()
	if closed {
		return ErrSinkClosed
	}

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	select {
	case logger.logCh <- rec:
		return nil
	default:
		return ErrQueueFull
	}
}

// CurrentFile returns the path of the active log file
func (logger *RequestLogger) CurrentFile() string {
	logger.mu.Lock()
	defer logger.mu.Unlock()
	return logger.currentFile
}

// Shutdown drains queued records, flushes and closes the file. It returns
// ctx.Err() if the context ends first.
func (logger *RequestLogger) Shutdown(ctx context.Context) error {
	logger.mu.Lock()
	if logger.closed {
		logger.mu.Unlock()
		return nil
	}
	logger.closed = true
	logger.mu.Unlock()

	close(logger.doneCh)

	done := make(chan struct{})
	go func() {
		logger.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
