package logging

import (
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

const (
	Critical = 50
	Fatal    = Critical
	Error    = 40
	Warning  = 30
	Info     = 20
	Debug    = 10
	NotSet   = 0
)

var (
	LogLevel      int = Warning
	logLevelMutex sync.Mutex
	std               = log.New(os.Stderr, "", log.LstdFlags)
)

func init() {
	localEnv := os.Getenv("LOCAL")
	if strings.ToLower(localEnv) == "true" || localEnv == "1" {
		SetLogLevel(Debug)
	}
}

func SetLogLevel(level int) {
	logLevelMutex.Lock()
	defer logLevelMutex.Unlock()
	LogLevel = level
}

// SetOutput redirects diagnostics, e.g. away from the terminal the console
// is drawing on.
func SetOutput(w io.Writer) {
	logLevelMutex.Lock()
	defer logLevelMutex.Unlock()
	std.SetOutput(w)
}

// ParseLevel maps a level name to its value. Unknown names map to Warning.
func ParseLevel(name string) int {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return Debug
	case "info":
		return Info
	case "warn", "warning":
		return Warning
	case "error":
		return Error
	case "critical", "fatal":
		return Critical
	default:
		return Warning
	}
}

// Configure applies a level name unless LOCAL already forced debug output.
func Configure(levelName string) {
	localEnv := os.Getenv("LOCAL")
	if strings.ToLower(localEnv) == "true" || localEnv == "1" {
		return
	}
	SetLogLevel(ParseLevel(levelName))
}

func logf(level int, tag, format string, v ...interface{}) {
	logLevelMutex.Lock()
	defer logLevelMutex.Unlock()
	if LogLevel <= level {
		std.Printf("["+tag+"] "+format, v...)
	}
}

func Debugf(format string, v ...interface{}) {
	logf(Debug, "DEBUG", format, v...)
}

func Infof(format string, v ...interface{}) {
	logf(Info, "INFO", format, v...)
}

func Warningf(format string, v ...interface{}) {
	logf(Warning, "WARN", format, v...)
}

func Errorf(format string, v ...interface{}) {
	logf(Error, "ERROR", format, v...)
}

func Criticalf(format string, v ...interface{}) {
	logf(Critical, "CRITICAL", format, v...)
}

func Fatalf(format string, v ...interface{}) {
	std.Fatalf("[FATAL] "+format, v...)
}
