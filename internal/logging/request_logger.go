package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RequestLogger records outbound API request/response cycles when enabled.
type RequestLogger interface {
	// LogRequest logs one request/response cycle.
	LogRequest(method, url string, requestBody []byte, statusCode int, responseBody []byte)

	// IsEnabled reports whether request logging is active.
	IsEnabled() bool
}

// FileRequestLogger implements RequestLogger using per-day log files under
// logsDir. Write failures are swallowed; request logging must never break an
// API call.
type FileRequestLogger struct {
	enabled bool
	logsDir string
	mu      sync.Mutex
}

// NewFileRequestLogger creates a file-based request logger.
func NewFileRequestLogger(enabled bool, logsDir string) *FileRequestLogger {
	return &FileRequestLogger{enabled: enabled, logsDir: logsDir}
}

// IsEnabled reports whether request logging is active.
func (l *FileRequestLogger) IsEnabled() bool {
	return l.enabled
}

// LogRequest appends one request/response record to the current day's file.
func (l *FileRequestLogger) LogRequest(method, url string, requestBody []byte, statusCode int, responseBody []byte) {
	if !l.enabled {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.logsDir, 0o755); err != nil {
		return
	}

	name := filepath.Join(l.logsDir, fmt.Sprintf("requests-%s.log", time.Now().Format("2006-01-02")))
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()

	fmt.Fprintf(f, "=== %s %s %s\nstatus: %d\nrequest: %s\nresponse: %s\n\n",
		time.Now().Format(time.RFC3339), method, url, statusCode, requestBody, responseBody)
}
