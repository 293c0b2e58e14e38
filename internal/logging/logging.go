package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Sink writes one JSON object per line to stdout and, when configured, to a
// runtime log file. It is safe for concurrent use.
type Sink struct {
	mu   sync.Mutex
	enc  *json.Encoder
	file *os.File
}

// New creates a Sink writing to stdout only.
func New() *Sink {
	return &Sink{enc: json.NewEncoder(os.Stdout)}
}

// NewWithDir creates a Sink that duplicates log lines into
// <dir>/runtime.log, creating the directory if needed.
func NewWithDir(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	path := filepath.Join(dir, "runtime.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &Sink{
		enc:  json.NewEncoder(io.MultiWriter(os.Stdout, f)),
		file: f,
	}, nil
}

// NewWithWriter creates a Sink writing to the given writer. Used in tests.
func NewWithWriter(w io.Writer) *Sink {
	return &Sink{enc: json.NewEncoder(w)}
}

// Log writes a single JSON log line with a timestamp and level merged into
// the given fields.
func (s *Sink) Log(level string, msg string, fields map[string]any) {
	entry := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		entry[k] = v
	}
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level
	entry["msg"] = msg

	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(entry)
}

// Info logs at info level.
func (s *Sink) Info(msg string, fields map[string]any) { s.Log("info", msg, fields) }

// Warn logs at warn level.
func (s *Sink) Warn(msg string, fields map[string]any) { s.Log("warn", msg, fields) }

// Error logs at error level.
func (s *Sink) Error(msg string, fields map[string]any) { s.Log("error", msg, fields) }

// Encode writes raw fields as one JSON line with no added metadata. The
// request logger middleware uses this to keep its line format stable.
func (s *Sink) Encode(fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(fields)
}

// Close closes the underlying log file, if any.
func (s *Sink) Close() error {
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
