// Package eventlog records recording session events in a JSON lines file.
package eventlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"
)

// EventType names what happened to a session.
type EventType string

// Session event types.
const (
	SessionStarted     EventType = "started"
	SessionPaused      EventType = "paused"
	SessionResumed     EventType = "resumed"
	SessionStopped     EventType = "stopped"
	SessionReset       EventType = "reset"
	SessionDeviceEnded EventType = "device_ended"
	SessionStartFailed EventType = "start_failed"
)

// ErrClosed is returned when logging to a closed Logger.
var ErrClosed = errors.New("event log closed")

// Event is one line of the log.
type Event struct {
	Timestamp time.Time       `json:"ts"`
	Type      EventType       `json:"type"`
	Message   string          `json:"msg,omitempty"`
	Details   *SessionDetails `json:"details,omitempty"`
}

// SessionDetails describes the session an event belongs to.
type SessionDetails struct {
	MimeType   string `json:"mime_type,omitempty"`
	Device     string `json:"device,omitempty"`
	SizeBytes  int    `json:"size_bytes,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	URL        string `json:"url,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Logger appends events to a file. It is safe for concurrent use.
type Logger struct {
	path string

	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// DefaultLogPath returns where the log of the instance on port lives when
// no path is configured.
func DefaultLogPath(port int) string {
	root := "/var/log/voicenote"
	if runtime.GOOS == "windows" {
		root = os.Getenv("PROGRAMDATA")
		if root == "" {
			root = `C:\ProgramData`
		}
		root = filepath.Join(root, "voicenote", "logs")
	}
	return filepath.Join(root, strconv.Itoa(port), "sessions.jsonl")
}

// NewLogger opens path for appending, creating it and its directory.
func NewLogger(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &Logger{path: path, file: f, enc: json.NewEncoder(f)}, nil
}

// LogSession appends an event stamped with the current time.
func (l *Logger) LogSession(eventType EventType, message string, details *SessionDetails) error {
	ev := Event{Timestamp: time.Now(), Type: eventType, Message: message, Details: details}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return ErrClosed
	}
	return l.enc.Encode(ev)
}

// Close closes the file. Closing twice is a no-op.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file, l.enc = nil, nil
	return err
}

// Path returns the file the logger appends to.
func (l *Logger) Path() string {
	return l.path
}
