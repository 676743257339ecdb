// Package logging writes structured JSONL events for the orchestration
// service. Events land in a per-process stream file plus a shared errors
// file, so a failed pipeline can be reconstructed after the fact.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Category represents the subsystem generating the log
type Category string

const (
	CategoryWorkflow   Category = "workflow"
	CategoryExperiment Category = "experiment"
	CategoryVariant    Category = "variant"
	CategoryAgent      Category = "agent"
	CategoryCodeAgent  Category = "codeagent"
	CategorySandbox    Category = "sandbox"
	CategoryBrowser    Category = "browser"
	CategoryAI         Category = "ai"
	CategoryAPI        Category = "api"
	CategoryStore      Category = "store"
	CategoryBus        Category = "bus"
)

// Event is a single structured log record.
type Event struct {
	Timestamp    time.Time      `json:"timestamp"`
	Level        Level          `json:"level"`
	Category     Category       `json:"category"`
	EventType    string         `json:"type"`
	ExperimentID string         `json:"experiment_id,omitempty"`
	PipelineID   string         `json:"pipeline_id,omitempty"`
	Step         string         `json:"step,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	Message      string         `json:"message,omitempty"`
}

// Logger writes events to the stream and errors files.
type Logger struct {
	mu         sync.Mutex
	streamFile *os.File
	errorFile  *os.File
	minLevel   Level
}

// NewLogger opens log files under baseDir. The stream file is named after
// the process start time so restarts never interleave.
func NewLogger(baseDir string) (*Logger, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	streamName := time.Now().UTC().Format("20060102-150405") + ".jsonl"
	streamFile, err := os.OpenFile(
		filepath.Join(baseDir, streamName),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND,
		0o644,
	)
	if err != nil {
		return nil, fmt.Errorf("open stream log: %w", err)
	}

	errorFile, err := os.OpenFile(
		filepath.Join(baseDir, "errors.jsonl"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND,
		0o644,
	)
	if err != nil {
		streamFile.Close()
		return nil, fmt.Errorf("open error log: %w", err)
	}

	return &Logger{
		streamFile: streamFile,
		errorFile:  errorFile,
		minLevel:   LevelInfo,
	}, nil
}

// NewNopLogger returns a logger that discards everything. Used in tests and
// when no log directory is configured.
func NewNopLogger() *Logger {
	return &Logger{minLevel: LevelError + "-off"}
}

// SetMinLevel sets the minimum level written to the stream file.
func (l *Logger) SetMinLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

// Log writes an event to the stream file, and to the errors file for
// error-level events.
func (l *Logger) Log(event Event) error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if !l.shouldLog(event.Level) {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	data = append(data, '\n')

	if l.streamFile != nil {
		if _, err := l.streamFile.Write(data); err != nil {
			return fmt.Errorf("write stream log: %w", err)
		}
	}
	if event.Level == LevelError && l.errorFile != nil {
		if _, err := l.errorFile.Write(data); err != nil {
			return fmt.Errorf("write error log: %w", err)
		}
	}
	return nil
}

func (l *Logger) shouldLog(level Level) bool {
	levels := map[Level]int{
		LevelDebug: 0,
		LevelInfo:  1,
		LevelWarn:  2,
		LevelError: 3,
	}
	value, known := levels[level]
	min, minKnown := levels[l.minLevel]
	if !known || !minKnown {
		return false
	}
	return value >= min
}

// Debug logs a debug event.
func (l *Logger) Debug(category Category, eventType, message string, details map[string]any) error {
	return l.Log(Event{Level: LevelDebug, Category: category, EventType: eventType, Message: message, Details: details})
}

// Info logs an info event.
func (l *Logger) Info(category Category, eventType, message string, details map[string]any) error {
	return l.Log(Event{Level: LevelInfo, Category: category, EventType: eventType, Message: message, Details: details})
}

// Warn logs a warning event.
func (l *Logger) Warn(category Category, eventType, message string, details map[string]any) error {
	return l.Log(Event{Level: LevelWarn, Category: category, EventType: eventType, Message: message, Details: details})
}

// Error logs an error event.
func (l *Logger) Error(category Category, eventType, message string, details map[string]any) error {
	return l.Log(Event{Level: LevelError, Category: category, EventType: eventType, Message: message, Details: details})
}

// Close closes the log files.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	if l.streamFile != nil {
		if err := l.streamFile.Close(); err != nil {
			errs = append(errs, err)
		}
		l.streamFile = nil
	}
	if l.errorFile != nil {
		if err := l.errorFile.Close(); err != nil {
			errs = append(errs, err)
		}
		l.errorFile = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("close log files: %v", errs)
	}
	return nil
}
