package activity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khrees2412/applyflow/internal/logger"
	"github.com/khrees2412/applyflow/pkg/models"
)

// Sink persists entries after they are appended in memory.
type Sink interface {
	AppendActivity(ctx context.Context, entry models.ActivityLogEntry) error
}

// Log is the process-wide append-only activity record.
// Appends are serialized, so entries keep the order in which callers produced them.
type Log struct {
	mu      sync.Mutex
	entries []models.ActivityLogEntry
	max     int

	now    func() time.Time
	newID  func() string
	logger *zap.Logger
	sink   Sink
}

// Option configures a Log
type Option func(*Log)

// WithLogger mirrors every entry to the given zap logger
func WithLogger(l *zap.Logger) Option {
	return func(a *Log) { a.logger = logger.OrNop(l) }
}

// WithSink persists every entry through s
func WithSink(s Sink) Option {
	return func(a *Log) { a.sink = s }
}

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(a *Log) { a.now = now }
}

// WithMaxEntries keeps at most n entries in memory, dropping the oldest first
func WithMaxEntries(n int) Option {
	return func(a *Log) { a.max = n }
}

// New creates an empty activity log
func New(opts ...Option) *Log {
	l := &Log{
		now:    time.Now,
		newID:  uuid.NewString,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append records one entry and returns it
func (l *Log) Append(service models.Service, level models.LogLevel, jobID, message string) models.ActivityLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := models.ActivityLogEntry{
		ID:        l.newID(),
		Service:   service,
		Level:     level,
		Message:   message,
		JobID:     jobID,
		Timestamp: l.now(),
	}

	l.entries = append(l.entries, entry)
	if l.max > 0 && len(l.entries) > l.max {
		l.entries = append([]models.ActivityLogEntry(nil), l.entries[len(l.entries)-l.max:]...)
	}

	l.mirror(entry)

	if l.sink != nil {
		if err := l.sink.AppendActivity(context.Background(), entry); err != nil {
			l.logger.Warn("persisting activity entry failed", zap.String("entry_id", entry.ID), zap.Error(err))
		}
	}

	return entry
}

// Info appends an info-level entry
func (l *Log) Info(service models.Service, jobID, format string, args ...any) models.ActivityLogEntry {
	return l.Append(service, models.LevelInfo, jobID, fmt.Sprintf(format, args...))
}

// Warn appends a warn-level entry
func (l *Log) Warn(service models.Service, jobID, format string, args ...any) models.ActivityLogEntry {
	return l.Append(service, models.LevelWarn, jobID, fmt.Sprintf(format, args...))
}

// Error appends an error-level entry
func (l *Log) Error(service models.Service, jobID, format string, args ...any) models.ActivityLogEntry {
	return l.Append(service, models.LevelError, jobID, fmt.Sprintf(format, args...))
}

// Entries returns a copy of all entries, oldest first
func (l *Log) Entries() []models.ActivityLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.ActivityLogEntry(nil), l.entries...)
}

// ForJob returns the entries recorded for one job, oldest first
func (l *Log) ForJob(jobID string) []models.ActivityLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []models.ActivityLogEntry
	for _, e := range l.entries {
		if e.JobID == jobID {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many entries have the given level
func (l *Log) Count(level models.LogLevel) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, e := range l.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

// Len returns the number of entries held in memory
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Truncate keeps only the newest keep entries. Used by the display side for rotation.
func (l *Log) Truncate(keep int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if keep < 0 {
		keep = 0
	}
	if len(l.entries) > keep {
		l.entries = append([]models.ActivityLogEntry(nil), l.entries[len(l.entries)-keep:]...)
	}
}

func (l *Log) mirror(entry models.ActivityLogEntry) {
	fields := []zap.Field{
		zap.String("service", string(entry.Service)),
	}
	if entry.JobID != "" {
		fields = append(fields, zap.String(logger.FieldJobID, entry.JobID))
	}

	switch entry.Level {
	case models.LevelError:
		l.logger.Error(entry.Message, fields...)
	case models.LevelWarn:
		l.logger.Warn(entry.Message, fields...)
	default:
		l.logger.Info(entry.Message, fields...)
	}
}
