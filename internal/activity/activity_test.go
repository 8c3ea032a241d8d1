package activity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/khrees2412/applyflow/pkg/models"
)

type memorySink struct {
	mu      sync.Mutex
	entries []models.ActivityLogEntry
	err     error
}

func (s *memorySink) AppendActivity(_ context.Context, entry models.ActivityLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func TestAppendKeepsOrderAndMirrors(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	sink := &memorySink{}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	log := New(WithLogger(zap.New(core)), WithSink(sink), WithClock(func() time.Time { return fixed }))

	log.Info(models.ServiceMatching, "j1", "scored %s", "j1")
	log.Warn(models.ServiceTailoring, "j1", "repaired output")
	log.Error(models.ServiceTracking, "j2", "selector missing")

	entries := log.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "scored j1", entries[0].Message)
	assert.Equal(t, models.LevelWarn, entries[1].Level)
	assert.Equal(t, models.LevelError, entries[2].Level)
	assert.Equal(t, fixed, entries[2].Timestamp)
	assert.NotEmpty(t, entries[0].ID)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)

	assert.Equal(t, entries, sink.entries)

	mirrored := observed.All()
	require.Len(t, mirrored, 3)
	assert.Equal(t, zapcore.ErrorLevel, mirrored[2].Level)
	assert.Equal(t, "j2", mirrored[2].ContextMap()["job_id"])
}

func TestSinkFailureDoesNotDropEntry(t *testing.T) {
	log := New(WithSink(&memorySink{err: errors.New("disk full")}))

	log.Info(models.ServiceIngest, "", "ingested 3 jobs")

	assert.Equal(t, 1, log.Len())
}

func TestForJobAndCount(t *testing.T) {
	log := New()
	log.Info(models.ServiceTracking, "a", "one")
	log.Error(models.ServiceTracking, "b", "two")
	log.Warn(models.ServiceTracking, "a", "three")

	forA := log.ForJob("a")
	require.Len(t, forA, 2)
	assert.Equal(t, "three", forA[1].Message)
	assert.Equal(t, 1, log.Count(models.LevelError))
	assert.Equal(t, 1, log.Count(models.LevelWarn))
}

func TestMaxEntriesAndTruncate(t *testing.T) {
	log := New(WithMaxEntries(3))
	for i := 0; i < 5; i++ {
		log.Info(models.ServiceTracking, "", "entry %d", i)
	}

	entries := log.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "entry 2", entries[0].Message)

	log.Truncate(1)
	entries = log.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "entry 4", entries[0].Message)

	log.Truncate(-1)
	assert.Equal(t, 0, log.Len())
}

func TestConcurrentAppends(t *testing.T) {
	log := New()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				log.Info(models.ServiceTracking, fmt.Sprintf("w%d", worker), "step %d", i)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 400, log.Len())

	// Entries from one worker stay in the order that worker appended them.
	for w := 0; w < 8; w++ {
		entries := log.ForJob(fmt.Sprintf("w%d", w))
		require.Len(t, entries, 50)
		for i, e := range entries {
			assert.Equal(t, fmt.Sprintf("step %d", i), e.Message)
		}
	}
}
