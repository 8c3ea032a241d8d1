package pipeline

import (
	"context"
	"sync"
)

// slot is the worker's single automation session. Only the job holding it may
// run an active stage.
type slot struct {
	sem chan struct{}

	mu     sync.Mutex
	holder string
}

func newSlot() *slot {
	return &slot{sem: make(chan struct{}, 1)}
}

// acquire blocks until jobID holds the slot or ctx is done. Re-acquiring is a no-op.
func (s *slot) acquire(ctx context.Context, jobID string) error {
	if s.heldBy(jobID) {
		return nil
	}

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	s.holder = jobID
	s.mu.Unlock()
	return nil
}

// release frees the slot if jobID holds it.
func (s *slot) release(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.holder != jobID || s.holder == "" {
		return
	}
	s.holder = ""
	<-s.sem
}

func (s *slot) heldBy(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holder != "" && s.holder == jobID
}

func (s *slot) current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holder
}
