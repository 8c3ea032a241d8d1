package applicator

import (
	"context"
	"fmt"
	"sync"
)

// Backend operation names used by Stub.
const (
	OpOpen     = "open"
	OpNavigate = "navigate"
	OpFill     = "fill"
	OpUpload   = "upload"
	OpClose    = "close"
)

// Call is one recorded Stub invocation.
type Call struct {
	Op    string
	Arg   string // site, url or locator
	Value string // fill value or upload path
}

// Stub is a scriptable in-memory Backend. It records every call.
type Stub struct {
	mu       sync.Mutex
	calls    []Call
	failures map[string][]error
	opened   []byte

	// State is returned by Close.
	State []byte
	// Hook runs before each call; a non-nil result is returned as the call's error.
	Hook func(ctx context.Context, call Call) error
}

// NewStub returns a Stub where every call succeeds.
func NewStub() *Stub {
	return &Stub{failures: make(map[string][]error)}
}

// FailWith queues errors for successive calls of op. A nil entry lets that call succeed.
func (s *Stub) FailWith(op string, errs ...error) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], errs...)
	return s
}

// Calls returns the recorded calls in order.
func (s *Stub) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsFor returns how many times op was called.
func (s *Stub) CallsFor(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// OpenedWith returns the state passed to the last Open.
func (s *Stub) OpenedWith() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

func (s *Stub) Open(ctx context.Context, site string, state []byte) error {
	s.mu.Lock()
	s.opened = append([]byte(nil), state...)
	s.mu.Unlock()
	return s.do(ctx, Call{Op: OpOpen, Arg: site})
}

func (s *Stub) Navigate(ctx context.Context, url string) error {
	return s.do(ctx, Call{Op: OpNavigate, Arg: url})
}

func (s *Stub) FillField(ctx context.Context, locator, value string) error {
	return s.do(ctx, Call{Op: OpFill, Arg: locator, Value: value})
}

func (s *Stub) UploadFile(ctx context.Context, locator, path string) error {
	return s.do(ctx, Call{Op: OpUpload, Arg: locator, Value: path})
}

func (s *Stub) Close(ctx context.Context) ([]byte, error) {
	if err := s.do(ctx, Call{Op: OpClose}); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.State...), nil
}

func (s *Stub) do(ctx context.Context, call Call) error {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	var err error
	if queue := s.failures[call.Op]; len(queue) > 0 {
		err = queue[0]
		s.failures[call.Op] = queue[1:]
	}
	hook := s.Hook
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if hook != nil {
		if err := hook(ctx, call); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
	return nil
}
