// Package ratelimit caps completed prefills per target site over a rolling window.
package ratelimit

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/khrees2412/applyflow/internal/apperr"
)

// Mode selects how the window is measured.
type Mode string

const (
	// ModeSliding counts reservations made in the last Window.
	ModeSliding Mode = "sliding"
	// ModeFixed counts reservations since the current window opened.
	ModeFixed Mode = "fixed"
	// ModeTokenBucket refills one slot every Window/Limit, bursting up to Limit.
	ModeTokenBucket Mode = "token_bucket"
)

const (
	DefaultLimit  = 5
	DefaultWindow = time.Hour
)

// Config holds the limiter settings. Limit <= 0 disables limiting.
type Config struct {
	Limit  int
	Window time.Duration
	Mode   Mode
}

// LimitError reports an exhausted site budget. It unwraps to apperr.ErrRateLimited.
type LimitError struct {
	Site       string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit reached for %s, retry in %s", e.Site, e.RetryAfter.Round(time.Second))
}

func (e *LimitError) Unwrap() error {
	return apperr.ErrRateLimited
}

type event struct {
	seq uint64
	at  time.Time
}

type siteState struct {
	events []event // sliding

	windowStart time.Time // fixed
	count       int

	bucket *rate.Limiter // token bucket
}

// Limiter is safe for concurrent use. Every check-and-take is atomic per limiter.
type Limiter struct {
	mu    sync.Mutex
	cfg   Config
	now   func() time.Time
	seq   uint64
	sites map[string]*siteState
}

// Option configures a Limiter
type Option func(*Limiter)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter. Unknown modes fall back to sliding.
func New(cfg Config, opts ...Option) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	switch cfg.Mode {
	case ModeSliding, ModeFixed, ModeTokenBucket:
	default:
		cfg.Mode = ModeSliding
	}

	l := &Limiter{
		cfg:   cfg,
		now:   time.Now,
		sites: make(map[string]*siteState),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Config returns the effective configuration.
func (l *Limiter) Config() Config {
	return l.cfg
}

// Reservation holds one slot of a site budget until it is cancelled.
type Reservation struct {
	l      *Limiter
	site   string
	seq    uint64
	window time.Time
	token  *rate.Reservation
	done   bool
}

// Site returns the key the reservation was made for.
func (r *Reservation) Site() string {
	return r.site
}

// Cancel returns the slot to the budget. Calling it more than once is a no-op.
func (r *Reservation) Cancel() {
	if r == nil {
		return
	}
	r.l.cancel(r)
}

// Reserve takes one slot for site or returns a *LimitError.
func (l *Limiter) Reserve(site string) (*Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	res := &Reservation{l: l, site: site, seq: l.seq}
	if l.cfg.Limit <= 0 {
		res.done = true
		return res, nil
	}

	now := l.now()
	st := l.state(site)

	switch l.cfg.Mode {
	case ModeFixed:
		if st.windowStart.IsZero() || !now.Before(st.windowStart.Add(l.cfg.Window)) {
			st.windowStart = now
			st.count = 0
		}
		if st.count >= l.cfg.Limit {
			return nil, &LimitError{Site: site, RetryAfter: st.windowStart.Add(l.cfg.Window).Sub(now)}
		}
		st.count++
		res.window = st.windowStart

	case ModeTokenBucket:
		r := st.bucket.ReserveN(now, 1)
		if !r.OK() {
			return nil, &LimitError{Site: site, RetryAfter: l.cfg.Window}
		}
		if delay := r.DelayFrom(now); delay > 0 {
			r.CancelAt(now)
			return nil, &LimitError{Site: site, RetryAfter: delay}
		}
		res.token = r

	default:
		l.prune(st, now)
		if len(st.events) >= l.cfg.Limit {
			return nil, &LimitError{Site: site, RetryAfter: st.events[0].at.Add(l.cfg.Window).Sub(now)}
		}
		st.events = append(st.events, event{seq: res.seq, at: now})
	}

	return res, nil
}

// Remaining reports how many reservations site can make right now.
func (l *Limiter) Remaining(site string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg.Limit <= 0 {
		return -1
	}

	now := l.now()
	st := l.state(site)

	switch l.cfg.Mode {
	case ModeFixed:
		if st.windowStart.IsZero() || !now.Before(st.windowStart.Add(l.cfg.Window)) {
			return l.cfg.Limit
		}
		return l.cfg.Limit - st.count
	case ModeTokenBucket:
		return max(int(st.bucket.TokensAt(now)), 0)
	default:
		l.prune(st, now)
		return l.cfg.Limit - len(st.events)
	}
}

// Restore records a reservation completed at an earlier time, e.g. by a previous
// process. Restore in chronological order; reservations older than the window
// are ignored.
func (l *Limiter) Restore(site string, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.cfg.Limit <= 0 || !at.After(now.Add(-l.cfg.Window)) {
		return
	}
	if at.After(now) {
		at = now
	}
	st := l.state(site)

	switch l.cfg.Mode {
	case ModeFixed:
		if st.windowStart.IsZero() {
			st.windowStart = at
		}
		if !at.Before(st.windowStart) && at.Before(st.windowStart.Add(l.cfg.Window)) {
			st.count++
		}
	case ModeTokenBucket:
		st.bucket.ReserveN(at, 1)
	default:
		l.seq++
		i := len(st.events)
		for i > 0 && st.events[i-1].at.After(at) {
			i--
		}
		st.events = slices.Insert(st.events, i, event{seq: l.seq, at: at})
	}
}

func (l *Limiter) cancel(r *Reservation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if r.done {
		return
	}
	r.done = true

	st, ok := l.sites[r.site]
	if !ok {
		return
	}

	switch l.cfg.Mode {
	case ModeFixed:
		if st.windowStart.Equal(r.window) && st.count > 0 {
			st.count--
		}
	case ModeTokenBucket:
		if r.token != nil {
			r.token.CancelAt(l.now())
		}
	default:
		for i, ev := range st.events {
			if ev.seq == r.seq {
				st.events = append(st.events[:i], st.events[i+1:]...)
				break
			}
		}
	}
}

func (l *Limiter) state(site string) *siteState {
	st, ok := l.sites[site]
	if !ok {
		st = &siteState{}
		if l.cfg.Mode == ModeTokenBucket {
			every := l.cfg.Window / time.Duration(max(l.cfg.Limit, 1))
			st.bucket = rate.NewLimiter(rate.Every(every), l.cfg.Limit)
		}
		l.sites[site] = st
	}
	return st
}

func (l *Limiter) prune(st *siteState, now time.Time) {
	cutoff := now.Add(-l.cfg.Window)
	keep := 0
	for keep < len(st.events) && !st.events[keep].at.After(cutoff) {
		keep++
	}
	if keep > 0 {
		st.events = append(st.events[:0], st.events[keep:]...)
	}
}

// SiteKey maps a job URL to the registrable domain budgets are kept under,
// so jobs.lever.co and lever.co share one budget.
func SiteKey(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return strings.ToLower(strings.TrimSpace(rawURL))
	}

	host := strings.ToLower(u.Hostname())
	if key, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return key
	}
	return host
}
