// Package poller waits for an enrollment to appear after the buyer returns
// from the hosted checkout page.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

const (
	DefaultInterval = 2 * time.Second
	DefaultTimeout  = 30 * time.Second
)

type Status string

const (
	StatusVerifying      Status = "verifying"
	StatusEnrolled       Status = "enrolled"
	StatusWindowExceeded Status = "window_exceeded"
	StatusCanceled       Status = "canceled"
)

// Message is the text shown to the buyer for each status.
func (s Status) Message() string {
	switch s {
	case StatusEnrolled:
		return "Payment confirmed. You are enrolled."
	case StatusWindowExceeded:
		return "Payment is taking longer than expected. Refresh this page in a minute."
	case StatusCanceled:
		return "Verification stopped."
	default:
		return "Verifying payment..."
	}
}

// Checker reports whether the enrollment exists. enrollment.Writer
// satisfies it.
type Checker interface {
	Exists(ctx context.Context, userID, courseID uint) (bool, error)
}

type Config struct {
	Interval time.Duration
	Timeout  time.Duration
	Clock    Clock
}

type Target struct {
	UserID   uint
	CourseID uint
}

type Result struct {
	Status  Status
	Checks  int
	Elapsed time.Duration
}

// Poller runs at most one polling loop at a time.
type Poller struct {
	cfg     Config
	checker Checker

	mu     sync.Mutex
	active *Handle
}

func New(cfg Config, checker Checker) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock
	}
	return &Poller{cfg: cfg, checker: checker}
}

// Start checks immediately and then once per interval until the enrollment
// appears, the timeout elapses or the handle is canceled. While a loop is
// running, Start returns its handle instead of starting another one.
func (p *Poller) Start(ctx context.Context, target Target) *Handle {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active != nil && !p.active.finished() {
		return p.active
	}

	loopCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		cancel: cancel,
		done:   make(chan struct{}),
		result: Result{Status: StatusVerifying},
	}
	started := p.cfg.Clock.Now()
	ticker := p.cfg.Clock.NewTicker(p.cfg.Interval)
	p.active = h

	go p.run(loopCtx, h, ticker, started, target)
	return h
}

func (p *Poller) run(ctx context.Context, h *Handle, ticker Ticker, started time.Time, target Target) {
	checks := 0
	finish := func(status Status, at time.Time) {
		ticker.Stop()
		h.finish(Result{Status: status, Checks: checks, Elapsed: at.Sub(started)})
	}

	check := func() bool {
		checks++
		ok, err := p.checker.Exists(ctx, target.UserID, target.CourseID)
		if err != nil && ctx.Err() == nil {
			log.Warnf("[Poller] Enrollment check for user %d course %d failed: %v", target.UserID, target.CourseID, err)
		}
		return ok
	}

	if check() {
		finish(StatusEnrolled, started)
		return
	}

	for {
		select {
		case <-ctx.Done():
			finish(StatusCanceled, p.cfg.Clock.Now())
			return
		case now := <-ticker.C():
			if now.Sub(started) >= p.cfg.Timeout {
				finish(StatusWindowExceeded, now)
				return
			}
			if check() {
				finish(StatusEnrolled, now)
				return
			}
			if ctx.Err() != nil {
				finish(StatusCanceled, now)
				return
			}
		}
	}
}

// Handle controls one polling loop.
type Handle struct {
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}

	mu     sync.Mutex
	result Result
}

// Cancel stops the loop. It is safe to call more than once and after the
// loop has finished.
func (h *Handle) Cancel() {
	h.once.Do(h.cancel)
}

// Done is closed once the loop reached a terminal status.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result returns the current status; it is final once Done is closed.
func (h *Handle) Result() Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result
}

// Wait blocks until the loop finishes or ctx is done.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case <-h.done:
		return h.Result(), nil
	case <-ctx.Done():
		return h.Result(), ctx.Err()
	}
}

func (h *Handle) finish(r Result) {
	h.mu.Lock()
	h.result = r
	h.mu.Unlock()
	close(h.done)
	h.Cancel()
}

func (h *Handle) finished() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}
