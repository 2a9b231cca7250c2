// Package scheduler drives periodic refreshes with a randomized delay and
// supports pausing, resuming and manual refreshes.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// State is the scheduler's current activity.
type State int

// Scheduler states.
const (
	Idle State = iota
	Scheduled
	Fetching
	Paused
)

func (s State) String() string {
	switch s {
	case Scheduled:
		return "scheduled"
	case Fetching:
		return "fetching"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

// ErrStopped is returned by commands sent after Run has returned.
var ErrStopped = errors.New("scheduler stopped")

// Refresher performs one refresh. isRefresh is false only for the first
// refresh after startup.
type Refresher interface {
	Refresh(ctx context.Context, isRefresh bool) error
}

// Options configures the refresh cadence.
type Options struct {
	// Base is the minimum delay between refreshes.
	Base time.Duration
	// Jitter is the width of the random range added to Base.
	Jitter time.Duration
}

// Status reports what the scheduler is doing.
type Status struct {
	State State
	// Countdown is the whole number of seconds until the next refresh,
	// zero when paused or fetching.
	Countdown time.Duration
	NextAt    time.Time
}

type commandKind int

const (
	cmdPause commandKind = iota
	cmdResume
	cmdRefresh
)

type command struct {
	kind commandKind
	done chan struct{}
}

// Scheduler runs refreshes on a randomized cadence. Commands are processed
// by the Run goroutine, so refreshes never overlap.
type Scheduler struct {
	r    Refresher
	log  *slog.Logger
	opts Options

	// jitter returns a duration in [0, n). Replaced in tests.
	jitter func(n time.Duration) time.Duration
	now    func() time.Time

	cmds    chan command
	stopped chan struct{}

	mu     sync.Mutex
	state  State
	paused bool
	nextAt time.Time
}

// New creates a Scheduler. Zero options select 60s base and 40s jitter.
func New(r Refresher, opts Options, log *slog.Logger) *Scheduler {
	if opts.Base <= 0 {
		opts.Base = 60 * time.Second
	}
	if opts.Jitter < 0 {
		opts.Jitter = 0
	}
	return &Scheduler{
		r:    r,
		log:  log,
		opts: opts,
		jitter: func(n time.Duration) time.Duration {
			if n <= 0 {
				return 0
			}
			return rand.N(n)
		},
		now:     time.Now,
		cmds:    make(chan command),
		stopped: make(chan struct{}),
	}
}

// Run performs the initial refresh and then refreshes on schedule until ctx
// is cancelled. No refresh starts after Run returns.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.stopped)
	defer s.setState(Idle)

	s.refresh(ctx, false)

	timer := time.NewTimer(s.schedule())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.refresh(ctx, true)
			timer.Reset(s.schedule())
		case c := <-s.cmds:
			s.handle(ctx, c.kind, timer)
			close(c.done)
		}
	}
}

func (s *Scheduler) handle(ctx context.Context, kind commandKind, timer *time.Timer) {
	switch kind {
	case cmdPause:
		timer.Stop()
		s.mu.Lock()
		s.paused = true
		s.state = Paused
		s.nextAt = time.Time{}
		s.mu.Unlock()
		s.log.Info("polling paused")

	case cmdResume:
		if !s.isPaused() {
			return
		}
		s.mu.Lock()
		s.paused = false
		s.mu.Unlock()
		s.log.Info("polling resumed")
		s.refresh(ctx, true)
		timer.Reset(s.schedule())

	case cmdRefresh:
		timer.Stop()
		s.refresh(ctx, true)
		if s.isPaused() {
			s.setState(Paused)
			return
		}
		timer.Reset(s.schedule())
	}
}

func (s *Scheduler) refresh(ctx context.Context, isRefresh bool) {
	if ctx.Err() != nil {
		return
	}
	s.setState(Fetching)
	if err := s.r.Refresh(ctx, isRefresh); err != nil && ctx.Err() == nil {
		s.log.Error("refresh", "error", err)
	}
}

// schedule draws the next delay and records when it fires.
func (s *Scheduler) schedule() time.Duration {
	d := s.opts.Base + s.jitter(s.opts.Jitter)
	s.mu.Lock()
	s.state = Scheduled
	s.nextAt = s.now().Add(d)
	s.mu.Unlock()
	s.log.Debug("next refresh scheduled", "in", d)
	return d
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	s.state = st
	if st != Scheduled {
		s.nextAt = time.Time{}
	}
	s.mu.Unlock()
}

func (s *Scheduler) isPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Pause cancels the pending refresh. Manual refreshes still work while paused.
func (s *Scheduler) Pause(ctx context.Context) error {
	return s.send(ctx, cmdPause)
}

// Resume refreshes immediately and restarts the schedule. It is a no-op when
// not paused.
func (s *Scheduler) Resume(ctx context.Context) error {
	return s.send(ctx, cmdResume)
}

// RefreshNow refreshes immediately. When running, the schedule restarts from
// now; when paused, the scheduler stays paused.
func (s *Scheduler) RefreshNow(ctx context.Context) error {
	return s.send(ctx, cmdRefresh)
}

func (s *Scheduler) send(ctx context.Context, kind commandKind) error {
	c := command{kind: kind, done: make(chan struct{})}
	select {
	case s.cmds <- c:
	case <-s.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-c.done:
		return nil
	case <-s.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the current state and the countdown to the next refresh.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{State: s.state, NextAt: s.nextAt}
	if s.state == Scheduled && !s.nextAt.IsZero() {
		left := s.nextAt.Sub(s.now())
		if left > 0 {
			st.Countdown = (left + time.Second - 1).Truncate(time.Second)
		}
	}
	return st
}
