package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type mockRefresher struct {
	mu    sync.Mutex
	calls []bool
	err   error
	ch    chan bool
}

func newMockRefresher() *mockRefresher {
	return &mockRefresher{ch: make(chan bool, 100)}
}

func (m *mockRefresher) Refresh(_ context.Context, isRefresh bool) error {
	m.mu.Lock()
	m.calls = append(m.calls, isRefresh)
	err := m.err
	m.mu.Unlock()
	m.ch <- isRefresh
	return err
}

func (m *mockRefresher) getCalls() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]bool, len(m.calls))
	copy(cp, m.calls)
	return cp
}

func (m *mockRefresher) wait(t *testing.T) bool {
	t.Helper()
	select {
	case v := <-m.ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for refresh")
		return false
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// start runs a scheduler whose timer never fires during the test.
func start(t *testing.T, r Refresher) (*Scheduler, context.CancelFunc) {
	t.Helper()
	s := New(r, Options{Base: time.Hour}, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s, cancel
}

func TestRunInitialRefresh(t *testing.T) {
	r := newMockRefresher()
	s, _ := start(t, r)

	if r.wait(t) {
		t.Error("first refresh should have isRefresh=false")
	}
	// A command round trip guarantees the loop is past the initial refresh.
	if err := s.Pause(context.Background()); err != nil {
		t.Fatalf("Pause() error: %v", err)
	}
	if err := s.Resume(context.Background()); err != nil {
		t.Fatalf("Resume() error: %v", err)
	}
	if diff := cmp.Diff([]bool{false, true}, r.getCalls()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestRunPeriodicRefresh(t *testing.T) {
	r := newMockRefresher()
	s := New(r, Options{Base: 5 * time.Millisecond, Jitter: 5 * time.Millisecond}, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	r.wait(t)
	for range 3 {
		if !r.wait(t) {
			t.Error("scheduled refresh should have isRefresh=true")
		}
	}
}

func TestScheduleDelayRange(t *testing.T) {
	s := New(newMockRefresher(), Options{Base: 60 * time.Second, Jitter: 40 * time.Second}, discardLogger())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	tests := []struct {
		name   string
		jitter time.Duration
		want   time.Duration
	}{
		{name: "no jitter", jitter: 0, want: 60 * time.Second},
		{name: "mid jitter", jitter: 17 * time.Second, want: 77 * time.Second},
		{name: "max jitter", jitter: 40*time.Second - 1, want: 100*time.Second - 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.jitter = func(time.Duration) time.Duration { return tt.jitter }
			if diff := cmp.Diff(tt.want, s.schedule()); diff != "" {
				t.Errorf("schedule() mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(now.Add(tt.want), s.Status().NextAt); diff != "" {
				t.Errorf("NextAt mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDefaultJitterInRange(t *testing.T) {
	s := New(newMockRefresher(), Options{Jitter: 40 * time.Second}, discardLogger())
	for range 1000 {
		d := s.jitter(40 * time.Second)
		if d < 0 || d >= 40*time.Second {
			t.Fatalf("jitter %v out of range", d)
		}
	}
	if d := s.jitter(0); d != 0 {
		t.Errorf("jitter(0) = %v, want 0", d)
	}
}

func TestStatusCountdown(t *testing.T) {
	s := New(newMockRefresher(), Options{Base: time.Minute}, discardLogger())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	s.jitter = func(time.Duration) time.Duration { return 0 }
	s.schedule()

	tests := []struct {
		name    string
		elapsed time.Duration
		want    time.Duration
	}{
		{name: "just scheduled", elapsed: 0, want: 60 * time.Second},
		{name: "rounds up partial seconds", elapsed: 1500 * time.Millisecond, want: 59 * time.Second},
		{name: "due", elapsed: time.Minute, want: 0},
		{name: "overdue", elapsed: 2 * time.Minute, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.now = func() time.Time { return now.Add(tt.elapsed) }
			if diff := cmp.Diff(tt.want, s.Status().Countdown); diff != "" {
				t.Errorf("Countdown mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPauseStopsCountdown(t *testing.T) {
	r := newMockRefresher()
	s, _ := start(t, r)
	r.wait(t)

	if err := s.Pause(context.Background()); err != nil {
		t.Fatalf("Pause() error: %v", err)
	}
	st := s.Status()
	if st.State != Paused || st.Countdown != 0 {
		t.Errorf("status = %v/%v, want paused/0", st.State, st.Countdown)
	}
}

func TestRefreshNowWhilePausedStaysPaused(t *testing.T) {
	r := newMockRefresher()
	s, _ := start(t, r)
	r.wait(t)

	ctx := context.Background()
	if err := s.Pause(ctx); err != nil {
		t.Fatalf("Pause() error: %v", err)
	}
	if err := s.RefreshNow(ctx); err != nil {
		t.Fatalf("RefreshNow() error: %v", err)
	}
	if got := s.Status().State; got != Paused {
		t.Errorf("state = %v, want paused", got)
	}
	if diff := cmp.Diff([]bool{false, true}, r.getCalls()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestRefreshNowReschedules(t *testing.T) {
	r := newMockRefresher()
	s, _ := start(t, r)
	r.wait(t)

	if err := s.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow() error: %v", err)
	}
	st := s.Status()
	if st.State != Scheduled {
		t.Errorf("state = %v, want scheduled", st.State)
	}
	if st.Countdown <= 59*time.Minute {
		t.Errorf("countdown = %v, want close to 1h", st.Countdown)
	}
}

func TestResumeFromPausedReschedules(t *testing.T) {
	r := newMockRefresher()
	s, _ := start(t, r)
	r.wait(t)

	ctx := context.Background()
	if err := s.Pause(ctx); err != nil {
		t.Fatalf("Pause() error: %v", err)
	}
	if err := s.Resume(ctx); err != nil {
		t.Fatalf("Resume() error: %v", err)
	}

	st := s.Status()
	if st.State != Scheduled {
		t.Errorf("state = %v, want scheduled", st.State)
	}
	if st.Countdown <= 59*time.Minute || st.Countdown > time.Hour {
		t.Errorf("countdown = %v, want a fresh 1h countdown", st.Countdown)
	}
	if st.NextAt.IsZero() {
		t.Error("NextAt is zero after resume")
	}
	if diff := cmp.Diff([]bool{false, true}, r.getCalls()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestResumeWhenRunningIsNoop(t *testing.T) {
	r := newMockRefresher()
	s, _ := start(t, r)
	r.wait(t)

	if err := s.Resume(context.Background()); err != nil {
		t.Fatalf("Resume() error: %v", err)
	}
	if diff := cmp.Diff([]bool{false}, r.getCalls()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestRefreshErrorsKeepCadence(t *testing.T) {
	r := newMockRefresher()
	r.err = errors.New("network down")
	s := New(r, Options{Base: 5 * time.Millisecond}, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	for range 3 {
		r.wait(t)
	}
}

func TestCancelStopsScheduler(t *testing.T) {
	r := newMockRefresher()
	s := New(r, Options{Base: 5 * time.Millisecond}, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	r.wait(t)
	cancel()
	<-done

	n := len(r.getCalls())
	time.Sleep(30 * time.Millisecond)
	if got := len(r.getCalls()); got != n {
		t.Errorf("refreshes after stop: %d -> %d", n, got)
	}
	if got := s.Status().State; got != Idle {
		t.Errorf("state = %v, want idle", got)
	}
	if err := s.Pause(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Pause() after stop = %v, want ErrStopped", err)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Idle, "idle"},
		{Scheduled, "scheduled"},
		{Fetching, "fetching"},
		{Paused, "paused"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
