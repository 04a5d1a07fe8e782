package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/fingerctl/internal/device"
	"github.com/danmuck/fingerctl/internal/protocol/session"
	"github.com/danmuck/fingerctl/internal/testutil/testlog"
)

type fakeSource struct {
	cfg      device.Config
	mu       sync.Mutex
	fail     bool
	fetches  int
	inFlight atomic.Int32
	overlap  atomic.Bool
	hold     time.Duration
}

func newFakeSource(id string) *fakeSource {
	return &fakeSource{cfg: device.Config{ID: id, Host: id + ".local"}.WithDefaults()}
}

func (f *fakeSource) Config() device.Config          { return f.cfg }
func (f *fakeSource) Kind() device.Kind              { return device.KindFinger }
func (f *fakeSource) Validate(context.Context) error { return nil }

func (f *fakeSource) Fetch(ctx context.Context) (device.Snapshot, error) {
	if f.inFlight.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.inFlight.Add(-1)
	if f.hold > 0 {
		time.Sleep(f.hold)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fail {
		return device.Snapshot{}, errors.New("terminal offline")
	}
	return device.Snapshot{
		DeviceID:   f.cfg.ID,
		Kind:       device.KindFinger,
		FetchedAt:  time.Unix(1700000000, 0).UTC(),
		Attendance: map[string]string{"02": "25/10/2021 09:31:23"},
		Pages:      2,
		Records:    f.fetches,
	}, nil
}

func (f *fakeSource) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

type chanSink struct {
	ch chan device.Snapshot
}

func (s chanSink) Publish(_ context.Context, snap device.Snapshot) error {
	s.ch <- snap
	return nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestPoller(cfg Config, sinks ...Sink) (*Poller, *clock) {
	clk := &clock{now: time.Unix(1700000000, 0)}
	p := New(cfg, sinks...)
	p.now = clk.Now
	return p, clk
}

func TestConfigEnforcesMinimumSpacing(t *testing.T) {
	testlog.Start(t)
	p := New(Config{Interval: time.Second})
	if got := p.Config().Interval; got != MinSpacing {
		t.Fatalf("unexpected interval=%v", got)
	}
	if got := New(Config{Interval: time.Hour}).Config().Interval; got != time.Hour {
		t.Fatalf("unexpected interval=%v", got)
	}
	if DefaultConfig().Interval != 5*time.Minute {
		t.Fatalf("unexpected default interval")
	}
}

func TestRefreshRejectsInsideSpacing(t *testing.T) {
	testlog.Start(t)
	sink := chanSink{ch: make(chan device.Snapshot, 4)}
	p, clk := newTestPoller(DefaultConfig(), sink)
	src := newFakeSource("door")
	p.Add(src)
	ctx := context.Background()

	snap, err := p.Refresh(ctx, "door")
	if err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if snap.Records != 1 || len(sink.ch) != 1 {
		t.Fatalf("unexpected snapshot=%+v published=%d", snap, len(sink.ch))
	}

	clk.Advance(4 * time.Minute)
	if _, err := p.Refresh(ctx, "door"); !errors.Is(err, ErrTooSoon) {
		t.Fatalf("expected ErrTooSoon, got %v", err)
	}

	clk.Advance(time.Minute)
	if _, err := p.Refresh(ctx, "door"); err != nil {
		t.Fatalf("refresh after spacing: %v", err)
	}
	if src.fetches != 2 {
		t.Fatalf("unexpected fetches=%d", src.fetches)
	}
}

func TestRefreshUnknownDevice(t *testing.T) {
	testlog.Start(t)
	p, _ := newTestPoller(DefaultConfig())
	if _, err := p.Refresh(context.Background(), "missing"); !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("expected ErrUnknownDevice, got %v", err)
	}
}

func TestFailureKeepsSnapshotAndBacksOff(t *testing.T) {
	testlog.Start(t)
	cfg := Config{
		Interval: MinSpacing,
		Backoff: session.BackoffConfig{
			InitialDelay: 10 * time.Minute,
			Multiplier:   2.0,
			MaxDelay:     time.Hour,
		},
	}
	p, clk := newTestPoller(cfg)
	src := newFakeSource("door")
	p.Add(src)
	ctx := context.Background()

	if _, err := p.Refresh(ctx, "door"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	src.setFail(true)
	clk.Advance(MinSpacing)
	if _, err := p.Refresh(ctx, "door"); err == nil {
		t.Fatalf("expected fetch failure")
	}

	st, ok := p.Status("door")
	if !ok {
		t.Fatalf("missing status")
	}
	if st.Failures != 1 || st.LastError == "" || st.Snapshot == nil || st.Snapshot.Records != 1 {
		t.Fatalf("unexpected status=%+v", st)
	}
	if st.LastSession == "" {
		t.Fatalf("expected session id")
	}

	w := p.workers["door"]
	clk.Advance(MinSpacing)
	if wait := p.reserve(w, false); wait != 5*time.Minute {
		t.Fatalf("scheduled run must honor backoff, wait=%v", wait)
	}
	if wait := p.reserve(w, true); wait != 0 {
		t.Fatalf("manual refresh must only honor spacing, wait=%v", wait)
	}

	src.setFail(false)
	if _, err := p.session(ctx, w); err != nil {
		t.Fatalf("session: %v", err)
	}
	st, _ = p.Status("door")
	if st.Failures != 0 || st.LastError != "" || st.Snapshot.Records != 3 {
		t.Fatalf("unexpected status after recovery=%+v", st)
	}
}

func TestSessionsAreSerializedPerDevice(t *testing.T) {
	testlog.Start(t)
	p, _ := newTestPoller(DefaultConfig())
	src := newFakeSource("door")
	src.hold = 20 * time.Millisecond
	p.Add(src)
	w := p.workers["door"]

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.session(context.Background(), w)
		}()
	}
	wg.Wait()
	if src.overlap.Load() {
		t.Fatalf("sessions overlapped")
	}
	if src.fetches != 4 {
		t.Fatalf("unexpected fetches=%d", src.fetches)
	}
}

func TestRunPollsImmediatelyAndStops(t *testing.T) {
	testlog.Start(t)
	sink := chanSink{ch: make(chan device.Snapshot, 4)}
	p := New(DefaultConfig(), sink)
	p.Add(newFakeSource("b"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case snap := <-sink.ch:
		if snap.DeviceID != "b" {
			t.Fatalf("unexpected device=%s", snap.DeviceID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for first session")
	}

	p.Add(newFakeSource("a"))
	select {
	case snap := <-sink.ch:
		if snap.DeviceID != "a" {
			t.Fatalf("unexpected device=%s", snap.DeviceID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for added device")
	}

	statuses := p.Statuses()
	if len(statuses) != 2 || statuses[0].DeviceID != "a" || statuses[1].DeviceID != "b" {
		t.Fatalf("unexpected statuses=%+v", statuses)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop")
	}
	if !p.Remove("a") || p.Remove("a") {
		t.Fatalf("unexpected remove semantics")
	}
}

func TestAddDuringShutdownDoesNotStart(t *testing.T) {
	testlog.Start(t)
	p, _ := newTestPoller(DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.mu.Lock()
	p.runCtx = ctx
	p.mu.Unlock()

	src := newFakeSource("late")
	p.Add(src)

	p.mu.Lock()
	w := p.workers["late"]
	p.mu.Unlock()
	if w == nil || w.cancel != nil {
		t.Fatalf("device added during shutdown must be stored but not started")
	}
	p.wg.Wait()
	src.mu.Lock()
	defer src.mu.Unlock()
	if src.fetches != 0 {
		t.Fatalf("unexpected fetches=%d", src.fetches)
	}
}
