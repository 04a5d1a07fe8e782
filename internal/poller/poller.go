// Package poller schedules read sessions against registered devices.
//
// Each device gets one goroutine and its sessions never overlap. Session starts
// are spaced by at least MinSpacing; consecutive failures stretch the spacing
// with backoff. Only the latest successful snapshot per device is kept.
package poller

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/danmuck/fingerctl/internal/device"
	"github.com/danmuck/fingerctl/internal/observability"
	"github.com/danmuck/fingerctl/internal/protocol/session"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MinSpacing is the default and the floor for the gap between session starts.
const MinSpacing = 5 * time.Minute

var (
	ErrTooSoon       = errors.New("poller: refresh inside minimum spacing")
	ErrUnknownDevice = errors.New("poller: unknown device")
	ErrRunning       = errors.New("poller: already running")
)

type Config struct {
	Interval time.Duration
	Backoff  session.BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		Interval: MinSpacing,
		Backoff:  session.DefaultBackoff(),
	}
}

func (c Config) WithDefaults() Config {
	if c.Interval < MinSpacing {
		c.Interval = MinSpacing
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff = session.DefaultBackoff()
	}
	return c
}

// Sink receives every successful snapshot.
type Sink interface {
	Publish(ctx context.Context, snap device.Snapshot) error
}

// Status is the scheduling state of one device.
type Status struct {
	DeviceID    string           `json:"device_id"`
	Kind        device.Kind      `json:"kind"`
	Addr        string           `json:"addr"`
	LastSession string           `json:"last_session,omitempty"`
	LastAttempt time.Time        `json:"last_attempt"`
	LastSuccess time.Time        `json:"last_success"`
	LastError   string           `json:"last_error,omitempty"`
	Failures    int              `json:"failures"`
	NextRun     time.Time        `json:"next_run"`
	Snapshot    *device.Snapshot `json:"snapshot,omitempty"`
}

type worker struct {
	src device.Source
	// run serializes sessions against the device.
	run sync.Mutex

	mu      sync.Mutex
	state   Status
	backoff time.Duration
	cancel  context.CancelFunc
}

type Poller struct {
	cfg   Config
	sinks []Sink
	now   func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	mu      sync.Mutex
	workers map[string]*worker
	runCtx  context.Context
	wg      sync.WaitGroup
}

func New(cfg Config, sinks ...Sink) *Poller {
	return &Poller{
		cfg:     cfg.WithDefaults(),
		sinks:   sinks,
		now:     time.Now,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		workers: make(map[string]*worker),
	}
}

func (p *Poller) Config() Config {
	return p.cfg
}

// Add schedules src. When the poller is running its first session starts at once;
// a device added during shutdown is stored but not started.
func (p *Poller) Add(src device.Source) {
	cfg := src.Config()
	w := &worker{
		src: src,
		state: Status{
			DeviceID: cfg.ID,
			Kind:     src.Kind(),
			Addr:     cfg.Addr(),
		},
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.workers[cfg.ID]; ok && old.cancel != nil {
		old.cancel()
	}
	p.workers[cfg.ID] = w
	// once Run is shutting down it may already be waiting on wg
	if p.runCtx != nil && p.runCtx.Err() == nil {
		p.start(p.runCtx, w)
	}
}

// Remove stops scheduling id and drops its snapshot.
func (p *Poller) Remove(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.workers[id]
	if !ok {
		return false
	}
	if w.cancel != nil {
		w.cancel()
	}
	delete(p.workers, id)
	return true
}

// Run drives every device until ctx is done, then waits for sessions in flight.
func (p *Poller) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.runCtx != nil {
		p.mu.Unlock()
		return ErrRunning
	}
	p.runCtx = ctx
	for _, w := range p.workers {
		p.start(ctx, w)
	}
	count := len(p.workers)
	p.mu.Unlock()

	log.Info().
		Int("devices", count).
		Str("interval", p.cfg.Interval.String()).
		Msg("poller started")
	<-ctx.Done()
	p.wg.Wait()

	p.mu.Lock()
	p.runCtx = nil
	p.mu.Unlock()
	log.Info().Msg("poller stopped")
	return nil
}

// start must be called with p.mu held.
func (p *Poller) start(ctx context.Context, w *worker) {
	wctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.loop(wctx, w)
	}()
}

func (p *Poller) loop(ctx context.Context, w *worker) {
	for {
		wait := p.reserve(w, false)
		if wait <= 0 {
			_, _ = p.session(ctx, w)
			if ctx.Err() != nil {
				return
			}
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Refresh runs a session for id now. It fails with ErrTooSoon when the previous
// session started less than the configured interval ago.
func (p *Poller) Refresh(ctx context.Context, id string) (device.Snapshot, error) {
	p.mu.Lock()
	w, ok := p.workers[id]
	p.mu.Unlock()
	if !ok {
		return device.Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	if wait := p.reserve(w, true); wait > 0 {
		return device.Snapshot{}, fmt.Errorf("%w: retry in %s", ErrTooSoon, wait.Round(time.Second))
	}
	return p.session(ctx, w)
}

// reserve claims the next session start for w and returns zero, or returns how
// long until one may start. Manual refreshes honor the spacing but not backoff.
func (p *Poller) reserve(w *worker, manual bool) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := p.now()
	if !w.state.LastAttempt.IsZero() {
		gap := p.cfg.Interval
		if !manual && w.backoff > gap {
			gap = w.backoff
		}
		if wait := w.state.LastAttempt.Add(gap).Sub(now); wait > 0 {
			return wait
		}
	}
	w.state.LastAttempt = now
	w.state.NextRun = now.Add(p.cfg.Interval)
	return 0
}

func (p *Poller) session(ctx context.Context, w *worker) (device.Snapshot, error) {
	w.run.Lock()
	defer w.run.Unlock()

	cfg := w.src.Config()
	id := uuid.NewString()
	logger := log.With().
		Str("device", cfg.ID).
		Str("session", id).
		Logger()

	start := p.now()
	snap, err := w.src.Fetch(ctx)
	elapsed := p.now().Sub(start)
	observability.RecordSession(cfg.ID, string(w.src.Kind()), snap.Pages, snap.Records, err)

	w.mu.Lock()
	w.state.LastSession = id
	if err != nil {
		w.state.Failures++
		w.state.LastError = err.Error()
		w.backoff = p.backoff(w.state.Failures)
		if w.backoff > p.cfg.Interval {
			w.state.NextRun = w.state.LastAttempt.Add(w.backoff)
		}
	} else {
		w.state.Failures = 0
		w.state.LastError = ""
		w.state.LastSuccess = snap.FetchedAt
		w.state.Snapshot = &snap
		w.backoff = 0
	}
	failures := w.state.Failures
	next := w.state.NextRun
	w.mu.Unlock()

	if err != nil {
		logger.Warn().
			Err(err).
			Int("failures", failures).
			Str("next", humanize.Time(next)).
			Msg("device session failed")
		return device.Snapshot{}, err
	}
	logger.Info().
		Str("records", humanize.Comma(int64(snap.Records))).
		Int("pages", snap.Pages).
		Int("users", len(snap.Attendance)).
		Str("elapsed", elapsed.String()).
		Str("next", humanize.Time(next)).
		Msg("device session complete")

	for _, sink := range p.sinks {
		if perr := sink.Publish(ctx, snap); perr != nil {
			logger.Warn().Err(perr).Msg("snapshot publish failed")
		}
	}
	return snap, nil
}

func (p *Poller) backoff(failures int) time.Duration {
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	return session.NextBackoffDelay(p.cfg.Backoff, failures, p.rng)
}

func (p *Poller) Status(id string) (Status, bool) {
	p.mu.Lock()
	w, ok := p.workers[id]
	p.mu.Unlock()
	if !ok {
		return Status{}, false
	}
	return w.status(), true
}

// Statuses returns every device's state ordered by id.
func (p *Poller) Statuses() []Status {
	p.mu.Lock()
	out := make([]Status, 0, len(p.workers))
	for _, w := range p.workers {
		out = append(out, w.status())
	}
	p.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

func (w *worker) status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}
