package device

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/danmuck/fingerctl/internal/finger"
	"github.com/rs/zerolog/log"
)

// Registry stores sources by device id. A host may be registered once.
type Registry struct {
	repo map[string]Source
	mu   sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		repo: make(map[string]Source),
		mu:   sync.RWMutex{},
	}
}

// Register validates src against the device and adds it. A host or id that is
// already present yields a DeviceAlreadyExists error wrapping ErrDuplicateDevice.
func (r *Registry) Register(ctx context.Context, src Source) error {
	if err := r.checkDuplicate(src.Config()); err != nil {
		return err
	}
	if err := src.Validate(ctx); err != nil {
		return err
	}
	// the device may have been added while validation was in flight
	return r.Add(src)
}

// Add stores src without contacting the device. Inventory entries were validated
// when they were first configured, so an offline terminal still gets scheduled.
func (r *Registry) Add(src Source) error {
	cfg := src.Config()
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.duplicateLocked(cfg); err != nil {
		return err
	}
	r.repo[cfg.ID] = src
	log.Info().
		Str("device", cfg.ID).
		Str("kind", string(src.Kind())).
		Str("addr", cfg.Addr()).
		Msg("device registered")
	return nil
}

func (r *Registry) checkDuplicate(cfg Config) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.duplicateLocked(cfg)
}

func (r *Registry) duplicateLocked(cfg Config) error {
	host := normalizeHost(cfg.Host)
	for id, src := range r.repo {
		if id == cfg.ID || normalizeHost(src.Config().Host) == host {
			return &finger.Error{
				Kind: finger.DeviceAlreadyExists,
				Op:   "register",
				Err:  fmt.Errorf("%w: %s (%s)", ErrDuplicateDevice, cfg.ID, cfg.Host),
			}
		}
	}
	return nil
}

func normalizeHost(host string) string {
	return strings.ToLower(strings.TrimSpace(host))
}

func (r *Registry) Get(id string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.repo[id]
	return src, ok
}

// Remove drops id and reports whether it was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.repo[id]
	delete(r.repo, id)
	return ok
}

// All returns a snapshot of registered sources ordered by id.
func (r *Registry) All() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Source, 0, len(r.repo))
	for _, src := range r.repo {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Config().ID < out[j].Config().ID
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.repo)
}
