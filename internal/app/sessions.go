package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"staylist/internal/adapters/observability"
	"staylist/internal/domain"
)

type registryEntry struct {
	w        *Wizard
	lastUsed time.Time
}

// Registry keeps open wizards addressable by an opaque id so a stateless
// transport can drive them across requests.
type Registry struct {
	base Deps
	now  func() time.Time

	mu      sync.Mutex
	wizards map[string]*registryEntry
}

// NewRegistry takes the shared collaborators; the session provider is
// supplied per Open because it belongs to the caller.
func NewRegistry(base Deps) *Registry {
	return &Registry{base: base, now: time.Now, wizards: make(map[string]*registryEntry)}
}

func (r *Registry) Open(ctx context.Context, sp domain.SessionProvider, propertyID string) (string, *Wizard, error) {
	deps := r.base
	deps.Sessions = sp
	w, err := Open(ctx, deps, propertyID)
	if err != nil {
		return "", nil, err
	}
	id := uuid.NewString()
	r.mu.Lock()
	r.wizards[id] = &registryEntry{w: w, lastUsed: r.now()}
	r.mu.Unlock()
	observability.ActiveWizards.Inc()
	return id, w, nil
}

// Get returns the wizard with id when it was opened by userID. A wizard
// owned by somebody else is reported as not found.
func (r *Registry) Get(id, userID string) (*Wizard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.wizards[id]
	if !ok || e.w.Session().UserID != userID {
		return nil, fmt.Errorf("wizard %s: %w", id, domain.ErrNotFound)
	}
	e.lastUsed = r.now()
	return e.w, nil
}

func (r *Registry) Close(id, userID string) error {
	r.mu.Lock()
	e, ok := r.wizards[id]
	if !ok || e.w.Session().UserID != userID {
		r.mu.Unlock()
		return fmt.Errorf("wizard %s: %w", id, domain.ErrNotFound)
	}
	delete(r.wizards, id)
	r.mu.Unlock()
	e.w.Close()
	observability.ActiveWizards.Dec()
	return nil
}

// Sweep closes wizards idle for longer than maxIdle and returns how many it closed.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)
	var stale []*Wizard
	r.mu.Lock()
	for id, e := range r.wizards {
		if e.lastUsed.Before(cutoff) {
			stale = append(stale, e.w)
			delete(r.wizards, id)
		}
	}
	r.mu.Unlock()
	for _, w := range stale {
		w.Close()
		observability.ActiveWizards.Dec()
	}
	if len(stale) > 0 {
		log.Info().Int("closed", len(stale)).Msg("idle wizards swept")
	}
	return len(stale)
}

// RunSweeper sweeps on every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Sweep(maxIdle)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.wizards
	r.wizards = make(map[string]*registryEntry)
	r.mu.Unlock()
	for _, e := range all {
		e.w.Close()
		observability.ActiveWizards.Dec()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.wizards)
}
