package app

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"staylist/internal/adapters/observability"
	"staylist/internal/domain"
)

const DefaultAutosaveInterval = 30 * time.Second

// SnapshotFunc reports what should be persisted right now. ok is false when
// nothing should be written (no identity yet, or a submit is in flight).
type SnapshotFunc func() (userID string, rec domain.DraftRecord, ok bool)

// Autosaver periodically writes the wizard document to the draft store.
// Failures are logged and counted, never returned to the user.
type Autosaver struct {
	store    domain.DraftStore
	interval time.Duration
	snapshot SnapshotFunc
	now      func() time.Time

	mu     sync.Mutex
	last   []byte // fingerprint of the last successful write
	ticker *time.Ticker
	stopCh chan struct{}
	done   chan struct{}
}

func NewAutosaver(store domain.DraftStore, interval time.Duration, snap SnapshotFunc) *Autosaver {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	return &Autosaver{store: store, interval: interval, snapshot: snap, now: time.Now}
}

// Start launches the ticker loop. Calling Start on a running Autosaver is a no-op.
func (a *Autosaver) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopCh != nil {
		return
	}
	a.ticker = time.NewTicker(a.interval)
	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})

	go func(ticker *time.Ticker, stopCh, done chan struct{}) {
		defer close(done)
		for {
			select {
			case <-ticker.C:
				a.Tick(ctx)
			case <-stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}(a.ticker, a.stopCh, a.done)
}

// Stop cancels the timer and waits for an in-flight tick to finish, so no
// write happens after Stop returns.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	if a.stopCh == nil {
		a.mu.Unlock()
		return
	}
	a.ticker.Stop()
	close(a.stopCh)
	done := a.done
	a.stopCh, a.ticker, a.done = nil, nil, nil
	a.mu.Unlock()
	<-done
}

// Tick performs one autosave attempt and reports whether a write happened.
func (a *Autosaver) Tick(ctx context.Context) bool {
	saved, err := a.SaveNow(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("autosave failed")
	}
	return saved
}

// SaveNow writes the current snapshot unless it is identical to the last one
// written. It is also used for explicit saves.
func (a *Autosaver) SaveNow(ctx context.Context) (bool, error) {
	userID, rec, ok := a.snapshot()
	if !ok || userID == "" || !rec.Document.HasIdentity() {
		observability.ObserveAutosave("skipped")
		return false, nil
	}
	fp, err := fingerprint(rec)
	if err != nil {
		observability.ObserveAutosave("failed")
		return false, err
	}

	a.mu.Lock()
	unchanged := bytes.Equal(fp, a.last)
	a.mu.Unlock()
	if unchanged {
		observability.ObserveAutosave("unchanged")
		return false, nil
	}

	rec.LastSaved = a.now().UTC()
	if err := a.store.Save(ctx, userID, rec); err != nil {
		observability.ObserveAutosave("failed")
		return false, err
	}
	a.mu.Lock()
	a.last = fp
	a.mu.Unlock()
	observability.ObserveAutosave("saved")
	log.Debug().Str("user", userID).Int("step", rec.Step).Msg("draft saved")
	return true, nil
}

// Forget drops the remembered fingerprint, e.g. after the draft was cleared.
func (a *Autosaver) Forget() {
	a.mu.Lock()
	a.last = nil
	a.mu.Unlock()
}

// fingerprint covers everything in a draft except its timestamp.
func fingerprint(rec domain.DraftRecord) ([]byte, error) {
	rec.LastSaved = time.Time{}
	return json.Marshal(rec)
}
