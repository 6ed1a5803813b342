package drafts

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"staylist/internal/domain"
)

type memEntry struct {
	content   []byte
	lastSaved time.Time
}

// Memory keeps drafts serialised in a map, the same way they would sit in
// device storage. Safe for concurrent use.
type Memory struct {
	mu sync.RWMutex
	m  map[string]memEntry
}

var (
	_ domain.DraftStore  = (*Memory)(nil)
	_ domain.DraftLister = (*Memory)(nil)
)

func NewMemory() *Memory { return &Memory{m: make(map[string]memEntry)} }

// Save overwrites the user's draft. Saving identical content again leaves
// the stored draft, timestamp included, untouched.
func (s *Memory) Save(_ context.Context, userID string, rec domain.DraftRecord) error {
	b, err := encode(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.m[userID]; ok && bytes.Equal(cur.content, b) {
		return nil
	}
	ts := rec.LastSaved
	if ts.IsZero() {
		ts = time.Now()
	}
	s.m[userID] = memEntry{content: b, lastSaved: ts.UTC()}
	return nil
}

func (s *Memory) Load(_ context.Context, userID string) (domain.DraftRecord, bool, error) {
	s.mu.RLock()
	e, ok := s.m[userID]
	s.mu.RUnlock()
	if !ok {
		return domain.DraftRecord{}, false, nil
	}
	rec, err := decode(e.content, e.lastSaved)
	if err != nil {
		return domain.DraftRecord{}, false, err
	}
	return rec, true, nil
}

func (s *Memory) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	delete(s.m, userID)
	s.mu.Unlock()
	return nil
}

// List returns every stored draft, newest first.
func (s *Memory) List(ctx context.Context) ([]domain.DraftSummary, error) {
	s.mu.RLock()
	users := make([]string, 0, len(s.m))
	for u := range s.m {
		users = append(users, u)
	}
	s.mu.RUnlock()

	out := make([]domain.DraftSummary, 0, len(users))
	for _, u := range users {
		rec, ok, err := s.Load(ctx, u)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, summary(u, rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSaved.After(out[j].LastSaved) })
	return out, nil
}
