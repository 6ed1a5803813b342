package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"staylist/internal/domain"
)

// ---- fakes ----

var errNetwork = errors.New("network unreachable")

type fakeGateway struct {
	mu      sync.Mutex
	records map[string]domain.PropertyRecord
	photos  map[string][]domain.PhotoRecord
	nextID  int

	failCreate, failUpdate, failPhotos error
	creates, updates, getByID          int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{records: map[string]domain.PropertyRecord{}, photos: map[string][]domain.PhotoRecord{}}
}

func (g *fakeGateway) GetByID(ctx context.Context, id string, includeDrafts bool) (domain.PropertyRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.getByID++
	rec, ok := g.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func (g *fakeGateway) Create(ctx context.Context, p domain.PropertyPayload, ownerID string) (domain.PropertyRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCreate != nil {
		return nil, g.failCreate
	}
	g.creates++
	g.nextID++
	rec, err := p.Record()
	if err != nil {
		return nil, err
	}
	id := fmt.Sprintf("prop-%d", g.nextID)
	rec["id"], rec["owner_id"] = id, ownerID
	g.records[id] = rec
	return rec, nil
}

func (g *fakeGateway) Update(ctx context.Context, id string, p domain.PropertyPayload) (domain.PropertyRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failUpdate != nil {
		return nil, g.failUpdate
	}
	cur, ok := g.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	g.updates++
	rec, err := p.Record()
	if err != nil {
		return nil, err
	}
	rec["id"], rec["owner_id"] = id, cur["owner_id"]
	g.records[id] = rec
	return rec, nil
}

func (g *fakeGateway) GetPhotos(ctx context.Context, propertyID string) ([]domain.PhotoRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.photos[propertyID], nil
}

func (g *fakeGateway) ReplacePhotos(ctx context.Context, propertyID string, photos []domain.PhotoRecord) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failPhotos != nil {
		return g.failPhotos
	}
	g.photos[propertyID] = photos
	return nil
}

func (g *fakeGateway) setFailures(create, update, photos error) {
	g.mu.Lock()
	g.failCreate, g.failUpdate, g.failPhotos = create, update, photos
	g.mu.Unlock()
}

// fakeSessions reports a scripted sequence of states, then sticks to the last one.
type fakeSessions struct {
	mu       sync.Mutex
	session  domain.Session
	states   []domain.SessionState
	calls    int
	artifact bool
}

func loggedIn(userID, role string) *fakeSessions {
	return &fakeSessions{session: domain.Session{UserID: userID, Role: role}, states: []domain.SessionState{domain.SessionLoaded}}
}

func (f *fakeSessions) CurrentSession(ctx context.Context) (domain.Session, domain.SessionState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.states) {
		i = len(f.states) - 1
	}
	f.calls++
	st := f.states[i]
	if st != domain.SessionLoaded {
		return domain.Session{}, st
	}
	return f.session, st
}

func (f *fakeSessions) HasSessionArtifact() bool { return f.artifact }

type fakeDrafts struct {
	mu      sync.Mutex
	recs    map[string]domain.DraftRecord
	saves   int
	clears  int
	failAll error
}

func newFakeDrafts() *fakeDrafts { return &fakeDrafts{recs: map[string]domain.DraftRecord{}} }

func (d *fakeDrafts) Save(ctx context.Context, userID string, rec domain.DraftRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failAll != nil {
		return d.failAll
	}
	d.saves++
	d.recs[userID] = rec
	return nil
}

func (d *fakeDrafts) Load(ctx context.Context, userID string) (domain.DraftRecord, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failAll != nil {
		return domain.DraftRecord{}, false, d.failAll
	}
	rec, ok := d.recs[userID]
	return rec, ok, nil
}

func (d *fakeDrafts) Clear(ctx context.Context, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clears++
	delete(d.recs, userID)
	return nil
}

func (d *fakeDrafts) get(userID string) (domain.DraftRecord, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.recs[userID]
	return rec, ok
}

type fakeUploader struct {
	mu    sync.Mutex
	paths []string
	calls int
}

func (u *fakeUploader) Upload(ctx context.Context, data []byte, path, contentType string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	u.paths = append(u.paths, path)
	return "https://cdn.example.com/" + path, nil
}

type failingUploader struct{ err error }

func (u failingUploader) Upload(ctx context.Context, data []byte, path, contentType string) (string, error) {
	return "", u.err
}

type fakeEvents struct {
	mu     sync.Mutex
	events []domain.ListingSubmitted
}

func (e *fakeEvents) PublishListingSubmitted(ctx context.Context, ev domain.ListingSubmitted) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

type fakeCache struct {
	store map[string]any
	dels  []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	switch d := dst.(type) {
	case *domain.PropertyRecord:
		*d = v.(domain.PropertyRecord)
	case *[]domain.PhotoRecord:
		*d = v.([]domain.PhotoRecord)
	}
	return true, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.store == nil {
		c.store = map[string]any{}
	}
	c.store[key] = v
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.dels = append(c.dels, key)
	delete(c.store, key)
	return nil
}

// ---- document builders ----

func villaDoc() domain.WizardDocument {
	doc := domain.NewWizardDocument()
	doc.Basic = domain.BasicInfo{
		Title:       "Casa Azul",
		Category:    domain.CategoryVilla,
		Description: "Three bedroom villa by the beach",
		Address:     "12 Beach Road",
		City:        "Goa",
		State:       "Goa",
		Country:     "India",
		Languages:   []string{"English", "Hindi"},
		StarRating:  4,
	}
	doc.Capacity = domain.Capacity{RoomsCount: 3, CapacityPerRoom: 2, Bedrooms: 3, Bathrooms: 2}
	doc.Rooms.RoomTypes = []domain.RoomType{
		{Type: "Deluxe", Count: 2, PricePerNight: 4000},
		{Type: "Suite", Count: 1, PricePerNight: 7000},
	}
	doc.Pricing.BaseRate = 4000
	doc.Photos.Add(domain.Photo{ImageURL: "https://cdn.example.com/front.jpg", Caption: "Front"})
	doc.Photos.Add(domain.Photo{ImageURL: "https://cdn.example.com/pool.jpg", Category: "pool"})
	return doc
}
