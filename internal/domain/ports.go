package domain

import "context"

// EntityGateway reads and writes property records and their photo records in
// the remote backend. GetByID returns ErrNotFound when the row is absent.
type EntityGateway interface {
	GetByID(ctx context.Context, id string, includeDrafts bool) (PropertyRecord, error)
	Create(ctx context.Context, p PropertyPayload, ownerID string) (PropertyRecord, error)
	Update(ctx context.Context, id string, p PropertyPayload) (PropertyRecord, error)
	GetPhotos(ctx context.Context, propertyID string) ([]PhotoRecord, error)
	ReplacePhotos(ctx context.Context, propertyID string, photos []PhotoRecord) error
}

// DraftStore is device-local draft persistence keyed by user identity.
type DraftStore interface {
	Save(ctx context.Context, userID string, rec DraftRecord) error
	Load(ctx context.Context, userID string) (DraftRecord, bool, error)
	Clear(ctx context.Context, userID string) error
}

type DraftLister interface {
	List(ctx context.Context) ([]DraftSummary, error)
}

type Session struct {
	UserID string
	Role   string
}

type SessionState int

const (
	// SessionUnknown means the provider cannot tell yet; the gate falls back
	// to its timed wait.
	SessionUnknown SessionState = iota
	SessionLoading
	SessionLoaded
	SessionAbsent
)

func (s SessionState) String() string {
	switch s {
	case SessionLoading:
		return "loading"
	case SessionLoaded:
		return "loaded"
	case SessionAbsent:
		return "absent"
	}
	return "unknown"
}

type SessionProvider interface {
	CurrentSession(ctx context.Context) (Session, SessionState)
	// HasSessionArtifact reports local evidence of a prior session,
	// independent of whether that session validates.
	HasSessionArtifact() bool
}

// Uploader stores bytes and returns a stable public URL.
type Uploader interface {
	Upload(ctx context.Context, data []byte, path, contentType string) (string, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

type EventPublisher interface {
	PublishListingSubmitted(ctx context.Context, ev ListingSubmitted) error
}
