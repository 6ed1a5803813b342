package app

import (
	"context"
	"fmt"
	"time"

	"staylist/internal/domain"
)

// CachedGateway puts a read-through cache in front of an entity gateway.
// Writes go straight to the backend and invalidate the affected keys.
type CachedGateway struct {
	next     domain.EntityGateway
	cache    domain.Cache
	cacheTTL time.Duration
}

var _ domain.EntityGateway = (*CachedGateway)(nil)

func NewCachedGateway(next domain.EntityGateway, c domain.Cache, ttl time.Duration) *CachedGateway {
	return &CachedGateway{next: next, cache: c, cacheTTL: ttl}
}

func propertyKey(id string, drafts bool) string { return fmt.Sprintf("property:%s:%t", id, drafts) }
func photosKey(id string) string               { return fmt.Sprintf("property:%s:photos", id) }

func (g *CachedGateway) GetByID(ctx context.Context, id string, includeDrafts bool) (domain.PropertyRecord, error) {
	key := propertyKey(id, includeDrafts)
	var rec domain.PropertyRecord
	if ok, _ := g.cache.Get(ctx, key, &rec); ok && rec != nil {
		return rec, nil
	}
	rec, err := g.next.GetByID(ctx, id, includeDrafts)
	if err != nil {
		return nil, err
	}
	_ = g.cache.Set(ctx, key, rec, int(g.cacheTTL.Seconds()))
	return rec, nil
}

func (g *CachedGateway) GetPhotos(ctx context.Context, propertyID string) ([]domain.PhotoRecord, error) {
	key := photosKey(propertyID)
	var out []domain.PhotoRecord
	if ok, _ := g.cache.Get(ctx, key, &out); ok {
		return out, nil
	}
	ps, err := g.next.GetPhotos(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	// the cached copy must not alias what callers get back
	cp := make([]domain.PhotoRecord, len(ps))
	copy(cp, ps)
	_ = g.cache.Set(ctx, key, cp, int(g.cacheTTL.Seconds()))
	return append([]domain.PhotoRecord(nil), ps...), nil
}

func (g *CachedGateway) Create(ctx context.Context, p domain.PropertyPayload, ownerID string) (domain.PropertyRecord, error) {
	return g.next.Create(ctx, p, ownerID)
}

func (g *CachedGateway) Update(ctx context.Context, id string, p domain.PropertyPayload) (domain.PropertyRecord, error) {
	rec, err := g.next.Update(ctx, id, p)
	g.invalidate(ctx, propertyKey(id, true), propertyKey(id, false))
	return rec, err
}

func (g *CachedGateway) ReplacePhotos(ctx context.Context, propertyID string, photos []domain.PhotoRecord) error {
	err := g.next.ReplacePhotos(ctx, propertyID, photos)
	g.invalidate(ctx, photosKey(propertyID))
	return err
}

func (g *CachedGateway) invalidate(ctx context.Context, keys ...string) {
	for _, k := range keys {
		_ = g.cache.Del(ctx, k)
	}
}
