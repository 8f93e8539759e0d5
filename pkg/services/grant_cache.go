package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/folio-inc/folio-sync/pkg/models"
	"github.com/folio-inc/folio-sync/pkg/repositories"
)

// GrantLookup answers the two grant questions the sync hot path asks:
// which libraries does this recipient hold, and at what permission level.
// Lookups may be served from cache; mutations to grants must go through
// Invalidate so revocations take effect immediately rather than at TTL.
type GrantLookup interface {
	ActiveForRecipient(ctx context.Context, recipientID uuid.UUID) ([]models.GrantInfo, error)
	ActivePermission(ctx context.Context, ownerID, recipientID uuid.UUID) (models.Permission, error)
	Invalidate(ctx context.Context, recipientID uuid.UUID)
}

// cachedGrantInfo is the cache serialization of a GrantInfo. GrantInfo hides
// AcceptedAt from API responses, so the cache needs its own shape.
type cachedGrantInfo struct {
	OwnerID       uuid.UUID         `json:"owner_id"`
	OwnerIdentity string            `json:"owner_identity"`
	Permission    models.Permission `json:"permission"`
	AcceptedAt    time.Time         `json:"accepted_at"`
}

// grantLookup implements GrantLookup over the grant repository with an
// optional Redis cache. A nil Redis client disables caching entirely; every
// cache failure degrades to a repository read, never to a sync failure.
type grantLookup struct {
	repo   repositories.GrantRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewGrantLookup creates a grant lookup with an optional Redis cache.
func NewGrantLookup(repo repositories.GrantRepository, client *redis.Client, logger *zap.Logger) GrantLookup {
	return &grantLookup{
		repo:   repo,
		client: client,
		ttl:    5 * time.Minute,
		logger: logger.Named("grant_cache"),
	}
}

var _ GrantLookup = (*grantLookup)(nil)

func grantCacheKey(recipientID uuid.UUID) string {
	return fmt.Sprintf("folio:grants:%s", recipientID)
}

func (l *grantLookup) ActiveForRecipient(ctx context.Context, recipientID uuid.UUID) ([]models.GrantInfo, error) {
	if cached, ok := l.fromCache(ctx, recipientID); ok {
		return cached, nil
	}

	grants, err := l.repo.ActiveForRecipient(ctx, recipientID)
	if err != nil {
		return nil, err
	}

	l.store(ctx, recipientID, grants)
	return grants, nil
}

func (l *grantLookup) ActivePermission(ctx context.Context, ownerID, recipientID uuid.UUID) (models.Permission, error) {
	if cached, ok := l.fromCache(ctx, recipientID); ok {
		for _, g := range cached {
			if g.OwnerID == ownerID {
				return g.Permission, nil
			}
		}
		return "", nil
	}

	return l.repo.ActivePermission(ctx, ownerID, recipientID)
}

func (l *grantLookup) Invalidate(ctx context.Context, recipientID uuid.UUID) {
	if l.client == nil {
		return
	}
	if err := l.client.Del(ctx, grantCacheKey(recipientID)).Err(); err != nil {
		l.logger.Warn("Failed to invalidate grant cache",
			zap.String("recipient_id", recipientID.String()),
			zap.Error(err))
	}
}

func (l *grantLookup) fromCache(ctx context.Context, recipientID uuid.UUID) ([]models.GrantInfo, bool) {
	if l.client == nil {
		return nil, false
	}

	data, err := l.client.Get(ctx, grantCacheKey(recipientID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			l.logger.Warn("Grant cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var cached []cachedGrantInfo
	if err := json.Unmarshal(data, &cached); err != nil {
		l.logger.Warn("Grant cache entry corrupt, dropping", zap.Error(err))
		l.Invalidate(ctx, recipientID)
		return nil, false
	}

	grants := make([]models.GrantInfo, len(cached))
	for i, c := range cached {
		grants[i] = models.GrantInfo{
			OwnerID:       c.OwnerID,
			OwnerIdentity: c.OwnerIdentity,
			Permission:    c.Permission,
			AcceptedAt:    c.AcceptedAt,
		}
	}
	return grants, true
}

func (l *grantLookup) store(ctx context.Context, recipientID uuid.UUID, grants []models.GrantInfo) {
	if l.client == nil {
		return
	}

	cached := make([]cachedGrantInfo, len(grants))
	for i, g := range grants {
		cached[i] = cachedGrantInfo{
			OwnerID:       g.OwnerID,
			OwnerIdentity: g.OwnerIdentity,
			Permission:    g.Permission,
			AcceptedAt:    g.AcceptedAt,
		}
	}

	data, err := json.Marshal(cached)
	if err != nil {
		l.logger.Warn("Failed to marshal grant cache entry", zap.Error(err))
		return
	}

	if err := l.client.Set(ctx, grantCacheKey(recipientID), data, l.ttl).Err(); err != nil {
		l.logger.Warn("Grant cache write failed", zap.Error(err))
	}
}
