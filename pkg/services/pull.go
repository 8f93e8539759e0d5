package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/folio-inc/folio-sync/pkg/config"
	"github.com/folio-inc/folio-sync/pkg/models"
	"github.com/folio-inc/folio-sync/pkg/repositories"
)

// PullRequest is the client's sync-down request. A nil cursor asks for a
// full snapshot; otherwise the cursor is the updated_at watermark the client
// last synchronized through.
type PullRequest struct {
	Cursor *time.Time
	Limit  int
	Offset int
}

// PullService answers "what changed" for a client: the actor's own records
// (paginated snapshot or delta) merged with the foreign records visible
// through accepted grants.
type PullService interface {
	Pull(ctx context.Context, actor uuid.UUID, req PullRequest) (*models.PullResult, error)
}

type pullService struct {
	records  repositories.RecordRepository
	grants   GrantLookup
	pageSize int
	pageMax  int
	logger   *zap.Logger
}

// NewPullService creates a new pull service.
func NewPullService(records repositories.RecordRepository, grants GrantLookup, cfg *config.SyncConfig, logger *zap.Logger) PullService {
	return &pullService{
		records:  records,
		grants:   grants,
		pageSize: cfg.DefaultPageSize,
		pageMax:  cfg.MaxPageSize,
		logger:   logger.Named("pull"),
	}
}

var _ PullService = (*pullService)(nil)

func (s *pullService) Pull(ctx context.Context, actor uuid.UUID, req PullRequest) (*models.PullResult, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = s.pageSize
	}
	if limit > s.pageMax {
		limit = s.pageMax
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	serverTime := time.Now().UTC()

	total, err := s.records.CountOwned(ctx, actor, req.Cursor)
	if err != nil {
		return nil, err
	}

	own, err := s.records.ListOwned(ctx, actor, req.Cursor, limit, offset)
	if err != nil {
		return nil, err
	}

	grants, err := s.grants.ActiveForRecipient(ctx, actor)
	if err != nil {
		return nil, err
	}

	result := &models.PullResult{
		Records:      own,
		ServerTime:   serverTime,
		Total:        total,
		HasMore:      offset+len(own) < total,
		ActiveGrants: grants,
	}
	if result.ActiveGrants == nil {
		result.ActiveGrants = []models.GrantInfo{}
	}

	// Shared records ride along on the first page only and are never
	// paginated: a foreign delta must reach the client in one piece or
	// updates could be silently skipped by cursor advancement.
	if offset == 0 && len(grants) > 0 {
		shared, err := s.collectShared(ctx, grants, req.Cursor)
		if err != nil {
			return nil, err
		}
		result.Records = append(result.Records, shared...)
	}

	if result.Records == nil {
		result.Records = []*models.Record{}
	}
	result.Count = len(result.Records)

	s.logger.Debug("Pull served",
		zap.String("actor", actor.String()),
		zap.Bool("snapshot", req.Cursor == nil),
		zap.Int("own", len(own)),
		zap.Int("total", result.Count),
		zap.Int("grants", len(grants)))

	return result, nil
}

// collectShared partitions grant owners into newly-accepted ones (the client
// has never seen their library, so it gets the full non-deleted set) and
// previously-known ones (delta only, tombstones included). With no cursor
// every owner counts as newly accepted.
func (s *pullService) collectShared(ctx context.Context, grants []models.GrantInfo, cursor *time.Time) ([]*models.Record, error) {
	byOwner := make(map[uuid.UUID]models.GrantInfo, len(grants))
	var newOwners, knownOwners []uuid.UUID
	for _, g := range grants {
		byOwner[g.OwnerID] = g
		if cursor == nil || g.AcceptedAt.After(*cursor) {
			newOwners = append(newOwners, g.OwnerID)
		} else {
			knownOwners = append(knownOwners, g.OwnerID)
		}
	}

	var shared []*models.Record

	full, err := s.records.ListAllForOwners(ctx, newOwners)
	if err != nil {
		return nil, err
	}
	shared = append(shared, full...)

	if cursor != nil && len(knownOwners) > 0 {
		delta, err := s.records.ListChangedForOwners(ctx, knownOwners, *cursor)
		if err != nil {
			return nil, err
		}
		shared = append(shared, delta...)
	}

	for _, record := range shared {
		grant := byOwner[record.OwnerID]
		record.IsShared = true
		record.OwnerIdentity = grant.OwnerIdentity
		record.SharedPermission = grant.Permission
	}

	return shared, nil
}
