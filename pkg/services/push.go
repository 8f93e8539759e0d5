package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/folio-inc/folio-sync/pkg/apperrors"
	"github.com/folio-inc/folio-sync/pkg/audit"
	"github.com/folio-inc/folio-sync/pkg/database"
	"github.com/folio-inc/folio-sync/pkg/models"
	"github.com/folio-inc/folio-sync/pkg/repositories"
	"github.com/folio-inc/folio-sync/pkg/retry"
)

// PushService applies a client's batch of mutations. The batch runs inside
// one transaction so record rows and operation log rows land together, but
// each operation succeeds or conflicts on its own.
type PushService interface {
	Push(ctx context.Context, actor uuid.UUID, ops []models.PushOperation) (*models.PushResult, error)
}

type pushService struct {
	records  repositories.RecordRepository
	grants   GrantLookup
	oplog    repositories.OplogRepository
	auditor  *audit.SecurityAuditor
	maxBatch int
	logger   *zap.Logger
}

// NewPushService creates a new push service.
func NewPushService(records repositories.RecordRepository, grants GrantLookup, oplog repositories.OplogRepository, auditor *audit.SecurityAuditor, maxBatch int, logger *zap.Logger) PushService {
	return &pushService{
		records:  records,
		grants:   grants,
		oplog:    oplog,
		auditor:  auditor,
		maxBatch: maxBatch,
		logger:   logger.Named("push"),
	}
}

var _ PushService = (*pushService)(nil)

func (s *pushService) Push(ctx context.Context, actor uuid.UUID, ops []models.PushOperation) (*models.PushResult, error) {
	if len(ops) > s.maxBatch {
		s.auditor.LogMalformedBatch(actor, fmt.Sprintf("batch of %d exceeds limit %d", len(ops), s.maxBatch))
		return nil, apperrors.ErrBatchTooLarge
	}
	for i, op := range ops {
		if op.Record == nil || op.Record.ID == uuid.Nil {
			s.auditor.LogMalformedBatch(actor, fmt.Sprintf("operation %d has no record id", i))
			return nil, apperrors.ErrMalformedBatch
		}
		switch op.Type {
		case models.OpCreate, models.OpUpdate, models.OpDelete:
		default:
			s.auditor.LogMalformedBatch(actor, fmt.Sprintf("operation %d has unknown type %q", i, op.Type))
			return nil, apperrors.ErrMalformedBatch
		}
	}

	var result *models.PushResult
	err := retry.DoIfRetryable(ctx, retry.DefaultConfig(), func() error {
		var err error
		result, err = s.pushTx(ctx, actor, ops)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Push applied",
		zap.String("actor", actor.String()),
		zap.Int("ops", len(ops)),
		zap.Int("created", len(result.Created)),
		zap.Int("updated", len(result.Updated)),
		zap.Int("deleted", len(result.Deleted)),
		zap.Int("conflicts", len(result.Conflicts)))

	return result, nil
}

func (s *pushService) pushTx(ctx context.Context, actor uuid.UUID, ops []models.PushOperation) (*models.PushResult, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	tx, err := scope.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin push transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	txCtx := database.SetScope(ctx, database.NewTxScope(tx))

	result := &models.PushResult{
		Created:   []uuid.UUID{},
		Updated:   []uuid.UUID{},
		Deleted:   []uuid.UUID{},
		Conflicts: []models.Conflict{},
	}

	for _, op := range ops {
		if err := s.apply(txCtx, actor, op, result); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit push transaction: %w", err)
	}

	return result, nil
}

// apply executes one operation. Conflicts are recorded on the result;
// a returned error aborts the whole batch.
func (s *pushService) apply(ctx context.Context, actor uuid.UUID, op models.PushOperation, result *models.PushResult) error {
	switch op.Type {
	case models.OpCreate:
		return s.applyCreate(ctx, actor, op.Record, result)
	case models.OpUpdate:
		return s.applyUpdate(ctx, actor, op.Record, result)
	case models.OpDelete:
		return s.applyDelete(ctx, actor, op.Record, result)
	}
	return fmt.Errorf("unknown operation type %q", op.Type)
}

func (s *pushService) applyCreate(ctx context.Context, actor uuid.UUID, record *models.Record, result *models.PushResult) error {
	record.OwnerID = actor
	if err := s.records.Insert(ctx, record); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			result.Conflicts = append(result.Conflicts, models.Conflict{
				ID:     record.ID,
				Reason: models.ConflictAlreadyExists,
			})
			return nil
		}
		return err
	}

	if err := s.logOp(ctx, actor, models.OpCreate, record.ID, record.Version); err != nil {
		return err
	}
	result.Created = append(result.Created, record.ID)
	return nil
}

func (s *pushService) applyUpdate(ctx context.Context, actor uuid.UUID, record *models.Record, result *models.PushResult) error {
	stored, allowed, err := s.authorize(ctx, actor, record.ID, models.OpUpdate)
	if err != nil {
		return err
	}
	if !allowed {
		result.Conflicts = append(result.Conflicts, models.Conflict{
			ID:     record.ID,
			Reason: models.ConflictNoPermission,
		})
		return nil
	}

	if outcome := ResolveVersion(stored.Version, record.Version); !outcome.Applied {
		result.Conflicts = append(result.Conflicts, versionConflict(record.ID, record.Version, outcome.ServerVersion))
		return nil
	}

	// The update itself can still lose a race inside this transaction's
	// snapshot; treat a CAS miss the same as a stale pre-check.
	if err := s.records.UpdateCAS(ctx, record); err != nil {
		if errors.Is(err, apperrors.ErrVersionMismatch) {
			current, readErr := s.records.GetByID(ctx, record.ID)
			if readErr != nil {
				return readErr
			}
			result.Conflicts = append(result.Conflicts, versionConflict(record.ID, record.Version, current.Version))
			return nil
		}
		if errors.Is(err, apperrors.ErrNotFound) {
			result.Conflicts = append(result.Conflicts, models.Conflict{
				ID:     record.ID,
				Reason: models.ConflictNoPermission,
			})
			return nil
		}
		return err
	}

	if err := s.logOp(ctx, actor, models.OpUpdate, record.ID, record.Version); err != nil {
		return err
	}
	result.Updated = append(result.Updated, record.ID)
	return nil
}

func (s *pushService) applyDelete(ctx context.Context, actor uuid.UUID, record *models.Record, result *models.PushResult) error {
	_, allowed, err := s.authorize(ctx, actor, record.ID, models.OpDelete)
	if err != nil {
		return err
	}
	if !allowed {
		result.Conflicts = append(result.Conflicts, models.Conflict{
			ID:     record.ID,
			Reason: models.ConflictNoPermission,
		})
		return nil
	}

	// Deletes carry no version check: the last delete wins even over a
	// concurrent edit, and deleting a tombstone is reported as deleted.
	version, alreadyDeleted, err := s.records.SoftDelete(ctx, record.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			result.Conflicts = append(result.Conflicts, models.Conflict{
				ID:     record.ID,
				Reason: models.ConflictNoPermission,
			})
			return nil
		}
		return err
	}

	if !alreadyDeleted {
		if err := s.logOp(ctx, actor, models.OpDelete, record.ID, version); err != nil {
			return err
		}
	}
	result.Deleted = append(result.Deleted, record.ID)
	return nil
}

// authorize loads the stored record and decides whether the actor may write
// it: owners always may, grant recipients need an edit grant from the owner.
// A missing record reads as not allowed so foreign callers cannot probe for
// record existence.
func (s *pushService) authorize(ctx context.Context, actor, recordID uuid.UUID, operation string) (*models.Record, bool, error) {
	stored, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	if stored.OwnerID == actor {
		return stored, true, nil
	}

	permission, err := s.grants.ActivePermission(ctx, stored.OwnerID, actor)
	if err != nil {
		return nil, false, err
	}
	if permission == models.PermissionEdit {
		return stored, true, nil
	}

	s.auditor.LogPermissionDenied(actor, audit.PermissionDeniedDetails{
		RecordID:  recordID,
		OwnerID:   stored.OwnerID,
		Operation: operation,
	})
	return nil, false, nil
}

func (s *pushService) logOp(ctx context.Context, actor uuid.UUID, operation string, recordID uuid.UUID, version int64) error {
	return s.oplog.Append(ctx, &models.OperationLogEntry{
		UserID:    actor,
		Operation: operation,
		RecordID:  recordID,
		Version:   version,
	})
}

func versionConflict(id uuid.UUID, clientVersion, serverVersion int64) models.Conflict {
	return models.Conflict{
		ID:            id,
		Reason:        models.ConflictVersionMismatch,
		ClientVersion: &clientVersion,
		ServerVersion: &serverVersion,
	}
}
