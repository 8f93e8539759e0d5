package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/folio-inc/folio-sync/pkg/apperrors"
	"github.com/folio-inc/folio-sync/pkg/models"
	"github.com/folio-inc/folio-sync/pkg/repositories"
)

const defaultHistoryLimit = 50

// HistoryService reads the append-only operation log for a record. Visible
// to the record's owner and to recipients holding any active grant from the
// owner; view access suffices since history is read-only.
type HistoryService interface {
	RecordHistory(ctx context.Context, actor, recordID uuid.UUID, limit int) ([]*models.OperationLogEntry, error)
}

type historyService struct {
	records repositories.RecordRepository
	grants  GrantLookup
	oplog   repositories.OplogRepository
	logger  *zap.Logger
}

// NewHistoryService creates a new history service.
func NewHistoryService(records repositories.RecordRepository, grants GrantLookup, oplog repositories.OplogRepository, logger *zap.Logger) HistoryService {
	return &historyService{
		records: records,
		grants:  grants,
		oplog:   oplog,
		logger:  logger.Named("history"),
	}
}

var _ HistoryService = (*historyService)(nil)

func (s *historyService) RecordHistory(ctx context.Context, actor, recordID uuid.UUID, limit int) ([]*models.OperationLogEntry, error) {
	if limit <= 0 || limit > defaultHistoryLimit {
		limit = defaultHistoryLimit
	}

	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Same shape as a permission failure so callers cannot probe
			// for foreign record ids.
			return nil, apperrors.ErrNoPermission
		}
		return nil, err
	}

	if record.OwnerID != actor {
		permission, err := s.grants.ActivePermission(ctx, record.OwnerID, actor)
		if err != nil {
			return nil, err
		}
		if permission == "" {
			return nil, apperrors.ErrNoPermission
		}
	}

	entries, err := s.oplog.ListByRecord(ctx, recordID, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*models.OperationLogEntry{}
	}
	return entries, nil
}
