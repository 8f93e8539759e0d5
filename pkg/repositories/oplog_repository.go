package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/folio-inc/folio-sync/pkg/database"
	"github.com/folio-inc/folio-sync/pkg/models"
)

// OplogRepository provides access to the append-only operation log.
// Entries are only ever inserted; nothing updates or deletes them, and the
// sync engine never reads them for conflict decisions.
type OplogRepository interface {
	// Append inserts one log entry.
	Append(ctx context.Context, entry *models.OperationLogEntry) error

	// ListByRecord returns a record's operation history, newest first.
	ListByRecord(ctx context.Context, recordID uuid.UUID, limit int) ([]*models.OperationLogEntry, error)

	// ListByUser returns the operations performed by a user, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.OperationLogEntry, error)
}

// oplogRepository implements OplogRepository using PostgreSQL.
type oplogRepository struct{}

// NewOplogRepository creates a new operation log repository.
func NewOplogRepository() OplogRepository {
	return &oplogRepository{}
}

var _ OplogRepository = (*oplogRepository)(nil)

func (r *oplogRepository) Append(ctx context.Context, entry *models.OperationLogEntry) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO folio_oplog (user_id, operation, record_id, version, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := scope.Conn.QueryRow(ctx, query,
		entry.UserID,
		entry.Operation,
		entry.RecordID,
		entry.Version,
		entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to append oplog entry: %w", err)
	}

	return nil
}

func (r *oplogRepository) ListByRecord(ctx context.Context, recordID uuid.UUID, limit int) ([]*models.OperationLogEntry, error) {
	return r.list(ctx, `record_id`, recordID, limit)
}

func (r *oplogRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.OperationLogEntry, error) {
	return r.list(ctx, `user_id`, userID, limit)
}

func (r *oplogRepository) list(ctx context.Context, column string, id uuid.UUID, limit int) ([]*models.OperationLogEntry, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT id, user_id, operation, record_id, version, created_at
		FROM folio_oplog
		WHERE ` + column + ` = $1
		ORDER BY id DESC
		LIMIT $2`

	rows, err := scope.Conn.Query(ctx, query, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query oplog: %w", err)
	}
	defer rows.Close()

	var entries []*models.OperationLogEntry
	for rows.Next() {
		var entry models.OperationLogEntry
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Operation, &entry.RecordID, &entry.Version, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan oplog entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating oplog entries: %w", err)
	}

	return entries, nil
}
