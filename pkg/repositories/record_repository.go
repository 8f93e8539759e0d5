package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/folio-inc/folio-sync/pkg/apperrors"
	"github.com/folio-inc/folio-sync/pkg/database"
	"github.com/folio-inc/folio-sync/pkg/models"
)

// RecordRepository defines the interface for record data access.
//
// The write path enforces the optimistic-concurrency invariant: version is
// bumped by exactly 1 per successful mutation and no two writes can observe
// the same pre-write version (compare-and-increment in SQL).
type RecordRepository interface {
	// GetByID returns a record including tombstones. Returns
	// apperrors.ErrNotFound if no row exists.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Record, error)

	// Insert creates a record with version 1. Returns
	// apperrors.ErrAlreadyExists if the id is taken.
	Insert(ctx context.Context, record *models.Record) error

	// UpdateCAS applies a compare-and-increment write: the update succeeds
	// only if the stored version equals record.Version. On success the
	// record's Version and UpdatedAt are refreshed in place. Returns
	// apperrors.ErrVersionMismatch when another writer got there first and
	// apperrors.ErrNotFound when the row does not exist.
	UpdateCAS(ctx context.Context, record *models.Record) error

	// SoftDelete tombstones a record without a version check (last delete
	// wins). Returns the post-delete version. A record that is already a
	// tombstone is left untouched and reported with alreadyDeleted=true so
	// delete retries stay idempotent.
	SoftDelete(ctx context.Context, id uuid.UUID) (version int64, alreadyDeleted bool, err error)

	// CountOwned counts the caller's own sync set: non-deleted records when
	// since is nil (snapshot), records changed after since otherwise
	// (tombstones included in the delta).
	CountOwned(ctx context.Context, ownerID uuid.UUID, since *time.Time) (int, error)

	// ListOwned pages through the caller's own sync set, ordered by
	// updated_at ascending. Same snapshot/delta semantics as CountOwned.
	ListOwned(ctx context.Context, ownerID uuid.UUID, since *time.Time, limit, offset int) ([]*models.Record, error)

	// ListAllForOwners returns the complete non-deleted record set of the
	// given owners. Used when a grant was newly accepted and the recipient
	// has never seen the owner's library.
	ListAllForOwners(ctx context.Context, ownerIDs []uuid.UUID) ([]*models.Record, error)

	// ListChangedForOwners returns records of the given owners changed after
	// since, tombstones included, so deletions propagate to grant holders.
	ListChangedForOwners(ctx context.Context, ownerIDs []uuid.UUID, since time.Time) ([]*models.Record, error)
}

// recordRepository implements RecordRepository using PostgreSQL.
type recordRepository struct{}

// NewRecordRepository creates a new record repository.
func NewRecordRepository() RecordRepository {
	return &recordRepository{}
}

var _ RecordRepository = (*recordRepository)(nil)

const recordColumns = `id, owner_id, title, content, category, keywords, is_favorite, embedding, created_at, updated_at, deleted_at, version`

func (r *recordRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Record, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + recordColumns + ` FROM folio_records WHERE id = $1`

	record, err := scanRecord(scope.Conn.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query record: %w", err)
	}
	return record, nil
}

func (r *recordRepository) Insert(ctx context.Context, record *models.Record) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	record.Version = 1

	query := `
		INSERT INTO folio_records (
			id, owner_id, title, content, category, keywords, is_favorite, embedding, created_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := scope.Conn.Exec(ctx, query,
		record.ID,
		record.OwnerID,
		record.Title,
		record.Content,
		record.Category,
		record.Keywords,
		record.IsFavorite,
		record.Embedding,
		record.CreatedAt,
		record.UpdatedAt,
		record.Version,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert record: %w", err)
	}

	return nil
}

func (r *recordRepository) UpdateCAS(ctx context.Context, record *models.Record) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	now := time.Now().UTC()

	// The WHERE clause on version is the whole concurrency story: exactly
	// one writer can match a given pre-write version.
	query := `
		UPDATE folio_records
		SET title = $1, content = $2, category = $3, keywords = $4,
		    is_favorite = $5, embedding = $6, updated_at = $7,
		    version = version + 1
		WHERE id = $8 AND version = $9
		RETURNING version`

	var newVersion int64
	err := scope.Conn.QueryRow(ctx, query,
		record.Title,
		record.Content,
		record.Category,
		record.Keywords,
		record.IsFavorite,
		record.Embedding,
		now,
		record.ID,
		record.Version,
	).Scan(&newVersion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a missing row from a stale version.
			var exists bool
			checkErr := scope.Conn.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM folio_records WHERE id = $1)`, record.ID).Scan(&exists)
			if checkErr != nil {
				return fmt.Errorf("failed to check record existence: %w", checkErr)
			}
			if !exists {
				return apperrors.ErrNotFound
			}
			return apperrors.ErrVersionMismatch
		}
		return fmt.Errorf("failed to update record: %w", err)
	}

	record.Version = newVersion
	record.UpdatedAt = now
	return nil
}

func (r *recordRepository) SoftDelete(ctx context.Context, id uuid.UUID) (int64, bool, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return 0, false, fmt.Errorf("no database scope in context")
	}

	now := time.Now().UTC()

	query := `
		UPDATE folio_records
		SET deleted_at = $1, updated_at = $1, version = version + 1
		WHERE id = $2 AND deleted_at IS NULL
		RETURNING version`

	var version int64
	err := scope.Conn.QueryRow(ctx, query, now, id).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the row is gone or it is already a tombstone.
			var existing int64
			checkErr := scope.Conn.QueryRow(ctx,
				`SELECT version FROM folio_records WHERE id = $1`, id).Scan(&existing)
			if checkErr != nil {
				if errors.Is(checkErr, pgx.ErrNoRows) {
					return 0, false, apperrors.ErrNotFound
				}
				return 0, false, fmt.Errorf("failed to check tombstone: %w", checkErr)
			}
			return existing, true, nil
		}
		return 0, false, fmt.Errorf("failed to delete record: %w", err)
	}

	return version, false, nil
}

func (r *recordRepository) CountOwned(ctx context.Context, ownerID uuid.UUID, since *time.Time) (int, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no database scope in context")
	}

	var count int
	var err error
	if since == nil {
		err = scope.Conn.QueryRow(ctx,
			`SELECT COUNT(*) FROM folio_records WHERE owner_id = $1 AND deleted_at IS NULL`,
			ownerID).Scan(&count)
	} else {
		err = scope.Conn.QueryRow(ctx,
			`SELECT COUNT(*) FROM folio_records WHERE owner_id = $1 AND updated_at > $2`,
			ownerID, *since).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

func (r *recordRepository) ListOwned(ctx context.Context, ownerID uuid.UUID, since *time.Time, limit, offset int) ([]*models.Record, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	var rows pgx.Rows
	var err error
	if since == nil {
		query := `
			SELECT ` + recordColumns + `
			FROM folio_records
			WHERE owner_id = $1 AND deleted_at IS NULL
			ORDER BY updated_at ASC, id ASC
			LIMIT $2 OFFSET $3`
		rows, err = scope.Conn.Query(ctx, query, ownerID, limit, offset)
	} else {
		query := `
			SELECT ` + recordColumns + `
			FROM folio_records
			WHERE owner_id = $1 AND updated_at > $2
			ORDER BY updated_at ASC, id ASC
			LIMIT $3 OFFSET $4`
		rows, err = scope.Conn.Query(ctx, query, ownerID, *since, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

func (r *recordRepository) ListAllForOwners(ctx context.Context, ownerIDs []uuid.UUID) ([]*models.Record, error) {
	if len(ownerIDs) == 0 {
		return nil, nil
	}

	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT ` + recordColumns + `
		FROM folio_records
		WHERE owner_id = ANY($1) AND deleted_at IS NULL
		ORDER BY updated_at ASC, id ASC`

	rows, err := scope.Conn.Query(ctx, query, ownerIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query shared records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

func (r *recordRepository) ListChangedForOwners(ctx context.Context, ownerIDs []uuid.UUID, since time.Time) ([]*models.Record, error) {
	if len(ownerIDs) == 0 {
		return nil, nil
	}

	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT ` + recordColumns + `
		FROM folio_records
		WHERE owner_id = ANY($1) AND updated_at > $2
		ORDER BY updated_at ASC, id ASC`

	rows, err := scope.Conn.Query(ctx, query, ownerIDs, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query shared record delta: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// scanRecord scans a single row into a Record.
func scanRecord(row pgx.Row) (*models.Record, error) {
	var record models.Record
	err := row.Scan(
		&record.ID,
		&record.OwnerID,
		&record.Title,
		&record.Content,
		&record.Category,
		&record.Keywords,
		&record.IsFavorite,
		&record.Embedding,
		&record.CreatedAt,
		&record.UpdatedAt,
		&record.DeletedAt,
		&record.Version,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// collectRecords drains rows into a slice.
func collectRecords(rows pgx.Rows) ([]*models.Record, error) {
	var records []*models.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}
