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

// GrantRepository defines the interface for access grant data access.
// At most one active grant exists per (owner, recipient) pair; the table
// enforces this with a partial unique index over non-revoked rows.
type GrantRepository interface {
	// Create inserts a pending invitation. Returns apperrors.ErrGrantExists
	// if a non-revoked grant already targets the same recipient email.
	Create(ctx context.Context, grant *models.AccessGrant) error

	// GetByToken looks up an invitation by its token.
	GetByToken(ctx context.Context, token uuid.UUID) (*models.AccessGrant, error)

	// GetByID looks up a grant by its id.
	GetByID(ctx context.Context, id uuid.UUID) (*models.AccessGrant, error)

	// Accept binds the recipient to a pending grant and stamps accepted_at,
	// making the grant visible to pull. Returns apperrors.ErrGrantNotPending
	// if the grant was already accepted or revoked, apperrors.ErrGrantExists
	// if the pair already has an active grant.
	Accept(ctx context.Context, token, recipientID uuid.UUID, recipientEmail string) (*models.AccessGrant, error)

	// Revoke marks an owner's grant revoked; revoked grants disappear from
	// every active-grant query. Returns apperrors.ErrGrantNotFound if the
	// grant does not exist or belongs to another owner.
	Revoke(ctx context.Context, ownerID, grantID uuid.UUID) error

	// ActiveForRecipient returns the sharing summary of every accepted,
	// non-revoked grant naming the user as recipient.
	ActiveForRecipient(ctx context.Context, recipientID uuid.UUID) ([]models.GrantInfo, error)

	// ActivePermission returns the permission an active grant gives
	// recipient over owner's records, or "" if no active grant exists.
	ActivePermission(ctx context.Context, ownerID, recipientID uuid.UUID) (models.Permission, error)

	// ListForUser returns all grants where the user is owner or recipient,
	// newest first. Revoked grants are included so clients can render history.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.AccessGrant, error)
}

// grantRepository implements GrantRepository using PostgreSQL.
type grantRepository struct{}

// NewGrantRepository creates a new grant repository.
func NewGrantRepository() GrantRepository {
	return &grantRepository{}
}

var _ GrantRepository = (*grantRepository)(nil)

const grantColumns = `id, owner_id, owner_email, recipient_id, recipient_email, permission, token, created_at, accepted_at, revoked_at`

func (r *grantRepository) Create(ctx context.Context, grant *models.AccessGrant) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	if grant.ID == uuid.Nil {
		grant.ID = uuid.New()
	}
	if grant.Token == uuid.Nil {
		grant.Token = uuid.New()
	}
	grant.CreatedAt = time.Now().UTC()

	// The pending invitation is keyed by email; duplicates against either a
	// pending or accepted grant for the same target are rejected.
	var exists bool
	err := scope.Conn.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM folio_grants
			WHERE owner_id = $1 AND recipient_email = $2 AND revoked_at IS NULL
		)`, grant.OwnerID, grant.RecipientEmail).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check existing grant: %w", err)
	}
	if exists {
		return apperrors.ErrGrantExists
	}

	query := `
		INSERT INTO folio_grants (
			id, owner_id, owner_email, recipient_email, permission, token, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = scope.Conn.Exec(ctx, query,
		grant.ID,
		grant.OwnerID,
		grant.OwnerEmail,
		grant.RecipientEmail,
		grant.Permission,
		grant.Token,
		grant.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create grant: %w", err)
	}

	return nil
}

func (r *grantRepository) GetByToken(ctx context.Context, token uuid.UUID) (*models.AccessGrant, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + grantColumns + ` FROM folio_grants WHERE token = $1`

	grant, err := scanGrant(scope.Conn.QueryRow(ctx, query, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrGrantNotFound
		}
		return nil, fmt.Errorf("failed to query grant: %w", err)
	}
	return grant, nil
}

func (r *grantRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AccessGrant, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + grantColumns + ` FROM folio_grants WHERE id = $1`

	grant, err := scanGrant(scope.Conn.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrGrantNotFound
		}
		return nil, fmt.Errorf("failed to query grant: %w", err)
	}
	return grant, nil
}

func (r *grantRepository) Accept(ctx context.Context, token, recipientID uuid.UUID, recipientEmail string) (*models.AccessGrant, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	now := time.Now().UTC()

	query := `
		UPDATE folio_grants
		SET recipient_id = $1, recipient_email = $2, accepted_at = $3
		WHERE token = $4 AND accepted_at IS NULL AND revoked_at IS NULL
		RETURNING ` + grantColumns

	grant, err := scanGrant(scope.Conn.QueryRow(ctx, query, recipientID, recipientEmail, now, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish an unknown token from one that was already used.
			var exists bool
			checkErr := scope.Conn.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM folio_grants WHERE token = $1)`, token).Scan(&exists)
			if checkErr != nil {
				return nil, fmt.Errorf("failed to check grant token: %w", checkErr)
			}
			if !exists {
				return nil, apperrors.ErrGrantNotFound
			}
			return nil, apperrors.ErrGrantNotPending
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, apperrors.ErrGrantExists
		}
		return nil, fmt.Errorf("failed to accept grant: %w", err)
	}

	return grant, nil
}

func (r *grantRepository) Revoke(ctx context.Context, ownerID, grantID uuid.UUID) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	result, err := scope.Conn.Exec(ctx, `
		UPDATE folio_grants
		SET revoked_at = $1
		WHERE id = $2 AND owner_id = $3 AND revoked_at IS NULL`,
		time.Now().UTC(), grantID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to revoke grant: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrGrantNotFound
	}
	return nil
}

func (r *grantRepository) ActiveForRecipient(ctx context.Context, recipientID uuid.UUID) ([]models.GrantInfo, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT owner_id, owner_email, permission, accepted_at
		FROM folio_grants
		WHERE recipient_id = $1 AND accepted_at IS NOT NULL AND revoked_at IS NULL
		ORDER BY accepted_at ASC`

	rows, err := scope.Conn.Query(ctx, query, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active grants: %w", err)
	}
	defer rows.Close()

	var grants []models.GrantInfo
	for rows.Next() {
		var info models.GrantInfo
		if err := rows.Scan(&info.OwnerID, &info.OwnerIdentity, &info.Permission, &info.AcceptedAt); err != nil {
			return nil, fmt.Errorf("failed to scan grant info: %w", err)
		}
		grants = append(grants, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active grants: %w", err)
	}

	return grants, nil
}

func (r *grantRepository) ActivePermission(ctx context.Context, ownerID, recipientID uuid.UUID) (models.Permission, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return "", fmt.Errorf("no database scope in context")
	}

	var permission models.Permission
	err := scope.Conn.QueryRow(ctx, `
		SELECT permission
		FROM folio_grants
		WHERE owner_id = $1 AND recipient_id = $2
		  AND accepted_at IS NOT NULL AND revoked_at IS NULL`,
		ownerID, recipientID).Scan(&permission)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to query grant permission: %w", err)
	}
	return permission, nil
}

func (r *grantRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.AccessGrant, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT ` + grantColumns + `
		FROM folio_grants
		WHERE owner_id = $1 OR recipient_id = $1
		ORDER BY created_at DESC`

	rows, err := scope.Conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query grants: %w", err)
	}
	defer rows.Close()

	var grants []*models.AccessGrant
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grants: %w", err)
	}

	return grants, nil
}

// scanGrant scans a single row into an AccessGrant.
func scanGrant(row pgx.Row) (*models.AccessGrant, error) {
	var grant models.AccessGrant
	err := row.Scan(
		&grant.ID,
		&grant.OwnerID,
		&grant.OwnerEmail,
		&grant.RecipientID,
		&grant.RecipientEmail,
		&grant.Permission,
		&grant.Token,
		&grant.CreatedAt,
		&grant.AcceptedAt,
		&grant.RevokedAt,
	)
	if err != nil {
		return nil, err
	}
	return &grant, nil
}
