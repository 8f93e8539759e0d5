package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/folio-inc/folio-sync/pkg/apperrors"
	"github.com/folio-inc/folio-sync/pkg/models"
)

// mockRecordRepository is an in-memory RecordRepository keyed by record id.
// It mirrors the SQL write semantics: version starts at 1, updates are
// compare-and-increment, deletes win unconditionally.
type mockRecordRepository struct {
	records map[uuid.UUID]*models.Record
	err     error
}

func newMockRecordRepository() *mockRecordRepository {
	return &mockRecordRepository{records: make(map[uuid.UUID]*models.Record)}
}

func (m *mockRecordRepository) add(record *models.Record) *models.Record {
	if record.Version == 0 {
		record.Version = 1
	}
	m.records[record.ID] = record
	return record
}

func (m *mockRecordRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	record, ok := m.records[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (m *mockRecordRepository) Insert(ctx context.Context, record *models.Record) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.records[record.ID]; ok {
		return apperrors.ErrAlreadyExists
	}
	record.Version = 1
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	clone := *record
	m.records[record.ID] = &clone
	return nil
}

func (m *mockRecordRepository) UpdateCAS(ctx context.Context, record *models.Record) error {
	if m.err != nil {
		return m.err
	}
	stored, ok := m.records[record.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if stored.Version != record.Version {
		return apperrors.ErrVersionMismatch
	}
	record.Version = stored.Version + 1
	record.UpdatedAt = time.Now().UTC()
	clone := *record
	clone.OwnerID = stored.OwnerID
	m.records[record.ID] = &clone
	return nil
}

func (m *mockRecordRepository) SoftDelete(ctx context.Context, id uuid.UUID) (int64, bool, error) {
	if m.err != nil {
		return 0, false, m.err
	}
	stored, ok := m.records[id]
	if !ok {
		return 0, false, apperrors.ErrNotFound
	}
	if stored.DeletedAt != nil {
		return stored.Version, true, nil
	}
	now := time.Now().UTC()
	stored.DeletedAt = &now
	stored.UpdatedAt = now
	stored.Version++
	return stored.Version, false, nil
}

func (m *mockRecordRepository) CountOwned(ctx context.Context, ownerID uuid.UUID, since *time.Time) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	records, err := m.ListOwned(ctx, ownerID, since, len(m.records)+1, 0)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func (m *mockRecordRepository) ListOwned(ctx context.Context, ownerID uuid.UUID, since *time.Time, limit, offset int) ([]*models.Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	matched := m.sorted(func(r *models.Record) bool {
		if r.OwnerID != ownerID {
			return false
		}
		if since == nil {
			return r.DeletedAt == nil
		}
		return r.UpdatedAt.After(*since)
	})
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *mockRecordRepository) ListAllForOwners(ctx context.Context, ownerIDs []uuid.UUID) ([]*models.Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.sorted(func(r *models.Record) bool {
		return containsOwner(ownerIDs, r.OwnerID) && r.DeletedAt == nil
	}), nil
}

func (m *mockRecordRepository) ListChangedForOwners(ctx context.Context, ownerIDs []uuid.UUID, since time.Time) ([]*models.Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.sorted(func(r *models.Record) bool {
		return containsOwner(ownerIDs, r.OwnerID) && r.UpdatedAt.After(since)
	}), nil
}

// sorted returns clones of matching records ordered by updated_at ascending,
// the repository's contractual order.
func (m *mockRecordRepository) sorted(match func(*models.Record) bool) []*models.Record {
	var out []*models.Record
	for _, record := range m.records {
		if match(record) {
			clone := *record
			out = append(out, &clone)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].UpdatedAt.Before(out[j-1].UpdatedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func containsOwner(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// mockGrantLookup is a canned-answer GrantLookup that records invalidations.
type mockGrantLookup struct {
	grants      []models.GrantInfo
	err         error
	invalidated []uuid.UUID
}

func (m *mockGrantLookup) ActiveForRecipient(ctx context.Context, recipientID uuid.UUID) ([]models.GrantInfo, error) {
	return m.grants, m.err
}

func (m *mockGrantLookup) ActivePermission(ctx context.Context, ownerID, recipientID uuid.UUID) (models.Permission, error) {
	if m.err != nil {
		return "", m.err
	}
	for _, g := range m.grants {
		if g.OwnerID == ownerID {
			return g.Permission, nil
		}
	}
	return "", nil
}

func (m *mockGrantLookup) Invalidate(ctx context.Context, recipientID uuid.UUID) {
	m.invalidated = append(m.invalidated, recipientID)
}

// mockOplogRepository appends into a slice.
type mockOplogRepository struct {
	entries []*models.OperationLogEntry
	err     error
}

func (m *mockOplogRepository) Append(ctx context.Context, entry *models.OperationLogEntry) error {
	if m.err != nil {
		return m.err
	}
	entry.ID = int64(len(m.entries) + 1)
	entry.CreatedAt = time.Now().UTC()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockOplogRepository) ListByRecord(ctx context.Context, recordID uuid.UUID, limit int) ([]*models.OperationLogEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*models.OperationLogEntry
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].RecordID == recordID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func (m *mockOplogRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.OperationLogEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*models.OperationLogEntry
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].UserID == userID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

// mockGrantRepository is an in-memory GrantRepository for the grant
// lifecycle tests.
type mockGrantRepository struct {
	grants map[uuid.UUID]*models.AccessGrant
	err    error
}

func newMockGrantRepository() *mockGrantRepository {
	return &mockGrantRepository{grants: make(map[uuid.UUID]*models.AccessGrant)}
}

func (m *mockGrantRepository) Create(ctx context.Context, grant *models.AccessGrant) error {
	if m.err != nil {
		return m.err
	}
	for _, existing := range m.grants {
		if existing.OwnerID == grant.OwnerID && existing.RecipientEmail == grant.RecipientEmail && existing.RevokedAt == nil {
			return apperrors.ErrGrantExists
		}
	}
	grant.ID = uuid.New()
	grant.Token = uuid.New()
	grant.CreatedAt = time.Now().UTC()
	clone := *grant
	m.grants[grant.ID] = &clone
	return nil
}

func (m *mockGrantRepository) GetByToken(ctx context.Context, token uuid.UUID) (*models.AccessGrant, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, grant := range m.grants {
		if grant.Token == token {
			clone := *grant
			return &clone, nil
		}
	}
	return nil, apperrors.ErrGrantNotFound
}

func (m *mockGrantRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AccessGrant, error) {
	if m.err != nil {
		return nil, m.err
	}
	grant, ok := m.grants[id]
	if !ok {
		return nil, apperrors.ErrGrantNotFound
	}
	clone := *grant
	return &clone, nil
}

func (m *mockGrantRepository) Accept(ctx context.Context, token, recipientID uuid.UUID, recipientEmail string) (*models.AccessGrant, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, grant := range m.grants {
		if grant.Token != token {
			continue
		}
		if grant.AcceptedAt != nil || grant.RevokedAt != nil {
			return nil, apperrors.ErrGrantNotPending
		}
		now := time.Now().UTC()
		grant.RecipientID = &recipientID
		grant.RecipientEmail = recipientEmail
		grant.AcceptedAt = &now
		clone := *grant
		return &clone, nil
	}
	return nil, apperrors.ErrGrantNotFound
}

func (m *mockGrantRepository) Revoke(ctx context.Context, ownerID, grantID uuid.UUID) error {
	if m.err != nil {
		return m.err
	}
	grant, ok := m.grants[grantID]
	if !ok || grant.OwnerID != ownerID {
		return apperrors.ErrGrantNotFound
	}
	now := time.Now().UTC()
	grant.RevokedAt = &now
	return nil
}

func (m *mockGrantRepository) ActiveForRecipient(ctx context.Context, recipientID uuid.UUID) ([]models.GrantInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []models.GrantInfo
	for _, grant := range m.grants {
		if grant.RecipientID != nil && *grant.RecipientID == recipientID && grant.Active() {
			out = append(out, models.GrantInfo{
				OwnerID:       grant.OwnerID,
				OwnerIdentity: grant.OwnerEmail,
				Permission:    grant.Permission,
				AcceptedAt:    *grant.AcceptedAt,
			})
		}
	}
	return out, nil
}

func (m *mockGrantRepository) ActivePermission(ctx context.Context, ownerID, recipientID uuid.UUID) (models.Permission, error) {
	if m.err != nil {
		return "", m.err
	}
	for _, grant := range m.grants {
		if grant.OwnerID == ownerID && grant.RecipientID != nil && *grant.RecipientID == recipientID && grant.Active() {
			return grant.Permission, nil
		}
	}
	return "", nil
}

func (m *mockGrantRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.AccessGrant, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*models.AccessGrant
	for _, grant := range m.grants {
		if grant.OwnerID == userID || (grant.RecipientID != nil && *grant.RecipientID == userID) {
			clone := *grant
			out = append(out, &clone)
		}
	}
	return out, nil
}
