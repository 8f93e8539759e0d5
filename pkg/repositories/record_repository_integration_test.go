//go:build integration

package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio-inc/folio-sync/pkg/apperrors"
	"github.com/folio-inc/folio-sync/pkg/database"
	"github.com/folio-inc/folio-sync/pkg/models"
	"github.com/folio-inc/folio-sync/pkg/testhelpers"
)

// scopedContext acquires a pooled connection scope for one test.
func scopedContext(t *testing.T) context.Context {
	t.Helper()
	testDB := testhelpers.GetTestDB(t)

	scope, err := testDB.DB.AcquireScope(context.Background())
	require.NoError(t, err)
	t.Cleanup(scope.Close)

	return database.SetScope(context.Background(), scope)
}

func newTestRecord(owner uuid.UUID) *models.Record {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Record{
		ID:        uuid.New(),
		OwnerID:   owner,
		Title:     "integration note",
		Content:   "body",
		Category:  "notes",
		Keywords:  "alpha, beta",
		Embedding: models.Vector{0.25, -1, 3.5},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRecordRepository_InsertAndGet(t *testing.T) {
	ctx := scopedContext(t)
	repo := NewRecordRepository()
	owner := uuid.New()

	record := newTestRecord(owner)
	require.NoError(t, repo.Insert(ctx, record))
	assert.Equal(t, int64(1), record.Version)

	assert.ErrorIs(t, repo.Insert(ctx, newTestRecordWithID(owner, record.ID)), apperrors.ErrAlreadyExists)

	got, err := repo.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.Title, got.Title)
	assert.Equal(t, record.Keywords, got.Keywords)
	assert.Equal(t, record.Embedding, got.Embedding)
	assert.Equal(t, int64(1), got.Version)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func newTestRecordWithID(owner, id uuid.UUID) *models.Record {
	r := newTestRecord(owner)
	r.ID = id
	return r
}

func TestRecordRepository_UpdateCAS(t *testing.T) {
	ctx := scopedContext(t)
	repo := NewRecordRepository()
	owner := uuid.New()

	record := newTestRecord(owner)
	require.NoError(t, repo.Insert(ctx, record))

	record.Title = "updated"
	require.NoError(t, repo.UpdateCAS(ctx, record))
	assert.Equal(t, int64(2), record.Version)

	// A second writer holding the old version must lose.
	stale := newTestRecordWithID(owner, record.ID)
	stale.Version = 1
	assert.ErrorIs(t, repo.UpdateCAS(ctx, stale), apperrors.ErrVersionMismatch)

	missing := newTestRecord(owner)
	missing.Version = 1
	assert.ErrorIs(t, repo.UpdateCAS(ctx, missing), apperrors.ErrNotFound)
}

func TestRecordRepository_SoftDelete(t *testing.T) {
	ctx := scopedContext(t)
	repo := NewRecordRepository()
	owner := uuid.New()

	record := newTestRecord(owner)
	require.NoError(t, repo.Insert(ctx, record))

	version, alreadyDeleted, err := repo.SoftDelete(ctx, record.ID)
	require.NoError(t, err)
	assert.False(t, alreadyDeleted)
	assert.Equal(t, int64(2), version)

	// Tombstones survive and stay readable.
	got, err := repo.GetByID(ctx, record.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DeletedAt)

	version, alreadyDeleted, err = repo.SoftDelete(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, alreadyDeleted)
	assert.Equal(t, int64(2), version, "second delete must not bump the version")

	_, _, err = repo.SoftDelete(ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRecordRepository_OwnedQueries(t *testing.T) {
	ctx := scopedContext(t)
	repo := NewRecordRepository()
	owner := uuid.New()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		record := newTestRecord(owner)
		require.NoError(t, repo.Insert(ctx, record))
		ids = append(ids, record.ID)
	}
	cursor := time.Now().UTC()

	_, _, err := repo.SoftDelete(ctx, ids[0])
	require.NoError(t, err)

	t.Run("snapshot skips tombstones", func(t *testing.T) {
		count, err := repo.CountOwned(ctx, owner, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		records, err := repo.ListOwned(ctx, owner, nil, 10, 0)
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("delta includes tombstones", func(t *testing.T) {
		count, err := repo.CountOwned(ctx, owner, &cursor)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "only the deletion happened after the cursor")

		records, err := repo.ListOwned(ctx, owner, &cursor, 10, 0)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, ids[0], records[0].ID)
		assert.NotNil(t, records[0].DeletedAt)
	})

	t.Run("pagination is stable", func(t *testing.T) {
		first, err := repo.ListOwned(ctx, owner, nil, 1, 0)
		require.NoError(t, err)
		second, err := repo.ListOwned(ctx, owner, nil, 1, 1)
		require.NoError(t, err)
		require.Len(t, first, 1)
		require.Len(t, second, 1)
		assert.NotEqual(t, first[0].ID, second[0].ID)
	})
}

func TestRecordRepository_OwnerSetQueries(t *testing.T) {
	ctx := scopedContext(t)
	repo := NewRecordRepository()
	ownerA := uuid.New()
	ownerB := uuid.New()

	recordA := newTestRecord(ownerA)
	require.NoError(t, repo.Insert(ctx, recordA))
	recordB := newTestRecord(ownerB)
	require.NoError(t, repo.Insert(ctx, recordB))
	cursor := time.Now().UTC()

	deleted := newTestRecord(ownerA)
	require.NoError(t, repo.Insert(ctx, deleted))
	_, _, err := repo.SoftDelete(ctx, deleted.ID)
	require.NoError(t, err)

	t.Run("full set excludes tombstones", func(t *testing.T) {
		records, err := repo.ListAllForOwners(ctx, []uuid.UUID{ownerA, ownerB})
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("empty owner list", func(t *testing.T) {
		records, err := repo.ListAllForOwners(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("delta includes tombstones, scoped to owners", func(t *testing.T) {
		records, err := repo.ListChangedForOwners(ctx, []uuid.UUID{ownerA}, cursor)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, deleted.ID, records[0].ID)
	})
}
