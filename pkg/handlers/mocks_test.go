package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/folio-inc/folio-sync/pkg/auth"
	"github.com/folio-inc/folio-sync/pkg/models"
	"github.com/folio-inc/folio-sync/pkg/services"
)

// withUser attaches the claims RequireAuth would have left in the context.
func withUser(t *testing.T, r *http.Request, userID uuid.UUID, email string) *http.Request {
	t.Helper()
	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String()},
		Email:            email,
	}
	return r.WithContext(context.WithValue(r.Context(), auth.ClaimsKey, claims))
}

// mockPullService implements services.PullService for handler tests.
type mockPullService struct {
	result  *models.PullResult
	err     error
	lastReq services.PullRequest
}

func (m *mockPullService) Pull(ctx context.Context, actor uuid.UUID, req services.PullRequest) (*models.PullResult, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// mockPushService implements services.PushService for handler tests.
type mockPushService struct {
	result  *models.PushResult
	err     error
	lastOps []models.PushOperation
}

func (m *mockPushService) Push(ctx context.Context, actor uuid.UUID, ops []models.PushOperation) (*models.PushResult, error) {
	m.lastOps = ops
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// mockGrantService implements services.GrantService for handler tests.
type mockGrantService struct {
	grant     *models.AccessGrant
	grants    []*models.AccessGrant
	createErr error
	acceptErr error
	revokeErr error
	listErr   error
	revoked   []uuid.UUID
}

func (m *mockGrantService) Create(ctx context.Context, ownerID uuid.UUID, ownerEmail, recipientEmail string, permission models.Permission) (*models.AccessGrant, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.grant, nil
}

func (m *mockGrantService) Accept(ctx context.Context, recipientID uuid.UUID, recipientEmail string, token uuid.UUID) (*models.AccessGrant, error) {
	if m.acceptErr != nil {
		return nil, m.acceptErr
	}
	return m.grant, nil
}

func (m *mockGrantService) Revoke(ctx context.Context, actorID, grantID uuid.UUID) error {
	if m.revokeErr != nil {
		return m.revokeErr
	}
	m.revoked = append(m.revoked, grantID)
	return nil
}

func (m *mockGrantService) List(ctx context.Context, userID uuid.UUID) ([]*models.AccessGrant, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.grants, nil
}

// mockHistoryService implements services.HistoryService for handler tests.
type mockHistoryService struct {
	entries []*models.OperationLogEntry
	err     error
}

func (m *mockHistoryService) RecordHistory(ctx context.Context, actor, recordID uuid.UUID, limit int) ([]*models.OperationLogEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.entries, nil
}
