package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/folio-inc/folio-sync/pkg/apperrors"
	"github.com/folio-inc/folio-sync/pkg/audit"
	"github.com/folio-inc/folio-sync/pkg/models"
	"github.com/folio-inc/folio-sync/pkg/repositories"
)

// GrantService manages the sharing lifecycle: an owner invites a recipient
// by email, the recipient redeems the invitation token, and either side can
// end the arrangement by revoking.
type GrantService interface {
	Create(ctx context.Context, ownerID uuid.UUID, ownerEmail, recipientEmail string, permission models.Permission) (*models.AccessGrant, error)
	Accept(ctx context.Context, recipientID uuid.UUID, recipientEmail string, token uuid.UUID) (*models.AccessGrant, error)
	Revoke(ctx context.Context, actorID, grantID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID) ([]*models.AccessGrant, error)
}

type grantService struct {
	repo    repositories.GrantRepository
	lookup  GrantLookup
	auditor *audit.SecurityAuditor
	logger  *zap.Logger
}

// NewGrantService creates a new grant service.
func NewGrantService(repo repositories.GrantRepository, lookup GrantLookup, auditor *audit.SecurityAuditor, logger *zap.Logger) GrantService {
	return &grantService{
		repo:    repo,
		lookup:  lookup,
		auditor: auditor,
		logger:  logger.Named("grants"),
	}
}

var _ GrantService = (*grantService)(nil)

func (s *grantService) Create(ctx context.Context, ownerID uuid.UUID, ownerEmail, recipientEmail string, permission models.Permission) (*models.AccessGrant, error) {
	if !permission.IsValid() {
		return nil, apperrors.ErrInvalidPermission
	}
	recipientEmail = normalizeEmail(recipientEmail)
	if recipientEmail == "" {
		return nil, apperrors.ErrInvalidEmail
	}
	if recipientEmail == normalizeEmail(ownerEmail) {
		return nil, apperrors.ErrSelfGrant
	}

	grant := &models.AccessGrant{
		OwnerID:        ownerID,
		OwnerEmail:     normalizeEmail(ownerEmail),
		RecipientEmail: recipientEmail,
		Permission:     permission,
	}
	if err := s.repo.Create(ctx, grant); err != nil {
		return nil, err
	}

	s.logger.Info("Grant invitation created",
		zap.String("grant_id", grant.ID.String()),
		zap.String("owner_id", ownerID.String()),
		zap.String("permission", string(permission)))

	return grant, nil
}

func (s *grantService) Accept(ctx context.Context, recipientID uuid.UUID, recipientEmail string, token uuid.UUID) (*models.AccessGrant, error) {
	invitation, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if invitation.OwnerID == recipientID {
		return nil, apperrors.ErrSelfGrant
	}

	grant, err := s.repo.Accept(ctx, token, recipientID, normalizeEmail(recipientEmail))
	if err != nil {
		return nil, err
	}

	// The recipient's cached grant set is stale the moment acceptance
	// lands; the next pull must see the new owner.
	s.lookup.Invalidate(ctx, recipientID)

	s.logger.Info("Grant accepted",
		zap.String("grant_id", grant.ID.String()),
		zap.String("owner_id", grant.OwnerID.String()),
		zap.String("recipient_id", recipientID.String()))

	return grant, nil
}

func (s *grantService) Revoke(ctx context.Context, actorID, grantID uuid.UUID) error {
	grant, err := s.repo.GetByID(ctx, grantID)
	if err != nil {
		return err
	}

	// Only the owner may revoke. A foreign grant id reads as not found so
	// callers cannot probe for grants between other users.
	if grant.OwnerID != actorID {
		return apperrors.ErrGrantNotFound
	}

	if err := s.repo.Revoke(ctx, actorID, grantID); err != nil {
		return err
	}

	if grant.RecipientID != nil {
		s.lookup.Invalidate(ctx, *grant.RecipientID)
	}

	s.auditor.LogGrantRevoked(actorID, audit.GrantRevokedDetails{
		GrantID:     grantID,
		OwnerID:     grant.OwnerID,
		RecipientID: grant.RecipientID,
	})

	return nil
}

func (s *grantService) List(ctx context.Context, userID uuid.UUID) ([]*models.AccessGrant, error) {
	grants, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if grants == nil {
		grants = []*models.AccessGrant{}
	}
	return grants, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
