package models

import (
	"time"

	"github.com/google/uuid"
)

// Permission is the access level of a grant.
type Permission string

const (
	PermissionView Permission = "view"
	PermissionEdit Permission = "edit"
)

// IsValid reports whether p is a known permission level.
func (p Permission) IsValid() bool {
	return p == PermissionView || p == PermissionEdit
}

// AccessGrant exposes the owner's entire record set to the recipient.
// A grant is created by the owner as an invitation carrying a token; it
// becomes visible to pull only once the recipient accepts it. At most one
// active (non-revoked) grant exists per (owner, recipient) pair.
type AccessGrant struct {
	ID             uuid.UUID  `json:"id"`
	OwnerID        uuid.UUID  `json:"ownerId"`
	OwnerEmail     string     `json:"ownerEmail"`
	RecipientID    *uuid.UUID `json:"recipientId,omitempty"` // bound at acceptance
	RecipientEmail string     `json:"recipientEmail"`
	Permission     Permission `json:"permission"`
	Token          uuid.UUID  `json:"-"` // invitation token, never serialized to listings
	CreatedAt      time.Time  `json:"createdAt"`
	AcceptedAt     *time.Time `json:"acceptedAt,omitempty"`
	RevokedAt      *time.Time `json:"revokedAt,omitempty"`
}

// Active reports whether the grant has been accepted and not revoked.
func (g *AccessGrant) Active() bool {
	return g.AcceptedAt != nil && g.RevokedAt == nil
}

// GrantInfo is the per-owner sharing summary returned by pull so the client
// knows which foreign libraries it holds and at what access level.
type GrantInfo struct {
	OwnerID       uuid.UUID  `json:"ownerId"`
	OwnerIdentity string     `json:"ownerIdentity"`
	Permission    Permission `json:"permission"`
	AcceptedAt    time.Time  `json:"-"` // used for the newly-accepted partition, not serialized
}
