// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventPermissionDenied is logged when a push operation targets a record
	// the actor has no write access to.
	EventPermissionDenied SecurityEventType = "permission_denied"
	// EventGrantRevoked is logged when an owner revokes a library grant.
	EventGrantRevoked SecurityEventType = "grant_revoked"
	// EventMalformedBatch is logged when a push batch is rejected before any
	// mutation for structural reasons.
	EventMalformedBatch SecurityEventType = "malformed_batch"
)

// PermissionDeniedDetails contains specifics of a rejected cross-owner write.
type PermissionDeniedDetails struct {
	RecordID  uuid.UUID `json:"record_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Operation string    `json:"operation"`
}

// GrantRevokedDetails identifies the revoked grant and its recipient.
type GrantRevokedDetails struct {
	GrantID     uuid.UUID  `json:"grant_id"`
	OwnerID     uuid.UUID  `json:"owner_id"`
	RecipientID *uuid.UUID `json:"recipient_id,omitempty"` // nil for never-accepted invitations
}

// SecurityAuditor logs security events for SIEM consumption.
// Events are logged in structured JSON format with appropriate severity levels.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger
// namespace ("security_audit") for easy filtering in SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogPermissionDenied records a push operation rejected for lack of an edit
// grant. Logged at WARN: a client retrying after a revocation is expected,
// a stream of these from one actor is worth alerting on.
func (a *SecurityAuditor) LogPermissionDenied(actorID uuid.UUID, details PermissionDeniedDetails) {
	a.logger.Warn("security event",
		zap.Time("timestamp", time.Now().UTC()),
		zap.String("event_type", string(EventPermissionDenied)),
		zap.String("user_id", actorID.String()),
		zap.String("severity", "warning"),
		zap.Any("details", details),
	)
}

// LogGrantRevoked records a grant revocation at INFO level.
func (a *SecurityAuditor) LogGrantRevoked(ownerID uuid.UUID, details GrantRevokedDetails) {
	a.logger.Info("security event",
		zap.Time("timestamp", time.Now().UTC()),
		zap.String("event_type", string(EventGrantRevoked)),
		zap.String("user_id", ownerID.String()),
		zap.String("severity", "info"),
		zap.Any("details", details),
	)
}

// LogMalformedBatch records a push batch rejected before any mutation.
func (a *SecurityAuditor) LogMalformedBatch(actorID uuid.UUID, reason string) {
	a.logger.Warn("security event",
		zap.Time("timestamp", time.Now().UTC()),
		zap.String("event_type", string(EventMalformedBatch)),
		zap.String("user_id", actorID.String()),
		zap.String("severity", "warning"),
		zap.String("reason", reason),
	)
}
