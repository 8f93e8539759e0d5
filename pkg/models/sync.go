package models

import (
	"time"

	"github.com/google/uuid"
)

// PushOperation is one client-originated mutation inside a push batch.
type PushOperation struct {
	Type   string  `json:"type"` // 'create', 'update', 'delete'
	Record *Record `json:"record"`
}

// ConflictReason classifies why a push operation was not applied.
type ConflictReason string

const (
	ConflictAlreadyExists   ConflictReason = "already_exists"
	ConflictVersionMismatch ConflictReason = "version_mismatch"
	ConflictNoPermission    ConflictReason = "no_permission"
)

// Conflict is the per-operation rejection record inside a push result.
// Conflicts are data, not errors: the batch as a whole still succeeds and
// the client decides which records to re-pull and retry.
type Conflict struct {
	ID            uuid.UUID      `json:"id"`
	Reason        ConflictReason `json:"reason"`
	ClientVersion *int64         `json:"clientVersion,omitempty"`
	ServerVersion *int64         `json:"serverVersion,omitempty"`
}

// PushResult reports the outcome of every operation in a push batch.
type PushResult struct {
	Created   []uuid.UUID `json:"created"`
	Updated   []uuid.UUID `json:"updated"`
	Deleted   []uuid.UUID `json:"deleted"`
	Conflicts []Conflict  `json:"conflicts"`
}

// PullResult is the server's answer to a pull request: the caller's own
// changed records (paginated) merged with the full foreign delta from
// accepted grants.
type PullResult struct {
	Records      []*Record   `json:"records"`
	ServerTime   time.Time   `json:"serverTime"`
	Count        int         `json:"count"`
	Total        int         `json:"total"`
	HasMore      bool        `json:"hasMore"`
	ActiveGrants []GrantInfo `json:"activeGrants"`
}
