package models

import (
	"time"

	"github.com/google/uuid"
)

// Operation names recorded in the operation log.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// OperationLogEntry is one row of the append-only operation log.
// The log answers "what changed" for diagnostics and audit; it is never
// consulted by pull or push for conflict decisions. UserID is the acting
// user, which under an edit grant may differ from the record's owner.
type OperationLogEntry struct {
	ID        int64     `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Operation string    `json:"operation"` // 'create', 'update', 'delete'
	RecordID  uuid.UUID `json:"recordId"`
	Version   int64     `json:"version"` // post-operation version
	CreatedAt time.Time `json:"createdAt"`
}
