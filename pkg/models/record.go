// Package models contains domain types for folio-sync.
package models

import (
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Record is the synchronized document unit. Every record is owned by exactly
// one user; other users see it only through an accepted access grant.
//
// Title, content, category, keywords, favorite flag and embedding are payload:
// the sync engine round-trips them without interpretation. Only ID, OwnerID,
// UpdatedAt, DeletedAt and Version are structurally meaningful to sync.
type Record struct {
	ID         uuid.UUID  `json:"id"`
	OwnerID    uuid.UUID  `json:"ownerId"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Category   string     `json:"category"`
	Keywords   string     `json:"keywords"`
	IsFavorite bool       `json:"isFavorite"`
	Embedding  Vector     `json:"embedding,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty"`

	// Version is the optimistic-concurrency token. It starts at 1 on create
	// and is incremented by exactly 1 on every successful update or delete.
	Version int64 `json:"version"`

	// Sharing decoration, populated by the pull service for records that
	// reach the caller through an access grant. Never persisted.
	OwnerIdentity    string     `json:"ownerIdentity,omitempty"`
	IsShared         bool       `json:"isShared,omitempty"`
	SharedPermission Permission `json:"sharedPermission,omitempty"`
}

// Deleted reports whether the record is a tombstone.
func (r *Record) Deleted() bool {
	return r.DeletedAt != nil
}

// Vector is an optional fixed-length embedding attached to a record.
// On the wire it is a plain JSON number array; in PostgreSQL it is stored
// as little-endian float32 bytea so downstream semantic search can read it
// without JSON parsing.
type Vector []float32

// Value implements driver.Valuer for database serialization.
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf, nil
}

// Scan implements sql.Scanner for database deserialization.
func (v *Vector) Scan(value interface{}) error {
	if value == nil {
		*v = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into Vector", value)
	}
	if len(bytes)%4 != 0 {
		return fmt.Errorf("vector blob length %d is not a multiple of 4", len(bytes))
	}

	out := make(Vector, len(bytes)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(bytes[i*4:]))
	}
	*v = out
	return nil
}
