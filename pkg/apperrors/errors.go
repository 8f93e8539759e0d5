package apperrors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrVersionMismatch = errors.New("version mismatch")
	ErrNoPermission    = errors.New("no permission")
	ErrGrantExists     = errors.New("an active grant already exists for this pair")
	ErrSelfGrant       = errors.New("cannot share a library with yourself")
	ErrGrantNotFound   = errors.New("grant not found")
	ErrGrantNotPending = errors.New("grant is not pending acceptance")
	ErrMalformedBatch  = errors.New("malformed push batch")
	ErrBatchTooLarge   = errors.New("push batch exceeds the size limit")

	ErrInvalidPermission = errors.New("permission must be 'view' or 'edit'")
	ErrInvalidEmail      = errors.New("invalid email address")
)
