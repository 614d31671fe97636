package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrOperationFailed = errors.New("operation failed")
	ErrReadDatabaseRow = errors.New("failed to read database row")
	ErrLockUnavailable = errors.New("could not acquire lock")

	// Notification processing errors
	ErrConfiguration      = errors.New("acquirer configuration incomplete")
	ErrUnknownTransaction = errors.New("no or ambiguous transaction for reference")
	ErrSignatureMismatch  = errors.New("secure hash mismatch")
	ErrMalformedInput     = errors.New("malformed notification data")
)
