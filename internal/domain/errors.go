package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAdmin           = errors.New("user is not an active admin")
	ErrAdminNotFound      = errors.New("admin not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrEarningNotFound    = errors.New("earning not found")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrNotPending         = errors.New("record is not pending")
	ErrNothingToExport    = errors.New("no collections to export")
	ErrAlreadyExported    = errors.New("collection already exported")
	ErrUnknownFormat      = errors.New("unknown report format")
	ErrReasonRequired     = errors.New("rejection reason is required")
	ErrInvalidStatus      = errors.New("invalid status transition")
)
