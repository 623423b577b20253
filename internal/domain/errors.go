package domain

import "errors"

// Domain errors
var (
	ErrNotFound        = errors.New("resource not found")
	ErrAlreadyExists   = errors.New("resource already exists")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrInternalError   = errors.New("internal error")
	ErrUserNotFound    = errors.New("user not found")
	ErrChamaNotFound   = errors.New("chama not found")
	ErrNotChamaMember  = errors.New("user is not a member of this chama")
	ErrVersionConflict = errors.New("document was modified concurrently, retry the operation")
)
