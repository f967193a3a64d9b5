package domain

import "errors"

// Error classes shared by every layer. Concrete errors wrap one of these with %w
// so the HTTP boundary can map them with errors.Is.
var (
	ErrValidation     = errors.New("validation failed")
	ErrDuplicate      = errors.New("already exists")
	ErrNotFound       = errors.New("not found")
	ErrAuthentication = errors.New("authentication failed")
	ErrConfiguration  = errors.New("server auth not configured")
	ErrRemoteService  = errors.New("remote service unavailable")
	ErrPersistence    = errors.New("storage unavailable")
	ErrRateLimited    = errors.New("too many requests")
)
