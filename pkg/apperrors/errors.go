package apperrors

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrUnsupportedType        = errors.New("unsupported datasource type")
	ErrInvalidConnection      = errors.New("invalid connection string")
	ErrInvalidQuery           = errors.New("invalid query")
	ErrConnectionLimitReached = errors.New("connection limit reached")
	ErrCredentialsKeyMismatch = errors.New("connection credentials were encrypted with a different key")
)
