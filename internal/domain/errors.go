package domain

import "errors"

var (
	ErrValidation          = errors.New("validation failed")
	ErrUnknownMethod       = errors.New("unknown payment method")
	ErrProviderRejected    = errors.New("provider rejected payment")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrNotFound            = errors.New("not found")
	ErrAlreadySettled      = errors.New("donation already settled")
	ErrUnauthorized        = errors.New("unauthorized")
)
