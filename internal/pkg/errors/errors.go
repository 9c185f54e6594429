package errors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalid      = errors.New("invalid request")
	ErrConflict     = errors.New("conflict")
	ErrTooMany      = errors.New("too many requests")
	ErrInternal     = errors.New("internal error")

	ErrAccountNotFound  = errors.New("account not found")
	ErrAlreadyLinked    = errors.New("channel already linked to this account")
	ErrChannelTaken     = errors.New("channel already linked to another account")
	ErrChannelNotLinked = errors.New("no channel linked to this account")
	ErrInvalidCode      = errors.New("invalid or expired code")
	ErrDeliveryFailed   = errors.New("failed to deliver code")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
