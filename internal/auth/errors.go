package auth

import (
	"errors"
	"fmt"
)

var (
	ErrAccountExists       = errors.New("account already exists")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrEmailNotConfirmed   = errors.New("email not confirmed")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrVerificationFailed  = errors.New("verification error")
	ErrInvalidToken        = errors.New("could not validate credentials")
	ErrUserNotFound        = errors.New("user not found")
	ErrRateLimited         = errors.New("too many requests")
)

// ValidationError reports a rejected input field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Kind groups service errors by how callers should react to them
type Kind int

const (
	KindInternal Kind = iota
	KindConflict
	KindUnauthorized
	KindBadRequest
	KindNotFound
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// KindOf classifies err. Anything unrecognised, store faults included, is KindInternal.
func KindOf(err error) Kind {
	var verr *ValidationError
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrAccountExists):
		return KindConflict
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrEmailNotConfirmed),
		errors.Is(err, ErrInvalidRefreshToken),
		errors.Is(err, ErrInvalidToken):
		return KindUnauthorized
	case errors.Is(err, ErrVerificationFailed), errors.As(err, &verr):
		return KindBadRequest
	case errors.Is(err, ErrUserNotFound):
		return KindNotFound
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	default:
		return KindInternal
	}
}
