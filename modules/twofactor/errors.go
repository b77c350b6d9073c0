package twofactor

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/mfakit/pkg/binder"
	mfa "github.com/dmitrymomot/mfakit/pkg/twofactor"
)

var (
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrChallengeNotFound  = errors.New("login challenge not found")
	ErrNoEnrollment       = errors.New("no enrollment in progress")
	ErrUnauthorized       = errors.New("authentication required")
	ErrTooManyAttempts    = errors.New("too many attempts")
)

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusFor maps domain errors to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, binder.ErrUnsupportedMediaType), errors.Is(err, binder.ErrMissingContentType):
		return http.StatusUnsupportedMediaType, "unsupported_media_type"
	case errors.Is(err, binder.ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge, "body_too_large"
	case errors.Is(err, binder.ErrFailedToParseJSON), errors.Is(err, mfa.ErrMissingAccountID):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, mfa.ErrInvalidCode):
		return http.StatusUnauthorized, "invalid_code"
	case errors.Is(err, ErrTooManyAttempts):
		return http.StatusTooManyRequests, "too_many_attempts"
	case errors.Is(err, mfa.ErrPendingExpired):
		return http.StatusGone, "challenge_expired"
	case errors.Is(err, ErrChallengeNotFound), errors.Is(err, ErrNoEnrollment):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, mfa.ErrAlreadyEnrolled):
		return http.StatusConflict, "already_enrolled"
	case errors.Is(err, mfa.ErrNotEnrolled):
		return http.StatusConflict, "not_enrolled"
	case errors.Is(err, mfa.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, mfa.ErrStorage), errors.Is(err, mfa.ErrSessionManager):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
