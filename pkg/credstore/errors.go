package credstore

import (
	"errors"

	"github.com/dmitrymomot/mfakit/pkg/twofactor"
)

var (
	// ErrNotFound is the store level name of twofactor.ErrRecordNotFound.
	ErrNotFound = twofactor.ErrRecordNotFound
	// ErrAlreadyEnabled is returned by Create when an enabled record exists.
	ErrAlreadyEnabled = twofactor.ErrAlreadyEnrolled

	ErrMissingAccountID = errors.New("credstore: missing account id")
	ErrInvalidRecord    = errors.New("credstore: record is not consistent")
	ErrCorruptRecord    = errors.New("credstore: stored record cannot be decoded")
	ErrQueryFailed      = errors.New("credstore: backend query failed")
)
