package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrymomot/mfakit/modules/twofactor"
)

var errNoUsers = errors.New("MFA_DEMO_USERS must list login:password pairs for serve")

// staticUsers checks passwords against a fixed list. It stands in for the
// host application's user store when the endpoints are served stand-alone.
type staticUsers map[string]string

// parseUsers reads "alice:secret,bob:hunter2". The login doubles as account id.
func parseUsers(s string) (staticUsers, error) {
	users := staticUsers{}
	for pair := range strings.SplitSeq(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		login, password, ok := strings.Cut(pair, ":")
		if !ok || login == "" || password == "" {
			return nil, fmt.Errorf("%w: malformed entry %q", errNoUsers, login)
		}
		users[login] = password
	}
	if len(users) == 0 {
		return nil, errNoUsers
	}
	return users, nil
}

func (u staticUsers) VerifyPassword(_ context.Context, login, password string) (string, error) {
	want, ok := u[login]
	match := subtle.ConstantTimeCompare([]byte(want), []byte(password)) == 1
	if !ok || !match {
		return "", twofactor.ErrInvalidCredentials
	}
	return login, nil
}
