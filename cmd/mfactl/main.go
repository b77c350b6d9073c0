// Command mfactl manages two-factor credentials from the command line and can
// serve the two-factor HTTP endpoints.
//
// Usage:
//
//	mfactl keygen
//	mfactl code -secret BASE32 [-at RFC3339]
//	mfactl enroll -account ID [-label NAME] [-qr terminal|none|FILE.png]
//	mfactl status -account ID
//	mfactl regenerate -account ID -code TOTP
//	mfactl disable -account ID -code TOTP
//	mfactl migrate
//	mfactl serve
//
// Storage is chosen with MFA_STORE (memory, postgres, redis, mongo). Setting
// MFA_SECRET_KEY (see keygen) encrypts TOTP secrets at rest.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	mfa "github.com/dmitrymomot/mfakit/pkg/twofactor"
)

var errUsage = errors.New("usage: mfactl <keygen|code|enroll|status|regenerate|disable|migrate|serve> [flags]")

// cli carries the process streams. The remaining fields let tests replace
// the entropy source, the clock and the credential store.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	random io.Reader
	clock  mfa.Clock
	store  mfa.CredentialStore
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	if err := c.run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "mfactl:", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "keygen":
		return c.keygen()
	case "code":
		return c.code(rest)
	case "enroll":
		return c.enroll(ctx, rest)
	case "status":
		return c.status(ctx, rest)
	case "regenerate":
		return c.regenerate(ctx, rest)
	case "disable":
		return c.disable(ctx, rest)
	case "migrate":
		return c.migrate(ctx)
	case "serve":
		return c.serve(ctx)
	case "help", "-h", "--help":
		fmt.Fprintln(c.stdout, errUsage.Error())
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}
