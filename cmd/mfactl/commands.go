package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dmitrymomot/mfakit/pkg/qrcode"
	"github.com/dmitrymomot/mfakit/pkg/secrets"
	"github.com/dmitrymomot/mfakit/pkg/totp"
	mfa "github.com/dmitrymomot/mfakit/pkg/twofactor"
)

const confirmAttempts = 3

var (
	errMissingAccount = errors.New("-account is required")
	errNoInput        = errors.New("no code entered")
)

func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

func (c *cli) keygen() error {
	key, err := secrets.GenerateEncodedKey()
	if err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, key)
	return nil
}

// code prints the current token for a secret. Handy when testing a deployment.
func (c *cli) code(args []string) error {
	fs := c.flags("code")
	raw := fs.String("secret", "", "Base32 secret")
	at := fs.String("at", "", "time as RFC 3339 (default now)")
	if err := fs.Parse(args); err != nil {
		return errors.Join(errUsage, err)
	}

	secret, err := totp.DecodeSecret(*raw)
	if err != nil {
		return err
	}
	defer secret.Wipe()

	now := time.Now()
	if c.clock != nil {
		now = c.clock.Now()
	}
	if *at != "" {
		if now, err = time.Parse(time.RFC3339, *at); err != nil {
			return errors.Join(errUsage, err)
		}
	}
	fmt.Fprintln(c.stdout, totp.GenerateTOTPWithTime(secret, now))
	return nil
}

func (c *cli) enroll(ctx context.Context, args []string) error {
	fs := c.flags("enroll")
	account := fs.String("account", "", "account id")
	label := fs.String("label", "", "label shown in the authenticator app (default: account id)")
	qr := fs.String("qr", "terminal", `QR output: "terminal", "none" or a .png file path`)
	if err := fs.Parse(args); err != nil {
		return errors.Join(errUsage, err)
	}
	if *account == "" {
		return errors.Join(errUsage, errMissingAccount)
	}

	a, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer a.backend.Close()

	e, err := a.svc.BeginEnrollment(ctx, *account, *label)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.stdout, "Provisioning URI: %s\n", e.URI())
	if err := c.writeQR(e, *qr); err != nil {
		e.Abandon()
		return err
	}
	fmt.Fprintf(c.stdout, "Manual entry key: %s\n\n", e.ManualEntryKey())
	fmt.Fprintln(c.stdout, "Backup codes (shown once, store them safely):")
	for _, code := range e.BackupCodes() {
		fmt.Fprintf(c.stdout, "  %s\n", code)
	}
	fmt.Fprintln(c.stdout)

	if err := c.confirm(ctx, e); err != nil {
		e.Abandon()
		return err
	}
	fmt.Fprintln(c.stdout, "Two-factor authentication enabled.")
	return nil
}

func (c *cli) writeQR(e *mfa.Enrollment, target string) error {
	switch target {
	case "none", "":
		return nil
	case "terminal":
		art, err := qrcode.GenerateTerminal(e.URI())
		if err != nil {
			return err
		}
		fmt.Fprintln(c.stdout, art)
		return nil
	default:
		png, err := e.QRCode()
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, png, 0o600); err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "QR code written to %s\n", target)
		return nil
	}
}

func (c *cli) confirm(ctx context.Context, e *mfa.Enrollment) error {
	scanner := bufio.NewScanner(c.stdin)
	for range confirmAttempts {
		fmt.Fprint(c.stdout, "Enter the code from your authenticator app: ")
		if !scanner.Scan() {
			fmt.Fprintln(c.stdout)
			if err := scanner.Err(); err != nil {
				return err
			}
			return errNoInput
		}
		err := e.Confirm(ctx, strings.TrimSpace(scanner.Text()))
		if err == nil {
			return nil
		}
		if !errors.Is(err, mfa.ErrInvalidCode) {
			return err
		}
		fmt.Fprintln(c.stdout, "Invalid code, try again.")
	}
	return mfa.ErrInvalidCode
}

func (c *cli) status(ctx context.Context, args []string) error {
	fs := c.flags("status")
	account := fs.String("account", "", "account id")
	if err := fs.Parse(args); err != nil {
		return errors.Join(errUsage, err)
	}
	if *account == "" {
		return errors.Join(errUsage, errMissingAccount)
	}

	a, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer a.backend.Close()

	st, err := a.svc.Status(ctx, *account)
	if err != nil {
		return err
	}
	printStatus(c.stdout, *account, st)
	return nil
}

func printStatus(w io.Writer, account string, st mfa.Status) {
	fmt.Fprintf(w, "account: %s\n", account)
	fmt.Fprintf(w, "enabled: %t\n", st.Enabled)
	if !st.Enabled {
		return
	}
	fmt.Fprintf(w, "backup codes remaining: %d\n", st.RemainingBackupCodes)
	if !st.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "updated: %s\n", st.UpdatedAt.Format(time.RFC3339))
	}
}

func (c *cli) accountAndCode(name string, args []string) (string, string, error) {
	fs := c.flags(name)
	account := fs.String("account", "", "account id")
	code := fs.String("code", "", "current TOTP token")
	if err := fs.Parse(args); err != nil {
		return "", "", errors.Join(errUsage, err)
	}
	if *account == "" {
		return "", "", errors.Join(errUsage, errMissingAccount)
	}
	if *code == "" {
		return "", "", errors.Join(errUsage, errors.New("-code is required"))
	}
	return *account, *code, nil
}

func (c *cli) regenerate(ctx context.Context, args []string) error {
	account, code, err := c.accountAndCode("regenerate", args)
	if err != nil {
		return err
	}
	a, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer a.backend.Close()

	codes, err := a.svc.RegenerateBackupCodes(ctx, account, code)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, "New backup codes (the previous ones no longer work):")
	for _, code := range codes {
		fmt.Fprintf(c.stdout, "  %s\n", code)
	}
	return nil
}

func (c *cli) disable(ctx context.Context, args []string) error {
	account, code, err := c.accountAndCode("disable", args)
	if err != nil {
		return err
	}
	a, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer a.backend.Close()

	if err := a.svc.Disable(ctx, account, code); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Two-factor authentication disabled for %s.\n", account)
	return nil
}

// migrate applies the Postgres schema. Opening the backend already migrates,
// so this only reports the outcome.
func (c *cli) migrate(ctx context.Context) error {
	a, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer a.backend.Close()

	if a.cfg.Store != "postgres" {
		return fmt.Errorf("migrate requires MFA_STORE=postgres, got %q", a.cfg.Store)
	}
	fmt.Fprintln(c.stdout, "migrations applied")
	return nil
}
