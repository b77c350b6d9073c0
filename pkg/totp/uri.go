package totp

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ProvisioningURI holds everything an authenticator app needs to reproduce the
// token stream. Build it with BuildURI and render it with String.
type ProvisioningURI struct {
	Issuer       string // Service name displayed in authenticator apps
	AccountLabel string // User identifier like email
	Secret       string // Base32-encoded secret, unpadded
	Algorithm    string
	Digits       int
	Period       int
}

// BuildURI assembles the provisioning URI for a secret. Issuer and label are
// trimmed and NFC-normalized so the same account always renders the same URI.
func BuildURI(secret Secret, issuer, accountLabel string) (ProvisioningURI, error) {
	if len(secret) == 0 {
		return ProvisioningURI{}, ErrMissingSecret
	}
	issuer = norm.NFC.String(strings.TrimSpace(issuer))
	if issuer == "" {
		return ProvisioningURI{}, ErrMissingIssuer
	}
	accountLabel = norm.NFC.String(strings.TrimSpace(accountLabel))
	if accountLabel == "" {
		return ProvisioningURI{}, ErrMissingAccountName
	}

	return ProvisioningURI{
		Issuer:       issuer,
		AccountLabel: accountLabel,
		Secret:       EncodeSecret(secret),
		Algorithm:    DefaultAlgorithm,
		Digits:       DefaultDigits,
		Period:       DefaultPeriod,
	}, nil
}

// String renders the URI in the Key Uri Format. Parameter order is fixed:
// https://github.com/google/google-authenticator/wiki/Key-Uri-Format
func (u ProvisioningURI) String() string {
	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s&algorithm=%s&digits=%d&period=%d",
		escape(u.Issuer),
		escape(u.AccountLabel),
		u.Secret,
		escape(u.Issuer),
		u.Algorithm,
		u.Digits,
		u.Period,
	)
}

// escape percent-encodes s for both the label and the query. Spaces become %20
// because several authenticator apps do not decode '+' in the label.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
