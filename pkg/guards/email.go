package guards

import (
	"context"
	"net/mail"
	"strings"

	"github.com/dmitrymomot/lifekit/pkg/lifecycle"
)

// Payload keys the guards in this package read from the transition Context.
const (
	KeyEmail        = "email"
	KeyPassword     = "password"
	KeyReferralCode = "referral_code"
)

// EmailLookup answers whether an email address is already registered. It is
// the host-owned synchronous persistence boundary; implementations decide
// about normalization, indexes and I/O.
type EmailLookup interface {
	EmailExists(ctx context.Context, email string) (bool, error)
}

// EmailExists denies registration when the email is missing, malformed or
// already taken. A lookup failure denies closed rather than letting an
// unverifiable address through.
func EmailExists(lookup EmailLookup) lifecycle.Guard {
	return lifecycle.GuardFunc("EmailExistsGuard", func(ctx context.Context, tc lifecycle.Context) lifecycle.Decision {
		email := strings.TrimSpace(tc.StringValue(KeyEmail))
		if email == "" {
			return lifecycle.Deny("email is required")
		}
		if !validEmail(email) {
			return lifecycle.Deny("email is invalid")
		}

		exists, err := lookup.EmailExists(ctx, email)
		if err != nil {
			return lifecycle.Deny("email could not be verified")
		}
		if exists {
			return lifecycle.Deny("email exists")
		}
		return lifecycle.Approve()
	})
}

// validEmail applies the checks useful for typical web signups on top of
// Go's RFC 5322 parser.
func validEmail(value string) bool {
	addr, err := mail.ParseAddress(value)
	if err != nil {
		return false
	}

	parts := strings.Split(addr.Address, "@")
	if len(parts) != 2 {
		return false
	}
	local, domain := parts[0], parts[1]
	if local == "" {
		return false
	}
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return false
	}
	return true
}
