package guards

import (
	"context"
	"regexp"
	"strings"

	"github.com/dmitrymomot/lifekit/pkg/lifecycle"
)

var (
	uppercaseRegex   = regexp.MustCompile(`[A-Z]`)
	lowercaseRegex   = regexp.MustCompile(`[a-z]`)
	digitRegex       = regexp.MustCompile(`[0-9]`)
	specialCharRegex = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>\/?~` + "`" + `]`)

	// Frequently compromised passwords rejected regardless of composition.
	commonPasswords = map[string]bool{
		"password":    true,
		"password1":   true,
		"password123": true,
		"123456":      true,
		"12345678":    true,
		"123456789":   true,
		"1234567890":  true,
		"qwerty":      true,
		"qwerty123":   true,
		"qwertyuiop":  true,
		"abc123":      true,
		"letmein":     true,
		"welcome":     true,
		"admin":       true,
		"admin123":    true,
		"iloveyou":    true,
		"dragon":      true,
		"monkey":      true,
		"sunshine":    true,
		"princess":    true,
		"football":    true,
		"trustno1":    true,
		"1q2w3e4r":    true,
		"1qaz2wsx":    true,
	}
)

// StrengthConfig describes a password policy.
type StrengthConfig struct {
	MinLength        int
	MaxLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigits    bool
	RequireSpecial   bool
}

// DefaultStrengthConfig returns a NIST-style policy: 8-128 characters with
// every character class required.
func DefaultStrengthConfig() StrengthConfig {
	return StrengthConfig{
		MinLength:        8,
		MaxLength:        128,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireDigits:    true,
		RequireSpecial:   true,
	}
}

// PasswordStrength denies registration when the password payload does not
// meet the policy. The guard holds its policy as configuration and is
// stateless with respect to the Context.
func PasswordStrength(cfg StrengthConfig) lifecycle.Guard {
	return lifecycle.GuardFunc("PasswordGuard", func(ctx context.Context, tc lifecycle.Context) lifecycle.Decision {
		password := tc.StringValue(KeyPassword)
		if password == "" {
			return lifecycle.Deny("password is required")
		}
		if len(password) < cfg.MinLength {
			return lifecycle.Deny("password is too short")
		}
		if cfg.MaxLength > 0 && len(password) > cfg.MaxLength {
			return lifecycle.Deny("password is too long")
		}
		if commonPasswords[strings.ToLower(password)] {
			return lifecycle.Deny("password is too common")
		}
		if cfg.RequireUppercase && !uppercaseRegex.MatchString(password) {
			return lifecycle.Deny("password needs an uppercase letter")
		}
		if cfg.RequireLowercase && !lowercaseRegex.MatchString(password) {
			return lifecycle.Deny("password needs a lowercase letter")
		}
		if cfg.RequireDigits && !digitRegex.MatchString(password) {
			return lifecycle.Deny("password needs a digit")
		}
		if cfg.RequireSpecial && !specialCharRegex.MatchString(password) {
			return lifecycle.Deny("password needs a special character")
		}
		return lifecycle.Approve()
	})
}
