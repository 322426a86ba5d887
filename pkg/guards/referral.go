package guards

import (
	"context"
	"strings"

	"github.com/dmitrymomot/lifekit/pkg/lifecycle"
)

// ReferralLookup answers whether a referral code was issued. Host-owned
// synchronous persistence boundary, like EmailLookup.
type ReferralLookup interface {
	ReferralExists(ctx context.Context, code string) (bool, error)
}

// ReferralKnown denies registration carrying an unknown referral code. An
// absent or empty code approves: referrals are optional, and enforcing
// their presence is the chain builder's choice, not this guard's.
func ReferralKnown(lookup ReferralLookup) lifecycle.Guard {
	return lifecycle.GuardFunc("ReferralGuard", func(ctx context.Context, tc lifecycle.Context) lifecycle.Decision {
		code := strings.TrimSpace(tc.StringValue(KeyReferralCode))
		if code == "" {
			return lifecycle.Approve()
		}

		exists, err := lookup.ReferralExists(ctx, code)
		if err != nil {
			return lifecycle.Deny("referral code could not be verified")
		}
		if !exists {
			return lifecycle.Deny("referral code is unknown")
		}
		return lifecycle.Approve()
	})
}
