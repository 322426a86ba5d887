// Package guards provides reusable, named lifecycle guards for common
// registration-style checks: email uniqueness, password strength and
// referral code existence.
//
// Guards read caller payload from the transition Context under the Key*
// constants and never mutate it. Checks that need external facts (does this
// email already exist?) go through small synchronous lookup interfaces the
// host implements on top of its own persistence; the guards themselves
// manage no connections and perform no retries. Lookup failures deny
// closed: a guard that cannot verify a fact does not approve it.
//
//	chain := lifecycle.MustNewChain(
//	    guards.EmailExists(storage),
//	    guards.PasswordStrength(guards.DefaultStrengthConfig()),
//	    guards.ReferralKnown(storage),
//	)
package guards
