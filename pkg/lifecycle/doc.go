// Package lifecycle provides a guarded finite-state-machine substrate: an
// entity may only change state through a finite set of legal transitions,
// each gated by an ordered sequence of independent guards that can each
// veto the move.
//
// The package separates structural legality from semantic approval:
//  1. A data-driven transition Table defines which actions are legal from
//     which states; a (state, action) pair absent from the table is
//     rejected before any validation runs.
//  2. An ordered, short-circuiting Chain of named Guards then approves or
//     denies the structurally legal move for business-rule reasons.
//  3. The Engine commits the new state with a per-entity compare-and-set,
//     so concurrent requests against one entity can never interleave into
//     a corrupted state.
//
// # Usage
//
//	engine := lifecycle.MustNew(
//	    lifecycle.WithRules(
//	        lifecycle.Rule{Kind: "article", From: "draft", Action: "submit-for-review", To: "moderation"},
//	        lifecycle.Rule{Kind: "article", From: "moderation", Action: "publish", To: "published"},
//	    ),
//	)
//
//	article := lifecycle.MustNewEntity("article", "draft")
//	tc := lifecycle.NewContext(article.ID(), article.Kind(), "submit-for-review", nil)
//	state, err := engine.Request(ctx, article, "submit-for-review", tc)
//
// Transition tables may also be loaded from YAML via WithRulesYAML; see
// ParseRules for the document format.
//
// # Guards
//
// A Guard is a named predicate over the pending transition's Context. It
// answers Approve or Deny(reason) and must not mutate the Context or shared
// state. Chains are bound per (kind, action); a kind-wide chain registered
// with RegisterGlobalGuard runs before any per-action chain. An empty or
// unregistered chain approves vacuously. Chains may be reconfigured between
// evaluations; an in-flight evaluation always observes the snapshot it
// started with.
//
// # Error Handling
//
// Domain rejections are first-class values, never panics. Inspect them with
// the predicate helpers:
//
//	if lifecycle.IsStructuralError(err) { /* no rule from current state */ }
//	if lifecycle.IsGuardDeniedError(err) { /* named guard vetoed, carries reason */ }
//	if lifecycle.IsConflictError(err) { /* lost a commit race, re-read and retry */ }
//
// Configuration errors (duplicate rules, nil guards) surface only from
// registration APIs and are appropriate to treat as fatal at startup.
//
// # Concurrency
//
// Guards run sequentially and synchronously within one Request call and are
// expected to be fast, non-blocking predicates; any external lookup a guard
// needs belongs behind a host-owned synchronous abstraction. Requests
// against different entities proceed independently. Requests against the
// same entity are serialized by a version-checked commit: exactly one racer
// wins, losers are re-evaluated against the new state up to the configured
// retry budget and then rejected with a ConflictError.
package lifecycle
