// Package guard provides pure routing decisions over session snapshots.
//
// Guards never mutate session state and never navigate. They map a
// Session snapshot (plus declared requirements) to a Decision the host
// UI enacts: render, show a placeholder, redirect, or render nothing.
package guard

import (
	swissknife "github.com/swissknife-wallet/swissknife-go"
	"github.com/swissknife-wallet/swissknife-go/metrics"
)

// Verdict is the outcome class of a guard evaluation.
type Verdict string

const (
	// VerdictAllow renders the guarded content.
	VerdictAllow Verdict = "allow"
	// VerdictPlaceholder shows a loading or denied placeholder.
	VerdictPlaceholder Verdict = "placeholder"
	// VerdictRedirect navigates to Decision.Redirect.
	VerdictRedirect Verdict = "redirect"
	// VerdictDeny renders nothing.
	VerdictDeny Verdict = "deny"
)

// Decision is a guard's evaluation result.
type Decision struct {
	Verdict  Verdict
	Redirect *swissknife.Redirect
}

// Allowed reports whether the guarded content should render.
func (d Decision) Allowed() bool { return d.Verdict == VerdictAllow }

// Auth gates content on an authenticated session.
type Auth struct {
	// SignInRoute is the redirect target for unauthenticated sessions.
	SignInRoute string

	Metrics *metrics.Metrics
}

// Evaluate maps a session snapshot to a decision. A loading session
// yields a placeholder so the guard never flashes a sign-in redirect
// before the first rehydration settles. requestedPath is preserved as
// the redirect's return-to target.
func (g Auth) Evaluate(sess swissknife.Session, requestedPath string) Decision {
	d := Decision{Verdict: VerdictAllow}
	switch sess.Status {
	case swissknife.StatusLoading:
		d = Decision{Verdict: VerdictPlaceholder}
	case swissknife.StatusUnauthenticated:
		d = Decision{
			Verdict:  VerdictRedirect,
			Redirect: &swissknife.Redirect{Route: g.SignInRoute, ReturnTo: requestedPath},
		}
	}
	g.record(d)
	return d
}

func (g Auth) record(d Decision) {
	if g.Metrics != nil {
		g.Metrics.RecordGuardDecision("auth", string(d.Verdict))
	}
}

// Guest gates content on the absence of a session: sign-in and sign-up
// screens redirect away once the user is authenticated.
type Guest struct {
	// LandingRoute is the redirect target when no return-to is pending.
	LandingRoute string

	Metrics *metrics.Metrics
}

// Evaluate redirects authenticated sessions to returnTo when one is
// pending, otherwise to the landing route. Loading sessions get a
// placeholder.
func (g Guest) Evaluate(sess swissknife.Session, returnTo string) Decision {
	d := Decision{Verdict: VerdictAllow}
	switch sess.Status {
	case swissknife.StatusLoading:
		d = Decision{Verdict: VerdictPlaceholder}
	case swissknife.StatusAuthenticated:
		target := g.LandingRoute
		if returnTo != "" {
			target = returnTo
		}
		d = Decision{Verdict: VerdictRedirect, Redirect: &swissknife.Redirect{Route: target}}
	}
	if g.Metrics != nil {
		g.Metrics.RecordGuardDecision("guest", string(d.Verdict))
	}
	return d
}

// Permission gates content on the user's permission set covering a
// declared required set.
type Permission struct {
	// Required is the permission set the content declares.
	Required swissknife.PermissionSet

	// ShowDenied renders a denied placeholder instead of nothing when
	// the check fails.
	ShowDenied bool

	// Bypass short-circuits the check unconditionally (test/dev mode).
	Bypass bool

	Metrics *metrics.Metrics
}

// Evaluate allows iff the session user's permission set is a superset
// of Required. Bypass always allows. A loading session yields a
// placeholder; an unauthenticated one is denied like any other
// insufficient set.
func (g Permission) Evaluate(sess swissknife.Session) Decision {
	d := g.evaluate(sess)
	if g.Metrics != nil {
		g.Metrics.RecordGuardDecision("permission", string(d.Verdict))
	}
	return d
}

func (g Permission) evaluate(sess swissknife.Session) Decision {
	if g.Bypass {
		return Decision{Verdict: VerdictAllow}
	}
	if sess.Status == swissknife.StatusLoading {
		return Decision{Verdict: VerdictPlaceholder}
	}

	var held swissknife.PermissionSet
	if sess.User != nil {
		held = sess.User.Permissions
	}
	if held.Superset(g.Required) {
		return Decision{Verdict: VerdictAllow}
	}
	if g.ShowDenied {
		return Decision{Verdict: VerdictPlaceholder}
	}
	return Decision{Verdict: VerdictDeny}
}
