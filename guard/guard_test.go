package guard_test

import (
	"testing"

	swissknife "github.com/swissknife-wallet/swissknife-go"
	"github.com/swissknife-wallet/swissknife-go/guard"
)

func authenticated(perms ...swissknife.Permission) swissknife.Session {
	return swissknife.Session{
		Status: swissknife.StatusAuthenticated,
		User:   &swissknife.User{ID: "user-1", Permissions: perms},
	}
}

func TestAuthGuard(t *testing.T) {
	g := guard.Auth{SignInRoute: "/auth/sign-in"}

	tests := []struct {
		name string
		sess swissknife.Session
		want guard.Verdict
	}{
		{"loading shows placeholder", swissknife.Session{Status: swissknife.StatusLoading}, guard.VerdictPlaceholder},
		{"unauthenticated redirects", swissknife.Session{Status: swissknife.StatusUnauthenticated}, guard.VerdictRedirect},
		{"authenticated allows", authenticated(), guard.VerdictAllow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := g.Evaluate(tt.sess, "/wallets")
			if d.Verdict != tt.want {
				t.Errorf("verdict = %q, want %q", d.Verdict, tt.want)
			}
		})
	}
}

func TestAuthGuard_RedirectPreservesReturnTo(t *testing.T) {
	g := guard.Auth{SignInRoute: "/auth/sign-in"}

	d := g.Evaluate(swissknife.Session{Status: swissknife.StatusUnauthenticated}, "/wallets/42")
	if d.Redirect == nil {
		t.Fatal("redirect missing")
	}
	if d.Redirect.Route != "/auth/sign-in" {
		t.Errorf("route = %q, want /auth/sign-in", d.Redirect.Route)
	}
	if d.Redirect.ReturnTo != "/wallets/42" {
		t.Errorf("return-to = %q, want requested path", d.Redirect.ReturnTo)
	}
}

func TestGuestGuard(t *testing.T) {
	g := guard.Guest{LandingRoute: "/dashboard"}

	if d := g.Evaluate(swissknife.Session{Status: swissknife.StatusUnauthenticated}, ""); !d.Allowed() {
		t.Errorf("unauthenticated verdict = %q, want allow", d.Verdict)
	}
	if d := g.Evaluate(swissknife.Session{Status: swissknife.StatusLoading}, ""); d.Verdict != guard.VerdictPlaceholder {
		t.Errorf("loading verdict = %q, want placeholder", d.Verdict)
	}

	d := g.Evaluate(authenticated(), "")
	if d.Verdict != guard.VerdictRedirect || d.Redirect.Route != "/dashboard" {
		t.Errorf("decision = %+v, want redirect to landing route", d)
	}

	d = g.Evaluate(authenticated(), "/wallets/42")
	if d.Verdict != guard.VerdictRedirect || d.Redirect.Route != "/wallets/42" {
		t.Errorf("decision = %+v, want redirect to pending return-to", d)
	}
}

func TestPermissionGuard_SupersetSemantics(t *testing.T) {
	tests := []struct {
		name     string
		held     []swissknife.Permission
		required swissknife.PermissionSet
		want     guard.Verdict
	}{
		{
			"exact match allows",
			[]swissknife.Permission{swissknife.PermReadWallet},
			swissknife.PermissionSet{swissknife.PermReadWallet},
			guard.VerdictAllow,
		},
		{
			"strict superset allows",
			[]swissknife.Permission{swissknife.PermReadWallet, swissknife.PermWriteWallet},
			swissknife.PermissionSet{swissknife.PermReadWallet},
			guard.VerdictAllow,
		},
		{
			"missing permission denies",
			[]swissknife.Permission{swissknife.PermReadWallet},
			swissknife.PermissionSet{swissknife.PermWriteWallet},
			guard.VerdictDeny,
		},
		{
			"partial overlap denies",
			[]swissknife.Permission{swissknife.PermReadWallet},
			swissknife.PermissionSet{swissknife.PermReadWallet, swissknife.PermWriteLnNode},
			guard.VerdictDeny,
		},
		{
			"empty requirement allows",
			nil,
			nil,
			guard.VerdictAllow,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := guard.Permission{Required: tt.required}
			d := g.Evaluate(authenticated(tt.held...))
			if d.Verdict != tt.want {
				t.Errorf("verdict = %q, want %q", d.Verdict, tt.want)
			}
		})
	}
}

func TestPermissionGuard_ShowDeniedPlaceholder(t *testing.T) {
	g := guard.Permission{
		Required:   swissknife.PermissionSet{swissknife.PermWriteAPIKey},
		ShowDenied: true,
	}

	d := g.Evaluate(authenticated(swissknife.PermReadWallet))
	if d.Verdict != guard.VerdictPlaceholder {
		t.Errorf("verdict = %q, want placeholder when ShowDenied is set", d.Verdict)
	}
}

func TestPermissionGuard_BypassAlwaysAllows(t *testing.T) {
	g := guard.Permission{
		Required: swissknife.PermissionSet{swissknife.PermWriteLnNode},
		Bypass:   true,
	}

	if d := g.Evaluate(authenticated()); !d.Allowed() {
		t.Errorf("verdict = %q, want allow under bypass", d.Verdict)
	}
	if d := g.Evaluate(swissknife.Session{Status: swissknife.StatusUnauthenticated}); !d.Allowed() {
		t.Errorf("verdict = %q, want allow under bypass even unauthenticated", d.Verdict)
	}
}

func TestPermissionGuard_LoadingAndNilUser(t *testing.T) {
	g := guard.Permission{Required: swissknife.PermissionSet{swissknife.PermReadWallet}}

	if d := g.Evaluate(swissknife.Session{Status: swissknife.StatusLoading}); d.Verdict != guard.VerdictPlaceholder {
		t.Errorf("loading verdict = %q, want placeholder", d.Verdict)
	}
	if d := g.Evaluate(swissknife.Session{Status: swissknife.StatusUnauthenticated}); d.Verdict != guard.VerdictDeny {
		t.Errorf("unauthenticated verdict = %q, want deny", d.Verdict)
	}
}
