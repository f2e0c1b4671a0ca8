package swissknife

import "context"

// TokenStore persists the raw bearer credential for the lifetime of the
// current session scope. Implementations: tokenstore/ (memory, file),
// fake/ (testing).
//
// Callers treat any error as "no credential": storage unavailability
// degrades to an unauthenticated session, never a failure.
type TokenStore interface {
	// Save writes the raw token. No validation is performed.
	Save(token string) error

	// Load returns the stored token, or ErrNoToken if absent.
	Load() (string, error)

	// Clear removes the token. Clearing an empty store is a no-op.
	Clear() error
}

// FlagStore persists boolean one-way flags across restarts, such as the
// onboarding completion markers.
type FlagStore interface {
	// Get reports whether the flag is set. Missing or unreadable
	// storage reads as unset.
	Get(key string) bool

	// Set marks the flag.
	Set(key string) error

	// Delete removes the flag, for operator-driven resets.
	Delete(key string) error
}

// Navigator performs the host application's route changes. In a browser
// host this is a location change; in tests it records the target.
type Navigator interface {
	NavigateTo(route string)
}

// TokenRefresher acquires a fresh credential from a redirect-based
// provider without user interaction. Implementations: oauth2/ (refresh
// token grant), fake/ (testing).
type TokenRefresher interface {
	// Refresh returns a usable access token, performing a silent
	// refresh if the cached one is expired or missing. Failures are
	// classified via *RefreshError.
	Refresh(ctx context.Context) (string, error)
}

// ManagedProvider is the facade over a third-party SDK that owns its own
// session lifecycle. The session controller mirrors its reported state.
type ManagedProvider interface {
	// CurrentSession returns the provider's active session, or nil if
	// the provider holds none.
	CurrentSession(ctx context.Context) (*ProviderSession, error)

	// Subscribe registers a listener for session changes and returns a
	// deterministic unsubscribe function. A nil session means signed out.
	Subscribe(fn func(*ProviderSession)) (unsubscribe func())

	// SignIn delegates authentication to the provider.
	SignIn(ctx context.Context, creds Credentials) error

	// SignOut terminates the provider-managed session.
	SignOut(ctx context.Context) error
}
