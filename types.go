package swissknife

import "time"

// Status describes the authentication state of the current session.
type Status string

const (
	// StatusLoading is the initial state, before the first rehydration
	// attempt has settled.
	StatusLoading Status = "loading"

	// StatusAuthenticated means a user is signed in and the held
	// credential was valid at last check.
	StatusAuthenticated Status = "authenticated"

	// StatusUnauthenticated means no usable credential is held.
	StatusUnauthenticated Status = "unauthenticated"
)

// Session is the authentication state snapshot published by the session
// controller. User is non-nil if and only if Status is StatusAuthenticated.
type Session struct {
	Status Status
	User   *User
}

// Authenticated reports whether the session holds a signed-in user.
func (s Session) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.User != nil
}

// User is the identity carried by an authenticated session.
type User struct {
	ID          string
	DisplayName string
	Email       string
	Permissions PermissionSet
	// Token is the raw bearer credential backing this session.
	Token string
}

// Permission is a capability tag granted to a user and required by
// protected surfaces.
type Permission string

// The fixed permission vocabulary of the SwissKnife backend.
const (
	PermReadWallet       Permission = "read:wallet"
	PermWriteWallet      Permission = "write:wallet"
	PermReadLnAddress    Permission = "read:ln_address"
	PermWriteLnAddress   Permission = "write:ln_address"
	PermReadTransaction  Permission = "read:transaction"
	PermWriteTransaction Permission = "write:transaction"
	PermReadLnNode       Permission = "read:ln_node"
	PermWriteLnNode      Permission = "write:ln_node"
	PermReadAPIKey       Permission = "read:api_key"
	PermWriteAPIKey      Permission = "write:api_key"
)

// PermissionSet is an ordered collection of permissions. Order is
// preserved from the decoded credential; membership checks ignore it.
type PermissionSet []Permission

// Has reports whether p is in the set.
func (ps PermissionSet) Has(p Permission) bool {
	for _, have := range ps {
		if have == p {
			return true
		}
	}
	return false
}

// Superset reports whether every permission in required is in the set.
// An empty required set is always satisfied.
func (ps PermissionSet) Superset(required PermissionSet) bool {
	for _, want := range required {
		if !ps.Has(want) {
			return false
		}
	}
	return true
}

// Strings returns the set as plain strings, for logging and wire use.
func (ps PermissionSet) Strings() []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}

// Claims are the fields extracted from a decoded bearer credential.
type Claims struct {
	Subject     string
	DisplayName string
	Email       string
	Permissions PermissionSet
	ExpiresAt   time.Time
	IssuedAt    time.Time
	Extra       map[string]any
}

// Strategy selects which authentication backend the session controller
// orchestrates. It is fixed at startup.
type Strategy string

const (
	// StrategyLocal signs in against the SwissKnife backend with
	// password credentials and stores the issued bearer token.
	StrategyLocal Strategy = "local"

	// StrategyRedirect delegates sign-in to a redirect-based provider
	// and acquires credentials by silent refresh.
	StrategyRedirect Strategy = "redirect"

	// StrategyManaged mirrors a provider SDK's own managed session.
	StrategyManaged Strategy = "managed"
)

// Credentials are the inputs to a local-strategy sign-in.
type Credentials struct {
	Email    string
	Password string
}

// Redirect is a caller-visible navigation request emitted by the session
// controller or a guard. ReturnTo, when set, is the originally requested
// path to resume after the redirect completes.
type Redirect struct {
	Route    string
	ReturnTo string
}

// ProviderSession is the session shape reported by a third-party managed
// or redirect-based provider.
type ProviderSession struct {
	Token       string
	Subject     string
	DisplayName string
	Email       string
	Permissions PermissionSet
	ExpiresAt   time.Time
}

// SetupStatus is the remote first-run state of a SwissKnife deployment.
type SetupStatus struct {
	SignUpComplete  bool `json:"sign_up_complete"`
	WelcomeComplete bool `json:"welcome_complete"`
}
