// Package interceptor provides the request/response hooks the session
// controller installs on the shared client.
//
// The request phase attaches the current credential at send time — never
// a snapshot from installation time — and the response phase watches for
// authentication failure. Each interceptor registers under a stable ID,
// so a controller re-installing its hooks replaces rather than stacks
// them.
package interceptor

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	swissknife "github.com/swissknife-wallet/swissknife-go"
)

// Stable registration IDs. The bearer-attach and silent-refresh
// interceptors share an ID on purpose: a strategy switch replaces the
// request phase instead of running both.
const (
	IDBearerAuth   = "bearer_auth"
	IDUnauthorized = "unauthorized"
	IDRequestID    = "request_id"
)

// TokenSource yields the credential to attach to an outgoing request.
// Returning swissknife.ErrNoToken (or any error) sends the request
// unauthenticated; the backend rejects it if auth was required.
type TokenSource func(ctx context.Context) (string, error)

// StoreSource adapts a TokenStore into a TokenSource.
func StoreSource(store swissknife.TokenStore) TokenSource {
	return func(context.Context) (string, error) {
		return store.Load()
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// BearerAuth attaches "Authorization: Bearer <token>" to every request,
// reading the token from its source at dispatch time.
type BearerAuth struct {
	Source TokenSource
}

var _ swissknife.Interceptor = (*BearerAuth)(nil)

// ID returns the stable registration key.
func (b *BearerAuth) ID() string { return IDBearerAuth }

// Intercept wraps next with the bearer-attach request phase.
func (b *BearerAuth) Intercept(next http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		tok, err := b.Source(req.Context())
		if err != nil || tok == "" {
			// No credential: proceed unauthenticated.
			return next.RoundTrip(req)
		}
		out := req.Clone(req.Context())
		out.Header.Set("Authorization", "Bearer "+tok)
		return next.RoundTrip(out)
	})
}

// SilentRefresh is the request phase for redirect-based providers: it
// asks the refresher for a fresh credential before attaching it. On a
// classified failure it invokes the login or sign-out hook and re-raises
// the error without dispatching the request.
type SilentRefresh struct {
	Refresher swissknife.TokenRefresher

	// OnLoginRequired runs for failures that demand an interactive
	// provider login (missing refresh capability, invalid grant).
	OnLoginRequired func()

	// OnSignOut runs for every other refresh failure.
	OnSignOut func()
}

var _ swissknife.Interceptor = (*SilentRefresh)(nil)

// ID returns the stable registration key, shared with BearerAuth.
func (s *SilentRefresh) ID() string { return IDBearerAuth }

// Intercept wraps next with the refresh-then-attach request phase.
func (s *SilentRefresh) Intercept(next http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		tok, err := s.Refresher.Refresh(req.Context())
		if err != nil {
			var re *swissknife.RefreshError
			if errors.As(err, &re) && re.RequiresLogin() {
				if s.OnLoginRequired != nil {
					s.OnLoginRequired()
				}
			} else if s.OnSignOut != nil {
				s.OnSignOut()
			}
			return nil, err
		}
		out := req.Clone(req.Context())
		out.Header.Set("Authorization", "Bearer "+tok)
		return next.RoundTrip(out)
	})
}

// Unauthorized watches responses for HTTP 401. On detection it clears
// the token store, then navigates to the sign-in route, in that order —
// the store must be empty before any retried request can dispatch — and
// still hands the original response back to the caller.
type Unauthorized struct {
	Store       swissknife.TokenStore
	Navigator   swissknife.Navigator
	SignInRoute string

	// OnUnauthorized, if set, runs after the store is cleared; used for
	// audit and metrics hooks.
	OnUnauthorized func()
}

var _ swissknife.Interceptor = (*Unauthorized)(nil)

// ID returns the stable registration key.
func (u *Unauthorized) ID() string { return IDUnauthorized }

// Intercept wraps next with the 401-detection response phase.
func (u *Unauthorized) Intercept(next http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		resp, err := next.RoundTrip(req)
		if err != nil || resp == nil {
			return resp, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			_ = u.Store.Clear()
			if u.OnUnauthorized != nil {
				u.OnUnauthorized()
			}
			if u.Navigator != nil {
				u.Navigator.NavigateTo(u.SignInRoute)
			}
		}
		return resp, err
	})
}

// RequestID stamps outgoing requests with an X-Request-ID header for
// audit correlation, honoring an ID already present in the context.
type RequestID struct{}

var _ swissknife.Interceptor = (*RequestID)(nil)

// ID returns the stable registration key.
func (RequestID) ID() string { return IDRequestID }

// Intercept wraps next with the request-ID stamp.
func (RequestID) Intercept(next http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if req.Header.Get("X-Request-ID") != "" {
			return next.RoundTrip(req)
		}
		id := swissknife.RequestIDFromContext(req.Context())
		if id == "" {
			id = uuid.NewString()
		}
		out := req.Clone(req.Context())
		out.Header.Set("X-Request-ID", id)
		return next.RoundTrip(out)
	})
}
