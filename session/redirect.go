package session

import (
	"context"
	"errors"
	"log/slog"

	swissknife "github.com/swissknife-wallet/swissknife-go"
	"github.com/swissknife-wallet/swissknife-go/interceptor"
	"github.com/swissknife-wallet/swissknife-go/token"
	"github.com/swissknife-wallet/swissknife-go/tokenstore"
)

// RedirectBackend implements the redirect-based provider strategy.
// Credentials come from silent refresh; interactive sign-in and sign-out
// are provider redirects, so SignIn never yields a user directly — the
// post-redirect Rehydrate does.
type RedirectBackend struct {
	refresher swissknife.TokenRefresher
	validator *token.Validator
	navigator swissknife.Navigator
	logger    *slog.Logger

	// scratch store for the 401 handler; the provider owns the real
	// credential.
	store swissknife.TokenStore

	loginRoute  string
	logoutRoute string
}

var _ Backend = (*RedirectBackend)(nil)

// NewRedirect creates the redirect strategy backend around a silent
// refresher (see package oauth2).
func NewRedirect(client *swissknife.Client, refresher swissknife.TokenRefresher, nav swissknife.Navigator) *RedirectBackend {
	cfg := client.Config()
	return &RedirectBackend{
		refresher:   refresher,
		validator:   token.NewValidator(token.WithLeeway(cfg.TokenLeeway)),
		navigator:   nav,
		logger:      client.Logger(),
		store:       tokenstore.NewMemory(),
		loginRoute:  cfg.Provider.LoginRoute,
		logoutRoute: cfg.Provider.LogoutRoute,
	}
}

// Strategy identifies the backend.
func (b *RedirectBackend) Strategy() swissknife.Strategy { return swissknife.StrategyRedirect }

// Install registers the request-ID stamp, the silent-refresh request
// phase (replacing any bearer attach under the same ID), and the 401
// handler. Refresh failures navigate before the controller hook flips
// state, mirroring the forced-redirect semantics of interactive
// providers.
func (b *RedirectBackend) Install(client *swissknife.Client, hooks Hooks) {
	client.Attach(interceptor.RequestID{})
	client.Attach(&interceptor.SilentRefresh{
		Refresher: b.refresher,
		OnLoginRequired: func() {
			b.navigator.NavigateTo(b.loginRoute)
			if hooks.OnRefreshLoginRequired != nil {
				hooks.OnRefreshLoginRequired(swissknife.RefreshLoginRequired)
			}
		},
		OnSignOut: func() {
			if hooks.OnRefreshSignOut != nil {
				hooks.OnRefreshSignOut(swissknife.RefreshOther)
			}
		},
	})
	client.Attach(&interceptor.Unauthorized{
		Store:          b.store,
		Navigator:      b.navigator,
		SignInRoute:    b.loginRoute,
		OnUnauthorized: hooks.OnUnauthorized,
	})
}

// Rehydrate attempts a silent token acquisition. Classified failures
// that require login yield a redirect to the provider's login route;
// everything else degrades to plain unauthenticated.
func (b *RedirectBackend) Rehydrate(ctx context.Context) Outcome {
	tok, err := b.refresher.Refresh(ctx)
	if err != nil {
		var re *swissknife.RefreshError
		if errors.As(err, &re) && re.RequiresLogin() {
			b.logger.Debug("silent refresh requires login", "class", re.Failure)
			return Outcome{Redirect: &swissknife.Redirect{Route: b.loginRoute}}
		}
		b.logger.Debug("silent refresh failed", "err", err)
		return Outcome{}
	}

	claims, err := b.validator.Decode(tok)
	if err != nil {
		// A provider token we cannot read is a token we cannot trust.
		return Outcome{}
	}
	_ = b.store.Save(tok)
	return Outcome{User: userFromClaims(claims, tok)}
}

// SignIn triggers the provider's interactive login redirect. Completion
// happens via Rehydrate after the provider returns.
func (b *RedirectBackend) SignIn(ctx context.Context, creds swissknife.Credentials) Outcome {
	return Outcome{Redirect: &swissknife.Redirect{Route: b.loginRoute}}
}

// SignOut clears local scratch state and redirects through the
// provider's logout route.
func (b *RedirectBackend) SignOut(ctx context.Context) Outcome {
	_ = b.store.Clear()
	return Outcome{Redirect: &swissknife.Redirect{Route: b.logoutRoute}}
}
