package session

import (
	"context"
	"log/slog"

	swissknife "github.com/swissknife-wallet/swissknife-go"
	"github.com/swissknife-wallet/swissknife-go/interceptor"
	"github.com/swissknife-wallet/swissknife-go/rest"
	"github.com/swissknife-wallet/swissknife-go/token"
)

// LocalBackend implements the local password strategy: sign-in against
// the SwissKnife backend, token persisted in the token store, session
// recovered by decoding the stored token locally.
type LocalBackend struct {
	api       *rest.API
	store     swissknife.TokenStore
	validator *token.Validator
	navigator swissknife.Navigator
	logger    *slog.Logger

	signInRoute string
}

var _ Backend = (*LocalBackend)(nil)

// NewLocal creates the local strategy backend. The validator honors the
// client's configured token leeway.
func NewLocal(client *swissknife.Client, store swissknife.TokenStore, nav swissknife.Navigator) *LocalBackend {
	cfg := client.Config()
	return &LocalBackend{
		api:         rest.New(client),
		store:       store,
		validator:   token.NewValidator(token.WithLeeway(cfg.TokenLeeway)),
		navigator:   nav,
		logger:      client.Logger(),
		signInRoute: cfg.SignInRoute,
	}
}

// Strategy identifies the backend.
func (b *LocalBackend) Strategy() swissknife.Strategy { return swissknife.StrategyLocal }

// Install registers the request-ID stamp, the store-reading bearer
// attach, and the 401 handler.
func (b *LocalBackend) Install(client *swissknife.Client, hooks Hooks) {
	client.Attach(interceptor.RequestID{})
	client.Attach(&interceptor.BearerAuth{Source: interceptor.StoreSource(b.store)})
	client.Attach(&interceptor.Unauthorized{
		Store:          b.store,
		Navigator:      b.navigator,
		SignInRoute:    b.signInRoute,
		OnUnauthorized: hooks.OnUnauthorized,
	})
}

// Rehydrate recovers a session from the stored token. A missing,
// malformed, or expired token degrades to unauthenticated; an invalid
// token is also cleared from the store.
func (b *LocalBackend) Rehydrate(ctx context.Context) Outcome {
	tok, err := b.store.Load()
	if err != nil || tok == "" {
		return Outcome{}
	}

	if !b.validator.IsValid(tok) {
		b.logger.Debug("stored credential invalid, clearing")
		_ = b.store.Clear()
		return Outcome{}
	}

	claims, err := b.validator.Decode(tok)
	if err != nil {
		_ = b.store.Clear()
		return Outcome{}
	}

	return Outcome{User: userFromClaims(claims, tok)}
}

// SignIn exchanges credentials for a token, persists it, then settles
// the session the same way Rehydrate does. A rejected sign-in surfaces
// the backend's error in Outcome.Err.
func (b *LocalBackend) SignIn(ctx context.Context, creds swissknife.Credentials) Outcome {
	tok, err := b.api.SignIn(ctx, creds)
	if err != nil {
		return Outcome{Err: err}
	}
	if err := b.store.Save(tok); err != nil {
		b.logger.Warn("persist credential failed", "err", err)
	}
	return b.Rehydrate(ctx)
}

// SignOut clears the stored token.
func (b *LocalBackend) SignOut(ctx context.Context) Outcome {
	_ = b.store.Clear()
	return Outcome{}
}

// userFromClaims builds the session user from decoded claims.
func userFromClaims(claims *swissknife.Claims, rawToken string) *swissknife.User {
	return &swissknife.User{
		ID:          claims.Subject,
		DisplayName: claims.DisplayName,
		Email:       claims.Email,
		Permissions: claims.Permissions,
		Token:       rawToken,
	}
}
