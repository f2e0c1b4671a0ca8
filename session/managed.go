package session

import (
	"context"
	"log/slog"

	swissknife "github.com/swissknife-wallet/swissknife-go"
	"github.com/swissknife-wallet/swissknife-go/interceptor"
	"github.com/swissknife-wallet/swissknife-go/tokenstore"
)

// ManagedBackend mirrors a provider SDK that owns its own session
// lifecycle. The provider is the source of truth; the controller's
// Session is a projection of what the provider reports, both on demand
// (Rehydrate) and via the provider's change listener (Watch).
type ManagedBackend struct {
	provider  swissknife.ManagedProvider
	navigator swissknife.Navigator
	logger    *slog.Logger

	// scratch store for the 401 handler.
	store swissknife.TokenStore

	signInRoute string
}

var (
	_ Backend = (*ManagedBackend)(nil)
	_ Watcher = (*ManagedBackend)(nil)
)

// NewManaged creates the managed strategy backend.
func NewManaged(client *swissknife.Client, provider swissknife.ManagedProvider, nav swissknife.Navigator) *ManagedBackend {
	cfg := client.Config()
	return &ManagedBackend{
		provider:    provider,
		navigator:   nav,
		logger:      client.Logger(),
		store:       tokenstore.NewMemory(),
		signInRoute: cfg.SignInRoute,
	}
}

// Strategy identifies the backend.
func (b *ManagedBackend) Strategy() swissknife.Strategy { return swissknife.StrategyManaged }

// Install registers the request-ID stamp, a bearer attach that asks the
// provider for its current token at send time, and the 401 handler.
func (b *ManagedBackend) Install(client *swissknife.Client, hooks Hooks) {
	client.Attach(interceptor.RequestID{})
	client.Attach(&interceptor.BearerAuth{
		Source: func(ctx context.Context) (string, error) {
			s, err := b.provider.CurrentSession(ctx)
			if err != nil || s == nil {
				return "", swissknife.ErrNoToken
			}
			return s.Token, nil
		},
	})
	client.Attach(&interceptor.Unauthorized{
		Store:          b.store,
		Navigator:      b.navigator,
		SignInRoute:    b.signInRoute,
		OnUnauthorized: hooks.OnUnauthorized,
	})
}

// Watch subscribes to the provider's session listener and mirrors every
// report into the controller.
func (b *ManagedBackend) Watch(push func(user *swissknife.User)) (stop func()) {
	return b.provider.Subscribe(func(s *swissknife.ProviderSession) {
		push(userFromProviderSession(s))
	})
}

// Rehydrate queries the provider for its current session.
func (b *ManagedBackend) Rehydrate(ctx context.Context) Outcome {
	s, err := b.provider.CurrentSession(ctx)
	if err != nil {
		b.logger.Debug("provider session query failed", "err", err)
		return Outcome{}
	}
	return Outcome{User: userFromProviderSession(s)}
}

// SignIn delegates to the provider SDK. A rejected sign-in surfaces the
// provider's error; the session settles from the provider's own state.
func (b *ManagedBackend) SignIn(ctx context.Context, creds swissknife.Credentials) Outcome {
	if err := b.provider.SignIn(ctx, creds); err != nil {
		return Outcome{Err: err}
	}
	return b.Rehydrate(ctx)
}

// SignOut delegates to the provider SDK.
func (b *ManagedBackend) SignOut(ctx context.Context) Outcome {
	_ = b.store.Clear()
	if err := b.provider.SignOut(ctx); err != nil {
		b.logger.Warn("provider sign-out failed", "err", err)
	}
	return Outcome{}
}

// userFromProviderSession projects a provider session onto the SDK's
// user shape. A nil session projects to nil.
func userFromProviderSession(s *swissknife.ProviderSession) *swissknife.User {
	if s == nil || s.Token == "" {
		return nil
	}
	return &swissknife.User{
		ID:          s.Subject,
		DisplayName: s.DisplayName,
		Email:       s.Email,
		Permissions: s.Permissions,
		Token:       s.Token,
	}
}
