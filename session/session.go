// Package session owns the authentication state machine of the SDK.
//
// The Controller is the single writer of the Session snapshot. It starts
// in the loading state, settles to authenticated or unauthenticated on
// the first rehydration, and re-evaluates on sign-in, sign-out, observed
// 401s, and refresh failures. Everything else in the SDK — guards, the
// onboarding gate, the host UI — reads snapshots through Subscribe or
// Current and never writes.
//
// Strategy-specific behavior lives behind the Backend interface, with
// one implementation per authentication strategy: local password
// (LocalBackend), redirect-based provider with silent refresh
// (RedirectBackend), and provider-managed sessions (ManagedBackend).
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	swissknife "github.com/swissknife-wallet/swissknife-go"
	"github.com/swissknife-wallet/swissknife-go/audit"
	"github.com/swissknife-wallet/swissknife-go/metrics"
	"golang.org/x/sync/singleflight"
)

// Outcome is the explicit result a Backend reports for a session
// operation. Authentication failures never surface as errors: they
// degrade to a nil User, optionally with a Redirect. Err carries only
// business errors the caller may want to show (e.g. rejected
// credentials).
type Outcome struct {
	User     *swissknife.User
	Redirect *swissknife.Redirect
	Err      error
}

// Hooks are controller callbacks a Backend wires into its interceptors
// at install time. They flip controller state; they never navigate —
// navigation is the backend's concern.
type Hooks struct {
	// OnUnauthorized runs when the response phase observes a 401 after
	// the token store has been cleared.
	OnUnauthorized func()

	// OnRefreshLoginRequired runs when a silent refresh fails with a
	// cause that demands an interactive provider login.
	OnRefreshLoginRequired func(failure swissknife.RefreshFailure)

	// OnRefreshSignOut runs when a silent refresh fails for any other
	// cause.
	OnRefreshSignOut func(failure swissknife.RefreshFailure)
}

// Backend is the strategy-specific half of the session controller.
type Backend interface {
	// Strategy identifies the backend.
	Strategy() swissknife.Strategy

	// Install registers the strategy's interceptors on the shared
	// client. Installation replaces any previous registration under
	// the same interceptor IDs.
	Install(client *swissknife.Client, hooks Hooks)

	// Rehydrate attempts non-interactive session recovery.
	Rehydrate(ctx context.Context) Outcome

	// SignIn performs strategy-specific sign-in.
	SignIn(ctx context.Context, creds swissknife.Credentials) Outcome

	// SignOut tears down strategy-specific credentials.
	SignOut(ctx context.Context) Outcome
}

// Watcher is implemented by backends whose provider pushes session
// changes (the managed strategy). The controller mirrors pushed users
// into the Session.
type Watcher interface {
	Watch(push func(user *swissknife.User)) (stop func())
}

// Result is the explicit result of a Controller operation.
type Result struct {
	Session  swissknife.Session
	Redirect *swissknife.Redirect

	// Err is a business error for the caller to surface. Session
	// problems are absorbed into Session and never appear here.
	Err error
}

// Controller is the single source of truth for the Session.
type Controller struct {
	client  *swissknife.Client
	backend Backend
	logger  *slog.Logger
	audit   *audit.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	session swissknife.Session
	subs    map[int]func(swissknife.Session)
	nextSub int

	sf        singleflight.Group
	stopWatch func()
}

// Option configures the Controller.
type Option func(*Controller)

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithAudit attaches an audit logger for auth events.
func WithAudit(a *audit.Logger) Option {
	return func(c *Controller) { c.audit = a }
}

// WithMetrics attaches SDK metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// New creates a Controller, installs the backend's interceptors on the
// shared client, and, for watching backends, starts mirroring provider
// pushes. The session starts in the loading state; call Rehydrate to
// settle it.
func New(client *swissknife.Client, backend Backend, opts ...Option) *Controller {
	c := &Controller{
		client:  client,
		backend: backend,
		logger:  client.Logger(),
		session: swissknife.Session{Status: swissknife.StatusLoading},
		subs:    make(map[int]func(swissknife.Session)),
	}
	for _, o := range opts {
		o(c)
	}

	backend.Install(client, Hooks{
		OnUnauthorized:         c.onUnauthorized,
		OnRefreshLoginRequired: c.onRefreshLoginRequired,
		OnRefreshSignOut:       c.onRefreshSignOut,
	})

	if w, ok := backend.(Watcher); ok {
		c.stopWatch = w.Watch(func(user *swissknife.User) {
			c.setSession(user)
		})
	}

	return c
}

// Close stops provider mirroring. It does not sign the user out.
func (c *Controller) Close() error {
	if c.stopWatch != nil {
		c.stopWatch()
		c.stopWatch = nil
	}
	return nil
}

// Current returns the latest session snapshot.
func (c *Controller) Current() swissknife.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Subscribe registers fn for session snapshots. fn is called immediately
// with the current snapshot and then on every change, until the returned
// unsubscribe function runs. Unsubscribing is deterministic: after it
// returns, fn is never called again.
func (c *Controller) Subscribe(fn func(swissknife.Session)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	current := c.session
	c.mu.Unlock()

	fn(current)

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// Rehydrate attempts to recover a session without user interaction.
// Concurrent calls share a single flight; the shared outcome settles the
// session for all of them. Rehydrate never returns an error for
// authentication failures — they degrade to an unauthenticated session,
// optionally with a redirect.
func (c *Controller) Rehydrate(ctx context.Context) Result {
	v, _, _ := c.sf.Do("rehydrate", func() (interface{}, error) {
		start := time.Now()
		outcome := c.backend.Rehydrate(ctx)
		sess := c.setSession(outcome.User)

		if c.metrics != nil {
			c.metrics.RecordRehydrate(sess.Authenticated(), time.Since(start).Seconds())
		}
		c.auditEvent(audit.ActionRehydrate, sess, outcome)

		return Result{Session: sess, Redirect: outcome.Redirect, Err: outcome.Err}, nil
	})
	return v.(Result)
}

// CheckUserSession re-evaluates the session on demand, equivalent to
// Rehydrate. UI flows call it after explicit sign-in/out.
func (c *Controller) CheckUserSession(ctx context.Context) Result {
	return c.Rehydrate(ctx)
}

// SignIn performs a strategy-specific sign-in. For the redirect
// strategy the Result carries the provider redirect and the session
// stays unauthenticated until the post-redirect rehydrate.
func (c *Controller) SignIn(ctx context.Context, creds swissknife.Credentials) Result {
	outcome := c.backend.SignIn(ctx, creds)
	sess := c.setSession(outcome.User)

	if c.metrics != nil {
		c.metrics.RecordSignIn(c.backend.Strategy(), sess.Authenticated())
	}
	c.auditEvent(audit.ActionSignIn, sess, outcome)

	return Result{Session: sess, Redirect: outcome.Redirect, Err: outcome.Err}
}

// SignOut tears down the session: strategy credentials first, then the
// published snapshot flips to unauthenticated with a nil user.
func (c *Controller) SignOut(ctx context.Context) Result {
	outcome := c.backend.SignOut(ctx)
	sess := c.setSession(nil)

	if c.metrics != nil {
		c.metrics.RecordSignOut()
	}
	c.auditEvent(audit.ActionSignOut, sess, outcome)

	return Result{Session: sess, Redirect: outcome.Redirect, Err: outcome.Err}
}

// onUnauthorized flips the session after the interceptor observed a 401
// and cleared the store.
func (c *Controller) onUnauthorized() {
	c.setSession(nil)
	if c.metrics != nil {
		c.metrics.RecordUnauthorized()
	}
	if c.audit != nil {
		c.audit.Log(audit.Event{
			Action:   audit.ActionUnauthorized,
			Result:   audit.ResultDenied,
			Strategy: string(c.backend.Strategy()),
		})
	}
}

func (c *Controller) onRefreshLoginRequired(failure swissknife.RefreshFailure) {
	c.setSession(nil)
	if c.metrics != nil {
		c.metrics.RecordRefreshFailure(failure)
	}
	if c.audit != nil {
		c.audit.Log(audit.Event{
			Action:   audit.ActionRefresh,
			Result:   audit.ResultFailure,
			Strategy: string(c.backend.Strategy()),
			Details:  string(failure),
		})
	}
}

func (c *Controller) onRefreshSignOut(failure swissknife.RefreshFailure) {
	c.onRefreshLoginRequired(failure)
}

// setSession publishes a new snapshot and returns it. A nil user means
// unauthenticated. Subscribers are invoked outside the lock; the last
// write wins for overlapping flows.
func (c *Controller) setSession(user *swissknife.User) swissknife.Session {
	sess := swissknife.Session{Status: swissknife.StatusUnauthenticated}
	if user != nil {
		sess = swissknife.Session{Status: swissknife.StatusAuthenticated, User: user}
	}

	c.mu.Lock()
	c.session = sess
	fns := make([]func(swissknife.Session), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.SetSessionState(sess.Status)
	}
	for _, fn := range fns {
		fn(sess)
	}
	return sess
}

func (c *Controller) auditEvent(action string, sess swissknife.Session, outcome Outcome) {
	if c.audit == nil {
		return
	}
	e := audit.Event{
		Action:   action,
		Result:   audit.ResultSuccess,
		Strategy: string(c.backend.Strategy()),
	}
	if sess.User != nil {
		e.UserID = sess.User.ID
	}
	if outcome.Err != nil {
		e.Result = audit.ResultFailure
		e.Error = outcome.Err.Error()
	} else if action == audit.ActionRehydrate && !sess.Authenticated() {
		e.Result = audit.ResultFailure
	}
	c.audit.Log(e)
}
