// Package setup implements the one-shot onboarding gate.
//
// First-run screens are gated on a remote setup status that is checked
// at most once per install: after the first successful check reports
// completion, a local flag short-circuits every later check without
// touching the network. A network failure fails closed — the caller
// keeps its loading placeholder and may retry.
package setup

import (
	"context"
	"log/slog"

	swissknife "github.com/swissknife-wallet/swissknife-go"
	"github.com/swissknife-wallet/swissknife-go/audit"
	"github.com/swissknife-wallet/swissknife-go/metrics"
	"github.com/swissknife-wallet/swissknife-go/rest"
)

// FlagOnboardingComplete is the local flag recording that the backend
// reported full setup completion. Once set it is never re-checked
// remotely; Gate.Reset is the operator escape hatch.
const FlagOnboardingComplete = "onboarding_complete"

// Status is the gate's decision for first-run routes.
type Status struct {
	// Complete means setup is fully done; first-run screens are
	// skipped. Redirect carries the sign-in route to land on.
	Complete bool

	// NeedsWelcome means sign-up is done but the one-time welcome step
	// is still pending; the host shows it and calls CompleteWelcome.
	NeedsWelcome bool

	Redirect *swissknife.Redirect
}

// Gate evaluates and memoizes the onboarding status.
type Gate struct {
	api     *rest.API
	flags   swissknife.FlagStore
	logger  *slog.Logger
	audit   *audit.Logger
	metrics *metrics.Metrics

	signInRoute string
}

// Option configures the Gate.
type Option func(*Gate)

// WithAudit attaches an audit logger for setup-check events.
func WithAudit(a *audit.Logger) Option {
	return func(g *Gate) { g.audit = a }
}

// WithMetrics attaches SDK metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

// NewGate creates the onboarding gate over the shared client.
func NewGate(client *swissknife.Client, flags swissknife.FlagStore, opts ...Option) *Gate {
	g := &Gate{
		api:         rest.New(client),
		flags:       flags,
		logger:      client.Logger(),
		signInRoute: client.Config().SignInRoute,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Check decides whether first-run screens are needed. The local flag is
// consulted first; when set, Check returns without any network call.
// Otherwise the remote status is fetched once: full completion persists
// the flag and redirects to sign-in, partial completion requests the
// welcome step, and anything less leaves the first-run screens
// unblocked. A network failure is returned as-is; the gate stays
// closed.
func (g *Gate) Check(ctx context.Context) (Status, error) {
	if g.flags.Get(FlagOnboardingComplete) {
		g.record("cache", nil)
		return g.complete(), nil
	}

	remote, err := g.api.SetupCheck(ctx)
	g.record("network", err)
	if err != nil {
		g.logger.Warn("setup check failed", "err", err)
		return Status{}, err
	}

	if remote.SignUpComplete && remote.WelcomeComplete {
		g.persist()
		return g.complete(), nil
	}
	if remote.SignUpComplete {
		return Status{NeedsWelcome: true}, nil
	}
	return Status{}, nil
}

// CompleteWelcome marks the welcome step done remotely and persists the
// local completion flag. The flag is only written after the mutation
// succeeds so an offline completion is retried next run.
func (g *Gate) CompleteWelcome(ctx context.Context) error {
	if err := g.api.CompleteWelcome(ctx); err != nil {
		return err
	}
	g.persist()
	return nil
}

// Reset drops the memoized flag so the next Check consults the backend
// again.
func (g *Gate) Reset() error {
	return g.flags.Delete(FlagOnboardingComplete)
}

func (g *Gate) complete() Status {
	return Status{
		Complete: true,
		Redirect: &swissknife.Redirect{Route: g.signInRoute},
	}
}

func (g *Gate) persist() {
	if err := g.flags.Set(FlagOnboardingComplete); err != nil {
		g.logger.Warn("persist onboarding flag failed", "err", err)
	}
}

func (g *Gate) record(source string, err error) {
	if g.metrics != nil {
		g.metrics.RecordSetupCheck(source)
	}
	if g.audit == nil {
		return
	}
	e := audit.Event{Action: audit.ActionSetupCheck, Result: audit.ResultSuccess, Details: source}
	if err != nil {
		e.Result = audit.ResultFailure
		e.Error = err.Error()
	}
	g.audit.Log(e)
}
