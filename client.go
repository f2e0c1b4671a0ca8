// Package swissknife provides a Go client SDK for the SwissKnife
// Bitcoin/Lightning wallet backend.
//
// The SDK centers on the session controller (package session), which owns
// the authentication state machine and installs request/response
// interceptors on a shared, dependency-injected Client. Route guards
// (package guard) and the onboarding gate (package setup) consume session
// snapshots; package rest exposes the typed REST surface of the backend.
//
// Example wiring for the local password strategy:
//
//	client, err := swissknife.NewClient(
//	    swissknife.Config{Endpoint: "https://api.swissknife.example"},
//	    swissknife.WithLogger(slog.Default()),
//	)
package swissknife

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Interceptor is a request/response hook installed on the Client. The
// request phase runs in attach order; the response phase unwinds in
// reverse. Attaching an interceptor with an already-registered ID
// replaces the previous one in place, so re-installation never stacks
// duplicate handlers.
type Interceptor interface {
	// ID is the stable registration key.
	ID() string

	// Intercept wraps the next transport in the chain.
	Intercept(next http.RoundTripper) http.RoundTripper
}

// Config holds connection and behavior configuration for the SDK.
type Config struct {
	// Endpoint is the base URL of the SwissKnife backend,
	// e.g. "https://api.swissknife.example".
	Endpoint string `yaml:"endpoint"`

	// Strategy selects the authentication backend. Default: StrategyLocal.
	Strategy Strategy `yaml:"strategy"`

	// SignInRoute is the host-app route unauthenticated users are sent
	// to. Default: "/auth/sign-in".
	SignInRoute string `yaml:"sign_in_route"`

	// DefaultLandingRoute is where guest guards send already-signed-in
	// users. Default: "/dashboard".
	DefaultLandingRoute string `yaml:"default_landing_route"`

	// PermissionBypass short-circuits every permission guard check.
	// Intended for test and development builds only.
	PermissionBypass bool `yaml:"permission_bypass"`

	// HTTPTimeout bounds every backend call. Default: 10 seconds.
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	// TokenLeeway is the clock-skew tolerance applied to credential
	// expiry checks. Default: 0 (strict).
	TokenLeeway time.Duration `yaml:"token_leeway"`

	// Provider configures the redirect-based strategy.
	Provider ProviderConfig `yaml:"provider"`
}

// ProviderConfig describes a redirect-based identity provider.
type ProviderConfig struct {
	// Domain is the provider's base URL.
	Domain string `yaml:"domain"`

	// ClientID identifies this application at the provider.
	ClientID string `yaml:"client_id"`

	// TokenURL is the token endpoint. If empty, defaults to
	// Domain + "/oauth/token".
	TokenURL string `yaml:"token_url"`

	// Scopes to request on refresh.
	Scopes []string `yaml:"scopes"`

	// LoginRoute is the host-app route that starts an interactive
	// provider login. Default: "/auth/provider/sign-in".
	LoginRoute string `yaml:"login_route"`

	// LogoutRoute is the host-app route that performs the provider's
	// logout redirect. Default: "/auth/provider/sign-out".
	LogoutRoute string `yaml:"logout_route"`
}

// DefaultHTTPTimeout bounds backend calls when Config.HTTPTimeout is unset.
const DefaultHTTPTimeout = 10 * time.Second

// Client is the shared API client the session controller installs
// interceptors on. All backend traffic — the typed REST surface included —
// flows through it, so the attached credential is always read at
// request-send time.
type Client struct {
	config Config
	logger *slog.Logger
	base   *http.Client

	mu    sync.RWMutex
	order []string
	hooks map[string]Interceptor
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets a structured logger for the client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient sets the underlying HTTP client. Its transport becomes
// the innermost element of the interceptor chain.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.base = h }
}

// NewClient creates a new SDK client with the given configuration.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("swissknife: Endpoint is required")
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyLocal
	}
	if cfg.SignInRoute == "" {
		cfg.SignInRoute = "/auth/sign-in"
	}
	if cfg.DefaultLandingRoute == "" {
		cfg.DefaultLandingRoute = "/dashboard"
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = DefaultHTTPTimeout
	}
	if cfg.Provider.TokenURL == "" && cfg.Provider.Domain != "" {
		cfg.Provider.TokenURL = strings.TrimSuffix(cfg.Provider.Domain, "/") + "/oauth/token"
	}
	if cfg.Provider.LoginRoute == "" {
		cfg.Provider.LoginRoute = "/auth/provider/sign-in"
	}
	if cfg.Provider.LogoutRoute == "" {
		cfg.Provider.LogoutRoute = "/auth/provider/sign-out"
	}

	c := &Client{
		config: cfg,
		logger: slog.Default(),
		base:   &http.Client{Timeout: cfg.HTTPTimeout},
		hooks:  make(map[string]Interceptor),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Config returns the client configuration.
func (c *Client) Config() Config { return c.config }

// Logger returns the client's structured logger.
func (c *Client) Logger() *slog.Logger { return c.logger }

// Attach registers an interceptor. If one with the same ID is already
// attached, it is replaced in its original chain position.
func (c *Client) Attach(i Interceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.hooks[i.ID()]; !exists {
		c.order = append(c.order, i.ID())
	}
	c.hooks[i.ID()] = i
}

// Detach removes the interceptor registered under id, if any.
func (c *Client) Detach(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.hooks[id]; !exists {
		return
	}
	delete(c.hooks, id)
	for n, have := range c.order {
		if have == id {
			c.order = append(c.order[:n], c.order[n+1:]...)
			break
		}
	}
}

// Attached returns the IDs of the registered interceptors in chain order.
func (c *Client) Attached() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// transport composes the interceptor chain over the base transport. The
// first-attached interceptor runs outermost: first on the request path,
// last on the response path.
func (c *Client) transport() http.RoundTripper {
	c.mu.RLock()
	defer c.mu.RUnlock()

	next := c.base.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	for n := len(c.order) - 1; n >= 0; n-- {
		next = c.hooks[c.order[n]].Intercept(next)
	}
	return next
}

// Do dispatches the request through the interceptor chain. The chain is
// composed per call so interceptors attached after client construction
// apply to all subsequent requests.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	h := http.Client{
		Transport:     c.transport(),
		Timeout:       c.base.Timeout,
		CheckRedirect: c.base.CheckRedirect,
		Jar:           c.base.Jar,
	}
	return h.Do(req)
}

// NewRequest builds a request against the configured endpoint. A non-nil
// body is JSON-encoded.
func (c *Client) NewRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("swissknife: encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	url := strings.TrimSuffix(c.config.Endpoint, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("swissknife: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}
