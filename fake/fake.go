// Package fake provides in-memory stand-ins for the SDK's interfaces
// and an in-process SwissKnife backend for testing.
//
// Use fake.NewServer() to run host-app tests against a real HTTP
// round trip without a deployed backend, and the small fakes
// (Refresher, Provider, Navigator, Notifier) to test session flows
// without a provider.
package fake

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	swissknife "github.com/swissknife-wallet/swissknife-go"
)

// signingKey signs the fake backend's tokens. Tokens are decode-only
// client-side, so the key never needs to leave this package.
var signingKey = []byte("fake-backend-signing-key")

type account struct {
	email       string
	password    string
	displayName string
	permissions swissknife.PermissionSet
}

type state struct {
	mu       sync.RWMutex
	accounts map[string]*account // email → account
	setup    swissknife.SetupStatus
	wallets  []walletRecord
	invoices []invoiceRecord
	tokenTTL time.Duration
}

type walletRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	BalanceSats int64  `json:"balance_sats"`
	PendingSats int64  `json:"pending_sats"`
}

type invoiceRecord struct {
	ID         string    `json:"id"`
	Bolt11     string    `json:"bolt11"`
	Memo       string    `json:"memo"`
	AmountSats int64     `json:"amount_sats"`
	State      string    `json:"state"`
	CreatedAt  time.Time `json:"created_at"`
}

// Option configures the fake backend.
type Option func(*state)

// WithAccount adds a password account the fake backend accepts.
func WithAccount(email, password string, perms ...swissknife.Permission) Option {
	return func(s *state) {
		s.accounts[email] = &account{
			email:       email,
			password:    password,
			displayName: strings.SplitN(email, "@", 2)[0],
			permissions: perms,
		}
	}
}

// WithSetupStatus sets the first-run status the backend reports.
func WithSetupStatus(status swissknife.SetupStatus) Option {
	return func(s *state) { s.setup = status }
}

// WithWallet adds a wallet with a balance.
func WithWallet(id, name string, balanceSats int64) Option {
	return func(s *state) {
		s.wallets = append(s.wallets, walletRecord{ID: id, Name: name, BalanceSats: balanceSats})
	}
}

// WithTokenTTL overrides the default one hour token lifetime. Negative
// TTLs issue already-expired tokens.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *state) { s.tokenTTL = ttl }
}

// Server is an in-process SwissKnife backend.
type Server struct {
	*httptest.Server
	s *state
}

// NewServer starts a fake backend. Callers own Close.
func NewServer(opts ...Option) *Server {
	s := &state{
		accounts: make(map[string]*account),
		tokenTTL: time.Hour,
	}
	for _, o := range opts {
		o(s)
	}

	srv := &Server{s: s}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/sign-in", srv.handleSignIn)
	mux.HandleFunc("POST /auth/sign-up", srv.handleSignUp)
	mux.HandleFunc("GET /setup/check", srv.handleSetupCheck)
	mux.HandleFunc("POST /setup/welcome-complete", srv.handleWelcomeComplete)
	mux.HandleFunc("GET /wallet", srv.authed(srv.handleWallets))
	mux.HandleFunc("GET /invoices", srv.authed(srv.handleInvoices))
	mux.HandleFunc("POST /invoices", srv.authed(srv.handleCreateInvoice))
	srv.Server = httptest.NewServer(mux)
	return srv
}

// IssueToken signs a token for email as if it had just signed in. The
// account must exist.
func (srv *Server) IssueToken(email string) (string, bool) {
	srv.s.mu.RLock()
	acct, ok := srv.s.accounts[email]
	ttl := srv.s.tokenTTL
	srv.s.mu.RUnlock()
	if !ok {
		return "", false
	}
	return signAccountToken(acct, ttl), true
}

func signAccountToken(acct *account, ttl time.Duration) string {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":         acct.email,
		"name":        acct.displayName,
		"email":       acct.email,
		"permissions": acct.permissions.Strings(),
		"iat":         now.Unix(),
		"exp":         now.Add(ttl).Unix(),
	})
	signed, _ := tok.SignedString(signingKey)
	return signed
}

func (srv *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}

	srv.s.mu.RLock()
	acct, ok := srv.s.accounts[creds.Email]
	ttl := srv.s.tokenTTL
	srv.s.mu.RUnlock()
	if !ok || acct.password != creds.Password {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, map[string]string{"access_token": signAccountToken(acct, ttl)})
}

func (srv *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var params struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil || params.Email == "" {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}

	srv.s.mu.Lock()
	if _, exists := srv.s.accounts[params.Email]; exists {
		srv.s.mu.Unlock()
		writeError(w, http.StatusConflict, "account already exists")
		return
	}
	acct := &account{
		email:       params.Email,
		password:    params.Password,
		displayName: params.DisplayName,
	}
	srv.s.accounts[params.Email] = acct
	srv.s.setup.SignUpComplete = true
	ttl := srv.s.tokenTTL
	srv.s.mu.Unlock()

	writeJSON(w, map[string]string{"access_token": signAccountToken(acct, ttl)})
}

func (srv *Server) handleSetupCheck(w http.ResponseWriter, r *http.Request) {
	srv.s.mu.RLock()
	defer srv.s.mu.RUnlock()
	writeJSON(w, srv.s.setup)
}

func (srv *Server) handleWelcomeComplete(w http.ResponseWriter, r *http.Request) {
	srv.s.mu.Lock()
	srv.s.setup.WelcomeComplete = true
	srv.s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (srv *Server) handleWallets(w http.ResponseWriter, r *http.Request) {
	srv.s.mu.RLock()
	defer srv.s.mu.RUnlock()
	wallets := srv.s.wallets
	if wallets == nil {
		wallets = []walletRecord{}
	}
	writeJSON(w, wallets)
}

func (srv *Server) handleInvoices(w http.ResponseWriter, r *http.Request) {
	srv.s.mu.RLock()
	defer srv.s.mu.RUnlock()
	items := srv.s.invoices
	if items == nil {
		items = []invoiceRecord{}
	}
	writeJSON(w, map[string]any{"items": items, "total": len(items)})
}

func (srv *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var params struct {
		AmountSats int64  `json:"amount_sats"`
		Memo       string `json:"memo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil || params.AmountSats <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "amount must be positive")
		return
	}

	inv := invoiceRecord{
		ID:         uuid.NewString(),
		Bolt11:     "lnbcfake" + uuid.NewString(),
		Memo:       params.Memo,
		AmountSats: params.AmountSats,
		State:      "pending",
		CreatedAt:  time.Now(),
	}
	srv.s.mu.Lock()
	srv.s.invoices = append(srv.s.invoices, inv)
	srv.s.mu.Unlock()
	writeJSON(w, inv)
}

// authed rejects requests without a decodable, unexpired bearer token.
func (srv *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "missing credential")
			return
		}
		tok, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return signingKey, nil })
		if err != nil || !tok.Valid {
			writeError(w, http.StatusUnauthorized, "invalid credential")
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"reason": reason, "status": "error"})
}

// --- TokenRefresher ---

// Refresher is an in-memory TokenRefresher. Zero value fails with a
// missing-token classification; set Token or Err to steer it.
type Refresher struct {
	mu    sync.Mutex
	Token string
	Err   error
	calls int
}

var _ swissknife.TokenRefresher = (*Refresher)(nil)

// Refresh returns the configured token or error.
func (f *Refresher) Refresh(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return "", f.Err
	}
	if f.Token == "" {
		return "", swissknife.ClassifyRefresh("missing_refresh_token", nil)
	}
	return f.Token, nil
}

// Calls reports how many times Refresh ran.
func (f *Refresher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// --- ManagedProvider ---

// Provider is an in-memory ManagedProvider whose session is steered by
// tests through SetSession.
type Provider struct {
	mu        sync.Mutex
	session   *swissknife.ProviderSession
	signInErr error
	listeners map[int]func(*swissknife.ProviderSession)
	nextID    int
}

var _ swissknife.ManagedProvider = (*Provider)(nil)

// NewProvider creates a signed-out provider.
func NewProvider() *Provider {
	return &Provider{listeners: make(map[int]func(*swissknife.ProviderSession))}
}

// FailSignIn makes SignIn return err.
func (p *Provider) FailSignIn(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signInErr = err
}

// SetSession replaces the provider session and notifies listeners. A
// nil session models provider-side sign-out.
func (p *Provider) SetSession(s *swissknife.ProviderSession) {
	p.mu.Lock()
	p.session = s
	fns := make([]func(*swissknife.ProviderSession), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

// CurrentSession returns the provider's session, nil when signed out.
func (p *Provider) CurrentSession(context.Context) (*swissknife.ProviderSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session, nil
}

// Subscribe registers a session listener.
func (p *Provider) Subscribe(fn func(*swissknife.ProviderSession)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

// SignIn establishes a session for the given email.
func (p *Provider) SignIn(_ context.Context, creds swissknife.Credentials) error {
	p.mu.Lock()
	err := p.signInErr
	p.mu.Unlock()
	if err != nil {
		return err
	}
	p.SetSession(&swissknife.ProviderSession{
		Token:     "managed-" + uuid.NewString(),
		Subject:   creds.Email,
		Email:     creds.Email,
		ExpiresAt: time.Now().Add(time.Hour),
	})
	return nil
}

// SignOut drops the session and notifies listeners.
func (p *Provider) SignOut(context.Context) error {
	p.SetSession(nil)
	return nil
}

// --- Navigator ---

// Navigator records navigation targets.
type Navigator struct {
	mu     sync.Mutex
	routes []string
}

var _ swissknife.Navigator = (*Navigator)(nil)

// NavigateTo records the route.
func (n *Navigator) NavigateTo(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
}

// Routes returns the recorded navigation targets in order.
func (n *Navigator) Routes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.routes))
	copy(out, n.routes)
	return out
}
