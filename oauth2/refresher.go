// Package oauth2 implements silent token refresh for redirect-based
// identity providers using the OAuth2 refresh_token grant.
//
// The Refresher caches the last access token and only hits the token
// endpoint when it is missing or inside the refresh buffer of expiry.
// Failures are classified into the swissknife refresh taxonomy so the
// session controller can decide between a provider-login redirect and a
// full sign-out.
package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	swissknife "github.com/swissknife-wallet/swissknife-go"
	"golang.org/x/sync/singleflight"
)

// Refresher implements swissknife.TokenRefresher against an OAuth2 token
// endpoint.
type Refresher struct {
	clientID      string
	tokenURL      string
	scopes        []string
	refreshBuffer time.Duration
	httpClient    *http.Client

	mu           sync.RWMutex
	refreshToken string
	accessToken  string
	expiresAt    time.Time

	sf singleflight.Group
}

// compile-time check
var _ swissknife.TokenRefresher = (*Refresher)(nil)

// Option configures the Refresher.
type Option func(*Refresher)

// WithHTTPClient sets a custom HTTP client for token requests.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Refresher) { r.httpClient = c }
}

// WithRefreshBuffer sets how long before expiry the cached token is
// considered stale. Default: 1 minute.
func WithRefreshBuffer(d time.Duration) Option {
	return func(r *Refresher) { r.refreshBuffer = d }
}

// WithRefreshToken seeds the refresh token, typically from the
// provider's redirect callback.
func WithRefreshToken(token string) Option {
	return func(r *Refresher) { r.refreshToken = token }
}

// New creates a Refresher from the provider configuration.
func New(cfg swissknife.ProviderConfig, opts ...Option) *Refresher {
	r := &Refresher{
		clientID:      cfg.ClientID,
		tokenURL:      cfg.TokenURL,
		scopes:        cfg.Scopes,
		refreshBuffer: 1 * time.Minute,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// SetRefreshToken installs a new refresh token and drops the cached
// access token so the next Refresh uses the new grant.
func (r *Refresher) SetRefreshToken(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshToken = token
	r.accessToken = ""
	r.expiresAt = time.Time{}
}

// tokenResponse is the raw JSON response from the token endpoint.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int32  `json:"expires_in"`
}

// errorResponse is the RFC 6749 error body.
type errorResponse struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

// Refresh returns a usable access token, exchanging the refresh token if
// the cached one is missing or near expiry. Concurrent callers share a
// single exchange.
func (r *Refresher) Refresh(ctx context.Context) (string, error) {
	r.mu.RLock()
	if r.accessToken != "" && time.Now().Before(r.expiresAt.Add(-r.refreshBuffer)) {
		defer r.mu.RUnlock()
		return r.accessToken, nil
	}
	refreshToken := r.refreshToken
	r.mu.RUnlock()

	if refreshToken == "" {
		return "", swissknife.ClassifyRefresh("missing_refresh_token",
			fmt.Errorf("oauth2: no refresh token held"))
	}

	// singleflight prevents concurrent duplicate exchanges
	result, err, _ := r.sf.Do("refresh", func() (interface{}, error) {
		return r.exchange(ctx, refreshToken)
	})
	if err != nil {
		return "", err
	}

	tok := result.(*tokenResponse)
	r.mu.Lock()
	r.accessToken = tok.AccessToken
	r.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	if tok.RefreshToken != "" {
		// Provider rotated the refresh token.
		r.refreshToken = tok.RefreshToken
	}
	r.mu.Unlock()

	return tok.AccessToken, nil
}

// exchange performs the refresh_token grant against the token endpoint.
func (r *Refresher) exchange(ctx context.Context, refreshToken string) (*tokenResponse, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {r.clientID},
		"refresh_token": {refreshToken},
	}
	if len(r.scopes) > 0 {
		form.Set("scope", strings.Join(r.scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, swissknife.ClassifyRefresh("", fmt.Errorf("oauth2: create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, swissknife.ClassifyRefresh("", fmt.Errorf("oauth2: token request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, swissknife.ClassifyRefresh("", fmt.Errorf("oauth2: read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		_ = json.Unmarshal(body, &errResp)
		return nil, swissknife.ClassifyRefresh(errResp.Code,
			fmt.Errorf("oauth2: token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, swissknife.ClassifyRefresh("", fmt.Errorf("oauth2: decode response: %w", err))
	}
	if tok.AccessToken == "" {
		return nil, swissknife.ClassifyRefresh("", fmt.Errorf("oauth2: empty access_token in response"))
	}
	return &tok, nil
}
