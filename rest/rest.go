// Package rest is the typed client for the SwissKnife backend REST API.
//
// Every call goes through the shared swissknife.Client, so the session
// controller's interceptors apply: credentials are attached at send time
// and 401 responses trigger the forced sign-out path before the error
// reaches the caller here.
//
// Non-2xx responses carrying the backend's structured error body
// ({"reason": ..., "status": ...}) decode into *swissknife.APIError.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	swissknife "github.com/swissknife-wallet/swissknife-go"
)

// API is the typed REST surface of the SwissKnife backend.
type API struct {
	client *swissknife.Client
}

// New creates an API bound to the shared client.
func New(client *swissknife.Client) *API {
	return &API{client: client}
}

// ListOptions holds pagination parameters for list endpoints.
type ListOptions struct {
	Page     int
	PageSize int
}

func (o ListOptions) query() string {
	if o.Page == 0 && o.PageSize == 0 {
		return ""
	}
	q := url.Values{}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(o.PageSize))
	}
	return "?" + q.Encode()
}

// do dispatches a JSON request and decodes the response into out when
// out is non-nil.
func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	req, err := a.client.NewRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("swissknife/rest: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("swissknife/rest: decode response: %w", err)
	}
	return nil
}

// apiError builds an *swissknife.APIError from a failed response.
func apiError(resp *http.Response) error {
	apiErr := &swissknife.APIError{HTTPStatus: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Reason == "" {
		apiErr.Reason = strings.TrimSpace(string(body))
		if apiErr.Reason == "" {
			apiErr.Reason = http.StatusText(resp.StatusCode)
		}
	}
	if apiErr.Status == "" {
		apiErr.Status = "error"
	}
	return apiErr
}

// --- Auth ---

// tokenEnvelope is the response shape of the sign-in and sign-up
// endpoints.
type tokenEnvelope struct {
	AccessToken string `json:"access_token"`
}

// SignIn exchanges password credentials for a bearer token.
func (a *API) SignIn(ctx context.Context, creds swissknife.Credentials) (string, error) {
	var env tokenEnvelope
	err := a.do(ctx, http.MethodPost, "/auth/sign-in", map[string]string{
		"email":    creds.Email,
		"password": creds.Password,
	}, &env)
	if err != nil {
		return "", err
	}
	if env.AccessToken == "" {
		return "", fmt.Errorf("swissknife/rest: sign-in response missing access_token")
	}
	return env.AccessToken, nil
}

// SignUpParams are the registration fields for a new account.
type SignUpParams struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

// SignUp registers a new account and returns its bearer token.
func (a *API) SignUp(ctx context.Context, params SignUpParams) (string, error) {
	var env tokenEnvelope
	if err := a.do(ctx, http.MethodPost, "/auth/sign-up", params, &env); err != nil {
		return "", err
	}
	if env.AccessToken == "" {
		return "", fmt.Errorf("swissknife/rest: sign-up response missing access_token")
	}
	return env.AccessToken, nil
}

// --- Setup ---

// SetupCheck fetches the deployment's first-run status.
func (a *API) SetupCheck(ctx context.Context) (*swissknife.SetupStatus, error) {
	var status swissknife.SetupStatus
	if err := a.do(ctx, http.MethodGet, "/setup/check", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// CompleteWelcome marks the one-time welcome step complete server-side.
func (a *API) CompleteWelcome(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/setup/welcome-complete", nil, nil)
}

// --- Wallets ---

// Wallet is an on-chain/Lightning wallet owned by the account.
type Wallet struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	BalanceSats int64  `json:"balance_sats"`
	PendingSats int64  `json:"pending_sats"`
}

// Wallets lists the account's wallets with their balances.
func (a *API) Wallets(ctx context.Context) ([]Wallet, error) {
	var wallets []Wallet
	if err := a.do(ctx, http.MethodGet, "/wallet", nil, &wallets); err != nil {
		return nil, err
	}
	return wallets, nil
}

// --- Invoices ---

// Invoice is a Lightning invoice issued by the account's node.
type Invoice struct {
	ID         string    `json:"id"`
	Bolt11     string    `json:"bolt11"`
	Memo       string    `json:"memo"`
	AmountSats int64     `json:"amount_sats"`
	State      string    `json:"state"` // pending, settled, expired
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// CreateInvoiceParams describe a new invoice.
type CreateInvoiceParams struct {
	AmountSats int64  `json:"amount_sats"`
	Memo       string `json:"memo,omitempty"`
}

// CreateInvoice issues a new Lightning invoice.
func (a *API) CreateInvoice(ctx context.Context, params CreateInvoiceParams) (*Invoice, error) {
	var inv Invoice
	if err := a.do(ctx, http.MethodPost, "/invoices", params, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// listEnvelope is the paginated list response shape.
type listEnvelope[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// Invoices lists invoices with pagination, newest first.
func (a *API) Invoices(ctx context.Context, opts ListOptions) ([]Invoice, int, error) {
	var env listEnvelope[Invoice]
	if err := a.do(ctx, http.MethodGet, "/invoices"+opts.query(), nil, &env); err != nil {
		return nil, 0, err
	}
	return env.Items, env.Total, nil
}

// Invoice fetches a single invoice by ID.
func (a *API) Invoice(ctx context.Context, id string) (*Invoice, error) {
	if id == "" {
		return nil, fmt.Errorf("swissknife/rest: invoice id cannot be empty")
	}
	var inv Invoice
	if err := a.do(ctx, http.MethodGet, "/invoices/"+url.PathEscape(id), nil, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// --- Payments ---

// Payment is an outgoing Lightning payment.
type Payment struct {
	ID         string    `json:"id"`
	Bolt11     string    `json:"bolt11"`
	AmountSats int64     `json:"amount_sats"`
	FeeSats    int64     `json:"fee_sats"`
	State      string    `json:"state"` // in_flight, settled, failed
	CreatedAt  time.Time `json:"created_at"`
}

// Payments lists payments with pagination, newest first.
func (a *API) Payments(ctx context.Context, opts ListOptions) ([]Payment, int, error) {
	var env listEnvelope[Payment]
	if err := a.do(ctx, http.MethodGet, "/payments"+opts.query(), nil, &env); err != nil {
		return nil, 0, err
	}
	return env.Items, env.Total, nil
}

// PayInvoice pays a bolt11 invoice and returns the resulting payment.
func (a *API) PayInvoice(ctx context.Context, bolt11 string) (*Payment, error) {
	if bolt11 == "" {
		return nil, fmt.Errorf("swissknife/rest: bolt11 cannot be empty")
	}
	var p Payment
	err := a.do(ctx, http.MethodPost, "/payments/pay", map[string]string{"bolt11": bolt11}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// --- Lightning addresses ---

// LightningAddress is a user-facing address that resolves to the
// account's node.
type LightningAddress struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

// LightningAddresses lists the account's Lightning addresses.
func (a *API) LightningAddresses(ctx context.Context) ([]LightningAddress, error) {
	var addrs []LightningAddress
	if err := a.do(ctx, http.MethodGet, "/lightning-addresses", nil, &addrs); err != nil {
		return nil, err
	}
	return addrs, nil
}

// CreateLightningAddress registers a new Lightning address.
func (a *API) CreateLightningAddress(ctx context.Context, address string) (*LightningAddress, error) {
	if address == "" {
		return nil, fmt.Errorf("swissknife/rest: address cannot be empty")
	}
	var addr LightningAddress
	err := a.do(ctx, http.MethodPost, "/lightning-addresses", map[string]string{"address": address}, &addr)
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

// --- API keys ---

// APIKey is a programmatic credential for the account. Secret is only
// populated on creation.
type APIKey struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Secret    string    `json:"secret,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// APIKeys lists the account's API keys. Secrets are never included.
func (a *API) APIKeys(ctx context.Context) ([]APIKey, error) {
	var keys []APIKey
	if err := a.do(ctx, http.MethodGet, "/api-keys", nil, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// CreateAPIKey issues a new API key. The returned Secret is shown once.
func (a *API) CreateAPIKey(ctx context.Context, name string) (*APIKey, error) {
	if name == "" {
		return nil, fmt.Errorf("swissknife/rest: key name cannot be empty")
	}
	var key APIKey
	err := a.do(ctx, http.MethodPost, "/api-keys", map[string]string{"name": name}, &key)
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// RevokeAPIKey deletes an API key.
func (a *API) RevokeAPIKey(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("swissknife/rest: key id cannot be empty")
	}
	return a.do(ctx, http.MethodDelete, "/api-keys/"+url.PathEscape(id), nil, nil)
}

// --- Node administration ---

// NodeInfo is the state of the backing Lightning node.
type NodeInfo struct {
	Alias         string `json:"alias"`
	Pubkey        string `json:"pubkey"`
	Version       string `json:"version"`
	BlockHeight   int64  `json:"block_height"`
	SyncedToChain bool   `json:"synced_to_chain"`
	NumPeers      int    `json:"num_peers"`
}

// NodeInfo fetches the Lightning node's state. Requires ln_node read
// permission server-side.
func (a *API) NodeInfo(ctx context.Context) (*NodeInfo, error) {
	var info NodeInfo
	if err := a.do(ctx, http.MethodGet, "/node/info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ConnectPeer asks the node to connect to a peer at "pubkey@host:port".
func (a *API) ConnectPeer(ctx context.Context, uri string) error {
	if uri == "" {
		return fmt.Errorf("swissknife/rest: peer uri cannot be empty")
	}
	return a.do(ctx, http.MethodPost, "/node/peers", map[string]string{"uri": uri}, nil)
}
