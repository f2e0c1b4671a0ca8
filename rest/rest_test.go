package rest_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	swissknife "github.com/swissknife-wallet/swissknife-go"
	"github.com/swissknife-wallet/swissknife-go/rest"
)

func newAPI(t *testing.T, handler http.Handler) *rest.API {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := swissknife.NewClient(swissknife.Config{Endpoint: server.URL})
	if err != nil {
		t.Fatal(err)
	}
	return rest.New(client)
}

func TestSignIn_DecodesTokenEnvelope(t *testing.T) {
	var gotBody map[string]string
	api := newAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/sign-in" {
			t.Errorf("request = %s %s, want POST /auth/sign-in", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatal(err)
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
	}))

	tok, err := api.SignIn(context.Background(), swissknife.Credentials{
		Email:    "satoshi@example.com",
		Password: "hunter2",
	})
	if err != nil {
		t.Fatalf("SignIn() error: %v", err)
	}
	if tok != "tok-123" {
		t.Errorf("token = %q, want tok-123", tok)
	}
	if gotBody["email"] != "satoshi@example.com" || gotBody["password"] != "hunter2" {
		t.Errorf("request body = %v, want credentials", gotBody)
	}
}

func TestSignIn_MissingTokenInResponse(t *testing.T) {
	api := newAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))

	if _, err := api.SignIn(context.Background(), swissknife.Credentials{}); err == nil {
		t.Error("SignIn() error = nil, want missing-token error")
	}
}

func TestStructuredErrorBody(t *testing.T) {
	api := newAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{
			"reason": "insufficient balance",
			"status": "error",
		})
	}))

	_, err := api.PayInvoice(context.Background(), "lnbc1...")
	var apiErr *swissknife.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Reason != "insufficient balance" {
		t.Errorf("reason = %q, want backend reason", apiErr.Reason)
	}
	if apiErr.HTTPStatus != http.StatusUnprocessableEntity {
		t.Errorf("HTTP status = %d, want 422", apiErr.HTTPStatus)
	}
	if apiErr.Unauthorized() {
		t.Error("Unauthorized() = true for a 422")
	}
}

func TestUnstructuredErrorBody(t *testing.T) {
	api := newAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))

	_, err := api.Wallets(context.Background())
	var apiErr *swissknife.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Reason != "upstream exploded" {
		t.Errorf("reason = %q, want raw body text", apiErr.Reason)
	}
	if apiErr.Status != "error" {
		t.Errorf("status = %q, want default error", apiErr.Status)
	}
}

func TestUnauthorizedError(t *testing.T) {
	api := newAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := api.Wallets(context.Background())
	var apiErr *swissknife.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if !apiErr.Unauthorized() {
		t.Error("Unauthorized() = false for a 401")
	}
	if !swissknife.IsUnauthorized(err) {
		t.Error("IsUnauthorized() = false for a wrapped 401")
	}
}

func TestInvoices_PaginatedListEnvelope(t *testing.T) {
	api := newAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/invoices" {
			t.Errorf("path = %q, want /invoices", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("page_size") != "25" {
			t.Errorf("query = %v, want page=2 page_size=25", q)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{"id": "inv-1", "bolt11": "lnbc1...", "amount_sats": 2100, "state": "settled"},
				{"id": "inv-2", "bolt11": "lnbc2...", "amount_sats": 500, "state": "pending"},
			},
			"total": 52,
		})
	}))

	invoices, total, err := api.Invoices(context.Background(), rest.ListOptions{Page: 2, PageSize: 25})
	if err != nil {
		t.Fatalf("Invoices() error: %v", err)
	}
	if total != 52 {
		t.Errorf("total = %d, want 52", total)
	}
	if len(invoices) != 2 || invoices[0].ID != "inv-1" || invoices[1].State != "pending" {
		t.Errorf("invoices = %+v, want decoded items", invoices)
	}
}

func TestInvoices_NoPaginationOmitsQuery(t *testing.T) {
	api := newAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" {
			t.Errorf("query = %q, want empty", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]any{"items": []any{}, "total": 0})
	}))

	if _, _, err := api.Invoices(context.Background(), rest.ListOptions{}); err != nil {
		t.Fatal(err)
	}
}

func TestInvoice_EscapesID(t *testing.T) {
	api := newAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/invoices/inv 1" {
			t.Errorf("path = %q, want escaped id decoded back", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "inv 1"})
	}))

	if _, err := api.Invoice(context.Background(), "inv 1"); err != nil {
		t.Fatal(err)
	}
	if _, err := api.Invoice(context.Background(), ""); err == nil {
		t.Error("empty id accepted")
	}
}

func TestCreateInvoice(t *testing.T) {
	api := newAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var params rest.CreateInvoiceParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			t.Fatal(err)
		}
		if params.AmountSats != 2100 || params.Memo != "coffee" {
			t.Errorf("params = %+v", params)
		}
		json.NewEncoder(w).Encode(map[string]any{"id": "inv-9", "bolt11": "lnbc21u...", "amount_sats": 2100, "state": "pending"})
	}))

	inv, err := api.CreateInvoice(context.Background(), rest.CreateInvoiceParams{AmountSats: 2100, Memo: "coffee"})
	if err != nil {
		t.Fatalf("CreateInvoice() error: %v", err)
	}
	if inv.ID != "inv-9" || inv.Bolt11 != "lnbc21u..." {
		t.Errorf("invoice = %+v", inv)
	}
}

func TestCreateAPIKey_SecretOnlyOnCreate(t *testing.T) {
	api := newAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			json.NewEncoder(w).Encode(map[string]string{"id": "key-1", "name": "ci", "secret": "sk_live_..."})
		case http.MethodGet:
			json.NewEncoder(w).Encode([]map[string]string{{"id": "key-1", "name": "ci"}})
		}
	}))

	created, err := api.CreateAPIKey(context.Background(), "ci")
	if err != nil {
		t.Fatal(err)
	}
	if created.Secret == "" {
		t.Error("created key missing secret")
	}

	listed, err := api.APIKeys(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0].Secret != "" {
		t.Errorf("listed keys = %+v, want no secrets", listed)
	}
}

func TestRevokeAPIKey(t *testing.T) {
	var gotPath string
	api := newAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := api.RevokeAPIKey(context.Background(), "key-1"); err != nil {
		t.Fatal(err)
	}
	if gotPath != "DELETE /api-keys/key-1" {
		t.Errorf("request = %q", gotPath)
	}
}

func TestNodeInfo(t *testing.T) {
	api := newAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"alias":           "sk-node",
			"pubkey":          "02abc",
			"block_height":    840000,
			"synced_to_chain": true,
			"num_peers":       8,
		})
	}))

	info, err := api.NodeInfo(context.Background())
	if err != nil {
		t.Fatalf("NodeInfo() error: %v", err)
	}
	if info.Alias != "sk-node" || !info.SyncedToChain || info.NumPeers != 8 {
		t.Errorf("info = %+v", info)
	}
}
