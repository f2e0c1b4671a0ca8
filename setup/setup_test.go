package setup_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	swissknife "github.com/swissknife-wallet/swissknife-go"
	"github.com/swissknife-wallet/swissknife-go/setup"
	"github.com/swissknife-wallet/swissknife-go/tokenstore"
)

type setupServer struct {
	*httptest.Server
	checkCalls   atomic.Int64
	welcomeCalls atomic.Int64
}

func newSetupServer(t *testing.T, status swissknife.SetupStatus, checkStatus int) *setupServer {
	t.Helper()
	s := &setupServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/setup/check", func(w http.ResponseWriter, r *http.Request) {
		s.checkCalls.Add(1)
		if checkStatus != http.StatusOK {
			w.WriteHeader(checkStatus)
			json.NewEncoder(w).Encode(map[string]string{"reason": "unavailable", "status": "error"})
			return
		}
		json.NewEncoder(w).Encode(status)
	})
	mux.HandleFunc("/setup/welcome-complete", func(w http.ResponseWriter, r *http.Request) {
		s.welcomeCalls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func newGate(t *testing.T, endpoint string, flags swissknife.FlagStore) *setup.Gate {
	t.Helper()
	client, err := swissknife.NewClient(swissknife.Config{Endpoint: endpoint})
	if err != nil {
		t.Fatal(err)
	}
	return setup.NewGate(client, flags)
}

func TestCheck_FullyCompletePersistsAndRedirects(t *testing.T) {
	server := newSetupServer(t, swissknife.SetupStatus{SignUpComplete: true, WelcomeComplete: true}, http.StatusOK)
	flags := tokenstore.NewMemoryFlags()
	gate := newGate(t, server.URL, flags)

	status, err := gate.Check(context.Background())
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if !status.Complete {
		t.Error("status.Complete = false, want true")
	}
	if status.Redirect == nil || status.Redirect.Route != "/auth/sign-in" {
		t.Errorf("redirect = %+v, want sign-in route", status.Redirect)
	}
	if !flags.Get(setup.FlagOnboardingComplete) {
		t.Error("completion flag was not persisted")
	}
}

func TestCheck_MemoizedFlagSkipsNetwork(t *testing.T) {
	server := newSetupServer(t, swissknife.SetupStatus{SignUpComplete: true, WelcomeComplete: true}, http.StatusOK)
	flags := tokenstore.NewMemoryFlags()
	gate := newGate(t, server.URL, flags)

	if _, err := gate.Check(context.Background()); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		status, err := gate.Check(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if !status.Complete {
			t.Error("memoized check should report complete")
		}
	}

	if calls := server.checkCalls.Load(); calls != 1 {
		t.Errorf("setup check endpoint hit %d times, want exactly 1", calls)
	}
}

func TestCheck_PartialCompletionRequestsWelcome(t *testing.T) {
	server := newSetupServer(t, swissknife.SetupStatus{SignUpComplete: true, WelcomeComplete: false}, http.StatusOK)
	flags := tokenstore.NewMemoryFlags()
	gate := newGate(t, server.URL, flags)

	status, err := gate.Check(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if status.Complete {
		t.Error("status.Complete = true, want false")
	}
	if !status.NeedsWelcome {
		t.Error("status.NeedsWelcome = false, want true")
	}
	if flags.Get(setup.FlagOnboardingComplete) {
		t.Error("flag persisted for partial completion")
	}
}

func TestCheck_NothingCompleteUnblocksFirstRun(t *testing.T) {
	server := newSetupServer(t, swissknife.SetupStatus{}, http.StatusOK)
	gate := newGate(t, server.URL, tokenstore.NewMemoryFlags())

	status, err := gate.Check(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if status.Complete || status.NeedsWelcome {
		t.Errorf("status = %+v, want neither complete nor welcome", status)
	}
}

func TestCheck_NetworkFailureFailsClosed(t *testing.T) {
	server := newSetupServer(t, swissknife.SetupStatus{}, http.StatusServiceUnavailable)
	flags := tokenstore.NewMemoryFlags()
	gate := newGate(t, server.URL, flags)

	status, err := gate.Check(context.Background())
	if err == nil {
		t.Fatal("Check() error = nil, want failure to surface")
	}
	if status.Complete || status.NeedsWelcome {
		t.Errorf("status = %+v, want gate closed on failure", status)
	}
	if flags.Get(setup.FlagOnboardingComplete) {
		t.Error("flag persisted despite network failure")
	}

	// Recovery: the next check retries the network.
	gate.Check(context.Background())
	if calls := server.checkCalls.Load(); calls != 2 {
		t.Errorf("setup check endpoint hit %d times, want a retry after failure", calls)
	}
}

func TestCompleteWelcome_MutatesThenPersists(t *testing.T) {
	server := newSetupServer(t, swissknife.SetupStatus{SignUpComplete: true}, http.StatusOK)
	flags := tokenstore.NewMemoryFlags()
	gate := newGate(t, server.URL, flags)

	if err := gate.CompleteWelcome(context.Background()); err != nil {
		t.Fatalf("CompleteWelcome() error: %v", err)
	}
	if server.welcomeCalls.Load() != 1 {
		t.Error("welcome-complete endpoint was not called")
	}
	if !flags.Get(setup.FlagOnboardingComplete) {
		t.Error("completion flag was not persisted")
	}

	// Later checks ride the memoized flag.
	if _, err := gate.Check(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls := server.checkCalls.Load(); calls != 0 {
		t.Errorf("setup check endpoint hit %d times after welcome completion, want 0", calls)
	}
}

func TestReset_DropsMemoization(t *testing.T) {
	server := newSetupServer(t, swissknife.SetupStatus{SignUpComplete: true, WelcomeComplete: true}, http.StatusOK)
	flags := tokenstore.NewMemoryFlags()
	gate := newGate(t, server.URL, flags)

	gate.Check(context.Background())
	if err := gate.Reset(); err != nil {
		t.Fatal(err)
	}
	gate.Check(context.Background())

	if calls := server.checkCalls.Load(); calls != 2 {
		t.Errorf("setup check endpoint hit %d times, want re-check after Reset", calls)
	}
}
