package payments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newMoncashServer(t *testing.T, balanceBody string, rejectFirst bool) (*httptest.Server, *int32) {
	t.Helper()
	var tokenCalls int32
	var rejected int32
	mux := http.NewServeMux()
	mux.HandleFunc(moncashTokenPath, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		n := atomic.AddInt32(&tokenCalls, 1)
		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"bearer","expires_in":59}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"tok-2","token_type":"bearer","expires_in":59}`))
	})
	mux.HandleFunc(moncashBalancePath, func(w http.ResponseWriter, r *http.Request) {
		if rejectFirst && atomic.CompareAndSwapInt32(&rejected, 0, 1) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(balanceBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &tokenCalls
}

func TestMoncashPrefundedBalance(t *testing.T) {
	srv, tokenCalls := newMoncashServer(t, `{"status":200,"balance":{"balance":125000.5,"message":"successful"}}`, false)
	svc := NewMoncashService(MoncashConfig{BaseURL: srv.URL, ClientID: "client", ClientSecret: "secret", Timeout: time.Second}, zerolog.Nop())

	for i := 0; i < 2; i++ {
		cents, err := svc.PrefundedBalance(context.Background())
		if err != nil {
			t.Fatalf("PrefundedBalance: %v", err)
		}
		if cents != 12500050 {
			t.Fatalf("cents = %d", cents)
		}
	}
	if n := atomic.LoadInt32(tokenCalls); n != 1 {
		t.Fatalf("token must be cached, fetched %d times", n)
	}
}

func TestMoncashRefreshesRejectedToken(t *testing.T) {
	srv, tokenCalls := newMoncashServer(t, `{"status":200,"balance":{"balance":10,"message":"successful"}}`, true)
	svc := NewMoncashService(MoncashConfig{BaseURL: srv.URL, ClientID: "client", ClientSecret: "secret"}, zerolog.Nop())

	cents, err := svc.PrefundedBalance(context.Background())
	if err != nil {
		t.Fatalf("PrefundedBalance: %v", err)
	}
	if cents != 1000 {
		t.Fatalf("cents = %d", cents)
	}
	if n := atomic.LoadInt32(tokenCalls); n != 2 {
		t.Fatalf("expected a token refresh after 401, got %d token calls", n)
	}
}

func TestMoncashErrorStatus(t *testing.T) {
	srv, _ := newMoncashServer(t, `{"status":500,"message":"internal"}`, false)
	svc := NewMoncashService(MoncashConfig{BaseURL: srv.URL, ClientID: "client", ClientSecret: "secret"}, zerolog.Nop())
	if _, err := svc.PrefundedBalance(context.Background()); err == nil {
		t.Fatalf("expected error for status 500 body")
	}
}

func TestNewMoncashServiceRequiresCredentials(t *testing.T) {
	if svc := NewMoncashService(MoncashConfig{BaseURL: "https://sandbox.moncashbutton.digicelgroup.com"}, zerolog.Nop()); svc != nil {
		t.Fatalf("expected nil without credentials")
	}
}
