package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestExchangeRateServiceCachesPerBase(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/v6/test-key/latest/USD" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"success","conversion_rates":{"USD":1,"HTG":132.25}}`))
	}))
	defer srv.Close()

	svc := NewExchangeRateService(srv.URL, "test-key", time.Second, time.Hour, zerolog.Nop())
	for i := 0; i < 3; i++ {
		rate, err := svc.Rate(context.Background(), "usd", "htg")
		if err != nil {
			t.Fatalf("Rate: %v", err)
		}
		if rate.String() != "132.25" {
			t.Fatalf("rate = %s", rate)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected one upstream call, got %d", n)
	}

	same, err := svc.Rate(context.Background(), "HTG", "HTG")
	if err != nil || same.String() != "1" {
		t.Fatalf("identity rate: %s %v", same, err)
	}
}

func TestExchangeRateServiceFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"error","error-type":"invalid-key"}`))
	}))
	defer srv.Close()

	svc := NewExchangeRateService(srv.URL, "bad", time.Second, time.Hour, zerolog.Nop())
	if _, err := svc.Rate(context.Background(), "USD", "HTG"); !errors.Is(err, ErrExternalDependency) {
		t.Fatalf("expected ErrExternalDependency, got %v", err)
	}

	unconfigured := NewExchangeRateService(srv.URL, "", time.Second, time.Hour, zerolog.Nop())
	if _, err := unconfigured.Rate(context.Background(), "USD", "HTG"); !errors.Is(err, ErrExternalDependency) {
		t.Fatalf("expected ErrExternalDependency without a key, got %v", err)
	}
}

func TestExchangeRateServiceTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	svc := NewExchangeRateService(srv.URL, "k", 20*time.Millisecond, time.Hour, zerolog.Nop())
	if _, err := svc.Rate(context.Background(), "USD", "HTG"); !errors.Is(err, ErrExternalDependency) {
		t.Fatalf("expected ErrExternalDependency on timeout, got %v", err)
	}
}
