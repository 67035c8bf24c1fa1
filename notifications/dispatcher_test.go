package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type recordingSink struct {
	mu     sync.Mutex
	events []AdminEvent
	err    error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Deliver(ctx context.Context, evt AdminEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return s.err
}

type panickingSink struct{}

func (panickingSink) Name() string { return "panicking" }

func (panickingSink) Deliver(ctx context.Context, evt AdminEvent) error { panic("boom") }

func TestDispatcherDeliversToEverySink(t *testing.T) {
	ok := &recordingSink{}
	failing := &recordingSink{err: errors.New("smtp down")}
	d := NewDispatcher(zerolog.Nop(), time.Second, ok, failing, panickingSink{})

	d.NotifyAdmins(AdminEvent{Type: EventVerificationSubmitted, EntityID: uuid.New(), Message: "new bank proof"})
	d.Wait()

	if len(ok.events) != 1 || len(failing.events) != 1 {
		t.Fatalf("expected one delivery per sink, got %d and %d", len(ok.events), len(failing.events))
	}
	if ok.events[0].OccurredAt.IsZero() {
		t.Fatalf("expected OccurredAt to be stamped")
	}
}

func TestBrevoServiceSendsOneEmailPerAdmin(t *testing.T) {
	var mu sync.Mutex
	var recipients []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "key" {
			t.Errorf("missing api key header")
		}
		var p brevoPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		mu.Lock()
		recipients = append(recipients, p.To[0]["email"])
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	svc := NewBrevoService(BrevoConfig{
		APIKey:      "key",
		SenderEmail: "payouts@example.com",
		AdminEmails: []string{"a@example.com", "b@example.com"},
		Endpoint:    srv.URL,
	}, zerolog.Nop())
	if svc == nil {
		t.Fatalf("expected configured service")
	}

	err := svc.Deliver(context.Background(), AdminEvent{Type: EventPayoutRequested, Message: "<b>payout</b>"})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(recipients) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(recipients))
	}
}

func TestBrevoServiceReportsAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"bad key"}`))
	}))
	defer srv.Close()

	svc := NewBrevoService(BrevoConfig{
		APIKey:      "key",
		SenderEmail: "payouts@example.com",
		AdminEmails: []string{"a@example.com"},
		Endpoint:    srv.URL,
	}, zerolog.Nop())

	if err := svc.Deliver(context.Background(), AdminEvent{Type: EventPayoutUpdated}); err == nil {
		t.Fatalf("expected error from 401 response")
	}
}

func TestNewBrevoServiceDisabledWithoutRecipients(t *testing.T) {
	if svc := NewBrevoService(BrevoConfig{APIKey: "key", SenderEmail: "x@example.com"}, zerolog.Nop()); svc != nil {
		t.Fatalf("expected nil service without admin emails")
	}
}
