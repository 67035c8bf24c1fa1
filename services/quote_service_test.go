package services

import (
	"context"
	"errors"
	"testing"

	"github.com/edlight123/eventhaiti-payouts/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestQuoteInstantAvailable(t *testing.T) {
	f := newFixture(t)
	organizerID := uuid.New()
	f.setPrefunding(t, true, true)
	f.profile(t, organizerID, models.PayoutStatusActive, true)
	event := f.readyEvent(t, organizerID, 100000, "HTG")

	q, err := f.quotes.Quote(context.Background(), event.EventID, organizerID)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !q.InstantAvailable || q.AmountCents != 100000 || q.FeeCents != 3000 || q.PayoutAmountCents != 97000 {
		t.Fatalf("unexpected quote: %+v", q)
	}
	if q.PayoutCurrency != "HTG" || q.ExchangeRate != nil {
		t.Fatalf("HTG earnings need no conversion: %+v", q)
	}
	if f.rates.hits != 0 {
		t.Fatalf("rate provider must not be called for HTG, got %d calls", f.rates.hits)
	}
}

func TestQuoteGates(t *testing.T) {
	cases := []struct {
		name                    string
		enabled, available, org bool
	}{
		{"pool unavailable", true, false, true},
		{"prefunding disabled", false, false, true},
		{"organizer not allowed", true, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			organizerID := uuid.New()
			f.setPrefunding(t, tc.enabled, tc.available)
			f.profile(t, organizerID, models.PayoutStatusActive, tc.org)
			event := f.readyEvent(t, organizerID, 100000, "HTG")

			q, err := f.quotes.Quote(context.Background(), event.EventID, organizerID)
			if err != nil {
				t.Fatalf("Quote: %v", err)
			}
			if q.InstantAvailable || q.FeeCents != 0 || q.PayoutAmountCents != q.AmountCents || q.AmountCents != 100000 {
				t.Fatalf("expected instant unavailable with no fee, got %+v", q)
			}
			if q.UnavailableReason == "" {
				t.Fatalf("expected a reason")
			}
		})
	}
}

func TestQuoteConvertsUSD(t *testing.T) {
	f := newFixture(t)
	organizerID := uuid.New()
	f.setPrefunding(t, true, true)
	f.profile(t, organizerID, models.PayoutStatusActive, true)
	event := f.readyEvent(t, organizerID, 10000, "USD")

	q, err := f.quotes.Quote(context.Background(), event.EventID, organizerID)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	// fee 300 USD cents, net 9700 * 132.5
	if q.FeeCents != 300 || q.PayoutAmountCents != 1285250 || q.PayoutCurrency != "HTG" {
		t.Fatalf("unexpected converted quote: %+v", q)
	}
	if q.USDToHTGRate == nil || *q.USDToHTGRate != "132.5" {
		t.Fatalf("expected rate to be echoed, got %v", q.USDToHTGRate)
	}
}

func TestQuoteRateFailureDegrades(t *testing.T) {
	f := newFixture(t)
	organizerID := uuid.New()
	f.setPrefunding(t, true, true)
	f.profile(t, organizerID, models.PayoutStatusActive, true)
	f.rates.err = errors.New("timeout")
	event := f.readyEvent(t, organizerID, 10000, "USD")

	q, err := f.quotes.Quote(context.Background(), event.EventID, organizerID)
	if err != nil {
		t.Fatalf("rate failure must not fail the quote: %v", err)
	}
	if q.InstantAvailable || q.PayoutAmountCents != 10000 || q.PayoutCurrency != "USD" || q.ExchangeRate != nil {
		t.Fatalf("expected degraded quote, got %+v", q)
	}
}

func TestQuoteNotReadyIsZero(t *testing.T) {
	f := newFixture(t)
	organizerID := uuid.New()
	f.setPrefunding(t, true, true)
	f.profile(t, organizerID, models.PayoutStatusActive, true)
	event := f.event(t, organizerID, 50000, "HTG", models.SettlementPending, nowUTC().Add(24*hour))

	q, err := f.quotes.Quote(context.Background(), event.EventID, organizerID)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.AmountCents != 0 || q.InstantAvailable {
		t.Fatalf("pending earnings quote must be zero, got %+v", q)
	}

	if _, err := f.quotes.Quote(context.Background(), event.EventID, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other organizer must get ErrNotFound, got %v", err)
	}
}

func TestInstantFeeRounding(t *testing.T) {
	cases := map[int64]int64{100000: 3000, 50: 2, 49: 1, 16: 0, 17: 1, 0: 0}
	for amount, want := range cases {
		if got := InstantFee(amount); got != want {
			t.Errorf("InstantFee(%d) = %d, want %d", amount, got, want)
		}
	}
	if !InstantPayoutFeePercent.Equal(decimal.RequireFromString("0.03")) {
		t.Fatalf("fee percent changed")
	}
}
