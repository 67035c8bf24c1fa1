package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/edlight123/eventhaiti-payouts/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InstantPayoutFeePercent is charged on instant MonCash payouts.
var InstantPayoutFeePercent = decimal.RequireFromString("0.03")

const (
	InstantPayoutCurrency = "HTG"
	defaultRateTimeout    = 3 * time.Second
)

type Quote struct {
	EventID           uuid.UUID               `json:"event_id"`
	AmountCents       int64                   `json:"amount_cents"`
	Currency          string                  `json:"currency"`
	SettlementStatus  models.SettlementStatus `json:"settlement_status"`
	InstantAvailable  bool                    `json:"instant_available"`
	FeeCents          int64                   `json:"fee_cents"`
	PayoutAmountCents int64                   `json:"payout_amount_cents"`
	PayoutCurrency    string                  `json:"payout_currency"`
	ExchangeRate      *string                 `json:"exchange_rate,omitempty"`
	USDToHTGRate      *string                 `json:"usd_to_htg_rate,omitempty"`
	UnavailableReason string                  `json:"unavailable_reason,omitempty"`
}

type QuoteService struct {
	db          *gorm.DB
	config      *PlatformConfigService
	rates       RateProvider
	rateTimeout time.Duration
	log         zerolog.Logger
}

func NewQuoteService(db *gorm.DB, config *PlatformConfigService, rates RateProvider, rateTimeout time.Duration, log zerolog.Logger) *QuoteService {
	if rateTimeout <= 0 {
		rateTimeout = defaultRateTimeout
	}
	return &QuoteService{
		db:          db,
		config:      config,
		rates:       rates,
		rateTimeout: rateTimeout,
		log:         log.With().Str("component", "quotes").Logger(),
	}
}

// Quote is advisory. It reads earnings and never reserves anything.
func (s *QuoteService) Quote(ctx context.Context, eventID, organizerID uuid.UUID) (Quote, error) {
	db := s.db.WithContext(ctx)

	var earnings models.EventEarnings
	err := db.First(&earnings, "event_id = ? AND organizer_id = ?", eventID, organizerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Quote{}, notFound("event earnings")
	}
	if err != nil {
		return Quote{}, fmt.Errorf("load event earnings: %w", err)
	}

	var profile models.OrganizerProfile
	err = db.First(&profile, "organizer_id = ?", organizerID).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return Quote{}, fmt.Errorf("load organizer profile: %w", err)
	}

	cfg, err := s.config.Get(ctx)
	if err != nil {
		return Quote{}, err
	}

	amount := earnings.Withdrawable() * earningsFactor(earnings)
	return s.price(ctx, earnings, amount, profile.AllowInstantMoncash, cfg), nil
}

// price quotes amount out of the given earnings. A failed rate lookup degrades the quote
// to instant unavailable instead of failing it.
func (s *QuoteService) price(ctx context.Context, earnings models.EventEarnings, amount int64, allowInstant bool, cfg models.PlatformPayoutConfig) Quote {
	q := Quote{
		EventID:           earnings.EventID,
		AmountCents:       amount,
		Currency:          earnings.Currency,
		SettlementStatus:  earnings.SettlementStatus,
		PayoutAmountCents: amount,
		PayoutCurrency:    earnings.Currency,
	}

	switch {
	case !cfg.PrefundingEnabled:
		q.UnavailableReason = "instant payouts are disabled"
		return q
	case !cfg.PrefundingAvailable:
		q.UnavailableReason = "instant payout pool is unavailable"
		return q
	case !allowInstant:
		q.UnavailableReason = "instant payouts are not enabled for this account"
		return q
	case amount <= 0:
		q.UnavailableReason = "no settled balance for this event"
		return q
	}

	fee := InstantFee(amount)
	net := amount - fee

	if !strings.EqualFold(earnings.Currency, InstantPayoutCurrency) {
		rate, err := s.rate(ctx, earnings.Currency, InstantPayoutCurrency)
		if err != nil {
			s.log.Warn().Err(err).Str("event_id", earnings.EventID.String()).Msg("exchange rate unavailable, instant payout disabled for quote")
			q.UnavailableReason = "exchange rate unavailable"
			return q
		}
		rateStr := rate.String()
		q.ExchangeRate = &rateStr
		if strings.EqualFold(earnings.Currency, "USD") {
			q.USDToHTGRate = &rateStr
		}
		net = decimal.NewFromInt(net).Mul(rate).Round(0).IntPart()
	}

	q.InstantAvailable = true
	q.FeeCents = fee
	q.PayoutAmountCents = net
	q.PayoutCurrency = InstantPayoutCurrency
	return q
}

func (s *QuoteService) rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if s.rates == nil {
		return decimal.Zero, fmt.Errorf("%w: no rate provider", ErrExternalDependency)
	}
	ctx, cancel := context.WithTimeout(ctx, s.rateTimeout)
	defer cancel()
	return s.rates.Rate(ctx, from, to)
}

// InstantFee rounds half away from zero.
func InstantFee(amount int64) int64 {
	return decimal.NewFromInt(amount).Mul(InstantPayoutFeePercent).Round(0).IntPart()
}
