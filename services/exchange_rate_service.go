package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RateProvider returns the spot rate that converts one unit of from into to.
type RateProvider interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

type exchangeRateResponse struct {
	Result          string                     `json:"result"`
	ErrorType       string                     `json:"error-type"`
	ConversionRates map[string]decimal.Decimal `json:"conversion_rates"`
}

type cachedRates struct {
	rates     map[string]decimal.Decimal
	fetchedAt time.Time
}

// ExchangeRateService fetches rate tables from exchangerate-api and caches one table per
// base currency.
type ExchangeRateService struct {
	baseURL string
	apiKey  string
	ttl     time.Duration
	client  *http.Client
	log     zerolog.Logger

	mu    sync.RWMutex
	cache map[string]cachedRates
}

func NewExchangeRateService(baseURL, apiKey string, timeout, ttl time.Duration, log zerolog.Logger) *ExchangeRateService {
	return &ExchangeRateService{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		ttl:     ttl,
		client:  &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "exchange_rates").Logger(),
		cache:   make(map[string]cachedRates),
	}
}

func (s *ExchangeRateService) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	rates, err := s.rates(ctx, from)
	if err != nil {
		return decimal.Zero, err
	}
	rate, ok := rates[to]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: no %s/%s rate", ErrExternalDependency, from, to)
	}
	return rate, nil
}

func (s *ExchangeRateService) rates(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	entry, ok := s.cache[base]
	s.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < s.ttl {
		return entry.rates, nil
	}

	if s.apiKey == "" {
		return nil, fmt.Errorf("%w: exchange rate API key not configured", ErrExternalDependency)
	}

	s.log.Debug().Str("base", base).Msg("fetching exchange rates")
	url := fmt.Sprintf("%s/v6/%s/latest/%s", s.baseURL, s.apiKey, base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalDependency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: exchange rate API returned %d", ErrExternalDependency, resp.StatusCode)
	}

	var data exchangeRateResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: decode rates: %v", ErrExternalDependency, err)
	}
	if data.Result != "success" {
		return nil, fmt.Errorf("%w: exchange rate API error %q", ErrExternalDependency, data.ErrorType)
	}

	s.mu.Lock()
	s.cache[base] = cachedRates{rates: data.ConversionRates, fetchedAt: time.Now()}
	s.mu.Unlock()
	s.log.Info().Str("base", base).Int("rates", len(data.ConversionRates)).Msg("exchange rate cache updated")

	return data.ConversionRates, nil
}
