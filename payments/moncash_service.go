package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	moncashTokenPath   = "/Api/oauth/token"
	moncashBalancePath = "/Api/v1/PrefundedBalance"
)

var ErrMoncashUnauthorized = errors.New("moncash rejected the access token")

type MoncashConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

type prefundedBalanceResponse struct {
	Status  int `json:"status"`
	Balance struct {
		Balance decimal.Decimal `json:"balance"`
		Message string          `json:"message"`
	} `json:"balance"`
	Message string `json:"message"`
}

// MoncashService reads the platform's prefunded MonCash balance. Balances come back in
// gourdes and are returned in minor units.
type MoncashService struct {
	baseURL string
	tokens  *tokenSource
	client  *http.Client
	log     zerolog.Logger
}

// NewMoncashService returns nil when credentials are missing.
func NewMoncashService(cfg MoncashConfig, log zerolog.Logger) *MoncashService {
	log = log.With().Str("component", "moncash").Logger()
	if cfg.BaseURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		log.Warn().Msg("moncash credentials not configured, prefunded balance checks disabled")
		return nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	client := &http.Client{Timeout: cfg.Timeout}
	base := strings.TrimRight(cfg.BaseURL, "/")
	return &MoncashService{
		baseURL: base,
		tokens: &tokenSource{
			tokenURL:     base + moncashTokenPath,
			clientID:     cfg.ClientID,
			clientSecret: cfg.ClientSecret,
			client:       client,
		},
		client: client,
		log:    log,
	}
}

func (s *MoncashService) PrefundedBalance(ctx context.Context) (int64, error) {
	balance, err := s.prefundedBalance(ctx)
	if errors.Is(err, ErrMoncashUnauthorized) {
		s.tokens.invalidate()
		balance, err = s.prefundedBalance(ctx)
	}
	return balance, err
}

func (s *MoncashService) prefundedBalance(ctx context.Context) (int64, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+moncashBalancePath, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("prefunded balance request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return 0, ErrMoncashUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("prefunded balance returned %s", resp.Status)
	}

	var body prefundedBalanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode prefunded balance: %w", err)
	}
	if body.Status != 0 && body.Status != http.StatusOK {
		return 0, fmt.Errorf("prefunded balance status %d: %s", body.Status, body.Message)
	}
	if body.Balance.Balance.IsNegative() {
		return 0, fmt.Errorf("prefunded balance is negative: %s", body.Balance.Balance)
	}

	cents := body.Balance.Balance.Shift(2).Round(0).IntPart()
	s.log.Debug().Int64("balance_cents", cents).Msg("prefunded balance fetched")
	return cents, nil
}
