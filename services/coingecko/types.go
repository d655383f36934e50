package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultBaseURL    = "https://api.coingecko.com/api/v3"
	defaultTimeout    = 10 * time.Second
	apiKeyHeader      = "x-cg-pro-api-key"
	vsCurrency        = "usd"
	maxErrorBodyBytes = 512
)

var (
	ErrRateLimited  = errors.New("rate limited by upstream")
	ErrServerError  = errors.New("upstream server error")
	ErrClientError  = errors.New("request rejected by upstream")
	ErrNetworkError = errors.New("upstream unreachable")
)

// APIError carries the classification of a failed call; errors.Is matches it
// against its Kind.
type APIError struct {
	Kind       error
	StatusCode int
	Endpoint   string
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%v: %s", e.Kind, e.Endpoint)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	return msg
}

func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsRetryable reports whether a call failing with err may succeed later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServerError) || errors.Is(err, ErrNetworkError)
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Market is one entry of the ranked market listing.
type Market struct {
	ID                       string              `json:"id"`
	Symbol                   string              `json:"symbol"`
	Name                     string              `json:"name"`
	MarketCapRank            *int                `json:"market_cap_rank"`
	CurrentPrice             decimal.NullDecimal `json:"current_price"`
	TotalVolume              decimal.NullDecimal `json:"total_volume"`
	PriceChangePercentage24h *float64            `json:"price_change_percentage_24h"`
}

type MarketChart struct {
	Prices []PricePoint `json:"prices"`
}

// PricePoint is a [timestamp_ms, price] pair. The price is parsed from its
// JSON text so no binary rounding happens on the way in.
type PricePoint struct {
	Timestamp int64
	Price     decimal.Decimal
}

func (p *PricePoint) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("price point: expected 2 elements, got %d", len(raw))
	}

	var ts json.Number
	if err := json.Unmarshal(raw[0], &ts); err != nil {
		return fmt.Errorf("price point timestamp: %w", err)
	}
	ms, err := ts.Int64()
	if err != nil {
		f, errF := ts.Float64()
		if errF != nil {
			return fmt.Errorf("price point timestamp: %w", err)
		}
		ms = int64(f)
	}

	var price decimal.Decimal
	if err := price.UnmarshalJSON(raw[1]); err != nil {
		return fmt.Errorf("price point price: %w", err)
	}

	p.Timestamp = ms
	p.Price = price
	return nil
}

type Client interface {
	FetchTopCoins(ctx context.Context, limit int) ([]Market, error)
	FetchMarketChart(ctx context.Context, coinID string, days int) ([]PricePoint, error)
}

type Impl struct {
	baseURL string
	apiKey  string
	client  *http.Client
}
