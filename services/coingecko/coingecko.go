package coingecko

import (
	"context"
	"crypto-ingestor/models/constants"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

func New(cfg Config) *Impl {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Impl{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchTopCoins returns the first page of coins ordered by market cap.
func (service *Impl) FetchTopCoins(ctx context.Context, limit int) ([]Market, error) {
	params := url.Values{}
	params.Set("vs_currency", vsCurrency)
	params.Set("order", "market_cap_desc")
	params.Set("per_page", strconv.Itoa(limit))
	params.Set("page", "1")
	params.Set("sparkline", "false")

	var markets []Market
	if err := service.get(ctx, "/coins/markets", params, &markets); err != nil {
		return nil, err
	}

	return markets, nil
}

// FetchMarketChart returns the price series of a coin over the trailing days.
func (service *Impl) FetchMarketChart(ctx context.Context, coinID string, days int) ([]PricePoint, error) {
	params := url.Values{}
	params.Set("vs_currency", vsCurrency)
	params.Set("days", strconv.Itoa(days))

	var chart MarketChart
	if err := service.get(ctx, fmt.Sprintf("/coins/%s/market_chart", url.PathEscape(coinID)), params, &chart); err != nil {
		return nil, err
	}

	return chart.Prices, nil
}

func (service *Impl) get(ctx context.Context, path string, params url.Values, result any) error {
	endpoint := fmt.Sprintf("%s%s?%s", service.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &APIError{Kind: ErrClientError, Endpoint: path, Err: err}
	}
	req.Header.Set("accept", "application/json")
	if service.apiKey != "" {
		req.Header.Set(apiKeyHeader, service.apiKey)
	}

	resp, err := service.client.Do(req)
	if err != nil {
		return &APIError{Kind: ErrNetworkError, Endpoint: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		apiErr := &APIError{
			Kind:       classify(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Endpoint:   path,
			Body:       strings.TrimSpace(string(body)),
		}
		log.Warn().
			Str(constants.LogEndpoint, path).
			Int(constants.LogStatusCode, resp.StatusCode).
			Msgf("API request failed")
		return apiErr
	}

	if err = json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &APIError{Kind: ErrServerError, StatusCode: resp.StatusCode, Endpoint: path, Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	return nil
}

func classify(statusCode int) error {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case statusCode >= http.StatusInternalServerError:
		return ErrServerError
	case statusCode >= http.StatusBadRequest:
		return ErrClientError
	default:
		// 1xx/3xx that the transport did not resolve.
		return ErrServerError
	}
}
