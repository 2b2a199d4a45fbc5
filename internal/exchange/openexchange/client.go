// Package openexchange fetches rates from the OpenExchangeRates "latest" endpoint.
package openexchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/JakeFAU/streamprice-crawler/internal/exchange"
)

// DefaultURL is the public latest-rates endpoint.
const DefaultURL = "https://openexchangerates.org/api/latest.json"

// ErrNoAPIKey is returned when the client is used without an app id.
var ErrNoAPIKey = errors.New("openexchange: api key is required")

// Config configures the client.
type Config struct {
	APIKey  string
	URL     string
	Timeout time.Duration
}

// Client implements exchange.RateProvider.
type Client struct {
	apiKey string
	url    string
	http   *resty.Client
}

// New builds a client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	http := resty.New()
	http.SetTimeout(cfg.Timeout)
	http.SetHeader("Accept", "application/json")
	return &Client{apiKey: cfg.APIKey, url: cfg.URL, http: http}, nil
}

type latestResponse struct {
	Base        string             `json:"base"`
	Timestamp   int64              `json:"timestamp"`
	Rates       map[string]float64 `json:"rates"`
	Error       bool               `json:"error"`
	Description string             `json:"description"`
}

// Latest implements exchange.RateProvider.
func (c *Client) Latest(ctx context.Context, base string) (exchange.Rates, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("app_id", c.apiKey).
		SetQueryParam("base", strings.ToUpper(base)).
		SetQueryParam("prettyprint", "false").
		SetQueryParam("show_alternative", "false").
		Get(c.url)
	if err != nil {
		return nil, fmt.Errorf("fetch latest rates: %w", err)
	}

	var body latestResponse
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode latest rates (status %d): %w", res.StatusCode(), err)
	}
	if res.IsError() || body.Error {
		return nil, fmt.Errorf("latest rates: status %d: %s", res.StatusCode(), body.Description)
	}
	if len(body.Rates) == 0 {
		return nil, fmt.Errorf("latest rates: %w: empty rate table", exchange.ErrMissingRate)
	}

	rates := make(exchange.Rates, len(body.Rates))
	for code, v := range body.Rates {
		rates[strings.ToUpper(code)] = v
	}
	return rates, nil
}

// Name identifies the provider in reports.
func (c *Client) Name() string { return "OpenExchangeRates" }
