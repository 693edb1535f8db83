// Package search provides the search-engine lookups behind the traffic,
// page-rank and index features. Every client returns result URLs in rank
// order; an error means the features fall back to their defaults.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ErrDisabled is returned by the disabled client.
var ErrDisabled = errors.New("search disabled")

// Providers accepted by New.
const (
	ProviderDisabled     = "disabled"
	ProviderCustomSearch = "customsearch"
	ProviderScrape       = "scrape"
)

// Client queries a search engine.
type Client interface {
	Search(ctx context.Context, query string) ([]string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider      string
	APIKey        string
	EngineID      string
	Endpoint      string
	Timeout       time.Duration
	MaxResults    int
	RatePerSecond float64
	UserAgent     string // sent by the scrape provider
}

// New returns the client for cfg.Provider, rate limited when RatePerSecond > 0.
func New(cfg Config) (Client, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.Timeout <= 0 {
		httpClient.Timeout = 10 * time.Second
	}

	var c Client
	switch cfg.Provider {
	case "", ProviderDisabled:
		return Disabled{}, nil
	case ProviderCustomSearch:
		if cfg.APIKey == "" || cfg.EngineID == "" {
			return nil, fmt.Errorf("customsearch provider needs an API key and engine id")
		}
		c = &CustomSearch{
			APIKey:     cfg.APIKey,
			EngineID:   cfg.EngineID,
			BaseURL:    cfg.Endpoint,
			HTTPClient: httpClient,
			Num:        cfg.MaxResults,
		}
	case ProviderScrape:
		c = &Scraper{
			BaseURL:    cfg.Endpoint,
			HTTPClient: httpClient,
			Num:        cfg.MaxResults,
			UserAgent:  cfg.UserAgent,
		}
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.Provider)
	}

	if cfg.RatePerSecond > 0 {
		c = NewLimited(c, rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1))
	}
	return c, nil
}

// Disabled is used where there is no egress to a search provider.
type Disabled struct{}

// Search implements Client.
func (Disabled) Search(context.Context, string) ([]string, error) {
	return nil, ErrDisabled
}

// Limited shares one rate limiter across every query made through it.
type Limited struct {
	next    Client
	limiter *rate.Limiter
}

// NewLimited wraps next so queries wait for limiter.
func NewLimited(next Client, limiter *rate.Limiter) *Limited {
	return &Limited{next: next, limiter: limiter}
}

// Search implements Client.
func (l *Limited) Search(ctx context.Context, query string) ([]string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return l.next.Search(ctx, query)
}
