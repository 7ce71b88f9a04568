package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Adda-Baaj/bazaar-khobor/internal/domain"
	"github.com/Adda-Baaj/bazaar-khobor/pkg/httpclient"
)

// Provider types.
const (
	TypeGoogleNewsSitemap = "google-news-sitemap"
	TypeYahooTopic        = "yahoo-topic"
	TypeRSS               = "rss"
	TypeFinnhub           = "finnhub"
)

// HTTPClient is the transport shared by the HTML and XML fetchers.
type HTTPClient = httpclient.Client

// Provider is one configured news source.
type Provider struct {
	ID             string               `json:"id" yaml:"id"`
	Type           string               `json:"type" yaml:"type"`
	SourceURL      string               `json:"source_url" yaml:"source_url"`
	Stock          domain.StockIdentity `json:"stock" yaml:"stock"`
	Headers        map[string]string    `json:"headers" yaml:"headers"`
	RequestDelayMS int                  `json:"request_delay_ms" yaml:"request_delay_ms"`
	Limit          int                  `json:"limit" yaml:"limit"`
	Enabled        *bool                `json:"enabled" yaml:"enabled"`
}

// RequestDelay is the pause between article requests for this provider.
func (p Provider) RequestDelay() time.Duration {
	if p.RequestDelayMS <= 0 {
		return 0
	}
	return time.Duration(p.RequestDelayMS) * time.Millisecond
}

func (p Provider) IsEnabled() bool { return p.Enabled == nil || *p.Enabled }

// StockOrMarket returns the configured stock, or the market sentinel.
func (p Provider) StockOrMarket() domain.StockIdentity {
	if p.Stock.IsUnknown() {
		return domain.MarketStock
	}
	return p.Stock.Normalize()
}

// Headers returns the provider's request headers over a browser-like default
// User-Agent.
func Headers(p Provider) map[string]string {
	out := map[string]string{
		"User-Agent": defaultUserAgent,
		"Accept":     "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	}
	for k, v := range p.Headers {
		if strings.TrimSpace(k) != "" {
			out[k] = v
		}
	}
	return out
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Fetcher lists candidate article links for providers of one type.
type Fetcher interface {
	Type() string
	Fetch(ctx context.Context, p Provider) ([]domain.NewsLink, error)
}

type providersFile struct {
	Providers []Provider `json:"providers" yaml:"providers"`
}

// LoadProviders reads a YAML or JSON providers file, expanding ${VAR}
// references from the environment.
func LoadProviders(path string) ([]Provider, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("providers file path is empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}
	expanded := []byte(os.ExpandEnv(string(raw)))

	var file providersFile
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(expanded, &file)
	} else {
		err = yaml.Unmarshal(expanded, &file)
	}
	if err != nil {
		return nil, fmt.Errorf("decode providers file: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Providers))
	for i := range file.Providers {
		p := &file.Providers[i]
		p.ID = strings.TrimSpace(p.ID)
		p.Type = strings.ToLower(strings.TrimSpace(p.Type))
		p.SourceURL = strings.TrimSpace(p.SourceURL)
		if p.ID == "" {
			return nil, fmt.Errorf("providers[%d]: id is required", i)
		}
		if p.Type == "" {
			return nil, fmt.Errorf("provider %q: type is required", p.ID)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("duplicate provider id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return file.Providers, nil
}

func limitLinks(links []domain.NewsLink, limit int) []domain.NewsLink {
	if limit > 0 && len(links) > limit {
		return links[:limit]
	}
	return links
}
