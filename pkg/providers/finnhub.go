package providers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	finnhub "github.com/Finnhub-Stock-API/finnhub-go/v2"

	"github.com/Adda-Baaj/bazaar-khobor/internal/domain"
)

const finnhubLookback = 48 * time.Hour

// companyNewsFunc is the Finnhub company-news call, dates as YYYY-MM-DD.
type companyNewsFunc func(ctx context.Context, symbol, from, to string) ([]finnhub.CompanyNews, error)

type finnhubFetcher struct {
	news companyNewsFunc
	now  func() time.Time
}

// NewFinnhubFetcher lists company news for the provider's stock symbol.
func NewFinnhubFetcher(apiKey string) Fetcher {
	if strings.TrimSpace(apiKey) == "" {
		return &finnhubFetcher{now: time.Now}
	}
	cfg := finnhub.NewConfiguration()
	cfg.AddDefaultHeader("X-Finnhub-Token", apiKey)
	api := finnhub.NewAPIClient(cfg).DefaultApi

	return &finnhubFetcher{
		now: time.Now,
		news: func(ctx context.Context, symbol, from, to string) ([]finnhub.CompanyNews, error) {
			res, _, err := api.CompanyNews(ctx).Symbol(symbol).From(from).To(to).Execute()
			return res, err
		},
	}
}

func (f *finnhubFetcher) Type() string { return TypeFinnhub }

func (f *finnhubFetcher) Fetch(ctx context.Context, p Provider) ([]domain.NewsLink, error) {
	if f.news == nil {
		return nil, errors.New("finnhub api key is not configured")
	}
	if p.Stock.IsUnknown() {
		return nil, fmt.Errorf("provider %q needs stock.symbol", p.ID)
	}
	symbol := strings.ToUpper(strings.TrimSpace(p.Stock.Symbol))
	now := f.now().UTC()

	items, err := f.news(ctx, symbol, now.Add(-finnhubLookback).Format("2006-01-02"), now.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("finnhub company news %s: %w", symbol, err)
	}

	links := make([]domain.NewsLink, 0, len(items))
	for _, n := range items {
		if n.Url == nil || strings.TrimSpace(*n.Url) == "" {
			continue
		}
		u := strings.TrimSpace(*n.Url)
		nl := domain.NewsLink{ID: hashURL(u), ProviderID: p.ID, URL: u}
		if n.Id != nil {
			nl.ID = strconv.FormatInt(*n.Id, 10)
		}
		if n.Headline != nil {
			nl.Title = strings.TrimSpace(*n.Headline)
		}
		if n.Datetime != nil {
			nl.PublishedAt = time.Unix(*n.Datetime, 0).UTC()
		}
		if n.Related != nil && *n.Related != "" {
			nl.Symbols = strings.Split(*n.Related, ",")
		}
		links = append(links, nl)
	}
	return limitLinks(links, p.Limit), nil
}
