package providers

import (
	"context"
	"crypto/sha1" //nolint:gosec // non-cryptographic id generation
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/Adda-Baaj/bazaar-khobor/internal/domain"
)

// maxSitemapDepth bounds sitemap-index recursion.
const maxSitemapDepth = 3

type urlSet struct {
	URLs []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
	News    struct {
		PublicationDate string `xml:"publication_date"`
		Title           string `xml:"title"`
		StockTickers    string `xml:"stock_tickers"`
	} `xml:"news"`
}

type sitemapIndex struct {
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

type sitemapFetcher struct {
	client HTTPClient
}

// NewSitemapFetcher reads Google News sitemaps and sitemap indexes.
func NewSitemapFetcher(client HTTPClient) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &sitemapFetcher{client: client}
}

func (f *sitemapFetcher) Type() string { return TypeGoogleNewsSitemap }

func (f *sitemapFetcher) Fetch(ctx context.Context, p Provider) ([]domain.NewsLink, error) {
	if p.SourceURL == "" {
		return nil, fmt.Errorf("provider %q source_url is empty", p.ID)
	}
	entries, err := f.collect(ctx, p, p.SourceURL, 0, make(map[string]struct{}))
	if err != nil {
		return nil, err
	}

	links := make([]domain.NewsLink, 0, len(entries))
	for _, e := range entries {
		loc := strings.TrimSpace(e.Loc)
		if loc == "" {
			continue
		}
		published := parseDate(e.News.PublicationDate)
		if published.IsZero() {
			published = parseDate(e.LastMod)
		}
		links = append(links, domain.NewsLink{
			ID:          hashURL(loc),
			ProviderID:  p.ID,
			Title:       strings.TrimSpace(e.News.Title),
			URL:         loc,
			PublishedAt: published,
			Symbols:     splitTickers(e.News.StockTickers),
		})
	}
	if len(links) == 0 {
		return nil, fmt.Errorf("%s sitemap returned no records", p.ID)
	}
	return limitLinks(links, p.Limit), nil
}

// collect resolves url into entries, descending into sitemap indexes.
func (f *sitemapFetcher) collect(ctx context.Context, p Provider, url string, depth int, visited map[string]struct{}) ([]sitemapURL, error) {
	if _, seen := visited[url]; seen || depth > maxSitemapDepth {
		return nil, nil
	}
	visited[url] = struct{}{}

	raw, err := getOK(ctx, f.client, url, Headers(p))
	if err != nil {
		return nil, fmt.Errorf("fetch %s sitemap: %w", p.ID, err)
	}

	var set urlSet
	if err := xml.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("decode sitemap: %w", err)
	}
	if len(set.URLs) > 0 {
		return set.URLs, nil
	}

	var index sitemapIndex
	if err := xml.Unmarshal(raw, &index); err != nil {
		return nil, fmt.Errorf("decode sitemap index: %w", err)
	}
	var all []sitemapURL
	for _, s := range index.Sitemaps {
		loc := strings.TrimSpace(s.Loc)
		if loc == "" {
			continue
		}
		nested, err := f.collect(ctx, p, loc, depth+1, visited)
		if err != nil {
			return nil, err
		}
		all = append(all, nested...)
	}
	return all, nil
}

// getOK fetches url and requires a 200.
func getOK(ctx context.Context, client HTTPClient, url string, headers map[string]string) ([]byte, error) {
	resp, err := client.Get(ctx, url, headers)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("status %d body: %s", resp.StatusCode(), responseSnippet(resp.Body()))
	}
	return resp.Body(), nil
}

func hashURL(u string) string {
	sum := sha1.Sum([]byte(u))
	return hex.EncodeToString(sum[:])
}

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if s == "" {
		return "<empty>"
	}
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

func parseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// splitTickers parses "NASDAQ:NVDA, NYSE:TSM" into bare symbols.
func splitTickers(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if i := strings.LastIndex(part, ":"); i >= 0 {
			part = part[i+1:]
		}
		if part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}
