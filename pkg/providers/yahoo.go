package providers

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Adda-Baaj/bazaar-khobor/internal/domain"
)

type yahooTopicFetcher struct {
	client HTTPClient
}

// NewYahooTopicFetcher scans a Yahoo Finance topic page for article links.
func NewYahooTopicFetcher(client HTTPClient) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &yahooTopicFetcher{client: client}
}

func (f *yahooTopicFetcher) Type() string { return TypeYahooTopic }

func (f *yahooTopicFetcher) Fetch(ctx context.Context, p Provider) ([]domain.NewsLink, error) {
	if p.SourceURL == "" {
		return nil, fmt.Errorf("provider %q source_url is empty", p.ID)
	}
	base, err := url.Parse(p.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("parse source_url: %w", err)
	}

	raw, err := getOK(ctx, f.client, p.SourceURL, Headers(p))
	if err != nil {
		return nil, fmt.Errorf("fetch %s topic page: %w", p.ID, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse topic page: %w", err)
	}

	seen := make(map[string]struct{})
	var links []domain.NewsLink
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		abs, ok := articleHref(base, href)
		if !ok {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, domain.NewsLink{
			ID:         hashURL(abs),
			ProviderID: p.ID,
			Title:      strings.Join(strings.Fields(a.Text()), " "),
			URL:        abs,
		})
	})
	return limitLinks(links, p.Limit), nil
}

// articleHref accepts /news/ and /video/ pages ending in .html.
func articleHref(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if !strings.HasSuffix(ref.Path, ".html") {
		return "", false
	}
	if !strings.Contains(ref.Path, "/news/") && !strings.Contains(ref.Path, "/video/") {
		return "", false
	}
	abs := base.ResolveReference(ref)
	abs.RawQuery = ""
	abs.Fragment = ""
	return abs.String(), true
}
