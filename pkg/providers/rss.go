package providers

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/Adda-Baaj/bazaar-khobor/internal/domain"
)

type rssFetcher struct {
	client HTTPClient
	parser *gofeed.Parser
}

// NewRSSFetcher reads RSS, Atom and JSON feeds.
func NewRSSFetcher(client HTTPClient) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &rssFetcher{client: client, parser: gofeed.NewParser()}
}

func (f *rssFetcher) Type() string { return TypeRSS }

func (f *rssFetcher) Fetch(ctx context.Context, p Provider) ([]domain.NewsLink, error) {
	if p.SourceURL == "" {
		return nil, fmt.Errorf("provider %q source_url is empty", p.ID)
	}
	raw, err := getOK(ctx, f.client, p.SourceURL, Headers(p))
	if err != nil {
		return nil, fmt.Errorf("fetch %s feed: %w", p.ID, err)
	}
	feed, err := f.parser.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse %s feed: %w", p.ID, err)
	}

	links := make([]domain.NewsLink, 0, len(feed.Items))
	for _, item := range feed.Items {
		link := strings.TrimSpace(item.Link)
		if link == "" {
			continue
		}
		nl := domain.NewsLink{
			ID:         hashURL(link),
			ProviderID: p.ID,
			Title:      strings.TrimSpace(item.Title),
			URL:        link,
		}
		if item.PublishedParsed != nil {
			nl.PublishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			nl.PublishedAt = *item.UpdatedParsed
		}
		links = append(links, nl)
	}
	return limitLinks(links, p.Limit), nil
}
