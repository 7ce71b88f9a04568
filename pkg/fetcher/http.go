package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Adda-Baaj/bazaar-khobor/pkg/httpclient"
)

const StrategyHTTP = "http"

// BrowserHeaders returns the header set sent with direct page requests.
// Accept-Encoding is left to the transport so compressed bodies are decoded.
func BrowserHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":                userAgent,
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.9",
		"Cache-Control":             "no-cache",
		"Pragma":                    "no-cache",
		"Sec-Ch-Ua":                 `"Not_A Brand";v="8", "Chromium";v="120"`,
		"Sec-Ch-Ua-Mobile":          "?0",
		"Sec-Ch-Ua-Platform":        `"Windows"`,
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
		"Upgrade-Insecure-Requests": "1",
	}
}

type httpStrategy struct {
	client    httpclient.Client
	userAgent string
}

// NewHTTPStrategy fetches pages with a direct GET. Any status below 500 is
// treated as a retrievable page; the extractor decides if it is usable.
func NewHTTPStrategy(client httpclient.Client, userAgent string) Strategy {
	return &httpStrategy{client: client, userAgent: userAgent}
}

func (s *httpStrategy) Name() string { return StrategyHTTP }

func (s *httpStrategy) Applies(url string) bool {
	u := strings.ToLower(url)
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

func (s *httpStrategy) Attempt(ctx context.Context, url string) (Page, error) {
	resp, err := s.client.Get(ctx, url, BrowserHeaders(s.userAgent))
	if err != nil {
		return Page{}, err
	}
	if resp.StatusCode() >= http.StatusInternalServerError {
		return Page{}, fmt.Errorf("status %d", resp.StatusCode())
	}
	return Page{URL: url, HTML: resp.Body(), StatusCode: resp.StatusCode()}, nil
}
