package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	finnhub "github.com/Finnhub-Stock-API/finnhub-go/v2"
	"github.com/go-playground/assert/v2"

	"github.com/Adda-Baaj/bazaar-khobor/internal/domain"
	"github.com/Adda-Baaj/bazaar-khobor/pkg/httpclient"
)

const newsSitemap = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9" xmlns:news="http://www.google.com/schemas/sitemap-news/0.9">
  <url>
    <loc>https://news.example.com/markets/chip-rally.html</loc>
    <news:news>
      <news:publication_date>2025-01-02T03:04:05Z</news:publication_date>
      <news:title>Chip stocks rally</news:title>
      <news:stock_tickers>NASDAQ:NVDA, NASDAQ:AMD</news:stock_tickers>
    </news:news>
  </url>
  <url>
    <loc>https://news.example.com/markets/oil.html</loc>
    <lastmod>2025-01-01</lastmod>
  </url>
</urlset>`

func serve(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, body := range routes {
		body := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func client() HTTPClient { return httpclient.NewRestyClient(5 * time.Second) }

func TestSitemapFetcherReadsNewsEntries(t *testing.T) {
	srv := serve(t, map[string]string{"/news.xml": newsSitemap})

	links, err := NewSitemapFetcher(client()).Fetch(context.Background(), Provider{
		ID:        "example",
		Type:      TypeGoogleNewsSitemap,
		SourceURL: srv.URL + "/news.xml",
	})
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(links))
	assert.Equal(t, "Chip stocks rally", links[0].Title)
	assert.Equal(t, []string{"NVDA", "AMD"}, links[0].Symbols)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), links[0].PublishedAt.UTC())
	assert.Equal(t, "example", links[0].ProviderID)
	assert.Equal(t, hashURL(links[0].URL), links[0].ID)
	assert.Equal(t, 2025, links[1].PublishedAt.Year())
}

func TestSitemapFetcherFollowsIndexOnce(t *testing.T) {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/index.xml", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<sitemapindex><sitemap><loc>` + srv.URL + `/news.xml</loc></sitemap><sitemap><loc>` + srv.URL + `/index.xml</loc></sitemap></sitemapindex>`))
	})
	mux.HandleFunc("/news.xml", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(newsSitemap))
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	links, err := NewSitemapFetcher(client()).Fetch(context.Background(), Provider{
		ID:        "example",
		SourceURL: srv.URL + "/index.xml",
		Limit:     1,
	})
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(links))
}

func TestSitemapFetcherReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewSitemapFetcher(client()).Fetch(context.Background(), Provider{ID: "x", SourceURL: srv.URL})
	assert.NotEqual(t, nil, err)
}

func TestYahooTopicFetcherFiltersLinks(t *testing.T) {
	page := `<html><body>
<a href="/news/fed-holds-rates-120000123.html"> Fed   holds rates </a>
<a href="/news/fed-holds-rates-120000123.html?.tsrc=fin-srch">dup</a>
<a href="https://finance.yahoo.com/video/earnings-recap-093000456.html">Earnings recap</a>
<a href="/quote/NVDA/">NVDA quote</a>
<a href="/news/">News home</a>
</body></html>`
	srv := serve(t, map[string]string{"/topic/stock-market-news/": page})

	links, err := NewYahooTopicFetcher(client()).Fetch(context.Background(), Provider{
		ID:        "yahoo",
		SourceURL: srv.URL + "/topic/stock-market-news/",
	})
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(links))
	assert.Equal(t, srv.URL+"/news/fed-holds-rates-120000123.html", links[0].URL)
	assert.Equal(t, "Fed holds rates", links[0].Title)
	assert.Equal(t, "https://finance.yahoo.com/video/earnings-recap-093000456.html", links[1].URL)
}

func TestRSSFetcher(t *testing.T) {
	feed := `<?xml version="1.0"?><rss version="2.0"><channel><title>Markets</title>
<item><title>Stocks close higher</title><link>https://news.example.com/a.html</link><pubDate>Thu, 02 Jan 2025 03:04:05 GMT</pubDate></item>
<item><title>No link</title></item>
</channel></rss>`
	srv := serve(t, map[string]string{"/rss": feed})

	links, err := NewRSSFetcher(client()).Fetch(context.Background(), Provider{ID: "rss", SourceURL: srv.URL + "/rss"})
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(links))
	assert.Equal(t, "Stocks close higher", links[0].Title)
	assert.Equal(t, 2025, links[0].PublishedAt.Year())
}

func TestFinnhubFetcherMapsCompanyNews(t *testing.T) {
	var gotSymbol, gotFrom, gotTo string
	id := int64(42)
	url := "https://news.example.com/nvda.html"
	headline := "NVIDIA beats"
	ts := int64(1735787045)
	related := "NVDA"

	f := &finnhubFetcher{
		now: func() time.Time { return time.Date(2025, 1, 3, 12, 0, 0, 0, time.UTC) },
		news: func(_ context.Context, symbol, from, to string) ([]finnhub.CompanyNews, error) {
			gotSymbol, gotFrom, gotTo = symbol, from, to
			return []finnhub.CompanyNews{
				{Id: &id, Url: &url, Headline: &headline, Datetime: &ts, Related: &related},
				{Headline: &headline},
			}, nil
		},
	}

	links, err := f.Fetch(context.Background(), Provider{ID: "fh", Stock: domain.StockIdentity{Symbol: "nvda"}})
	assert.Equal(t, nil, err)
	assert.Equal(t, "NVDA", gotSymbol)
	assert.Equal(t, "2025-01-01", gotFrom)
	assert.Equal(t, "2025-01-03", gotTo)
	assert.Equal(t, 1, len(links))
	assert.Equal(t, "42", links[0].ID)
	assert.Equal(t, "NVIDIA beats", links[0].Title)
	assert.Equal(t, []string{"NVDA"}, links[0].Symbols)
}

func TestFinnhubFetcherRequiresKeyAndSymbol(t *testing.T) {
	_, err := NewFinnhubFetcher("").Fetch(context.Background(), Provider{ID: "fh", Stock: domain.StockIdentity{Symbol: "NVDA"}})
	assert.NotEqual(t, nil, err)

	f := &finnhubFetcher{now: time.Now, news: func(context.Context, string, string, string) ([]finnhub.CompanyNews, error) {
		return nil, errors.New("unreachable")
	}}
	_, err = f.Fetch(context.Background(), Provider{ID: "fh"})
	assert.NotEqual(t, nil, err)
}

func TestLoadProviders(t *testing.T) {
	t.Setenv("KHOBOR_TEST_FEED", "https://feeds.example.com/markets.xml")
	path := filepath.Join(t.TempDir(), "providers.yaml")
	err := os.WriteFile(path, []byte(`
providers:
  - id: " markets "
    type: RSS
    source_url: ${KHOBOR_TEST_FEED}
    request_delay_ms: 250
    stock:
      symbol: NVDA
  - id: off
    type: yahoo-topic
    enabled: false
`), 0o600)
	assert.Equal(t, nil, err)

	ps, err := LoadProviders(path)
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(ps))
	assert.Equal(t, "markets", ps[0].ID)
	assert.Equal(t, TypeRSS, ps[0].Type)
	assert.Equal(t, "https://feeds.example.com/markets.xml", ps[0].SourceURL)
	assert.Equal(t, 250*time.Millisecond, ps[0].RequestDelay())
	assert.Equal(t, domain.StockIdentity{Symbol: "NVDA", Name: "NVDA"}, ps[0].StockOrMarket())
	assert.Equal(t, false, ps[1].IsEnabled())
	assert.Equal(t, domain.MarketStock, ps[1].StockOrMarket())
}

func TestLoadProvidersRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.json")
	err := os.WriteFile(path, []byte(`{"providers":[{"id":"a","type":"rss"},{"id":"a","type":"rss"}]}`), 0o600)
	assert.Equal(t, nil, err)
	_, err = LoadProviders(path)
	assert.NotEqual(t, nil, err)
}

func TestRegistrySelectsByType(t *testing.T) {
	reg := DefaultRegistry(client(), "")
	f, err := reg.FetcherFor(Provider{ID: "x", Type: "RSS"})
	assert.Equal(t, nil, err)
	assert.Equal(t, TypeRSS, f.Type())

	_, err = reg.FetcherFor(Provider{ID: "x", Type: "carrier-pigeon"})
	assert.NotEqual(t, nil, err)
}

func TestHeadersOverrideDefaults(t *testing.T) {
	h := Headers(Provider{Headers: map[string]string{"User-Agent": "khobor-test", "Referer": "https://example.com"}})
	assert.Equal(t, "khobor-test", h["User-Agent"])
	assert.Equal(t, "https://example.com", h["Referer"])
	assert.NotEqual(t, "", h["Accept"])
}
