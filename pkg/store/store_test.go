package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/Adda-Baaj/bazaar-khobor/internal/config"
	"github.com/Adda-Baaj/bazaar-khobor/internal/domain"
)

func sampleRecord(url string) domain.Record {
	return domain.Record{
		Title:         "Chipmaker rallies",
		Symbol:        "NVDA",
		Company:       "NVIDIA",
		URL:           url,
		PublishDate:   time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		GeneratedDate: time.Date(2025, 1, 2, 4, 0, 0, 0, time.UTC),
		Sentiment:     domain.SentimentGood,
		Summary:       "Demand outlook raised.",
	}
}

func TestFormatDateUsesFixedOffset(t *testing.T) {
	ts := time.Date(2025, 1, 2, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-01-03T04:00:00+08:00", FormatDate(ts, Zone(8)))
	assert.Equal(t, "2025-01-02T20:00:00Z", FormatDate(ts, Zone(0)))
	assert.Equal(t, "2025-01-02T15:00:00-05:00", FormatDate(ts, Zone(-5)))
}

func TestBoltUpsertIsIdempotentPerURL(t *testing.T) {
	b, err := OpenBolt(filepath.Join(t.TempDir(), "nested", "khobor.db"), nil)
	assert.Equal(t, nil, err)
	defer b.Close()

	ctx := context.Background()
	url := "https://finance.yahoo.com/news/a.html"

	exists, err := b.Exists(ctx, url)
	assert.Equal(t, nil, err)
	assert.Equal(t, false, exists)

	assert.Equal(t, nil, b.Upsert(ctx, sampleRecord(url)))

	second := sampleRecord(url)
	second.Symbol = "SHOULD-NOT-CHANGE"
	second.Sentiment = domain.SentimentBad
	second.Summary = "Guidance cut."
	second.GeneratedDate = second.GeneratedDate.Add(time.Hour)
	assert.Equal(t, nil, b.Upsert(ctx, second))

	n, err := b.Count()
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, n)

	got, found, err := b.Get(url)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, found)
	assert.Equal(t, "NVDA", got.Symbol)
	assert.Equal(t, domain.SentimentBad, got.Sentiment)
	assert.Equal(t, "Guidance cut.", got.Summary)
	assert.Equal(t, true, second.GeneratedDate.Equal(got.GeneratedDate))

	exists, _ = b.Exists(ctx, url)
	assert.Equal(t, true, exists)
}

func TestBoltRejectsEmptyURL(t *testing.T) {
	b, err := OpenBolt(filepath.Join(t.TempDir(), "k.db"), nil)
	assert.Equal(t, nil, err)
	defer b.Close()
	assert.NotEqual(t, nil, b.Upsert(context.Background(), domain.Record{}))
}

func TestMemoryConcurrentUpsertsConverge(t *testing.T) {
	m := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Upsert(context.Background(), sampleRecord("https://x.example.com/1"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, m.Len())
}

type notionFake struct {
	mu      sync.Mutex
	pages   map[string]string // url -> page id
	creates []map[string]any
	updates []map[string]any
	token   string
	version string
	// queryContentType is the Content-Type the query endpoint answers with.
	queryContentType string
}

func newNotionFake() (*notionFake, *httptest.Server) {
	f := &notionFake{pages: map[string]string{}, queryContentType: "application/json"}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/databases/db-1/query", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.token = r.Header.Get("Authorization")
		f.version = r.Header.Get("Notion-Version")

		var body struct {
			Filter struct {
				Property string `json:"property"`
				URL      struct {
					Equals string `json:"equals"`
				} `json:"url"`
			} `json:"filter"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", f.queryContentType)
		results := []map[string]string{}
		if id, ok := f.pages[body.Filter.URL.Equals]; ok && body.Filter.Property == propArticleURL {
			results = append(results, map[string]string{"id": id})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	})
	mux.HandleFunc("/v1/pages", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.creates = append(f.creates, body)
		props := body["properties"].(map[string]any)
		url := props[propArticleURL].(map[string]any)["url"].(string)
		f.pages[url] = "page-1"
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "page-1"})
	})
	mux.HandleFunc("/v1/pages/page-1", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.Method != http.MethodPatch {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.updates = append(f.updates, body)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "page-1"})
	})
	return f, httptest.NewServer(mux)
}

func TestNotionCreateThenUpdate(t *testing.T) {
	fake, srv := newNotionFake()
	defer srv.Close()

	n, err := NewNotion(NotionOptions{Token: "secret", DatabaseID: "db-1", BaseURL: srv.URL, Zone: Zone(8)}, nil)
	assert.Equal(t, nil, err)

	ctx := context.Background()
	url := "https://finance.yahoo.com/news/b.html"

	assert.Equal(t, nil, n.Upsert(ctx, sampleRecord(url)))
	assert.Equal(t, 1, len(fake.creates))
	assert.Equal(t, "Bearer secret", fake.token)
	assert.Equal(t, notionDefaultVersion, fake.version)

	props := fake.creates[0]["properties"].(map[string]any)
	assert.Equal(t, "Good 😀", props[propSentiment].(map[string]any)["select"].(map[string]any)["name"])
	start := props[propArticleDate].(map[string]any)["date"].(map[string]any)["start"]
	assert.Equal(t, "2025-01-02T11:04:05+08:00", start)

	exists, err := n.Exists(ctx, url)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, exists)

	again := sampleRecord(url)
	again.Sentiment = domain.SentimentNeutral
	assert.Equal(t, nil, n.Upsert(ctx, again))
	assert.Equal(t, 1, len(fake.creates))
	assert.Equal(t, 1, len(fake.updates))

	updated := fake.updates[0]["properties"].(map[string]any)
	_, hasSymbol := updated[propSymbol]
	assert.Equal(t, false, hasSymbol)
	assert.Equal(t, "Neutral 😐", updated[propSentiment].(map[string]any)["select"].(map[string]any)["name"])
}

func TestNotionDecodesQueryRegardlessOfContentType(t *testing.T) {
	fake, srv := newNotionFake()
	defer srv.Close()
	fake.mu.Lock()
	fake.queryContentType = "text/plain; charset=utf-8"
	fake.pages["https://finance.yahoo.com/news/c.html"] = "page-1"
	fake.mu.Unlock()

	n, err := NewNotion(NotionOptions{Token: "secret", DatabaseID: "db-1", BaseURL: srv.URL}, nil)
	assert.Equal(t, nil, err)

	exists, err := n.Exists(context.Background(), "https://finance.yahoo.com/news/c.html")
	assert.Equal(t, nil, err)
	assert.Equal(t, true, exists)

	assert.Equal(t, nil, n.Upsert(context.Background(), sampleRecord("https://finance.yahoo.com/news/c.html")))
	assert.Equal(t, 0, len(fake.creates))
	assert.Equal(t, 1, len(fake.updates))
}

func TestNotionUndecodableQueryIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>proxy login</html>"))
	}))
	defer srv.Close()

	n, err := NewNotion(NotionOptions{Token: "secret", DatabaseID: "db-1", BaseURL: srv.URL}, nil)
	assert.Equal(t, nil, err)

	_, err = n.Exists(context.Background(), "https://x.example.com")
	assert.NotEqual(t, nil, err)
}

func TestNotionQueryFailurePropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"object":"error","code":"unauthorized","message":"API token is invalid."}`))
	}))
	defer srv.Close()

	n, err := NewNotion(NotionOptions{Token: "bad", DatabaseID: "db-1", BaseURL: srv.URL}, nil)
	assert.Equal(t, nil, err)

	_, err = n.Exists(context.Background(), "https://x.example.com")
	assert.NotEqual(t, nil, err)
	assert.Equal(t, true, strings.Contains(err.Error(), "API token is invalid."))
}

func TestNotionSummaryIsClipped(t *testing.T) {
	long := strings.Repeat("字", notionRichTextLimit+50)
	rt := richText(long)
	content := rt[0]["text"].(map[string]any)["content"].(string)
	assert.Equal(t, notionRichTextLimit, len([]rune(content)))
}

func TestOpenSelectsDriver(t *testing.T) {
	s, err := Open(context.Background(), config.StoreConfig{Driver: "memory"}, nil)
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, s.Close())

	_, err = Open(context.Background(), config.StoreConfig{Driver: "cassette"}, nil)
	assert.Equal(t, true, errors.Is(err, ErrUnknownDriver))

	_, err = Open(context.Background(), config.StoreConfig{Driver: "notion"}, nil)
	assert.NotEqual(t, nil, err)
}

func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("KHOBOR_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("KHOBOR_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	p, err := OpenPostgres(ctx, dsn, nil)
	assert.Equal(t, nil, err)
	defer p.Close()

	url := "https://example.com/pg-" + time.Now().Format("150405.000000")
	assert.Equal(t, nil, p.Upsert(ctx, sampleRecord(url)))

	next := sampleRecord(url)
	next.Summary = "refreshed"
	assert.Equal(t, nil, p.Upsert(ctx, next))

	got, found, err := p.Get(ctx, url)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, found)
	assert.Equal(t, "refreshed", got.Summary)
	assert.Equal(t, domain.SentimentGood, got.Sentiment)
}
