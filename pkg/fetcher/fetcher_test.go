package fetcher

import (
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/Adda-Baaj/bazaar-khobor/internal/config"
	"github.com/Adda-Baaj/bazaar-khobor/pkg/httpclient"
)

type fakeStrategy struct {
	name    string
	applies bool
	page    Page
	err     error
	calls   int
	panics  bool
}

func (f *fakeStrategy) Name() string        { return f.name }
func (f *fakeStrategy) Applies(string) bool { return f.applies }
func (f *fakeStrategy) Attempt(context.Context, string) (Page, error) {
	f.calls++
	if f.panics {
		panic("boom")
	}
	return f.page, f.err
}

func TestChainReturnsFirstSuccessInOrder(t *testing.T) {
	api := &fakeStrategy{name: "api", applies: false}
	direct := &fakeStrategy{name: "direct", applies: true, err: errors.New("403 wall")}
	dl := &fakeStrategy{name: "dl", applies: true, page: Page{HTML: []byte("<html></html>")}}
	never := &fakeStrategy{name: "never", applies: true, page: Page{HTML: []byte("x")}}

	res := NewChain(nil, api, direct, dl, never).Fetch(context.Background(), "https://example.com/a")

	assert.Equal(t, true, res.OK())
	assert.Equal(t, "dl", res.Page.Strategy)
	assert.Equal(t, "https://example.com/a", res.Page.URL)
	assert.Equal(t, 0, api.calls)
	assert.Equal(t, 1, direct.calls)
	assert.Equal(t, 1, dl.calls)
	assert.Equal(t, 0, never.calls)
}

func TestChainExhaustedCarriesEveryError(t *testing.T) {
	a := &fakeStrategy{name: "a", applies: true, err: errors.New("first")}
	b := &fakeStrategy{name: "b", applies: true, panics: true}
	c := &fakeStrategy{name: "c", applies: true}

	res := NewChain(nil, a, b, c).Fetch(context.Background(), "https://example.com/a")

	assert.Equal(t, false, res.OK())
	assert.Equal(t, true, errors.Is(res.Err, ErrExhausted))
	assert.Equal(t, true, strings.Contains(res.Err.Error(), "a: first"))
	assert.Equal(t, true, strings.Contains(res.Err.Error(), "b: strategy panicked"))
	assert.Equal(t, true, strings.Contains(res.Err.Error(), "c: empty body"))
}

func TestChainStopsOnCancelledContext(t *testing.T) {
	a := &fakeStrategy{name: "a", applies: true, page: Page{HTML: []byte("x")}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewChain(nil, a).Fetch(ctx, "https://example.com")
	assert.Equal(t, false, res.OK())
	assert.Equal(t, 0, a.calls)
	assert.Equal(t, true, errors.Is(res.Err, context.Canceled))
}

func TestHTTPStrategyStatusHandling(t *testing.T) {
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("<html><title>Not here</title></html>"))
		case "/broken":
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	s := NewHTTPStrategy(httpclient.NewRestyClient(5*time.Second), config.DefaultUserAgent)

	page, err := s.Attempt(context.Background(), srv.URL+"/missing")
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusNotFound, page.StatusCode)
	assert.Equal(t, config.DefaultUserAgent, gotHeaders.Get("User-Agent"))
	assert.Equal(t, "navigate", gotHeaders.Get("Sec-Fetch-Mode"))

	_, err = s.Attempt(context.Background(), srv.URL+"/broken")
	assert.NotEqual(t, nil, err)
}

func TestHTTPStrategyDecodesCompressedBody(t *testing.T) {
	const html = "<html><head><title>Zipped</title></head><body><p>hello</p></body></html>"
	var acceptEncoding string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acceptEncoding = r.Header.Get("Accept-Encoding")
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(w)
		_, _ = zw.Write([]byte(html))
		_ = zw.Close()
	}))
	defer srv.Close()

	_, set := BrowserHeaders(config.DefaultUserAgent)["Accept-Encoding"]
	assert.Equal(t, false, set)

	s := NewHTTPStrategy(httpclient.NewRestyClient(5*time.Second), config.DefaultUserAgent)
	page, err := s.Attempt(context.Background(), srv.URL+"/zipped")
	assert.Equal(t, nil, err)
	assert.Equal(t, "gzip", acceptEncoding)
	assert.Equal(t, html, string(page.HTML))
}

func TestYahooAPIStrategy(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"title": "Chipmaker rallies on guidance",
			"body": "<p>short</p><p>Shares rose sharply after the company raised its outlook.</p>",
			"pubtime": 1700000000
		}`))
	}))
	defer srv.Close()

	s := NewYahooAPIStrategy(httpclient.NewRestyClient(5*time.Second), srv.URL, config.DefaultUserAgent)

	assert.Equal(t, true, s.Applies("https://finance.yahoo.com/news/chipmaker-rallies-123.html"))
	assert.Equal(t, false, s.Applies("https://www.reuters.com/markets/x.html"))

	page, err := s.Attempt(context.Background(), "https://finance.yahoo.com/news/chipmaker-rallies-123.html")
	assert.Equal(t, nil, err)
	assert.Equal(t, "/_finance_doubledown/api/resource/content.article;caasId=chipmaker-rallies-123", gotPath)

	html := string(page.HTML)
	assert.Equal(t, true, strings.Contains(html, "<title>Chipmaker rallies on guidance</title>"))
	assert.Equal(t, true, strings.Contains(html, "raised its outlook"))
	assert.Equal(t, false, strings.Contains(html, "<p>short</p>"))
	assert.Equal(t, true, strings.Contains(html, "2023-11-14T22:13:20Z"))
}

func TestYahooAPIStrategyRejectsURLWithoutID(t *testing.T) {
	s := NewYahooAPIStrategy(httpclient.NewRestyClient(time.Second), "", "")
	_, err := s.Attempt(context.Background(), "https://finance.yahoo.com/quote/AAPL/")
	assert.NotEqual(t, nil, err)
}

func writeFakeCurl(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script downloader needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-curl")
	assert.Equal(t, nil, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

// The fake downloader writes its argument list into the -o target.
const echoArgsScript = `out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-o" ]; then out="$a"; fi
  prev="$a"
done
echo "<html><title>via curl</title><body>$*</body></html>" > "$out"
`

func TestCurlStrategyCleansUpTempFile(t *testing.T) {
	bin := writeFakeCurl(t, echoArgsScript)
	scratch := t.TempDir()

	s := NewCurlStrategy(bin, "agent/1.0", scratch).(*curlStrategy)
	s.lookupEnv = func(string) (string, bool) { return "", false }

	page, err := s.Attempt(context.Background(), "https://example.com/story")
	assert.Equal(t, nil, err)
	assert.Equal(t, true, strings.Contains(string(page.HTML), "via curl"))
	assert.Equal(t, true, strings.Contains(string(page.HTML), "-A agent/1.0 -L https://example.com/story"))

	left, _ := os.ReadDir(scratch)
	assert.Equal(t, 0, len(left))
}

func TestCurlStrategyCleansUpOnFailure(t *testing.T) {
	bin := writeFakeCurl(t, "echo 'could not resolve host' >&2\nexit 6\n")
	scratch := t.TempDir()

	s := NewCurlStrategy(bin, "agent/1.0", scratch).(*curlStrategy)
	s.lookupEnv = func(string) (string, bool) { return "", false }

	_, err := s.Attempt(context.Background(), "https://nowhere.invalid/")
	assert.NotEqual(t, nil, err)
	assert.Equal(t, true, strings.Contains(err.Error(), "could not resolve host"))

	left, _ := os.ReadDir(scratch)
	assert.Equal(t, 0, len(left))
}

func TestCurlStrategyUsesSystemTempOnServerless(t *testing.T) {
	s := NewCurlStrategy("", "", "local-scratch").(*curlStrategy)
	s.lookupEnv = func(name string) (string, bool) {
		if name == "AWS_LAMBDA_FUNCTION_NAME" {
			return "handler", true
		}
		return "", false
	}
	assert.Equal(t, os.TempDir(), s.tempDir())

	s.lookupEnv = func(string) (string, bool) { return "", false }
	assert.Equal(t, "local-scratch", s.tempDir())
}

func TestCurlStrategyMissingBinary(t *testing.T) {
	s := NewCurlStrategy("definitely-not-a-real-downloader", "", t.TempDir())
	_, err := s.Attempt(context.Background(), "https://example.com")
	assert.NotEqual(t, nil, err)
}

func TestFromConfigOrder(t *testing.T) {
	c, err := FromConfig(config.FetcherConfig{
		Timeout:    30 * time.Second,
		Strategies: []string{"http", "curl", "http"},
	}, nil)
	assert.Equal(t, nil, err)
	assert.Equal(t, []string{"http", "curl"}, c.Names())

	_, err = FromConfig(config.FetcherConfig{Strategies: []string{"carrier-pigeon"}}, nil)
	assert.NotEqual(t, nil, err)
}
