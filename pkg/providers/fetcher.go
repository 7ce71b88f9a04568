package providers

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Adda-Baaj/bazaar-khobor/pkg/httpclient"
)

// Registry maps provider types to fetchers.
type Registry struct {
	mu       sync.RWMutex
	fetchers map[string]Fetcher
}

// NewRegistry builds a registry over the given fetchers.
func NewRegistry(fetchers ...Fetcher) *Registry {
	r := &Registry{fetchers: make(map[string]Fetcher, len(fetchers))}
	for _, f := range fetchers {
		r.Register(f)
	}
	return r
}

// Register adds or replaces the fetcher for f.Type().
func (r *Registry) Register(f Fetcher) {
	if f == nil {
		return
	}
	r.mu.Lock()
	r.fetchers[strings.ToLower(strings.TrimSpace(f.Type()))] = f
	r.mu.Unlock()
}

// FetcherFor selects the fetcher for the provider's type.
func (r *Registry) FetcherFor(p Provider) (Fetcher, error) {
	typ := strings.ToLower(strings.TrimSpace(p.Type))
	if typ == "" {
		return nil, fmt.Errorf("provider %q has no type", p.ID)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.fetchers[typ]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("no fetcher registered for provider type %q", p.Type)
}

// DefaultHTTPClient is the transport used when none is supplied.
func DefaultHTTPClient() HTTPClient { return httpclient.NewRestyClient(15 * time.Second) }

// DefaultRegistry wires every built-in fetcher. finnhubKey may be empty, in
// which case finnhub providers fail at fetch time.
func DefaultRegistry(client HTTPClient, finnhubKey string) *Registry {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return NewRegistry(
		NewSitemapFetcher(client),
		NewYahooTopicFetcher(client),
		NewRSSFetcher(client),
		NewFinnhubFetcher(finnhubKey),
	)
}
