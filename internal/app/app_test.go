package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/Adda-Baaj/bazaar-khobor/internal/config"
	"github.com/Adda-Baaj/bazaar-khobor/pkg/extractor"
	"github.com/Adda-Baaj/bazaar-khobor/pkg/fetcher"
	"github.com/Adda-Baaj/bazaar-khobor/pkg/pipeline"
	"github.com/Adda-Baaj/bazaar-khobor/pkg/store"
)

type failingFetcher struct {
	mu    sync.Mutex
	times []time.Time
}

func (f *failingFetcher) Fetch(_ context.Context, url string) fetcher.Result {
	f.mu.Lock()
	f.times = append(f.times, time.Now())
	f.mu.Unlock()
	return fetcher.Result{URL: url, Err: fetcher.ErrExhausted}
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("KHOBOR_STORE_DRIVER", "memory")
	t.Setenv("KHOBOR_DISCOVERY_PROVIDERS_FILE", "missing.yaml")
	t.Setenv("REDIS_URL", "")
	cfg, err := config.Load("")
	assert.Equal(t, nil, err)
	return cfg
}

func TestNewWiresMemoryStoreWithoutProviders(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(context.Background(), cfg, nil)
	assert.Equal(t, nil, err)
	defer a.Close()

	assert.NotEqual(t, nil, a.Orchestrator)
	assert.Equal(t, true, a.Harvester == nil)
	_, isMemory := a.Store.(*store.Memory)
	assert.Equal(t, true, isMemory)
}

func TestNewBuildsHarvesterFromProvidersFile(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "providers.yaml")
	raw := []byte("providers:\n  - id: yahoo-markets\n    type: yahoo-topic\n    source_url: https://finance.yahoo.com/topic/stock-market-news/\n")
	assert.Equal(t, nil, os.WriteFile(path, raw, 0o600))
	cfg.Discovery.ProvidersFile = path

	a, err := New(context.Background(), cfg, nil)
	assert.Equal(t, nil, err)
	defer a.Close()
	assert.Equal(t, false, a.Harvester == nil)
}

func TestNewRejectsMissingAPIKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Analyzer.APIKey = ""

	_, err := New(context.Background(), cfg, nil)
	var missing *config.MissingError
	assert.Equal(t, true, errors.As(err, &missing))
}

func TestPacedRunnerWaitsBetweenItems(t *testing.T) {
	f := &failingFetcher{}
	orch := pipeline.New(f, extractor.New(extractor.Options{}), nil, store.NewMemory(), pipeline.Options{}, nil)
	a := &App{Orchestrator: orch, Config: config.Config{Batch: config.BatchConfig{Delay: 40 * time.Millisecond}}}

	out := a.Paced().Batch(context.Background(), []pipeline.Item{
		{URL: "https://x.example.com/1"},
		{URL: "https://x.example.com/2"},
	}, nil)

	assert.Equal(t, 2, len(out))
	assert.Equal(t, pipeline.ReasonTitleNotFound, out[1].Reason)
	assert.Equal(t, 2, len(f.times))
	assert.Equal(t, true, f.times[1].Sub(f.times[0]) >= 40*time.Millisecond)
}
