package crawler

import (
	"context"
	"sync"

	"github.com/Adda-Baaj/bazaar-khobor/internal/domain"
	"github.com/Adda-Baaj/bazaar-khobor/internal/logger"
	"github.com/Adda-Baaj/bazaar-khobor/pkg/pipeline"
	"github.com/Adda-Baaj/bazaar-khobor/pkg/providers"
)

const maxDiscoveryWorkers = 4

// BatchRunner analyzes a list of URLs in order.
type BatchRunner interface {
	Batch(ctx context.Context, items []pipeline.Item, progress pipeline.Progress) []pipeline.Outcome
}

// ExistenceChecker reports whether a URL was analyzed before.
type ExistenceChecker interface {
	Exists(ctx context.Context, url string) (bool, error)
}

// Report summarizes one harvest run.
type Report struct {
	Providers  int                `json:"providers"`
	Discovered int                `json:"discovered"`
	Queued     int                `json:"queued"`
	Outcomes   []pipeline.Outcome `json:"-"`
	// Errors maps provider id to its discovery error.
	Errors map[string]string `json:"errors,omitempty"`
}

// Counts tallies outcomes by status.
func (r Report) Counts() map[pipeline.Status]int {
	out := make(map[pipeline.Status]int)
	for _, o := range r.Outcomes {
		out[o.Status()]++
	}
	return out
}

// Harvester discovers links from configured providers and feeds the new ones
// to the analysis pipeline.
type Harvester struct {
	providers []providers.Provider
	registry  *providers.Registry
	existing  ExistenceChecker
	runner    BatchRunner
	log       logger.Logger
}

// NewHarvester builds a Harvester. Disabled providers are dropped.
func NewHarvester(ps []providers.Provider, reg *providers.Registry, existing ExistenceChecker, runner BatchRunner, log logger.Logger) *Harvester {
	if reg == nil {
		reg = providers.DefaultRegistry(nil, "")
	}
	enabled := make([]providers.Provider, 0, len(ps))
	for _, p := range ps {
		if p.IsEnabled() {
			enabled = append(enabled, p)
		}
	}
	return &Harvester{
		providers: enabled,
		registry:  reg,
		existing:  existing,
		runner:    runner,
		log:       logger.Ensure(log),
	}
}

// Run performs one discover-filter-analyze pass. Discovery failures are
// recorded per provider and do not stop the run.
func (h *Harvester) Run(ctx context.Context) Report {
	report := Report{Providers: len(h.providers), Errors: map[string]string{}}

	found := h.discover(ctx, &report)
	items := h.queue(ctx, found, &report)
	report.Queued = len(items)

	h.log.InfoObj("harvest discovery finished", "harvest_discovered", map[string]any{
		"providers":  report.Providers,
		"discovered": report.Discovered,
		"queued":     report.Queued,
		"errors":     len(report.Errors),
	})

	if len(items) == 0 || ctx.Err() != nil {
		return report
	}

	report.Outcomes = h.runner.Batch(ctx, items, func(done int, _ []pipeline.Outcome) {
		h.log.DebugObj("harvest progress", "harvest_progress", map[string]any{
			"done":  done,
			"total": len(items),
		})
	})

	counts := report.Counts()
	h.log.InfoObj("harvest finished", "harvest_complete", map[string]any{
		"done":    counts[pipeline.StatusDone],
		"skipped": counts[pipeline.StatusSkipped],
		"failed":  counts[pipeline.StatusFailed],
	})
	return report
}

type discovered struct {
	provider providers.Provider
	links    []domain.NewsLink
}

// discover fetches every provider with a small worker pool. Results keep the
// provider order of the config file.
func (h *Harvester) discover(ctx context.Context, report *Report) []discovered {
	out := make([]discovered, len(h.providers))
	errs := make([]error, len(h.providers))
	if len(h.providers) == 0 {
		return nil
	}

	jobCh := make(chan int)
	var wg sync.WaitGroup
	for range min(len(h.providers), maxDiscoveryWorkers) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobCh {
				p := h.providers[idx]
				out[idx].provider = p
				f, err := h.registry.FetcherFor(p)
				if err != nil {
					errs[idx] = err
					continue
				}
				out[idx].links, errs[idx] = f.Fetch(ctx, p)
			}
		}()
	}

	for idx := range h.providers {
		if ctx.Err() != nil {
			break
		}
		jobCh <- idx
	}
	close(jobCh)
	wg.Wait()

	for idx, err := range errs {
		p := h.providers[idx]
		if err != nil {
			report.Errors[p.ID] = err.Error()
			h.log.WarnObj("provider discovery failed", "discovery_error", map[string]any{
				"provider_id": p.ID,
				"type":        p.Type,
				"error":       err.Error(),
			})
			continue
		}
		report.Discovered += len(out[idx].links)
		h.log.DebugObj("provider discovered links", "discovery_ok", map[string]any{
			"provider_id": p.ID,
			"links":       len(out[idx].links),
		})
	}
	return out
}

// queue dedupes links across providers and drops ones already stored. A
// failed existence check keeps the link; the pipeline checks again.
func (h *Harvester) queue(ctx context.Context, found []discovered, report *Report) []pipeline.Item {
	seen := make(map[string]struct{})
	var items []pipeline.Item
	for _, d := range found {
		stock := d.provider.StockOrMarket()
		for _, link := range d.links {
			if _, dup := seen[link.URL]; dup || link.URL == "" {
				continue
			}
			seen[link.URL] = struct{}{}

			if h.existing != nil {
				exists, err := h.existing.Exists(ctx, link.URL)
				if err != nil {
					h.log.WarnObj("existence check failed", "harvest_exists_error", map[string]any{
						"url":   link.URL,
						"error": err.Error(),
					})
				}
				if exists {
					continue
				}
			}

			items = append(items, pipeline.Item{
				URL:   link.URL,
				Stock: linkStock(link, stock),
				Delay: d.provider.RequestDelay(),
			})
		}
	}
	return items
}

// linkStock prefers the provider's stock, then a single ticker on the link.
func linkStock(link domain.NewsLink, fallback domain.StockIdentity) domain.StockIdentity {
	if !fallback.IsUnknown() || len(link.Symbols) != 1 {
		return fallback
	}
	return domain.StockIdentity{Symbol: link.Symbols[0]}.Normalize()
}
