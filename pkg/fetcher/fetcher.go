package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Adda-Baaj/bazaar-khobor/internal/logger"
)

// ErrExhausted is wrapped by Result.Err when no strategy produced a page.
var ErrExhausted = errors.New("all fetch strategies failed")

// Page is raw HTML retrieved for a URL.
type Page struct {
	URL        string
	HTML       []byte
	Strategy   string
	StatusCode int
}

// Strategy is one way of retrieving a page.
type Strategy interface {
	Name() string
	// Applies reports whether the strategy can handle the URL at all.
	Applies(url string) bool
	Attempt(ctx context.Context, url string) (Page, error)
}

// Result is either a Page or the reason every strategy failed.
type Result struct {
	URL  string
	Page *Page
	Err  error
}

// OK reports whether the result carries a page.
func (r Result) OK() bool { return r.Page != nil && r.Err == nil }

// Fetcher retrieves pages for the extraction layer.
type Fetcher interface {
	Fetch(ctx context.Context, url string) Result
}

// Chain tries strategies in order and returns the first success.
type Chain struct {
	strategies []Strategy
	log        logger.Logger
}

// NewChain builds a chain over the given strategies. Nil entries are dropped.
func NewChain(log logger.Logger, strategies ...Strategy) *Chain {
	kept := make([]Strategy, 0, len(strategies))
	for _, s := range strategies {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Chain{strategies: kept, log: logger.Ensure(log)}
}

// Names lists the strategies in evaluation order.
func (c *Chain) Names() []string {
	out := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		out[i] = s.Name()
	}
	return out
}

// Fetch never panics and never returns a nil-page success.
func (c *Chain) Fetch(ctx context.Context, url string) Result {
	url = strings.TrimSpace(url)
	if url == "" {
		return Result{URL: url, Err: fmt.Errorf("%w: empty url", ErrExhausted)}
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if !s.Applies(url) {
			continue
		}

		start := time.Now()
		page, err := c.attempt(ctx, s, url)
		if err == nil && len(page.HTML) > 0 {
			c.log.DebugObj("page fetched", "fetch_success", map[string]any{
				"strategy":    s.Name(),
				"url":         url,
				"status":      page.StatusCode,
				"bytes":       len(page.HTML),
				"duration_ms": time.Since(start).Milliseconds(),
			})
			page.Strategy = s.Name()
			if page.URL == "" {
				page.URL = url
			}
			return Result{URL: url, Page: &page}
		}
		if err == nil {
			err = errors.New("empty body")
		}

		c.log.WarnObj("fetch strategy failed", "fetch_attempt_failed", map[string]any{
			"strategy": s.Name(),
			"url":      url,
			"error":    err.Error(),
		})
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}

	if len(errs) == 0 {
		errs = append(errs, errors.New("no strategy applies"))
	}
	return Result{URL: url, Err: fmt.Errorf("%w: %w", ErrExhausted, errors.Join(errs...))}
}

func (c *Chain) attempt(ctx context.Context, s Strategy, url string) (page Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy panicked: %v", r)
		}
	}()
	return s.Attempt(ctx, url)
}
