package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adda-Baaj/bazaar-khobor/internal/domain"
	"github.com/Adda-Baaj/bazaar-khobor/internal/logger"
	"github.com/Adda-Baaj/bazaar-khobor/pkg/analyzer"
	"github.com/Adda-Baaj/bazaar-khobor/pkg/fetcher"
	"github.com/Adda-Baaj/bazaar-khobor/pkg/locks"
	"github.com/Adda-Baaj/bazaar-khobor/pkg/store"
)

// Builder turns a fetch result into an Article.
type Builder interface {
	Build(res fetcher.Result) domain.Article
}

// Notifier is told about every record that was persisted.
type Notifier interface {
	Notify(ctx context.Context, rec domain.Record) error
}

// Options carries the optional collaborators.
type Options struct {
	Locker   locks.Locker
	Notifier Notifier
	// Delay is waited between batch items.
	Delay time.Duration
	Now   func() time.Time
	// RunTimeout bounds one analysis run. Defaults to defaultRunTimeout.
	RunTimeout time.Duration
}

const defaultRunTimeout = 5 * time.Minute

// Orchestrator runs fetch, extract, analyze and persist for article URLs.
type Orchestrator struct {
	fetcher  fetcher.Fetcher
	builder  Builder
	analyzer analyzer.Analyzer
	store    store.Store
	locker   locks.Locker
	notifier Notifier
	delay    time.Duration
	now      func() time.Time
	log      logger.Logger

	runTimeout time.Duration

	group singleflight.Group
}

// New wires an Orchestrator. Locker defaults to a no-op.
func New(f fetcher.Fetcher, b Builder, a analyzer.Analyzer, s store.Store, opts Options, log logger.Logger) *Orchestrator {
	if opts.Locker == nil {
		opts.Locker = locks.NoopLocker{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = defaultRunTimeout
	}
	return &Orchestrator{
		fetcher:  f,
		builder:  b,
		analyzer: a,
		store:    s,
		locker:   opts.Locker,
		notifier: opts.Notifier,
		delay:    opts.Delay,
		now:      opts.Now,
		log:      logger.Ensure(log),

		runTimeout: opts.RunTimeout,
	}
}

// AnalyzeURL analyzes url unless a record for it already exists. Storage
// failures are returned as errors; every other ending is an Outcome.
func (o *Orchestrator) AnalyzeURL(ctx context.Context, url string, stock domain.StockIdentity) (Outcome, error) {
	return o.shared(ctx, url, stock, false)
}

// ForceAnalyzeURL re-analyzes url even when it was analyzed before.
func (o *Orchestrator) ForceAnalyzeURL(ctx context.Context, url string, stock domain.StockIdentity) (Outcome, error) {
	return o.shared(ctx, url, stock, true)
}

// FetchArticle fetches and extracts url without analyzing it.
func (o *Orchestrator) FetchArticle(ctx context.Context, url string) domain.Article {
	return o.builder.Build(o.fetcher.Fetch(ctx, strings.TrimSpace(url)))
}

// ExtractStockInfo identifies which stock the article at url is about.
func (o *Orchestrator) ExtractStockInfo(ctx context.Context, url string) (StockOutcome, error) {
	art := o.FetchArticle(ctx, url)
	if err := ctx.Err(); err != nil {
		return StockOutcome{URL: url}, err
	}
	if art.IsFailed() {
		return StockOutcome{URL: url, Skipped: true, Reason: ReasonTitleNotFound}, nil
	}
	stock := o.analyzer.ExtractStockInfo(ctx, art.Content, art.Title)
	return StockOutcome{URL: url, Title: art.Title, Stock: stock}, nil
}

func (o *Orchestrator) shared(ctx context.Context, url string, stock domain.StockIdentity, force bool) (Outcome, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return Outcome{}, errors.New("url is empty")
	}
	key := url
	if force {
		key = "force|" + url
	}
	if err := ctx.Err(); err != nil {
		return Outcome{URL: url}, err
	}

	// The shared run ignores caller cancellation and is bounded by
	// runTimeout. Each caller stops waiting when its own ctx ends.
	ch := o.group.DoChan(key, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.runTimeout)
		defer cancel()
		return o.run(runCtx, url, stock, force)
	})
	select {
	case <-ctx.Done():
		return Outcome{URL: url}, ctx.Err()
	case res := <-ch:
		out, _ := res.Val.(Outcome)
		return out, res.Err
	}
}

func (o *Orchestrator) run(ctx context.Context, url string, stock domain.StockIdentity, force bool) (Outcome, error) {
	release, err := o.locker.Acquire(ctx, url)
	if errors.Is(err, locks.ErrNotAcquired) {
		o.log.InfoObj("analysis already running elsewhere", "analysis_skipped", map[string]any{
			"url":    url,
			"reason": ReasonInProgress,
		})
		return skipped(url, ReasonInProgress), nil
	}
	if err != nil {
		return Outcome{URL: url}, fmt.Errorf("lock %s: %w", url, err)
	}
	defer release()

	if !force {
		exists, err := o.store.Exists(ctx, url)
		if err != nil {
			return Outcome{URL: url}, fmt.Errorf("check existing record: %w", err)
		}
		if exists {
			o.log.DebugObj("article already analyzed", "analysis_skipped", map[string]any{
				"url":    url,
				"reason": ReasonArticleExists,
			})
			return skipped(url, ReasonArticleExists), nil
		}
	}

	art := o.FetchArticle(ctx, url)
	if art.IsFailed() {
		o.log.WarnObj("article could not be extracted", "analysis_skipped", map[string]any{
			"url":         url,
			"reason":      ReasonTitleNotFound,
			"fail_reason": art.FailReason,
		})
		return skipped(url, ReasonTitleNotFound), nil
	}

	stock = stock.Normalize()
	if stock.IsUnknown() {
		stock = o.analyzer.ExtractStockInfo(ctx, art.Content, art.Title).Normalize()
	}
	out := Outcome{URL: url, Stock: stock, Article: &art}

	result, err := o.analyzer.Analyze(ctx, art.Content, stock)
	if err != nil {
		o.log.ErrorObj("analysis failed", "analysis_error", map[string]any{
			"url":    url,
			"symbol": stock.Symbol,
			"error":  err.Error(),
		})
		out.Err = err
		out.AnalysisError = true
		return out, nil
	}
	out.Analysis = &result

	rec := domain.Record{
		Title:         art.Title,
		Symbol:        stock.Symbol,
		Company:       stock.Name,
		URL:           url,
		PublishDate:   art.PublishDate,
		GeneratedDate: o.now(),
		Sentiment:     result.Sentiment,
		Summary:       result.Summary,
	}
	if err := o.store.Upsert(ctx, rec); err != nil {
		return out, fmt.Errorf("persist record: %w", err)
	}

	o.log.InfoObj("article analyzed", "analysis_complete", map[string]any{
		"url":       url,
		"symbol":    stock.Symbol,
		"sentiment": result.Sentiment.String(),
		"forced":    force,
	})

	if o.notifier != nil {
		if err := o.notifier.Notify(ctx, rec); err != nil {
			o.log.WarnObj("record notification failed", "notify_error", map[string]any{
				"url":   url,
				"error": err.Error(),
			})
		}
	}
	return out, nil
}
