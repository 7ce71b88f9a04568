package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestBatchKeepsInputOrderWithPartialFailure(t *testing.T) {
	urls := []string{
		"https://news.example.com/1.html",
		"https://news.example.com/2.html",
		"https://news.example.com/3.html",
	}
	f := newFixture(map[string]string{
		urls[0]: page("First"),
		urls[2]: page("Third"),
	}, Options{})

	items := make([]Item, len(urls))
	for i, u := range urls {
		items[i] = Item{URL: u, Stock: nvda}
	}

	var snapshots [][]Outcome
	results := f.orch.Batch(context.Background(), items, func(done int, rs []Outcome) {
		assert.Equal(t, len(snapshots)+1, done)
		snapshots = append(snapshots, rs)
	})

	assert.Equal(t, 3, len(results))
	assert.Equal(t, urls[0], results[0].URL)
	assert.Equal(t, "First", results[0].Article.Title)
	assert.Equal(t, StatusDone, results[0].Status())

	assert.Equal(t, urls[1], results[1].URL)
	assert.Equal(t, StatusSkipped, results[1].Status())
	assert.Equal(t, ReasonTitleNotFound, results[1].Reason)

	assert.Equal(t, "Third", results[2].Article.Title)
	assert.Equal(t, StatusDone, results[2].Status())

	assert.Equal(t, 3, len(snapshots))
	assert.Equal(t, StatusDone, snapshots[0][0].Status())
	assert.Equal(t, StatusPending, snapshots[0][1].Status())
	assert.Equal(t, StatusPending, snapshots[0][2].Status())
	assert.Equal(t, 2, f.analyzer.analyzeCalls)
}

func TestBatchRecordsPerItemErrors(t *testing.T) {
	urls := []string{"https://news.example.com/1.html", "https://news.example.com/2.html"}
	f := newFixture(map[string]string{urls[0]: page("First"), urls[1]: page("Second")}, Options{})
	f.store.upsertErr = context.DeadlineExceeded

	results := f.orch.Batch(context.Background(), []Item{{URL: urls[0], Stock: nvda}, {URL: urls[1], Stock: nvda}}, nil)
	assert.Equal(t, 2, len(results))
	assert.Equal(t, StatusFailed, results[0].Status())
	assert.Equal(t, StatusFailed, results[1].Status())
	assert.Equal(t, urls[1], results[1].URL)
}

func TestBatchCancellationMarksRemainingItems(t *testing.T) {
	urls := []string{"https://news.example.com/1.html", "https://news.example.com/2.html", "https://news.example.com/3.html"}
	f := newFixture(map[string]string{urls[0]: page("First"), urls[1]: page("Second"), urls[2]: page("Third")}, Options{Delay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	items := []Item{{URL: urls[0], Stock: nvda}, {URL: urls[1], Stock: nvda}, {URL: urls[2], Stock: nvda}}

	results := f.orch.Batch(ctx, items, func(done int, _ []Outcome) {
		if done == 1 {
			cancel()
		}
	})

	assert.Equal(t, StatusDone, results[0].Status())
	assert.Equal(t, ReasonCancelled, results[1].Reason)
	assert.Equal(t, ReasonCancelled, results[2].Reason)
	assert.Equal(t, urls[2], results[2].URL)
	assert.Equal(t, 1, f.fetcher.calls)
}

func TestBatchDelayRunsBetweenItems(t *testing.T) {
	urls := []string{"https://news.example.com/1.html", "https://news.example.com/2.html"}
	f := newFixture(map[string]string{urls[0]: page("First"), urls[1]: page("Second")}, Options{Delay: 20 * time.Millisecond})

	start := time.Now()
	results := f.orch.Batch(context.Background(), []Item{{URL: urls[0], Stock: nvda}, {URL: urls[1], Stock: nvda}}, nil)
	assert.Equal(t, true, time.Since(start) >= 20*time.Millisecond)
	assert.Equal(t, StatusDone, results[1].Status())
}
