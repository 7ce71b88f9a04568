package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Adda-Baaj/bazaar-khobor/pkg/pipeline"
)

// Job states.
const (
	JobRunning   = "running"
	JobCompleted = "completed"
)

// ItemResult is the wire form of one batch entry.
type ItemResult struct {
	URL           string `json:"url"`
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
	Title         string `json:"title,omitempty"`
	Symbol        string `json:"symbol,omitempty"`
	Summary       string `json:"summary,omitempty"`
	Sentiment     string `json:"sentiment,omitempty"`
	Error         string `json:"error,omitempty"`
	AnalysisError bool   `json:"analysisError,omitempty"`
}

// JobSnapshot is a point-in-time copy of a batch job.
type JobSnapshot struct {
	ID         string       `json:"id"`
	State      string       `json:"state"`
	Total      int          `json:"total"`
	Done       int          `json:"done"`
	Results    []ItemResult `json:"results"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt *time.Time   `json:"finishedAt,omitempty"`
}

type job struct {
	mu   sync.RWMutex
	snap JobSnapshot
}

// Jobs tracks batch runs in memory.
type Jobs struct {
	mu   sync.RWMutex
	jobs map[string]*job
}

func NewJobs() *Jobs {
	return &Jobs{jobs: make(map[string]*job)}
}

// BatchRunner runs a batch with progress callbacks.
type BatchRunner interface {
	Batch(ctx context.Context, items []pipeline.Item, progress pipeline.Progress) []pipeline.Outcome
}

// Start registers a job and runs it in the background.
func (j *Jobs) Start(ctx context.Context, runner BatchRunner, items []pipeline.Item) JobSnapshot {
	initial := make([]pipeline.Outcome, len(items))
	for i, it := range items {
		initial[i] = pipeline.Outcome{URL: it.URL}
	}
	jb := &job{snap: JobSnapshot{
		ID:        uuid.NewString(),
		State:     JobRunning,
		Total:     len(items),
		Results:   toItemResults(initial),
		StartedAt: time.Now().UTC(),
	}}

	j.mu.Lock()
	j.jobs[jb.snap.ID] = jb
	j.mu.Unlock()

	go func() {
		final := runner.Batch(ctx, items, func(done int, results []pipeline.Outcome) {
			jb.mu.Lock()
			jb.snap.Done = done
			jb.snap.Results = toItemResults(results)
			jb.mu.Unlock()
		})
		now := time.Now().UTC()
		jb.mu.Lock()
		jb.snap.State = JobCompleted
		jb.snap.Results = toItemResults(final)
		jb.snap.FinishedAt = &now
		jb.mu.Unlock()
	}()

	return jb.copy()
}

// Get returns a snapshot of job id.
func (j *Jobs) Get(id string) (JobSnapshot, bool) {
	j.mu.RLock()
	jb, ok := j.jobs[id]
	j.mu.RUnlock()
	if !ok {
		return JobSnapshot{}, false
	}
	return jb.copy(), true
}

func (jb *job) copy() JobSnapshot {
	jb.mu.RLock()
	defer jb.mu.RUnlock()
	out := jb.snap
	out.Results = append([]ItemResult(nil), jb.snap.Results...)
	return out
}

func toItemResults(outcomes []pipeline.Outcome) []ItemResult {
	out := make([]ItemResult, len(outcomes))
	for i, o := range outcomes {
		r := ItemResult{
			URL:           o.URL,
			Status:        string(o.Status()),
			Reason:        o.Reason,
			Symbol:        o.Stock.Symbol,
			AnalysisError: o.AnalysisError,
		}
		if o.Article != nil {
			r.Title = o.Article.Title
		}
		if o.Analysis != nil {
			r.Summary = o.Analysis.Summary
			r.Sentiment = o.Analysis.Sentiment.String()
		}
		if o.Err != nil {
			r.Error = o.Err.Error()
		}
		out[i] = r
	}
	return out
}
