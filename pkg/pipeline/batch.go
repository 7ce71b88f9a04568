package pipeline

import (
	"context"
	"time"
)

// Progress receives a copy of the batch results after each item completes.
type Progress func(done int, results []Outcome)

// Batch analyzes items one at a time, in order. It always returns one Outcome
// per item; items not reached before ctx is done are skipped as cancelled.
func (o *Orchestrator) Batch(ctx context.Context, items []Item, progress Progress) []Outcome {
	results := make([]Outcome, len(items))
	for i, it := range items {
		results[i] = Outcome{URL: it.URL, Stock: it.Stock}
	}

	for i, it := range items {
		if ctx.Err() != nil || (i > 0 && !o.wait(ctx, it.Delay)) {
			o.cancelFrom(results, i)
			break
		}

		out, err := o.AnalyzeURL(ctx, it.URL, it.Stock)
		if err != nil {
			out.URL = it.URL
			out.Err = err
		}
		results[i] = out

		o.log.DebugObj("batch item finished", "batch_progress", map[string]any{
			"index":  i,
			"total":  len(items),
			"url":    it.URL,
			"status": string(out.Status()),
		})

		if progress != nil {
			snapshot := make([]Outcome, len(results))
			copy(snapshot, results)
			progress(i+1, snapshot)
		}
	}
	return results
}

func (o *Orchestrator) wait(ctx context.Context, floor time.Duration) bool {
	d := max(o.delay, floor)
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (o *Orchestrator) cancelFrom(results []Outcome, start int) {
	for i := start; i < len(results); i++ {
		results[i].Skipped = true
		results[i].Reason = ReasonCancelled
	}
	o.log.WarnObj("batch cancelled", "batch_cancelled", map[string]any{
		"remaining": len(results) - start,
	})
}
