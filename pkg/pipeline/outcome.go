package pipeline

import (
	"time"

	"github.com/Adda-Baaj/bazaar-khobor/internal/domain"
)

// Skip reasons.
const (
	ReasonArticleExists = "article_exists"
	ReasonTitleNotFound = "title_not_found"
	ReasonInProgress    = "analysis_in_progress"
	ReasonCancelled     = "cancelled"
)

// Status summarizes an Outcome for display.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Outcome is the result of analyzing one URL. Exactly one of Skipped,
// Analysis or Err describes how the run ended.
type Outcome struct {
	URL      string
	Skipped  bool
	Reason   string
	Stock    domain.StockIdentity
	Article  *domain.Article
	Analysis *domain.AnalysisResult
	Err      error
	// AnalysisError marks Err as coming from the model rather than storage.
	AnalysisError bool
}

func (o Outcome) Status() Status {
	switch {
	case o.Err != nil:
		return StatusFailed
	case o.Skipped:
		return StatusSkipped
	case o.Analysis != nil:
		return StatusDone
	default:
		return StatusPending
	}
}

func skipped(url, reason string) Outcome {
	return Outcome{URL: url, Skipped: true, Reason: reason}
}

// StockOutcome is the result of identifying the stock an article covers.
type StockOutcome struct {
	URL     string
	Title   string
	Stock   domain.StockIdentity
	Skipped bool
	Reason  string
}

// Item is one entry of a batch.
type Item struct {
	URL   string               `json:"url"`
	Stock domain.StockIdentity `json:"stock"`
	// Delay is the minimum pause before this item when it is larger than the
	// orchestrator's default.
	Delay time.Duration `json:"-"`
}
