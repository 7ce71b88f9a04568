package domain

import (
	"strings"
	"time"
)

// Domain contains core models shared by the fetch, analysis and storage layers.

const (
	// FailedTitle and FailedContent are the values carried by an Article whose
	// page could not be retrieved. They are part of the API surface and are
	// echoed verbatim to callers.
	FailedTitle   = "unable to fetch title"
	FailedContent = "unable to fetch content"

	marketSymbol = "Market"
)

// StockIdentity names the ticker an analysis is attributed to.
type StockIdentity struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// MarketStock is used when an article cannot be tied to a single company.
var MarketStock = StockIdentity{Symbol: marketSymbol, Name: marketSymbol}

// IsUnknown reports whether the identity is empty or the market-wide sentinel.
func (s StockIdentity) IsUnknown() bool {
	sym := strings.TrimSpace(s.Symbol)
	return sym == "" || strings.EqualFold(sym, marketSymbol)
}

// Normalize trims both fields and falls back to the symbol when no name is set.
func (s StockIdentity) Normalize() StockIdentity {
	s.Symbol = strings.TrimSpace(s.Symbol)
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		s.Name = s.Symbol
	}
	return s
}

// Article is the normalized result of fetching and extracting a page.
type Article struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Content     string    `json:"content"`
	PublishDate time.Time `json:"publishDate"`
	Source      string    `json:"source"`
	Failed      bool      `json:"-"`
	FailReason  string    `json:"-"`
}

// FailedArticle builds the placeholder returned when no strategy yields a page.
func FailedArticle(url, reason string) Article {
	return Article{
		Title:       FailedTitle,
		URL:         url,
		Content:     FailedContent,
		PublishDate: time.Now(),
		Failed:      true,
		FailReason:  reason,
	}
}

// IsFailed reports whether the article stands in for an unretrievable page.
func (a Article) IsFailed() bool {
	return a.Failed || a.Title == FailedTitle
}

// AnalysisResult is what an Analyzer returns for a piece of article text.
type AnalysisResult struct {
	Summary   string    `json:"summary"`
	Sentiment Sentiment `json:"sentiment"`
}

// Record is the persisted form of a completed analysis, one per URL.
type Record struct {
	Title         string    `json:"title"`
	Symbol        string    `json:"symbol"`
	Company       string    `json:"company"`
	URL           string    `json:"url"`
	PublishDate   time.Time `json:"publishDate"`
	GeneratedDate time.Time `json:"generatedDate"`
	Sentiment     Sentiment `json:"sentiment"`
	Summary       string    `json:"summary"`
}

// NewsLink is a candidate article URL discovered by a provider.
type NewsLink struct {
	ID          string    `json:"id"`
	ProviderID  string    `json:"provider_id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	Symbols     []string  `json:"symbols,omitempty"`
}
