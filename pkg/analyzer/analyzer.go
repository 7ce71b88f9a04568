package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Adda-Baaj/bazaar-khobor/internal/config"
	"github.com/Adda-Baaj/bazaar-khobor/internal/domain"
	"github.com/Adda-Baaj/bazaar-khobor/internal/logger"
)

// Supported providers.
const (
	ProviderOpenAI    = "openai"
	ProviderXAI       = "xai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// EmptyContentSummary is returned, without a model call, for empty input.
const EmptyContentSummary = "unable to fetch news content"

var (
	ErrNoAPIKey             = errors.New("analyzer api key is not set")
	ErrUnsupportedProvider  = errors.New("unsupported analyzer provider")
	ErrEmptyCompletion      = errors.New("model returned an empty completion")
	defaultMaxContentLength = 3000
)

// Analyzer classifies article text for a stock and identifies the stock an
// article is about.
type Analyzer interface {
	Analyze(ctx context.Context, text string, stock domain.StockIdentity) (domain.AnalysisResult, error)
	// ExtractStockInfo is best-effort and returns MarketStock when it cannot
	// tell.
	ExtractStockInfo(ctx context.Context, text, title string) domain.StockIdentity
}

// Request is a single chat-style completion.
type Request struct {
	System      string
	User        string
	JSON        bool
	Temperature float64
	MaxTokens   int
}

// Completer is a model backend.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Options are the knobs shared by every backend.
type Options struct {
	Temperature      float64
	MaxTokens        int
	MaxContentLength int
	DefaultSentiment domain.Sentiment
	Timeout          time.Duration
}

type llmAnalyzer struct {
	backend Completer
	opts    Options
	log     logger.Logger
}

// New wraps a backend with prompt construction and response parsing.
func New(backend Completer, opts Options, log logger.Logger) Analyzer {
	if opts.MaxContentLength <= 0 {
		opts.MaxContentLength = defaultMaxContentLength
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 5000
	}
	return &llmAnalyzer{backend: backend, opts: opts, log: logger.Ensure(log)}
}

// FromConfig selects and builds the backend named by cfg.Provider.
func FromConfig(cfg config.AnalyzerConfig, log logger.Logger) (Analyzer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w for provider %q", ErrNoAPIKey, cfg.Provider)
	}

	var backend Completer
	switch cfg.Provider {
	case ProviderOpenAI, ProviderXAI:
		backend = NewOpenAICompleter(cfg.Provider, cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Timeout)
	case ProviderAnthropic:
		backend = NewAnthropicCompleter(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Timeout)
	case ProviderGemini:
		backend = NewGeminiCompleter(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Timeout)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}

	def, ok := domain.ParseSentiment(cfg.DefaultSentiment)
	if !ok {
		def = domain.SentimentNeutral
	}

	return New(backend, Options{
		Temperature:      cfg.Temperature,
		MaxTokens:        cfg.MaxTokens,
		MaxContentLength: cfg.MaxContentLength,
		DefaultSentiment: def,
		Timeout:          cfg.Timeout,
	}, log), nil
}

func (a *llmAnalyzer) Analyze(ctx context.Context, text string, stock domain.StockIdentity) (domain.AnalysisResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.AnalysisResult{Summary: EmptyContentSummary, Sentiment: domain.SentimentNeutral}, nil
	}
	stock = stock.Normalize()

	reply, err := a.complete(ctx, Request{
		System:      analysisSystemPrompt,
		User:        analysisPrompt(stock.Name, stock.Symbol, truncate(text, a.opts.MaxContentLength)),
		Temperature: a.opts.Temperature,
		MaxTokens:   a.opts.MaxTokens,
	})
	if err != nil {
		return domain.AnalysisResult{}, err
	}

	res := ParseAnalysis(reply, a.opts.DefaultSentiment)
	a.log.DebugObj("analysis parsed", "analysis_parsed", map[string]any{
		"provider":  a.backend.Name(),
		"symbol":    stock.Symbol,
		"sentiment": res.Sentiment.String(),
	})
	return res, nil
}

func (a *llmAnalyzer) ExtractStockInfo(ctx context.Context, text, title string) domain.StockIdentity {
	text = strings.TrimSpace(text)
	if text == "" && strings.TrimSpace(title) == "" {
		return domain.MarketStock
	}

	reply, err := a.complete(ctx, Request{
		System:      stockInfoSystemPrompt,
		User:        stockInfoPrompt(title, truncate(text, a.opts.MaxContentLength)),
		JSON:        true,
		Temperature: a.opts.Temperature,
		MaxTokens:   a.opts.MaxTokens,
	})
	if err != nil {
		a.log.WarnObj("stock extraction failed", "stock_extract_failed", map[string]any{
			"provider": a.backend.Name(),
			"error":    err.Error(),
		})
		return domain.MarketStock
	}
	return parseStockInfo(reply)
}

func (a *llmAnalyzer) complete(ctx context.Context, req Request) (string, error) {
	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := a.backend.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", a.backend.Name(), err)
	}
	if strings.TrimSpace(reply) == "" {
		return "", fmt.Errorf("%s completion: %w", a.backend.Name(), ErrEmptyCompletion)
	}
	a.log.DebugObj("model replied", "model_reply", map[string]any{
		"provider":    a.backend.Name(),
		"chars":       len(reply),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return reply, nil
}

// truncate cuts s to max runes, marking the cut with an ellipsis.
func truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
