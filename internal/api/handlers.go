package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Adda-Baaj/bazaar-khobor/internal/crawler"
	"github.com/Adda-Baaj/bazaar-khobor/internal/domain"
	"github.com/Adda-Baaj/bazaar-khobor/internal/logger"
	"github.com/Adda-Baaj/bazaar-khobor/pkg/pipeline"
)

const previewRunes = 300

// Orchestrator is the analysis surface the handlers drive.
type Orchestrator interface {
	AnalyzeURL(ctx context.Context, url string, stock domain.StockIdentity) (pipeline.Outcome, error)
	ForceAnalyzeURL(ctx context.Context, url string, stock domain.StockIdentity) (pipeline.Outcome, error)
	ExtractStockInfo(ctx context.Context, url string) (pipeline.StockOutcome, error)
	FetchArticle(ctx context.Context, url string) domain.Article
	Batch(ctx context.Context, items []pipeline.Item, progress pipeline.Progress) []pipeline.Outcome
}

// Harvester runs one discovery pass.
type Harvester interface {
	Run(ctx context.Context) crawler.Report
}

// Handler serves the article endpoints. Background work (batches, harvests)
// runs under base so it outlives the request and stops on shutdown.
type Handler struct {
	orch       Orchestrator
	harvester  Harvester
	jobs       *Jobs
	base       context.Context
	harvesting atomic.Bool
	log        logger.Logger
}

func NewHandler(base context.Context, orch Orchestrator, harvester Harvester, log logger.Logger) *Handler {
	if base == nil {
		base = context.Background()
	}
	return &Handler{
		orch:      orch,
		harvester: harvester,
		jobs:      NewJobs(),
		base:      base,
		log:       logger.Ensure(log),
	}
}

type urlRequest struct {
	URL string `json:"url"`
}

type analyzeRequest struct {
	URL   string               `json:"url"`
	Stock domain.StockIdentity `json:"stock"`
	Force bool                 `json:"force"`
}

type batchRequest struct {
	Items []pipeline.Item `json:"items"`
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msg})
}

func skippedJSON(reason string) gin.H {
	return gin.H{"success": true, "skipped": true, "reason": reason}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) Extract(c *gin.Context) {
	var req urlRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		badRequest(c, "url is required")
		return
	}

	out, err := h.orch.ExtractStockInfo(c.Request.Context(), req.URL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	if out.Skipped {
		c.JSON(http.StatusOK, skippedJSON(out.Reason))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"title":   out.Title,
		"symbol":  out.Stock.Symbol,
		"company": out.Stock.Name,
	})
}

func (h *Handler) Analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		badRequest(c, "url is required")
		return
	}

	run := h.orch.AnalyzeURL
	if req.Force {
		run = h.orch.ForceAnalyzeURL
	}
	out, err := run(c.Request.Context(), req.URL, req.Stock)
	if err != nil {
		h.log.ErrorObj("analyze request failed", "api_analyze_error", map[string]any{
			"url":   req.URL,
			"error": err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	switch {
	case out.Skipped:
		c.JSON(http.StatusOK, skippedJSON(out.Reason))
	case out.AnalysisError:
		c.JSON(http.StatusBadGateway, gin.H{
			"success":       false,
			"analysisError": true,
			"error":         out.Err.Error(),
			"title":         out.Article.Title,
			"url":           out.URL,
		})
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":        true,
			"title":          out.Article.Title,
			"url":            out.URL,
			"publishDate":    out.Article.PublishDate.Format(time.RFC3339),
			"summary":        out.Analysis.Summary,
			"sentiment":      out.Analysis.Sentiment,
			"sentimentLabel": out.Analysis.Sentiment.Label(),
			"symbol":         out.Stock.Symbol,
			"company":        out.Stock.Name,
		})
	}
}

func (h *Handler) Content(c *gin.Context) {
	var req urlRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		badRequest(c, "url is required")
		return
	}

	art := h.orch.FetchArticle(c.Request.Context(), req.URL)
	runes := []rune(art.Content)
	preview := art.Content
	if len(runes) > previewRunes {
		preview = string(runes[:previewRunes]) + "..."
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        !art.IsFailed(),
		"title":          art.Title,
		"url":            art.URL,
		"source":         art.Source,
		"publishDate":    art.PublishDate.Format(time.RFC3339),
		"contentPreview": preview,
		"contentLength":  len(runes),
		"failed":         art.IsFailed(),
		"failReason":     art.FailReason,
	})
}

func (h *Handler) StartBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid batch body")
		return
	}
	items := make([]pipeline.Item, 0, len(req.Items))
	for _, it := range req.Items {
		it.URL = strings.TrimSpace(it.URL)
		if it.URL == "" {
			badRequest(c, "every item needs a url")
			return
		}
		it.Delay = 0
		items = append(items, it)
	}
	if len(items) == 0 {
		badRequest(c, "items is empty")
		return
	}

	job := h.jobs.Start(h.base, h.orch, items)
	h.log.InfoObj("batch started", "api_batch_start", map[string]any{
		"job_id": job.ID,
		"items":  len(items),
	})
	c.JSON(http.StatusAccepted, gin.H{"success": true, "id": job.ID, "total": len(items)})
}

func (h *Handler) GetBatch(c *gin.Context) {
	snap, ok := h.jobs.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "batch not found"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) Harvest(c *gin.Context) {
	if h.harvester == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "no providers configured"})
		return
	}
	if !h.harvesting.CompareAndSwap(false, true) {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "harvest already running"})
		return
	}

	go func() {
		defer h.harvesting.Store(false)
		report := h.harvester.Run(h.base)
		if errors.Is(h.base.Err(), context.Canceled) {
			h.log.WarnObj("harvest interrupted by shutdown", "api_harvest_cancelled", nil)
			return
		}
		h.log.InfoObj("harvest finished", "api_harvest_done", map[string]any{
			"queued": report.Queued,
			"errors": len(report.Errors),
		})
	}()
	c.JSON(http.StatusAccepted, gin.H{"success": true, "status": "started"})
}
