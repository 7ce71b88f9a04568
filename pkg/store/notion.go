package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Adda-Baaj/bazaar-khobor/internal/domain"
	"github.com/Adda-Baaj/bazaar-khobor/internal/logger"
	"github.com/Adda-Baaj/bazaar-khobor/pkg/httpclient"
)

// Database property names.
const (
	propSymbol        = "Symbol"
	propArticleURL    = "ArticleURL"
	propArticleDate   = "ArticleDate"
	propGeneratedDate = "GeneratedDate"
	propSentiment     = "Sentiment"
	propSummary       = "Summary"

	notionDefaultBase    = "https://api.notion.com"
	notionDefaultVersion = "2022-06-28"
	notionRichTextLimit  = 2000
)

// NotionOptions configures the Notion database store.
type NotionOptions struct {
	Token      string
	DatabaseID string
	BaseURL    string
	Version    string
	Zone       *time.Location
	Timeout    time.Duration
}

// Notion stores one database page per article URL.
type Notion struct {
	rc         *resty.Client
	databaseID string
	zone       *time.Location
	log        logger.Logger
}

type notionQueryResponse struct {
	Results []struct {
		ID string `json:"id"`
	} `json:"results"`
}

type notionError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewNotion validates opts and builds the store.
func NewNotion(opts NotionOptions, log logger.Logger) (*Notion, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, errors.New("notion token is empty")
	}
	if strings.TrimSpace(opts.DatabaseID) == "" {
		return nil, errors.New("notion database id is empty")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = notionDefaultBase
	}
	if opts.Version == "" {
		opts.Version = notionDefaultVersion
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Zone == nil {
		opts.Zone = time.UTC
	}

	rc := httpclient.NewResty(opts.Timeout, httpclient.Options{RetryCount: 2}).
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetAuthToken(opts.Token).
		SetHeader("Notion-Version", opts.Version).
		SetHeader("Content-Type", "application/json")

	return &Notion{
		rc:         rc,
		databaseID: opts.DatabaseID,
		zone:       opts.Zone,
		log:        logger.Ensure(log),
	}, nil
}

func (n *Notion) Exists(ctx context.Context, url string) (bool, error) {
	id, err := n.findPage(ctx, url)
	if err != nil {
		return false, err
	}
	return id != "", nil
}

func (n *Notion) Upsert(ctx context.Context, rec domain.Record) error {
	if err := validate(rec); err != nil {
		return err
	}

	pageID, err := n.findPage(ctx, rec.URL)
	if err != nil {
		return err
	}

	if pageID != "" {
		err = n.send(ctx, resty.MethodPatch, "/v1/pages/"+pageID, map[string]any{
			"properties": n.refreshProperties(rec),
		})
	} else {
		props := n.refreshProperties(rec)
		props[propSymbol] = map[string]any{"title": richText(rec.Symbol)}
		props[propArticleURL] = map[string]any{"url": rec.URL}
		err = n.send(ctx, resty.MethodPost, "/v1/pages", map[string]any{
			"parent":     map[string]any{"database_id": n.databaseID},
			"properties": props,
		})
	}
	if err != nil {
		return err
	}

	n.log.DebugObj("record stored", "store_upsert", map[string]any{
		"driver":  DriverNotion,
		"url":     rec.URL,
		"updated": pageID != "",
	})
	return nil
}

func (n *Notion) Close() error { return nil }

// refreshProperties are the fields rewritten on every analysis.
func (n *Notion) refreshProperties(rec domain.Record) map[string]any {
	return map[string]any{
		propArticleDate:   map[string]any{"date": map[string]any{"start": FormatDate(rec.PublishDate, n.zone)}},
		propGeneratedDate: map[string]any{"date": map[string]any{"start": FormatDate(rec.GeneratedDate, n.zone)}},
		propSentiment:     map[string]any{"select": map[string]any{"name": rec.Sentiment.Label()}},
		propSummary:       map[string]any{"rich_text": richText(rec.Summary)},
	}
}

func (n *Notion) findPage(ctx context.Context, url string) (string, error) {
	var out notionQueryResponse
	var apiErr notionError
	resp, err := n.rc.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"filter": map[string]any{
				"property": propArticleURL,
				"url":      map[string]any{"equals": url},
			},
			"page_size": 1,
		}).
		SetResult(&out).
		SetError(&apiErr).
		ForceContentType("application/json").
		Post("/v1/databases/" + n.databaseID + "/query")
	if err != nil {
		return "", fmt.Errorf("notion query: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("notion query status %d: %s", resp.StatusCode(), apiErr.Message)
	}
	if len(out.Results) == 0 {
		return "", nil
	}
	return out.Results[0].ID, nil
}

func (n *Notion) send(ctx context.Context, method, path string, body any) error {
	var apiErr notionError
	resp, err := n.rc.R().
		SetContext(ctx).
		SetBody(body).
		SetError(&apiErr).
		ForceContentType("application/json").
		Execute(method, path)
	if err != nil {
		return fmt.Errorf("notion %s %s: %w", strings.ToLower(method), path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("notion %s %s status %d: %s", strings.ToLower(method), path, resp.StatusCode(), apiErr.Message)
	}
	return nil
}

func richText(s string) []map[string]any {
	r := []rune(s)
	if len(r) > notionRichTextLimit {
		s = string(r[:notionRichTextLimit])
	}
	return []map[string]any{{"text": map[string]any{"content": s}}}
}
