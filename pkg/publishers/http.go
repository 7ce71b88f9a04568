package publishers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Adda-Baaj/bazaar-khobor/pkg/httpclient"
)

// httpPublisher sends each event as a JSON body to a webhook.
type httpPublisher struct {
	id      string
	url     string
	method  string
	headers map[string]string
	rc      *resty.Client
	log     Logger
}

func newHTTPPublisher(_ context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.HTTP == nil || cfg.HTTP.URL == "" {
		return nil, fmt.Errorf("publisher %q missing http url", cfg.ID)
	}
	timeout := time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second
	return &httpPublisher{
		id:      cfg.ID,
		url:     cfg.HTTP.URL,
		method:  cfg.HTTP.Method,
		headers: cfg.HTTP.Headers,
		rc:      httpclient.NewResty(timeout, httpclient.Options{RetryCount: 1}),
		log:     ensureLogger(log),
	}, nil
}

func (p *httpPublisher) ID() string   { return p.id }
func (p *httpPublisher) Type() string { return TypeHTTP }

func (p *httpPublisher) Publish(ctx context.Context, evt Event) error {
	resp, err := p.rc.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeaders(p.headers).
		SetBody(evt).
		Execute(p.method, p.url)
	if err != nil {
		return fmt.Errorf("http publish: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("http publish: status %d", resp.StatusCode())
	}
	p.log.DebugObj("http publisher delivered event", "publisher_http_delivery", map[string]any{
		"status": resp.StatusCode(),
		"url":    evt.URL,
	})
	return nil
}
