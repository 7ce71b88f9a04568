package httpclient

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultMaxHeaderBytes = 16 * 1024 * 20
	defaultIdleConns      = 64
)

// Response is the subset of a response the fetch layer relies on.
type Response interface {
	StatusCode() int
	Body() []byte
	Header() http.Header
}

// Client performs GET requests with caller-supplied headers.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
}

// Options tunes the underlying transport.
type Options struct {
	MaxHeaderBytes int64
	RetryCount     int
	UserAgent      string
}

type restyClient struct {
	rc *resty.Client
}

// NewRestyClient builds a Client backed by resty with a keep-alive transport.
// Redirects are followed; the response body is never truncated.
func NewRestyClient(timeout time.Duration, opts ...Options) Client {
	return &restyClient{rc: NewResty(timeout, opts...)}
}

// NewResty returns a configured *resty.Client for components that need the
// full request builder (JSON APIs, webhooks).
func NewResty(timeout time.Duration, opts ...Options) *resty.Client {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.MaxHeaderBytes <= 0 {
		o.MaxHeaderBytes = defaultMaxHeaderBytes
	}

	rc := resty.New().
		SetTimeout(timeout).
		SetTransport(newTransport(o.MaxHeaderBytes)).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	if o.RetryCount > 0 {
		rc.SetRetryCount(o.RetryCount).SetRetryWaitTime(500 * time.Millisecond)
	}
	if o.UserAgent != "" {
		rc.SetHeader("User-Agent", o.UserAgent)
	}
	return rc
}

func newTransport(maxHeaderBytes int64) *http.Transport {
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Transport{
		Proxy:                  http.ProxyFromEnvironment,
		DialContext:            dialer.DialContext,
		ForceAttemptHTTP2:      true,
		MaxIdleConns:           defaultIdleConns,
		MaxIdleConnsPerHost:    8,
		IdleConnTimeout:        90 * time.Second,
		TLSHandshakeTimeout:    10 * time.Second,
		ExpectContinueTimeout:  1 * time.Second,
		MaxResponseHeaderBytes: maxHeaderBytes,
	}
}

// Get issues a GET request. Non-2xx statuses are returned as responses, not
// errors; callers decide what is acceptable.
func (c *restyClient) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	resp, err := c.rc.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	return resp, nil
}
