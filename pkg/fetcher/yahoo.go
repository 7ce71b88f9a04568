package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/Adda-Baaj/bazaar-khobor/pkg/httpclient"
)

const (
	StrategyYahooAPI = "yahoo-api"

	yahooHost             = "finance.yahoo.com"
	yahooContentPath      = "/_finance_doubledown/api/resource/content.article;caasId="
	yahooMinParagraphRune = 20
)

var yahooIDPattern = regexp.MustCompile(`/([^/]+)\.html`)

type yahooContent struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	Summary string `json:"summary"`
	PubTime int64  `json:"pubtime"`
}

type yahooStrategy struct {
	client    httpclient.Client
	base      string
	userAgent string
}

// NewYahooAPIStrategy reads Yahoo Finance articles through the site's content
// API and renders the payload as a minimal page in Yahoo's own markup, so the
// extractor's Yahoo rules apply unchanged.
func NewYahooAPIStrategy(client httpclient.Client, base, userAgent string) Strategy {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = "https://" + yahooHost
	}
	return &yahooStrategy{client: client, base: base, userAgent: userAgent}
}

func (s *yahooStrategy) Name() string { return StrategyYahooAPI }

func (s *yahooStrategy) Applies(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == yahooHost || strings.HasSuffix(host, "."+yahooHost)
}

// ArticleID extracts the content id from a Yahoo article URL.
func ArticleID(raw string) (string, bool) {
	m := yahooIDPattern.FindStringSubmatch(raw)
	if len(m) < 2 || m[1] == "" {
		return "", false
	}
	return m[1], true
}

func (s *yahooStrategy) Attempt(ctx context.Context, raw string) (Page, error) {
	id, ok := ArticleID(raw)
	if !ok {
		return Page{}, errors.New("no article id in url")
	}

	resp, err := s.client.Get(ctx, s.base+yahooContentPath+id, map[string]string{
		"User-Agent": s.userAgent,
		"Accept":     "application/json",
	})
	if err != nil {
		return Page{}, err
	}
	if resp.StatusCode() != http.StatusOK {
		return Page{}, fmt.Errorf("content api status %d", resp.StatusCode())
	}

	var data yahooContent
	if err := json.Unmarshal(resp.Body(), &data); err != nil {
		return Page{}, fmt.Errorf("decode content api: %w", err)
	}
	if strings.TrimSpace(data.Title) == "" {
		return Page{}, errors.New("content api returned no title")
	}

	paragraphs, err := yahooParagraphs(data)
	if err != nil {
		return Page{}, err
	}
	if len(paragraphs) == 0 {
		return Page{}, errors.New("content api returned no body")
	}

	return Page{
		URL:        raw,
		HTML:       renderYahooPage(data, paragraphs),
		StatusCode: resp.StatusCode(),
	}, nil
}

func yahooParagraphs(data yahooContent) ([]string, error) {
	if strings.TrimSpace(data.Body) == "" {
		if summary := strings.TrimSpace(data.Summary); summary != "" {
			return []string{summary}, nil
		}
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(data.Body))
	if err != nil {
		return nil, fmt.Errorf("parse content body: %w", err)
	}
	var out []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := strings.TrimSpace(p.Text())
		if utf8.RuneCountInString(text) > yahooMinParagraphRune {
			out = append(out, text)
		}
	})
	return out, nil
}

func renderYahooPage(data yahooContent, paragraphs []string) []byte {
	var b strings.Builder
	b.WriteString("<html><head><title>")
	b.WriteString(html.EscapeString(strings.TrimSpace(data.Title)))
	b.WriteString("</title>")
	if data.PubTime > 0 {
		ts := time.Unix(data.PubTime, 0).UTC().Format(time.RFC3339)
		b.WriteString(`<meta property="article:published_time" content="` + ts + `">`)
	}
	b.WriteString(`</head><body><div class="caas-body">`)
	for _, p := range paragraphs {
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(p))
		b.WriteString("</p>")
	}
	b.WriteString("</div></body></html>")
	return []byte(b.String())
}
