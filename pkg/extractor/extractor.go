package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"

	"github.com/Adda-Baaj/bazaar-khobor/internal/domain"
	"github.com/Adda-Baaj/bazaar-khobor/pkg/fetcher"
)

// Reasons recorded on failed articles.
const (
	ReasonFetchFailed = "fetch_failed"
	ReasonNoTitle     = "title_not_found"
	ReasonParseFailed = "parse_failed"
)

// Options tunes extraction.
type Options struct {
	// Readability runs a readability pass before falling back to raw body text.
	Readability bool
	// Now supplies the publish date when the page carries none.
	Now func() time.Time
}

// Extractor turns raw HTML into an Article. It performs no I/O.
type Extractor struct {
	readability bool
	now         func() time.Time
}

// New builds an Extractor.
func New(opts Options) *Extractor {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Extractor{readability: opts.Readability, now: now}
}

// Build converts a fetch result into an Article, substituting the failure
// placeholder when the fetch failed or the page has no title.
func (e *Extractor) Build(res fetcher.Result) domain.Article {
	if !res.OK() {
		return domain.FailedArticle(res.URL, ReasonFetchFailed)
	}
	art, err := e.Extract(res.Page.HTML, res.URL)
	if err != nil {
		return domain.FailedArticle(res.URL, ReasonParseFailed)
	}
	if art.Title == "" {
		return domain.FailedArticle(res.URL, ReasonNoTitle)
	}
	return art
}

// Extract parses html fetched from pageURL.
func (e *Extractor) Extract(html []byte, pageURL string) (domain.Article, error) {
	if len(bytes.TrimSpace(html)) == 0 {
		return domain.Article{}, errors.New("empty document")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return domain.Article{}, fmt.Errorf("parse html: %w", err)
	}

	return domain.Article{
		Title:       extractTitle(doc),
		URL:         pageURL,
		Content:     e.extractContent(doc, html, pageURL),
		PublishDate: e.extractDate(doc),
		Source:      hostname(pageURL),
	}, nil
}

func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

func (e *Extractor) extractDate(doc *goquery.Document) time.Time {
	for _, sel := range dateSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		raw := dateCandidate(node)
		if raw == "" {
			continue
		}
		if t, err := dateparse.ParseAny(raw); err == nil {
			return t
		}
	}
	return e.now()
}

func dateCandidate(node *goquery.Selection) string {
	if v, ok := node.Attr("datetime"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if v, ok := node.Attr("content"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(node.Text())
}

func (e *Extractor) extractContent(doc *goquery.Document, html []byte, pageURL string) string {
	if rule, ok := ruleFor(pageURL); ok {
		if content := siteContent(doc, rule); content != "" {
			return content
		}
	}
	if content := genericContent(doc); content != "" {
		return content
	}
	if e.readability {
		if content := readableContent(html, pageURL); content != "" {
			return content
		}
	}
	return bodyText(doc.Find("body"))
}

// bodyText joins every text node under sel with a space, so text from
// adjacent elements does not run together. Script and style contents are
// skipped.
func bodyText(sel *goquery.Selection) string {
	var parts []string
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			switch goquery.NodeName(c) {
			case "#text":
				if t := strings.TrimSpace(c.Text()); t != "" {
					parts = append(parts, t)
				}
			case "script", "style", "noscript", "template":
			default:
				walk(c)
			}
		})
	}
	walk(sel)
	return collapseWhitespace(strings.Join(parts, " "))
}

func ruleFor(pageURL string) (siteRule, bool) {
	host := hostname(pageURL)
	for _, r := range siteRules {
		if host == r.host || strings.HasSuffix(host, "."+r.host) {
			return r, true
		}
	}
	return siteRule{}, false
}

func siteContent(doc *goquery.Document, rule siteRule) string {
	var parts []string
	if rule.description != "" {
		if desc := strings.TrimSpace(doc.Find(rule.description).First().Text()); desc != "" {
			parts = append(parts, desc)
		}
	}
	doc.Find(rule.paragraphs).Each(func(_ int, p *goquery.Selection) {
		text := strings.TrimSpace(p.Text())
		if utf8.RuneCountInString(text) > rule.minParagraphRune {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}

func genericContent(doc *goquery.Document) string {
	scope := doc.Find("body")
	for _, sel := range containerSelectors {
		if found := doc.Find(sel); found.Length() > 0 {
			scope = found
			break
		}
	}

	var parts []string
	scope.Find("p").Each(func(_ int, p *goquery.Selection) {
		if p.ParentsFiltered(chromeSelectors).Length() > 0 {
			return
		}
		text := strings.TrimSpace(p.Text())
		if utf8.RuneCountInString(text) > genericMinParagraphRunes {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}

func readableContent(html []byte, pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	art, err := readability.FromReader(bytes.NewReader(html), u)
	if err != nil {
		return ""
	}

	var parts []string
	for _, line := range strings.Split(art.TextContent, "\n") {
		if line = collapseWhitespace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, "\n\n")
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
