package extractor

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/Adda-Baaj/bazaar-khobor/internal/domain"
	"github.com/Adda-Baaj/bazaar-khobor/pkg/fetcher"
)

var fixedNow = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestExtractor() *Extractor {
	return New(Options{Now: func() time.Time { return fixedNow }})
}

// 35 and 25 runes respectively.
const (
	longPara  = "Revenue grew strongly in the period"
	shortPara = "Subscribe to our letters!"
)

func TestTitleFallsBackToHeading(t *testing.T) {
	e := newTestExtractor()

	art, err := e.Extract([]byte(`<html><head><title>  Fed holds rates  </title></head><body><h1>Other</h1></body></html>`), "https://news.example.com/a")
	assert.Equal(t, nil, err)
	assert.Equal(t, "Fed holds rates", art.Title)

	art, err = e.Extract([]byte(`<html><body><h1> Oil slides </h1></body></html>`), "https://news.example.com/a")
	assert.Equal(t, nil, err)
	assert.Equal(t, "Oil slides", art.Title)

	art, err = e.Extract([]byte(`<html><body><p>no headings here</p></body></html>`), "https://news.example.com/a")
	assert.Equal(t, nil, err)
	assert.Equal(t, "", art.Title)
}

func TestPublishDateSelectors(t *testing.T) {
	e := newTestExtractor()

	html := `<html><head><title>t</title>
		<meta property="article:published_time" content="2024-05-01T10:00:00Z">
		</head><body><time datetime="2024-04-30T08:15:00Z">Apr 30</time></body></html>`
	art, _ := e.Extract([]byte(html), "https://x.example.com/")
	assert.Equal(t, time.Date(2024, 4, 30, 8, 15, 0, 0, time.UTC), art.PublishDate.UTC())

	html = `<html><head><title>t</title>
		<meta property="article:published_time" content="2024-05-01T10:00:00Z">
		</head><body><span class="date">yesterday-ish</span></body></html>`
	art, _ = e.Extract([]byte(html), "https://x.example.com/")
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), art.PublishDate.UTC())

	art, _ = e.Extract([]byte(`<html><head><title>t</title></head><body></body></html>`), "https://x.example.com/")
	assert.Equal(t, fixedNow, art.PublishDate)
}

func TestSiteRuleWinsOverGenericContainer(t *testing.T) {
	html := `<html><head><title>Yahoo story</title></head><body>
		<article><p>This generic article paragraph is definitely long enough.</p></article>
		<div class="caas-description">Lead paragraph from the desk.</div>
		<div class="caas-body">
			<p>tiny bit</p>
			<p>Twenty one characters</p>
			<p>Analysts lifted their price targets after the call.</p>
		</div></body></html>`

	art, err := newTestExtractor().Extract([]byte(html), "https://finance.yahoo.com/news/story-1.html")
	assert.Equal(t, nil, err)
	assert.Equal(t, "Lead paragraph from the desk.\n\nTwenty one characters\n\nAnalysts lifted their price targets after the call.", art.Content)
	assert.Equal(t, "finance.yahoo.com", art.Source)
}

func TestSiteRuleFallsThroughWhenMarkupMissing(t *testing.T) {
	html := `<html><head><title>Yahoo video</title></head><body>
		<article><p>This generic article paragraph is definitely long enough.</p></article>
		</body></html>`

	art, _ := newTestExtractor().Extract([]byte(html), "https://finance.yahoo.com/video/clip-2.html")
	assert.Equal(t, "This generic article paragraph is definitely long enough.", art.Content)
}

func TestGenericParagraphFiltering(t *testing.T) {
	html := `<html><head><title>t</title></head><body>
		<nav><p>` + longPara + ` in nav</p></nav>
		<article>
			<header><p>` + longPara + ` in header</p></header>
			<p>` + shortPara + `</p>
			<p>` + longPara + `</p>
			<div class="ad"><p>` + longPara + ` sponsored</p></div>
			<footer><p>` + longPara + ` in footer</p></footer>
		</article></body></html>`

	art, err := newTestExtractor().Extract([]byte(html), "https://news.example.com/q")
	assert.Equal(t, nil, err)
	assert.Equal(t, longPara, art.Content)
}

func TestFirstMatchingContainerWins(t *testing.T) {
	html := `<html><head><title>t</title></head><body>
		<div class="story-body"><p>Story body paragraph that is clearly longer than thirty.</p></div>
		<main><p>Main paragraph that is also clearly longer than thirty runes.</p></main>
		</body></html>`

	art, _ := newTestExtractor().Extract([]byte(html), "https://news.example.com/q")
	assert.Equal(t, "Story body paragraph that is clearly longer than thirty.", art.Content)
}

func TestBodyParagraphsWhenNoContainer(t *testing.T) {
	html := `<html><head><title>t</title></head><body>
		<div><p>First standalone paragraph with plenty of words.</p></div>
		<div><p>Second standalone paragraph with plenty of words.</p></div>
		</body></html>`

	art, _ := newTestExtractor().Extract([]byte(html), "https://news.example.com/q")
	assert.Equal(t, "First standalone paragraph with plenty of words.\n\nSecond standalone paragraph with plenty of words.", art.Content)
}

func TestRawBodyTextFallback(t *testing.T) {
	html := `<html><head><title>t</title></head><body>
		<div>Markets   closed
		higher</div><span>today</span></body></html>`

	art, _ := newTestExtractor().Extract([]byte(html), "https://news.example.com/q")
	assert.Equal(t, "Markets closed higher today", art.Content)
}

func TestRawBodyTextSkipsScriptsAndSeparatesInlineElements(t *testing.T) {
	html := `<html><head><title>t</title></head><body>
		<script>var tracking = 1;</script><b>Stocks</b><i>fell</i><style>b{}</style><em>sharply</em></body></html>`

	art, _ := newTestExtractor().Extract([]byte(html), "https://news.example.com/q")
	assert.Equal(t, "Stocks fell sharply", art.Content)
}

func TestReadabilityPassWhenEnabled(t *testing.T) {
	body := strings.Repeat("Chip stocks extended their rally as investors bet on demand. ", 8)
	html := `<html><head><title>Chips rally</title></head><body>
		<div id="story"><div>` + body + `</div><div>` + body + `</div></div>
		</body></html>`

	art, err := New(Options{Readability: true}).Extract([]byte(html), "https://news.example.com/chips")
	assert.Equal(t, nil, err)
	assert.Equal(t, true, strings.Contains(art.Content, "Chip stocks extended their rally"))
}

func TestBuildSubstitutesFailurePlaceholder(t *testing.T) {
	e := newTestExtractor()

	failed := e.Build(fetcher.Result{URL: "https://a.example.com", Err: fetcher.ErrExhausted})
	assert.Equal(t, domain.FailedTitle, failed.Title)
	assert.Equal(t, domain.FailedContent, failed.Content)
	assert.Equal(t, ReasonFetchFailed, failed.FailReason)

	untitled := e.Build(fetcher.Result{
		URL:  "https://a.example.com",
		Page: &fetcher.Page{HTML: []byte(`<html><body><p>nothing to call it</p></body></html>`)},
	})
	assert.Equal(t, true, untitled.IsFailed())
	assert.Equal(t, ReasonNoTitle, untitled.FailReason)

	ok := e.Build(fetcher.Result{
		URL:  "https://a.example.com/x",
		Page: &fetcher.Page{HTML: []byte(`<html><head><title>Good</title></head><body></body></html>`)},
	})
	assert.Equal(t, false, ok.IsFailed())
	assert.Equal(t, "Good", ok.Title)
}

func TestExtractRejectsEmptyDocument(t *testing.T) {
	_, err := newTestExtractor().Extract([]byte("   "), "https://a.example.com")
	assert.NotEqual(t, nil, err)
	assert.Equal(t, false, errors.Is(err, fetcher.ErrExhausted))
}
