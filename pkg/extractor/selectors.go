package extractor

// Selector tables drive extraction; order matters in every list.

var dateSelectors = []string{
	"time",
	"[datetime]",
	"[pubdate]",
	`meta[property="article:published_time"]`,
	".date",
	".time",
	".timestamp",
	".article-date",
	".publish-date",
}

var containerSelectors = []string{
	"article",
	".article-content",
	".article-body",
	".story-body",
	".story-content",
	".news-content",
	".post-content",
	".entry-content",
	".content",
	"main",
}

// chromeSelectors marks page furniture whose paragraphs are never content.
const chromeSelectors = "nav, header, footer, .ad, .advertisement"

const genericMinParagraphRunes = 30

// siteRule overrides generic extraction for a publisher with known markup.
type siteRule struct {
	host             string
	description      string
	paragraphs       string
	minParagraphRune int
}

var siteRules = []siteRule{
	{
		host:             "finance.yahoo.com",
		description:      ".caas-description",
		paragraphs:       ".caas-body p",
		minParagraphRune: 20,
	},
}
