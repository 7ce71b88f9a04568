package analyzer

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Adda-Baaj/bazaar-khobor/internal/domain"
)

var (
	// RE2 has no lookahead, so the summary runs lazily up to the next impact
	// label or the end of input.
	summaryPattern = regexp.MustCompile(`(?is)(?:摘要|summary)[*]*\s*[：:][*]*\s*(.+?)(?:\n[\s*#-]*(?:影响|impact)[*]*\s*[：:]|\z)`)

	sentimentPattern = regexp.MustCompile(`(?i)[*]*(?:影响|impact)[*]*\s*[：:][*\s\[]*(好|中立|坏|正面|中性|负面|good|neutral|bad|positive|negative)`)

	symbolPattern  = regexp.MustCompile(`"symbol"\s*:\s*"([^"]*)"`)
	companyPattern = regexp.MustCompile(`"company"\s*:\s*"([^"]*)"`)
)

// Cue words for the keyword fallback. Chinese cues are matched as
// substrings, English cues as whole words.
var (
	positiveCuesZH = []string{"利好", "正面", "上涨", "增长", "乐观", "走高", "大涨"}
	negativeCuesZH = []string{"利空", "负面", "跌", "下滑", "下降", "亏损", "悲观", "不好", "不佳"}

	positiveCuesEN = wordSet(
		"positive", "bullish", "beat", "beats", "upgrade", "upgraded", "growth",
		"surge", "surged", "rally", "rallied", "outperform", "outperformed", "gain", "gains",
	)
	negativeCuesEN = wordSet(
		"negative", "bearish", "miss", "missed", "downgrade", "downgraded", "decline",
		"declined", "plunge", "plunged", "lawsuit", "underperform", "loss", "losses", "fell",
	)

	negatorsZH = []string{"不", "没", "未", "无"}
	negatorsEN = wordSet("not", "no", "never", "without", "isn't", "wasn't", "aren't", "didn't", "won't")

	wordPattern = regexp.MustCompile(`[a-z]+(?:'[a-z]+)?`)
)

// negationWindow is how many preceding English words can negate a cue.
const negationWindow = 2

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// ParseAnalysis splits a free-text model response into a summary and a
// sentiment. The labeled impact line wins; otherwise cue words are counted;
// otherwise fallback is used.
func ParseAnalysis(text string, fallback domain.Sentiment) domain.AnalysisResult {
	text = strings.TrimSpace(text)
	return domain.AnalysisResult{
		Summary:   extractSummary(text),
		Sentiment: extractSentiment(text, fallback),
	}
}

func extractSummary(text string) string {
	if m := summaryPattern.FindStringSubmatch(text); len(m) > 1 {
		if s := strings.TrimSpace(m[1]); s != "" {
			return s
		}
	}
	return text
}

func extractSentiment(text string, fallback domain.Sentiment) domain.Sentiment {
	if m := sentimentPattern.FindStringSubmatch(text); len(m) > 1 {
		if s, ok := domain.ParseSentiment(m[1]); ok {
			return s
		}
	}
	if s, ok := keywordSentiment(text); ok {
		return s
	}
	return fallback
}

// keywordSentiment scores cue words. A negated positive cue counts as
// negative; a negated negative cue is ignored.
func keywordSentiment(text string) (domain.Sentiment, bool) {
	lower := strings.ToLower(text)
	pos, neg := countZH(lower)
	p, n := countEN(lower)
	pos, neg = pos+p, neg+n
	switch {
	case pos > neg:
		return domain.SentimentGood, true
	case neg > pos:
		return domain.SentimentBad, true
	default:
		return domain.SentimentUnknown, false
	}
}

func countZH(text string) (pos, neg int) {
	negated := func(prefix string) bool {
		for _, n := range negatorsZH {
			if strings.HasSuffix(prefix, n) || strings.HasSuffix(prefix, n+"有") {
				return true
			}
		}
		return false
	}
	for _, cue := range positiveCuesZH {
		for _, idx := range occurrences(text, cue) {
			if negated(text[:idx]) {
				neg++
			} else {
				pos++
			}
		}
	}
	for _, cue := range negativeCuesZH {
		for _, idx := range occurrences(text, cue) {
			if cue == "不好" || cue == "不佳" || !negated(text[:idx]) {
				neg++
			}
		}
	}
	return pos, neg
}

func occurrences(text, sub string) []int {
	var out []int
	for off := 0; ; {
		i := strings.Index(text[off:], sub)
		if i < 0 {
			return out
		}
		out = append(out, off+i)
		off += i + len(sub)
	}
}

func countEN(text string) (pos, neg int) {
	words := wordPattern.FindAllString(text, -1)
	for i, w := range words {
		_, isPos := positiveCuesEN[w]
		_, isNeg := negativeCuesEN[w]
		if !isPos && !isNeg {
			continue
		}
		negated := false
		for j := max(0, i-negationWindow); j < i; j++ {
			if _, ok := negatorsEN[words[j]]; ok {
				negated = true
				break
			}
		}
		switch {
		case isPos && negated:
			neg++
		case isPos:
			pos++
		case !negated:
			neg++
		}
	}
	return pos, neg
}

// cleanJSONResponse strips code fences and surrounding prose from a model
// reply that should contain a single JSON object.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}

// parseStockInfo reads {"symbol","company"} from a model reply. Malformed
// JSON falls back to field regexes; anything unusable yields MarketStock.
func parseStockInfo(reply string) domain.StockIdentity {
	cleaned := cleanJSONResponse(reply)

	var parsed struct {
		Symbol  string `json:"symbol"`
		Company string `json:"company"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		if m := symbolPattern.FindStringSubmatch(cleaned); len(m) > 1 {
			parsed.Symbol = m[1]
		}
		if m := companyPattern.FindStringSubmatch(cleaned); len(m) > 1 {
			parsed.Company = m[1]
		}
	}

	symbol := stripExchange(parsed.Symbol)
	if symbol == "" {
		return domain.MarketStock
	}
	return domain.StockIdentity{Symbol: symbol, Name: strings.TrimSpace(parsed.Company)}.Normalize()
}

// stripExchange turns "NYSE:SMRT" into "SMRT".
func stripExchange(symbol string) string {
	symbol = strings.TrimSpace(symbol)
	if idx := strings.LastIndexAny(symbol, ":："); idx >= 0 {
		_, size := utf8.DecodeRuneInString(symbol[idx:])
		symbol = symbol[idx+size:]
	}
	return strings.TrimSpace(symbol)
}
