package domain

import (
	"encoding/json"
	"strings"
)

// Sentiment is the market impact classification of an article.
type Sentiment int

const (
	SentimentUnknown Sentiment = iota
	SentimentGood
	SentimentNeutral
	SentimentBad
)

var sentimentNames = map[Sentiment]string{
	SentimentUnknown: "Unknown",
	SentimentGood:    "Good",
	SentimentNeutral: "Neutral",
	SentimentBad:     "Bad",
}

var sentimentMarkers = map[Sentiment]string{
	SentimentUnknown: "😐",
	SentimentGood:    "😀",
	SentimentNeutral: "😐",
	SentimentBad:     "😞",
}

// sentimentAliases maps model vocabulary (English and Chinese) onto the enum.
var sentimentAliases = map[string]Sentiment{
	"good":     SentimentGood,
	"positive": SentimentGood,
	"好":        SentimentGood,
	"正面":       SentimentGood,
	"neutral":  SentimentNeutral,
	"中立":       SentimentNeutral,
	"中性":       SentimentNeutral,
	"bad":      SentimentBad,
	"negative": SentimentBad,
	"坏":        SentimentBad,
	"負面":       SentimentBad,
	"负面":       SentimentBad,
	"unknown":  SentimentUnknown,
	"未知":       SentimentUnknown,
}

// ParseSentiment maps a label onto the enum. The second result is false when
// the label is not recognised.
func ParseSentiment(raw string) (Sentiment, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return SentimentUnknown, false
	}
	s, ok := sentimentAliases[key]
	return s, ok
}

func (s Sentiment) String() string {
	if name, ok := sentimentNames[s]; ok {
		return name
	}
	return sentimentNames[SentimentUnknown]
}

// Label is the display form stored alongside records, e.g. "Good 😀".
func (s Sentiment) Label() string {
	marker, ok := sentimentMarkers[s]
	if !ok {
		marker = sentimentMarkers[SentimentUnknown]
	}
	return s.String() + " " + marker
}

func (s Sentiment) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Sentiment) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	// Stored labels may carry the trailing marker.
	if idx := strings.IndexByte(raw, ' '); idx > 0 {
		raw = raw[:idx]
	}
	parsed, _ := ParseSentiment(raw)
	*s = parsed
	return nil
}
