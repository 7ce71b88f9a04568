package publishers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adda-Baaj/bazaar-khobor/internal/domain"
	"github.com/Adda-Baaj/bazaar-khobor/internal/logger"
	"github.com/Adda-Baaj/bazaar-khobor/pkg/store"
)

type Logger = logger.Logger

func ensureLogger(log Logger) Logger { return logger.Ensure(log) }

// Event is the message published for every stored analysis.
type Event struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Symbol      string `json:"symbol"`
	Company     string `json:"company"`
	Sentiment   string `json:"sentiment"`
	Summary     string `json:"summary"`
	PublishedAt string `json:"published_at"`
	GeneratedAt string `json:"generated_at"`
}

// NewEvent renders rec with dates at zone.
func NewEvent(rec domain.Record, zone *time.Location) Event {
	return Event{
		ID:          rec.URL + "#" + rec.GeneratedDate.UTC().Format(time.RFC3339),
		URL:         rec.URL,
		Title:       rec.Title,
		Symbol:      rec.Symbol,
		Company:     rec.Company,
		Sentiment:   rec.Sentiment.String(),
		Summary:     rec.Summary,
		PublishedAt: store.FormatDate(rec.PublishDate, zone),
		GeneratedAt: store.FormatDate(rec.GeneratedDate, zone),
	}
}

// attributes are the routing keys attached to queue messages.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"symbol":    e.Symbol,
		"sentiment": e.Sentiment,
	}
}

// Publisher delivers events to one sink.
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}

// Fanout delivers every record to all publishers. The zero value publishes
// nowhere.
type Fanout struct {
	pubs []Publisher
	zone *time.Location
	log  Logger
}

func NewFanout(pubs []Publisher, zone *time.Location, log Logger) *Fanout {
	if zone == nil {
		zone = time.UTC
	}
	return &Fanout{pubs: pubs, zone: zone, log: ensureLogger(log)}
}

// Len is the number of publishers.
func (f *Fanout) Len() int {
	if f == nil {
		return 0
	}
	return len(f.pubs)
}

// Notify publishes rec to every sink, continuing past failures. The returned
// error joins every sink's failure.
func (f *Fanout) Notify(ctx context.Context, rec domain.Record) error {
	if f.Len() == 0 {
		return nil
	}
	evt := NewEvent(rec, f.zone)

	var errs []error
	for _, p := range f.pubs {
		if err := p.Publish(ctx, evt); err != nil {
			f.log.WarnObj("publisher failed", "publish_error", map[string]any{
				"publisher_id": p.ID(),
				"type":         p.Type(),
				"url":          rec.URL,
				"error":        err.Error(),
			})
			errs = append(errs, fmt.Errorf("%s: %w", p.ID(), err))
			continue
		}
		f.log.DebugObj("event published", "publish_ok", map[string]any{
			"publisher_id": p.ID(),
			"url":          rec.URL,
		})
	}
	return errors.Join(errs...)
}
