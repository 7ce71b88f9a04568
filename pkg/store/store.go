package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Adda-Baaj/bazaar-khobor/internal/config"
	"github.com/Adda-Baaj/bazaar-khobor/internal/domain"
	"github.com/Adda-Baaj/bazaar-khobor/internal/logger"
)

// Supported drivers.
const (
	DriverBolt     = "bolt"
	DriverPostgres = "postgres"
	DriverNotion   = "notion"
	DriverMemory   = "memory"
)

var ErrUnknownDriver = errors.New("unknown store driver")

// Store persists analysis records keyed by article URL.
type Store interface {
	Exists(ctx context.Context, url string) (bool, error)
	// Upsert inserts rec, or refreshes PublishDate, GeneratedDate, Sentiment
	// and Summary of the record already stored for rec.URL.
	Upsert(ctx context.Context, rec domain.Record) error
	Close() error
}

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig, log logger.Logger) (Store, error) {
	zone := Zone(cfg.UTCOffsetHours)
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverBolt:
		return OpenBolt(cfg.BoltPath, log)
	case DriverPostgres:
		return OpenPostgres(ctx, cfg.PostgresDSN, log)
	case DriverNotion:
		return NewNotion(NotionOptions{
			Token:      cfg.Notion.Token,
			DatabaseID: cfg.Notion.DatabaseID,
			BaseURL:    cfg.Notion.BaseURL,
			Version:    cfg.Notion.Version,
			Zone:       zone,
		}, log)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// Zone returns the fixed offset used when formatting dates for display.
func Zone(offsetHours int) *time.Location {
	if offsetHours == 0 {
		return time.UTC
	}
	sign := "+"
	if offsetHours < 0 {
		sign = "-"
	}
	abs := offsetHours
	if abs < 0 {
		abs = -abs
	}
	return time.FixedZone(fmt.Sprintf("UTC%s%d", sign, abs), offsetHours*3600)
}

// FormatDate renders t as ISO-8601 with the zone's offset.
func FormatDate(t time.Time, zone *time.Location) string {
	if zone == nil {
		zone = time.UTC
	}
	return t.In(zone).Format(time.RFC3339)
}

// merge applies the refreshable fields of next onto prev.
func merge(prev, next domain.Record) domain.Record {
	prev.PublishDate = next.PublishDate
	prev.GeneratedDate = next.GeneratedDate
	prev.Sentiment = next.Sentiment
	prev.Summary = next.Summary
	return prev
}

func validate(rec domain.Record) error {
	if strings.TrimSpace(rec.URL) == "" {
		return errors.New("record url is empty")
	}
	return nil
}
