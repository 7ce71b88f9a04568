package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/Adda-Baaj/bazaar-khobor/internal/domain"
	"github.com/Adda-Baaj/bazaar-khobor/internal/logger"
)

var recordsBucket = []byte("records")

// Bolt stores records in a single bbolt file, one key per URL.
type Bolt struct {
	db  *bolt.DB
	log logger.Logger
}

// OpenBolt opens (creating if needed) the database at path.
func OpenBolt(path string, log logger.Logger) (*Bolt, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create bolt dir: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordsBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init bolt bucket: %w", err)
	}

	return &Bolt{db: db, log: logger.Ensure(log)}, nil
}

func (b *Bolt) Exists(_ context.Context, url string) (bool, error) {
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(recordsBucket).Get([]byte(url)) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("bolt lookup: %w", err)
	}
	return found, nil
}

func (b *Bolt) Upsert(_ context.Context, rec domain.Record) error {
	if err := validate(rec); err != nil {
		return err
	}

	updated := false
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(recordsBucket)
		key := []byte(rec.URL)

		if raw := bkt.Get(key); raw != nil {
			var prev domain.Record
			if err := json.Unmarshal(raw, &prev); err != nil {
				return fmt.Errorf("decode stored record: %w", err)
			}
			rec = merge(prev, rec)
			updated = true
		}

		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		return bkt.Put(key, raw)
	})
	if err != nil {
		return fmt.Errorf("bolt upsert: %w", err)
	}

	b.log.DebugObj("record stored", "store_upsert", map[string]any{
		"driver":  DriverBolt,
		"url":     rec.URL,
		"updated": updated,
	})
	return nil
}

// Get returns the record stored for url.
func (b *Bolt) Get(url string) (domain.Record, bool, error) {
	var (
		rec   domain.Record
		found bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(recordsBucket).Get([]byte(url))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &rec)
	})
	if err != nil {
		return domain.Record{}, false, fmt.Errorf("bolt get: %w", err)
	}
	return rec, found, nil
}

// Count reports how many records are stored.
func (b *Bolt) Count() (int, error) {
	var n int
	err := b.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(recordsBucket).Stats().KeyN
		return nil
	})
	return n, err
}

func (b *Bolt) Close() error { return b.db.Close() }
