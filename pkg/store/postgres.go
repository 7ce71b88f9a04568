package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/Adda-Baaj/bazaar-khobor/internal/domain"
	"github.com/Adda-Baaj/bazaar-khobor/internal/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const upsertRecordSQL = `
INSERT INTO analysis_records (url, title, symbol, company, publish_date, generated_date, sentiment, summary)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (url) DO UPDATE SET
    publish_date   = EXCLUDED.publish_date,
    generated_date = EXCLUDED.generated_date,
    sentiment      = EXCLUDED.sentiment,
    summary        = EXCLUDED.summary,
    updated_at     = NOW()`

// Postgres stores records in the analysis_records table. The unique url key
// makes concurrent upserts for one URL converge on a single row.
type Postgres struct {
	db  *sql.DB
	log logger.Logger
}

// OpenPostgres connects, verifies the connection and applies migrations.
func OpenPostgres(ctx context.Context, dsn string, log logger.Logger) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	log = logger.Ensure(log)
	version, err := runMigrations(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	log.InfoObj("postgres schema ready", "store_migrated", map[string]any{
		"version": version,
	})

	return &Postgres{db: db, log: log}, nil
}

func runMigrations(db *sql.DB) (uint, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return 0, fmt.Errorf("create migrate driver: %w", err)
	}
	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("open migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return 0, fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	version, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	return version, nil
}

func (p *Postgres) Exists(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM analysis_records WHERE url = $1)`, url).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres lookup: %w", err)
	}
	return exists, nil
}

func (p *Postgres) Upsert(ctx context.Context, rec domain.Record) error {
	if err := validate(rec); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx, upsertRecordSQL,
		rec.URL,
		rec.Title,
		rec.Symbol,
		rec.Company,
		rec.PublishDate.UTC(),
		rec.GeneratedDate.UTC(),
		rec.Sentiment.String(),
		rec.Summary,
	)
	if err != nil {
		return fmt.Errorf("postgres upsert: %w", err)
	}
	p.log.DebugObj("record stored", "store_upsert", map[string]any{
		"driver": DriverPostgres,
		"url":    rec.URL,
	})
	return nil
}

// Get returns the record stored for url.
func (p *Postgres) Get(ctx context.Context, url string) (domain.Record, bool, error) {
	var (
		rec       domain.Record
		sentiment string
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT url, title, symbol, company, publish_date, generated_date, sentiment, summary
		FROM analysis_records WHERE url = $1`, url).
		Scan(&rec.URL, &rec.Title, &rec.Symbol, &rec.Company, &rec.PublishDate, &rec.GeneratedDate, &sentiment, &rec.Summary)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{}, false, nil
	}
	if err != nil {
		return domain.Record{}, false, fmt.Errorf("postgres get: %w", err)
	}
	rec.Sentiment, _ = domain.ParseSentiment(sentiment)
	return rec, true, nil
}

func (p *Postgres) Close() error { return p.db.Close() }
