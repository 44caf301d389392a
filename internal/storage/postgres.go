package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/article-archiver/internal/domain"
)

// ErrNotFound is returned when no archive exists for a URL.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS archives (
	id                TEXT PRIMARY KEY,
	url               TEXT NOT NULL,
	title             TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL,
	fail_reason       TEXT NOT NULL DEFAULT '',
	images_processed  INTEGER NOT NULL DEFAULT 0,
	images_downloaded INTEGER NOT NULL DEFAULT 0,
	images_failed     INTEGER NOT NULL DEFAULT 0,
	output_path       TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS archives_url_updated_idx ON archives (url, updated_at DESC);
`

// PostgresStore handles interactions with the PostgreSQL database.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Migrate creates the archives table when it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

// SaveRun inserts or updates an archive run keyed by its ID.
func (s *PostgresStore) SaveRun(ctx context.Context, rec *domain.ArchiveRecord) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO archives (id, url, title, status, fail_reason, images_processed, images_downloaded, images_failed, output_path)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   title = EXCLUDED.title, status = EXCLUDED.status, fail_reason = EXCLUDED.fail_reason,
		   images_processed = EXCLUDED.images_processed, images_downloaded = EXCLUDED.images_downloaded,
		   images_failed = EXCLUDED.images_failed, output_path = EXCLUDED.output_path, updated_at = NOW()`,
		rec.ID, rec.URL, rec.Title, rec.Status, rec.FailReason,
		rec.ImagesProcessed, rec.ImagesDownloaded, rec.ImagesFailed, rec.OutputPath,
	)
	if err != nil {
		return fmt.Errorf("save archive %s: %w", rec.ID, err)
	}
	return nil
}

// GetArchiveStatus retrieves the most recent archive run for a URL.
func (s *PostgresStore) GetArchiveStatus(ctx context.Context, url string) (*domain.ArchiveStatusResponse, error) {
	var status domain.ArchiveStatusResponse
	err := s.db.QueryRow(ctx,
		`SELECT id, url, title, status, fail_reason, images_processed, images_downloaded, images_failed, output_path, updated_at
		 FROM archives WHERE url = $1 ORDER BY updated_at DESC LIMIT 1`,
		url,
	).Scan(&status.ID, &status.URL, &status.Title, &status.Status, &status.FailReason,
		&status.ImagesProcessed, &status.ImagesDownloaded, &status.ImagesFailed, &status.OutputPath, &status.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &status, nil
}
