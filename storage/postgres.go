package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ys-23412/sbcontest2/models"
)

// PostgresStore archives every mapped entry before upload so batches
// rejected by the publication API can be replayed. It is optional; a
// nil *PostgresStore is a no-op archive.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 5
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) Close() {
	if s != nil {
		s.pool.Close()
	}
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS archived_entries (
			id BIGSERIAL PRIMARY KEY,
			batch_id UUID NOT NULL,
			site_id TEXT NOT NULL,
			permit_no TEXT NOT NULL,
			region TEXT,
			entry JSONB NOT NULL,
			uploaded BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_archived_batch ON archived_entries(batch_id);
		CREATE INDEX IF NOT EXISTS idx_archived_site ON archived_entries(site_id, created_at);
	`)
	return err
}

// ArchiveBatch stores the mapped entries of one upload attempt.
func (s *PostgresStore) ArchiveBatch(ctx context.Context, batchID, siteID string, entries []models.MappedEntry) error {
	if s == nil {
		return nil
	}
	for _, entry := range entries {
		payload, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal entry %s: %w", entry.Permit, err)
		}
		_, err = s.pool.Exec(ctx, `
			INSERT INTO archived_entries (batch_id, site_id, permit_no, region, entry)
			VALUES ($1, $2, $3, $4, $5)
		`, batchID, siteID, entry.Permit, entry.Region, payload)
		if err != nil {
			return fmt.Errorf("archive entry %s: %w", entry.Permit, err)
		}
	}
	return nil
}

// MarkBatchUploaded flags a batch as accepted by the publication API.
func (s *PostgresStore) MarkBatchUploaded(ctx context.Context, batchID string) error {
	if s == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE archived_entries SET uploaded = TRUE WHERE batch_id = $1
	`, batchID)
	return err
}
