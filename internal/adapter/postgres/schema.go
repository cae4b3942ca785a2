package postgres

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS region (
        id       TEXT PRIMARY KEY,
        name     TEXT NOT NULL,
        geometry TEXT
    )`,
	`CREATE TABLE IF NOT EXISTS disease (
        id           TEXT PRIMARY KEY,
        name         TEXT NOT NULL,
        long_name    TEXT,
        description  TEXT,
        reinfectable BOOLEAN NOT NULL DEFAULT FALSE,
        popularity   DOUBLE PRECISION NOT NULL DEFAULT 0
    )`,
	`CREATE TABLE IF NOT EXISTS disease_stats (
        disease    TEXT NOT NULL,
        region     TEXT NOT NULL,
        date       DATE NOT NULL,
        cases      BIGINT,
        deaths     BIGINT,
        recoveries BIGINT,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        PRIMARY KEY (disease, region, date)
    )`,
	`CREATE TABLE IF NOT EXISTS region_population (
        region     TEXT NOT NULL,
        date       DATE NOT NULL,
        population BIGINT,
        PRIMARY KEY (region, date)
    )`,
	`CREATE TABLE IF NOT EXISTS disease_link (
        disease     TEXT NOT NULL,
        region      TEXT,
        uri         TEXT NOT NULL,
        description TEXT NOT NULL DEFAULT ''
    )`,
	`CREATE INDEX IF NOT EXISTS disease_stats_region_idx ON disease_stats (region, disease)`,
	`CREATE INDEX IF NOT EXISTS disease_link_disease_idx ON disease_link (disease)`,
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
