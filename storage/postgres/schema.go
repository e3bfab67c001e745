package postgres

import (
	"context"
	"fmt"
)

// Schema creates the tables read by Retriever and FactStore.
// The embedding column is dimensionless so any embedding model fits.
const Schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS passages (
	id         BIGINT PRIMARY KEY,
	source_id  TEXT NOT NULL,
	locator    TEXT NOT NULL DEFAULT '',
	text       TEXT NOT NULL,
	embedding  vector
);

CREATE TABLE IF NOT EXISTS persons (
	id          BIGINT PRIMARY KEY,
	given_name  TEXT NOT NULL DEFAULT '',
	middle_name TEXT NOT NULL DEFAULT '',
	surname     TEXT NOT NULL DEFAULT '',
	maiden_name TEXT NOT NULL DEFAULT '',
	birth_year  INTEGER NOT NULL DEFAULT 0,
	birth_place TEXT NOT NULL DEFAULT '',
	death_year  INTEGER NOT NULL DEFAULT 0,
	death_place TEXT NOT NULL DEFAULT '',
	source_id   TEXT NOT NULL DEFAULT '',
	locator     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS relationships (
	id         BIGINT PRIMARY KEY,
	person_id  BIGINT NOT NULL REFERENCES persons(id),
	related_id BIGINT NOT NULL REFERENCES persons(id),
	type       TEXT NOT NULL,
	start_year INTEGER NOT NULL DEFAULT 0,
	source_id  TEXT NOT NULL DEFAULT '',
	locator    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS facts (
	id          BIGINT PRIMARY KEY,
	person_id   BIGINT NOT NULL REFERENCES persons(id),
	type        TEXT NOT NULL,
	year        INTEGER NOT NULL DEFAULT 0,
	place       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	source_id   TEXT NOT NULL DEFAULT '',
	locator     TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS relationships_person_idx ON relationships (person_id);
CREATE INDEX IF NOT EXISTS relationships_related_idx ON relationships (related_id);
CREATE INDEX IF NOT EXISTS facts_person_idx ON facts (person_id);
`

// EnsureSchema applies Schema.
func EnsureSchema(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}
