package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Database wraps the Postgres connection holding durable guard state:
// per-guild configs, periodic snapshots and the two rotating audit
// logs
type Database struct {
	db  *sql.DB
	log *zap.Logger
}

type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslmode"`
}

const schema = `
-- Per-guild engine configuration overlay
CREATE TABLE IF NOT EXISTS guard_config (
    guild_id TEXT PRIMARY KEY,
    settings JSONB NOT NULL,
    updated_at BIGINT NOT NULL
);

-- Periodic point-in-time snapshot of mutable engine state
CREATE TABLE IF NOT EXISTS guard_state (
    guild_id TEXT PRIMARY KEY,
    snapshot JSONB NOT NULL,
    saved_at BIGINT NOT NULL
);

-- Append-only violation audit log, rotated at 1000 rows per guild
CREATE TABLE IF NOT EXISTS violation_log (
    id BIGSERIAL PRIMARY KEY,
    guild_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    types TEXT[] NOT NULL,
    action TEXT NOT NULL,
    strikes INTEGER NOT NULL,
    created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_violation_log_guild ON violation_log(guild_id, id);

-- Append-only raid event log, rotated at 500 rows per guild
CREATE TABLE IF NOT EXISTS raid_log (
    id BIGSERIAL PRIMARY KEY,
    guild_id TEXT NOT NULL,
    event TEXT NOT NULL,
    level INTEGER NOT NULL DEFAULT 0,
    details TEXT NOT NULL DEFAULT '',
    created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_raid_log_guild ON raid_log(guild_id, id);
`

// NewDatabase connects, tunes the pool and creates the schema
func NewDatabase(cfg PostgresConfig, logger *zap.Logger) (*Database, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("schema init: %w", err)
	}

	return &Database{db: db, log: logger}, nil
}

// Close releases the connection pool
func (d *Database) Close() error {
	return d.db.Close()
}
