package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func Connect(databaseURL string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// migrations are idempotent and applied in order on every start.
var migrations = []string{
	// Contacts are maintained out-of-band
	`CREATE TABLE IF NOT EXISTS contacts (
		wa_id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL DEFAULT '',
		profile_pic TEXT,
		is_online BOOLEAN NOT NULL DEFAULT FALSE,
		last_seen TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS chats (
		wa_id VARCHAR(64) PRIMARY KEY,
		is_group BOOLEAN NOT NULL DEFAULT FALSE,
		group_name VARCHAR(255),
		last_message TEXT NOT NULL DEFAULT '',
		timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		unread_count INT NOT NULL DEFAULT 0 CHECK (unread_count >= 0),
		is_typing BOOLEAN NOT NULL DEFAULT FALSE,
		is_muted BOOLEAN NOT NULL DEFAULT FALSE,
		is_pinned BOOLEAN NOT NULL DEFAULT FALSE,
		is_blocked BOOLEAN NOT NULL DEFAULT FALSE
	)`,

	// position keeps participants in insertion order
	`CREATE TABLE IF NOT EXISTS chat_participants (
		chat_wa_id VARCHAR(64) NOT NULL REFERENCES chats(wa_id) ON DELETE CASCADE,
		wa_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL DEFAULT '',
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		position BIGSERIAL,
		PRIMARY KEY (chat_wa_id, wa_id)
	)`,

	`CREATE TABLE IF NOT EXISTS messages (
		id VARCHAR(64) PRIMARY KEY,
		seq BIGSERIAL UNIQUE,
		chat_wa_id VARCHAR(64) NOT NULL REFERENCES chats(wa_id),
		sender VARCHAR(64) NOT NULL,
		content TEXT,
		timestamp TIMESTAMPTZ NOT NULL,
		status VARCHAR(32) NOT NULL,
		file TEXT,
		file_name TEXT,
		reference_content TEXT,
		waba_message_id VARCHAR(255)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_chat_seq ON messages(chat_wa_id, seq)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_waba_id ON messages(waba_message_id)`,

	`CREATE TABLE IF NOT EXISTS message_reactions (
		message_id VARCHAR(64) NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
		user_id VARCHAR(64) NOT NULL,
		emoji VARCHAR(64) NOT NULL,
		seq BIGSERIAL,
		PRIMARY KEY (message_id, user_id)
	)`,
}

func Migrate(db *pgxpool.Pool) error {
	ctx := context.Background()
	for _, sql := range migrations {
		if _, err := db.Exec(ctx, sql); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, sql)
		}
	}
	return nil
}
