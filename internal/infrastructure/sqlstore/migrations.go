package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
)

// Amounts are DECIMAL in MySQL and TEXT in SQLite: SQLite's NUMERIC
// affinity would turn "150.50" into a REAL. Timestamps are Unix
// microseconds in both.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS auctions (
        id VARCHAR(64) NOT NULL PRIMARY KEY,
        description TEXT NOT NULL,
        starting_bid DECIMAL(20,2) NOT NULL,
        current_bid DECIMAL(20,2) NOT NULL,
        min_increment DECIMAL(20,2) NOT NULL DEFAULT 0,
        end_time BIGINT NOT NULL,
        status INT NOT NULL,
        bid_count INT NOT NULL DEFAULT 0,
        closed_at BIGINT NULL,
        created_at BIGINT NOT NULL,
        updated_at BIGINT NOT NULL,
        INDEX idx_auctions_status_end_time (status, end_time)
    )`,
	`CREATE TABLE IF NOT EXISTS bids (
        id VARCHAR(64) NOT NULL PRIMARY KEY,
        auction_id VARCHAR(64) NOT NULL,
        sequence INT NOT NULL,
        bidder_name VARCHAR(255) NOT NULL,
        amount DECIMAL(20,2) NOT NULL,
        submitted_at BIGINT NOT NULL,
        accepted_at BIGINT NOT NULL,
        UNIQUE KEY uq_bids_auction_sequence (auction_id, sequence),
        FOREIGN KEY (auction_id) REFERENCES auctions(id)
    )`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS auctions (
        id TEXT PRIMARY KEY,
        description TEXT NOT NULL,
        starting_bid TEXT NOT NULL,
        current_bid TEXT NOT NULL,
        min_increment TEXT NOT NULL DEFAULT '0',
        end_time INTEGER NOT NULL,
        status INTEGER NOT NULL,
        bid_count INTEGER NOT NULL DEFAULT 0,
        closed_at INTEGER,
        created_at INTEGER NOT NULL,
        updated_at INTEGER NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS bids (
        id TEXT PRIMARY KEY,
        auction_id TEXT NOT NULL,
        sequence INTEGER NOT NULL,
        bidder_name TEXT NOT NULL,
        amount TEXT NOT NULL,
        submitted_at INTEGER NOT NULL,
        accepted_at INTEGER NOT NULL,
        UNIQUE (auction_id, sequence),
        FOREIGN KEY (auction_id) REFERENCES auctions(id)
    )`,
	`CREATE INDEX IF NOT EXISTS idx_auctions_status_end_time ON auctions(status, end_time)`,
}

// runMigrations creates the schema when missing. Statements run one at a
// time since the MySQL driver rejects multi-statement Exec by default.
func runMigrations(ctx context.Context, db *sql.DB, dialect Dialect) error {
	schema := mysqlSchema
	if dialect == SQLite {
		schema = sqliteSchema
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("run migration: %w", err)
		}
	}
	return nil
}
