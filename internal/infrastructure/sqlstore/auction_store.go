// Package sqlstore implements domain.AuctionStore on MySQL or SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"live-auction/internal/domain"
)

type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

var _ domain.AuctionStore = (*AuctionStore)(nil)

// AuctionStore serializes mutations per auction with a transaction that
// locks the auction row (MySQL) or with the single SQLite connection.
type AuctionStore struct {
	db      *sql.DB
	dialect Dialect
}

func New(db *sql.DB, dialect Dialect) *AuctionStore {
	return &AuctionStore{db: db, dialect: dialect}
}

// Migrate creates the tables when they do not exist yet.
func (s *AuctionStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db, s.dialect)
}

const auctionColumns = `id, description, starting_bid, current_bid, min_increment,
        end_time, status, bid_count, closed_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func toMicros(t time.Time) int64 {
	return t.UTC().UnixMicro()
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

func scanAuction(row rowScanner) (*domain.Auction, error) {
	var (
		auction                      domain.Auction
		status                       int
		endTime, createdAt, updateAt int64
		closedAt                     sql.NullInt64
	)

	err := row.Scan(&auction.ID, &auction.Description, &auction.StartingBid, &auction.CurrentBid,
		&auction.MinIncrement, &endTime, &status, &auction.BidCount, &closedAt, &createdAt, &updateAt)
	if err != nil {
		return nil, err
	}

	auction.Status = domain.AuctionStatus(status)
	auction.EndTime = fromMicros(endTime)
	auction.CreatedAt = fromMicros(createdAt)
	auction.UpdatedAt = fromMicros(updateAt)
	if closedAt.Valid {
		t := fromMicros(closedAt.Int64)
		auction.ClosedAt = &t
	}
	return &auction, nil
}

// lockAuction reads the auction row inside tx, locking it on MySQL.
func (s *AuctionStore) lockAuction(ctx context.Context, tx *sql.Tx, auctionID string) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = ?`
	if s.dialect == MySQL {
		query += ` FOR UPDATE`
	}

	auction, err := scanAuction(tx.QueryRowContext(ctx, query, auctionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("auction %s: %w", auctionID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load auction %s: %w", auctionID, err)
	}
	return auction, nil
}

func (s *AuctionStore) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	query := `
        INSERT INTO auctions (` + auctionColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	var closedAt sql.NullInt64
	if auction.ClosedAt != nil {
		closedAt = sql.NullInt64{Int64: toMicros(*auction.ClosedAt), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		auction.ID, auction.Description, auction.StartingBid, auction.CurrentBid, auction.MinIncrement,
		toMicros(auction.EndTime), int(auction.Status), auction.BidCount, closedAt,
		toMicros(auction.CreatedAt), toMicros(auction.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert auction %s: %w", auction.ID, err)
	}
	return nil
}

func (s *AuctionStore) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	// One transaction so the header and the history come from the same snapshot.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	auction, err := scanAuction(tx.QueryRowContext(ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE id = ?`, auctionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("auction %s: %w", auctionID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load auction %s: %w", auctionID, err)
	}

	rows, err := tx.QueryContext(ctx, `
        SELECT id, auction_id, sequence, bidder_name, amount, submitted_at, accepted_at
        FROM bids WHERE auction_id = ?
        ORDER BY sequence DESC
    `, auctionID)
	if err != nil {
		return nil, fmt.Errorf("load bids for %s: %w", auctionID, err)
	}
	defer rows.Close()

	auction.Bids = make([]domain.Bid, 0, auction.BidCount)
	for rows.Next() {
		var (
			bid                     domain.Bid
			submittedAt, acceptedAt int64
		)
		if err := rows.Scan(&bid.ID, &bid.AuctionID, &bid.Sequence, &bid.BidderName,
			&bid.Amount, &submittedAt, &acceptedAt); err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		bid.SubmittedAt = fromMicros(submittedAt)
		bid.AcceptedAt = fromMicros(acceptedAt)
		auction.Bids = append(auction.Bids, bid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bids: %w", err)
	}

	return auction, tx.Commit()
}

func (s *AuctionStore) ListAuctions(ctx context.Context) ([]*domain.Auction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+auctionColumns+` FROM auctions ORDER BY end_time ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan auction: %w", err)
		}
		auctions = append(auctions, auction)
	}
	return auctions, rows.Err()
}

func (s *AuctionStore) AppendBid(ctx context.Context, auctionID string, bid *domain.Bid, guard domain.BidGuard) (*domain.Auction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	auction, err := s.lockAuction(ctx, tx, auctionID)
	if err != nil {
		return nil, err
	}

	if auction.IsClosed() {
		return nil, fmt.Errorf("append bid to %s: %w", auctionID, domain.ErrAlreadyClosed)
	}
	if guard != nil {
		if err := guard(auction.Clone()); err != nil {
			return nil, err
		}
	}
	if bid.Amount.LessThan(auction.CurrentBid) {
		return nil, &domain.BidTooLowError{Amount: bid.Amount, Minimum: auction.CurrentBid}
	}

	bid.AuctionID = auctionID
	bid.Sequence = auction.BidCount + 1

	_, err = tx.ExecContext(ctx, `
        INSERT INTO bids (id, auction_id, sequence, bidder_name, amount, submitted_at, accepted_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `, bid.ID, bid.AuctionID, bid.Sequence, bid.BidderName, bid.Amount,
		toMicros(bid.SubmittedAt), toMicros(bid.AcceptedAt))
	if err != nil {
		return nil, fmt.Errorf("insert bid: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE auctions SET current_bid = ?, bid_count = ?, updated_at = ? WHERE id = ?`,
		bid.Amount, bid.Sequence, toMicros(bid.AcceptedAt), auctionID)
	if err != nil {
		return nil, fmt.Errorf("update current bid: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bid: %w", err)
	}

	auction.CurrentBid = bid.Amount
	auction.BidCount = bid.Sequence
	auction.UpdatedAt = bid.AcceptedAt.UTC()
	return auction, nil
}

func (s *AuctionStore) CloseAuction(ctx context.Context, auctionID string, closedAt time.Time) (*domain.Auction, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	auction, err := s.lockAuction(ctx, tx, auctionID)
	if err != nil {
		return nil, false, err
	}
	if auction.IsClosed() {
		return auction, false, nil
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE auctions SET status = ?, closed_at = ?, updated_at = ? WHERE id = ?`,
		int(domain.AuctionClosed), toMicros(closedAt), toMicros(closedAt), auctionID)
	if err != nil {
		return nil, false, fmt.Errorf("close auction %s: %w", auctionID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit close: %w", err)
	}

	closed := fromMicros(toMicros(closedAt))
	auction.Status = domain.AuctionClosed
	auction.ClosedAt = &closed
	auction.UpdatedAt = closed
	return auction, true, nil
}

func (s *AuctionStore) ListExpiredAuctions(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id FROM auctions
        WHERE status = ? AND end_time <= ?
        ORDER BY end_time ASC, id ASC
    `, int(domain.AuctionOpen), toMicros(now))
	if err != nil {
		return nil, fmt.Errorf("list expired auctions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan auction id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
