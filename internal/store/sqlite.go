package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"alpaca-trader/internal/errors"
	"alpaca-trader/internal/models"
)

// SQLiteStore implements PositionStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based position store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS positions (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		purchase_date DATETIME NOT NULL,
		purchase_price REAL NOT NULL,
		purchase_order_id TEXT NOT NULL,
		sale_date DATETIME,
		sale_price REAL,
		sale_order_id TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_positions_symbol ON positions(symbol);
	CREATE INDEX IF NOT EXISTS idx_positions_open ON positions(symbol) WHERE sale_order_id IS NULL;
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertOpenPosition inserts a new open position row. A missing id is
// generated.
func (s *SQLiteStore) InsertOpenPosition(ctx context.Context, p *models.Position) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (id, symbol, quantity, purchase_date, purchase_price, purchase_order_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Symbol, p.Quantity, p.PurchaseDate, p.PurchasePrice, p.PurchaseOrderID,
	)
	if err != nil {
		return errors.NewStoreError("insert-position", err)
	}
	return nil
}

// ClosePosition sets the three sale fields of an open position in one update.
// A row is closed at most once: closing an already-closed row fails with
// ErrPositionClosed.
func (s *SQLiteStore) ClosePosition(ctx context.Context, id string, salePrice float64, saleOrderID string, saleDate time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE positions
		SET sale_date = ?, sale_price = ?, sale_order_id = ?
		WHERE id = ? AND sale_date IS NULL AND sale_price IS NULL AND sale_order_id IS NULL`,
		saleDate, salePrice, saleOrderID, id,
	)
	if err != nil {
		return errors.NewStoreError("close-position", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.NewStoreError("close-position", err)
	}
	if affected == 0 {
		var exists int
		row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM positions WHERE id = ?`, id)
		if err := row.Scan(&exists); err != nil {
			return errors.NewStoreError("close-position", err)
		}
		if exists == 0 {
			return errors.NewStoreError("close-position", errors.ErrPositionNotFound)
		}
		return errors.NewStoreError("close-position", errors.ErrPositionClosed)
	}
	return nil
}

// OpenPositions returns open positions, optionally restricted to one symbol,
// oldest purchase first.
func (s *SQLiteStore) OpenPositions(ctx context.Context, filter PositionFilter) ([]models.Position, error) {
	query := `
		SELECT id, symbol, quantity, purchase_date, purchase_price, purchase_order_id
		FROM positions
		WHERE sale_date IS NULL AND sale_price IS NULL AND sale_order_id IS NULL`
	args := []interface{}{}
	if filter.Symbol != "" {
		query += ` AND symbol = ?`
		args = append(args, filter.Symbol)
	}
	query += ` ORDER BY purchase_date ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewStoreError("open-positions", err)
	}
	defer rows.Close()

	var positions []models.Position
	for rows.Next() {
		var p models.Position
		if err := rows.Scan(&p.ID, &p.Symbol, &p.Quantity, &p.PurchaseDate, &p.PurchasePrice, &p.PurchaseOrderID); err != nil {
			return nil, errors.NewStoreError("open-positions", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("open-positions", err)
	}
	return positions, nil
}

// OpenSymbols returns the distinct symbols with at least one open position.
func (s *SQLiteStore) OpenSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT symbol FROM positions
		WHERE sale_date IS NULL AND sale_price IS NULL AND sale_order_id IS NULL
		ORDER BY symbol ASC`)
	if err != nil {
		return nil, errors.NewStoreError("open-symbols", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, errors.NewStoreError("open-symbols", err)
		}
		symbols = append(symbols, symbol)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("open-symbols", err)
	}
	return symbols, nil
}

// CountOpenPositions counts open positions for a symbol.
func (s *SQLiteStore) CountOpenPositions(ctx context.Context, symbol string) (int, error) {
	var count int
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM positions
		WHERE sale_date IS NULL AND sale_price IS NULL AND sale_order_id IS NULL AND symbol = ?`,
		symbol)
	if err := row.Scan(&count); err != nil {
		return 0, errors.NewStoreError("count-open-positions", err)
	}
	return count, nil
}

// CountDayTrades counts positions bought and sold on the same session date
// with a sale on or after windowStart. Used by the pattern-day-trade guard.
func (s *SQLiteStore) CountDayTrades(ctx context.Context, windowStart time.Time) (int, error) {
	var count int
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM positions
		WHERE sale_date IS NOT NULL
		AND date(purchase_date) = date(sale_date)
		AND sale_date >= ?`,
		windowStart)
	if err := row.Scan(&count); err != nil {
		return 0, errors.NewStoreError("count-day-trades", err)
	}
	return count, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
