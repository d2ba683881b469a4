package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"portfolio-dashboard/internal/portfolio"
)

const MemoryPath = ":memory:"

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

type Store struct {
	db *sql.DB
}

var _ portfolio.HoldingStore = (*Store)(nil)

// DigestRecord is one attempt to push a portfolio digest.
type DigestRecord struct {
	ID        int64  `json:"id"`
	TS        int64  `json:"ts"`
	Channel   string `json:"channel"`
	Status    string `json:"status"`
	ErrCode   int    `json:"errcode"`
	ErrMsg    string `json:"errmsg"`
	PayloadMD string `json:"payload_md"`
	CreatedAt string `json:"created_at"`
}

// Open opens the store at path. The default is an in-memory database that
// lives as long as the process.
func Open(path string) (*Store, error) {
	if path == "" {
		path = MemoryPath
	}
	memory := path == MemoryPath || strings.Contains(path, "mode=memory")
	if !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if memory {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=3000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS holdings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			purchase_price TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			exchange TEXT NOT NULL,
			sector TEXT NOT NULL,
			created_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS digests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			channel TEXT,
			status TEXT,
			errcode INTEGER,
			errmsg TEXT,
			payload_md TEXT,
			created_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_digests_ts ON digests(ts);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

const holdingColumns = `symbol, name, purchase_price, quantity, exchange, sector`

type scanner interface {
	Scan(dest ...any) error
}

func scanHolding(row scanner) (portfolio.Holding, error) {
	var (
		h     portfolio.Holding
		price string
	)
	if err := row.Scan(&h.Symbol, &h.Name, &price, &h.Quantity, &h.Exchange, &h.Sector); err != nil {
		return portfolio.Holding{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return portfolio.Holding{}, fmt.Errorf("parse purchase price %q: %w", price, err)
	}
	h.PurchasePrice = d
	return h, nil
}

// ListHoldings returns holdings in insertion order.
func (s *Store) ListHoldings(ctx context.Context) ([]portfolio.Holding, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+holdingColumns+` FROM holdings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query holdings: %w", err)
	}
	defer rows.Close()

	out := make([]portfolio.Holding, 0)
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows holding: %w", err)
	}
	return out, nil
}

func (s *Store) GetHolding(ctx context.Context, symbol string) (portfolio.Holding, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+holdingColumns+` FROM holdings WHERE symbol = ?`, symbol)
	h, err := scanHolding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return portfolio.Holding{}, fmt.Errorf("holding %s: %w", symbol, ErrNotFound)
	}
	if err != nil {
		return portfolio.Holding{}, fmt.Errorf("get holding: %w", err)
	}
	return h, nil
}

func (s *Store) InsertHolding(ctx context.Context, h portfolio.Holding) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO holdings (`+holdingColumns+`, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(symbol) DO NOTHING`,
		h.Symbol, h.Name, h.PurchasePrice.String(), h.Quantity, h.Exchange, h.Sector, time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert holding: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("holding %s: %w", h.Symbol, ErrDuplicate)
	}
	return nil
}

// UpdateHolding replaces every field but the symbol, keeping the holding's
// position in the list.
func (s *Store) UpdateHolding(ctx context.Context, h portfolio.Holding) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE holdings SET name = ?, purchase_price = ?, quantity = ?, exchange = ?, sector = ? WHERE symbol = ?`,
		h.Name, h.PurchasePrice.String(), h.Quantity, h.Exchange, h.Sector, h.Symbol,
	)
	if err != nil {
		return fmt.Errorf("update holding: %w", err)
	}
	return requireAffected(res, h.Symbol)
}

func (s *Store) DeleteHolding(ctx context.Context, symbol string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM holdings WHERE symbol = ?`, symbol)
	if err != nil {
		return fmt.Errorf("delete holding: %w", err)
	}
	return requireAffected(res, symbol)
}

// Seed inserts holdings only when the collection is empty. It reports how
// many rows were written.
func (s *Store) Seed(ctx context.Context, holdings []portfolio.Holding) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM holdings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count holdings: %w", err)
	}
	if count > 0 {
		return 0, nil
	}
	for i, h := range holdings {
		if err := s.InsertHolding(ctx, h); err != nil {
			return i, err
		}
	}
	return len(holdings), nil
}

func requireAffected(res sql.Result, symbol string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("holding %s: %w", symbol, ErrNotFound)
	}
	return nil
}

func (s *Store) InsertDigest(ctx context.Context, d DigestRecord) (int64, error) {
	if d.CreatedAt == "" {
		d.CreatedAt = time.Now().Format(time.RFC3339)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO digests (ts, channel, status, errcode, errmsg, payload_md, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.TS, d.Channel, d.Status, d.ErrCode, d.ErrMsg, d.PayloadMD, d.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert digest: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// RecentDigests returns the newest records first.
func (s *Store) RecentDigests(ctx context.Context, limit int) ([]DigestRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, channel, status, errcode, errmsg, payload_md, created_at
		 FROM digests ORDER BY ts DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query digests: %w", err)
	}
	defer rows.Close()

	var out []DigestRecord
	for rows.Next() {
		var d DigestRecord
		if err := rows.Scan(&d.ID, &d.TS, &d.Channel, &d.Status, &d.ErrCode, &d.ErrMsg, &d.PayloadMD, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan digest: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows digest: %w", err)
	}
	return out, nil
}
