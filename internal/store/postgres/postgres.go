package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"veggiemarket/backend/internal/domain"
	"veggiemarket/backend/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS pos_snapshots (
	key        TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sales_ledger (
	id              TEXT PRIMARY KEY,
	receipt_number  TEXT NOT NULL UNIQUE,
	customer_id     TEXT NOT NULL DEFAULT '',
	payment_method  TEXT NOT NULL,
	total           NUMERIC(18,4) NOT NULL,
	amount_tendered NUMERIC(18,4) NOT NULL,
	change_due      NUMERIC(18,4) NOT NULL,
	cashier         TEXT NOT NULL,
	lines           JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS sales_ledger_created_at_idx ON sales_ledger (created_at DESC);
`

type Store struct {
	pool *pgxpool.Pool
}

// New connects, registers the NUMERIC codec on every pooled connection and
// creates the tables if they do not exist.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 10 * time.Minute
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM pos_snapshots WHERE key = $1`, key).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", key, err)
	}
	return payload, nil
}

func (s *Store) Save(ctx context.Context, key string, payload []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pos_snapshots (key, payload, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
	`, key, payload)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", key, describe(err))
	}
	return nil
}

// ArchiveSale copies a committed sale into sales_ledger. Archiving the same
// sale twice is a no-op.
func (s *Store) ArchiveSale(ctx context.Context, sale domain.Sale) error {
	lines, err := json.Marshal(sale.Lines)
	if err != nil {
		return fmt.Errorf("encode sale lines: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO sales_ledger (
			id, receipt_number, customer_id, payment_method,
			total, amount_tendered, change_due, cashier, lines, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`,
		sale.ID,
		sale.ReceiptNumber,
		sale.CustomerID,
		string(sale.PaymentMethod),
		sale.Total,
		sale.AmountTendered,
		sale.Change,
		sale.Cashier,
		lines,
		sale.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("archive sale %s: %w", sale.ID, describe(err))
	}
	return nil
}

// ArchivedSales returns up to limit archived sales, newest first.
func (s *Store) ArchivedSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, receipt_number, customer_id, payment_method,
		       total, amount_tendered, change_due, cashier, lines, created_at
		FROM sales_ledger
		ORDER BY created_at DESC, receipt_number DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, limit)
	for rows.Next() {
		var (
			sale   domain.Sale
			method string
			lines  []byte
		)
		if err := rows.Scan(
			&sale.ID,
			&sale.ReceiptNumber,
			&sale.CustomerID,
			&method,
			&sale.Total,
			&sale.AmountTendered,
			&sale.Change,
			&sale.Cashier,
			&lines,
			&sale.CreatedAt,
		); err != nil {
			return nil, err
		}
		sale.PaymentMethod = domain.PaymentMethod(method)
		if err := json.Unmarshal(lines, &sale.Lines); err != nil {
			return nil, fmt.Errorf("decode lines of sale %s: %w", sale.ID, err)
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func describe(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%s (sqlstate %s): %w", pgErr.Message, pgErr.Code, err)
	}
	return err
}
