package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/merchantlens/merchantlens/internal/analytics"
	"github.com/merchantlens/merchantlens/internal/config"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// PostgresStore reads from a merchants table and a daily metrics table:
//
//	merchants(id text primary key, name text, category text)
//	<metrics>(merchant_id text, day date, transactions numeric, revenue numeric,
//	          customers numeric, cashback numeric)
//
// Metric columns are nullable; a NULL reads as a missing value.
type PostgresStore struct {
	db             *sqlx.DB
	queryTimeout   time.Duration
	metricsTable   string
	merchantsTable string
}

type dailyRow struct {
	Day          time.Time       `db:"day"`
	Transactions sql.NullFloat64 `db:"transactions"`
	Revenue      sql.NullFloat64 `db:"revenue"`
	Customers    sql.NullFloat64 `db:"customers"`
	Cashback     sql.NullFloat64 `db:"cashback"`
}

// NewPostgresStore connects to Postgres and verifies the connection
func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	for _, table := range []string{cfg.MetricsTable, cfg.MerchantsTable} {
		if !identifierPattern.MatchString(table) {
			return nil, fmt.Errorf("invalid table name: %q", table)
		}
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return &PostgresStore{
		db:             db,
		queryTimeout:   cfg.QueryTimeout,
		metricsTable:   cfg.MetricsTable,
		merchantsTable: cfg.MerchantsTable,
	}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping checks the connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.db.PingContext(ctx)
}

// DailyMetrics implements MetricStore
func (s *PostgresStore) DailyMetrics(ctx context.Context, merchantID string, from, to time.Time) ([]analytics.DailyRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT day, transactions::float8 AS transactions, revenue::float8 AS revenue,
		       customers::float8 AS customers, cashback::float8 AS cashback
		FROM %s
		WHERE merchant_id = $1 AND day BETWEEN $2 AND $3
		ORDER BY day ASC`, s.metricsTable)

	var rows []dailyRow
	if err := s.db.SelectContext(ctx, &rows, query, merchantID, truncateDay(from), truncateDay(to)); err != nil {
		return nil, fmt.Errorf("failed to query daily metrics: %w", err)
	}

	records := make([]analytics.DailyRecord, len(rows))
	for i, r := range rows {
		records[i] = analytics.DailyRecord{
			Date:         r.Day,
			Transactions: nullable(r.Transactions),
			Revenue:      nullable(r.Revenue),
			Customers:    nullable(r.Customers),
			Cashback:     nullable(r.Cashback),
		}
	}
	return records, nil
}

// Merchant implements MetricStore
func (s *PostgresStore) Merchant(ctx context.Context, merchantID string) (*analytics.Merchant, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT id, COALESCE(name, '') AS name, COALESCE(category, '') AS category FROM %s WHERE id = $1`,
		s.merchantsTable)

	var m analytics.Merchant
	if err := s.db.GetContext(ctx, &m, query, merchantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrMerchantNotFound, merchantID)
		}
		return nil, fmt.Errorf("failed to get merchant: %w", err)
	}
	return &m, nil
}

// Peers implements MetricStore
func (s *PostgresStore) Peers(ctx context.Context, merchantID string, limit int) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT p.id
		FROM %[1]s p
		JOIN %[1]s m ON m.id = $1
		WHERE p.category = m.category AND p.id <> m.id
		ORDER BY p.id ASC
		LIMIT $2`, s.merchantsTable)

	peers := make([]string, 0)
	if err := s.db.SelectContext(ctx, &peers, query, merchantID, limit); err != nil {
		return nil, fmt.Errorf("failed to query peers: %w", err)
	}
	return peers, nil
}

// ListMerchants implements MetricStore
func (s *PostgresStore) ListMerchants(ctx context.Context) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ids := make([]string, 0)
	if err := s.db.SelectContext(ctx, &ids, fmt.Sprintf(`SELECT id FROM %s ORDER BY id ASC`, s.merchantsTable)); err != nil {
		return nil, fmt.Errorf("failed to list merchants: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
