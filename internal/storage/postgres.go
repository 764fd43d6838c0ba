package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"barcopy/internal/model"
)

// DB is the subset of *pgxpool.Pool the postgres store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

const schema = `CREATE TABLE IF NOT EXISTS bars (
	provider    TEXT        NOT NULL,
	instrument  TEXT        NOT NULL,
	resolution  SMALLINT    NOT NULL,
	ts          TIMESTAMPTZ NOT NULL,
	format_mask TEXT        NOT NULL DEFAULT '',
	open        NUMERIC     NOT NULL,
	high        NUMERIC     NOT NULL,
	low         NUMERIC     NOT NULL,
	close       NUMERIC     NOT NULL,
	volume      NUMERIC     NOT NULL,
	PRIMARY KEY (provider, instrument, resolution, ts)
)`

// Postgres stores bars in a single table. Numerics travel as text so decimal values round-trip exactly.
type Postgres struct {
	db DB
}

// NewPostgres wraps an existing pool or transaction-capable client.
func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

// ConnectPostgres opens a pool and verifies the connection.
func ConnectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping failed: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the bars table if missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create bars table: %w", err)
	}
	return nil
}

func (p *Postgres) GetBarCount(ctx context.Context, provider, instrument string, res model.Resolution, from, to time.Time) (int, error) {
	const query = `SELECT count(*) FROM bars
		WHERE provider = $1 AND instrument = $2 AND resolution = $3 AND ts >= $4 AND ts <= $5`
	var n int
	if err := p.db.QueryRow(ctx, query, provider, instrument, int16(res), from.UTC(), to.UTC()).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count bars: %w", err)
	}
	return n, nil
}

func (p *Postgres) GetBars(ctx context.Context, provider, instrument string, res model.Resolution, from, to time.Time) ([]model.Bar, error) {
	const query = `SELECT ts, format_mask, open::text, high::text, low::text, close::text, volume::text
		FROM bars
		WHERE provider = $1 AND instrument = $2 AND resolution = $3 AND ts >= $4 AND ts <= $5
		ORDER BY ts ASC`
	rows, err := p.db.Query(ctx, query, provider, instrument, int16(res), from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var ts time.Time
		var mask string
		var vals [5]string
		if err := rows.Scan(&ts, &mask, &vals[0], &vals[1], &vals[2], &vals[3], &vals[4]); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		b := model.Bar{Resolution: res, Timestamp: ts.UTC(), PriceFormatMask: mask}
		dst := [5]*decimal.Decimal{&b.Open, &b.High, &b.Low, &b.Close, &b.Volume}
		for i, s := range vals {
			v, err := decimal.NewFromString(s)
			if err != nil {
				return nil, fmt.Errorf("failed to parse numeric %q: %w", s, err)
			}
			*dst[i] = v
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return bars, nil
}

func (p *Postgres) DeleteBars(ctx context.Context, provider, instrument string, res model.Resolution, from, to time.Time) (int, error) {
	const query = `DELETE FROM bars
		WHERE provider = $1 AND instrument = $2 AND resolution = $3 AND ts >= $4 AND ts <= $5`
	tag, err := p.db.Exec(ctx, query, provider, instrument, int16(res), from.UTC(), to.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete bars: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (p *Postgres) WriteBars(ctx context.Context, provider, instrument string, res model.Resolution, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	const query = `INSERT INTO bars (provider, instrument, resolution, ts, format_mask, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7::text::numeric, $8::text::numeric, $9::text::numeric, $10::text::numeric)
		ON CONFLICT (provider, instrument, resolution, ts) DO UPDATE SET
			format_mask = EXCLUDED.format_mask, open = EXCLUDED.open, high = EXCLUDED.high,
			low = EXCLUDED.low, close = EXCLUDED.close, volume = EXCLUDED.volume`

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(query, provider, instrument, int16(res), b.Timestamp.UTC(), b.PriceFormatMask,
			b.Open.String(), b.High.String(), b.Low.String(), b.Close.String(), b.Volume.String())
	}
	br := tx.SendBatch(ctx, batch)
	for range bars {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to write bar batch: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close bar batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit bars: %w", err)
	}
	return nil
}
