package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rcliao/flightfinder/internal/model"
)

// PostgresHistory is a HistorySink writing to a shared PostgreSQL database,
// for installations that collect price history from several machines.
type PostgresHistory struct {
	pool *pgxpool.Pool
}

// NewPostgresHistory connects to databaseURL and creates the history table.
func NewPostgresHistory(ctx context.Context, databaseURL string) (*PostgresHistory, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS price_history (
			id           BIGSERIAL PRIMARY KEY,
			query_key    TEXT NOT NULL,
			route        TEXT NOT NULL,
			price_cents  BIGINT NOT NULL,
			currency     TEXT NOT NULL,
			booking_type TEXT NOT NULL,
			airline      TEXT,
			fetched_at   TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_price_history_route ON price_history(route, fetched_at);`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create price_history: %w", err)
	}

	return &PostgresHistory{pool: pool}, nil
}

// Record inserts one row per itinerary in a single batch.
func (h *PostgresHistory) Record(ctx context.Context, q model.SearchQuery, itineraries []model.Itinerary, fetchedAt time.Time) error {
	if len(itineraries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, it := range itineraries {
		batch.Queue(
			`INSERT INTO price_history (query_key, route, price_cents, currency, booking_type, airline, fetched_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			q.Key(), q.Route(), int64(it.TotalPrice), it.Currency, string(q.Kind.BookingKind()),
			primaryCarrier(it), fetchedAt.UTC(),
		)
	}

	br := h.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range itineraries {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert price_history: %w", err)
		}
	}
	return nil
}

// PriceTrend aggregates recorded prices for a route per day, oldest first.
func (h *PostgresHistory) PriceTrend(ctx context.Context, p TrendParams) ([]TrendPoint, error) {
	route := model.NormalizeAirport(p.Origin) + "-" + model.NormalizeAirport(p.Destination)
	rows, err := h.pool.Query(ctx,
		`SELECT to_char(fetched_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
		        MIN(price_cents), ROUND(AVG(price_cents))::BIGINT, MAX(price_cents), COUNT(*)
		 FROM price_history
		 WHERE route = $1 AND fetched_at >= $2 AND ($3 = '' OR booking_type = $3)
		 GROUP BY day ORDER BY day`,
		route, p.Since.UTC(), p.BookingKind)
	if err != nil {
		return nil, fmt.Errorf("query price_history: %w", err)
	}
	defer rows.Close()

	var points []TrendPoint
	for rows.Next() {
		var tp TrendPoint
		var minP, avgP, maxP int64
		var samples int64
		if err := rows.Scan(&tp.Day, &minP, &avgP, &maxP, &samples); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		tp.Min, tp.Avg, tp.Max = model.Money(minP), model.Money(avgP), model.Money(maxP)
		tp.Samples = int(samples)
		points = append(points, tp)
	}
	return points, rows.Err()
}

// Close closes the connection pool.
func (h *PostgresHistory) Close() {
	h.pool.Close()
}
