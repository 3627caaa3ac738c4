package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/flightfinder/internal/model"
)

// Record appends one price row per itinerary returned by q.
func (s *SQLiteStore) Record(ctx context.Context, q model.SearchQuery, itineraries []model.Itinerary, fetchedAt time.Time) error {
	if len(itineraries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	key := q.Key()
	route := q.Route()
	at := formatTime(fetchedAt)
	for _, it := range itineraries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO prices (id, query_key, route, price, currency, booking_type, airline, fetched_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			s.newID(), key, route, int64(it.TotalPrice), it.Currency, string(q.Kind.BookingKind()),
			primaryCarrier(it), at)
		if err != nil {
			return fmt.Errorf("insert price: %w", err)
		}
	}
	return tx.Commit()
}

func primaryCarrier(it model.Itinerary) *string {
	if len(it.OutboundLegs) == 0 || it.OutboundLegs[0].Carrier == "" {
		return nil
	}
	c := it.OutboundLegs[0].Carrier
	return &c
}

// RecordSearch logs one user search invocation and returns its ID.
func (s *SQLiteStore) RecordSearch(ctx context.Context, r SearchRecord) (string, error) {
	id := s.newID()
	var ret *string
	if r.ReturnDate != "" {
		ret = &r.ReturnDate
	}
	params := r.ParamsJSON
	if params == "" {
		params = "{}"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO searches (id, timestamp, origins, destination, depart_date, return_date, params_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, formatTime(time.Now()), strings.Join(r.Origins, ","), r.Destination, r.DepartDate, ret, params)
	if err != nil {
		return "", fmt.Errorf("insert search: %w", err)
	}
	return id, nil
}

// PriceTrend aggregates recorded prices for a route per day, oldest first.
func (s *SQLiteStore) PriceTrend(ctx context.Context, p TrendParams) ([]TrendPoint, error) {
	route := model.NormalizeAirport(p.Origin) + "-" + model.NormalizeAirport(p.Destination)
	where := []string{"route = ?"}
	args := []interface{}{route}
	if !p.Since.IsZero() {
		where = append(where, "fetched_at >= ?")
		args = append(args, formatTime(p.Since))
	}
	if p.BookingKind != "" {
		where = append(where, "booking_type = ?")
		args = append(args, p.BookingKind)
	}

	query := fmt.Sprintf(`
		SELECT substr(fetched_at, 1, 10) AS day, MIN(price), AVG(price), MAX(price), COUNT(*)
		FROM prices WHERE %s
		GROUP BY day ORDER BY day`, strings.Join(where, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []TrendPoint
	for rows.Next() {
		var tp TrendPoint
		var minP, maxP int64
		var avg float64
		if err := rows.Scan(&tp.Day, &minP, &avg, &maxP, &tp.Samples); err != nil {
			return nil, err
		}
		tp.Min = model.Money(minP)
		tp.Max = model.Money(maxP)
		tp.Avg = model.Money(int64(avg + 0.5))
		points = append(points, tp)
	}
	return points, rows.Err()
}
