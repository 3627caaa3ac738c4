package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rcliao/flightfinder/internal/model"
)

// AddRoutes upserts routes, refreshing last_updated for pairs already cataloged.
// Codes are normalized to uppercase. Returns the number of edges written.
func (s *SQLiteStore) AddRoutes(ctx context.Context, edges []model.RouteEdge) (int, error) {
	if len(edges) == 0 {
		return 0, nil
	}
	now := formatTime(time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO routes (airline_code, origin, destination, last_updated)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(airline_code, origin, destination) DO UPDATE SET last_updated = excluded.last_updated`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	written := 0
	for _, e := range edges {
		origin := model.NormalizeAirport(e.Origin)
		dest := model.NormalizeAirport(e.Destination)
		if origin == "" || dest == "" {
			continue
		}
		updated := now
		if !e.LastUpdated.IsZero() {
			updated = formatTime(e.LastUpdated)
		}
		if _, err := stmt.ExecContext(ctx, model.NormalizeAirport(e.Carrier), origin, dest, updated); err != nil {
			return written, fmt.Errorf("insert route %s-%s: %w", origin, dest, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return written, nil
}

// DestinationsFrom returns the distinct destinations reachable from airport, sorted.
func (s *SQLiteStore) DestinationsFrom(ctx context.Context, airport string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT destination FROM routes WHERE origin = ? ORDER BY destination`,
		model.NormalizeAirport(airport))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dests := []string{}
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dests = append(dests, d)
	}
	return dests, rows.Err()
}

// RoutesFrom returns every cataloged edge departing airport.
func (s *SQLiteStore) RoutesFrom(ctx context.Context, airport string) ([]model.RouteEdge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT airline_code, origin, destination, last_updated FROM routes
		 WHERE origin = ? ORDER BY destination, airline_code`,
		model.NormalizeAirport(airport))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []model.RouteEdge
	for rows.Next() {
		e, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// CountRoutes returns the number of cataloged edges.
func (s *SQLiteStore) CountRoutes(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM routes`).Scan(&n)
	return n, err
}

// ClearRoutes removes every cataloged edge.
func (s *SQLiteStore) ClearRoutes(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM routes`)
	return err
}

func scanRoute(row scanner) (model.RouteEdge, error) {
	var e model.RouteEdge
	var updated string
	if err := row.Scan(&e.Carrier, &e.Origin, &e.Destination, &updated); err != nil {
		return e, err
	}
	e.LastUpdated = parseTime(updated)
	return e, nil
}
