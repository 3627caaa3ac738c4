package store

import (
	"context"
	"os"
	"time"
)

// Stats holds database statistics.
type Stats struct {
	DBPath      string       `json:"db_path"`
	DBSizeBytes int64        `json:"db_size_bytes"`
	Routes      int          `json:"routes"`
	Airports    int          `json:"airports"`
	Cache       CacheStats   `json:"cache"`
	Searches    int          `json:"searches"`
	Prices      int          `json:"prices"`
	TopRoutes   []RouteCount `json:"top_routes"`
}

// RouteCount is the number of recorded prices for one route.
type RouteCount struct {
	Route string `json:"route"`
	Count int    `json:"count"`
}

// Stats returns database statistics; ttl splits cache entries into fresh and stale.
func (s *SQLiteStore) Stats(ctx context.Context, ttl time.Duration) (*Stats, error) {
	st := &Stats{DBPath: s.path}

	if info, err := os.Stat(s.path); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM routes`).Scan(&st.Routes)
	s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT origin) FROM routes`).Scan(&st.Airports)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM searches`).Scan(&st.Searches)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM prices`).Scan(&st.Prices)

	if cs, err := s.CacheStats(ctx, ttl); err == nil {
		st.Cache = *cs
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT route, COUNT(*) AS cnt FROM prices
		GROUP BY route ORDER BY cnt DESC LIMIT 10`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var rc RouteCount
		rows.Scan(&rc.Route, &rc.Count)
		st.TopRoutes = append(st.TopRoutes, rc)
	}

	return st, nil
}
