package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rcliao/flightfinder/internal/model"
)

// Get returns the cached entry for key regardless of its age.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*model.CacheEntry, bool, error) {
	var fetchedAt, provider, payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT fetched_at, provider, itineraries FROM price_cache WHERE query_key = ?`, key).
		Scan(&fetchedAt, &provider, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var itins []model.Itinerary
	if err := json.Unmarshal([]byte(payload), &itins); err != nil {
		return nil, false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return &model.CacheEntry{
		Key:         key,
		FetchedAt:   parseTime(fetchedAt),
		Itineraries: itins,
		Provider:    provider,
	}, true, nil
}

// Put replaces the cache entry for key.
func (s *SQLiteStore) Put(ctx context.Context, key string, itineraries []model.Itinerary, provider string) error {
	if itineraries == nil {
		itineraries = []model.Itinerary{}
	}
	payload, err := json.Marshal(itineraries)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO price_cache (query_key, fetched_at, provider, itineraries) VALUES (?, ?, ?, ?)
		 ON CONFLICT(query_key) DO UPDATE SET
		   fetched_at = excluded.fetched_at,
		   provider = excluded.provider,
		   itineraries = excluded.itineraries`,
		key, formatTime(time.Now()), provider, string(payload))
	return err
}

// CacheStats counts cache entries by freshness against ttl.
type CacheStats struct {
	Entries int `json:"entries"`
	Fresh   int `json:"fresh"`
	Stale   int `json:"stale"`
}

// CacheStats reports how many entries are still within ttl.
func (s *SQLiteStore) CacheStats(ctx context.Context, ttl time.Duration) (*CacheStats, error) {
	cutoff := formatTime(time.Now().Add(-ttl))
	st := &CacheStats{}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM price_cache`).Scan(&st.Entries); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM price_cache WHERE fetched_at >= ?`, cutoff).Scan(&st.Fresh); err != nil {
		return nil, err
	}
	st.Stale = st.Entries - st.Fresh
	return st, nil
}

// ClearCache deletes cached entries. With olderThan > 0 only entries fetched
// before now-olderThan are removed. Returns the number deleted.
func (s *SQLiteStore) ClearCache(ctx context.Context, olderThan time.Duration) (int64, error) {
	var res sql.Result
	var err error
	if olderThan > 0 {
		res, err = s.db.ExecContext(ctx,
			`DELETE FROM price_cache WHERE fetched_at < ?`, formatTime(time.Now().Add(-olderThan)))
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM price_cache`)
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
