package marketdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/frontier/internal/modules/optimization"
)

// SQLiteCache stores msgpack-encoded series in the series_cache table.
type SQLiteCache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
	log zerolog.Logger
}

// CacheStats summarizes the cache contents.
type CacheStats struct {
	Entries int64 `json:"entries"`
	Expired int64 `json:"expired"`
}

// NewSQLiteCache creates a cache over a migrated "cache" database.
func NewSQLiteCache(db *sql.DB, ttl time.Duration, log zerolog.Logger) *SQLiteCache {
	return &SQLiteCache{
		db:  db,
		ttl: ttl,
		now: time.Now,
		log: log.With().Str("component", "series_cache").Logger(),
	}
}

// Get returns the cached series if present and not expired.
func (c *SQLiteCache) Get(ctx context.Context, symbol string, period Period) (*optimization.AssetSeries, bool, error) {
	var payload []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT payload FROM series_cache WHERE symbol = ? AND period = ? AND expires_at > ?`,
		symbol, string(period), c.now().Unix(),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached series %s/%s: %w", symbol, period, err)
	}

	var series optimization.AssetSeries
	if err := msgpack.Unmarshal(payload, &series); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached series %s/%s: %w", symbol, period, err)
	}
	return &series, true, nil
}

// Set stores or replaces the series with a fresh expiry.
func (c *SQLiteCache) Set(ctx context.Context, symbol string, period Period, series optimization.AssetSeries) error {
	payload, err := msgpack.Marshal(&series)
	if err != nil {
		return fmt.Errorf("failed to encode series %s: %w", symbol, err)
	}

	now := c.now()
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO series_cache (symbol, period, payload, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol, period) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		symbol, string(period), payload, now.Unix(), now.Add(c.ttl).Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store series %s/%s: %w", symbol, period, err)
	}
	return nil
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (c *SQLiteCache) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := c.db.ExecContext(ctx,
		`DELETE FROM series_cache WHERE expires_at <= ?`, c.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge series cache: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged rows: %w", err)
	}

	if removed > 0 {
		c.log.Info().Int64("removed", removed).Msg("Purged expired series")
	}
	return removed, nil
}

// Stats counts live and expired entries.
func (c *SQLiteCache) Stats(ctx context.Context) (CacheStats, error) {
	var stats CacheStats
	err := c.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END), 0)
		FROM series_cache`, c.now().Unix(),
	).Scan(&stats.Entries, &stats.Expired)
	if err != nil {
		return CacheStats{}, fmt.Errorf("failed to read cache stats: %w", err)
	}
	return stats, nil
}
