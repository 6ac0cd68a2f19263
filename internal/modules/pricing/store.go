// README: Tariff store backed by PostgreSQL with a Redis read-through cache.
package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const tariffCacheKey = "tariff:active"
const tariffCacheTTL = 5 * time.Minute

// Store loads the active tariff from Postgres, caching it in Redis. When no
// tariff row exists the compiled-in default is served, so a fresh database
// still prices trips.
type Store struct {
	db       *pgxpool.Pool
	cache    *redis.Client
	fallback Tariff
}

func NewStore(db *pgxpool.Pool, cache *redis.Client, fallback Tariff) *Store {
	return &Store{db: db, cache: cache, fallback: fallback}
}

func (s *Store) Active(ctx context.Context) (Tariff, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, tariffCacheKey).Bytes(); err == nil {
			var t Tariff
			if json.Unmarshal(raw, &t) == nil {
				return t, nil
			}
		}
	}

	var raw []byte
	err := s.db.QueryRow(ctx, `
		SELECT data FROM tariffs
		WHERE active
		ORDER BY created_at DESC
		LIMIT 1`,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.fallback, nil
	}
	if err != nil {
		return Tariff{}, err
	}

	var t Tariff
	if err := json.Unmarshal(raw, &t); err != nil {
		return Tariff{}, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, tariffCacheKey, raw, tariffCacheTTL).Err()
	}
	return t, nil
}

// StaticSource serves a fixed tariff; used in-memory mode and in tests.
type StaticSource struct {
	Tariff Tariff
}

func (s StaticSource) Active(context.Context) (Tariff, error) {
	return s.Tariff, nil
}
