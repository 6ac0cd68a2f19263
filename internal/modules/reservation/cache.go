// README: Redis mirror of reservation statuses, fed by store change subscriptions.
package reservation

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"transferhub/internal/types"
)

const statusKeyPrefix = "reservation:status:"
const statusTTL = 24 * time.Hour

// StatusCache keeps the latest status of each reservation in Redis so
// dashboards can poll cheaply without touching the primary store. It is a
// best-effort mirror: write failures are logged, never propagated.
type StatusCache struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewStatusCache(rdb *redis.Client, log *zap.Logger) *StatusCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &StatusCache{rdb: rdb, log: log}
}

// HandleChange is meant to be registered with Store.Subscribe.
func (c *StatusCache) HandleChange(ch Change) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	key := statusKeyPrefix + string(ch.ReservationID)
	if err := c.rdb.Set(ctx, key, string(ch.To), statusTTL).Err(); err != nil {
		c.log.Warn("status cache update failed",
			zap.String("reservation_id", string(ch.ReservationID)),
			zap.Error(err))
	}
}

// Status returns the cached status, or "" on a miss.
func (c *StatusCache) Status(ctx context.Context, id types.ID) (Status, error) {
	v, err := c.rdb.Get(ctx, statusKeyPrefix+string(id)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return Status(v), nil
}
