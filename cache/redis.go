package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"rider-dispatch-system/config"
	"rider-dispatch-system/geohash"
	"rider-dispatch-system/models"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient connects to Redis and checks the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}

func cellSetKey(cell string) string { return fmt.Sprintf("drivers:%s", cell) }
func driverCellKey(id string) string { return fmt.Sprintf("driver:%s:cell", id) }

// AvailabilityCache mirrors Available drivers into one Redis set per geohash cell,
// so other services can look up drivers near a point without asking the core.
type AvailabilityCache struct {
	rdb       *redis.Client
	precision uint
}

func NewAvailabilityCache(rdb *redis.Client) *AvailabilityCache {
	return &AvailabilityCache{rdb: rdb, precision: geohash.CellPrecision}
}

// SyncDriver moves the driver out of its previous cell and, if Available, into
// the cell of its current location.
func (c *AvailabilityCache) SyncDriver(ctx context.Context, d models.Driver) error {
	key := driverCellKey(d.ID)
	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		old, err := tx.Get(ctx, key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if old != "" {
				pipe.SRem(ctx, cellSetKey(old), d.ID)
			}
			if d.Status == models.DriverAvailable {
				cell := geohash.Encode(d.Location.Latitude, d.Location.Longitude, c.precision)
				pipe.SAdd(ctx, cellSetKey(cell), d.ID)
				pipe.Set(ctx, key, cell, 0)
			} else {
				pipe.Del(ctx, key)
			}
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("sync driver %s: %w", d.ID, err)
	}
	return nil
}

// NearbyDrivers returns the ids of cached Available drivers in the cell around
// loc and its eight neighbors, sorted.
func (c *AvailabilityCache) NearbyDrivers(ctx context.Context, loc models.Location) ([]string, error) {
	seen := make(map[string]struct{})
	for _, cell := range geohash.Cells(loc.Latitude, loc.Longitude, c.precision) {
		ids, err := c.rdb.SMembers(ctx, cellSetKey(cell)).Result()
		if err != nil {
			return nil, fmt.Errorf("nearby drivers: %w", err)
		}
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}
	result := make([]string, 0, len(seen))
	for id := range seen {
		result = append(result, id)
	}
	sort.Strings(result)
	return result, nil
}
