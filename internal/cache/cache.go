// Package cache holds the short-lived read snapshot served by GET
// /api/data. The cache is best-effort: any Redis failure falls through to
// storage.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	snapshotKey = "licznik:snapshot"
	snapshotTTL = 30 * time.Second
)

// Snapshot caches the serialized counters+entries payload between reads and
// is invalidated by every mutation.
type Snapshot interface {
	Get(ctx context.Context) ([]byte, bool)
	Set(ctx context.Context, payload []byte)
	Invalidate(ctx context.Context)
}

// Redis is the production Snapshot backed by a Redis client.
type Redis struct {
	client *redis.Client
	logger *zap.SugaredLogger
}

// NewRedis wraps an already-connected client.
func NewRedis(client *redis.Client, logger *zap.SugaredLogger) *Redis {
	return &Redis{client: client, logger: logger}
}

func (r *Redis) Get(ctx context.Context) ([]byte, bool) {
	data, err := r.client.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warnw("snapshot cache read failed", "error", err)
		}
		return nil, false
	}
	return data, true
}

func (r *Redis) Set(ctx context.Context, payload []byte) {
	if err := r.client.Set(ctx, snapshotKey, payload, snapshotTTL).Err(); err != nil {
		r.logger.Warnw("snapshot cache write failed", "error", err)
	}
}

func (r *Redis) Invalidate(ctx context.Context) {
	if err := r.client.Del(ctx, snapshotKey).Err(); err != nil {
		r.logger.Warnw("snapshot cache invalidation failed", "error", err)
	}
}

// Disabled is the Snapshot used when no Redis address is configured.
type Disabled struct{}

func (Disabled) Get(ctx context.Context) ([]byte, bool) { return nil, false }
func (Disabled) Set(ctx context.Context, payload []byte) {}
func (Disabled) Invalidate(ctx context.Context)          {}
