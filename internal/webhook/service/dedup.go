package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gainsai/gains-backend/internal/webhook/domain"
	"github.com/redis/go-redis/v9"
)

// Key: revenuecat:event:{event_id}
const dedupKeyPrefix = "revenuecat:event:"

type redisDeduplicator struct {
	client *redis.Client
}

type nopDeduplicator struct{}

// NewDeduplicator returns a Redis-backed deduplicator, or one that claims
// every event when Redis is not configured.
func NewDeduplicator(client *redis.Client) domain.Deduplicator {
	if client == nil {
		return nopDeduplicator{}
	}
	return &redisDeduplicator{client: client}
}

func dedupKey(eventID string) string {
	return fmt.Sprintf("%s%s", dedupKeyPrefix, eventID)
}

func (d *redisDeduplicator) Claim(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	return d.client.SetNX(ctx, dedupKey(eventID), time.Now().UTC().Unix(), ttl).Result()
}

func (d *redisDeduplicator) Release(ctx context.Context, eventID string) error {
	return d.client.Del(ctx, dedupKey(eventID)).Err()
}

func (nopDeduplicator) Claim(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}

func (nopDeduplicator) Release(context.Context, string) error {
	return nil
}
