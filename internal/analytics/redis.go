// Package analytics records per-rule execution counts in Redis so the
// dashboard can chart automation activity without scanning the log table.
// Writes are best-effort: a failed write never affects dispatch.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/draftwell/autopilot/internal/domain"
)

// DefaultRetention is how long execution buckets are kept.
const DefaultRetention = 30 * 24 * time.Hour

type RedisSink struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client, retention: DefaultRetention}
}

// WithRetention overrides the bucket TTL.
func (s *RedisSink) WithRetention(d time.Duration) *RedisSink {
	s.retention = d
	return s
}

// Record increments the hourly execution bucket for the rule and status.
func (s *RedisSink) Record(ctx context.Context, ruleID string, status domain.ExecutionStatus, at time.Time) error {
	key := buildKey(ruleID, status, at)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

func buildKey(ruleID string, status domain.ExecutionStatus, t time.Time) string {
	bucket := t.UTC().Format("2006010215")
	return fmt.Sprintf("rule:%s:%s:%s", ruleID, status, bucket)
}
