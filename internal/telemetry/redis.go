// internal/telemetry/redis.go
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig addresses the counter store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration // per-minute buckets expire after TTL
}

// RedisSink keeps cumulative and per-minute counters of alarms and pool
// activity in hashes:
//
//	<prefix>:total             field -> count
//	<prefix>:minute:YYYYMMDDhhmm field -> count (expires)
type RedisSink struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSink connects and pings the server.
func NewRedisSink(ctx context.Context, cfg RedisConfig) (*RedisSink, error) {
	if cfg.Addr == "" {
		return nil, errors.New("telemetry: redis addr required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "thermogate:stats"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := rdb.Ping(pingCtx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("telemetry: redis ping %s: %w", cfg.Addr, err)
	}

	return &RedisSink{rdb: rdb, prefix: strings.Trim(cfg.Prefix, ":"), ttl: cfg.TTL}, nil
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Deliver(ctx context.Context, r Record) error {
	fields := counterFields(r)
	if len(fields) == 0 {
		return nil
	}

	totalKey := s.prefix + ":total"
	bucketKey := minuteKey(s.prefix, r.At)

	pipe := s.rdb.Pipeline()
	for _, f := range fields {
		pipe.HIncrBy(ctx, totalKey, f, 1)
		pipe.HIncrBy(ctx, bucketKey, f, 1)
	}
	pipe.Expire(ctx, bucketKey, s.ttl)

	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisSink) Close() error { return s.rdb.Close() }

// counterFields names the hash fields a record increments.
// Coalesced alarm patterns count as alarm:unknown.
func counterFields(r Record) []string {
	switch r.Type {
	case TypeAlarm:
		if r.Event.Name() == "" {
			return []string{"alarm:unknown"}
		}
		return []string{"alarm:" + r.Event.Name()}
	case TypeSuspend, TypeResume, TypeAdmit, TypeReject:
		return []string{"pool:" + string(r.Type)}
	}
	return nil
}

func minuteKey(prefix string, at time.Time) string {
	if at.IsZero() {
		at = time.Now()
	}
	return fmt.Sprintf("%s:minute:%s", prefix, at.UTC().Format("200601021504"))
}
