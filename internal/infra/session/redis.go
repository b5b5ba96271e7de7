package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bryanwahyu/assessment-hub/internal/domain/assessment"
)

const (
	keyPrefix  = "assess:session:"
	defaultTTL = 30 * time.Minute
)

// RedisStore keeps sessions as JSON with a sliding TTL: every Save renews it.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func key(tool, id string) string { return keyPrefix + tool + ":" + id }

func (s *RedisStore) Save(ctx context.Context, sess *assessment.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.client.Set(ctx, key(sess.Tool, sess.ID), data, s.ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, tool, id string) (*assessment.Session, error) {
	data, err := s.client.Get(ctx, key(tool, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", assessment.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var sess assessment.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, tool, id string) error {
	return s.client.Del(ctx, key(tool, id)).Err()
}

// Check implements middleware.HealthChecker.
func (s *RedisStore) Check(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Connect opens a client and verifies it with a ping.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx2).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}
