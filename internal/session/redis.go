package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "support:auth:v1:"

// RedisStore shares auth sessions between server replicas. Keys expire together
// with the token they hold.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	if redisURL == "" {
		return nil, errors.New("redis URL must be provided")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse Redis URL")
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}
	return NewRedisStoreWithClient(client), nil
}

func NewRedisStoreWithClient(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (rs *RedisStore) SaveAuth(ctx context.Context, auth Auth) error {
	if err := requireID(auth.SessionID); err != nil {
		return err
	}
	var ttl time.Duration
	if !auth.ExpiresAt.IsZero() {
		ttl = time.Until(auth.ExpiresAt)
		if ttl <= 0 {
			return rs.DeleteAuth(ctx, auth.SessionID)
		}
	}
	now := time.Now().UTC()
	if auth.CreatedAt.IsZero() {
		auth.CreatedAt = now
	}
	auth.UpdatedAt = now
	b, err := json.Marshal(auth)
	if err != nil {
		return err
	}
	return errors.Wrap(rs.client.Set(ctx, redisKeyPrefix+auth.SessionID, b, ttl).Err(), "failed to save auth session")
}

func (rs *RedisStore) GetAuth(ctx context.Context, sessionID string) (*Auth, error) {
	if err := requireID(sessionID); err != nil {
		return nil, err
	}
	b, err := rs.client.Get(ctx, redisKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get auth session")
	}
	var auth Auth
	if err := json.Unmarshal(b, &auth); err != nil {
		return nil, errors.Wrap(err, "failed to decode auth session")
	}
	return &auth, nil
}

func (rs *RedisStore) DeleteAuth(ctx context.Context, sessionID string) error {
	if err := requireID(sessionID); err != nil {
		return err
	}
	return errors.Wrap(rs.client.Del(ctx, redisKeyPrefix+sessionID).Err(), "failed to delete auth session")
}

func (rs *RedisStore) HealthCheck(ctx context.Context) error {
	return rs.client.Ping(ctx).Err()
}

func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
