package artifact

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisTTL = time.Hour

// RedisStore keeps artifacts in Redis with a TTL so abandoned blobs expire on their own.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) keyBlob(key string) string { return "artifact:" + strings.TrimSpace(key) }

func (s *RedisStore) Put(ctx context.Context, name, contentType string, data []byte) (*Artifact, error) {
	a := newArtifact(name, contentType, int64(len(data)))
	k := s.keyBlob(a.Key)
	if err := s.rdb.Set(ctx, k, data, s.ttl).Err(); err != nil {
		return nil, err
	}
	a.Location = "redis:" + k
	return a, nil
}

func (s *RedisStore) Open(ctx context.Context, a *Artifact) (io.ReadCloser, error) {
	if a == nil {
		return nil, ErrNilArtifact
	}
	raw, err := s.rdb.Get(ctx, s.keyBlob(a.Key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (s *RedisStore) Release(ctx context.Context, a *Artifact) error {
	if a == nil {
		return nil
	}
	return s.rdb.Del(ctx, s.keyBlob(a.Key)).Err()
}
