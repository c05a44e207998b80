package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	logx "notifylog/pkg/logx"
)

// DefaultRedisKey holds the history document when Config.Key is empty.
const DefaultRedisKey = "notifylog:history"

// redisStore keeps the history document under a single key. SET replaces
// the value atomically, which gives Save its all-or-nothing behavior.
type redisStore struct {
	rdb *redis.Client
	key string
	log logx.Logger
}

func openRedis(cfg Config, log logx.Logger) (Store, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	key := strings.TrimSpace(cfg.Key)
	if key == "" {
		key = DefaultRedisKey
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	return newRedisStore(rdb, key, log), nil
}

func newRedisStore(rdb *redis.Client, key string, log logx.Logger) *redisStore {
	return &redisStore{rdb: rdb, key: key, log: log.With(logx.String("key", key))}
}

func (s *redisStore) Load(ctx context.Context) ([]Record, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		s.log.Debug("no history key yet")
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get history: %w", err)
	}
	return decodeDocument(data)
}

func (s *redisStore) Save(ctx context.Context, recs []Record) error {
	data, err := encodeDocument(recs)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set history: %w", err)
	}
	return nil
}

func (s *redisStore) Close() error {
	return s.rdb.Close()
}
