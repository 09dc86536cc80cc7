package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"IssueTriage/internal/domain"
)

const defaultRedisPrefix = "issuetriage:record:"

// RedisStore keeps each record under <prefix><num>.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// OpenRedisStore connects to addr and pings it.
func OpenRedisStore(ctx context.Context, addr string, db int, prefix string) (*RedisStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis store requires an address")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStore(client, prefix), nil
}

// NewRedisStore wires an existing client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(num int) string {
	return fmt.Sprintf("%s%d", s.prefix, num)
}

// Exists reports whether a key exists for num.
func (s *RedisStore) Exists(ctx context.Context, num int) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(num)).Result()
	if err != nil {
		return false, fmt.Errorf("exists record #%d: %w", num, err)
	}
	return n > 0, nil
}

// Put stores the record with SETNX.
func (s *RedisStore) Put(ctx context.Context, num int, record domain.Record) error {
	raw, err := encode(num, record)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, s.key(num), raw, 0).Result()
	if err != nil {
		return fmt.Errorf("setnx record #%d: %w", num, err)
	}
	if !ok {
		return fmt.Errorf("record #%d: %w", num, ErrAlreadyExists)
	}
	return nil
}

// Get loads the record stored for num.
func (s *RedisStore) Get(ctx context.Context, num int) (domain.Record, error) {
	raw, err := s.client.Get(ctx, s.key(num)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("record #%d: %w", num, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get record #%d: %w", num, err)
	}
	return decode(num, raw)
}

// Known scans all keys under the prefix.
func (s *RedisStore) Known(ctx context.Context) (map[int]struct{}, error) {
	known := make(map[int]struct{})
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		if num, ok := parseNum(strings.TrimPrefix(iter.Val(), s.prefix)); ok {
			known[num] = struct{}{}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	return known, nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
