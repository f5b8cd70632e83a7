package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisScanCount はSCAN 1回あたりのヒント件数。
const redisScanCount = 200

// RedisStore はRedisを使用したEntityStore。
// キー名にはnamespaceを前置し、同一DB内の他用途と衝突しないようにする。
type RedisStore struct {
	client    *redis.Client
	namespace string
}

// NewRedisClient はRedisクライアントを生成し、疎通を確認する。
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// NewRedisStore はRedisStoreを生成する。
func NewRedisStore(client *redis.Client, namespace string) *RedisStore {
	return &RedisStore{client: client, namespace: namespace}
}

func (s *RedisStore) key(k string) string {
	return s.namespace + k
}

// Get は指定キーの値を取得する。見つからない場合はnilを返す。
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get key from redis: %w", err)
	}
	return val, nil
}

// Set は指定キーに値を書き込む。TTLは設定しない。
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set key in redis: %w", err)
	}
	return nil
}

// Delete は指定キーを削除する。
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete key from redis: %w", err)
	}
	return nil
}

// ScanPrefix はSCAN MATCHでキーを列挙し、MGETで値をまとめて取得する。
// SCANは同じキーを複数回返しうるため重複を除く。
func (s *RedisStore) ScanPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	pattern := escapeRedisPattern(s.key(prefix)) + "*"

	seen := make(map[string]struct{})
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, redisScanCount).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan redis keys: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to mget redis keys: %w", err)
	}

	entries := make([]Entry, 0, len(keys))
	for i, v := range values {
		// SCANとMGETの間に削除されたキー
		str, ok := v.(string)
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			Key:   strings.TrimPrefix(keys[i], s.namespace),
			Value: []byte(str),
		})
	}
	return entries, nil
}

// CompareAndSwap はWATCH/MULTIで現在値を確認してから書き込む。
// WATCH中に他クライアントが書き込んだ場合もfalseを返す。
func (s *RedisStore) CompareAndSwap(ctx context.Context, key string, old, new []byte) (bool, error) {
	k := s.key(key)
	errMismatch := errors.New("value mismatch")

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			return errMismatch
		}
		if err != nil {
			return err
		}
		if !bytes.Equal(cur, old) {
			return errMismatch
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, new, 0)
			return nil
		})
		return err
	}, k)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errMismatch), errors.Is(err, redis.TxFailedErr):
		return false, nil
	default:
		return false, fmt.Errorf("failed to compare and swap in redis: %w", err)
	}
}

// Close はRedisクライアントを閉じる。
func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// escapeRedisPattern はSCAN MATCHのglob特殊文字をエスケープする。
func escapeRedisPattern(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\', '^':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// compile-time interface check
var _ EntityStore = (*RedisStore)(nil)
