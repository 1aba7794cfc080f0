package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// SessionStore 记录被注销的令牌和每个用户当前的令牌版本
type SessionStore interface {
	// Blacklist 保存到令牌自然过期为止
	Blacklist(ctx context.Context, tokenHash string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, tokenHash string) (bool, error)
	SetTokenVersion(ctx context.Context, userID string, version int, ttl time.Duration) error
	// TokenVersion 返回 false 表示没有记录，任何版本都有效
	TokenVersion(ctx context.Context, userID string) (int, bool, error)
}

type RedisSessionStore struct {
	Redis *redis.Client
}

func NewRedisSessionStore(rdb *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{Redis: rdb}
}

func (s *RedisSessionStore) Blacklist(ctx context.Context, tokenHash string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.Redis.Set(ctx, "jwt:blacklist:"+tokenHash, "1", ttl).Err()
}

func (s *RedisSessionStore) IsBlacklisted(ctx context.Context, tokenHash string) (bool, error) {
	n, err := s.Redis.Exists(ctx, "jwt:blacklist:"+tokenHash).Result()
	return n > 0, err
}

func (s *RedisSessionStore) SetTokenVersion(ctx context.Context, userID string, version int, ttl time.Duration) error {
	return s.Redis.Set(ctx, "jwt:version:"+userID, version, ttl).Err()
}

func (s *RedisSessionStore) TokenVersion(ctx context.Context, userID string) (int, bool, error) {
	raw, err := s.Redis.Get(ctx, "jwt:version:"+userID).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
