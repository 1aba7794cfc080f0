package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrOTPMissing 验证码不存在或已过期
var ErrOTPMissing = errors.New("otp not found")

// OTPStore keeps hashed one-time passwords, the verified marker and the resend cooldown per email.
type OTPStore interface {
	SaveCode(ctx context.Context, email, hash string, ttl time.Duration) error
	CodeHash(ctx context.Context, email string) (string, error)
	DeleteCode(ctx context.Context, email string) error
	// AcquireCooldown 返回 false 表示冷却期内
	AcquireCooldown(ctx context.Context, email string, cooldown time.Duration) (bool, error)
	MarkVerified(ctx context.Context, email string, ttl time.Duration) error
	IsVerified(ctx context.Context, email string) (bool, error)
	ClearVerified(ctx context.Context, email string) error
}

type RedisOTPStore struct {
	Redis *redis.Client
}

func NewRedisOTPStore(rdb *redis.Client) *RedisOTPStore {
	return &RedisOTPStore{Redis: rdb}
}

func otpKey(kind, email string) string {
	return "otp:" + kind + ":" + email
}

func (s *RedisOTPStore) SaveCode(ctx context.Context, email, hash string, ttl time.Duration) error {
	return s.Redis.Set(ctx, otpKey("code", email), hash, ttl).Err()
}

func (s *RedisOTPStore) CodeHash(ctx context.Context, email string) (string, error) {
	hash, err := s.Redis.Get(ctx, otpKey("code", email)).Result()
	if err == redis.Nil {
		return "", ErrOTPMissing
	}
	return hash, err
}

func (s *RedisOTPStore) DeleteCode(ctx context.Context, email string) error {
	return s.Redis.Del(ctx, otpKey("code", email)).Err()
}

func (s *RedisOTPStore) AcquireCooldown(ctx context.Context, email string, cooldown time.Duration) (bool, error) {
	if cooldown <= 0 {
		return true, nil
	}
	return s.Redis.SetNX(ctx, otpKey("cooldown", email), "1", cooldown).Result()
}

func (s *RedisOTPStore) MarkVerified(ctx context.Context, email string, ttl time.Duration) error {
	return s.Redis.Set(ctx, otpKey("verified", email), "verified", ttl).Err()
}

func (s *RedisOTPStore) IsVerified(ctx context.Context, email string) (bool, error) {
	n, err := s.Redis.Exists(ctx, otpKey("verified", email)).Result()
	return n > 0, err
}

func (s *RedisOTPStore) ClearVerified(ctx context.Context, email string) error {
	return s.Redis.Del(ctx, otpKey("verified", email)).Err()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashOTP(email, code string) string {
	sum := sha256.Sum256([]byte(email + ":" + code))
	return hex.EncodeToString(sum[:])
}

func otpMatches(hash, email, code string) bool {
	return subtle.ConstantTimeCompare([]byte(hash), []byte(hashOTP(email, code))) == 1
}

// generateOTP 生成定长数字验证码
func generateOTP(length int) (string, error) {
	if length <= 0 {
		length = 6
	}
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
