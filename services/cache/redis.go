// Package cachesvc keeps short-lived state such as pending sign-in codes.
package cachesvc

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/user"
)

const (
	otpKeyPrefix = "otp:"
	hashField    = "hash"
	attemptField = "attempts"
)

type redisOTPStore struct {
	rdb *redis.Client
}

var _ user.OTPStore = (*redisOTPStore)(nil)

func NewRedisClient(conf *core.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
}

// NewRedisOTPStore stores each pending code as a hash expiring with the code.
func NewRedisOTPStore(rdb *redis.Client) user.OTPStore {
	return &redisOTPStore{rdb: rdb}
}

func otpKey(email string) string {
	return otpKeyPrefix + email
}

func (s *redisOTPStore) Save(ctx context.Context, email string, hash []byte, ttl time.Duration) error {
	key := otpKey(email)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, hashField, hash, attemptField, 0)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return errors.Wrap(err, "saving otp")
}

func (s *redisOTPStore) Get(ctx context.Context, email string) (user.OTPEntry, error) {
	vals, err := s.rdb.HGetAll(ctx, otpKey(email)).Result()
	if err != nil {
		return user.OTPEntry{}, errors.Wrap(err, "loading otp")
	}
	hash, ok := vals[hashField]
	if !ok {
		return user.OTPEntry{}, user.ErrOTPNotFound
	}
	entry := user.OTPEntry{Hash: []byte(hash)}
	if n, ok := vals[attemptField]; ok {
		if entry.Attempts, err = strconv.Atoi(n); err != nil {
			return user.OTPEntry{}, errors.Wrap(err, "parsing otp attempts")
		}
	}
	return entry, nil
}

func (s *redisOTPStore) IncrAttempts(ctx context.Context, email string) (int, error) {
	key := otpKey(email)
	exists, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return 0, errors.Wrap(err, "checking otp")
	}
	if exists == 0 {
		return 0, user.ErrOTPNotFound
	}
	n, err := s.rdb.HIncrBy(ctx, key, attemptField, 1).Result()
	if err != nil {
		return 0, errors.Wrap(err, "counting otp attempt")
	}
	return int(n), nil
}

func (s *redisOTPStore) Delete(ctx context.Context, email string) error {
	return errors.Wrap(s.rdb.Del(ctx, otpKey(email)).Err(), "deleting otp")
}
