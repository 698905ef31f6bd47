package base

import (
	"time"

	"github.com/go-errors/errors"
	"github.com/go-redis/redis"
)

const DefaultExpiration = time.Hour * 24 * 30

type Redis struct {
	client     *redis.Client
	expiration time.Duration
}

func (r *Redis) Get(key string) (string, error) {
	v, err := r.client.Get(key).Result()
	if err == redis.Nil {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", errors.Wrap(err, 0)
	}
	return v, nil
}

func (r *Redis) Set(key, value string) error {
	if err := r.client.Set(key, value, r.expiration).Err(); err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}

func NewRedis(address, password string, expiration time.Duration) (*Redis, error) {
	if len(address) == 0 {
		return nil, errors.New("redis address is not set")
	}
	if expiration <= 0 {
		expiration = DefaultExpiration
	}
	return &Redis{client: redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       0,
	}), expiration: expiration}, nil
}
