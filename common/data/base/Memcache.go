package base

import (
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/go-errors/errors"
)

type Memcache struct {
	client     *memcache.Client
	expiration time.Duration
}

func (m *Memcache) Get(key string) (string, error) {
	item, err := m.client.Get(key)
	if err == memcache.ErrCacheMiss {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", errors.Wrap(err, 0)
	}

	return string(item.Value), nil
}

func (m *Memcache) Set(key, value string) error {
	err := m.client.Set(&memcache.Item{
		Key:        key,
		Value:      []byte(value),
		Expiration: int32(m.expiration / time.Second),
	})
	if err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}

func NewMemcache(servers []string, expiration time.Duration) (*Memcache, error) {
	if len(servers) == 0 {
		return nil, errors.New("no memcache servers")
	}
	return &Memcache{memcache.New(servers...), expiration}, nil
}
