package base

import (
	"sync"

	"github.com/go-errors/errors"
)

var ErrCacheMiss = errors.New("cache miss")

// Cashe remembers which reports were already delivered, so a report whose
// local copy could not be removed is not sent twice.
type Cashe interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

func DeliveredKey(id string) string {
	return "crashsentry:delivered:" + id
}

// Memory is the process-local Cashe used when no cache server is configured.
type Memory struct {
	mu    sync.Mutex
	items map[string]string
}

func NewMemory() *Memory {
	return &Memory{items: map[string]string{}}
}

func (m *Memory) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.items[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return v, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = value
	return nil
}
