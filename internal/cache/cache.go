// Package cache is the best-effort key-value mirror for rendered post
// payloads, backed by an embedded starskey store. Starskey has no native
// TTL, so expiry travels inside the stored envelope and expired entries are
// dropped on read.
package cache

import (
	"encoding/json"
	"time"

	"github.com/starskey-io/starskey"
)

type Cache struct {
	db *starskey.Starskey
}

type envelope struct {
	ExpiresAt time.Time       `json:"expires_at"`
	Payload   json.RawMessage `json:"payload"`
}

func Open(dir string) (*Cache, error) {
	db, err := starskey.Open(&starskey.Config{
		Permission:        0755,
		Directory:         dir,
		FlushThreshold:    8 * 1024 * 1024,
		MaxLevel:          3,
		SizeFactor:        10,
		BloomFilter:       true,
		Compression:       true,
		CompressionOption: starskey.SnappyCompression,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Set(key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	data, err := json.Marshal(envelope{
		ExpiresAt: time.Now().Add(ttl),
		Payload:   payload,
	})
	if err != nil {
		return err
	}

	return c.db.Update(func(txn *starskey.Txn) error {
		txn.Put([]byte(key), data)
		return nil
	})
}

// Get unmarshals the cached value into dest. An expired entry counts as a
// miss and is deleted.
func (c *Cache) Get(key string, dest any) (bool, error) {
	value, err := c.db.Get([]byte(key))
	if err != nil || value == nil {
		return false, err
	}

	var env envelope
	if err := json.Unmarshal(value, &env); err != nil {
		// Corrupted entry; treat as a miss.
		_ = c.db.Delete([]byte(key))
		return false, nil
	}
	if time.Now().After(env.ExpiresAt) {
		_ = c.db.Delete([]byte(key))
		return false, nil
	}

	if err := json.Unmarshal(env.Payload, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) Delete(key string) error {
	return c.db.Delete([]byte(key))
}

func (c *Cache) Close() error {
	return c.db.Close()
}
