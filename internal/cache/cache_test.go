package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T) *Cache {
	t.Helper()

	c, err := Open(t.TempDir())
	require.NoError(t, err, "Failed to open cache")
	t.Cleanup(func() { c.Close() })
	return c
}

type payload struct {
	Title string `json:"title"`
	Views int    `json:"views"`
}

func TestSetAndGet(t *testing.T) {
	c := setupCache(t)

	require.NoError(t, c.Set("post:hello", payload{Title: "Hello", Views: 3}, time.Hour))

	var got payload
	hit, err := c.Get("post:hello", &got)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, payload{Title: "Hello", Views: 3}, got)
}

func TestGetMiss(t *testing.T) {
	c := setupCache(t)

	var got payload
	hit, err := c.Get("post:absent", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestExpiredEntryIsMiss(t *testing.T) {
	c := setupCache(t)

	require.NoError(t, c.Set("post:hello", payload{Title: "Hello"}, -time.Second))

	var got payload
	hit, err := c.Get("post:hello", &got)
	require.NoError(t, err)
	assert.False(t, hit, "expired entry must read as a miss")

	// And the tombstone behaves like any other miss on re-read.
	hit, err = c.Get("post:hello", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestOverwrite(t *testing.T) {
	c := setupCache(t)

	require.NoError(t, c.Set("post:hello", payload{Title: "First"}, time.Hour))
	require.NoError(t, c.Set("post:hello", payload{Title: "Second"}, time.Hour))

	var got payload
	hit, err := c.Get("post:hello", &got)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "Second", got.Title)
}

func TestDelete(t *testing.T) {
	c := setupCache(t)

	require.NoError(t, c.Set("post:hello", payload{Title: "Hello"}, time.Hour))
	require.NoError(t, c.Delete("post:hello"))

	var got payload
	hit, err := c.Get("post:hello", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	assert.NoError(t, c.Delete("post:hello"), "deleting an absent key is not an error")
}
