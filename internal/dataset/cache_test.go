package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheHitOnIdenticalContent(t *testing.T) {
	c := NewCache(time.Minute, 4)
	hits, misses := 0, 0
	c.OnHit = func() { hits++ }
	c.OnMiss = func() { misses++ }

	data := []byte("a,b\n1,2\n")

	first, key1, err := c.Load("one.csv", data)
	require.NoError(t, err)
	second, key2, err := c.Load("two.csv", data)
	require.NoError(t, err)

	assert.Equal(t, key1, key2)
	assert.Same(t, first, second)
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
}

func TestCacheKeyDependsOnContent(t *testing.T) {
	assert.NotEqual(t, Key([]byte("a,b\n1,2\n")), Key([]byte("a,b\n1,3\n")))
	assert.Equal(t, Key([]byte("x")), Key([]byte("x")))
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(10*time.Minute, 4)
	clock := time.Now()
	c.now = func() time.Time { return clock }

	_, _, err := c.Load("one.csv", []byte("a\n1\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	clock = clock.Add(11 * time.Minute)
	assert.Equal(t, 0, c.Len())
}

func TestCacheCapacityEviction(t *testing.T) {
	c := NewCache(time.Hour, 2)
	clock := time.Now()
	c.now = func() time.Time { return clock }

	bodies := [][]byte{
		[]byte("a\n1\n"),
		[]byte("a\n2\n"),
		[]byte("a\n3\n"),
	}
	for _, body := range bodies {
		clock = clock.Add(time.Second)
		_, _, err := c.Load("f.csv", body)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, c.Len())
	// Oldest entry was evicted; reloading it misses.
	misses := 0
	c.OnMiss = func() { misses++ }
	_, _, err := c.Load("f.csv", bodies[0])
	require.NoError(t, err)
	assert.Equal(t, 1, misses)
}

func TestCachePropagatesLoadErrors(t *testing.T) {
	c := NewCache(time.Minute, 4)

	_, _, err := c.Load("bad.pdf", []byte("whatever"))
	assert.Error(t, err)
	assert.Equal(t, 0, c.Len())
}
