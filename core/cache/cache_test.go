package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetThenGetHits(t *testing.T) {
	c := New(10, time.Minute)
	key := Key{Query: "authenticate user", Mode: "hybrid", Limit: 10, VectorWeight: 0.7}
	c.Set(key, "result")

	v, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "result", v)
	assert.Equal(t, uint64(1), c.Stats().Hits)
}

func TestGetMissIncrementsCounter(t *testing.T) {
	c := New(10, time.Minute)
	_, ok := c.Get(Key{Query: "nothing"})
	assert.False(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Misses)
}

func TestKeyDistinguishesModeAndWeight(t *testing.T) {
	c := New(10, time.Minute)
	lexical := Key{Query: "x", Mode: "lexical", Limit: 10}
	hybrid := Key{Query: "x", Mode: "hybrid", Limit: 10, VectorWeight: 0.5}

	c.Set(lexical, "lex-result")
	_, ok := c.Get(hybrid)
	assert.False(t, ok)

	c.Set(hybrid, "hybrid-result")
	v, ok := c.Get(hybrid)
	require.True(t, ok)
	assert.Equal(t, "hybrid-result", v)
}

func TestKeyFiltersOrderIndependent(t *testing.T) {
	a := Key{Query: "x", Filters: map[string]string{"lang": "go", "ext": "ts"}}
	b := Key{Query: "x", Filters: map[string]string{"ext": "ts", "lang": "go"}}
	assert.Equal(t, a.Hash(), b.Hash())
}

func TestInvalidateClearsAllEntriesAndBumpsVersion(t *testing.T) {
	c := New(10, time.Minute)
	c.Set(Key{Query: "a"}, 1)
	c.Set(Key{Query: "b"}, 2)

	c.Invalidate()

	assert.Equal(t, 0, c.Stats().Size)
	assert.Equal(t, uint64(1), c.Stats().Version)
	_, ok := c.Get(Key{Query: "a"})
	assert.False(t, ok)
}

func TestLRUEvictsOldestBeyondMaxSize(t *testing.T) {
	c := New(2, time.Minute)
	c.Set(Key{Query: "a"}, 1)
	c.Set(Key{Query: "b"}, 2)
	c.Set(Key{Query: "c"}, 3)

	assert.Equal(t, 2, c.Stats().Size)
	_, ok := c.Get(Key{Query: "a"})
	assert.False(t, ok, "oldest entry should have been evicted")
}

func TestTTLExpiresEntries(t *testing.T) {
	c := New(10, 10*time.Millisecond)
	c.Set(Key{Query: "a"}, 1)
	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get(Key{Query: "a"})
	assert.False(t, ok)
}
