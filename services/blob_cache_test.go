package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	*FileService
	reads int
}

func (s *countingStore) Read(key string) ([]byte, error) {
	s.reads++
	return s.FileService.Read(key)
}

func newCountingStore(t *testing.T) *countingStore {
	t.Helper()
	fs, err := NewFileService(t.TempDir())
	require.NoError(t, err)
	return &countingStore{FileService: fs}
}

func TestCachedStoreServesRepeatReads(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	backing := newCountingStore(t)
	cache := NewCachedStore(ctx, backing, 2, time.Hour)

	key, err := cache.Save("rendered", ".png", []byte("one"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		data, err := cache.Read(key)
		require.NoError(t, err)
		assert.Equal(t, []byte("one"), data)
	}
	assert.Equal(t, 1, backing.reads)

	require.NoError(t, cache.Delete(key))
	_, err = cache.Read(key)
	assert.Error(t, err, "deleted blobs are not served from memory")
	assert.Zero(t, cache.Len())
}

func TestCachedStoreEvictsOldest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	backing := newCountingStore(t)
	cache := NewCachedStore(ctx, backing, 2, time.Hour)

	var keys []string
	for _, body := range []string{"a", "b", "c"} {
		key, err := cache.Save("k", "", []byte(body))
		require.NoError(t, err)
		_, err = cache.Read(key)
		require.NoError(t, err)
		keys = append(keys, key)
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 2, cache.Len())

	_, err := cache.Read(keys[0])
	require.NoError(t, err)
	assert.Equal(t, 4, backing.reads, "first key was evicted")
}

func TestCachedStoreExpiry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	backing := newCountingStore(t)
	cache := NewCachedStore(ctx, backing, 4, time.Nanosecond)

	key, err := cache.Save("k", "", []byte("x"))
	require.NoError(t, err)
	_, err = cache.Read(key)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = cache.Read(key)
	require.NoError(t, err)
	assert.Equal(t, 2, backing.reads)

	cache.cleanup()
	time.Sleep(time.Millisecond)
	cache.cleanup()
	assert.Zero(t, cache.Len())
}
