package memory_test

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-cms/inkwell/pkg/inkwell/blob"
	"github.com/inkwell-cms/inkwell/pkg/inkwell/blob/memory"
)

func TestPutIsIdempotent(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	data := []byte("image bytes")

	key1, err := store.Put(ctx, data, ".png")
	require.NoError(t, err)

	key2, err := store.Put(ctx, data, ".png")
	require.NoError(t, err)

	assert.Equal(t, key1, key2)
	assert.Equal(t, 1, store.Writes(), "second put must not write again")

	exists, err := store.Exists(ctx, key1)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDistinctBytesDistinctKeys(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	key1, err := store.Put(ctx, []byte("one"), ".png")
	require.NoError(t, err)
	key2, err := store.Put(ctx, []byte("two"), ".png")
	require.NoError(t, err)

	assert.NotEqual(t, key1, key2)
}

func TestKeyLayout(t *testing.T) {
	data := []byte("image bytes")
	digest := blob.Digest(data)
	key := blob.KeyFor(digest, ".png")

	assert.Equal(t, digest[:2]+"/"+digest+".png", key)
	assert.Len(t, digest, 64)
}

func TestOpen(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	key, err := store.Put(ctx, []byte("payload"), ".bin")
	require.NoError(t, err)

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)

	_, err = store.Open(ctx, "ff/unknown")
	assert.ErrorIs(t, err, blob.ErrBlobNotFound)
}

func TestURLIsDeterministic(t *testing.T) {
	store := memory.NewWithURLPrefix("/media/content")
	key := blob.KeyFor(blob.Digest([]byte("x")), ".png")

	assert.Equal(t, "/media/content/"+key, store.URL(key))
	assert.Equal(t, store.URL(key), store.URL(key))
}

func TestConcurrentPutSameBytes(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	data := []byte("shared upload")

	var wg sync.WaitGroup
	keys := make([]string, 8)
	for i := range keys {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key, err := store.Put(ctx, data, ".png")
			assert.NoError(t, err)
			keys[i] = key
		}(i)
	}
	wg.Wait()

	for _, key := range keys {
		assert.Equal(t, keys[0], key)
	}
	assert.Equal(t, 1, store.Writes())
}
