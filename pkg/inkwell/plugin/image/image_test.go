package image_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-cms/inkwell/pkg/inkwell/blob"
	"github.com/inkwell-cms/inkwell/pkg/inkwell/blob/memory"
	"github.com/inkwell-cms/inkwell/pkg/inkwell/plugin"
	"github.com/inkwell-cms/inkwell/pkg/inkwell/plugin/image"
)

func TestParseStoresBlobReference(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	p := image.New(store)

	pngBytes := []byte("fake png bytes")
	stored, err := p.Parse(ctx, plugin.Input{
		File:  &plugin.File{Name: "logo.png", Data: pngBytes},
		Attrs: map[string]string{"alt": "Zwitter"},
	})
	require.NoError(t, err)

	var d map[string]any
	require.NoError(t, json.Unmarshal(stored, &d))

	wantKey := blob.KeyFor(blob.Digest(pngBytes), ".png")
	assert.Equal(t, wantKey, d["key"])
	assert.Equal(t, store.URL(wantKey), d["url"])
	assert.Equal(t, "Zwitter", d["alt"])
	assert.Equal(t, "logo.png", d["name"])

	exists, err := store.Exists(ctx, wantKey)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestParseRequiresFileOrReference(t *testing.T) {
	ctx := context.Background()
	p := image.New(memory.New())

	_, err := p.Parse(ctx, plugin.Input{})
	var verr *plugin.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = p.Parse(ctx, plugin.Input{Text: "not json"})
	require.ErrorAs(t, err, &verr)

	_, err = p.Parse(ctx, plugin.Input{Text: `{"alt":"no key"}`})
	require.ErrorAs(t, err, &verr)
}

func TestParseKeepsExistingReference(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	p := image.New(store)

	stored, err := p.Parse(ctx, plugin.Input{
		File: &plugin.File{Name: "logo.png", Data: []byte("bytes")},
	})
	require.NoError(t, err)

	// Re-save with a new alt text but no new upload.
	again, err := p.Parse(ctx, plugin.Input{
		Text:  string(stored),
		Attrs: map[string]string{"alt": "updated"},
	})
	require.NoError(t, err)

	var d map[string]any
	require.NoError(t, json.Unmarshal(again, &d))
	assert.Equal(t, "updated", d["alt"])

	var orig map[string]any
	require.NoError(t, json.Unmarshal(stored, &orig))
	assert.Equal(t, orig["key"], d["key"])
}

func TestRender(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	p := image.New(store)

	stored, err := p.Parse(ctx, plugin.Input{
		File:  &plugin.File{Name: "logo.png", Data: []byte("fake png bytes")},
		Attrs: map[string]string{"alt": "Zwitter", "width": "100"},
	})
	require.NoError(t, err)

	out, err := p.Render(ctx, stored)
	require.NoError(t, err)

	key := blob.KeyFor(blob.Digest([]byte("fake png bytes")), ".png")
	assert.Equal(t, `<img src="`+store.URL(key)+`" alt="Zwitter" width="100">`, out)
}

func TestIdenticalUploadsShareOneBlob(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	p := image.New(store)

	pngBytes := []byte("identical image bytes")

	first, err := p.Parse(ctx, plugin.Input{File: &plugin.File{Name: "a.png", Data: pngBytes}})
	require.NoError(t, err)
	second, err := p.Parse(ctx, plugin.Input{File: &plugin.File{Name: "b.png", Data: pngBytes}})
	require.NoError(t, err)

	var d1, d2 map[string]any
	require.NoError(t, json.Unmarshal(first, &d1))
	require.NoError(t, json.Unmarshal(second, &d2))

	assert.Equal(t, d1["key"], d2["key"])
	assert.Equal(t, d1["url"], d2["url"])
	assert.Equal(t, 1, store.Writes())
}
