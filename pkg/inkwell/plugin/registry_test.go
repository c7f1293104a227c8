package plugin_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-cms/inkwell/pkg/inkwell/plugin"
	"github.com/inkwell-cms/inkwell/pkg/inkwell/plugin/markdown"
	"github.com/inkwell-cms/inkwell/pkg/inkwell/plugin/text"
)

func TestRegistryLookup(t *testing.T) {
	reg := plugin.NewRegistry(text.New(), markdown.New())

	p, err := reg.Get("md")
	require.NoError(t, err)
	assert.Equal(t, "md", p.Ext())

	_, err = reg.Get("foo")
	assert.ErrorIs(t, err, plugin.ErrUnknownExtension)
}

func TestRegistryPreservesOrder(t *testing.T) {
	reg := plugin.NewRegistry(text.New(), markdown.New())
	assert.Equal(t, []string{"txt", "md"}, reg.Extensions())
}

func TestRegistryIgnoresDuplicates(t *testing.T) {
	reg := plugin.NewRegistry(text.New(), text.New(), markdown.New())
	assert.Equal(t, []string{"txt", "md"}, reg.Extensions())
}

func TestTextRejectsNonTextInput(t *testing.T) {
	ctx := context.Background()
	p := text.New()

	_, err := p.Parse(ctx, plugin.Input{Text: "Heading", Attrs: map[string]string{"extra": "foobar"}})
	var verr *plugin.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = p.Parse(ctx, plugin.Input{File: &plugin.File{Name: "x.png", Data: []byte{1}}})
	require.ErrorAs(t, err, &verr)
}

func TestTextRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := text.New()

	stored, err := p.Parse(ctx, plugin.Input{Text: "Heading"})
	require.NoError(t, err)

	out, err := p.Render(ctx, stored)
	require.NoError(t, err)
	assert.Equal(t, "Heading", out)
}
