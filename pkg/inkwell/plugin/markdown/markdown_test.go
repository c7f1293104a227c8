package markdown_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-cms/inkwell/pkg/inkwell/plugin"
	"github.com/inkwell-cms/inkwell/pkg/inkwell/plugin/markdown"
)

func TestRender(t *testing.T) {
	ctx := context.Background()
	p := markdown.New()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"heading", "# Heading", "<h1>Heading</h1>"},
		{"emphasis", "*hello*", "<p><em>hello</em></p>"},
		{"plain paragraph", "hello", "<p>hello</p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := p.Render(ctx, []byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	ctx := context.Background()
	p := markdown.New()

	first, err := p.Render(ctx, []byte("# Heading\n\nsome *body*"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		again, err := p.Render(ctx, []byte("# Heading\n\nsome *body*"))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestParseStoresRawMarkdown(t *testing.T) {
	ctx := context.Background()
	p := markdown.New()

	stored, err := p.Parse(ctx, plugin.Input{Text: "# Heading"})
	require.NoError(t, err)
	assert.Equal(t, []byte("# Heading"), stored)
}

func TestParseRejectsFiles(t *testing.T) {
	ctx := context.Background()
	p := markdown.New()

	_, err := p.Parse(ctx, plugin.Input{File: &plugin.File{Name: "a.png"}})
	var verr *plugin.ValidationError
	assert.ErrorAs(t, err, &verr)
}
