// Package markdown provides the markdown content plugin. Rendering is a
// pure text transform from stored markdown to HTML.
package markdown

import (
	"bytes"
	"context"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/inkwell-cms/inkwell/pkg/inkwell/plugin"
)

// Plugin handles the "md" extension.
type Plugin struct {
	md goldmark.Markdown
}

func New() *Plugin {
	return &Plugin{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		),
	}
}

func (*Plugin) Ext() string { return "md" }

func (p *Plugin) Parse(ctx context.Context, in plugin.Input) ([]byte, error) {
	if in.File != nil {
		return nil, &plugin.ValidationError{Ext: p.Ext(), Reason: "file uploads are not accepted"}
	}
	if len(in.Attrs) > 0 {
		return nil, &plugin.ValidationError{Ext: p.Ext(), Reason: "unexpected extra fields"}
	}
	return []byte(in.Text), nil
}

func (p *Plugin) Render(ctx context.Context, data []byte) (string, error) {
	var buf bytes.Buffer
	if err := p.md.Convert(data, &buf); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
