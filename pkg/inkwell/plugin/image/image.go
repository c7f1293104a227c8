// Package image provides the image content plugin. Uploaded bytes are
// persisted in the content-addressed blob store; the stored node data is
// a small JSON document referencing the blob, and rendering produces an
// <img> tag pointing at the blob's public locator.
package image

import (
	"context"
	"encoding/json"
	"html"
	"path"
	"strings"

	"github.com/inkwell-cms/inkwell/pkg/inkwell/blob"
	"github.com/inkwell-cms/inkwell/pkg/inkwell/plugin"
)

// Plugin handles the "img" extension.
type Plugin struct {
	store blob.Store
}

func New(store blob.Store) *Plugin {
	return &Plugin{store: store}
}

func (*Plugin) Ext() string { return "img" }

// imageData is the stored representation of an image node.
type imageData struct {
	Key    string `json:"key"`
	URL    string `json:"url"`
	Name   string `json:"name,omitempty"`
	Alt    string `json:"alt,omitempty"`
	Width  string `json:"width,omitempty"`
	Height string `json:"height,omitempty"`
}

func (p *Plugin) Parse(ctx context.Context, in plugin.Input) ([]byte, error) {
	var d imageData

	switch {
	case in.File != nil:
		ext := strings.ToLower(path.Ext(in.File.Name))
		key, err := p.store.Put(ctx, in.File.Data, ext)
		if err != nil {
			return nil, err
		}
		d.Key = key
		d.URL = p.store.URL(key)
		d.Name = path.Base(in.File.Name)
	case in.Text != "":
		// Re-saving an existing node without a new upload keeps the
		// current blob reference.
		if err := json.Unmarshal([]byte(in.Text), &d); err != nil {
			return nil, &plugin.ValidationError{Ext: p.Ext(), Reason: "data is not a stored image reference"}
		}
		if d.Key == "" || d.URL == "" {
			return nil, &plugin.ValidationError{Ext: p.Ext(), Reason: "stored image reference has no blob key"}
		}
	default:
		return nil, &plugin.ValidationError{Ext: p.Ext(), Reason: "an image file is required"}
	}

	d.Alt = in.Attrs["alt"]
	if w := in.Attrs["width"]; w != "" {
		d.Width = w
	}
	if h := in.Attrs["height"]; h != "" {
		d.Height = h
	}

	return json.Marshal(d)
}

func (p *Plugin) Render(ctx context.Context, data []byte) (string, error) {
	var d imageData
	if err := json.Unmarshal(data, &d); err != nil {
		return "", &plugin.ValidationError{Ext: p.Ext(), Reason: "stored data is not an image reference"}
	}

	var b strings.Builder
	b.WriteString(`<img src="`)
	b.WriteString(html.EscapeString(d.URL))
	b.WriteString(`" alt="`)
	b.WriteString(html.EscapeString(d.Alt))
	b.WriteString(`"`)
	if d.Width != "" {
		b.WriteString(` width="` + html.EscapeString(d.Width) + `"`)
	}
	if d.Height != "" {
		b.WriteString(` height="` + html.EscapeString(d.Height) + `"`)
	}
	b.WriteString(`>`)
	return b.String(), nil
}
