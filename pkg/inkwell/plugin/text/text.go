// Package text provides the plain-text content plugin. Stored data and
// rendered output are the submitted text unchanged.
package text

import (
	"context"

	"github.com/inkwell-cms/inkwell/pkg/inkwell/plugin"
)

// Plugin handles the "txt" extension.
type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (*Plugin) Ext() string { return "txt" }

func (p *Plugin) Parse(ctx context.Context, in plugin.Input) ([]byte, error) {
	if in.File != nil {
		return nil, &plugin.ValidationError{Ext: p.Ext(), Reason: "file uploads are not accepted"}
	}
	if len(in.Attrs) > 0 {
		return nil, &plugin.ValidationError{Ext: p.Ext(), Reason: "unexpected extra fields"}
	}
	return []byte(in.Text), nil
}

func (*Plugin) Render(ctx context.Context, data []byte) (string, error) {
	return string(data), nil
}
