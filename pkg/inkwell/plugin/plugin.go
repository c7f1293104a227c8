// Package plugin defines the content-type handler interface and the
// registry dispatching on URI extensions.
package plugin

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownExtension indicates no handler is registered for an
// extension. Callers surface it as a not-found condition, not a server
// fault.
var ErrUnknownExtension = errors.New("unknown extension")

// ValidationError reports that a handler rejected submitted input data.
type ValidationError struct {
	Ext    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s content: %s", e.Ext, e.Reason)
}

// File is an uploaded binary asset attached to the input.
type File struct {
	Name string
	Data []byte
}

// Input is the raw author-submitted payload handed to a handler's Parse.
// Text carries plain content, File an uploaded asset, Attrs display
// attributes such as alt text.
type Input struct {
	Text  string
	File  *File
	Attrs map[string]string
}

// Plugin is a content-type handler. Parse converts raw submitted input
// into the stored representation and Render converts the stored
// representation into output markup. Render must be deterministic.
type Plugin interface {
	Ext() string
	Parse(ctx context.Context, in Input) ([]byte, error)
	Render(ctx context.Context, data []byte) (string, error)
}

// Registry maps URI extensions to content-type handlers. It is built
// once at construction time and never mutated afterwards, so lookups
// need no synchronization.
type Registry struct {
	byExt map[string]Plugin
	order []string
}

// NewRegistry builds a registry from the given plugins. Registration
// order is preserved and doubles as the facade's extension probe order.
func NewRegistry(plugins ...Plugin) *Registry {
	r := &Registry{byExt: make(map[string]Plugin, len(plugins))}
	for _, p := range plugins {
		ext := p.Ext()
		if _, dup := r.byExt[ext]; dup {
			continue
		}
		r.byExt[ext] = p
		r.order = append(r.order, ext)
	}
	return r
}

// Get returns the handler for ext, or ErrUnknownExtension.
func (r *Registry) Get(ext string) (Plugin, error) {
	p, ok := r.byExt[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExtension, ext)
	}
	return p, nil
}

// Extensions returns the registered extensions in registration order.
func (r *Registry) Extensions() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
