package inkwell

import (
	"context"

	"github.com/inkwell-cms/inkwell/pkg/inkwell/plugin"
)

// SetRequest carries one write through the facade.
type SetRequest struct {
	// URI addresses the node. A namespace is required; the extension
	// defaults to "txt" when omitted.
	URI string

	// Input is the raw author-submitted payload, validated by the
	// node's content-type plugin before anything is stored.
	Input plugin.Input

	// Author is the caller's identity, stamped into revision metadata.
	Author string

	// Message is an optional free-text change note.
	Message string

	// Publish promotes and publishes the written draft in the same
	// call.
	Publish bool
}

// Service is the node facade: the only API external callers use. All
// operations take the URI wire form and parse it before touching
// storage.
type Service interface {
	// Get resolves a URI to its rendered node. A URI without an
	// extension is resolved by probing the registered extensions in
	// registration order; that inference is best-effort and costs one
	// storage probe per extension on a miss.
	Get(ctx context.Context, rawURI string) (*Node, error)

	// Load resolves a URI to its raw, unrendered node for editing. An
	// absent node yields an empty node (nil data, zero metadata), not
	// an error.
	Load(ctx context.Context, rawURI string) (*Node, error)

	// Set validates the input with the node's plugin, writes the draft
	// slot, and optionally publishes it. Returns the written node with
	// rendered content.
	Set(ctx context.Context, req SetRequest) (*Node, error)

	// Publish marks the selected revision as published. A URI without a
	// revision selector targets the draft.
	Publish(ctx context.Context, rawURI string) (*Node, error)

	// Revisions lists the node's numbered revisions ascending.
	Revisions(ctx context.Context, rawURI string) ([]RevisionRef, error)

	// Delete removes the selected revision, or the whole node when the
	// URI has no revision selector.
	Delete(ctx context.Context, rawURI string) error

	// Render runs a content-type plugin over raw data without touching
	// storage.
	Render(ctx context.Context, ext string, data []byte) (string, error)
}
