package inkwell

import (
	"context"

	"github.com/inkwell-cms/inkwell/pkg/inkwell/uri"
)

// Repository is the versioning engine behind the node facade. It owns
// every draft and numbered revision; callers mutate them only through
// these operations.
//
// Implementations must keep revision numbering per key dense, monotonic
// and never reused, and must flip the published flag atomically so no
// reader ever observes two published revisions for one key.
type Repository interface {
	// CreateDraft writes or overwrites the draft slot. It never touches
	// numbered revisions or the publish state. Nil data fails with
	// ErrPersistence.
	CreateDraft(ctx context.Context, key NodeKey, data []byte, meta NodeMeta) (*Revision, error)

	// Get resolves a revision selector. The zero selector resolves to
	// the published revision. ErrNodeNotFound when nothing matches.
	Get(ctx context.Context, key NodeKey, sel uri.Revision) (*Revision, error)

	// Publish marks a revision as published, demoting any previously
	// published one in the same atomic step. The zero or draft selector
	// promotes the draft to the next revision number and clears the
	// draft slot. ErrNodeNotFound when the selector resolves to
	// nothing.
	Publish(ctx context.Context, key NodeKey, sel uri.Revision) (*Revision, error)

	// ListRevisions returns every numbered revision ascending, draft
	// excluded. ErrNodeNotFound when the key has no node at all.
	ListRevisions(ctx context.Context, key NodeKey) ([]RevisionRef, error)

	// Delete removes the selected target: the zero selector removes the
	// whole node (draft and all numbered revisions), the draft or a
	// numbered selector removes only that target. Deleting a missing
	// target on an existing node is a no-op; ErrNodeNotFound only when
	// the node itself is absent. Removing the last remaining revision
	// destroys the node.
	Delete(ctx context.Context, key NodeKey, sel uri.Revision) error
}
