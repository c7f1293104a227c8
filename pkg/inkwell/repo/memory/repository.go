// Package memory provides an in-memory implementation of the node
// versioning engine, used by tests and development servers.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/inkwell-cms/inkwell/pkg/inkwell"
	"github.com/inkwell-cms/inkwell/pkg/inkwell/uri"
)

// node is the per-key versioning state. nextRev is a persistent counter
// so revision numbers stay dense and are never reused, no matter how
// publishes and deletes interleave.
type node struct {
	draft     *inkwell.Revision
	revisions map[int]*inkwell.Revision
	nextRev   int
	published int // 0 = no published revision
}

// Repository implements inkwell.Repository using in-memory storage.
type Repository struct {
	mu    sync.RWMutex
	nodes map[inkwell.NodeKey]*node
}

// New creates a new in-memory repository.
func New() *Repository {
	return &Repository{
		nodes: make(map[inkwell.NodeKey]*node),
	}
}

func (r *Repository) CreateDraft(ctx context.Context, key inkwell.NodeKey, data []byte, meta inkwell.NodeMeta) (*inkwell.Revision, error) {
	if data == nil {
		return nil, inkwell.ErrPersistence
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n, exists := r.nodes[key]
	if !exists {
		n = &node{revisions: make(map[int]*inkwell.Revision), nextRev: 1}
		r.nodes[key] = n
	}

	now := time.Now().UTC()
	meta.CreatedAt = now
	if n.draft != nil {
		meta.CreatedAt = n.draft.Meta.CreatedAt
	}
	meta.ModifiedAt = now
	meta.IsPublished = false
	meta.PublishedAt = nil

	stored := make([]byte, len(data))
	copy(stored, data)

	n.draft = &inkwell.Revision{Key: key, Number: 0, Data: stored, Meta: meta}

	return copyRevision(n.draft), nil
}

func (r *Repository) Get(ctx context.Context, key inkwell.NodeKey, sel uri.Revision) (*inkwell.Revision, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, exists := r.nodes[key]
	if !exists {
		return nil, inkwell.ErrNodeNotFound
	}

	switch {
	case sel.Draft:
		if n.draft == nil {
			return nil, inkwell.ErrNodeNotFound
		}
		return copyRevision(n.draft), nil
	case sel.Number > 0:
		rev, ok := n.revisions[sel.Number]
		if !ok {
			return nil, inkwell.ErrNodeNotFound
		}
		return copyRevision(rev), nil
	default:
		if n.published == 0 {
			return nil, inkwell.ErrNodeNotFound
		}
		return copyRevision(n.revisions[n.published]), nil
	}
}

func (r *Repository) Publish(ctx context.Context, key inkwell.NodeKey, sel uri.Revision) (*inkwell.Revision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, exists := r.nodes[key]
	if !exists {
		return nil, inkwell.ErrNodeNotFound
	}

	var rev *inkwell.Revision
	if sel.Number > 0 {
		var ok bool
		rev, ok = n.revisions[sel.Number]
		if !ok {
			return nil, inkwell.ErrNodeNotFound
		}
	} else {
		// Zero and draft selectors both promote the draft slot.
		if n.draft == nil {
			return nil, inkwell.ErrNodeNotFound
		}
		rev = n.draft
		rev.Number = n.nextRev
		n.nextRev++
		n.revisions[rev.Number] = rev
		n.draft = nil
	}

	// Demote-old and promote-new under the same lock: readers never see
	// two published revisions.
	if n.published != 0 && n.published != rev.Number {
		n.revisions[n.published].Meta.IsPublished = false
	}

	now := time.Now().UTC()
	rev.Meta.IsPublished = true
	rev.Meta.PublishedAt = &now
	rev.Meta.ModifiedAt = now
	n.published = rev.Number

	return copyRevision(rev), nil
}

func (r *Repository) ListRevisions(ctx context.Context, key inkwell.NodeKey) ([]inkwell.RevisionRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, exists := r.nodes[key]
	if !exists {
		return nil, inkwell.ErrNodeNotFound
	}

	numbers := make([]int, 0, len(n.revisions))
	for num := range n.revisions {
		numbers = append(numbers, num)
	}
	sort.Ints(numbers)

	refs := make([]inkwell.RevisionRef, 0, len(numbers))
	for _, num := range numbers {
		refs = append(refs, inkwell.RevisionRef{
			URI:       key.URI().WithRevision(uri.Numbered(num)),
			Published: num == n.published,
		})
	}
	return refs, nil
}

func (r *Repository) Delete(ctx context.Context, key inkwell.NodeKey, sel uri.Revision) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, exists := r.nodes[key]
	if !exists {
		return inkwell.ErrNodeNotFound
	}

	switch {
	case sel.Draft:
		n.draft = nil
	case sel.Number > 0:
		if _, ok := n.revisions[sel.Number]; !ok {
			return nil // deleting an absent target is a no-op
		}
		delete(n.revisions, sel.Number)
		if n.published == sel.Number {
			n.published = 0
		}
	default:
		delete(r.nodes, key)
		return nil
	}

	// Removing the last revision destroys the node.
	if n.draft == nil && len(n.revisions) == 0 {
		delete(r.nodes, key)
	}
	return nil
}

func copyRevision(rev *inkwell.Revision) *inkwell.Revision {
	out := *rev
	out.Data = make([]byte, len(rev.Data))
	copy(out.Data, rev.Data)
	if rev.Meta.PublishedAt != nil {
		at := *rev.Meta.PublishedAt
		out.Meta.PublishedAt = &at
	}
	return &out
}
