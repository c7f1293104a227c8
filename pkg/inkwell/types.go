package inkwell

import (
	"fmt"
	"time"

	"github.com/inkwell-cms/inkwell/pkg/inkwell/uri"
)

// NodeKey identifies where a node's revisions are stored: the node
// identity (namespace + path) together with the content-type extension.
type NodeKey struct {
	Namespace string
	Path      string
	Extension string
}

// KeyFor derives the storage key from a URI.
func KeyFor(u uri.URI) NodeKey {
	return NodeKey{Namespace: u.Namespace, Path: u.Path, Extension: u.Extension}
}

// URI returns the scheme-less address of the key.
func (k NodeKey) URI() uri.URI {
	return uri.URI{Namespace: k.Namespace, Path: k.Path, Extension: k.Extension}
}

func (k NodeKey) String() string {
	return k.URI().String()
}

// NodeMeta carries revision metadata returned alongside node content.
type NodeMeta struct {
	Author      string     `json:"author,omitempty"`
	Message     string     `json:"message,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ModifiedAt  time.Time  `json:"modified_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	IsPublished bool       `json:"is_published"`
}

// Revision is one immutable write to a node. Number is 0 for the draft
// slot and a dense sequence starting at 1 for promoted revisions.
type Revision struct {
	Key    NodeKey
	Number int
	Data   []byte
	Meta   NodeMeta
}

// Selector returns the revision selector addressing this revision.
func (r *Revision) Selector() uri.Revision {
	if r.Number == 0 {
		return uri.Draft()
	}
	return uri.Numbered(r.Number)
}

// URI returns the scheme-less concrete address of this revision.
func (r *Revision) URI() uri.URI {
	return r.Key.URI().WithRevision(r.Selector())
}

// RevisionRef is one entry of a node's revision listing.
type RevisionRef struct {
	URI       uri.URI `json:"uri"`
	Published bool    `json:"published"`
}

// Node is the facade's result type: a concrete URI, the raw stored data
// (nil when the node is absent), the plugin-rendered content when
// rendering was requested, and revision metadata.
type Node struct {
	URI     uri.URI  `json:"uri"`
	Data    []byte   `json:"data"`
	Content string   `json:"content,omitempty"`
	Meta    NodeMeta `json:"meta"`
}

func (n *Node) String() string {
	return fmt.Sprintf("node %s", n.URI)
}
