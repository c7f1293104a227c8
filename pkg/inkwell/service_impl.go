package inkwell

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/inkwell-cms/inkwell/pkg/inkwell/plugin"
	"github.com/inkwell-cms/inkwell/pkg/inkwell/uri"
)

// Defaults applied to partially qualified URIs.
const (
	DefaultScheme    = "i18n"
	DefaultExtension = "txt"
)

// DefaultCacheSize is the published-node cache capacity unless
// WithCacheSize overrides it.
const DefaultCacheSize = 256

// service implements the Service interface
type service struct {
	repo      Repository
	registry  *plugin.Registry
	cacheSize int

	// cacheMu guards cache fills against concurrent writes. gens counts
	// writes per key; a fill is dropped when the key's count moved
	// between the repo read and the fill, so a racing write can never
	// leave a superseded revision in the cache.
	cacheMu sync.Mutex
	cache   *lru.Cache[string, *Node]
	gens    map[string]uint64
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the versioning backend for the service.
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repo = repo
	}
}

// WithRegistry sets the content-type plugin registry.
func WithRegistry(registry *plugin.Registry) Option {
	return func(s *service) {
		s.registry = registry
	}
}

// WithCacheSize sets the capacity of the published-node cache. Zero
// disables caching.
func WithCacheSize(size int) Option {
	return func(s *service) {
		s.cacheSize = size
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{cacheSize: DefaultCacheSize}

	for _, option := range options {
		option(s)
	}

	if s.repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.registry == nil {
		return nil, fmt.Errorf("plugin registry is required")
	}

	if s.cacheSize > 0 {
		cache, err := lru.New[string, *Node](s.cacheSize)
		if err != nil {
			return nil, err
		}
		s.cache = cache
		s.gens = make(map[string]uint64)
	}

	return s, nil
}

func (s *service) Get(ctx context.Context, rawURI string) (*Node, error) {
	u, err := uri.Parse(rawURI)
	if err != nil {
		return nil, err
	}

	if u.Extension != "" {
		return s.resolve(ctx, u, true)
	}

	node, err := s.probe(ctx, u, true)
	if err != nil {
		return nil, &NodeError{URI: rawURI, Op: "get", Err: err}
	}
	return node, nil
}

func (s *service) Load(ctx context.Context, rawURI string) (*Node, error) {
	u, err := uri.Parse(rawURI)
	if err != nil {
		return nil, err
	}

	if u.Extension != "" {
		node, err := s.resolve(ctx, u, false)
		if errors.Is(err, ErrNodeNotFound) {
			return emptyNode(u), nil
		}
		return node, err
	}

	node, err := s.probe(ctx, u, false)
	if errors.Is(err, ErrNodeNotFound) {
		return emptyNode(u), nil
	}
	if err != nil {
		return nil, &NodeError{URI: rawURI, Op: "load", Err: err}
	}
	return node, nil
}

func (s *service) Set(ctx context.Context, req SetRequest) (*Node, error) {
	u, err := uri.Parse(req.URI)
	if err != nil {
		return nil, err
	}
	if u.Namespace == "" {
		return nil, &uri.ParseError{Raw: req.URI, Reason: "namespace is required for writes"}
	}
	u = u.WithDefaults(DefaultScheme, DefaultExtension)

	p, err := s.registry.Get(u.Extension)
	if err != nil {
		return nil, err
	}

	// Validate before any mutation.
	data, err := p.Parse(ctx, req.Input)
	if err != nil {
		return nil, err
	}

	key := KeyFor(u)
	meta := NodeMeta{Author: req.Author, Message: req.Message}

	rev, err := s.repo.CreateDraft(ctx, key, data, meta)
	if err != nil {
		return nil, &NodeError{URI: u.String(), Op: "set", Err: err}
	}

	if req.Publish {
		rev, err = s.repo.Publish(ctx, key, uri.Draft())
		if err != nil {
			return nil, &NodeError{URI: u.String(), Op: "set", Err: err}
		}
	}

	s.invalidate(key)

	return s.nodeFrom(ctx, rev, true)
}

func (s *service) Publish(ctx context.Context, rawURI string) (*Node, error) {
	u, err := uri.Parse(rawURI)
	if err != nil {
		return nil, err
	}
	if u.Namespace == "" {
		return nil, &uri.ParseError{Raw: rawURI, Reason: "namespace is required for publish"}
	}
	u = u.WithDefaults(DefaultScheme, DefaultExtension)

	key := KeyFor(u)
	rev, err := s.repo.Publish(ctx, key, u.Revision)
	if err != nil {
		return nil, &NodeError{URI: u.String(), Op: "publish", Err: err}
	}

	s.invalidate(key)

	return s.nodeFrom(ctx, rev, true)
}

func (s *service) Revisions(ctx context.Context, rawURI string) ([]RevisionRef, error) {
	u, err := uri.Parse(rawURI)
	if err != nil {
		return nil, err
	}

	var refs []RevisionRef
	if u.Extension != "" {
		refs, err = s.repo.ListRevisions(ctx, KeyFor(u))
	} else {
		refs, err = s.probeRevisions(ctx, u)
	}
	if err != nil {
		return nil, &NodeError{URI: rawURI, Op: "revisions", Err: err}
	}

	for i := range refs {
		refs[i].URI.Scheme = DefaultScheme
	}
	return refs, nil
}

func (s *service) Delete(ctx context.Context, rawURI string) error {
	u, err := uri.Parse(rawURI)
	if err != nil {
		return err
	}

	if u.Extension != "" {
		key := KeyFor(u)
		if err := s.repo.Delete(ctx, key, u.Revision); err != nil {
			return &NodeError{URI: rawURI, Op: "delete", Err: err}
		}
		s.invalidate(key)
		return nil
	}

	// Without an extension the target node is inferred the same way
	// reads are: first registered extension that has the node wins.
	for _, ext := range s.registry.Extensions() {
		key := KeyFor(u.WithExtension(ext))
		err := s.repo.Delete(ctx, key, u.Revision)
		if err == nil {
			s.invalidate(key)
			return nil
		}
		if !errors.Is(err, ErrNodeNotFound) {
			return &NodeError{URI: rawURI, Op: "delete", Err: err}
		}
	}
	return &NodeError{URI: rawURI, Op: "delete", Err: ErrNodeNotFound}
}

func (s *service) Render(ctx context.Context, ext string, data []byte) (string, error) {
	p, err := s.registry.Get(ext)
	if err != nil {
		return "", err
	}
	return p.Render(ctx, data)
}

// resolve fetches one revision for a fully qualified URI and converts it
// to a Node. Published, rendered lookups are served from the cache.
func (s *service) resolve(ctx context.Context, u uri.URI, render bool) (*Node, error) {
	u = u.WithDefaults(DefaultScheme, DefaultExtension)
	key := KeyFor(u)

	cacheable := render && u.Revision.IsZero() && s.cache != nil
	var gen uint64
	if cacheable {
		s.cacheMu.Lock()
		node, ok := s.cache.Get(key.String())
		gen = s.gens[key.String()]
		s.cacheMu.Unlock()
		if ok {
			// Callers get their own copy; mutating a result must not
			// leak into the cached node.
			return copyNode(node), nil
		}
	}

	rev, err := s.repo.Get(ctx, key, u.Revision)
	if err != nil {
		return nil, &NodeError{URI: u.String(), Op: "get", Err: err}
	}

	node, err := s.nodeFrom(ctx, rev, render)
	if err != nil {
		return nil, err
	}

	if cacheable {
		s.fill(key.String(), gen, copyNode(node))
	}
	return node, nil
}

// fill installs a freshly resolved node unless a write to the same key
// landed since the repo read that produced it.
func (s *service) fill(key string, gen uint64, node *Node) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.gens[key] == gen {
		s.cache.Add(key, node)
	}
}

// probe tries the registered extensions in order until one resolves.
// Best-effort inference for URIs that omit their type; costs one storage
// lookup per extension on a full miss.
func (s *service) probe(ctx context.Context, u uri.URI, render bool) (*Node, error) {
	for _, ext := range s.registry.Extensions() {
		node, err := s.resolve(ctx, u.WithExtension(ext), render)
		if err == nil {
			return node, nil
		}
		if !errors.Is(err, ErrNodeNotFound) {
			return nil, err
		}
	}
	return nil, ErrNodeNotFound
}

func (s *service) probeRevisions(ctx context.Context, u uri.URI) ([]RevisionRef, error) {
	for _, ext := range s.registry.Extensions() {
		refs, err := s.repo.ListRevisions(ctx, KeyFor(u.WithExtension(ext)))
		if err == nil {
			return refs, nil
		}
		if !errors.Is(err, ErrNodeNotFound) {
			return nil, err
		}
	}
	return nil, ErrNodeNotFound
}

func (s *service) nodeFrom(ctx context.Context, rev *Revision, render bool) (*Node, error) {
	u := rev.URI()
	u.Scheme = DefaultScheme

	node := &Node{URI: u, Data: rev.Data, Meta: rev.Meta}

	if render {
		p, err := s.registry.Get(rev.Key.Extension)
		if err != nil {
			return nil, err
		}
		content, err := p.Render(ctx, rev.Data)
		if err != nil {
			return nil, err
		}
		node.Content = content
	}

	return node, nil
}

func (s *service) invalidate(key NodeKey) {
	if s.cache == nil {
		return
	}
	ck := key.String()
	s.cacheMu.Lock()
	s.gens[ck]++
	s.cache.Remove(ck)
	s.cacheMu.Unlock()
}

func copyNode(n *Node) *Node {
	out := *n
	if n.Data != nil {
		out.Data = make([]byte, len(n.Data))
		copy(out.Data, n.Data)
	}
	if n.Meta.PublishedAt != nil {
		at := *n.Meta.PublishedAt
		out.Meta.PublishedAt = &at
	}
	return &out
}

func emptyNode(u uri.URI) *Node {
	return &Node{URI: u.WithDefaults(DefaultScheme, DefaultExtension)}
}
