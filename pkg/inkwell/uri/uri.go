// Package uri implements the structured address scheme for content nodes.
//
// A node URI has the wire form
//
//	scheme://namespace@path.extension#revision
//
// where only the path is mandatory. The namespace is typically a language
// tag ("sv-se"), the extension selects the content-type plugin ("txt",
// "md", "img") and the revision is either a positive integer, the "draft"
// sentinel, or absent (meaning "resolve to the published revision").
package uri

import (
	"fmt"
	"strconv"
	"strings"
)

// DraftToken is the revision sentinel addressing the unpublished draft slot.
const DraftToken = "draft"

// ParseError reports a malformed URI string. It is the caller's fault and
// is raised before any storage interaction.
type ParseError struct {
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid uri %q: %s", e.Raw, e.Reason)
}

// Revision selects one revision of a node: the draft slot, a specific
// numbered revision, or (the zero value) whatever revision is published.
type Revision struct {
	Draft  bool
	Number int
}

// IsZero reports whether the selector is absent, i.e. resolves to the
// published revision.
func (r Revision) IsZero() bool { return !r.Draft && r.Number == 0 }

func (r Revision) String() string {
	switch {
	case r.Draft:
		return DraftToken
	case r.Number > 0:
		return strconv.Itoa(r.Number)
	default:
		return ""
	}
}

// Draft is the selector for the draft slot.
func Draft() Revision { return Revision{Draft: true} }

// Numbered is the selector for a specific numbered revision.
func Numbered(n int) Revision { return Revision{Number: n} }

// URI is an immutable node address. Namespace plus Path form the node
// identity; Extension and Revision are orthogonal selectors on it.
type URI struct {
	Scheme    string
	Namespace string
	Path      string
	Extension string
	Revision  Revision
}

// Parse parses the wire form of a URI. It returns a *ParseError for an
// empty path, a revision token that is neither a positive integer nor the
// draft sentinel, or malformed namespace syntax.
func Parse(raw string) (URI, error) {
	var u URI
	rest := raw

	if i := strings.Index(rest, "://"); i >= 0 {
		u.Scheme = rest[:i]
		rest = rest[i+3:]
		if u.Scheme == "" {
			return URI{}, &ParseError{Raw: raw, Reason: "empty scheme"}
		}
	}

	if i := strings.LastIndex(rest, "#"); i >= 0 {
		rev, err := parseRevision(raw, rest[i+1:])
		if err != nil {
			return URI{}, err
		}
		u.Revision = rev
		rest = rest[:i]
	}

	if i := strings.Index(rest, "@"); i >= 0 {
		u.Namespace = rest[:i]
		rest = rest[i+1:]
		if u.Namespace == "" {
			return URI{}, &ParseError{Raw: raw, Reason: "empty namespace"}
		}
		if strings.Contains(rest, "@") {
			return URI{}, &ParseError{Raw: raw, Reason: "multiple namespace separators"}
		}
	}

	// The extension is the suffix after the last dot of the last path
	// segment; dots in earlier segments are plain path characters.
	if i := strings.LastIndex(rest, "."); i > strings.LastIndex(rest, "/") {
		u.Extension = rest[i+1:]
		rest = rest[:i]
		if u.Extension == "" {
			return URI{}, &ParseError{Raw: raw, Reason: "empty extension"}
		}
	}

	u.Path = rest
	if u.Path == "" {
		return URI{}, &ParseError{Raw: raw, Reason: "empty path"}
	}
	if strings.HasPrefix(u.Path, "/") || strings.HasSuffix(u.Path, "/") || strings.Contains(u.Path, "//") {
		return URI{}, &ParseError{Raw: raw, Reason: "empty path segment"}
	}

	return u, nil
}

func parseRevision(raw, token string) (Revision, error) {
	if token == DraftToken {
		return Revision{Draft: true}, nil
	}
	n, err := strconv.Atoi(token)
	if err != nil || n <= 0 {
		return Revision{}, &ParseError{Raw: raw, Reason: fmt.Sprintf("revision %q is neither a positive integer nor %q", token, DraftToken)}
	}
	return Revision{Number: n}, nil
}

// String formats the URI back to its wire form. For any URI produced by
// the store, Parse(u.String()) yields u again.
func (u URI) String() string {
	var b strings.Builder
	if u.Scheme != "" {
		b.WriteString(u.Scheme)
		b.WriteString("://")
	}
	if u.Namespace != "" {
		b.WriteString(u.Namespace)
		b.WriteByte('@')
	}
	b.WriteString(u.Path)
	if u.Extension != "" {
		b.WriteByte('.')
		b.WriteString(u.Extension)
	}
	if rev := u.Revision.String(); rev != "" {
		b.WriteByte('#')
		b.WriteString(rev)
	}
	return b.String()
}

// IsConcrete reports whether the URI fully qualifies a write target: it
// names a namespace and an explicit extension.
func (u URI) IsConcrete() bool {
	return u.Namespace != "" && u.Extension != ""
}

// WithDefaults returns a copy with empty scheme and extension filled in
// from defaults. Namespace and revision are never defaulted.
func (u URI) WithDefaults(scheme, extension string) URI {
	if u.Scheme == "" {
		u.Scheme = scheme
	}
	if u.Extension == "" {
		u.Extension = extension
	}
	return u
}

// WithExtension returns a copy addressing the same identity under another
// extension.
func (u URI) WithExtension(extension string) URI {
	u.Extension = extension
	return u
}

// WithRevision returns a copy with the given revision selector.
func (u URI) WithRevision(rev Revision) URI {
	u.Revision = rev
	return u
}

// MarshalText implements encoding.TextMarshaler using the wire form.
func (u URI) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *URI) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
