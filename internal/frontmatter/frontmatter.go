// Package frontmatter extracts and serializes the YAML metadata header of a
// Markdown document.
//
// Parsing is fail-soft: a malformed header yields an empty Frontmatter and
// the original content unchanged, never an error. One bad file must not take
// down a whole sync run.
package frontmatter

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stenmark/docbridge/internal/models"
)

const delim = "---\n"

// Header keys written when remote content is pulled into a local file.
const (
	KeyPageID     = "wiki_page_id"
	KeySpaceKey   = "wiki_space_key"
	KeyParentID   = "wiki_parent_id"
	KeyTitle      = "title"
	KeyVersion    = "wiki_version"
	KeyModified   = "last_modified"
	KeyModifiedBy = "last_modified_by"
	KeyLabels     = "labels"
)

// Kind discriminates the closed set of frontmatter value shapes.
type Kind int

const (
	KindScalar Kind = iota
	KindList
	KindMap
)

// Value is a frontmatter value: a scalar, a list of values, or a nested
// ordered mapping. Exactly one of the payload fields is set for its Kind.
type Value struct {
	Kind   Kind
	Scalar string
	List   []Value
	Map    Frontmatter
}

// Field is one key/value pair of a header.
type Field struct {
	Key   string
	Value Value
}

// Frontmatter is an ordered, case-sensitive key→value mapping.
type Frontmatter []Field

// Get returns the value for key and whether it is present.
func (f Frontmatter) Get(key string) (Value, bool) {
	for _, fld := range f {
		if fld.Key == key {
			return fld.Value, true
		}
	}
	return Value{}, false
}

// Has reports whether key is present.
func (f Frontmatter) Has(key string) bool {
	_, ok := f.Get(key)
	return ok
}

// ScalarOf returns the scalar value for key, or "" when the key is absent or
// not a scalar.
func (f Frontmatter) ScalarOf(key string) string {
	v, ok := f.Get(key)
	if !ok || v.Kind != KindScalar {
		return ""
	}
	return v.Scalar
}

// StringsOf returns the value for key flattened to a string slice: a scalar
// becomes a one-element slice, a list keeps its scalar elements.
func (f Frontmatter) StringsOf(key string) []string {
	v, ok := f.Get(key)
	if !ok {
		return nil
	}
	switch v.Kind {
	case KindScalar:
		if v.Scalar == "" {
			return nil
		}
		return []string{v.Scalar}
	case KindList:
		var out []string
		for _, item := range v.List {
			if item.Kind == KindScalar && item.Scalar != "" {
				out = append(out, item.Scalar)
			}
		}
		return out
	}
	return nil
}

// Parse splits content into its frontmatter header and the remaining body.
// When content does not begin with a delimiter block, or the block is
// unterminated or structurally invalid, Parse returns an empty Frontmatter
// and content untouched.
func Parse(content string) (Frontmatter, string) {
	if !strings.HasPrefix(content, delim) {
		return nil, content
	}

	after := content[len(delim):]
	var block, rest string
	switch {
	case strings.HasPrefix(after, "---"):
		// Empty header: the opening line's newline also precedes the
		// closing delimiter.
		block, rest = "", after[len("---"):]
	default:
		i := strings.Index(after, "\n---")
		if i < 0 {
			return nil, content
		}
		block, rest = after[:i], after[i+len("\n---"):]
	}

	switch {
	case rest == "":
	case strings.HasPrefix(rest, "\n"):
		rest = strings.TrimPrefix(rest, "\n")
	default:
		// Closing delimiter is not on its own line ("---foo").
		return nil, content
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(block), &doc); err != nil {
		return nil, content
	}
	if len(doc.Content) == 0 {
		return Frontmatter{}, rest
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, content
	}
	fm, err := decodeMapping(root)
	if err != nil {
		return nil, content
	}
	return fm, rest
}

func decodeMapping(n *yaml.Node) (Frontmatter, error) {
	fm := make(Frontmatter, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		v, err := decodeValue(n.Content[i+1])
		if err != nil {
			return nil, err
		}
		fm = append(fm, Field{Key: n.Content[i].Value, Value: v})
	}
	return fm, nil
}

func decodeValue(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return Value{Kind: KindScalar, Scalar: n.Value}, nil
	case yaml.SequenceNode:
		list := make([]Value, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := decodeValue(c)
			if err != nil {
				return Value{}, err
			}
			list = append(list, v)
		}
		return Value{Kind: KindList, List: list}, nil
	case yaml.MappingNode:
		m, err := decodeMapping(n)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindMap, Map: m}, nil
	case yaml.AliasNode:
		return decodeValue(n.Alias)
	}
	return Value{}, errUnsupportedNode
}

var errUnsupportedNode = errors.New("frontmatter: unsupported node kind")

// Serialize produces the canonical frontmatter block for a pulled page. Keys
// with empty values are omitted; key order is fixed so repeated pulls of an
// unchanged page produce identical headers.
func Serialize(meta models.PageMetadata) string {
	node := &yaml.Node{Kind: yaml.MappingNode}
	add := func(key, value string) {
		if value == "" {
			return
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: key},
			&yaml.Node{Kind: yaml.ScalarNode, Value: value},
		)
	}

	add(KeyPageID, meta.PageID)
	add(KeySpaceKey, meta.SpaceKey)
	add(KeyParentID, meta.ParentID)
	add(KeyTitle, meta.Title)
	if meta.Version > 0 {
		add(KeyVersion, strconv.Itoa(meta.Version))
	}
	if !meta.ModifiedAt.IsZero() {
		add(KeyModified, meta.ModifiedAt.UTC().Format(time.RFC3339))
	}
	add(KeyModifiedBy, meta.Author)
	if len(meta.Labels) > 0 {
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, l := range meta.Labels {
			seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: l})
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: KeyLabels}, seq)
	}

	out, err := yaml.Marshal(node)
	if err != nil {
		// A mapping of scalar nodes cannot fail to marshal.
		return "---\n---\n\n"
	}
	return "---\n" + string(out) + "---\n\n"
}
