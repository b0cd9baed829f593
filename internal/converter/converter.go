// Package converter turns local Markdown documents into wiki storage-format
// pages and back.
//
// The conversion covers the construct set needed for docs-as-code
// round-tripping: headings, emphasis, inline code, fenced code blocks, links,
// nested lists, blockquotes, and tables. Round-trips are semantic, not
// byte-exact; in particular ordered lists regenerate with a uniform leading
// marker because the wiki auto-numbers them.
package converter

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gparser "github.com/yuin/goldmark/parser"

	"github.com/stenmark/docbridge/internal/apperr"
	"github.com/stenmark/docbridge/internal/checksum"
	"github.com/stenmark/docbridge/internal/frontmatter"
	"github.com/stenmark/docbridge/internal/models"
	"github.com/stenmark/docbridge/internal/storage"
)

// ParsedDocument is the parsed representation of one local Markdown file.
// Created fresh on every parse and never mutated.
type ParsedDocument struct {
	Path        string
	Title       string
	Frontmatter frontmatter.Frontmatter
	Markdown    string // body without the frontmatter header
	Storage     string // body converted to wiki storage format
	ContentHash string // digest of the normalized body
}

// Converter converts between Markdown and wiki storage format. It is
// stateless after construction and safe for concurrent use.
type Converter struct {
	store storage.Provider
	md    goldmark.Markdown
}

// New creates a converter reading documents through the given provider.
func New(store storage.Provider) *Converter {
	return &Converter{
		store: store,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(gparser.WithAutoHeadingID()),
		),
	}
}

// ParseDocument reads and parses the file at path (relative to the docs
// root). Returns apperr.ErrFileNotFound when the path does not resolve.
func (c *Converter) ParseDocument(p string) (*ParsedDocument, error) {
	data, err := c.store.Read(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrFileNotFound, p)
		}
		return nil, err
	}

	fm, body := frontmatter.Parse(string(data))
	title := ResolveTitle(fm, body, p)

	storageBody, err := c.ToStorage(body)
	if err != nil {
		return nil, err
	}

	return &ParsedDocument{
		Path:        p,
		Title:       title,
		Frontmatter: fm,
		Markdown:    body,
		Storage:     storageBody,
		ContentHash: checksum.Content(body),
	}, nil
}

// ContentHash returns the digest of the normalized Markdown body.
func (c *Converter) ContentHash(markdown string) string {
	return checksum.Content(markdown)
}

// CreateFrontmatter builds the canonical header block for a pulled page.
func (c *Converter) CreateFrontmatter(meta models.PageMetadata) string {
	return frontmatter.Serialize(meta)
}

// ResolveTitle resolves a document title by precedence: explicit frontmatter
// title, first level-1 heading, then the filename stem.
func ResolveTitle(fm frontmatter.Frontmatter, body, filePath string) string {
	if t := fm.ScalarOf(frontmatter.KeyTitle); t != "" {
		return t
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			if t := strings.TrimSpace(trimmed[2:]); t != "" {
				return t
			}
		}
	}
	base := path.Base(filePath)
	return strings.TrimSuffix(base, path.Ext(base))
}
