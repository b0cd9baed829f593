// Package models defines the wiki-side domain types for docbridge.
package models

import "time"

// RemotePage is a full wiki page as returned by the page reader.
type RemotePage struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	SpaceKey string `json:"space_key"`
	ParentID string `json:"parent_id,omitempty"`
	Version  int    `json:"version"`
	Body     string `json:"body"` // storage format
}

// PageSummary is the lightweight representation returned by space listings.
type PageSummary struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Version int    `json:"version"`
}

// PageMetadata carries the page fields embedded into a frontmatter header
// when remote content is pulled into the local tree.
type PageMetadata struct {
	PageID     string
	SpaceKey   string
	ParentID   string
	Title      string
	Version    int
	ModifiedAt time.Time
	Author     string
	Labels     []string
}

// Metadata extracts the header fields from a full page.
func (p *RemotePage) Metadata() PageMetadata {
	return PageMetadata{
		PageID:   p.ID,
		SpaceKey: p.SpaceKey,
		ParentID: p.ParentID,
		Title:    p.Title,
		Version:  p.Version,
	}
}
