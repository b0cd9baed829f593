// Package wiki defines the remote page collaborator boundary.
//
// The sync engine depends on these narrow capability interfaces, not on the
// HTTP client, so the remote side is trivially replaceable with fakes.
package wiki

import (
	"context"

	"github.com/stenmark/docbridge/internal/models"
)

// PageReader fetches a single page with its storage body.
type PageReader interface {
	GetPage(ctx context.Context, pageID string) (*models.RemotePage, error)
}

// SpaceLister enumerates the pages of a space for matching.
type SpaceLister interface {
	GetSpacePages(ctx context.Context, spaceKey string) ([]models.PageSummary, error)
}

// PageWriter creates and updates pages. UpdatePage takes the version the
// caller last observed; a stale version must fail with
// apperr.ErrVersionConflict rather than silently overwrite.
type PageWriter interface {
	CreatePage(ctx context.Context, spaceKey, title, storageBody, parentID string) (string, error)
	UpdatePage(ctx context.Context, pageID, title, storageBody string, expectedVersion int) (int, error)
}

// Client bundles every capability the engine can need. Individual components
// should accept the narrowest interface that serves them.
type Client interface {
	PageReader
	SpaceLister
	PageWriter
}
