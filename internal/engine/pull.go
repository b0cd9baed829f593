package engine

import (
	"context"
	"errors"
	"os"
)

// PullPage fetches one remote page by id and writes it to outputPath
// (relative to the docs root) as Markdown, with a metadata header when the
// engine is configured to include one. The mapping entry is recorded so
// subsequent runs diff against the pulled state.
func (e *Engine) PullPage(ctx context.Context, pageID, outputPath string) Outcome {
	page, err := e.client.GetPage(ctx, pageID)
	if err != nil {
		o := failOutcome(outputPath, err)
		e.logOutcome(o)
		return o
	}

	existed := true
	if _, err := e.store.Read(outputPath); err != nil && errors.Is(err, os.ErrNotExist) {
		existed = false
	}

	o := e.pull(outputPath, page)
	if o.Status == StatusUpdated && !existed {
		o.Status = StatusCreated
	}
	e.logOutcome(o)
	return o
}
