// Package engine implements the synchronization run: discovery, identity
// resolution, diffing against last-synced state, conflict resolution, and
// mapping updates.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stenmark/docbridge/internal/apperr"
	"github.com/stenmark/docbridge/internal/converter"
	"github.com/stenmark/docbridge/internal/frontmatter"
	"github.com/stenmark/docbridge/internal/mapping"
	"github.com/stenmark/docbridge/internal/matcher"
	"github.com/stenmark/docbridge/internal/models"
	"github.com/stenmark/docbridge/internal/storage"
	"github.com/stenmark/docbridge/internal/wiki"
)

// SyncMode selects which direction(s) of change a run may propagate.
type SyncMode string

const (
	ModePush          SyncMode = "push" // local is authoritative
	ModePull          SyncMode = "pull" // remote is authoritative
	ModeBidirectional SyncMode = "auto" // both, with conflict detection
)

// ParseMode validates a mode string from the CLI or config.
func ParseMode(s string) (SyncMode, error) {
	switch SyncMode(s) {
	case ModePush, ModePull, ModeBidirectional:
		return SyncMode(s), nil
	}
	return "", fmt.Errorf("unknown sync mode %q (want push, pull, or auto)", s)
}

// ConflictStrategy decides what happens when both sides changed since the
// last sync.
type ConflictStrategy string

const (
	StrategyPrompt       ConflictStrategy = "prompt"        // report, take no action
	StrategyPreferLocal  ConflictStrategy = "prefer_local"  // push local over remote
	StrategyPreferRemote ConflictStrategy = "prefer_remote" // pull remote over local
	StrategyAbort        ConflictStrategy = "abort"         // stop the run on first conflict
)

// ParseStrategy validates a conflict strategy string.
func ParseStrategy(s string) (ConflictStrategy, error) {
	switch ConflictStrategy(s) {
	case StrategyPrompt, StrategyPreferLocal, StrategyPreferRemote, StrategyAbort:
		return ConflictStrategy(s), nil
	}
	return "", fmt.Errorf("unknown conflict strategy %q", s)
}

// Options is the per-run configuration, constructed once and immutable.
type Options struct {
	Mode                SyncMode
	Strategy            ConflictStrategy
	SpaceKey            string
	ParentID            string // explicit parent for created pages
	AutoCreate          bool
	PreserveHierarchy   bool
	IncludeMetadata     bool
	RequiredFrontmatter []string
	Parallelism         int // files processed at once; <=1 means sequential
	DryRun              bool

	// OnOutcome, when set, is called for every file outcome as it is
	// produced. Must be safe for concurrent calls when Parallelism > 1.
	OnOutcome func(Outcome)
}

// Engine runs the per-file state machine over a docs tree. Safe for a single
// run at a time; construct one per run or serialize Run calls.
type Engine struct {
	logger   *slog.Logger
	store    storage.Provider
	conv     *converter.Converter
	mappings *mapping.Store
	match    *matcher.Matcher
	client   wiki.Client
	opts     Options

	spaceMu      sync.Mutex
	spaceFetched bool
	spacePages   []models.PageSummary
	spaceErr     error
}

// New assembles an engine from its collaborators.
func New(logger *slog.Logger, store storage.Provider, conv *converter.Converter,
	mappings *mapping.Store, match *matcher.Matcher, client wiki.Client, opts Options) *Engine {
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	return &Engine{
		logger:   logger,
		store:    store,
		conv:     conv,
		mappings: mappings,
		match:    match,
		client:   client,
		opts:     opts,
	}
}

// Options returns the run configuration the engine was built with.
func (e *Engine) Options() Options { return e.opts }

// Run synchronizes every Markdown file under the docs root. Per-file errors
// are contained in the report; Run itself fails only on cancellation, on an
// unlistable docs tree, or when the abort strategy stops the run.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		StartedAt: time.Now().UTC(),
		Mode:      string(e.opts.Mode),
		Strategy:  string(e.opts.Strategy),
		DryRun:    e.opts.DryRun,
	}
	if e.mappings.Corrupt() {
		report.warn("mapping store was unreadable and has been reset; entries rebuild on the next successful sync of each file")
	}

	files, err := e.store.List("")
	if err != nil {
		return report, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Parallelism)
	for _, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcome := e.processFile(gctx, f.Path)
			report.add(outcome)
			e.logOutcome(outcome)
			if e.opts.OnOutcome != nil {
				e.opts.OnOutcome(outcome)
			}
			if outcome.Status == StatusConflict && e.opts.Strategy == StrategyAbort {
				return fmt.Errorf("%w: %s", apperr.ErrRunAborted, f.Path)
			}
			return nil
		})
	}
	runErr := g.Wait()

	if runErr == nil && !e.opts.DryRun {
		exists := make(map[string]bool, len(files))
		for _, f := range files {
			exists[f.Path] = true
		}
		removed, recErr := e.mappings.Reconcile(func(p string) bool { return exists[p] })
		if recErr != nil {
			report.warn("mapping reconciliation failed: " + recErr.Error())
		}
		for _, p := range removed {
			e.logger.Info("mapping: removed entry for vanished file", slog.String("path", p))
		}
	}

	report.FinishedAt = time.Now().UTC()
	return report, runErr
}

// SyncFile synchronizes a single file by its path relative to the docs root.
func (e *Engine) SyncFile(ctx context.Context, path string) Outcome {
	o := e.processFile(ctx, path)
	e.logOutcome(o)
	if e.opts.OnOutcome != nil {
		e.opts.OnOutcome(o)
	}
	return o
}

// processFile runs the state machine for one file. Every error is converted
// to an outcome here; nothing escapes to abort sibling files.
func (e *Engine) processFile(ctx context.Context, p string) Outcome {
	doc, err := e.conv.ParseDocument(p)
	if err != nil {
		return failOutcome(p, err)
	}

	for _, key := range e.opts.RequiredFrontmatter {
		if !doc.Frontmatter.Has(key) {
			return Outcome{Path: p, Status: StatusSkipped, Reason: SkipMissingFrontmatter}
		}
	}

	entry, mapped := e.mappings.Get(p)
	if !mapped {
		return e.firstSync(ctx, doc)
	}

	page, err := e.client.GetPage(ctx, entry.PageID)
	if err != nil {
		return failOutcome(p, err)
	}

	localChanged := doc.ContentHash != entry.LastSyncedHash
	remoteChanged := page.Version != entry.LastSyncedRemoteVersion

	switch {
	case !localChanged && !remoteChanged:
		return Outcome{Path: p, Status: StatusSkipped, Reason: SkipUnchanged}

	case localChanged && !remoteChanged:
		if e.opts.Mode == ModePull {
			return Outcome{Path: p, Status: StatusSkipped, Reason: SkipPushDisabled}
		}
		return e.push(ctx, doc, page, StatusUpdated)

	case !localChanged && remoteChanged:
		if e.opts.Mode == ModePush {
			return Outcome{Path: p, Status: StatusSkipped, Reason: SkipPullDisabled}
		}
		return e.pull(doc.Path, page)

	default:
		return e.resolveConflict(ctx, doc, page)
	}
}

// firstSync handles a file with no mapping entry: resolve identity through
// the frontmatter page-id hint, then the matcher, then creation.
func (e *Engine) firstSync(ctx context.Context, doc *converter.ParsedDocument) Outcome {
	p := doc.Path

	if hint := doc.Frontmatter.ScalarOf(frontmatter.KeyPageID); hint != "" {
		page, err := e.client.GetPage(ctx, hint)
		if err != nil {
			return failOutcome(p, err)
		}
		return e.firstSyncMatched(ctx, doc, page)
	}

	pages, err := e.getSpacePages(ctx)
	if err != nil {
		return failOutcome(p, err)
	}
	if best, ok := e.match.Best(doc.Title, pages); ok {
		page, err := e.client.GetPage(ctx, best.ID)
		if err != nil {
			return failOutcome(p, err)
		}
		return e.firstSyncMatched(ctx, doc, page)
	}

	if !e.opts.AutoCreate {
		return Outcome{Path: p, Status: StatusSkipped, Reason: SkipNoMapping}
	}
	if e.opts.Mode == ModePull {
		// Nothing on the remote side to pull from, and creation is a push.
		return Outcome{Path: p, Status: StatusSkipped, Reason: SkipPushDisabled}
	}
	return e.create(ctx, doc)
}

// firstSyncMatched links a previously unmapped file to an existing page.
// Remote is authoritative in pull mode; otherwise the local body is pushed.
func (e *Engine) firstSyncMatched(ctx context.Context, doc *converter.ParsedDocument, page *models.RemotePage) Outcome {
	if e.opts.Mode == ModePull {
		return e.pull(doc.Path, page)
	}
	return e.push(ctx, doc, page, StatusUpdated)
}

// push writes the local document over the remote page, guarded by the
// version just observed, and records the mapping on success.
func (e *Engine) push(ctx context.Context, doc *converter.ParsedDocument, page *models.RemotePage, status Status) Outcome {
	p := doc.Path
	if e.opts.DryRun {
		return Outcome{Path: p, Status: status, PageID: page.ID}
	}

	newVersion, err := e.client.UpdatePage(ctx, page.ID, doc.Title, doc.Storage, page.Version)
	if err != nil {
		if errors.Is(err, apperr.ErrVersionConflict) {
			// The page moved between our fetch and the update.
			return Outcome{Path: p, Status: StatusConflict, PageID: page.ID,
				LocalHash: doc.ContentHash, RemoteVersion: page.Version}
		}
		return failOutcome(p, err)
	}

	if err := e.putMapping(p, page.ID, page.ParentID, doc.ContentHash, newVersion); err != nil {
		return failOutcome(p, err)
	}
	return Outcome{Path: p, Status: status, PageID: page.ID}
}

// pull writes the remote page body into the local file and records the
// mapping with the pulled content's hash.
func (e *Engine) pull(p string, page *models.RemotePage) Outcome {
	if e.opts.DryRun {
		return Outcome{Path: p, Status: StatusUpdated, PageID: page.ID}
	}

	markdown := e.conv.FromStorage(page.Body)
	content := markdown
	if e.opts.IncludeMetadata {
		content = e.conv.CreateFrontmatter(page.Metadata()) + markdown
	}
	if err := e.store.Write(p, []byte(content)); err != nil {
		return Outcome{Path: p, Status: StatusFailed, ErrorKind: FailFileNotFound, Message: err.Error()}
	}

	// Record the hash the next parse will compute, so the pulled state reads
	// as unchanged on the following run.
	_, body := frontmatter.Parse(content)
	if err := e.putMapping(p, page.ID, page.ParentID, e.conv.ContentHash(body), page.Version); err != nil {
		return failOutcome(p, err)
	}
	return Outcome{Path: p, Status: StatusUpdated, PageID: page.ID}
}

// create makes a new remote page for an unmatched local file.
func (e *Engine) create(ctx context.Context, doc *converter.ParsedDocument) Outcome {
	p := doc.Path
	parentID := e.resolveParent(ctx, p)
	if e.opts.DryRun {
		return Outcome{Path: p, Status: StatusCreated}
	}

	pageID, err := e.client.CreatePage(ctx, e.opts.SpaceKey, doc.Title, doc.Storage, parentID)
	if err != nil {
		return failOutcome(p, err)
	}

	// A freshly created page is at version 1.
	if err := e.putMapping(p, pageID, parentID, doc.ContentHash, 1); err != nil {
		return failOutcome(p, err)
	}
	return Outcome{Path: p, Status: StatusCreated, PageID: pageID}
}

// resolveConflict applies the configured strategy when both sides changed.
func (e *Engine) resolveConflict(ctx context.Context, doc *converter.ParsedDocument, page *models.RemotePage) Outcome {
	switch e.opts.Strategy {
	case StrategyPreferLocal:
		if e.opts.Mode == ModePull {
			return Outcome{Path: doc.Path, Status: StatusSkipped, Reason: SkipPushDisabled}
		}
		return e.push(ctx, doc, page, StatusUpdated)
	case StrategyPreferRemote:
		if e.opts.Mode == ModePush {
			return Outcome{Path: doc.Path, Status: StatusSkipped, Reason: SkipPullDisabled}
		}
		return e.pull(doc.Path, page)
	default:
		// Prompt reports and leaves both sides untouched. Abort produces the
		// same outcome; Run stops when it sees it.
		return Outcome{Path: doc.Path, Status: StatusConflict, PageID: page.ID,
			LocalHash: doc.ContentHash, RemoteVersion: page.Version}
	}
}

// resolveParent picks the parent for a page about to be created: the
// explicitly configured parent, else a page whose title matches the file's
// containing directory name when hierarchy preservation is on.
func (e *Engine) resolveParent(ctx context.Context, p string) string {
	if e.opts.ParentID != "" {
		return e.opts.ParentID
	}
	if !e.opts.PreserveHierarchy {
		return ""
	}
	dir := path.Base(path.Dir(p))
	if dir == "." || dir == "/" {
		return ""
	}
	pages, err := e.getSpacePages(ctx)
	if err != nil {
		return ""
	}
	for _, pg := range pages {
		if strings.EqualFold(strings.TrimSpace(pg.Title), strings.TrimSpace(dir)) {
			return pg.ID
		}
	}
	return ""
}

// getSpacePages fetches the space listing once per run and shares it across
// files. A fetch failure is remembered and surfaced per file.
func (e *Engine) getSpacePages(ctx context.Context) ([]models.PageSummary, error) {
	e.spaceMu.Lock()
	defer e.spaceMu.Unlock()
	if !e.spaceFetched {
		e.spacePages, e.spaceErr = e.client.GetSpacePages(ctx, e.opts.SpaceKey)
		e.spaceFetched = true
	}
	return e.spacePages, e.spaceErr
}

func (e *Engine) putMapping(p, pageID, parentID, hash string, version int) error {
	return e.mappings.Put(p, mapping.Entry{
		PageID:                  pageID,
		SpaceKey:                e.opts.SpaceKey,
		ParentID:                parentID,
		LastSyncedHash:          hash,
		LastSyncedRemoteVersion: version,
		LastSyncedAt:            time.Now().UTC(),
	})
}

func (e *Engine) logOutcome(o Outcome) {
	attrs := []any{slog.String("path", o.Path), slog.String("status", string(o.Status))}
	switch o.Status {
	case StatusSkipped:
		attrs = append(attrs, slog.String("reason", o.Reason))
	case StatusFailed:
		attrs = append(attrs, slog.String("kind", o.ErrorKind), slog.String("error", o.Message))
	case StatusConflict:
		attrs = append(attrs, slog.Int("remote_version", o.RemoteVersion))
	}
	if o.Status == StatusFailed {
		e.logger.Warn("sync: file failed", attrs...)
		return
	}
	e.logger.Info("sync: file processed", attrs...)
}

// failOutcome classifies an error into a Failed outcome.
func failOutcome(p string, err error) Outcome {
	kind := FailRemoteAPI
	switch {
	case errors.Is(err, apperr.ErrFileNotFound):
		kind = FailFileNotFound
	case errors.Is(err, apperr.ErrConversion):
		kind = FailConversion
	}
	return Outcome{Path: p, Status: StatusFailed, ErrorKind: kind, Message: err.Error()}
}
