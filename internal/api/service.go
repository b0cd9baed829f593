package api

import (
	"context"

	"github.com/stenmark/docbridge/internal/engine"
	"github.com/stenmark/docbridge/internal/journal"
	"github.com/stenmark/docbridge/internal/mapping"
)

// SyncRunner triggers one synchronization run with the given options and
// returns its report. The caller behind it owns journaling and event
// publication.
type SyncRunner func(ctx context.Context, opts engine.Options) (*engine.Report, error)

// Service coordinates sync runs, run history, and the mapping registry for
// the API layer.
type Service struct {
	run      SyncRunner
	baseOpts engine.Options
	journal  *journal.DB
	mappings *mapping.Store
}

// NewService creates an API service. baseOpts is the configured run shape;
// per-request overrides are applied on top of a copy.
func NewService(run SyncRunner, baseOpts engine.Options, db *journal.DB, mappings *mapping.Store) *Service {
	return &Service{run: run, baseOpts: baseOpts, journal: db, mappings: mappings}
}

// RunOverrides are the per-request knobs a sync trigger may change.
type RunOverrides struct {
	Mode     string `json:"mode,omitempty"`
	Strategy string `json:"strategy,omitempty"`
	DryRun   bool   `json:"dry_run,omitempty"`
}

// Sync runs a synchronization with the service's configured options plus any
// request overrides.
func (s *Service) Sync(ctx context.Context, ov RunOverrides) (*engine.Report, error) {
	opts := s.baseOpts
	if ov.Mode != "" {
		mode, err := engine.ParseMode(ov.Mode)
		if err != nil {
			return nil, err
		}
		opts.Mode = mode
	}
	if ov.Strategy != "" {
		strategy, err := engine.ParseStrategy(ov.Strategy)
		if err != nil {
			return nil, err
		}
		opts.Strategy = strategy
	}
	if ov.DryRun {
		opts.DryRun = true
	}
	return s.run(ctx, opts)
}

// History returns recent runs, newest first.
func (s *Service) History(limit int) ([]journal.RunRow, error) {
	return s.journal.RecentRuns(limit)
}

// RunOutcomes returns the per-file outcomes of one recorded run.
func (s *Service) RunOutcomes(runID int64) ([]engine.Outcome, error) {
	return s.journal.RunOutcomes(runID)
}

// Mappings returns every mapping entry keyed by local path.
func (s *Service) Mappings() map[string]mapping.Entry {
	return s.mappings.All()
}
