package internal

import (
	"log/slog"

	"github.com/stenmark/docbridge/internal/wiki"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	logger *slog.Logger
	client wiki.Client

	mode        string
	strategy    string
	spaceKey    string
	dryRun      bool
	parallelism int
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogger overrides the default JSON logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *application) {
		a.logger = logger
	}
}

// WithWikiClient overrides the HTTP wiki client, mainly for tests.
func WithWikiClient(client wiki.Client) Option {
	return func(a *application) {
		a.client = client
	}
}

// WithMode overrides the configured sync mode (push, pull, auto).
func WithMode(mode string) Option {
	return func(a *application) {
		a.mode = mode
	}
}

// WithStrategy overrides the configured conflict strategy.
func WithStrategy(strategy string) Option {
	return func(a *application) {
		a.strategy = strategy
	}
}

// WithSpaceKey overrides the configured target space.
func WithSpaceKey(spaceKey string) Option {
	return func(a *application) {
		a.spaceKey = spaceKey
	}
}

// WithDryRun enables preview mode: actions are reported but nothing is
// written to the wiki or the mapping store.
func WithDryRun(dryRun bool) Option {
	return func(a *application) {
		a.dryRun = dryRun
	}
}

// WithParallelism overrides how many files are processed at once.
func WithParallelism(n int) Option {
	return func(a *application) {
		a.parallelism = n
	}
}
