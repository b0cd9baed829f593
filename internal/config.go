package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Sync    SyncConfig        `yaml:"sync"`
	Wiki    WikiConfig        `yaml:"wiki"`
	Journal JournalConfig     `yaml:"journal"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Sync.Validate(); err != nil {
		return err
	}
	if err := c.Wiki.Validate(); err != nil {
		return err
	}
	if err := c.Journal.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration for serve mode.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns the HTTP server listen address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SyncConfig holds every knob of the synchronization engine. Constructed
// once per run and immutable thereafter.
type SyncConfig struct {
	Enabled             bool     `yaml:"enabled"`
	SyncDirectory       string   `yaml:"sync_directory"`
	MappingFile         string   `yaml:"mapping_file"`
	Mode                string   `yaml:"mode"`
	ConflictStrategy    string   `yaml:"conflict_strategy"`
	PreserveHierarchy   bool     `yaml:"preserve_hierarchy"`
	AutoCreatePages     bool     `yaml:"auto_create_pages"`
	IncludeMetadata     bool     `yaml:"include_metadata"`
	MatchThreshold      float64  `yaml:"match_threshold"`
	RequiredFrontmatter []string `yaml:"required_frontmatter"`
	OptionalFrontmatter []string `yaml:"optional_frontmatter"`
	PreserveFormatting  bool     `yaml:"preserve_formatting"`
	ConvertLinks        bool     `yaml:"convert_links"`
	HandleAttachments   bool     `yaml:"handle_attachments"`
	Parallelism         int      `yaml:"parallelism"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SyncDirectory, validation.Required),
		validation.Field(&c.MappingFile, validation.Required),
		validation.Field(&c.Mode, validation.Required, validation.In("push", "pull", "auto")),
		validation.Field(&c.ConflictStrategy, validation.Required,
			validation.In("prompt", "prefer_local", "prefer_remote", "abort")),
		validation.Field(&c.MatchThreshold, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&c.Parallelism, validation.Min(0), validation.Max(64)),
	)
}

// WikiConfig holds the remote wiki connection settings.
type WikiConfig struct {
	BaseURL  string `yaml:"base_url"`
	SpaceKey string `yaml:"space_key"`
	Token    string `yaml:"token"`
}

// Validate validates the wiki configuration.
func (c *WikiConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required),
		validation.Field(&c.SpaceKey, validation.Required),
	)
}

// JournalConfig holds the run-history database path.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the journal configuration.
func (c *JournalConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds API authentication configuration for serve mode.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Sync: SyncConfig{
			Enabled:          true,
			SyncDirectory:    "./docs",
			MappingFile:      "./docs/.docbridge/mappings.json",
			Mode:             "auto",
			ConflictStrategy: "prompt",
			AutoCreatePages:  true,
			IncludeMetadata:  true,
			MatchThreshold:   80,
			Parallelism:      1,
		},
		Wiki: WikiConfig{
			BaseURL:  "http://localhost:8090",
			SpaceKey: "DOCS",
		},
		Journal: JournalConfig{
			Path: "./docbridge.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
