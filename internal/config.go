package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/murmur/internal/models"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig  `yaml:"app"`
	Primary     PrimaryConfig      `yaml:"primary"`
	Collections []CollectionConfig `yaml:"collections"`
	Index       IndexConfig        `yaml:"index"`
	Recordings  RecordingsConfig   `yaml:"recordings"`
	Auth        AuthConfig         `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Primary.Validate(); err != nil {
		return fmt.Errorf("primary: %w", err)
	}
	for i := range c.Collections {
		if err := c.Collections[i].Validate(); err != nil {
			return fmt.Errorf("collections[%d]: %w", i, err)
		}
	}
	if err := c.Index.Validate(); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	if err := c.Recordings.Validate(); err != nil {
		return fmt.Errorf("recordings: %w", err)
	}
	return c.Auth.Validate()
}

// PrimaryCollection returns the managed collection described by the config.
func (c *Config) PrimaryCollection() models.Collection {
	return models.Collection{
		Name:    c.Primary.Name,
		Root:    c.Primary.Path,
		Enabled: true,
		Kind:    models.KindPrimary,
		Icon:    c.Primary.Icon,
	}
}

// ExternalCollections returns the configured external collections in
// declaration order. Duplicate names are passed through untouched.
func (c *Config) ExternalCollections() []models.Collection {
	out := make([]models.Collection, 0, len(c.Collections))
	for _, cc := range c.Collections {
		out = append(out, models.Collection{
			Name:    cc.Name,
			Root:    cc.Path,
			Enabled: cc.IsEnabled(),
			Kind:    models.KindExternal,
			Icon:    cc.Icon,
		})
	}
	return out
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

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// PrimaryConfig describes the managed collection that receives imported
// recordings and the generated topic index.
type PrimaryConfig struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
	Icon string `yaml:"icon"`
}

// Validate validates the primary collection configuration.
func (c *PrimaryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Path, validation.Required),
	)
}

// CollectionConfig is one externally registered collection. Enabled
// defaults to true when omitted.
type CollectionConfig struct {
	Name    string `yaml:"name"`
	Path    string `yaml:"path"`
	Enabled *bool  `yaml:"enabled"`
	Icon    string `yaml:"icon"`
}

// IsEnabled reports the effective enabled flag.
func (c *CollectionConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Validate validates one collection entry.
func (c *CollectionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Path, validation.Required),
	)
}

// IndexConfig controls topic index generation.
type IndexConfig struct {
	// ReportPath is where the rendered index is written, relative to the
	// primary collection root.
	ReportPath string `yaml:"report_path"`
	MaxRecent  int    `yaml:"max_recent"`
	// Debounce delays regeneration after file changes when watching.
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ReportPath, validation.Required),
		validation.Field(&c.MaxRecent, validation.Min(0)),
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// RecordingsConfig configures the recording API client. Imports are
// disabled while BaseURL is empty; once it is set, Token is required.
type RecordingsConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Token    string        `yaml:"token"`
	Subdir   string        `yaml:"subdir"`
	PageSize int           `yaml:"page_size"`
	Timeout  time.Duration `yaml:"timeout"`
	// Interval schedules periodic imports while serving. Zero disables.
	Interval time.Duration `yaml:"interval"`
}

// Enabled reports whether a recording API is configured.
func (c *RecordingsConfig) Enabled() bool {
	return c.BaseURL != ""
}

// Validate validates the recordings configuration.
func (c *RecordingsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Subdir, validation.Required),
		validation.Field(&c.PageSize, validation.Min(1), validation.Max(500)),
		validation.Field(&c.Interval, validation.Min(time.Duration(0))),
	)
}

// RequireToken returns an error when imports cannot authenticate.
func (c *RecordingsConfig) RequireToken() error {
	if c.Token == "" {
		return fmt.Errorf("recordings: token is empty (set recordings.token or RECORDINGS_TOKEN)")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("recordings: base_url is empty")
	}
	return nil
}

// AuthConfig holds authentication configuration for the HTTP API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
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
		Primary: PrimaryConfig{
			Name: "Recordings",
			Path: "./vault",
			Icon: "🎙️",
		},
		Index: IndexConfig{
			ReportPath: "Topic Index.md",
			MaxRecent:  20,
			Debounce:   time.Second,
		},
		Recordings: RecordingsConfig{
			Subdir:   "recordings",
			PageSize: 50,
			Timeout:  30 * time.Second,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
