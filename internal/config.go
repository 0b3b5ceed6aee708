package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/vaultlinker/internal/ai/backends"
	"github.com/starford/vaultlinker/internal/batch"
	"github.com/starford/vaultlinker/internal/knowledge"
	"github.com/starford/vaultlinker/internal/linker"
	"github.com/starford/vaultlinker/internal/linkservice"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Suggestion backends that can be configured under ai.backends.
var knownBackends = []any{"openai", "anthropic", "gemini", "ollama"}

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Vault     VaultConfig       `yaml:"vault"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Auth      AuthConfig        `yaml:"auth"`
	Knowledge KnowledgeConfig   `yaml:"knowledge"`
	AI        AIConfig          `yaml:"ai"`
	Linker    LinkerConfig      `yaml:"linker"`
	Batch     BatchConfig       `yaml:"batch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Knowledge.Validate(); err != nil {
		return fmt.Errorf("knowledge: %w", err)
	}
	if err := c.AI.Validate(); err != nil {
		return fmt.Errorf("ai: %w", err)
	}
	if err := c.Linker.Validate(); err != nil {
		return fmt.Errorf("linker: %w", err)
	}
	if err := c.Batch.Validate(); err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	return nil
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

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
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

// KnowledgeConfig holds the lookup cache and source credentials.
type KnowledgeConfig struct {
	CacheCapacity int           `yaml:"cache_capacity"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	Timeout       time.Duration `yaml:"request_timeout"`
	// Order overrides the auto fallback order. Empty keeps the default.
	Order        []string `yaml:"order"`
	UserAgent    string   `yaml:"user_agent"`
	GitHubToken  string   `yaml:"github_token"`
	ShodanAPIKey string   `yaml:"shodan_api_key"`
}

// Validate validates the knowledge configuration.
func (c *KnowledgeConfig) Validate() error {
	sources := make([]any, len(knowledge.DefaultOrder))
	for i, name := range knowledge.DefaultOrder {
		sources[i] = name
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.CacheCapacity, validation.Required, validation.Min(1)),
		validation.Field(&c.CacheTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.Order, validation.Each(validation.In(sources...))),
	)
}

// AIConfig holds the suggestion backends.
type AIConfig struct {
	DefaultBackend string                     `yaml:"default_backend"`
	Timeout        time.Duration              `yaml:"request_timeout"`
	Backends       map[string]backends.Config `yaml:"backends"`
}

// Validate validates the AI configuration.
func (c *AIConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.DefaultBackend, validation.In(knownBackends...)),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.Backends, validation.By(validateBackendNames)),
	); err != nil {
		return err
	}
	if c.DefaultBackend != "" {
		if _, ok := c.Backends[c.DefaultBackend]; !ok {
			return fmt.Errorf("default backend %q is not configured", c.DefaultBackend)
		}
	}
	return nil
}

func validateBackendNames(value any) error {
	m, _ := value.(map[string]backends.Config)
	for name := range m {
		if err := validation.Validate(name, validation.In(knownBackends...)); err != nil {
			return fmt.Errorf("backend %q: %w", name, err)
		}
	}
	return nil
}

// LinkerConfig holds the single-document suggestion and insertion defaults.
type LinkerConfig struct {
	MinConfidence     float64 `yaml:"min_confidence"`
	MaxSuggestions    int     `yaml:"max_suggestions"`
	FirstMatchOnly    bool    `yaml:"first_match_only"`
	MaxLinksPerTarget int     `yaml:"max_links_per_target"`
	UseDisplayText    bool    `yaml:"use_display_text"`
}

// Validate validates the linker configuration.
func (c *LinkerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MinConfidence, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.MaxSuggestions, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxLinksPerTarget, validation.Min(0)),
	)
}

// Options returns the insertion options.
func (c *LinkerConfig) Options() linker.Options {
	return linker.Options{
		FirstMatchOnly:    c.FirstMatchOnly,
		MaxLinksPerTarget: c.MaxLinksPerTarget,
		UseDisplayText:    c.UseDisplayText,
	}
}

// BatchConfig holds the batch processing defaults.
type BatchConfig struct {
	Concurrency    int      `yaml:"concurrency"`
	MinConfidence  float64  `yaml:"min_confidence"`
	MaxSuggestions int      `yaml:"max_suggestions"`
	Include        []string `yaml:"include"`
	Exclude        []string `yaml:"exclude"`
	DryRun         bool     `yaml:"dry_run"`
}

// Validate validates the batch configuration.
func (c *BatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Concurrency, validation.Required, validation.Min(1), validation.Max(64)),
		validation.Field(&c.MinConfidence, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.MaxSuggestions, validation.Required, validation.Min(1)),
		validation.Field(&c.Include, validation.Required, validation.Each(validation.By(validGlob))),
		validation.Field(&c.Exclude, validation.Each(validation.By(validGlob))),
	)
}

func validGlob(value any) error {
	pattern, _ := value.(string)
	if !doublestar.ValidatePattern(pattern) {
		return errors.New("invalid glob pattern")
	}
	return nil
}

// ServiceSettings converts the linker, batch and AI sections into service defaults.
func (c *Config) ServiceSettings() linkservice.Settings {
	return linkservice.Settings{
		DefaultBackend: c.AI.DefaultBackend,
		MinConfidence:  c.Linker.MinConfidence,
		MaxSuggestions: c.Linker.MaxSuggestions,
		Linker:         c.Linker.Options(),
		Batch: batch.SuggestOptions{
			Concurrency:    c.Batch.Concurrency,
			MinConfidence:  c.Batch.MinConfidence,
			MaxSuggestions: c.Batch.MaxSuggestions,
			Include:        append([]string(nil), c.Batch.Include...),
			Exclude:        append([]string(nil), c.Batch.Exclude...),
		},
		BatchDryRun: c.Batch.DryRun,
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	lo := linker.DefaultOptions()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./vaultlinker.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Knowledge: KnowledgeConfig{
			CacheCapacity: 100,
			CacheTTL:      15 * time.Minute,
			Timeout:       10 * time.Second,
		},
		AI: AIConfig{
			Timeout: 60 * time.Second,
		},
		Linker: LinkerConfig{
			MinConfidence:     0.5,
			MaxSuggestions:    10,
			FirstMatchOnly:    lo.FirstMatchOnly,
			MaxLinksPerTarget: lo.MaxLinksPerTarget,
			UseDisplayText:    lo.UseDisplayText,
		},
		Batch: BatchConfig{
			Concurrency:    batch.DefaultConcurrency,
			MinConfidence:  batch.DefaultMinConfidence,
			MaxSuggestions: batch.DefaultMaxSuggestions,
			Include:        append([]string(nil), batch.DefaultInclude...),
			Exclude:        []string{},
		},
	}
}
