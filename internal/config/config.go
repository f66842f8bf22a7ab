package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/getpanelist/panelist/internal/domain"
)

// Config represents the full application configuration.
type Config struct {
	Reviewers []ReviewerConfig `yaml:"reviewers"`
	Review    ReviewConfig     `yaml:"review"`
	Synthesis SynthesisConfig  `yaml:"synthesis"`
	Models    ModelsConfig     `yaml:"models"`
	HTTP      HTTPConfig       `yaml:"http"`
	GitHub    GitHubConfig     `yaml:"github"`
	Logging   LoggingConfig    `yaml:"logging"`
	Redaction RedactionConfig  `yaml:"redaction"`
}

// ReviewerConfig configures a single reviewer persona.
type ReviewerConfig struct {
	Name        string `yaml:"name"`
	Persona     string `yaml:"persona"`
	PersonaFile string `yaml:"personaFile"`
	Model       string `yaml:"model"`
	Enabled     bool   `yaml:"enabled"`
}

// ReviewConfig configures review behavior.
type ReviewConfig struct {
	// MinSeverity drops merged findings below this severity. One of
	// critical, warning, info.
	MinSeverity string `yaml:"minSeverity"`

	// ReviewerTimeout caps a single reviewer model call (duration string).
	ReviewerTimeout string `yaml:"reviewerTimeout"`
}

// SynthesisConfig configures the optional model-backed overview synthesis.
type SynthesisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
}

// ModelsConfig holds credentials for the model providers.
type ModelsConfig struct {
	Anthropic ModelProviderConfig `yaml:"anthropic"`
	OpenAI    ModelProviderConfig `yaml:"openai"`

	// Default names the model used when a reviewer spec has no override.
	Default string `yaml:"default"`
}

// ModelProviderConfig configures one model provider endpoint.
type ModelProviderConfig struct {
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseURL"`
}

// HTTPConfig holds global HTTP client settings.
type HTTPConfig struct {
	Timeout           string  `yaml:"timeout"`
	MaxRetries        int     `yaml:"maxRetries"`
	InitialBackoff    string  `yaml:"initialBackoff"`
	MaxBackoff        string  `yaml:"maxBackoff"`
	BackoffMultiplier float64 `yaml:"backoffMultiplier"`
}

// GitHubConfig configures the hosting platform client.
type GitHubConfig struct {
	Token   string `yaml:"token"`
	BaseURL string `yaml:"baseURL"`
}

// LoggingConfig configures structured request/response logging.
type LoggingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Level         string `yaml:"level"`  // debug, info, error
	Format        string `yaml:"format"` // json, human
	RedactAPIKeys bool   `yaml:"redactAPIKeys"`
}

// RedactionConfig configures secret redaction of outgoing prompts.
type RedactionConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ErrNoReviewersEnabled indicates that the configuration enables zero
// reviewer personas. This is a configuration error: fail fast, publish
// nothing.
var ErrNoReviewersEnabled = errors.New("no reviewers enabled")

// Validate checks the configuration for fatal problems.
func (c Config) Validate() error {
	enabled := 0
	seen := make(map[string]bool, len(c.Reviewers))
	for _, r := range c.Reviewers {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return errors.New("reviewer with empty name")
		}
		if seen[name] {
			return fmt.Errorf("duplicate reviewer name %q", name)
		}
		seen[name] = true
		if r.Enabled {
			if r.Persona == "" && r.PersonaFile == "" {
				return fmt.Errorf("reviewer %q: persona or personaFile is required", name)
			}
			enabled++
		}
	}
	if enabled == 0 {
		return ErrNoReviewersEnabled
	}

	if c.Review.MinSeverity != "" {
		switch strings.ToLower(c.Review.MinSeverity) {
		case "critical", "warning", "info":
		default:
			return fmt.Errorf("invalid minSeverity %q", c.Review.MinSeverity)
		}
	}

	return nil
}

// ReviewerSpecs resolves the configured reviewers into domain specs,
// reading persona files where configured. Disabled reviewers are carried
// through with Enabled=false so callers can report them.
func (c Config) ReviewerSpecs() ([]domain.ReviewerSpec, error) {
	specs := make([]domain.ReviewerSpec, 0, len(c.Reviewers))
	for _, r := range c.Reviewers {
		persona := r.Persona
		if persona == "" && r.PersonaFile != "" {
			content, err := os.ReadFile(r.PersonaFile)
			if err != nil {
				return nil, fmt.Errorf("read persona file for reviewer %q: %w", r.Name, err)
			}
			persona = string(content)
		}
		specs = append(specs, domain.ReviewerSpec{
			Name:    r.Name,
			Persona: persona,
			Model:   r.Model,
			Enabled: r.Enabled,
		})
	}
	return specs, nil
}

// MinSeverity returns the configured severity floor, defaulting to info
// (keep everything).
func (c Config) MinSeverity() domain.Severity {
	if c.Review.MinSeverity == "" {
		return domain.SeverityInfo
	}
	return domain.ParseSeverity(c.Review.MinSeverity)
}
