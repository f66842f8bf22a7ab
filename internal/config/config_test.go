package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getpanelist/panelist/internal/config"
	"github.com/getpanelist/panelist/internal/domain"
)

func enabledReviewer(name string) config.ReviewerConfig {
	return config.ReviewerConfig{Name: name, Persona: "persona text", Enabled: true}
}

func TestValidate_NoReviewersEnabled(t *testing.T) {
	cfg := config.Config{
		Reviewers: []config.ReviewerConfig{
			{Name: "style", Persona: "p", Enabled: false},
		},
	}

	err := cfg.Validate()

	assert.ErrorIs(t, err, config.ErrNoReviewersEnabled)
}

func TestValidate_EmptyReviewerList(t *testing.T) {
	err := config.Config{}.Validate()

	assert.ErrorIs(t, err, config.ErrNoReviewersEnabled)
}

func TestValidate_DuplicateReviewerNames(t *testing.T) {
	cfg := config.Config{
		Reviewers: []config.ReviewerConfig{
			enabledReviewer("security"),
			enabledReviewer("security"),
		},
	}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate reviewer name")
}

func TestValidate_EnabledReviewerWithoutPersona(t *testing.T) {
	cfg := config.Config{
		Reviewers: []config.ReviewerConfig{
			{Name: "security", Enabled: true},
		},
	}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "persona")
}

func TestValidate_InvalidMinSeverity(t *testing.T) {
	cfg := config.Config{
		Reviewers: []config.ReviewerConfig{enabledReviewer("security")},
		Review:    config.ReviewConfig{MinSeverity: "blocker"},
	}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "minSeverity")
}

func TestValidate_OK(t *testing.T) {
	cfg := config.Config{
		Reviewers: []config.ReviewerConfig{
			enabledReviewer("security"),
			{Name: "style", Enabled: false},
		},
		Review: config.ReviewConfig{MinSeverity: "warning"},
	}

	assert.NoError(t, cfg.Validate())
}

func TestReviewerSpecs_ReadsPersonaFile(t *testing.T) {
	// Given a persona stored on disk
	path := filepath.Join(t.TempDir(), "security.md")
	require.NoError(t, os.WriteFile(path, []byte("You hunt injection bugs."), 0o600))

	cfg := config.Config{
		Reviewers: []config.ReviewerConfig{
			{Name: "security", PersonaFile: path, Model: "claude-sonnet-4-20250514", Enabled: true},
		},
	}

	// When
	specs, err := cfg.ReviewerSpecs()

	// Then
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "You hunt injection bugs.", specs[0].Persona)
	assert.Equal(t, "claude-sonnet-4-20250514", specs[0].Model)
	assert.True(t, specs[0].Enabled)
}

func TestReviewerSpecs_InlinePersonaWins(t *testing.T) {
	cfg := config.Config{
		Reviewers: []config.ReviewerConfig{
			{Name: "style", Persona: "inline", PersonaFile: "/nonexistent/persona.md", Enabled: true},
		},
	}

	specs, err := cfg.ReviewerSpecs()

	require.NoError(t, err)
	assert.Equal(t, "inline", specs[0].Persona)
}

func TestReviewerSpecs_MissingPersonaFile(t *testing.T) {
	cfg := config.Config{
		Reviewers: []config.ReviewerConfig{
			{Name: "style", PersonaFile: "/nonexistent/persona.md", Enabled: true},
		},
	}

	_, err := cfg.ReviewerSpecs()

	assert.Error(t, err)
}

func TestMinSeverity(t *testing.T) {
	assert.Equal(t, domain.SeverityInfo, config.Config{}.MinSeverity())
	assert.Equal(t, domain.SeverityWarning,
		config.Config{Review: config.ReviewConfig{MinSeverity: "warning"}}.MinSeverity())
	assert.Equal(t, domain.SeverityCritical,
		config.Config{Review: config.ReviewConfig{MinSeverity: "critical"}}.MinSeverity())
}
