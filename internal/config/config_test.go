package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("CLASSREPO_BASE_URL", "https://api.github.com")
	t.Setenv("CLASSREPO_ORG_NAME", "course-org")
	t.Setenv("CLASSREPO_USER", "teacher")
	t.Setenv("CLASSREPO_TOKEN", "sometoken")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, PlatformGitHub, cfg.Platform)
	assert.Equal(t, "https://api.github.com", cfg.BaseURL)
	assert.Equal(t, "course-org", cfg.OrgName)
	assert.Equal(t, "teacher", cfg.User)
	assert.Equal(t, "sometoken", cfg.Token)
	assert.Empty(t, cfg.MasterOrgName)
	assert.Equal(t, 3, cfg.Tries)
	assert.Equal(t, 0, cfg.Concurrency)
}

func TestLoadConfigAllVariables(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CLASSREPO_PLATFORM", "gitlab")
	t.Setenv("CLASSREPO_MASTER_ORG_NAME", "master-org")
	t.Setenv("CLASSREPO_TRIES", "5")
	t.Setenv("CLASSREPO_CONCURRENCY", "8")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, PlatformGitLab, cfg.Platform)
	assert.Equal(t, "master-org", cfg.MasterOrgName)
	assert.Equal(t, 5, cfg.Tries)
	assert.Equal(t, 8, cfg.Concurrency)
}

func TestLoadConfigMissingVariables(t *testing.T) {
	t.Setenv("CLASSREPO_BASE_URL", "")
	t.Setenv("CLASSREPO_ORG_NAME", "")
	t.Setenv("CLASSREPO_USER", "")
	t.Setenv("CLASSREPO_TOKEN", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CLASSREPO_BASE_URL")
	assert.Contains(t, err.Error(), "CLASSREPO_ORG_NAME")
	assert.Contains(t, err.Error(), "CLASSREPO_USER")
	assert.Contains(t, err.Error(), "CLASSREPO_TOKEN")
}

func TestLoadConfigUnknownPlatform(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CLASSREPO_PLATFORM", "bitbucket")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bitbucket")
}

func TestLoadConfigInvalidTries(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CLASSREPO_TRIES", "0")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CLASSREPO_TRIES")
}

func TestLoadConfigNegativeConcurrency(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CLASSREPO_CONCURRENCY", "-1")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CLASSREPO_CONCURRENCY")
}
