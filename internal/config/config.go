// Package config provides centralized configuration management for the application.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Platform identifiers accepted in the CLASSREPO_PLATFORM variable.
const (
	PlatformGitHub = "github"
	PlatformGitLab = "gitlab"
)

// Config holds all configuration parameters for the application.
type Config struct {
	// Platform selects the hosting platform backend: "github" or "gitlab".
	Platform string

	// BaseURL is the base URL of the platform API (e.g.
	// https://api.github.com or https://gitlab.example.com).
	BaseURL string

	// OrgName is the target organization (GitHub) or group (GitLab) that
	// holds the student repositories.
	OrgName string

	// User is the username of the instructor operating the tool.
	User string

	// Token is the platform access token.
	Token string

	// MasterOrgName optionally names a separate organization holding the
	// master repositories. Empty means OrgName.
	MasterOrgName string

	// Tries is how many rounds the batch runner attempts each transfer.
	Tries int

	// Concurrency caps the number of simultaneous git processes.
	// Zero means unbounded.
	Concurrency int
}

// LoadConfig initializes and loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Map specific environment variables
	v.BindEnv("classrepo.platform", "CLASSREPO_PLATFORM")
	v.BindEnv("classrepo.base_url", "CLASSREPO_BASE_URL")
	v.BindEnv("classrepo.org_name", "CLASSREPO_ORG_NAME")
	v.BindEnv("classrepo.user", "CLASSREPO_USER")
	v.BindEnv("classrepo.token", "CLASSREPO_TOKEN")
	v.BindEnv("classrepo.master_org_name", "CLASSREPO_MASTER_ORG_NAME")
	v.BindEnv("classrepo.tries", "CLASSREPO_TRIES")
	v.BindEnv("classrepo.concurrency", "CLASSREPO_CONCURRENCY")

	v.SetDefault("classrepo.platform", PlatformGitHub)
	v.SetDefault("classrepo.tries", 3)
	v.SetDefault("classrepo.concurrency", 0)

	config := &Config{
		Platform:      v.GetString("classrepo.platform"),
		BaseURL:       v.GetString("classrepo.base_url"),
		OrgName:       v.GetString("classrepo.org_name"),
		User:          v.GetString("classrepo.user"),
		Token:         v.GetString("classrepo.token"),
		MasterOrgName: v.GetString("classrepo.master_org_name"),
		Tries:         v.GetInt("classrepo.tries"),
		Concurrency:   v.GetInt("classrepo.concurrency"),
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// validateConfig ensures that all required configuration values are provided.
func validateConfig(config *Config) error {
	var missingVars []string

	if config.BaseURL == "" {
		missingVars = append(missingVars, "CLASSREPO_BASE_URL")
	}
	if config.OrgName == "" {
		missingVars = append(missingVars, "CLASSREPO_ORG_NAME")
	}
	if config.User == "" {
		missingVars = append(missingVars, "CLASSREPO_USER")
	}
	if config.Token == "" {
		missingVars = append(missingVars, "CLASSREPO_TOKEN")
	}
	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	switch config.Platform {
	case PlatformGitHub, PlatformGitLab:
	default:
		return fmt.Errorf("unknown platform %q, expected %q or %q",
			config.Platform, PlatformGitHub, PlatformGitLab)
	}

	if config.Tries < 1 {
		return fmt.Errorf("CLASSREPO_TRIES must be at least 1, got %d", config.Tries)
	}
	if config.Concurrency < 0 {
		return fmt.Errorf("CLASSREPO_CONCURRENCY must not be negative, got %d", config.Concurrency)
	}

	return nil
}
