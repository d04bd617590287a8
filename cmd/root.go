// Package cmd wires the course-management workflows to the command line.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edutools/classrepo/internal/command"
	"github.com/edutools/classrepo/internal/config"
	"github.com/edutools/classrepo/internal/platform"
	"github.com/edutools/classrepo/internal/platform/github"
	"github.com/edutools/classrepo/internal/platform/gitlab"
)

var rootCmd = &cobra.Command{
	Use:   "classrepo",
	Short: "Classrepo manages student repositories for programming courses",
	Long: `Classrepo automates bulk repository management for instructors: it creates
one team and repository per student, distributes template repository content,
opens and closes issues in bulk, and orchestrates peer-review assignment.
It works against GitHub-style and GitLab-style hosting platforms.`,

	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(cloneCmd)
	rootCmd.AddCommand(openIssueCmd)
	rootCmd.AddCommand(closeIssueCmd)
	rootCmd.AddCommand(listIssuesCmd)
	rootCmd.AddCommand(assignReviewsCmd)
	rootCmd.AddCommand(verifyCmd)
}

// newAPI builds the configured platform backend.
func newAPI(ctx context.Context, cfg *config.Config) (platform.API, error) {
	switch cfg.Platform {
	case config.PlatformGitHub:
		return github.NewClient(ctx, cfg.BaseURL, cfg.Token, cfg.OrgName, cfg.User)
	case config.PlatformGitLab:
		return gitlab.NewClient(ctx, cfg.BaseURL, cfg.Token, cfg.OrgName)
	default:
		return nil, fmt.Errorf("unknown platform: %s", cfg.Platform)
	}
}

// newService loads configuration and builds the workflow service around the
// configured backend.
func newService(ctx context.Context) (*command.Service, *config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	api, err := newAPI(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return command.NewService(api, cfg), cfg, nil
}
