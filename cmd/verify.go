package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edutools/classrepo/internal/config"
	"github.com/edutools/classrepo/internal/platform/github"
	"github.com/edutools/classrepo/internal/platform/gitlab"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify that the configured settings and token work",
	Long: `Verify runs a preflight check sequence against the configured platform:
the token is present, the user can be resolved at the base url, the token
has the required scopes, the organization(s) exist, and the user is an
owner of the organization(s). The first failing step aborts the check with
a specific diagnostic.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// The check must work even when the configured organization is
		// broken, so it bypasses client construction on purpose.
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		switch cfg.Platform {
		case config.PlatformGitHub:
			return github.VerifySettings(cmd.Context(), cfg.BaseURL, cfg.User, cfg.OrgName, cfg.Token, cfg.MasterOrgName)
		case config.PlatformGitLab:
			return gitlab.VerifySettings(cmd.Context(), cfg.BaseURL, cfg.User, cfg.OrgName, cfg.Token, cfg.MasterOrgName)
		default:
			return fmt.Errorf("unknown platform: %s", cfg.Platform)
		}
	},
}
