package cli

import (
	"context"

	"github.com/spf13/cobra"
)

const serviceName = "virtushot-api"

var appVersion string

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	return newRootCmd(version, commit, date).ExecuteContext(context.Background())
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "virtushot",
		Short: "AI product photography API",
		Long: `VirtuShot turns a product photo into styled studio shots.

Every generated image costs one credit, reserved before the image model is
called and refunded when the call fails. Configuration is read from the
environment (see .env.example).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newProvisionAdminCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}
