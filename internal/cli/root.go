package cli

import (
	"github.com/spf13/cobra"

	"github.com/probelab-io/probedeploy/internal/logging"
	"github.com/probelab-io/probedeploy/internal/manifest"
)

var manifestPath string

var rootCmd = &cobra.Command{
	Use:   "probedeploy",
	Short: "Provision probe hosts, build the probe image, roll it out",
	Long: `Probedeploy turns one manifest into a running probe fleet:

  • terraform provisions the EC2 hosts and key pair
  • the probe image is built and pushed through the Docker Engine API
  • ansible starts the container on every provisioned host

The probes sync their output to the metrics bucket named in the manifest.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.InitFromEnv()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&manifestPath, "manifest", manifest.DefaultFilename, "Path to the deployment manifest")

	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(versionCmd)
}
