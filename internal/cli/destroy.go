package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/probelab-io/probedeploy/internal/manifest"
	"github.com/probelab-io/probedeploy/internal/terraform"
)

var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Tear down all provisioned infrastructure",
	Long: `Destroys everything terraform provisioned for the manifest.

This command is the inverse of 'probedeploy deploy'. The metrics bucket is
left in place so collected probe output survives the fleet.`,
	RunE: runDestroy,
}

func runDestroy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	m, err := manifest.LoadFile(manifestPath)
	if err != nil {
		return err
	}

	tf := terraform.NewRunner(m.Terraform.Dir)
	if err := tf.Init(ctx); err != nil {
		return err
	}
	if err := tf.Destroy(ctx, terraformVars(m)); err != nil {
		return err
	}

	fmt.Println("Destroy complete! All provisioned hosts have been deleted.")
	return nil
}
