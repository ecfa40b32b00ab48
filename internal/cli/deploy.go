package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/docker/docker/client"
	"github.com/spf13/cobra"

	"github.com/probelab-io/probedeploy/internal/ansible"
	"github.com/probelab-io/probedeploy/internal/cloud"
	"github.com/probelab-io/probedeploy/internal/image"
	"github.com/probelab-io/probedeploy/internal/logging"
	"github.com/probelab-io/probedeploy/internal/manifest"
	"github.com/probelab-io/probedeploy/internal/terraform"
)

// inventoryDir is where the rendered inventory and group variables live
// for the duration of a deployment.
const inventoryDir = ".probedeploy/inventory"

// instanceWaitTimeout bounds the readiness poll between terraform apply
// and the playbook run.
const instanceWaitTimeout = 5 * time.Minute

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Provision infrastructure, publish the image, run the playbook",
	Long: `Runs the full pipeline: provision hosts through terraform, build and
push the probe image, then run the playbook to start the container on
every provisioned host.`,
	RunE: runDeploy,
}

func runDeploy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	m, err := manifest.LoadFile(manifestPath)
	if err != nil {
		return err
	}

	plan, err := image.NewPlan(m)
	if err != nil {
		return err
	}

	clients, err := cloud.NewClients(ctx, m.AWS.Region)
	if err != nil {
		return err
	}

	creds, err := cloud.ResolveCredentials(ctx, clients.Secrets, m.AWS.CredentialsSecret)
	if err != nil {
		return err
	}

	if err := cloud.EnsureBucket(ctx, clients.S3, m.AWS.MetricsBucket, m.AWS.Region); err != nil {
		return err
	}

	addrs, keyPath, err := provision(ctx, m)
	if err != nil {
		return err
	}
	logging.Info("provisioned hosts", "count", len(addrs), "key", keyPath)

	if err := ansible.WriteInventory(inventoryDir, addrs, keyPath); err != nil {
		return err
	}
	if err := ansible.WriteGroupVars(inventoryDir, ansible.DeployVars{
		Image:     plan.Image,
		AccessKey: creds.AccessKey,
		SecretKey: creds.SecretKey,
		Bucket:    m.AWS.MetricsBucket,
	}); err != nil {
		return err
	}

	if err := publish(ctx, m, plan); err != nil {
		return err
	}

	if err := cloud.WaitForInstances(ctx, clients.EC2, addrs, instanceWaitTimeout, 0); err != nil {
		// The playbook retries connections on its own; a slow status check
		// is not worth aborting a finished build and push.
		logging.Warn("instance readiness check did not complete", "error", err)
	}

	result, err := ansible.NewRunner(inventoryDir).Run(ctx)
	if err != nil {
		return err
	}
	reportPlaybook(result)
	return nil
}

// provision runs terraform and extracts the host addresses and key file
// from the resulting state.
func provision(ctx context.Context, m *manifest.Manifest) ([]string, string, error) {
	tf := terraform.NewRunner(m.Terraform.Dir)
	if err := tf.Init(ctx); err != nil {
		return nil, "", err
	}
	if err := tf.Apply(ctx, terraformVars(m)); err != nil {
		return nil, "", err
	}

	state, err := terraform.LoadState(filepath.Join(m.Terraform.Dir, terraform.StateFilename))
	if err != nil {
		return nil, "", err
	}
	return hostsFromState(state)
}

// hostsFromState extracts the provisioned addresses and key file from the
// state. Either being empty is fatal before any inventory is rendered.
func hostsFromState(state *terraform.State) ([]string, string, error) {
	addrs := state.PublicAddresses()
	if len(addrs) == 0 {
		return nil, "", fmt.Errorf("terraform state has no instance public addresses")
	}
	keyPath := state.KeyFilePath()
	if keyPath == "" {
		return nil, "", fmt.Errorf("terraform state has no key pair with a Key tag")
	}
	return addrs, keyPath, nil
}

// publish builds and pushes the probe image through a client whose
// lifetime is scoped to this deployment.
func publish(ctx context.Context, m *manifest.Manifest, plan *image.Plan) error {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("failed to create docker client: %w", err)
	}
	defer cli.Close()

	return publishWith(ctx, cli, m.Docker, plan)
}

// publishWith runs the build/push sequence. A failed build prevents any
// push attempt; the local image copy is removed best-effort regardless of
// the build or push outcome.
func publishWith(ctx context.Context, api image.APIClient, cfg manifest.DockerConfig, plan *image.Plan) error {
	builder := image.NewBuilder(api, plan)
	if err := builder.Build(ctx); err != nil {
		// A failed build can still leave dangling layers behind.
		if rmErr := builder.Remove(ctx); rmErr != nil {
			logging.Debug("cleanup after failed build", "error", rmErr)
		}
		return err
	}

	pushErr := func() error {
		auth, err := image.ResolveAuth(cfg)
		if err != nil {
			return err
		}
		if err := builder.Login(ctx, auth); err != nil {
			return err
		}
		return builder.Push(ctx, auth)
	}()

	if err := builder.Remove(ctx); err != nil {
		logging.Warn("image cleanup failed", "error", err)
	}
	return pushErr
}

func terraformVars(m *manifest.Manifest) map[string]string {
	return map[string]string{
		"instance_count": fmt.Sprintf("%d", m.AWS.Servers.Count),
		"instance_type":  m.AWS.Servers.InstanceType,
		"region":         m.AWS.Region,
	}
}

func reportPlaybook(result *ansible.Result) {
	fmt.Printf("\nPlaybook finished: status=%s rc=%d\n", result.Status, result.ReturnCode)

	hosts := make([]string, 0, len(result.Stats))
	for host := range result.Stats {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	for _, host := range hosts {
		s := result.Stats[host]
		fmt.Printf("  %s: ok=%d changed=%d unreachable=%d failed=%d\n",
			host, s.OK, s.Changed, s.Unreachable, s.Failed)
	}
}
