package cloud

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/probelab-io/probedeploy/internal/logging"
)

// InstanceAPI is the slice of the EC2 API the readiness wait needs.
type InstanceAPI interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// WaitForInstances polls until every provisioned address is backed by a
// running instance, so the playbook does not race cloud-init. interval is
// the poll period; a zero value defaults to ten seconds.
func WaitForInstances(ctx context.Context, api InstanceAPI, addrs []string, timeout, interval time.Duration) error {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	deadline := time.Now().Add(timeout)

	for {
		running, err := countRunning(ctx, api, addrs)
		if err != nil {
			return err
		}
		if running >= len(addrs) {
			logging.Debug("all instances running", "count", running)
			return nil
		}
		logging.Info("waiting for instances", "running", running, "expected", len(addrs))

		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for %d instances to run (%d running)", len(addrs), running)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func countRunning(ctx context.Context, api InstanceAPI, addrs []string) (int, error) {
	out, err := api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("ip-address"), Values: addrs},
			{Name: aws.String("instance-state-name"), Values: []string{"running"}},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to describe instances: %w", err)
	}

	count := 0
	for _, res := range out.Reservations {
		count += len(res.Instances)
	}
	return count, nil
}
