// Package cloud covers the AWS concerns that sit outside terraform's
// state: the metrics bucket the probes sync to, instance readiness before
// the playbook runs, and credential resolution for the probe containers.
package cloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Clients bundles the per-service AWS clients the pipeline uses.
type Clients struct {
	S3      *s3.Client
	EC2     *ec2.Client
	Secrets *secretsmanager.Client
}

// NewClients builds service clients from the default credential chain.
func NewClients(ctx context.Context, region string) (*Clients, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	return &Clients{
		S3:      s3.NewFromConfig(cfg),
		EC2:     ec2.NewFromConfig(cfg),
		Secrets: secretsmanager.NewFromConfig(cfg),
	}, nil
}
