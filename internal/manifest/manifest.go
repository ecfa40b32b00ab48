// Package manifest loads and validates the deployment manifest that drives
// the whole pipeline: which servers to provision, which bucket the probes
// sync their output to, how to build the probe image, and where to push it.
package manifest

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultFilename is the conventional manifest name looked up when no
// --manifest flag is given.
const DefaultFilename = "manifest.yaml"

// Manifest is the user-authored deployment configuration. Loaded once,
// read-only afterwards.
type Manifest struct {
	AWS       AWSConfig       `mapstructure:"aws" yaml:"aws"`
	Terraform TerraformConfig `mapstructure:"terraform" yaml:"terraform"`
	Build     BuildPlan       `mapstructure:"build" yaml:"build"`
	Docker    DockerConfig    `mapstructure:"docker" yaml:"docker"`
}

// AWSConfig describes the infrastructure side: how many servers to
// provision and which bucket receives probe output.
type AWSConfig struct {
	Region            string     `mapstructure:"region" yaml:"region"`
	Servers           ServerSpec `mapstructure:"servers" yaml:"servers"`
	MetricsBucket     string     `mapstructure:"metrics_s3_bucket" yaml:"metrics_s3_bucket"`
	CredentialsSecret string     `mapstructure:"credentials_secret" yaml:"credentials_secret"`
}

// ServerSpec describes the fleet terraform provisions.
type ServerSpec struct {
	Count        int    `mapstructure:"count" yaml:"count"`
	InstanceType string `mapstructure:"instance_type" yaml:"instance_type"`
}

// TerraformConfig locates the terraform root module on disk.
type TerraformConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// BuildPlan is the declarative description of the probe image build.
type BuildPlan struct {
	Name       string   `mapstructure:"name" yaml:"name"`
	Version    string   `mapstructure:"version" yaml:"version"`
	AppDir     string   `mapstructure:"app_dir" yaml:"app_dir"`
	BaseImage  string   `mapstructure:"base_image" yaml:"base_image"`
	Builders   []string `mapstructure:"builders" yaml:"builders"`
	Entrypoint string   `mapstructure:"entrypoint" yaml:"entrypoint"`
}

// DockerConfig holds registry settings. hub_password is honored for
// compatibility but the PROBEDEPLOY_HUB_PASSWORD environment variable and
// dockercfg_path are the supported credential sources.
type DockerConfig struct {
	HubUsername   string `mapstructure:"hub_username" yaml:"hub_username"`
	HubPassword   string `mapstructure:"hub_password" yaml:"hub_password"`
	DockercfgPath string `mapstructure:"dockercfg_path" yaml:"dockercfg_path"`
}

// LoadFile reads and parses the manifest from a YAML file.
func LoadFile(path string) (*Manifest, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	if _, ok := raw["aws"]; !ok {
		return nil, fmt.Errorf("manifest %s is missing the aws section", path)
	}

	var m Manifest
	if err := mapstructure.Decode(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}

	// Set defaults
	if m.AWS.Region == "" {
		m.AWS.Region = "us-east-1"
	}
	if m.AWS.Servers.InstanceType == "" {
		m.AWS.Servers.InstanceType = "t3.micro"
	}
	if m.Terraform.Dir == "" {
		m.Terraform.Dir = "terraform"
	}
	if m.Build.BaseImage == "" {
		m.Build.BaseImage = "ubuntu:22.04"
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest validation failed: %w", err)
	}

	return &m, nil
}

// Validate checks the manifest for required fields. Runs before any
// external tool is invoked.
func (m *Manifest) Validate() error {
	if m.AWS.Servers.Count < 1 {
		return fmt.Errorf("aws.servers.count must be at least 1")
	}
	if m.AWS.MetricsBucket == "" {
		return fmt.Errorf("aws.metrics_s3_bucket is required")
	}
	if m.Build.Name == "" {
		return fmt.Errorf("build.name is required")
	}
	if m.Build.Version == "" {
		return fmt.Errorf("build.version is required")
	}
	if m.Build.AppDir == "" {
		return fmt.Errorf("build.app_dir is required")
	}
	if m.Build.Entrypoint == "" {
		return fmt.Errorf("build.entrypoint is required")
	}
	if m.Docker.HubUsername == "" {
		return fmt.Errorf("docker.hub_username is required")
	}
	return nil
}

// ImageReference is the target image name derived from the registry user
// and the build plan: {hub_username}/{name}:{version}.
func (m *Manifest) ImageReference() string {
	return fmt.Sprintf("%s/%s:%s", m.Docker.HubUsername, m.Build.Name, m.Build.Version)
}
