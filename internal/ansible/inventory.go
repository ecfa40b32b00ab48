// Package ansible renders the inventory and group variables the playbook
// consumes, and wraps the ansible-playbook binary that starts the probe
// container on every provisioned host.
package ansible

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/distribution/reference"
)

// HostGroup is the inventory group every provisioned address lands in.
const HostGroup = "probes"

// ConnectUser is the login user baked into the provisioned AMI.
const ConnectUser = "ubuntu"

// DeployVars holds the values rendered into the group variables file.
// Credentials arrive here from the environment or Secrets Manager, never
// from the manifest.
type DeployVars struct {
	Image     string
	AccessKey string
	SecretKey string
	Bucket    string
}

// WriteInventory renders the host inventory into <dir>/hosts: a single
// [probes] group, one line per address carrying the connection user and
// the discovered key file.
func WriteInventory(dir string, addrs []string, keyPath string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create inventory directory: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n", HostGroup)
	for _, addr := range addrs {
		fmt.Fprintf(&b, "%s ansible_user=%s ansible_ssh_private_key_file=%s\n", addr, ConnectUser, keyPath)
	}

	hostsPath := filepath.Join(dir, "hosts")
	if err := os.WriteFile(hostsPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write inventory file %s: %w", hostsPath, err)
	}
	return nil
}

// WriteGroupVars renders the group variables file the playbook reads into
// <dir>/group_vars/probes.yml. The file carries credentials, so it is
// written 0600 and lives only inside the per-deployment inventory
// directory.
func WriteGroupVars(dir string, vars DeployVars) error {
	name, err := ContainerName(vars.Image)
	if err != nil {
		return err
	}

	groupVarsDir := filepath.Join(dir, "group_vars")
	if err := os.MkdirAll(groupVarsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create group_vars directory: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "docker_img: %s\n", vars.Image)
	fmt.Fprintf(&b, "container_name: %s\n", name)
	fmt.Fprintf(&b, "aws_access_key: %s\n", vars.AccessKey)
	fmt.Fprintf(&b, "aws_secret_key: %s\n", vars.SecretKey)
	fmt.Fprintf(&b, "bucket_name: %s\n", vars.Bucket)

	varsPath := filepath.Join(groupVarsDir, HostGroup+".yml")
	if err := os.WriteFile(varsPath, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write group vars file %s: %w", varsPath, err)
	}
	return nil
}

// ContainerName derives the container name from an image reference by
// stripping the registry path and tag: user/app:1.0 becomes app.
func ContainerName(image string) (string, error) {
	ref, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		return "", fmt.Errorf("invalid image reference %q: %w", image, err)
	}
	return path.Base(reference.Path(ref)), nil
}
