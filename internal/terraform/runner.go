// Package terraform drives the external terraform binary and reads back
// the state snapshot it produces. Provisioning itself is entirely
// terraform's job; this package only sequences it and extracts the few
// attributes the rest of the pipeline needs.
package terraform

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/probelab-io/probedeploy/internal/logging"
)

// StateFilename is terraform's conventional local state snapshot name.
const StateFilename = "terraform.tfstate"

// Runner executes terraform subcommands in a fixed working directory.
type Runner struct {
	dir    string
	binary string
}

// NewRunner returns a Runner rooted at the given terraform module directory.
func NewRunner(dir string) *Runner {
	return &Runner{dir: dir, binary: "terraform"}
}

// Init runs terraform init.
func (r *Runner) Init(ctx context.Context) error {
	return r.run(ctx, "init", "-input=false", "-no-color")
}

// Apply runs terraform apply with the given variables.
func (r *Runner) Apply(ctx context.Context, vars map[string]string) error {
	args := []string{"apply", "-auto-approve", "-input=false", "-no-color"}
	args = append(args, varArgs(vars)...)
	return r.run(ctx, args...)
}

// Destroy runs terraform destroy with the given variables.
func (r *Runner) Destroy(ctx context.Context, vars map[string]string) error {
	args := []string{"destroy", "-auto-approve", "-input=false", "-no-color"}
	args = append(args, varArgs(vars)...)
	return r.run(ctx, args...)
}

func (r *Runner) run(ctx context.Context, args ...string) error {
	logging.Debug("running terraform", "dir", r.dir, "args", strings.Join(args, " "))

	// #nosec G204 -- arguments are assembled from the manifest, not user free text
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Dir = r.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	for _, line := range strings.Split(strings.TrimRight(stdout.String(), "\n"), "\n") {
		if line != "" {
			logging.Debug("terraform", "output", line)
		}
	}
	if err != nil {
		return fmt.Errorf("terraform %s failed: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func varArgs(vars map[string]string) []string {
	var args []string
	for _, k := range sortedKeys(vars) {
		args = append(args, "-var", fmt.Sprintf("%s=%s", k, vars[k]))
	}
	return args
}
