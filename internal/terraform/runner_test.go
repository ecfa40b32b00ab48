package terraform

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTerraform installs a shell script in place of the terraform binary
// that records its arguments and exits with the given code.
func stubTerraform(t *testing.T, r *Runner, exitCode int) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stub requires a POSIX shell")
	}

	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	script := "#!/bin/sh\necho \"$@\" > " + argsFile + "\n"
	if exitCode != 0 {
		script += "echo 'Error: no valid credential sources' >&2\n"
	}
	script += "exit " + strconv.Itoa(exitCode) + "\n"

	bin := filepath.Join(dir, "terraform")
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	r.binary = bin
	return argsFile
}

func TestRunnerApply(t *testing.T) {
	r := NewRunner(t.TempDir())
	argsFile := stubTerraform(t, r, 0)

	err := r.Apply(context.Background(), map[string]string{
		"instance_count": "2",
		"instance_type":  "t3.micro",
	})
	require.NoError(t, err)

	recorded, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Equal(t,
		"apply -auto-approve -input=false -no-color -var instance_count=2 -var instance_type=t3.micro\n",
		string(recorded))
}

func TestRunnerInit(t *testing.T) {
	r := NewRunner(t.TempDir())
	argsFile := stubTerraform(t, r, 0)

	require.NoError(t, r.Init(context.Background()))

	recorded, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Equal(t, "init -input=false -no-color\n", string(recorded))
}

func TestRunnerApplyFailure(t *testing.T) {
	r := NewRunner(t.TempDir())
	stubTerraform(t, r, 1)

	err := r.Apply(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terraform apply failed")
	assert.Contains(t, err.Error(), "no valid credential sources")
}

func TestRunnerDestroy(t *testing.T) {
	r := NewRunner(t.TempDir())
	argsFile := stubTerraform(t, r, 0)

	require.NoError(t, r.Destroy(context.Background(), map[string]string{"region": "us-east-1"}))

	recorded, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Equal(t, "destroy -auto-approve -input=false -no-color -var region=us-east-1\n", string(recorded))
}
