package ansible

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

const sampleRecap = `
PLAY [probes] ******************************************************************

TASK [Gathering Facts] *********************************************************
ok: [203.0.113.10]
ok: [203.0.113.7]

PLAY RECAP *********************************************************************
203.0.113.10               : ok=3    changed=1    unreachable=0    failed=0    skipped=0    rescued=0    ignored=0
203.0.113.7                : ok=2    changed=0    unreachable=1    failed=0    skipped=0    rescued=0    ignored=0
`

func TestParseRecap(t *testing.T) {
	stats := ParseRecap(sampleRecap)
	require.Len(t, stats, 2)

	assert.Equal(t, HostStats{OK: 3, Changed: 1, Unreachable: 0, Failed: 0}, stats["203.0.113.10"])
	assert.Equal(t, HostStats{OK: 2, Changed: 0, Unreachable: 1, Failed: 0}, stats["203.0.113.7"])
}

func TestParseRecapEmpty(t *testing.T) {
	assert.Empty(t, ParseRecap("no recap here"))
}

func stubAnsible(t *testing.T, r *Runner, output string, exitCode int) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stub requires a POSIX shell")
	}

	dir := t.TempDir()
	outFile := filepath.Join(dir, "output")
	require.NoError(t, os.WriteFile(outFile, []byte(output), 0o644))

	script := "#!/bin/sh\ncat " + outFile + "\nexit " + strconv.Itoa(exitCode) + "\n"
	bin := filepath.Join(dir, "ansible-playbook")
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	r.binary = bin
}

func TestRunnerRun(t *testing.T) {
	r := NewRunner(t.TempDir())
	stubAnsible(t, r, sampleRecap, 0)

	result, err := r.Run(context.Background())
	require.NoError(t, err)

	// One host was unreachable, so the run reports failed even with exit 0.
	assert.Equal(t, "failed", result.Status)
	assert.Equal(t, 0, result.ReturnCode)
	assert.Len(t, result.Stats, 2)
}

func TestRunnerRunNonZeroExit(t *testing.T) {
	r := NewRunner(t.TempDir())
	stubAnsible(t, r, "PLAY RECAP *****\n203.0.113.10 : ok=1    changed=0    unreachable=0    failed=1    skipped=0\n", 2)

	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "failed", result.Status)
	assert.Equal(t, 2, result.ReturnCode)
	assert.Equal(t, 1, result.Stats["203.0.113.10"].Failed)
}

func TestRunnerRunMissingBinary(t *testing.T) {
	r := NewRunner(t.TempDir())
	r.binary = filepath.Join(t.TempDir(), "does-not-exist")

	_, err := r.Run(context.Background())
	require.Error(t, err)
}
