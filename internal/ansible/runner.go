package ansible

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/probelab-io/probedeploy/internal/logging"
)

// PlaybookFilename is the fixed playbook the invoker runs.
const PlaybookFilename = "playbook.yml"

// HostStats is the per-host tally from ansible's PLAY RECAP block.
type HostStats struct {
	OK          int
	Changed     int
	Unreachable int
	Failed      int
}

// Result reports a playbook run. A failed run is a reported outcome, not
// an error: the pipeline has nothing to retry.
type Result struct {
	Status     string
	ReturnCode int
	Stats      map[string]HostStats
}

// Runner executes ansible-playbook against a rendered inventory directory.
type Runner struct {
	inventoryDir string
	binary       string
}

// NewRunner returns a Runner for the given inventory directory.
func NewRunner(inventoryDir string) *Runner {
	return &Runner{inventoryDir: inventoryDir, binary: "ansible-playbook"}
}

// Run executes the playbook and reports its terminal status, return code
// and per-host statistics.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	logging.Info("running playbook", "playbook", PlaybookFilename, "inventory", r.inventoryDir)

	// #nosec G204 -- fixed binary, fixed playbook, inventory dir from the pipeline
	cmd := exec.CommandContext(ctx, r.binary, "-i", r.inventoryDir, PlaybookFilename)
	cmd.Env = append(os.Environ(), "ANSIBLE_HOST_KEY_CHECKING=False")

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	for _, line := range strings.Split(strings.TrimRight(output.String(), "\n"), "\n") {
		if line != "" {
			logging.Debug("ansible", "output", line)
		}
	}

	result := &Result{
		Status: "ok",
		Stats:  ParseRecap(output.String()),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.Status = "failed"
			result.ReturnCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("ansible-playbook failed to run: %w", err)
	}

	for _, stats := range result.Stats {
		if stats.Failed > 0 || stats.Unreachable > 0 {
			result.Status = "failed"
		}
	}
	return result, nil
}

// recapLine matches one PLAY RECAP host line, e.g.
// 203.0.113.10 : ok=3 changed=1 unreachable=0 failed=0 skipped=0 rescued=0 ignored=0
var recapLine = regexp.MustCompile(`^(\S+)\s*:\s*ok=(\d+)\s+changed=(\d+)\s+unreachable=(\d+)\s+failed=(\d+)`)

// ParseRecap extracts per-host statistics from playbook output.
func ParseRecap(output string) map[string]HostStats {
	stats := make(map[string]HostStats)
	inRecap := false
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "PLAY RECAP") {
			inRecap = true
			continue
		}
		if !inRecap {
			continue
		}
		m := recapLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		stats[m[1]] = HostStats{
			OK:          atoi(m[2]),
			Changed:     atoi(m[3]),
			Unreachable: atoi(m[4]),
			Failed:      atoi(m[5]),
		}
	}
	return stats
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
