package image

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlan(builders ...string) *Plan {
	return &Plan{
		Name:       "probe",
		Version:    "1.0",
		AppDir:     "./app",
		BaseImage:  "ubuntu:22.04",
		Builders:   builders,
		Entrypoint: "run_probe.sh",
		Image:      "probelab/probe:1.0",
		Bucket:     "probe-metrics",
	}
}

func readGolden(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(data)
}

func TestRenderDockerfile(t *testing.T) {
	tests := []struct {
		name     string
		builders []string
		golden   string
	}{
		{name: "python", builders: []string{"python"}, golden: "dockerfile_python.golden"},
		{name: "python and nodejs", builders: []string{"python", "nodejs"}, golden: "dockerfile_python_nodejs.golden"},
		{name: "no builders", builders: nil, golden: "dockerfile_none.golden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rendered, err := RenderDockerfile(testPlan(tt.builders...))
			require.NoError(t, err)
			assert.Equal(t, readGolden(t, tt.golden), rendered)
		})
	}
}

func TestRenderLauncher(t *testing.T) {
	rendered, err := RenderLauncher(testPlan("python"))
	require.NoError(t, err)
	assert.Equal(t, readGolden(t, "launcher.golden"), rendered)
}

func TestWriteBuildFiles(t *testing.T) {
	p := testPlan("python")
	p.AppDir = t.TempDir()

	require.NoError(t, WriteBuildFiles(p))

	dockerfile, err := os.ReadFile(filepath.Join(p.AppDir, "Dockerfile"))
	require.NoError(t, err)
	assert.Contains(t, string(dockerfile), "FROM ubuntu:22.04")

	launcher, err := os.Stat(filepath.Join(p.AppDir, LauncherFilename))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), launcher.Mode().Perm())
}

func TestWriteBuildFilesMissingAppDir(t *testing.T) {
	p := testPlan()
	p.AppDir = filepath.Join(t.TempDir(), "missing")

	err := WriteBuildFiles(p)
	require.Error(t, err)
}
