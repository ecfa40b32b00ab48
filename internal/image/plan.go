// Package image builds and publishes the probe container image through the
// Docker Engine API: it renders the Dockerfile and launcher script from the
// manifest's build plan, tars the application directory, builds, pushes and
// finally removes the local copy.
package image

import (
	"fmt"

	"github.com/probelab-io/probedeploy/internal/manifest"
)

// LauncherFilename is the generated script the image runs: the plan's
// entrypoint followed by an output sync to the metrics bucket.
const LauncherFilename = "probe_launcher.sh"

// toolchainInstall maps a declared builder toolchain to its install step.
// An unknown toolchain is a validation error before any build starts.
var toolchainInstall = map[string]string{
	"python": "apt-get install -y python3 python3-pip && pip3 install --no-cache-dir -r /app/requirements.txt",
	"nodejs": "apt-get install -y nodejs npm && cd /app && npm install --omit=dev",
	"ruby":   "apt-get install -y ruby-full && cd /app && gem install bundler && bundle install",
	"golang": "apt-get install -y golang-go",
}

// Plan carries everything the build needs, resolved from the manifest.
type Plan struct {
	Name       string
	Version    string
	AppDir     string
	BaseImage  string
	Builders   []string
	Entrypoint string

	// Image is the push target: {hub_username}/{name}:{version}.
	Image string
	// Bucket is the sync target baked into the launcher script.
	Bucket string
}

// NewPlan validates the manifest's build section and resolves the target
// image reference.
func NewPlan(m *manifest.Manifest) (*Plan, error) {
	for _, b := range m.Build.Builders {
		if _, ok := toolchainInstall[b]; !ok {
			return nil, fmt.Errorf("unknown builder toolchain %q", b)
		}
	}

	return &Plan{
		Name:       m.Build.Name,
		Version:    m.Build.Version,
		AppDir:     m.Build.AppDir,
		BaseImage:  m.Build.BaseImage,
		Builders:   m.Build.Builders,
		Entrypoint: m.Build.Entrypoint,
		Image:      m.ImageReference(),
		Bucket:     m.AWS.MetricsBucket,
	}, nil
}

// InstallCommands returns the install step for each declared toolchain, in
// declaration order.
func (p *Plan) InstallCommands() []string {
	cmds := make([]string, 0, len(p.Builders))
	for _, b := range p.Builders {
		cmds = append(cmds, toolchainInstall[b])
	}
	return cmds
}
