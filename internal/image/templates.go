package image

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

var dockerfileTmpl = template.Must(template.New("dockerfile").Parse(`FROM {{.BaseImage}}

RUN apt-get update && apt-get install -y awscli

COPY . /app
WORKDIR /app
{{range .InstallCommands}}
RUN {{.}}
{{end}}
RUN chmod +x /app/{{.Entrypoint}} /app/{{.Launcher}}

CMD ["/app/{{.Launcher}}"]
`))

var launcherTmpl = template.Must(template.New("launcher").Parse(`#!/bin/sh
set -e

/app/{{.Entrypoint}}
aws s3 sync /app/output "s3://{{.Bucket}}/"
`))

type dockerfileData struct {
	BaseImage       string
	InstallCommands []string
	Entrypoint      string
	Launcher        string
}

type launcherData struct {
	Entrypoint string
	Bucket     string
}

// RenderDockerfile produces the build recipe for a plan.
func RenderDockerfile(p *Plan) (string, error) {
	var b strings.Builder
	err := dockerfileTmpl.Execute(&b, dockerfileData{
		BaseImage:       p.BaseImage,
		InstallCommands: p.InstallCommands(),
		Entrypoint:      p.Entrypoint,
		Launcher:        LauncherFilename,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render Dockerfile: %w", err)
	}
	return b.String(), nil
}

// RenderLauncher produces the launcher script: run the entrypoint, then
// sync the output directory to the metrics bucket.
func RenderLauncher(p *Plan) (string, error) {
	var b strings.Builder
	err := launcherTmpl.Execute(&b, launcherData{
		Entrypoint: p.Entrypoint,
		Bucket:     p.Bucket,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render launcher script: %w", err)
	}
	return b.String(), nil
}

// WriteBuildFiles renders the Dockerfile and launcher script into the
// plan's application directory, where the build context picks them up.
func WriteBuildFiles(p *Plan) error {
	if _, err := os.Stat(p.AppDir); err != nil {
		return fmt.Errorf("application directory %s: %w", p.AppDir, err)
	}

	dockerfile, err := RenderDockerfile(p)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(p.AppDir, "Dockerfile"), []byte(dockerfile), 0o644); err != nil {
		return fmt.Errorf("failed to write Dockerfile: %w", err)
	}

	launcher, err := RenderLauncher(p)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(p.AppDir, LauncherFilename), []byte(launcher), 0o755); err != nil {
		return fmt.Errorf("failed to write launcher script: %w", err)
	}
	return nil
}
