package image

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types/registry"
	"github.com/probelab-io/probedeploy/internal/logging"
	"github.com/probelab-io/probedeploy/internal/manifest"
)

// PasswordEnvVar overrides every other registry credential source.
const PasswordEnvVar = "PROBEDEPLOY_HUB_PASSWORD"

// defaultRegistry is the index entry docker login writes for Docker Hub.
const defaultRegistry = "https://index.docker.io/v1/"

// ResolveAuth picks registry credentials for the configured hub user, in
// priority order: environment variable, explicit manifest password,
// explicit dockercfg path, default ~/.docker/config.json.
func ResolveAuth(cfg manifest.DockerConfig) (registry.AuthConfig, error) {
	auth := registry.AuthConfig{Username: cfg.HubUsername}

	if password := os.Getenv(PasswordEnvVar); password != "" {
		auth.Password = password
		return auth, nil
	}

	if cfg.HubPassword != "" {
		logging.Warn("using plaintext hub_password from manifest; prefer " + PasswordEnvVar + " or dockercfg_path")
		auth.Password = cfg.HubPassword
		return auth, nil
	}

	cfgPath := cfg.DockercfgPath
	if cfgPath == "" {
		cfgPath = filepath.Join(os.Getenv("HOME"), ".docker", "config.json")
	}
	password, err := passwordFromDockercfg(cfgPath, cfg.HubUsername)
	if err != nil {
		return registry.AuthConfig{}, err
	}
	auth.Password = password
	return auth, nil
}

type dockercfg struct {
	Auths map[string]struct {
		Auth     string `json:"auth"`
		Username string `json:"username"`
		Password string `json:"password"`
	} `json:"auths"`
}

func passwordFromDockercfg(path, username string) (string, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read registry config %s: %w", path, err)
	}

	var cfg dockercfg
	if err := json.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("failed to parse registry config %s: %w", path, err)
	}

	entry, ok := cfg.Auths[defaultRegistry]
	if !ok {
		return "", fmt.Errorf("registry config %s has no entry for %s", path, defaultRegistry)
	}

	if entry.Password != "" {
		return entry.Password, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(entry.Auth)
	if err != nil {
		return "", fmt.Errorf("failed to decode auth entry in %s: %w", path, err)
	}
	user, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return "", fmt.Errorf("malformed auth entry in %s", path)
	}
	if user != username {
		return "", fmt.Errorf("registry config %s holds credentials for %q, not %q", path, user, username)
	}
	return password, nil
}
